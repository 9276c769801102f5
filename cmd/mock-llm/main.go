// Package main implements a mock LLM server for wiring tests. It serves
// fixture responses over the OpenAI-compatible /v1/chat/completions
// endpoint (the ollama and openai providers) and the Anthropic
// /v1/messages endpoint, so a full planning-and-execution run needs no
// real model, no network, and no GPU.
//
// Usage:
//
//	mock-llm -fixtures ./testdata/fixtures -port 11434
//
// Fixture files are JSON named by model: "qwen.json" answers requests
// for model "qwen". A "default.json" answers any model without its own
// file, which is the common case here: the planner and both workers
// prompt one configured model, so a single fixture drives them all.
//
// Numbered files form a sequence: with "qwen.1.json" and "qwen.2.json"
// present, the first call gets fixture 1, the second fixture 2, and
// later calls repeat the base "qwen.json". Rejection loops need this:
// the replan after feedback must produce a different plan than the
// first attempt.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// defaultModel is the catch-all fixture name.
const defaultModel = "default"

// --- OpenAI-compatible wire types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Anthropic-compatible wire types ---

type anthropicRequest struct {
	Model     string        `json:"model"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Model      string             `json:"model"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// --- Server ---

// recordedCall stores one incoming request so tests can assert on the
// prompts the orchestrator actually sent.
type recordedCall struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	CallIndex int           `json:"call_index"` // 1-indexed per-model call number
	Timestamp int64         `json:"timestamp"`
}

type server struct {
	sequences map[string][]string // model name → ordered fixture contents
	delay     time.Duration       // artificial latency per call
	logger    *slog.Logger

	totalCalls atomic.Int64

	// Per-model call counters drive sequential fixture selection.
	countersMu sync.Mutex
	counters   map[string]*atomic.Int64

	// Recorded requests for the /requests inspection endpoint.
	recordedMu sync.Mutex
	recorded   map[string][]recordedCall
}

func newServer(sequences map[string][]string, delay time.Duration, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	return &server{
		sequences: sequences,
		delay:     delay,
		logger:    logger,
		counters:  make(map[string]*atomic.Int64),
		recorded:  make(map[string][]recordedCall),
	}
}

func main() {
	fixtureDir := flag.String("fixtures", "", "directory of fixture reply files")
	port := flag.Int("port", 11434, "listen port")
	delay := flag.Duration("delay", 0, "artificial latency per call, e.g. 500ms")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Container setups pass the directory through the environment.
	if envDir := os.Getenv("AGENTFLOW_FIXTURES"); envDir != "" && *fixtureDir == "" {
		*fixtureDir = envDir
	}
	if *fixtureDir == "" {
		*fixtureDir = "/fixtures"
	}

	sequences, err := loadFixtures(*fixtureDir)
	if err != nil {
		logger.Error("Failed to load fixtures", "dir", *fixtureDir, "error", err)
		os.Exit(1)
	}
	logger.Info("Fixtures loaded", "dir", *fixtureDir, "models", len(sequences))
	for model, seq := range sequences {
		logger.Info("Fixture registered", "model", model, "fixtures", len(seq))
	}

	s := newServer(sequences, *delay, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/v1/messages", s.handleAnthropicMessages)
	mux.HandleFunc("/v1/models", s.handleModels)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/requests", s.handleRequests)

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("Mock LLM server listening", "addr", addr, "delay", *delay)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// nextFixture resolves the reply for one call: it picks the model's
// sequence (or the default catch-all), bumps the per-model counter,
// records the request, and returns the fixture for this call index.
func (s *server) nextFixture(model string, messages []chatMessage) (string, bool) {
	seq, ok := s.sequences[model]
	if !ok {
		seq, ok = s.sequences[defaultModel]
	}
	if !ok {
		return "", false
	}

	counter := s.counter(model)
	callIndex := int(counter.Add(1)) // 1-indexed

	s.record(model, messages, callIndex)

	if callIndex <= len(seq) {
		return seq[callIndex-1], true
	}
	return seq[len(seq)-1], true // repeat last fixture
}

func (s *server) counter(model string) *atomic.Int64 {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()
	if c, ok := s.counters[model]; ok {
		return c
	}
	c := &atomic.Int64{}
	s.counters[model] = c
	return c
}

func (s *server) record(model string, messages []chatMessage, callIndex int) {
	s.recordedMu.Lock()
	defer s.recordedMu.Unlock()
	s.recorded[model] = append(s.recorded[model], recordedCall{
		Model:     model,
		Messages:  messages,
		CallIndex: callIndex,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleChatCompletions serves the OpenAI-compatible endpoint used by
// the ollama and openai providers.
func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}

	callNum := s.totalCalls.Add(1)
	s.logger.Info("Chat completion requested",
		"call", callNum,
		"model", req.Model,
		"messages", len(req.Messages))

	content, ok := s.nextFixture(req.Model, req.Messages)
	if !ok {
		s.logger.Warn("No fixture for model", "call", callNum, "model", req.Model)
		http.Error(w, fmt.Sprintf("no fixture for model %q", req.Model), http.StatusNotFound)
		return
	}

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	estimate := tokenEstimate(content)
	resp := chatResponse{
		ID:      fmt.Sprintf("mockllm-%d", callNum),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{
			{
				Index: 0,
				Message: chatMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{
			PromptTokens:     estimate,
			CompletionTokens: estimate,
			TotalTokens:      2 * estimate,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// tokenEstimate fakes a usage count from the reply length so clients
// that surface token metrics have something plausible to show.
func tokenEstimate(content string) int {
	return len(content) / 4
}

// handleAnthropicMessages serves the Anthropic-compatible endpoint so
// runs configured with the anthropic provider hit the same fixtures.
func (s *server) handleAnthropicMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req anthropicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}

	callNum := s.totalCalls.Add(1)

	// Fold the system prompt into the recorded messages so /requests
	// shows the complete prompt either way.
	messages := req.Messages
	if req.System != "" {
		messages = append([]chatMessage{{Role: "system", Content: req.System}}, messages...)
	}

	s.logger.Info("Anthropic message requested",
		"call", callNum,
		"model", req.Model,
		"messages", len(messages))

	content, ok := s.nextFixture(req.Model, messages)
	if !ok {
		s.logger.Warn("No fixture for model", "call", callNum, "model", req.Model)
		http.Error(w, fmt.Sprintf("no fixture for model %q", req.Model), http.StatusNotFound)
		return
	}

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	resp := anthropicResponse{
		ID:         fmt.Sprintf("mockllm-%d", callNum),
		Type:       "message",
		Role:       "assistant",
		Model:      req.Model,
		Content:    []anthropicContent{{Type: "text", Text: content}},
		StopReason: "end_turn",
		Usage: anthropicUsage{
			InputTokens:  tokenEstimate(content),
			OutputTokens: tokenEstimate(content),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleModels lists the available fixture models.
func (s *server) handleModels(w http.ResponseWriter, _ *http.Request) {
	type modelEntry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	var models []modelEntry
	for name := range s.sequences {
		models = append(models, modelEntry{
			ID:      name,
			Object:  "model",
			OwnedBy: "mock-llm",
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   models,
	})
}

// handleStats returns call counts for test assertions.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.countersMu.Lock()
	callsByModel := make(map[string]int64, len(s.counters))
	for model, counter := range s.counters {
		callsByModel[model] = counter.Load()
	}
	s.countersMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls":    s.totalCalls.Load(),
		"calls_by_model": callsByModel,
	})
}

// handleRequests returns recorded request bodies for test assertions.
// Query params:
//   - model: filter by model name (optional)
//   - call: filter by call index, 1-indexed (optional)
func (s *server) handleRequests(w http.ResponseWriter, r *http.Request) {
	modelFilter := r.URL.Query().Get("model")
	callFilter := r.URL.Query().Get("call")

	s.recordedMu.Lock()
	result := make(map[string][]recordedCall)
	for model, calls := range s.recorded {
		if modelFilter != "" && model != modelFilter {
			continue
		}
		if callFilter != "" {
			if callIdx, err := strconv.Atoi(callFilter); err == nil {
				for _, call := range calls {
					if call.CallIndex == callIdx {
						result[model] = append(result[model], call)
					}
				}
				continue
			}
		}
		result[model] = calls
	}
	s.recordedMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"requests_by_model": result,
	})
}

// numberedFileRe matches files like "qwen.1.json", "default.2.json".
var numberedFileRe = regexp.MustCompile(`^(.+)\.(\d+)\.json$`)

// loadFixtures reads the fixture directory (flat, no recursion) into a
// map of model → ordered content sequence.
//
// Per model the sequence is the numbered files (model.1.json,
// model.2.json, ...) in numeric order, then the base model.json as the
// repeating tail. A model with only a base file has a one-entry
// sequence.
func loadFixtures(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fixture dir: %w", err)
	}

	baseFiles := make(map[string]string)
	numberedFiles := make(map[string]map[int]string)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("invalid JSON in %s", entry.Name())
		}
		content := string(data)

		if matches := numberedFileRe.FindStringSubmatch(entry.Name()); matches != nil {
			model := matches[1]
			index, _ := strconv.Atoi(matches[2])
			if numberedFiles[model] == nil {
				numberedFiles[model] = make(map[int]string)
			}
			numberedFiles[model][index] = content
			continue
		}

		model := strings.TrimSuffix(entry.Name(), ".json")
		baseFiles[model] = content
	}

	sequences := make(map[string][]string)

	allModels := make(map[string]bool)
	for m := range baseFiles {
		allModels[m] = true
	}
	for m := range numberedFiles {
		allModels[m] = true
	}

	for model := range allModels {
		var seq []string

		if numbered, ok := numberedFiles[model]; ok {
			indices := make([]int, 0, len(numbered))
			for idx := range numbered {
				indices = append(indices, idx)
			}
			sort.Ints(indices)
			for _, idx := range indices {
				seq = append(seq, numbered[idx])
			}
		}

		if base, ok := baseFiles[model]; ok {
			seq = append(seq, base)
		}

		if len(seq) > 0 {
			sequences[model] = seq
		}
	}

	if len(sequences) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}

	return sequences, nil
}
