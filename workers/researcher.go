package workers

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/c360studio/agentflow/llm"
)

const (
	// maxReferenceURLs caps how many URLs from one description get fetched.
	maxReferenceURLs = 3

	// maxReferenceRunes caps how much of one fetched page enters the prompt.
	maxReferenceRunes = 8000
)

// urlPattern matches http(s) URLs embedded in task descriptions.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// PageFetcher retrieves a web page reduced to markdown for prompt context.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (*Page, error)
}

// Researcher answers research, analysis and summary tasks. When a fetcher
// is configured and the task description carries URLs, the pages are
// fetched and offered to the model as reference material.
type Researcher struct {
	client      llm.TextGenerator
	model       string
	temperature *float64
	maxTokens   int
	fetcher     PageFetcher
	logger      *slog.Logger
}

// NewResearcher creates a Researcher that answers with the given model.
func NewResearcher(client llm.TextGenerator, model string, opts ...Option) *Researcher {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Researcher{
		client:      client,
		model:       model,
		temperature: o.temperature,
		maxTokens:   o.maxTokens,
		fetcher:     o.fetcher,
		logger:      o.logger,
	}
}

// Execute answers the task description. deps maps completed dependency
// task ids to their results; they are folded into the prompt so the
// answer can build on earlier work.
func (r *Researcher) Execute(ctx context.Context, description string, deps map[int]string) (string, error) {
	pages := r.fetchReferences(ctx, description)

	resp, err := r.client.Complete(ctx, llm.Request{
		Model: r.model,
		Messages: []llm.Message{
			{Role: "system", Content: researcherSystemPrompt()},
			{Role: "user", Content: researchPrompt(description, deps, pages)},
		},
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("research completion: %w", err)
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", fmt.Errorf("model returned an empty answer")
	}

	r.logger.Debug("Research task answered",
		"model", resp.Model,
		"references", len(pages),
		"tokens", resp.Usage.TotalTokens)

	return answer, nil
}

// fetchReferences fetches the pages a description links to. Fetch
// failures degrade to an unenriched prompt rather than failing the task.
func (r *Researcher) fetchReferences(ctx context.Context, description string) []*Page {
	if r.fetcher == nil {
		return nil
	}

	var pages []*Page
	for _, u := range extractURLs(description) {
		page, err := r.fetcher.FetchPage(ctx, u)
		if err != nil {
			r.logger.Warn("Reference fetch failed", "url", u, "error", err)
			continue
		}
		page.Markdown = clipRunes(page.Markdown, maxReferenceRunes)
		pages = append(pages, page)
	}
	return pages
}

// extractURLs pulls the first few distinct URLs out of a description.
// Trailing sentence punctuation is not part of the URL.
func extractURLs(text string) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, m := range urlPattern.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".,;:!?")
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		urls = append(urls, m)
		if len(urls) == maxReferenceURLs {
			break
		}
	}
	return urls
}

// clipRunes truncates s to at most max runes, marking the cut.
func clipRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "\n[truncated]"
}
