// Package planner turns a user request into a typed task plan via an LLM.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/c360studio/agentflow/llm"
	"github.com/c360studio/agentflow/workflow"
)

// fallbackRequestLimit bounds the request text echoed into the
// fallback task description.
const fallbackRequestLimit = 100

// Planner generates task plans from natural-language requests.
// Generate and Regenerate never fail: any transport, parse, or
// validation problem degrades to a single-task fallback plan, with
// warnings returned for the progress log. Downstream code relies on
// always receiving a valid plan.
type Planner struct {
	client      llm.TextGenerator
	model       string
	temperature *float64
	maxTokens   int
	logger      *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithTemperature sets an explicit sampling temperature.
func WithTemperature(t float64) Option {
	return func(p *Planner) {
		p.temperature = &t
	}
}

// WithMaxTokens caps the plan response length.
func WithMaxTokens(n int) Option {
	return func(p *Planner) {
		p.maxTokens = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		p.logger = logger
	}
}

// New creates a Planner that plans with the given model.
func New(client llm.TextGenerator, model string, opts ...Option) *Planner {
	p := &Planner{
		client: client,
		model:  model,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Generate plans a fresh request.
func (p *Planner) Generate(ctx context.Context, request string) (workflow.Plan, []string) {
	return p.plan(ctx, request, generatePrompt(request))
}

// Regenerate replans after a rejection. The feedback is folded into
// the prompt and the result is a full replacement plan, not a diff.
func (p *Planner) Regenerate(ctx context.Context, request string, prev workflow.Plan, feedback string) (workflow.Plan, []string) {
	return p.plan(ctx, request, regeneratePrompt(request, prev, feedback))
}

func (p *Planner) plan(ctx context.Context, request, userPrompt string) (workflow.Plan, []string) {
	resp, err := p.client.Complete(ctx, llm.Request{
		Model: p.model,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt()},
			{Role: "user", Content: userPrompt},
		},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		p.logger.Warn("Plan generation failed", "model", p.model, "error", err)
		return fallbackPlan(request), []string{"plan generation failed; substituted a single research task"}
	}

	tasks, err := decodePlanDocument(resp.Content)
	if err != nil {
		p.logger.Warn("Plan response was not parseable", "model", resp.Model, "error", err)
		return fallbackPlan(request), []string{"plan response was not parseable; substituted a single research task"}
	}

	plan, warnings := normalizeTasks(tasks)

	if err := workflow.ValidatePlan(plan); err != nil {
		p.logger.Warn("Generated plan failed validation", "model", resp.Model, "error", err)
		return fallbackPlan(request), []string{fmt.Sprintf("generated plan failed validation (%v); substituted a single research task", err)}
	}

	return plan, warnings
}

// planDocument is the JSON grammar the model is asked to produce.
type planDocument struct {
	Tasks []taskDocument `json:"tasks"`
}

type taskDocument struct {
	ID           int    `json:"id"`
	Type         string `json:"type"`
	Description  string `json:"description"`
	Dependencies []int  `json:"dependencies"`
}

// decodePlanDocument extracts the task list from a model response.
// It tolerates code fences, comments, trailing commas, typographic
// quotes, and a bare task array in place of the wrapping object.
func decodePlanDocument(content string) ([]taskDocument, error) {
	if raw := llm.ExtractJSON(content); raw != "" {
		for _, candidate := range []string{raw, llm.NormalizeQuotes(raw)} {
			var doc planDocument
			if err := json.Unmarshal([]byte(candidate), &doc); err == nil && len(doc.Tasks) > 0 {
				return doc.Tasks, nil
			}
		}
	}

	if raw := llm.ExtractJSONArray(content); raw != "" {
		for _, candidate := range []string{raw, llm.NormalizeQuotes(raw)} {
			var tasks []taskDocument
			if err := json.Unmarshal([]byte(candidate), &tasks); err == nil && len(tasks) > 0 {
				return tasks, nil
			}
		}
	}

	return nil, fmt.Errorf("no task list found in response")
}

// normalizeTasks converts raw task documents into a Plan: tasks sorted
// by id, unknown types mapped to research with a warning, dependencies
// deduplicated, every status pending.
func normalizeTasks(docs []taskDocument) (workflow.Plan, []string) {
	var warnings []string

	tasks := make([]taskDocument, len(docs))
	copy(tasks, docs)
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	plan := make(workflow.Plan, 0, len(tasks))
	for _, doc := range tasks {
		taskType := workflow.TaskType(strings.ToLower(strings.TrimSpace(doc.Type)))
		if !taskType.IsValid() {
			warnings = append(warnings, fmt.Sprintf("task %d: unknown type %q treated as research", doc.ID, doc.Type))
			taskType = workflow.TaskTypeResearch
		}

		plan = append(plan, workflow.Task{
			ID:           doc.ID,
			Type:         taskType,
			Description:  strings.TrimSpace(doc.Description),
			Dependencies: normalizeDependencies(doc.Dependencies),
			Status:       workflow.TaskStatusPending,
		})
	}

	return plan, warnings
}

func normalizeDependencies(deps []int) []int {
	if len(deps) == 0 {
		return []int{}
	}

	seen := make(map[int]bool, len(deps))
	out := make([]int, 0, len(deps))
	for _, d := range deps {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out
}

// fallbackPlan is the plan of last resort: one research task built
// from the request itself. It always passes validation.
func fallbackPlan(request string) workflow.Plan {
	return workflow.Plan{{
		ID:           1,
		Type:         workflow.TaskTypeResearch,
		Description:  "gather information about: " + truncate(strings.TrimSpace(request), fallbackRequestLimit),
		Dependencies: []int{},
		Status:       workflow.TaskStatusPending,
	}}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
