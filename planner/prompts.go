package planner

import (
	"encoding/json"
	"fmt"

	"github.com/c360studio/agentflow/workflow"
)

// systemPrompt returns the planner role prompt. The JSON grammar shown
// here is what decodePlanDocument expects; keep the two in sync.
func systemPrompt() string {
	return `You are a planning assistant for a multi-agent task service.
Break the user's request into a short sequence of typed tasks.

## Task Types

- research: gather information or background on a topic
- analysis: examine or compare information produced by earlier tasks
- summary: condense earlier results into a short write-up
- code: write a program, script, or function
- calculation: compute a numeric or quantitative answer

## Dependency Rules

- Number tasks 1..N in execution order.
- A task may only depend on lower-numbered tasks.
- List a dependency whenever a task needs another task's result.
- Keep the plan minimal: 1 to 10 tasks.

## Output Format

` + "```json" + `
{
  "tasks": [
    {"id": 1, "type": "research", "description": "Find recent cost figures for residential solar", "dependencies": []},
    {"id": 2, "type": "analysis", "description": "Compare the cost figures by region", "dependencies": [1]},
    {"id": 3, "type": "summary", "description": "Summarize the comparison in plain language", "dependencies": [1, 2]}
  ]
}
` + "```" + `

Respond with the JSON object only. No prose before or after it.`
}

// generatePrompt returns the user prompt for first-time planning.
func generatePrompt(request string) string {
	return fmt.Sprintf(`Create a task plan for this request:

**Request:** %s

Respond with the JSON plan only.`, request)
}

// regeneratePrompt returns the user prompt for post-rejection
// replanning.
func regeneratePrompt(request string, prev workflow.Plan, feedback string) string {
	return fmt.Sprintf(`Revise the task plan for this request:

**Request:** %s

**Previous plan (rejected):**
%s

**Reviewer feedback:** %s

Produce a complete replacement plan that addresses the feedback. Respond with the JSON plan only.`, request, renderPlan(prev), feedback)
}

// renderPlan renders a plan in the same JSON grammar the model is
// asked to produce.
func renderPlan(p workflow.Plan) string {
	docs := make([]taskDocument, 0, len(p))
	for _, t := range p {
		docs = append(docs, taskDocument{
			ID:           t.ID,
			Type:         string(t.Type),
			Description:  t.Description,
			Dependencies: t.Dependencies,
		})
	}

	data, err := json.MarshalIndent(planDocument{Tasks: docs}, "", "  ")
	if err != nil {
		return "(previous plan unavailable)"
	}
	return string(data)
}
