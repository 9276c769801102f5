package workers

import (
	"fmt"
	"sort"
	"strings"
)

// researcherSystemPrompt frames research, analysis and summary tasks.
func researcherSystemPrompt() string {
	return `You are a researcher executing one task inside a larger workflow.

## Instructions
- Answer the task directly and completely; the result is stored verbatim and handed to later tasks.
- Build on the results of earlier tasks when they are provided.
- Ground statements in the reference material when it is provided, and name the source URL you relied on.
- If the task cannot be answered with what you have, say what is missing instead of guessing.

Respond in plain prose or markdown. Do not wrap the answer in JSON.`
}

// codeSystemPrompt frames code and calculation tasks.
func codeSystemPrompt() string {
	return `You are a coding assistant executing one task inside a larger workflow.

## Instructions
- Write the code or carry out the calculation the task asks for.
- Put code in fenced blocks with a language tag and explain briefly how it works.
- Show the intermediate steps of a calculation and put the final result on its own line.
- Nothing you write is executed. Reason through the expected behavior instead of claiming you ran it.

Respond in plain prose or markdown. Do not wrap the answer in JSON.`
}

// researchPrompt builds the user prompt for a research-family task.
func researchPrompt(description string, deps map[int]string, pages []*Page) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Task:** %s\n", description)
	b.WriteString(renderDependencies(deps))
	b.WriteString(renderPages(pages))
	return strings.TrimRight(b.String(), "\n")
}

// codePrompt builds the user prompt for a code-family task.
func codePrompt(description string, deps map[int]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Task:** %s\n", description)
	b.WriteString(renderDependencies(deps))
	return strings.TrimRight(b.String(), "\n")
}

// renderDependencies lists dependency results in task-id order.
func renderDependencies(deps map[int]string) string {
	if len(deps) == 0 {
		return ""
	}

	ids := make([]int, 0, len(deps))
	for id := range deps {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var b strings.Builder
	b.WriteString("\n## Results of earlier tasks\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "\n### Task %d\n%s\n", id, deps[id])
	}
	return b.String()
}

// renderPages lists fetched reference pages, falling back to the URL
// when a page carried no title.
func renderPages(pages []*Page) string {
	if len(pages) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n## Reference material\n")
	for _, p := range pages {
		title := p.Title
		if title == "" {
			title = p.URL
		}
		fmt.Fprintf(&b, "\n### %s\nSource: %s\n\n%s\n", title, p.URL, p.Markdown)
	}
	return b.String()
}
