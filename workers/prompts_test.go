package workers

import (
	"strings"
	"testing"
)

func TestResearcherSystemPrompt(t *testing.T) {
	prompt := researcherSystemPrompt()

	for _, want := range []string{
		"## Instructions",
		"reference material",
		"Do not wrap the answer in JSON",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("researcher system prompt missing %q", want)
		}
	}
}

func TestCodeSystemPrompt(t *testing.T) {
	prompt := codeSystemPrompt()

	for _, want := range []string{
		"## Instructions",
		"fenced blocks",
		"Nothing you write is executed",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("code system prompt missing %q", want)
		}
	}
}

func TestResearchPrompt(t *testing.T) {
	pages := []*Page{
		{URL: "https://example.com/a", Title: "Page A", Markdown: "alpha content"},
		{URL: "https://example.com/b", Markdown: "beta content"},
	}
	prompt := researchPrompt("find prior art", map[int]string{3: "three", 1: "one"}, pages)

	for _, want := range []string{
		"**Task:** find prior art",
		"## Results of earlier tasks",
		"### Task 1",
		"### Task 3",
		"## Reference material",
		"### Page A",
		"alpha content",
		"Source: https://example.com/b",
		"beta content",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("research prompt missing %q", want)
		}
	}

	if strings.Index(prompt, "### Task 1") > strings.Index(prompt, "### Task 3") {
		t.Error("dependency results out of order")
	}

	// The untitled page is headed by its URL.
	if !strings.Contains(prompt, "### https://example.com/b") {
		t.Error("untitled page should fall back to its URL as heading")
	}
}

func TestResearchPrompt_Bare(t *testing.T) {
	prompt := researchPrompt("find prior art", nil, nil)

	if strings.Contains(prompt, "## Results of earlier tasks") {
		t.Error("prompt should omit the dependency section when there are no results")
	}
	if strings.Contains(prompt, "## Reference material") {
		t.Error("prompt should omit the reference section when nothing was fetched")
	}
}

func TestCodePrompt(t *testing.T) {
	prompt := codePrompt("sum the column", map[int]string{2: "the column is 1, 2, 3"})

	for _, want := range []string{
		"**Task:** sum the column",
		"### Task 2",
		"the column is 1, 2, 3",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("code prompt missing %q", want)
		}
	}
}

func TestRenderDependencies_Empty(t *testing.T) {
	if got := renderDependencies(nil); got != "" {
		t.Errorf("renderDependencies(nil) = %q, want empty", got)
	}
	if got := renderDependencies(map[int]string{}); got != "" {
		t.Errorf("renderDependencies(empty) = %q, want empty", got)
	}
}
