package workflow

import (
	"strings"
	"testing"
)

func terminalState() *State {
	s := NewState("summarize the benefits of exercise")
	s.ApprovalStatus = ApprovalStatusApproved
	s.Plan = Plan{
		{ID: 1, Type: TaskTypeResearch, Description: "gather exercise studies", Status: TaskStatusCompleted, Result: "studies show improved cardiovascular health"},
		{ID: 2, Type: TaskTypeSummary, Description: "summarize findings", Dependencies: []int{1}, Status: TaskStatusCompleted, Result: "exercise improves health"},
	}
	s.TaskResults = map[int]string{1: "studies show improved cardiovascular health", 2: "exercise improves health"}
	return s
}

func TestCompileReport_Success(t *testing.T) {
	report := CompileReport(terminalState())

	for _, want := range []string{
		"summarize the benefits of exercise",
		"2 total, 2 completed, 0 failed",
		"Task 1: gather exercise studies",
		"Type: research",
		"Status: completed",
		"studies show improved cardiovascular health",
		"Task 2: summarize findings",
		"All tasks completed successfully.",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q\n\n%s", want, report)
		}
	}
}

func TestCompileReport_PartialFailure(t *testing.T) {
	s := NewState("research meditation and visualize the data")
	s.ApprovalStatus = ApprovalStatusApproved
	s.Plan = Plan{
		{ID: 1, Type: TaskTypeResearch, Description: "research meditation", Status: TaskStatusFailed, Result: "worker error: search unavailable"},
		{ID: 2, Type: TaskTypeAnalysis, Description: "visualize the data", Dependencies: []int{1}, Status: TaskStatusPending},
	}

	report := CompileReport(s)

	for _, want := range []string{
		"2 total, 0 completed, 1 failed",
		"worker error: search unavailable",
		"Status: pending",
		"1 of 2 tasks failed.",
		"1 tasks were skipped because a dependency failed.",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q\n\n%s", want, report)
		}
	}
	if strings.Contains(report, "All tasks completed successfully.") {
		t.Error("failure report carries the success note")
	}
}

func TestCompileReport_FailedWithoutMessage(t *testing.T) {
	s := NewState("do a thing")
	s.ApprovalStatus = ApprovalStatusApproved
	s.Plan = Plan{
		{ID: 1, Type: TaskTypeCode, Description: "do a thing", Status: TaskStatusFailed},
	}

	report := CompileReport(s)
	if !strings.Contains(report, "no result") {
		t.Errorf("report missing %q placeholder\n\n%s", "no result", report)
	}
}

func TestCompileReport_Deterministic(t *testing.T) {
	s := terminalState()
	if CompileReport(s) != CompileReport(s) {
		t.Error("CompileReport is not deterministic for the same state")
	}
}
