package workflow

import (
	"fmt"
	"strings"
)

// CompileReport renders the final report for a run whose execution phase
// has ended. Output is deterministic: the same state always produces the
// same text. Tasks that never ran (a dependency failed) appear with their
// pending status so the report reflects partial completion honestly.
func CompileReport(s *State) string {
	counts := s.Plan.CountByStatus()
	total := len(s.Plan)
	completed := counts[TaskStatusCompleted]
	failed := counts[TaskStatusFailed]
	skipped := counts[TaskStatusPending]

	var sb strings.Builder

	sb.WriteString("# Workflow Report\n\n")
	sb.WriteString(fmt.Sprintf("**Request:** %s\n\n", s.UserRequest))
	sb.WriteString(fmt.Sprintf("**Tasks:** %d total, %d completed, %d failed\n", total, completed, failed))

	for i := range s.Plan {
		t := &s.Plan[i]
		sb.WriteString(fmt.Sprintf("\n## Task %d: %s\n\n", t.ID, t.Description))
		sb.WriteString(fmt.Sprintf("Type: %s\n", t.Type))
		sb.WriteString(fmt.Sprintf("Status: %s\n\n", t.Status))

		result := t.Result
		if result == "" {
			result = "no result"
		}
		sb.WriteString(result)
		sb.WriteString("\n")
	}

	sb.WriteString("\n---\n\n")
	if failed > 0 {
		sb.WriteString(fmt.Sprintf("%d of %d tasks failed.", failed, total))
		if skipped > 0 {
			sb.WriteString(fmt.Sprintf(" %d tasks were skipped because a dependency failed.", skipped))
		}
		sb.WriteString(" The sections above contain every result that was produced.\n")
	} else {
		sb.WriteString("All tasks completed successfully.\n")
	}

	return sb.String()
}
