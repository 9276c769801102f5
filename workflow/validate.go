package workflow

import (
	"fmt"
	"strings"
)

// ValidatePlan checks the structural contract every plan must satisfy:
// ids are sequential from 1 in slice order, descriptions are non-empty,
// types are routable, and dependencies point at earlier tasks (which
// rules out cycles).
func ValidatePlan(p Plan) error {
	for i := range p {
		t := &p[i]
		field := fmt.Sprintf("plan[%d]", i)

		if t.ID != i+1 {
			return &ValidationError{Field: field + ".id", Message: fmt.Sprintf("task ids must be sequential from 1, got %d at position %d", t.ID, i)}
		}
		if strings.TrimSpace(t.Description) == "" {
			return &ValidationError{Field: field + ".description", Message: "description is required"}
		}
		if !t.Type.IsValid() {
			return &ValidationError{Field: field + ".type", Message: fmt.Sprintf("unknown task type %q", t.Type)}
		}
		if !t.Status.IsValid() {
			return &ValidationError{Field: field + ".status", Message: fmt.Sprintf("unknown task status %q", t.Status)}
		}
		for _, dep := range t.Dependencies {
			if dep < 1 || dep >= t.ID {
				return &ValidationError{Field: field + ".dependencies", Message: fmt.Sprintf("dependency %d must reference an earlier task (1..%d)", dep, t.ID-1)}
			}
		}
	}
	return nil
}

// ValidateState checks the full contract a durable state must satisfy
// after every save. A violation here means a transition produced an
// inconsistent state and must not be persisted.
func ValidateState(s *State) error {
	if s == nil {
		return &ValidationError{Field: "state", Message: "state is nil"}
	}
	if strings.TrimSpace(s.UserRequest) == "" {
		return &ValidationError{Field: "user_request", Message: "user_request is required"}
	}
	if !s.ApprovalStatus.IsValid() {
		return &ValidationError{Field: "approval_status", Message: fmt.Sprintf("unknown approval status %q", s.ApprovalStatus)}
	}
	if err := ValidatePlan(s.Plan); err != nil {
		return err
	}

	inProgress := 0
	for i := range s.Plan {
		t := &s.Plan[i]
		if t.Status != TaskStatusInProgress {
			continue
		}
		inProgress++
		for _, dep := range t.Dependencies {
			depTask := s.Plan.TaskByID(dep)
			if depTask == nil || depTask.Status != TaskStatusCompleted {
				return &ValidationError{Field: fmt.Sprintf("plan[%d].status", i), Message: fmt.Sprintf("task %d is in_progress but dependency %d has not completed", t.ID, dep)}
			}
		}
	}
	if inProgress > 1 {
		return &ValidationError{Field: "plan", Message: fmt.Sprintf("%d tasks are in_progress, execution is serial", inProgress)}
	}

	// task_results keys must be exactly the completed task ids.
	for id := range s.TaskResults {
		t := s.Plan.TaskByID(id)
		if t == nil {
			return &ValidationError{Field: "task_results", Message: fmt.Sprintf("result recorded for unknown task %d", id)}
		}
		if t.Status != TaskStatusCompleted {
			return &ValidationError{Field: "task_results", Message: fmt.Sprintf("result recorded for task %d with status %s", id, t.Status)}
		}
	}
	for i := range s.Plan {
		t := &s.Plan[i]
		if t.Status == TaskStatusCompleted {
			if _, ok := s.TaskResults[t.ID]; !ok {
				return &ValidationError{Field: "task_results", Message: fmt.Sprintf("task %d is completed but has no recorded result", t.ID)}
			}
		}
	}

	rejected := s.ApprovalStatus == ApprovalStatusRejected
	hasFeedback := strings.TrimSpace(s.UserFeedback) != ""
	if rejected && !hasFeedback {
		return &ValidationError{Field: "user_feedback", Message: "user_feedback is required when the plan is rejected"}
	}
	if !rejected && hasFeedback {
		return &ValidationError{Field: "user_feedback", Message: "user_feedback is only allowed when the plan is rejected"}
	}

	if s.FinalReport != "" {
		if inProgress > 0 {
			return &ValidationError{Field: "final_report", Message: "final_report is set while a task is still in_progress"}
		}
		if s.ApprovalStatus != ApprovalStatusApproved {
			return &ValidationError{Field: "final_report", Message: fmt.Sprintf("final_report is set but approval status is %s", s.ApprovalStatus)}
		}
	}

	if s.NextTaskID != nil {
		t := s.Plan.TaskByID(*s.NextTaskID)
		if t == nil {
			return &ValidationError{Field: "next_task_id", Message: fmt.Sprintf("next_task_id %d references no task", *s.NextTaskID)}
		}
		if t.Status != TaskStatusInProgress {
			return &ValidationError{Field: "next_task_id", Message: fmt.Sprintf("next_task_id %d references a task with status %s, want in_progress", *s.NextTaskID, t.Status)}
		}
	}

	return nil
}
