package workflow

import (
	"strings"
	"testing"
)

func validPlan() Plan {
	return Plan{
		{ID: 1, Type: TaskTypeResearch, Description: "gather data", Dependencies: []int{}, Status: TaskStatusPending},
		{ID: 2, Type: TaskTypeAnalysis, Description: "analyze data", Dependencies: []int{1}, Status: TaskStatusPending},
		{ID: 3, Type: TaskTypeSummary, Description: "summarize findings", Dependencies: []int{1, 2}, Status: TaskStatusPending},
	}
}

func TestValidatePlan(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(Plan) Plan
		wantErr string
	}{
		{
			name:   "valid plan",
			mutate: func(p Plan) Plan { return p },
		},
		{
			name:   "empty plan is structurally fine",
			mutate: func(Plan) Plan { return Plan{} },
		},
		{
			name:    "gap in ids",
			mutate:  func(p Plan) Plan { p[2].ID = 5; return p },
			wantErr: "sequential",
		},
		{
			name:    "duplicate ids",
			mutate:  func(p Plan) Plan { p[1].ID = 1; return p },
			wantErr: "sequential",
		},
		{
			name:    "ids not starting at 1",
			mutate:  func(p Plan) Plan { p[0].ID = 2; return p },
			wantErr: "sequential",
		},
		{
			name:    "empty description",
			mutate:  func(p Plan) Plan { p[1].Description = "   "; return p },
			wantErr: "description",
		},
		{
			name:    "unknown type",
			mutate:  func(p Plan) Plan { p[0].Type = "deploy"; return p },
			wantErr: "unknown task type",
		},
		{
			name:    "forward dependency",
			mutate:  func(p Plan) Plan { p[0].Dependencies = []int{2}; return p },
			wantErr: "earlier task",
		},
		{
			name:    "self dependency",
			mutate:  func(p Plan) Plan { p[1].Dependencies = []int{2}; return p },
			wantErr: "earlier task",
		},
		{
			name:    "dependency below range",
			mutate:  func(p Plan) Plan { p[1].Dependencies = []int{0}; return p },
			wantErr: "earlier task",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePlan(tt.mutate(validPlan()))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidatePlan() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidatePlan() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidatePlan() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func validState() *State {
	s := NewState("research solar adoption")
	s.Plan = validPlan()
	return s
}

func TestValidateState(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*State)
		wantErr string
	}{
		{
			name:   "fresh pending state",
			mutate: func(*State) {},
		},
		{
			name: "mid-execution state",
			mutate: func(s *State) {
				s.ApprovalStatus = ApprovalStatusApproved
				s.Plan[0].Status = TaskStatusCompleted
				s.Plan[0].Result = "data"
				s.TaskResults[1] = "data"
				s.Plan[1].Status = TaskStatusInProgress
				next := 2
				s.NextTaskID = &next
			},
		},
		{
			name:    "empty user request",
			mutate:  func(s *State) { s.UserRequest = " " },
			wantErr: "user_request",
		},
		{
			name: "in_progress with incomplete dependency",
			mutate: func(s *State) {
				s.ApprovalStatus = ApprovalStatusApproved
				s.Plan[1].Status = TaskStatusInProgress
			},
			wantErr: "has not completed",
		},
		{
			name: "two tasks in_progress",
			mutate: func(s *State) {
				s.ApprovalStatus = ApprovalStatusApproved
				s.Plan[0].Status = TaskStatusInProgress
				s.Plan[1].Status = TaskStatusInProgress
				s.Plan[1].Dependencies = nil
			},
			wantErr: "serial",
		},
		{
			name: "result for non-completed task",
			mutate: func(s *State) {
				s.TaskResults[1] = "too early"
			},
			wantErr: "task_results",
		},
		{
			name: "result for unknown task",
			mutate: func(s *State) {
				s.TaskResults[9] = "ghost"
			},
			wantErr: "unknown task",
		},
		{
			name: "completed task without result",
			mutate: func(s *State) {
				s.ApprovalStatus = ApprovalStatusApproved
				s.Plan[0].Status = TaskStatusCompleted
				s.Plan[0].Result = "data"
			},
			wantErr: "no recorded result",
		},
		{
			name: "rejected without feedback",
			mutate: func(s *State) {
				s.ApprovalStatus = ApprovalStatusRejected
			},
			wantErr: "user_feedback",
		},
		{
			name: "feedback without rejection",
			mutate: func(s *State) {
				s.UserFeedback = "please change"
			},
			wantErr: "only allowed",
		},
		{
			name: "report with pending approval",
			mutate: func(s *State) {
				s.FinalReport = "report"
			},
			wantErr: "final_report",
		},
		{
			name: "report while task in progress",
			mutate: func(s *State) {
				s.ApprovalStatus = ApprovalStatusApproved
				s.Plan[0].Status = TaskStatusInProgress
				s.FinalReport = "report"
			},
			wantErr: "in_progress",
		},
		{
			name: "next task id without task",
			mutate: func(s *State) {
				s.ApprovalStatus = ApprovalStatusApproved
				next := 9
				s.NextTaskID = &next
			},
			wantErr: "references no task",
		},
		{
			name: "next task id on pending task",
			mutate: func(s *State) {
				s.ApprovalStatus = ApprovalStatusApproved
				next := 1
				s.NextTaskID = &next
			},
			wantErr: "want in_progress",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validState()
			tt.mutate(s)
			err := ValidateState(s)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateState() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateState() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateState() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateState_PartialFailureIsValid(t *testing.T) {
	// A failed task blocks its descendants; the resulting state with an
	// unrunnable pending remainder and a compiled report must validate.
	s := validState()
	s.ApprovalStatus = ApprovalStatusApproved
	s.Plan[0].Status = TaskStatusFailed
	s.Plan[0].Result = "worker error: search unavailable"
	s.FinalReport = "partial report"

	if err := ValidateState(s); err != nil {
		t.Fatalf("ValidateState() error = %v, want nil", err)
	}
}
