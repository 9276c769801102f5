// Package workflow provides the Agentflow domain model: typed task
// plans, per-thread workflow state, and the pure rules that move a plan
// from human approval through execution to a compiled report.
package workflow

import (
	"time"
)

// TaskType classifies the kind of work a task represents.
// The dispatcher routes each type to a specialized worker.
type TaskType string

const (
	// TaskTypeResearch is for information gathering.
	TaskTypeResearch TaskType = "research"

	// TaskTypeCode is for producing code or scripts.
	TaskTypeCode TaskType = "code"

	// TaskTypeAnalysis is for analyzing material produced by earlier tasks.
	TaskTypeAnalysis TaskType = "analysis"

	// TaskTypeSummary is for condensing prior results.
	TaskTypeSummary TaskType = "summary"

	// TaskTypeCalculation is for numeric or computational work.
	TaskTypeCalculation TaskType = "calculation"
)

// String returns the string representation of the task type.
func (t TaskType) String() string {
	return string(t)
}

// IsValid returns true if the task type is one the dispatcher can route.
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypeResearch, TaskTypeCode, TaskTypeAnalysis, TaskTypeSummary, TaskTypeCalculation:
		return true
	default:
		return false
	}
}

// TaskStatus represents the execution state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not been dispatched yet.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusInProgress indicates the task is currently being executed.
	TaskStatusInProgress TaskStatus = "in_progress"

	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsValid returns true if the task status is valid.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions are possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransitionTo returns true if this status can transition to the target status.
// The task lifecycle is pending → in_progress → completed or failed.
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return target == TaskStatusInProgress
	case TaskStatusInProgress:
		return target == TaskStatusCompleted || target == TaskStatusFailed
	default:
		return false
	}
}

// ApprovalStatus tracks the human approval gate for a plan.
type ApprovalStatus string

const (
	// ApprovalStatusPending indicates the plan is awaiting a human decision.
	ApprovalStatusPending ApprovalStatus = "pending"

	// ApprovalStatusApproved indicates the plan was approved for execution.
	ApprovalStatusApproved ApprovalStatus = "approved"

	// ApprovalStatusRejected indicates the plan was rejected with feedback.
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// String returns the string representation of the approval status.
func (s ApprovalStatus) String() string {
	return string(s)
}

// IsValid returns true if the approval status is valid.
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected:
		return true
	default:
		return false
	}
}

// Task is a single unit of work within a plan.
type Task struct {
	// ID is the 1-based identifier, unique within the plan.
	ID int `json:"id"`

	// Type classifies the work so the dispatcher can route it.
	Type TaskType `json:"type"`

	// Description is what the worker should do.
	Description string `json:"description"`

	// Dependencies lists task IDs that must complete before this task runs.
	Dependencies []int `json:"dependencies"`

	// Status is the current execution state.
	Status TaskStatus `json:"status"`

	// Result is the worker output once the task reaches a terminal state.
	Result string `json:"result,omitempty"`

	// StartedAt is when the task was dispatched.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the task reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	out := t
	if t.Dependencies != nil {
		out.Dependencies = append([]int(nil), t.Dependencies...)
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		out.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}

// Plan is the ordered set of tasks produced by the planner for one request.
type Plan []Task

// Clone returns a deep copy of the plan.
func (p Plan) Clone() Plan {
	if p == nil {
		return nil
	}
	out := make(Plan, len(p))
	for i := range p {
		out[i] = p[i].Clone()
	}
	return out
}

// TaskByID returns a pointer to the task with the given ID, or nil if absent.
func (p Plan) TaskByID(id int) *Task {
	for i := range p {
		if p[i].ID == id {
			return &p[i]
		}
	}
	return nil
}

// CountByStatus tallies tasks per execution state.
func (p Plan) CountByStatus() map[TaskStatus]int {
	counts := make(map[TaskStatus]int, 4)
	for i := range p {
		counts[p[i].Status]++
	}
	return counts
}

// State is the complete persisted record of one workflow thread.
// Everything a run needs to resume after a restart lives here.
type State struct {
	// UserRequest is the original natural-language request.
	UserRequest string `json:"user_request"`

	// Plan is the current task plan. Empty until planning completes.
	Plan Plan `json:"plan"`

	// TaskResults maps task IDs to worker output. Keys stay integers
	// across serialization round trips.
	TaskResults map[int]string `json:"task_results"`

	// NextTaskID is the task selected for dispatch, nil between cycles.
	NextTaskID *int `json:"next_task_id,omitempty"`

	// Messages is the append-only progress log for the thread.
	Messages []string `json:"messages"`

	// ApprovalStatus tracks the human approval gate.
	ApprovalStatus ApprovalStatus `json:"approval_status"`

	// UserFeedback is the rejection feedback used for replanning.
	UserFeedback string `json:"user_feedback,omitempty"`

	// FinalReport is the compiled report once the run terminates.
	FinalReport string `json:"final_report,omitempty"`

	// UpdatedAt is when the state was last persisted.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState returns the initial state for a new thread.
func NewState(userRequest string) *State {
	return &State{
		UserRequest:    userRequest,
		Plan:           Plan{},
		TaskResults:    make(map[int]string),
		Messages:       []string{},
		ApprovalStatus: ApprovalStatusPending,
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Plan = s.Plan.Clone()
	out.TaskResults = make(map[int]string, len(s.TaskResults))
	for id, result := range s.TaskResults {
		out.TaskResults[id] = result
	}
	if s.NextTaskID != nil {
		next := *s.NextTaskID
		out.NextTaskID = &next
	}
	out.Messages = append([]string(nil), s.Messages...)
	return &out
}

// AppendMessage adds an entry to the progress log.
func (s *State) AppendMessage(msg string) {
	s.Messages = append(s.Messages, msg)
}

// ReplacePlan installs a revised plan and resets execution progress.
// The approval gate reopens and any rejection feedback is consumed,
// since feedback may only accompany a rejected plan.
func (s *State) ReplacePlan(p Plan) {
	s.Plan = p.Clone()
	s.TaskResults = make(map[int]string)
	s.NextTaskID = nil
	s.ApprovalStatus = ApprovalStatusPending
	s.UserFeedback = ""
	s.FinalReport = ""
}
