package workflow

// RunStatus is the derived top-level label for a workflow thread, computed
// from the raw state on every status read rather than stored.
type RunStatus string

const (
	// RunStatusPlanning indicates no plan exists yet.
	RunStatusPlanning RunStatus = "planning"

	// RunStatusPendingApproval indicates a plan is waiting on the approval gate.
	RunStatusPendingApproval RunStatus = "pending_approval"

	// RunStatusPlanRejected indicates the plan was rejected and not yet replanned.
	RunStatusPlanRejected RunStatus = "plan_rejected"

	// RunStatusReadyForExecution indicates an approved plan with runnable tasks
	// and nothing currently executing.
	RunStatusReadyForExecution RunStatus = "ready_for_execution"

	// RunStatusInProgress indicates a task is executing right now.
	RunStatusInProgress RunStatus = "in_progress"

	// RunStatusFinalizing indicates every task completed and the report is
	// still being compiled.
	RunStatusFinalizing RunStatus = "finalizing"

	// RunStatusCompleted indicates the final report is ready.
	RunStatusCompleted RunStatus = "completed"

	// RunStatusFailed indicates at least one task failed and no further
	// progress is possible.
	RunStatusFailed RunStatus = "failed"
)

// String returns the string representation of the run status.
func (s RunStatus) String() string {
	return string(s)
}

// Progress summarizes per-task execution counts for status reads.
type Progress struct {
	TotalTasks           int     `json:"total_tasks"`
	CompletedTasks       int     `json:"completed_tasks"`
	FailedTasks          int     `json:"failed_tasks"`
	InProgressTasks      int     `json:"in_progress_tasks"`
	PendingTasks         int     `json:"pending_tasks"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// ComputeProgress tallies task counts and the completion percentage for a
// plan. An empty plan reports zero percent.
func ComputeProgress(p Plan) Progress {
	counts := p.CountByStatus()
	progress := Progress{
		TotalTasks:      len(p),
		CompletedTasks:  counts[TaskStatusCompleted],
		FailedTasks:     counts[TaskStatusFailed],
		InProgressTasks: counts[TaskStatusInProgress],
		PendingTasks:    counts[TaskStatusPending],
	}
	if progress.TotalTasks > 0 {
		progress.CompletionPercentage = float64(progress.CompletedTasks) / float64(progress.TotalTasks) * 100
	}
	return progress
}

// DeriveStatus computes the top-level run status label from raw state.
// A failed task outranks a compiled report: a run that produced a report
// after failures still reads as failed.
func DeriveStatus(s *State) RunStatus {
	if len(s.Plan) == 0 {
		return RunStatusPlanning
	}

	switch s.ApprovalStatus {
	case ApprovalStatusRejected:
		return RunStatusPlanRejected
	case ApprovalStatusPending:
		return RunStatusPendingApproval
	}

	counts := s.Plan.CountByStatus()
	if counts[TaskStatusInProgress] > 0 {
		return RunStatusInProgress
	}

	anyFailed := counts[TaskStatusFailed] > 0
	if s.FinalReport != "" {
		if anyFailed {
			return RunStatusFailed
		}
		return RunStatusCompleted
	}

	runnable := NextTask(s.Plan) != nil
	if anyFailed && !runnable {
		return RunStatusFailed
	}
	if counts[TaskStatusPending] == 0 {
		return RunStatusFinalizing
	}
	return RunStatusReadyForExecution
}

// CurrentTask returns the task selected by next_task_id, falling back to
// whichever task is in_progress. Nil when the run is between tasks.
func CurrentTask(s *State) *Task {
	if s.NextTaskID != nil {
		if t := s.Plan.TaskByID(*s.NextTaskID); t != nil {
			return t
		}
	}
	for i := range s.Plan {
		if s.Plan[i].Status == TaskStatusInProgress {
			return &s.Plan[i]
		}
	}
	return nil
}
