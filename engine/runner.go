package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360studio/agentflow/workflow"
)

// runner drives a single workflow thread through its lifecycle. Every
// transition mutates the working copy and persists it before the next
// transition begins, so the durable record never skips ahead of what
// actually happened. The approval gate is the one deliberate suspension
// point: plan leaves the thread awaiting a decision and returns, and a
// later resume directive picks the thread back up, possibly in a fresh
// process rebuilt from the durable state.
type runner struct {
	threadID   string
	store      StateStore
	planner    Planner
	dispatcher *Dispatcher
	events     *Publisher
	logger     *slog.Logger

	// opMu serializes resume directives for the thread, so an approval
	// arriving during a synchronous replan waits for the fresh plan
	// instead of racing the plan swap.
	opMu sync.Mutex

	mu sync.RWMutex
	st *workflow.State
}

// snapshot returns a deep copy of the working state for status reads.
func (r *runner) snapshot() *workflow.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st.Clone()
}

// save persists the working state. The store stamps UpdatedAt on the
// state it is handed, so the write lock covers the call.
func (r *runner) save(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Save(ctx, r.threadID, r.st)
}

// plan generates a plan for the request and leaves the thread awaiting
// approval. A rejected plan is regenerated from its feedback; anything
// else is planned fresh from the user request. Planner degradations
// surface as warnings in the progress log, never as errors, so the only
// failure here is a failed save.
func (r *runner) plan(ctx context.Context) error {
	r.mu.RLock()
	request := r.st.UserRequest
	feedback := r.st.UserFeedback
	prev := r.st.Plan.Clone()
	rejected := r.st.ApprovalStatus == workflow.ApprovalStatusRejected
	r.mu.RUnlock()

	var (
		plan     workflow.Plan
		warnings []string
	)
	if rejected && feedback != "" {
		plan, warnings = r.planner.Regenerate(ctx, request, prev, feedback)
	} else {
		plan, warnings = r.planner.Generate(ctx, request)
	}

	r.mu.Lock()
	r.st.ReplacePlan(plan)
	for _, warning := range warnings {
		r.st.AppendMessage("planner: " + warning)
	}
	r.st.AppendMessage(fmt.Sprintf("plan ready with %d tasks; awaiting approval", len(plan)))
	r.mu.Unlock()

	if err := r.save(ctx); err != nil {
		return err
	}

	r.events.Publish(ctx, &workflow.Event{
		Kind:      workflow.EventPlanReady,
		ThreadID:  r.threadID,
		RunStatus: workflow.RunStatusPendingApproval,
		Detail:    fmt.Sprintf("%d tasks planned", len(plan)),
	})
	r.logger.Info("Plan awaiting approval",
		"thread_id", r.threadID,
		"tasks", len(plan),
		"replanned", rejected)
	return nil
}

// resumeGate reports whether the thread can accept a resume directive.
// Only a non-empty plan still awaiting a decision is resumable.
func resumeGate(st *workflow.State) error {
	if len(st.Plan) == 0 {
		return fmt.Errorf("%w: no plan exists yet", ErrConflict)
	}
	if st.ApprovalStatus != workflow.ApprovalStatusPending {
		return fmt.Errorf("%w: approval status is %s", ErrConflict, st.ApprovalStatus)
	}
	return nil
}

// approve passes the gate and persists the decision. A failed save rolls
// the working copy back so the caller can retry once the store recovers.
func (r *runner) approve(ctx context.Context) error {
	r.mu.Lock()
	if err := resumeGate(r.st); err != nil {
		r.mu.Unlock()
		return err
	}
	prev := r.st
	next := prev.Clone()
	next.ApprovalStatus = workflow.ApprovalStatusApproved
	next.AppendMessage("plan approved; execution starting")
	r.st = next
	r.mu.Unlock()

	if err := r.save(ctx); err != nil {
		r.rollback(prev)
		return err
	}

	r.events.Publish(ctx, &workflow.Event{
		Kind:      workflow.EventApproved,
		ThreadID:  r.threadID,
		RunStatus: workflow.RunStatusReadyForExecution,
	})
	r.logger.Info("Plan approved", "thread_id", r.threadID)
	return nil
}

// reject records the rejection and its feedback. The caller follows up
// with plan to regenerate; until that completes the thread reads as
// rejected.
func (r *runner) reject(ctx context.Context, feedback string) error {
	r.mu.Lock()
	if err := resumeGate(r.st); err != nil {
		r.mu.Unlock()
		return err
	}
	prev := r.st
	next := prev.Clone()
	next.ApprovalStatus = workflow.ApprovalStatusRejected
	next.UserFeedback = feedback
	next.AppendMessage("plan rejected: " + feedback)
	r.st = next
	r.mu.Unlock()

	if err := r.save(ctx); err != nil {
		r.rollback(prev)
		return err
	}

	r.events.Publish(ctx, &workflow.Event{
		Kind:      workflow.EventRejected,
		ThreadID:  r.threadID,
		RunStatus: workflow.RunStatusPlanRejected,
		Detail:    feedback,
	})
	r.logger.Info("Plan rejected", "thread_id", r.threadID, "feedback", feedback)
	return nil
}

// cancel closes the approval gate without executing. The decision is
// recorded as a rejection carrying the directive, so it is durable and
// every later directive conflicts.
func (r *runner) cancel(ctx context.Context, directive string) error {
	r.mu.Lock()
	if err := resumeGate(r.st); err != nil {
		r.mu.Unlock()
		return err
	}
	prev := r.st
	next := prev.Clone()
	next.ApprovalStatus = workflow.ApprovalStatusRejected
	next.UserFeedback = fmt.Sprintf("cancelled by directive %q", directive)
	next.AppendMessage(fmt.Sprintf("workflow cancelled (directive %q); plan will not run", directive))
	r.st = next
	r.mu.Unlock()

	if err := r.save(ctx); err != nil {
		r.rollback(prev)
		return err
	}

	r.events.Publish(ctx, &workflow.Event{
		Kind:      workflow.EventRunFinished,
		ThreadID:  r.threadID,
		RunStatus: workflow.RunStatusPlanRejected,
		Detail:    "cancelled before approval",
	})
	r.logger.Info("Workflow cancelled", "thread_id", r.threadID, "directive", directive)
	return nil
}

func (r *runner) rollback(prev *workflow.State) {
	r.mu.Lock()
	r.st = prev
	r.mu.Unlock()
}

// run drives an approved plan from dispatch through the final report.
// Tasks execute serially in dependency order. A worker failure marks its
// task failed with the error text as the result and execution continues
// with whatever is still unblocked; only a failed save aborts the run.
func (r *runner) run(ctx context.Context) error {
	for {
		r.mu.Lock()
		next := workflow.NextTask(r.st.Plan)
		if next == nil {
			r.mu.Unlock()
			break
		}
		now := time.Now()
		next.Status = workflow.TaskStatusInProgress
		next.StartedAt = &now
		id := next.ID
		r.st.NextTaskID = &id
		task := next.Clone()
		deps := workflow.DependencyResults(r.st, id)
		r.mu.Unlock()

		if err := r.save(ctx); err != nil {
			return fmt.Errorf("dispatch task %d: %w", id, err)
		}
		r.events.Publish(ctx, &workflow.Event{
			Kind:      workflow.EventTaskStarted,
			ThreadID:  r.threadID,
			TaskID:    id,
			TaskType:  task.Type,
			RunStatus: workflow.RunStatusInProgress,
		})
		r.logger.Info("Task dispatched",
			"thread_id", r.threadID,
			"task_id", id,
			"task_type", task.Type)

		result, execErr := r.dispatcher.Execute(ctx, task, deps)

		r.mu.Lock()
		done := time.Now()
		finished := r.st.Plan.TaskByID(id)
		finished.CompletedAt = &done
		if execErr != nil {
			finished.Status = workflow.TaskStatusFailed
			finished.Result = execErr.Error()
			r.st.AppendMessage(fmt.Sprintf("task %d (%s) failed: %v", id, task.Type, execErr))
		} else {
			finished.Status = workflow.TaskStatusCompleted
			finished.Result = result
			r.st.TaskResults[id] = result
			r.st.AppendMessage(fmt.Sprintf("task %d (%s) completed", id, task.Type))
		}
		taskStatus := finished.Status
		r.st.NextTaskID = nil
		r.mu.Unlock()

		if err := r.save(ctx); err != nil {
			return fmt.Errorf("finish task %d: %w", id, err)
		}
		r.events.Publish(ctx, &workflow.Event{
			Kind:       workflow.EventTaskFinished,
			ThreadID:   r.threadID,
			TaskID:     id,
			TaskType:   task.Type,
			TaskStatus: taskStatus,
		})
		if execErr != nil {
			r.logger.Warn("Task failed",
				"thread_id", r.threadID,
				"task_id", id,
				"task_type", task.Type,
				"error", execErr)
		} else {
			r.logger.Info("Task completed",
				"thread_id", r.threadID,
				"task_id", id,
				"task_type", task.Type)
		}
	}

	r.mu.Lock()
	r.st.FinalReport = workflow.CompileReport(r.st)
	r.st.AppendMessage("final report compiled")
	finalStatus := workflow.DeriveStatus(r.st)
	r.mu.Unlock()

	if err := r.save(ctx); err != nil {
		return fmt.Errorf("compile report: %w", err)
	}
	r.events.Publish(ctx, &workflow.Event{
		Kind:      workflow.EventRunFinished,
		ThreadID:  r.threadID,
		RunStatus: finalStatus,
	})
	r.logger.Info("Workflow run finished",
		"thread_id", r.threadID,
		"status", finalStatus)
	return nil
}

// recordFailure appends an abort note after a failed run so the failure
// is visible through status reads. Best effort: if this save fails too,
// the durable record simply stays at the last completed transition.
func (r *runner) recordFailure(ctx context.Context, runErr error) {
	r.mu.Lock()
	r.st.AppendMessage(fmt.Sprintf("execution aborted: %v", runErr))
	r.mu.Unlock()
	if err := r.save(ctx); err != nil {
		r.logger.Warn("Failed to record run failure",
			"thread_id", r.threadID,
			"error", err)
	}
}
