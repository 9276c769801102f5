// Package engine orchestrates workflow threads end to end: it plans a
// request into a typed task DAG, holds the plan at a human approval
// gate, executes approved tasks serially in dependency order, and
// compiles a final report. Every transition persists before the next
// begins, so a thread can be picked back up in a fresh process from
// nothing but its durable state.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/c360studio/agentflow/workflow"
)

// maxRequestChars bounds the trimmed user request accepted by Start.
const maxRequestChars = 5000

// Resume directives. Anything else is treated as a cancellation.
const (
	// DirectiveApproved releases the pending plan for execution.
	DirectiveApproved = "approved"

	// DirectiveRejected sends the plan back for regeneration; the
	// accompanying feedback steers the replan.
	DirectiveRejected = "rejected"
)

// StateStore persists workflow state between transitions. Get reports a
// missing thread with storage.ErrNotFound so callers can tell absence
// from store failure.
type StateStore interface {
	Save(ctx context.Context, threadID string, st *workflow.State) error
	Get(ctx context.Context, threadID string) (*workflow.State, error)
}

// Planner turns a request into a typed task plan. Implementations never
// fail: degraded results come back as a usable plan plus warnings.
type Planner interface {
	Generate(ctx context.Context, request string) (workflow.Plan, []string)
	Regenerate(ctx context.Context, request string, prev workflow.Plan, feedback string) (workflow.Plan, []string)
}

// Engine is the orchestration facade. It owns a registry of live
// runners, one per active thread in this process; everything a runner
// knows is also in the store, so the registry is a cache, not a source
// of truth.
type Engine struct {
	store      StateStore
	planner    Planner
	dispatcher *Dispatcher
	events     *Publisher
	logger     *slog.Logger

	mu      sync.Mutex
	runners map[string]*runner
	wg      sync.WaitGroup
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine and its runners.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithPublisher wires lifecycle event publishing. Without it the engine
// emits nothing, which is how tests run it.
func WithPublisher(p *Publisher) Option {
	return func(e *Engine) {
		e.events = p
	}
}

// New assembles an engine over its collaborators.
func New(store StateStore, planner Planner, dispatcher *Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		planner:    planner,
		dispatcher: dispatcher,
		logger:     slog.Default(),
		runners:    make(map[string]*runner),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start creates a workflow thread for the request, plans it, and leaves
// it awaiting approval. Planning runs synchronously: a nil error means a
// plan is durable and the returned thread id is ready for Resume and
// Status.
func (e *Engine) Start(ctx context.Context, userRequest string) (string, error) {
	request := strings.TrimSpace(userRequest)
	if request == "" {
		return "", ErrEmptyRequest
	}
	if n := utf8.RuneCountInString(request); n > maxRequestChars {
		return "", fmt.Errorf("%w: %d characters (limit %d)", ErrRequestTooLong, n, maxRequestChars)
	}

	threadID := uuid.New().String()
	r := e.runnerFor(threadID, workflow.NewState(request))

	if err := r.save(ctx); err != nil {
		e.dropRunner(threadID)
		return "", fmt.Errorf("create workflow: %w", err)
	}
	e.events.Publish(ctx, &workflow.Event{
		Kind:      workflow.EventCreated,
		ThreadID:  threadID,
		RunStatus: workflow.RunStatusPlanning,
	})
	e.logger.Info("Workflow created", "thread_id", threadID)

	if err := r.plan(ctx); err != nil {
		return "", fmt.Errorf("plan workflow: %w", err)
	}
	return threadID, nil
}

// Resume applies a human directive to a thread awaiting approval. An
// approval kicks off execution in the background and returns
// immediately; a rejection replans synchronously so the caller sees the
// fresh plan pending on return. Any other directive cancels the thread.
func (e *Engine) Resume(ctx context.Context, threadID, directive, feedback string) error {
	feedback = strings.TrimSpace(feedback)
	if directive == DirectiveRejected && feedback == "" {
		return ErrFeedbackRequired
	}

	st, err := e.store.Get(ctx, threadID)
	if err != nil {
		return err
	}
	r := e.runnerFor(threadID, st)

	// Directives for one thread apply strictly in order: an approval
	// that lands during a replan waits and then acts on the new plan.
	r.opMu.Lock()
	defer r.opMu.Unlock()

	switch directive {
	case DirectiveApproved:
		if err := r.approve(ctx); err != nil {
			return err
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			defer e.dropRunner(threadID)
			runCtx := context.WithoutCancel(ctx)
			if err := r.run(runCtx); err != nil {
				e.logger.Error("Workflow run aborted",
					"thread_id", threadID,
					"error", err)
				r.recordFailure(runCtx, err)
			}
		}()
		return nil
	case DirectiveRejected:
		if err := r.reject(ctx, feedback); err != nil {
			return err
		}
		if err := r.plan(ctx); err != nil {
			return fmt.Errorf("replan workflow: %w", err)
		}
		return nil
	default:
		return r.cancel(ctx, directive)
	}
}

// Status reports the current view of a thread. The durable copy is read
// first so an unreadable store surfaces as an error rather than a stale
// answer; if a live runner has seen more planning than the store, its
// snapshot wins.
func (e *Engine) Status(ctx context.Context, threadID string) (*StatusView, error) {
	st, err := e.store.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	r, live := e.runners[threadID]
	e.mu.Unlock()
	if live {
		if snap := r.snapshot(); len(snap.Plan) >= len(st.Plan) {
			st = snap
		}
	}
	return newStatusView(threadID, st), nil
}

// Close waits for in-flight background executions to finish. Callers
// that need a bounded shutdown wrap it in their own timeout.
func (e *Engine) Close() {
	e.wg.Wait()
}

// runnerFor returns the live runner for the thread, creating one seeded
// with the given state when the registry has none. One runner exists per
// thread per process.
func (e *Engine) runnerFor(threadID string, st *workflow.State) *runner {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.runners[threadID]; ok {
		return r
	}
	r := &runner{
		threadID:   threadID,
		store:      e.store,
		planner:    e.planner,
		dispatcher: e.dispatcher,
		events:     e.events,
		logger:     e.logger,
		st:         st,
	}
	e.runners[threadID] = r
	return r
}

func (e *Engine) dropRunner(threadID string) {
	e.mu.Lock()
	delete(e.runners, threadID)
	e.mu.Unlock()
}

// StatusView is the full externally visible snapshot of one thread.
type StatusView struct {
	ThreadID       string                  `json:"thread_id"`
	Status         workflow.RunStatus      `json:"status"`
	Progress       workflow.Progress       `json:"progress"`
	Tasks          workflow.Plan           `json:"tasks"`
	CurrentTask    *workflow.Task          `json:"current_task,omitempty"`
	UserRequest    string                  `json:"user_request"`
	ApprovalStatus workflow.ApprovalStatus `json:"approval_status"`
	UserFeedback   string                  `json:"user_feedback,omitempty"`
	FinalReport    string                  `json:"final_report,omitempty"`
	Messages       []string                `json:"messages"`
	LastUpdated    time.Time               `json:"last_updated"`
}

func newStatusView(threadID string, st *workflow.State) *StatusView {
	view := &StatusView{
		ThreadID:       threadID,
		Status:         workflow.DeriveStatus(st),
		Progress:       workflow.ComputeProgress(st.Plan),
		Tasks:          st.Plan,
		UserRequest:    st.UserRequest,
		ApprovalStatus: st.ApprovalStatus,
		UserFeedback:   st.UserFeedback,
		FinalReport:    st.FinalReport,
		Messages:       st.Messages,
		LastUpdated:    st.UpdatedAt,
	}
	if current := workflow.CurrentTask(st); current != nil {
		task := current.Clone()
		view.CurrentTask = &task
	}
	return view
}
