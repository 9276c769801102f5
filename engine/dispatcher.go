package engine

import (
	"context"
	"fmt"

	"github.com/c360studio/agentflow/workflow"
)

// Worker executes one task description against the results of the tasks
// it depends on and returns the output text. Implementations must treat
// the deps map as read-only.
type Worker interface {
	Execute(ctx context.Context, description string, deps map[int]string) (string, error)
}

// Dispatcher routes tasks to workers by task type. Research, analysis,
// and summary tasks go to the researcher; code and calculation tasks go
// to the code worker.
type Dispatcher struct {
	researcher Worker
	codeWorker Worker
}

// NewDispatcher builds a dispatcher over the two worker roles.
func NewDispatcher(researcher, codeWorker Worker) *Dispatcher {
	return &Dispatcher{
		researcher: researcher,
		codeWorker: codeWorker,
	}
}

// Execute runs one task on the worker its type routes to.
func (d *Dispatcher) Execute(ctx context.Context, task workflow.Task, deps map[int]string) (string, error) {
	worker, err := d.workerFor(task.Type)
	if err != nil {
		return "", err
	}
	return worker.Execute(ctx, task.Description, deps)
}

func (d *Dispatcher) workerFor(t workflow.TaskType) (Worker, error) {
	switch t {
	case workflow.TaskTypeResearch, workflow.TaskTypeAnalysis, workflow.TaskTypeSummary:
		return d.researcher, nil
	case workflow.TaskTypeCode, workflow.TaskTypeCalculation:
		return d.codeWorker, nil
	default:
		return nil, fmt.Errorf("no worker handles task type %q", t)
	}
}
