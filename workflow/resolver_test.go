package workflow

import (
	"reflect"
	"testing"
)

func TestNextTask_LinearChain(t *testing.T) {
	p := Plan{
		{ID: 1, Type: TaskTypeResearch, Description: "a", Status: TaskStatusPending},
		{ID: 2, Type: TaskTypeAnalysis, Description: "b", Dependencies: []int{1}, Status: TaskStatusPending},
		{ID: 3, Type: TaskTypeSummary, Description: "c", Dependencies: []int{2}, Status: TaskStatusPending},
	}

	if got := NextTask(p); got == nil || got.ID != 1 {
		t.Fatalf("NextTask = %+v, want task 1", got)
	}

	p[0].Status = TaskStatusCompleted
	if got := NextTask(p); got == nil || got.ID != 2 {
		t.Fatalf("NextTask after 1 completes = %+v, want task 2", got)
	}

	p[1].Status = TaskStatusInProgress
	if got := NextTask(p); got != nil {
		t.Fatalf("NextTask with task 2 in progress = %+v, want nil", got)
	}
}

func TestNextTask_PicksLowestReadyID(t *testing.T) {
	p := Plan{
		{ID: 1, Type: TaskTypeResearch, Description: "a", Status: TaskStatusCompleted},
		{ID: 2, Type: TaskTypeCode, Description: "b", Dependencies: []int{1}, Status: TaskStatusPending},
		{ID: 3, Type: TaskTypeCode, Description: "c", Dependencies: []int{1}, Status: TaskStatusPending},
	}

	if got := NextTask(p); got == nil || got.ID != 2 {
		t.Fatalf("NextTask = %+v, want lowest ready id 2", got)
	}
}

func TestNextTask_FailedDependencyBlocksDescendants(t *testing.T) {
	p := Plan{
		{ID: 1, Type: TaskTypeResearch, Description: "a", Status: TaskStatusFailed, Result: "worker error"},
		{ID: 2, Type: TaskTypeAnalysis, Description: "b", Dependencies: []int{1}, Status: TaskStatusPending},
		{ID: 3, Type: TaskTypeSummary, Description: "c", Dependencies: []int{2}, Status: TaskStatusPending},
	}

	// Nothing is runnable: task 2 waits on a failure, task 3 on task 2.
	// The runner reads this as "execution phase done" and compiles.
	if got := NextTask(p); got != nil {
		t.Fatalf("NextTask = %+v, want nil", got)
	}
}

func TestNextTask_FailureElsewhereDoesNotBlockIndependentWork(t *testing.T) {
	p := Plan{
		{ID: 1, Type: TaskTypeResearch, Description: "a", Status: TaskStatusFailed, Result: "worker error"},
		{ID: 2, Type: TaskTypeResearch, Description: "b", Status: TaskStatusPending},
	}

	if got := NextTask(p); got == nil || got.ID != 2 {
		t.Fatalf("NextTask = %+v, want independent task 2", got)
	}
}

func TestNextTask_AllTerminal(t *testing.T) {
	p := Plan{
		{ID: 1, Type: TaskTypeResearch, Description: "a", Status: TaskStatusCompleted},
		{ID: 2, Type: TaskTypeCode, Description: "b", Dependencies: []int{1}, Status: TaskStatusFailed},
	}

	if got := NextTask(p); got != nil {
		t.Fatalf("NextTask = %+v, want nil", got)
	}
}

func TestTransitiveDependencies(t *testing.T) {
	p := Plan{
		{ID: 1, Type: TaskTypeResearch, Description: "a"},
		{ID: 2, Type: TaskTypeResearch, Description: "b"},
		{ID: 3, Type: TaskTypeAnalysis, Description: "c", Dependencies: []int{1, 2}},
		{ID: 4, Type: TaskTypeSummary, Description: "d", Dependencies: []int{3}},
	}

	tests := []struct {
		id   int
		want []int
	}{
		{1, []int{}},
		{3, []int{1, 2}},
		{4, []int{1, 2, 3}},
	}

	for _, tt := range tests {
		got := TransitiveDependencies(p, tt.id)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("TransitiveDependencies(%d) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestTransitiveDependencies_SharedDependencyOnce(t *testing.T) {
	p := Plan{
		{ID: 1, Type: TaskTypeResearch, Description: "a"},
		{ID: 2, Type: TaskTypeAnalysis, Description: "b", Dependencies: []int{1}},
		{ID: 3, Type: TaskTypeAnalysis, Description: "c", Dependencies: []int{1}},
		{ID: 4, Type: TaskTypeSummary, Description: "d", Dependencies: []int{2, 3}},
	}

	got := TransitiveDependencies(p, 4)
	want := []int{1, 2, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TransitiveDependencies(4) = %v, want %v", got, want)
	}
}

func TestDependencyResults_OnlyCompleted(t *testing.T) {
	s := NewState("req")
	s.Plan = Plan{
		{ID: 1, Type: TaskTypeResearch, Description: "a", Status: TaskStatusCompleted, Result: "r1"},
		{ID: 2, Type: TaskTypeResearch, Description: "b", Status: TaskStatusFailed, Result: "boom"},
		{ID: 3, Type: TaskTypeAnalysis, Description: "c", Dependencies: []int{1, 2}, Status: TaskStatusPending},
	}
	s.TaskResults = map[int]string{1: "r1"}

	got := DependencyResults(s, 3)
	want := map[int]string{1: "r1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DependencyResults(3) = %v, want %v", got, want)
	}
}

func TestDependencyResults_TransitiveClosure(t *testing.T) {
	s := NewState("req")
	s.Plan = Plan{
		{ID: 1, Type: TaskTypeResearch, Description: "a", Status: TaskStatusCompleted, Result: "r1"},
		{ID: 2, Type: TaskTypeAnalysis, Description: "b", Dependencies: []int{1}, Status: TaskStatusCompleted, Result: "r2"},
		{ID: 3, Type: TaskTypeSummary, Description: "c", Dependencies: []int{2}, Status: TaskStatusPending},
	}
	s.TaskResults = map[int]string{1: "r1", 2: "r2"}

	got := DependencyResults(s, 3)
	want := map[int]string{1: "r1", 2: "r2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DependencyResults(3) = %v, want %v (direct and transitive results)", got, want)
	}
}
