package workflow

import "sort"

// NextTask returns the first pending task, in id order, whose dependencies
// have all completed. Returns nil when nothing is runnable: either every
// task is terminal or the remaining pending tasks sit behind a failure.
// A nil result with pending tasks left means the execution phase is done
// and the run should move on to report compilation.
func NextTask(p Plan) *Task {
	completed := make(map[int]bool, len(p))
	for i := range p {
		if p[i].Status == TaskStatusCompleted {
			completed[p[i].ID] = true
		}
	}

	for i := range p {
		t := &p[i]
		if t.Status != TaskStatusPending {
			continue
		}
		runnable := true
		for _, dep := range t.Dependencies {
			if !completed[dep] {
				runnable = false
				break
			}
		}
		if runnable {
			return t
		}
	}
	return nil
}

// TransitiveDependencies returns the ids of every task the given task
// depends on, directly or through intermediates, in ascending order.
func TransitiveDependencies(p Plan, id int) []int {
	seen := make(map[int]bool)
	stack := []int{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		t := p.TaskByID(cur)
		if t == nil {
			continue
		}
		for _, dep := range t.Dependencies {
			if !seen[dep] {
				seen[dep] = true
				stack = append(stack, dep)
			}
		}
	}

	ids := make([]int, 0, len(seen))
	for dep := range seen {
		ids = append(ids, dep)
	}
	sort.Ints(ids)
	return ids
}

// DependencyResults collects the recorded results of every completed task
// the given task depends on, transitively closed. Workers receive this as
// their execution context.
func DependencyResults(s *State, id int) map[int]string {
	results := make(map[int]string)
	for _, dep := range TransitiveDependencies(s.Plan, id) {
		if result, ok := s.TaskResults[dep]; ok {
			results[dep] = result
		}
	}
	return results
}
