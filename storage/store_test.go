package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/c360studio/agentflow/workflow"
)

func TestStateCodec(t *testing.T) {
	t.Run("round trip preserves integer result keys", func(t *testing.T) {
		next := 2
		st := workflow.NewState("compare solar and wind costs")
		st.Plan = workflow.Plan{
			{ID: 1, Type: workflow.TaskTypeResearch, Description: "gather cost data", Dependencies: []int{}, Status: workflow.TaskStatusCompleted, Result: "data gathered"},
			{ID: 2, Type: workflow.TaskTypeAnalysis, Description: "compare figures", Dependencies: []int{1}, Status: workflow.TaskStatusInProgress},
		}
		st.TaskResults = map[int]string{1: "data gathered"}
		st.NextTaskID = &next
		st.Messages = []string{"plan generated with 2 tasks"}
		st.UpdatedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		data, err := encodeState(st)
		if err != nil {
			t.Fatalf("unexpected encode error: %v", err)
		}

		decoded, err := decodeState(data)
		if err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}

		if decoded.UserRequest != st.UserRequest {
			t.Errorf("user request = %q, want %q", decoded.UserRequest, st.UserRequest)
		}
		if got, want := decoded.TaskResults[1], "data gathered"; got != want {
			t.Errorf("result for task 1 = %q, want %q", got, want)
		}
		if decoded.NextTaskID == nil || *decoded.NextTaskID != 2 {
			t.Errorf("next task = %v, want 2", decoded.NextTaskID)
		}
		if len(decoded.Plan) != 2 {
			t.Fatalf("plan length = %d, want 2", len(decoded.Plan))
		}
		if decoded.Plan[1].Dependencies[0] != 1 {
			t.Errorf("dependency = %d, want 1", decoded.Plan[1].Dependencies[0])
		}
		if !decoded.UpdatedAt.Equal(st.UpdatedAt) {
			t.Errorf("updated at = %v, want %v", decoded.UpdatedAt, st.UpdatedAt)
		}
	})

	t.Run("undecodable document reports corrupt state", func(t *testing.T) {
		_, err := decodeState([]byte("not json at all"))
		if !errors.Is(err, ErrCorruptState) {
			t.Errorf("expected ErrCorruptState, got %v", err)
		}
	})

	t.Run("truncated document reports corrupt state", func(t *testing.T) {
		_, err := decodeState([]byte(`{"user_request": "half a doc`))
		if !errors.Is(err, ErrCorruptState) {
			t.Errorf("expected ErrCorruptState, got %v", err)
		}
	})

	t.Run("missing results map is allocated", func(t *testing.T) {
		decoded, err := decodeState([]byte(`{"user_request": "minimal"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if decoded.TaskResults == nil {
			t.Error("expected allocated results map")
		}
	})
}

func TestBucketName(t *testing.T) {
	if BucketWorkflows != "AGENTFLOW_WORKFLOWS" {
		t.Errorf("unexpected workflows bucket: %s", BucketWorkflows)
	}
}
