package storage

import (
	"encoding/json"
	"fmt"

	"github.com/c360studio/agentflow/workflow"
)

// encodeState serializes a workflow state for KV storage.
func encodeState(st *workflow.State) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return data, nil
}

// decodeState deserializes a stored state document. Documents that
// cannot be decoded are reported as ErrCorruptState so callers can
// tell a bad document apart from a transport failure.
func decodeState(data []byte) (*workflow.State, error) {
	var st workflow.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if st.TaskResults == nil {
		st.TaskResults = make(map[int]string)
	}
	return &st, nil
}
