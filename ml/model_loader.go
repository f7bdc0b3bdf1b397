package ml

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SavedModel wraps an estimator so it can be persisted and decoded without
// knowing its concrete type.
type SavedModel struct {
	Estimator Estimator
}

type savedModelEnvelope struct {
	Kind   string          `json:"kind"`
	Params Params          `json:"params"`
	State  json.RawMessage `json:"state"`
}

func (m SavedModel) MarshalJSON() ([]byte, error) {
	if m.Estimator == nil {
		return nil, errors.New("saved model has no estimator")
	}
	state, err := json.Marshal(m.Estimator)
	if err != nil {
		return nil, err
	}
	return json.Marshal(savedModelEnvelope{
		Kind:   m.Estimator.Kind(),
		Params: m.Estimator.Params(),
		State:  state,
	})
}

func (m *SavedModel) UnmarshalJSON(data []byte) error {
	var envelope savedModelEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	estimator, err := NewEstimator(envelope.Kind)
	if err != nil {
		return err
	}
	if len(envelope.Params) > 0 {
		if err := estimator.SetParams(envelope.Params); err != nil {
			return fmt.Errorf("restore %s params: %w", envelope.Kind, err)
		}
	}
	if len(envelope.State) > 0 {
		if err := json.Unmarshal(envelope.State, estimator); err != nil {
			return fmt.Errorf("restore %s state: %w", envelope.Kind, err)
		}
	}
	m.Estimator = estimator
	return nil
}
