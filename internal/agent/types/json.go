package types

import (
	"encoding/json"
	"time"
)

// Action and Outcome carry interface-typed fields (Params, ActionResult)
// that need the action kind to decode. Custom JSON keeps stored episodes
// loadable: Action decodes parameters by its Type; Outcome writes the result
// kind alongside the payload.

type actionJSON struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Type       ActionType      `json:"type"`
	Tool       string          `json:"tool"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	Reasoning  string          `json:"reasoning,omitempty"`
	Strategy   string          `json:"strategy,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var raw actionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.ID = raw.ID
	a.SessionID = raw.SessionID
	a.Type = raw.Type
	a.Tool = raw.Tool
	a.Reasoning = raw.Reasoning
	a.Strategy = raw.Strategy
	a.Timestamp = raw.Timestamp

	if len(raw.Parameters) > 0 {
		params, err := decodeParams(raw.Type, raw.Parameters)
		if err != nil {
			return err
		}
		a.Parameters = params
	}
	return nil
}

func decodeParams(kind ActionType, raw json.RawMessage) (Params, error) {
	switch kind {
	case ActionSearch:
		var p SearchParams
		return p, json.Unmarshal(raw, &p)
	case ActionFetch:
		var p FetchParams
		return p, json.Unmarshal(raw, &p)
	case ActionAnalyze, ActionExtract:
		var p AnalyzeParams
		return p, json.Unmarshal(raw, &p)
	case ActionVerify:
		var p VerifyParams
		return p, json.Unmarshal(raw, &p)
	case ActionSynthesize:
		var p SynthesizeParams
		return p, json.Unmarshal(raw, &p)
	}
	return nil, nil
}

type outcomeJSON struct {
	ActionID     string          `json:"action_id"`
	Success      bool            `json:"success"`
	ResultKind   ActionType      `json:"result_kind,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	Observations []string        `json:"observations,omitempty"`
	Duration     time.Duration   `json:"duration"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	raw := outcomeJSON{
		ActionID:     o.ActionID,
		Success:      o.Success,
		Error:        o.Error,
		Observations: o.Observations,
		Duration:     o.Duration,
		Metadata:     o.Metadata,
		Timestamp:    o.Timestamp,
	}
	if o.Result != nil {
		raw.ResultKind = o.Result.Kind()
		data, err := json.Marshal(o.Result)
		if err != nil {
			return nil, err
		}
		raw.Result = data
	}
	return json.Marshal(raw)
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var raw outcomeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.ActionID = raw.ActionID
	o.Success = raw.Success
	o.Error = raw.Error
	o.Observations = raw.Observations
	o.Duration = raw.Duration
	o.Metadata = raw.Metadata
	o.Timestamp = raw.Timestamp

	if len(raw.Result) > 0 && raw.ResultKind != "" {
		result, err := decodeResult(raw.ResultKind, raw.Result)
		if err != nil {
			return err
		}
		o.Result = result
	}
	return nil
}

func decodeResult(kind ActionType, raw json.RawMessage) (ActionResult, error) {
	switch kind {
	case ActionSearch:
		var r SearchResult
		return r, json.Unmarshal(raw, &r)
	case ActionFetch:
		var r FetchResult
		return r, json.Unmarshal(raw, &r)
	case ActionAnalyze, ActionExtract:
		var r AnalyzeResult
		return r, json.Unmarshal(raw, &r)
	case ActionVerify:
		var r VerifyResult
		return r, json.Unmarshal(raw, &r)
	case ActionSynthesize:
		var r SynthesizeResult
		return r, json.Unmarshal(raw, &r)
	}
	return nil, nil
}
