// roles/pkg/diff/diff.go

// Package diff computes the calls that move a roles modifier from one
// snapshot to another. Revocations and narrowings go to Minus, grants and
// widenings to Plus; Minus is always applied first.
package diff

import (
	"encoding/json"
)

type Diff struct {
	Minus []Call
	Plus  []Call
}

// Merge appends other's calls after d's, keeping the two buckets apart.
func (d Diff) Merge(other Diff) Diff {
	out := Diff{}
	if n := len(d.Minus) + len(other.Minus); n > 0 {
		out.Minus = make([]Call, 0, n)
		out.Minus = append(append(out.Minus, d.Minus...), other.Minus...)
	}
	if n := len(d.Plus) + len(other.Plus); n > 0 {
		out.Plus = make([]Call, 0, n)
		out.Plus = append(append(out.Plus, d.Plus...), other.Plus...)
	}
	return out
}

// Calls returns the minus calls followed by the plus calls.
func (d Diff) Calls() []Call {
	out := make([]Call, 0, len(d.Minus)+len(d.Plus))
	out = append(out, d.Minus...)
	return append(out, d.Plus...)
}

func (d Diff) IsEmpty() bool {
	return len(d.Minus) == 0 && len(d.Plus) == 0
}

func (d *Diff) minus(c Call) { d.Minus = append(d.Minus, c) }
func (d *Diff) plus(c Call)  { d.Plus = append(d.Plus, c) }

type diffJSON struct {
	Minus []json.RawMessage `json:"minus"`
	Plus  []json.RawMessage `json:"plus"`
}

func marshalCalls(calls []Call) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(calls))
	for i, c := range calls {
		data, err := MarshalCall(c)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

func unmarshalCalls(raw []json.RawMessage) ([]Call, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]Call, len(raw))
	for i, data := range raw {
		c, err := UnmarshalCall(data)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func (d Diff) MarshalJSON() ([]byte, error) {
	minus, err := marshalCalls(d.Minus)
	if err != nil {
		return nil, err
	}
	plus, err := marshalCalls(d.Plus)
	if err != nil {
		return nil, err
	}
	return json.Marshal(diffJSON{Minus: minus, Plus: plus})
}

func (d *Diff) UnmarshalJSON(data []byte) error {
	var raw diffJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	minus, err := unmarshalCalls(raw.Minus)
	if err != nil {
		return err
	}
	plus, err := unmarshalCalls(raw.Plus)
	if err != nil {
		return err
	}
	d.Minus, d.Plus = minus, plus
	return nil
}
