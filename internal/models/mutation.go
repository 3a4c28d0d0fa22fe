package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Op identifies the kind of a Mutation.
type Op string

const (
	// OpAdd inserts a new credential.
	OpAdd Op = "Add"
	// OpModify overwrites the value of an existing credential.
	OpModify Op = "Modify"
	// OpDelete removes a credential by id.
	OpDelete Op = "Delete"
)

// Mutation is a single credential operation. Values are built with Add, Modify
// and Delete; a Delete never carries a value.
type Mutation struct {
	op         Op
	credential Credential
}

// Add returns a mutation inserting c.
func Add(c Credential) Mutation { return Mutation{op: OpAdd, credential: c} }

// Modify returns a mutation overwriting the value of the credential with c.ID.
func Modify(c Credential) Mutation { return Mutation{op: OpModify, credential: c} }

// Delete returns a mutation removing the credential with the given id.
func Delete(id string) Mutation { return Mutation{op: OpDelete, credential: Credential{ID: id}} }

// Op reports the mutation kind.
func (m Mutation) Op() Op { return m.op }

// ID returns the id of the credential the mutation targets.
func (m Mutation) ID() string { return m.credential.ID }

// Credential returns the carried credential. For a Delete only ID is set.
func (m Mutation) Credential() Credential { return m.credential }

// WithID returns a copy of m targeting id instead.
func (m Mutation) WithID(id string) Mutation {
	m.credential.ID = id
	return m
}

func (m Mutation) String() string {
	return fmt.Sprintf("%s(%s)", m.op, m.credential.ID)
}

type credentialBody struct {
	Credential *Credential `json:"credential,omitempty"`
	ID         *string     `json:"id,omitempty"`
}

// MarshalJSON encodes the mutation externally tagged by its kind:
// {"Add":{"credential":{...}}}, {"Modify":{"credential":{...}}}, {"Delete":{"id":"..."}}.
func (m Mutation) MarshalJSON() ([]byte, error) {
	var body credentialBody
	switch m.op {
	case OpAdd, OpModify:
		c := m.credential
		body.Credential = &c
	case OpDelete:
		id := m.credential.ID
		body.ID = &id
	default:
		return nil, fmt.Errorf("marshal mutation: unknown op %q", m.op)
	}
	return json.Marshal(map[Op]credentialBody{m.op: body})
}

// UnmarshalJSON decodes an externally tagged mutation. A Delete may carry
// either an id or a full credential; the value is discarded.
func (m *Mutation) UnmarshalJSON(data []byte) error {
	var tagged map[Op]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("unmarshal mutation: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("unmarshal mutation: want exactly one tag, got %d", len(tagged))
	}

	for op, raw := range tagged {
		var body credentialBody
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			return fmt.Errorf("unmarshal %s: %w", op, err)
		}

		switch op {
		case OpAdd, OpModify:
			if body.Credential == nil {
				return fmt.Errorf("unmarshal %s: missing credential", op)
			}
			*m = Mutation{op: op, credential: *body.Credential}
		case OpDelete:
			switch {
			case body.ID != nil:
				*m = Delete(*body.ID)
			case body.Credential != nil:
				*m = Delete(body.Credential.ID)
			default:
				return fmt.Errorf("unmarshal Delete: missing id")
			}
		default:
			return fmt.Errorf("unmarshal mutation: unknown op %q", op)
		}
	}
	return nil
}
