package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutation_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		m    Mutation
		want string
	}{
		{"add", Add(Credential{ID: "r", Value: "v"}), `{"Add":{"credential":{"id":"r","value":"v"}}}`},
		{"modify", Modify(Credential{ID: "r", Value: "w"}), `{"Modify":{"credential":{"id":"r","value":"w"}}}`},
		{"delete", Delete("r"), `{"Delete":{"id":"r"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.m)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestMutation_MarshalJSON_ZeroValue(t *testing.T) {
	_, err := json.Marshal(Mutation{})
	assert.Error(t, err)
}

func TestMutation_UnmarshalJSON_DeleteWithCredential(t *testing.T) {
	var m Mutation
	require.NoError(t, json.Unmarshal([]byte(`{"Delete":{"credential":{"id":"x","value":"ignored"}}}`), &m))

	assert.Equal(t, OpDelete, m.Op())
	assert.Equal(t, "x", m.ID())
	assert.Empty(t, m.Credential().Value)
}

func TestMutation_UnmarshalJSON_Rejects(t *testing.T) {
	cases := map[string]string{
		"not an object":      `"Add"`,
		"no tag":             `{}`,
		"two tags":           `{"Add":{"credential":{"id":"a","value":""}},"Delete":{"id":"a"}}`,
		"unknown tag":        `{"Rename":{"id":"a"}}`,
		"add without body":   `{"Add":{}}`,
		"delete without id":  `{"Delete":{}}`,
		"unknown body field": `{"Modify":{"credential":{"id":"a","value":"b"},"extra":1}}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			var m Mutation
			assert.Error(t, json.Unmarshal([]byte(in), &m))
		})
	}
}

func TestMutation_WithID(t *testing.T) {
	orig := Add(Credential{ID: "old", Value: "v"})
	moved := orig.WithID("new")

	assert.Equal(t, "old", orig.ID())
	assert.Equal(t, "new", moved.ID())
	assert.Equal(t, "v", moved.Credential().Value)
	assert.Equal(t, OpAdd, moved.Op())
}

func TestSyncRequest_Decode(t *testing.T) {
	body := `{"state_id":"S0","mutations":[{"Add":{"credential":{"id":"r","value":"v"}}},{"Delete":{"id":"q"}}]}`

	var req SyncRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, "S0", req.StateID)
	assert.Equal(t, []Mutation{Add(Credential{ID: "r", Value: "v"}), Delete("q")}, req.Mutations)
}

func TestSyncResponse_Encode(t *testing.T) {
	resp := SyncResponse{
		Status:    StatusSuccess,
		StateID:   "S1",
		Store:     []Credential{},
		IDChanges: []IDChange{{Old: "a", New: "b"}},
	}
	got, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"status":"success","state_id":"S1","mutations":null,"store":[],"id_changes":[["a","b"]]}`,
		string(got))
}

func TestIDChange_UnmarshalJSON(t *testing.T) {
	var c IDChange
	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &c))
	assert.Equal(t, IDChange{Old: "a", New: "b"}, c)

	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &c))
}
