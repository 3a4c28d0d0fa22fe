package models

// Response statuses shared by the JSON endpoints.
const (
	StatusSuccess       = "success"
	StatusFailed        = "failed"
	StatusExisting      = "existing"
	StatusUninitialized = "uninitialized"
)

// SyncRequest is one client sync round.
type SyncRequest struct {
	// StateID is the last state id the client received, or anything unknown for a fresh client.
	StateID string `json:"state_id"`
	// Mutations are the client's pending local edits, oldest first.
	Mutations []Mutation `json:"mutations"`
}

// SyncResponse answers a sync round. At most one of Mutations and Store is set;
// unset fields encode as null so an empty snapshot stays distinguishable.
type SyncResponse struct {
	Status    string       `json:"status"`
	StateID   string       `json:"state_id,omitempty"`
	Mutations []Mutation   `json:"mutations"`
	Store     []Credential `json:"store"`
	IDChanges []IDChange   `json:"id_changes"`
}

// InitUploadResponse answers an initial upload.
type InitUploadResponse struct {
	Status  string `json:"status"`
	StateID string `json:"state_id,omitempty"`
}

// UserSecrets holds the client-side key derivation salt and verification hash.
type UserSecrets struct {
	Salt string `json:"salt"`
	Hash string `json:"hash"`
}

// UserImportResponse answers a request for the stored salt and hash.
type UserImportResponse struct {
	Status string  `json:"status"`
	Salt   *string `json:"salt"`
	Hash   *string `json:"hash"`
}
