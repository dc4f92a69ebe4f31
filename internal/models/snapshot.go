package models

import "encoding/json"

// SnapshotVersion is written into every export.
const SnapshotVersion = "1.0.0"

// Snapshot is the full exported state of a session.
type Snapshot struct {
	Categories []Category     `json:"categories"`
	History    []DrawResult   `json:"history"`
	Settings   GlobalSettings `json:"settings"`
	ExportedAt int64          `json:"exportedAt"`
	Version    string         `json:"version"`
}

// SnapshotImport is the decoded form of an import payload. Each top-level
// field is optional; a nil field leaves the matching state untouched.
type SnapshotImport struct {
	Categories *[]Category     `json:"categories,omitempty"`
	History    *[]DrawResult   `json:"history,omitempty"`
	Settings   json.RawMessage `json:"settings,omitempty"`
	Version    string          `json:"version,omitempty"`
}

// PersistedState is the blob kept by the storage layer for one session.
type PersistedState struct {
	Categories        *[]Category     `json:"categories,omitempty"`
	History           *[]DrawResult   `json:"history,omitempty"`
	Settings          json.RawMessage `json:"settings,omitempty"`
	CurrentCategoryID string          `json:"currentCategoryId,omitempty"`
}
