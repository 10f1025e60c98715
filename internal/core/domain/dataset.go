package domain

import "time"

type DatasetStatus string

const (
	DatasetUploaded   DatasetStatus = "uploaded"
	DatasetProcessing DatasetStatus = "processing"
	DatasetReady      DatasetStatus = "ready"
	DatasetFailed     DatasetStatus = "failed"
)

// Dataset is one uploaded GWP export with its mapping state.
type Dataset struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Filename    string        `json:"filename"`
	StoragePath string        `json:"storage_path"`
	Status      DatasetStatus `json:"status"`
	Error       string        `json:"error,omitempty"`

	TotalRows  int     `json:"total_rows"`
	MappedRows int     `json:"mapped_rows"`
	TotalGWP   float64 `json:"total_gwp"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScenarioSnapshot is the per-scenario roll-up stored by the worker once a
// dataset has been aggregated. It is a cached view, never authoritative:
// the tree is always recomputable from the rows.
type ScenarioSnapshot struct {
	Scenario Scenario `json:"scenario"`
	Summary  Summary  `json:"summary"`
}
