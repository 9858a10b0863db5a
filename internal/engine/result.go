package engine

import dagerrors "github.com/stevehiehn/deployseq/internal/errors"

// Result is the structured output of a plan execution.
type Result struct {
	RunID      string               `json:"run_id"`
	Mode       string               `json:"mode"`
	Success    bool                 `json:"success"`
	FailedStep string               `json:"failed_step,omitempty"`
	Steps      []StepResult         `json:"steps"`
	Addresses  map[string]string    `json:"addresses,omitempty"`
	Artifacts  []string             `json:"artifacts,omitempty"`
	Errors     []dagerrors.RunError `json:"errors,omitempty"`
}

// StepResult describes the outcome of a single step.
type StepResult struct {
	Name        string   `json:"name"`
	Contract    string   `json:"contract"`
	Status      string   `json:"status"` // confirmed, predicted, failed, skipped, explain
	Address     string   `json:"address,omitempty"`
	TxHash      string   `json:"tx_hash,omitempty"`
	BlockNumber uint64   `json:"block_number,omitempty"`
	Args        []string `json:"args,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Description string   `json:"description,omitempty"`
}

const (
	StatusConfirmed = "confirmed"
	StatusPredicted = "predicted"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	StatusExplain   = "explain"
)
