package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store manages the on-disk record of a run.
type Store struct {
	RunID   string
	BaseDir string // <workDir>/.deployseq/runs/<run_id>
}

// New creates a store for a given run ID, rooted at workDir.
func New(runID, workDir string) (*Store, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is empty")
	}
	base := filepath.Join(workDir, ".deployseq", "runs", runID)
	if err := os.MkdirAll(filepath.Join(base, "steps"), 0o755); err != nil {
		return nil, fmt.Errorf("creating run record dir: %w", err)
	}
	return &Store{RunID: runID, BaseDir: base}, nil
}

// WriteStep records one confirmed step as steps/<name>.json.
func (s *Store) WriteStep(name string, v any) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid step name %q for run record", name)
	}
	return writeJSON(filepath.Join(s.BaseDir, "steps", name+".json"), v)
}

// WriteResult writes the final result JSON.
func (s *Store) WriteResult(result any) error {
	return writeJSON(filepath.Join(s.BaseDir, "result.json"), result)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
