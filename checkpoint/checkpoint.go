// Package checkpoint persists batch progress so an interrupted run resumes
// where it stopped instead of re-auditing completed units. The file is plain
// JSON, written atomically (new file, then rename) so a crash mid-write
// never corrupts the previous good state.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State is the serialized checkpoint shape.
type State struct {
	FilterYear     int             `json:"filter_year"`
	CompaniesDone  map[string]bool `json:"companies_done"`
	ProcessosDone  map[string]bool `json:"processos_done"`
	ProcessosError map[string]string `json:"processos_error,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Checkpoint tracks completed companies and processos for one filter year.
// A checkpoint written for a different year is ignored on load; resuming
// across years would silently skip units.
type Checkpoint struct {
	mu    sync.Mutex
	path  string
	state State
}

// Load opens the checkpoint at path, starting fresh when the file does not
// exist or belongs to another filter year.
func Load(path string, filterYear int) (*Checkpoint, error) {
	cp := &Checkpoint{
		path: path,
		state: State{
			FilterYear:     filterYear,
			CompaniesDone:  make(map[string]bool),
			ProcessosDone:  make(map[string]bool),
			ProcessosError: make(map[string]string),
		},
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read %s: %w", path, err)
	}

	var loaded State
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("checkpoint: parse %s: %w", path, err)
	}
	if loaded.FilterYear != filterYear {
		return cp, nil
	}

	if loaded.CompaniesDone == nil {
		loaded.CompaniesDone = make(map[string]bool)
	}
	if loaded.ProcessosDone == nil {
		loaded.ProcessosDone = make(map[string]bool)
	}
	if loaded.ProcessosError == nil {
		loaded.ProcessosError = make(map[string]string)
	}
	cp.state = loaded
	return cp, nil
}

// CompanyDone reports whether every processo of a company has been audited.
func (cp *Checkpoint) CompanyDone(companyID string) bool {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.state.CompaniesDone[companyID]
}

// ProcessoDone reports whether a processo already has a stored result.
func (cp *Checkpoint) ProcessoDone(processo string) bool {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.state.ProcessosDone[processo]
}

// MarkCompany records a fully audited company and flushes.
func (cp *Checkpoint) MarkCompany(companyID string) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.state.CompaniesDone[companyID] = true
	return cp.flushLocked()
}

// MarkProcesso records a completed processo and flushes.
func (cp *Checkpoint) MarkProcesso(processo string) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.state.ProcessosDone[processo] = true
	delete(cp.state.ProcessosError, processo)
	return cp.flushLocked()
}

// MarkProcessoFailed records why a processo was skipped. Failed units are
// retried on resume; the reason is kept for the run summary.
func (cp *Checkpoint) MarkProcessoFailed(processo, reason string) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.state.ProcessosError[processo] = reason
	return cp.flushLocked()
}

// Counts returns completed and failed unit totals.
func (cp *Checkpoint) Counts() (done, failed int) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.state.ProcessosDone), len(cp.state.ProcessosError)
}

// Flush writes the current state to disk.
func (cp *Checkpoint) Flush() error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.flushLocked()
}

func (cp *Checkpoint) flushLocked() error {
	cp.state.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(cp.state, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cp.path), 0o755); err != nil {
		return fmt.Errorf("checkpoint: mkdir: %w", err)
	}

	tmp := cp.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write temp: %w", err)
	}
	if err := os.Rename(tmp, cp.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("checkpoint: replace: %w", err)
	}
	return nil
}
