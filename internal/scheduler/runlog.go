package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run record statuses.
const (
	StatusRan     = "ran"
	StatusMissed  = "missed"
	StatusSkipped = "skipped"
)

// RunRecord is one line of the JSONL run log.
type RunRecord struct {
	ID          string    `json:"id"`
	Occurrence  string    `json:"occurrence"`
	Status      string    `json:"status"`
	Team        string    `json:"team"`
	Meeting     string    `json:"meeting"`
	Day         string    `json:"day"`
	Start       string    `json:"start"`
	End         string    `json:"end"`
	ScheduledAt time.Time `json:"scheduled_at"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
	State       string    `json:"state,omitempty"`
	Outcomes    []string  `json:"outcomes,omitempty"`
	WaitSeconds float64   `json:"wait_seconds,omitempty"`
	Interrupted bool      `json:"interrupted,omitempty"`
	Error       string    `json:"error,omitempty"`
}

func newRunID() string {
	return uuid.NewString()
}

func AppendRunRecord(path string, rec RunRecord) error {
	p := strings.TrimSpace(path)
	if p == "" {
		return errors.New("path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return withFileLock(p+".lock", 5*time.Second, func() error {
		line, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = f.Write(append(line, '\n'))
		return err
	})
}

// ReadRunRecords loads every record in the run log, skipping blank lines.
func ReadRunRecords(path string) ([]RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []RunRecord
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec RunRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return out, fmt.Errorf("run log line %d: %w", i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func withFileLock(lockPath string, timeout time.Duration, fn func() error) error {
	start := time.Now()
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_ = f.Close()
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return err
		}
		if timeout > 0 && time.Since(start) > timeout {
			return fmt.Errorf("acquire lock timeout: %s", lockPath)
		}
		time.Sleep(20 * time.Millisecond)
	}
	defer os.Remove(lockPath)
	return fn()
}
