package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AgentStatus is the JSON document the running agent publishes for the
// status command. It is advisory output for humans and scripts; the agent
// never reads it back for decisions.
type AgentStatus struct {
	PID              int       `json:"pid"`
	Version          string    `json:"version"`
	StartedAt        time.Time `json:"started_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	IdleSeconds      int64     `json:"idle_seconds"`
	ThresholdSeconds int64     `json:"threshold_seconds"`
	HasBlockers      bool      `json:"has_blockers"`
	BlockerSummary   string    `json:"blocker_summary"`
	SnapshotAt       time.Time `json:"snapshot_at"`
}

// StatusFile reads and writes the published agent status. Writes go through
// a temp file and rename so a concurrent reader never sees a torn document.
type StatusFile struct {
	path string
}

// NewStatusFile creates a status file handle at the given path.
func NewStatusFile(path string) *StatusFile {
	return &StatusFile{path: path}
}

// Path returns the status file location.
func (f *StatusFile) Path() string {
	return f.path
}

// Write atomically replaces the published status.
func (f *StatusFile) Write(st AgentStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return err
	}

	// Temp file is unique per process to avoid clashes with a stale agent.
	tmpPath := fmt.Sprintf("%s.%d.tmp", f.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Read returns the published status, or nil when no agent has published yet.
func (f *StatusFile) Read() (*AgentStatus, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var st AgentStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Clear removes the status file on agent shutdown. A missing file is fine;
// an agent that crashed leaves a stale file behind, which the status command
// reports by its age.
func (f *StatusFile) Clear() error {
	err := os.Remove(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
