package domain

import (
	"encoding/json"
	"time"
)

// ObjectType describes one category of schema object handled by the
// scripting pipeline.
type ObjectType struct {
	Tag          string `json:"tag" yaml:"tag"`
	Name         string `json:"name" yaml:"name"`
	Query        string `json:"query" yaml:"query"`
	Column       string `json:"column,omitempty" yaml:"column,omitempty"`
	Filename     string `json:"filename" yaml:"filename"`
	DropTemplate string `json:"drop_template" yaml:"drop_template"`
}

type Connection struct {
	ID                     string `json:"id" yaml:"id"`
	Name                   string `json:"name" yaml:"name"`
	Driver                 string `json:"driver" yaml:"driver"`
	DSN                    string `json:"dsn" yaml:"dsn"`
	Encrypt                string `json:"encrypt,omitempty" yaml:"encrypt,omitempty"`
	TrustServerCertificate bool   `json:"trust_server_certificate,omitempty" yaml:"trust_server_certificate,omitempty"`
}

const (
	DriverSQLServer = "sqlserver"
	DriverSQLite    = "sqlite"
)

type RunKind string

const (
	RunKindGenerate RunKind = "generate"
	RunKindDrop     RunKind = "drop"
	RunKindRestore  RunKind = "restore"
)

type Run struct {
	ID          string          `json:"id"`
	Kind        RunKind         `json:"kind"`
	Hash        string          `json:"hash"`
	Source      string          `json:"source,omitempty"`
	Target      string          `json:"target,omitempty"`
	ObjectTypes string          `json:"object_types"`
	Status      RunStatus       `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Summary     json.RawMessage `json:"summary,omitempty"`
	Error       string          `json:"error,omitempty"`
}

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusAborted RunStatus = "aborted"
	RunStatusFailed  RunStatus = "failed"
)

type StageStatus string

const (
	StageCompleted StageStatus = "completed"
	StageAborted   StageStatus = "aborted"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// StageResult is the outcome of one object type within a run.
type StageResult struct {
	Tag             string      `json:"tag"`
	Name            string      `json:"name"`
	Status          StageStatus `json:"status"`
	Objects         int         `json:"objects"`
	Batches         int         `json:"batches,omitempty"`
	Failures        int         `json:"failures,omitempty"`
	Path            string      `json:"path,omitempty"`
	Error           string      `json:"error,omitempty"`
	DurationSeconds float64     `json:"duration_seconds"`
}

type Summary struct {
	RunID           string        `json:"run_id"`
	Kind            RunKind       `json:"kind"`
	Hash            string        `json:"hash"`
	Stages          []StageResult `json:"stages"`
	DurationSeconds float64       `json:"duration_seconds"`
}

// Count returns how many stages ended with the given status.
func (s *Summary) Count(status StageStatus) int {
	n := 0
	for _, st := range s.Stages {
		if st.Status == status {
			n++
		}
	}
	return n
}

// Status folds the stage outcomes into a run status. Any failure next to
// completed or aborted stages makes the run partial.
func (s *Summary) Status() RunStatus {
	failed := s.Count(StageFailed)
	aborted := s.Count(StageAborted)
	completed := s.Count(StageCompleted)
	switch {
	case failed > 0 && completed == 0 && aborted == 0:
		return RunStatusFailed
	case failed > 0:
		return RunStatusPartial
	case aborted > 0:
		return RunStatusAborted
	default:
		return RunStatusSuccess
	}
}
