// Package audit records who ran which orchestration play against which
// containers, and how it ended. Sinks are fan-out: every configured sink
// sees every event. This is part of the Imperative Shell.
package audit

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/google/uuid"

	"github.com/flotilla-orch/flotilla/internal/core/description"
)

// Event statuses.
const (
	StatusStarted = "started"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Event is one audit trail entry. A play emits a "started" event before
// touching any container and a terminal event when it finishes.
type Event struct {
	RunID   string    `json:"run_id" db:"run_id"`
	Time    time.Time `json:"time" db:"time"`
	Who     string    `json:"who" db:"who"`
	Action  string    `json:"action" db:"action"`
	Targets []string  `json:"targets" db:"-"`
	Status  string    `json:"status" db:"status"`
	Message string    `json:"message,omitempty" db:"message"`
}

// Auditor is one audit sink.
type Auditor interface {
	Record(ctx context.Context, event Event) error
	Close() error
}

// NewRunID returns a fresh identifier tying a play's events together.
func NewRunID() string {
	return uuid.New().String()
}

// Who identifies the operator as user@host for audit events.
func Who() string {
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return username + "@" + hostname
}

// =============================================================================
// Factory
// =============================================================================

// NewAuditors builds the configured sinks. An unknown sink type is a
// configuration error.
func NewAuditors(configs []description.AuditConfig) ([]Auditor, error) {
	auditors := make([]Auditor, 0, len(configs))
	for _, cfg := range configs {
		var (
			auditor Auditor
			err     error
		)
		switch cfg.Type {
		case "log":
			auditor = NewLogAuditor()
		case "sqlite":
			auditor, err = NewSQLiteAuditor(cfg.Path)
		default:
			err = fmt.Errorf("unknown audit sink type %q", cfg.Type)
		}
		if err != nil {
			for _, a := range auditors {
				a.Close()
			}
			return nil, err
		}
		auditors = append(auditors, auditor)
	}
	return auditors, nil
}

// =============================================================================
// Multi Sink
// =============================================================================

// Multi fans each event out to every sink. Sink failures are collected
// but never abort the play.
type Multi struct {
	auditors []Auditor
}

// NewMulti wraps a set of sinks as one.
func NewMulti(auditors []Auditor) *Multi {
	return &Multi{auditors: auditors}
}

// Record sends the event to every sink and returns the first failure.
func (m *Multi) Record(ctx context.Context, event Event) error {
	var firstErr error
	for _, a := range m.auditors {
		if err := a.Record(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every sink.
func (m *Multi) Close() error {
	var firstErr error
	for _, a := range m.auditors {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
