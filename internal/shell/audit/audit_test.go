package audit

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flotilla-orch/flotilla/internal/core/description"
)

// =============================================================================
// Multi Sink
// =============================================================================

type recordingAuditor struct {
	events []Event
	err    error
	closed bool
}

func (r *recordingAuditor) Record(_ context.Context, event Event) error {
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingAuditor) Close() error {
	r.closed = true
	return nil
}

func TestMulti_FansOutToEverySink(t *testing.T) {
	a, b := &recordingAuditor{}, &recordingAuditor{}
	multi := NewMulti([]Auditor{a, b})

	err := multi.Record(context.Background(), Event{RunID: "r1", Action: "start"})
	require.NoError(t, err)
	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)

	require.NoError(t, multi.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestMulti_SinkFailureDoesNotStopOthers(t *testing.T) {
	failing := &recordingAuditor{err: errors.New("disk full")}
	healthy := &recordingAuditor{}
	multi := NewMulti([]Auditor{failing, healthy})

	err := multi.Record(context.Background(), Event{RunID: "r1"})
	assert.EqualError(t, err, "disk full")
	assert.Len(t, healthy.events, 1)
}

// =============================================================================
// Factory
// =============================================================================

func TestNewAuditors_UnknownTypeFails(t *testing.T) {
	_, err := NewAuditors([]description.AuditConfig{{Type: "syslog"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syslog")
}

func TestNewAuditors_BuildsConfiguredSinks(t *testing.T) {
	auditors, err := NewAuditors([]description.AuditConfig{
		{Type: "log"},
		{Type: "sqlite", Path: filepath.Join(t.TempDir(), "audit.db")},
	})
	require.NoError(t, err)
	require.Len(t, auditors, 2)
	for _, a := range auditors {
		require.NoError(t, a.Close())
	}
}

// =============================================================================
// SQLite Sink
// =============================================================================

func TestSQLiteAuditor_RoundTrip(t *testing.T) {
	auditor, err := NewSQLiteAuditor(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer auditor.Close()

	ctx := context.Background()
	first := Event{
		RunID:   NewRunID(),
		Time:    time.Now(),
		Who:     "op@host",
		Action:  "start",
		Targets: []string{"db1", "web1"},
		Status:  StatusStarted,
	}
	require.NoError(t, auditor.Record(ctx, first))
	require.NoError(t, auditor.Record(ctx, Event{
		RunID:   first.RunID,
		Time:    time.Now(),
		Who:     "op@host",
		Action:  "start",
		Targets: []string{"db1", "web1"},
		Status:  StatusError,
		Message: "failed: db1",
	}))

	events, err := auditor.Events(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first.
	assert.Equal(t, StatusError, events[0].Status)
	assert.Equal(t, "failed: db1", events[0].Message)
	assert.Equal(t, StatusStarted, events[1].Status)
	assert.Equal(t, []string{"db1", "web1"}, events[1].Targets)
	assert.Equal(t, first.RunID, events[1].RunID)
}

func TestSQLiteAuditor_ReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	ctx := context.Background()

	auditor, err := NewSQLiteAuditor(path)
	require.NoError(t, err)
	require.NoError(t, auditor.Record(ctx, Event{RunID: "r1", Time: time.Now(), Status: StatusSuccess}))
	require.NoError(t, auditor.Close())

	reopened, err := NewSQLiteAuditor(path)
	require.NoError(t, err)
	defer reopened.Close()

	events, err := reopened.Events(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "r1", events[0].RunID)
}

// =============================================================================
// Identity
// =============================================================================

func TestWho_HasUserAndHost(t *testing.T) {
	who := Who()
	parts := strings.SplitN(who, "@", 2)
	require.Len(t, parts, 2)
	assert.NotEmpty(t, parts[0])
	assert.NotEmpty(t, parts[1])
}

func TestNewRunID_Unique(t *testing.T) {
	assert.NotEqual(t, NewRunID(), NewRunID())
}
