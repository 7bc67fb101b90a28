package audit

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteAuditor persists audit events in a SQLite database.
type SQLiteAuditor struct {
	db *sqlx.DB
}

// NewSQLiteAuditor opens (or creates) the database at path and runs
// migrations.
func NewSQLiteAuditor(path string) (*SQLiteAuditor, error) {
	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open audit database %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit database %s: %w", path, err)
	}
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit database %s: %w", path, err)
	}
	return &SQLiteAuditor{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// eventRow represents an audit event row in the database.
type eventRow struct {
	RunID   string `db:"run_id"`
	Time    string `db:"time"`
	Who     string `db:"who"`
	Action  string `db:"action"`
	Targets string `db:"targets"`
	Status  string `db:"status"`
	Message string `db:"message"`
}

// Record inserts the event.
func (a *SQLiteAuditor) Record(ctx context.Context, event Event) error {
	row := eventRow{
		RunID:   event.RunID,
		Time:    event.Time.UTC().Format(time.RFC3339Nano),
		Who:     event.Who,
		Action:  event.Action,
		Targets: strings.Join(event.Targets, ","),
		Status:  event.Status,
		Message: event.Message,
	}
	_, err := a.db.NamedExecContext(ctx, `
		INSERT INTO audit_events (run_id, time, who, action, targets, status, message)
		VALUES (:run_id, :time, :who, :action, :targets, :status, :message)
	`, row)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Events returns the most recent events, newest first.
func (a *SQLiteAuditor) Events(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []eventRow
	err := a.db.SelectContext(ctx, &rows, `
		SELECT run_id, time, who, action, targets, status, message
		FROM audit_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("select audit events: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		t, _ := time.Parse(time.RFC3339Nano, row.Time)
		var targets []string
		if row.Targets != "" {
			targets = strings.Split(row.Targets, ",")
		}
		events = append(events, Event{
			RunID:   row.RunID,
			Time:    t,
			Who:     row.Who,
			Action:  row.Action,
			Targets: targets,
			Status:  row.Status,
			Message: row.Message,
		})
	}
	return events, nil
}

// Close closes the database connection.
func (a *SQLiteAuditor) Close() error {
	return a.db.Close()
}
