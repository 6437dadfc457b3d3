// ABOUTME: SQLite implementation of the Directory interface using modernc.org/sqlite
// ABOUTME: Provides agent availability and member case persistence with automatic schema creation

package directory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteDirectory implements the Directory interface using SQLite
type SQLiteDirectory struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteDirectory creates a new SQLite directory at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteDirectory(path string) (*SQLiteDirectory, error) {
	logger := slog.Default().With("component", "directory")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	d := &SQLiteDirectory{
		db:     db,
		logger: logger,
	}

	if err := d.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite directory initialized", "path", path)
	return d, nil
}

// createSchema creates the database tables if they don't exist
func (d *SQLiteDirectory) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS agents (
			identity   TEXT PRIMARY KEY,
			online     INTEGER NOT NULL DEFAULT 0,
			available  INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL,

			CHECK (available = 0 OR online = 1)
		);

		CREATE INDEX IF NOT EXISTS idx_agents_availability
			ON agents(online, available);

		CREATE TABLE IF NOT EXISTS member_cases (
			member_no         INTEGER PRIMARY KEY,
			status            TEXT NOT NULL,
			assigned_operator TEXT NOT NULL,
			last_updated_at   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS case_events (
			event_id  TEXT PRIMARY KEY,
			member_no INTEGER NOT NULL,
			status    TEXT NOT NULL,
			operator  TEXT NOT NULL,
			ts        TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_case_events_member
			ON case_events(member_no, ts);
	`

	_, err := d.db.Exec(schema)
	return err
}

// Close closes the database connection
func (d *SQLiteDirectory) Close() error {
	d.logger.Info("closing SQLite directory")
	return d.db.Close()
}

// ReserveAvailableAgent atomically selects one online+available agent and
// marks it unavailable in a single conditional update. SQLite serializes
// writers, so two concurrent reservations can never pick the same agent.
// Which agent is picked when several are available is non-deterministic.
func (d *SQLiteDirectory) ReserveAvailableAgent(ctx context.Context) (string, error) {
	query := `
		UPDATE agents
		SET available = 0, updated_at = ?
		WHERE identity = (
			SELECT identity FROM agents
			WHERE online = 1 AND available = 1
			LIMIT 1
		)
		RETURNING identity
	`

	var identity string
	err := d.db.QueryRowContext(ctx, query, time.Now().UTC().Format(time.RFC3339)).Scan(&identity)
	if err == sql.ErrNoRows {
		return "", ErrNoAgentAvailable
	}
	if err != nil {
		return "", fmt.Errorf("reserving agent: %w", err)
	}

	d.logger.Debug("reserved agent", "agent", identity)
	return identity, nil
}

// RegisterAgent marks an agent online and available, inserting the record if needed.
func (d *SQLiteDirectory) RegisterAgent(ctx context.Context, agentID string) error {
	query := `
		INSERT INTO agents (identity, online, available, updated_at)
		VALUES (?, 1, 1, ?)
		ON CONFLICT(identity) DO UPDATE SET
			online = 1,
			available = 1,
			updated_at = excluded.updated_at
	`

	_, err := d.db.ExecContext(ctx, query, agentID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("registering agent: %w", err)
	}

	d.logger.Debug("agent registered", "agent", agentID)
	return nil
}

// SetOnlineAvailable sets both flags for an existing agent. Updating an
// identity with no record affects zero rows, which is fine: members have
// no directory record and disconnect cleanup runs for them too.
func (d *SQLiteDirectory) SetOnlineAvailable(ctx context.Context, agentID string, online, available bool) error {
	query := `
		UPDATE agents
		SET online = ?, available = ?, updated_at = ?
		WHERE identity = ?
	`

	_, err := d.db.ExecContext(ctx, query,
		boolToInt(online),
		boolToInt(available),
		time.Now().UTC().Format(time.RFC3339),
		agentID,
	)
	if err != nil {
		return fmt.Errorf("updating agent flags: %w", err)
	}

	d.logger.Debug("agent flags updated", "agent", agentID, "online", online, "available", available)
	return nil
}

// SetAvailable updates the available flag for an existing agent. Setting
// available=true only applies while the agent is still online; reverting a
// reservation for an agent that has meanwhile disconnected is a no-op.
func (d *SQLiteDirectory) SetAvailable(ctx context.Context, agentID string, available bool) error {
	query := `
		UPDATE agents
		SET available = ?, updated_at = ?
		WHERE identity = ? AND (? = 0 OR online = 1)
	`

	avail := boolToInt(available)
	_, err := d.db.ExecContext(ctx, query,
		avail,
		time.Now().UTC().Format(time.RFC3339),
		agentID,
		avail,
	)
	if err != nil {
		return fmt.Errorf("updating agent availability: %w", err)
	}

	d.logger.Debug("agent availability updated", "agent", agentID, "available", available)
	return nil
}

// GetAgent retrieves the record for one agent identity.
// Returns ErrNotFound if the agent has never been seen.
func (d *SQLiteDirectory) GetAgent(ctx context.Context, agentID string) (*AgentRecord, error) {
	query := `
		SELECT identity, online, available, updated_at
		FROM agents
		WHERE identity = ?
	`

	var rec AgentRecord
	var online, available int
	var updatedAtStr string

	err := d.db.QueryRowContext(ctx, query, agentID).Scan(
		&rec.Identity,
		&online,
		&available,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying agent: %w", err)
	}

	rec.Online = online != 0
	rec.Available = available != 0

	rec.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &rec, nil
}

// UpdateCaseStatus writes the verification outcome for a member case and
// appends an audit event, in one transaction. Repeating the same update
// overwrites the case record without duplicating it.
func (d *SQLiteDirectory) UpdateCaseStatus(ctx context.Context, memberNo int64, status, operator string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	upsert := `
		INSERT INTO member_cases (member_no, status, assigned_operator, last_updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(member_no) DO UPDATE SET
			status = excluded.status,
			assigned_operator = excluded.assigned_operator,
			last_updated_at = excluded.last_updated_at
	`
	if _, err := tx.ExecContext(ctx, upsert, memberNo, status, operator, now); err != nil {
		return fmt.Errorf("upserting case: %w", err)
	}

	audit := `
		INSERT INTO case_events (event_id, member_no, status, operator, ts)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, audit, uuid.New().String(), memberNo, status, operator, now); err != nil {
		return fmt.Errorf("inserting case event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing case update: %w", err)
	}

	d.logger.Debug("case status updated", "member_no", memberNo, "status", status, "operator", operator)
	return nil
}

// GetCase retrieves the case record for a member number.
// Returns ErrNotFound if no status has ever been written.
func (d *SQLiteDirectory) GetCase(ctx context.Context, memberNo int64) (*CaseRecord, error) {
	query := `
		SELECT member_no, status, assigned_operator, last_updated_at
		FROM member_cases
		WHERE member_no = ?
	`

	var rec CaseRecord
	var updatedAtStr string

	err := d.db.QueryRowContext(ctx, query, memberNo).Scan(
		&rec.MemberNo,
		&rec.Status,
		&rec.AssignedOperator,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying case: %w", err)
	}

	rec.LastUpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing last_updated_at: %w", err)
	}

	return &rec, nil
}

// ListCaseEvents returns the audit trail for a member case, oldest first.
// If limit is 0 or negative, a default limit of 100 is used.
func (d *SQLiteDirectory) ListCaseEvents(ctx context.Context, memberNo int64, limit int) ([]*CaseEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT event_id, member_no, status, operator, ts
		FROM case_events
		WHERE member_no = ?
		ORDER BY ts ASC
		LIMIT ?
	`

	rows, err := d.db.QueryContext(ctx, query, memberNo, limit)
	if err != nil {
		return nil, fmt.Errorf("querying case events: %w", err)
	}
	defer rows.Close()

	var events []*CaseEvent
	for rows.Next() {
		var ev CaseEvent
		var tsStr string
		if err := rows.Scan(&ev.ID, &ev.MemberNo, &ev.Status, &ev.Operator, &tsStr); err != nil {
			return nil, fmt.Errorf("scanning case event: %w", err)
		}
		ev.At, err = time.Parse(time.RFC3339, tsStr)
		if err != nil {
			return nil, fmt.Errorf("parsing ts: %w", err)
		}
		events = append(events, &ev)
	}

	return events, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
