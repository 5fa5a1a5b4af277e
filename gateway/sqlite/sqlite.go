// Package sqlite provides a durable gateway.Gateway backed by an embedded
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agencykit/agencykit/gateway"
	_ "modernc.org/sqlite"
)

// Gateway persists agency and seat lifecycle records in SQLite.
type Gateway struct {
	db *sql.DB
}

// New opens (creating if necessary) the database at path and applies the
// schema.
func New(path string) (*Gateway, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// WAL mode allows concurrent seat updates during a run; the busy
	// timeout makes writers retry instead of returning SQLITE_BUSY.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	g := &Gateway{db: db}
	if err := g.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return g, nil
}

// Close releases the underlying database handle.
func (g *Gateway) Close() error {
	return g.db.Close()
}

func (g *Gateway) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agency_executions (
			agency_id              TEXT PRIMARY KEY,
			goal                   TEXT NOT NULL,
			user_id                TEXT,
			conversation_id        TEXT,
			workflow_definition_id TEXT,
			status                 TEXT NOT NULL,
			result                 TEXT,
			failure_reason         TEXT,
			created_at             DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at             DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS agency_seats (
			agency_id       TEXT NOT NULL REFERENCES agency_executions(agency_id),
			role_id         TEXT NOT NULL,
			persona_id      TEXT NOT NULL,
			instruction     TEXT,
			status          TEXT NOT NULL,
			gmi_instance_id TEXT,
			attempt         INTEGER DEFAULT 0,
			error           TEXT,
			created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (agency_id, role_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_seats_agency ON agency_seats(agency_id, created_at)`,
	}
	for _, m := range migrations {
		if _, err := g.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// CreateAgencyExecution implements gateway.Gateway.
func (g *Gateway) CreateAgencyExecution(ctx context.Context, rec gateway.AgencyRecord) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO agency_executions (agency_id, goal, user_id, conversation_id, workflow_definition_id, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(agency_id) DO NOTHING`,
		rec.AgencyID, rec.Goal, rec.UserID, rec.ConversationID, rec.WorkflowDefinitionID, rec.Status)
	if err != nil {
		return fmt.Errorf("create agency execution: %w", err)
	}
	return nil
}

// UpdateAgencyExecution implements gateway.Gateway.
func (g *Gateway) UpdateAgencyExecution(ctx context.Context, agencyID string, update gateway.AgencyUpdate) error {
	var resultJSON *string
	if update.Result != nil {
		data, err := json.Marshal(update.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		s := string(data)
		resultJSON = &s
	}
	_, err := g.db.ExecContext(ctx, `
		UPDATE agency_executions
		SET status = ?, result = COALESCE(?, result), updated_at = CURRENT_TIMESTAMP
		WHERE agency_id = ?`,
		update.Status, resultJSON, agencyID)
	if err != nil {
		return fmt.Errorf("update agency execution: %w", err)
	}
	return nil
}

// MarkAgencyExecutionFailed implements gateway.Gateway.
func (g *Gateway) MarkAgencyExecutionFailed(ctx context.Context, agencyID, reason string) error {
	_, err := g.db.ExecContext(ctx, `
		UPDATE agency_executions
		SET status = ?, failure_reason = ?, updated_at = CURRENT_TIMESTAMP
		WHERE agency_id = ?`,
		gateway.AgencyStatusFailed, reason, agencyID)
	if err != nil {
		return fmt.Errorf("mark agency execution failed: %w", err)
	}
	return nil
}

// CreateAgencySeat implements gateway.Gateway.
func (g *Gateway) CreateAgencySeat(ctx context.Context, rec gateway.SeatRecord) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO agency_seats (agency_id, role_id, persona_id, instruction, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(agency_id, role_id) DO NOTHING`,
		rec.AgencyID, rec.RoleID, rec.PersonaID, rec.Instruction, string(rec.Status))
	if err != nil {
		return fmt.Errorf("create agency seat: %w", err)
	}
	return nil
}

// UpdateAgencySeat implements gateway.Gateway.
func (g *Gateway) UpdateAgencySeat(ctx context.Context, agencyID, roleID string, update gateway.SeatUpdate) error {
	_, err := g.db.ExecContext(ctx, `
		UPDATE agency_seats
		SET status = ?,
			gmi_instance_id = CASE WHEN ? != '' THEN ? ELSE gmi_instance_id END,
			attempt = CASE WHEN ? > 0 THEN ? ELSE attempt END,
			error = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE agency_id = ? AND role_id = ?`,
		string(update.Status),
		update.GMIInstanceID, update.GMIInstanceID,
		update.Attempt, update.Attempt,
		update.Error,
		agencyID, roleID)
	if err != nil {
		return fmt.Errorf("update agency seat: %w", err)
	}
	return nil
}
