// Copyright 2026 The bluestreak-go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlitestore is a SQLite-backed Store for single-process/embedded
// deployments. SQLite has no findAndModify equivalent, so ClaimDue runs a
// SELECT followed by an UPDATE inside one transaction on a single-connection
// pool, so no other claimer in the process can interleave between the two;
// the document-store backends get the same guarantee from a single
// conditional update call.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ferromir/bluestreak-go/internal/store"
)

// Compile-time interface assertion.
var _ store.Store = (*Store)(nil)

// Store is a SQLite-backed store.Store implementation.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and runs
// migrations. SQLite serializes writes, so the pool is capped to a single
// connection — the same discipline any single-writer embedded database
// needs to avoid SQLITE_BUSY thrash under concurrent callers.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: ping: %w", err)
	}

	s := &Store{db: db}

	if err := s.configurePragmas(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) configurePragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("sqlitestore: pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			workflow_id TEXT PRIMARY KEY,
			handler_id TEXT NOT NULL,
			input TEXT,
			failures INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			timeout_at INTEGER NOT NULL,
			result TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_status_timeout ON workflows(status, timeout_at)`,
		`CREATE TABLE IF NOT EXISTS steps (
			workflow_id TEXT NOT NULL,
			step_id TEXT NOT NULL,
			output TEXT,
			PRIMARY KEY (workflow_id, step_id)
		)`,
		`CREATE TABLE IF NOT EXISTS naps (
			workflow_id TEXT NOT NULL,
			nap_id TEXT NOT NULL,
			wake_up_at INTEGER NOT NULL,
			PRIMARY KEY (workflow_id, nap_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlitestore: migrate: %w", err)
		}
	}
	return nil
}

// EnsureIndexes is a no-op beyond Open's migrate step: the indexes the
// schema requires are created as part of schema creation, matching the
// unique/compound index set from the base document-store schema.
func (s *Store) EnsureIndexes(ctx context.Context) error { return nil }

func encode(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decode(raw string, out *any) error {
	if raw == "" {
		*out = nil
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}

func (s *Store) InsertInstance(ctx context.Context, workflowID, handlerID string, input any, now time.Time) error {
	encoded, err := encode(input)
	if err != nil {
		return store.IOError("insertInstance", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflows (workflow_id, handler_id, input, failures, status, timeout_at)
		 VALUES (?, ?, ?, 0, ?, ?)`,
		workflowID, handlerID, encoded, string(store.StatusIdle), now.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return store.AlreadyExists("insertInstance", err)
		}
		return store.IOError("insertInstance", err)
	}
	return nil
}

func (s *Store) ClaimDue(ctx context.Context, now, newTimeoutAt time.Time) (string, error) {
	// Default isolation: SQLite is serializable already, and the pool is
	// capped to one connection, so the SELECT and UPDATE cannot interleave
	// with another claimer.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", store.IOError("claimDue", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT workflow_id FROM workflows
		 WHERE status IN (?, ?, ?) AND timeout_at < ?
		 LIMIT 1`,
		string(store.StatusIdle), string(store.StatusRunning), string(store.StatusFailed), now.UnixMilli())

	var workflowID string
	if err := row.Scan(&workflowID); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", store.IOError("claimDue", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE workflows SET status = ?, timeout_at = ? WHERE workflow_id = ?`,
		string(store.StatusRunning), newTimeoutAt.UnixMilli(), workflowID)
	if err != nil {
		return "", store.IOError("claimDue", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Claimed by a concurrent transaction between the SELECT and the
		// UPDATE; treat as "nothing to claim this round" rather than error.
		return "", nil
	}

	if err := tx.Commit(); err != nil {
		return "", store.IOError("claimDue", err)
	}
	return workflowID, nil
}

func (s *Store) FindRunData(ctx context.Context, workflowID string) (store.RunData, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT handler_id, input, failures FROM workflows WHERE workflow_id = ?`, workflowID)

	var handlerID, rawInput string
	var failures int
	if err := row.Scan(&handlerID, &rawInput, &failures); err != nil {
		if err == sql.ErrNoRows {
			return store.RunData{}, store.NotFound("findRunData")
		}
		return store.RunData{}, store.IOError("findRunData", err)
	}

	var input any
	if err := decode(rawInput, &input); err != nil {
		return store.RunData{}, store.IOError("findRunData", err)
	}

	return store.RunData{HandlerID: handlerID, Input: input, Failures: failures}, nil
}

func (s *Store) FindStatusAndResult(ctx context.Context, workflowID string) (store.StatusResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT status, result FROM workflows WHERE workflow_id = ?`, workflowID)

	var status string
	var rawResult sql.NullString
	if err := row.Scan(&status, &rawResult); err != nil {
		if err == sql.ErrNoRows {
			return store.StatusResult{}, store.NotFound("findStatusAndResult")
		}
		return store.StatusResult{}, store.IOError("findStatusAndResult", err)
	}

	var result any
	if err := decode(rawResult.String, &result); err != nil {
		return store.StatusResult{}, store.IOError("findStatusAndResult", err)
	}

	return store.StatusResult{Status: store.Status(status), Result: result}, nil
}

func (s *Store) MarkFinished(ctx context.Context, workflowID string, result any) error {
	encoded, err := encode(result)
	if err != nil {
		return store.IOError("markFinished", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE workflows SET status = ?, result = ? WHERE workflow_id = ?`,
		string(store.StatusFinished), encoded, workflowID)
	if err != nil {
		return store.IOError("markFinished", err)
	}
	return checkAffected(res, "markFinished")
}

func (s *Store) MarkFailure(ctx context.Context, workflowID string, newStatus store.Status, newTimeoutAt time.Time, newFailures int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE workflows SET status = ?, timeout_at = ?, failures = ? WHERE workflow_id = ?`,
		string(newStatus), newTimeoutAt.UnixMilli(), newFailures, workflowID)
	if err != nil {
		return store.IOError("markFailure", err)
	}
	return checkAffected(res, "markFailure")
}

func (s *Store) ExtendLease(ctx context.Context, workflowID string, newTimeoutAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE workflows SET timeout_at = ? WHERE workflow_id = ?`,
		newTimeoutAt.UnixMilli(), workflowID)
	if err != nil {
		return store.IOError("extendLease", err)
	}
	return checkAffected(res, "extendLease")
}

func (s *Store) FindStepOutput(ctx context.Context, workflowID, stepID string) (any, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT output FROM steps WHERE workflow_id = ? AND step_id = ?`, workflowID, stepID)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, store.IOError("findStepOutput", err)
	}

	var output any
	if err := decode(raw, &output); err != nil {
		return nil, false, store.IOError("findStepOutput", err)
	}
	return output, true, nil
}

func (s *Store) PutStepOutput(ctx context.Context, workflowID, stepID string, output any) error {
	encoded, err := encode(output)
	if err != nil {
		return store.IOError("putStepOutput", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO steps (workflow_id, step_id, output) VALUES (?, ?, ?)
		 ON CONFLICT (workflow_id, step_id) DO NOTHING`,
		workflowID, stepID, encoded)
	if err != nil {
		return store.IOError("putStepOutput", err)
	}
	return nil
}

func (s *Store) FindNapWake(ctx context.Context, workflowID, napID string) (time.Time, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT wake_up_at FROM naps WHERE workflow_id = ? AND nap_id = ?`, workflowID, napID)

	var ms int64
	if err := row.Scan(&ms); err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, store.IOError("findNapWake", err)
	}
	return time.UnixMilli(ms), true, nil
}

func (s *Store) PutNapWake(ctx context.Context, workflowID, napID string, wakeUpAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO naps (workflow_id, nap_id, wake_up_at) VALUES (?, ?, ?)
		 ON CONFLICT (workflow_id, nap_id) DO NOTHING`,
		workflowID, napID, wakeUpAt.UnixMilli())
	if err != nil {
		return store.IOError("putNapWake", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

func checkAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return store.IOError(op, err)
	}
	if n == 0 {
		return store.NotFound(op)
	}
	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE/PRIMARY KEY
// constraint failure. modernc.org/sqlite surfaces these as a plain error
// whose message contains "UNIQUE constraint failed"; there is no typed
// error for this in the driver, so a substring check is the same thing the
// driver's own callers do.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
