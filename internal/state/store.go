package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS routing_versions (
	version_id      TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	parent_id       TEXT,
	current_persona TEXT NOT NULL,
	stage           TEXT NOT NULL,
	state_json      TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES routing_versions(version_id)
);

CREATE INDEX IF NOT EXISTS idx_routing_versions_user ON routing_versions(user_id);

CREATE TABLE IF NOT EXISTS active_routing (
	user_id    TEXT PRIMARY KEY,
	version_id TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES routing_versions(version_id)
);

CREATE TABLE IF NOT EXISTS users (
	id               TEXT PRIMARY KEY,
	email            TEXT NOT NULL DEFAULT '',
	name             TEXT,
	profile_json     TEXT,
	selected_persona TEXT,
	quiz_json        TEXT,
	intents_json     TEXT NOT NULL DEFAULT '[]',
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	persona        TEXT NOT NULL,
	role           TEXT NOT NULL,
	content        TEXT NOT NULL,
	intent         TEXT,
	citations_json TEXT,
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_user ON chat_messages(user_id, persona);

CREATE TABLE IF NOT EXISTS routing_log (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	turn_id           TEXT NOT NULL,
	user_id           TEXT NOT NULL,
	version_id        TEXT,
	action            TEXT NOT NULL,
	message           TEXT,
	intent            TEXT,
	intent_confidence REAL NOT NULL DEFAULT 0,
	candidate         TEXT,
	candidate_score   REAL NOT NULL DEFAULT 0,
	explicit_persona  TEXT,
	mode              TEXT NOT NULL,
	target            TEXT NOT NULL,
	suggested         TEXT,
	reason            TEXT,
	stage_after       TEXT NOT NULL,
	persona_after     TEXT NOT NULL,
	created_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_routing_log_user ON routing_log(user_id);
`

// #endregion schema

// #region store-struct

// Store persists routing state, user profiles, and chat history in SQLite.
// Routing state is append-only: every Put adds a version and moves the user's
// active pointer.
type Store struct {
	db    *sql.DB
	locks *KeyedMutex
}

// #endregion store-struct

// #region constructor

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("pragma busy: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, locks: NewKeyedMutex()}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region lock

// Lock serializes a user's read-modify-write cycle within this process.
// Callers hold it across Get, their own work, and Put.
func (s *Store) Lock(userID string) func() {
	return s.locks.Lock(userID)
}

// Update runs fn on the user's current state under the user's lock and
// persists the result. initial builds the first-contact state.
func (s *Store) Update(ctx context.Context, userID string, initial func() RoutingState, fn func(RoutingState) (RoutingState, error)) (RoutingState, error) {
	unlock := s.Lock(userID)
	defer unlock()

	cur, err := s.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		cur = initial()
	} else if err != nil {
		return RoutingState{}, err
	}
	next, err := fn(cur)
	if err != nil {
		return RoutingState{}, err
	}
	if _, err := s.Put(ctx, userID, next); err != nil {
		return RoutingState{}, err
	}
	return next, nil
}

// #endregion lock

// #region get

// Get reads the user's active routing state. ErrNotFound on first contact.
func (s *Store) Get(ctx context.Context, userID string) (RoutingState, error) {
	v, err := s.current(ctx, userID)
	if err != nil {
		return RoutingState{}, err
	}
	return v.State, nil
}

func (s *Store) current(ctx context.Context, userID string) (RoutingVersion, error) {
	var versionID string
	err := s.db.QueryRowContext(ctx,
		`SELECT version_id FROM active_routing WHERE user_id = ?`, userID,
	).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return RoutingVersion{}, ErrNotFound
	}
	if err != nil {
		return RoutingVersion{}, fmt.Errorf("get active %s: %w", userID, err)
	}
	return s.GetVersion(ctx, versionID)
}

// GetVersion retrieves a specific routing version by ID.
func (s *Store) GetVersion(ctx context.Context, id string) (RoutingVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT version_id, parent_id, state_json, created_at
		 FROM routing_versions WHERE version_id = ?`, id,
	)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RoutingVersion{}, fmt.Errorf("get version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RoutingVersion{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return v, nil
}

// #endregion get

// #region put

// Put appends st as the user's newest version and makes it active.
func (s *Store) Put(ctx context.Context, userID string, st RoutingState) (string, error) {
	st.UserID = userID
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("marshal routing state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parent sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT version_id FROM active_routing WHERE user_id = ?`, userID,
	).Scan(&parent)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("read parent: %w", err)
	}

	id := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO routing_versions (version_id, user_id, parent_id, current_persona, stage, state_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, userID, nullString(parent), st.CurrentPersona, string(st.Stage), string(stateJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO active_routing (user_id, version_id) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET version_id = excluded.version_id`,
		userID, id,
	)
	if err != nil {
		return "", fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// #endregion put

// #region rollback

// Rollback points the user's active state at an earlier version of theirs.
func (s *Store) Rollback(ctx context.Context, userID, targetVersionID string) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM routing_versions WHERE version_id = ? AND user_id = ?`,
		targetVersionID, userID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s for %s: %w", targetVersionID, userID, ErrNotFound)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE active_routing SET version_id = ? WHERE user_id = ?`, targetVersionID, userID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions

// ListVersions returns the user's most recent routing versions, newest first.
func (s *Store) ListVersions(ctx context.Context, userID string, limit int) ([]RoutingVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version_id, parent_id, state_json, created_at
		 FROM routing_versions WHERE user_id = ? ORDER BY rowid DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []RoutingVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// #endregion list-versions

// #region helpers

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(row scanner) (RoutingVersion, error) {
	var v RoutingVersion
	var parentID sql.NullString
	var stateJSON, createdStr string
	if err := row.Scan(&v.VersionID, &parentID, &stateJSON, &createdStr); err != nil {
		return RoutingVersion{}, err
	}
	if parentID.Valid {
		v.ParentID = parentID.String
	}
	if err := json.Unmarshal([]byte(stateJSON), &v.State); err != nil {
		return RoutingVersion{}, fmt.Errorf("unmarshal routing state: %w", err)
	}
	if v.State.DeclineCooldowns == nil {
		v.State.DeclineCooldowns = map[string]time.Time{}
	}
	if v.State.WinHistory == nil {
		v.State.WinHistory = Window{}
	}
	v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return v, nil
}

func nullString(ns sql.NullString) any {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return ns.String
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
