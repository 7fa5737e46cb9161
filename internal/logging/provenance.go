package logging

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// #region log-decision
// LogDecision writes a routing entry to the routing_log table.
func LogDecision(ctx context.Context, db *sql.DB, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO routing_log (turn_id, user_id, version_id, action, message, intent, intent_confidence,
			candidate, candidate_score, explicit_persona, mode, target, suggested, reason,
			stage_after, persona_after, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.TurnID,
		entry.UserID,
		nullIfEmpty(entry.VersionID),
		entry.Action,
		nullIfEmpty(entry.Message),
		nullIfEmpty(entry.Intent),
		entry.IntentConfidence,
		nullIfEmpty(entry.Candidate),
		entry.CandidateScore,
		nullIfEmpty(entry.ExplicitPersona),
		entry.Mode,
		entry.Target,
		nullIfEmpty(entry.Suggested),
		nullIfEmpty(entry.Reason),
		entry.StageAfter,
		entry.PersonaAfter,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}
// #endregion log-decision

// #region list-entries
// ListEntries returns a user's routing log in turn order, limited to the most
// recent limit rows.
func ListEntries(ctx context.Context, db *sql.DB, userID string, limit int) ([]Entry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, turn_id, user_id, version_id, action, message, intent, intent_confidence,
			candidate, candidate_score, explicit_persona, mode, target, suggested, reason,
			stage_after, persona_after, created_at
		 FROM (SELECT * FROM routing_log WHERE user_id = ? ORDER BY id DESC LIMIT ?)
		 ORDER BY id ASC`, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var versionID, message, intent, candidate, explicit, suggested, reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &e.TurnID, &e.UserID, &versionID, &e.Action, &message, &intent,
			&e.IntentConfidence, &candidate, &e.CandidateScore, &explicit, &e.Mode, &e.Target,
			&suggested, &reason, &e.StageAfter, &e.PersonaAfter, &createdStr); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.VersionID = versionID.String
		e.Message = message.String
		e.Intent = intent.String
		e.Candidate = candidate.String
		e.ExplicitPersona = explicit.String
		e.Suggested = suggested.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}
// #endregion list-entries

// #region recorder
// Recorder binds LogDecision to a database for injection into the chat service.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates a Recorder writing to db.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record writes one entry.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	return LogDecision(ctx, r.db, entry)
}
// #endregion recorder

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
