package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// #region upsert

// UpsertUser creates the user on first sight and refreshes email and name
// afterwards. Profile data, quiz results and intents are left untouched.
func (s *Store) UpsertUser(ctx context.Context, id, email, name string) (User, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			email = CASE WHEN excluded.email = '' THEN users.email ELSE excluded.email END,
			name = COALESCE(excluded.name, users.name),
			updated_at = excluded.updated_at`,
		id, email, nullIfEmpty(name), now, now,
	)
	if err != nil {
		return User{}, fmt.Errorf("upsert user %s: %w", id, err)
	}
	return s.GetUser(ctx, id)
}

// #endregion upsert

// #region get-user

// GetUser reads a user profile. ErrNotFound when the user was never seen.
func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	var name, profileJSON, selected, quizJSON sql.NullString
	var intentsJSON, createdStr, updatedStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, profile_json, selected_persona, quiz_json, intents_json, created_at, updated_at
		 FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &name, &profileJSON, &selected, &quizJSON, &intentsJSON, &createdStr, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("get user %s: %w", id, err)
	}

	u.Name = name.String
	u.SelectedPersona = selected.String
	if profileJSON.Valid && profileJSON.String != "" {
		if err := json.Unmarshal([]byte(profileJSON.String), &u.Profile); err != nil {
			return User{}, fmt.Errorf("unmarshal profile: %w", err)
		}
	}
	if quizJSON.Valid && quizJSON.String != "" {
		if err := json.Unmarshal([]byte(quizJSON.String), &u.QuizResults); err != nil {
			return User{}, fmt.Errorf("unmarshal quiz: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(intentsJSON), &u.IntentsSeen); err != nil {
		return User{}, fmt.Errorf("unmarshal intents: %w", err)
	}
	if u.IntentsSeen == nil {
		u.IntentsSeen = []string{}
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return u, nil
}

// #endregion get-user

// #region profile-updates

// AppendIntents adds newly observed intent categories to the user's profile,
// keeping first-seen order without duplicates.
func (s *Store) AppendIntents(ctx context.Context, id string, intents ...string) error {
	intents = lo.Compact(intents)
	if len(intents) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT intents_json FROM users WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read intents: %w", err)
	}
	var seen []string
	if err := json.Unmarshal([]byte(raw), &seen); err != nil {
		return fmt.Errorf("unmarshal intents: %w", err)
	}
	merged := lo.Uniq(append(seen, intents...))
	if len(merged) == len(seen) {
		return nil
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal intents: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE users SET intents_json = ?, updated_at = ? WHERE id = ?`,
		string(out), time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("update intents: %w", err)
	}
	return tx.Commit()
}

// SetSelectedPersona records the persona a user picked or was matched to by
// the quiz. It does not touch routing state.
func (s *Store) SetSelectedPersona(ctx context.Context, id, persona string) error {
	return s.updateUserColumn(ctx, id, "selected_persona", persona)
}

// SetQuizResults stores the raw quiz outcome on the profile.
func (s *Store) SetQuizResults(ctx context.Context, id string, results map[string]any) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	return s.updateUserColumn(ctx, id, "quiz_json", string(data))
}

// SetProfile replaces the free-form profile document.
func (s *Store) SetProfile(ctx context.Context, id string, profile map[string]any) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return s.updateUserColumn(ctx, id, "profile_json", string(data))
}

// column is always one of the constants above.
func (s *Store) updateUserColumn(ctx context.Context, id, column, value string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		value, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

// #endregion profile-updates
