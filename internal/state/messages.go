package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AddMessage appends a message to the user's history and returns it with its
// assigned ID and timestamp.
func (s *Store) AddMessage(ctx context.Context, m ChatMessage) (ChatMessage, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	var citations any
	if len(m.Citations) > 0 {
		data, err := json.Marshal(m.Citations)
		if err != nil {
			return ChatMessage{}, fmt.Errorf("marshal citations: %w", err)
		}
		citations = string(data)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, user_id, persona, role, content, intent, citations_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Persona, m.Role, m.Content, nullIfEmpty(m.Intent), citations,
		m.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

// History returns the last limit messages the user exchanged with persona,
// oldest first. An empty persona returns messages across all personas.
func (s *Store) History(ctx context.Context, userID, persona string, limit int) ([]ChatMessage, error) {
	query := `SELECT id, user_id, persona, role, content, intent, citations_json, created_at
		FROM chat_messages WHERE user_id = ?`
	args := []any{userID}
	if persona != "" {
		query += ` AND persona = ?`
		args = append(args, persona)
	}
	query += ` ORDER BY rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var intent, citations sql.NullString
		var createdStr string
		if err := rows.Scan(&m.ID, &m.UserID, &m.Persona, &m.Role, &m.Content, &intent, &citations, &createdStr); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Intent = intent.String
		if citations.Valid && citations.String != "" {
			if err := json.Unmarshal([]byte(citations.String), &m.Citations); err != nil {
				return nil, fmt.Errorf("unmarshal citations: %w", err)
			}
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
