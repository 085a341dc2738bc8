package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/playferrous/playferrous/internal/connection"
	"github.com/playferrous/playferrous/internal/txn"
	"github.com/playferrous/playferrous/pkg/ids"
)

// ListMessages satisfies connection.Store.ListMessages: every unread
// message addressed to userID, newest first, matching
// original_source/server/src/database/message.rs:155-170's
// list_for_user query.
func (s *Store) ListMessages(ctx context.Context, userID ids.UserID) ([]connection.MessageSummary, error) {
	query := fmt.Sprintf(
		`SELECT id, from_id, subject, body, request_id, sent_at FROM messages
		 WHERE to_id = %s AND NOT read ORDER BY sent_at DESC`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var out []connection.MessageSummary
	for rows.Next() {
		var id int64
		var fromID, requestID sql.NullInt64
		var subject, body string
		var sentAt time.Time
		if err := rows.Scan(&id, &fromID, &subject, &body, &requestID, &sentAt); err != nil {
			return nil, fmt.Errorf("store: list messages: scan: %w", err)
		}
		out = append(out, connection.MessageSummary{
			ID:        ids.MessageID(id),
			From:      nullUserID(fromID),
			Subject:   subject,
			Body:      body,
			RequestID: nullRequestID(requestID),
			SentAt:    sentAt,
		})
	}
	return out, rows.Err()
}

// NotifyParticipant satisfies gamesession.Store.NotifyParticipant: it
// records a message addressed to userID, inside tx. fromID and requestID
// are nil for system-generated notifications (spec.md §3's Message entity
// makes both optional; original_source/server/src/database/message.rs:23-30's
// send_to_user takes the same optional from_id/request_id pair).
func (s *Store) NotifyParticipant(ctx context.Context, tx *txn.Tx, userID ids.UserID, fromID *ids.UserID, subject, body string, requestID *ids.RequestID) error {
	insert := fmt.Sprintf(
		`INSERT INTO messages (to_id, from_id, subject, body, request_id) VALUES (%s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5))
	if _, err := tx.Exec(ctx, insert, int64(userID), userIDParam(fromID), subject, body, requestIDParam(requestID)); err != nil {
		return fmt.Errorf("store: notify participant: %w", err)
	}
	return nil
}

func nullUserID(n sql.NullInt64) *ids.UserID {
	if !n.Valid {
		return nil
	}
	u := ids.UserID(n.Int64)
	return &u
}

func nullRequestID(n sql.NullInt64) *ids.RequestID {
	if !n.Valid {
		return nil
	}
	r := ids.RequestID(n.Int64)
	return &r
}

func userIDParam(id *ids.UserID) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}

func requestIDParam(id *ids.RequestID) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}
