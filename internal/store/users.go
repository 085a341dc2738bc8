package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/playferrous/playferrous/pkg/ids"
)

// User is a persisted account row, the minimum internal/directory needs
// to authenticate a presentation login.
type User struct {
	ID           ids.UserID
	Username     string
	PasswordHash string
}

// CreateUser records a new account with an already-hashed password.
// internal/directory owns the hashing scheme; this package only persists
// the result.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (ids.UserID, error) {
	insert := fmt.Sprintf(`INSERT INTO users (username, password_hash) VALUES (%s, %s)`, s.ph(1), s.ph(2))
	id, err := s.insertReturningID(ctx, s.pool(), insert, username, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("store: create user: %w", err)
	}
	return ids.UserID(id), nil
}

// UserByUsername resolves a login name to its stored account, or
// found=false if no such account exists.
func (s *Store) UserByUsername(ctx context.Context, username string) (User, bool, error) {
	query := fmt.Sprintf(`SELECT id, username, password_hash FROM users WHERE username = %s`, s.ph(1))

	var u User
	var id int64
	err := s.db.QueryRowContext(ctx, query, username).Scan(&id, &u.Username, &u.PasswordHash)
	if err == sql.ErrNoRows {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, fmt.Errorf("store: user by username: %w", err)
	}
	u.ID = ids.UserID(id)
	return u, true, nil
}
