// Package directory implements the user directory (spec.md §6's
// "presentation authenticates by handing the core an opaque session
// ticket"): password-based login backed by internal/store, and JWT
// tickets the presentation layer exchanges for a verified user id without
// ever seeing a password hash itself.
//
// Grounded on the teacher's internal/user/user.go (argon2 password
// hashing: salt generation, argon2.IDKey parameters, constant-time
// compare) and internal/auth/service.go (JWT claim shape and HS256
// signing), both stripped of the gRPC/protobuf request types neither this
// package nor spec.md needs.
package directory

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/argon2"

	"github.com/playferrous/playferrous/internal/store"
	"github.com/playferrous/playferrous/pkg/ids"
)

const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

// UserStore is the persistence surface a Directory needs, declared
// locally so this package depends on internal/store only through a
// narrow interface, matching the idiom already used for
// internal/connection.ProposalSessions and internal/gamesession.Launcher.
// Satisfied by *store.Store.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (ids.UserID, error)
	UserByUsername(ctx context.Context, username string) (store.User, bool, error)
}

// Directory authenticates presentation logins and issues/verifies session
// tickets.
type Directory struct {
	store     UserStore
	jwtSecret []byte
	ticketTTL time.Duration
	log       *slog.Logger
}

// New constructs a Directory. jwtSecret signs and verifies tickets;
// ticketTTL bounds how long a ticket remains valid after Authenticate
// issues it.
func New(store UserStore, jwtSecret []byte, ticketTTL time.Duration, log *slog.Logger) *Directory {
	return &Directory{store: store, jwtSecret: jwtSecret, ticketTTL: ticketTTL, log: log}
}

// Register creates a new account with a freshly hashed password.
func (d *Directory) Register(ctx context.Context, username, password string) (ids.UserID, error) {
	hashed, err := hashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("directory: hash password: %w", err)
	}
	id, err := d.store.CreateUser(ctx, username, hashed)
	if err != nil {
		return 0, fmt.Errorf("directory: register: %w", err)
	}
	return id, nil
}

// Authenticate verifies username/password and, on success, returns a
// signed ticket naming the resolved user id. Satisfies
// presentation.Directory.Authenticate.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (string, error) {
	u, found, err := d.store.UserByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("directory: authenticate: %w", err)
	}
	if !found || !verifyPassword(password, u.PasswordHash) {
		return "", fmt.Errorf("directory: invalid credentials")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": fmt.Sprint(u.ID),
		"iat":     now.Unix(),
		"exp":     now.Add(d.ticketTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(d.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("directory: sign ticket: %w", err)
	}
	return signed, nil
}

// VerifyTicket parses and validates a ticket issued by Authenticate,
// returning the user id it names. Satisfies
// presentation.Directory.VerifyTicket.
func (d *Directory) VerifyTicket(ticket string) (ids.UserID, error) {
	token, err := jwt.Parse(ticket, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return d.jwtSecret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("directory: parse ticket: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("directory: invalid ticket")
	}

	subject, ok := claims["user_id"].(string)
	if !ok {
		return 0, fmt.Errorf("directory: ticket missing user_id claim")
	}
	userID, err := ids.ParseUserID(subject)
	if err != nil {
		return 0, fmt.Errorf("directory: malformed user_id claim %q: %w", subject, err)
	}
	return userID, nil
}

func argon2IDKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

// hashPassword hashes password with Argon2id, encoding the salt and hash
// into a single "salt:hash" hex string (the teacher stores salt and hash
// in separate columns; internal/store's users table keeps one
// password_hash column, so the two are concatenated here instead).
func hashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2IDKey(password, salt)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(hash), nil
}

// verifyPassword checks password against a "salt:hash" string produced by
// hashPassword, comparing in constant time.
func verifyPassword(password, stored string) bool {
	saltHex, hashHex, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}
	got := argon2IDKey(password, salt)
	return subtle.ConstantTimeCompare(want, got) == 1
}
