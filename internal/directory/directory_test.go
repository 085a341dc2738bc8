package directory

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/playferrous/playferrous/internal/store"
	"github.com/playferrous/playferrous/pkg/ids"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUserStore struct {
	byUsername map[string]store.User
	nextID     int64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byUsername: make(map[string]store.User)}
}

func (f *fakeUserStore) CreateUser(ctx context.Context, username, passwordHash string) (ids.UserID, error) {
	f.nextID++
	u := store.User{ID: ids.UserID(f.nextID), Username: username, PasswordHash: passwordHash}
	f.byUsername[username] = u
	return u.ID, nil
}

func (f *fakeUserStore) UserByUsername(ctx context.Context, username string) (store.User, bool, error) {
	u, ok := f.byUsername[username]
	return u, ok, nil
}

func newTestDirectory() (*Directory, *fakeUserStore) {
	fs := newFakeUserStore()
	return New(fs, []byte("test-secret"), time.Hour, testLogger()), fs
}

func TestRegisterThenAuthenticate(t *testing.T) {
	d, _ := newTestDirectory()
	ctx := context.Background()

	if _, err := d.Register(ctx, "alice", "correct horse"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ticket, err := d.Authenticate(ctx, "alice", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ticket == "" {
		t.Fatal("expected a non-empty ticket")
	}

	userID, err := d.VerifyTicket(ticket)
	if err != nil {
		t.Fatalf("VerifyTicket: %v", err)
	}
	if userID != ids.UserID(1) {
		t.Fatalf("userID = %v, want 1", userID)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	d, _ := newTestDirectory()
	ctx := context.Background()

	if _, err := d.Register(ctx, "alice", "correct horse"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := d.Authenticate(ctx, "alice", "wrong password"); err == nil {
		t.Fatal("expected an error for the wrong password")
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	d, _ := newTestDirectory()

	if _, err := d.Authenticate(context.Background(), "ghost", "anything"); err == nil {
		t.Fatal("expected an error for an unknown user")
	}
}

func TestVerifyTicketRejectsForeignSigningKey(t *testing.T) {
	d, _ := newTestDirectory()
	ctx := context.Background()

	if _, err := d.Register(ctx, "alice", "correct horse"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ticket, err := d.Authenticate(ctx, "alice", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	other := New(newFakeUserStore(), []byte("a different secret"), time.Hour, testLogger())
	if _, err := other.VerifyTicket(ticket); err == nil {
		t.Fatal("expected verification with a different secret to fail")
	}
}

func TestVerifyTicketRejectsExpired(t *testing.T) {
	d, _ := newTestDirectory()
	ctx := context.Background()

	if _, err := d.Register(ctx, "alice", "correct horse"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	expired := New(d.store, d.jwtSecret, -time.Minute, testLogger())
	ticket, err := expired.Authenticate(ctx, "alice", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := expired.VerifyTicket(ticket); err == nil {
		t.Fatal("expected verification of an already-expired ticket to fail")
	}
}
