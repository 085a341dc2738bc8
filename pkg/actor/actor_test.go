package actor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSpawnCleanExit(t *testing.T) {
	h := Spawn(context.Background(), testLogger(), "test", func(ctx context.Context) error {
		return nil
	})
	if err := h.Wait(); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}
}

func TestSpawnRecoversPanic(t *testing.T) {
	h := Spawn(context.Background(), testLogger(), "test", func(ctx context.Context) error {
		panic("boom")
	})
	err := h.Wait()
	if err == nil {
		t.Fatalf("expected panic to surface as an error")
	}
}

func TestSpawnPropagatesError(t *testing.T) {
	want := errors.New("failure")
	h := Spawn(context.Background(), testLogger(), "test", func(ctx context.Context) error {
		return want
	})
	if err := h.Wait(); !errors.Is(err, want) {
		t.Fatalf("Wait() = %v, want %v", err, want)
	}
}
