package assist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kokistudios/kiln/internal/store"
)

func storeAssist(provider string) store.AssistConfig {
	cfg := store.DefaultConfig().Assist
	cfg.Provider = provider
	return cfg
}

func fakeClaude(t *testing.T, script string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "claude")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestClaude_Generate(t *testing.T) {
	c := &Claude{Path: fakeClaude(t, `[ "$1" = "-p" ] || exit 2; echo "NAME: Porch"; echo "SPIRIT: $2"`)}
	got, err := c.Generate(context.Background(), "calm")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	room, err := ParseRoom(got)
	if err != nil || room.Name != "Porch" || room.Spirit != "calm" {
		t.Errorf("room = %+v, %v", room, err)
	}
}

func TestClaude_Failure(t *testing.T) {
	c := &Claude{Path: fakeClaude(t, `echo "rate limited" >&2; exit 3`)}
	_, err := c.Generate(context.Background(), "x")
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Message != "rate limited" {
		t.Errorf("err = %v, want RemoteError(rate limited)", err)
	}
}

func TestClaude_EmptyOutput(t *testing.T) {
	c := &Claude{Path: fakeClaude(t, `exit 0`)}
	if _, err := c.Generate(context.Background(), "x"); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("err = %v, want ErrInvalidResponse", err)
	}
}
