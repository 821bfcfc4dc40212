package assist

import (
	"errors"
	"fmt"

	"github.com/kokistudios/kiln/internal/secret"
	"github.com/kokistudios/kiln/internal/store"
)

// ErrNoBackend means the configured backend cannot run on this machine.
var ErrNoBackend = errors.New("assistant backend unavailable")

// NewGenerator builds the backend named in cfg.Provider.
func NewGenerator(cfg store.AssistConfig, secrets secret.Store) (Generator, error) {
	switch cfg.Provider {
	case "", "gemini":
		return NewGemini(secrets, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	case "claude":
		return &Claude{Path: cfg.ClaudePath}, nil
	default:
		return nil, fmt.Errorf("unknown assist provider: %s", cfg.Provider)
	}
}

// FromStore builds an Assistant from a loaded home's config and secrets.
func FromStore(st *store.Store) (*Assistant, error) {
	gen, err := NewGenerator(st.Config.Assist, secret.Open(st.Home))
	if err != nil {
		return nil, err
	}
	return New(gen), nil
}
