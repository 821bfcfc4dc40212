// Package secret keeps the AI credential out of config.yaml. Keys live in a
// dotenv file readable only by the owner; KILN_* environment variables take
// precedence.
package secret

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// GeminiAPIKey is the key under which the Gemini credential is stored.
const GeminiAPIKey = "gemini_api_key"

// ErrNotFound is returned by Get when no value is stored for a key.
var ErrNotFound = errors.New("secret not found")

// Store reads and writes named secrets.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// FileStore keeps secrets in a dotenv file.
type FileStore struct {
	Path string
}

// NewFileStore returns a store backed by credentials.env in dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Path: filepath.Join(dir, "credentials.env")}
}

// encodedPrefix marks values stored as base64 because dotenv quoting cannot
// carry them through a write and read unchanged.
const encodedPrefix = "base64:"

func encodeValue(v string) string {
	if strings.ContainsAny(v, "\"\\'`$#\n\r") || strings.HasPrefix(v, encodedPrefix) {
		return encodedPrefix + base64.StdEncoding.EncodeToString([]byte(v))
	}
	return v
}

func decodeValue(v string) (string, error) {
	raw, ok := strings.CutPrefix(v, encodedPrefix)
	if !ok {
		return v, nil
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (f *FileStore) read() (map[string]string, error) {
	m, err := godotenv.Read(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", f.Path, err)
	}
	for k, v := range m {
		if m[k], err = decodeValue(v); err != nil {
			return nil, fmt.Errorf("cannot decode %s in %s: %w", k, f.Path, err)
		}
	}
	return m, nil
}

func (f *FileStore) write(m map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0700); err != nil {
		return fmt.Errorf("cannot create credentials directory: %w", err)
	}
	enc := make(map[string]string, len(m))
	for k, v := range m {
		enc[k] = encodeValue(v)
	}
	if err := godotenv.Write(enc, f.Path); err != nil {
		return fmt.Errorf("cannot write %s: %w", f.Path, err)
	}
	return os.Chmod(f.Path, 0600)
}

func (f *FileStore) Get(key string) (string, error) {
	m, err := f.read()
	if err != nil {
		return "", err
	}
	v, ok := m[key]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

func (f *FileStore) Set(key, value string) error {
	if key == "" {
		return errors.New("secret key cannot be empty")
	}
	m, err := f.read()
	if err != nil {
		return err
	}
	m[key] = strings.TrimSpace(value)
	return f.write(m)
}

// Delete removes key. Deleting a missing key is not an error.
func (f *FileStore) Delete(key string) error {
	m, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return f.write(m)
}

// EnvStore overlays environment variables on another store. A key such as
// "gemini_api_key" is looked up as KILN_GEMINI_API_KEY first.
type EnvStore struct {
	Prefix string
	Next   Store
}

// NewEnvStore wraps next with the KILN_ prefix.
func NewEnvStore(next Store) *EnvStore {
	return &EnvStore{Prefix: "KILN_", Next: next}
}

// EnvName returns the environment variable consulted for key.
func (e *EnvStore) EnvName(key string) string {
	return e.Prefix + strings.ToUpper(key)
}

func (e *EnvStore) Get(key string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(e.EnvName(key))); v != "" {
		return v, nil
	}
	if e.Next == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return e.Next.Get(key)
}

func (e *EnvStore) Set(key, value string) error {
	if e.Next == nil {
		return fmt.Errorf("no writable secret store for %s", key)
	}
	return e.Next.Set(key, value)
}

func (e *EnvStore) Delete(key string) error {
	if e.Next == nil {
		return nil
	}
	return e.Next.Delete(key)
}

// Source reports where key would be read from: "env", "file" or "" when
// it is not set anywhere.
func (e *EnvStore) Source(key string) string {
	if strings.TrimSpace(os.Getenv(e.EnvName(key))) != "" {
		return "env"
	}
	if e.Next != nil {
		if _, err := e.Next.Get(key); err == nil {
			return "file"
		}
	}
	return ""
}

// Open returns the default store for a Kiln home directory.
func Open(home string) *EnvStore {
	return NewEnvStore(NewFileStore(home))
}

// Mask hides all but the last four characters of a secret.
func Mask(v string) string {
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}
