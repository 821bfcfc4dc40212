package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configFile   = "config.yaml"
	databaseFile = "kiln.db"
)

// AssistConfig holds text-generation assistant settings.
type AssistConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	ClaudePath  string        `yaml:"claude_path"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SessionConfig holds session behavior settings.
type SessionConfig struct {
	EmptyHeatDefault time.Duration `yaml:"empty_heat_default"`
	QuickStartCount  int           `yaml:"quick_start_count"`
}

// JournalConfig holds journal display settings.
type JournalConfig struct {
	Limit int `yaml:"limit"`
}

// Config holds Kiln configuration.
type Config struct {
	Version string        `yaml:"version"`
	Assist  AssistConfig  `yaml:"assist,omitempty"`
	Session SessionConfig `yaml:"session,omitempty"`
	Journal JournalConfig `yaml:"journal,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Version: "1",
		Assist: AssistConfig{
			Provider:    "gemini",
			Model:       "gemini-1.5-flash",
			ClaudePath:  "claude",
			Temperature: 0.8,
			MaxTokens:   500,
			Timeout:     60 * time.Second,
		},
		Session: SessionConfig{
			EmptyHeatDefault: 5 * time.Minute,
			QuickStartCount:  3,
		},
		Journal: JournalConfig{
			Limit: 50,
		},
	}
}

// Store represents a loaded KILN_HOME.
type Store struct {
	Home   string
	Config Config
	DB     *sql.DB
}

// Issue represents a health check finding.
type Issue struct {
	Severity string // "warning" or "error"
	Message  string
}

// Home returns the KILN_HOME path, respecting the KILN_HOME env var.
func Home() string {
	if h := os.Getenv("KILN_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".kiln")
	}
	return filepath.Join(home, ".kiln")
}

// Init creates the KILN_HOME directory, config.yaml and the database schema.
func Init(home string, force bool) error {
	if _, err := os.Stat(home); err == nil && !force {
		return fmt.Errorf("KILN_HOME already exists at %s (use --force to reinitialize)", home)
	}

	for _, d := range []string{home, filepath.Join(home, "exports")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}

	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(home, configFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	db, err := openDB(context.Background(), filepath.Join(home, databaseFile))
	if err != nil {
		return err
	}
	return db.Close()
}

// Load reads an existing KILN_HOME and opens its database.
// Missing config fields are filled from defaults.
func Load(home string) (*Store, error) {
	cfgPath := filepath.Join(home, configFile)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read KILN_HOME config at %s: %w", cfgPath, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config.yaml: %w", err)
	}

	db, err := openDB(context.Background(), filepath.Join(home, databaseFile))
	if err != nil {
		return nil, err
	}
	return &Store{Home: home, Config: cfg, DB: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// SaveConfig writes the current config to config.yaml.
func (s *Store) SaveConfig() error {
	data, err := yaml.Marshal(s.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(s.Path(configFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ConfigKeys lists the keys accepted by SetConfigValue and ConfigValue.
var ConfigKeys = []string{
	"assist.provider",
	"assist.model",
	"assist.claude_path",
	"assist.temperature",
	"assist.max_tokens",
	"assist.timeout",
	"session.empty_heat_default",
	"session.quick_start_count",
	"journal.limit",
}

// SetConfigValue sets a config value by dot-path key (e.g. "assist.provider").
func (s *Store) SetConfigValue(key, value string) error {
	switch key {
	case "assist.provider":
		if value != "gemini" && value != "claude" {
			return fmt.Errorf("assist.provider must be gemini or claude")
		}
		s.Config.Assist.Provider = value
	case "assist.model":
		s.Config.Assist.Model = value
	case "assist.claude_path":
		s.Config.Assist.ClaudePath = value
	case "assist.temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 2 {
			return fmt.Errorf("assist.temperature must be a number between 0 and 2")
		}
		s.Config.Assist.Temperature = f
	case "assist.max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("assist.max_tokens must be a positive integer")
		}
		s.Config.Assist.MaxTokens = n
	case "assist.timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("assist.timeout must be a positive duration (e.g. 45s)")
		}
		s.Config.Assist.Timeout = d
	case "session.empty_heat_default":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("session.empty_heat_default must be a positive duration (e.g. 5m)")
		}
		s.Config.Session.EmptyHeatDefault = d
	case "session.quick_start_count":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("session.quick_start_count must be a positive integer")
		}
		s.Config.Session.QuickStartCount = n
	case "journal.limit":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("journal.limit must be a positive integer")
		}
		s.Config.Journal.Limit = n
	default:
		return fmt.Errorf("unknown config key: %s\nValid keys: %v", key, ConfigKeys)
	}
	return s.SaveConfig()
}

// ConfigValue returns the string form of a config value by dot-path key.
func (s *Store) ConfigValue(key string) (string, error) {
	c := s.Config
	switch key {
	case "assist.provider":
		return c.Assist.Provider, nil
	case "assist.model":
		return c.Assist.Model, nil
	case "assist.claude_path":
		return c.Assist.ClaudePath, nil
	case "assist.temperature":
		return strconv.FormatFloat(c.Assist.Temperature, 'g', -1, 64), nil
	case "assist.max_tokens":
		return strconv.Itoa(c.Assist.MaxTokens), nil
	case "assist.timeout":
		return c.Assist.Timeout.String(), nil
	case "session.empty_heat_default":
		return c.Session.EmptyHeatDefault.String(), nil
	case "session.quick_start_count":
		return strconv.Itoa(c.Session.QuickStartCount), nil
	case "journal.limit":
		return strconv.Itoa(c.Journal.Limit), nil
	}
	return "", fmt.Errorf("unknown config key: %s", key)
}

// Path resolves a path within KILN_HOME.
func (s *Store) Path(parts ...string) string {
	all := append([]string{s.Home}, parts...)
	return filepath.Join(all...)
}

// CheckHealth verifies KILN_HOME structure integrity.
func CheckHealth(home string) []Issue {
	var issues []Issue

	info, err := os.Stat(home)
	if err != nil {
		return append(issues, Issue{"error", fmt.Sprintf("missing directory: %s", home)})
	} else if !info.IsDir() {
		return append(issues, Issue{"error", fmt.Sprintf("expected directory but found file: %s", home)})
	}

	cfgPath := filepath.Join(home, configFile)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		issues = append(issues, Issue{"error", fmt.Sprintf("cannot read config.yaml: %v", err)})
	} else {
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			issues = append(issues, Issue{"error", fmt.Sprintf("config.yaml is not valid YAML: %v", err)})
		}
	}

	if _, err := os.Stat(filepath.Join(home, databaseFile)); err != nil {
		issues = append(issues, Issue{"error", fmt.Sprintf("missing database: %s", databaseFile)})
	}

	return issues
}

// FixIssues attempts to repair simple issues in KILN_HOME.
func FixIssues(home string) []string {
	var fixed []string

	if _, err := os.Stat(home); err != nil {
		if err := os.MkdirAll(home, 0755); err == nil {
			fixed = append(fixed, fmt.Sprintf("recreated missing directory: %s", home))
		}
	}

	cfgPath := filepath.Join(home, configFile)
	if _, err := os.Stat(cfgPath); err != nil {
		data, _ := yaml.Marshal(DefaultConfig())
		if os.WriteFile(cfgPath, data, 0644) == nil {
			fixed = append(fixed, "recreated missing config.yaml with defaults")
		}
	}

	dbPath := filepath.Join(home, databaseFile)
	if _, err := os.Stat(dbPath); err != nil {
		if db, err := openDB(context.Background(), dbPath); err == nil {
			db.Close()
			fixed = append(fixed, "recreated missing database")
		}
	}

	return fixed
}
