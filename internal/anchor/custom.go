package anchor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kokistudios/kiln/internal/store"
)

var (
	// ErrEmptyName is returned when a custom anchor has no name.
	ErrEmptyName = errors.New("custom anchor name is empty")
	// ErrEmptyFormName is returned when a custom anchor form has no form name.
	ErrEmptyFormName = errors.New("custom anchor form name is empty")
	// ErrNotFound is returned when a custom anchor does not exist.
	ErrNotFound = errors.New("custom anchor not found")
)

// CustomAnchor is a user-defined anchor with an editable list of forms.
type CustomAnchor struct {
	ID          string          `yaml:"id" json:"id"`
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description"`
	Forms       []TentativeForm `yaml:"forms" json:"forms"`
	CreatedAt   time.Time       `yaml:"created_at" json:"created_at"`
}

// NewCustom builds a validated custom anchor stamped with the current time.
func NewCustom(name, description string, forms []TentativeForm) (*CustomAnchor, error) {
	c := &CustomAnchor{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Description: description,
		Forms:       append([]TentativeForm(nil), forms...),
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects an empty name or any form without a form name.
func (c *CustomAnchor) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	for i, f := range c.Forms {
		if strings.TrimSpace(f.FormName) == "" {
			return fmt.Errorf("form %d: %w", i+1, ErrEmptyFormName)
		}
	}
	return nil
}

// Anchor converts the custom anchor into the catalog shape used for sessions.
func (c *CustomAnchor) Anchor() Anchor {
	return Anchor{
		ID:             "custom-" + strings.ReplaceAll(strings.ToLower(c.Name), " ", "-"),
		Name:           c.Name,
		Description:    c.Description,
		TentativeForms: append([]TentativeForm(nil), c.Forms...),
		Custom:         true,
	}
}

// SaveCustom inserts or replaces a custom anchor and its forms.
func SaveCustom(ctx context.Context, s *store.Store, c *CustomAnchor) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		const upsert = `
			INSERT INTO custom_anchors (id, name, description, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description`
		if _, err := tx.ExecContext(ctx, upsert, c.ID, c.Name, c.Description, c.CreatedAt.UnixNano()); err != nil {
			return fmt.Errorf("failed to save custom anchor: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM custom_anchor_forms WHERE anchor_id = ?`, c.ID); err != nil {
			return fmt.Errorf("failed to reset custom anchor forms: %w", err)
		}
		for i, f := range c.Forms {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO custom_anchor_forms (anchor_id, position, context, form_name) VALUES (?, ?, ?, ?)`,
				c.ID, i, f.Context, f.FormName); err != nil {
				return fmt.Errorf("failed to save custom anchor form: %w", err)
			}
		}
		return nil
	})
}

// GetCustom loads a custom anchor by ID.
func GetCustom(ctx context.Context, s *store.Store, id string) (*CustomAnchor, error) {
	var c CustomAnchor
	var created int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM custom_anchors WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Description, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read custom anchor: %w", err)
	}
	c.CreatedAt = time.Unix(0, created).UTC()
	if err := loadForms(ctx, s, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindCustom resolves a custom anchor by ID or case-insensitive name.
func FindCustom(ctx context.Context, s *store.Store, nameOrID string) (*CustomAnchor, error) {
	all, err := ListCustom(ctx, s)
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(nameOrID)
	for i := range all {
		if all[i].ID == key || strings.EqualFold(all[i].Name, key) {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, nameOrID)
}

// ListCustom returns all custom anchors, newest first.
func ListCustom(ctx context.Context, s *store.Store) ([]CustomAnchor, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM custom_anchors ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("cannot list custom anchors: %w", err)
	}
	var out []CustomAnchor
	for rows.Next() {
		var c CustomAnchor
		var created int64
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan custom anchor: %w", err)
		}
		c.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := loadForms(ctx, s, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeleteCustom removes a custom anchor. Sessions that used it keep their
// anchor name as plain text.
func DeleteCustom(ctx context.Context, s *store.Store, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM custom_anchors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete custom anchor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func loadForms(ctx context.Context, s *store.Store, c *CustomAnchor) error {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT context, form_name FROM custom_anchor_forms WHERE anchor_id = ? ORDER BY position`, c.ID)
	if err != nil {
		return fmt.Errorf("failed to read custom anchor forms: %w", err)
	}
	defer rows.Close()
	c.Forms = nil
	for rows.Next() {
		var f TentativeForm
		if err := rows.Scan(&f.Context, &f.FormName); err != nil {
			return fmt.Errorf("failed to scan custom anchor form: %w", err)
		}
		c.Forms = append(c.Forms, f)
	}
	return rows.Err()
}

// Catalog returns the built-in anchors followed by custom anchors, newest
// custom first.
func Catalog(ctx context.Context, s *store.Store) ([]Anchor, error) {
	custom, err := ListCustom(ctx, s)
	if err != nil {
		return nil, err
	}
	out := BuiltIn()
	for i := range custom {
		out = append(out, custom[i].Anchor())
	}
	return out, nil
}

// Resolve finds an anchor by ID or name, built-ins first.
func Resolve(ctx context.Context, s *store.Store, nameOrID string) (Anchor, error) {
	if a, ok := Lookup(nameOrID); ok {
		return a, nil
	}
	all, err := Catalog(ctx, s)
	if err != nil {
		return Anchor{}, err
	}
	key := strings.TrimSpace(nameOrID)
	for _, a := range all {
		if a.ID == key || strings.EqualFold(a.Name, key) {
			return a, nil
		}
	}
	c, err := FindCustom(ctx, s, key)
	if err != nil {
		return Anchor{}, err
	}
	return c.Anchor(), nil
}
