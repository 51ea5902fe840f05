package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jonwraymond/botguard/cache"
)

// UIText is one localized interface string.
type UIText struct {
	Key      string
	Language string
	Text     string
}

// Fetch returns the localized text for key. Unknown keys wrap
// cache.ErrNotFound.
func (s *Store) Fetch(ctx context.Context, key cache.LookupKey) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		`SELECT text FROM ui_texts WHERE key = ? AND language = ?`,
		key.Key, key.Locale,
	).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: ui text %s", cache.ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("store: fetch text %s: %w", key, err)
	}
	return text, nil
}

// PutText inserts or replaces one localized text.
func (s *Store) PutText(ctx context.Context, t UIText) error {
	if t.Key == "" || t.Language == "" {
		return fmt.Errorf("%w: text key and language are required", ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ui_texts (key, language, text) VALUES (?, ?, ?)
		ON CONFLICT (key, language) DO UPDATE SET text = excluded.text
	`, t.Key, t.Language, t.Text)
	if err != nil {
		return fmt.Errorf("store: put text: %w", err)
	}
	return nil
}

// SeedTexts inserts texts that are not already present and returns how
// many were added. Existing rows are left untouched.
func (s *Store) SeedTexts(ctx context.Context, texts []UIText) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: seed texts: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO ui_texts (key, language, text) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("store: seed texts: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, t := range texts {
		res, err := stmt.ExecContext(ctx, t.Key, t.Language, t.Text)
		if err != nil {
			return 0, fmt.Errorf("store: seed text %s@%s: %w", t.Key, t.Language, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: seed texts: %w", err)
	}
	return added, nil
}

var _ cache.ReferenceSource = (*Store)(nil)
