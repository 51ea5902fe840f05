package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jonwraymond/botguard/cache"
)

// Company is a tenant bound to one bot token.
type Company struct {
	ID              int64
	Name            string
	Token           string
	DefaultLanguage string
}

// Lookup resolves a bot token to its company id. Unknown tokens wrap
// cache.ErrNotFound.
func (s *Store) Lookup(ctx context.Context, token string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM companies WHERE tg_token = ?`, token,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: tenant token", cache.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("store: lookup tenant: %w", err)
	}
	return id, nil
}

// CreateCompany registers a company for token and returns its id.
func (s *Store) CreateCompany(ctx context.Context, c Company) (int64, error) {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Token) == "" {
		return 0, fmt.Errorf("%w: company name and token are required", ErrInvalidInput)
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "ru"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (name, tg_token, default_language, created_at) VALUES (?, ?, ?, ?)`,
		c.Name, c.Token, c.DefaultLanguage, s.unixNow(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: create company: %w", err)
	}
	return res.LastInsertId()
}

var _ cache.TenantSource = (*Store)(nil)
