package store

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS ui_texts (
	key TEXT NOT NULL,
	language TEXT NOT NULL,
	text TEXT NOT NULL,
	PRIMARY KEY (key, language)
);

CREATE TABLE IF NOT EXISTS companies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	tg_token TEXT NOT NULL UNIQUE,
	default_language TEXT NOT NULL DEFAULT 'ru',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS user_preferences (
	telegram_user_id INTEGER PRIMARY KEY,
	language_code TEXT NOT NULL DEFAULT 'ru',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS leads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id INTEGER NOT NULL REFERENCES companies(id),
	telegram_user_id INTEGER NOT NULL,
	contact_info TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'new',
	created_at INTEGER NOT NULL,
	UNIQUE (company_id, telegram_user_id)
);

CREATE TABLE IF NOT EXISTS interactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id INTEGER NOT NULL REFERENCES companies(id),
	lead_id INTEGER NOT NULL REFERENCES leads(id),
	type TEXT NOT NULL,
	content TEXT NOT NULL,
	outcome TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interactions_lead ON interactions(lead_id, created_at);
`

// Migrate creates the schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}
