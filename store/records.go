package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Interaction types.
const (
	InteractionText  = "text"
	InteractionVoice = "voice"
)

// Lead is an end user known to one company.
type Lead struct {
	ID        int64
	CompanyID int64
	UserID    int64
	Username  string
	Status    string
	CreatedAt time.Time
}

// Interaction is one answered question.
type Interaction struct {
	ID        int64
	CompanyID int64
	LeadID    int64
	Type      string
	Content   string
	Outcome   string
	CreatedAt time.Time
}

type contactInfo struct {
	Username string `json:"username"`
}

// Language returns the stored language code for userID, or an error
// wrapping ErrNotFound.
func (s *Store) Language(ctx context.Context, userID int64) (string, error) {
	var code string
	err := s.db.QueryRowContext(ctx,
		`SELECT language_code FROM user_preferences WHERE telegram_user_id = ?`, userID,
	).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: preference for user %d", ErrNotFound, userID)
	}
	if err != nil {
		return "", fmt.Errorf("store: language: %w", err)
	}
	return code, nil
}

// SetLanguage stores the language code for userID.
func (s *Store) SetLanguage(ctx context.Context, userID int64, code string) error {
	if code == "" {
		return fmt.Errorf("%w: language code is required", ErrInvalidInput)
	}
	now := s.unixNow()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (telegram_user_id, language_code, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (telegram_user_id) DO UPDATE
		SET language_code = excluded.language_code, updated_at = excluded.updated_at
	`, userID, code, now, now)
	if err != nil {
		return fmt.Errorf("store: set language: %w", err)
	}
	return nil
}

// GetOrCreateLead returns the lead for (companyID, userID), creating it
// with status "new" on first contact.
func (s *Store) GetOrCreateLead(ctx context.Context, companyID, userID int64, username string) (Lead, error) {
	info, err := json.Marshal(contactInfo{Username: username})
	if err != nil {
		return Lead{}, fmt.Errorf("store: encode contact info: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO leads (company_id, telegram_user_id, contact_info, status, created_at)
		VALUES (?, ?, ?, 'new', ?)
		ON CONFLICT (company_id, telegram_user_id) DO NOTHING
	`, companyID, userID, string(info), s.unixNow())
	if err != nil {
		return Lead{}, fmt.Errorf("store: create lead: %w", err)
	}

	var (
		lead    Lead
		raw     string
		created int64
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT id, company_id, telegram_user_id, contact_info, status, created_at
		FROM leads WHERE company_id = ? AND telegram_user_id = ?
	`, companyID, userID).Scan(&lead.ID, &lead.CompanyID, &lead.UserID, &raw, &lead.Status, &created)
	if err != nil {
		return Lead{}, fmt.Errorf("store: load lead: %w", err)
	}

	var ci contactInfo
	if err := json.Unmarshal([]byte(raw), &ci); err == nil {
		lead.Username = ci.Username
	}
	lead.CreatedAt = time.Unix(created, 0).UTC()
	return lead, nil
}

// SaveInteraction stores one interaction and returns its id.
func (s *Store) SaveInteraction(ctx context.Context, in Interaction) (int64, error) {
	if in.LeadID == 0 || in.CompanyID == 0 || in.Type == "" {
		return 0, fmt.Errorf("%w: interaction needs company, lead and type", ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (company_id, lead_id, type, content, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, in.CompanyID, in.LeadID, in.Type, in.Content, in.Outcome, s.unixNow())
	if err != nil {
		return 0, fmt.Errorf("store: save interaction: %w", err)
	}
	return res.LastInsertId()
}

// Interactions returns the most recent interactions of leadID, newest first.
func (s *Store) Interactions(ctx context.Context, leadID int64, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, lead_id, type, content, outcome, created_at
		FROM interactions WHERE lead_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var (
			in      Interaction
			created int64
		)
		if err := rows.Scan(&in.ID, &in.CompanyID, &in.LeadID, &in.Type, &in.Content, &in.Outcome, &created); err != nil {
			return nil, fmt.Errorf("store: scan interaction: %w", err)
		}
		in.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, in)
	}
	return out, rows.Err()
}
