package recipes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetUserVoice returns the stored voice preference for a user, or "" when
// none has been set. Callers resolve "" to the default voice.
func (s *Store) GetUserVoice(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}
	ctx = ensureContext(ctx)

	var voiceID string
	err := s.db.QueryRowContext(ctx, `SELECT voice_id FROM user_voices WHERE user_id = ?`, userID).Scan(&voiceID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get user voice: %w", err)
	}
	return voiceID, nil
}

// SetUserVoice stores or replaces a user's voice preference.
func (s *Store) SetUserVoice(ctx context.Context, userID, voiceID string) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	if voiceID == "" {
		return errors.New("voice id is required")
	}
	ctx = ensureContext(ctx)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO user_voices (user_id, voice_id, updated_at) VALUES (?, ?, ?)
         ON CONFLICT (user_id) DO UPDATE SET voice_id = excluded.voice_id, updated_at = excluded.updated_at`,
		userID,
		voiceID,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("set user voice: %w", err)
	}
	return nil
}
