package recipes

import (
	"context"
	"fmt"
)

// AudioReferenced reports whether any persisted recipe still references the
// clip address. Deletion of the backing file is only safe when this returns
// false, after the owning row has been removed.
func (s *Store) AudioReferenced(ctx context.Context, clipURL string) (bool, error) {
	if clipURL == "" {
		return false, nil
	}
	ctx = ensureContext(ctx)

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM audio_refs WHERE clip_url = ?`, clipURL).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count audio refs: %w", err)
	}
	return count > 0, nil
}

// AudioRefCount returns how many recipes reference the clip address.
func (s *Store) AudioRefCount(ctx context.Context, clipURL string) (int, error) {
	if clipURL == "" {
		return 0, nil
	}
	ctx = ensureContext(ctx)

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM audio_refs WHERE clip_url = ?`, clipURL).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count audio refs: %w", err)
	}
	return count, nil
}
