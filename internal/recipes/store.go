package recipes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ladle/internal/config"
)

// Store manages recipe persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	sqliteConstraintCode    = 19
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the recipe database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// IsUniqueViolation reports whether err came from a UNIQUE index, which for
// recipes means the owner already ingested that source URL.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		// Primary or extended constraint codes both cover unique indexes.
		code := coder.Code()
		if code == sqliteConstraintCode || code&0xff == sqliteConstraintCode {
			return strings.Contains(err.Error(), "UNIQUE")
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

const recipeColumns = "id, title, source_url, source_kind, description, image_url, prep_time, cook_time, total_time, servings, ingredients_json, steps_json, tags_json, raw_content, intro_text, outro_text, intro_audio_url, outro_audio_url, ingredients_audio_url, user_id, anonymous_id, is_public, created_at, updated_at"

func scanRecipe(scanner interface{ Scan(dest ...any) error }) (*Recipe, error) {
	var (
		id              string
		title           string
		sourceURL       string
		sourceKind      string
		description     sql.NullString
		imageURL        sql.NullString
		prepTime        sql.NullString
		cookTime        sql.NullString
		totalTime       sql.NullString
		servings        sql.NullString
		ingredientsJSON sql.NullString
		stepsJSON       sql.NullString
		tagsJSON        sql.NullString
		rawContent      sql.NullString
		introText       sql.NullString
		outroText       sql.NullString
		introAudio      sql.NullString
		outroAudio      sql.NullString
		ingredientAudio sql.NullString
		userID          sql.NullString
		anonymousID     sql.NullString
		isPublic        sql.NullInt64
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&sourceURL,
		&sourceKind,
		&description,
		&imageURL,
		&prepTime,
		&cookTime,
		&totalTime,
		&servings,
		&ingredientsJSON,
		&stepsJSON,
		&tagsJSON,
		&rawContent,
		&introText,
		&outroText,
		&introAudio,
		&outroAudio,
		&ingredientAudio,
		&userID,
		&anonymousID,
		&isPublic,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	recipe := &Recipe{
		ID:                  id,
		Title:               title,
		SourceURL:           sourceURL,
		SourceKind:          SourceKind(sourceKind),
		Description:         description.String,
		ImageURL:            imageURL.String,
		PrepTime:            prepTime.String,
		CookTime:            cookTime.String,
		TotalTime:           totalTime.String,
		Servings:            servings.String,
		RawContent:          rawContent.String,
		IntroText:           introText.String,
		OutroText:           outroText.String,
		IntroAudioURL:       introAudio.String,
		OutroAudioURL:       outroAudio.String,
		IngredientsAudioURL: ingredientAudio.String,
		UserID:              userID.String,
		AnonymousID:         anonymousID.String,
		IsPublic:            isPublic.Int64 != 0,
	}

	if ingredientsJSON.String != "" {
		if err := json.Unmarshal([]byte(ingredientsJSON.String), &recipe.Ingredients); err != nil {
			return nil, fmt.Errorf("decode ingredients for %s: %w", id, err)
		}
	}
	if stepsJSON.String != "" {
		if err := json.Unmarshal([]byte(stepsJSON.String), &recipe.Steps); err != nil {
			return nil, fmt.Errorf("decode steps for %s: %w", id, err)
		}
	}
	if tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &recipe.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", id, err)
		}
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		recipe.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		recipe.UpdatedAt = updated
	}
	return recipe, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func marshalList(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
