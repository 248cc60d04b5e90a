package recipes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Insert persists a new recipe row together with its audio reference rows in
// one transaction. It assigns the id and timestamps when unset. A UNIQUE
// violation (owner already has this source URL) is returned unwrapped so
// callers can detect it with IsUniqueViolation.
func (s *Store) Insert(ctx context.Context, recipe *Recipe) error {
	if recipe == nil {
		return errors.New("recipe is nil")
	}
	ctx = ensureContext(ctx)

	if recipe.ID == "" {
		recipe.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if recipe.CreatedAt.IsZero() {
		recipe.CreatedAt = now
	}
	if recipe.UpdatedAt.IsZero() {
		recipe.UpdatedAt = recipe.CreatedAt
	}

	ingredients := recipe.Ingredients
	if ingredients == nil {
		ingredients = []Ingredient{}
	}
	steps := recipe.Steps
	if steps == nil {
		steps = []Step{}
	}

	ingredientsJSON, err := marshalList(ingredients)
	if err != nil {
		return fmt.Errorf("marshal ingredients: %w", err)
	}
	stepsJSON, err := marshalList(steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	var tagsJSON any
	if len(recipe.Tags) > 0 {
		encoded, err := marshalList(recipe.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		tagsJSON = encoded
	}

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin insert tx: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO recipes (`+recipeColumns+`)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			recipe.ID,
			recipe.Title,
			recipe.SourceURL,
			string(recipe.SourceKind),
			nullableString(recipe.Description),
			nullableString(recipe.ImageURL),
			nullableString(recipe.PrepTime),
			nullableString(recipe.CookTime),
			nullableString(recipe.TotalTime),
			nullableString(recipe.Servings),
			ingredientsJSON,
			stepsJSON,
			tagsJSON,
			nullableString(recipe.RawContent),
			nullableString(recipe.IntroText),
			nullableString(recipe.OutroText),
			nullableString(recipe.IntroAudioURL),
			nullableString(recipe.OutroAudioURL),
			nullableString(recipe.IngredientsAudioURL),
			nullableString(recipe.UserID),
			nullableString(recipe.AnonymousID),
			boolToInt(recipe.IsPublic),
			recipe.CreatedAt.Format(time.RFC3339Nano),
			recipe.UpdatedAt.Format(time.RFC3339Nano),
		); err != nil {
			return err
		}

		for _, clip := range recipe.AudioAddresses() {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT OR IGNORE INTO audio_refs (recipe_id, clip_url) VALUES (?, ?)`,
				recipe.ID,
				clip,
			); err != nil {
				return fmt.Errorf("insert audio ref: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit insert: %w", err)
		}
		return nil
	})
}

// GetByID fetches a recipe by identifier. Missing rows return (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Recipe, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = ?`, id)
	recipe, err := scanRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	return recipe, nil
}

// FindByOwnerURL returns the owner's recipe for a source URL, or (nil, nil).
// A zero owner matches legacy rows that carry no identity.
func (s *Store) FindByOwnerURL(ctx context.Context, owner Owner, sourceURL string) (*Recipe, error) {
	ctx = ensureContext(ctx)

	predicate, args := ownerPredicate(owner)
	if predicate == "" {
		predicate = "user_id IS NULL AND anonymous_id IS NULL"
	}
	args = append(args, sourceURL)

	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+recipeColumns+` FROM recipes WHERE `+predicate+` AND source_url = ? ORDER BY created_at LIMIT 1`,
		args...,
	)
	recipe, err := scanRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by owner and url: %w", err)
	}
	return recipe, nil
}

// List returns recipes newest first. A non-zero owner scopes the listing to
// that owner's rows; a zero owner lists everything.
func (s *Store) List(ctx context.Context, owner Owner, skip, limit int) ([]*Recipe, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}

	query := `SELECT ` + recipeColumns + ` FROM recipes`
	predicate, args := ownerPredicate(owner)
	if predicate != "" {
		query += ` WHERE ` + predicate
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	return collectRecipes(rows)
}

// Count returns the number of recipes visible to the owner (all rows for a
// zero owner), matching List's scoping.
func (s *Store) Count(ctx context.Context, owner Owner) (int, error) {
	ctx = ensureContext(ctx)

	query := `SELECT COUNT(1) FROM recipes`
	predicate, args := ownerPredicate(owner)
	if predicate != "" {
		query += ` WHERE ` + predicate
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count recipes: %w", err)
	}
	return count, nil
}

// Search matches the query against title and description, newest first,
// scoped like List.
func (s *Store) Search(ctx context.Context, owner Owner, query string, skip, limit int) ([]*Recipe, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}

	pattern := "%" + query + "%"
	sqlQuery := `SELECT ` + recipeColumns + ` FROM recipes WHERE (title LIKE ? OR description LIKE ?)`
	args := []any{pattern, pattern}

	predicate, ownerArgs := ownerPredicate(owner)
	if predicate != "" {
		sqlQuery += ` AND ` + predicate
		args = append(args, ownerArgs...)
	}
	sqlQuery += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, skip)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search recipes: %w", err)
	}
	defer rows.Close()

	return collectRecipes(rows)
}

// Remove deletes a recipe row. Audio reference rows cascade; the caller is
// responsible for releasing clip files afterwards.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)
	res, err := s.db.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete recipe: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MigrateOwner reassigns an anonymous identity's recipes to an authenticated
// user without touching audio. Rows whose source URL the user already owns
// are skipped to preserve the per-owner URL uniqueness; they stay anonymous.
func (s *Store) MigrateOwner(ctx context.Context, anonymousID, userID string) (int64, error) {
	if anonymousID == "" || userID == "" {
		return 0, errors.New("both anonymous and user identities are required")
	}
	ctx = ensureContext(ctx)

	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE recipes
             SET user_id = ?, anonymous_id = NULL, updated_at = ?
             WHERE anonymous_id = ?
               AND source_url NOT IN (SELECT source_url FROM recipes WHERE user_id = ?)`,
			userID,
			time.Now().UTC().Format(time.RFC3339Nano),
			anonymousID,
			userID,
		)
		if err != nil {
			return fmt.Errorf("migrate owner: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

func ownerPredicate(owner Owner) (string, []any) {
	switch {
	case owner.UserID != "":
		return "user_id = ?", []any{owner.UserID}
	case owner.AnonymousID != "":
		return "anonymous_id = ?", []any{owner.AnonymousID}
	default:
		return "", nil
	}
}

func collectRecipes(rows *sql.Rows) ([]*Recipe, error) {
	var recipes []*Recipe
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}
	return recipes, rows.Err()
}
