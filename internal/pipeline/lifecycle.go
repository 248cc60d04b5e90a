package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ladle/internal/logging"
	"ladle/internal/recipes"
	"ladle/internal/services"
)

// Delete removes a recipe and releases its clips. The caller must carry an
// identity and must own the row; rows with no owner at all predate
// ownership and are deletable by any identified caller.
func (p *Pipeline) Delete(ctx context.Context, owner recipes.Owner, recipeID string) error {
	if owner.IsZero() {
		return services.Wrap(services.ErrOwnership, "delete", "identity", "an identity is required", nil)
	}
	recipeID = strings.TrimSpace(recipeID)
	if recipeID == "" {
		return services.Wrap(services.ErrValidation, "delete", "id", "a recipe id is required", nil)
	}
	ctx = services.WithRecipeID(services.WithOwner(ctx, owner.Label()), recipeID)
	log := logging.WithContext(ctx, p.logger)

	recipe, err := p.store.GetByID(ctx, recipeID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "delete", "lookup", recipeID, err)
	}
	if recipe == nil {
		return services.Wrap(services.ErrNotFound, "delete", "lookup", recipeID, nil)
	}
	if rowOwner := recipe.Owner(); !rowOwner.IsZero() && rowOwner != owner {
		return services.Wrap(services.ErrOwnership, "delete", "authorize", recipeID, nil)
	}

	// The address set must be captured before the row (and its audio_refs
	// rows) disappear.
	addresses := recipe.AudioAddresses()

	removed, err := p.store.Remove(ctx, recipeID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "delete", "remove row", recipeID, err)
	}
	if !removed {
		return services.Wrap(services.ErrNotFound, "delete", "remove row", recipeID, nil)
	}

	p.releaseClips(ctx, addresses)
	log.Info("recipe deleted", slog.Int("clips", len(addresses)))
	return nil
}

// releaseClips removes clip files that no remaining row references. It runs
// after the row deletion committed: a crash mid-scan leaves at worst an
// unreferenced file on disk, never a live reference to a deleted file.
func (p *Pipeline) releaseClips(ctx context.Context, addresses []string) {
	log := logging.WithContext(ctx, p.logger)
	for _, address := range addresses {
		referenced, err := p.store.AudioReferenced(ctx, address)
		if err != nil {
			log.Warn("audio reference scan failed", slog.String(logging.FieldClip, address), slog.Any("error", err))
			continue
		}
		if referenced {
			continue
		}
		if err := p.clips.Remove(address); err != nil {
			log.Warn("remove clip failed", slog.String(logging.FieldClip, address), slog.Any("error", err))
		}
	}
}

// Save copies another owner's recipe into the caller's collection. The copy
// shares the source's clip addresses; the audio reference rows written with
// the copy keep the shared files alive until the last referencing row goes.
// Saving a recipe whose URL the caller already owns returns that existing
// row, so saving one's own recipe is a no-op.
func (p *Pipeline) Save(ctx context.Context, owner recipes.Owner, recipeID string) (*recipes.Recipe, error) {
	if owner.IsZero() {
		return nil, services.Wrap(services.ErrOwnership, "save", "identity", "an identity is required", nil)
	}
	recipeID = strings.TrimSpace(recipeID)
	if recipeID == "" {
		return nil, services.Wrap(services.ErrValidation, "save", "id", "a recipe id is required", nil)
	}
	ctx = services.WithRecipeID(services.WithOwner(ctx, owner.Label()), recipeID)

	source, err := p.store.GetByID(ctx, recipeID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "save", "lookup", recipeID, err)
	}
	if source == nil {
		return nil, services.Wrap(services.ErrNotFound, "save", "lookup", recipeID, nil)
	}

	existing, err := p.store.FindByOwnerURL(ctx, owner, source.SourceURL)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "save", "dedupe", source.SourceURL, err)
	}
	if existing != nil {
		return existing, nil
	}

	clone := cloneForOwner(source, owner)
	if err := p.store.Insert(ctx, clone); err != nil {
		if recipes.IsUniqueViolation(err) {
			winner, lookupErr := p.store.FindByOwnerURL(ctx, owner, source.SourceURL)
			if lookupErr == nil && winner != nil {
				return winner, nil
			}
			return nil, services.Wrap(services.ErrConflict, "save", "insert", source.SourceURL, err)
		}
		return nil, services.Wrap(services.ErrPersistence, "save", "insert", recipeID, err)
	}

	logging.WithContext(ctx, p.logger).Info("recipe saved",
		slog.String("source_id", source.ID),
		slog.String("copy_id", clone.ID))
	return clone, nil
}

// cloneForOwner duplicates every recipe field for a new owner. The id and
// timestamps are cleared so the insert assigns fresh ones; audio addresses
// are carried over as shared references.
func cloneForOwner(source *recipes.Recipe, owner recipes.Owner) *recipes.Recipe {
	clone := *source
	clone.ID = ""
	clone.UserID = owner.UserID
	clone.AnonymousID = owner.AnonymousID
	clone.CreatedAt = time.Time{}
	clone.UpdatedAt = time.Time{}
	clone.Ingredients = append([]recipes.Ingredient(nil), source.Ingredients...)
	clone.Steps = append([]recipes.Step(nil), source.Steps...)
	clone.Tags = append([]string(nil), source.Tags...)
	return &clone
}

// Migrate reassigns every recipe owned by an anonymous identity to an
// authenticated user and reports how many rows moved. Audio is untouched:
// the rows keep their clip addresses and reference rows.
func (p *Pipeline) Migrate(ctx context.Context, userID, anonymousID string) (int64, error) {
	userID = strings.TrimSpace(userID)
	anonymousID = strings.TrimSpace(anonymousID)
	if userID == "" {
		return 0, services.Wrap(services.ErrOwnership, "migrate", "identity", "an authenticated identity is required", nil)
	}
	if anonymousID == "" {
		return 0, services.Wrap(services.ErrValidation, "migrate", "identity", "an anonymous id is required", nil)
	}

	ctx = services.WithOwner(ctx, recipes.Owner{UserID: userID}.Label())
	migrated, err := p.store.MigrateOwner(ctx, anonymousID, userID)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "migrate", "reassign", anonymousID, err)
	}
	if migrated > 0 {
		logging.WithContext(ctx, p.logger).Info("ownership migrated",
			slog.String("anonymous_id", anonymousID),
			slog.Int64("recipes", migrated))
	}
	return migrated, nil
}
