package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"ladle/internal/audio"
	"ladle/internal/fetch"
	"ladle/internal/logging"
	"ladle/internal/notifications"
	"ladle/internal/recipes"
	"ladle/internal/services"
	"ladle/internal/textutil"
)

// rawContentMaxRunes caps the stored provenance excerpt of fetched content.
const rawContentMaxRunes = 5000

// fallbackTitle names recipes whose source yielded no usable title.
const fallbackTitle = "Untitled Recipe"

// Fetcher retrieves the source document behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.SourceDocument, error)
}

// Structurer converts fetched content into a recipe. It may return a
// degraded recipe together with an inspectable error.
type Structurer interface {
	Structure(ctx context.Context, content string, kind recipes.SourceKind, voiceID string) (*recipes.Recipe, error)
}

// Pipeline owns ingestion and the recipe lifecycle.
type Pipeline struct {
	store      *recipes.Store
	fetcher    Fetcher
	structurer Structurer
	clips      *audio.Store
	notifier   notifications.Service
	logger     *slog.Logger
}

// Option adjusts a Pipeline.
type Option func(*Pipeline)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithNotifier wires pipeline event notifications.
func WithNotifier(notifier notifications.Service) Option {
	return func(p *Pipeline) {
		if notifier != nil {
			p.notifier = notifier
		}
	}
}

// New assembles a Pipeline over the given store, retrieval, structuring,
// and clip storage components.
func New(store *recipes.Store, fetcher Fetcher, structurer Structurer, clips *audio.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		fetcher:    fetcher,
		structurer: structurer,
		clips:      clips,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process ingests one URL for one owner. An existing row for the pair is
// returned untouched before any fetching happens; otherwise the document is
// fetched, structured (degrading rather than failing), narrated, and
// persisted together with its audio references. A lost insert race returns
// the winning row after deleting this attempt's clips.
func (p *Pipeline) Process(ctx context.Context, owner recipes.Owner, rawURL string) (*recipes.Recipe, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, services.Wrap(services.ErrValidation, "process", "url", "a url is required", nil)
	}
	ctx = services.WithOwner(ctx, owner.Label())
	log := logging.WithContext(ctx, p.logger).With(slog.String(logging.FieldURL, rawURL))

	existing, err := p.store.FindByOwnerURL(ctx, owner, rawURL)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "process", "lookup", rawURL, err)
	}
	if existing != nil {
		log.Info("recipe already processed", slog.String("recipe_id", existing.ID))
		return existing, nil
	}

	voiceID := p.ownerVoice(ctx, owner, log)

	document, err := p.fetcher.Fetch(services.WithStage(ctx, "fetch"), rawURL)
	if err != nil {
		p.notifyFailure(ctx, rawURL, err)
		return nil, err
	}
	log.Info("source fetched",
		slog.String("kind", string(document.Kind)),
		slog.Int("content_chars", len(document.Content)))

	recipe, err := p.structurer.Structure(services.WithStage(ctx, "structure"), document.Content, document.Kind, voiceID)
	if err != nil {
		if recipe == nil {
			p.notifyFailure(ctx, rawURL, err)
			return nil, err
		}
		log.Warn("structuring degraded", slog.Any("error", err))
	}

	recipe.SourceURL = rawURL
	recipe.ImageURL = document.ImageURL
	recipe.RawContent = textutil.CapRunes(document.Content, rawContentMaxRunes)
	recipe.UserID = owner.UserID
	recipe.AnonymousID = owner.AnonymousID
	if strings.TrimSpace(recipe.Title) == "" {
		recipe.Title = document.Title
	}
	if strings.TrimSpace(recipe.Title) == "" {
		recipe.Title = fallbackTitle
	}

	// Collected before the insert so the rollback removes exactly the clips
	// this attempt produced.
	clipAddresses := recipe.AudioAddresses()

	if err := p.store.Insert(ctx, recipe); err != nil {
		p.discardClips(clipAddresses, log)
		if recipes.IsUniqueViolation(err) {
			winner, lookupErr := p.store.FindByOwnerURL(ctx, owner, rawURL)
			if lookupErr == nil && winner != nil {
				log.Info("insert race resolved to existing recipe", slog.String("recipe_id", winner.ID))
				return winner, nil
			}
			return nil, services.Wrap(services.ErrConflict, "process", "insert", rawURL, err)
		}
		p.notifyFailure(ctx, rawURL, err)
		return nil, services.Wrap(services.ErrPersistence, "process", "insert", rawURL, err)
	}

	log.Info("recipe persisted",
		slog.String("recipe_id", recipe.ID),
		slog.Int("steps", len(recipe.Steps)),
		slog.Int("clips", len(clipAddresses)))
	p.notify(ctx, notifications.EventRecipeProcessed, notifications.Payload{
		"title": recipe.Title,
		"kind":  string(recipe.SourceKind),
	})
	return recipe, nil
}

// ownerVoice reads the owner's stored voice preference; synthesis resolves
// an empty preference to the default voice.
func (p *Pipeline) ownerVoice(ctx context.Context, owner recipes.Owner, log *slog.Logger) string {
	key := owner.UserID
	if key == "" {
		key = owner.AnonymousID
	}
	if key == "" {
		return ""
	}
	voiceID, err := p.store.GetUserVoice(ctx, key)
	if err != nil {
		log.Warn("voice preference lookup failed", slog.Any("error", err))
		return ""
	}
	return voiceID
}

// discardClips removes the given clip files directly, without a reference
// scan: they belong to an insert attempt that never committed, so no row
// can reference them.
func (p *Pipeline) discardClips(addresses []string, log *slog.Logger) {
	if len(addresses) == 0 {
		return
	}
	if err := p.clips.RemoveAll(addresses); err != nil {
		log.Warn("discard synthesized clips failed", slog.Any("error", err))
	}
}

func (p *Pipeline) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Publish(ctx, event, payload); err != nil {
		p.logger.Warn("notification failed", slog.String("event", string(event)), slog.Any("error", err))
	}
}

func (p *Pipeline) notifyFailure(ctx context.Context, rawURL string, cause error) {
	payload := notifications.Payload{"url": rawURL}
	if cause != nil {
		payload["error"] = cause.Error()
	}
	p.notify(ctx, notifications.EventProcessingFailed, payload)
}
