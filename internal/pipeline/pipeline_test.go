package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ladle/internal/audio"
	"ladle/internal/fetch"
	"ladle/internal/notifications"
	"ladle/internal/recipes"
	"ladle/internal/services"
	"ladle/internal/testsupport"
)

type fakeFetcher struct {
	document *fetch.SourceDocument
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*fetch.SourceDocument, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.document, nil
}

type fakeStructurer struct {
	build       func() *recipes.Recipe
	err         error
	hook        func()
	calls       int
	lastKind    recipes.SourceKind
	lastVoice   string
	lastContent string
}

func (s *fakeStructurer) Structure(ctx context.Context, content string, kind recipes.SourceKind, voiceID string) (*recipes.Recipe, error) {
	s.calls++
	s.lastContent = content
	s.lastKind = kind
	s.lastVoice = voiceID
	if s.hook != nil {
		s.hook()
	}
	var recipe *recipes.Recipe
	if s.build != nil {
		recipe = s.build()
	}
	return recipe, s.err
}

type fakeNotifier struct {
	events   []notifications.Event
	payloads []notifications.Payload
}

func (n *fakeNotifier) Publish(ctx context.Context, event notifications.Event, payload notifications.Payload) error {
	n.events = append(n.events, event)
	n.payloads = append(n.payloads, payload)
	return nil
}

type fixture struct {
	pipeline   *Pipeline
	store      *recipes.Store
	clips      *audio.Store
	fetcher    *fakeFetcher
	structurer *fakeStructurer
	notifier   *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	clips, err := audio.NewStore(cfg.Paths.StaticDir)
	if err != nil {
		t.Fatalf("audio.NewStore: %v", err)
	}
	fetcher := &fakeFetcher{document: &fetch.SourceDocument{
		Content:  "Fetched recipe text.",
		Kind:     recipes.SourcePage,
		Title:    "Fetched Title",
		ImageURL: "https://example.com/tart.jpg",
	}}
	structurer := &fakeStructurer{build: func() *recipes.Recipe {
		return &recipes.Recipe{
			Title:       "Lemon Tart",
			SourceKind:  recipes.SourcePage,
			Ingredients: []recipes.Ingredient{{Name: "lemon", Amount: "2"}},
			Steps:       []recipes.Step{{Number: 1, Instruction: "Zest the lemons."}},
		}
	}}
	notifier := &fakeNotifier{}
	p := New(store, fetcher, structurer, clips, WithNotifier(notifier))
	return &fixture{pipeline: p, store: store, clips: clips, fetcher: fetcher, structurer: structurer, notifier: notifier}
}

// writeClip places a clip file under the static root and returns its address.
func writeClip(t *testing.T, clips *audio.Store, name string) string {
	t.Helper()
	path := filepath.Join(clips.StaticDir(), "audio", name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("clip"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	return "/static/audio/" + name
}

func TestProcessPersistsStructuredRecipe(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owner := recipes.Owner{UserID: "user-1"}

	if err := fx.store.SetUserVoice(ctx, "user-1", "en-GB-SoniaNeural"); err != nil {
		t.Fatalf("SetUserVoice: %v", err)
	}
	fx.fetcher.document.Content = strings.Repeat("x", 6000)
	clip := writeClip(t, fx.clips, "step1.mp3")
	fx.structurer.build = func() *recipes.Recipe {
		return &recipes.Recipe{
			Title:      "Lemon Tart",
			SourceKind: recipes.SourcePage,
			Steps:      []recipes.Step{{Number: 1, Instruction: "Zest.", AudioURL: clip}},
		}
	}

	recipe, err := fx.pipeline.Process(ctx, owner, "https://example.com/tart")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if recipe.ID == "" {
		t.Fatal("recipe id not assigned")
	}
	if recipe.Title != "Lemon Tart" {
		t.Fatalf("structured title was replaced with %q", recipe.Title)
	}
	if recipe.ImageURL != "https://example.com/tart.jpg" {
		t.Fatalf("image url = %q", recipe.ImageURL)
	}
	if recipe.UserID != "user-1" || recipe.AnonymousID != "" {
		t.Fatalf("owner = %q/%q", recipe.UserID, recipe.AnonymousID)
	}
	if len(recipe.RawContent) != 5000 {
		t.Fatalf("raw content kept %d chars", len(recipe.RawContent))
	}
	if fx.structurer.lastVoice != "en-GB-SoniaNeural" {
		t.Fatalf("structurer saw voice %q", fx.structurer.lastVoice)
	}
	if fx.structurer.lastKind != recipes.SourcePage {
		t.Fatalf("structurer saw kind %q", fx.structurer.lastKind)
	}

	stored, err := fx.store.GetByID(ctx, recipe.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetByID: %v, %v", stored, err)
	}
	refs, err := fx.store.AudioRefCount(ctx, clip)
	if err != nil {
		t.Fatalf("AudioRefCount: %v", err)
	}
	if refs != 1 {
		t.Fatalf("clip has %d references", refs)
	}

	if len(fx.notifier.events) != 1 || fx.notifier.events[0] != notifications.EventRecipeProcessed {
		t.Fatalf("events = %v", fx.notifier.events)
	}
	if fx.notifier.payloads[0]["title"] != "Lemon Tart" {
		t.Fatalf("notification payload = %v", fx.notifier.payloads[0])
	}
}

func TestProcessTitleFallbacks(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.structurer.build = func() *recipes.Recipe {
		return &recipes.Recipe{SourceKind: recipes.SourcePage}
	}
	recipe, err := fx.pipeline.Process(ctx, recipes.Owner{UserID: "u"}, "https://example.com/one")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if recipe.Title != "Fetched Title" {
		t.Fatalf("title = %q, want document title", recipe.Title)
	}

	fx.fetcher.document = &fetch.SourceDocument{Content: "text", Kind: recipes.SourcePage}
	recipe, err = fx.pipeline.Process(ctx, recipes.Owner{UserID: "u"}, "https://example.com/two")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if recipe.Title != "Untitled Recipe" {
		t.Fatalf("title = %q, want fallback", recipe.Title)
	}
}

func TestProcessIdempotentPerOwnerAndURL(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	url := "https://example.com/tart"

	first, err := fx.pipeline.Process(ctx, recipes.Owner{UserID: "user-1"}, url)
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}
	second, err := fx.pipeline.Process(ctx, recipes.Owner{UserID: "user-1"}, url)
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay created a new recipe: %s vs %s", second.ID, first.ID)
	}
	if fx.fetcher.calls != 1 {
		t.Fatalf("replay fetched again: %d calls", fx.fetcher.calls)
	}

	other, err := fx.pipeline.Process(ctx, recipes.Owner{AnonymousID: "anon-9"}, url)
	if err != nil {
		t.Fatalf("other owner Process: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("different owners shared one row")
	}
	if fx.fetcher.calls != 2 {
		t.Fatalf("expected a second fetch for the other owner, got %d", fx.fetcher.calls)
	}
}

func TestProcessInsertRaceReturnsWinnerAndDiscardsClips(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owner := recipes.Owner{UserID: "user-1"}
	url := "https://example.com/tart"

	clip := writeClip(t, fx.clips, "loser.mp3")
	var winner *recipes.Recipe
	fx.structurer.hook = func() {
		winner = testsupport.InsertRecipe(t, fx.store, "Winner", url, owner)
	}
	fx.structurer.build = func() *recipes.Recipe {
		return &recipes.Recipe{
			Title:      "Loser",
			SourceKind: recipes.SourcePage,
			Steps:      []recipes.Step{{Number: 1, Instruction: "Zest.", AudioURL: clip}},
		}
	}

	got, err := fx.pipeline.Process(ctx, owner, url)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.ID != winner.ID {
		t.Fatalf("race did not resolve to the winning row: %s vs %s", got.ID, winner.ID)
	}
	if fx.clips.Exists(clip) {
		t.Fatal("losing attempt's clip survived")
	}
}

func TestProcessPersistenceFailureCleansUpAndSurfacesOneError(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	clip := writeClip(t, fx.clips, "orphan.mp3")
	fx.structurer.hook = func() {
		fx.store.Close()
	}
	fx.structurer.build = func() *recipes.Recipe {
		return &recipes.Recipe{
			Title:      "Doomed",
			SourceKind: recipes.SourcePage,
			Steps:      []recipes.Step{{Number: 1, Instruction: "Zest.", AudioURL: clip}},
		}
	}

	_, err := fx.pipeline.Process(ctx, recipes.Owner{UserID: "u"}, "https://example.com/tart")
	if !errors.Is(err, services.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if fx.clips.Exists(clip) {
		t.Fatal("synthesized clip not cleaned up after insert failure")
	}
}

func TestProcessReturnsFetchErrors(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.err = services.Wrap(services.ErrFetch, "fetch", "get", "status 503", nil)

	_, err := fx.pipeline.Process(context.Background(), recipes.Owner{UserID: "u"}, "https://example.com/x")
	if !errors.Is(err, services.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if fx.structurer.calls != 0 {
		t.Fatal("structurer ran despite fetch failure")
	}
	if len(fx.notifier.events) != 1 || fx.notifier.events[0] != notifications.EventProcessingFailed {
		t.Fatalf("events = %v", fx.notifier.events)
	}
}

func TestProcessKeepsDegradedRecipes(t *testing.T) {
	fx := newFixture(t)
	fx.structurer.err = services.Wrap(services.ErrStructuringDegraded, "structure", "parse", "model output unparsable", nil)

	recipe, err := fx.pipeline.Process(context.Background(), recipes.Owner{UserID: "u"}, "https://example.com/x")
	if err != nil {
		t.Fatalf("degraded structuring should still persist, got %v", err)
	}
	stored, getErr := fx.store.GetByID(context.Background(), recipe.ID)
	if getErr != nil || stored == nil {
		t.Fatalf("degraded recipe not persisted: %v, %v", stored, getErr)
	}
}

func TestProcessRejectsEmptyURL(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.pipeline.Process(context.Background(), recipes.Owner{}, "   ")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if fx.fetcher.calls != 0 {
		t.Fatal("fetch ran for an empty url")
	}
}

func TestDeleteAuthorization(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owned := testsupport.InsertRecipe(t, fx.store, "Mine", "https://example.com/mine", recipes.Owner{UserID: "user-1"})
	legacy := testsupport.InsertRecipe(t, fx.store, "Legacy", "https://example.com/legacy", recipes.Owner{})

	if err := fx.pipeline.Delete(ctx, recipes.Owner{}, owned.ID); !errors.Is(err, services.ErrOwnership) {
		t.Fatalf("anonymous delete: expected ErrOwnership, got %v", err)
	}
	if err := fx.pipeline.Delete(ctx, recipes.Owner{UserID: "intruder"}, owned.ID); !errors.Is(err, services.ErrOwnership) {
		t.Fatalf("foreign delete: expected ErrOwnership, got %v", err)
	}
	if err := fx.pipeline.Delete(ctx, recipes.Owner{UserID: "user-1"}, "no-such-id"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing row: expected ErrNotFound, got %v", err)
	}

	if err := fx.pipeline.Delete(ctx, recipes.Owner{UserID: "anyone"}, legacy.ID); err != nil {
		t.Fatalf("legacy rows should be deletable by any identified caller: %v", err)
	}
	if err := fx.pipeline.Delete(ctx, recipes.Owner{UserID: "user-1"}, owned.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if remaining, err := fx.store.GetByID(ctx, owned.ID); err != nil || remaining != nil {
		t.Fatalf("row survived deletion: %v, %v", remaining, err)
	}
}

func TestSharedClipsSurviveUntilLastReference(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	ownerA := recipes.Owner{UserID: "user-a"}
	ownerB := recipes.Owner{UserID: "user-b"}

	clip := writeClip(t, fx.clips, "shared.mp3")
	original := &recipes.Recipe{
		Title:      "Shared",
		SourceURL:  "https://example.com/shared",
		SourceKind: recipes.SourcePage,
		UserID:     ownerA.UserID,
		Steps:      []recipes.Step{{Number: 1, Instruction: "Stir.", AudioURL: clip}},
	}
	if err := fx.store.Insert(ctx, original); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	saved, err := fx.pipeline.Save(ctx, ownerB, original.ID)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Steps[0].AudioURL != clip {
		t.Fatalf("copy does not share the clip: %q", saved.Steps[0].AudioURL)
	}

	if err := fx.pipeline.Delete(ctx, ownerA, original.ID); err != nil {
		t.Fatalf("delete original: %v", err)
	}
	if !fx.clips.Exists(clip) {
		t.Fatal("clip removed while the copy still references it")
	}

	if err := fx.pipeline.Delete(ctx, ownerB, saved.ID); err != nil {
		t.Fatalf("delete copy: %v", err)
	}
	if fx.clips.Exists(clip) {
		t.Fatal("clip survived the last referencing row")
	}
}

func TestSaveSemantics(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owner := recipes.Owner{UserID: "user-a"}
	original := testsupport.InsertRecipe(t, fx.store, "Original", "https://example.com/orig", owner)

	if _, err := fx.pipeline.Save(ctx, recipes.Owner{}, original.ID); !errors.Is(err, services.ErrOwnership) {
		t.Fatalf("anonymous save: expected ErrOwnership, got %v", err)
	}
	if _, err := fx.pipeline.Save(ctx, owner, "no-such-id"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing source: expected ErrNotFound, got %v", err)
	}

	own, err := fx.pipeline.Save(ctx, owner, original.ID)
	if err != nil {
		t.Fatalf("saving own recipe: %v", err)
	}
	if own.ID != original.ID {
		t.Fatalf("saving own recipe duplicated it: %s vs %s", own.ID, original.ID)
	}

	other := recipes.Owner{UserID: "user-b"}
	copy1, err := fx.pipeline.Save(ctx, other, original.ID)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if copy1.ID == original.ID {
		t.Fatal("copy reused the source row")
	}
	if copy1.UserID != "user-b" || copy1.Title != "Original" || copy1.SourceURL != original.SourceURL {
		t.Fatalf("copy fields: %+v", copy1)
	}

	copy2, err := fx.pipeline.Save(ctx, other, original.ID)
	if err != nil {
		t.Fatalf("repeat Save: %v", err)
	}
	if copy2.ID != copy1.ID {
		t.Fatalf("repeat save duplicated: %s vs %s", copy2.ID, copy1.ID)
	}
}

func TestMigrateReassignsAnonymousRows(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	anon := recipes.Owner{AnonymousID: "anon-7"}
	testsupport.InsertRecipe(t, fx.store, "One", "https://example.com/1", anon)
	testsupport.InsertRecipe(t, fx.store, "Two", "https://example.com/2", anon)
	testsupport.InsertRecipe(t, fx.store, "Mine", "https://example.com/3", recipes.Owner{UserID: "user-1"})

	if _, err := fx.pipeline.Migrate(ctx, "", "anon-7"); !errors.Is(err, services.ErrOwnership) {
		t.Fatalf("expected ErrOwnership, got %v", err)
	}
	if _, err := fx.pipeline.Migrate(ctx, "user-1", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	migrated, err := fx.pipeline.Migrate(ctx, "user-1", "anon-7")
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if migrated != 2 {
		t.Fatalf("migrated %d rows, want 2", migrated)
	}
	rows, err := fx.store.List(ctx, recipes.Owner{UserID: "user-1"}, 0, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("user owns %d rows after migration", len(rows))
	}
}
