package testsupport

import (
	"context"
	"testing"

	"ladle/internal/config"
	"ladle/internal/recipes"
)

// MustOpenStore opens a recipes.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *recipes.Store {
	t.Helper()

	store, err := recipes.Open(cfg)
	if err != nil {
		t.Fatalf("recipes.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// InsertRecipe persists a minimal recipe for tests and returns it.
func InsertRecipe(t testing.TB, store *recipes.Store, title, sourceURL string, owner recipes.Owner) *recipes.Recipe {
	t.Helper()

	recipe := &recipes.Recipe{
		Title:       title,
		SourceURL:   sourceURL,
		SourceKind:  recipes.SourcePage,
		UserID:      owner.UserID,
		AnonymousID: owner.AnonymousID,
		Ingredients: []recipes.Ingredient{{Name: "salt", Amount: "1", Unit: "tsp"}},
		Steps:       []recipes.Step{{Number: 1, Instruction: "Season to taste."}},
	}
	if err := store.Insert(context.Background(), recipe); err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return recipe
}
