package services_test

import (
	"context"
	"testing"

	"ladle/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRecipeID(ctx, "f2c1")
	ctx = services.WithStage(ctx, "structure")
	ctx = services.WithOwner(ctx, "user:42")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.RecipeIDFromContext(ctx); !ok || id != "f2c1" {
		t.Fatalf("unexpected recipe id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "structure" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if owner, ok := services.OwnerFromContext(ctx); !ok || owner != "user:42" {
		t.Fatalf("unexpected owner: %v %v", owner, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithOwner(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.OwnerFromContext(ctx); ok {
		t.Fatal("expected no owner value")
	}
}
