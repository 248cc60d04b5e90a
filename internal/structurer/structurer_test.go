package structurer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ladle/internal/fetch"
	"ladle/internal/recipes"
	"ladle/internal/services"
)

type fakeGenerator struct {
	budget     int
	response   string
	err        error
	lastSystem string
	lastPrompt string
}

func (g *fakeGenerator) Generate(_ context.Context, systemPrompt, prompt string) (string, error) {
	g.lastSystem = systemPrompt
	g.lastPrompt = prompt
	return g.response, g.err
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) ContentBudget() int {
	if g.budget > 0 {
		return g.budget
	}
	return 12000
}

type fakeTranscriber struct {
	fakeGenerator
	transcript     string
	transcribeErr  error
	transcribedRef string
}

func (g *fakeTranscriber) Transcribe(_ context.Context, audioPath string) (string, error) {
	g.transcribedRef = audioPath
	return g.transcript, g.transcribeErr
}

type fakeNarrator struct {
	called bool
	voice  string
}

func (n *fakeNarrator) SynthesizeRecipe(_ context.Context, recipe *recipes.Recipe, voiceID string) {
	n.called = true
	n.voice = voiceID
	recipe.IntroAudioURL = "/static/audio/intro.mp3"
}

func tempAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yt_audio_test.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestStructureMapsWellFormedResponse(t *testing.T) {
	gen := &fakeGenerator{response: `{
		"title": "Pancakes",
		"description": "Fluffy breakfast pancakes",
		"intro_text": "Let's make pancakes!",
		"outro_text": "Enjoy your breakfast!",
		"prep_time": "10 minutes",
		"cook_time": null,
		"total_time": "25 minutes",
		"servings": "4",
		"ingredients": [
			{"name": "flour", "amount": "200", "unit": "g", "notes": "sifted"},
			"a pinch of salt"
		],
		"steps": [
			{"number": 5, "instruction": "Whisk the dry ingredients.", "duration": null, "tips": "Sift for extra fluff"},
			{"number": 9, "instruction": "Fry until golden.", "duration": "3 minutes"}
		],
		"tags": ["breakfast", "easy"]
	}`}

	result, err := New(gen).Structure(context.Background(), "some page text", recipes.SourcePage, "")
	if err != nil {
		t.Fatalf("Structure returned error: %v", err)
	}
	if result.Title != "Pancakes" || result.Servings != "4" || result.PrepTime != "10 minutes" {
		t.Fatalf("scalar fields wrong: %+v", result)
	}
	if result.CookTime != "" {
		t.Fatalf("null field should map to empty, got %q", result.CookTime)
	}
	if len(result.Ingredients) != 2 || result.Ingredients[1].Name != "a pinch of salt" {
		t.Fatalf("ingredients wrong: %+v", result.Ingredients)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("steps wrong: %+v", result.Steps)
	}
	if result.Steps[0].Number != 1 || result.Steps[1].Number != 2 {
		t.Fatalf("steps not renumbered: %+v", result.Steps)
	}
	if result.Steps[0].Tips != "Sift for extra fluff" || result.Steps[1].Duration != "3 minutes" {
		t.Fatalf("step details wrong: %+v", result.Steps)
	}
	if len(result.Tags) != 2 || result.SourceKind != recipes.SourcePage {
		t.Fatalf("tags/kind wrong: %+v", result)
	}
	if !strings.Contains(gen.lastSystem, "MANY SMALL STEPS") {
		t.Fatal("system prompt missing")
	}
	if !strings.Contains(gen.lastPrompt, "Parse this page content") {
		t.Fatalf("prompt missing source kind: %q", gen.lastPrompt[:80])
	}
}

func TestStructureStripsCodeFences(t *testing.T) {
	gen := &fakeGenerator{response: "```json\n{\"title\": \"Toast\", \"steps\": [{\"number\": 1, \"instruction\": \"Toast the bread.\"}]}\n```"}
	result, err := New(gen).Structure(context.Background(), "text", recipes.SourcePage, "")
	if err != nil {
		t.Fatalf("Structure returned error: %v", err)
	}
	if result.Title != "Toast" || len(result.Steps) != 1 {
		t.Fatalf("fenced response not handled: %+v", result)
	}
}

func TestStructureRepairsTruncatedOutput(t *testing.T) {
	// Truncated after a complete step element, the common tail when the
	// model hits its token limit.
	gen := &fakeGenerator{response: `{"title": "Pancakes", "ingredients": [], "steps": [{"number": 1, "instruction": "Mix the batter thoroughly."},`}
	result, err := New(gen).Structure(context.Background(), "text", recipes.SourcePage, "")
	if err != nil {
		t.Fatalf("Structure returned error: %v", err)
	}
	if result.Title != "Pancakes" || len(result.Steps) != 1 {
		t.Fatalf("truncated output not repaired: %+v", result)
	}
}

func TestStructureBalancesUnterminatedString(t *testing.T) {
	gen := &fakeGenerator{response: `{"title": "Half a pancake rec`}
	result, err := New(gen).Structure(context.Background(), "text", recipes.SourcePage, "")
	if err != nil {
		t.Fatalf("Structure returned error: %v", err)
	}
	if result.Title != "Half a pancake rec" {
		t.Fatalf("quote balancing failed: %+v", result)
	}
}

func TestStructureExtractsObjectFromProse(t *testing.T) {
	gen := &fakeGenerator{response: "Here is your recipe:\n{\"title\": \"Toast\", \"steps\": [{\"number\": 1, \"instruction\": \"Toast the bread.\"}]}\nEnjoy!"}
	result, err := New(gen).Structure(context.Background(), "text", recipes.SourcePage, "")
	if err != nil {
		t.Fatalf("Structure returned error: %v", err)
	}
	if result.Title != "Toast" {
		t.Fatalf("object span not extracted: %+v", result)
	}
}

func TestStructureSplitsLazySteps(t *testing.T) {
	blob := strings.TrimSpace(strings.Repeat("Stir the mixture over low heat until it thickens nicely. ", 7))
	gen := &fakeGenerator{response: `{"title": "Custard", "steps": [{"number": 1, "instruction": "` + blob + `"}]}`}

	result, err := New(gen).Structure(context.Background(), "text", recipes.SourcePage, "")
	if err != nil {
		t.Fatalf("Structure returned error: %v", err)
	}
	if len(result.Steps) < 2 {
		t.Fatalf("lazy step not split: %d steps", len(result.Steps))
	}
	for i, step := range result.Steps {
		if step.Number != i+1 {
			t.Fatalf("steps not contiguous after split: %+v", result.Steps)
		}
		if !strings.HasSuffix(step.Instruction, ".") {
			t.Fatalf("split sentence missing period: %q", step.Instruction)
		}
		if strings.HasSuffix(step.Instruction, "..") {
			t.Fatalf("split sentence double period: %q", step.Instruction)
		}
	}
}

func TestStructureKeepsShortStepLists(t *testing.T) {
	gen := &fakeGenerator{response: `{"title": "Tea", "steps": [{"number": 1, "instruction": "Boil water."}, {"number": 2, "instruction": "Steep the tea."}]}`}
	result, err := New(gen).Structure(context.Background(), "text", recipes.SourcePage, "")
	if err != nil {
		t.Fatalf("Structure returned error: %v", err)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("short instructions must not be split: %+v", result.Steps)
	}
}

func TestStructureDegradesOnUnparsableOutput(t *testing.T) {
	gen := &fakeGenerator{response: "I am sorry, I cannot produce a recipe today."}
	result, err := New(gen).Structure(context.Background(), "The original page text to preserve.", recipes.SourcePage, "")
	if !errors.Is(err, services.ErrStructuringDegraded) {
		t.Fatalf("expected degraded sentinel, got %v", err)
	}
	if result == nil {
		t.Fatal("degraded result must not be nil")
	}
	if result.Title != "Untitled Recipe" || result.Description != "Could not parse recipe description" {
		t.Fatalf("degraded fields wrong: %+v", result)
	}
	if len(result.Steps) != 1 || !strings.Contains(result.Steps[0].Instruction, "original page text") {
		t.Fatalf("degraded step must carry the input excerpt: %+v", result.Steps)
	}
	if result.Ingredients == nil || result.Tags == nil {
		t.Fatal("degraded lists must be empty, not nil")
	}
}

func TestStructureDegradesOnGeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	result, err := New(gen).Structure(context.Background(), "content", recipes.SourceVideo, "")
	if !errors.Is(err, services.ErrStructuringDegraded) {
		t.Fatalf("expected degraded sentinel, got %v", err)
	}
	if result == nil || result.Title != "Untitled Recipe" || result.SourceKind != recipes.SourceVideo {
		t.Fatalf("degraded result wrong: %+v", result)
	}
}

func TestStructureTruncatesAtSentenceBoundary(t *testing.T) {
	content := strings.Repeat("a", 85) + ". " + strings.Repeat("b", 60)
	gen := &fakeGenerator{budget: 100, response: `{"title": "T", "steps": []}`}

	if _, err := New(gen).Structure(context.Background(), content, recipes.SourcePage, ""); err != nil {
		t.Fatalf("Structure returned error: %v", err)
	}
	if !strings.Contains(gen.lastPrompt, "[Content truncated for processing]") {
		t.Fatal("truncation notice missing")
	}
	if strings.Contains(gen.lastPrompt, "bbbb") {
		t.Fatalf("content not cut at sentence boundary:\n%s", gen.lastPrompt)
	}
}

func TestStructureShortContentNotTruncated(t *testing.T) {
	gen := &fakeGenerator{budget: 100, response: `{"title": "T", "steps": []}`}
	if _, err := New(gen).Structure(context.Background(), "short text", recipes.SourcePage, ""); err != nil {
		t.Fatalf("Structure returned error: %v", err)
	}
	if strings.Contains(gen.lastPrompt, "[Content truncated for processing]") {
		t.Fatal("short content must not carry a truncation notice")
	}
}

func TestStructureTranscribesAudioSentinel(t *testing.T) {
	audioPath := tempAudioFile(t)
	gen := &fakeTranscriber{
		fakeGenerator: fakeGenerator{response: `{"title": "Soup", "steps": [{"number": 1, "instruction": "Stir."}]}`},
		transcript:    "stir the soup until warm",
	}

	result, err := New(gen).Structure(context.Background(), fetch.AudioSentinelPrefix+audioPath, recipes.SourceVideo, "")
	if err != nil {
		t.Fatalf("Structure returned error: %v", err)
	}
	if result.Title != "Soup" {
		t.Fatalf("result wrong: %+v", result)
	}
	if gen.transcribedRef != audioPath {
		t.Fatalf("transcriber got %q, want %q", gen.transcribedRef, audioPath)
	}
	if !strings.Contains(gen.lastPrompt, "stir the soup until warm") {
		t.Fatal("transcript not fed to the model")
	}
	if _, err := os.Stat(audioPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("temp audio file should be removed after transcription")
	}
}

func TestStructureNonTranscribingProviderSubstitutesNotice(t *testing.T) {
	audioPath := tempAudioFile(t)
	gen := &fakeGenerator{response: `{"title": "T", "steps": []}`}

	if _, err := New(gen).Structure(context.Background(), fetch.AudioSentinelPrefix+audioPath, recipes.SourceVideo, ""); err != nil {
		t.Fatalf("Structure returned error: %v", err)
	}
	if !strings.Contains(gen.lastPrompt, "Audio transcription is currently only supported with Gemini provider.") {
		t.Fatal("provider notice missing from prompt")
	}
	if _, err := os.Stat(audioPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("temp audio file should be removed even without transcription")
	}
}

func TestStructureFailedTranscriptionSubstitutesNotice(t *testing.T) {
	audioPath := tempAudioFile(t)
	gen := &fakeTranscriber{
		fakeGenerator: fakeGenerator{response: `{"title": "T", "steps": []}`},
		transcribeErr: errors.New("upload failed"),
	}

	if _, err := New(gen).Structure(context.Background(), fetch.AudioSentinelPrefix+audioPath, recipes.SourceVideo, ""); err != nil {
		t.Fatalf("Structure returned error: %v", err)
	}
	if !strings.Contains(gen.lastPrompt, "Could not transcribe audio from video.") {
		t.Fatal("transcription-failure notice missing from prompt")
	}
	if _, err := os.Stat(audioPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("temp audio file should be removed after a failed transcription")
	}
}

func TestStructureTriggersNarration(t *testing.T) {
	gen := &fakeGenerator{response: `{"title": "Toast", "intro_text": "Hello!", "steps": [{"number": 1, "instruction": "Toast."}]}`}
	narrator := &fakeNarrator{}

	result, err := New(gen, WithNarrator(narrator)).Structure(context.Background(), "text", recipes.SourcePage, "en-GB-SoniaNeural")
	if err != nil {
		t.Fatalf("Structure returned error: %v", err)
	}
	if !narrator.called || narrator.voice != "en-GB-SoniaNeural" {
		t.Fatalf("narrator not invoked with the voice: %+v", narrator)
	}
	if result.IntroAudioURL != "/static/audio/intro.mp3" {
		t.Fatal("narrator mutation not visible on the returned recipe")
	}
}
