package structurer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"ladle/internal/fetch"
	"ladle/internal/llm"
	"ladle/internal/logging"
	"ladle/internal/recipes"
	"ladle/internal/services"
	"ladle/internal/textutil"
)

// systemPrompt instructs the model to emit the exact recipe schema. The
// many-small-steps rule is load-bearing: narration quality depends on
// short, single-action steps.
const systemPrompt = `You are an expert recipe structurer. Your ONLY job is to convert raw text into a perfectly structured JSON recipe.

CRITICAL RULE: YOU MUST SPLIT INSTRUCTIONS INTO MANY SMALL STEPS.
- ❌ BAD: "Preheat oven to 350. Mix dry ingredients in a bowl. Add wet ingredients and stir until combined." (This is 1 step. REJECTED.)
- ✅ GOOD:
  [
    {"number": 1, "instruction": "Preheat oven to 350°F."},
    {"number": 2, "instruction": "In a large bowl, whisk together flour, sugar, and salt."},
    {"number": 3, "instruction": "Pour in the milk and eggs."},
    {"number": 4, "instruction": "Stir gently until just combined."}
  ]

REQUIREMENTS:
1.  **Break it down:** If a paragraph contains 5 actions, create 5 separate steps.
2.  **No Chatter:** Do not include intro text ("Here is your recipe..."). Return ONLY JSON.
3.  **Expressive Instructions:** Write clear, descriptive instructions. Do not be overly concise. Include helpful details (e.g., "Mix until the batter is smooth and no lumps remain" instead of just "Mix"). Explain WHY an action is taken if the context provides it. **If a step is very short (e.g. "Chop onions"), expand it to be more conversational and guiding (e.g. "Finely chop the onions, being careful to keep the pieces uniform for even cooking.").**
4.  **Clean Text:** Remove "Step 1", "1.", icons, emojis, or navigation text from the instructions.
5.  **Ingredients:** Extract all ingredients precisely.
6.  **Tips:** If the content contains pro-tips, secrets, or advice, include them in the 'tips' field of the relevant step.
7.  **Intro/Outro:**
    -   **intro_text:** A brief, welcoming 1-2 sentence overview of what we are cooking.
    -   **outro_text:** A friendly concluding sentence (e.g. "Serve hot and enjoy your meal!").
8.  **Structure:** Follow this JSON schema EXACTLY:

{
    "title": "String",
    "description": "String",
    "intro_text": "String",
    "outro_text": "String",
    "prep_time": "String or null",
    "cook_time": "String or null",
    "total_time": "String or null",
    "servings": "String or null",
    "ingredients": [
        {"name": "String", "amount": "String", "unit": "String", "notes": "String"}
    ],
    "steps": [
        {"number": Integer, "instruction": "String", "duration": "String or null", "tips": "String or null"}
    ],
    "tags": ["String"]
}`

const userPromptFormat = `Parse this %s content into the structured JSON format defined above.

CONTENT:
%s

REMEMBER: Split instructions into as many small, logical steps as possible. Do not lump them together.`

const truncationNotice = "\n\n[Content truncated for processing]"

// degraded-recipe constants: the fallback must preserve enough of the
// input for the user to recover the recipe manually.
const (
	degradedTitle       = "Untitled Recipe"
	degradedDescription = "Could not parse recipe description"
	degradedExcerptMax  = 500
)

// Narrator fills a recipe's audio addresses in place. Per-clip failures
// are absorbed by the implementation, never surfaced here.
type Narrator interface {
	SynthesizeRecipe(ctx context.Context, recipe *recipes.Recipe, voiceID string)
}

// Structurer drives generation, repair, and inline narration.
type Structurer struct {
	generator llm.Generator
	narrator  Narrator
	logger    *slog.Logger
}

// Option adjusts a Structurer.
type Option func(*Structurer)

// WithNarrator wires narration synthesis into structuring.
func WithNarrator(narrator Narrator) Option {
	return func(s *Structurer) { s.narrator = narrator }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Structurer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a Structurer around the given generation backend.
func New(generator llm.Generator, opts ...Option) *Structurer {
	s := &Structurer{
		generator: generator,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Structure converts raw source text into a recipe. Model and parse
// failures return a degraded-but-usable recipe together with an error
// wrapping services.ErrStructuringDegraded; only context cancellation
// yields a nil recipe.
func (s *Structurer) Structure(ctx context.Context, content string, kind recipes.SourceKind, voiceID string) (*recipes.Recipe, error) {
	log := logging.WithContext(ctx, s.logger)
	content = s.resolveAudioSentinel(ctx, content)
	truncated := truncate(content, s.generator.ContentBudget())

	prompt := fmt.Sprintf(userPromptFormat, kind, truncated)
	response, err := s.generator.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrTransient, "structure", "generate", "request ended", err)
		}
		log.Error("generation failed, degrading", "provider", s.generator.Name(), "error", err)
		return s.degraded(truncated, kind), services.Wrap(services.ErrStructuringDegraded, "structure", "generate", s.generator.Name(), err)
	}

	cleaned := stripFences(response)
	data, ok := repairJSON(cleaned)
	if !ok {
		if span, found := largestObjectSpan(cleaned); found {
			data, ok = repairJSON(span)
		}
	}
	if !ok {
		log.Error("model output unparsable, degrading", "provider", s.generator.Name(), "output", summarize(response))
		return s.degraded(truncated, kind), services.Wrap(services.ErrStructuringDegraded, "structure", "parse", "model output unparsable", nil)
	}

	recipe := mapRecipe(data, kind)
	splitLazySteps(recipe)
	recipes.RenumberSteps(recipe.Steps)

	if s.narrator != nil {
		s.narrator.SynthesizeRecipe(services.WithStage(ctx, "synthesize"), recipe, voiceID)
	}
	return recipe, nil
}

// resolveAudioSentinel replaces an audio-file marker with its
// transcription. The temp audio file is removed whatever the outcome; the
// substitute strings keep downstream stages responding instead of erroring.
func (s *Structurer) resolveAudioSentinel(ctx context.Context, content string) string {
	if !strings.HasPrefix(content, fetch.AudioSentinelPrefix) {
		return content
	}
	audioPath := strings.TrimSpace(strings.TrimPrefix(content, fetch.AudioSentinelPrefix))
	defer func() {
		if err := os.Remove(audioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("temp audio file not removed", "path", audioPath, "error", err)
		}
	}()

	transcriber, ok := s.generator.(llm.Transcriber)
	if !ok {
		return "Audio transcription is currently only supported with Gemini provider."
	}

	transcript, err := transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		s.logger.Warn("audio transcription failed", "path", audioPath, "error", err)
	}
	if transcript = strings.TrimSpace(transcript); transcript == "" {
		return "Could not transcribe audio from video."
	}
	return transcript
}

func (s *Structurer) degraded(truncated string, kind recipes.SourceKind) *recipes.Recipe {
	excerpt := textutil.CapRunes(truncated, degradedExcerptMax)
	return &recipes.Recipe{
		Title:       degradedTitle,
		Description: degradedDescription,
		SourceKind:  kind,
		Ingredients: []recipes.Ingredient{},
		Steps:       []recipes.Step{{Number: 1, Instruction: excerpt}},
		Tags:        []string{},
	}
}

// truncate cuts content to the provider budget, preferring the last
// sentence boundary inside the tail 20% so the model never sees a
// mid-sentence cut.
func truncate(content string, budget int) string {
	if budget <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= budget {
		return content
	}

	cut := runes[:budget]
	lastPeriod := -1
	for i := len(cut) - 1; i >= 0; i-- {
		if cut[i] == '.' {
			lastPeriod = i
			break
		}
	}
	if float64(lastPeriod) > float64(budget)*0.8 {
		cut = cut[:lastPeriod+1]
	}
	return string(cut) + truncationNotice
}

// splitLazySteps re-splits a collapsed instruction blob into sentence
// steps when the model ignored the many-small-steps rule.
func splitLazySteps(recipe *recipes.Recipe) {
	if len(recipe.Steps) == 0 || len(recipe.Steps) >= 3 {
		return
	}
	first := recipe.Steps[0].Instruction
	if len([]rune(first)) <= 300 {
		return
	}

	var split []recipes.Step
	for _, sentence := range strings.Split(first, ". ") {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		split = append(split, recipes.Step{Instruction: strings.TrimSuffix(sentence, ".") + "."})
	}
	if len(split) > 1 {
		recipe.Steps = split
	}
}

func summarize(response string) string {
	collapsed := textutil.CollapseSpaces(response)
	if collapsed == "" {
		return "<empty>"
	}
	return textutil.EllipsizeRunes(collapsed, 200)
}
