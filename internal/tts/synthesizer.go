package tts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"ladle/internal/audio"
	"ladle/internal/config"
	"ladle/internal/logging"
	"ladle/internal/recipes"
	"ladle/internal/services"
	"ladle/internal/textutil"
)

// SampleText is the fixed utterance rendered for voice preview clips.
const SampleText = "Hi! I'm your Ladle cooking companion. I'm here to walk you through every recipe step with confidence."

// narrationMaxRunes caps the composed ingredients narration; longer recipes
// are cut with a trailing ellipsis rather than rejected.
const narrationMaxRunes = 4000

// engine abstracts the speech endpoint for tests.
type engine interface {
	speak(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Synthesizer turns recipe text into narration clips and stores them as
// static files addressable by clients.
type Synthesizer struct {
	engine engine
	store  *audio.Store
	logger *slog.Logger
}

// Option adjusts a Synthesizer.
type Option func(*Synthesizer)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHTTPClient overrides the speech endpoint transport.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Synthesizer) {
		if sc, ok := s.engine.(*speechClient); ok && client != nil {
			sc.httpClient = client
		}
	}
}

// New builds a Synthesizer backed by the configured speech endpoint and
// storing clips through the given store.
func New(cfg config.TTS, store *audio.Store, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		engine: newSpeechClient(cfg, nil),
		store:  store,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SynthesizeRecipe fills the recipe's audio addresses in place: intro and
// outro text, a composed ingredients narration, and one clip per step. All
// clips are synthesized concurrently in a single batch; each goroutine
// writes only its own field, and a failed clip leaves its address empty.
func (s *Synthesizer) SynthesizeRecipe(ctx context.Context, recipe *recipes.Recipe, voiceID string) {
	if recipe == nil {
		return
	}
	voice := ResolveVoice(voiceID)
	log := logging.WithContext(ctx, s.logger).With(slog.String("voice", voice))

	var wg sync.WaitGroup

	if strings.TrimSpace(recipe.IntroText) != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if address, ok := s.clip(ctx, log, recipe.IntroText, voice, "intro"); ok {
				recipe.IntroAudioURL = address
			}
		}()
	}
	if strings.TrimSpace(recipe.OutroText) != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if address, ok := s.clip(ctx, log, recipe.OutroText, voice, "outro"); ok {
				recipe.OutroAudioURL = address
			}
		}()
	}
	if narration := ingredientsNarration(recipe.Ingredients); narration != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if address, ok := s.clip(ctx, log, narration, voice, "ingredients"); ok {
				recipe.IngredientsAudioURL = address
			}
		}()
	}
	for i := range recipe.Steps {
		step := &recipe.Steps[i]
		if strings.TrimSpace(step.Instruction) == "" {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			target := fmt.Sprintf("step %d", step.Number)
			if address, ok := s.clip(ctx, log, stepUtterance(*step), voice, target); ok {
				step.AudioURL = address
			}
		}()
	}

	wg.Wait()
}

// clip synthesizes one utterance and stores it. Failures are logged and
// reported through ok so callers can leave the address empty.
func (s *Synthesizer) clip(ctx context.Context, log *slog.Logger, text, voice, target string) (string, bool) {
	data, err := s.engine.speak(ctx, text, voice)
	if err != nil {
		log.Warn("synthesize clip failed", slog.String("target", target), slog.Any("error", err))
		return "", false
	}
	address, err := s.store.Write(data)
	if err != nil {
		log.Warn("store clip failed", slog.String("target", target), slog.Any("error", err))
		return "", false
	}
	return address, true
}

// EnsureSample synthesizes the preview clip for a voice if it does not exist
// yet and returns its address. Samples are named after the voice, so repeat
// calls are free once the file is on disk.
func (s *Synthesizer) EnsureSample(ctx context.Context, voiceID string) (string, error) {
	voice := ResolveVoice(voiceID)
	address := s.store.SampleAddress(voice)
	if s.store.Exists(address) {
		return address, nil
	}
	data, err := s.engine.speak(ctx, SampleText, voice)
	if err != nil {
		return "", services.Wrap(services.ErrSynthesis, "synthesize", "sample", voice, err)
	}
	address, err = s.store.WriteSample(voice, data)
	if err != nil {
		return "", services.Wrap(services.ErrSynthesis, "synthesize", "store sample", voice, err)
	}
	return address, nil
}

// Voices lists the catalogue. When includeSamples is set every voice's
// preview clip is synthesized (missing ones concurrently) and its address
// attached; a voice whose sample fails is listed without one.
func (s *Synthesizer) Voices(ctx context.Context, includeSamples bool) []Voice {
	voices := Catalogue()
	if !includeSamples {
		return voices
	}

	var wg sync.WaitGroup
	for i := range voices {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			address, err := s.EnsureSample(ctx, voices[i].ID)
			if err != nil {
				s.logger.Warn("voice sample failed", slog.String("voice", voices[i].ID), slog.Any("error", err))
				return
			}
			voices[i].SampleURL = address
		}()
	}
	wg.Wait()
	return voices
}

// ingredientsNarration composes the single utterance read before cooking
// starts: "Ingredients. " followed by one "amount unit name, notes" entry
// per ingredient. Entries with no text at all are skipped.
func ingredientsNarration(ingredients []recipes.Ingredient) string {
	if len(ingredients) == 0 {
		return ""
	}
	items := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		parts := make([]string, 0, 3)
		if strings.TrimSpace(ing.Amount) != "" {
			parts = append(parts, ing.Amount)
		}
		if strings.TrimSpace(ing.Unit) != "" {
			parts = append(parts, ing.Unit)
		}
		if strings.TrimSpace(ing.Name) != "" {
			parts = append(parts, ing.Name)
		}
		item := strings.Join(parts, " ")
		if strings.TrimSpace(ing.Notes) != "" {
			item += ", " + ing.Notes
		}
		if item == "" {
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return ""
	}
	narration := "Ingredients. " + strings.Join(items, ". ")
	return textutil.EllipsizeRunes(narration, narrationMaxRunes)
}

// stepUtterance composes the spoken form of one step, folding duration and
// tips into the narration when present.
func stepUtterance(step recipes.Step) string {
	utterance := fmt.Sprintf("Step %d. %s", step.Number, step.Instruction)
	if strings.TrimSpace(step.Duration) != "" {
		utterance += fmt.Sprintf(". Duration: %s.", step.Duration)
	}
	if strings.TrimSpace(step.Tips) != "" {
		utterance += fmt.Sprintf(". Pro tip: %s.", step.Tips)
	}
	return utterance
}
