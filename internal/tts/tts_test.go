package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"ladle/internal/audio"
	"ladle/internal/config"
	"ladle/internal/recipes"
	"ladle/internal/services"
)

type speechRecorder struct {
	mu       sync.Mutex
	requests []speechRequest
}

func (r *speechRecorder) add(req speechRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
}

func (r *speechRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *speechRecorder) all() []speechRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]speechRequest(nil), r.requests...)
}

// newSpeechServer fakes the speech endpoint. status decides the response
// code per request (0 means success); successful responses carry the voice
// and input so tests can check what was rendered.
func newSpeechServer(t *testing.T, status func(speechRequest) int) (*httptest.Server, *speechRecorder) {
	t.Helper()
	recorder := &speechRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		var req speechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode speech request: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		recorder.add(req)
		if status != nil {
			if code := status(req); code != 0 {
				http.Error(w, "synthesis unavailable", code)
				return
			}
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3:" + req.Voice + ":" + req.Input))
	}))
	t.Cleanup(server.Close)
	return server, recorder
}

func newTestSynthesizer(t *testing.T, serverURL string) *Synthesizer {
	t.Helper()
	store, err := audio.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s := New(config.TTS{BaseURL: serverURL, Model: "tts-1", TimeoutSeconds: 5}, store)
	s.engine.(*speechClient).retryInitial = time.Millisecond
	return s
}

func TestResolveVoice(t *testing.T) {
	if got := ResolveVoice(""); got != "en-US-ChristopherNeural" {
		t.Fatalf("empty voice resolved to %q", got)
	}
	if got := ResolveVoice("klingon-basso"); got != "en-US-ChristopherNeural" {
		t.Fatalf("unknown voice resolved to %q", got)
	}
	if got := ResolveVoice("en-GB-SoniaNeural"); got != "en-GB-SoniaNeural" {
		t.Fatalf("supported voice changed to %q", got)
	}
	if IsSupportedVoice("klingon-basso") {
		t.Fatal("unknown voice reported as supported")
	}
	if !IsSupportedVoice("en-AU-NatashaNeural") {
		t.Fatal("catalogue voice reported as unsupported")
	}
}

func TestCatalogueOrderAndIsolation(t *testing.T) {
	voices := Catalogue()
	if len(voices) != 4 {
		t.Fatalf("expected 4 voices, got %d", len(voices))
	}
	if voices[0].ID != DefaultVoiceID() {
		t.Fatalf("first voice %q is not the default %q", voices[0].ID, DefaultVoiceID())
	}
	if voices[0].Name != "Christopher" || voices[0].Locale != "en-US" || voices[0].Gender != "Male" {
		t.Fatalf("unexpected default voice %+v", voices[0])
	}

	voices[0].SampleURL = "/static/audio/samples/poisoned.mp3"
	if fresh := Catalogue(); fresh[0].SampleURL != "" {
		t.Fatal("mutating a Catalogue copy leaked into the shared catalogue")
	}
}

func TestIngredientsNarration(t *testing.T) {
	got := ingredientsNarration([]recipes.Ingredient{
		{Amount: "2", Unit: "cups", Name: "flour", Notes: "sifted"},
		{Name: "salt"},
		{},
	})
	want := "Ingredients. 2 cups flour, sifted. salt"
	if got != want {
		t.Fatalf("narration = %q, want %q", got, want)
	}

	if got := ingredientsNarration(nil); got != "" {
		t.Fatalf("empty list produced %q", got)
	}
	if got := ingredientsNarration([]recipes.Ingredient{{}}); got != "" {
		t.Fatalf("all-empty ingredient produced %q", got)
	}
}

func TestIngredientsNarrationCapsLength(t *testing.T) {
	got := ingredientsNarration([]recipes.Ingredient{
		{Name: strings.Repeat("x", 5000)},
	})
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("long narration not capped: ends %q", got[len(got)-10:])
	}
	if n := utf8.RuneCountInString(got); n != narrationMaxRunes+3 {
		t.Fatalf("capped narration is %d runes", n)
	}
}

func TestStepUtterance(t *testing.T) {
	base := recipes.Step{Number: 3, Instruction: "Fold in the cheese"}
	if got := stepUtterance(base); got != "Step 3. Fold in the cheese" {
		t.Fatalf("base utterance = %q", got)
	}

	base.Duration = "5 minutes"
	if got := stepUtterance(base); got != "Step 3. Fold in the cheese. Duration: 5 minutes." {
		t.Fatalf("utterance with duration = %q", got)
	}

	base.Tips = "Do not stir too hard"
	want := "Step 3. Fold in the cheese. Duration: 5 minutes.. Pro tip: Do not stir too hard."
	if got := stepUtterance(base); got != want {
		t.Fatalf("full utterance = %q, want %q", got, want)
	}
}

func TestSynthesizeRecipeFillsAllAddresses(t *testing.T) {
	server, recorder := newSpeechServer(t, nil)
	s := newTestSynthesizer(t, server.URL)

	recipe := &recipes.Recipe{
		IntroText: "Welcome to pancakes.",
		OutroText: "Enjoy your meal.",
		Ingredients: []recipes.Ingredient{
			{Amount: "1", Unit: "cup", Name: "milk"},
		},
		Steps: []recipes.Step{
			{Number: 1, Instruction: "Whisk the batter"},
			{Number: 2, Instruction: "Cook until golden", Duration: "3 minutes", Tips: "Flip once"},
		},
	}

	s.SynthesizeRecipe(context.Background(), recipe, "en-GB-SoniaNeural")

	if recorder.count() != 5 {
		t.Fatalf("expected 5 speech requests, got %d", recorder.count())
	}

	addresses := []string{
		recipe.IntroAudioURL,
		recipe.OutroAudioURL,
		recipe.IngredientsAudioURL,
		recipe.Steps[0].AudioURL,
		recipe.Steps[1].AudioURL,
	}
	seen := make(map[string]bool)
	for i, address := range addresses {
		if !strings.HasPrefix(address, "/static/audio/") || !strings.HasSuffix(address, ".mp3") {
			t.Fatalf("address %d = %q", i, address)
		}
		if seen[address] {
			t.Fatalf("address %q assigned twice", address)
		}
		seen[address] = true
		if !s.store.Exists(address) {
			t.Fatalf("no file behind %q", address)
		}
	}

	inputs := make(map[string]bool)
	for _, req := range recorder.all() {
		if req.Voice != "en-GB-SoniaNeural" {
			t.Fatalf("request used voice %q", req.Voice)
		}
		if req.Model != "tts-1" {
			t.Fatalf("request used model %q", req.Model)
		}
		if req.ResponseFormat != "mp3" {
			t.Fatalf("request asked for format %q", req.ResponseFormat)
		}
		inputs[req.Input] = true
	}
	for _, want := range []string{
		"Welcome to pancakes.",
		"Enjoy your meal.",
		"Ingredients. 1 cup milk",
		"Step 1. Whisk the batter",
		"Step 2. Cook until golden. Duration: 3 minutes.. Pro tip: Flip once.",
	} {
		if !inputs[want] {
			t.Fatalf("no request rendered %q; got %v", want, inputs)
		}
	}
}

func TestSynthesizeRecipeResolvesUnknownVoice(t *testing.T) {
	server, recorder := newSpeechServer(t, nil)
	s := newTestSynthesizer(t, server.URL)

	recipe := &recipes.Recipe{IntroText: "Hello."}
	s.SynthesizeRecipe(context.Background(), recipe, "alien-voice")

	all := recorder.all()
	if len(all) != 1 || all[0].Voice != "en-US-ChristopherNeural" {
		t.Fatalf("unknown voice was not defaulted: %+v", all)
	}
}

func TestSynthesizeRecipeIsolatesClipFailures(t *testing.T) {
	server, _ := newSpeechServer(t, func(req speechRequest) int {
		if strings.HasPrefix(req.Input, "Step 2.") {
			return http.StatusBadRequest
		}
		return 0
	})
	s := newTestSynthesizer(t, server.URL)

	recipe := &recipes.Recipe{
		IntroText: "Hi.",
		Steps: []recipes.Step{
			{Number: 1, Instruction: "Chop the onions"},
			{Number: 2, Instruction: "Summon the kraken"},
			{Number: 3, Instruction: "Serve immediately"},
		},
	}
	s.SynthesizeRecipe(context.Background(), recipe, "")

	if recipe.IntroAudioURL == "" {
		t.Fatal("intro clip lost to an unrelated failure")
	}
	if recipe.Steps[0].AudioURL == "" || recipe.Steps[2].AudioURL == "" {
		t.Fatalf("healthy steps lost audio: %q %q", recipe.Steps[0].AudioURL, recipe.Steps[2].AudioURL)
	}
	if recipe.Steps[1].AudioURL != "" {
		t.Fatalf("failed step carries address %q", recipe.Steps[1].AudioURL)
	}
}

func TestSynthesizeRecipeSkipsEmptyTargets(t *testing.T) {
	server, recorder := newSpeechServer(t, nil)
	s := newTestSynthesizer(t, server.URL)

	recipe := &recipes.Recipe{
		Steps: []recipes.Step{
			{Number: 1, Instruction: "   "},
			{Number: 2, Instruction: "Boil water"},
		},
	}
	s.SynthesizeRecipe(context.Background(), recipe, "")

	if recorder.count() != 1 {
		t.Fatalf("expected 1 speech request, got %d", recorder.count())
	}
	if recipe.IntroAudioURL != "" || recipe.OutroAudioURL != "" || recipe.IngredientsAudioURL != "" {
		t.Fatal("empty targets received addresses")
	}
	if recipe.Steps[0].AudioURL != "" {
		t.Fatal("blank step received an address")
	}
	if recipe.Steps[1].AudioURL == "" {
		t.Fatal("real step missing its address")
	}
}

func TestEnsureSampleCreatesOnce(t *testing.T) {
	server, recorder := newSpeechServer(t, nil)
	s := newTestSynthesizer(t, server.URL)

	address, err := s.EnsureSample(context.Background(), "en-US-JennyNeural")
	if err != nil {
		t.Fatalf("EnsureSample: %v", err)
	}
	if address != "/static/audio/samples/en-US-JennyNeural.mp3" {
		t.Fatalf("sample address = %q", address)
	}
	if !s.store.Exists(address) {
		t.Fatal("sample file missing")
	}

	again, err := s.EnsureSample(context.Background(), "en-US-JennyNeural")
	if err != nil {
		t.Fatalf("second EnsureSample: %v", err)
	}
	if again != address {
		t.Fatalf("sample address changed to %q", again)
	}
	if recorder.count() != 1 {
		t.Fatalf("expected 1 speech request, got %d", recorder.count())
	}
	if got := recorder.all()[0].Input; got != SampleText {
		t.Fatalf("sample rendered %q", got)
	}
}

func TestEnsureSampleWrapsSynthesisErrors(t *testing.T) {
	server, _ := newSpeechServer(t, func(speechRequest) int { return http.StatusBadRequest })
	s := newTestSynthesizer(t, server.URL)

	_, err := s.EnsureSample(context.Background(), "")
	if !errors.Is(err, services.ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
}

func TestVoicesIncludeSamples(t *testing.T) {
	server, recorder := newSpeechServer(t, nil)
	s := newTestSynthesizer(t, server.URL)

	plain := s.Voices(context.Background(), false)
	if recorder.count() != 0 {
		t.Fatalf("listing without samples hit the endpoint %d times", recorder.count())
	}
	for _, voice := range plain {
		if voice.SampleURL != "" {
			t.Fatalf("voice %s has sample address without synthesis", voice.ID)
		}
	}

	withSamples := s.Voices(context.Background(), true)
	if recorder.count() != len(withSamples) {
		t.Fatalf("expected %d sample requests, got %d", len(withSamples), recorder.count())
	}
	for _, voice := range withSamples {
		want := "/static/audio/samples/" + voice.ID + ".mp3"
		if voice.SampleURL != want {
			t.Fatalf("voice %s sample = %q, want %q", voice.ID, voice.SampleURL, want)
		}
		if !s.store.Exists(voice.SampleURL) {
			t.Fatalf("no file behind %q", voice.SampleURL)
		}
	}

	s.Voices(context.Background(), true)
	if recorder.count() != len(withSamples) {
		t.Fatalf("existing samples were re-synthesized: %d requests", recorder.count())
	}
}

func TestSpeakRetriesServerErrors(t *testing.T) {
	var calls int
	var mu sync.Mutex
	server, recorder := newSpeechServer(t, func(speechRequest) int {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return http.StatusServiceUnavailable
		}
		return 0
	})
	s := newTestSynthesizer(t, server.URL)

	clip, err := s.engine.speak(context.Background(), "hello", "en-US-ChristopherNeural")
	if err != nil {
		t.Fatalf("speak: %v", err)
	}
	if !strings.Contains(string(clip), "hello") {
		t.Fatalf("clip = %q", clip)
	}
	if recorder.count() != 2 {
		t.Fatalf("expected 2 requests, got %d", recorder.count())
	}
}

func TestSpeakDoesNotRetryClientErrors(t *testing.T) {
	server, recorder := newSpeechServer(t, func(speechRequest) int { return http.StatusUnprocessableEntity })
	s := newTestSynthesizer(t, server.URL)

	if _, err := s.engine.speak(context.Background(), "hello", "en-US-ChristopherNeural"); err == nil {
		t.Fatal("expected an error")
	}
	if recorder.count() != 1 {
		t.Fatalf("client error was retried: %d requests", recorder.count())
	}
}

func TestSpeakSendsBearerTokenAndPath(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Write([]byte("mp3"))
	}))
	t.Cleanup(server.Close)

	store, err := audio.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s := New(config.TTS{BaseURL: server.URL + "/v1/", Model: "tts-1", APIKey: "secret"}, store)

	if _, err := s.engine.speak(context.Background(), "hi", "en-US-ChristopherNeural"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotPath != "/v1/audio/speech" {
		t.Fatalf("path = %q", gotPath)
	}
}
