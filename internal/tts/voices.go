package tts

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed voices.yaml
var voicesYAML []byte

// Voice describes one narration voice from the embedded catalogue.
type Voice struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Locale      string `yaml:"locale" json:"locale"`
	Gender      string `yaml:"gender" json:"gender"`
	Description string `yaml:"description" json:"description"`
	SampleURL   string `yaml:"-" json:"sample_url,omitempty"`
}

// catalogue keeps the embedded order; the first entry is the default voice.
var catalogue = loadCatalogue()

func loadCatalogue() []Voice {
	var doc struct {
		Voices []Voice `yaml:"voices"`
	}
	if err := yaml.Unmarshal(voicesYAML, &doc); err != nil {
		panic(fmt.Sprintf("tts: parse embedded voice catalogue: %v", err))
	}
	if len(doc.Voices) == 0 {
		panic("tts: embedded voice catalogue is empty")
	}
	return doc.Voices
}

// Catalogue returns a copy of the voice catalogue in its embedded order.
func Catalogue() []Voice {
	voices := make([]Voice, len(catalogue))
	copy(voices, catalogue)
	return voices
}

// DefaultVoiceID returns the id of the catalogue's first voice.
func DefaultVoiceID() string {
	return catalogue[0].ID
}

// IsSupportedVoice reports whether id names a catalogue voice.
func IsSupportedVoice(id string) bool {
	for _, voice := range catalogue {
		if voice.ID == id {
			return true
		}
	}
	return false
}

// ResolveVoice maps a stored or requested voice preference onto the
// catalogue. Empty and unknown preferences resolve to the default voice, so
// the result is always synthesizable.
func ResolveVoice(id string) string {
	if IsSupportedVoice(id) {
		return id
	}
	return DefaultVoiceID()
}
