package recipes

import (
	"strings"
	"time"
)

// SourceKind classifies where a recipe's content came from.
type SourceKind string

const (
	// SourcePage marks content extracted from a recipe web page.
	SourcePage SourceKind = "page"
	// SourceVideo marks content derived from a video (transcript,
	// transcribed audio, or description).
	SourceVideo SourceKind = "video"
)

// Ingredient is one entry in a recipe's ingredient list.
type Ingredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount,omitempty"`
	Unit   string `json:"unit,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// Step is one numbered instruction. Numbers form a contiguous 1-based
// sequence matching list order. AudioURL is set once narration for the step
// has been synthesized and never mutated afterwards.
type Step struct {
	Number      int    `json:"number"`
	Instruction string `json:"instruction"`
	Duration    string `json:"duration,omitempty"`
	Tips        string `json:"tips,omitempty"`
	AudioURL    string `json:"audio_url,omitempty"`
}

// Owner identifies who a recipe belongs to. At most one of the fields is
// set; the zero Owner denotes a legacy/public recipe with no owner.
type Owner struct {
	UserID      string
	AnonymousID string
}

// ResolveOwner applies the ownership precedence rule: an authenticated
// identity wins over a client-supplied anonymous identity, so the two are
// never set simultaneously.
func ResolveOwner(userID, anonymousID string) Owner {
	userID = strings.TrimSpace(userID)
	anonymousID = strings.TrimSpace(anonymousID)
	if userID != "" {
		return Owner{UserID: userID}
	}
	return Owner{AnonymousID: anonymousID}
}

// IsZero reports whether the owner carries no identity at all.
func (o Owner) IsZero() bool {
	return o.UserID == "" && o.AnonymousID == ""
}

// Label renders the owner for logs: "user:<id>", "anon:<id>", or "".
func (o Owner) Label() string {
	switch {
	case o.UserID != "":
		return "user:" + o.UserID
	case o.AnonymousID != "":
		return "anon:" + o.AnonymousID
	default:
		return ""
	}
}

// Recipe is the persisted result of one ingestion. Time fields such as
// PrepTime are free-text as produced by structuring ("10 minutes"), not
// parsed durations.
type Recipe struct {
	ID                  string       `json:"id"`
	Title               string       `json:"title"`
	SourceURL           string       `json:"source_url"`
	SourceKind          SourceKind   `json:"source_kind"`
	Description         string       `json:"description,omitempty"`
	ImageURL            string       `json:"image_url,omitempty"`
	PrepTime            string       `json:"prep_time,omitempty"`
	CookTime            string       `json:"cook_time,omitempty"`
	TotalTime           string       `json:"total_time,omitempty"`
	Servings            string       `json:"servings,omitempty"`
	Ingredients         []Ingredient `json:"ingredients"`
	Steps               []Step       `json:"steps"`
	Tags                []string     `json:"tags,omitempty"`
	RawContent          string       `json:"-"`
	IntroText           string       `json:"intro_text,omitempty"`
	OutroText           string       `json:"outro_text,omitempty"`
	IntroAudioURL       string       `json:"intro_audio_url,omitempty"`
	OutroAudioURL       string       `json:"outro_audio_url,omitempty"`
	IngredientsAudioURL string       `json:"ingredients_audio_url,omitempty"`
	UserID              string       `json:"user_id,omitempty"`
	AnonymousID         string       `json:"anonymous_user_id,omitempty"`
	IsPublic            bool         `json:"is_public"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// Owner returns the recipe's ownership identity.
func (r *Recipe) Owner() Owner {
	return Owner{UserID: r.UserID, AnonymousID: r.AnonymousID}
}

// AudioAddresses collects every clip address the recipe references:
// intro, outro, the ingredients narration, and each step. The result is
// de-duplicated and keeps first-seen order.
func (r *Recipe) AudioAddresses() []string {
	seen := make(map[string]struct{})
	var addresses []string
	add := func(url string) {
		if url == "" {
			return
		}
		if _, ok := seen[url]; ok {
			return
		}
		seen[url] = struct{}{}
		addresses = append(addresses, url)
	}

	add(r.IntroAudioURL)
	add(r.OutroAudioURL)
	add(r.IngredientsAudioURL)
	for _, step := range r.Steps {
		add(step.AudioURL)
	}
	return addresses
}

// RenumberSteps rewrites step numbers into the contiguous 1-based sequence
// implied by list order.
func RenumberSteps(steps []Step) {
	for i := range steps {
		steps[i].Number = i + 1
	}
}
