package intent

import (
	"regexp"
	"strings"
)

type Kind string

const (
	KindSummary  Kind = "summary"
	KindGreeting Kind = "greeting"
	KindOther    Kind = "other"
)

// Result is the outcome of classifying one message.
type Result struct {
	Intent        Kind    `json:"intent"`
	Confidence    float64 `json:"confidence"`
	EntityMention bool    `json:"entityMention"`
}

// Signal adds Weight to the score when Pattern matches the lowercased text.
type Signal struct {
	Pattern *regexp.Regexp
	Weight  int
}

// Classifier is a table-driven keyword scorer. Confidence is
// min(1, score/Normalizer); the message gets Label when confidence is
// strictly above Threshold. A Classifier is immutable and safe for
// concurrent use.
type Classifier struct {
	Label      Kind
	Signals    []Signal
	Normalizer float64
	Threshold  float64
	// EntityPattern, when set, flags entity-id-shaped tokens and adds
	// EntityWeight to the score.
	EntityPattern *regexp.Regexp
	EntityWeight  int
}

// DefaultEntityPattern matches ids like "bmw-x5m-003" or "fl-204".
var DefaultEntityPattern = regexp.MustCompile(`\b[a-z][a-z0-9]*(?:-[a-z0-9]+)*-\d{2,4}\b`)

// NewFleetSummary returns the classifier used by the generic-LLM route to
// spot aggregate fleet questions.
func NewFleetSummary(entityPattern *regexp.Regexp) *Classifier {
	if entityPattern == nil {
		entityPattern = DefaultEntityPattern
	}
	return &Classifier{
		Label: KindSummary,
		Signals: []Signal{
			// strong
			{regexp.MustCompile(`\bhow many\b`), 3},
			{regexp.MustCompile(`\bfleet summary\b|\bfleet\b`), 3},
			{regexp.MustCompile(`\boverall health\b|\boverall status\b`), 2},
			{regexp.MustCompile(`\boperational\b|\boperational state\b|\bout-of-service\b`), 2},
			{regexp.MustCompile(`\btotal vehicles\b|\btotal cars\b|\btotal flights\b`), 2},
			// moderate
			{regexp.MustCompile(`\bsummary\b`), 1},
			{regexp.MustCompile(`\bhealth\b`), 1},
		},
		Normalizer:    6,
		Threshold:     0.25,
		EntityPattern: entityPattern,
		EntityWeight:  1,
	}
}

// NewGreeting returns the classifier used by the agent route to answer
// plain greetings locally.
func NewGreeting() *Classifier {
	return &Classifier{
		Label: KindGreeting,
		Signals: []Signal{
			{regexp.MustCompile(`\b(hello|hi|hey)\b`), 3},
		},
		Normalizer: 3,
		Threshold:  0.5,
	}
}

// Classify scores text. It has no side effects; empty text is KindOther
// with zero confidence.
func (c *Classifier) Classify(text string) Result {
	t := strings.ToLower(text)
	score := 0
	for _, s := range c.Signals {
		if s.Pattern.MatchString(t) {
			score += s.Weight
		}
	}
	mention := c.EntityPattern != nil && c.EntityPattern.MatchString(t)
	if mention {
		score += c.EntityWeight
	}

	confidence := 0.0
	if c.Normalizer > 0 {
		confidence = float64(score) / c.Normalizer
	}
	if confidence > 1 {
		confidence = 1
	}
	kind := KindOther
	if confidence > c.Threshold {
		kind = c.Label
	}
	return Result{Intent: kind, Confidence: confidence, EntityMention: mention}
}
