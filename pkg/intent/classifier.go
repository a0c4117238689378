// Package intent maps free-text prompts onto a closed set of intent labels.
//
// Classification is a two-stage decision. The semantic stage embeds the
// prompt and takes, per intent, the maximum cosine similarity against that
// intent's prototype embeddings; the winning intent is confident when its
// score reaches the threshold. When the semantic stage is not confident, a
// lexical stage scans for override wording and, if it fires, labels the
// prompt admin_override while keeping the sub-threshold semantic score as the
// confidence. Everything else is the unknown sentinel.
package intent

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/arbiterai/arbiter-oss/pkg/domain"
)

// DefaultThreshold is the minimum similarity for the semantic stage to be
// considered confident.
const DefaultThreshold = 0.38

// Embedder turns text into an embedding vector. Implementations must be safe
// for concurrent use; the gateway calls Embed from many request goroutines.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Option adjusts classifier construction.
type Option func(*Classifier)

// WithThreshold overrides the semantic confidence threshold.
func WithThreshold(thr float64) Option {
	return func(c *Classifier) { c.threshold = thr }
}

// Classifier holds the frozen prototype embeddings. All fields are read-only
// after construction, so Predict is safe to call concurrently.
type Classifier struct {
	embedder  Embedder
	threshold float64
	intents   []string
	protos    map[string][][]float64
}

// NewClassifier embeds every prototype phrase up front and returns a
// classifier over the frozen vectors. An embedding failure here is fatal to
// the caller: the gateway must not serve decisions without a working
// classifier.
func NewClassifier(ctx context.Context, embedder Embedder, protos Prototypes, opts ...Option) (*Classifier, error) {
	if embedder == nil {
		return nil, fmt.Errorf("intent: embedder is required")
	}
	if len(protos) == 0 {
		return nil, fmt.Errorf("intent: at least one prototype group is required")
	}

	c := &Classifier{
		embedder:  embedder,
		threshold: DefaultThreshold,
		protos:    make(map[string][][]float64, len(protos)),
	}
	for _, opt := range opts {
		opt(c)
	}

	for label, phrases := range protos {
		if len(phrases) == 0 {
			return nil, fmt.Errorf("intent: prototype group %q is empty", label)
		}
		vecs := make([][]float64, 0, len(phrases))
		for _, phrase := range phrases {
			vec, err := embedder.Embed(ctx, phrase)
			if err != nil {
				return nil, fmt.Errorf("intent: embed prototype %q: %w", phrase, err)
			}
			vecs = append(vecs, normalize(vec))
		}
		c.protos[label] = vecs
		c.intents = append(c.intents, label)
	}
	sort.Strings(c.intents)

	return c, nil
}

// Predict runs both stages and returns the combined result. The confidence is
// always the best semantic score, even for lexically-triggered overrides and
// unknown results (see domain.IntentResult).
func (c *Classifier) Predict(ctx context.Context, text string) (domain.IntentResult, error) {
	label, score, err := c.Semantic(ctx, text)
	if err != nil {
		return domain.IntentResult{}, err
	}

	if score >= c.threshold {
		return domain.IntentResult{Intent: label, Confidence: score}, nil
	}

	if LexicalOverride(text) {
		return domain.IntentResult{Intent: domain.IntentAdminOverride, Confidence: score}, nil
	}

	return domain.IntentResult{Intent: domain.IntentUnknown, Confidence: score}, nil
}

// Semantic runs only the embedding stage and returns the best-matching label
// with its max-similarity score, without applying the threshold. Exposed so
// the stage can be tested in isolation from the lexical fallback.
func (c *Classifier) Semantic(ctx context.Context, text string) (string, float64, error) {
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return "", 0, fmt.Errorf("intent: embed prompt: %w", err)
	}
	q := normalize(vec)

	bestLabel, bestScore := domain.IntentUnknown, 0.0
	for _, label := range c.intents {
		for _, proto := range c.protos[label] {
			if score := dot(proto, q); score > bestScore {
				bestScore, bestLabel = score, label
			}
		}
	}
	return bestLabel, bestScore, nil
}

// Ready performs a dry-run classification. Readiness probes call this so an
// unavailable embedding backend reports not-ready instead of failing requests.
func (c *Classifier) Ready(ctx context.Context) error {
	if _, err := c.Predict(ctx, "ping"); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrClassifierNotReady, err)
	}
	return nil
}

// Threshold returns the configured semantic confidence threshold.
func (c *Classifier) Threshold() float64 { return c.threshold }

func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
