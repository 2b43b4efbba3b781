// Package policy computes entry lifetimes and popularity for cached barcodes.
package policy

import (
	"math"
	"time"

	"github.com/LavishGent/scancache/internal/config"
	"github.com/LavishGent/scancache/internal/types"
)

// fieldWeights drive the completeness factor. Identity fields count double.
var fieldWeights = []struct {
	name   string
	weight int
}{
	{"name", 2},
	{"brand", 2},
	{"category", 2},
	{"image", 2},
	{"description", 1},
	{"nutritionalInfo", 1},
	{"weight", 1},
	{"volume", 1},
}

var totalWeight = func() int {
	total := 0
	for _, f := range fieldWeights {
		total += f.weight
	}
	return total
}()

// Policy applies the TTL and popularity rules.
type Policy struct {
	ttl        config.TTLConfig
	popularity config.PopularityConfig
}

// New creates a Policy from configuration.
func New(ttl config.TTLConfig, popularity config.PopularityConfig) *Policy {
	return &Policy{ttl: ttl, popularity: popularity}
}

// Default returns a Policy built from DefaultConfig.
func Default() *Policy {
	cfg := config.DefaultConfig()
	return New(cfg.TTL, cfg.Popularity)
}

// ClampConfidence bounds a confidence score to [0,1]. NaN becomes 0.
func ClampConfidence(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

// BaseTTL selects the confidence bucket.
func (p *Policy) BaseTTL(confidence float64) time.Duration {
	c := ClampConfidence(confidence)
	switch {
	case c >= p.ttl.HighConfidence:
		return p.ttl.High
	case c >= p.ttl.MediumConfidence:
		return p.ttl.Medium
	case c >= p.ttl.LowConfidence:
		return p.ttl.Low
	default:
		return p.ttl.Default
	}
}

// SourceFactor returns the reliability multiplier for a source.
func (p *Policy) SourceFactor(source types.Source) float64 {
	if f, ok := p.ttl.SourceFactors[string(source)]; ok && f > 0 {
		return f
	}
	return 1.0
}

// Completeness returns the weighted fraction of expected fields present, in [0,1].
func Completeness(pd *types.ProductData) float64 {
	if pd == nil {
		return 0
	}
	achieved := 0
	for _, f := range fieldWeights {
		if pd.HasField(f.name) {
			achieved += f.weight
		}
	}
	return float64(achieved) / float64(totalWeight)
}

// CompletenessFactor maps completeness onto [0.5, 1.0].
func CompletenessFactor(pd *types.ProductData) float64 {
	return 0.5 + 0.5*Completeness(pd)
}

// TTL computes the lifetime of a draft: the confidence bucket scaled by the
// source factor and the completeness factor, never below the configured minimum.
func (p *Policy) TTL(draft *types.BarcodeDraft) time.Duration {
	base := p.BaseTTL(draft.ConfidenceScore)
	factor := p.SourceFactor(draft.Source) * CompletenessFactor(&draft.ProductData)

	ttl := time.Duration(float64(base) * factor)
	if ttl < p.ttl.Minimum {
		return p.ttl.Minimum
	}
	return ttl
}

// ExpiresAt returns now plus the draft's TTL.
func (p *Policy) ExpiresAt(now time.Time, draft *types.BarcodeDraft) time.Time {
	return now.Add(p.TTL(draft))
}

// Classify returns the popularity for an access count. The result is never
// lower than current.
func (p *Policy) Classify(accessCount int, current types.Popularity) types.Popularity {
	next := types.PopularityLow
	switch {
	case accessCount >= p.popularity.HighThreshold:
		next = types.PopularityHigh
	case accessCount >= p.popularity.MediumThreshold:
		next = types.PopularityMedium
	}
	if current > next {
		return current
	}
	return next
}

// Touch records a hit on entry at now.
func (p *Policy) Touch(entry *types.LocalEntry, now time.Time) {
	entry.AccessCount++
	entry.LastAccessedAt = now
	entry.Popularity = p.Classify(entry.AccessCount, entry.Popularity)
}
