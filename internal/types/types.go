// Package types provides shared types for the scancache barcode cache.
// This package breaks import cycles between pkg/scancache and internal/cache.
package types

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Tier names used in errors, logs, and metrics.
const (
	TierLocal  = "local"
	TierRemote = "remote"
)

// Source identifies where a product payload came from.
type Source string

const (
	SourceLocal         Source = "local"
	SourceCosmos        Source = "cosmos"
	SourceOpenFoodFacts Source = "openfoodfacts"
	SourceManual        Source = "manual"
)

// ParseSource maps a free-form provenance string to a Source. Unknown values
// are kept as-is so the TTL policy can apply its neutral factor.
func ParseSource(s string) Source {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return SourceLocal
	case "cosmos":
		return SourceCosmos
	case "openfoodfacts", "open-food-facts", "off":
		return SourceOpenFoodFacts
	case "manual":
		return SourceManual
	case "":
		return SourceLocal
	default:
		return Source(strings.ToLower(strings.TrimSpace(s)))
	}
}

func (s Source) String() string {
	return string(s)
}

// Popularity classifies an entry by cumulative access count.
type Popularity int

const (
	PopularityLow Popularity = iota + 1
	PopularityMedium
	PopularityHigh
)

func (p Popularity) String() string {
	switch p {
	case PopularityLow:
		return "low"
	case PopularityMedium:
		return "medium"
	case PopularityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the popularity as its name.
func (p Popularity) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts the popularity name. Unknown names decode as low.
func (p *Popularity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "high":
		*p = PopularityHigh
	case "medium":
		*p = PopularityMedium
	default:
		*p = PopularityLow
	}
	return nil
}

// BarcodeDraft is what a caller hands to CacheBarcode after a network lookup.
type BarcodeDraft struct {
	Barcode         string
	ProductData     ProductData
	Source          Source
	ConfidenceScore float64
}

// LocalEntry is the persisted local tier representation.
type LocalEntry struct {
	Barcode         string          `json:"barcode"`
	Data            json.RawMessage `json:"data"`
	Compressed      bool            `json:"compressed"`
	Source          Source          `json:"source"`
	ConfidenceScore float64         `json:"confidenceScore"`
	CreatedAt       time.Time       `json:"createdAt"`
	ExpiresAt       time.Time       `json:"expiresAt"`
	LastAccessedAt  time.Time       `json:"lastAccessedAt"`
	AccessCount     int             `json:"accessCount"`
	Popularity      Popularity      `json:"popularity"`
}

// IsExpired reports whether the entry is past its expiry at now.
func (e *LocalEntry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// RemoteEntry is one row of the remote barcode_cache table.
type RemoteEntry struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Barcode         string          `json:"barcode"`
	Data            json.RawMessage `json:"data"`
	Compressed      bool            `json:"compressed"`
	Source          Source          `json:"source"`
	ConfidenceScore float64         `json:"confidenceScore"`
	ExpiresAt       time.Time       `json:"expiresAt"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// IsExpired reports whether the row is past its expiry at now.
func (e *RemoteEntry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// CachedBarcode is the decoded, normalized record returned to callers.
type CachedBarcode struct {
	// Barcode is the canonical key, not the code as scanned: separators are
	// stripped and 12-digit UPC-A is widened to 13-digit EAN-13, so
	// "036000291452" comes back as "0036000291452". Compare scans with
	// barcode.Normalize(code).
	Barcode         string
	ProductData     ProductData
	Source          Source
	ConfidenceScore float64
	CreatedAt       time.Time
	ExpiresAt       time.Time
	LastAccessedAt  time.Time
	AccessCount     int
	Popularity      Popularity
	// Tier is the tier that served the record ("local", "remote"), or empty
	// for the record returned by a write.
	Tier string
}
