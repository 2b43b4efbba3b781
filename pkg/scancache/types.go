package scancache

import (
	"github.com/LavishGent/scancache/internal/barcode"
	"github.com/LavishGent/scancache/internal/types"
)

type (
	// BarcodeDraft is a product lookup result to be cached.
	BarcodeDraft = types.BarcodeDraft
	// CachedBarcode is a decoded cache record.
	CachedBarcode = types.CachedBarcode
	// ProductData holds the product attributes of a barcode.
	ProductData = types.ProductData
	// Source identifies where product data came from.
	Source = types.Source
	// Popularity classifies an entry by how often it is read.
	Popularity = types.Popularity
	// BlobStore is the storage behind the local tier.
	BlobStore = types.BlobStore
	// RemoteStore is the storage behind the remote tier.
	RemoteStore = types.RemoteStore
	// RemoteEntry is one remote tier row.
	RemoteEntry = types.RemoteEntry
	// MetricsRecorder receives cache events.
	MetricsRecorder = types.MetricsRecorder
	// Logger provides logging operations.
	Logger = types.Logger
	// Symbology is a GS1 retail barcode format.
	Symbology = barcode.Symbology
)

const (
	SourceLocal         = types.SourceLocal
	SourceCosmos        = types.SourceCosmos
	SourceOpenFoodFacts = types.SourceOpenFoodFacts
	SourceManual        = types.SourceManual
)

const (
	PopularityLow    = types.PopularityLow
	PopularityMedium = types.PopularityMedium
	PopularityHigh   = types.PopularityHigh
)

// ParseSource maps a provenance string to a Source.
func ParseSource(s string) Source {
	return types.ParseSource(s)
}

// NormalizeBarcode strips separators and widens a valid UPC-A to EAN-13.
func NormalizeBarcode(code string) string {
	return barcode.Normalize(code)
}

// ValidateBarcode checks the GS1 check digit of a retail barcode.
func ValidateBarcode(code string) error {
	return barcode.Validate(code)
}

// DetectSymbology returns the barcode format implied by code's length.
func DetectSymbology(code string) Symbology {
	return barcode.Detect(barcode.Clean(code))
}
