package types

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/LavishGent/scancache/internal/barcode"
)

// KeyValidationConfig contains configuration for barcode key validation.
type KeyValidationConfig struct {
	MaxKeyLength int
	// NormalizeGTIN strips separators and widens UPC-A to EAN-13.
	NormalizeGTIN bool
	// RequireValidChecksum rejects numeric retail codes with a bad check digit.
	RequireValidChecksum bool
}

// DefaultKeyValidationConfig returns a KeyValidationConfig with default values.
func DefaultKeyValidationConfig() KeyValidationConfig {
	return KeyValidationConfig{
		MaxKeyLength:         64,
		NormalizeGTIN:        true,
		RequireValidChecksum: false,
	}
}

// KeyValidator validates and canonicalizes scanned barcodes before they are
// used as cache keys.
type KeyValidator struct {
	config KeyValidationConfig
}

// NewKeyValidator creates a new KeyValidator with the given configuration.
func NewKeyValidator(config KeyValidationConfig) *KeyValidator {
	return &KeyValidator{config: config}
}

// Canonical validates code and returns the key it is cached under.
func (v *KeyValidator) Canonical(code string) (string, error) {
	key := code
	if v.config.NormalizeGTIN {
		key = barcode.Normalize(code)
	}

	if key == "" {
		return "", fmt.Errorf("%w: barcode cannot be empty", ErrInvalidBarcode)
	}

	if v.config.MaxKeyLength > 0 && len(key) > v.config.MaxKeyLength {
		return "", fmt.Errorf("%w: length %d exceeds maximum %d bytes",
			ErrInvalidBarcode, len(key), v.config.MaxKeyLength)
	}

	if !utf8.ValidString(key) {
		return "", fmt.Errorf("%w: contains invalid UTF-8", ErrInvalidBarcode)
	}

	for i, r := range key {
		if r < 32 || r == 127 {
			return "", fmt.Errorf("%w: control character at position %d", ErrInvalidBarcode, i)
		}
		if unicode.IsSpace(r) {
			return "", fmt.Errorf("%w: whitespace at position %d", ErrInvalidBarcode, i)
		}
	}

	// Only retail symbologies carry a check digit; internal codes pass through.
	if v.config.RequireValidChecksum && barcode.Detect(key) != barcode.Unknown {
		if err := barcode.Validate(key); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidBarcode, err)
		}
	}

	return key, nil
}

// Validate checks if a barcode is acceptable as a cache key.
func (v *KeyValidator) Validate(code string) error {
	_, err := v.Canonical(code)
	return err
}

// DefaultKeyValidator is the default key validator instance.
var DefaultKeyValidator = NewKeyValidator(DefaultKeyValidationConfig())

// IsInvalidBarcode returns true if the error indicates an invalid barcode.
func IsInvalidBarcode(err error) bool {
	return errors.Is(err, ErrInvalidBarcode)
}
