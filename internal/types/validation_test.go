package types

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultKeyValidationConfig(t *testing.T) {
	cfg := DefaultKeyValidationConfig()

	if cfg.MaxKeyLength != 64 {
		t.Errorf("MaxKeyLength = %d, want 64", cfg.MaxKeyLength)
	}
	if !cfg.NormalizeGTIN {
		t.Error("NormalizeGTIN = false, want true")
	}
	if cfg.RequireValidChecksum {
		t.Error("RequireValidChecksum = true, want false")
	}
}

func TestKeyValidator_Canonical(t *testing.T) {
	tests := []struct {
		name    string
		config  KeyValidationConfig
		code    string
		want    string
		wantErr bool
	}{
		{
			name:   "valid EAN-13 unchanged",
			config: DefaultKeyValidationConfig(),
			code:   "7891000100103",
			want:   "7891000100103",
		},
		{
			name:   "UPC-A widened to EAN-13",
			config: DefaultKeyValidationConfig(),
			code:   "036000291452",
			want:   "0036000291452",
		},
		{
			name:   "separators stripped",
			config: DefaultKeyValidationConfig(),
			code:   "789 1000 100103",
			want:   "7891000100103",
		},
		{
			name:   "normalization disabled keeps raw code",
			config: KeyValidationConfig{MaxKeyLength: 64},
			code:   "036000291452",
			want:   "036000291452",
		},
		{
			name:    "empty rejected",
			config:  DefaultKeyValidationConfig(),
			code:    "",
			wantErr: true,
		},
		{
			name:    "only separators rejected",
			config:  DefaultKeyValidationConfig(),
			code:    " - ",
			wantErr: true,
		},
		{
			name:    "too long rejected",
			config:  DefaultKeyValidationConfig(),
			code:    strings.Repeat("1", 65),
			wantErr: true,
		},
		{
			name:    "control character rejected",
			config:  DefaultKeyValidationConfig(),
			code:    "789\x00100",
			wantErr: true,
		},
		{
			name:    "whitespace rejected without normalization",
			config:  KeyValidationConfig{MaxKeyLength: 64},
			code:    "789 100",
			wantErr: true,
		},
		{
			name:   "bad checksum accepted by default",
			config: DefaultKeyValidationConfig(),
			code:   "7891000100104",
			want:   "7891000100104",
		},
		{
			name:    "bad checksum rejected when required",
			config:  KeyValidationConfig{MaxKeyLength: 64, NormalizeGTIN: true, RequireValidChecksum: true},
			code:    "7891000100104",
			wantErr: true,
		},
		{
			name:   "internal codes skip checksum",
			config: KeyValidationConfig{MaxKeyLength: 64, NormalizeGTIN: true, RequireValidChecksum: true},
			code:   "SKU-00042",
			want:   "SKU00042",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewKeyValidator(tt.config)
			got, err := v.Canonical(tt.code)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Canonical(%q) = %q, want error", tt.code, got)
				}
				if !errors.Is(err, ErrInvalidBarcode) {
					t.Errorf("error should wrap ErrInvalidBarcode, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Canonical(%q) error = %v", tt.code, err)
			}
			if got != tt.want {
				t.Errorf("Canonical(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestIsInvalidBarcode(t *testing.T) {
	if IsInvalidBarcode(nil) {
		t.Error("IsInvalidBarcode(nil) = true")
	}
	if !IsInvalidBarcode(DefaultKeyValidator.Validate("")) {
		t.Error("IsInvalidBarcode(empty key error) = false")
	}
	if IsInvalidBarcode(errors.New("other")) {
		t.Error("IsInvalidBarcode(other) = true")
	}
}

func BenchmarkKeyValidator_Canonical(b *testing.B) {
	v := NewKeyValidator(DefaultKeyValidationConfig())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = v.Canonical("036000291452")
	}
}
