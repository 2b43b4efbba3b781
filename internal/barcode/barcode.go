// Package barcode implements GS1 check digit arithmetic for the retail
// symbologies a grocery scanner reports: EAN-8, UPC-A, EAN-13 and GTIN-14.
package barcode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmpty       = errors.New("barcode: empty")
	ErrNotNumeric  = errors.New("barcode: contains non-digit characters")
	ErrLength      = errors.New("barcode: unsupported length")
	ErrCheckDigit  = errors.New("barcode: check digit mismatch")
	ErrPrefixRange = errors.New("barcode: prefix too long for body")
)

// Symbology identifies a GS1 retail barcode format by its digit count.
type Symbology int

const (
	Unknown Symbology = iota
	EAN8
	UPCA
	EAN13
	GTIN14
)

func (s Symbology) String() string {
	switch s {
	case EAN8:
		return "EAN-8"
	case UPCA:
		return "UPC-A"
	case EAN13:
		return "EAN-13"
	case GTIN14:
		return "GTIN-14"
	default:
		return "unknown"
	}
}

// Length returns the number of digits, check digit included.
func (s Symbology) Length() int {
	switch s {
	case EAN8:
		return 8
	case UPCA:
		return 12
	case EAN13:
		return 13
	case GTIN14:
		return 14
	default:
		return 0
	}
}

// Clean strips the separators scanners and people insert into codes.
func Clean(code string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '\t', '\n', '\r':
			return -1
		}
		return r
	}, code)
}

// Detect returns the symbology implied by the length of a cleaned numeric code.
func Detect(code string) Symbology {
	if !isDigits(code) {
		return Unknown
	}
	switch len(code) {
	case 8:
		return EAN8
	case 12:
		return UPCA
	case 13:
		return EAN13
	case 14:
		return GTIN14
	default:
		return Unknown
	}
}

// CheckDigit computes the GS1 mod-10 check digit for body, which is the code
// without its final digit. Weights alternate 3,1 starting from the rightmost
// body digit.
func CheckDigit(body string) (int, error) {
	if body == "" {
		return 0, ErrEmpty
	}
	if !isDigits(body) {
		return 0, ErrNotNumeric
	}

	sum := 0
	weight := 3
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * weight
		weight = 4 - weight
	}
	return (10 - sum%10) % 10, nil
}

// Validate checks that code is a supported symbology with a correct check digit.
func Validate(code string) error {
	if code == "" {
		return ErrEmpty
	}
	if !isDigits(code) {
		return ErrNotNumeric
	}
	if Detect(code) == Unknown {
		return fmt.Errorf("%w: %d digits", ErrLength, len(code))
	}

	want, err := CheckDigit(code[:len(code)-1])
	if err != nil {
		return err
	}
	if got := int(code[len(code)-1] - '0'); got != want {
		return fmt.Errorf("%w: got %d, want %d", ErrCheckDigit, got, want)
	}
	return nil
}

// Valid reports whether Validate(code) succeeds.
func Valid(code string) bool {
	return Validate(code) == nil
}

// Complete appends the check digit to body. The result must be a supported
// symbology length.
func Complete(body string) (string, error) {
	if Detect(body+"0") == Unknown {
		if !isDigits(body) {
			return "", ErrNotNumeric
		}
		return "", fmt.Errorf("%w: body of %d digits", ErrLength, len(body))
	}
	d, err := CheckDigit(body)
	if err != nil {
		return "", err
	}
	return body + strconv.Itoa(d), nil
}

// Generate builds an EAN-13 from a numeric prefix and a sequence number, zero
// padding the sequence to fill the 12-digit body. Prefixes 20-29 are reserved
// by GS1 for in-store codes, which is what manually catalogued products use.
func Generate(prefix string, seq uint64) (string, error) {
	if !isDigits(prefix) && prefix != "" {
		return "", ErrNotNumeric
	}
	width := 12 - len(prefix)
	if width <= 0 {
		return "", ErrPrefixRange
	}
	digits := strconv.FormatUint(seq, 10)
	if len(digits) > width {
		return "", fmt.Errorf("%w: sequence %d does not fit %d digits", ErrPrefixRange, seq, width)
	}
	return Complete(prefix + strings.Repeat("0", width-len(digits)) + digits)
}

// ToEAN13 converts a valid UPC-A into its EAN-13 form. EAN-13 codes are
// returned unchanged.
func ToEAN13(code string) (string, error) {
	if err := Validate(code); err != nil {
		return "", err
	}
	switch Detect(code) {
	case UPCA:
		return "0" + code, nil
	case EAN13:
		return code, nil
	default:
		return "", fmt.Errorf("%w: %s cannot be expressed as EAN-13", ErrLength, Detect(code))
	}
}

// ToUPCA converts an EAN-13 with a leading zero into UPC-A.
func ToUPCA(code string) (string, error) {
	if err := Validate(code); err != nil {
		return "", err
	}
	switch {
	case Detect(code) == UPCA:
		return code, nil
	case Detect(code) == EAN13 && code[0] == '0':
		return code[1:], nil
	default:
		return "", fmt.Errorf("%w: %s is not in the UPC-A range", ErrLength, code)
	}
}

// Normalize returns the canonical lookup key for a scanned code: separators
// removed, and valid UPC-A codes widened to EAN-13 so both scans of the same
// product share one key. Anything else is returned cleaned but otherwise as-is.
func Normalize(code string) string {
	cleaned := Clean(code)
	if Detect(cleaned) == UPCA && Valid(cleaned) {
		return "0" + cleaned
	}
	return cleaned
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
