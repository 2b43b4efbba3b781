package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ProductData holds the product attributes cached for a barcode. Brand and
// Category are always flat strings once decoded; every attribute without a
// dedicated field is preserved in Extra.
type ProductData struct {
	Name            string
	Brand           string
	Category        string
	Image           string
	Description     string
	NutritionalInfo any
	Weight          any
	Volume          any
	Extra           map[string]any
}

var productKeys = map[string]struct{}{
	"name": {}, "brand": {}, "category": {}, "image": {}, "description": {},
	"nutritionalInfo": {}, "weight": {}, "volume": {},
}

// flattenKeys are tried in order when a brand or category was stored as an object.
var flattenKeys = []string{"name", "description", "title", "label", "value", "text"}

// NormalizeProductData decodes a raw product payload, flattening legacy
// nested brand/category objects into strings.
func NormalizeProductData(raw []byte) (ProductData, error) {
	var pd ProductData
	if err := json.Unmarshal(raw, &pd); err != nil {
		return ProductData{}, err
	}
	return pd, nil
}

// NeedsNormalization reports whether brand or category in the raw payload is
// stored as something other than a string.
func NeedsNormalization(raw []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	for _, key := range []string{"brand", "category"} {
		v, ok := fields[key]
		if !ok {
			continue
		}
		trimmed := strings.TrimSpace(string(v))
		if trimmed == "" || trimmed == "null" {
			continue
		}
		if trimmed[0] != '"' {
			return true
		}
	}
	return false
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ProductData) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("product data: %w", err)
	}

	*p = ProductData{
		Name:            flatten(fields["name"]),
		Brand:           flatten(fields["brand"]),
		Category:        flatten(fields["category"]),
		Image:           flatten(fields["image"]),
		Description:     flatten(fields["description"]),
		NutritionalInfo: fields["nutritionalInfo"],
		Weight:          fields["weight"],
		Volume:          fields["volume"],
	}

	for k, v := range fields {
		if _, known := productKeys[k]; known {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[k] = v
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p ProductData) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+8)
	for k, v := range p.Extra {
		out[k] = v
	}
	setString(out, "name", p.Name)
	setString(out, "brand", p.Brand)
	setString(out, "category", p.Category)
	setString(out, "image", p.Image)
	setString(out, "description", p.Description)
	if p.NutritionalInfo != nil {
		out["nutritionalInfo"] = p.NutritionalInfo
	}
	if p.Weight != nil {
		out["weight"] = p.Weight
	}
	if p.Volume != nil {
		out["volume"] = p.Volume
	}
	return json.Marshal(out)
}

func setString(m map[string]any, key, value string) {
	if strings.TrimSpace(value) != "" {
		m[key] = value
	}
}

// flatten turns any JSON value into the string form used for brand/category.
func flatten(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		for _, item := range t {
			if s := flatten(item); s != "" {
				return s
			}
		}
		return ""
	case map[string]any:
		for _, key := range flattenKeys {
			if s := flatten(t[key]); s != "" {
				return s
			}
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := t[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// HasField reports whether the named attribute carries a non-empty value.
func (p *ProductData) HasField(name string) bool {
	switch name {
	case "name":
		return present(p.Name)
	case "brand":
		return present(p.Brand)
	case "category":
		return present(p.Category)
	case "image":
		return present(p.Image)
	case "description":
		return present(p.Description)
	case "nutritionalInfo":
		return present(p.NutritionalInfo)
	case "weight":
		return present(p.Weight)
	case "volume":
		return present(p.Volume)
	default:
		return present(p.Extra[name])
	}
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return true
	}
}
