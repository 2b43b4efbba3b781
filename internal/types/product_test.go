package types

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeProductData(t *testing.T) {
	t.Run("plain strings pass through", func(t *testing.T) {
		pd, err := NormalizeProductData([]byte(`{"name":"Arroz","brand":"Tio João","category":"Grãos"}`))
		require.NoError(t, err)
		assert.Equal(t, "Arroz", pd.Name)
		assert.Equal(t, "Tio João", pd.Brand)
		assert.Equal(t, "Grãos", pd.Category)
		assert.Nil(t, pd.Extra)
	})

	t.Run("nested brand object flattened", func(t *testing.T) {
		pd, err := NormalizeProductData([]byte(`{"name":"Arroz","brand":{"name":"Tio João","picture":"x.png"}}`))
		require.NoError(t, err)
		assert.Equal(t, "Tio João", pd.Brand)
	})

	t.Run("nested category object uses description", func(t *testing.T) {
		pd, err := NormalizeProductData([]byte(`{"category":{"id":123,"description":"Arroz Polido"}}`))
		require.NoError(t, err)
		assert.Equal(t, "Arroz Polido", pd.Category)
	})

	t.Run("category array uses first string", func(t *testing.T) {
		pd, err := NormalizeProductData([]byte(`{"category":["", "Bebidas", "Sucos"]}`))
		require.NoError(t, err)
		assert.Equal(t, "Bebidas", pd.Category)
	})

	t.Run("object without known keys falls back to first string value", func(t *testing.T) {
		pd, err := NormalizeProductData([]byte(`{"brand":{"zeta":"Z","alpha":"A","n":1}}`))
		require.NoError(t, err)
		assert.Equal(t, "A", pd.Brand)
	})

	t.Run("numeric brand stringified", func(t *testing.T) {
		pd, err := NormalizeProductData([]byte(`{"brand":42}`))
		require.NoError(t, err)
		assert.Equal(t, "42", pd.Brand)
	})

	t.Run("unknown attributes preserved", func(t *testing.T) {
		pd, err := NormalizeProductData([]byte(`{"name":"Leite","ncm":"0401","price":{"avg":4.5}}`))
		require.NoError(t, err)
		assert.Equal(t, "0401", pd.Extra["ncm"])
		assert.Equal(t, map[string]any{"avg": 4.5}, pd.Extra["price"])
	})

	t.Run("invalid JSON errors", func(t *testing.T) {
		_, err := NormalizeProductData([]byte(`{"name":`))
		assert.Error(t, err)
	})
}

func TestNormalizationIdempotent(t *testing.T) {
	raw := []byte(`{"name":"Arroz","brand":{"name":"Tio João"},"category":{"description":"Grãos"},"weight":"1kg","gtin":7891000100103}`)

	once, err := NormalizeProductData(raw)
	require.NoError(t, err)
	onceJSON, err := json.Marshal(once)
	require.NoError(t, err)
	assert.False(t, NeedsNormalization(onceJSON))

	twice, err := NormalizeProductData(onceJSON)
	require.NoError(t, err)
	twiceJSON, err := json.Marshal(twice)
	require.NoError(t, err)

	assert.JSONEq(t, string(onceJSON), string(twiceJSON))
	assert.Equal(t, once.Brand, twice.Brand)
	assert.Equal(t, "Tio João", twice.Brand)
	assert.Equal(t, "Grãos", twice.Category)
}

func TestNeedsNormalization(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"flat", `{"brand":"A","category":"B"}`, false},
		{"missing fields", `{"name":"A"}`, false},
		{"null brand", `{"brand":null}`, false},
		{"nested brand", `{"brand":{"name":"A"}}`, true},
		{"nested category", `{"brand":"A","category":{"description":"B"}}`, true},
		{"array category", `{"category":["B"]}`, true},
		{"not an object", `"compressed"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsNormalization([]byte(tt.raw)))
		})
	}
}

func TestProductDataMarshalRoundTrip(t *testing.T) {
	pd := ProductData{
		Name:            "Arroz",
		Brand:           "Tio João",
		NutritionalInfo: map[string]any{"kcal": 350.0},
		Weight:          "1kg",
		Extra:           map[string]any{"ncm": "1006"},
	}

	data, err := json.Marshal(pd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Arroz","brand":"Tio João","nutritionalInfo":{"kcal":350},"weight":"1kg","ncm":"1006"}`, string(data))

	var back ProductData
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, pd, back)
}

func TestProductDataHasField(t *testing.T) {
	pd := ProductData{
		Name:            "Arroz",
		NutritionalInfo: map[string]any{},
		Weight:          "  ",
		Volume:          500.0,
		Extra:           map[string]any{"ncm": "1006"},
	}

	assert.True(t, pd.HasField("name"))
	assert.False(t, pd.HasField("brand"))
	assert.False(t, pd.HasField("nutritionalInfo"))
	assert.False(t, pd.HasField("weight"))
	assert.True(t, pd.HasField("volume"))
	assert.True(t, pd.HasField("ncm"))
}

func TestProductDataBlankStringsAreAbsent(t *testing.T) {
	pd := ProductData{Name: " ", Brand: "\t", Category: "  ", Image: " ", Description: "\n"}

	for _, field := range []string{"name", "brand", "category", "image", "description"} {
		assert.False(t, pd.HasField(field), field)
	}

	data, err := json.Marshal(pd)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}
