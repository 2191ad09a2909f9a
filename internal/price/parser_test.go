package price

import (
	"testing"

	"sjsage522/menuscout/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccepts(t *testing.T) {
	p := Default()

	tests := []struct {
		raw  string
		want float64
	}{
		{"25,50 ₺", 25.50},
		{"45 TL", 45},
		{"₺45.90", 45.90},
		{"1.250,00 ₺", 1250},
		{"1,250.75 TRY", 1250.75},
		{"1.500 TL", 1500},
		{"Fiyat: 89,9 TL", 89.9},
		{"120,00 TL 150,00 TL", 120},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := p.Parse(tt.raw)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestParseRejects(t *testing.T) {
	p := Default()

	tests := []string{
		"5 ₺",
		"12.000,00 TL",
		"Ücretsiz",
		"",
		"1.2.3",
		"1,25,00",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			got, err := p.Parse(raw)
			require.Error(t, err)
			assert.Zero(t, got)
			assert.True(t, errors.IsType(err, errors.TypeInvalidPrice))
			assert.False(t, p.Valid(raw))
		})
	}
}

func TestParseBounds(t *testing.T) {
	p := NewParser(1, 10)

	v, err := p.Parse("5 ₺")
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	_, err = p.Parse("10,01")
	assert.Error(t, err)
}
