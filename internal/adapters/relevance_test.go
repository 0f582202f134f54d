package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelevantListing(t *testing.T) {
	tests := []struct {
		name    string
		assetID string
		title   string
		want    bool
	}{
		{"gpu exact", "GPU_RTX4090", "NVIDIA GeForce RTX 4090 24GB Graphics Card", true},
		{"gpu aib model", "GPU_RTX4090", "ASUS ROG Strix RTX 4090 OC GPU", true},
		{"wrong model", "GPU_RTX4090", "NVIDIA GeForce RTX 4080 Graphics Card", false},
		{"accessory", "GPU_RTX4090", "RTX 4090 GPU Support Bracket", false},
		{"water block", "GPU_RTX4090", "EK Waterblock for GeForce RTX 4090", false},
		{"no family word", "GPU_RTX4090", "4090 Lottery Ticket", false},
		{"ram exact", "RAM_DDR5_32", "Corsair Vengeance DDR5 32GB (2x16GB) 5600MHz", true},
		{"ram spaced size", "RAM_DDR5_32", "G.Skill Trident Z5 RGB 32 GB DDR5 Memory", true},
		{"ram wrong size", "RAM_DDR5_32", "Corsair Vengeance DDR5 64GB Kit", false},
		{"empty title", "GPU_RTX4090", "", false},
		{"unknown asset", "CPU_UNKNOWN", "Intel Core i9", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RelevantListing(tt.assetID, tt.title))
		})
	}
}

func TestAcceptablePrice(t *testing.T) {
	assert.True(t, AcceptablePrice(50))
	assert.True(t, AcceptablePrice(1599.99))
	assert.False(t, AcceptablePrice(49.99))
	assert.False(t, AcceptablePrice(0))
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"$1,599.99", 1599.99},
		{"1599.99", 1599.99},
		{"$999", 999},
		{"Now: $109.99 (save $20)", 109.99},
		{"Call for price", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParsePrice(tt.text), tt.text)
	}
}

func TestPrimarySearchTerm(t *testing.T) {
	assert.NotEmpty(t, primarySearchTerm("GPU_RTX4090"))
	assert.Empty(t, primarySearchTerm("NOT_AN_ASSET"))
}
