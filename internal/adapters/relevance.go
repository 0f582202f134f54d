// Package adapters implements the concrete price sources: marketplace API
// clients, retail HTML scrapers and the deterministic mock.
package adapters

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/voltmark/hwpricer/internal/catalog"
)

// MinHardwarePrice is the floor below which hardware listings are junk
// (cables, brackets, "for parts" auctions).
const MinHardwarePrice = 50.0

// accessoryBlacklist rejects obvious non-product listings by title keyword.
var accessoryBlacklist = []string{
	"cable", "adapter", "mount", "bracket", "riser", "holder", "stand",
	"sticker", "shroud", "backplate", "waterblock", "water block", "fan only",
	"box only", "case", "sleeve", "extension", "connector", "replacement",
}

// familyKeywords maps an asset to the word that must accompany its model
// number for a title to count as the actual product.
func familyKeywords(assetID string) []string {
	if strings.HasPrefix(assetID, "GPU_") {
		return []string{"geforce", "rtx", "graphics", "gpu", "video card"}
	}
	return []string{"ddr5", "memory", "ram"}
}

// modelIdentifiers extracts the numeric model tokens an asset's title must
// contain, e.g. "4090" for GPU_RTX4090, "32gb" for RAM_DDR5_32.
func modelIdentifiers(assetID string) []string {
	switch {
	case strings.HasPrefix(assetID, "GPU_RTX"):
		return []string{strings.TrimPrefix(assetID, "GPU_RTX")}
	case strings.HasPrefix(assetID, "RAM_DDR5_"):
		size := strings.TrimPrefix(assetID, "RAM_DDR5_")
		return []string{size + "gb", size + " gb"}
	default:
		return nil
	}
}

// RelevantListing reports whether a listing title plausibly is the asset
// itself: it must carry the model identifier plus a family keyword, and must
// not look like an accessory.
func RelevantListing(assetID, title string) bool {
	if title == "" {
		return false
	}
	lower := strings.ToLower(title)

	for _, bad := range accessoryBlacklist {
		if strings.Contains(lower, bad) {
			return false
		}
	}

	models := modelIdentifiers(assetID)
	if len(models) == 0 {
		return false
	}
	modelHit := false
	for _, m := range models {
		if strings.Contains(lower, m) {
			modelHit = true
			break
		}
	}
	if !modelHit {
		return false
	}

	for _, kw := range familyKeywords(assetID) {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// AcceptablePrice applies the hardware price floor.
func AcceptablePrice(price float64) bool {
	return price >= MinHardwarePrice
}

var priceRe = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)

// ParsePrice extracts a dollar amount from display text like "$1,599.99" or
// "1.599,99 USD". Returns 0 when no number is present.
func ParsePrice(text string) float64 {
	match := priceRe.FindString(text)
	if match == "" {
		return 0
	}
	match = strings.ReplaceAll(match, ",", "")
	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return val
}

// primarySearchTerm returns the catalog's most specific search term.
func primarySearchTerm(assetID string) string {
	asset, ok := catalog.LookupHardware(assetID)
	if !ok || len(asset.SearchTerms) == 0 {
		return ""
	}
	return asset.SearchTerms[0]
}
