// Package catalog defines the fixed asset catalogs known at startup: the
// hardware assets the oracle prices and the cloud GPU rental types it tracks.
package catalog

// HardwareAsset describes one priced hardware SKU.
type HardwareAsset struct {
	ID          string   // Stable identifier, e.g. "GPU_RTX4090"
	DisplayName string   // Human-readable name for logs and the dashboard
	SearchTerms []string // Vendor search queries, most specific first
	BasePrice   float64  // Launch-MSRP-ish anchor used by the mock adapter
}

// RentalGPUType describes one cloud GPU rental type.
type RentalGPUType struct {
	ID         string  // Stable identifier, e.g. "RTX_4090"
	Query      string  // Canonical display query for the marketplace search
	VRAMGb     int     // Nominal VRAM
	BaseHourly float64 // Typical per-GPU-hour rate, anchor for simulated offers
}

// hardwareAssets is the fixed hardware catalog. Order is the presentation order
// used by /health and the dashboard.
var hardwareAssets = []HardwareAsset{
	{
		ID:          "GPU_RTX4090",
		DisplayName: "NVIDIA GeForce RTX 4090",
		SearchTerms: []string{"RTX 4090", "GeForce RTX 4090", "NVIDIA 4090"},
		BasePrice:   1599.99,
	},
	{
		ID:          "GPU_RTX4080",
		DisplayName: "NVIDIA GeForce RTX 4080 SUPER",
		SearchTerms: []string{"RTX 4080 SUPER", "RTX 4080", "GeForce RTX 4080"},
		BasePrice:   999.99,
	},
	{
		ID:          "GPU_RTX4070",
		DisplayName: "NVIDIA GeForce RTX 4070 Ti SUPER",
		SearchTerms: []string{"RTX 4070 Ti SUPER", "RTX 4070 Ti", "RTX 4070"},
		BasePrice:   799.99,
	},
	{
		ID:          "RAM_DDR5_32",
		DisplayName: "DDR5 32GB Kit (2x16GB) 6000MHz",
		SearchTerms: []string{"DDR5 32GB 6000", "DDR5 RAM 32GB kit", "32GB DDR5"},
		BasePrice:   109.99,
	},
	{
		ID:          "RAM_DDR5_64",
		DisplayName: "DDR5 64GB Kit (2x32GB) 6000MHz",
		SearchTerms: []string{"DDR5 64GB 6000", "DDR5 RAM 64GB kit", "64GB DDR5"},
		BasePrice:   199.99,
	},
}

// rentalGPUTypes is the fixed rental catalog.
var rentalGPUTypes = []RentalGPUType{
	{ID: "RTX_4090", Query: "RTX 4090", VRAMGb: 24, BaseHourly: 0.44},
	{ID: "RTX_3090", Query: "RTX 3090", VRAMGb: 24, BaseHourly: 0.22},
	{ID: "RTX_A6000", Query: "RTX A6000", VRAMGb: 48, BaseHourly: 0.49},
	{ID: "A100_PCIE", Query: "A100 PCIE", VRAMGb: 80, BaseHourly: 1.10},
	{ID: "A100_SXM4", Query: "A100 SXM4", VRAMGb: 80, BaseHourly: 1.40},
	{ID: "H100_SXM", Query: "H100 SXM", VRAMGb: 80, BaseHourly: 2.85},
}

// HardwareAssets returns the hardware catalog in presentation order.
func HardwareAssets() []HardwareAsset {
	out := make([]HardwareAsset, len(hardwareAssets))
	copy(out, hardwareAssets)
	return out
}

// HardwareAssetIDs returns the hardware asset identifiers in catalog order.
func HardwareAssetIDs() []string {
	ids := make([]string, len(hardwareAssets))
	for i, a := range hardwareAssets {
		ids[i] = a.ID
	}
	return ids
}

// LookupHardware returns the catalog entry for id, if present.
func LookupHardware(id string) (HardwareAsset, bool) {
	for _, a := range hardwareAssets {
		if a.ID == id {
			return a, true
		}
	}
	return HardwareAsset{}, false
}

// IsHardwareAsset reports whether id is a member of the hardware catalog.
func IsHardwareAsset(id string) bool {
	_, ok := LookupHardware(id)
	return ok
}

// RentalGPUTypes returns the rental catalog in presentation order.
func RentalGPUTypes() []RentalGPUType {
	out := make([]RentalGPUType, len(rentalGPUTypes))
	copy(out, rentalGPUTypes)
	return out
}

// RentalGPUTypeIDs returns the rental type identifiers in catalog order.
func RentalGPUTypeIDs() []string {
	ids := make([]string, len(rentalGPUTypes))
	for i, t := range rentalGPUTypes {
		ids[i] = t.ID
	}
	return ids
}

// LookupRental returns the rental catalog entry for id, if present.
func LookupRental(id string) (RentalGPUType, bool) {
	for _, t := range rentalGPUTypes {
		if t.ID == id {
			return t, true
		}
	}
	return RentalGPUType{}, false
}

// IsRentalGPUType reports whether id is a member of the rental catalog.
func IsRentalGPUType(id string) bool {
	_, ok := LookupRental(id)
	return ok
}
