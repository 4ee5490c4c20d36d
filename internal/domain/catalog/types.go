// Package catalog provides the static, queryable product catalog: fertilizers,
// fungicides, pesticides, seed treatments and equipment, with the condition
// metadata the rule engine matches against.  Catalog entries are immutable
// reference data loaded once at construction.
package catalog

// Product categories.
const (
	CategoryFertilizer    = "fertilizer"
	CategoryFungicide     = "fungicide"
	CategoryPesticide     = "pesticide"
	CategorySeedTreatment = "seed_treatment"
	CategoryMicronutrient = "micronutrient"
	CategoryEquipment     = "equipment"
)

// RegionAll marks an entry as available everywhere in India.
const RegionAll = "IN"

// Conditions describes which field conditions a product addresses.  Every
// slice is optional; an empty slice means the product does not target that
// signal category.
type Conditions struct {
	// NPKNutrients lists the deficient nutrients the product treats:
	// "nitrogen", "phosphorus", "potassium".
	NPKNutrients []string `json:"npk_nutrients,omitempty"`

	// Diseases lists disease names (matched case-insensitively, substring).
	Diseases []string `json:"diseases,omitempty"`

	// WeatherConditions lists weather risk types: "heavy_rain", "drought",
	// "heat_stress", "cold_stress".
	WeatherConditions []string `json:"weather_conditions,omitempty"`

	// GrowthStages lists stage names (matched case-insensitively, substring).
	GrowthStages []string `json:"growth_stages,omitempty"`
}

// Entry is one sellable catalog item.
type Entry struct {
	ProductID   string            `json:"product_id"`
	Names       map[string]string `json:"names"` // language code → display name
	Category    string            `json:"category"`
	Subcategory string            `json:"subcategory"`

	Addresses Conditions `json:"addresses_conditions"`

	// Price in INR for the default package size.
	Price        float64  `json:"price"`
	PackageSizes []string `json:"package_sizes,omitempty"`

	// Regions lists state codes where the product may be sold; RegionAll
	// means nationwide availability.
	Regions []string `json:"regions"`

	EcoFriendly bool `json:"eco_friendly"`
	LocallyMade bool `json:"locally_made"`

	SafetyPrecautions []string `json:"safety_precautions,omitempty"`

	// EffectivenessRating is a 0–5 field-trial score.
	EffectivenessRating float64 `json:"effectiveness_rating"`

	// SustainabilityRating is a 0–5 environmental score.
	SustainabilityRating float64 `json:"sustainability_rating"`

	ImageURL   string `json:"image_url,omitempty"`
	ProductURL string `json:"product_url,omitempty"`
}

// Name returns the display name for the given language, falling back to
// English and then to the product id.
func (e *Entry) Name(lang string) string {
	if n, ok := e.Names[lang]; ok && n != "" {
		return n
	}
	if n, ok := e.Names["en"]; ok && n != "" {
		return n
	}
	return e.ProductID
}

// AvailableIn reports whether the entry may be sold in the given state.
func (e *Entry) AvailableIn(state string) bool {
	for _, r := range e.Regions {
		if r == RegionAll || r == state {
			return true
		}
	}
	return false
}
