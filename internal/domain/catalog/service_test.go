package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(logging.NewNopLogger())
	require.NoError(t, err)
	return s
}

func TestNewServiceFromJSON_Invalid(t *testing.T) {
	_, err := NewServiceFromJSON([]byte("{not json"), logging.NewNopLogger())
	assert.Error(t, err)
}

func TestGetByID(t *testing.T) {
	s := newTestService(t)

	e, ok := s.GetByID("fert_urea_001")
	require.True(t, ok)
	assert.Equal(t, "Urea 46-0-0", e.Name("en"))
	assert.Equal(t, CategoryFertilizer, e.Category)

	_, ok = s.GetByID("no_such_product")
	assert.False(t, ok)
}

func TestSearchByNutrient(t *testing.T) {
	s := newTestService(t)
	results := s.SearchByNutrient("nitrogen")
	require.NotEmpty(t, results)
	for _, e := range results {
		assert.Contains(t, e.Addresses.NPKNutrients, "nitrogen")
	}
}

func TestSearchByDisease_CaseInsensitiveSubstring(t *testing.T) {
	s := newTestService(t)

	// "BLAST" must find the tricyclazole entry, which lists "rice blast".
	results := s.SearchByDisease("BLAST")
	ids := productIDs(results)
	assert.Contains(t, ids, "fung_tricyclazole_001")

	// The longer query "Rice Blast" must also match the entry's "blast".
	results = s.SearchByDisease("Rice Blast")
	assert.Contains(t, productIDs(results), "fung_tricyclazole_001")
}

func TestSearch_CombinedANDSemantics(t *testing.T) {
	s := newTestService(t)

	maxPrice := 600.0
	results := s.Search(Query{
		WeatherCondition: "heavy_rain",
		Category:         CategoryFungicide,
		MaxPrice:         &maxPrice,
	})
	require.NotEmpty(t, results)
	for _, e := range results {
		assert.Equal(t, CategoryFungicide, e.Category)
		assert.LessOrEqual(t, e.Price, maxPrice)
		assert.Contains(t, e.Addresses.WeatherConditions, "heavy_rain")
	}
}

func TestSearch_NoMatchReturnsEmptyNotError(t *testing.T) {
	s := newTestService(t)
	results := s.Search(Query{Disease: "nonexistent disease xyz"})
	assert.Empty(t, results)
}

func TestSearch_EcoAndSustainability(t *testing.T) {
	s := newTestService(t)
	floor := 4.5
	results := s.Search(Query{EcoFriendlyOnly: true, MinSustainable: &floor})
	require.NotEmpty(t, results)
	for _, e := range results {
		assert.True(t, e.EcoFriendly)
		assert.GreaterOrEqual(t, e.SustainabilityRating, floor)
	}
}

func TestSearchWrappers_EcoPriceSustainability(t *testing.T) {
	s := newTestService(t)

	for _, e := range s.SearchEcoFriendly() {
		assert.True(t, e.EcoFriendly)
	}

	results := s.SearchByMaxPrice(300)
	require.NotEmpty(t, results)
	for _, e := range results {
		assert.LessOrEqual(t, e.Price, 300.0)
	}

	for _, e := range s.SearchByMinSustainability(4.0) {
		assert.GreaterOrEqual(t, e.SustainabilityRating, 4.0)
	}
}

func TestSearchByRegion_MembershipAndNationwide(t *testing.T) {
	s := newTestService(t)

	// Chlorpyrifos is listed for a handful of states only.
	pb := productIDs(s.SearchByRegion("PB"))
	kl := productIDs(s.SearchByRegion("KL"))
	assert.Contains(t, pb, "pest_chlorpyrifos_002")
	assert.NotContains(t, kl, "pest_chlorpyrifos_002")

	// Nationwide entries appear for every state.
	assert.Contains(t, kl, "fert_urea_001")
}

func TestAlternatives(t *testing.T) {
	s := newTestService(t)

	alts := s.Alternatives("fung_mancozeb_002")
	ids := productIDs(alts)
	assert.Contains(t, ids, "fung_copper_003", "same category+subcategory")
	assert.NotContains(t, ids, "fung_mancozeb_002", "source excluded")
	assert.NotContains(t, ids, "fung_tricyclazole_001", "different subcategory excluded")

	assert.Nil(t, s.Alternatives("no_such_product"))
}

func TestBudgetAlternatives_CheaperAndSorted(t *testing.T) {
	s := newTestService(t)

	src, ok := s.GetByID("fung_copper_003")
	require.True(t, ok)

	alts := s.BudgetAlternatives("fung_copper_003")
	for i, e := range alts {
		assert.Less(t, e.Price, src.Price)
		if i > 0 {
			assert.GreaterOrEqual(t, e.Price, alts[i-1].Price, "ascending price order")
		}
	}
}

func TestEntry_NameFallback(t *testing.T) {
	e := Entry{ProductID: "p1", Names: map[string]string{"en": "English"}}
	assert.Equal(t, "English", e.Name("hi"))
	e.Names = nil
	assert.Equal(t, "p1", e.Name("en"))
}

func productIDs(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ProductID)
	}
	return out
}
