package regional

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantsaathi/market-intelligence/internal/domain/catalog"
	"github.com/plantsaathi/market-intelligence/internal/domain/recommendation"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(logging.NewNopLogger())
	require.NoError(t, err)
	return s
}

func TestRegionalData_FallbackToGeneric(t *testing.T) {
	s := newTestService(t)

	pb := s.RegionalData("PB")
	assert.Equal(t, "Punjab", pb.StateName)
	assert.Equal(t, []int{7, 8, 9}, pb.MonsoonMonths)

	// Unknown codes resolve to the generic record, never fail.
	unknown := s.RegionalData("XX")
	require.NotNil(t, unknown)
	assert.Equal(t, GenericRegion, unknown.StateCode)
}

func TestNewServiceFromJSON_RequiresGenericRecord(t *testing.T) {
	_, err := NewServiceFromJSON([]byte(`[{"state_code":"PB"}]`), logging.NewNopLogger())
	assert.Error(t, err)
}

func TestIsProductBanned(t *testing.T) {
	s := newTestService(t)
	assert.True(t, s.IsProductBanned("KL", "pest_chlorpyrifos_002"))
	assert.False(t, s.IsProductBanned("PB", "pest_chlorpyrifos_002"))
	assert.False(t, s.IsProductBanned("XX", "pest_chlorpyrifos_002"))
}

func TestFilterByAvailability(t *testing.T) {
	s := newTestService(t)
	recs := []recommendation.Recommendation{
		{ID: "a", ProductID: "fert_urea_001", RegionalAvailable: true},
		{ID: "b", ProductID: "pest_chlorpyrifos_002", RegionalAvailable: true}, // banned in KL
		{ID: "c", ProductID: "fert_dap_002", RegionalAvailable: false},         // flagged unavailable
		{ID: "d", ProductID: "fert_mop_003", RegionalAvailable: true},
	}

	out := s.FilterByAvailability("KL", recs)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID, "order preserved")
	assert.Equal(t, "d", out[1].ID)

	// Input slice untouched.
	assert.Len(t, recs, 4)
}

func TestMonthsUntilMonsoon(t *testing.T) {
	s := newTestService(t)

	tests := []struct {
		state string
		month time.Month
		want  int
	}{
		{"PB", time.June, 1},     // monsoon [7,8,9]
		{"PB", time.July, 0},     // in monsoon
		{"PB", time.October, 9},  // wraps to next July
		{"TN", time.December, 0}, // monsoon [10,11,12]
		{"TN", time.January, 9},  // wraps to October
		{"XX", time.May, 1},      // generic record [6,7,8,9]
	}
	for _, tt := range tests {
		now := time.Date(2026, tt.month, 15, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, tt.want, s.MonthsUntilMonsoon(tt.state, now), "%s in %s", tt.state, tt.month)
	}
}

func TestAdjustMonsoonTiming_BoostsWithinWindow(t *testing.T) {
	s := newTestService(t)
	june := time.Date(2026, time.June, 10, 0, 0, 0, 0, time.UTC)

	recs := []recommendation.Recommendation{
		{ID: "fung", Category: catalog.CategoryFungicide, UrgencyScore: 60, TimingGuidance: "whenever"},
		{ID: "seed", Category: catalog.CategorySeedTreatment, UrgencyScore: 95},
		{ID: "fert", Category: catalog.CategoryFertilizer, UrgencyScore: 60, TimingGuidance: "whenever"},
	}

	out := s.AdjustMonsoonTiming("PB", recs, june)

	assert.Equal(t, 75.0, out[0].UrgencyScore, "+15 boost")
	assert.Contains(t, out[0].TimingGuidance, "before monsoon (in 1 months)")

	assert.Equal(t, 100.0, out[1].UrgencyScore, "capped at 100")

	assert.Equal(t, 60.0, out[2].UrgencyScore, "non-sensitive category untouched")
	assert.Equal(t, "whenever", out[2].TimingGuidance)
}

func TestAdjustMonsoonTiming_OutsideWindowNoChange(t *testing.T) {
	s := newTestService(t)
	// PB monsoon starts in July; October is 9 months out.
	october := time.Date(2026, time.October, 10, 0, 0, 0, 0, time.UTC)

	recs := []recommendation.Recommendation{
		{ID: "fung", Category: catalog.CategoryFungicide, UrgencyScore: 60, TimingGuidance: "whenever"},
	}
	out := s.AdjustMonsoonTiming("PB", recs, october)
	assert.Equal(t, 60.0, out[0].UrgencyScore)
	assert.Equal(t, "whenever", out[0].TimingGuidance)
}
