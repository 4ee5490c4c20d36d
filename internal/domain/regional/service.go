// Package regional provides per-state reference data — banned products,
// monsoon months, common crops and diseases — and the regional adjustments
// applied to recommendations: availability filtering and monsoon timing.
package regional

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/plantsaathi/market-intelligence/internal/domain/catalog"
	"github.com/plantsaathi/market-intelligence/internal/domain/recommendation"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/plantsaathi/market-intelligence/pkg/errors"
)

//go:embed data/regions.json
var defaultRegionsJSON []byte

// GenericRegion is the India-wide fallback record; lookups for unknown state
// codes resolve here by design, never failing.
const GenericRegion = "IN"

// Data is the per-state intelligence record.
type Data struct {
	StateCode          string   `json:"state_code"`
	StateName          string   `json:"state_name"`
	BannedProducts     []string `json:"banned_products"`
	MonsoonMonths      []int    `json:"monsoon_months"` // 1–12
	PrimaryCrops       []string `json:"primary_crops"`
	CommonDiseases     []string `json:"common_diseases"`
	PreferredSuppliers []string `json:"preferred_suppliers"`
}

// Monsoon urgency adjustment parameters.
const (
	// monsoonWindowMonths is how far ahead of the monsoon the boost applies.
	monsoonWindowMonths = 2

	// monsoonUrgencyBoost is added to the urgency score, capped at 100.
	monsoonUrgencyBoost = 15

	maxUrgencyScore = 100
)

// monsoonSensitiveCategories are the product categories whose application
// window closes when the rains arrive.
var monsoonSensitiveCategories = map[string]bool{
	catalog.CategoryFungicide:     true,
	catalog.CategorySeedTreatment: true,
}

// Service answers regional lookups and applies regional adjustments.
// Reference data is immutable after construction; safe for concurrent use.
type Service struct {
	regions map[string]*Data
	logger  logging.Logger
}

// NewService loads the embedded regional table.
func NewService(logger logging.Logger) (*Service, error) {
	return NewServiceFromJSON(defaultRegionsJSON, logger)
}

// NewServiceFromJSON builds a Service from an explicit regional document.
// The document must include the generic "IN" record.
func NewServiceFromJSON(data []byte, logger logging.Logger) (*Service, error) {
	var records []Data
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, errors.CodeRegionInvalid, "failed to parse regional document")
	}

	s := &Service{
		regions: make(map[string]*Data, len(records)),
		logger:  logger.Named("regional"),
	}
	for i := range records {
		s.regions[records[i].StateCode] = &records[i]
	}
	if _, ok := s.regions[GenericRegion]; !ok {
		return nil, errors.New(errors.CodeRegionInvalid, "regional document is missing the generic IN record")
	}
	s.logger.Info("regional data loaded", logging.Int("regions", len(records)))
	return s, nil
}

// RegionalData returns the record for the state code, falling back to the
// generic India-wide record for unknown codes.  The fallback is an invariant,
// never a failure.
func (s *Service) RegionalData(stateCode string) *Data {
	if d, ok := s.regions[stateCode]; ok {
		return d
	}
	return s.regions[GenericRegion]
}

// IsProductBanned reports whether the product may not be sold in the state.
func (s *Service) IsProductBanned(stateCode, productID string) bool {
	for _, banned := range s.RegionalData(stateCode).BannedProducts {
		if banned == productID {
			return true
		}
	}
	return false
}

// FilterByAvailability drops any recommendation whose product is banned in
// the state or flagged regionally unavailable.  Order-preserving; the input
// slice is not modified.
func (s *Service) FilterByAvailability(stateCode string, recs []recommendation.Recommendation) []recommendation.Recommendation {
	out := make([]recommendation.Recommendation, 0, len(recs))
	for _, r := range recs {
		if !r.RegionalAvailable {
			continue
		}
		if s.IsProductBanned(stateCode, r.ProductID) {
			s.logger.Debug("dropped banned product",
				logging.String("state", stateCode),
				logging.String("product_id", r.ProductID))
			continue
		}
		out = append(out, r)
	}
	return out
}

// MonthsUntilMonsoon returns the number of whole months from now until the
// state's nearest monsoon month, wrapping to next year when this year's
// monsoon has passed.  Returns 0 during a monsoon month and -1 when the
// region defines no monsoon months.
func (s *Service) MonthsUntilMonsoon(stateCode string, now time.Time) int {
	months := s.RegionalData(stateCode).MonsoonMonths
	if len(months) == 0 {
		return -1
	}
	current := int(now.Month())
	nearest := 12
	for _, m := range months {
		gap := (m - current + 12) % 12
		if gap < nearest {
			nearest = gap
		}
	}
	return nearest
}

// AdjustMonsoonTiming raises the urgency of fungicide and seed-treatment
// recommendations when the state's monsoon is at most two months away, and
// rewrites their timing guidance to an explicit pre-monsoon call to action.
// Purely a function of the supplied clock and static regional data.
func (s *Service) AdjustMonsoonTiming(stateCode string, recs []recommendation.Recommendation, now time.Time) []recommendation.Recommendation {
	gap := s.MonthsUntilMonsoon(stateCode, now)
	if gap < 0 || gap > monsoonWindowMonths {
		return recs
	}

	for i := range recs {
		if !monsoonSensitiveCategories[recs[i].Category] {
			continue
		}
		recs[i].UrgencyScore += monsoonUrgencyBoost
		if recs[i].UrgencyScore > maxUrgencyScore {
			recs[i].UrgencyScore = maxUrgencyScore
		}
		recs[i].TimingGuidance = fmt.Sprintf(
			"Apply before monsoon (in %d months): fungal pressure rises sharply once the rains arrive.", gap)
	}
	return recs
}
