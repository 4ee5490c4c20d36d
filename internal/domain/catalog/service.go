package catalog

import (
	_ "embed"
	"encoding/json"
	"sort"
	"strings"

	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/plantsaathi/market-intelligence/pkg/errors"
)

//go:embed data/catalog.json
var defaultCatalogJSON []byte

// Query is a combined multi-predicate catalog search.  All supplied
// predicates must match (AND semantics); a zero-valued predicate passes
// through unfiltered.
type Query struct {
	Nutrient         string   // matches Addresses.NPKNutrients exactly
	Disease          string   // case-insensitive substring against Addresses.Diseases
	WeatherCondition string   // matches Addresses.WeatherConditions exactly
	GrowthStage      string   // case-insensitive substring against Addresses.GrowthStages
	Category         string   // exact category match
	Region           string   // state membership (RegionAll passes)
	EcoFriendlyOnly  bool     // keep only eco-friendly entries
	MaxPrice         *float64 // price ceiling, inclusive
	MinSustainable   *float64 // sustainability rating floor, inclusive
}

// Service is the read-only query surface over the static product catalog.
// It is safe for concurrent use: entries are never mutated after construction.
type Service struct {
	entries []Entry
	byID    map[string]*Entry
	logger  logging.Logger
}

// NewService loads the embedded catalog document.
func NewService(logger logging.Logger) (*Service, error) {
	return NewServiceFromJSON(defaultCatalogJSON, logger)
}

// NewServiceFromJSON builds a Service from an explicit catalog document,
// used by deployments that ship their own catalog and by tests.
func NewServiceFromJSON(data []byte, logger logging.Logger) (*Service, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, errors.CodeCatalogInvalid, "failed to parse catalog document")
	}

	s := &Service{
		entries: entries,
		byID:    make(map[string]*Entry, len(entries)),
		logger:  logger.Named("catalog"),
	}
	for i := range s.entries {
		s.byID[s.entries[i].ProductID] = &s.entries[i]
	}
	s.logger.Info("catalog loaded", logging.Int("products", len(entries)))
	return s, nil
}

// GetByID returns the entry with the given product id.
func (s *Service) GetByID(id string) (*Entry, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// All returns every catalog entry.
func (s *Service) All() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Search returns all entries matching every supplied predicate of q.
// No-match searches return an empty slice, never an error.
func (s *Service) Search(q Query) []Entry {
	var out []Entry
	for i := range s.entries {
		if s.matches(&s.entries[i], q) {
			out = append(out, s.entries[i])
		}
	}
	return out
}

func (s *Service) matches(e *Entry, q Query) bool {
	if q.Nutrient != "" && !containsFold(e.Addresses.NPKNutrients, q.Nutrient) {
		return false
	}
	if q.Disease != "" && !anySubstringFold(e.Addresses.Diseases, q.Disease) {
		return false
	}
	if q.WeatherCondition != "" && !containsFold(e.Addresses.WeatherConditions, q.WeatherCondition) {
		return false
	}
	if q.GrowthStage != "" && !anySubstringFold(e.Addresses.GrowthStages, q.GrowthStage) {
		return false
	}
	if q.Category != "" && e.Category != q.Category {
		return false
	}
	if q.Region != "" && !e.AvailableIn(q.Region) {
		return false
	}
	if q.EcoFriendlyOnly && !e.EcoFriendly {
		return false
	}
	if q.MaxPrice != nil && e.Price > *q.MaxPrice {
		return false
	}
	if q.MinSustainable != nil && e.SustainabilityRating < *q.MinSustainable {
		return false
	}
	return true
}

// SearchByNutrient returns products treating a deficiency of the nutrient.
func (s *Service) SearchByNutrient(nutrient string) []Entry {
	return s.Search(Query{Nutrient: nutrient})
}

// SearchByDisease returns products addressing the disease (case-insensitive
// substring match in either direction, so "blast" finds entries listing
// "rice blast" and vice versa).
func (s *Service) SearchByDisease(disease string) []Entry {
	return s.Search(Query{Disease: disease})
}

// SearchByWeatherCondition returns products addressing the weather risk type.
func (s *Service) SearchByWeatherCondition(condition string) []Entry {
	return s.Search(Query{WeatherCondition: condition})
}

// SearchByGrowthStage returns products targeted at the growth stage.
func (s *Service) SearchByGrowthStage(stage string) []Entry {
	return s.Search(Query{GrowthStage: stage})
}

// SearchByCategory returns products in the category.
func (s *Service) SearchByCategory(category string) []Entry {
	return s.Search(Query{Category: category})
}

// SearchByRegion returns products available in the state.
func (s *Service) SearchByRegion(state string) []Entry {
	return s.Search(Query{Region: state})
}

// SearchEcoFriendly returns only eco-friendly products.
func (s *Service) SearchEcoFriendly() []Entry {
	return s.Search(Query{EcoFriendlyOnly: true})
}

// SearchByMaxPrice returns products priced at or below the ceiling.
func (s *Service) SearchByMaxPrice(maxPrice float64) []Entry {
	return s.Search(Query{MaxPrice: &maxPrice})
}

// SearchByMinSustainability returns products rated at or above the floor.
func (s *Service) SearchByMinSustainability(rating float64) []Entry {
	return s.Search(Query{MinSustainable: &rating})
}

// Alternatives returns products in the same category and subcategory as the
// source product, excluding the source itself.  Unknown ids yield nil.
func (s *Service) Alternatives(productID string) []Entry {
	src, ok := s.byID[productID]
	if !ok {
		return nil
	}
	var out []Entry
	for i := range s.entries {
		e := &s.entries[i]
		if e.ProductID == productID {
			continue
		}
		if e.Category == src.Category && e.Subcategory == src.Subcategory {
			out = append(out, *e)
		}
	}
	return out
}

// BudgetAlternatives returns same-category/subcategory products cheaper than
// the source product, sorted by ascending price.
func (s *Service) BudgetAlternatives(productID string) []Entry {
	src, ok := s.byID[productID]
	if !ok {
		return nil
	}
	alts := s.Alternatives(productID)
	var out []Entry
	for _, e := range alts {
		if e.Price < src.Price {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

// containsFold reports whether list contains val, case-insensitively.
func containsFold(list []string, val string) bool {
	for _, v := range list {
		if strings.EqualFold(v, val) {
			return true
		}
	}
	return false
}

// anySubstringFold reports whether any list element and val contain each
// other case-insensitively.
func anySubstringFold(list []string, val string) bool {
	lv := strings.ToLower(val)
	for _, v := range list {
		le := strings.ToLower(v)
		if strings.Contains(le, lv) || strings.Contains(lv, le) {
			return true
		}
	}
	return false
}
