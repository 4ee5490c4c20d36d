package rules

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/plantsaathi/market-intelligence/internal/domain/analysis"
	"github.com/plantsaathi/market-intelligence/internal/domain/catalog"
	"github.com/plantsaathi/market-intelligence/internal/domain/recommendation"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/plantsaathi/market-intelligence/pkg/errors"
)

//go:embed data/rules.json
var defaultRulesJSON []byte

// match carries the signals a rule's conditions bound during evaluation,
// used for template filling and confidence selection.
type match struct {
	nutrient   string
	deficiency *analysis.NPKDeficiency
	disease    *analysis.DiseaseRecord
	weather    *analysis.WeatherRisk
	growth     bool
}

// signalConfidence picks the confidence of the most specific matched signal.
// Specificity order: NPK reading, then disease history, then weather
// forecast, then growth estimate.  Rules matching nothing concrete fall back
// to the analysis data quality alone.
func (m *match) signalConfidence(fa *analysis.FieldAnalysis) (float64, bool) {
	switch {
	case m.deficiency != nil:
		return m.deficiency.Confidence, true
	case m.disease != nil:
		return m.disease.Confidence, true
	case m.weather != nil:
		return m.weather.Confidence, true
	case m.growth:
		return fa.GrowthStage.Confidence, true
	}
	return 0, false
}

// Engine evaluates the rule set against field analyses and synthesizes
// recommendations.  The rule set is hot-swappable; all methods are safe for
// concurrent use.
type Engine struct {
	mu      sync.RWMutex
	rules   []Rule
	catalog *catalog.Service
	logger  logging.Logger
}

// NewEngine builds an engine loaded with the embedded default rule set.
func NewEngine(cat *catalog.Service, logger logging.Logger) (*Engine, error) {
	return NewEngineFromJSON(defaultRulesJSON, cat, logger)
}

// NewEngineFromJSON builds an engine from an explicit rules document.
func NewEngineFromJSON(data []byte, cat *catalog.Service, logger logging.Logger) (*Engine, error) {
	e := &Engine{
		catalog: cat,
		logger:  logger.Named("rules"),
	}
	if err := e.LoadJSON(data); err != nil {
		return nil, err
	}
	return e, nil
}

// LoadJSON parses, validates and atomically installs a complete rule set.
// On any error the previous rule set stays in effect.
func (e *Engine) LoadJSON(data []byte) error {
	var parsed []Rule
	if err := json.Unmarshal(data, &parsed); err != nil {
		return errors.Wrap(err, errors.CodeRuleLoadFailed, "failed to parse rules document")
	}

	seen := make(map[string]bool, len(parsed))
	for i := range parsed {
		if err := parsed[i].Validate(); err != nil {
			return err
		}
		if seen[parsed[i].RuleID] {
			return errors.Newf(errors.CodeRuleDuplicate, "duplicate rule_id %s", parsed[i].RuleID)
		}
		seen[parsed[i].RuleID] = true
	}

	e.mu.Lock()
	e.rules = parsed
	e.mu.Unlock()

	e.logger.Info("rule set loaded", logging.Int("rules", len(parsed)))
	return nil
}

// ExportJSON serializes the current rule set.  The output round-trips
// through LoadJSON without loss.
func (e *Engine) ExportJSON() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	data, err := json.MarshalIndent(e.rules, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to serialize rule set")
	}
	return data, nil
}

// Rules returns a copy of the current rule set.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Rule returns the rule with the given ID.
func (e *Engine) Rule(ruleID string) (Rule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, r := range e.rules {
		if r.RuleID == ruleID {
			return r, nil
		}
	}
	return Rule{}, errors.Newf(errors.CodeRuleNotFound, "rule %s not found", ruleID)
}

// cloneRulesLocked copies the current rule set.  Mutators modify the copy
// and swap it in, so a slice snapshotted by Evaluate is never written to.
// Callers must hold the write lock.
func (e *Engine) cloneRulesLocked() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// AddRule appends a validated rule; duplicate IDs are rejected.
func (e *Engine) AddRule(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].RuleID == r.RuleID {
			return errors.Newf(errors.CodeRuleDuplicate, "rule %s already exists", r.RuleID)
		}
	}
	e.rules = append(e.cloneRulesLocked(), r)
	e.logger.Info("rule added", logging.String("rule_id", r.RuleID))
	return nil
}

// UpdateRule replaces the rule with the matching ID.
func (e *Engine) UpdateRule(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].RuleID == r.RuleID {
			next := e.cloneRulesLocked()
			next[i] = r
			e.rules = next
			e.logger.Info("rule updated", logging.String("rule_id", r.RuleID))
			return nil
		}
	}
	return errors.Newf(errors.CodeRuleNotFound, "rule %s not found", r.RuleID)
}

// RemoveRule deletes the rule with the given ID.
func (e *Engine) RemoveRule(ruleID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].RuleID == ruleID {
			next := e.cloneRulesLocked()
			e.rules = append(next[:i], next[i+1:]...)
			e.logger.Info("rule removed", logging.String("rule_id", ruleID))
			return nil
		}
	}
	return errors.Newf(errors.CodeRuleNotFound, "rule %s not found", ruleID)
}

// SetEnabled flips a rule on or off without touching its definition.
func (e *Engine) SetEnabled(ruleID string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].RuleID == ruleID {
			next := e.cloneRulesLocked()
			next[i].Enabled = enabled
			e.rules = next
			e.logger.Info("rule toggled",
				logging.String("rule_id", ruleID),
				logging.Bool("enabled", enabled))
			return nil
		}
	}
	return errors.Newf(errors.CodeRuleNotFound, "rule %s not found", ruleID)
}

// Evaluate runs every enabled rule against the analysis and returns the raw
// recommendations of all matching rules, in rule order.  Regional filtering,
// monsoon adjustment, sorting and deduplication happen downstream.
func (e *Engine) Evaluate(fa *analysis.FieldAnalysis) []recommendation.Recommendation {
	// Mutators swap in a fresh slice rather than writing through this one,
	// so iterating outside the lock is safe.
	e.mu.RLock()
	snapshot := e.rules
	e.mu.RUnlock()

	var recs []recommendation.Recommendation
	for i := range snapshot {
		r := &snapshot[i]
		if !r.Enabled {
			continue
		}
		m, ok := matchRule(&r.Conditions, fa)
		if !ok {
			continue
		}
		rec, ok := e.synthesize(r, fa, m)
		if !ok {
			continue
		}
		recs = append(recs, rec)
	}
	e.logger.Debug("rules evaluated",
		logging.String("field_id", fa.FieldID),
		logging.Int("rules", len(snapshot)),
		logging.Int("matched", len(recs)))
	return recs
}

// matchRule tests every present condition group; all must hold.
func matchRule(c *Conditions, fa *analysis.FieldAnalysis) (*match, bool) {
	m := &match{}

	if c.NPKDeficiency != nil {
		d, ok := fa.NPKDeficiencies[c.NPKDeficiency.Nutrient]
		if !ok {
			return nil, false
		}
		if ms := c.NPKDeficiency.MinSeverity; ms != "" &&
			analysis.SeverityOrdinal(d.Severity) < analysis.SeverityOrdinal(ms) {
			return nil, false
		}
		if c.NPKDeficiency.MinLevel != nil && d.Level < *c.NPKDeficiency.MinLevel {
			return nil, false
		}
		if c.NPKDeficiency.MaxLevel != nil && d.Level > *c.NPKDeficiency.MaxLevel {
			return nil, false
		}
		m.nutrient = c.NPKDeficiency.Nutrient
		m.deficiency = &d
	}

	if len(c.DiseaseTypes) > 0 {
		found := false
		for i := range fa.DiseaseHistory {
			record := &fa.DiseaseHistory[i]
			for _, want := range c.DiseaseTypes {
				if strings.Contains(strings.ToLower(record.DiseaseName), strings.ToLower(want)) {
					m.disease = record
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return nil, false
		}
	}

	if len(c.WeatherConditions) > 0 {
		found := false
		for i := range fa.WeatherRisks {
			risk := &fa.WeatherRisks[i]
			for _, want := range c.WeatherConditions {
				if risk.Type == want {
					m.weather = risk
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return nil, false
		}
	}

	if c.GrowthStage != nil {
		pct := fa.GrowthStage.Percentage
		if pct < c.GrowthStage.MinPercentage || pct > c.GrowthStage.MaxPercentage {
			return nil, false
		}
		m.growth = true
	}

	if len(c.CropTypes) > 0 && !containsFold(c.CropTypes, fa.CropType) {
		return nil, false
	}
	if len(c.Regions) > 0 && !containsFold(c.Regions, fa.Region) {
		return nil, false
	}

	return m, true
}

// synthesize turns a matched rule into a recommendation, resolving the
// mapped product against the catalog.  Rules pointing at unknown products
// are skipped with a warning rather than failing the whole evaluation.
func (e *Engine) synthesize(r *Rule, fa *analysis.FieldAnalysis, m *match) (recommendation.Recommendation, bool) {
	entry, ok := e.catalog.GetByID(r.Mapping.ProductID)
	if !ok {
		e.logger.Warn("rule maps to unknown product, skipping",
			logging.String("rule_id", r.RuleID),
			logging.String("product_id", r.Mapping.ProductID))
		return recommendation.Recommendation{}, false
	}

	confidence := fa.DataQualityScore
	if sc, ok := m.signalConfidence(fa); ok && sc < confidence {
		confidence = sc
	}
	confidence *= r.Mapping.ConfidenceMultiplier
	if confidence > 1 {
		confidence = 1
	}

	fill := templateReplacer(fa, m)
	rec := recommendation.Recommendation{
		ID:                  recommendation.MakeID(fa.FieldID, entry.ProductID),
		ProductID:           entry.ProductID,
		ProductName:         entry.Name("en"),
		Category:            entry.Category,
		Price:               entry.Price,
		ImageURL:            entry.ImageURL,
		ProductURL:          entry.ProductURL,
		Priority:            r.Mapping.Priority,
		UrgencyScore:        r.Mapping.BaseUrgency,
		Confidence:          confidence,
		Reason:              fill.Replace(r.Mapping.ReasonTemplate),
		DetailedExplanation: fill.Replace(r.Mapping.DetailedExplanation),
		TimingGuidance:      fill.Replace(r.Mapping.TimingGuidance),
		ExpectedBenefit:     fill.Replace(r.Mapping.ExpectedBenefit),
		RegionalAvailable:   entry.AvailableIn(fa.Region),
		FieldsNeeding:       []string{fa.FieldID},
	}
	return rec, true
}

// templateReplacer binds the {placeholder} tokens to the matched signals.
// Days-since values are anchored to the analysis timestamp so evaluation is
// deterministic for a given analysis.
func templateReplacer(fa *analysis.FieldAnalysis, m *match) *strings.Replacer {
	pairs := []string{
		"{field}", fa.FieldName,
		"{crop}", fa.CropType,
		"{stage}", fa.GrowthStage.StageName,
		"{days_to_harvest}", fmt.Sprintf("%d", fa.GrowthStage.DaysToHarvest),
	}
	if m.deficiency != nil {
		pairs = append(pairs,
			"{nutrient}", m.nutrient,
			"{level}", fmt.Sprintf("%.2f", m.deficiency.Level),
			"{severity}", m.deficiency.Severity,
		)
	}
	if m.disease != nil {
		daysSince := int(fa.AnalyzedAt.Sub(m.disease.LastDetected).Hours() / 24)
		pairs = append(pairs,
			"{disease}", m.disease.DiseaseName,
			"{days_since}", fmt.Sprintf("%d", daysSince),
		)
	}
	if m.weather != nil {
		pairs = append(pairs,
			"{weather}", m.weather.Type,
			"{days_until}", fmt.Sprintf("%d", m.weather.DaysUntil),
		)
	}
	return strings.NewReplacer(pairs...)
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}
