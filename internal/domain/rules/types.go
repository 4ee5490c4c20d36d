// Package rules implements the declarative product-mapping rule engine: a
// JSON-defined DSL that maps field-condition predicates to catalog products
// and synthesizes recommendations from matching rules.
package rules

import (
	"github.com/plantsaathi/market-intelligence/pkg/errors"
)

// NPKCondition matches one nutrient deficiency.
type NPKCondition struct {
	// Nutrient is "nitrogen", "phosphorus" or "potassium".
	Nutrient string `json:"nutrient"`

	// MinSeverity is the least severe tier that still matches, compared by
	// ordinal (low:0, medium:1, high:2).  Empty matches any severity.
	MinSeverity string `json:"min_severity,omitempty"`

	// Optional inclusive bounds on the raw nutrient level.
	MinLevel *float64 `json:"min_level,omitempty"`
	MaxLevel *float64 `json:"max_level,omitempty"`
}

// GrowthStageCondition is an inclusive range test on the crop-cycle
// percentage.
type GrowthStageCondition struct {
	MinPercentage float64 `json:"min_percentage"`
	MaxPercentage float64 `json:"max_percentage"`
}

// Conditions is the predicate set of one rule.  Every present condition
// group must match (AND semantics); an omitted group always matches.
type Conditions struct {
	NPKDeficiency *NPKCondition `json:"npk_deficiency,omitempty"`

	// DiseaseTypes match case-insensitively as substrings of the field's
	// disease history names ("blast" matches "Rice Blast").
	DiseaseTypes []string `json:"disease_types,omitempty"`

	// WeatherConditions match weather risk types exactly.
	WeatherConditions []string `json:"weather_conditions,omitempty"`

	GrowthStage *GrowthStageCondition `json:"growth_stage,omitempty"`

	// CropTypes restrict the rule to fields growing one of these crops.
	CropTypes []string `json:"crop_types,omitempty"`

	// Regions restrict the rule to these state codes.
	Regions []string `json:"regions,omitempty"`
}

// ProductMapping describes the recommendation a matching rule emits.
type ProductMapping struct {
	ProductID string `json:"product_id"`

	// Priority tier: critical, high, medium, low.
	Priority string `json:"priority"`

	// BaseUrgency seeds the recommendation's urgency score, 0–100.
	BaseUrgency float64 `json:"base_urgency"`

	// ConfidenceMultiplier scales the analysis-derived confidence.
	ConfidenceMultiplier float64 `json:"confidence_multiplier"`

	// ReasonTemplate supports {placeholder} tokens filled from the matching
	// signals: {nutrient}, {level}, {severity}, {disease}, {days_since},
	// {weather}, {days_until}, {stage}, {days_to_harvest}, {crop}, {field}.
	ReasonTemplate string `json:"reason_template"`

	// Static companion texts; templates are supported here too.
	DetailedExplanation string `json:"detailed_explanation,omitempty"`
	TimingGuidance      string `json:"timing_guidance,omitempty"`
	ExpectedBenefit     string `json:"expected_benefit,omitempty"`
}

// Rule is one declarative product-mapping rule.
type Rule struct {
	RuleID      string         `json:"rule_id"`
	Description string         `json:"description,omitempty"`
	Enabled     bool           `json:"enabled"`
	Conditions  Conditions     `json:"conditions"`
	Mapping     ProductMapping `json:"product_mapping"`
}

// Validate checks the structural invariants a rule must satisfy before it
// enters the rule set.
func (r *Rule) Validate() error {
	if r.RuleID == "" {
		return errors.New(errors.CodeRuleInvalid, "rule_id is required")
	}
	if r.Mapping.ProductID == "" {
		return errors.Newf(errors.CodeRuleInvalid, "rule %s: product_mapping.product_id is required", r.RuleID)
	}
	if r.Mapping.BaseUrgency < 0 || r.Mapping.BaseUrgency > 100 {
		return errors.Newf(errors.CodeRuleInvalid, "rule %s: base_urgency %.1f is out of range [0, 100]", r.RuleID, r.Mapping.BaseUrgency)
	}
	if r.Mapping.ConfidenceMultiplier <= 0 {
		return errors.Newf(errors.CodeRuleInvalid, "rule %s: confidence_multiplier must be positive", r.RuleID)
	}
	if c := r.Conditions.GrowthStage; c != nil && c.MinPercentage > c.MaxPercentage {
		return errors.Newf(errors.CodeRuleInvalid, "rule %s: growth_stage range is inverted", r.RuleID)
	}
	return nil
}
