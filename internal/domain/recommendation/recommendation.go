// Package recommendation defines the engine's output unit and the list
// operations — stable ranking, duplicate merging, category/priority filters —
// applied to rule-engine output before it reaches consumers.
package recommendation

import (
	"fmt"
	"sort"
)

// Priority tiers, strongest first.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Recommendation is one product suggestion for one or more fields.  It is
// created transiently per request and never persisted; identical inputs
// always recompute to identical recommendations.
type Recommendation struct {
	// ID is deterministic from the field and product ids, so repeated
	// generation yields stable identifiers for UI reconciliation.
	ID string `json:"id"`

	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image_url,omitempty"`
	ProductURL  string  `json:"product_url,omitempty"`

	Priority string `json:"priority"`

	// UrgencyScore ranges 0–100 and may be raised by regional timing logic.
	UrgencyScore float64 `json:"urgency_score"`

	// Confidence is base data quality × rule-specific multiplier, 0..1.
	Confidence float64 `json:"confidence"`

	Reason              string `json:"reason"`
	DetailedExplanation string `json:"detailed_explanation,omitempty"`
	TimingGuidance      string `json:"timing_guidance,omitempty"`
	ExpectedBenefit     string `json:"expected_benefit,omitempty"`

	RegionalAvailable bool `json:"regional_available"`

	// FieldsNeeding lists the field ids this recommendation applies to;
	// duplicate merging unions these.
	FieldsNeeding []string `json:"fields_needing"`
}

// MakeID builds the deterministic recommendation id for a field/product pair.
func MakeID(fieldID, productID string) string {
	return fmt.Sprintf("rec_%s_%s", fieldID, productID)
}

// SortByUrgency orders recommendations descending by urgency score, breaking
// ties by descending confidence.  The sort is stable: equal-key elements keep
// their relative order.
func SortByUrgency(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].UrgencyScore != recs[j].UrgencyScore {
			return recs[i].UrgencyScore > recs[j].UrgencyScore
		}
		return recs[i].Confidence > recs[j].Confidence
	})
}

// Deduplicate merges recommendations sharing a product id: the
// highest-urgency variant keeps its text fields and id, and the merged entry
// unions every variant's FieldsNeeding (input order, first occurrence wins).
// Output preserves the order of each product's first appearance, so running
// Deduplicate on already-deduplicated input is a no-op.
func Deduplicate(recs []Recommendation) []Recommendation {
	if len(recs) <= 1 {
		return recs
	}

	index := make(map[string]int, len(recs))
	out := make([]Recommendation, 0, len(recs))

	for _, r := range recs {
		at, seen := index[r.ProductID]
		if !seen {
			index[r.ProductID] = len(out)
			// Copy the slice so merging never aliases the caller's data.
			r.FieldsNeeding = append([]string(nil), r.FieldsNeeding...)
			out = append(out, r)
			continue
		}

		kept := &out[at]
		fields := unionFields(kept.FieldsNeeding, r.FieldsNeeding)
		if r.UrgencyScore > kept.UrgencyScore {
			r.FieldsNeeding = fields
			*kept = r
		} else {
			kept.FieldsNeeding = fields
		}
	}
	return out
}

func unionFields(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range a {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range b {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// FilterByCategory returns the recommendations in the given product category,
// order-preserving.
func FilterByCategory(recs []Recommendation, category string) []Recommendation {
	out := make([]Recommendation, 0, len(recs))
	for _, r := range recs {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}

// FilterByPriority returns the recommendations at the given priority tier,
// order-preserving.
func FilterByPriority(recs []Recommendation, priority string) []Recommendation {
	out := make([]Recommendation, 0, len(recs))
	for _, r := range recs {
		if r.Priority == priority {
			out = append(out, r)
		}
	}
	return out
}
