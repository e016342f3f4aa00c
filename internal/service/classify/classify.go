// Package classify decides whether a sale qualifies for a celebration.
//
// Classification is a pure function of the event and the operator-supplied
// rules; it never touches storage. The marker matching rule (substring or
// exact, case sensitivity, which fields are inspected) always comes from
// configuration.
package classify

import (
	"strings"

	"github.com/ignite/sales-celebrations/internal/domain"
)

// Rules is the classification part of domain.Settings.
type Rules struct {
	BigSaleThreshold float64
	MarkerText       string
	Match            string
	CaseSensitive    bool
	Fields           []string
}

// RulesFrom extracts the classification rules from validated settings.
func RulesFrom(s domain.Settings) Rules {
	return Rules{
		BigSaleThreshold: s.BigSaleThreshold,
		MarkerText:       s.TGLMarkerText,
		Match:            s.TGLMatch,
		CaseSensitive:    s.TGLCaseSensitive,
		Fields:           s.TGLFields,
	}
}

// Result holds the qualification flags for one event.
type Result struct {
	IsBigSale bool `json:"is_big_sale"`
	IsTGL     bool `json:"is_tgl"`
}

// Qualifies reports whether any celebration applies.
func (r Result) Qualifies() bool { return r.IsBigSale || r.IsTGL }

// Types lists the celebration types to attempt, one per raised flag.
func (r Result) Types() []domain.CelebrationType {
	var out []domain.CelebrationType
	if r.IsBigSale {
		out = append(out, domain.CelebrationBigSale)
	}
	if r.IsTGL {
		out = append(out, domain.CelebrationTGL)
	}
	return out
}

// Classify evaluates an event against the rules.
func Classify(ev domain.SaleEvent, rules Rules) Result {
	return Result{
		IsBigSale: ev.Amount > rules.BigSaleThreshold,
		IsTGL:     HasMarker(ev, rules),
	}
}

// HasMarker reports whether the marker text appears in the summary or on a
// qualifying line item. A line item qualifies only when it carries the marker
// and is zero-priced; a TGL line never contributes revenue.
func HasMarker(ev domain.SaleEvent, rules Rules) bool {
	if strings.TrimSpace(rules.MarkerText) == "" {
		return false
	}
	for _, field := range rules.Fields {
		switch field {
		case domain.FieldSummary:
			if rules.matches(ev.Summary) {
				return true
			}
		case domain.FieldLineItems:
			for _, li := range ev.LineItems {
				if li.Amount == 0 && rules.matches(li.Name) {
					return true
				}
			}
		}
	}
	return false
}

func (r Rules) matches(text string) bool {
	marker := r.MarkerText
	if !r.CaseSensitive {
		text = strings.ToLower(text)
		marker = strings.ToLower(marker)
	}
	if r.Match == domain.MatchExact {
		return strings.TrimSpace(text) == strings.TrimSpace(marker)
	}
	return strings.Contains(text, marker)
}
