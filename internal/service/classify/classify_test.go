package classify

import (
	"testing"

	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/stretchr/testify/assert"
)

func defaultRules() Rules {
	return Rules{
		BigSaleThreshold: 700,
		MarkerText:       "Tech Generated Lead",
		Match:            domain.MatchSubstring,
		Fields:           []string{domain.FieldSummary, domain.FieldLineItems},
	}
}

func TestClassify(t *testing.T) {
	marker := []domain.LineItem{{Name: "Tech Generated Lead - Water Heater", Amount: 0}}

	tests := []struct {
		name      string
		event     domain.SaleEvent
		wantBig   bool
		wantTGL   bool
		wantTypes []domain.CelebrationType
	}{
		{
			name:      "amount over threshold is a big sale",
			event:     domain.SaleEvent{Amount: 750},
			wantBig:   true,
			wantTypes: []domain.CelebrationType{domain.CelebrationBigSale},
		},
		{
			name:  "amount equal to threshold is not a big sale",
			event: domain.SaleEvent{Amount: 700},
		},
		{
			name:      "zero amount with marker line item is a TGL",
			event:     domain.SaleEvent{Amount: 0, LineItems: marker},
			wantTGL:   true,
			wantTypes: []domain.CelebrationType{domain.CelebrationTGL},
		},
		{
			name:      "zero amount with marker in summary is a TGL",
			event:     domain.SaleEvent{Amount: 0, Summary: "Created from a tech generated lead"},
			wantTGL:   true,
			wantTypes: []domain.CelebrationType{domain.CelebrationTGL},
		},
		{
			name:  "zero amount without marker is nothing",
			event: domain.SaleEvent{Amount: 0, LineItems: []domain.LineItem{{Name: "Diagnostic"}}},
		},
		{
			name:      "big amount with marker line raises both flags",
			event:     domain.SaleEvent{Amount: 750, LineItems: append(marker, domain.LineItem{Name: "Water Heater", Amount: 750})},
			wantBig:   true,
			wantTGL:   true,
			wantTypes: []domain.CelebrationType{domain.CelebrationBigSale, domain.CelebrationTGL},
		},
		{
			name:      "priced line carrying the marker does not qualify",
			event:     domain.SaleEvent{Amount: 300, LineItems: []domain.LineItem{{Name: "Tech Generated Lead", Amount: 300}}},
			wantTypes: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.event, defaultRules())
			assert.Equal(t, tt.wantBig, got.IsBigSale)
			assert.Equal(t, tt.wantTGL, got.IsTGL)
			assert.Equal(t, tt.wantTypes, got.Types())
		})
	}
}

func TestClassify_BothFlagsYieldTwoAttempts(t *testing.T) {
	got := Classify(domain.SaleEvent{
		Amount:    750,
		LineItems: []domain.LineItem{{Name: "Tech Generated Lead"}, {Name: "Furnace", Amount: 750}},
	}, defaultRules())

	assert.True(t, got.IsBigSale)
	assert.True(t, got.IsTGL)
	assert.Equal(t, []domain.CelebrationType{domain.CelebrationBigSale, domain.CelebrationTGL}, got.Types())
}

func TestHasMarker_MatchRulesFromConfiguration(t *testing.T) {
	ev := domain.SaleEvent{LineItems: []domain.LineItem{{Name: "tech generated lead"}}}

	rules := defaultRules()
	assert.True(t, HasMarker(ev, rules), "case-insensitive substring")

	rules.CaseSensitive = true
	assert.False(t, HasMarker(ev, rules), "case-sensitive substring")

	rules.CaseSensitive = false
	rules.Match = domain.MatchExact
	assert.True(t, HasMarker(ev, rules), "exact ignoring case")

	ev.LineItems[0].Name = "tech generated lead - HVAC"
	assert.False(t, HasMarker(ev, rules), "exact rejects longer names")

	rules.Match = domain.MatchSubstring
	rules.Fields = []string{domain.FieldSummary}
	assert.False(t, HasMarker(ev, rules), "line items not inspected when not configured")

	rules.Fields = []string{domain.FieldLineItems}
	rules.MarkerText = "  "
	assert.False(t, HasMarker(ev, rules), "blank marker never matches")
}

func TestRulesFrom(t *testing.T) {
	r := RulesFrom(domain.Settings{
		BigSaleThreshold: 1000,
		TGLMarkerText:    "TGL",
		TGLMatch:         domain.MatchExact,
		TGLCaseSensitive: true,
		TGLFields:        []string{domain.FieldSummary},
	})
	assert.Equal(t, 1000.0, r.BigSaleThreshold)
	assert.Equal(t, "TGL", r.MarkerText)
	assert.Equal(t, domain.MatchExact, r.Match)
	assert.True(t, r.CaseSensitive)
	assert.Equal(t, []string{domain.FieldSummary}, r.Fields)
}
