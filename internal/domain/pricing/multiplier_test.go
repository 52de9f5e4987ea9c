package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveMultiplier(t *testing.T) {
	deep := deepExtra("deep", "40", "1.5")
	super := superDeepExtra("super", "80", "2")
	flat := flatExtra("fridge", "25", "30")

	tests := []struct {
		name       string
		extras     []ExtraItem
		wantFactor string
		wantFee    string
		wantSource MultiplierSource
	}{
		{
			name:       "no extras is neutral",
			wantFactor: "1",
			wantFee:    "0",
			wantSource: SourceNone,
		},
		{
			name:       "plain extras do not activate a multiplier",
			extras:     []ExtraItem{extraItem(flat, 0, "0")},
			wantFactor: "1",
			wantFee:    "0",
			wantSource: SourceNone,
		},
		{
			name:       "deep clean alone",
			extras:     []ExtraItem{extraItem(flat, 0, "0"), extraItem(deep, 0, "0")},
			wantFactor: "1.5",
			wantFee:    "40",
			wantSource: SourceDeepClean,
		},
		{
			name:       "super deep after deep overrides",
			extras:     []ExtraItem{extraItem(deep, 0, "0"), extraItem(super, 0, "0")},
			wantFactor: "2",
			wantFee:    "80",
			wantSource: SourceSuperDeepClean,
		},
		{
			name:       "super deep before deep still wins",
			extras:     []ExtraItem{extraItem(super, 0, "0"), extraItem(deep, 0, "0")},
			wantFactor: "2",
			wantFee:    "80",
			wantSource: SourceSuperDeepClean,
		},
		{
			name:       "unset multiplier on a deep line is neutral",
			extras:     []ExtraItem{extraItem(deepExtra("deep0", "40", "0"), 0, "0")},
			wantFactor: "1",
			wantFee:    "40",
			wantSource: SourceDeepClean,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ResolveMultiplier(tt.extras)
			assertDecimal(t, tt.wantFactor, m.Factor)
			assertDecimal(t, tt.wantFee, m.FlatFee)
			assert.Equal(t, tt.wantSource, m.Source)
		})
	}
}

func TestResolveMultiplier_FirstDeepLineKept(t *testing.T) {
	m := ResolveMultiplier([]ExtraItem{
		extraItem(deepExtra("deep-a", "40", "1.5"), 0, "0"),
		extraItem(deepExtra("deep-b", "55", "1.8"), 0, "0"),
	})

	assert.Equal(t, "deep-a", m.ExtraID)
	assertDecimal(t, "1.5", m.Factor)
}
