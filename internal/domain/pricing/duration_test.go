package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcileDuration(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name         string
		computed     string
		declared     string
		want         string
		usedDeclared bool
		floored      bool
	}{
		{name: "agreement keeps computed", computed: "180", declared: "183", want: "180"},
		{name: "exactly at tolerance keeps computed", computed: "180", declared: "185", want: "180"},
		{name: "material disagreement trusts declared", computed: "180", declared: "210", want: "210", usedDeclared: true},
		{name: "declared lower than computed is trusted too", computed: "240", declared: "200", want: "200", usedDeclared: true},
		{name: "nothing declared", computed: "150", declared: "0", want: "150"},
		{name: "floor applies to computed", computed: "20", declared: "0", want: "60", floored: true},
		{name: "floor applies to declared", computed: "120", declared: "30", want: "60", usedDeclared: true, floored: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ReconcileDuration(dec(tt.computed), dec(tt.declared), rules)
			assertDecimal(t, tt.want, out.Total)
			assert.Equal(t, tt.usedDeclared, out.UsedDeclared)
			assert.Equal(t, tt.floored, out.Floored)
		})
	}
}
