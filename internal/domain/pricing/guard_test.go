package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdditionalAmount(t *testing.T) {
	tests := []struct {
		original, updated, want string
	}{
		{"108.88", "130.65", "21.77"},
		{"108.88", "108.88", "0"},
		{"108.88", "108.884", "0"},
		{"108.88", "108.876", "0"},
		{"108.88", "108.89", "0.01"},
		{"108.88", "108.87", "-0.01"},
		{"108.88", "108.90", "0.02"},
		{"108.88", "100", "-8.88"},
	}
	for _, tt := range tests {
		got := AdditionalAmount(dec(tt.original), dec(tt.updated))
		assertDecimal(t, tt.want, got, "original %s updated %s", tt.original, tt.updated)
	}
}

func TestCheckMonotonic(t *testing.T) {
	require.NoError(t, CheckMonotonic(dec("108.88"), dec("130.65")))
	require.NoError(t, CheckMonotonic(dec("108.88"), dec("108.87")))
	require.Error(t, CheckMonotonic(dec("108.88"), dec("108.86")))

	err := CheckMonotonic(dec("108.88"), dec("90"))
	var decErr *TotalDecreaseError
	require.ErrorAs(t, err, &decErr)
	assert.Contains(t, err.Error(), "108.88")
	assert.Contains(t, err.Error(), "90.00")
}
