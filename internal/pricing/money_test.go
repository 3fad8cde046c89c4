package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := map[string]Money{
		"25.50":  2550,
		"25.5":   2550,
		"100":    10000,
		"0":      0,
		" 15.00": 1500,
	}
	for input, want := range cases {
		got, err := ParseAmount(input)
		require.NoError(t, err, input)
		require.Equal(t, want, got, input)
	}
}

func TestParseAmountRejectsInvalidValues(t *testing.T) {
	for _, input := range []string{"", "-1", "-0.01", "1.005", "NaN", "Inf", "abc", "99999999999999999999999"} {
		_, err := ParseAmount(input)
		require.ErrorIs(t, err, ErrInvalidAmount, input)
	}
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "75.18", FormatAmount(7518))
	require.Equal(t, "0.00", FormatAmount(0))
	require.Equal(t, "15.00", FormatAmount(1500))
}
