package currency

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finify/internal/core"
)

func TestFormatBaseCurrencyIgnoresRate(t *testing.T) {
	p := NewPresenter(PHP)
	got, err := p.Format(core.Money{Cents: 123456789}, PHP, 0.018)
	require.NoError(t, err)
	assert.Equal(t, "₱1,234,567.89", got)
}

func TestFormat(t *testing.T) {
	p := NewPresenter(PHP)
	cases := []struct {
		name   string
		amount int64
		code   Code
		rate   float64
		want   string
	}{
		{"php zero", 0, PHP, 1, "₱0.00"},
		{"php small", 5, PHP, 1, "₱0.05"},
		{"php negative", -8000000, PHP, 1, "-₱80,000.00"},
		{"usd converted", 90000, USD, 0.018, "$16.20"},
		{"usd grouped", 100000000, USD, 0.0175, "$17,500.00"},
		{"usd rounding half away from zero", 1, USD, 0.5, "$0.01"},
		{"usd negative", -50000, USD, 0.018, "-$9.00"},
		{"usd identity fallback", 123456, USD, 1, "$1,234.56"},
		{"php cents exact beyond float precision", 9007199254740993, PHP, 1, "₱90,071,992,547,409.93"},
		{"php largest amount", math.MaxInt64, PHP, 1, "₱92,233,720,368,547,758.07"},
		{"php smallest amount", math.MinInt64 + 1, PHP, 1, "-₱92,233,720,368,547,758.07"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := p.Format(core.Money{Cents: tc.amount}, tc.code, tc.rate)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatUnknownCurrency(t *testing.T) {
	_, err := NewPresenter(PHP).Format(core.Money{Cents: 1}, Code("EUR"), 1)
	assert.True(t, errors.Is(err, ErrUnknownCurrency))
}

func TestConvert(t *testing.T) {
	p := NewPresenter(PHP)
	assert.Equal(t, "9", p.Convert(core.Money{Cents: 50000}, USD, 0.018).String())
	assert.Equal(t, "500", p.Convert(core.Money{Cents: 50000}, PHP, 0.018).String())
}

func TestParseCode(t *testing.T) {
	c, err := ParseCode(" usd ")
	require.NoError(t, err)
	assert.Equal(t, USD, c)

	_, err = ParseCode("EUR")
	assert.ErrorIs(t, err, ErrUnknownCurrency)

	assert.Equal(t, "PHP – Philippine Peso", PHP.DisplayName())
	assert.Equal(t, "USD – US Dollar", USD.DisplayName())
	assert.Equal(t, []Code{PHP, USD}, All())
}

func TestFormatPercentAndTrend(t *testing.T) {
	assert.Equal(t, "+12.5%", FormatPercent(12.5))
	assert.Equal(t, "+0.0%", FormatPercent(0))
	assert.Equal(t, "-3.3%", FormatPercent(-3.333))
	assert.Equal(t, "PROFIT", Trend(0))
	assert.Equal(t, "LOSS", Trend(-0.1))
}
