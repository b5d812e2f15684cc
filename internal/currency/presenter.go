package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"finify/internal/core"
)

// Locale is the fixed formatting configuration of one currency.
type Locale struct {
	Tag    language.Tag
	Symbol string
	Name   string
}

// Each currency formats with exactly one locale.
var locales = map[Code]Locale{
	USD: {Tag: language.MustParse("en-US"), Symbol: "$", Name: "US Dollar"},
	PHP: {Tag: language.MustParse("fil-PH"), Symbol: "₱", Name: "Philippine Peso"},
}

// LocaleFor returns the formatting locale of c.
func LocaleFor(c Code) (Locale, error) {
	l, ok := locales[c]
	if !ok {
		return Locale{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, c)
	}
	return l, nil
}

// Presenter converts base-currency amounts into a target currency and formats
// them as {symbol}{grouped integer}.{2 digits}.
type Presenter struct {
	base     Code
	printers map[Code]*message.Printer
}

// NewPresenter creates a presenter for amounts stored in base.
func NewPresenter(base Code) *Presenter {
	p := &Presenter{
		base:     base,
		printers: make(map[Code]*message.Printer, len(locales)),
	}
	for code, l := range locales {
		p.printers[code] = message.NewPrinter(l.Tag)
	}
	return p
}

// Base returns the currency the presenter expects amounts in.
func (p *Presenter) Base() Code {
	return p.base
}

// Convert returns amount * rate in the target currency, rounded to two
// decimal places. The rate is ignored when target is the base currency.
func (p *Presenter) Convert(amount core.Money, target Code, rate float64) decimal.Decimal {
	v := decimal.New(amount.Cents, -2)
	if target == p.base {
		return v
	}
	return v.Mul(decimal.NewFromFloat(rate)).Round(2)
}

// Format converts amount to target and renders it in target's locale,
// e.g. "$1,234.56" or "-₱80.00".
func (p *Presenter) Format(amount core.Money, target Code, rate float64) (string, error) {
	l, err := LocaleFor(target)
	if err != nil {
		return "", err
	}
	v := p.Convert(amount, target, rate)
	sign := ""
	if v.IsNegative() {
		sign = "-"
		v = v.Neg()
	}
	v = v.Round(2)
	whole := v.Truncate(0)
	cents := v.Sub(whole).Shift(2).IntPart()
	grouped := p.printers[target].Sprint(number.Decimal(whole.IntPart()))
	return fmt.Sprintf("%s%s%s.%02d", sign, l.Symbol, grouped, cents), nil
}

// FormatPercent renders a percentage with one decimal and an explicit sign
// for non-negative values, e.g. "+12.5%" or "-3.0%".
func FormatPercent(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.1f%%", pct)
	}
	return fmt.Sprintf("%.1f%%", pct)
}

// Trend labels a percentage change.
func Trend(pct float64) string {
	if pct >= 0 {
		return "PROFIT"
	}
	return "LOSS"
}
