// Package currency maps display currencies to their formatting locale and
// renders base-currency amounts as locale-correct money strings.
package currency

import (
	"errors"
	"strings"
)

// Code is an ISO 4217 currency code from the supported set.
type Code string

const (
	PHP Code = "PHP"
	USD Code = "USD"

	// Base is the currency every stored amount is denominated in.
	Base = PHP
)

var ErrUnknownCurrency = errors.New("unknown currency")

// All returns the supported codes, base first.
func All() []Code {
	return []Code{PHP, USD}
}

// ParseCode accepts a supported code in any letter case.
func ParseCode(s string) (Code, error) {
	c := Code(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", ErrUnknownCurrency
	}
	return c, nil
}

// IsValid returns true if the code is one of the supported currencies
func (c Code) IsValid() bool {
	_, ok := locales[c]
	return ok
}

// String implements fmt.Stringer
func (c Code) String() string {
	return string(c)
}

// DisplayName returns the menu label, e.g. "USD – US Dollar".
func (c Code) DisplayName() string {
	l, ok := locales[c]
	if !ok {
		return string(c)
	}
	return string(c) + " – " + l.Name
}
