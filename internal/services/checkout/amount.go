// Package checkout holds the visitor-facing checkout flow: amount entry,
// payment intent initiation and the per-visitor session state that the
// pages render from.
package checkout

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPattern is the accepted shape of an amount while it is being typed.
const AmountPattern = `^\d*\.?\d{0,2}$`

var amountPattern = regexp.MustCompile(AmountPattern)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrBelowMinimum  = errors.New("amount below minimum")
	ErrAboveMaximum  = errors.New("amount above maximum")
)

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// Amount is a display string accepted by ParseAmount. The zero value is the
// empty amount.
type Amount struct {
	raw   string
	value decimal.Decimal
}

func ParseAmount(raw string) (Amount, error) {
	if !amountPattern.MatchString(raw) {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	normalized := strings.TrimSuffix(raw, ".")
	if strings.HasPrefix(normalized, ".") {
		normalized = "0" + normalized
	}
	if normalized == "" {
		return Amount{raw: raw}, nil
	}

	value, err := decimal.NewFromString(normalized)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	return Amount{raw: raw, value: value}, nil
}

func (a Amount) String() string {
	return a.raw
}

// MinorUnits converts the amount to cents, rounding half away from zero.
func (a Amount) MinorUnits() int64 {
	cents := a.value.Shift(2).Round(0)
	if cents.GreaterThan(maxMinorUnits) {
		return math.MaxInt64
	}

	return cents.IntPart()
}

// Policy is the set of amount rules applied before a payment intent is
// requested.
type Policy struct {
	Currency string
	Minimum  int64
	Maximum  int64
}

func DefaultPolicy() Policy {
	return Policy{
		Currency: "usd",
		Minimum:  50,
		Maximum:  99999999,
	}
}

func (p Policy) Payable(minor int64) bool {
	return minor >= p.Minimum
}

func (p Policy) Check(minor int64) error {
	if minor < p.Minimum {
		return fmt.Errorf("%w: %s", ErrBelowMinimum, FormatMinorUnits(p.Minimum, p.Currency))
	}
	if p.Maximum > 0 && minor > p.Maximum {
		return fmt.Errorf("%w: %s", ErrAboveMaximum, FormatMinorUnits(p.Maximum, p.Currency))
	}

	return nil
}

var currencySymbols = map[string]string{
	"usd": "$",
	"cad": "$",
	"aud": "$",
	"eur": "€",
	"gbp": "£",
	"jpy": "¥",
	"inr": "₹",
}

// Currencies whose minor unit is not a hundredth of the major unit.
var (
	zeroDecimalCurrencies = map[string]bool{
		"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
		"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
		"vuv": true, "xaf": true, "xof": true, "xpf": true,
	}
	threeDecimalCurrencies = map[string]bool{
		"bhd": true, "jod": true, "kwd": true, "omr": true, "tnd": true,
	}
)

// CurrencyExponent returns the number of decimal places of currency's
// minor unit.
func CurrencyExponent(currency string) int32 {
	code := strings.ToLower(currency)
	switch {
	case zeroDecimalCurrencies[code]:
		return 0
	case threeDecimalCurrencies[code]:
		return 3
	default:
		return 2
	}
}

// FormatMinorUnits renders minor units as a currency symbol followed by the
// amount in major units, e.g. "$20.00" or "¥2000". Currencies without a
// known symbol are rendered as "20.00 CHF".
func FormatMinorUnits(minor int64, currency string) string {
	exp := CurrencyExponent(currency)
	amount := decimal.New(minor, -exp).StringFixed(exp)

	code := strings.ToLower(currency)
	if symbol, ok := currencySymbols[code]; ok {
		return symbol + amount
	}

	return amount + " " + strings.ToUpper(code)
}

// DisplayAmount is FormatMinorUnits with the currency code appended when the
// symbol alone is ambiguous, e.g. "$20.00 USD".
func DisplayAmount(minor int64, currency string) string {
	formatted := FormatMinorUnits(minor, currency)
	if _, ok := currencySymbols[strings.ToLower(currency)]; !ok {
		return formatted
	}

	return formatted + " " + strings.ToUpper(currency)
}
