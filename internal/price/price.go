// Package price turns vendor price representations into a numeric price and a display string.
//
// None of the functions return errors. Input that cannot be read as a number
// is treated as a missing price.
package price

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const (
	// ContactForPrice is shown when the upstream price is zero
	ContactForPrice = "Contact for Price"
	// InstoreOnly is shown for listings that hide the price behind a call or visit
	InstoreOnly = "Instore/Phone Only"
	// NotAvailable is shown when the price element is empty
	NotAvailable = "N/A"
	// DefaultMinorUnit is used when the store does not report currency_minor_unit
	DefaultMinorUnit = 2

	gstSuffix = " GST excl."
)

var amountPattern = regexp.MustCompile(`\$[\d,]+\.?\d*`)

// FromText reads a price scraped from listing markup.
//
// The last dollar amount wins, so "$20.00 $15.00" yields 15.00.
func FromText(text string) (*decimal.Decimal, string) {
	text = strings.TrimSpace(text)
	if strings.Contains(text, "Instore") || strings.Contains(text, "Phone") {
		return nil, InstoreOnly
	}

	amounts := amountPattern.FindAllString(text, -1)
	if len(amounts) == 0 {
		if text == "" {
			return nil, NotAvailable
		}
		return nil, text
	}

	value, ok := parseAmount(amounts[len(amounts)-1])
	if !ok || !value.IsPositive() {
		return nil, text
	}
	return &value, text
}

// FromMinorUnits reads Store API prices expressed as integer strings in minor units.
func FromMinorUnits(priceRaw, regularRaw string, minorUnit int) (*decimal.Decimal, string) {
	if minorUnit < 0 {
		minorUnit = DefaultMinorUnit
	}
	price, okPrice := parseDecimal(priceRaw)
	regular, okRegular := parseDecimal(regularRaw)
	if !okPrice || !okRegular {
		price, regular = decimal.Zero, decimal.Zero
	}
	price = price.Shift(int32(-minorUnit))
	regular = regular.Shift(int32(-minorUnit))

	if !price.IsPositive() {
		return nil, ContactForPrice
	}
	if price.LessThan(regular) {
		return &price, Format(price) + " (was " + Format(regular) + ")" + gstSuffix
	}
	return &price, Format(price) + gstSuffix
}

// FromDecimal reads decimal price strings with an optional compare-at price.
func FromDecimal(priceRaw, compareAtRaw string) (*decimal.Decimal, string) {
	price, ok := parseDecimal(priceRaw)
	if !ok || !price.IsPositive() {
		return nil, ContactForPrice
	}
	if compareAt, ok := parseDecimal(compareAtRaw); ok && compareAt.GreaterThan(price) {
		return &price, Format(price) + " (was " + Format(compareAt) + ")"
	}
	return &price, Format(price)
}

// Format renders an amount as dollars with thousands grouping and two decimals.
func Format(d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	whole, frac, _ := strings.Cut(d.Abs().StringFixed(2), ".")
	n, _ := new(big.Int).SetString(whole, 10)
	return sign + "$" + humanize.BigComma(n) + "." + frac
}

func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.TrimPrefix(s, "$"), ",", "")
	return parseDecimal(strings.TrimSuffix(s, "."))
}

// parseDecimal treats empty input as zero and reports false only for garbage.
func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
