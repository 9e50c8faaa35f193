package chart

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultSignificantDigits is the number of digits shown after the
// compressed leading-zero run.
const DefaultSignificantDigits = 2

// FormatPrice renders value the way the Y axis does: prices with fewer than
// three leading fractional zeros render as a plain decimal string; prices
// with three or more leading fractional zeros compress to "0.0(N)D…", where
// N is the leading fractional zero count of the rounded value and D… is up
// to significantDigits digits,
// rounded half-up and stripped of any trailing zeros, taken from just after
// that run.
//
// Ported in semantics (not in code) from the reference implementation's
// _format_price, which exists to keep very-low-priced altcoin charts (e.g.
// 0.00000001234) legible on a fixed-width axis instead of wasting the label
// on a wall of zeros. Rounding can itself shorten the leading-zero run (a
// value like 0.000999999 rounds up to 0.001), so both the zero count and
// the digit string are always derived from the rounded value, never from
// the pre-rounding one — matching _format_price's own rounded_frac
// recomputation rather than reusing the pre-rounding count.
func FormatPrice(value float64, significantDigits int) string {
	if significantDigits <= 0 {
		significantDigits = DefaultSignificantDigits
	}

	d := decimal.NewFromFloat(value)
	if d.IsZero() {
		return "0"
	}

	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	// decimal.NewFromFloat already rounds to the shortest exact decimal
	// representation of the float64, which is the cleanup the reference
	// implementation performs explicitly against binary-float noise.
	_, fracPart := splitFrac(d)
	fracPart = strings.TrimRight(fracPart, "0")
	if fracPart == "" {
		intPart, _ := splitFrac(d)
		return sign + intPart
	}

	leadingZeros := countLeadingZeros(fracPart)
	if leadingZeros < 3 {
		intPart, _ := splitFrac(d)
		return sign + intPart + "." + fracPart
	}

	shift := int32(leadingZeros + significantDigits)
	rounded := d.Shift(shift).Round(0).Shift(-shift)

	_, roundedFrac := splitFrac(rounded)
	roundedFrac = strings.TrimRight(roundedFrac, "0")
	if roundedFrac == "" {
		intPart, _ := splitFrac(rounded)
		return sign + intPart
	}

	roundedZeros := countLeadingZeros(roundedFrac)
	visibleZeros := roundedZeros

	end := roundedZeros + significantDigits
	if end > len(roundedFrac) {
		end = len(roundedFrac)
	}
	significant := ""
	if roundedZeros < end {
		significant = roundedFrac[roundedZeros:end]
	}
	significant = strings.TrimRight(significant, "0")
	if significant == "" {
		significant = "0"
	}

	return sign + "0.0(" + strconv.Itoa(visibleZeros) + ")" + significant
}

// splitFrac returns the integer and fractional parts of d's decimal string.
func splitFrac(d decimal.Decimal) (intPart, fracPart string) {
	i, f, hasFrac := strings.Cut(d.String(), ".")
	if !hasFrac {
		return i, ""
	}
	return i, f
}

func countLeadingZeros(s string) int {
	n := 0
	for n < len(s) && s[n] == '0' {
		n++
	}
	return n
}
