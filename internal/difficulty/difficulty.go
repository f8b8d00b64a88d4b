// Package difficulty converts the human-formatted magnitude strings reported
// by AxeOS ("568M", "12.3K", "1.02G") into comparable numbers and back.
package difficulty

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var suffixes = map[byte]decimal.Decimal{
	'K': decimal.New(1, 3),
	'M': decimal.New(1, 6),
	'G': decimal.New(1, 9),
	'T': decimal.New(1, 12),
}

// Parse returns the canonical value of raw. ok is false when raw carries no
// parseable number; callers skip the update in that case instead of treating
// it as zero.
func Parse(raw string) (value float64, ok bool) {
	d, ok := ParseDecimal(raw)
	if !ok {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// ParseDecimal is Parse without the float conversion.
func ParseDecimal(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, false
	}

	multiplier := decimal.NewFromInt(1)
	if m, found := suffixes[upper(s[len(s)-1])]; found {
		multiplier = m
		s = s[:len(s)-1]
	}

	number := normalize(s)
	if number == "" {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(number)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d.Mul(multiplier), true
}

// normalize keeps digits and decimal separators, turning ',' into '.'.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '.' || c == ',':
			b.WriteByte('.')
		}
	}
	return b.String()
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

// Format renders v both in full with thousands separators and abbreviated,
// e.g. 1234567 -> "1,234,567", "1.23M".
func Format(v float64) (full, abbr string) {
	d := decimal.NewFromFloat(v)
	full = group(d.Round(0).StringFixed(0))

	switch {
	case v >= 1e12:
		abbr = d.Div(suffixes['T']).StringFixed(2) + "T"
	case v >= 1e9:
		abbr = d.Div(suffixes['G']).StringFixed(2) + "G"
	case v >= 1e6:
		abbr = d.Div(suffixes['M']).StringFixed(2) + "M"
	case v >= 1e3:
		abbr = d.Div(suffixes['K']).StringFixed(2) + "K"
	default:
		abbr = d.StringFixed(2)
	}
	return full, abbr
}

// Abbreviate is the short half of Format.
func Abbreviate(v float64) string {
	_, abbr := Format(v)
	return abbr
}

func group(digits string) string {
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= 3 {
		return sign + digits
	}

	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return fmt.Sprintf("%s%s", sign, b.String())
}
