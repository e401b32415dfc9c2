// Package validate holds the Brazilian document and contact validators used
// by registration and profile editing: CPF check digits and masking, phone
// masking and shape, and the step-one registration rules. It also exposes
// the same checks as gin binding tags.
package validate

import "strings"

// Digits strips everything but ASCII digits from s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// CPF reports whether s is a valid CPF. Punctuation is ignored; the number
// must have 11 digits, not all identical, and both mod-11 check digits must
// match.
func CPF(s string) bool {
	d := Digits(s)
	if len(d) != 11 {
		return false
	}
	if strings.Count(d, d[:1]) == 11 {
		return false
	}
	return checkDigit(d[:9], 10) == int(d[9]-'0') &&
		checkDigit(d[:10], 11) == int(d[10]-'0')
}

// checkDigit weights digits from startWeight downwards, then maps the
// remainder of (sum*10)%11 onto 0..9 with 10 folding to 0.
func checkDigit(digits string, startWeight int) int {
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i]-'0') * (startWeight - i)
	}
	r := (sum * 10) % 11
	if r == 10 {
		return 0
	}
	return r
}

// FormatCPF masks up to 11 digits of s progressively as 000.000.000-00.
// Partial input is masked as far as it goes ("1234" -> "123.4").
func FormatCPF(s string) string {
	d := Digits(s)
	if len(d) > 11 {
		d = d[:11]
	}
	switch n := len(d); {
	case n <= 3:
		return d
	case n <= 6:
		return d[:3] + "." + d[3:]
	case n < 11:
		return d[:3] + "." + d[3:6] + "." + d[6:]
	default:
		return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
	}
}
