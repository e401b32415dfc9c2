package validate

import "regexp"

// phoneRE accepts "(DD) NNNNNNNNN" style numbers: a two-digit area code
// without zeros, an optional space, then 8 or 9 digits starting at 2..9.
var phoneRE = regexp.MustCompile(`^\([1-9]{2}\)\s?[2-9][0-9]{3,4}[0-9]{4}$`)

// FormatPhone keeps the first 11 digits of s and, when more than two remain,
// wraps the area code: "11987654321" -> "(11) 987654321".
func FormatPhone(s string) string {
	d := Digits(s)
	if len(d) > 11 {
		d = d[:11]
	}
	if len(d) > 2 {
		return "(" + d[:2] + ") " + d[2:]
	}
	return d
}

// Phone reports whether s is a masked Brazilian phone number.
func Phone(s string) bool {
	return phoneRE.MatchString(s)
}
