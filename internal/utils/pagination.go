// Package utils provides small helpers shared by the HTTP and service
// layers. They carry no domain logic.
package utils

import "strconv"

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// ParsePage reads raw page and page-size query values. Blank or malformed
// values fall back to page 1 and def; the result is clamped to
// Number >= 1 and 1 <= Size <= maxSize.
func ParsePage(number, size string, def, maxSize int) Page {
	return Page{
		Number: max(atoiDefault(number, 1), 1),
		Size:   min(max(atoiDefault(size, def), 1), maxSize),
	}
}

// Offset is the number of rows before the page.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Pages is how many pages of p.Size the total spans.
func (p Page) Pages(total int64) int {
	if p.Size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}

// HasNext reports whether another page follows p.
func (p Page) HasNext(total int64) bool {
	return p.Number < p.Pages(total)
}

// atoiDefault parses s, returning def when it is empty or not an integer.
func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
