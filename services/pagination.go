package services

import (
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// ParsePage never fails: bad or missing values fall back to defaults.
func ParsePage(number, size string) Page {
	p := Page{Number: 1, Size: DefaultPageSize}
	if n, err := strconv.Atoi(number); err == nil && n > 0 {
		p.Number = n
	}
	if s, err := strconv.Atoi(size); err == nil && s > 0 {
		p.Size = s
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

type PageResult[T any] struct {
	Count   int64
	Results []T
}

// HasNext reports whether rows remain after this page.
func (r PageResult[T]) HasNext(p Page) bool {
	return int64(p.Offset()+len(r.Results)) < r.Count
}
