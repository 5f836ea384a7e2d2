package domain

import "math"

// PageRequest selects one page of a list. Number is 1-based.
type PageRequest struct {
	Number int
	Size   int
}

// Normalize clamps the request into a usable range. Number is capped so
// that Offset cannot overflow.
func (p PageRequest) Normalize(defaultSize int) PageRequest {
	if p.Size < 1 {
		p.Size = defaultSize
	}
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size > 0 && p.Number > math.MaxInt/p.Size {
		p.Number = math.MaxInt / p.Size
	}
	return p
}

// Offset returns the number of rows to skip. It is never negative and
// saturates at math.MaxInt.
func (p PageRequest) Offset() int {
	if p.Number < 2 || p.Size < 1 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

// Page is one page of a list together with the total item count.
type Page[T any] struct {
	Items  []T
	Number int
	Size   int
	Total  int
}

// LastPage returns the number of the last page (at least 1).
func (p Page[T]) LastPage() int {
	if p.Size < 1 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.Size - 1) / p.Size
}
