package storage

import "fmt"

// KeyRange bounds an index lookup. A nil bound is unbounded; an open bound
// excludes its endpoint.
type KeyRange struct {
	Lower     any
	Upper     any
	LowerOpen bool
	UpperOpen bool
}

// Bound returns a range with both endpoints.
func Bound(lower, upper any, lowerOpen, upperOpen bool) KeyRange {
	return KeyRange{Lower: lower, Upper: upper, LowerOpen: lowerOpen, UpperOpen: upperOpen}
}

// LowerBound returns a range with only a lower endpoint.
func LowerBound(lower any, open bool) KeyRange {
	return KeyRange{Lower: lower, LowerOpen: open}
}

// UpperBound returns a range with only an upper endpoint.
func UpperBound(upper any, open bool) KeyRange {
	return KeyRange{Upper: upper, UpperOpen: open}
}

// Only returns a range matching exactly v.
func Only(v any) KeyRange {
	return KeyRange{Lower: v, Upper: v}
}

// EncodedRange is a KeyRange translated into index key space.
type EncodedRange struct {
	Lower, Upper         string
	HasLower, HasUpper   bool
	LowerOpen, UpperOpen bool
}

// Encode translates r into index key space. Bounds that are not
// indexable values, and ranges whose lower bound lies above the upper
// bound, are rejected with ErrInvalidRange.
func (r KeyRange) Encode() (EncodedRange, error) {
	enc := EncodedRange{LowerOpen: r.LowerOpen, UpperOpen: r.UpperOpen}
	if r.Lower != nil {
		k, ok := EncodeIndexKey(r.Lower)
		if !ok {
			return enc, fmt.Errorf("%w: lower bound %v is not a valid key", ErrInvalidRange, r.Lower)
		}
		enc.Lower, enc.HasLower = k, true
	}
	if r.Upper != nil {
		k, ok := EncodeIndexKey(r.Upper)
		if !ok {
			return enc, fmt.Errorf("%w: upper bound %v is not a valid key", ErrInvalidRange, r.Upper)
		}
		enc.Upper, enc.HasUpper = k, true
	}
	if enc.HasLower && enc.HasUpper {
		if enc.Lower > enc.Upper || (enc.Lower == enc.Upper && (r.LowerOpen || r.UpperOpen)) {
			return enc, fmt.Errorf("%w: lower bound above upper bound", ErrInvalidRange)
		}
	}
	return enc, nil
}

// Contains reports whether the encoded key k lies inside the range.
func (e EncodedRange) Contains(k string) bool {
	if e.HasLower {
		if e.LowerOpen && k <= e.Lower {
			return false
		}
		if !e.LowerOpen && k < e.Lower {
			return false
		}
	}
	if e.HasUpper {
		if e.UpperOpen && k >= e.Upper {
			return false
		}
		if !e.UpperOpen && k > e.Upper {
			return false
		}
	}
	return true
}

// AboveUpper reports whether k lies past the upper bound. Ordered scans
// use it to stop early.
func (e EncodedRange) AboveUpper(k string) bool {
	if !e.HasUpper {
		return false
	}
	if e.UpperOpen {
		return k >= e.Upper
	}
	return k > e.Upper
}
