package storage

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"

	"github.com/manav03panchal/taskmap/internal/model"
)

// Index keys are order-preserving strings. Byte-wise comparison of two
// encoded keys orders them as: numbers (numerically) < strings (by UTF-8
// bytes) < arrays (element-wise). Encoded keys never contain a NUL byte,
// so backends may terminate them with one.
//
// Only numbers, strings and flat arrays of those are indexable. Missing
// fields, null, booleans, objects and nested arrays leave a record out of
// the index.
const (
	tagNumber = '1'
	tagString = '3'
	tagArray  = '5'

	// elementEnd terminates each array element. It sorts below every escaped
	// or plain byte so shorter arrays order first.
	elementEnd = "\x01\x01"
)

var stringEscaper = strings.NewReplacer("\x00", "\x01\x02", "\x01", "\x01\x03")

// EncodeIndexKey returns the index key for v and whether v is indexable.
func EncodeIndexKey(v any) (string, bool) {
	var sb strings.Builder
	if !encodeKey(&sb, v, true) {
		return "", false
	}
	return sb.String(), true
}

func encodeKey(sb *strings.Builder, v any, allowArray bool) bool {
	if n, ok := model.AsNumber(v); ok {
		if math.IsNaN(n) {
			return false
		}
		sb.WriteByte(tagNumber)
		sb.WriteString(encodeFloat(n))
		return true
	}
	switch t := v.(type) {
	case string:
		sb.WriteByte(tagString)
		sb.WriteString(stringEscaper.Replace(t))
		return true
	case []any:
		if !allowArray {
			return false
		}
		sb.WriteByte(tagArray)
		for _, e := range t {
			if !encodeKey(sb, e, false) {
				return false
			}
			sb.WriteString(elementEnd)
		}
		return true
	case []string:
		if !allowArray {
			return false
		}
		sb.WriteByte(tagArray)
		for _, e := range t {
			sb.WriteByte(tagString)
			sb.WriteString(stringEscaper.Replace(e))
			sb.WriteString(elementEnd)
		}
		return true
	}
	return false
}

// encodeFloat maps a float64 onto 16 hex digits whose lexical order
// matches numeric order.
func encodeFloat(f float64) string {
	if f == 0 {
		f = 0 // fold -0 into +0
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], bits)
	return hex.EncodeToString(buf[:])
}

// RecordIndexKey returns the encoded index key of rec for idx.
func RecordIndexKey(idx model.IndexConfig, rec model.Record) (string, bool) {
	v, ok := rec.Lookup(idx.KeyPath)
	if !ok {
		return "", false
	}
	return EncodeIndexKey(v)
}

// FilterByIndex returns the records whose idx value equals value under
// index key semantics. It is the scan path for backends without native
// secondary indexes.
func FilterByIndex(records []model.Record, idx model.IndexConfig, value any) []model.Record {
	want, ok := EncodeIndexKey(value)
	if !ok {
		return []model.Record{}
	}
	out := []model.Record{}
	for _, rec := range records {
		if got, ok := RecordIndexKey(idx, rec); ok && got == want {
			out = append(out, rec)
		}
	}
	return out
}

// FilterByRange returns the records whose idx value falls inside r.
func FilterByRange(records []model.Record, idx model.IndexConfig, r KeyRange) ([]model.Record, error) {
	enc, err := r.Encode()
	if err != nil {
		return nil, err
	}
	out := []model.Record{}
	for _, rec := range records {
		if got, ok := RecordIndexKey(idx, rec); ok && enc.Contains(got) {
			out = append(out, rec)
		}
	}
	return out, nil
}
