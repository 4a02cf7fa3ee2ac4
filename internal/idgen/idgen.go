// Package idgen generates the time-sortable identifiers shared by every
// store and every backend.
//
// A base id is a 14-digit local timestamp (YYYYMMDDHHMMSS), a hyphen and
// seven random lowercase alphanumeric characters:
//
//	20240315093042-k3x9q1z
//
// A prefixed id prepends a short store tag: "prj-20240315093042-k3x9q1z".
package idgen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
)

const (
	// TimestampLayout is the layout of the leading timestamp segment.
	TimestampLayout = "20060102150405"

	// RandomLength is the number of random characters after the timestamp.
	RandomLength = 7

	// MaxPrefixLength is the longest prefix GeneratePrefixed accepts.
	MaxPrefixLength = 3

	alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Store prefixes.
const (
	PrefixProject  = "prj"
	PrefixTask     = "tsk"
	PrefixCategory = "cat"
	PrefixTag      = "tag"
	PrefixSetting  = "set"
	PrefixTimer    = "ttm"
	PrefixHabit    = "hab"
)

var (
	// ErrPrefixTooLong is returned when a prefix exceeds MaxPrefixLength.
	ErrPrefixTooLong = errors.New("id prefix must be at most 3 characters")
	// ErrInvalidPrefix is returned for empty prefixes or prefixes containing a hyphen.
	ErrInvalidPrefix = errors.New("id prefix must be non-empty and contain no hyphen")
)

var baseIDPattern = regexp.MustCompile(`^\d{14}-[a-z0-9]{7}$`)

// now is replaced in tests.
var now = time.Now

// Generate returns a new base id stamped with the current local time.
func Generate() string {
	return GenerateAt(now())
}

// GenerateAt returns a new base id stamped with t in local time.
func GenerateAt(t time.Time) string {
	return t.Local().Format(TimestampLayout) + "-" + randomString(RandomLength)
}

// GenerateBatch returns n base ids. Ids generated within the same second
// differ only in their random part.
func GenerateBatch(n int) []string {
	if n <= 0 {
		return nil
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = Generate()
	}
	return ids
}

// GeneratePrefixed returns prefix + "-" + Generate().
func GeneratePrefixed(prefix string) (string, error) {
	if len(prefix) > MaxPrefixLength {
		return "", fmt.Errorf("%w: %q", ErrPrefixTooLong, prefix)
	}
	if prefix == "" || strings.Contains(prefix, "-") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	return prefix + "-" + Generate(), nil
}

// MustGeneratePrefixed is like GeneratePrefixed but panics on an invalid
// prefix. It is meant for the package-level prefix constants.
func MustGeneratePrefixed(prefix string) string {
	id, err := GeneratePrefixed(prefix)
	if err != nil {
		panic(err)
	}
	return id
}

// IsValid reports whether id is exactly a base id.
func IsValid(id string) bool {
	return baseIDPattern.MatchString(id)
}

// ExtractTimestamp parses the timestamp of a base id in local time.
// It reports false for anything that is not a valid base id.
func ExtractTimestamp(id string) (time.Time, bool) {
	if !IsValid(id) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(TimestampLayout, id[:len(TimestampLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ExtractRandom returns the random suffix of a base id.
func ExtractRandom(id string) (string, bool) {
	if !IsValid(id) {
		return "", false
	}
	return id[len(TimestampLayout)+1:], true
}

// ExtractPrefix returns the prefix of a prefixed id.
//
// Only the single-prefix form prefix-timestamp-random is understood. Ids
// with fewer segments have no prefix, and nested prefixes (an already
// prefixed id prefixed again) are reported as unparseable rather than
// split at an arbitrary hyphen.
func ExtractPrefix(id string) (string, bool) {
	parts := strings.Split(id, "-")
	if len(parts) != 3 || parts[0] == "" {
		return "", false
	}
	return parts[0], true
}

// ExtractBaseID strips the prefix from a prefixed id. Anything that is not
// in prefix-timestamp-random form is returned unchanged.
func ExtractBaseID(id string) string {
	parts := strings.Split(id, "-")
	if len(parts) != 3 || parts[0] == "" {
		return id
	}
	return parts[1] + "-" + parts[2]
}

func randomString(n int) string {
	var sb strings.Builder
	sb.Grow(n)
	limit := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand does not fail on supported platforms.
			panic(fmt.Sprintf("idgen: read random: %v", err))
		}
		sb.WriteByte(alphabet[idx.Int64()])
	}
	return sb.String()
}
