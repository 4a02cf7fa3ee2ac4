package logging

import "strings"

// MaskChar is the character used for masking.
const MaskChar = "*"

// sensitiveWords mark a setting key whose value must not reach the logs.
var sensitiveWords = []string{
	"token", "secret", "password", "apikey", "api_key", "credential", "private",
}

// IsSensitiveKey reports whether a setting or field name looks like it
// holds a secret.
func IsSensitiveKey(name string) bool {
	lower := strings.ToLower(name)
	for _, w := range sensitiveWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// MaskValue returns value unchanged unless name is sensitive, in which
// case a fixed mask is returned.
func MaskValue(name string, value any) any {
	if IsSensitiveKey(name) {
		return strings.Repeat(MaskChar, 3)
	}
	return value
}
