package storagegate

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsValidRelativeKey validates a caller-supplied relative key before it is
// combined with a derived prefix. It checks that the key:
//   - is not empty, ".", or "/"
//   - is relative (does not start with "/")
//   - does not end with "/"
//   - does not contain ".." (path traversal)
//   - does not contain "//" (empty segments)
//   - does not contain invalid characters: \ ? # ~
//   - is valid UTF-8
//   - does not contain "." segments (/., /./, or ending with /.)
//   - does not contain null bytes, control characters (< 0x20), DEL (0x7f), or whitespace
//
// Returns true if the key is valid, false otherwise.
func IsValidRelativeKey(k string) bool {
	if k == "" || k == "/" || k == "." {
		return false
	}

	if k[0] == '/' {
		return false
	}

	if strings.HasSuffix(k, "/") {
		return false
	}

	if strings.Contains(k, "..") {
		return false
	}

	if strings.Contains(k, "//") {
		return false
	}

	if strings.ContainsAny(k, `\?#~`) {
		return false
	}

	if !utf8.ValidString(k) {
		return false
	}

	if strings.HasPrefix(k, "./") || strings.Contains(k, "/./") || strings.HasSuffix(k, "/.") {
		return false
	}

	for _, r := range k {
		if r == 0 || r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

// isValidSegmentValue reports whether a value can be embedded in a key=value
// path segment without changing the segment structure.
func isValidSegmentValue(v string) bool {
	if strings.ContainsAny(v, "/\\") || strings.Contains(v, "..") {
		return false
	}
	for _, r := range v {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
