package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// Hash returns a stable MD5 hex digest of the joined parts.
// Used for cache keys and for masking values in logs, never for security.
func Hash(parts ...string) string {
	if len(parts) == 0 {
		return ""
	}

	sum := md5.Sum([]byte(strings.Join(parts, "\x00")))
	return fmt.Sprintf("%x", sum)
}

// ShortHash returns the first 8 characters of Hash, for log output
func ShortHash(parts ...string) string {
	full := Hash(parts...)
	if len(full) >= 8 {
		return full[:8]
	}
	return full
}
