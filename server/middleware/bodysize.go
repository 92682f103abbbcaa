package middleware

import (
	"net/http"

	"github.com/dustin/go-humanize"
)

const defaultMaxBodySize = 10 * 1024 * 1024 // 10MiB

// BodySizeLimit returns middleware that restricts the request body to the
// given size ("10MB", "512KiB", "1GB"). An empty or unparsable size uses
// 10MiB.
func BodySizeLimit(maxSize string) Middleware {
	size := ParseSize(maxSize, defaultMaxBodySize)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, size)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ParseSize parses a human-readable size into bytes, returning defaultBytes
// when s is empty or invalid.
func ParseSize(s string, defaultBytes int64) int64 {
	if s == "" {
		return defaultBytes
	}
	n, err := humanize.ParseBytes(s)
	if err != nil || n == 0 {
		return defaultBytes
	}
	return int64(n)
}
