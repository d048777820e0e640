package api

import (
	"net/http"
	"strconv"
)

const (
	// DefaultLimit is the queue size when the caller gives no usable limit.
	DefaultLimit = 20
	maxLimit     = 200
)

// ParseLimit extracts the limit query parameter. Missing, non-numeric and
// non-positive values yield DefaultLimit; values above 200 are capped.
func ParseLimit(r *http.Request) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return DefaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return DefaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}
