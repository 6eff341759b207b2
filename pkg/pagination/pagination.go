// Package pagination parses the limit parameter shared by list endpoints.
package pagination

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Bounds describes the accepted range of a limit query parameter.
type Bounds struct {
	Default int
	Max     int
}

// DefaultBounds matches the timeline and observation endpoints.
var DefaultBounds = Bounds{Default: DefaultLimit, Max: MaxLimit}

// ParseLimit reads ?limit=. An absent value yields b.Default; anything that
// is not an integer in 1..b.Max is an error.
func ParseLimit(raw string, b Bounds) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return b.Default, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer")
	}
	if n < 1 || n > b.Max {
		return 0, fmt.Errorf("limit must be between 1 and %d", b.Max)
	}
	return n, nil
}

// LimitFromContext is ParseLimit applied to the request's limit parameter.
func LimitFromContext(c echo.Context, b Bounds) (int, error) {
	return ParseLimit(c.QueryParam("limit"), b)
}
