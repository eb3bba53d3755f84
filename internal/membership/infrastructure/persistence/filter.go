package persistence

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/axyra/membership/internal/membership/domain"
)

// fieldPattern accepts dotted JSON field paths such as "ownerId" or "usage.employees".
var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

func validateField(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("%w: invalid field path %q", domain.ErrInvalidArgument, field)
	}
	return nil
}

func validateCollection(collection string) error {
	if collection == "" || strings.ContainsAny(collection, "/\x00") {
		return fmt.Errorf("%w: invalid collection %q", domain.ErrInvalidArgument, collection)
	}
	return nil
}

// normalizeValue converts a filter operand into a JSON scalar. Times are
// compared as unix milliseconds, the encoding used for every stored timestamp.
func normalizeValue(v any) (any, error) {
	switch val := v.(type) {
	case string, bool, float64, float32, int, int32, int64, uint32, uint64:
		return val, nil
	case time.Time:
		return val.UnixMilli(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported filter value %T", domain.ErrInvalidArgument, v)
	}
}

func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64, uint32, uint64:
		return true
	default:
		return false
	}
}
