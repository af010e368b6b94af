package lifecycle

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseID parses a listing id from a path segment.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, validationError("parse id", "listing id %q is not an integer", raw)
	}
	if id <= 0 {
		return 0, validationError("parse id", "listing id must be positive, got %d", id)
	}
	return id, nil
}

// CoerceIDs converts a decoded JSON id list into listing ids. Numbers and
// numeric strings are accepted; anything else fails the whole list.
// Decode with UseNumber so ids above 2^53 arrive as json.Number intact.
func CoerceIDs(raw []any) ([]int64, error) {
	if len(raw) == 0 {
		return nil, validationError("parse ids", "id list is empty")
	}
	ids := make([]int64, 0, len(raw))
	for i, v := range raw {
		id, ok := coerceID(v)
		if !ok {
			return nil, validationError("parse ids", "element %d (%v) is not a listing id", i, v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func coerceID(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n <= 0 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		id, err := n.Int64()
		return id, err == nil && id > 0
	case int:
		return int64(n), n > 0
	case int64:
		return n, n > 0
	case string:
		id, err := ParseID(n)
		return id, err == nil
	default:
		return 0, false
	}
}

func validateID(op string, id int64) error {
	if id <= 0 {
		return validationError(op, "listing id must be positive, got %d", id)
	}
	return nil
}

// uniqueIDs validates a bulk id list and drops repeated ids, keeping the first.
func uniqueIDs(op string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, validationError(op, "id list is empty")
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if err := validateID(op, id); err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
