package handler

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

// getUserID extracts the user_id from echo.Context and converts it to
// uint64.  The JWT middleware stores the raw claim value, so several
// representations are possible depending on how the token was decoded.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a numeric :id path parameter.  Zero is rejected since
// all primary keys are auto-increment starting at one.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// indexToRowLabel converts a zero-based index to an alphabetical row
// label like A, B, ..., Z, AA, AB.
func indexToRowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []rune{}
	for {
		rem := i % 26
		res = append(res, rune('A'+rem))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}
