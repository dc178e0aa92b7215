package history

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// DecodeCounters parses a persisted counter cell into a date mapping.
//
// Accepted forms:
//   - JSON or JSON5 objects, including Python dict reprs such as
//     {'2024-10-01': 12} or {'2024-10-01': '1,204'};
//   - a bare integer or integral float ("12", "12.0"), the legacy single-day
//     format, which becomes {today: n};
//   - an empty cell, "nan" or "{}", which becomes an empty mapping.
//
// The returned mapping is never nil. On error it holds every entry that did
// decode, so callers may keep it.
func DecodeCounters(cell, today string) (map[string]int, error) {
	cell = strings.TrimSpace(cell)
	out := make(map[string]int)
	if cell == "" || cell == "{}" || strings.EqualFold(cell, "nan") {
		return out, nil
	}

	if n, ok := parseCount(cell); ok {
		out[today] = n
		return out, nil
	}

	var raw map[string]any
	if err := json5.Unmarshal([]byte(cell), &raw); err != nil {
		return out, fmt.Errorf("history: decode counters %q: %w", cell, err)
	}
	var bad []string
	for date, v := range raw {
		n, ok := countValue(v)
		if !ok {
			bad = append(bad, date)
			continue
		}
		out[date] = n
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return out, fmt.Errorf("history: decode counters %q: bad value for %s", cell, strings.Join(bad, ", "))
	}
	return out, nil
}

// EncodeCounters serialises a date mapping as a JSON object with sorted keys.
func EncodeCounters(m map[string]int) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		// map[string]int always marshals.
		panic(err)
	}
	return string(b)
}

func countValue(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return floatCount(x)
	case string:
		if strings.TrimSpace(x) == "" {
			return 0, true
		}
		return parseCount(x)
	case nil:
		return 0, true
	default:
		return 0, false
	}
}

// ParseCount parses a counter as displayed by the portal ("1,204", "12", "12.0").
func ParseCount(s string) (int, bool) {
	return parseCount(s)
}

func parseCount(s string) (int, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return floatCount(f)
}

// floatCount accepts integral values that fit in an int.
func floatCount(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int(f), true
}
