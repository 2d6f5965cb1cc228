package progress

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Stats are the aggregate counters persisted with progress.
type Stats struct {
	Total     int `json:"total"`
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Flagged   int `json:"flagged"`
}

// Sanitize builds Stats from a raw persisted stats object, coercing every
// field with CoerceCount. Unknown fields are ignored.
func Sanitize(raw map[string]json.RawMessage) Stats {
	return Stats{
		Total:     CoerceCount(raw["total"]),
		Correct:   CoerceCount(raw["correct"]),
		Incorrect: CoerceCount(raw["incorrect"]),
		Flagged:   CoerceCount(raw["flagged"]),
	}
}

// CoerceCount converts a persisted counter to a non-negative int.
//
//	integer >= 0               itself
//	negative number            0
//	fractional number          truncated toward zero, then clamped
//	"12", "12abc", " 7 "       leading integer prefix, clamped
//	anything else or absent    0
func CoerceCount(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		return clamp(leadingInt(s))
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil || math.IsNaN(f) {
			return 0
		}
		return clamp(math.Trunc(f))
	}
	return 0
}

// leadingInt parses the optional sign and digits at the start of s after
// leading whitespace. It returns 0 when there are no digits.
func leadingInt(s string) float64 {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	if neg {
		f = -f
	}
	return f
}

func clamp(f float64) int {
	switch {
	case f <= 0:
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	}
	return int(f)
}
