// Package jsonutil decodes the loosely typed values the RuneMetrics feed
// emits: numbers arrive as integers, floats or quoted strings depending on
// the endpoint and the player's hiscore state.
package jsonutil

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexibleInt64 converts a json.Number to an int64, tolerating float
// renderings ("1303443.0") and grouped strings ("1,303,443"). Returns
// false when the value is empty or not numeric.
func FlexibleInt64(n json.Number) (int64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(n.String()), ",", "")
	if s == "" {
		return 0, false
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

// FlexibleString converts a raw JSON value to a string, handling quoted
// strings, bare numbers and null. Used for fields like hiscore rank which
// the feed serialises as either "52,635" or 52635.
func FlexibleString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}

	return string(raw)
}
