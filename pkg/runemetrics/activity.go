package runemetrics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs24k/captracker/pkg/apperrors"
)

// maxActivityTextLen caps the stored short text of an activity.
const maxActivityTextLen = 255

// hashTimeLayout is the canonical instant rendering used inside content
// hashes. Changing it invalidates every stored hash.
const hashTimeLayout = "2006-01-02 15:04:05.000"

// activityDateLayouts are the accepted upstream date renderings, tried in
// order. The feed usually sends "28-Aug-2026 14:05".
var activityDateLayouts = []string{
	"02-Jan-2006 15:04",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseActivityDate parses an upstream activity date into a UTC instant
// with millisecond precision.
func ParseActivityDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty activity date", apperrors.ErrUpstreamDataInvalid)
	}

	for _, layout := range activityDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC().Truncate(time.Millisecond), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: unable to parse activity date %q", apperrors.ErrUpstreamDataInvalid, s)
}

// ActivityHash is the deterministic fingerprint of an event's identifying
// fields, the sole idempotence key for repeated ingestion.
func ActivityHash(memberID int64, occurredAt time.Time, text, details string) string {
	payload := fmt.Sprintf("%d|%s|%s|%s", memberID, occurredAt.UTC().Format(hashTimeLayout), text, details)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// TrimActivityText trims whitespace and caps length in runes.
func TrimActivityText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxActivityTextLen {
		return s
	}
	return string(r[:maxActivityTextLen])
}
