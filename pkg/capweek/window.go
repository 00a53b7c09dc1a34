// Package capweek computes the recurring weekly reset window for a clan.
// A window is anchored to a weekday and clock time in the clan's own
// timezone; all arithmetic happens in local civil time so the result stays
// correct across DST transitions.
package capweek

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is one 7-day reset window. EndUTC is always exactly 168 hours
// after StartUTC; the local representations are derived from the UTC
// instants, so a DST shift inside the window surfaces in the local clock
// times, never in the UTC span.
type Window struct {
	StartLocal time.Time
	EndLocal   time.Time
	StartUTC   time.Time
	EndUTC     time.Time
}

// Contains reports whether the UTC instant t falls inside [StartUTC, EndUTC).
func (w Window) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(w.StartUTC) && t.Before(w.EndUTC)
}

// Previous returns the window immediately before w.
func (w Window) Previous() Window {
	start := w.StartUTC.Add(-7 * 24 * time.Hour)
	return fromStart(start, w.StartLocal.Location())
}

func fromStart(startUTC time.Time, loc *time.Location) Window {
	endUTC := startUTC.Add(7 * 24 * time.Hour)
	return Window{
		StartLocal: startUTC.In(loc),
		EndLocal:   endUTC.In(loc),
		StartUTC:   startUTC,
		EndUTC:     endUTC,
	}
}

// loadLocation resolves an IANA timezone name, falling back to UTC when the
// name is empty or unknown.
func loadLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// parseResetTime parses "HH:MM:SS" (missing parts default to zero).
func parseResetTime(s string) (hh, mm, ss int) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 0 {
		hh, _ = strconv.Atoi(parts[0])
	}
	if len(parts) > 1 {
		mm, _ = strconv.Atoi(parts[1])
	}
	if len(parts) > 2 {
		ss, _ = strconv.Atoi(parts[2])
	}
	return hh, mm, ss
}

// ForInstant returns the window enclosing the given instant, for use when
// bucketing a single activity event. resetWeekday is 0=Sunday..6=Saturday.
func ForInstant(at time.Time, timezone string, resetWeekday int, resetTime string) Window {
	loc := loadLocation(timezone)
	hh, mm, ss := parseResetTime(resetTime)

	local := at.In(loc)
	diffDays := (int(local.Weekday()) - resetWeekday + 7) % 7

	reset := time.Date(local.Year(), local.Month(), local.Day()-diffDays, hh, mm, ss, 0, loc)
	if local.Before(reset) {
		reset = time.Date(local.Year(), local.Month(), local.Day()-diffDays-7, hh, mm, ss, 0, loc)
	}

	return fromStart(reset.UTC(), loc)
}

// Current returns the window enclosing now, for weekly-quota reporting.
// It scans back day by day for the closest reset instant not after now;
// the fallback (today at reset time) is unreachable for weekdays 0..6 but
// keeps the function total.
func Current(now time.Time, timezone string, resetWeekday int, resetTime string) Window {
	loc := loadLocation(timezone)
	hh, mm, ss := parseResetTime(resetTime)

	local := now.In(loc)

	var start time.Time
	found := false
	for i := 0; i <= 7; i++ {
		cand := time.Date(local.Year(), local.Month(), local.Day()-i, hh, mm, ss, 0, loc)
		if int(cand.Weekday()) == resetWeekday && !cand.After(local) {
			start = cand
			found = true
			break
		}
	}
	if !found {
		start = time.Date(local.Year(), local.Month(), local.Day(), hh, mm, ss, 0, loc)
	}

	return fromStart(start.UTC(), loc)
}

// Format renders a window instant the way the reporting layer expects.
func Format(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// String implements fmt.Stringer for log output.
func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", Format(w.StartUTC), Format(w.EndUTC))
}
