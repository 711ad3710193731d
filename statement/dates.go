/*
dates.go - Statement date normalization

PURPOSE:
  Marketplace statement exports are inconsistent about dates. Depending on
  export locale and vintage, the date column may read "15 January, 2026",
  "15 Jan, 2026", "15-Jan-26" or already be ISO. This file normalizes all of
  them to a UTC calendar date.

SENTINEL:
  An unrecognized shape normalizes to the Unix epoch rather than an error.
  The normalizer treats sentinel dates as "skip this row"; IsSentinelDate is
  exported so other callers can do the same.
*/
package statement

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/warp/pricing-engine/engine"
)

// SentinelDate marks a date that could not be parsed. Rows carrying it are
// skipped, never ingested.
var SentinelDate = time.Unix(0, 0).UTC()

// IsSentinelDate reports whether t is the unparseable-date sentinel.
func IsSentinelDate(t time.Time) bool {
	return t.Equal(SentinelDate)
}

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// monthByName matches full English month names and 3-letter abbreviations,
// case-insensitively.
func monthByName(name string) (time.Month, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if m, ok := months[name]; ok {
		return m, true
	}
	if len(name) == 3 {
		for full, m := range months {
			if strings.HasPrefix(full, name) {
				return m, true
			}
		}
	}
	return 0, false
}

var (
	dayMonthYearRe = regexp.MustCompile(`^(\d{1,2})\s+([A-Za-z]+),?\s+(\d{4})$`)
	dashedShortRe  = regexp.MustCompile(`^(\d{1,2})-([A-Za-z]{3})-(\d{2})$`)
)

// NormalizeDate parses the recognized statement date shapes into a UTC day.
// Unrecognized input yields SentinelDate.
func NormalizeDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SentinelDate
	}

	// Already ISO.
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC()
	}

	// "15 January, 2026" or "15 Jan, 2026".
	if m := dayMonthYearRe.FindStringSubmatch(raw); m != nil {
		if month, ok := monthByName(m[2]); ok {
			day, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[3])
			return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		}
		return SentinelDate
	}

	// "15-Jan-26": 2-digit years are assumed 20xx.
	if m := dashedShortRe.FindStringSubmatch(raw); m != nil {
		if month, ok := monthByName(m[2]); ok {
			day, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[3])
			return time.Date(2000+year, month, day, 0, 0, 0, 0, time.UTC)
		}
		return SentinelDate
	}

	return SentinelDate
}

// FindDateColumn locates the date field by fuzzy header match: a column whose
// name contains "date", case-insensitively. Column names are scanned in sorted
// order so the choice is deterministic if a statement ever carries two.
func FindDateColumn(row engine.RawRow) (string, bool) {
	names := make([]string, 0, len(row))
	for name := range row {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.Contains(strings.ToLower(name), "date") {
			return name, true
		}
	}
	return "", false
}
