package util

import "sort"

// TradingCalendar is the ordered set of session dates shared by every symbol
// in a run. Dates use the domain.DateLayout text form, which sorts
// chronologically as strings.
type TradingCalendar struct {
	days []string
}

// NewTradingCalendar builds the calendar as the intersection of the given
// per-symbol date lists. A date is included only if every list contains it;
// with no lists the calendar is empty.
func NewTradingCalendar(dateSets ...[]string) *TradingCalendar {
	if len(dateSets) == 0 {
		return &TradingCalendar{}
	}

	counts := make(map[string]int, len(dateSets[0]))
	for _, dates := range dateSets {
		seen := make(map[string]struct{}, len(dates))
		for _, d := range dates {
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			counts[d]++
		}
	}

	days := make([]string, 0, len(counts))
	for d, n := range counts {
		if n == len(dateSets) {
			days = append(days, d)
		}
	}
	sort.Strings(days)
	return &TradingCalendar{days: days}
}

// Days returns the session dates in ascending order.
func (tc *TradingCalendar) Days() []string {
	out := make([]string, len(tc.days))
	copy(out, tc.days)
	return out
}

// Len returns the number of sessions.
func (tc *TradingCalendar) Len() int {
	return len(tc.days)
}

// Empty reports whether the calendar has no sessions.
func (tc *TradingCalendar) Empty() bool {
	return len(tc.days) == 0
}

// First returns the earliest session, or "" if empty.
func (tc *TradingCalendar) First() string {
	if tc.Empty() {
		return ""
	}
	return tc.days[0]
}

// Last returns the latest session, or "" if empty.
func (tc *TradingCalendar) Last() string {
	if tc.Empty() {
		return ""
	}
	return tc.days[len(tc.days)-1]
}
