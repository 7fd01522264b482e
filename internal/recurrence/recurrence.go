// Package recurrence computes the next due date of a repeating task.
//
// A Rule is a closed set of variants (Daily, Weekly, Monthly, Yearly), each
// carrying only the fields it needs. Next is pure: the same inputs always give
// the same output, and malformed rules fall back to a documented default
// instead of failing.
package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Kind names a recurrence variant on the wire.
type Kind string

const (
	KindDaily   Kind = "daily"
	KindWeekly  Kind = "weekly"
	KindMonthly Kind = "monthly"
	KindYearly  Kind = "yearly"
)

// ErrMalformed reports a rule that Next will handle with a fallback.
var ErrMalformed = errors.New("recurrence: malformed rule")

// Rule is implemented only by the variants in this package.
type Rule interface {
	Kind() Kind
	advance(t time.Time) time.Time
}

// Daily repeats every calendar day at the same time of day.
type Daily struct{}

// Weekly repeats on the given weekdays. With no valid days it repeats every 7 days.
type Weekly struct {
	Days []time.Weekday
}

// Monthly repeats on the same day of month; short months overflow into the next one.
type Monthly struct{}

// Yearly repeats every Interval years; Interval below 1 is treated as 1.
type Yearly struct {
	Interval int
}

func (Daily) Kind() Kind   { return KindDaily }
func (Weekly) Kind() Kind  { return KindWeekly }
func (Monthly) Kind() Kind { return KindMonthly }
func (Yearly) Kind() Kind  { return KindYearly }

func (Daily) advance(t time.Time) time.Time { return t.AddDate(0, 0, 1) }

func (w Weekly) advance(t time.Time) time.Time {
	days := w.validDays()
	if len(days) == 0 {
		return t.AddDate(0, 0, 7)
	}
	cur := int(t.Weekday())
	for _, d := range days {
		if int(d) > cur {
			return t.AddDate(0, 0, int(d)-cur)
		}
	}
	return t.AddDate(0, 0, (7-cur)+int(days[0]))
}

// validDays returns the in-range weekdays, deduplicated and sorted ascending.
func (w Weekly) validDays() []time.Weekday {
	seen := [7]bool{}
	out := make([]time.Weekday, 0, len(w.Days))
	for _, d := range w.Days {
		if d < time.Sunday || d > time.Saturday || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (Monthly) advance(t time.Time) time.Time { return t.AddDate(0, 1, 0) }

func (y Yearly) advance(t time.Time) time.Time {
	n := y.Interval
	if n < 1 {
		n = 1
	}
	return t.AddDate(n, 0, 0)
}

// Next returns the due date following current under rule. Calendar arithmetic
// happens in current's location and the result has no sub-minute precision.
// A nil rule returns current (truncated) unchanged.
func Next(current time.Time, rule Rule) time.Time {
	if rule == nil {
		return truncateMinute(current)
	}
	return truncateMinute(rule.advance(current))
}

func truncateMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

// Validate reports whether rule is well formed. A non-nil result wraps
// ErrMalformed; Next still produces a date for such a rule.
func Validate(rule Rule) error {
	switch r := rule.(type) {
	case nil, Daily, Monthly:
		return nil
	case Weekly:
		valid := r.validDays()
		if len(valid) == 0 {
			return fmt.Errorf("%w: weekly rule without valid days, falling back to 7 days", ErrMalformed)
		}
		for _, d := range r.Days {
			if d < time.Sunday || d > time.Saturday {
				return fmt.Errorf("%w: weekday %d out of range, ignored", ErrMalformed, int(d))
			}
		}
		return nil
	case Yearly:
		if r.Interval < 1 {
			return fmt.Errorf("%w: yearly interval %d, falling back to 1", ErrMalformed, r.Interval)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown rule %T", ErrMalformed, rule)
	}
}
