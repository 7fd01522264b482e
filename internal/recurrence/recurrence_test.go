package recurrence

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

func at(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse("2006-01-02T15:04:05", s)
	require.NoError(t, err)
	return v
}

func TestNext_Scenarios(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cur  string
		rule Rule
		want string
	}{
		{"daily", "2024-03-10T09:00:00", Daily{}, "2024-03-11T09:00:00"},
		{"daily across month", "2024-02-29T23:30:00", Daily{}, "2024-03-01T23:30:00"},
		{"weekly same week", "2024-03-13T08:00:00", Weekly{Days: []time.Weekday{1, 3, 5}}, "2024-03-15T08:00:00"},
		{"weekly wrap to monday", "2024-03-15T08:00:00", Weekly{Days: []time.Weekday{1, 3}}, "2024-03-18T08:00:00"},
		{"weekly unsorted days", "2024-03-11T08:00:00", Weekly{Days: []time.Weekday{5, 2, 2}}, "2024-03-12T08:00:00"},
		{"weekly only today wraps a week", "2024-03-13T08:00:00", Weekly{Days: []time.Weekday{3}}, "2024-03-20T08:00:00"},
		{"weekly saturday to sunday", "2024-03-16T08:00:00", Weekly{Days: []time.Weekday{0, 6}}, "2024-03-17T08:00:00"},
		{"weekly empty falls back", "2024-03-13T08:00:00", Weekly{}, "2024-03-20T08:00:00"},
		{"weekly out of range ignored", "2024-03-13T08:00:00", Weekly{Days: []time.Weekday{9, -1, 4}}, "2024-03-14T08:00:00"},
		{"weekly all invalid falls back", "2024-03-13T08:00:00", Weekly{Days: []time.Weekday{7, 12}}, "2024-03-20T08:00:00"},
		{"monthly", "2024-03-10T09:00:00", Monthly{}, "2024-04-10T09:00:00"},
		{"monthly overflow jan 31", "2024-01-31T10:00:00", Monthly{}, "2024-03-02T10:00:00"},
		{"monthly december", "2024-12-05T07:15:00", Monthly{}, "2025-01-05T07:15:00"},
		{"yearly every 2 years", "2024-06-01T00:00:00", Yearly{Interval: 2}, "2026-06-01T00:00:00"},
		{"yearly zero interval", "2024-06-01T00:00:00", Yearly{}, "2025-06-01T00:00:00"},
		{"yearly negative interval", "2024-06-01T00:00:00", Yearly{Interval: -3}, "2025-06-01T00:00:00"},
		{"yearly leap day overflow", "2024-02-29T12:00:00", Yearly{Interval: 1}, "2025-03-01T12:00:00"},
		{"seconds truncated", "2024-03-10T09:00:45", Daily{}, "2024-03-11T09:00:00"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Next(at(t, tc.cur), tc.rule)
			require.Equal(t, at(t, tc.want), got)
		})
	}
}

func TestNext_NilRuleKeepsDate(t *testing.T) {
	t.Parallel()
	cur := at(t, "2024-03-10T09:00:30")
	require.Equal(t, at(t, "2024-03-10T09:00:00"), Next(cur, nil))
}

func TestNext_PreservesLocationAndWallClock(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+5", 5*3600)
	cur := time.Date(2024, 3, 13, 23, 30, 0, 0, loc) // Wednesday locally, Wednesday 18:30 UTC
	got := Next(cur, Weekly{Days: []time.Weekday{time.Thursday}})

	require.Equal(t, loc, got.Location())
	require.Equal(t, time.Date(2024, 3, 14, 23, 30, 0, 0, loc), got)
}

func TestNext_Deterministic(t *testing.T) {
	t.Parallel()

	rules := []Rule{Daily{}, Weekly{Days: []time.Weekday{2, 4}}, Monthly{}, Yearly{Interval: 3}}
	cur := at(t, "2024-05-17T06:45:12")
	for _, r := range rules {
		first := Next(cur, r)
		for i := 0; i < 5; i++ {
			require.Equal(t, first, Next(cur, r), "rule %s", r.Kind())
		}
	}
}

// Every non-empty subset of weekdays, from every weekday: the result is strictly
// later, within 7 days, and lands on a day from the set.
func TestNext_WeeklyForwardProgress(t *testing.T) {
	t.Parallel()

	start := at(t, "2024-03-10T08:00:00") // Sunday
	for mask := 1; mask < 1<<7; mask++ {
		var days []time.Weekday
		in := map[time.Weekday]bool{}
		for d := 0; d < 7; d++ {
			if mask&(1<<d) != 0 {
				days = append(days, time.Weekday(d))
				in[time.Weekday(d)] = true
			}
		}
		rule := Weekly{Days: days}
		for offset := 0; offset < 7; offset++ {
			cur := start.AddDate(0, 0, offset)
			got := Next(cur, rule)
			if !got.After(cur) {
				t.Fatalf("mask=%07b from %s: got %s, want later", mask, cur.Weekday(), got)
			}
			if got.Sub(cur) > 7*24*time.Hour {
				t.Fatalf("mask=%07b from %s: jumped %s", mask, cur.Weekday(), got.Sub(cur))
			}
			if !in[got.Weekday()] {
				t.Fatalf("mask=%07b from %s: landed on %s", mask, cur.Weekday(), got.Weekday())
			}
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate(nil))
	require.NoError(t, Validate(Daily{}))
	require.NoError(t, Validate(Monthly{}))
	require.NoError(t, Validate(Weekly{Days: []time.Weekday{1}}))
	require.NoError(t, Validate(Yearly{Interval: 1}))

	for _, r := range []Rule{Weekly{}, Weekly{Days: []time.Weekday{8}}, Weekly{Days: []time.Weekday{1, 9}}, Yearly{}, Yearly{Interval: -1}} {
		err := Validate(r)
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("Validate(%#v) = %v, want ErrMalformed", r, err)
		}
	}
}

func TestNext_GoldenSchedules(t *testing.T) {
	t.Parallel()

	schedules := []struct {
		name  string
		start string
		rule  Rule
		steps int
	}{
		{"daily_late_evening", "2024-03-09T23:30:00", Daily{}, 3},
		{"weekly_mon_wed_fri", "2024-03-13T08:00:00", Weekly{Days: []time.Weekday{1, 3, 5}}, 6},
		{"monthly_from_jan_31", "2024-01-31T10:00:00", Monthly{}, 5},
		{"yearly_every_2_from_leap_day", "2024-02-29T09:30:00", Yearly{Interval: 2}, 3},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, s := range schedules {
		var buf bytes.Buffer
		cur := at(t, s.start)
		fmt.Fprintln(&buf, cur.Format("2006-01-02T15:04Z07:00 Mon"))
		for i := 0; i < s.steps; i++ {
			cur = Next(cur, s.rule)
			fmt.Fprintln(&buf, cur.Format("2006-01-02T15:04Z07:00 Mon"))
		}
		g.Assert(t, s.name, buf.Bytes())
	}
}
