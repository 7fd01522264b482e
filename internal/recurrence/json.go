package recurrence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type wireRule struct {
	Type           Kind  `json:"type"`
	DaysOfWeek     []int `json:"daysOfWeek,omitempty"`
	YearlyInterval int   `json:"yearlyInterval,omitempty"`
}

// Marshal encodes rule in its JSON wire form; a nil rule encodes as null.
func Marshal(rule Rule) ([]byte, error) {
	if rule == nil {
		return []byte("null"), nil
	}
	w := wireRule{Type: rule.Kind()}
	switch r := rule.(type) {
	case Weekly:
		w.DaysOfWeek = make([]int, 0, len(r.Days))
		for _, d := range r.Days {
			w.DaysOfWeek = append(w.DaysOfWeek, int(d))
		}
	case Yearly:
		w.YearlyInterval = r.Interval
	}
	return json.Marshal(w)
}

// Unmarshal decodes the JSON wire form. Empty input and null decode to a nil rule.
func Unmarshal(data []byte) (Rule, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var w wireRule
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("recurrence: decode: %w", err)
	}
	switch w.Type {
	case KindDaily:
		return Daily{}, nil
	case KindWeekly:
		days := make([]time.Weekday, 0, len(w.DaysOfWeek))
		for _, d := range w.DaysOfWeek {
			days = append(days, time.Weekday(d))
		}
		return Weekly{Days: days}, nil
	case KindMonthly:
		return Monthly{}, nil
	case KindYearly:
		return Yearly{Interval: w.YearlyInterval}, nil
	default:
		return nil, fmt.Errorf("recurrence: unknown type %q", w.Type)
	}
}
