package model

import (
	"encoding/json"
	"testing"
	"time"

	"FitStreak/pkg/clock"
	"FitStreak/pkg/errors"
)

func mustWeekdays(t *testing.T, days ...int) Weekdays {
	t.Helper()
	w, err := NewWeekdays(days...)
	if err != nil {
		t.Fatalf("weekdays %v: %v", days, err)
	}
	return w
}

func TestIsDue(t *testing.T) {
	monWedFri := mustWeekdays(t, 1, 3, 5)
	date := clock.NewDate(2024, 1, 15) // 周一

	cases := []struct {
		name     string
		schedule Schedule
		weekday  time.Weekday
		want     bool
	}{
		{"daily always due", Schedule{Frequency: FrequencyDaily}, time.Sunday, true},
		{"weekly listed day", Schedule{Frequency: FrequencyWeekly, Days: monWedFri}, time.Wednesday, true},
		{"weekly unlisted day", Schedule{Frequency: FrequencyWeekly, Days: monWedFri}, time.Tuesday, false},
		{"weekly empty set", Schedule{Frequency: FrequencyWeekly}, time.Monday, false},
		{"unknown frequency", Schedule{Frequency: "fortnightly", Days: monWedFri}, time.Monday, false},
		{"empty frequency", Schedule{}, time.Monday, false},
	}

	for _, tc := range cases {
		if got := tc.schedule.IsDue(date, tc.weekday); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestPreviousDueDate(t *testing.T) {
	weekly := Schedule{Frequency: FrequencyWeekly, Days: mustWeekdays(t, 1, 3, 5)}

	cases := []struct {
		name     string
		schedule Schedule
		date     clock.Date
		want     clock.Date
		ok       bool
	}{
		{"daily", Schedule{Frequency: FrequencyDaily}, clock.NewDate(2024, 3, 1), clock.NewDate(2024, 2, 29), true},
		{"weekly wed to mon", weekly, clock.NewDate(2024, 1, 17), clock.NewDate(2024, 1, 15), true},
		{"weekly mon to fri", weekly, clock.NewDate(2024, 1, 15), clock.NewDate(2024, 1, 12), true},
		{"single day a week", Schedule{Frequency: FrequencyWeekly, Days: mustWeekdays(t, 0)}, clock.NewDate(2024, 1, 14), clock.NewDate(2024, 1, 7), true},
		{"empty weekly", Schedule{Frequency: FrequencyWeekly}, clock.NewDate(2024, 1, 14), clock.Date{}, false},
		{"unknown", Schedule{Frequency: "monthly"}, clock.NewDate(2024, 1, 14), clock.Date{}, false},
	}

	for _, tc := range cases {
		got, ok := tc.schedule.PreviousDueDate(tc.date)
		if ok != tc.ok || got != tc.want {
			t.Errorf("%s: expected %s/%v, got %s/%v", tc.name, tc.want, tc.ok, got, ok)
		}
	}
}

func TestValidateSchedule(t *testing.T) {
	if err := (Schedule{Frequency: FrequencyDaily}).Validate(); err != nil {
		t.Fatalf("daily should be valid: %v", err)
	}
	if err := (Schedule{Frequency: FrequencyWeekly, Days: mustWeekdays(t, 6)}).Validate(); err != nil {
		t.Fatalf("weekly saturday should be valid: %v", err)
	}

	for _, s := range []Schedule{
		{Frequency: FrequencyWeekly},
		{Frequency: FrequencyWeekly, Days: Weekdays(1 << 7)},
		{Frequency: "hourly"},
	} {
		if errors.KindOf(s.Validate()) != errors.KindInvalidState {
			t.Errorf("%+v should be invalid state", s)
		}
	}

	if _, err := NewWeekdays(7); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestWeekdaysJSON(t *testing.T) {
	var w Weekdays
	if err := json.Unmarshal([]byte(`[5,1,3]`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !w.Has(time.Monday) || !w.Has(time.Friday) || w.Has(time.Sunday) {
		t.Fatalf("unexpected mask %07b", uint8(w))
	}

	out, err := json.Marshal(w)
	if err != nil || string(out) != "[1,3,5]" {
		t.Fatalf("marshal: %s %v", out, err)
	}

	if err := json.Unmarshal([]byte(`[9]`), &w); err == nil {
		t.Fatalf("expected error for weekday 9")
	}
}
