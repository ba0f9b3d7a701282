package clock

import (
	"encoding/json"
	"testing"
	"time"
)

func TestResolveTodayLosAngelesBoundary(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 洛杉矶 23:59 时 UTC 已是次日
	now := time.Date(2024, 1, 15, 23, 59, 0, 0, la)
	if DateOf(now.UTC()) != NewDate(2024, 1, 16) {
		t.Fatalf("precondition: UTC date should already be 2024-01-16")
	}

	date, weekday := ResolveToday("America/Los_Angeles", now)
	if date != NewDate(2024, 1, 15) {
		t.Fatalf("expected 2024-01-15, got %s", date)
	}
	if weekday != time.Monday {
		t.Fatalf("expected Monday, got %s", weekday)
	}

	date, _ = ResolveToday("America/Los_Angeles", now.Add(time.Minute))
	if date != NewDate(2024, 1, 16) {
		t.Fatalf("expected 2024-01-16 after midnight, got %s", date)
	}
}

func TestResolveFallsBackToUTC(t *testing.T) {
	now := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)

	for _, tz := range []string{"", "Mars/Olympus_Mons", "not a zone", "Local"} {
		today := Resolve(tz, now)
		if today.Location != time.UTC {
			t.Errorf("%q: expected UTC fallback", tz)
		}
		if today.Date != NewDate(2024, 3, 10) {
			t.Errorf("%q: expected 2024-03-10, got %s", tz, today.Date)
		}
		if today.Fallback != (tz != "") {
			t.Errorf("%q: unexpected fallback flag %v", tz, today.Fallback)
		}
	}

	if !ValidTimezone("Asia/Shanghai") || ValidTimezone("Asia/Atlantis") || ValidTimezone("") || ValidTimezone("Local") {
		t.Fatalf("ValidTimezone mismatch")
	}
}

func TestLatestTodayBoundsEveryZone(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	latest := LatestToday(now)

	for _, tz := range []string{"Pacific/Kiritimati", "Pacific/Auckland", "UTC", "America/Los_Angeles", "Pacific/Pago_Pago"} {
		d, _ := ResolveToday(tz, now)
		if d.After(latest) {
			t.Errorf("%s today %s is after latest %s", tz, d, latest)
		}
	}
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, 2, 28)
	if d.AddDays(1) != NewDate(2024, 2, 29) || d.AddDays(2) != NewDate(2024, 3, 1) {
		t.Fatalf("leap year arithmetic broken")
	}
	if d.DaysUntil(NewDate(2024, 3, 6)) != 7 {
		t.Fatalf("DaysUntil mismatch")
	}
	if !d.Before(d.AddDays(1)) || d.After(d) {
		t.Fatalf("ordering mismatch")
	}
}

func TestDateScanAndJSON(t *testing.T) {
	var d Date
	if err := d.Scan(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)); err != nil || d != NewDate(2024, 1, 15) {
		t.Fatalf("scan time: %s %v", d, err)
	}
	if err := d.Scan([]byte("2024-06-01")); err != nil || d != NewDate(2024, 6, 1) {
		t.Fatalf("scan bytes: %s %v", d, err)
	}
	if err := d.Scan("2024-06-02 00:00:00+00:00"); err != nil || d != NewDate(2024, 6, 2) {
		t.Fatalf("scan sqlite text: %s %v", d, err)
	}
	if err := d.Scan(42); err == nil {
		t.Fatalf("expected error scanning int")
	}

	var payload struct {
		On  Date  `json:"on"`
		End *Date `json:"end"`
	}
	if err := json.Unmarshal([]byte(`{"on":"2024-01-15","end":null}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.On != NewDate(2024, 1, 15) || payload.End != nil {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if err := json.Unmarshal([]byte(`{"on":"15/01/2024"}`), &payload); err == nil {
		t.Fatalf("expected error on bad layout")
	}
}

func TestManualClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManual(start)
	c.Advance(36 * time.Hour)
	if !c.Now().Equal(start.Add(36 * time.Hour)) {
		t.Fatalf("advance mismatch")
	}
	var _ Clock = c
	var _ Clock = SystemClock{}
}
