package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"FitStreak/pkg/clock"
	"FitStreak/pkg/errors"
)

// Frequency 目标频率
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

// Weekdays 7 位掩码，bit0=周日 ... bit6=周六
type Weekdays uint8

const allWeekdays Weekdays = 1<<7 - 1

// NewWeekdays 由 0..6 的星期索引构造
func NewWeekdays(days ...int) (Weekdays, error) {
	var w Weekdays
	for _, d := range days {
		if d < 0 || d > 6 {
			return 0, fmt.Errorf("weekday %d out of range 0..6", d)
		}
		w |= 1 << uint(d)
	}
	return w, nil
}

func (w Weekdays) Has(d time.Weekday) bool {
	return d >= time.Sunday && d <= time.Saturday && w&(1<<uint(d)) != 0
}

func (w Weekdays) Empty() bool { return w&allWeekdays == 0 }

func (w Weekdays) List() []int {
	days := make([]int, 0, 7)
	for d := 0; d < 7; d++ {
		if w&(1<<uint(d)) != 0 {
			days = append(days, d)
		}
	}
	return days
}

func (w Weekdays) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.List())
}

func (w *Weekdays) UnmarshalJSON(data []byte) error {
	var days []int
	if err := json.Unmarshal(data, &days); err != nil {
		return err
	}
	sort.Ints(days)
	parsed, err := NewWeekdays(days...)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Schedule 判断某个日期是否需要打卡
type Schedule struct {
	Frequency Frequency
	Days      Weekdays
}

// IsDue 未知频率一律不需要打卡
func (s Schedule) IsDue(date clock.Date, weekday time.Weekday) bool {
	switch s.Frequency {
	case FrequencyDaily:
		return true
	case FrequencyWeekly:
		return s.Days.Has(weekday)
	default:
		return false
	}
}

// IsDueOn 使用日期自身的星期
func (s Schedule) IsDueOn(date clock.Date) bool {
	return s.IsDue(date, date.Weekday())
}

func (s Schedule) Validate() error {
	switch s.Frequency {
	case FrequencyDaily:
		return nil
	case FrequencyWeekly:
		if s.Days.Empty() {
			return fmt.Errorf("%w: weekly goal needs at least one weekday", errors.ScheduleInvalid)
		}
		if s.Days&^allWeekdays != 0 {
			return fmt.Errorf("%w: weekday mask %08b out of range", errors.ScheduleInvalid, uint8(s.Days))
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown frequency %q", errors.ScheduleInvalid, s.Frequency)
	}
}

// PreviousDueDate 返回 date 之前最近的一个应打卡日
func (s Schedule) PreviousDueDate(date clock.Date) (clock.Date, bool) {
	switch s.Frequency {
	case FrequencyDaily:
		return date.AddDays(-1), true
	case FrequencyWeekly:
		if s.Days.Empty() {
			return clock.Date{}, false
		}
		for back := 1; back <= 7; back++ {
			prev := date.AddDays(-back)
			if s.Days.Has(prev.Weekday()) {
				return prev, true
			}
		}
		return clock.Date{}, false
	default:
		return clock.Date{}, false
	}
}
