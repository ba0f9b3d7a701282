package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"FitStreak/internal/model"
	"FitStreak/internal/repository"
	"FitStreak/internal/repository/repotest"
	"FitStreak/pkg/clock"
)

type sentEvent struct {
	userID  int64
	event   model.NotificationEvent
	payload map[string]interface{}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (f *fakeNotifier) Notify(_ context.Context, userID int64, event model.NotificationEvent, payload map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{userID: userID, event: event, payload: payload})
}

func (f *fakeNotifier) count(event model.NotificationEvent) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.event == event {
			n++
		}
	}
	return n
}

type fixture struct {
	rows     *repository.GormStore
	clock    *clock.Manual
	notifier *fakeNotifier
	user     *model.User
	deps     Deps
}

// newFixture now 为 UTC 时间
func newFixture(t *testing.T, tz string, now time.Time) *fixture {
	t.Helper()

	rows := repotest.NewStore(t)
	f := &fixture{
		rows:     rows,
		clock:    clock.NewManual(now),
		notifier: &fakeNotifier{},
		user:     repotest.CreateUser(t, rows, tz),
	}
	f.deps = Deps{Rows: rows, Clock: f.clock, Notifier: f.notifier}
	return f
}

func (f *fixture) goal(t *testing.T, schedule model.Schedule, start clock.Date) *model.Goal {
	t.Helper()
	return repotest.CreateGoal(t, f.rows, f.user, schedule, start)
}

func (f *fixture) reload(t *testing.T, goalID int64) *model.Goal {
	t.Helper()
	goal, err := repository.NewGoalRepository(f.rows).FindByID(context.Background(), goalID)
	if err != nil {
		t.Fatalf("reload goal: %v", err)
	}
	return goal
}

func utc(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func weekdays(t *testing.T, days ...int) model.Weekdays {
	t.Helper()
	w, err := model.NewWeekdays(days...)
	if err != nil {
		t.Fatalf("weekdays: %v", err)
	}
	return w
}

func mustID(t *testing.T, s string) int64 {
	t.Helper()
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		t.Fatalf("parse id %q: %v", s, err)
	}
	return id
}
