package service

import (
	"context"
	stderrors "errors"
	"testing"

	"FitStreak/internal/model"
	"FitStreak/internal/model/dto"
	"FitStreak/internal/repository"
	"FitStreak/pkg/clock"
	"FitStreak/pkg/errors"
)

func TestCreateGoal(t *testing.T) {
	ctx := context.Background()
	// 2024-03-10 01:00 UTC 在上海是 3 月 10 日
	f := newFixture(t, "Asia/Shanghai", utc(2024, 3, 10, 1, 0))
	svc := NewGoalService(f.deps)

	t.Run("starts today", func(t *testing.T) {
		data, err := svc.Create(ctx, f.user.PublicID, dto.CreateGoalRequest{Title: "  Push-ups  ", Frequency: "daily"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if data.Status != string(model.GoalStatusActive) || data.Title != "Push-ups" {
			t.Fatalf("unexpected goal %+v", data)
		}
		if !data.StartDate.Equal(clock.NewDate(2024, 3, 10)) {
			t.Fatalf("start date should default to local today, got %s", data.StartDate)
		}
		if data.TodayCheckIn == nil || data.TodayCheckIn.Status != string(model.CheckInStatusPending) {
			t.Fatalf("expected today's pending check-in, got %+v", data.TodayCheckIn)
		}
	})

	t.Run("starts later", func(t *testing.T) {
		start := clock.NewDate(2024, 3, 12)
		data, err := svc.Create(ctx, f.user.PublicID, dto.CreateGoalRequest{
			Title:      "Swim",
			Frequency:  "weekly",
			DaysOfWeek: []int{2, 4},
			StartDate:  &start,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if data.Status != string(model.GoalStatusUpcoming) || data.TodayCheckIn != nil {
			t.Fatalf("expected upcoming goal without check-in, got %+v", data)
		}
		if len(data.DaysOfWeek) != 2 || data.DaysOfWeek[0] != 2 || data.DaysOfWeek[1] != 4 {
			t.Fatalf("unexpected days %v", data.DaysOfWeek)
		}
	})

	t.Run("weekly goal not due today", func(t *testing.T) {
		// 3 月 10 日是周日
		data, err := svc.Create(ctx, f.user.PublicID, dto.CreateGoalRequest{Title: "Yoga", Frequency: "weekly", DaysOfWeek: []int{1}})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if data.Status != string(model.GoalStatusActive) || data.TodayCheckIn != nil {
			t.Fatalf("unexpected goal %+v", data)
		}
	})

	past := clock.NewDate(2024, 3, 9)
	end := clock.NewDate(2024, 3, 1)
	invalid := []struct {
		name string
		req  dto.CreateGoalRequest
		want errors.Definition
	}{
		{"empty title", dto.CreateGoalRequest{Title: " ", Frequency: "daily"}, errors.InvalidRequest},
		{"start in the past", dto.CreateGoalRequest{Title: "Run", Frequency: "daily", StartDate: &past}, errors.InvalidRequest},
		{"end before start", dto.CreateGoalRequest{Title: "Run", Frequency: "daily", EndDate: &end}, errors.InvalidRequest},
		{"unknown frequency", dto.CreateGoalRequest{Title: "Run", Frequency: "monthly"}, errors.ScheduleInvalid},
		{"weekly without days", dto.CreateGoalRequest{Title: "Run", Frequency: "weekly"}, errors.ScheduleInvalid},
		{"weekday out of range", dto.CreateGoalRequest{Title: "Run", Frequency: "weekly", DaysOfWeek: []int{7}}, errors.ScheduleInvalid},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, f.user.PublicID, tc.req)
			if !stderrors.Is(err, tc.want) {
				t.Fatalf("expected %s, got %v", tc.want.Code, err)
			}
		})
	}
}

func TestArchiveAndCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "UTC", utc(2024, 1, 5, 9, 0))
	svc := NewGoalService(f.deps)

	goal := f.goal(t, daily, clock.NewDate(2024, 1, 1))
	data, err := svc.Archive(ctx, f.user.PublicID, goal.ID)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if data.Status != string(model.GoalStatusArchived) {
		t.Fatalf("unexpected status %s", data.Status)
	}

	if _, err := svc.Cancel(ctx, f.user.PublicID, goal.ID); !stderrors.Is(err, errors.GoalStatusLocked) {
		t.Fatalf("archived goal must not be cancelled, got %v", err)
	}
	if _, err := svc.Archive(ctx, f.user.PublicID, goal.ID); !stderrors.Is(err, errors.GoalStatusLocked) {
		t.Fatalf("archive twice should be locked, got %v", err)
	}

	other := f.goal(t, daily, clock.NewDate(2024, 1, 1))
	if data, err := svc.Cancel(ctx, f.user.PublicID, other.ID); err != nil || data.Status != string(model.GoalStatusCancelled) {
		t.Fatalf("cancel: %+v %v", data, err)
	}

	active, err := svc.List(ctx, f.user.PublicID, dto.GoalListQuery{Status: "active"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active goals, got %d", len(active))
	}
	if _, err := svc.List(ctx, f.user.PublicID, dto.GoalListQuery{Status: "paused"}); errors.KindOf(err) != errors.KindInvalid {
		t.Fatalf("expected invalid status, got %v", err)
	}
}

func TestDeleteRemovesCheckIns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "UTC", utc(2024, 1, 5, 9, 0))
	svc := NewGoalService(f.deps)
	checkIns := repository.NewCheckInStore(f.rows)

	goal := f.goal(t, daily, clock.NewDate(2024, 1, 1))
	for day := 1; day <= 3; day++ {
		if _, err := checkIns.CreateIfAbsent(ctx, goal.ID, f.user.ID, clock.NewDate(2024, 1, day)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if err := svc.Delete(ctx, f.user.PublicID, goal.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, f.user.PublicID, goal.ID); !stderrors.Is(err, errors.GoalNotFound) {
		t.Fatalf("expected goal not found, got %v", err)
	}
	rows, err := checkIns.ListAllByGoal(ctx, goal.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected check-ins removed, %d left", len(rows))
	}

	if err := svc.Delete(ctx, f.user.PublicID, goal.ID); !stderrors.Is(err, errors.GoalNotFound) {
		t.Fatalf("second delete: expected goal not found, got %v", err)
	}
}

func TestStreakSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "UTC", utc(2024, 1, 1, 9, 0))
	svc := NewGoalService(f.deps)

	goal := f.goal(t, model.Schedule{Frequency: model.FrequencyWeekly, Days: weekdays(t, 1)}, clock.NewDate(2024, 1, 1))

	// 2024-01-01 周一，尚无记录
	data, err := svc.Streak(ctx, f.user.PublicID, goal.ID)
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	if !data.DueToday || data.TodayStatus != string(model.CheckInStatusPending) {
		t.Fatalf("unexpected summary %+v", data)
	}

	if _, err := NewCheckInService(f.deps).ActToday(ctx, f.user.PublicID, goal.ID, model.CheckInActionComplete, dto.CheckInActionRequest{}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	data, err = svc.Streak(ctx, f.user.PublicID, goal.ID)
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	if data.CurrentStreak != 1 || data.TodayStatus != string(model.CheckInStatusCompleted) {
		t.Fatalf("unexpected summary %+v", data)
	}

	f.clock.Set(utc(2024, 1, 2, 9, 0))
	data, err = svc.Streak(ctx, f.user.PublicID, goal.ID)
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	if data.DueToday || data.TodayStatus != "" {
		t.Fatalf("tuesday should not be due: %+v", data)
	}
}

func TestReconcileCorrectsDrift(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "UTC", utc(2024, 1, 5, 9, 0))
	svc := NewGoalService(f.deps)
	checkIns := repository.NewCheckInStore(f.rows)

	goal := f.goal(t, daily, clock.NewDate(2024, 1, 1))
	statuses := []model.CheckInStatus{
		model.CheckInStatusCompleted,
		model.CheckInStatusCompleted,
		model.CheckInStatusMissed,
		model.CheckInStatusCompleted,
	}
	for i, status := range statuses {
		row, _, err := checkIns.Ensure(ctx, goal.ID, f.user.ID, clock.NewDate(2024, 1, i+1))
		if err != nil {
			t.Fatalf("ensure: %v", err)
		}
		// 直接改状态，不经过计数
		if _, err := checkIns.UpdateStatus(ctx, row.ID, status, repository.Patch{"responded_at": f.clock.Now()}); err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	result, err := svc.Reconcile(ctx, f.user.PublicID, goal.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !result.Corrected {
		t.Fatal("expected correction")
	}
	if result.Before.TotalCompletions != 0 {
		t.Fatalf("unexpected before %+v", result.Before)
	}
	after := result.After
	if after.CurrentStreak != 1 || after.LongestStreak != 2 || after.TotalCompletions != 3 {
		t.Fatalf("unexpected after %+v", after)
	}
	if after.LastCompletedOn == nil || !after.LastCompletedOn.Equal(clock.NewDate(2024, 1, 4)) {
		t.Fatalf("unexpected last completed %v", after.LastCompletedOn)
	}

	stored := f.reload(t, goal.ID)
	if stored.CurrentStreak != 1 || stored.TotalCompletions != 3 {
		t.Fatalf("correction not persisted: %+v", stored.Streak())
	}

	again, err := svc.Reconcile(ctx, f.user.PublicID, goal.ID)
	if err != nil {
		t.Fatalf("reconcile again: %v", err)
	}
	if again.Corrected {
		t.Fatal("consistent counters must not be rewritten")
	}
}

func TestReconcileRestDayDoesNotCarry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "UTC", utc(2024, 1, 5, 9, 0))
	svc := NewGoalService(f.deps)
	checkIns := repository.NewCheckInStore(f.rows)

	goal := f.goal(t, daily, clock.NewDate(2024, 1, 1))
	statuses := []model.CheckInStatus{
		model.CheckInStatusCompleted,
		model.CheckInStatusRestDay,
		model.CheckInStatusCompleted,
	}
	for i, status := range statuses {
		row, _, err := checkIns.Ensure(ctx, goal.ID, f.user.ID, clock.NewDate(2024, 1, i+1))
		if err != nil {
			t.Fatalf("ensure: %v", err)
		}
		if _, err := checkIns.UpdateStatus(ctx, row.ID, status, repository.Patch{"responded_at": f.clock.Now()}); err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	result, err := svc.Reconcile(ctx, f.user.PublicID, goal.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if after := result.After; after.CurrentStreak != 1 || after.LongestStreak != 1 || after.TotalCompletions != 2 {
		t.Fatalf("rest day must not carry the streak: %+v", after)
	}
}
