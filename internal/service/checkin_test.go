package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"FitStreak/internal/model"
	"FitStreak/internal/model/dto"
	"FitStreak/internal/repository"
	"FitStreak/pkg/clock"
	"FitStreak/pkg/errors"
)

var daily = model.Schedule{Frequency: model.FrequencyDaily}

func TestConsecutiveCompletionsGrowStreak(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "UTC", utc(2024, 1, 1, 9, 0))
	goal := f.goal(t, daily, clock.NewDate(2024, 1, 1))
	svc := NewCheckInService(f.deps)

	for day := 1; day <= 7; day++ {
		resp, err := svc.ActToday(ctx, f.user.PublicID, goal.ID, model.CheckInActionComplete, dto.CheckInActionRequest{})
		if err != nil {
			t.Fatalf("day %d: %v", day, err)
		}
		if resp.CurrentStreak != day {
			t.Fatalf("day %d: expected streak %d, got %d", day, day, resp.CurrentStreak)
		}
		if resp.LongestStreak < resp.CurrentStreak {
			t.Fatalf("day %d: longest %d below current %d", day, resp.LongestStreak, resp.CurrentStreak)
		}
		f.clock.Advance(24 * time.Hour)
	}

	got := f.reload(t, goal.ID)
	if got.TotalCompletions != 7 || got.LongestStreak != 7 {
		t.Fatalf("unexpected counters %+v", got.Streak())
	}
	if got.LastCompletedOn == nil || !got.LastCompletedOn.Equal(clock.NewDate(2024, 1, 7)) {
		t.Fatalf("unexpected last_completed_on %v", got.LastCompletedOn)
	}
	if n := f.notifier.count(model.NotificationEventStreakMilestone); n != 2 {
		t.Fatalf("expected milestones at 3 and 7, got %d", n)
	}
	if n := f.notifier.count(model.NotificationEventCheckInCompleted); n != 7 {
		t.Fatalf("expected 7 completion notifications, got %d", n)
	}
}

func TestGapRestartsStreakAtOne(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "UTC", utc(2024, 1, 1, 9, 0))
	goal := f.goal(t, daily, clock.NewDate(2024, 1, 1))
	svc := NewCheckInService(f.deps)

	for i := 0; i < 2; i++ {
		if _, err := svc.ActToday(ctx, f.user.PublicID, goal.ID, model.CheckInActionComplete, dto.CheckInActionRequest{}); err != nil {
			t.Fatalf("complete: %v", err)
		}
		f.clock.Advance(24 * time.Hour)
	}

	// 1 月 3 日没有任何记录
	f.clock.Advance(24 * time.Hour)
	resp, err := svc.ActToday(ctx, f.user.PublicID, goal.ID, model.CheckInActionComplete, dto.CheckInActionRequest{})
	if err != nil {
		t.Fatalf("complete after gap: %v", err)
	}
	if resp.CurrentStreak != 1 || resp.LongestStreak != 2 {
		t.Fatalf("expected current=1 longest=2, got %d/%d", resp.CurrentStreak, resp.LongestStreak)
	}
}

func TestSkipAndRestDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "UTC", utc(2024, 1, 1, 9, 0))
	goal := f.goal(t, daily, clock.NewDate(2024, 1, 1))
	svc := NewCheckInService(f.deps)

	act := func(action model.CheckInAction, req dto.CheckInActionRequest) *dto.CheckInActionResponse {
		t.Helper()
		resp, err := svc.ActToday(ctx, f.user.PublicID, goal.ID, action, req)
		if err != nil {
			t.Fatalf("%s: %v", action, err)
		}
		f.clock.Advance(24 * time.Hour)
		return resp
	}

	act(model.CheckInActionComplete, dto.CheckInActionRequest{})
	rest := act(model.CheckInActionRestDay, dto.CheckInActionRequest{Note: "sore legs"})
	if rest.CurrentStreak != 1 || rest.CheckIn.Status != string(model.CheckInStatusRestDay) {
		t.Fatalf("rest day must not change the streak: %+v", rest)
	}

	// 休息日不扣减，但上一个应打卡日不是 completed，重新从 1 开始
	if resp := act(model.CheckInActionComplete, dto.CheckInActionRequest{}); resp.CurrentStreak != 1 {
		t.Fatalf("rest day should not carry the streak, got %d", resp.CurrentStreak)
	}
	if resp := act(model.CheckInActionComplete, dto.CheckInActionRequest{}); resp.CurrentStreak != 2 {
		t.Fatalf("consecutive completion should carry the streak, got %d", resp.CurrentStreak)
	}

	skip := act(model.CheckInActionSkip, dto.CheckInActionRequest{SkipReason: "travel"})
	if skip.CurrentStreak != 2 || skip.CheckIn.SkipReason != "travel" {
		t.Fatalf("skip must not change the streak: %+v", skip)
	}

	// 跳过同样不延续
	if resp := act(model.CheckInActionComplete, dto.CheckInActionRequest{}); resp.CurrentStreak != 1 {
		t.Fatalf("skip should not carry the streak, got %d", resp.CurrentStreak)
	}

	got := f.reload(t, goal.ID)
	if got.TotalCompletions != 4 || got.LongestStreak != 2 {
		t.Fatalf("unexpected counters %+v", got.Streak())
	}
}

func TestSecondActionConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "UTC", utc(2024, 1, 1, 9, 0))
	goal := f.goal(t, daily, clock.NewDate(2024, 1, 1))
	svc := NewCheckInService(f.deps)

	resp, err := svc.ActToday(ctx, f.user.PublicID, goal.ID, model.CheckInActionComplete, dto.CheckInActionRequest{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, err = svc.Act(ctx, f.user.PublicID, mustID(t, resp.CheckIn.ID), model.CheckInActionSkip, dto.CheckInActionRequest{})
	if !stderrors.Is(err, errors.CheckInAlreadyResponded) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := f.reload(t, goal.ID); got.TotalCompletions != 1 {
		t.Fatalf("conflicting action touched the streak: %+v", got.Streak())
	}
}

func TestActErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "UTC", utc(2024, 1, 10, 9, 0))
	svc := NewCheckInService(f.deps)
	checkIns := repository.NewCheckInStore(f.rows)

	goal := f.goal(t, daily, clock.NewDate(2024, 1, 1))
	yesterday, _, err := checkIns.Ensure(ctx, goal.ID, f.user.ID, clock.NewDate(2024, 1, 9))
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	t.Run("window closed", func(t *testing.T) {
		_, err := svc.Act(ctx, f.user.PublicID, yesterday.ID, model.CheckInActionComplete, dto.CheckInActionRequest{})
		if !stderrors.Is(err, errors.CheckInWindowClosed) {
			t.Fatalf("expected window closed, got %v", err)
		}
	})

	t.Run("foreign check-in", func(t *testing.T) {
		_, err := svc.Act(ctx, f.user.PublicID, yesterday.ID+1000, model.CheckInActionComplete, dto.CheckInActionRequest{})
		if !stderrors.Is(err, errors.CheckInNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		_, err := svc.Act(ctx, f.user.PublicID, yesterday.ID, model.CheckInAction("missed"), dto.CheckInActionRequest{})
		if errors.KindOf(err) != errors.KindInvalid {
			t.Fatalf("expected invalid request, got %v", err)
		}
	})

	t.Run("bad mood", func(t *testing.T) {
		mood := 9
		_, err := svc.ActToday(ctx, f.user.PublicID, goal.ID, model.CheckInActionComplete, dto.CheckInActionRequest{Mood: &mood})
		if errors.KindOf(err) != errors.KindInvalid {
			t.Fatalf("expected invalid request, got %v", err)
		}
	})

	t.Run("foreign media key", func(t *testing.T) {
		// 同一目标下其他打卡记录的附件
		foreign := fmt.Sprintf("checkins/%d/%d/x.jpg", goal.ID, yesterday.ID)
		req := dto.CheckInActionRequest{MediaKeys: []string{foreign}}
		_, err := svc.ActToday(ctx, f.user.PublicID, goal.ID, model.CheckInActionComplete, req)
		if errors.KindOf(err) != errors.KindInvalid {
			t.Fatalf("expected invalid request, got %v", err)
		}
	})

	t.Run("not due", func(t *testing.T) {
		// 2024-01-10 是周三
		weekly := f.goal(t, model.Schedule{Frequency: model.FrequencyWeekly, Days: weekdays(t, 1, 5)}, clock.NewDate(2024, 1, 1))
		_, err := svc.ActToday(ctx, f.user.PublicID, weekly.ID, model.CheckInActionComplete, dto.CheckInActionRequest{})
		if !stderrors.Is(err, errors.CheckInNotDue) {
			t.Fatalf("expected not due, got %v", err)
		}
	})

	t.Run("goal not active", func(t *testing.T) {
		archived := f.goal(t, daily, clock.NewDate(2024, 1, 1))
		checkIn, _, err := checkIns.Ensure(ctx, archived.ID, f.user.ID, clock.NewDate(2024, 1, 10))
		if err != nil {
			t.Fatalf("ensure: %v", err)
		}
		if _, err := repository.NewGoalRepository(f.rows).TransitionStatus(ctx, archived.ID, model.GoalStatusActive, model.GoalStatusArchived); err != nil {
			t.Fatalf("archive: %v", err)
		}
		_, err = svc.Act(ctx, f.user.PublicID, checkIn.ID, model.CheckInActionComplete, dto.CheckInActionRequest{})
		if !stderrors.Is(err, errors.GoalNotActive) {
			t.Fatalf("expected goal not active, got %v", err)
		}
	})
}

func TestCompleteStoresAttachments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "UTC", utc(2024, 1, 1, 9, 0))
	goal := f.goal(t, daily, clock.NewDate(2024, 1, 1))
	svc := NewCheckInService(f.deps)

	checkIn, _, err := repository.NewCheckInStore(f.rows).Ensure(ctx, goal.ID, f.user.ID, clock.NewDate(2024, 1, 1))
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	mood := 4
	key := mediaPrefix(checkIn) + "1.jpg"
	resp, err := svc.Act(ctx, f.user.PublicID, checkIn.ID, model.CheckInActionComplete, dto.CheckInActionRequest{
		Mood:      &mood,
		Note:      "5k easy",
		MediaKeys: []string{key},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.CheckIn.Mood == nil || *resp.CheckIn.Mood != 4 || resp.CheckIn.RespondedAt == nil {
		t.Fatalf("response missing fields: %+v", resp.CheckIn)
	}

	stored, err := repository.NewCheckInStore(f.rows).Find(ctx, goal.ID, clock.NewDate(2024, 1, 1))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(stored.MediaKeys) != 1 || stored.MediaKeys[0] != key || stored.Note != "5k easy" {
		t.Fatalf("fields not persisted: %+v", stored)
	}
}

func TestTodayListsDueGoalsInOwnerTimezone(t *testing.T) {
	ctx := context.Background()
	// 2024-01-16 02:00 UTC 在洛杉矶仍是 1 月 15 日（周一）
	f := newFixture(t, "America/Los_Angeles", utc(2024, 1, 16, 2, 0))
	svc := NewCheckInService(f.deps)

	f.goal(t, daily, clock.NewDate(2024, 1, 1))
	f.goal(t, model.Schedule{Frequency: model.FrequencyWeekly, Days: weekdays(t, 1)}, clock.NewDate(2024, 1, 1))
	f.goal(t, model.Schedule{Frequency: model.FrequencyWeekly, Days: weekdays(t, 2)}, clock.NewDate(2024, 1, 1))

	data, err := svc.Today(ctx, f.user.PublicID)
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	if !data.Date.Equal(clock.NewDate(2024, 1, 15)) {
		t.Fatalf("expected local date 2024-01-15, got %s", data.Date)
	}
	if len(data.Items) != 2 {
		t.Fatalf("expected 2 due goals, got %d", len(data.Items))
	}
	for _, item := range data.Items {
		if item.CheckIn.Status != string(model.CheckInStatusPending) {
			t.Fatalf("unexpected status %s", item.CheckIn.Status)
		}
	}
}

func TestHistoryPagesByCursor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "UTC", utc(2024, 1, 20, 9, 0))
	goal := f.goal(t, daily, clock.NewDate(2024, 1, 1))
	svc := NewCheckInService(f.deps)
	checkIns := repository.NewCheckInStore(f.rows)

	for day := 1; day <= 5; day++ {
		if _, err := checkIns.CreateIfAbsent(ctx, goal.ID, f.user.ID, clock.NewDate(2024, 1, day)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	first, err := svc.History(ctx, f.user.PublicID, goal.ID, dto.CheckInHistoryQuery{Limit: 3})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(first.Items) != 3 || first.NextCursor != "2024-01-03" {
		t.Fatalf("unexpected first page: %d items, cursor %q", len(first.Items), first.NextCursor)
	}
	if !first.Items[0].Date.Equal(clock.NewDate(2024, 1, 5)) {
		t.Fatalf("history must be newest first, got %s", first.Items[0].Date)
	}

	second, err := svc.History(ctx, f.user.PublicID, goal.ID, dto.CheckInHistoryQuery{Limit: 3, Cursor: first.NextCursor})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(second.Items) != 2 || second.NextCursor != "" {
		t.Fatalf("unexpected second page: %d items, cursor %q", len(second.Items), second.NextCursor)
	}

	if _, err := svc.History(ctx, f.user.PublicID, goal.ID, dto.CheckInHistoryQuery{From: "01/02/2024"}); errors.KindOf(err) != errors.KindInvalid {
		t.Fatalf("expected invalid date, got %v", err)
	}
}

type fakePresigner struct{}

func (fakePresigner) PresignPut(_ context.Context, key, _ string) (string, time.Time, error) {
	return "https://media.example/" + key, utc(2024, 1, 1, 9, 15), nil
}

func TestPresignMedia(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "UTC", utc(2024, 1, 1, 9, 0))
	goal := f.goal(t, daily, clock.NewDate(2024, 1, 1))
	checkIn, _, err := repository.NewCheckInStore(f.rows).Ensure(ctx, goal.ID, f.user.ID, clock.NewDate(2024, 1, 1))
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	noMedia := NewCheckInService(f.deps)
	if _, err := noMedia.PresignMedia(ctx, f.user.PublicID, checkIn.ID, dto.MediaUploadRequest{ContentType: "image/png"}); !stderrors.Is(err, errors.MediaUnavailable) {
		t.Fatalf("expected media unavailable, got %v", err)
	}

	deps := f.deps
	deps.Media = fakePresigner{}
	svc := NewCheckInService(deps)

	if _, err := svc.PresignMedia(ctx, f.user.PublicID, checkIn.ID, dto.MediaUploadRequest{ContentType: "video/mp4"}); !stderrors.Is(err, errors.MediaTypeUnsupported) {
		t.Fatalf("expected unsupported type, got %v", err)
	}

	data, err := svc.PresignMedia(ctx, f.user.PublicID, checkIn.ID, dto.MediaUploadRequest{ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(data.Key, mediaPrefix(checkIn)) || !strings.HasSuffix(data.Key, ".jpg") {
		t.Fatalf("unexpected key %q", data.Key)
	}
	if !strings.HasSuffix(data.UploadURL, data.Key) {
		t.Fatalf("upload url %q does not target key", data.UploadURL)
	}
}
