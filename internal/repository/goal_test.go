package repository_test

import (
	"context"
	stderrors "errors"
	"testing"

	"FitStreak/internal/model"
	"FitStreak/internal/repository"
	"FitStreak/internal/repository/repotest"
	"FitStreak/pkg/clock"
	"FitStreak/pkg/errors"
)

func TestCompareAndSetStreakRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	rows := repotest.NewStore(t)
	user := repotest.CreateUser(t, rows, "UTC")
	day := clock.NewDate(2024, 1, 15)
	goal := repotest.CreateGoal(t, rows, user, daily, day)
	goals := repository.NewGoalRepository(rows)

	next := model.Streak{Current: 1, Longest: 1, Total: 1, LastCompletedOn: &day}
	applied, err := goals.CompareAndSetStreak(ctx, goal.ID, goal.StreakVersion, next)
	if err != nil || !applied {
		t.Fatalf("first CAS: applied=%v err=%v", applied, err)
	}

	applied, err = goals.CompareAndSetStreak(ctx, goal.ID, goal.StreakVersion, model.Streak{Current: 9, Longest: 9, Total: 9})
	if err != nil {
		t.Fatalf("stale CAS must not error: %v", err)
	}
	if applied {
		t.Fatalf("stale version must not apply")
	}

	got, err := goals.FindByID(ctx, goal.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.CurrentStreak != 1 || got.StreakVersion != goal.StreakVersion+1 {
		t.Fatalf("unexpected goal after CAS: current=%d version=%d", got.CurrentStreak, got.StreakVersion)
	}
	if got.LastCompletedOn == nil || !got.LastCompletedOn.Equal(day) {
		t.Fatalf("last_completed_on not stored: %v", got.LastCompletedOn)
	}
}

func TestResetStreakIfStale(t *testing.T) {
	ctx := context.Background()
	rows := repotest.NewStore(t)
	user := repotest.CreateUser(t, rows, "UTC")
	start := clock.NewDate(2024, 1, 10)
	goal := repotest.CreateGoal(t, rows, user, daily, start)
	goals := repository.NewGoalRepository(rows)

	completed := clock.NewDate(2024, 1, 16)
	if _, err := goals.CompareAndSetStreak(ctx, goal.ID, 0, model.Streak{Current: 4, Longest: 4, Total: 4, LastCompletedOn: &completed}); err != nil {
		t.Fatalf("seed streak: %v", err)
	}

	// 漏打卡日期早于最后一次完成，不清零
	reset, err := goals.ResetStreakIfStale(ctx, goal.ID, clock.NewDate(2024, 1, 15))
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset {
		t.Fatalf("miss before last completion must not reset")
	}

	reset, err = goals.ResetStreakIfStale(ctx, goal.ID, clock.NewDate(2024, 1, 17))
	if err != nil || !reset {
		t.Fatalf("expected reset: reset=%v err=%v", reset, err)
	}

	got, err := goals.FindByID(ctx, goal.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.CurrentStreak != 0 || got.LongestStreak != 4 || got.TotalCompletions != 4 {
		t.Fatalf("penalty touched more than current: %+v", got.Streak())
	}
}

func TestTransitionStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	rows := repotest.NewStore(t)
	user := repotest.CreateUser(t, rows, "UTC")
	goal := repotest.CreateGoal(t, rows, user, daily, clock.NewDate(2024, 1, 1))
	goals := repository.NewGoalRepository(rows)

	applied, err := goals.TransitionStatus(ctx, goal.ID, model.GoalStatusUpcoming, model.GoalStatusActive)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if applied {
		t.Fatalf("goal is active, upcoming -> active must not apply")
	}

	if _, err := goals.TransitionStatus(ctx, goal.ID, model.GoalStatusArchived, model.GoalStatusActive); !stderrors.Is(err, errors.GoalStatusLocked) {
		t.Fatalf("expected GoalStatusLocked, got %v", err)
	}

	applied, err = goals.TransitionStatus(ctx, goal.ID, model.GoalStatusActive, model.GoalStatusArchived)
	if err != nil || !applied {
		t.Fatalf("archive: applied=%v err=%v", applied, err)
	}
}

func TestFindOwnedHidesForeignGoals(t *testing.T) {
	ctx := context.Background()
	rows := repotest.NewStore(t)
	owner := repotest.CreateUser(t, rows, "UTC")
	other := repotest.CreateUser(t, rows, "UTC")
	goal := repotest.CreateGoal(t, rows, owner, daily, clock.NewDate(2024, 1, 1))

	if _, err := repository.NewGoalRepository(rows).FindOwned(ctx, goal.ID, other.ID); !stderrors.Is(err, errors.GoalNotFound) {
		t.Fatalf("expected GoalNotFound for foreign goal, got %v", err)
	}
}

func TestFindByIDsReturnsMap(t *testing.T) {
	ctx := context.Background()
	rows := repotest.NewStore(t)
	a := repotest.CreateUser(t, rows, "America/Los_Angeles")
	b := repotest.CreateUser(t, rows, "Asia/Tokyo")

	users, err := repository.NewUserRepository(rows).FindByIDs(ctx, []int64{a.ID, b.ID, 424242})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(users) != 2 || users[b.ID].Timezone != "Asia/Tokyo" {
		t.Fatalf("unexpected users %+v", users)
	}
}
