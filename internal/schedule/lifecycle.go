package schedule

import (
	"context"

	"go.uber.org/zap"

	"FitStreak/internal/model"
	"FitStreak/internal/repository"
	"FitStreak/pkg/clock"
)

type LifecycleResult struct {
	Scanned   int
	Activated int
	Completed int
	Unchanged int
	Failed    int
}

// Lifecycle upcoming 到开始日期后转 active，active 过了结束日期转 completed
func (s *Scheduler) Lifecycle(ctx context.Context) (LifecycleResult, error) {
	var t *tally
	err := s.run(ctx, JobLifecycle, func(ctx context.Context) (*tally, error) {
		t = newTally()
		if err := s.advance(ctx, t, model.GoalStatusUpcoming); err != nil {
			return t, err
		}
		return t, s.advance(ctx, t, model.GoalStatusActive)
	})
	if t == nil {
		return LifecycleResult{}, err
	}
	return LifecycleResult{
		Scanned:   t.get(outcomeScanned),
		Activated: t.get(outcomeActivated),
		Completed: t.get(outcomeCompleted),
		Unchanged: t.get(outcomeUnchanged),
		Failed:    t.get(outcomeFailed),
	}, err
}

// nextStatus 返回目标在 today 应处的状态，无需变化时 ok=false
func nextStatus(goal *model.Goal, today clock.Date) (model.GoalStatus, bool) {
	switch goal.Status {
	case model.GoalStatusUpcoming:
		if !goal.StartDate.After(today) {
			return model.GoalStatusActive, true
		}
	case model.GoalStatusActive:
		if goal.EndDate != nil && goal.EndDate.Before(today) {
			return model.GoalStatusCompleted, true
		}
	}
	return "", false
}

func (s *Scheduler) advance(ctx context.Context, t *tally, from model.GoalStatus) error {
	goals := repository.NewGoalRepository(s.rows)

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := goals.ListByStatus(ctx, from, afterID, s.opts.BatchSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		afterID = page[len(page)-1].ID
		t.add(outcomeScanned, len(page))

		zones, err := s.timezonesFor(ctx, ownerIDs(page))
		if err != nil {
			return err
		}

		now := s.clock.Now()
		s.each(ctx, len(page), func(ctx context.Context, i int) {
			goal := &page[i]
			to, ok := nextStatus(goal, clock.Resolve(zones[goal.UserID], now).Date)
			if !ok {
				t.add(outcomeUnchanged, 1)
				return
			}

			applied, err := goals.TransitionStatus(ctx, goal.ID, from, to)
			switch {
			case err != nil:
				s.logger.Error("Failed to advance goal status",
					zap.Int64("goal_id", goal.ID),
					zap.String("from", string(from)),
					zap.String("to", string(to)),
					zap.Error(err),
				)
				t.add(outcomeFailed, 1)
			case !applied:
				// 用户同时取消或归档
				t.add(outcomeUnchanged, 1)
			case to == model.GoalStatusActive:
				t.add(outcomeActivated, 1)
			default:
				t.add(outcomeCompleted, 1)
			}
		})

		if len(page) < s.opts.BatchSize {
			return nil
		}
	}
}
