package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"FitStreak/internal/model"
	"FitStreak/internal/model/dto"
	"FitStreak/internal/repository"
	"FitStreak/pkg/clock"
	"FitStreak/pkg/errors"
	"FitStreak/pkg/logger"
	"FitStreak/pkg/snowflake"
)

const (
	maxTitleRunes       = 100
	maxDescriptionRunes = 500
)

// GoalService 目标的增删改查、归档取消与连续计数对账
type GoalService struct {
	rows  repository.RowStore
	clock clock.Clock
}

func NewGoalService(deps Deps) *GoalService {
	deps = deps.withDefaults()
	return &GoalService{rows: deps.Rows, clock: deps.Clock}
}

// Create 创建目标；开始日期为今天时直接 active，并立即生成今天的打卡
func (s *GoalService) Create(ctx context.Context, userPublicID int64, req dto.CreateGoalRequest) (*dto.GoalData, error) {
	title := strings.TrimSpace(req.Title)
	if n := utf8.RuneCountInString(title); n == 0 || n > maxTitleRunes {
		return nil, fmt.Errorf("%w: title must be 1-%d characters", errors.InvalidRequest, maxTitleRunes)
	}
	if utf8.RuneCountInString(req.Description) > maxDescriptionRunes {
		return nil, fmt.Errorf("%w: description longer than %d characters", errors.InvalidRequest, maxDescriptionRunes)
	}

	schedule, err := parseSchedule(req.Frequency, req.DaysOfWeek)
	if err != nil {
		return nil, err
	}

	user, err := repository.NewUserRepository(s.rows).FindByPublicID(ctx, userPublicID)
	if err != nil {
		return nil, err
	}

	today := clock.Resolve(user.TimezoneOrDefault(), s.clock.Now())
	start := today.Date
	if req.StartDate != nil && !req.StartDate.IsZero() {
		start = *req.StartDate
	}
	if start.Before(today.Date) {
		return nil, fmt.Errorf("%w: start_date is before today (%s)", errors.InvalidRequest, today.Date)
	}
	if req.EndDate != nil && req.EndDate.Before(start) {
		return nil, fmt.Errorf("%w: end_date is before start_date", errors.InvalidRequest)
	}

	publicID, err := snowflake.NextID()
	if err != nil {
		return nil, fmt.Errorf("generate goal id: %w", err)
	}

	status := model.GoalStatusActive
	if start.After(today.Date) {
		status = model.GoalStatusUpcoming
	}

	goal := &model.Goal{
		PublicID:    publicID,
		UserID:      user.ID,
		Title:       title,
		Description: req.Description,
		Frequency:   schedule.Frequency,
		DaysOfWeek:  schedule.Days,
		Status:      status,
		StartDate:   start,
		EndDate:     req.EndDate,
	}
	if err := repository.NewGoalRepository(s.rows).Create(ctx, goal); err != nil {
		return nil, err
	}

	var todayCheckIn *model.CheckIn
	if goal.AcceptsActions() && goal.DueOn(today.Date, today.Weekday) {
		todayCheckIn, _, err = repository.NewCheckInStore(s.rows).Ensure(ctx, goal.ID, user.ID, today.Date)
		if err != nil {
			return nil, err
		}
	}

	logger.Logger.Info("Goal created",
		zap.Int64("goal_id", goal.ID),
		zap.Int64("user_id", user.ID),
		zap.String("status", string(goal.Status)),
		zap.String("frequency", string(goal.Frequency)),
	)

	data := toGoalData(goal, todayCheckIn)
	return &data, nil
}

func parseSchedule(frequency string, days []int) (model.Schedule, error) {
	schedule := model.Schedule{Frequency: model.Frequency(frequency)}
	if schedule.Frequency == model.FrequencyWeekly {
		w, err := model.NewWeekdays(days...)
		if err != nil {
			return schedule, fmt.Errorf("%w: %v", errors.ScheduleInvalid, err)
		}
		schedule.Days = w
	}
	if err := schedule.Validate(); err != nil {
		return schedule, err
	}
	return schedule, nil
}

// Get 他人的目标同样返回 GoalNotFound
func (s *GoalService) Get(ctx context.Context, userPublicID, goalID int64) (*dto.GoalData, error) {
	user, goal, err := s.owned(ctx, s.rows, userPublicID, goalID)
	if err != nil {
		return nil, err
	}

	today := clock.Resolve(user.TimezoneOrDefault(), s.clock.Now())
	checkIn, err := repository.NewCheckInStore(s.rows).Find(ctx, goal.ID, today.Date)
	if err != nil && !stderrors.Is(err, errors.CheckInNotFound) {
		return nil, err
	}

	data := toGoalData(goal, checkIn)
	return &data, nil
}

func (s *GoalService) List(ctx context.Context, userPublicID int64, q dto.GoalListQuery) ([]dto.GoalData, error) {
	status := model.GoalStatus(q.Status)
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", errors.InvalidRequest, q.Status)
	}

	user, err := repository.NewUserRepository(s.rows).FindByPublicID(ctx, userPublicID)
	if err != nil {
		return nil, err
	}

	goals, err := repository.NewGoalRepository(s.rows).ListByUser(ctx, user.ID, status)
	if err != nil {
		return nil, err
	}

	items := make([]dto.GoalData, 0, len(goals))
	for i := range goals {
		items = append(items, toGoalData(&goals[i], nil))
	}
	return items, nil
}

// Archive active -> archived
func (s *GoalService) Archive(ctx context.Context, userPublicID, goalID int64) (*dto.GoalData, error) {
	return s.transition(ctx, userPublicID, goalID, model.GoalStatusArchived)
}

// Cancel upcoming | active -> cancelled
func (s *GoalService) Cancel(ctx context.Context, userPublicID, goalID int64) (*dto.GoalData, error) {
	return s.transition(ctx, userPublicID, goalID, model.GoalStatusCancelled)
}

func (s *GoalService) transition(ctx context.Context, userPublicID, goalID int64, to model.GoalStatus) (*dto.GoalData, error) {
	_, goal, err := s.owned(ctx, s.rows, userPublicID, goalID)
	if err != nil {
		return nil, err
	}
	if !goal.Status.CanTransitionTo(to) {
		return nil, errors.GoalStatusLocked
	}

	applied, err := repository.NewGoalRepository(s.rows).TransitionStatus(ctx, goal.ID, goal.Status, to)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, errors.GoalStatusLocked
	}

	logger.Logger.Info("Goal status changed",
		zap.Int64("goal_id", goal.ID),
		zap.String("from", string(goal.Status)),
		zap.String("to", string(to)),
	)

	goal.Status = to
	data := toGoalData(goal, nil)
	return &data, nil
}

// Delete 同一事务内先软删打卡记录，再软删目标
func (s *GoalService) Delete(ctx context.Context, userPublicID, goalID int64) error {
	var deleted int64
	err := s.rows.Transaction(ctx, func(tx repository.RowStore) error {
		_, goal, err := s.owned(ctx, tx, userPublicID, goalID)
		if err != nil {
			return err
		}

		if deleted, err = repository.NewCheckInStore(tx).SoftDeleteByGoal(ctx, goal.ID); err != nil {
			return fmt.Errorf("delete check-ins of goal %d: %w", goal.ID, err)
		}
		if _, err := repository.NewGoalRepository(tx).SoftDelete(ctx, goal.ID); err != nil {
			return fmt.Errorf("delete goal %d: %w", goal.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Logger.Info("Goal deleted",
		zap.Int64("goal_id", goalID),
		zap.Int64("check_ins", deleted),
	)
	return nil
}

// Streak 连续计数汇总与今天的打卡状态
func (s *GoalService) Streak(ctx context.Context, userPublicID, goalID int64) (*dto.StreakData, error) {
	user, goal, err := s.owned(ctx, s.rows, userPublicID, goalID)
	if err != nil {
		return nil, err
	}

	today := clock.Resolve(user.TimezoneOrDefault(), s.clock.Now())
	data := toStreakData(goal, goal.Streak())
	data.Today = today.Date
	data.DueToday = goal.AcceptsActions() && goal.DueOn(today.Date, today.Weekday)

	checkIn, err := repository.NewCheckInStore(s.rows).Find(ctx, goal.ID, today.Date)
	switch {
	case err == nil:
		data.TodayStatus = string(checkIn.Status)
	case !stderrors.Is(err, errors.CheckInNotFound):
		return nil, err
	case data.DueToday:
		data.TodayStatus = string(model.CheckInStatusPending)
	}
	return &data, nil
}

// Reconcile 重放完整历史并修正计数，只由显式对账请求触发
func (s *GoalService) Reconcile(ctx context.Context, userPublicID, goalID int64) (*dto.ReconcileData, error) {
	_, goal, err := s.owned(ctx, s.rows, userPublicID, goalID)
	if err != nil {
		return nil, err
	}

	goals := repository.NewGoalRepository(s.rows)
	checkIns := repository.NewCheckInStore(s.rows)

	for attempt := 0; attempt < streakRetries; attempt++ {
		history, err := checkIns.ListAllByGoal(ctx, goal.ID)
		if err != nil {
			return nil, err
		}

		before := goal.Streak()
		after := replayStreak(goal, history)
		result := &dto.ReconcileData{
			Before: toStreakData(goal, before),
			After:  toStreakData(goal, after),
		}
		if sameStreak(before, after) {
			return result, nil
		}

		applied, err := goals.CompareAndSetStreak(ctx, goal.ID, goal.StreakVersion, after)
		if err != nil {
			return nil, err
		}
		if applied {
			result.Corrected = true
			logger.Logger.Warn("Goal streak corrected by reconcile",
				zap.Int64("goal_id", goal.ID),
				zap.Int("current_before", before.Current),
				zap.Int("current_after", after.Current),
				zap.Int("total_before", before.Total),
				zap.Int("total_after", after.Total),
			)
			return result, nil
		}

		if goal, err = goals.FindByID(ctx, goal.ID); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("reconcile goal %d: %w", goal.ID, errors.StreakContention)
}

func (s *GoalService) owned(ctx context.Context, rows repository.RowStore, userPublicID, goalID int64) (*model.User, *model.Goal, error) {
	user, err := repository.NewUserRepository(rows).FindByPublicID(ctx, userPublicID)
	if err != nil {
		return nil, nil, err
	}
	goal, err := repository.NewGoalRepository(rows).FindOwned(ctx, goalID, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, goal, nil
}
