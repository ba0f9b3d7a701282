package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"FitStreak/internal/model"
	"FitStreak/internal/model/dto"
	"FitStreak/internal/repository"
	"FitStreak/pkg/clock"
	"FitStreak/pkg/errors"
	"FitStreak/pkg/logger"
	"FitStreak/pkg/metrics"
	"FitStreak/pkg/snowflake"
)

const (
	maxNoteRunes       = 500
	maxSkipReasonRunes = 255
	maxMediaKeys       = 5
	defaultHistorySize = 30
	maxHistorySize     = 100
)

// mediaExtensions 允许上传的图片类型
var mediaExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/heic": "heic",
}

// CheckInService 打卡状态流转，每个动作一个事务
type CheckInService struct {
	rows     repository.RowStore
	clock    clock.Clock
	notifier Notifier
	media    MediaPresigner
}

func NewCheckInService(deps Deps) *CheckInService {
	deps = deps.withDefaults()
	return &CheckInService{
		rows:     deps.Rows,
		clock:    deps.Clock,
		notifier: deps.Notifier,
		media:    deps.Media,
	}
}

// actionOutcome 事务提交后用于通知
type actionOutcome struct {
	checkIn *model.CheckIn
	goal    *model.Goal
	streak  model.Streak
}

// Act 对指定打卡记录执行 complete / skip / rest-day
func (s *CheckInService) Act(
	ctx context.Context,
	userPublicID, checkInID int64,
	action model.CheckInAction,
	req dto.CheckInActionRequest,
) (*dto.CheckInActionResponse, error) {
	target, ok := action.Target()
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", errors.InvalidRequest, action)
	}

	user, err := repository.NewUserRepository(s.rows).FindByPublicID(ctx, userPublicID)
	if err != nil {
		return nil, err
	}

	return s.act(ctx, user, checkInID, target, req)
}

// ActToday 对目标今天的打卡执行动作，记录不存在时按需创建
func (s *CheckInService) ActToday(
	ctx context.Context,
	userPublicID, goalID int64,
	action model.CheckInAction,
	req dto.CheckInActionRequest,
) (*dto.CheckInActionResponse, error) {
	target, ok := action.Target()
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", errors.InvalidRequest, action)
	}

	user, err := repository.NewUserRepository(s.rows).FindByPublicID(ctx, userPublicID)
	if err != nil {
		return nil, err
	}

	goal, err := repository.NewGoalRepository(s.rows).FindOwned(ctx, goalID, user.ID)
	if err != nil {
		return nil, err
	}
	if !goal.AcceptsActions() {
		return nil, errors.GoalNotActive
	}

	today := clock.Resolve(user.TimezoneOrDefault(), s.clock.Now())
	if !goal.DueOn(today.Date, today.Weekday) {
		return nil, errors.CheckInNotDue
	}

	checkIn, _, err := repository.NewCheckInStore(s.rows).Ensure(ctx, goal.ID, user.ID, today.Date)
	if err != nil {
		return nil, err
	}

	return s.act(ctx, user, checkIn.ID, target, req)
}

func (s *CheckInService) act(
	ctx context.Context,
	user *model.User,
	checkInID int64,
	target model.CheckInStatus,
	req dto.CheckInActionRequest,
) (*dto.CheckInActionResponse, error) {
	var out actionOutcome

	err := s.rows.Transaction(ctx, func(tx repository.RowStore) error {
		checkIns := repository.NewCheckInStore(tx)

		checkIn, err := checkIns.FindOwned(ctx, checkInID, user.ID)
		if err != nil {
			return err
		}

		goal, err := repository.NewGoalRepository(tx).FindByID(ctx, checkIn.GoalID)
		if err != nil {
			return err
		}
		if !goal.AcceptsActions() {
			return errors.GoalNotActive
		}
		if checkIn.Status.IsTerminal() {
			return errors.CheckInAlreadyResponded
		}

		today := clock.Resolve(user.TimezoneOrDefault(), s.clock.Now())
		if !checkIn.Date.Equal(today.Date) {
			return errors.CheckInWindowClosed
		}

		fields, err := actionFields(checkIn, target, req, s.clock.Now())
		if err != nil {
			return err
		}

		applied, err := checkIns.UpdateStatus(ctx, checkIn.ID, target, fields)
		if err != nil {
			return err
		}
		if !applied {
			return errors.CheckInAlreadyResponded
		}
		applyFields(checkIn, target, fields)

		streak := goal.Streak()
		if target == model.CheckInStatusCompleted {
			if streak, err = creditCompletion(ctx, tx, goal.ID, checkIn.Date); err != nil {
				return err
			}
		}

		out = actionOutcome{checkIn: checkIn, goal: goal, streak: streak}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Check-in responded",
		zap.Int64("check_in_id", out.checkIn.ID),
		zap.Int64("goal_id", out.goal.ID),
		zap.String("status", string(target)),
		zap.Int("current_streak", out.streak.Current),
	)
	metrics.RecordCheckInAction(ctx, string(target))

	if target == model.CheckInStatusCompleted {
		s.notifyCompleted(ctx, user.ID, out)
	}

	return &dto.CheckInActionResponse{
		CheckIn:       toCheckInData(out.checkIn),
		CurrentStreak: out.streak.Current,
		LongestStreak: out.streak.Longest,
	}, nil
}

func (s *CheckInService) notifyCompleted(ctx context.Context, userID int64, out actionOutcome) {
	payload := map[string]interface{}{
		"goal_id":        out.goal.ID,
		"goal_title":     out.goal.Title,
		"date":           out.checkIn.Date.String(),
		"current_streak": out.streak.Current,
	}
	s.notifier.Notify(ctx, userID, model.NotificationEventCheckInCompleted, payload)

	if milestones[out.streak.Current] {
		s.notifier.Notify(ctx, userID, model.NotificationEventStreakMilestone, map[string]interface{}{
			"goal_id":    out.goal.ID,
			"goal_title": out.goal.Title,
			"streak":     out.streak.Current,
		})
	}
}

// actionFields 校验请求并生成随状态一起写入的字段
func actionFields(checkIn *model.CheckIn, target model.CheckInStatus, req dto.CheckInActionRequest, now time.Time) (repository.Patch, error) {
	if utf8.RuneCountInString(req.Note) > maxNoteRunes {
		return nil, fmt.Errorf("%w: note longer than %d characters", errors.InvalidRequest, maxNoteRunes)
	}

	fields := repository.Patch{"responded_at": now}
	if req.Note != "" {
		fields["note"] = req.Note
	}

	switch target {
	case model.CheckInStatusCompleted:
		if req.Mood != nil {
			if *req.Mood < 1 || *req.Mood > 5 {
				return nil, fmt.Errorf("%w: mood must be between 1 and 5", errors.InvalidRequest)
			}
			fields["mood"] = *req.Mood
		}
		if len(req.MediaKeys) > 0 {
			if len(req.MediaKeys) > maxMediaKeys {
				return nil, fmt.Errorf("%w: at most %d attachments", errors.InvalidRequest, maxMediaKeys)
			}
			prefix := mediaPrefix(checkIn)
			for _, key := range req.MediaKeys {
				if !strings.HasPrefix(key, prefix) {
					return nil, fmt.Errorf("%w: media key %q does not belong to this check-in", errors.InvalidRequest, key)
				}
			}
			fields["media_keys"] = datatypes.JSONSlice[string](req.MediaKeys)
		}
	case model.CheckInStatusSkipped:
		if utf8.RuneCountInString(req.SkipReason) > maxSkipReasonRunes {
			return nil, fmt.Errorf("%w: skip reason longer than %d characters", errors.InvalidRequest, maxSkipReasonRunes)
		}
		if req.SkipReason != "" {
			fields["skip_reason"] = req.SkipReason
		}
	}
	return fields, nil
}

func applyFields(checkIn *model.CheckIn, target model.CheckInStatus, fields repository.Patch) {
	checkIn.Status = target
	if v, ok := fields["responded_at"].(time.Time); ok {
		checkIn.RespondedAt = &v
	}
	if v, ok := fields["note"].(string); ok {
		checkIn.Note = v
	}
	if v, ok := fields["mood"].(int); ok {
		checkIn.Mood = &v
	}
	if v, ok := fields["skip_reason"].(string); ok {
		checkIn.SkipReason = v
	}
	if v, ok := fields["media_keys"].(datatypes.JSONSlice[string]); ok {
		checkIn.MediaKeys = v
	}
}

func mediaPrefix(checkIn *model.CheckIn) string {
	return fmt.Sprintf("checkins/%d/%d/", checkIn.GoalID, checkIn.ID)
}

// Today 返回用户所有 active 目标今天的打卡，缺失的记录按需补齐
func (s *CheckInService) Today(ctx context.Context, userPublicID int64) (*dto.TodayCheckInsData, error) {
	user, err := repository.NewUserRepository(s.rows).FindByPublicID(ctx, userPublicID)
	if err != nil {
		return nil, err
	}

	goals, err := repository.NewGoalRepository(s.rows).ListByUser(ctx, user.ID, model.GoalStatusActive)
	if err != nil {
		return nil, err
	}

	today := clock.Resolve(user.TimezoneOrDefault(), s.clock.Now())
	checkIns := repository.NewCheckInStore(s.rows)

	data := &dto.TodayCheckInsData{Date: today.Date, Items: make([]dto.TodayCheckInItem, 0, len(goals))}
	for i := range goals {
		goal := &goals[i]
		if !goal.DueOn(today.Date, today.Weekday) {
			continue
		}
		checkIn, _, err := checkIns.Ensure(ctx, goal.ID, user.ID, today.Date)
		if err != nil {
			return nil, err
		}
		item := dto.TodayCheckInItem{
			CheckIn: toCheckInData(checkIn),
			GoalID:  toGoalData(goal, nil).ID,
			Title:   goal.Title,
			Streak:  goal.CurrentStreak,
		}
		data.Items = append(data.Items, item)
	}
	return data, nil
}

// History 按日期倒序分页，cursor 为上一页最后一条的日期
func (s *CheckInService) History(
	ctx context.Context,
	userPublicID, goalID int64,
	q dto.CheckInHistoryQuery,
) (*dto.CheckInHistoryData, error) {
	filter, err := historyFilter(q)
	if err != nil {
		return nil, err
	}

	user, err := repository.NewUserRepository(s.rows).FindByPublicID(ctx, userPublicID)
	if err != nil {
		return nil, err
	}
	goal, err := repository.NewGoalRepository(s.rows).FindOwned(ctx, goalID, user.ID)
	if err != nil {
		return nil, err
	}

	pageSize := filter.Limit
	filter.Limit = pageSize + 1
	rows, err := repository.NewCheckInStore(s.rows).ListByGoal(ctx, goal.ID, filter)
	if err != nil {
		return nil, err
	}

	data := &dto.CheckInHistoryData{Items: make([]dto.CheckInData, 0, len(rows))}
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		data.NextCursor = rows[len(rows)-1].Date.String()
	}
	for i := range rows {
		data.Items = append(data.Items, toCheckInData(&rows[i]))
	}
	return data, nil
}

func historyFilter(q dto.CheckInHistoryQuery) (repository.HistoryFilter, error) {
	var f repository.HistoryFilter

	parse := func(name, v string) (*clock.Date, error) {
		if v == "" {
			return nil, nil
		}
		d, err := clock.ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD", errors.InvalidRequest, name)
		}
		return &d, nil
	}

	var err error
	if f.From, err = parse("from", q.From); err != nil {
		return f, err
	}
	if f.To, err = parse("to", q.To); err != nil {
		return f, err
	}
	if f.Before, err = parse("cursor", q.Cursor); err != nil {
		return f, err
	}

	if q.Status != "" {
		status := model.CheckInStatus(q.Status)
		if !status.Valid() {
			return f, fmt.Errorf("%w: unknown status %q", errors.InvalidRequest, q.Status)
		}
		f.Status = status
	}

	switch {
	case q.Limit <= 0:
		f.Limit = defaultHistorySize
	case q.Limit > maxHistorySize:
		f.Limit = maxHistorySize
	default:
		f.Limit = q.Limit
	}
	return f, nil
}

// PresignMedia 为打卡照片申请上传地址
func (s *CheckInService) PresignMedia(
	ctx context.Context,
	userPublicID, checkInID int64,
	req dto.MediaUploadRequest,
) (*dto.MediaUploadData, error) {
	ext, ok := mediaExtensions[strings.ToLower(req.ContentType)]
	if !ok {
		return nil, errors.MediaTypeUnsupported
	}
	if s.media == nil {
		return nil, errors.MediaUnavailable
	}

	user, err := repository.NewUserRepository(s.rows).FindByPublicID(ctx, userPublicID)
	if err != nil {
		return nil, err
	}
	checkIn, err := repository.NewCheckInStore(s.rows).FindOwned(ctx, checkInID, user.ID)
	if err != nil {
		return nil, err
	}

	name, err := snowflake.NextKey("")
	if err != nil {
		return nil, fmt.Errorf("generate media key: %w", err)
	}
	key := mediaPrefix(checkIn) + name + "." + ext

	url, expiresAt, err := s.media.PresignPut(ctx, key, strings.ToLower(req.ContentType))
	if err != nil {
		if stderrors.Is(err, context.Canceled) {
			return nil, err
		}
		logger.Logger.Error("Failed to presign media upload",
			zap.Int64("check_in_id", checkIn.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", errors.MediaUnavailable, err)
	}

	return &dto.MediaUploadData{Key: key, UploadURL: url, ExpiresAt: expiresAt}, nil
}
