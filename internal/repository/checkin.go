package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"FitStreak/internal/model"
	"FitStreak/pkg/clock"
	"FitStreak/pkg/errors"
)

// CheckInStore 打卡记录存储，负责 (goal_id, date) 唯一与状态 CAS
type CheckInStore struct {
	rows RowStore
}

func NewCheckInStore(rows RowStore) *CheckInStore {
	return &CheckInStore{rows: rows}
}

// Find 按目标与日期查询
func (s *CheckInStore) Find(ctx context.Context, goalID int64, date clock.Date) (*model.CheckIn, error) {
	var checkIn model.CheckIn
	err := s.rows.FindOne(ctx, &checkIn, Eq("goal_id", goalID), Eq("date", date))
	if err != nil {
		return nil, notFoundAs(err, errors.CheckInNotFound)
	}
	return &checkIn, nil
}

// FindOwned 按 ID 查询，并校验归属
func (s *CheckInStore) FindOwned(ctx context.Context, id, userID int64) (*model.CheckIn, error) {
	var checkIn model.CheckIn
	err := s.rows.FindOne(ctx, &checkIn, Eq("id", id), Eq("user_id", userID))
	if err != nil {
		return nil, notFoundAs(err, errors.CheckInNotFound)
	}
	return &checkIn, nil
}

// CreateIfAbsent 并发安全，唯一约束冲突视为成功
func (s *CheckInStore) CreateIfAbsent(ctx context.Context, goalID, userID int64, date clock.Date) (bool, error) {
	row := &model.CheckIn{
		GoalID: goalID,
		UserID: userID,
		Date:   date,
		Status: model.CheckInStatusPending,
	}
	created, err := s.rows.InsertIgnore(ctx, row)
	if err != nil {
		return false, fmt.Errorf("create check-in goal=%d date=%s: %w", goalID, date, err)
	}
	return created, nil
}

// Ensure 确保记录存在并返回
func (s *CheckInStore) Ensure(ctx context.Context, goalID, userID int64, date clock.Date) (*model.CheckIn, bool, error) {
	created, err := s.CreateIfAbsent(ctx, goalID, userID, date)
	if err != nil {
		return nil, false, err
	}
	checkIn, err := s.Find(ctx, goalID, date)
	if err != nil {
		return nil, false, err
	}
	return checkIn, created, nil
}

// UpdateStatus 仅当当前仍为 pending 时生效，applied=false 表示已被其他写入者抢先
func (s *CheckInStore) UpdateStatus(ctx context.Context, id int64, next model.CheckInStatus, fields Patch) (bool, error) {
	if !model.CheckInStatusPending.CanTransitionTo(next) {
		return false, fmt.Errorf("illegal transition pending -> %s", next)
	}

	patch := Patch{"status": next}
	for k, v := range fields {
		patch[k] = v
	}

	n, err := s.rows.Update(ctx, &model.CheckIn{}, patch,
		Eq("id", id),
		Eq("status", model.CheckInStatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("update check-in %d -> %s: %w", id, next, err)
	}
	return n == 1, nil
}

// ListPendingBefore 清扫任务分页读取，按 id 递增
func (s *CheckInStore) ListPendingBefore(ctx context.Context, before clock.Date, afterID int64, limit int) ([]model.CheckIn, error) {
	var rows []model.CheckIn
	err := s.rows.Find(ctx, &rows, Query{
		Where: []Cond{
			Eq("status", model.CheckInStatusPending),
			Lt("date", before),
			Gt("id", afterID),
		},
		OrderBy: "id",
		Limit:   limit,
	})
	return rows, err
}

// ListPendingUnreminded 提醒任务分页读取
func (s *CheckInStore) ListPendingUnreminded(ctx context.Context, from, to clock.Date, afterID int64, limit int) ([]model.CheckIn, error) {
	var rows []model.CheckIn
	err := s.rows.Find(ctx, &rows, Query{
		Where: []Cond{
			Eq("status", model.CheckInStatusPending),
			Gte("date", from),
			Lte("date", to),
			IsNull("reminded_at"),
			Gt("id", afterID),
		},
		OrderBy: "id",
		Limit:   limit,
	})
	return rows, err
}

// MarkReminded 每条记录只提醒一次
func (s *CheckInStore) MarkReminded(ctx context.Context, id int64, at time.Time) (bool, error) {
	n, err := s.rows.Update(ctx, &model.CheckIn{}, Patch{"reminded_at": at},
		Eq("id", id),
		Eq("status", model.CheckInStatusPending),
		IsNull("reminded_at"),
	)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// HistoryFilter 历史查询条件
type HistoryFilter struct {
	From   *clock.Date
	To     *clock.Date
	Status model.CheckInStatus
	// Before 游标，只返回日期早于它的记录
	Before *clock.Date
	Limit  int
}

// ListByGoal 按日期倒序
func (s *CheckInStore) ListByGoal(ctx context.Context, goalID int64, f HistoryFilter) ([]model.CheckIn, error) {
	conds := []Cond{Eq("goal_id", goalID)}
	if f.From != nil {
		conds = append(conds, Gte("date", *f.From))
	}
	if f.To != nil {
		conds = append(conds, Lte("date", *f.To))
	}
	if f.Before != nil {
		conds = append(conds, Lt("date", *f.Before))
	}
	if f.Status != "" {
		conds = append(conds, Eq("status", f.Status))
	}

	var rows []model.CheckIn
	err := s.rows.Find(ctx, &rows, Query{Where: conds, OrderBy: "date", Desc: true, Limit: f.Limit})
	return rows, err
}

// ListAllByGoal 全量历史，按日期正序，仅供对账使用
func (s *CheckInStore) ListAllByGoal(ctx context.Context, goalID int64) ([]model.CheckIn, error) {
	var rows []model.CheckIn
	err := s.rows.Find(ctx, &rows, Query{Where: []Cond{Eq("goal_id", goalID)}, OrderBy: "date"})
	return rows, err
}

// ListByUserDate 某用户某天的所有打卡
func (s *CheckInStore) ListByUserDate(ctx context.Context, userID int64, date clock.Date) ([]model.CheckIn, error) {
	var rows []model.CheckIn
	err := s.rows.Find(ctx, &rows, Query{Where: []Cond{Eq("user_id", userID), Eq("date", date)}, OrderBy: "id"})
	return rows, err
}

// SoftDeleteByGoal 删除目标时级联
func (s *CheckInStore) SoftDeleteByGoal(ctx context.Context, goalID int64) (int64, error) {
	return s.rows.Delete(ctx, &model.CheckIn{}, Eq("goal_id", goalID))
}

func notFoundAs(err error, def errors.Definition) error {
	if stderrors.Is(err, ErrNotFound) {
		return def
	}
	return err
}
