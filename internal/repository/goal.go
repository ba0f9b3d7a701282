package repository

import (
	"context"
	"fmt"

	"FitStreak/internal/model"
	"FitStreak/pkg/clock"
	"FitStreak/pkg/errors"
)

// GoalRepository 目标存储
type GoalRepository struct {
	rows RowStore
}

func NewGoalRepository(rows RowStore) *GoalRepository {
	return &GoalRepository{rows: rows}
}

func (r *GoalRepository) Create(ctx context.Context, goal *model.Goal) error {
	if err := r.rows.Insert(ctx, goal); err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	return nil
}

func (r *GoalRepository) FindByID(ctx context.Context, id int64) (*model.Goal, error) {
	var goal model.Goal
	if err := r.rows.FindOne(ctx, &goal, Eq("id", id)); err != nil {
		return nil, notFoundAs(err, errors.GoalNotFound)
	}
	return &goal, nil
}

// FindOwned 他人的目标同样返回 GoalNotFound
func (r *GoalRepository) FindOwned(ctx context.Context, id, userID int64) (*model.Goal, error) {
	var goal model.Goal
	if err := r.rows.FindOne(ctx, &goal, Eq("id", id), Eq("user_id", userID)); err != nil {
		return nil, notFoundAs(err, errors.GoalNotFound)
	}
	return &goal, nil
}

func (r *GoalRepository) ListByUser(ctx context.Context, userID int64, status model.GoalStatus) ([]model.Goal, error) {
	conds := []Cond{Eq("user_id", userID)}
	if status != "" {
		conds = append(conds, Eq("status", status))
	}

	var goals []model.Goal
	err := r.rows.Find(ctx, &goals, Query{Where: conds, OrderBy: "id"})
	return goals, err
}

// ListByStatus 后台任务按 id 分页扫描
func (r *GoalRepository) ListByStatus(ctx context.Context, status model.GoalStatus, afterID int64, limit int) ([]model.Goal, error) {
	var goals []model.Goal
	err := r.rows.Find(ctx, &goals, Query{
		Where:   []Cond{Eq("status", status), Gt("id", afterID)},
		OrderBy: "id",
		Limit:   limit,
	})
	return goals, err
}

// TransitionStatus 条件更新，from 不匹配时 applied=false
func (r *GoalRepository) TransitionStatus(ctx context.Context, id int64, from, to model.GoalStatus) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, errors.GoalStatusLocked
	}
	n, err := r.rows.Update(ctx, &model.Goal{}, Patch{"status": to}, Eq("id", id), Eq("status", from))
	if err != nil {
		return false, fmt.Errorf("transition goal %d %s -> %s: %w", id, from, to, err)
	}
	return n == 1, nil
}

// CompareAndSetStreak 以 streak_version 为乐观锁写入连续计数
func (r *GoalRepository) CompareAndSetStreak(ctx context.Context, id, version int64, s model.Streak) (bool, error) {
	patch := Patch{
		"current_streak":    s.Current,
		"longest_streak":    s.Longest,
		"total_completions": s.Total,
		"last_completed_on": s.LastCompletedOn,
		"streak_version":    Incr{N: 1},
	}
	n, err := r.rows.Update(ctx, &model.Goal{}, patch, Eq("id", id), Eq("streak_version", version))
	if err != nil {
		return false, fmt.Errorf("update streak of goal %d: %w", id, err)
	}
	return n == 1, nil
}

// ResetStreakIfStale 漏打卡惩罚：只有当 date 之后没有完成记录时才清零
func (r *GoalRepository) ResetStreakIfStale(ctx context.Context, id int64, date clock.Date) (bool, error) {
	n, err := r.rows.Update(ctx, &model.Goal{},
		Patch{"current_streak": 0, "streak_version": Incr{N: 1}},
		Eq("id", id),
		AnyOf(IsNull("last_completed_on"), Lt("last_completed_on", date)),
	)
	if err != nil {
		return false, fmt.Errorf("reset streak of goal %d: %w", id, err)
	}
	return n == 1, nil
}

// SoftDelete 删除目标
func (r *GoalRepository) SoftDelete(ctx context.Context, id int64) (int64, error) {
	return r.rows.Delete(ctx, &model.Goal{}, Eq("id", id))
}
