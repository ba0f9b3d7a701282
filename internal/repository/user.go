package repository

import (
	"context"
	"fmt"

	"FitStreak/internal/model"
	"FitStreak/pkg/errors"
)

// UserRepository 用户存储
type UserRepository struct {
	rows RowStore
}

func NewUserRepository(rows RowStore) *UserRepository {
	return &UserRepository{rows: rows}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.rows.Insert(ctx, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := r.rows.FindOne(ctx, &user, Eq("id", id)); err != nil {
		return nil, notFoundAs(err, errors.UserNotFound)
	}
	return &user, nil
}

// FindByPublicID API 中的 userID 是 public_id
func (r *UserRepository) FindByPublicID(ctx context.Context, publicID int64) (*model.User, error) {
	var user model.User
	if err := r.rows.FindOne(ctx, &user, Eq("public_id", publicID)); err != nil {
		return nil, notFoundAs(err, errors.UserNotFound)
	}
	return &user, nil
}

// FindByIDs 批量读取，后台任务用于解析时区
func (r *UserRepository) FindByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	users := make(map[int64]*model.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	var rows []model.User
	if err := r.rows.Find(ctx, &rows, Query{Where: []Cond{In("id", ids)}}); err != nil {
		return nil, err
	}
	for i := range rows {
		users[rows[i].ID] = &rows[i]
	}
	return users, nil
}

func (r *UserRepository) Update(ctx context.Context, id int64, patch Patch) error {
	if len(patch) == 0 {
		return nil
	}
	n, err := r.rows.Update(ctx, &model.User{}, patch, Eq("id", id))
	if err != nil {
		return fmt.Errorf("update user %d: %w", id, err)
	}
	if n == 0 {
		return errors.UserNotFound
	}
	return nil
}
