package repository

import (
	"context"
	"fmt"
	"time"

	"FitStreak/internal/model"
)

// NotificationRepository 通知任务存储
type NotificationRepository struct {
	rows RowStore
}

func NewNotificationRepository(rows RowStore) *NotificationRepository {
	return &NotificationRepository{rows: rows}
}

// CreateIfAbsent message_id 唯一，重复投递不会重复落库
func (r *NotificationRepository) CreateIfAbsent(ctx context.Context, task *model.NotificationTask) (bool, error) {
	created, err := r.rows.InsertIgnore(ctx, task)
	if err != nil {
		return false, fmt.Errorf("create notification task %s: %w", task.MessageID, err)
	}
	return created, nil
}

func (r *NotificationRepository) FindByMessageID(ctx context.Context, messageID string) (*model.NotificationTask, error) {
	var task model.NotificationTask
	if err := r.rows.FindOne(ctx, &task, Eq("message_id", messageID)); err != nil {
		return nil, err
	}
	return &task, nil
}

// MarkResult 记录投递结果
func (r *NotificationRepository) MarkResult(ctx context.Context, id int64, channel model.NotificationChannel, status model.NotificationTaskStatus, errMsg string, at time.Time) error {
	patch := Patch{
		"channel":       channel,
		"status":        status,
		"error_message": truncate(errMsg, 255),
	}
	if status == model.NotificationTaskStatusSuccess {
		patch["sent_at"] = at
	}
	if status == model.NotificationTaskStatusFailed {
		patch["retry_count"] = Incr{N: 1}
	}

	_, err := r.rows.Update(ctx, &model.NotificationTask{}, patch, Eq("id", id))
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
