package model

// NotificationMessage 通知消息，MessageID 用于幂等性检查
type NotificationMessage struct {
	MessageID  string                 `json:"message_id"`
	Event      NotificationEvent      `json:"event"`
	Payload    map[string]interface{} `json:"payload"`
	UserID     int64                  `json:"user_id"`
	OccurredAt string                 `json:"occurred_at"`
}
