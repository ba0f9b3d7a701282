package sms

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"FitStreak/config"
	"FitStreak/internal/model"
	"FitStreak/pkg/logger"
	"FitStreak/utils"
)

var (
	errSignNameRequired     = stderrors.New("sms sign name is required")
	errTemplateCodeRequired = stderrors.New("sms template code is required")
)

// Client 短信服务商接口
type Client interface {
	// SendSingle templateParam 为 JSON 字符串
	SendSingle(ctx context.Context, phone, signName, templateCode, templateParam string) (*SendResponse, error)
}

// SendResponse 短信发送响应
type SendResponse struct {
	MessageID string // 服务商返回的 BizId
	Code      string
	Message   string
	RequestID string
	Provider  string
}

// Sender 按事件选择模板发送短信，实现 service.SMSSender
type Sender struct {
	client    Client
	signName  string
	templates map[model.NotificationEvent]string
}

func NewSender(client Client, signName string, templates map[model.NotificationEvent]string) *Sender {
	return &Sender{client: client, signName: signName, templates: templates}
}

// New 按 SMS_PROVIDER 构建；none 返回 nil，表示不启用短信渠道
func New() (*Sender, error) {
	cfg := config.Cfg

	var client Client
	switch cfg.SMSProvider {
	case "aliyun":
		c, err := NewAliyunClient()
		if err != nil {
			return nil, err
		}
		client = c
	case "mock":
		client = NewMockClient()
	case "none", "":
		logger.Logger.Info("SMS channel disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported SMS provider: %s", cfg.SMSProvider)
	}

	logger.Logger.Info("SMS client initialized successfully", zap.String("provider", cfg.SMSProvider))
	return NewSender(client, cfg.SMSSignName, map[model.NotificationEvent]string{
		model.NotificationEventCheckInReminder: cfg.SMSReminderTemplateCode,
	}), nil
}

func (s *Sender) Send(ctx context.Context, phone string, event model.NotificationEvent, params map[string]string) error {
	if s.signName == "" {
		return errSignNameRequired
	}
	template := s.templates[event]
	if template == "" {
		return fmt.Errorf("event %s: %w", event, errTemplateCodeRequired)
	}

	param, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal template params: %w", err)
	}

	resp, err := s.client.SendSingle(ctx, phone, s.signName, template, string(param))
	if err != nil {
		return err
	}

	logger.Logger.Info("SMS sent successfully",
		zap.String("phone", utils.MaskPhone(phone)),
		zap.String("template", template),
		zap.String("biz_id", resp.MessageID),
		zap.String("provider", resp.Provider),
	)
	return nil
}
