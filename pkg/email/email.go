package email

import (
	"context"
	"fmt"
	"sync"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"FitStreak/config"
	"FitStreak/pkg/logger"
)

// New 按 EMAIL_PROVIDER 构建，实现 service.EmailSender；none 返回 nil，表示不启用邮件渠道
func New() (Sender, error) {
	cfg := config.Cfg

	switch cfg.EmailProvider {
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("RESEND_API_KEY is required for resend provider")
		}
		logger.Logger.Info("Email client initialized successfully", zap.String("provider", "resend"))
		return NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom), nil
	case "mock":
		return NewMockSender(), nil
	case "none", "":
		logger.Logger.Info("Email channel disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported email provider: %s", cfg.EmailProvider)
	}
}

type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

func (s *ResendSender) Send(ctx context.Context, to, subject, html string) error {
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	logger.Logger.Info("Email sent successfully",
		zap.String("email_id", sent.Id),
		zap.String("subject", subject),
	)
	return nil
}

type MockEmail struct {
	To      string
	Subject string
	HTML    string
}

// MockSender 只记录邮件，本地开发使用
type MockSender struct {
	mu   sync.Mutex
	Sent []MockEmail
}

func NewMockSender() *MockSender {
	return &MockSender{}
}

func (m *MockSender) Send(_ context.Context, to, subject, html string) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, MockEmail{To: to, Subject: subject, HTML: html})
	m.mu.Unlock()

	logger.Logger.Debug("Email sent (mock)", zap.String("subject", subject))
	return nil
}
