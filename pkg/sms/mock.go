package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"FitStreak/pkg/logger"
	"FitStreak/utils"
)

// Delivery mock 记录的一条提醒短信，模板参数已解码
type Delivery struct {
	Phone    string
	SignName string
	Template string
	Params   map[string]string
}

// MockClient 本地开发与测试用，不调用服务商
type MockClient struct {
	mu         sync.Mutex
	deliveries []Delivery
	failures   []error
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

// FailWith 之后的调用依次返回这些错误
func (m *MockClient) FailWith(errs ...error) {
	m.mu.Lock()
	m.failures = append(m.failures, errs...)
	m.mu.Unlock()
}

// Deliveries 返回已成功发送的短信副本
func (m *MockClient) Deliveries() []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Delivery(nil), m.deliveries...)
}

// ForTemplate 按模板筛选，模板与通知事件一一对应
func (m *MockClient) ForTemplate(template string) []Delivery {
	var out []Delivery
	for _, d := range m.Deliveries() {
		if d.Template == template {
			out = append(out, d)
		}
	}
	return out
}

func (m *MockClient) SendSingle(_ context.Context, phone, signName, templateCode, templateParam string) (*SendResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return nil, err
	}

	var params map[string]string
	if templateParam != "" && templateParam != "null" {
		if err := json.Unmarshal([]byte(templateParam), &params); err != nil {
			return nil, fmt.Errorf("mock sms: template param is not a JSON object: %w", err)
		}
	}

	m.deliveries = append(m.deliveries, Delivery{
		Phone:    phone,
		SignName: signName,
		Template: templateCode,
		Params:   params,
	})
	logger.Logger.Debug("SMS sent (mock)",
		zap.String("phone", utils.MaskPhone(phone)),
		zap.String("template", templateCode),
	)

	return &SendResponse{
		MessageID: fmt.Sprintf("mock-%d", len(m.deliveries)),
		Code:      "OK",
		Provider:  "mock",
	}, nil
}
