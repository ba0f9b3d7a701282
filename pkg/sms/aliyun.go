package sms

import (
	"context"
	"encoding/json"
	"fmt"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	openapiutil "github.com/alibabacloud-go/openapi-util/service"
	util "github.com/alibabacloud-go/tea-utils/v2/service"
	"github.com/alibabacloud-go/tea/tea"
	credential "github.com/aliyun/credentials-go/credentials"
	"go.uber.org/zap"

	"FitStreak/pkg/logger"
	"FitStreak/utils"
)

type AliyunClient struct {
	client *openapi.Client
}

// NewAliyunClient 凭据从默认链读取，需设置 ALIBABA_CLOUD_ACCESS_KEY_ID 和 ALIBABA_CLOUD_ACCESS_KEY_SECRET
func NewAliyunClient() (*AliyunClient, error) {
	cred, err := credential.NewCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create aliyun credential: %w", err)
	}

	client, err := openapi.NewClient(&openapi.Config{
		Credential: cred,
		Endpoint:   tea.String("dysmsapi.aliyuncs.com"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create aliyun client: %w", err)
	}

	return &AliyunClient{client: client}, nil
}

func (c *AliyunClient) apiInfo(action string) *openapi.Params {
	return &openapi.Params{
		Action:      tea.String(action),
		Version:     tea.String("2017-05-25"),
		Protocol:    tea.String("HTTPS"),
		Method:      tea.String("POST"),
		AuthType:    tea.String("AK"),
		Style:       tea.String("RPC"),
		Pathname:    tea.String("/"),
		ReqBodyType: tea.String("json"),
		BodyType:    tea.String("json"),
	}
}

func (c *AliyunClient) SendSingle(ctx context.Context, phone, signName, templateCode, templateParam string) (*SendResponse, error) {
	if signName == "" {
		return nil, errSignNameRequired
	}
	if templateCode == "" {
		return nil, errTemplateCodeRequired
	}

	queries := map[string]interface{}{
		"PhoneNumbers":  tea.String(phone),
		"SignName":      tea.String(signName),
		"TemplateCode":  tea.String(templateCode),
		"TemplateParam": tea.String(templateParam),
	}

	resp, err := c.client.CallApi(c.apiInfo("SendSms"), &openapi.OpenApiRequest{
		Query: openapiutil.Query(queries),
	}, &util.RuntimeOptions{})
	if err != nil {
		logger.Logger.Error("Failed to send SMS",
			zap.String("phone", utils.MaskPhone(phone)),
			zap.String("template", templateCode),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to send SMS: %w", err)
	}

	return parseResponse(resp)
}

// parseResponse 解析 CallApi 返回的 statusCode 与 body
func parseResponse(resp map[string]interface{}) (*SendResponse, error) {
	if code, ok := resp["statusCode"].(int); ok && code != 200 {
		logger.Logger.Error("SMS API returned error",
			zap.Int("status_code", code),
			zap.Any("body", resp["body"]),
		)
		return nil, fmt.Errorf("SMS API error: statusCode=%d", code)
	}

	var body struct {
		Code      string `json:"Code"`
		Message   string `json:"Message"`
		BizID     string `json:"BizId"`
		RequestID string `json:"RequestId"`
	}
	if raw, ok := resp["body"]; ok && raw != nil {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("marshal SMS response: %w", err)
		}
		if err := json.Unmarshal(b, &body); err != nil {
			return nil, fmt.Errorf("decode SMS response: %w", err)
		}
	}
	if body.Code != "" && body.Code != "OK" {
		return nil, fmt.Errorf("SMS send failed: %s - %s", body.Code, body.Message)
	}

	return &SendResponse{
		MessageID: body.BizID,
		Code:      body.Code,
		Message:   body.Message,
		RequestID: body.RequestID,
		Provider:  "aliyun",
	}, nil
}
