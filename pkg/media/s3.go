package media

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"FitStreak/config"
	"FitStreak/pkg/logger"
)

type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string // 可选，MinIO 等兼容服务
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	Expiry       time.Duration
}

func ConfigFromEnv() S3Config {
	c := config.Cfg
	return S3Config{
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		Endpoint:     c.S3Endpoint,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		UsePathStyle: c.S3UsePathStyle,
		Expiry:       c.S3PresignExpiry,
	}
}

// Presigner 生成打卡附件的直传地址，实现 service.MediaPresigner
type Presigner struct {
	client *s3.PresignClient
	bucket string
	expiry time.Duration
}

func NewPresigner(ctx context.Context, cfg S3Config) (*Presigner, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	logger.Logger.Info("S3 presigner initialized",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region),
		zap.String("endpoint", cfg.Endpoint),
	)
	return &Presigner{client: s3.NewPresignClient(client), bucket: cfg.Bucket, expiry: expiry}, nil
}

func (p *Presigner) PresignPut(ctx context.Context, key, contentType string) (string, time.Time, error) {
	expiresAt := time.Now().Add(p.expiry)

	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(p.expiry))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign put %s: %w", key, err)
	}
	return req.URL, expiresAt, nil
}
