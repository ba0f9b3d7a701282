package media

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestPresignPutIsOffline(t *testing.T) {
	ctx := context.Background()
	p, err := NewPresigner(ctx, S3Config{
		Bucket:       "fitstreak-media",
		Region:       "us-east-1",
		Endpoint:     "http://localhost:9000",
		AccessKey:    "minio",
		SecretKey:    "minio123",
		UsePathStyle: true,
		Expiry:       10 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewPresigner: %v", err)
	}

	before := time.Now()
	url, expiresAt, err := p.PresignPut(ctx, "checkins/1/photo.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("PresignPut: %v", err)
	}
	if !strings.HasPrefix(url, "http://localhost:9000/fitstreak-media/checkins/1/photo.jpg?") {
		t.Fatalf("url = %s", url)
	}
	if !strings.Contains(url, "X-Amz-Signature=") || !strings.Contains(url, "X-Amz-Expires=600") {
		t.Fatalf("url missing signature params: %s", url)
	}
	if expiresAt.Before(before.Add(10 * time.Minute)) {
		t.Fatalf("expiresAt = %s", expiresAt)
	}
}
