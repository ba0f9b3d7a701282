package token

import (
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"FitStreak/config"
	"FitStreak/pkg/errors"
)

func TestRefreshRoundTrip(t *testing.T) {
	config.Cfg.JWTSecret = "test-secret"
	config.Cfg.JWTExpireMinutes = 30
	config.Cfg.JWTRefreshDays = 7

	pair, err := GenerateTokenPair(7311)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if pair.ExpiresIn <= 0 || pair.TokenType != "Bearer" {
		t.Fatalf("unexpected pair %+v", pair)
	}

	uid, err := ValidateRefreshToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("validate refresh: %v", err)
	}
	if uid != 7311 {
		t.Fatalf("expected uid 7311, got %d", uid)
	}

	// access token 不能当 refresh token 用
	if _, err := ValidateRefreshToken(pair.AccessToken); errors.KindOf(err) != errors.KindUnauthorized {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
}

func TestRefreshExpired(t *testing.T) {
	config.Cfg.JWTSecret = "test-secret"

	expired, err := sign(jwtv5.MapClaims{
		IdentityKey: "9",
		"type":      "refresh",
		"exp":       time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ValidateRefreshToken(expired); err != errors.TokenExpired {
		t.Fatalf("expected TokenExpired, got %v", err)
	}
}

func TestParseUserID(t *testing.T) {
	if id, err := ParseUserID(float64(12)); err != nil || id != 12 {
		t.Fatalf("float claim: %d %v", id, err)
	}
	if _, err := ParseUserID("abc"); err == nil {
		t.Fatalf("expected error for non-numeric uid")
	}
	if _, err := ParseUserID(nil); err == nil {
		t.Fatalf("expected error for missing uid")
	}
}
