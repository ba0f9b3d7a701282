package token

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/hertz-contrib/jwt"

	"FitStreak/config"
	"FitStreak/pkg/errors"
)

const (
	IdentityKey = "uid"
)

var (
	// 这个实例会被 middleware 和 token 包共同使用
	sharedGenerator *jwt.HertzJWTMiddleware
)

func Init() error {
	var err error
	sharedGenerator, err = jwt.New(&jwt.HertzJWTMiddleware{
		Key:         []byte(config.Cfg.JWTSecret),
		Timeout:     time.Duration(config.Cfg.JWTExpireMinutes) * time.Minute,
		MaxRefresh:  time.Duration(config.Cfg.JWTRefreshDays) * 24 * time.Hour,
		IdentityKey: IdentityKey,
		TimeFunc:    time.Now,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token generator: %w", err)
	}

	return nil
}

// GetGenerator 获取共享的 token 生成器（供 middleware 使用）
func GetGenerator() *jwt.HertzJWTMiddleware {
	return sharedGenerator
}

// Pair access/refresh token 对
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// GenerateTokenPair 生成 access token 和 refresh token，uid 为用户 public_id
func GenerateTokenPair(userID int64) (Pair, error) {
	now := time.Now()
	expiresAt := now.Add(time.Duration(config.Cfg.JWTExpireMinutes) * time.Minute)
	uid := strconv.FormatInt(userID, 10)

	accessToken, err := sign(jwtv5.MapClaims{
		IdentityKey: uid,
		"iat":       now.Unix(),
		"exp":       expiresAt.Unix(),
	})
	if err != nil {
		return Pair{}, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := sign(jwtv5.MapClaims{
		IdentityKey: uid,
		"iat":       now.Unix(),
		"type":      "refresh",
		"exp":       now.Add(time.Duration(config.Cfg.JWTRefreshDays) * 24 * time.Hour).Unix(),
	})
	if err != nil {
		return Pair{}, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	expiresIn := int(time.Until(expiresAt).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	return Pair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		TokenType:    "Bearer",
	}, nil
}

func sign(claims jwtv5.MapClaims) (string, error) {
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte(config.Cfg.JWTSecret))
}

// ValidateRefreshToken 验证 refresh token 并返回用户 public_id
func ValidateRefreshToken(tokenString string) (int64, error) {
	token, err := jwtv5.ParseWithClaims(tokenString, jwtv5.MapClaims{}, func(token *jwtv5.Token) (interface{}, error) {
		if token.Method != jwtv5.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(config.Cfg.JWTSecret), nil
	})
	if err != nil {
		if jwtErrIsExpired(err) {
			return 0, errors.TokenExpired
		}
		return 0, fmt.Errorf("%w: %v", errors.TokenInvalid, err)
	}

	claims, ok := token.Claims.(jwtv5.MapClaims)
	if !ok || !token.Valid {
		return 0, errors.TokenInvalid
	}

	if tokenType, _ := claims["type"].(string); tokenType != "refresh" {
		return 0, errors.TokenInvalid
	}

	return ParseUserID(claims[IdentityKey])
}

// ParseUserID 兼容字符串与数字两种 uid 声明
func ParseUserID(v interface{}) (int64, error) {
	switch uid := v.(type) {
	case string:
		id, err := strconv.ParseInt(uid, 10, 64)
		if err != nil || id <= 0 {
			return 0, errors.TokenInvalid
		}
		return id, nil
	case float64:
		if uid <= 0 {
			return 0, errors.TokenInvalid
		}
		return int64(uid), nil
	default:
		return 0, errors.TokenInvalid
	}
}

func jwtErrIsExpired(err error) bool {
	return stderrors.Is(err, jwtv5.ErrTokenExpired)
}
