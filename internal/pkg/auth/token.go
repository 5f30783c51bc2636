// Package auth はオペレーター用の HS256 トークンの発行と検証を行う
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleOperator はオペレーターのロール
const RoleOperator = "operator"

var (
	ErrSecretRequired = errors.New("JWTの署名鍵が設定されていません")
	ErrInvalidToken   = errors.New("トークンが不正です")
	ErrForbiddenRole  = errors.New("オペレーター権限がありません")
)

// Claims はトークンのクレーム
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueOperatorToken はオペレーター用のトークンを発行する
func IssueOperatorToken(secret, subject string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, ErrSecretRequired
	}
	exp := now.UTC().Add(ttl)
	claims := Claims{
		Role: RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now.UTC()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, exp, nil
}

// ParseOperatorToken はトークンを検証し、オペレーターのクレームを返す
func ParseOperatorToken(secret, raw string) (*Claims, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Role != RoleOperator {
		return nil, ErrForbiddenRole
	}
	return claims, nil
}
