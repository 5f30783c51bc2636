// optoken はオペレーターAPI用の Bearer トークンを発行する
//
//	JWT_SECRET=... go run ./cmd/optoken -sub operator@example.com -ttl 8h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/config"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/pkg/auth"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/pkg/logger"
)

func main() {
	cfg := config.Load()

	subject := flag.String("sub", "", "オペレーターID（必須）")
	ttl := flag.Duration("ttl", cfg.Auth.TokenTTL, "有効期間")
	flag.Parse()

	if *subject == "" {
		flag.Usage()
		os.Exit(2)
	}

	token, expiresAt, err := auth.IssueOperatorToken(cfg.Auth.JWTSecret, *subject, *ttl, time.Now())
	if err != nil {
		logger.Fatal("トークン発行に失敗", zap.Error(err))
	}
	logger.Info("トークンを発行しました", zap.String("sub", *subject), zap.Time("expires_at", expiresAt))
	fmt.Println(token)
}
