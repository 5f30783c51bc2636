package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/pkg/auth"
)

// HeaderUserID は旅行者を識別するヘッダー
const HeaderUserID = "X-User-ID"

const (
	contextKeyUserID     = "user_id"
	contextKeyOperatorID = "operator_id"
)

// RequireTraveler は X-User-ID ヘッダーを必須にする
func RequireTraveler() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
			}
			c.Set(contextKeyUserID, userID)
			return next(c)
		}
	}
}

// UserID は RequireTraveler が設定した旅行者IDを返す
func UserID(c echo.Context) string {
	id, _ := c.Get(contextKeyUserID).(string)
	return id
}

// OperatorAuth は Bearer トークンを検証し、オペレーターのみ通す
func OperatorAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "認証トークンが必要です")
			}
			claims, err := auth.ParseOperatorToken(secret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				if errors.Is(err, auth.ErrForbiddenRole) {
					return echo.NewHTTPError(http.StatusForbidden, err.Error())
				}
				return echo.NewHTTPError(http.StatusUnauthorized, auth.ErrInvalidToken.Error())
			}
			c.Set(contextKeyOperatorID, claims.Subject)
			return next(c)
		}
	}
}

// OperatorID は OperatorAuth が設定したオペレーターIDを返す
func OperatorID(c echo.Context) string {
	id, _ := c.Get(contextKeyOperatorID).(string)
	return id
}
