package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/lib/pq"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/reservation"
)

// PostgreSQL のエラーコード
const (
	codeUniqueViolation           = "23505"
	codeForeignKeyViolation       = "23503"
	codeInvalidTextRepresentation = "22P02" // UUID 列に UUID 以外の文字列を渡した場合など
)

// 再試行で回復しうるエラークラス
// 08: 接続例外, 40: トランザクションのロールバック, 53: リソース不足, 57: 管理者による中断
var transientClasses = map[pq.ErrorClass]bool{
	"08": true,
	"40": true,
	"53": true,
	"57": true,
}

func isPQCode(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}

// isMalformedID は ID 列の型に合わない値で検索したかどうか
// そのような ID の行は存在しないので、呼び出し側は NotFound として扱う
func isMalformedID(err error) bool {
	return isPQCode(err, codeInvalidTextRepresentation)
}

// isTransient は接続断など、再試行で回復しうる障害かどうか
func isTransient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return transientClasses[pqErr.Code.Class()]
	}
	var netErr net.Error
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &netErr)
}

// storeError は DB のエラーをラップする
// 再試行で回復しうるものは reservation.TransientError として分類できるようにする
func storeError(op, msg string, err error) error {
	if isTransient(err) {
		err = reservation.NewTransientError(op, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
