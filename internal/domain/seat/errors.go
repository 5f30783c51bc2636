package seat

import "errors"

// Seat ドメインのエラー定義
var (
	ErrSeatNotFound      = errors.New("座席が見つかりません")
	ErrSeatLabelRequired = errors.New("座席ラベルは必須です")
	ErrNoSeatAvailable   = errors.New("空席がありません")
)
