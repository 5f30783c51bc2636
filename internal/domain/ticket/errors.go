package ticket

import "errors"

// Ticket ドメインのエラー定義
var (
	ErrTicketNotFound         = errors.New("チケットが見つかりません")
	ErrTicketAlreadyCancelled = errors.New("チケットは既にキャンセルされています")
	ErrPassengerNameRequired  = errors.New("乗客名は必須です")
	ErrContactRequired        = errors.New("連絡先は必須です")
	ErrTokenRequired          = errors.New("冪等性トークンは必須です")
	ErrSeatRequired           = errors.New("旅程と座席は必須です")
	ErrSeatAlreadyTicketed    = errors.New("この座席には有効なチケットが既に存在します")
)
