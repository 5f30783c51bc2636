package itinerary

import "errors"

// Itinerary ドメインのエラー定義
var (
	ErrItineraryNotFound      = errors.New("旅程が見つかりません")
	ErrOriginRequired         = errors.New("出発地は必須です")
	ErrDestinationRequired    = errors.New("目的地は必須です")
	ErrDepartureRequired      = errors.New("出発日時は必須です")
	ErrInvalidTransportType   = errors.New("交通手段は bus か flight である必要があります")
	ErrSeatClassMismatch      = errors.New("座席クラスが交通手段と一致しません")
	ErrInvalidPrice           = errors.New("価格は0以上である必要があります")
	ErrInvalidTotalSeats      = errors.New("座席数は1以上かつ座席配置の席数以下である必要があります")
	ErrInvalidLayout          = errors.New("座席配置が不正です")
	ErrAmbiguousLayout        = errors.New("座席配置はグリッドか明示ラベルのどちらか一方のみ指定できます")
	ErrDuplicateSeatLabel     = errors.New("座席ラベルが重複しています")
	ErrItineraryHasBookings   = errors.New("予約済みの座席があるため座席構成を変更できません")
	ErrOptimisticLockConflict = errors.New("楽観的ロックの競合が発生しました")
)
