package reservation

import (
	"errors"
	"fmt"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/seat"
)

// Reservation ドメインのエラー定義
var (
	ErrHoldNotFound             = errors.New("仮押さえが見つかりません")
	ErrSeatUnavailable          = errors.New("座席は他の利用者が確保済みです")
	ErrCapacityExceeded         = errors.New("旅程の座席数の上限に達しています")
	ErrExpiredHold              = errors.New("仮押さえの有効期限が切れています")
	ErrTokenMismatch            = errors.New("座席は別のトークンで確保されています")
	ErrTokenReused              = errors.New("冪等性トークンは別の座席で使用中です")
	ErrHolderMismatch           = errors.New("仮押さえの保持者ではありません")
	ErrNotSold                  = errors.New("座席は販売されていません")
	ErrAlreadySold              = errors.New("座席は既に販売済みです")
	ErrPendingReconciliation    = errors.New("座席は販売済みですがチケットの記録が完了していません")
	ErrCancellationWindowClosed = errors.New("出発日時を過ぎているためキャンセルできません")
	ErrBookingClosed            = errors.New("出発日時を過ぎているため予約できません")
	ErrItineraryIDRequired      = errors.New("旅程IDは必須です")
	ErrHolderIDRequired         = errors.New("保持者IDは必須です")
	ErrIdempotencyTokenRequired = errors.New("冪等性トークンは必須です")
	ErrInvalidTTL               = errors.New("有効期間は正の値である必要があります")
	ErrTransient                = errors.New("一時的な障害が発生しました")
)

// TransientError はリトライ上限に達したインフラ障害を表す
// 呼び出し側は「座席を選び直す」ではなく「後で再試行する」と判断できる
type TransientError struct {
	Op  string
	Err error
}

// NewTransientError は TransientError を作成する
func NewTransientError(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrTransient.Error(), e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Is は errors.Is(err, ErrTransient) を満たす
func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// Class はエラーの分類
type Class string

const (
	ClassNone       Class = ""
	ClassNotFound   Class = "not_found"
	ClassConflict   Class = "conflict"
	ClassExpired    Class = "expired"
	ClassPending    Class = "pending"
	ClassRejected   Class = "rejected"
	ClassValidation Class = "validation"
	ClassTransient  Class = "transient"
	ClassInternal   Class = "internal"
)

// Classify は予約・座席ドメインのエラーを分類する
// 分類できないエラーは ClassInternal になる
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrTransient):
		return ClassTransient
	case errors.Is(err, ErrPendingReconciliation):
		return ClassPending
	case errors.Is(err, ErrHoldNotFound),
		errors.Is(err, seat.ErrSeatNotFound):
		return ClassNotFound
	case errors.Is(err, ErrSeatUnavailable),
		errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrTokenMismatch),
		errors.Is(err, ErrNotSold),
		errors.Is(err, ErrAlreadySold),
		errors.Is(err, seat.ErrNoSeatAvailable):
		return ClassConflict
	case errors.Is(err, ErrExpiredHold):
		return ClassExpired
	case errors.Is(err, ErrCancellationWindowClosed),
		errors.Is(err, ErrBookingClosed),
		errors.Is(err, ErrHolderMismatch):
		return ClassRejected
	case errors.Is(err, ErrTokenReused),
		errors.Is(err, ErrItineraryIDRequired),
		errors.Is(err, ErrHolderIDRequired),
		errors.Is(err, ErrIdempotencyTokenRequired),
		errors.Is(err, ErrInvalidTTL),
		errors.Is(err, seat.ErrSeatLabelRequired):
		return ClassValidation
	default:
		return ClassInternal
	}
}
