package reservation

import (
	"time"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/seat"
)

// DefaultHoldTTL は仮押さえの既定の有効期間（決済フォームを入力できる長さ）
const DefaultHoldTTL = 10 * time.Minute

// Hold は1席に対する時間制限付きの排他的な確保を表す
// Status が SOLD になった後は販売記録として扱う
type Hold struct {
	ItineraryID string
	SeatLabel   string
	HolderID    string
	Token       string
	Status      seat.Status
	CreatedAt   time.Time
	ExpiresAt   time.Time
	SoldAt      *time.Time
}

// HoldRequest は仮押さえの要求を表す
type HoldRequest struct {
	ItineraryID string
	SeatLabel   string
	HolderID    string
	Token       string
	TTL         time.Duration
	Capacity    int
}

// NewHold は仮押さえを作成する
func NewHold(req HoldRequest, now time.Time) *Hold {
	return &Hold{
		ItineraryID: req.ItineraryID,
		SeatLabel:   req.SeatLabel,
		HolderID:    req.HolderID,
		Token:       req.Token,
		Status:      seat.StatusHeld,
		CreatedAt:   now,
		ExpiresAt:   now.Add(req.TTL),
	}
}

// IsExpiredAt は指定時刻に仮押さえが期限切れかを返す
// 販売済みの記録は期限切れにならない
func (h *Hold) IsExpiredAt(now time.Time) bool {
	return h.Status == seat.StatusHeld && !now.Before(h.ExpiresAt)
}

// IsSold は販売済みかを返す
func (h *Hold) IsSold() bool {
	return h.Status == seat.StatusSold
}

// BelongsTo は保持者とトークンが一致するかを返す
func (h *Hold) BelongsTo(holderID, token string) bool {
	return h.HolderID == holderID && h.Token == token
}

// MarkSold は仮押さえを販売済みにする
func (h *Hold) MarkSold(now time.Time) error {
	if h.IsSold() {
		return nil
	}
	if h.IsExpiredAt(now) {
		return ErrExpiredHold
	}
	h.Status = seat.StatusSold
	h.SoldAt = &now
	return nil
}

// Clone は複製を返す
func (h *Hold) Clone() *Hold {
	c := *h
	if h.SoldAt != nil {
		soldAt := *h.SoldAt
		c.SoldAt = &soldAt
	}
	return &c
}

// ValidateSale は台帳に書き戻す販売記録の検証を行う
func (h *Hold) ValidateSale() error {
	if h.ItineraryID == "" {
		return ErrItineraryIDRequired
	}
	if h.SeatLabel == "" {
		return seat.ErrSeatLabelRequired
	}
	if h.HolderID == "" {
		return ErrHolderIDRequired
	}
	if h.Token == "" {
		return ErrIdempotencyTokenRequired
	}
	return nil
}

// Validate は仮押さえ要求の検証を行う
func (r HoldRequest) Validate() error {
	if r.ItineraryID == "" {
		return ErrItineraryIDRequired
	}
	if r.SeatLabel == "" {
		return seat.ErrSeatLabelRequired
	}
	if r.HolderID == "" {
		return ErrHolderIDRequired
	}
	if r.Token == "" {
		return ErrIdempotencyTokenRequired
	}
	if r.TTL <= 0 {
		return ErrInvalidTTL
	}
	if r.Capacity <= 0 {
		return ErrCapacityExceeded
	}
	return nil
}
