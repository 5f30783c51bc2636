package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/reservation"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/seat"
)

const sweepBatchSize = 500

var _ reservation.Ledger = (*Ledger)(nil)

// Ledger は Redis を正本とする reservation.Ledger の実装
// 複数の API インスタンスが同じ座席状態を共有する構成で使う
type Ledger struct {
	client    *redis.Client
	now       func() time.Time
	retention time.Duration
}

// LedgerOption は Ledger の設定
type LedgerOption func(*Ledger)

// WithLedgerClock は現在時刻の取得方法を差し替える
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// WithLedgerTokenRetention は期限切れトークンの保持期間を設定する
func WithLedgerTokenRetention(d time.Duration) LedgerOption {
	return func(l *Ledger) { l.retention = d }
}

// NewLedger は Ledger を作成する
func NewLedger(client *redis.Client, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		client:    client,
		now:       time.Now,
		retention: time.Hour,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func seatKey(itineraryID, label string) string {
	return fmt.Sprintf("ledger:%s:seat:%s", itineraryID, label)
}

func occupiedKey(itineraryID string) string {
	return fmt.Sprintf("ledger:%s:occupied", itineraryID)
}

func tokenKey(token string) string {
	return "ledger:token:" + token
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// TryHold は座席が FREE の場合にのみ仮押さえを作成する
func (l *Ledger) TryHold(ctx context.Context, req reservation.HoldRequest) (*reservation.Hold, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := l.now()
	res, err := tryHoldScript.Run(ctx, l.client,
		[]string{seatKey(req.ItineraryID, req.SeatLabel), occupiedKey(req.ItineraryID), tokenKey(req.Token)},
		req.ItineraryID, req.SeatLabel, req.HolderID, req.Token,
		millis(now), millis(now.Add(req.TTL)), req.Capacity,
	).Slice()
	if err != nil {
		return nil, ledgerError("ledger.tryHold", err)
	}
	return parseHoldReply(res)
}

// Confirm は有効な仮押さえを SOLD にする
func (l *Ledger) Confirm(ctx context.Context, itineraryID, seatLabel, token string) (*reservation.Hold, error) {
	res, err := confirmScript.Run(ctx, l.client,
		[]string{seatKey(itineraryID, seatLabel), tokenKey(token)},
		itineraryID, seatLabel, token, millis(l.now()),
	).Slice()
	if err != nil {
		return nil, ledgerError("ledger.confirm", err)
	}
	return parseHoldReply(res)
}

// Release は仮押さえを解放する（既に無い場合は何もしない）
func (l *Ledger) Release(ctx context.Context, itineraryID, seatLabel, token string) error {
	res, err := releaseScript.Run(ctx, l.client, []string{seatKey(itineraryID, seatLabel)}, token).Slice()
	if err != nil {
		return ledgerError("ledger.release", err)
	}
	_, err = parseHoldReply(res)
	return err
}

// CancelSale は販売済みの座席を FREE に戻す
func (l *Ledger) CancelSale(ctx context.Context, itineraryID, seatLabel, token string) error {
	res, err := cancelSaleScript.Run(ctx, l.client, []string{seatKey(itineraryID, seatLabel)}, token).Slice()
	if err != nil {
		return ledgerError("ledger.cancelSale", err)
	}
	_, err = parseHoldReply(res)
	return err
}

// RestoreSale は販売記録を台帳に書き戻す
func (l *Ledger) RestoreSale(ctx context.Context, sale *reservation.Hold) error {
	if err := sale.ValidateSale(); err != nil {
		return err
	}
	soldAt := sale.CreatedAt
	if sale.SoldAt != nil {
		soldAt = *sale.SoldAt
	}
	res, err := restoreSaleScript.Run(ctx, l.client,
		[]string{seatKey(sale.ItineraryID, sale.SeatLabel), occupiedKey(sale.ItineraryID), tokenKey(sale.Token)},
		sale.ItineraryID, sale.SeatLabel, sale.HolderID, sale.Token, millis(sale.CreatedAt), millis(soldAt),
	).Slice()
	if err != nil {
		return ledgerError("ledger.restoreSale", err)
	}
	_, err = parseHoldReply(res)
	return err
}

// Lookup はトークンから現在の仮押さえ・販売を取得する
func (l *Ledger) Lookup(ctx context.Context, token string) (*reservation.Hold, error) {
	res, err := lookupScript.Run(ctx, l.client, []string{tokenKey(token)}, token, millis(l.now())).Slice()
	if err != nil {
		return nil, ledgerError("ledger.lookup", err)
	}
	return parseHoldReply(res)
}

// Snapshot は旅程の FREE 以外の座席状態を返す
func (l *Ledger) Snapshot(ctx context.Context, itineraryID string) (map[string]seat.Status, error) {
	res, err := snapshotScript.Run(ctx, l.client, []string{occupiedKey(itineraryID)}, itineraryID, millis(l.now())).StringSlice()
	if err != nil {
		return nil, ledgerError("ledger.snapshot", err)
	}
	snapshot := make(map[string]seat.Status, len(res)/2)
	for i := 0; i+1 < len(res); i += 2 {
		snapshot[res[i]] = seat.Status(res[i+1])
	}
	return snapshot, nil
}

// Occupancy は旅程の HELD/SOLD 座席数を返す
func (l *Ledger) Occupancy(ctx context.Context, itineraryID string) (int, error) {
	snapshot, err := l.Snapshot(ctx, itineraryID)
	if err != nil {
		return 0, err
	}
	return len(snapshot), nil
}

// SweepExpired は期限切れの仮押さえを回収し、保持期間を過ぎたトークンを削除する
func (l *Ledger) SweepExpired(ctx context.Context) (int, error) {
	now := l.now()
	total := 0
	for {
		res, err := sweepScript.Run(ctx, l.client, nil,
			millis(now), millis(now.Add(-l.retention)), sweepBatchSize,
		).Int64Slice()
		if err != nil {
			return total, ledgerError("ledger.sweep", err)
		}
		total += int(res[0])
		if res[1] < sweepBatchSize {
			return total, nil
		}
	}
}

func ledgerError(op string, err error) error {
	return fmt.Errorf("座席台帳の操作に失敗: %w", reservation.NewTransientError(op, err))
}

// parseHoldReply はスクリプトの戻り値 {code, itinerary, seat, holder, token, status, created_at, expires_at, sold_at} を解釈する
func parseHoldReply(res []any) (*reservation.Hold, error) {
	if len(res) == 0 {
		return nil, fmt.Errorf("座席台帳の応答が空です")
	}
	code, _ := res[0].(string)
	switch code {
	case "OK":
	case "UNAVAILABLE":
		return nil, reservation.ErrSeatUnavailable
	case "TOKEN_REUSED":
		return nil, reservation.ErrTokenReused
	case "CAPACITY":
		return nil, reservation.ErrCapacityExceeded
	case "EXPIRED":
		return nil, reservation.ErrExpiredHold
	case "MISMATCH":
		return nil, reservation.ErrTokenMismatch
	case "NOT_FOUND":
		return nil, reservation.ErrHoldNotFound
	case "NOT_SOLD":
		return nil, reservation.ErrNotSold
	case "ALREADY_SOLD":
		return nil, reservation.ErrAlreadySold
	default:
		return nil, fmt.Errorf("座席台帳の応答が不正です: %v", res[0])
	}
	if len(res) < 9 {
		return nil, nil
	}

	field := func(i int) string {
		s, _ := res[i].(string)
		return s
	}
	h := &reservation.Hold{
		ItineraryID: field(1),
		SeatLabel:   field(2),
		HolderID:    field(3),
		Token:       field(4),
		Status:      seat.Status(field(5)),
	}
	var err error
	if h.CreatedAt, err = parseMillis(field(6)); err != nil {
		return nil, err
	}
	if h.ExpiresAt, err = parseMillis(field(7)); err != nil {
		return nil, err
	}
	if sold := field(8); sold != "" && sold != "0" {
		soldAt, err := parseMillis(sold)
		if err != nil {
			return nil, err
		}
		h.SoldAt = &soldAt
	}
	return h, nil
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("座席台帳の時刻が不正です: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
