package application

import (
	"context"
	"time"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/reservation"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/seat"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/pkg/metrics"
)

// InstrumentLedger は台帳の各操作の所要時間を記録する Ledger を返す
// m が nil なら l をそのまま返す
func InstrumentLedger(l reservation.Ledger, m *metrics.Metrics) reservation.Ledger {
	if m == nil {
		return l
	}
	return &instrumentedLedger{next: l, m: m}
}

type instrumentedLedger struct {
	next reservation.Ledger
	m    *metrics.Metrics
}

func (l *instrumentedLedger) observe(op string, start time.Time, err error) {
	l.m.LedgerOperationDuration.WithLabelValues(op, resultLabel(err)).Observe(time.Since(start).Seconds())
}

func (l *instrumentedLedger) TryHold(ctx context.Context, req reservation.HoldRequest) (h *reservation.Hold, err error) {
	defer func(start time.Time) { l.observe("try_hold", start, err) }(time.Now())
	return l.next.TryHold(ctx, req)
}

func (l *instrumentedLedger) Confirm(ctx context.Context, itineraryID, seatLabel, token string) (h *reservation.Hold, err error) {
	defer func(start time.Time) { l.observe("confirm", start, err) }(time.Now())
	return l.next.Confirm(ctx, itineraryID, seatLabel, token)
}

func (l *instrumentedLedger) Release(ctx context.Context, itineraryID, seatLabel, token string) (err error) {
	defer func(start time.Time) { l.observe("release", start, err) }(time.Now())
	return l.next.Release(ctx, itineraryID, seatLabel, token)
}

func (l *instrumentedLedger) CancelSale(ctx context.Context, itineraryID, seatLabel, token string) (err error) {
	defer func(start time.Time) { l.observe("cancel_sale", start, err) }(time.Now())
	return l.next.CancelSale(ctx, itineraryID, seatLabel, token)
}

func (l *instrumentedLedger) RestoreSale(ctx context.Context, sale *reservation.Hold) (err error) {
	defer func(start time.Time) { l.observe("restore_sale", start, err) }(time.Now())
	return l.next.RestoreSale(ctx, sale)
}

func (l *instrumentedLedger) Lookup(ctx context.Context, token string) (h *reservation.Hold, err error) {
	defer func(start time.Time) { l.observe("lookup", start, err) }(time.Now())
	return l.next.Lookup(ctx, token)
}

func (l *instrumentedLedger) Snapshot(ctx context.Context, itineraryID string) (s map[string]seat.Status, err error) {
	defer func(start time.Time) { l.observe("snapshot", start, err) }(time.Now())
	return l.next.Snapshot(ctx, itineraryID)
}

func (l *instrumentedLedger) Occupancy(ctx context.Context, itineraryID string) (n int, err error) {
	defer func(start time.Time) { l.observe("occupancy", start, err) }(time.Now())
	return l.next.Occupancy(ctx, itineraryID)
}

func (l *instrumentedLedger) SweepExpired(ctx context.Context) (n int, err error) {
	defer func(start time.Time) { l.observe("sweep", start, err) }(time.Now())
	return l.next.SweepExpired(ctx)
}

// resultLabel はエラーをメトリクスのラベルに変換する
func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return string(reservation.Classify(err))
}
