// Package ledgertest は reservation.Ledger 実装に共通の振る舞いを検証する
package ledgertest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/reservation"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/seat"
)

// Clock はテスト用の進められる時計
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock は指定時刻から始まる Clock を作成する
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now は現在時刻を返す
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance は時計を進める
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Factory は時計を共有する新しい Ledger を作成する
type Factory func(t *testing.T, clock *Clock) reservation.Ledger

const (
	itineraryID = "itin-1"
	ttl         = 10 * time.Minute
)

func holdReq(label, holder, token string, capacity int) reservation.HoldRequest {
	return reservation.HoldRequest{
		ItineraryID: itineraryID,
		SeatLabel:   label,
		HolderID:    holder,
		Token:       token,
		TTL:         ttl,
		Capacity:    capacity,
	}
}

// Run は全ての共通テストを実行する
func Run(t *testing.T, newLedger Factory) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	setup := func(t *testing.T) (reservation.Ledger, *Clock) {
		clock := NewClock(start)
		return newLedger(t, clock), clock
	}
	ctx := context.Background()

	t.Run("同じ座席を同時に押さえられるのは1人だけ", func(t *testing.T) {
		l, _ := setup(t)
		const n = 32

		var wg sync.WaitGroup
		var success, unavailable atomic.Int32
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := l.TryHold(ctx, holdReq("1A", fmt.Sprintf("user-%d", i), fmt.Sprintf("tok-%d", i), 10))
				switch {
				case err == nil:
					success.Add(1)
				case assert.ErrorIs(t, err, reservation.ErrSeatUnavailable):
					unavailable.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), success.Load())
		assert.Equal(t, int32(n-1), unavailable.Load())
		occ, err := l.Occupancy(ctx, itineraryID)
		require.NoError(t, err)
		assert.Equal(t, 1, occ)
	})

	t.Run("同じトークンの再試行は同じ仮押さえを返す", func(t *testing.T) {
		l, clock := setup(t)

		first, err := l.TryHold(ctx, holdReq("1A", "alice", "tok-a", 10))
		require.NoError(t, err)
		clock.Advance(time.Minute)
		second, err := l.TryHold(ctx, holdReq("1A", "alice", "tok-a", 10))
		require.NoError(t, err)

		assert.Equal(t, seat.StatusHeld, second.Status)
		assert.True(t, first.ExpiresAt.Equal(second.ExpiresAt))
		occ, err := l.Occupancy(ctx, itineraryID)
		require.NoError(t, err)
		assert.Equal(t, 1, occ)
	})

	t.Run("有効なトークンを別の座席に使うとエラー", func(t *testing.T) {
		l, _ := setup(t)

		_, err := l.TryHold(ctx, holdReq("1A", "alice", "tok-a", 10))
		require.NoError(t, err)
		_, err = l.TryHold(ctx, holdReq("1B", "alice", "tok-a", 10))
		assert.ErrorIs(t, err, reservation.ErrTokenReused)
	})

	t.Run("確定の再試行は同じ販売結果を返す", func(t *testing.T) {
		l, clock := setup(t)

		_, err := l.TryHold(ctx, holdReq("1A", "alice", "tok-a", 10))
		require.NoError(t, err)
		first, err := l.Confirm(ctx, itineraryID, "1A", "tok-a")
		require.NoError(t, err)
		clock.Advance(time.Hour)
		second, err := l.Confirm(ctx, itineraryID, "1A", "tok-a")
		require.NoError(t, err)

		assert.Equal(t, seat.StatusSold, first.Status)
		assert.Equal(t, seat.StatusSold, second.Status)
		require.NotNil(t, second.SoldAt)
		assert.True(t, first.SoldAt.Equal(*second.SoldAt))

		snapshot, err := l.Snapshot(ctx, itineraryID)
		require.NoError(t, err)
		assert.Equal(t, map[string]seat.Status{"1A": seat.StatusSold}, snapshot)
	})

	t.Run("期限の直前は確定でき、期限以降は期限切れ", func(t *testing.T) {
		l, clock := setup(t)

		_, err := l.TryHold(ctx, holdReq("1A", "alice", "tok-a", 10))
		require.NoError(t, err)
		_, err = l.TryHold(ctx, holdReq("1B", "bob", "tok-b", 10))
		require.NoError(t, err)

		clock.Advance(ttl - time.Millisecond)
		sold, err := l.Confirm(ctx, itineraryID, "1A", "tok-a")
		require.NoError(t, err)
		assert.Equal(t, seat.StatusSold, sold.Status)

		clock.Advance(time.Millisecond)
		_, err = l.Confirm(ctx, itineraryID, "1B", "tok-b")
		assert.ErrorIs(t, err, reservation.ErrExpiredHold)

		_, err = l.Lookup(ctx, "tok-b")
		assert.ErrorIs(t, err, reservation.ErrExpiredHold)

		hold, err := l.TryHold(ctx, holdReq("1B", "carol", "tok-c", 10))
		require.NoError(t, err)
		assert.Equal(t, "carol", hold.HolderID)

		_, err = l.Confirm(ctx, itineraryID, "1B", "tok-b")
		assert.ErrorIs(t, err, reservation.ErrExpiredHold)
	})

	t.Run("期限切れの座席は回収前でも空席として見える", func(t *testing.T) {
		l, clock := setup(t)

		_, err := l.TryHold(ctx, holdReq("1A", "alice", "tok-a", 10))
		require.NoError(t, err)
		clock.Advance(ttl)

		snapshot, err := l.Snapshot(ctx, itineraryID)
		require.NoError(t, err)
		assert.Empty(t, snapshot)
	})

	t.Run("解放は冪等", func(t *testing.T) {
		l, _ := setup(t)

		_, err := l.TryHold(ctx, holdReq("1A", "alice", "tok-a", 10))
		require.NoError(t, err)
		require.NoError(t, l.Release(ctx, itineraryID, "1A", "tok-a"))
		require.NoError(t, l.Release(ctx, itineraryID, "1A", "tok-a"))
		require.NoError(t, l.Release(ctx, itineraryID, "9Z", "tok-x"))

		_, err = l.Lookup(ctx, "tok-a")
		assert.ErrorIs(t, err, reservation.ErrHoldNotFound)
		_, err = l.TryHold(ctx, holdReq("1A", "bob", "tok-b", 10))
		assert.NoError(t, err)
	})

	t.Run("他人のトークンでは解放されず、販売済みも解放されない", func(t *testing.T) {
		l, _ := setup(t)

		_, err := l.TryHold(ctx, holdReq("1A", "alice", "tok-a", 10))
		require.NoError(t, err)
		require.NoError(t, l.Release(ctx, itineraryID, "1A", "tok-other"))
		_, err = l.Confirm(ctx, itineraryID, "1A", "tok-a")
		require.NoError(t, err)
		require.NoError(t, l.Release(ctx, itineraryID, "1A", "tok-a"))

		snapshot, err := l.Snapshot(ctx, itineraryID)
		require.NoError(t, err)
		assert.Equal(t, seat.StatusSold, snapshot["1A"])
	})

	t.Run("確定のエラー分類", func(t *testing.T) {
		l, _ := setup(t)

		_, err := l.Confirm(ctx, itineraryID, "1A", "tok-a")
		assert.ErrorIs(t, err, reservation.ErrHoldNotFound)

		_, err = l.TryHold(ctx, holdReq("1A", "alice", "tok-a", 10))
		require.NoError(t, err)
		_, err = l.Confirm(ctx, itineraryID, "1A", "tok-b")
		assert.ErrorIs(t, err, reservation.ErrTokenMismatch)
	})

	t.Run("キャンセルで座席は FREE に戻る", func(t *testing.T) {
		l, _ := setup(t)

		_, err := l.TryHold(ctx, holdReq("1A", "alice", "tok-a", 10))
		require.NoError(t, err)
		assert.ErrorIs(t, l.CancelSale(ctx, itineraryID, "1A", "tok-a"), reservation.ErrNotSold)

		_, err = l.Confirm(ctx, itineraryID, "1A", "tok-a")
		require.NoError(t, err)
		assert.ErrorIs(t, l.CancelSale(ctx, itineraryID, "1A", "tok-other"), reservation.ErrNotSold)
		require.NoError(t, l.CancelSale(ctx, itineraryID, "1A", "tok-a"))

		snapshot, err := l.Snapshot(ctx, itineraryID)
		require.NoError(t, err)
		assert.Empty(t, snapshot)
		assert.ErrorIs(t, l.CancelSale(ctx, itineraryID, "1A", "tok-a"), reservation.ErrNotSold)

		_, err = l.TryHold(ctx, holdReq("1A", "bob", "tok-b", 10))
		assert.NoError(t, err)
	})

	t.Run("トークン指定なしのキャンセルは任意の販売を取り消す", func(t *testing.T) {
		l, _ := setup(t)

		_, err := l.TryHold(ctx, holdReq("1A", "alice", "tok-a", 10))
		require.NoError(t, err)
		_, err = l.Confirm(ctx, itineraryID, "1A", "tok-a")
		require.NoError(t, err)

		require.NoError(t, l.CancelSale(ctx, itineraryID, "1A", ""))
		occ, err := l.Occupancy(ctx, itineraryID)
		require.NoError(t, err)
		assert.Equal(t, 0, occ)
	})

	t.Run("占有数は容量を超えない", func(t *testing.T) {
		l, _ := setup(t)
		const capacity = 3
		labels := []string{"1A", "1B", "1C", "1D", "2A", "2B", "2C", "2D"}

		var wg sync.WaitGroup
		var success, exceeded atomic.Int32
		for i, label := range labels {
			wg.Add(1)
			go func(i int, label string) {
				defer wg.Done()
				_, err := l.TryHold(ctx, holdReq(label, fmt.Sprintf("user-%d", i), fmt.Sprintf("tok-%d", i), capacity))
				switch {
				case err == nil:
					success.Add(1)
				case assert.ErrorIs(t, err, reservation.ErrCapacityExceeded):
					exceeded.Add(1)
				}
			}(i, label)
		}
		wg.Wait()

		assert.Equal(t, int32(capacity), success.Load())
		assert.Equal(t, int32(len(labels)-capacity), exceeded.Load())
		occ, err := l.Occupancy(ctx, itineraryID)
		require.NoError(t, err)
		assert.Equal(t, capacity, occ)
	})

	t.Run("期限切れの仮押さえは容量を占めない", func(t *testing.T) {
		l, clock := setup(t)

		_, err := l.TryHold(ctx, holdReq("1A", "alice", "tok-a", 1))
		require.NoError(t, err)
		_, err = l.TryHold(ctx, holdReq("1B", "bob", "tok-b", 1))
		assert.ErrorIs(t, err, reservation.ErrCapacityExceeded)

		clock.Advance(ttl)
		_, err = l.TryHold(ctx, holdReq("1B", "bob", "tok-b", 1))
		assert.NoError(t, err)
	})

	t.Run("2人の旅行者が隣り合う座席を購入する", func(t *testing.T) {
		l, _ := setup(t)

		_, err := l.TryHold(ctx, holdReq("1A", "A", "tA", 4))
		require.NoError(t, err)
		_, err = l.TryHold(ctx, holdReq("1A", "B", "tB", 4))
		assert.ErrorIs(t, err, reservation.ErrSeatUnavailable)
		_, err = l.TryHold(ctx, holdReq("1B", "B", "tB", 4))
		require.NoError(t, err)

		_, err = l.Confirm(ctx, itineraryID, "1A", "tA")
		require.NoError(t, err)
		_, err = l.Confirm(ctx, itineraryID, "1B", "tB")
		require.NoError(t, err)

		snapshot, err := l.Snapshot(ctx, itineraryID)
		require.NoError(t, err)
		assert.Equal(t, map[string]seat.Status{"1A": seat.StatusSold, "1B": seat.StatusSold}, snapshot)
	})

	t.Run("トークンから仮押さえを引ける", func(t *testing.T) {
		l, _ := setup(t)

		_, err := l.Lookup(ctx, "tok-a")
		assert.ErrorIs(t, err, reservation.ErrHoldNotFound)

		_, err = l.TryHold(ctx, holdReq("2C", "alice", "tok-a", 10))
		require.NoError(t, err)
		hold, err := l.Lookup(ctx, "tok-a")
		require.NoError(t, err)
		assert.Equal(t, itineraryID, hold.ItineraryID)
		assert.Equal(t, "2C", hold.SeatLabel)
		assert.Equal(t, "alice", hold.HolderID)
		assert.Equal(t, seat.StatusHeld, hold.Status)
	})

	t.Run("掃除で期限切れを回収し、古いトークンを忘れる", func(t *testing.T) {
		l, clock := setup(t)

		for i, label := range []string{"1A", "1B", "1C"} {
			_, err := l.TryHold(ctx, holdReq(label, "alice", fmt.Sprintf("tok-%d", i), 10))
			require.NoError(t, err)
		}
		_, err := l.Confirm(ctx, itineraryID, "1A", "tok-0")
		require.NoError(t, err)

		clock.Advance(ttl)
		n, err := l.SweepExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = l.SweepExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		_, err = l.Lookup(ctx, "tok-1")
		assert.ErrorIs(t, err, reservation.ErrExpiredHold)

		clock.Advance(2 * time.Hour)
		_, err = l.SweepExpired(ctx)
		require.NoError(t, err)
		_, err = l.Lookup(ctx, "tok-1")
		assert.ErrorIs(t, err, reservation.ErrHoldNotFound)

		sold, err := l.Lookup(ctx, "tok-0")
		require.NoError(t, err)
		assert.Equal(t, seat.StatusSold, sold.Status)
	})

	t.Run("期限切れのトークンは再利用できる", func(t *testing.T) {
		l, clock := setup(t)

		_, err := l.TryHold(ctx, holdReq("1A", "alice", "tok-a", 10))
		require.NoError(t, err)
		clock.Advance(ttl)

		hold, err := l.TryHold(ctx, holdReq("1B", "alice", "tok-a", 10))
		require.NoError(t, err)
		assert.Equal(t, "1B", hold.SeatLabel)

		looked, err := l.Lookup(ctx, "tok-a")
		require.NoError(t, err)
		assert.Equal(t, "1B", looked.SeatLabel)
	})

	t.Run("販売記録を書き戻せる", func(t *testing.T) {
		l, clock := setup(t)
		sale := &reservation.Hold{ItineraryID: itineraryID, SeatLabel: "1A", HolderID: "alice", Token: "tok-a", CreatedAt: clock.Now()}

		require.NoError(t, l.RestoreSale(ctx, sale))
		require.NoError(t, l.RestoreSale(ctx, sale))

		snapshot, err := l.Snapshot(ctx, itineraryID)
		require.NoError(t, err)
		assert.Equal(t, map[string]seat.Status{"1A": seat.StatusSold}, snapshot)
		looked, err := l.Lookup(ctx, "tok-a")
		require.NoError(t, err)
		assert.True(t, looked.IsSold())

		_, err = l.TryHold(ctx, holdReq("1A", "bob", "tok-b", 10))
		assert.ErrorIs(t, err, reservation.ErrSeatUnavailable)
		other := &reservation.Hold{ItineraryID: itineraryID, SeatLabel: "1A", HolderID: "bob", Token: "tok-b", CreatedAt: clock.Now()}
		assert.ErrorIs(t, l.RestoreSale(ctx, other), reservation.ErrAlreadySold)

		require.NoError(t, l.CancelSale(ctx, itineraryID, "1A", "tok-a"))
		occ, err := l.Occupancy(ctx, itineraryID)
		require.NoError(t, err)
		assert.Equal(t, 0, occ)
	})

	t.Run("書き戻しは同じ座席の仮押さえを置き換える", func(t *testing.T) {
		l, clock := setup(t)

		_, err := l.TryHold(ctx, holdReq("1A", "bob", "tok-b", 10))
		require.NoError(t, err)
		sale := &reservation.Hold{ItineraryID: itineraryID, SeatLabel: "1A", HolderID: "alice", Token: "tok-a", CreatedAt: clock.Now()}
		require.NoError(t, l.RestoreSale(ctx, sale))

		_, err = l.Lookup(ctx, "tok-b")
		assert.ErrorIs(t, err, reservation.ErrHoldNotFound)
		_, err = l.Confirm(ctx, itineraryID, "1A", "tok-b")
		assert.Error(t, err)
		occ, err := l.Occupancy(ctx, itineraryID)
		require.NoError(t, err)
		assert.Equal(t, 1, occ)
	})

	t.Run("不正な要求は拒否する", func(t *testing.T) {
		l, _ := setup(t)

		_, err := l.TryHold(ctx, holdReq("1A", "alice", "", 10))
		assert.ErrorIs(t, err, reservation.ErrIdempotencyTokenRequired)
		_, err = l.TryHold(ctx, holdReq("", "alice", "tok", 10))
		assert.ErrorIs(t, err, seat.ErrSeatLabelRequired)
	})
}
