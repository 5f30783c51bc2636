package application

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/reservation"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/infrastructure/ledgertest"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/infrastructure/memory"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/pkg/metrics"
)

// 計測を挟んでも台帳の振る舞いは変わらない
func TestInstrumentLedger_Contract(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T, clock *ledgertest.Clock) reservation.Ledger {
		m := metrics.NewWithRegistry(prometheus.NewRegistry())
		return InstrumentLedger(memory.NewLedger(memory.WithClock(clock.Now)), m)
	})
}

func TestInstrumentLedger(t *testing.T) {
	t.Run("メトリクスが無ければそのまま返す", func(t *testing.T) {
		l := memory.NewLedger()
		assert.Same(t, l, InstrumentLedger(l, nil))
	})

	t.Run("操作ごとに結果が記録される", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := metrics.NewWithRegistry(reg)
		l := InstrumentLedger(memory.NewLedger(), m)
		ctx := context.Background()
		req := reservation.HoldRequest{ItineraryID: "itin-1", SeatLabel: "1A", HolderID: "u1", Token: "t1", TTL: time.Minute, Capacity: 2}

		_, err := l.TryHold(ctx, req)
		require.NoError(t, err)
		req.HolderID, req.Token = "u2", "t2"
		_, err = l.TryHold(ctx, req)
		require.ErrorIs(t, err, reservation.ErrSeatUnavailable)

		assert.Equal(t, 2, testutil.CollectAndCount(m.LedgerOperationDuration, "ledger_operation_duration_seconds"))
		count, err := testutil.GatherAndCount(reg, "ledger_operation_duration_seconds")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}
