package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 仮押さえの試行数（result: success か reservation.Class の値）
	HoldsTotal *prometheus.CounterVec

	// 購入の試行数（result は HoldsTotal と同じ）
	PurchasesTotal *prometheus.CounterVec

	// 座席台帳の操作時間（operation, status: success か reservation.Class の値）
	LedgerOperationDuration *prometheus.HistogramVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec

	// 掃除で回収した期限切れの仮押さえ数
	ExpiredHoldsReclaimed prometheus.Counter

	// チケット書き込みのリトライ数
	TicketWriteRetries prometheus.Counter

	// 記録待ちのチケット数
	PendingTicketReconciliations prometheus.Gauge
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HoldsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "holds_total",
				Help: "Total number of seat hold attempts",
			},
			[]string{"result"},
		),
		PurchasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purchases_total",
				Help: "Total number of purchase attempts",
			},
			[]string{"result"},
		),
		LedgerOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Time spent on seat ledger operations",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		ExpiredHoldsReclaimed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "expired_holds_reclaimed_total",
				Help: "Total number of expired holds reclaimed by the sweeper",
			},
		),
		TicketWriteRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ticket_write_retries_total",
				Help: "Total number of retried ticket store writes",
			},
		),
		PendingTicketReconciliations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pending_ticket_reconciliations",
				Help: "Sold seats whose ticket record has not been written yet",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HoldsTotal,
		m.PurchasesTotal,
		m.LedgerOperationDuration,
		m.DistributedLockDuration,
		m.ExpiredHoldsReclaimed,
		m.TicketWriteRetries,
		m.PendingTicketReconciliations,
	)

	return m
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
