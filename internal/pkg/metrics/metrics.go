package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
// メソッドは nil レシーバでも呼び出せる（メトリクス無効時）
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約操作の総数（operation: create/amend/cancel/reconcile, status: success/rejected/invalid/conflict/error）
	ReservationsTotal *prometheus.CounterVec

	// チャネルマネージャーへの送信時間（operation, status: ok/http_error/network_error）
	ChannelManagerRequestDuration *prometheus.HistogramVec

	// 在庫調整の総数（operation: decrement/increment/swap, result: success/not_found/insufficient/error）
	InventoryAdjustmentsTotal *prometheus.CounterVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec

	// 監査ログの書き込み失敗数（process）
	AuditAppendFailuresTotal *prometheus.CounterVec

	// 外部システムとの不整合（運用者への通知対象）の発生数（operation）
	InconsistenciesTotal *prometheus.CounterVec

	// 通知の送信失敗数（kind）
	NotificationFailuresTotal *prometheus.CounterVec

	// 確定待ちのまま残っている予約数
	PendingReservations prometheus.Gauge
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
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservations_total",
				Help: "Total number of reservation operations by outcome",
			},
			[]string{"operation", "status"},
		),
		ChannelManagerRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "channel_manager_request_duration_seconds",
				Help:    "Latency of requests sent to the channel manager",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
			},
			[]string{"operation", "status"},
		),
		InventoryAdjustmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_adjustments_total",
				Help: "Total number of inventory adjustments by result",
			},
			[]string{"operation", "result"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 10},
			},
			[]string{"operation", "status"},
		),
		AuditAppendFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservation_audit_append_failures_total",
				Help: "Total number of audit log entries that could not be written",
			},
			[]string{"process"},
		),
		InconsistenciesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservation_inconsistencies_total",
				Help: "Local state diverged from the channel manager and needs operator attention",
			},
			[]string{"operation"},
		),
		NotificationFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_failures_total",
				Help: "Total number of notifications that could not be published",
			},
			[]string{"kind"},
		),
		PendingReservations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pending_reservations",
				Help: "Number of stale pending reservations found by the last reconciliation",
			},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReservationsTotal,
		m.ChannelManagerRequestDuration,
		m.InventoryAdjustmentsTotal,
		m.DistributedLockDuration,
		m.AuditAppendFailuresTotal,
		m.InconsistenciesTotal,
		m.NotificationFailuresTotal,
		m.PendingReservations,
	)

	return m
}

// ObserveReservation は予約操作の結果を記録する
func (m *Metrics) ObserveReservation(operation, status string) {
	if m == nil {
		return
	}
	m.ReservationsTotal.WithLabelValues(operation, status).Inc()
}

// ObserveChannelManager はチャネルマネージャーへの送信時間を記録する
func (m *Metrics) ObserveChannelManager(operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ChannelManagerRequestDuration.WithLabelValues(operation, status).Observe(d.Seconds())
}

// ObserveInventory は在庫調整の結果を記録する
func (m *Metrics) ObserveInventory(operation, result string) {
	if m == nil {
		return
	}
	m.InventoryAdjustmentsTotal.WithLabelValues(operation, result).Inc()
}

// ObserveLock は分散ロックの操作時間を記録する
func (m *Metrics) ObserveLock(operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(d.Seconds())
}

// AuditAppendFailed は監査ログの書き込み失敗を記録する
func (m *Metrics) AuditAppendFailed(process string) {
	if m == nil {
		return
	}
	m.AuditAppendFailuresTotal.WithLabelValues(process).Inc()
}

// Inconsistency は外部システムとの不整合を記録する
func (m *Metrics) Inconsistency(operation string) {
	if m == nil {
		return
	}
	m.InconsistenciesTotal.WithLabelValues(operation).Inc()
}

// NotificationFailed は通知の送信失敗を記録する
func (m *Metrics) NotificationFailed(kind string) {
	if m == nil {
		return
	}
	m.NotificationFailuresTotal.WithLabelValues(kind).Inc()
}

// SetPending は確定待ちの予約数を記録する
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingReservations.Set(float64(n))
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
