package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics 单次运行的指标，运行结束时写出 textfile
type PrometheusMetrics struct {
	registry *prometheus.Registry

	proofRuns        *prometheus.CounterVec
	exchangeRequests *prometheus.CounterVec
	exchangeRetries  *prometheus.CounterVec
	lockAcquire      *prometheus.CounterVec

	proofScore         prometheus.Gauge
	differentialPoints prometheus.Gauge
	transactions       prometheus.Gauge
	lastRunTimestamp   prometheus.Gauge

	runDuration      prometheus.Histogram
	lockWaitDuration prometheus.Histogram
}

// NewPrometheusMetrics 创建独立 registry 上的指标
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,

		// 运行指标
		proofRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finproof_proof_runs_total",
				Help: "Total number of proof runs by contribution kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		// 交易所指标
		exchangeRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finproof_exchange_requests_total",
				Help: "Exchange API requests by final result",
			},
			[]string{"exchange", "result"},
		),
		exchangeRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finproof_exchange_retries_total",
				Help: "Exchange API request retries",
			},
			[]string{"exchange"},
		),

		// 分布式锁指标
		lockAcquire: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finproof_lock_acquire_total",
				Help: "Identity lock acquisitions by status",
			},
			[]string{"status"},
		),
		lockWaitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "finproof_lock_wait_seconds",
				Help:    "Time spent waiting for the identity lock",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
			},
		),

		// 评分指标
		proofScore: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "finproof_proof_score",
				Help: "Score of the last emitted attestation",
			},
		),
		differentialPoints: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "finproof_differential_points",
				Help: "Differential points awarded in the last run",
			},
		),
		transactions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "finproof_transactions",
				Help: "Transactions in the verified snapshot",
			},
		),
		lastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "finproof_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
		),

		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "finproof_run_duration_seconds",
				Help:    "Proof run duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),
	}
}

// Registry 底层 registry（测试用）
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// ObserveRequest 记录交易所请求结果
func (pm *PrometheusMetrics) ObserveRequest(exchange, result string) {
	pm.exchangeRequests.WithLabelValues(exchange, result).Inc()
}

// ObserveRetry 记录交易所请求重试
func (pm *PrometheusMetrics) ObserveRetry(exchange string) {
	pm.exchangeRetries.WithLabelValues(exchange).Inc()
}

// RecordRun 记录一次运行的结果
func (pm *PrometheusMetrics) RecordRun(kind, outcome string, duration time.Duration) {
	pm.proofRuns.WithLabelValues(kind, outcome).Inc()
	pm.runDuration.Observe(duration.Seconds())
	pm.lastRunTimestamp.SetToCurrentTime()
}

// RecordProof 记录证明内容
func (pm *PrometheusMetrics) RecordProof(score float64, differentialPoints, transactions int) {
	pm.proofScore.Set(score)
	pm.differentialPoints.Set(float64(differentialPoints))
	pm.transactions.Set(float64(transactions))
}

// RecordLockAcquire 记录锁获取
func (pm *PrometheusMetrics) RecordLockAcquire(status string, wait time.Duration) {
	pm.lockAcquire.WithLabelValues(status).Inc()
	pm.lockWaitDuration.Observe(wait.Seconds())
}

// WriteTextfile 写出 node_exporter textfile 格式
func (pm *PrometheusMetrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	return prometheus.WriteToTextfile(path, pm.registry)
}
