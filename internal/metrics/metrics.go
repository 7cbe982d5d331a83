// Package metrics exposes the bot's Prometheus counters, served at /metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_submitted_total",
			Help: "Market orders submitted",
		},
		[]string{"side"},
	)

	OrdersFilled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_orders_filled_total",
			Help: "Orders driven to a complete fill",
		},
	)

	FillTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_fill_timeouts_total",
			Help: "Fill waits that timed out and cancelled the order",
		},
	)

	CancelTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_cancel_timeouts_total",
			Help: "Cancellation waits that left orders open",
		},
	)

	ConfirmTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_confirm_timeouts_total",
			Help: "Position confirmations that timed out",
		},
	)

	FillsRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_fills_total",
			Help: "Distinct executions recorded (after de-duplication)",
		},
	)

	SnapshotFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_snapshot_failures_total",
			Help: "Position snapshot writes that failed",
		},
	)

	LastClose = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_last_close",
			Help: "Last daily close observed by the exit check",
		},
	)

	MovingAverage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_moving_average",
			Help: "Trailing moving average observed by the exit check",
		},
	)
)

func init() {
	prometheus.MustRegister(
		OrdersSubmitted,
		OrdersFilled,
		FillTimeouts,
		CancelTimeouts,
		ConfirmTimeouts,
		FillsRecorded,
		SnapshotFailures,
		LastClose,
		MovingAverage,
	)
}

// Serve runs the /metrics endpoint until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
