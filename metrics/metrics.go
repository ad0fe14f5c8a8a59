// Package metrics provides Prometheus metrics for the execution core
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}

var (
	// CommandsTotal 引擎收到的命令数（按类型）
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exec_commands_total",
		Help: "Commands received by the execution engine",
	}, []string{"type"})

	// EventsTotal 引擎收到的事件数（按类型；含被丢弃的）
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exec_events_total",
		Help: "Events received by the execution engine, including dropped ones",
	}, []string{"type"})

	// EventsDropped 因引用缺失等原因被丢弃的事件数
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exec_events_dropped_total",
		Help: "Events dropped due to missing references or account mismatch",
	}, []string{"reason"})

	// FillsTotal 成交回报数（按标的）
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exec_fills_total",
		Help: "Order fill events applied",
	}, []string{"symbol"})

	// WorkingOrders 当前挂单数
	WorkingOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "exec_working_orders",
		Help: "Orders currently working at the venue",
	})

	// OpenPositions 当前未平仓位数
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "exec_open_positions",
		Help: "Positions currently open",
	})

	// ActiveTimers 活动定时器数
	ActiveTimers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "exec_active_timers",
		Help: "Active clock timers and alerts",
	})
)
