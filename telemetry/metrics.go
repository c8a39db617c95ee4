// Package telemetry регистрирует метрики Prometheus клиента чата.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	LinesReceived       prometheus.Counter
	ParseErrors         *prometheus.CounterVec
	PongsSent           prometheus.Counter
	RoomstatesApplied   prometheus.Counter
	RoomstatesDropped   prometheus.Counter
	JoinThrottleWaits   prometheus.Counter
	Reconnects          prometheus.Counter
	JoinedChannels      prometheus.Gauge
	BatcherRowsInserted *prometheus.CounterVec
	BatcherRowsDropped  *prometheus.CounterVec
)

// Init регистрирует метрики (идемпотентно).
func Init() {
	once.Do(func() {
		LinesReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_irc_lines_received_total", Help: "IRC lines received from the transport"})
		ParseErrors = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_irc_parse_errors_total", Help: "Dropped lines that failed to decode"}, []string{"kind"})
		PongsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_irc_pongs_sent_total", Help: "PONG replies sent"})
		RoomstatesApplied = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_irc_roomstates_applied_total", Help: "ROOMSTATE records applied to the channel list"})
		RoomstatesDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_irc_roomstates_forward_dropped_total", Help: "ROOMSTATE records not forwarded because the subscriber queue was full"})
		JoinThrottleWaits = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_irc_join_throttle_waits_total", Help: "Times the join routine waited for the rate-limit window"})
		Reconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_irc_reconnects_total", Help: "Transport reconnections"})
		JoinedChannels = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_irc_joined_channels", Help: "Channels in the client channel list"})
		BatcherRowsInserted = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_storage_rows_inserted_total", Help: "Rows flushed to Postgres"}, []string{"table"})
		BatcherRowsDropped = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_storage_rows_dropped_total", Help: "Rows dropped because the batcher queue was full"}, []string{"table"})
	})
}

// Inc увеличивает счётчик, если метрики инициализированы.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// IncLabel увеличивает счётчик с меткой, если метрики инициализированы.
func IncLabel(v *prometheus.CounterVec, label string) {
	if v != nil {
		v.WithLabelValues(label).Inc()
	}
}

// AddLabel прибавляет n к счётчику с меткой.
func AddLabel(v *prometheus.CounterVec, label string, n int) {
	if v != nil {
		v.WithLabelValues(label).Add(float64(n))
	}
}

// SetJoinedChannels обновляет число каналов в реестре.
func SetJoinedChannels(n int) {
	if JoinedChannels != nil {
		JoinedChannels.Set(float64(n))
	}
}
