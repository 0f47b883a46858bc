package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics структура для метрик Prometheus
type Metrics struct {
	UpdatesTotal         prometheus.Counter
	CommandsProcessed    *prometheus.CounterVec
	ErrorsTotal          prometheus.Counter
	UpdateProcessingTime prometheus.Histogram
	EventsRelayed        *prometheus.CounterVec
}

// NewMetrics создает метрики бота в reg (глобальный реестр, если nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		UpdatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "devlend_bot_updates_total",
			Help: "Telegram updates received from known and unknown chats",
		}),

		CommandsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "devlend_bot_commands_total",
			Help: "Admin commands and button presses by name and outcome",
		}, []string{"command", "outcome"}),

		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "devlend_bot_errors_total",
			Help: "Panics recovered while handling updates",
		}),

		UpdateProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "devlend_bot_update_processing_time_seconds",
			Help:    "Time spent processing updates",
			Buckets: prometheus.DefBuckets,
		}),

		EventsRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "devlend_bot_events_relayed_total",
			Help: "Booking events relayed to admin chats by type and outcome",
		}, []string{"event", "outcome"}),
	}
}

func (m *Metrics) command(name string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.CommandsProcessed.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) relayed(event string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EventsRelayed.WithLabelValues(event, outcome).Inc()
}
