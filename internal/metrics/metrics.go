package metrics

import (
	"sync"

	"devlend/internal/events"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "devlend"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_events_total",
			Help:      "Booking lifecycle events by type.",
		},
		[]string{"event"},
	)

	admissionOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_outcomes_total",
			Help:      "Availability checks and approvals by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	notificationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be stored.",
		},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_sync_tasks_total",
			Help:      "Spreadsheet sync tasks by final status.",
		},
		[]string{"status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingEvents, admissionOutcomes, notificationFailures, syncTasks)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncAdmission records an availability or approval outcome.
func IncAdmission(operation, outcome string) {
	admissionOutcomes.WithLabelValues(operation, outcome).Inc()
}

func IncNotificationFailure() {
	notificationFailures.Inc()
}

func IncSyncTask(status string) {
	syncTasks.WithLabelValues(status).Inc()
}

// SubscribeBookingEvents counts every booking event published on bus.
func SubscribeBookingEvents(bus *events.EventBus) {
	for _, eventType := range events.BookingEvents {
		bus.Subscribe(eventType, func(e *events.Event) error {
			bookingEvents.WithLabelValues(e.Type).Inc()
			return nil
		})
	}
}
