package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_storage_uploads_total",
		Help: "Object storage uploads by field and result",
	}, []string{"field", "result"})

	uploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_storage_upload_duration_seconds",
		Help:    "Duration of object storage uploads",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	storageDeletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_storage_deletes_total",
		Help: "Object storage deletes by result",
	}, []string{"result"})

	reminderRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_reminder_runs_total",
		Help: "Reminder dispatcher runs by trigger and result",
	}, []string{"trigger", "result"})

	reminderRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crm_reminder_run_duration_seconds",
		Help:    "Duration of reminder dispatcher runs",
		Buckets: prometheus.DefBuckets,
	})

	pushDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_push_deliveries_total",
		Help: "Web push deliveries by result",
	}, []string{"result"})

	employeesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_employees_created_total",
		Help: "Employees created",
	})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_circuit_breaker_transitions_total",
		Help: "Circuit breaker state transitions",
	}, []string{"name", "to"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveUpload records one attachment upload.
func ObserveUpload(field, result string, duration time.Duration) {
	uploadsTotal.WithLabelValues(field, result).Inc()
	uploadDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveStorageDelete records one object delete.
func ObserveStorageDelete(result string) {
	storageDeletes.WithLabelValues(result).Inc()
}

// ObserveReminderRun records a dispatcher run. trigger is "schedule" or "manual".
func ObserveReminderRun(trigger, result string, duration time.Duration) {
	reminderRuns.WithLabelValues(trigger, result).Inc()
	reminderRunDuration.Observe(duration.Seconds())
}

// ObservePushDelivery records one push attempt: sent, gone or failed.
func ObservePushDelivery(result string) {
	pushDeliveries.WithLabelValues(result).Inc()
}

// ObserveEmployeeCreated increments the created employees counter.
func ObserveEmployeeCreated() {
	employeesCreated.Inc()
}

// ObserveBreakerTransition records a circuit breaker moving to a new state.
func ObserveBreakerTransition(name, to string) {
	breakerTransitions.WithLabelValues(name, to).Inc()
}
