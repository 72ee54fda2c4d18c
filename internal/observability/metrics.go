package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Write task results recorded against the writer queue metrics.
const (
	WriteResultExecuted  = "executed"
	WriteResultFailed    = "failed"
	WriteResultRejected  = "rejected"
	WriteResultAbandoned = "abandoned"
)

// Updater lifecycle phases recorded against the supervisor metrics.
const (
	PhaseSetup    = "setup"
	PhaseRun      = "run"
	PhaseTeardown = "teardown"
)

var (
	registerOnce sync.Once

	writeTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphupdater",
			Subsystem: "writer",
			Name:      "tasks_total",
			Help:      "Write tasks by terminal result.",
		},
		[]string{"router", "result"},
	)
	writeTaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "graphupdater",
			Subsystem: "writer",
			Name:      "task_duration_seconds",
			Help:      "Write task execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"router"},
	)
	updaterEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphupdater",
			Subsystem: "updaters",
			Name:      "lifecycle_events_total",
			Help:      "Updater lifecycle phase outcomes.",
		},
		[]string{"router", "phase", "success"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphupdater",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"router", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "graphupdater",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"router", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(writeTasks, writeTaskDuration, updaterEvents, httpRequests, httpDuration)
	})
}

func RecordWriteTask(router, result string, duration time.Duration) {
	RegisterMetrics()
	writeTasks.WithLabelValues(router, result).Inc()
	writeTaskDuration.WithLabelValues(router).Observe(duration.Seconds())
}

// RecordWriteRejection counts submissions refused outright; no duration
// is observed because the task never ran.
func RecordWriteRejection(router, result string) {
	RegisterMetrics()
	writeTasks.WithLabelValues(router, result).Inc()
}

func RecordUpdaterEvent(router, phase string, success bool) {
	RegisterMetrics()
	updaterEvents.WithLabelValues(router, phase, strconv.FormatBool(success)).Inc()
}

func RecordHTTPRequest(router, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(router, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(router, method, path, statusLabel).Observe(duration.Seconds())
}
