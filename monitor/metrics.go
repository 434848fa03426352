package monitor

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	batchesTotal    *prometheus.CounterVec
	rowsTotal       *prometheus.CounterVec
	batchDuration   *prometheus.HistogramVec
	reconcileTotal  *prometheus.CounterVec
	lockConflicts   prometheus.Counter
	statusRefreshed *prometheus.CounterVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		batchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrc",
			Subsystem: "import",
			Name:      "batches_total",
			Help:      "Import batches by final status.",
		}, []string{"status", "subject"}),
		rowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrc",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Imported rows by sheet kind and outcome.",
		}, []string{"kind", "outcome"}),
		batchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hrc",
			Subsystem: "import",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of import batches.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"status"}),
		reconcileTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrc",
			Subsystem: "import",
			Name:      "reconcile_actions_total",
			Help:      "Entities deactivated or deleted by replace-mode imports.",
		}, []string{"kind", "action"}),
		lockConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "hrc",
			Subsystem: "import",
			Name:      "lock_conflicts_total",
			Help:      "Imports rejected because another import held the dataset lock.",
		}),
		statusRefreshed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrc",
			Subsystem: "certificates",
			Name:      "status_refreshed_total",
			Help:      "Certificate records whose derived status changed during a refresh.",
		}, []string{"status"}),
	}
})

func ObserveBatch(status, subject string, seconds float64) {
	m := metricsSingleton()
	m.batchesTotal.WithLabelValues(status, subject).Inc()
	m.batchDuration.WithLabelValues(status).Observe(seconds)
}

func AddRows(kind, outcome string, n int) {
	if n <= 0 {
		return
	}
	metricsSingleton().rowsTotal.WithLabelValues(kind, outcome).Add(float64(n))
}

func AddReconcileAction(kind, action string) {
	metricsSingleton().reconcileTotal.WithLabelValues(kind, action).Inc()
}

func IncLockConflict() {
	metricsSingleton().lockConflicts.Inc()
}

func AddStatusRefreshed(status string, n int) {
	if n <= 0 {
		return
	}
	metricsSingleton().statusRefreshed.WithLabelValues(status).Add(float64(n))
}

// RegisterMetrics exposes the default registry on /metrics.
func RegisterMetrics(router gin.IRouter) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
