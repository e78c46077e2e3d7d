package taskmanager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitale_background_tasks_submitted_total",
		Help: "Total number of background tasks accepted.",
	})
	tasksRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitale_background_tasks_rejected_total",
		Help: "Total number of background tasks rejected because of capacity.",
	})
	tasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aitale_background_tasks_finished_total",
		Help: "Total number of finished background tasks by final status.",
	}, []string{"status"})
	activeTasksGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aitale_background_tasks_active",
		Help: "Number of currently running background tasks.",
	})
	taskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aitale_background_task_duration_seconds",
		Help:    "Duration of background tasks.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)
