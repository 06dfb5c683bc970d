package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snapmatch",
		Name:      "photos_processed_total",
		Help:      "Total number of photos processed, by final status",
	}, []string{"status"})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "snapmatch",
		Name:      "faces_detected_total",
		Help:      "Total number of face detections persisted",
	})

	BibsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "snapmatch",
		Name:      "bibs_detected_total",
		Help:      "Total number of bib detections persisted",
	})

	ClustersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "snapmatch",
		Name:      "clusters_created_total",
		Help:      "Total number of person clusters seeded",
	})

	AssignDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "snapmatch",
		Name:      "assign_duration_seconds",
		Help:      "Duration of single-face cluster assignment",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	ReclusterDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "snapmatch",
		Name:      "recluster_duration_seconds",
		Help:      "Duration of full event re-clustering",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "snapmatch",
		Name:      "search_duration_seconds",
		Help:      "Duration of cluster search, by path",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "snapmatch",
		Name:      "queue_depth",
		Help:      "Number of pending photo tasks in queue",
	})
)
