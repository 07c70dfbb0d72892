package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MediaScanned counts files the scanner has reconciled against the
	// catalog, broken out by outcome (new/changed/unchanged/deleted).
	MediaScanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gaze",
		Name:      "media_scanned_total",
		Help:      "Total number of media files reconciled by a library scan",
	}, []string{"outcome"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gaze",
		Name:      "inference_duration_seconds",
		Help:      "Duration of each indexing pipeline stage",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	PipelineStageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gaze",
		Name:      "pipeline_stage_failures_total",
		Help:      "Total number of stage failures by error taxonomy code",
	}, []string{"stage", "error_code"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gaze",
		Name:      "queue_depth",
		Help:      "Number of media items currently QUEUED for indexing",
	})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gaze",
		Name:      "active_jobs",
		Help:      "Number of indexing jobs currently admitted and running",
	})

	SchedulerTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gaze",
		Name:      "scheduler_ticks_total",
		Help:      "Total number of scheduler admission ticks, by whether an item was admitted",
	}, []string{"admitted"})

	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gaze",
		Name:      "search_duration_seconds",
		Help:      "Duration of a search query by branch (semantic, transcript, object, face, metadata)",
		Buckets:   prometheus.DefBuckets,
	}, []string{"branch"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gaze",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gaze",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
