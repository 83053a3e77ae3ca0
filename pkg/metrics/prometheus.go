// Package metrics provides Prometheus metrics for episode building and matcher evaluation.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every metric the tool records.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Episode construction
	episodesBuilt       prometheus.Counter
	pairsSkipped        *prometheus.CounterVec
	distractorShortfall prometheus.Counter
	distractorsSampled  prometheus.Histogram
	peersIndexed        prometheus.Gauge
	imagesIndexed       prometheus.Gauge
	buildDuration       prometheus.Histogram

	// Dataset persistence
	datasetWrites prometheus.Counter
	datasetReads  prometheus.Counter

	// Matcher evaluation
	pairsMatched     *prometheus.CounterVec
	matchLatency     *prometheus.HistogramVec
	matcherErrors    *prometheus.CounterVec
	averagePrecision *prometheus.GaugeVec
	maxRecall        *prometheus.GaugeVec

	// Queue and workers
	queueCapacity prometheus.Gauge
	queueSize     prometheus.Gauge
	queueRejected prometheus.Counter
	workerCount   prometheus.Gauge

	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "kidnapped",
		subsystem:        "bench",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of metric definitions
	auto := promauto.With(m.registry)

	m.episodesBuilt = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "episodes_built_total",
		Help:      "Total number of kidnapped-robot episodes produced by the sampler",
	})

	m.pairsSkipped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pairs_skipped_total",
		Help:      "Labeled pairs not turned into episodes, by reason",
	}, []string{"reason"})

	m.distractorShortfall = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "distractor_shortfall_total",
		Help:      "Episodes that received fewer distractor peers than requested",
	})

	m.distractorsSampled = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "distractors_per_episode",
		Help:      "Number of distractor peer views per episode",
		Buckets:   prometheus.LinearBuckets(0, 1, 16),
	})

	m.peersIndexed = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "peers_indexed",
		Help:      "Number of distinct peers in the last built peer index",
	})

	m.imagesIndexed = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "images_indexed",
		Help:      "Number of image paths in the last built peer index",
	})

	m.buildDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "build_duration_seconds",
		Help:      "Wall time of a full dataset build",
		Buckets:   m.histogramBuckets,
	})

	m.datasetWrites = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dataset_writes_total",
		Help:      "Episode dataset documents written",
	})

	m.datasetReads = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dataset_reads_total",
		Help:      "Episode dataset documents loaded",
	})

	m.pairsMatched = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pairs_matched_total",
		Help:      "Image pairs scored, by matcher",
	}, []string{"matcher"})

	m.matchLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_latency_milliseconds",
		Help:      "Latency of one matcher call in milliseconds",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"matcher"})

	m.matcherErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matcher_errors_total",
		Help:      "Matcher calls that failed, by matcher",
	}, []string{"matcher"})

	m.averagePrecision = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "average_precision",
		Help:      "Average precision of the last evaluation, by sequence and matcher",
	}, []string{"sequence", "matcher"})

	m.maxRecall = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "max_recall_at_full_precision",
		Help:      "Maximum recall at precision 1.0 of the last evaluation, by sequence and matcher",
	}, []string{"sequence", "matcher"})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Capacity of the pair job queue",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current number of pair jobs waiting",
	})

	m.queueRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_rejected_total",
		Help:      "Pair jobs rejected because the queue was full or closed",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Number of matcher workers in the running pool",
	})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_total",
		Help:      "Errors by component and type",
	}, []string{"component", "error_type"})
}

// RecordEpisodeBuilt records one produced episode and its distractor count.
func RecordEpisodeBuilt(distractors int) {
	globalManager.episodesBuilt.Inc()
	globalManager.distractorsSampled.Observe(float64(distractors))
}

// RecordPairSkipped increments the skipped pairs counter for reason.
func RecordPairSkipped(reason string) {
	globalManager.pairsSkipped.WithLabelValues(reason).Inc()
}

// RecordDistractorShortfall counts an episode with fewer distractors than requested.
func RecordDistractorShortfall() {
	globalManager.distractorShortfall.Inc()
}

// UpdatePeerIndex sets the peer and image counts of the current index.
func UpdatePeerIndex(peers, images int) {
	globalManager.peersIndexed.Set(float64(peers))
	globalManager.imagesIndexed.Set(float64(images))
}

// RecordBuildDuration records a full build duration in seconds.
func RecordBuildDuration(seconds float64) {
	globalManager.buildDuration.Observe(seconds)
}

// RecordDatasetWrite increments the dataset writes counter.
func RecordDatasetWrite() {
	globalManager.datasetWrites.Inc()
}

// RecordDatasetRead increments the dataset reads counter.
func RecordDatasetRead() {
	globalManager.datasetReads.Inc()
}

// RecordPairMatched records a matcher call and its latency in milliseconds.
func RecordPairMatched(matcher string, latencyMs float64) {
	globalManager.pairsMatched.WithLabelValues(matcher).Inc()
	globalManager.matchLatency.WithLabelValues(matcher).Observe(latencyMs)
}

// RecordMatcherError increments the error counter for matcher.
func RecordMatcherError(matcher string) {
	globalManager.matcherErrors.WithLabelValues(matcher).Inc()
}

// UpdateEvaluation sets the ranking metrics of the last evaluation.
func UpdateEvaluation(sequence, matcher string, ap, maxRecall float64) {
	globalManager.averagePrecision.WithLabelValues(sequence, matcher).Set(ap)
	globalManager.maxRecall.WithLabelValues(sequence, matcher).Set(maxRecall)
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// RecordQueueRejected increments the rejected jobs counter.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the registry in the node exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, GetRegistry()); err != nil {
		return fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	return nil
}
