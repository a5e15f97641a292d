package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the call monitoring service
type Metrics struct {
	// Call lifecycle metrics
	ActiveCalls  prometheus.Gauge
	CallsStarted prometheus.Counter
	CallsEnded   prometheus.Counter
	CallDuration prometheus.Histogram

	// Media and risk metrics
	MediaFramesReceived    prometheus.Counter
	UpdatesProcessed       prometheus.Counter
	ClassificationFailures prometheus.Counter
	AlertsFired            prometheus.Counter
	RiskScore              prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// Event hub metrics
	HubSubscribers  prometheus.Gauge
	EventsPublished *prometheus.CounterVec
	EventsDropped   prometheus.Counter

	// Archival metrics
	ArchiveUploads  prometheus.Counter
	ArchiveFailures prometheus.Counter
	ArchiveDuration prometheus.Histogram
	ArchiveSize     prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Call lifecycle metrics
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "scamshield_active_calls",
			Help: "Current number of active monitored calls",
		}),
		CallsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scamshield_calls_started_total",
			Help: "Total number of calls started",
		}),
		CallsEnded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scamshield_calls_ended_total",
			Help: "Total number of calls ended",
		}),
		CallDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scamshield_call_duration_seconds",
			Help:    "Duration of monitored calls in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),

		// Media and risk metrics
		MediaFramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scamshield_media_frames_received_total",
			Help: "Total number of media frames received",
		}),
		UpdatesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scamshield_updates_processed_total",
			Help: "Total number of risk updates processed",
		}),
		ClassificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scamshield_classification_failures_total",
			Help: "Total number of failed risk classifications",
		}),
		AlertsFired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scamshield_alerts_fired_total",
			Help: "Total number of high-risk alerts fired",
		}),
		RiskScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scamshield_risk_score",
			Help:    "Risk scores produced by the classifier",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		}),

		// Transcription metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scamshield_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scamshield_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scamshield_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scamshield_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// Event hub metrics
		HubSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "scamshield_hub_subscribers",
			Help: "Current number of event hub subscribers",
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scamshield_events_published_total",
			Help: "Total number of events published to the hub",
		}, []string{"kind"}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scamshield_events_dropped_total",
			Help: "Total number of events dropped from slow subscriber queues",
		}),

		// Archival metrics
		ArchiveUploads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scamshield_archive_uploads_total",
			Help: "Total number of recordings uploaded",
		}),
		ArchiveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scamshield_archive_failures_total",
			Help: "Total number of failed recording uploads",
		}),
		ArchiveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scamshield_archive_duration_seconds",
			Help:    "Duration of recording archival",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		ArchiveSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scamshield_archive_size_bytes",
			Help:    "Size of archived recordings in bytes",
			Buckets: prometheus.ExponentialBuckets(16384, 2, 12), // 16KB to ~64MB
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scamshield_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scamshield_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scamshield_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// SetActiveCalls sets the current number of active calls
func (m *Metrics) SetActiveCalls(count int) {
	m.ActiveCalls.Set(float64(count))
}

// RecordCallStarted increments the calls started counter
func (m *Metrics) RecordCallStarted() {
	m.CallsStarted.Inc()
}

// RecordCallEnded increments the calls ended counter and records duration
func (m *Metrics) RecordCallEnded(durationSeconds float64) {
	m.CallsEnded.Inc()
	m.CallDuration.Observe(durationSeconds)
}

// RecordMediaFrame increments the media frames received counter
func (m *Metrics) RecordMediaFrame() {
	m.MediaFramesReceived.Inc()
}

// RecordUpdateProcessed records a processed risk update and its score
func (m *Metrics) RecordUpdateProcessed(score float64) {
	m.UpdatesProcessed.Inc()
	m.RiskScore.Observe(score)
}

// RecordClassificationFailure increments the classification failures counter
func (m *Metrics) RecordClassificationFailure() {
	m.ClassificationFailures.Inc()
}

// RecordAlertFired increments the alerts fired counter
func (m *Metrics) RecordAlertFired() {
	m.AlertsFired.Inc()
}

// RecordTranscriptionRequest increments transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// SetSubscribers sets the current number of hub subscribers
func (m *Metrics) SetSubscribers(count int) {
	m.HubSubscribers.Set(float64(count))
}

// RecordEventPublished records a published event by kind
func (m *Metrics) RecordEventPublished(kind string) {
	m.EventsPublished.WithLabelValues(kind).Inc()
}

// RecordEventDropped increments the dropped events counter
func (m *Metrics) RecordEventDropped() {
	m.EventsDropped.Inc()
}

// RecordArchiveUpload records a successful recording upload
func (m *Metrics) RecordArchiveUpload(durationSeconds float64, sizeBytes int) {
	m.ArchiveUploads.Inc()
	m.ArchiveDuration.Observe(durationSeconds)
	m.ArchiveSize.Observe(float64(sizeBytes))
}

// RecordArchiveFailure increments the archive failures counter
func (m *Metrics) RecordArchiveFailure() {
	m.ArchiveFailures.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
