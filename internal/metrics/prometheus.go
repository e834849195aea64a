package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the segmentation service
type Metrics struct {
	// UDP ingest metrics
	PacketsReceived  prometheus.Counter
	PacketsProcessed prometheus.Counter
	ParseErrors      prometheus.Counter
	PacketsDropped   prometheus.Counter
	QueueSize        prometheus.Gauge

	// Stream metrics
	ActiveStreams    prometheus.Gauge
	StreamsCreated   prometheus.Counter
	StreamsDestroyed prometheus.Counter
	StreamDuration   prometheus.Histogram

	// Segmentation metrics
	FramesProcessed prometheus.Counter
	SpeechStarts    prometheus.Counter
	SpeechSegments  prometheus.Counter
	Misfires        prometheus.Counter
	InferenceErrors prometheus.Counter
	SegmentDuration prometheus.Histogram
	SegmentSize     prometheus.Histogram

	// Transcription delivery metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	TranscriptionRetries   prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// UDP ingest metrics
		PacketsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vad_packets_received_total",
			Help: "Total number of UDP packets received",
		}),
		PacketsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vad_packets_processed_total",
			Help: "Total number of UDP packets successfully processed",
		}),
		ParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vad_parse_errors_total",
			Help: "Total number of packet parsing errors",
		}),
		PacketsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vad_packets_dropped_total",
			Help: "Total number of packets dropped due to a full queue",
		}),
		QueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vad_packet_queue_size",
			Help: "Current number of packets in processing queue",
		}),

		// Stream metrics
		ActiveStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vad_active_streams",
			Help: "Current number of active audio streams",
		}),
		StreamsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vad_streams_created_total",
			Help: "Total number of streams created",
		}),
		StreamsDestroyed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vad_streams_destroyed_total",
			Help: "Total number of streams destroyed",
		}),
		StreamDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vad_stream_duration_seconds",
			Help:    "Duration of audio streams in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		}),

		// Segmentation metrics
		FramesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vad_frames_processed_total",
			Help: "Total number of audio frames classified",
		}),
		SpeechStarts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vad_speech_starts_total",
			Help: "Total number of speech episodes opened",
		}),
		SpeechSegments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vad_speech_segments_total",
			Help: "Total number of validated speech segments emitted",
		}),
		Misfires: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vad_misfires_total",
			Help: "Total number of episodes discarded as misfires",
		}),
		InferenceErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vad_inference_errors_total",
			Help: "Total number of classifier inference failures",
		}),
		SegmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vad_segment_duration_seconds",
			Help:    "Duration of emitted speech segments",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s to ~2 minutes
		}),
		SegmentSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vad_segment_size_bytes",
			Help:    "Size of emitted speech segments in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		// Transcription delivery metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vad_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vad_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vad_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vad_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		TranscriptionRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vad_transcription_retries_total",
			Help: "Total number of transcription request retries",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vad_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vad_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vad_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordPacketReceived increments the packets received counter
func (m *Metrics) RecordPacketReceived() {
	m.PacketsReceived.Inc()
}

// RecordPacketProcessed increments the packets processed counter
func (m *Metrics) RecordPacketProcessed() {
	m.PacketsProcessed.Inc()
}

// RecordParseError increments the parse errors counter
func (m *Metrics) RecordParseError() {
	m.ParseErrors.Inc()
}

// RecordPacketDropped increments the dropped packets counter
func (m *Metrics) RecordPacketDropped() {
	m.PacketsDropped.Inc()
}

// SetQueueSize sets the current queue size
func (m *Metrics) SetQueueSize(size int) {
	m.QueueSize.Set(float64(size))
}

// SetActiveStreams sets the current number of active streams
func (m *Metrics) SetActiveStreams(count int) {
	m.ActiveStreams.Set(float64(count))
}

// RecordStreamCreated increments the streams created counter
func (m *Metrics) RecordStreamCreated() {
	m.StreamsCreated.Inc()
}

// RecordStreamDestroyed increments the streams destroyed counter and records duration
func (m *Metrics) RecordStreamDestroyed(durationSeconds float64) {
	m.StreamsDestroyed.Inc()
	m.StreamDuration.Observe(durationSeconds)
}

// RecordFrameProcessed increments the frames classified counter
func (m *Metrics) RecordFrameProcessed() {
	m.FramesProcessed.Inc()
}

// RecordSpeechStart increments the opened episodes counter
func (m *Metrics) RecordSpeechStart() {
	m.SpeechStarts.Inc()
}

// RecordSpeechSegment records a validated segment
func (m *Metrics) RecordSpeechSegment(durationSeconds float64, sizeBytes int) {
	m.SpeechSegments.Inc()
	m.SegmentDuration.Observe(durationSeconds)
	m.SegmentSize.Observe(float64(sizeBytes))
}

// RecordMisfire increments the misfires counter
func (m *Metrics) RecordMisfire() {
	m.Misfires.Inc()
}

// RecordInferenceError increments the inference failures counter
func (m *Metrics) RecordInferenceError() {
	m.InferenceErrors.Inc()
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

// RecordTranscriptionRetry increments the retry counter
func (m *Metrics) RecordTranscriptionRetry() {
	m.TranscriptionRetries.Inc()
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
