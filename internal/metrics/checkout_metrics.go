package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики жизненного цикла черновиков и отправок.
type CheckoutMetrics struct {
	// Счётчики отправок
	submissionsStarted   prometheus.Counter
	submissionsSucceeded prometheus.Counter
	submissionsFailed    prometheus.Counter
	submissionsRejected  prometheus.Counter

	// Гистограмма времени отправки
	submissionDuration prometheus.Histogram

	// Счётчики событий
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	// Gauge для активных черновиков
	activeDrafts prometheus.Gauge

	// Гистограмма HTTP-запросов draft API
	httpDuration *prometheus.HistogramVec
}

// NewCheckoutMetrics создаёт метрики в default-регистраторе Prometheus.
func NewCheckoutMetrics() *CheckoutMetrics {
	return newCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		submissionsStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_submissions_started_total",
			Help: "Total number of draft submissions started",
		}),
		submissionsSucceeded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_submissions_succeeded_total",
			Help: "Total number of draft submissions accepted by the persistence service",
		}),
		submissionsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_submissions_failed_total",
			Help: "Total number of draft submissions rejected by the persistence service or failed in transit",
		}),
		submissionsRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_submissions_rejected_total",
			Help: "Total number of draft submissions rejected by client-side validation",
		}),
		submissionDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "checkout_submission_duration_seconds",
			Help:    "Duration of draft submission attempts in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_timeline_events_total",
			Help: "Total number of draft timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		activeDrafts: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "checkout_active_drafts",
			Help: "Number of draft sessions currently open",
		}),
		httpDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "checkout_http_request_duration_seconds",
			Help:    "Duration of draft API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route", "code"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordSubmissionStarted увеличивает счётчик начатых отправок.
func (m *CheckoutMetrics) RecordSubmissionStarted() {
	m.submissionsStarted.Inc()
}

// RecordSubmissionSucceeded увеличивает счётчик принятых транзакций.
func (m *CheckoutMetrics) RecordSubmissionSucceeded() {
	m.submissionsSucceeded.Inc()
}

// RecordSubmissionFailed увеличивает счётчик отказов внешнего сервиса.
func (m *CheckoutMetrics) RecordSubmissionFailed() {
	m.submissionsFailed.Inc()
}

// RecordSubmissionRejected увеличивает счётчик отказов клиентской валидации.
func (m *CheckoutMetrics) RecordSubmissionRejected() {
	m.submissionsRejected.Inc()
}

// RecordSubmissionDuration записывает длительность попытки отправки.
func (m *CheckoutMetrics) RecordSubmissionDuration(duration time.Duration) {
	m.submissionDuration.Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *CheckoutMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CheckoutMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordDraftOpened увеличивает количество открытых черновиков.
func (m *CheckoutMetrics) RecordDraftOpened() {
	m.activeDrafts.Inc()
}

// RecordDraftClosed уменьшает количество открытых черновиков.
func (m *CheckoutMetrics) RecordDraftClosed() {
	m.activeDrafts.Dec()
}

// ObserveHTTPRequest записывает длительность запроса draft API.
func (m *CheckoutMetrics) ObserveHTTPRequest(method, route, code string, duration time.Duration) {
	m.httpDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
}
