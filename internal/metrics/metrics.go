package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultMetricsNamespace = "bonfire"

// Config contains metrics configuration.
type Config struct {
	// Namespace is the prometheus namespace for all metrics. If empty, defaults to "bonfire".
	Namespace string
	// ConstLabels are labels that will be added to all metrics as constant labels.
	ConstLabels map[string]string
	// Registerer is the prometheus registerer to use. If nil, prometheus.DefaultRegisterer is used.
	Registerer prometheus.Registerer
}

// Gateway metrics - exported for use by gateway package.
var (
	SessionsActive          prometheus.Gauge
	HandshakesTotal         *prometheus.CounterVec
	ReadyDurationHistogram  prometheus.Histogram
	CommandsTotal           *prometheus.CounterVec
	EventsSentTotal         *prometheus.CounterVec
	SubscriptionChanges     *prometheus.CounterVec
	PresenceBroadcastsTotal *prometheus.CounterVec
	ShutdownTimeoutsTotal   prometheus.Counter
)

// Middleware metrics - exported for use by middleware package.
var (
	ConnLimitReached     prometheus.Counter
	ConnRateLimitReached prometheus.Counter
	HTTPRequestsTotal    *prometheus.CounterVec
)

// Registry holds all gateway metrics.
type Registry struct {
	config Config

	sessionsActive          prometheus.Gauge
	handshakesTotal         *prometheus.CounterVec
	readyDurationHistogram  prometheus.Histogram
	commandsTotal           *prometheus.CounterVec
	eventsSentTotal         *prometheus.CounterVec
	subscriptionChanges     *prometheus.CounterVec
	presenceBroadcastsTotal *prometheus.CounterVec
	shutdownTimeoutsTotal   prometheus.Counter

	connLimitReached     prometheus.Counter
	connRateLimitReached prometheus.Counter
	httpRequestsTotal    *prometheus.CounterVec
}

func init() {
	// Collectors exist even if Init never called so that packages and their
	// tests may use them unconditionally.
	populate(newCollectors(Config{}))
}

// Init creates all metrics and registers them with the configured registerer.
// Returns an error if metric registration fails.
func Init(cfg Config) error {
	reg := newCollectors(cfg)
	if err := reg.register(); err != nil {
		return err
	}
	populate(reg)
	return nil
}

func populate(reg *Registry) {
	SessionsActive = reg.sessionsActive
	HandshakesTotal = reg.handshakesTotal
	ReadyDurationHistogram = reg.readyDurationHistogram
	CommandsTotal = reg.commandsTotal
	EventsSentTotal = reg.eventsSentTotal
	SubscriptionChanges = reg.subscriptionChanges
	PresenceBroadcastsTotal = reg.presenceBroadcastsTotal
	ShutdownTimeoutsTotal = reg.shutdownTimeoutsTotal

	ConnLimitReached = reg.connLimitReached
	ConnRateLimitReached = reg.connRateLimitReached
	HTTPRequestsTotal = reg.httpRequestsTotal
}

func newCollectors(cfg Config) *Registry {
	metricsNamespace := cfg.Namespace
	if metricsNamespace == "" {
		metricsNamespace = defaultMetricsNamespace
	}
	constLabels := prometheus.Labels(cfg.ConstLabels)

	m := &Registry{config: cfg}

	m.sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "gateway",
		Name:        "sessions",
		Help:        "Number of active gateway sessions.",
		ConstLabels: constLabels,
	})

	m.handshakesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "gateway",
		Name:        "handshakes_total",
		Help:        "Number of finished handshakes by result.",
		ConstLabels: constLabels,
	}, []string{"result"})

	m.readyDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "gateway",
		Name:        "ready_duration_seconds",
		Buckets:     prometheus.DefBuckets,
		Help:        "Histogram of time spent assembling Ready payload.",
		ConstLabels: constLabels,
	})

	m.commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "gateway",
		Name:        "commands_total",
		Help:        "Number of client commands received.",
		ConstLabels: constLabels,
	}, []string{"type"})

	m.eventsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "gateway",
		Name:        "events_sent_total",
		Help:        "Number of events written to clients.",
		ConstLabels: constLabels,
	}, []string{"type"})

	m.subscriptionChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "gateway",
		Name:        "subscription_changes_total",
		Help:        "Number of applied subscription changes by kind.",
		ConstLabels: constLabels,
	}, []string{"kind"})

	m.presenceBroadcastsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "gateway",
		Name:        "presence_broadcasts_total",
		Help:        "Number of online/offline broadcasts.",
		ConstLabels: constLabels,
	}, []string{"state"})

	m.shutdownTimeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "gateway",
		Name:        "shutdown_timeouts_total",
		Help:        "Number of sessions forcibly closed because loops did not stop in time.",
		ConstLabels: constLabels,
	})

	m.connLimitReached = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "node",
		Name:        "client_connection_limit",
		Help:        "Number of refused requests due to node client connection limit.",
		ConstLabels: constLabels,
	})

	m.connRateLimitReached = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "node",
		Name:        "client_connection_rate_limit",
		Help:        "Number of refused requests due to node client connection rate limit.",
		ConstLabels: constLabels,
	})

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "node",
			Name:        "incoming_http_requests_total",
			Help:        "Number of incoming HTTP requests",
			ConstLabels: constLabels,
		},
		[]string{"path", "method", "status"},
	)
	return m
}

func (m *Registry) register() error {
	registerer := m.config.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	var alreadyRegistered prometheus.AlreadyRegisteredError

	collectors := []prometheus.Collector{
		m.sessionsActive,
		m.handshakesTotal,
		m.readyDurationHistogram,
		m.commandsTotal,
		m.eventsSentTotal,
		m.subscriptionChanges,
		m.presenceBroadcastsTotal,
		m.shutdownTimeoutsTotal,
		m.connLimitReached,
		m.connRateLimitReached,
		m.httpRequestsTotal,
	}

	for _, collector := range collectors {
		err := registerer.Register(collector)
		if err != nil {
			// Ignore if already registered (allows re-initialization in tests)
			if !errors.As(err, &alreadyRegistered) {
				return err
			}
		}
	}
	return nil
}
