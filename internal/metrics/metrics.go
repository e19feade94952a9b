package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tablon"

// Registry is the process-wide Prometheus registry served on /metrics.
var Registry = prometheus.NewRegistry()

// AppInfo is always 1; build information lives in the labels.
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// HealthCheckStatus tracks individual readiness check results.
// Values: 0 = fail, 1 = warn, 2 = pass
var HealthCheckStatus = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_check_status",
		Help:      "Individual health check status (0=fail, 1=warn, 2=pass)",
	},
	[]string{"check"},
)

// Moderation metrics
var (
	// ArtistRequestsSubmitted counts submissions by outcome:
	// accepted, rate_limited, duplicate, invalid.
	ArtistRequestsSubmitted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artist_requests_submitted_total",
			Help:      "Artist request submissions by outcome",
		},
		[]string{"outcome"},
	)

	// ArtistRequestsReviewed counts terminal transitions. reason is
	// "admin" for an explicit decision and "artist_exists" for automatic
	// rejections during approval.
	ArtistRequestsReviewed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artist_requests_reviewed_total",
			Help:      "Artist request review transitions",
		},
		[]string{"status", "reason"},
	)

	ModerationSoftFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_soft_failures_total",
			Help:      "Side effects that failed without aborting a moderation operation",
		},
		[]string{"operation", "step"},
	)
)

// Notification metrics
var (
	NotificationsCreated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "In-app notifications persisted, by type",
		},
		[]string{"type"},
	)

	// EmailDeliveries counts outbound mails; result is sent or failed.
	EmailDeliveries = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_deliveries_total",
			Help:      "Outbound notification emails by provider and result",
		},
		[]string{"provider", "result"},
	)

	NotificationsPurged = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_purged_total",
			Help:      "Read notifications deleted by the retention job",
		},
	)
)

// EventsPublished counts broker publishes by routing key and result.
var EventsPublished = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Moderation events published to the message broker",
	},
	[]string{"routing_key", "result"},
)

// AuthAttempts counts logins and registrations; result is success or failure.
var AuthAttempts = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Login and registration attempts",
	},
	[]string{"kind", "result"},
)

// Init registers the runtime collectors and publishes build information.
// Call once at startup.
func Init(version, commit, buildDate string) {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
