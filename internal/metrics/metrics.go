// Package metrics exposes Prometheus instrumentation for the HTTP API and the contact pipeline.
package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MarkoPoloResearchLab/folio/internal/mailer"
)

const (
	// MetricsPath is where the exposition handler is mounted.
	MetricsPath = "/metrics"

	InquiryOutcomeAccepted       = "accepted"
	InquiryOutcomeRejected       = "rejected"
	InquiryOutcomePersistFailed  = "persist_failed"
	InquiryOutcomeDispatchFailed = "dispatch_failed"

	deliveryStatusSuccess = "success"
	deliveryStatusFailure = "failure"

	unmatchedRouteLabel = "unmatched"
	databaseStatsName   = "folio"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	contactInquiriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_inquiries_total",
			Help: "Contact submissions by outcome",
		},
		[]string{"outcome"},
	)

	mailDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_deliveries_total",
			Help: "Owner notification deliveries by transport and status",
		},
		[]string{"transport", "status"},
	)

	mailDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mail_delivery_duration_seconds",
			Help:    "Owner notification delivery duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"transport"},
	)
)

// GinMiddleware records request counts and latency labelled by route template.
func GinMiddleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		if context.Request.URL.Path == MetricsPath {
			context.Next()
			return
		}
		start := time.Now()
		context.Next()

		endpoint := context.FullPath()
		if endpoint == "" {
			endpoint = unmatchedRouteLabel
		}
		statusCode := strconv.Itoa(context.Writer.Status())
		httpRequestsTotal.WithLabelValues(context.Request.Method, endpoint, statusCode).Inc()
		httpRequestDuration.WithLabelValues(context.Request.Method, endpoint, statusCode).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordInquiry counts a contact submission outcome.
func RecordInquiry(outcome string) {
	contactInquiriesTotal.WithLabelValues(outcome).Inc()
}

// RecordMailDelivery records one notification attempt.
func RecordMailDelivery(transport string, duration time.Duration, err error) {
	status := deliveryStatusSuccess
	if err != nil {
		status = deliveryStatusFailure
	}
	mailDeliveriesTotal.WithLabelValues(transport, status).Inc()
	mailDeliveryDuration.WithLabelValues(transport).Observe(duration.Seconds())
}

// RegisterDatabaseStats exports connection pool statistics for database.
func RegisterDatabaseStats(database *sql.DB) error {
	return prometheus.Register(collectors.NewDBStatsCollector(database, databaseStatsName))
}

type instrumentedSender struct {
	transport string
	sender    mailer.Sender
}

// InstrumentSender wraps sender so every Send is counted and timed under transport.
func InstrumentSender(transport string, sender mailer.Sender) mailer.Sender {
	return &instrumentedSender{transport: transport, sender: sender}
}

func (instrumented *instrumentedSender) Send(ctx context.Context, message mailer.Message) error {
	start := time.Now()
	err := instrumented.sender.Send(ctx, message)
	RecordMailDelivery(instrumented.transport, time.Since(start), err)
	return err
}
