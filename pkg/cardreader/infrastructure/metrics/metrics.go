package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kgeyst.com/cardreader/pkg/cardreader/domain"
)

var (
	once sync.Once

	// ExtractionsTotal counts processed cards by outcome ("ok", "parse_failure", "error").
	ExtractionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardreader",
		Subsystem: "extractor",
		Name:      "extractions_total",
		Help:      "Total number of business cards processed, labeled by outcome.",
	}, []string{"outcome"})

	// ExtractionDurationSeconds is end-to-end time per card: OCR (if any), inference and parsing.
	ExtractionDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cardreader",
		Subsystem: "extractor",
		Name:      "extraction_duration_seconds",
		Help:      "End-to-end time to extract a contact from a business card.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
	}, []string{"outcome"})

	// ExtractionsInFlight is the current number of cards being processed (including the ones waiting for the model).
	ExtractionsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cardreader",
		Subsystem: "extractor",
		Name:      "extractions_in_flight",
		Help:      "Current number of business cards being processed.",
	})
)

// Register registers the metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ExtractionsTotal,
			ExtractionDurationSeconds,
			ExtractionsInFlight,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type contactExtractorDecorator struct {
	wrappedContactExtractor domain.ContactExtractor
}

// NewContactExtractorDecorator records the outcome and the latency of every extraction.
func NewContactExtractorDecorator(wrappedContactExtractor domain.ContactExtractor) domain.ContactExtractor {
	Register()
	return &contactExtractorDecorator{
		wrappedContactExtractor: wrappedContactExtractor,
	}
}

func (c *contactExtractorDecorator) Extract(ctx context.Context, image *domain.CardImage) *domain.Result {
	ExtractionsInFlight.Inc()
	defer ExtractionsInFlight.Dec()
	t := time.Now()
	result := c.wrappedContactExtractor.Extract(ctx, image)
	outcome := result.Outcome()
	ExtractionsTotal.WithLabelValues(outcome).Inc()
	ExtractionDurationSeconds.WithLabelValues(outcome).Observe(time.Since(t).Seconds())
	return result
}
