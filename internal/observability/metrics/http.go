package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry 汇总本服务暴露的全部指标，与默认注册表隔离。
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

var (
	// httpRequestsTotal counts requests by route, method and status code.
	httpRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openmcp_intent",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests processed.",
	}, []string{"handler", "method", "code"})

	httpRequestErrorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openmcp_intent",
		Subsystem: "http",
		Name:      "request_errors_total",
		Help:      "Total number of HTTP requests that resulted in a server error.",
	}, []string{"handler", "method"})

	httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "openmcp_intent",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"handler", "method"})

	// parseTotal counts parse outcomes by top-level intent (none, error, Multi, ...).
	parseTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openmcp_intent",
		Subsystem: "parser",
		Name:      "results_total",
		Help:      "Parse results by top-level intent label.",
	}, []string{"intent"})

	parseIntents = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "openmcp_intent",
		Subsystem: "parser",
		Name:      "admitted_intents",
		Help:      "Number of admitted clauses per parsed prompt.",
		Buckets:   []float64{0, 1, 2, 3, 4, 6, 8},
	})

	parseDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "openmcp_intent",
		Subsystem: "parser",
		Name:      "duration_seconds",
		Help:      "Time spent tokenizing and parsing a prompt.",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
	})

	cacheLookupsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openmcp_intent",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Parse cache lookups by result (hit, miss, error).",
	}, []string{"result"})

	corpusRecordsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openmcp_intent",
		Subsystem: "corpus",
		Name:      "records_total",
		Help:      "Corpus records stored by kind (logged, annotated).",
	}, []string{"kind"})

	rateLimitedTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openmcp_intent",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	}, []string{"handler"})
)

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	if status >= 500 {
		httpRequestErrorsTotal.WithLabelValues(handler, method).Inc()
	}
	httpRequestDuration.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// ObserveParse records one parser invocation.
func ObserveParse(intent string, admitted int, duration time.Duration) {
	parseTotal.WithLabelValues(intent).Inc()
	parseIntents.Observe(float64(admitted))
	parseDuration.Observe(duration.Seconds())
}

// ObserveCacheLookup records a cache hit, miss or error.
func ObserveCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveCorpusRecord records a stored corpus entry.
func ObserveCorpusRecord(kind string) {
	corpusRecordsTotal.WithLabelValues(kind).Inc()
}

// ObserveRateLimited records a request rejected by the limiter.
func ObserveRateLimited(handler string) {
	rateLimitedTotal.WithLabelValues(handler).Inc()
}

// Handler exposes the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// StartServer launches a standalone HTTP server exposing the /metrics endpoint.
func StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
