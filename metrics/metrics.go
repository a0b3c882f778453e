// Package metrics exposes optional Prometheus counters for the decoder's
// packet classification and sink fan-out. It is never required for
// itmsink to run: if Serve is never called, the counters are simply not
// scraped.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Kinds of packets the decoder classifies, used as the "kind" label on
// PacketsTotal.
const (
	KindSource        = "source"
	KindOverflow      = "overflow"
	KindSyncOK        = "sync_ok"
	KindSyncBad       = "sync_bad"
	KindTimestamp     = "timestamp"
	KindExtension     = "extension"
	KindInvalidHeader = "invalid_header"
	KindBadExtension  = "bad_extension"
	KindBadTimestamp  = "bad_timestamp"
)

var (
	registry = prometheus.NewRegistry()

	PacketsTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "itmsink_packets_total",
		Help: "Number of ITM packets classified by the decoder, by kind.",
	}, []string{"kind"})

	SinkBytesWrittenTotal = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "itmsink_sink_bytes_written_total",
		Help: "Total bytes written across all sinks.",
	})
)

// Serve starts a metrics HTTP server on addr and blocks until ctx is
// canceled or the server fails. Intended to run in its own goroutine.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errc:
		return err
	}
}
