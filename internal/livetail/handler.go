package livetail

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/orizon-lang/memscope/internal/aggregate"
	"github.com/orizon-lang/memscope/internal/obslog"
)

// StreamHandler serves a connecting client a newline-delimited JSON stream
// of aggregate.Result values, one per debounced re-aggregation, for as long
// as the HTTP/3 request stays open.
func StreamHandler(live *aggregate.LiveAggregator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, canFlush := w.(http.Flusher)

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)

		enc := json.NewEncoder(w)

		for res := range live.Watch(r.Context()) {
			if err := enc.Encode(res); err != nil {
				obslog.Warnf("live-tail stream encode failed: %v", err)
				return
			}

			if canFlush {
				flusher.Flush()
			}
		}
	})
}

// ServeDirectory is a convenience that wires a LiveAggregator and an HTTP/3
// Server together for a single directory, returning the Server started and
// ready. Cancelling ctx stops the Server and closes the LiveAggregator;
// Server.Stop alone leaves the aggregator open.
func ServeDirectory(ctx context.Context, addr string, dir string, live *aggregate.LiveAggregator, opts Options) (*Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/stream", StreamHandler(live))

	srv := New(addr, nil, mux, opts)

	if _, err := srv.Start(); err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		_ = srv.Stop()
		_ = live.Close()
	}()

	return srv, nil
}
