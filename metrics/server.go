package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goutils "go.viam.com/utils"

	"github.com/rcognita/turtlenav/logging"
)

// Serve exposes gatherer on addr under /metrics until ctx is done. The returned address is the one
// actually listened on, which differs from addr when addr asks for port 0.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger logging.Logger) (string, <-chan struct{}, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "cannot listen on %s", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck
		w.Write([]byte("OK"))
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	goutils.PanicCapturingGo(func() {
		defer close(done)
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("metrics server failed", "error", err)
		}
	})
	goutils.PanicCapturingGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		goutils.UncheckedError(srv.Shutdown(shutdownCtx))
	})
	logger.Infow("serving metrics", "addr", lis.Addr().String())
	return lis.Addr().String(), done, nil
}
