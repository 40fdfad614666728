package metrics

import (
	"context"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// ListenPort resolves the metrics port from PROCESSOR_PROMETHEUS_PORT,
// falling back to PROMETHEUS_PORT, then the configured default.
// 0 picks an ephemeral port.
func ListenPort(configured int) int {
	for _, key := range []string{"PROCESSOR_PROMETHEUS_PORT", "PROMETHEUS_PORT"} {
		if v := os.Getenv(key); v != "" {
			if port, err := strconv.Atoi(v); err == nil {
				return port
			}
			log.Warn().Str("env", key).Msgf("ignoring non-numeric metrics port %q", v)
		}
	}
	return configured
}

func Serve(ctx context.Context, port int) error {
	listener, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Handler: mux}

	log.Info().Msgf("Metrics server listening on %s", listener.Addr().String())

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
