package app

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// startHealthServer starts an HTTP server for health checks and stats.
func (r *Runner) startHealthServer(port int) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		stats := r.GetStats()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(stats)
	})

	r.healthServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := r.healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("health server error", zap.Error(err))
		}
	}()

	r.logger.Info("health server started", zap.Int("port", port))
}
