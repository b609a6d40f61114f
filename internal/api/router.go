package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"

	"media-relay-bot/internal/logging"
	"media-relay-bot/internal/session"
)

// StatsSource is satisfied by session stores.
type StatsSource interface {
	Stats() session.Stats
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type StatsResponse struct {
	session.Stats
	Hosts         []string `json:"hosts"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	HeapMB        uint64   `json:"heap_mb"`
	Goroutines    int      `json:"goroutines"`
}

type handler struct {
	stats     StatsSource
	hosts     []string
	startedAt time.Time
}

// NewRouter exposes liveness and session counters for the container runtime.
func NewRouter(stats StatsSource, hosts []string) *chi.Mux {
	h := &handler{stats: stats, hosts: hosts, startedAt: time.Now()}

	r := chi.NewRouter()
	r.Use(middleware.CleanPath)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", h.live)
	r.Get("/stats", h.statsJSON)
	return r
}

func (h *handler) live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) statsJSON(w http.ResponseWriter, _ *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	hosts := h.hosts
	if hosts == nil {
		hosts = []string{}
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		Stats:         h.stats.Stats(),
		Hosts:         hosts,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		HeapMB:        ms.HeapAlloc >> 20,
		Goroutines:    runtime.NumGoroutine(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve runs the router on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler, log *logging.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("health server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "health server")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
