// Package api is the loopback HTTP control surface of the miner service and
// a client for it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iml1s/xmrigminer/internal/model"
)

const (
	PathStart   = "/api/v1/mining/start"
	PathStop    = "/api/v1/mining/stop"
	PathStats   = "/api/v1/mining/stats"
	PathRunning = "/api/v1/mining/running"
	PathSystem  = "/api/v1/system"
	PathMetrics = "/metrics"
)

// maxConfigBody caps a start request body.
const maxConfigBody = 64 << 10

// Miner is the command surface the handler exposes.
type Miner interface {
	StartMining(ctx context.Context, cfg model.MiningConfig) (string, error)
	StopMining(ctx context.Context) (string, error)
	GetMiningStats() model.MiningStats
	IsMining() bool
	GetSystemInfo(ctx context.Context) model.SystemInfo
}

type Ack struct {
	Message string `json:"message"`
}

type RunningResponse struct {
	Running bool `json:"running"`
}

type handler struct {
	miner    Miner
	defaults *model.MiningConfig
	gatherer prometheus.Gatherer
	health   healthcheck.Handler
}

type HandlerOption func(*handler)

// WithDefaultMining is started when a start request has no body.
func WithDefaultMining(cfg *model.MiningConfig) HandlerOption {
	return func(h *handler) {
		h.defaults = cfg
	}
}

// WithGatherer serves the metrics of g on /metrics.
func WithGatherer(g prometheus.Gatherer) HandlerOption {
	return func(h *handler) {
		h.gatherer = g
	}
}

// WithReadinessCheck adds a check to /ready.
func WithReadinessCheck(name string, check healthcheck.Check) HandlerOption {
	return func(h *handler) {
		h.health.AddReadinessCheck(name, check)
	}
}

func NewHandler(miner Miner, opts ...HandlerOption) http.Handler {
	h := &handler{
		miner:  miner,
		health: healthcheck.NewHandler(),
	}
	h.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000))
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+PathStart, h.start)
	mux.HandleFunc("POST "+PathStop, h.stop)
	mux.HandleFunc("GET "+PathStats, h.stats)
	mux.HandleFunc("GET "+PathRunning, h.running)
	mux.HandleFunc("GET "+PathSystem, h.system)
	mux.HandleFunc("GET /live", h.health.LiveEndpoint)
	mux.HandleFunc("GET /ready", h.health.ReadyEndpoint)
	if h.gatherer != nil {
		mux.Handle("GET "+PathMetrics, promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func (h *handler) start(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.decodeConfig(r)
	if err != nil {
		writeProblem(w, Problem{
			Type:   TypeBadRequest,
			Title:  "bad request",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
		return
	}
	ack, err := h.miner.StartMining(r.Context(), cfg)
	if err != nil {
		h.fail(w, r, "start", err)
		return
	}
	writeJSON(w, http.StatusOK, Ack{Message: ack})
}

var errNoConfig = errors.New("request has no mining configuration and no default is set")

func (h *handler) decodeConfig(r *http.Request) (model.MiningConfig, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBody))
	if err != nil {
		return model.MiningConfig{}, err
	}
	if len(body) == 0 {
		if h.defaults == nil {
			return model.MiningConfig{}, errNoConfig
		}
		return *h.defaults, nil
	}
	var cfg model.MiningConfig
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return model.MiningConfig{}, err
	}
	return cfg, nil
}

func (h *handler) stop(w http.ResponseWriter, r *http.Request) {
	ack, err := h.miner.StopMining(r.Context())
	if err != nil {
		h.fail(w, r, "stop", err)
		return
	}
	writeJSON(w, http.StatusOK, Ack{Message: ack})
}

func (h *handler) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.miner.GetMiningStats())
}

func (h *handler) running(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RunningResponse{Running: h.miner.IsMining()})
}

func (h *handler) system(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.miner.GetSystemInfo(r.Context()))
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	p := problemOf(err)
	level := slog.LevelInfo
	if p.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, op+" request failed", "status", p.Status, "error", err)
	writeProblem(w, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve serves handler on ln until ctx is canceled, then shuts down gracefully.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	slog.InfoContext(ctx, "control API listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
