package service

import (
	"context"
	"log/slog"

	"github.com/iml1s/xmrigminer/internal/model"
	"github.com/iml1s/xmrigminer/internal/telemetry"
)

const (
	AckStarted = "Mining started successfully"
	AckStopped = "Mining stopped"
)

// Prober answers GetSystemInfo and provides the capacity limits of StartMining.
type Prober interface {
	Probe(ctx context.Context) model.SystemInfo
}

// Service is the entry surface of the presentation layer. Lifecycle calls
// and stats reads serialize on the supervisor lock; GetSystemInfo takes none.
type Service struct {
	supervisor *Supervisor
	prober     Prober
	collector  *telemetry.Collector
}

// New ties s, prober and collector together. The collector may be nil, in
// which case no stats are ever published.
func New(s *Supervisor, prober Prober, collector *telemetry.Collector) *Service {
	if collector != nil {
		s.addTransitionHook(collector.Notify)
	}
	return &Service{
		supervisor: s,
		prober:     prober,
		collector:  collector,
	}
}

func (s *Service) Supervisor() *Supervisor {
	return s.supervisor
}

// StartMining validates cfg against a fresh probe and starts the worker.
// A configuration error is returned before the running state is looked at.
func (s *Service) StartMining(ctx context.Context, cfg model.MiningConfig) (string, error) {
	vc, err := model.Validate(cfg, s.prober.Probe(ctx))
	if err != nil {
		return "", err
	}
	if _, err := s.supervisor.Start(ctx, vc); err != nil {
		return "", err
	}
	return AckStarted, nil
}

func (s *Service) StopMining(ctx context.Context) (string, error) {
	if err := s.supervisor.Stop(ctx); err != nil {
		return "", err
	}
	return AckStopped, nil
}

func (s *Service) GetMiningStats() model.MiningStats {
	return s.supervisor.Stats()
}

func (s *Service) IsMining() bool {
	return s.supervisor.IsRunning()
}

func (s *Service) GetSystemInfo(ctx context.Context) model.SystemInfo {
	return s.prober.Probe(ctx)
}

// Do runs the telemetry loop until ctx is canceled, then stops a running
// worker so no process outlives the service.
func (s *Service) Do(ctx context.Context) error {
	slog.DebugContext(ctx, "starting a service")
	if s.collector != nil {
		_ = s.collector.Do(ctx)
	} else {
		<-ctx.Done()
	}
	return s.supervisor.Close(context.WithoutCancel(ctx))
}
