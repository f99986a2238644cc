package service

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iml1s/xmrigminer/internal/host"
	"github.com/iml1s/xmrigminer/internal/model"
	"github.com/iml1s/xmrigminer/internal/telemetry"
)

// OptionsFromConfig converts the miner section to supervisor Options.
func OptionsFromConfig(cfg model.Miner) (Options, error) {
	timeout, err := cfg.StopTimeoutDuration()
	if err != nil {
		return Options{}, fmt.Errorf("miner.stop_timeout: %w", err)
	}
	if cfg.HTTPPort < 0 || cfg.HTTPPort > 65535 {
		return Options{}, fmt.Errorf("miner.http_port %d out of range", cfg.HTTPPort)
	}
	return Options{
		MinerPath:   cfg.Path,
		Dir:         cfg.Dir,
		HTTPPort:    uint16(cfg.HTTPPort),
		StopTimeout: timeout,
		Env:         append([]string(nil), cfg.Env...),
	}, nil
}

// FromConfig wires a Service for cfg: the supervisor, the host prober, and a
// collector reading the configured telemetry source. Metrics are registered
// in reg when it is not nil.
func FromConfig(cfg model.Config, reg prometheus.Registerer, options ...SupervisorOption) (*Service, error) {
	opts, err := OptionsFromConfig(cfg.Miner)
	if err != nil {
		return nil, err
	}
	interval, maxInterval, err := cfg.Telemetry.Intervals()
	if err != nil {
		return nil, err
	}

	var source telemetry.Source
	switch cfg.Telemetry.Source {
	case model.SourceLog:
		logs := telemetry.NewLogSource()
		options = append(options, WithLineHandler(logs.Observe))
		source = logs
	case model.SourceHTTP, "":
		source = telemetry.NewHTTPSource()
	default:
		return nil, fmt.Errorf("telemetry.source %q is not supported", cfg.Telemetry.Source)
	}

	supervisor := NewSupervisor(opts, options...)
	collectorOpts := []telemetry.CollectorOption{telemetry.WithIntervals(interval, maxInterval)}
	if reg != nil {
		collectorOpts = append(collectorOpts, telemetry.WithMetrics(telemetry.NewMetrics(reg)))
	}
	collector := telemetry.NewCollector(supervisor, source, collectorOpts...)
	return New(supervisor, host.NewProber(host.WithEnvironment(supervisor.env)), collector), nil
}
