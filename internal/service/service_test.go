package service_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/iml1s/xmrigminer/internal/model"
	"github.com/iml1s/xmrigminer/internal/service"
	"github.com/iml1s/xmrigminer/internal/telemetry"
)

// newService runs a Service on the fake worker with the HTTP collector.
func newService(t *testing.T, env ...string) (*service.Service, string) {
	t.Helper()
	opts, marker := fakeOptions(t, env...)
	s := newSupervisor(t, opts)
	collector := telemetry.NewCollector(s, telemetry.NewHTTPSource(),
		telemetry.WithIntervals(20*time.Millisecond, 100*time.Millisecond))
	svc := service.New(s, fakeProber{info: eightThreads}, collector)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- svc.Do(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return svc, marker
}

func TestService(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t)
	ctx := t.Context()
	cfg := scenarioConfig()

	require.False(t, svc.IsMining())
	require.Zero(t, svc.GetMiningStats())

	ack, err := svc.StartMining(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, service.AckStarted, ack)
	require.True(t, svc.IsMining())

	_, err = svc.StartMining(ctx, cfg)
	require.ErrorIs(t, err, service.ErrAlreadyRunning)
	require.True(t, svc.IsMining())

	require.Eventually(t, func() bool {
		st := svc.GetMiningStats()
		return st.Hashrate == 1234.5 && st.SharesAccepted == 2
	}, 10*time.Second, 20*time.Millisecond)
	st := svc.GetMiningStats()
	require.InDelta(t, 1200.0, st.Hashrate60s, 1e-9)
	require.EqualValues(t, 75000, st.Difficulty)

	ack, err = svc.StopMining(ctx)
	require.NoError(t, err)
	require.Equal(t, service.AckStopped, ack)
	require.False(t, svc.IsMining())
	require.Zero(t, svc.GetMiningStats())

	// polling halted, nothing is published after stop
	time.Sleep(100 * time.Millisecond)
	require.Zero(t, svc.GetMiningStats())

	_, err = svc.StopMining(ctx)
	require.ErrorIs(t, err, service.ErrNotRunning)
}

func TestService_ConfigErrors(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    func(*model.MiningConfig)
		then     error
	}{
		{"zero threads", func(c *model.MiningConfig) { c.Threads = 0 }, model.ErrThreadCountZero},
		{"too many threads", func(c *model.MiningConfig) { c.Threads = 9 }, model.ErrThreadCountExceedsCapacity},
		{"blank wallet", func(c *model.MiningConfig) { c.WalletAddress = "   " }, model.ErrEmptyField},
		{"no pool", func(c *model.MiningConfig) { c.PoolURL = "" }, model.ErrEmptyField},
		{"no algorithm", func(c *model.MiningConfig) { c.Algorithm = "" }, model.ErrEmptyField},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			svc, marker := newService(t)
			cfg := scenarioConfig()
			tc.given(&cfg)

			_, err := svc.StartMining(t.Context(), cfg)
			require.ErrorIs(t, err, tc.then)
			var ce *model.ConfigError
			require.ErrorAs(t, err, &ce)
			require.False(t, svc.IsMining())
			// rejected before any process is created
			time.Sleep(50 * time.Millisecond)
			require.Empty(t, spawned(t, marker))
		})
	}
}

func TestService_ConfigErrorBeforeRunning(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t)
	_, err := svc.StartMining(t.Context(), scenarioConfig())
	require.NoError(t, err)

	bad := scenarioConfig()
	bad.Threads = 0
	_, err = svc.StartMining(t.Context(), bad)
	require.ErrorIs(t, err, model.ErrThreadCountZero)
	require.NotErrorIs(t, err, service.ErrAlreadyRunning)
	require.True(t, svc.IsMining())
}

func TestService_MissingExecutable(t *testing.T) {
	t.Parallel()
	opts, _ := fakeOptions(t)
	opts.MinerPath = filepath.Join(t.TempDir(), "binaries", "xmrig")
	svc := service.New(newSupervisor(t, opts), fakeProber{info: eightThreads}, nil)

	for range 3 {
		_, err := svc.StartMining(t.Context(), scenarioConfig())
		require.ErrorIs(t, err, service.ErrSpawnFailed)
		require.False(t, svc.IsMining())
		require.Zero(t, svc.GetMiningStats())
	}
}

func TestService_DoStopsWorker(t *testing.T) {
	t.Parallel()
	opts, _ := fakeOptions(t)
	s := newSupervisor(t, opts)
	svc := service.New(s, fakeProber{info: eightThreads}, nil)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- svc.Do(ctx)
	}()
	_, err := svc.StartMining(ctx, scenarioConfig())
	require.NoError(t, err)

	cancel()
	require.NoError(t, <-done)
	require.False(t, svc.IsMining())
}

func TestNew_ChainsTransitionHook(t *testing.T) {
	t.Parallel()
	opts, _ := fakeOptions(t)
	var transitions atomic.Int32
	s := newSupervisor(t, opts, service.WithTransitionHook(func() {
		transitions.Add(1)
	}))
	_, err := s.Start(t.Context(), validated(t, scenarioConfig()))
	require.NoError(t, err)

	stopped := make(chan error, 1)
	go func() {
		stopped <- s.Stop(t.Context())
	}()
	collector := telemetry.NewCollector(s, telemetry.NewHTTPSource())
	svc := service.New(s, fakeProber{info: eightThreads}, collector)
	require.NoError(t, <-stopped)
	require.False(t, svc.IsMining())

	// Start, then Stopping and Stopped
	require.EqualValues(t, 3, transitions.Load())
}

func TestService_GetSystemInfo(t *testing.T) {
	t.Parallel()
	opts, _ := fakeOptions(t)
	svc := service.New(newSupervisor(t, opts), fakeProber{info: eightThreads}, nil)
	require.Equal(t, eightThreads, svc.GetSystemInfo(t.Context()))
}

func TestFromConfig(t *testing.T) {
	t.Parallel()
	opts, _ := fakeOptions(t)

	cfg := model.DefaultConfig()
	cfg.Miner.Path = opts.MinerPath
	cfg.Miner.HTTPPort = int(opts.HTTPPort)
	cfg.Miner.Env = opts.Env
	cfg.Telemetry.Source = model.SourceLog
	cfg.Telemetry.Interval = "1s"

	reg := prometheus.NewRegistry()
	svc, err := service.FromConfig(cfg, reg)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, svc.Supervisor().Close(context.Background()))
	})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- svc.Do(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	mining := scenarioConfig()
	mining.Threads = 1
	_, err = svc.StartMining(ctx, mining)
	require.NoError(t, err)

	// stats come from the console output
	require.Eventually(t, func() bool {
		st := svc.GetMiningStats()
		return st.Hashrate == 1234.5 && st.SharesAccepted > 0 && st.Difficulty == 75000
	}, 10*time.Second, 20*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	_, err = svc.StopMining(ctx)
	require.NoError(t, err)
}

func TestFromConfig_Fail(t *testing.T) {
	t.Parallel()
	cfg := model.DefaultConfig()
	cfg.Telemetry.Source = "carrier pigeon"
	_, err := service.FromConfig(cfg, nil)
	require.Error(t, err)

	cfg = model.DefaultConfig()
	cfg.Miner.StopTimeout = "soon"
	_, err = service.FromConfig(cfg, nil)
	require.Error(t, err)

	cfg = model.DefaultConfig()
	cfg.Miner.HTTPPort = 70000
	_, err = service.FromConfig(cfg, nil)
	require.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	t.Parallel()
	opts, err := service.OptionsFromConfig(model.Miner{
		Path:        "/usr/bin/xmrig",
		Dir:         "/opt/xmrigminer",
		HTTPPort:    40000,
		StopTimeout: "1m30s",
		Env:         []string{"A=b"},
	})
	require.NoError(t, err)
	require.Equal(t, service.Options{
		MinerPath:   "/usr/bin/xmrig",
		Dir:         "/opt/xmrigminer",
		HTTPPort:    40000,
		StopTimeout: 90 * time.Second,
		Env:         []string{"A=b"},
	}, opts)
}
