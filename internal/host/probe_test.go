package host_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/stretchr/testify/require"

	"github.com/iml1s/xmrigminer/internal/host"
	"github.com/iml1s/xmrigminer/internal/model"
)

var errQuery = errors.New("query failed")

type fakeEnv struct {
	cpuName   string
	osVersion string
	err       error
}

func (e fakeEnv) MinerPath(dir string) string { return dir + "/xmrig" }

func (e fakeEnv) CPUName(context.Context) (string, error) { return e.cpuName, e.err }

func (e fakeEnv) OSVersion(context.Context) (string, error) { return e.osVersion, e.err }

func (e fakeEnv) Terminate(p *os.Process) error { return p.Kill() }

func healthy() []host.Option {
	return []host.Option{
		host.WithEnvironment(fakeEnv{cpuName: "native cpu", osVersion: "native os"}),
		host.WithCPUInfo(func(context.Context) ([]cpu.InfoStat, error) {
			return []cpu.InfoStat{{ModelName: "  AMD Ryzen 7 5800X 8-Core Processor "}}, nil
		}),
		host.WithCPUCounts(func(_ context.Context, logical bool) (int, error) {
			if logical {
				return 16, nil
			}
			return 8, nil
		}),
		host.WithMemory(func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 32 << 30, Available: 20 << 30}, nil
		}),
		host.WithPlatform(func(context.Context) (string, string, string, error) {
			return "ubuntu", "debian", "24.04", nil
		}),
		host.WithRuntime("linux", "amd64", func() int { return 4 }),
	}
}

func TestProbe(t *testing.T) {
	t.Parallel()
	info := host.NewProber(healthy()...).Probe(t.Context())
	require.Equal(t, model.SystemInfo{
		CPUName:         "AMD Ryzen 7 5800X 8-Core Processor",
		CPUCores:        8,
		CPUThreads:      16,
		MemoryTotal:     32 << 30,
		MemoryAvailable: 20 << 30,
		OSName:          "linux",
		OSVersion:       "24.04",
		Arch:            "x86_64",
	}, info)
}

func TestProbe_NativeFallback(t *testing.T) {
	t.Parallel()
	opts := append(healthy(),
		host.WithCPUInfo(func(context.Context) ([]cpu.InfoStat, error) {
			return nil, errQuery
		}),
		host.WithPlatform(func(context.Context) (string, string, string, error) {
			return "", "", "", nil
		}),
	)
	info := host.NewProber(opts...).Probe(t.Context())
	require.Equal(t, "native cpu", info.CPUName)
	require.Equal(t, "native os", info.OSVersion)
	require.EqualValues(t, 16, info.CPUThreads)
}

func TestProbe_Sentinels(t *testing.T) {
	t.Parallel()
	failInt := func(context.Context, bool) (int, error) { return 0, errQuery }
	opts := []host.Option{
		host.WithEnvironment(fakeEnv{err: host.ErrUnsupported}),
		host.WithCPUInfo(func(context.Context) ([]cpu.InfoStat, error) {
			return []cpu.InfoStat{{ModelName: ""}}, nil
		}),
		host.WithCPUCounts(failInt),
		host.WithMemory(func(context.Context) (*mem.VirtualMemoryStat, error) {
			return nil, errQuery
		}),
		host.WithPlatform(func(context.Context) (string, string, string, error) {
			panic("boom")
		}),
		host.WithRuntime("plan9", "mips", func() int { return 0 }),
	}

	var info model.SystemInfo
	require.NotPanics(t, func() {
		info = host.NewProber(opts...).Probe(t.Context())
	})
	require.Equal(t, model.SystemInfo{
		CPUName:    model.Unknown,
		OSName:     model.Unknown,
		OSVersion:  model.Unknown,
		Arch:       model.Unknown,
		CPUCores:   0,
		CPUThreads: 0,
	}, info)
}

func TestProbe_RuntimeThreads(t *testing.T) {
	t.Parallel()
	opts := append(healthy(),
		host.WithCPUCounts(func(context.Context, bool) (int, error) { return 0, errQuery }),
	)
	info := host.NewProber(opts...).Probe(t.Context())
	require.Zero(t, info.CPUCores)
	require.EqualValues(t, 4, info.CPUThreads)
}

func TestProbe_Timeout(t *testing.T) {
	t.Parallel()
	opts := append(healthy(),
		host.WithTimeout(10*time.Millisecond),
		host.WithMemory(func(ctx context.Context) (*mem.VirtualMemoryStat, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	)
	info := host.NewProber(opts...).Probe(t.Context())
	require.Zero(t, info.MemoryTotal)
	require.Zero(t, info.MemoryAvailable)
	require.Equal(t, "AMD Ryzen 7 5800X 8-Core Processor", info.CPUName)
}

// TestProbe_Host runs the real queries, whatever the machine answers
// the probe has to return.
func TestProbe_Host(t *testing.T) {
	t.Parallel()
	info := host.NewProber().Probe(t.Context())
	require.NotEmpty(t, info.CPUName)
	require.NotEmpty(t, info.OSName)
	require.NotEmpty(t, info.OSVersion)
	require.NotEmpty(t, info.Arch)
	require.Positive(t, info.CPUThreads)
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	for goos, want := range map[string]string{
		"darwin":  "macos",
		"linux":   "linux",
		"windows": "windows",
		"freebsd": "freebsd",
		"js":      model.Unknown,
	} {
		require.Equal(t, want, host.OSName(goos), goos)
	}
	for goarch, want := range map[string]string{
		"amd64":   "x86_64",
		"arm64":   "aarch64",
		"386":     "x86",
		"arm":     "arm",
		"riscv64": "riscv64",
		"wasm":    model.Unknown,
	} {
		require.Equal(t, want, host.Arch(goarch), goarch)
	}
}
