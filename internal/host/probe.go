package host

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/iml1s/xmrigminer/internal/model"
)

// DefaultQueryTimeout bounds each native query of a probe.
const DefaultQueryTimeout = 2 * time.Second

// Prober computes SystemInfo. Every query is injectable, the defaults ask
// gopsutil first and the platform Environment second.
type Prober struct {
	env       Environment
	timeout   time.Duration
	cpuInfo   func(context.Context) ([]cpu.InfoStat, error)
	cpuCounts func(context.Context, bool) (int, error)
	memory    func(context.Context) (*mem.VirtualMemoryStat, error)
	platform  func(context.Context) (platform, family, version string, err error)
	numCPU    func() int
	goos      string
	goarch    string
}

type Option func(*Prober)

func WithEnvironment(env Environment) Option {
	return func(p *Prober) {
		p.env = env
	}
}

func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		p.timeout = d
	}
}

func WithCPUInfo(f func(context.Context) ([]cpu.InfoStat, error)) Option {
	return func(p *Prober) {
		p.cpuInfo = f
	}
}

func WithCPUCounts(f func(ctx context.Context, logical bool) (int, error)) Option {
	return func(p *Prober) {
		p.cpuCounts = f
	}
}

func WithMemory(f func(context.Context) (*mem.VirtualMemoryStat, error)) Option {
	return func(p *Prober) {
		p.memory = f
	}
}

func WithPlatform(f func(context.Context) (platform, family, version string, err error)) Option {
	return func(p *Prober) {
		p.platform = f
	}
}

// WithRuntime overrides the values normally taken from package runtime.
func WithRuntime(goos, goarch string, numCPU func() int) Option {
	return func(p *Prober) {
		p.goos = goos
		p.goarch = goarch
		p.numCPU = numCPU
	}
}

func NewProber(opts ...Option) *Prober {
	p := &Prober{
		env:       Current(),
		timeout:   DefaultQueryTimeout,
		cpuInfo:   cpu.InfoWithContext,
		cpuCounts: cpu.CountsWithContext,
		memory:    mem.VirtualMemoryWithContext,
		platform:  host.PlatformInformationWithContext,
		numCPU:    runtime.NumCPU,
		goos:      runtime.GOOS,
		goarch:    runtime.GOARCH,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe never fails: a query that errors, panics or times out leaves only
// its own field at the sentinel value.
func (p *Prober) Probe(ctx context.Context) model.SystemInfo {
	total, available := p.memoryInfo(ctx)
	return model.SystemInfo{
		CPUName:         p.cpuName(ctx),
		CPUCores:        p.count(ctx, false),
		CPUThreads:      p.count(ctx, true),
		MemoryTotal:     total,
		MemoryAvailable: available,
		OSName:          OSName(p.goos),
		OSVersion:       p.osVersion(ctx),
		Arch:            Arch(p.goarch),
	}
}

func (p *Prober) cpuName(ctx context.Context) string {
	name := query(ctx, p, "cpu info", func(ctx context.Context) (string, error) {
		infos, err := p.cpuInfo(ctx)
		if err != nil {
			return "", err
		}
		for _, info := range infos {
			if s := strings.TrimSpace(info.ModelName); s != "" {
				return s, nil
			}
		}
		return "", errNotFound
	})
	if name != "" {
		return name
	}
	name = query(ctx, p, "native cpu name", p.env.CPUName)
	if name != "" {
		return name
	}
	return model.Unknown
}

// count returns the number of cores, 0 when unknown. Logical threads fall
// back to what the Go runtime sees.
func (p *Prober) count(ctx context.Context, logical bool) uint32 {
	n := query(ctx, p, "cpu counts", func(ctx context.Context) (int, error) {
		return p.cpuCounts(ctx, logical)
	})
	if n <= 0 && logical && p.numCPU != nil {
		n = p.numCPU()
	}
	if n <= 0 {
		return 0
	}
	return uint32(n)
}

func (p *Prober) memoryInfo(ctx context.Context) (total, available uint64) {
	vm := query(ctx, p, "virtual memory", p.memory)
	if vm == nil {
		return 0, 0
	}
	return vm.Total, vm.Available
}

func (p *Prober) osVersion(ctx context.Context) string {
	version := query(ctx, p, "platform", func(ctx context.Context) (string, error) {
		_, _, version, err := p.platform(ctx)
		return strings.TrimSpace(version), err
	})
	if version != "" {
		return version
	}
	version = query(ctx, p, "native os version", p.env.OSVersion)
	if version != "" {
		return version
	}
	return model.Unknown
}

// query runs f with a deadline and turns errors and panics into the zero value.
func query[T any](ctx context.Context, p *Prober, what string, f func(context.Context) (T, error)) (ret T) {
	var zero T
	defer func() {
		if r := recover(); r != nil {
			slog.WarnContext(ctx, "host query panicked", "query", what, "panic", fmt.Sprint(r))
			ret = zero
		}
	}()
	if f == nil {
		return zero
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	v, err := f(ctx)
	if err != nil {
		slog.DebugContext(ctx, "host query failed", "query", what, "error", err)
		return zero
	}
	return v
}

// OSName maps GOOS to the names the presentation layer knows.
func OSName(goos string) string {
	switch goos {
	case "darwin":
		return "macos"
	case "linux", "windows", "freebsd", "openbsd", "netbsd", "android", "ios", "illumos", "solaris":
		return goos
	default:
		return model.Unknown
	}
}

// Arch maps GOARCH to the closed set of architecture tags.
func Arch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "x86"
	case "arm", "riscv64", "ppc64le", "s390x":
		return goarch
	default:
		return model.Unknown
	}
}
