//go:build linux

package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

var current Environment = linuxEnv{}

type linuxEnv struct{}

func (linuxEnv) MinerPath(dir string) string {
	return filepath.Join(dir, "binaries", "xmrig")
}

func (linuxEnv) CPUName(_ context.Context) (string, error) {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()
	return ParseCPUInfo(f)
}

// OSVersion prefers the distribution release and falls back to the kernel one.
func (linuxEnv) OSVersion(_ context.Context) (string, error) {
	f, err := os.Open("/etc/os-release")
	if err == nil {
		defer func() {
			_ = f.Close()
		}()
		if v, err := ParseOSRelease(f); err == nil {
			return v, nil
		}
	}

	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}
	release := unix.ByteSliceToString(uts.Release[:])
	if release == "" {
		return "", ErrUnsupported
	}
	return release, nil
}

func (linuxEnv) Terminate(p *os.Process) error {
	return p.Signal(unix.SIGTERM)
}
