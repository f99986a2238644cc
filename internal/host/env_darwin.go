//go:build darwin

package host

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

var current Environment = darwinEnv{}

type darwinEnv struct{}

func (darwinEnv) MinerPath(dir string) string {
	return filepath.Join(dir, "binaries", "xmrig")
}

func (darwinEnv) CPUName(_ context.Context) (string, error) {
	return sysctl("machdep.cpu.brand_string")
}

func (darwinEnv) OSVersion(_ context.Context) (string, error) {
	return sysctl("kern.osproductversion")
}

func (darwinEnv) Terminate(p *os.Process) error {
	return p.Signal(unix.SIGTERM)
}

func sysctl(name string) (string, error) {
	v, err := unix.Sysctl(name)
	if err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", ErrUnsupported
	}
	return v, nil
}
