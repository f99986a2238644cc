//go:build windows

package host

import (
	"context"
	"os"
	"path/filepath"
)

var current Environment = windowsEnv{}

// windowsEnv leaves CPU name and OS version to gopsutil, which asks WMI
type windowsEnv struct{}

func (windowsEnv) MinerPath(dir string) string {
	return filepath.Join(dir, "binaries", "xmrig.exe")
}

func (windowsEnv) CPUName(_ context.Context) (string, error) {
	return "", ErrUnsupported
}

func (windowsEnv) OSVersion(_ context.Context) (string, error) {
	return "", ErrUnsupported
}

// Terminate kills p, windows has no SIGTERM for console-less children.
func (windowsEnv) Terminate(p *os.Process) error {
	return p.Kill()
}
