//go:build !linux && !darwin && !windows

package host

import (
	"context"
	"os"
	"path/filepath"
)

var current Environment = otherEnv{}

type otherEnv struct{}

func (otherEnv) MinerPath(dir string) string {
	return filepath.Join(dir, "binaries", "xmrig")
}

func (otherEnv) CPUName(_ context.Context) (string, error) {
	return "", ErrUnsupported
}

func (otherEnv) OSVersion(_ context.Context) (string, error) {
	return "", ErrUnsupported
}

func (otherEnv) Terminate(p *os.Process) error {
	return p.Kill()
}
