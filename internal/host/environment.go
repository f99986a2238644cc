// Package host answers questions about the machine the worker runs on. OS
// specific code lives behind Environment, one implementation per platform
// selected at build time.
package host

import (
	"context"
	"errors"
	"os"
)

// ErrUnsupported is returned by Environment queries a platform has no
// native way to answer.
var ErrUnsupported = errors.New("not supported on this platform")

// Environment is the seam for everything that differs between operating systems.
type Environment interface {
	// MinerPath returns the worker executable below dir.
	MinerPath(dir string) string
	// CPUName queries the CPU brand string natively.
	CPUName(ctx context.Context) (string, error)
	// OSVersion queries the OS release natively.
	OSVersion(ctx context.Context) (string, error)
	// Terminate asks p to exit.
	Terminate(p *os.Process) error
}

// Current returns the Environment of the running platform.
func Current() Environment {
	return current
}
