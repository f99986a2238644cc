// Package netscan checks loopback TCP ports before a worker is asked to
// bind them.
package netscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
)

// ErrPortInUse is matched by every error CheckFree returns for a taken port.
var ErrPortInUse = errors.New("port in use")

// Owner is the listening socket holding a port, as the kernel reports it.
type Owner struct {
	Addr  netip.AddrPort
	UID   uint32
	Inode uint32
}

// PortInUseError is returned by CheckFree. Owner is nil when the kernel
// could not be asked, e.g. outside Linux.
type PortInUseError struct {
	Addr  netip.AddrPort
	Owner *Owner
	Err   error
}

func (e *PortInUseError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Addr, ErrPortInUse)
	if e.Owner != nil {
		msg += fmt.Sprintf(" by listener %s (uid %d, inode %d)", e.Owner.Addr, e.Owner.UID, e.Owner.Inode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PortInUseError) Unwrap() []error {
	return []error{ErrPortInUse, e.Err}
}

// Loopback returns 127.0.0.1:port.
func Loopback(port uint16) netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), port)
}

// CheckFree returns nil when ap can be bound right now. When it cannot, the
// error names the socket holding the port if the kernel tells.
func CheckFree(ctx context.Context, ap netip.AddrPort) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", ap.String())
	if err == nil {
		return ln.Close()
	}
	ret := &PortInUseError{Addr: ap, Err: err}
	owner, found, lerr := lookupOwner(ap)
	switch {
	case lerr != nil && !errors.Is(lerr, errNoNetlink):
		slog.DebugContext(ctx, "netlink access failed, owner of the port is unknown", "err", lerr)
	case found:
		ret.Owner = &owner
	}
	return ret
}

// matches tells whether a listener on l serves connections to ap.
func matches(l, ap netip.AddrPort) bool {
	if l.Port() != ap.Port() {
		return false
	}
	a := l.Addr().Unmap()
	return a.IsUnspecified() || a == ap.Addr().Unmap()
}
