//go:build !linux

package netscan

import (
	"errors"
	"net/netip"
)

var errNoNetlink = errors.New("netlink is available only on Linux")

func lookupOwner(netip.AddrPort) (Owner, bool, error) {
	return Owner{}, false, errNoNetlink
}
