package netscan

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"
)

var errNoNetlink = errors.New("netlink not accessible")

const (
	// TCP_LISTEN of include/net/tcp_states.h
	tcpListen = 10

	// sizes of inet_diag_req_v2 and inet_diag_msg, linux/inet_diag.h
	diagReqLen = 56
	diagMsgLen = 72
)

// lookupOwner asks sock_diag for the TCP listeners of both families and
// returns the first one serving ap.
func lookupOwner(ap netip.AddrPort) (Owner, bool, error) {
	c, err := netlink.Dial(unix.NETLINK_SOCK_DIAG, nil)
	if err != nil {
		return Owner{}, false, fmt.Errorf("%w: %w", errNoNetlink, err)
	}
	defer func() {
		_ = c.Close()
	}()

	for _, family := range []uint8{unix.AF_INET, unix.AF_INET6} {
		msgs, err := c.Execute(netlink.Message{
			Header: netlink.Header{
				Type:  unix.SOCK_DIAG_BY_FAMILY,
				Flags: netlink.Request | netlink.Dump,
			},
			Data: diagRequest(family),
		})
		if err != nil {
			return Owner{}, false, fmt.Errorf("dump listeners of family %d: %w", family, err)
		}
		for _, m := range msgs {
			if m.Header.Type == netlink.Done {
				continue
			}
			o, ok := parseDiagMsg(m.Data)
			if ok && matches(o.Addr, ap) {
				return o, true, nil
			}
		}
	}
	return Owner{}, false, nil
}

// diagRequest is an inet_diag_req_v2 for every listening TCP socket of family.
func diagRequest(family uint8) []byte {
	req := make([]byte, diagReqLen)
	req[0] = family
	req[1] = unix.IPPROTO_TCP
	binary.NativeEndian.PutUint32(req[4:8], 1<<tcpListen)
	return req
}

// parseDiagMsg decodes the source address, uid and inode of an inet_diag_msg.
// Ports are big endian, the trailing fields are in host order.
func parseDiagMsg(b []byte) (Owner, bool) {
	if len(b) < diagMsgLen {
		return Owner{}, false
	}
	iplen := 4
	if b[0] == unix.AF_INET6 {
		iplen = 16
	}
	addr, ok := netip.AddrFromSlice(b[8 : 8+iplen])
	if !ok {
		return Owner{}, false
	}
	return Owner{
		Addr:  netip.AddrPortFrom(addr, binary.BigEndian.Uint16(b[4:6])),
		UID:   binary.NativeEndian.Uint32(b[64:68]),
		Inode: binary.NativeEndian.Uint32(b[68:72]),
	}, true
}
