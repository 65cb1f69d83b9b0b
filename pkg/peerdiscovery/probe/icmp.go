package probe

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync"
	"sync/atomic"

	mapsutil "github.com/projectdiscovery/utils/maps"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const (
	// protocolICMP is the IANA protocol number for ICMPv4
	protocolICMP  = 1
	maxPacketSize = 1500
)

var echoPayload = []byte("netscan-liveness")

// pendingEcho tracks a sent echo request waiting for its reply
type pendingEcho struct {
	addr  netip.Addr
	reply chan bool
}

// ICMP probes hosts with ICMP echo requests sent over one shared socket
type ICMP struct {
	conn       *icmp.PacketConn
	privileged bool
	id         int
	seq        atomic.Uint32

	// sequence number -> waiting probe
	pending *mapsutil.SyncLockMap[int, *pendingEcho]

	done      chan struct{}
	closeOnce sync.Once
}

// NewICMP opens the shared ICMP socket and starts the reply receiver.
// privileged selects a raw "ip4:icmp" socket, otherwise an unprivileged
// "udp4" datagram socket is used and the kernel owns the echo identifier.
func NewICMP(privileged bool) (*ICMP, error) {
	network := "udp4"
	if privileged {
		network = "ip4:icmp"
	}

	conn, err := icmp.ListenPacket(network, "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", network, err)
	}

	p := &ICMP{
		conn:       conn,
		privileged: privileged,
		id:         os.Getpid() & 0xffff,
		pending:    mapsutil.NewSyncLockMap[int, *pendingEcho](),
		done:       make(chan struct{}),
	}
	go p.receive()

	return p, nil
}

func (p *ICMP) String() string {
	if p.privileged {
		return "icmp"
	}
	return "icmp (unprivileged)"
}

// Probe sends one echo request to addr and waits for the reply until ctx expires
func (p *ICMP) Probe(ctx context.Context, addr netip.Addr) (bool, error) {
	if !addr.Is4() {
		return false, fmt.Errorf("%s is not an IPv4 address", addr)
	}

	seq := int(p.seq.Add(1) & 0xffff)
	pending := &pendingEcho{addr: addr, reply: make(chan bool, 1)}
	_ = p.pending.Set(seq, pending)
	defer p.pending.Delete(seq)

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   p.id,
			Seq:  seq,
			Data: echoPayload,
		},
	}
	msgBytes, err := msg.Marshal(nil)
	if err != nil {
		return false, fmt.Errorf("failed to marshal ICMP message: %w", err)
	}

	var dst net.Addr = &net.IPAddr{IP: addr.AsSlice()}
	if !p.privileged {
		dst = &net.UDPAddr{IP: addr.AsSlice()}
	}
	if _, err := p.conn.WriteTo(msgBytes, dst); err != nil {
		return false, fmt.Errorf("failed to send echo request to %s: %w", addr, err)
	}

	select {
	case alive := <-pending.reply:
		return alive, nil
	case <-ctx.Done():
		return false, nil
	case <-p.done:
		return false, net.ErrClosed
	}
}

// Close stops the receiver and releases the socket
func (p *ICMP) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.conn.Close()
	})
	return err
}

// receive reads ICMP messages until the socket is closed
func (p *ICMP) receive() {
	buf := make([]byte, maxPacketSize)
	for {
		n, peer, err := p.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-p.done:
				return
			default:
			}
			continue
		}
		p.handle(buf[:n], peer)
	}
}

// handle resolves the pending probe a message answers, if any
func (p *ICMP) handle(data []byte, peer net.Addr) {
	msg, err := icmp.ParseMessage(protocolICMP, data)
	if err != nil {
		return
	}

	switch msg.Type {
	case ipv4.ICMPTypeEchoReply:
		echo, ok := msg.Body.(*icmp.Echo)
		if !ok {
			return
		}
		// unprivileged sockets get their identifier rewritten by the kernel
		if p.privileged && echo.ID != p.id {
			return
		}
		from, ok := peerAddr(peer)
		if !ok {
			return
		}
		p.resolve(echo.Seq, from, true)

	case ipv4.ICMPTypeDestinationUnreachable:
		unreach, ok := msg.Body.(*icmp.DstUnreach)
		if !ok {
			return
		}
		dst, id, seq, ok := quotedEcho(unreach.Data)
		if !ok || (p.privileged && id != p.id) {
			return
		}
		p.resolve(seq, dst, false)
	}
}

func (p *ICMP) resolve(seq int, from netip.Addr, alive bool) {
	pending, exists := p.pending.Get(seq)
	if !exists || pending.addr != from {
		return
	}
	select {
	case pending.reply <- alive:
	default:
	}
}

// quotedEcho extracts the destination, identifier and sequence number of the
// echo request quoted inside an ICMP error message (original IPv4 header
// followed by the first 8 bytes of its payload).
func quotedEcho(data []byte) (dst netip.Addr, id, seq int, ok bool) {
	if len(data) < ipv4.HeaderLen {
		return netip.Addr{}, 0, 0, false
	}
	headerLen := int(data[0]&0x0f) << 2
	if headerLen < ipv4.HeaderLen || len(data) < headerLen+8 {
		return netip.Addr{}, 0, 0, false
	}
	if data[9] != protocolICMP {
		return netip.Addr{}, 0, 0, false
	}

	quoted := data[headerLen:]
	if quoted[0] != byte(ipv4.ICMPTypeEcho) {
		return netip.Addr{}, 0, 0, false
	}

	dst = netip.AddrFrom4([4]byte(data[16:20]))
	id = int(binary.BigEndian.Uint16(quoted[4:6]))
	seq = int(binary.BigEndian.Uint16(quoted[6:8]))
	return dst, id, seq, true
}

func peerAddr(peer net.Addr) (netip.Addr, bool) {
	var ip net.IP
	switch v := peer.(type) {
	case *net.IPAddr:
		ip = v.IP
	case *net.UDPAddr:
		ip = v.IP
	default:
		return netip.Addr{}, false
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
