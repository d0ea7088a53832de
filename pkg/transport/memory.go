package transport

import (
	"net"
	"time"
)

// MemoryLink is an in-process Link, backed by a pair of buffered channels,
// used to drive the reliability core in tests without a real socket.
// NewMemoryLinkPair wires two of them back to back.
type MemoryLink struct {
	out     chan []byte
	in      chan []byte
	timeout time.Duration
	drop    func(seq int, b []byte) bool
	seq     int
}

// NewMemoryLinkPair returns two MemoryLinks, each reading what the other
// sends.
func NewMemoryLinkPair(buffer int) (*MemoryLink, *MemoryLink) {
	ab := make(chan []byte, buffer)
	ba := make(chan []byte, buffer)
	a := &MemoryLink{out: ab, in: ba, timeout: 50 * time.Millisecond}
	b := &MemoryLink{out: ba, in: ab, timeout: 50 * time.Millisecond}
	return a, b
}

// SetDrop installs a predicate that, given the 0-based send sequence number
// and the datagram, reports whether that send should be silently dropped —
// used to simulate loss in loss-detection tests.
func (m *MemoryLink) SetDrop(f func(seq int, b []byte) bool) {
	m.drop = f
}

// SetTimeout overrides the default Recv timeout.
func (m *MemoryLink) SetTimeout(d time.Duration) {
	m.timeout = d
}

// Send implements transport.Link.
func (m *MemoryLink) Send(b []byte) error {
	cp := append([]byte(nil), b...)
	seq := m.seq
	m.seq++
	if m.drop != nil && m.drop(seq, cp) {
		return nil
	}
	select {
	case m.out <- cp:
		return nil
	default:
		return ErrRecvTimeout
	}
}

// Recv implements transport.Link.
func (m *MemoryLink) Recv(buf []byte) (int, error) {
	select {
	case b := <-m.in:
		return copy(buf, b), nil
	case <-time.After(m.timeout):
		return 0, ErrRecvTimeout
	}
}

// Close implements transport.Link.
func (m *MemoryLink) Close() error { return nil }

// memoryAddr is a net.Addr stand-in for memory-backed tests.
type memoryAddr string

func (a memoryAddr) Network() string { return "memory" }
func (a memoryAddr) String() string  { return string(a) }

// MemoryServerLink adapts a MemoryLink to the ServerLink shape, returning a
// fixed peer address for every datagram — enough for receiver tests, which
// never need more than one correspondent.
type MemoryServerLink struct {
	*MemoryLink
	peer net.Addr
}

// NewMemoryServerLinkPair returns a client-side Link and a server-side
// ServerLink wired back to back, with a synthetic peer address.
func NewMemoryServerLinkPair(buffer int) (*MemoryLink, *MemoryServerLink) {
	client, server := NewMemoryLinkPair(buffer)
	return client, &MemoryServerLink{MemoryLink: server, peer: memoryAddr("memory-client")}
}

// RecvFrom implements transport.ServerLink.
func (m *MemoryServerLink) RecvFrom(buf []byte) (int, net.Addr, error) {
	n, err := m.MemoryLink.Recv(buf)
	return n, m.peer, err
}

// SendTo implements transport.ServerLink.
func (m *MemoryServerLink) SendTo(b []byte, _ net.Addr) error {
	return m.MemoryLink.Send(b)
}
