package quic

import (
	"context"
	"fmt"
	"net"

	"github.com/ventosilenzioso/go-quicmini/pkg/logger"
	"github.com/ventosilenzioso/go-quicmini/pkg/metrics"
	"github.com/ventosilenzioso/go-quicmini/pkg/transport"
	"github.com/ventosilenzioso/go-quicmini/pkg/wire"
)

// ackResponseOffset is added to an incoming packet number to derive the
// packet number of the ACK that responds to it, keeping response packet
// numbers out of the sender's own numbering space.
const ackResponseOffset = 100000

// Receiver coalesces incoming packet numbers into a single contiguous range
// and emits one ACK per gap or per AckThreshold packets, whichever comes
// first (spec.md §4.5).
type Receiver struct {
	cfg  ReceiverConfig
	link transport.ServerLink

	connID uint64

	largestAcked int64
	curRangeLen  uint64

	packetsSeen uint64

	metrics *metrics.Registry
}

// ReceiverOpt configures optional Receiver dependencies.
type ReceiverOpt func(*Receiver)

// WithReceiverMetrics attaches a metrics.Registry; nil is safe.
func WithReceiverMetrics(reg *metrics.Registry) ReceiverOpt {
	return func(r *Receiver) { r.metrics = reg }
}

// NewReceiver builds a Receiver bound to link, identified by connID.
func NewReceiver(link transport.ServerLink, connID uint64, cfg ReceiverConfig, opts ...ReceiverOpt) *Receiver {
	r := &Receiver{
		cfg:          cfg,
		link:         link,
		connID:       connID,
		largestAcked: -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConnID returns this receiver's connection identity.
func (r *Receiver) ConnID() uint64 { return r.connID }

// PacketsSeen returns the total number of packets parsed so far.
func (r *Receiver) PacketsSeen() uint64 { return r.packetsSeen }

// ReceivePacket blocks for one incoming datagram, parses it, and — for an
// INITIAL packet — updates the contiguous-range tracker, emitting an ACK
// back to addr whenever a gap appears or the range hits AckThreshold.
func (r *Receiver) ReceivePacket(ctx context.Context) (wire.Packet, net.Addr, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	buf := make([]byte, maxDatagramSize)
	n, addr, err := r.link.RecvFrom(buf)
	if err != nil {
		return nil, addr, err
	}
	pkt, err := wire.ParsePacket(buf[:n])
	if err != nil {
		return nil, addr, err
	}
	r.packetsSeen++

	ip, ok := pkt.(*wire.InitialPacket)
	if !ok {
		return pkt, addr, nil
	}

	if err := r.observe(ctx, ip.PacketNumber, addr); err != nil {
		return pkt, addr, err
	}
	return pkt, addr, nil
}

// observe folds one incoming packet number into the contiguous-range
// tracker, emitting an ACK when the range must close.
func (r *Receiver) observe(ctx context.Context, pn uint64, addr net.Addr) error {
	expected := r.largestAcked + int64(r.curRangeLen) + 1

	switch {
	case int64(pn) == expected && r.curRangeLen != r.cfg.AckThreshold:
		r.curRangeLen++
	case int64(pn) > expected || r.curRangeLen == r.cfg.AckThreshold:
		if r.curRangeLen > 0 {
			if err := r.emitAck(ctx, addr, int64(pn)); err != nil {
				return err
			}
		}
		r.largestAcked = int64(pn) - 1
		r.curRangeLen = 1
	default:
		// pn < expected: a duplicate or already-acknowledged packet number,
		// ignored.
	}
	return nil
}

// emitAck closes out the current contiguous range into an ACK frame and
// sends it back to addr. The response packet's own number is derived from
// triggeringPN, the packet number that caused this ACK to be emitted
// (spec.md §4.5), not from any value carried in the ACK frame itself.
func (r *Receiver) emitAck(ctx context.Context, addr net.Addr, triggeringPN int64) error {
	largest := uint64(r.largestAcked + int64(r.curRangeLen))
	ack := &wire.AckFrame{
		LargestAcknowledged: largest,
		FirstAckRange:       r.curRangeLen - 1,
	}
	r.metrics.ObserveAckRange(r.curRangeLen)

	responsePN := uint64(triggeringPN) + ackResponseOffset
	logger.DebugFields(logger.Fields{
		"packet_number": responsePN,
	}, "receiver %d: ACKing %d-%d", r.connID, r.largestAcked+1, largest)

	response := wire.NewInitialPacket(responsePN, 0, r.connID, ack)
	buf, err := response.AppendTo(nil)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.link.SendTo(buf, addr); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Flush emits an ACK for whatever contiguous range is currently pending,
// even if it hasn't reached AckThreshold. Callers use this to acknowledge
// a final short range once a stream's FIN has been observed.
func (r *Receiver) Flush(ctx context.Context, addr net.Addr) error {
	if r.curRangeLen == 0 {
		return nil
	}
	// Flush has no real incoming packet to trigger it; it synthesizes the
	// same number the range's next packet would have had.
	triggeringPN := r.largestAcked + int64(r.curRangeLen) + 1
	if err := r.emitAck(ctx, addr, triggeringPN); err != nil {
		return err
	}
	r.largestAcked += int64(r.curRangeLen)
	r.curRangeLen = 0
	return nil
}
