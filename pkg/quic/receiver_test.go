package quic

import (
	"context"
	"testing"

	"github.com/ventosilenzioso/go-quicmini/pkg/transport"
	"github.com/ventosilenzioso/go-quicmini/pkg/wire"
)

func TestReceiverCoalescesContiguousRange(t *testing.T) {
	client, serverLink := transport.NewMemoryServerLinkPair(16)
	r := NewReceiver(serverLink, 99, ReceiverConfig{AckThreshold: 10})
	ctx := context.Background()

	for pn := uint64(0); pn < 5; pn++ {
		pkt := wire.NewInitialPacket(pn, 1, 2)
		buf, err := pkt.AppendTo(nil)
		if err != nil {
			t.Fatalf("AppendTo: %v", err)
		}
		if err := client.Send(buf); err != nil {
			t.Fatalf("client.Send: %v", err)
		}
		if _, _, err := r.ReceivePacket(ctx); err != nil {
			t.Fatalf("ReceivePacket: %v", err)
		}
	}

	if r.curRangeLen != 5 {
		t.Errorf("curRangeLen = %d, want 5 (no ACK should have been emitted yet)", r.curRangeLen)
	}
	if r.largestAcked != -1 {
		t.Errorf("largestAcked = %d, want -1 (range not yet closed)", r.largestAcked)
	}
}

func TestReceiverEmitsAckOnGap(t *testing.T) {
	client, serverLink := transport.NewMemoryServerLinkPair(16)
	client.SetTimeout(5 * 1e6) // 5ms, avoid slow test failures
	r := NewReceiver(serverLink, 99, ReceiverConfig{AckThreshold: 100})
	ctx := context.Background()

	send := func(pn uint64) {
		pkt := wire.NewInitialPacket(pn, 1, 2)
		buf, err := pkt.AppendTo(nil)
		if err != nil {
			t.Fatalf("AppendTo: %v", err)
		}
		if err := client.Send(buf); err != nil {
			t.Fatalf("client.Send: %v", err)
		}
		if _, _, err := r.ReceivePacket(ctx); err != nil {
			t.Fatalf("ReceivePacket: %v", err)
		}
	}

	send(0)
	send(1)
	send(2)
	// Gap: packet 4 instead of 3 forces the receiver to close [0,2] with an
	// ACK before starting a new range at 4.
	send(4)

	buf := make([]byte, 2048)
	n, err := client.Recv(buf)
	if err != nil {
		t.Fatalf("expected an ACK datagram on gap, got error: %v", err)
	}
	pkt, err := wire.ParsePacket(buf[:n])
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	ip, ok := pkt.(*wire.InitialPacket)
	if !ok {
		t.Fatalf("parsed %T, want *InitialPacket", pkt)
	}
	if len(ip.Frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(ip.Frames))
	}
	ack, ok := ip.Frames[0].(*wire.AckFrame)
	if !ok {
		t.Fatalf("frame %T, want *AckFrame", ip.Frames[0])
	}
	if ack.LargestAcknowledged != 2 || ack.SmallestAcknowledged() != 0 {
		t.Errorf("ack = %+v, want range [0,2]", ack)
	}

	if r.largestAcked != 3 {
		t.Errorf("largestAcked = %d, want 3 (packet 4 starts a fresh range)", r.largestAcked)
	}
	if r.curRangeLen != 1 {
		t.Errorf("curRangeLen = %d, want 1", r.curRangeLen)
	}
}

func TestReceiverEmitsAckAtThreshold(t *testing.T) {
	client, serverLink := transport.NewMemoryServerLinkPair(16)
	r := NewReceiver(serverLink, 99, ReceiverConfig{AckThreshold: 3})
	ctx := context.Background()

	for pn := uint64(0); pn < 3; pn++ {
		pkt := wire.NewInitialPacket(pn, 1, 2)
		buf, err := pkt.AppendTo(nil)
		if err != nil {
			t.Fatalf("AppendTo: %v", err)
		}
		if err := client.Send(buf); err != nil {
			t.Fatalf("client.Send: %v", err)
		}
		if _, _, err := r.ReceivePacket(ctx); err != nil {
			t.Fatalf("ReceivePacket: %v", err)
		}
	}

	// The threshold-th packet (pn=2) hits AckThreshold=3 on the *next*
	// packet's observation, so close the range explicitly via Flush and
	// confirm it reports the expected bounds.
	if err := r.Flush(ctx, nil); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	buf := make([]byte, 2048)
	n, err := client.Recv(buf)
	if err != nil {
		t.Fatalf("expected a flushed ACK: %v", err)
	}
	pkt, err := wire.ParsePacket(buf[:n])
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	ack := pkt.(*wire.InitialPacket).Frames[0].(*wire.AckFrame)
	if ack.LargestAcknowledged != 2 {
		t.Errorf("LargestAcknowledged = %d, want 2", ack.LargestAcknowledged)
	}
}
