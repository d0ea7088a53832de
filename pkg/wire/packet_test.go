package wire

import (
	"bytes"
	"testing"
)

func TestInitialPacketRoundTrip(t *testing.T) {
	stream := NewStreamFrame(3, 0, []byte("payload"), true)
	pkt := NewInitialPacket(5, 0xdead, 0xbeef, stream)

	buf, err := pkt.AppendTo(nil)
	if err != nil {
		t.Fatalf("AppendTo: %v", err)
	}

	parsed, err := ParsePacket(buf)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	ip, ok := parsed.(*InitialPacket)
	if !ok {
		t.Fatalf("parsed %T, want *InitialPacket", parsed)
	}
	if ip.PacketNumber != 5 || ip.DstConnID != 0xdead || ip.SrcConnID != 0xbeef || ip.Version != SupportedVersion {
		t.Errorf("header mismatch: %+v", ip)
	}
	if len(ip.Frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(ip.Frames))
	}
	sf, ok := ip.Frames[0].(*StreamFrame)
	if !ok {
		t.Fatalf("frame %T, want *StreamFrame", ip.Frames[0])
	}
	if !bytes.Equal(sf.Data, []byte("payload")) || !sf.Finish {
		t.Errorf("frame mismatch: %+v", sf)
	}
}

func TestInitialPacketMultipleFrames(t *testing.T) {
	s1 := NewStreamFrame(1, 0, []byte("abc"), false)
	s2 := NewStreamFrame(1, 3, []byte("def"), true)
	ack := &AckFrame{LargestAcknowledged: 10, FirstAckRange: 4}
	pkt := NewInitialPacket(100, 1, 2, s1, s2, ack)

	buf, err := pkt.AppendTo(nil)
	if err != nil {
		t.Fatalf("AppendTo: %v", err)
	}
	parsed, err := ParsePacket(buf)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	ip := parsed.(*InitialPacket)
	if len(ip.Frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(ip.Frames))
	}
}

func TestInitialPacketEmptyToken(t *testing.T) {
	pkt := NewInitialPacket(0, 1, 2)
	buf, err := pkt.AppendTo(nil)
	if err != nil {
		t.Fatalf("AppendTo: %v", err)
	}
	parsed, err := ParsePacket(buf)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	ip := parsed.(*InitialPacket)
	if len(ip.Token) != 0 {
		t.Errorf("expected empty token, got %d bytes", len(ip.Token))
	}
	if len(ip.Frames) != 0 {
		t.Errorf("expected no frames, got %d", len(ip.Frames))
	}
}

func TestParsePacketWrongVersion(t *testing.T) {
	pkt := NewInitialPacket(0, 1, 2)
	buf, err := pkt.AppendTo(nil)
	if err != nil {
		t.Fatalf("AppendTo: %v", err)
	}
	// Version occupies bytes [1:5].
	buf[1] = 0xff
	if _, err := ParsePacket(buf); err == nil {
		t.Error("ParsePacket with bad version should fail")
	}
}

func TestParsePacketTruncated(t *testing.T) {
	pkt := NewInitialPacket(0, 1, 2, NewStreamFrame(1, 0, []byte("x"), true))
	buf, err := pkt.AppendTo(nil)
	if err != nil {
		t.Fatalf("AppendTo: %v", err)
	}
	if _, err := ParsePacket(buf[:len(buf)-2]); err == nil {
		t.Error("ParsePacket with truncated buffer should fail")
	}
}

func TestShortPacketRoundTrip(t *testing.T) {
	pkt := &ShortPacket{SpinBit: true, DstConnID: 0x1234, PacketNumber: 9000}
	buf, err := pkt.AppendTo(nil)
	if err != nil {
		t.Fatalf("AppendTo: %v", err)
	}

	parsed, err := ParsePacket(buf)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	sp, ok := parsed.(*ShortPacket)
	if !ok {
		t.Fatalf("parsed %T, want *ShortPacket", parsed)
	}
	if !sp.SpinBit || sp.KeyPhase || sp.DstConnID != 0x1234 || sp.PacketNumber != 9000 {
		t.Errorf("round trip mismatch: %+v", sp)
	}
}

func TestPacketNumberLengthHeaderLimit(t *testing.T) {
	// Packet numbers whose minimal encoding needs more than 4 bytes can't
	// be represented in the header's 2-bit length-minus-one field.
	pkt := NewInitialPacket(1<<40, 0, 0)
	if _, err := pkt.AppendTo(nil); err == nil {
		t.Error("expected error for packet number exceeding header field width")
	}
}
