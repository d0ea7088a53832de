package wire

import (
	"bytes"
	"testing"

	"github.com/go-test/deep"
)

func TestStreamFrameRoundTrip(t *testing.T) {
	f := NewStreamFrame(7, 1200, []byte("hello world"), true)
	buf, err := f.AppendTo(nil)
	if err != nil {
		t.Fatalf("AppendTo: %v", err)
	}

	got, err := DecodeFrame(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	sf, ok := got.(*StreamFrame)
	if !ok {
		t.Fatalf("decoded %T, want *StreamFrame", got)
	}
	if sf.StreamID != 7 || *sf.Offset != 1200 || !sf.Finish || !bytes.Equal(sf.Data, []byte("hello world")) {
		t.Errorf("round trip mismatch: %+v", sf)
	}
}

func TestStreamFrameNotFinish(t *testing.T) {
	f := NewStreamFrame(1, 0, []byte("chunk"), false)
	buf, err := f.AppendTo(nil)
	if err != nil {
		t.Fatalf("AppendTo: %v", err)
	}
	if buf[0]&0x01 != 0 {
		t.Errorf("type byte should not set FIN bit: 0x%02x", buf[0])
	}
}

func TestAckFrameRoundTrip(t *testing.T) {
	f := &AckFrame{LargestAcknowledged: 42, FirstAckRange: 9}
	buf, err := f.AppendTo(nil)
	if err != nil {
		t.Fatalf("AppendTo: %v", err)
	}

	got, err := DecodeFrame(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	af, ok := got.(*AckFrame)
	if !ok {
		t.Fatalf("decoded %T, want *AckFrame", got)
	}
	if af.LargestAcknowledged != 42 || af.FirstAckRange != 9 {
		t.Errorf("round trip mismatch: %+v", af)
	}
	if af.SmallestAcknowledged() != 33 {
		t.Errorf("SmallestAcknowledged() = %d, want 33", af.SmallestAcknowledged())
	}
	if diff := deep.Equal(af, f); diff != nil {
		t.Errorf("decoded frame differs from original: %v", diff)
	}
}

func TestDecodeFrameUnknownType(t *testing.T) {
	_, err := DecodeFrame(bytes.NewReader([]byte{0xff}))
	if err == nil {
		t.Error("DecodeFrame(unknown type) should fail")
	}
}
