package wire

import "math/bits"

// PacketNumberLength returns the number of bytes needed to encode pn in the
// minimal big-endian form: ceil((floor(log2(pn+1))+1)/8). Unlike VarInt this
// is not restricted to {1,2,4,8}; any width from 1 to 8 bytes can occur.
func PacketNumberLength(pn uint64) int {
	numUnacked := pn + 1
	floorLog2 := bits.Len64(numUnacked) - 1
	minBits := floorLog2 + 1
	return (minBits + 7) / 8
}

// EncodePacketNumber writes pn into its minimal big-endian encoding.
func EncodePacketNumber(pn uint64) []byte {
	n := PacketNumberLength(pn)
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(pn)
		pn >>= 8
	}
	return out
}

// DecodePacketNumber reads n big-endian bytes into a packet number.
func DecodePacketNumber(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = (v << 8) | uint64(c)
	}
	return v
}
