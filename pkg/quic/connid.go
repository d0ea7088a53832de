package quic

import (
	"hash/fnv"

	"github.com/rs/xid"
)

// NewConnID mints a fresh connection identity: an xid (globally unique,
// sortable, no coordination needed) folded down to the uint64 the wire
// format's connection-ID field carries.
func NewConnID() uint64 {
	return FoldConnID(xid.New())
}

// FoldConnID reduces a 12-byte xid to a uint64 via FNV-1a, so the wire
// format doesn't need a variable-width connection-ID identity scheme on top
// of the one it already has for packet numbers.
func FoldConnID(id xid.ID) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(id.Bytes())
	return h.Sum64()
}
