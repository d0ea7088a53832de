package quic

import "errors"

// ErrSendFailed wraps a transport-level send failure encountered while
// emitting a packet from the reliability core.
var ErrSendFailed = errors.New("quic: send failed")

// ErrNotInitial is returned when a caller expects an INITIAL packet (the
// only variant that carries frames) but received something else.
var ErrNotInitial = errors.New("quic: not an initial packet")
