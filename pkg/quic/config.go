package quic

// Config tunes the loss-detection heuristics and RTT/probe behavior of a
// Sender (spec.md §4.4). The zero value is not useful; build one with
// DefaultConfig and Option overrides.
type Config struct {
	// AckDetect enables the reorder-distance heuristic: a packet is a loss
	// candidate once the largest acknowledged packet number is at least
	// ReorderThreshold above its own.
	AckDetect bool
	// TimeDetect enables the RTT-based time heuristic.
	TimeDetect bool
	// ReorderThreshold is the packet-number gap before the reorder
	// heuristic fires.
	ReorderThreshold uint64
	// WaitThreshold scales the smoothed RTT into a tail-probe sleep
	// interval: sleep = smoothedRTT * WaitThreshold.
	WaitThreshold uint64
	// InitialRTT seeds the RTT estimator, in microseconds, before the
	// first sample arrives.
	InitialRTT float64
}

// DefaultConfig mirrors the original implementation's defaults.
func DefaultConfig() Config {
	return Config{
		AckDetect:        true,
		TimeDetect:       true,
		ReorderThreshold: 15,
		WaitThreshold:    40,
		InitialRTT:       100000,
	}
}

// Option mutates a Config in place.
type Option func(*Config)

// WithAckDetect toggles the reorder-distance loss heuristic.
func WithAckDetect(enabled bool) Option {
	return func(c *Config) { c.AckDetect = enabled }
}

// WithTimeDetect toggles the RTT-based time loss heuristic.
func WithTimeDetect(enabled bool) Option {
	return func(c *Config) { c.TimeDetect = enabled }
}

// WithReorderThreshold sets the packet-number gap the reorder heuristic
// requires before firing.
func WithReorderThreshold(n uint64) Option {
	return func(c *Config) { c.ReorderThreshold = n }
}

// WithWaitThreshold sets the RTT multiplier used to pace tail-loss probes.
func WithWaitThreshold(n uint64) Option {
	return func(c *Config) { c.WaitThreshold = n }
}

// WithInitialRTT seeds the RTT estimator before any sample has arrived.
func WithInitialRTT(microseconds float64) Option {
	return func(c *Config) { c.InitialRTT = microseconds }
}

// ReceiverConfig tunes the ACK range coalescer (spec.md §4.5).
type ReceiverConfig struct {
	// AckThreshold is the maximum contiguous-range length the receiver
	// accumulates before it must emit an ACK.
	AckThreshold uint64
}

// DefaultReceiverConfig mirrors the original implementation's default.
func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{AckThreshold: 10}
}

// ReceiverOption mutates a ReceiverConfig in place.
type ReceiverOption func(*ReceiverConfig)

// WithAckThreshold sets the maximum contiguous-range length before an ACK
// is emitted.
func WithAckThreshold(n uint64) ReceiverOption {
	return func(c *ReceiverConfig) { c.AckThreshold = n }
}
