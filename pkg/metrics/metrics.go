// Package metrics exposes the reliability core's counters and gauges as
// Prometheus collectors (spec.md DOMAIN STACK). A nil *Registry is valid and
// every method on it is a no-op, so instrumentation stays optional.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry wraps the Prometheus collectors the sender and receiver report
// to.
type Registry struct {
	reg *prometheus.Registry

	packetsSent          prometheus.Counter
	packetsRetransmitted prometheus.Counter
	packetsAcked         prometheus.Counter
	smoothedRTT          prometheus.Gauge
	rttvar               prometheus.Gauge
	ackRangeLength       prometheus.Histogram
}

// New builds a Registry with all collectors registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quic_packets_sent_total",
			Help: "INITIAL packets sent, including retransmissions.",
		}),
		packetsRetransmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quic_packets_retransmitted_total",
			Help: "Packets resent after is_lost fired.",
		}),
		packetsAcked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quic_packets_acked_total",
			Help: "Packet numbers newly covered by an incoming ACK range.",
		}),
		smoothedRTT: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quic_smoothed_rtt_microseconds",
			Help: "Current smoothed RTT estimate.",
		}),
		rttvar: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quic_rttvar_microseconds",
			Help: "Current RTT variance estimate.",
		}),
		ackRangeLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quic_ack_range_length",
			Help:    "Length of each emitted ACK range.",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		}),
	}
	reg.MustRegister(
		r.packetsSent,
		r.packetsRetransmitted,
		r.packetsAcked,
		r.smoothedRTT,
		r.rttvar,
		r.ackRangeLength,
	)
	return r
}

// Registerer exposes the underlying registry for registering further
// collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	if r == nil {
		return nil
	}
	return r.reg
}

// Gatherer exposes the underlying registry for an HTTP /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return nil
	}
	return r.reg
}

// PacketSent records a send, original or retransmitted.
func (r *Registry) PacketSent() {
	if r == nil {
		return
	}
	r.packetsSent.Inc()
}

// PacketRetransmitted records a packet sent again after is_lost fired.
func (r *Registry) PacketRetransmitted() {
	if r == nil {
		return
	}
	r.packetsRetransmitted.Inc()
}

// PacketAcked records one packet number covered by an incoming ACK range.
func (r *Registry) PacketAcked() {
	if r == nil {
		return
	}
	r.packetsAcked.Inc()
}

// ObserveRTT records the current smoothed RTT and RTT variance, both in
// microseconds.
func (r *Registry) ObserveRTT(smoothed, rttvar float64) {
	if r == nil {
		return
	}
	r.smoothedRTT.Set(smoothed)
	r.rttvar.Set(rttvar)
}

// ObserveAckRange records the length of an emitted ACK range.
func (r *Registry) ObserveAckRange(length uint64) {
	if r == nil {
		return
	}
	r.ackRangeLength.Observe(float64(length))
}
