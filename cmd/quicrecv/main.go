// Command quicrecv listens for a quicsend transfer and writes the received
// stream to disk.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ventosilenzioso/go-quicmini/pkg/logger"
	"github.com/ventosilenzioso/go-quicmini/pkg/metrics"
	"github.com/ventosilenzioso/go-quicmini/pkg/quic"
	"github.com/ventosilenzioso/go-quicmini/pkg/transport"
	"github.com/ventosilenzioso/go-quicmini/pkg/wire"
)

const version = "1.0.0"

func main() {
	host := flag.String("host", "0.0.0.0", "bind host")
	port := flag.Int("port", 5555, "bind port")
	out := flag.String("out", "received.bin", "path to write the received stream to")
	ackThreshold := flag.Uint64("ack-threshold", 10, "contiguous-range length before an ACK is emitted")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	flag.Parse()

	logger.Banner("quicrecv", version)

	reg := metrics.New()
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics server stopped: %v", err)
			}
		}()
		logger.Info("metrics exposed on %s/metrics", *metricsAddr)
	}

	link, err := transport.ListenUDP(*host, *port, 200*time.Millisecond)
	if err != nil {
		logger.Fatal("listen %s:%d: %v", *host, *port, err)
	}
	defer link.Close()

	connID := quic.NewConnID()
	receiver := quic.NewReceiver(link, connID, quic.ReceiverConfig{AckThreshold: *ackThreshold}, quic.WithReceiverMetrics(reg))
	logger.InfoCyan("connection %d listening on %s:%d, writing to %s", connID, *host, *port, *out)

	reassembler, err := quic.NewReassembler(*out)
	if err != nil {
		logger.Fatal("open output %s: %v", *out, err)
	}
	defer reassembler.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warn("received signal %v, stopping", sig)
		cancel()
	}()

	if err := receiveFile(ctx, receiver, reassembler); err != nil {
		logger.Fatal("receive failed: %v", err)
	}
	logger.Success("transfer complete: %d packets seen, written to %s", receiver.PacketsSeen(), *out)
}

func receiveFile(ctx context.Context, receiver *quic.Receiver, reassembler *quic.Reassembler) error {
	for !reassembler.Done() {
		pkt, addr, err := receiver.ReceivePacket(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrRecvTimeout) {
				continue
			}
			return err
		}

		ip, ok := pkt.(*wire.InitialPacket)
		if !ok {
			continue
		}
		for _, f := range ip.Frames {
			sf, ok := f.(*wire.StreamFrame)
			if !ok {
				continue
			}
			if err := reassembler.Write(sf); err != nil {
				return err
			}
		}
		if reassembler.Done() {
			return receiver.Flush(ctx, addr)
		}
	}
	return nil
}
