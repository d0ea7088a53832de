// Command quicsend sends one file over the reliability core to a
// quicrecv listener.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
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
)

const version = "1.0.0"

func main() {
	host := flag.String("host", "127.0.0.1", "receiver host")
	port := flag.Int("port", 5555, "receiver port")
	file := flag.String("file", "", "path of the file to send")
	chunkSize := flag.Int("chunk-size", 1200, "bytes per STREAM frame")
	reorderThreshold := flag.Uint64("reorder-threshold", 15, "packet-number gap before the reorder loss heuristic fires")
	waitThreshold := flag.Uint64("wait-threshold", 40, "smoothed-RTT multiplier for tail-loss probe pacing")
	ackDetect := flag.Bool("ack-detect", true, "enable the reorder-distance loss heuristic")
	timeDetect := flag.Bool("time-detect", true, "enable the RTT-time loss heuristic")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	flag.Parse()

	logger.Banner("quicsend", version)

	if *file == "" {
		logger.Fatal("missing required -file flag")
	}

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

	link, err := transport.DialUDP(*host, *port, 50*time.Millisecond)
	if err != nil {
		logger.Fatal("dial %s:%d: %v", *host, *port, err)
	}
	defer link.Close()

	cfg := quic.DefaultConfig()
	cfg.ReorderThreshold = *reorderThreshold
	cfg.WaitThreshold = *waitThreshold
	cfg.AckDetect = *ackDetect
	cfg.TimeDetect = *timeDetect

	srcConnID := quic.NewConnID()
	sender := quic.NewSender(link, 0, srcConnID, cfg, quic.WithSenderMetrics(reg))
	logger.InfoCyan("connection %d sending %s to %s:%d", srcConnID, *file, *host, *port)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warn("received signal %v, aborting transfer", sig)
		cancel()
	}()

	if err := sendFile(ctx, sender, *file, *chunkSize); err != nil {
		logger.Fatal("transfer failed: %v", err)
	}
	logger.Success("transfer complete: %d packets sent", sender.PacketsSent())
}

func sendFile(ctx context.Context, sender *quic.Sender, path string, chunkSize int) error {
	chunker, err := sender.NewChunker(path, chunkSize)
	if err != nil {
		return err
	}
	defer chunker.Close()

	for {
		frame, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if _, err := sender.SendFrames(ctx, frame); err != nil {
			return fmt.Errorf("send frame at offset %d: %w", *frame.Offset, err)
		}
		if err := drainAvailableAcks(ctx, sender); err != nil {
			return err
		}
	}

	return sender.DrainUnacked(ctx)
}

// drainAvailableAcks processes whatever ACKs have already arrived without
// blocking the send loop on an idle link.
func drainAvailableAcks(ctx context.Context, sender *quic.Sender) error {
	for {
		_, _, err := sender.ReceivePacket(ctx)
		if err == nil {
			continue
		}
		if err == transport.ErrRecvTimeout {
			return nil
		}
		return err
	}
}
