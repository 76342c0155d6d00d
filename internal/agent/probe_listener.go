package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

const probeWriteTimeout = 2 * time.Second

// runProbeListener answers raw TCP probes from load balancers that cannot
// speak HTTP. Each connection gets one status line and is closed.
func (a *Agent) runProbeListener(ctx context.Context) error {
	addr := strings.TrimSpace(a.cfg.ProbeListenAddr)
	if addr == "" {
		a.logger.Info("probe endpoint disabled")
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen probe endpoint %s: %w", addr, err)
	}
	defer func() { _ = ln.Close() }()

	a.logger.Info("probe endpoint listening", "addr", addr)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, acceptErr := ln.Accept()
		if acceptErr != nil {
			if ctx.Err() != nil || errors.Is(acceptErr, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept probe endpoint %s: %w", addr, acceptErr)
		}
		a.answerProbe(conn)
	}
}

func (a *Agent) answerProbe(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(probeWriteTimeout))

	status := "ok"
	if !a.health.libvirtConnected.Load() || !a.health.storeConnected.Load() {
		status = "degraded"
	}
	_, _ = fmt.Fprintf(conn, "autoguard:%s %s\n", status, a.cfg.NodeID)
}
