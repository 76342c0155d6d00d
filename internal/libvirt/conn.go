package libvirt

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"sync"
	"time"

	golibvirt "github.com/digitalocean/go-libvirt"
)

// Conn owns the single libvirt RPC connection and its reconnect loop.
type Conn struct {
	mu        sync.RWMutex
	client    *golibvirt.Libvirt
	uri       string
	logger    *slog.Logger
	retryWait time.Duration
	maxJitter time.Duration
	rnd       *rand.Rand
}

func NewConn(uri string, retryWait, maxJitter time.Duration, logger *slog.Logger) *Conn {
	if retryWait <= 0 {
		retryWait = 3 * time.Second
	}
	if maxJitter < 0 {
		maxJitter = 0
	}
	return &Conn{
		uri:       uri,
		logger:    logger,
		retryWait: retryWait,
		maxJitter: maxJitter,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Connect dials until it succeeds or ctx ends.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialLocked(ctx)
}

// Client returns the live client, dialing first if there is none.
func (c *Conn) Client(ctx context.Context) (*golibvirt.Libvirt, error) {
	c.mu.RLock()
	cl := c.client
	c.mu.RUnlock()
	if cl != nil {
		return cl, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.dialLocked(ctx); err != nil {
		return nil, err
	}
	return c.client, nil
}

func (c *Conn) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
	return c.dialLocked(ctx)
}

// Healthy probes the connection with a cheap version call.
func (c *Conn) Healthy(ctx context.Context) error {
	cl, err := c.Client(ctx)
	if err != nil {
		return err
	}
	if _, err := cl.Version(); err != nil {
		return fmt.Errorf("libvirt version probe: %w", err)
	}
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect()
	c.client = nil
	return err
}

func (c *Conn) dropLocked() {
	if c.client == nil {
		return
	}
	if err := c.client.Disconnect(); err != nil {
		c.logger.Warn("libvirt disconnect failed", "error", err)
	}
	c.client = nil
}

func (c *Conn) dialLocked(ctx context.Context) error {
	if c.client != nil {
		if _, err := c.client.Version(); err == nil {
			return nil
		}
		c.dropLocked()
	}

	uri, err := parseURI(c.uri)
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cl, dialErr := golibvirt.ConnectToURI(uri)
		if dialErr == nil {
			c.client = cl
			c.logger.Info("libvirt connected", "uri", uri.Redacted())
			return nil
		}

		wait := c.retryWait + c.jitter()
		c.logger.Error("libvirt connect failed", "uri", uri.Redacted(), "error", dialErr, "retry_in", wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Conn) jitter() time.Duration {
	if c.maxJitter == 0 {
		return 0
	}
	return time.Duration(c.rnd.Int63n(int64(c.maxJitter)))
}

// parseURI falls back to the local system hypervisor when raw has no scheme.
func parseURI(raw string) (*url.URL, error) {
	if raw == "" {
		raw = string(golibvirt.QEMUSystem)
	}
	uri, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse libvirt uri %q: %w", raw, err)
	}
	if uri.Scheme == "" {
		return url.Parse(string(golibvirt.QEMUSystem))
	}
	return uri, nil
}
