// Package client implements the HTTP client pipeline that multiplexes
// HTTP/1.1 and HTTP/2 over a per-destination connection pool (spec.md
// 4.10), grounded on the teacher's single-owner serve loop
// (_teacher_ref/server.go's serverConn.serve select loop) generalized from
// one HTTP/2 server connection's event loop into one completion thread
// shared by every Destination, per spec.md 5's "single-threaded
// completion-driven pump".
package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"github.com/on-keyday/dnet/client/urlnorm"
	"github.com/on-keyday/dnet/internal/deferred"
	"github.com/on-keyday/dnet/internal/xlog"
)

// Client owns the destination cache and the single completion thread that
// all protocol state mutation runs on (spec.md 5).
type Client struct {
	mu        sync.Mutex
	dests     map[string]*Destination
	tlsConfig *tls.Config

	queue  *deferred.Queue
	dialer net.Dialer

	ctx    context.Context
	cancel context.CancelFunc

	Log xlog.Logger
}

// NewClient starts the completion thread and returns a ready Client.
func NewClient() *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		dests:  make(map[string]*Destination),
		queue:  deferred.New(256),
		ctx:    ctx,
		cancel: cancel,
	}
	go c.queue.Run(ctx)
	return c
}

// Close stops the completion thread. Destinations already connected keep
// their sockets open until the process exits; Close is for tests and
// graceful shutdown paths that don't need to drain in-flight requests.
func (c *Client) Close() { c.cancel() }

// SetTLSConfig installs the TLS configuration used for https destinations
// (spec.md 6 "set_tls_config(cfg)").
func (c *Client) SetTLSConfig(cfg *tls.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tlsConfig = cfg
}

func (c *Client) currentTLSConfig() *tls.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tlsConfig
}

// Request canonicalizes uri, looks up (or creates) the Destination for its
// host:port, and enqueues cb's request. It returns immediately with a
// Response handle the caller waits on (spec.md 6 "request(uri, cb)").
func (c *Client) Request(rawURI string, cb UserCallback) (*Response, error) {
	u, err := urlnorm.Normalize(rawURI)
	if err != nil {
		return nil, newError(KindApplication, "URI parse error", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, newError(KindApplication, fmt.Sprintf("scheme not http/https: %q", u.Scheme), nil)
	}
	useTLS := u.Scheme == "https"
	if useTLS && c.currentTLSConfig() == nil {
		return nil, newError(KindApplication, "missing TLS config for https", nil)
	}

	port := u.Port()
	if port == "" {
		if useTLS {
			port = "443"
		} else {
			port = "80"
		}
	}
	key := u.Hostname() + ":" + port

	d := c.destinationFor(key, u.Hostname(), port, useTLS)
	resp := newResponse()
	pr := &pendingRequest{
		cb:   cb,
		resp: resp,
		rw:   cb.DoRequest(),
		rr:   cb.DoResponse(),
		path: u.EscapedPath(),
		host: u.Host,
	}
	if pr.path == "" {
		pr.path = "/"
	}
	c.queue.Push(func() { d.enqueue(pr) })
	return resp, nil
}

func (c *Client) destinationFor(key, host, port string, useTLS bool) *Destination {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.dests[key]; ok {
		return d
	}
	d := newDestination(c, key, host, port, useTLS)
	c.dests[key] = d
	return d
}
