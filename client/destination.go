package client

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/on-keyday/dnet/httpmux/h1"
	"github.com/on-keyday/dnet/httpmux/h2"
	"golang.org/x/net/http2/hpack"
)

type protocol int

const (
	protoUnknown protocol = iota
	protoH1
	protoH2
)

// pendingRequest bundles a UserCallback's writer/reader pair with the
// Response handle the user waits on, plus the canonicalized target
// (spec.md 6).
type pendingRequest struct {
	cb   UserCallback
	resp *Response
	rw   RequestWriter
	rr   ResponseReader
	host string
	path string
}

// Destination owns one TCP (optionally TLS) socket for a single host:port
// and dispatches queued requests over HTTP/1.1 or HTTP/2 once the protocol
// is known (spec.md 4.10). Every field here is mutated only on the
// client's completion thread (spec.md 5 "owned exclusively by the
// completion thread; no internal locking required for its fields");
// background goroutines (connect, TLS handshake, socket read/write) only
// ever communicate back in by pushing a callback onto Client.queue.
type Destination struct {
	client *Client
	key    string
	host   string
	port   string
	useTLS bool

	connecting bool
	conn       net.Conn
	proto      protocol

	transportErr error

	writeCh chan []byte

	// HTTP/1.1: strict request-response serialization (spec.md 4.10).
	h1Queue   []*pendingRequest
	h1Writing bool
	h1Reader  *h1.ResponseReader
	h1Writer  *h1.RequestWriter

	// HTTP/2: concurrent streams over one handler.
	h2Handler *h2.Handler
	h2Streams map[uint32]*pendingRequest
}

func newDestination(c *Client, key, host, port string, useTLS bool) *Destination {
	return &Destination{
		client:  c,
		key:     key,
		host:    host,
		port:    port,
		useTLS:  useTLS,
		writeCh: make(chan []byte, 64),
		h1Writer: h1.NewRequestWriter(),
	}
}

// enqueue runs on the completion thread: it records pr and, if no
// connection attempt is in flight, starts one.
func (d *Destination) enqueue(pr *pendingRequest) {
	if d.transportErr != nil {
		pr.resp.complete(d.transportErr)
		return
	}
	switch d.proto {
	case protoH2:
		d.openH2Stream(pr)
		return
	case protoH1:
		d.h1Queue = append(d.h1Queue, pr)
		d.pumpH1()
		return
	}
	d.h1Queue = append(d.h1Queue, pr) // parked until the protocol is known
	if d.conn == nil && !d.connecting {
		d.connecting = true
		go d.connectAndHandshake()
	}
}

// fail marks the destination fatally broken and completes every pending
// request with err (spec.md 7 "Transport/protocol errors are held on the
// Destination; every pending request is completed with that error").
func (d *Destination) fail(err error) {
	if d.transportErr != nil {
		return
	}
	d.transportErr = err
	for _, pr := range d.h1Queue {
		pr.resp.complete(err)
	}
	d.h1Queue = nil
	for id, pr := range d.h2Streams {
		pr.resp.complete(err)
		delete(d.h2Streams, id)
	}
	if d.conn != nil {
		d.conn.Close()
	}
}

// connectAndHandshake runs on a background goroutine: DNS resolution is
// delegated to net.Dialer, TCP connect and (if https) the TLS handshake
// with ALPN happen here, then the result is delivered back to the
// completion thread as a deferred callback (spec.md 4.10, 5).
func (d *Destination) connectAndHandshake() {
	conn, err := d.client.dialer.Dial("tcp", net.JoinHostPort(d.host, d.port))
	if err != nil {
		d.client.queue.Push(func() { d.onConnected(nil, "", err) })
		return
	}
	if !d.useTLS {
		d.client.queue.Push(func() { d.onConnected(conn, "", nil) })
		return
	}
	cfg := d.client.currentTLSConfig().Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = d.host
	}
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = []string{"h2", "http/1.1"}
	}
	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(d.client.ctx); err != nil {
		conn.Close()
		d.client.queue.Push(func() { d.onConnected(nil, "", err) })
		return
	}
	proto := tlsConn.ConnectionState().NegotiatedProtocol
	d.client.queue.Push(func() { d.onConnected(tlsConn, proto, nil) })
}

// onConnected runs on the completion thread once connectAndHandshake
// finishes (spec.md 4.10 step 4: "After handshake, ALPN decides protocol:
// h2 -> HTTP/2; absent or http/1.1 -> HTTP/1.1").
func (d *Destination) onConnected(conn net.Conn, alpn string, err error) {
	d.connecting = false
	if err != nil {
		d.fail(newError(KindTransport, "connect failed", err))
		return
	}
	d.conn = conn
	go d.writePump()

	if alpn == "h2" {
		d.proto = protoH2
		d.h2Handler = h2.NewHandler()
		d.h2Streams = make(map[uint32]*pendingRequest)
		go d.readPumpH2()
		d.flushH2()
		pending := d.h1Queue
		d.h1Queue = nil
		for _, pr := range pending {
			d.openH2Stream(pr)
		}
		return
	}
	d.proto = protoH1
	go d.readPumpH1()
	d.pumpH1()
}

func (d *Destination) writePump() {
	for p := range d.writeCh {
		if _, err := d.conn.Write(p); err != nil {
			d.client.queue.Push(func() { d.fail(newError(KindTransport, "write failed", err)) })
			return
		}
	}
}

// ---- HTTP/1.1 ----

func (d *Destination) pumpH1() {
	if d.h1Writing || len(d.h1Queue) == 0 || d.proto != protoH1 {
		return
	}
	pr := d.h1Queue[0]
	d.h1Writing = true
	go d.writeH1Request(pr)
}

func (d *Destination) writeH1Request(pr *pendingRequest) {
	headers := pr.rw.Headers()
	body, fin := pr.rw.Body()

	var out []byte
	var err error
	if fin {
		out, err = d.h1Writer.WriteRequest(nil, pr.rw.Method(), pr.path, pr.host, headers, int64(len(body)), false)
	} else {
		out, err = d.h1Writer.WriteRequest(nil, pr.rw.Method(), pr.path, pr.host, headers, 0, true)
	}
	if err != nil {
		d.client.queue.Push(func() { d.onH1WriteDone(pr, err) })
		return
	}
	if fin {
		out = append(out, body...)
	} else {
		for {
			if len(body) > 0 {
				out = h1.WriteChunk(out, body)
			}
			if fin {
				out = h1.WriteChunk(out, nil) // terminating zero-length chunk
				break
			}
			body, fin = pr.rw.Body()
		}
	}
	d.writeCh <- out
	d.client.queue.Push(func() { d.onH1WriteDone(pr, nil) })
}

func (d *Destination) onH1WriteDone(pr *pendingRequest, err error) {
	d.h1Writing = false
	if err != nil {
		d.fail(newError(KindTransport, "request write failed", err))
		return
	}
	isHead := pr.rw.Method() == "HEAD"
	d.h1Reader = h1.NewResponseReader(isHead,
		pr.rr.OnStatus,
		pr.rr.OnHeader,
		pr.rr.OnData,
		func() { d.onH1ResponseDone(pr, nil) },
	)
}

// readPumpH1 runs once for the lifetime of an HTTP/1.1 connection, since
// keep-alive reuses the same socket across a FIFO of responses; it never
// touches Destination fields directly, only delivering bytes and errors
// back to the completion thread (spec.md 5).
func (d *Destination) readPumpH1() {
	buf := make([]byte, 4096)
	for {
		n, err := d.conn.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			d.client.queue.Push(func() { d.onH1Data(data) })
		}
		if err != nil {
			d.client.queue.Push(func() { d.onH1ReadError(err) })
			return
		}
	}
}

func (d *Destination) onH1Data(data []byte) {
	if d.h1Reader == nil {
		return
	}
	_, err := d.h1Reader.Feed(data)
	if err != nil && !errors.Is(err, h1.ErrNeedMore) {
		d.fail(newError(KindProtocol, "malformed HTTP/1.1 response", err))
	}
}

func (d *Destination) onH1ReadError(err error) {
	if errors.Is(err, io.EOF) {
		if d.h1Reader != nil {
			d.h1Reader.Close() // finishes an until-close body, if that's what was pending
		}
		return
	}
	d.fail(newError(KindTransport, "connection read failed", err))
}

func (d *Destination) onH1ResponseDone(pr *pendingRequest, err error) {
	d.h1Reader = nil
	if len(d.h1Queue) > 0 && d.h1Queue[0] == pr {
		d.h1Queue = d.h1Queue[1:]
	}
	if err == nil {
		pr.rr.OnDone()
	}
	pr.resp.complete(err)
	d.pumpH1()
}

// ---- HTTP/2 ----

func (d *Destination) openH2Stream(pr *pendingRequest) {
	headers := buildH2Headers(pr)
	body, fin := pr.rw.Body()
	bodiless := fin && len(body) == 0

	app := &h2RequestApp{d: d, pr: pr}
	id, err := d.h2Handler.OpenStream(headers, bodiless, app)
	if err != nil {
		pr.resp.complete(newError(KindProtocol, "failed to open HTTP/2 stream", err))
		d.flushH2()
		return
	}
	app.id = id
	d.h2Streams[id] = pr
	d.flushH2()
	if bodiless {
		return
	}

	for {
		for len(body) > 0 || fin {
			n, blocked, werr := d.h2Handler.WriteData(id, body, fin)
			if werr != nil {
				pr.resp.complete(newError(KindProtocol, "failed to write HTTP/2 body", werr))
				d.flushH2()
				return
			}
			d.flushH2()
			if blocked {
				// Flow-control blocked; a full implementation would retry
				// once a WINDOW_UPDATE arrives instead of giving up here.
				return
			}
			body = body[n:]
			if len(body) == 0 {
				break
			}
		}
		if fin {
			return
		}
		body, fin = pr.rw.Body()
	}
}

func buildH2Headers(pr *pendingRequest) []hpack.HeaderField {
	out := []hpack.HeaderField{
		{Name: ":method", Value: pr.rw.Method()},
		{Name: ":scheme", Value: "https"},
		{Name: ":authority", Value: pr.host},
		{Name: ":path", Value: pr.path},
	}
	for _, h := range pr.rw.Headers() {
		out = append(out, hpack.HeaderField{Name: strings.ToLower(h[0]), Value: h[1]})
	}
	return out
}

func (d *Destination) readPumpH2() {
	for {
		f, err := h2.ReadFrame(d.conn, d.h2Handler.MaxFrameSize())
		if err != nil {
			d.client.queue.Push(func() { d.fail(newError(KindTransport, "HTTP/2 read failed", err)) })
			return
		}
		frame := f
		d.client.queue.Push(func() { d.onH2Frame(frame) })
	}
}

func (d *Destination) onH2Frame(f h2.Frame) {
	if err := d.h2Handler.HandleFrame(f); err != nil {
		switch e := err.(type) {
		case h2.ConnectionError:
			d.h2Handler.SendGoAway(h2.ErrCode(e))
			d.flushH2()
			d.fail(newError(KindProtocol, "HTTP/2 connection error", e))
		case h2.StreamError:
			if pr, ok := d.h2Streams[e.StreamID]; ok {
				pr.resp.complete(newError(KindProtocol, "HTTP/2 stream error", e))
				delete(d.h2Streams, e.StreamID)
			}
		default:
			d.fail(newError(KindProtocol, "HTTP/2 error", err))
		}
		return
	}
	d.flushH2()
}

func (d *Destination) flushH2() {
	out := d.h2Handler.DrainOutput()
	if len(out) == 0 {
		return
	}
	d.writeCh <- out
}
