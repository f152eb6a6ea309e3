package h1

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// readerState is where a ResponseReader is paused, mirroring the teacher's
// readFrameCh/serve split of "I need more input; stash my offset and
// return" (_teacher_ref/server.go's readFrames loop), but for an
// HTTP/1.1 response instead of an HTTP/2 frame stream.
type readerState int

const (
	stateStatusLine readerState = iota
	stateHeaders
	stateBodyContentLength
	stateBodyChunkSize
	stateBodyChunkData
	stateBodyChunkCRLF
	stateBodyChunkTrailer
	stateBodyUntilClose
	stateDone
)

// ResponseReader is a resumable HTTP/1.1 response parser (spec.md 4.9): when
// fed a short buffer it saves its offset and reports ErrNeedMore so the
// pump can refill input and resume, rather than blocking on a full read.
type ResponseReader struct {
	state   readerState
	pending []byte // unconsumed bytes carried across Feed calls

	StatusCode int
	Status     string
	Header     [][2]string
	noBody     bool
	headCall   bool

	chunkRemaining int64
	contentRemaining int64

	onStatus func(code int, status string)
	onHeader func(name, value string)
	onBody   func(p []byte)
	onDone   func()
}

// ErrNeedMore is returned by Feed when the buffer was fully consumed but the
// response is not finished. The reader keeps any unparsed bytes itself, so
// the caller calls Feed again with only the bytes that arrive next.
var ErrNeedMore = errors.New("h1: need more input")

// NewResponseReader constructs a reader that calls back as it decodes a
// response. isHead must be true when the reader is parsing the response to
// a HEAD request (spec.md 4.9 "No-body responses... or HEAD finish
// immediately").
func NewResponseReader(isHead bool, onStatus func(int, string), onHeader func(string, string), onBody func([]byte), onDone func()) *ResponseReader {
	return &ResponseReader{state: stateStatusLine, headCall: isHead, onStatus: onStatus, onHeader: onHeader, onBody: onBody, onDone: onDone}
}

// Feed appends p to any carried-over bytes and parses as far as it can. It
// returns ErrNeedMore if more input is required; any other non-nil error is
// a malformed response. Once the response is fully parsed, subsequent Feed
// calls return (0, nil) immediately ("Done").
func (r *ResponseReader) Feed(p []byte) (consumed int, err error) {
	if r.state == stateDone {
		return 0, nil
	}
	buf := p
	if len(r.pending) > 0 {
		buf = append(append([]byte(nil), r.pending...), p...)
	}
	total := len(buf)
	for {
		switch r.state {
		case stateStatusLine:
			line, rest, ok := cutLine(buf)
			if !ok {
				r.save(buf)
				return total - len(buf), ErrNeedMore
			}
			if err := r.parseStatusLine(line); err != nil {
				return total - len(buf), err
			}
			buf = rest
			r.state = stateHeaders
		case stateHeaders:
			line, rest, ok := cutLine(buf)
			if !ok {
				r.save(buf)
				return total - len(buf), ErrNeedMore
			}
			buf = rest
			if len(line) == 0 {
				if err := r.finishHeaders(); err != nil {
					return total - len(buf), err
				}
				continue
			}
			name, value, err := splitHeaderLine(line)
			if err != nil {
				return total - len(buf), err
			}
			r.Header = append(r.Header, [2]string{name, value})
			if r.onHeader != nil {
				r.onHeader(name, value)
			}
		case stateBodyContentLength:
			if r.contentRemaining == 0 {
				r.finish()
				continue
			}
			n := int64(len(buf))
			if n > r.contentRemaining {
				n = r.contentRemaining
			}
			if n == 0 {
				r.save(buf)
				return total - len(buf), ErrNeedMore
			}
			if r.onBody != nil {
				r.onBody(buf[:n])
			}
			r.contentRemaining -= n
			buf = buf[n:]
			if r.contentRemaining == 0 {
				r.finish()
			}
		case stateBodyChunkSize:
			line, rest, ok := cutLine(buf)
			if !ok {
				r.save(buf)
				return total - len(buf), ErrNeedMore
			}
			buf = rest
			size, err := parseChunkSizeLine(line)
			if err != nil {
				return total - len(buf), err
			}
			r.chunkRemaining = size
			if size == 0 {
				r.state = stateBodyChunkTrailer
			} else {
				r.state = stateBodyChunkData
			}
		case stateBodyChunkData:
			n := int64(len(buf))
			if n > r.chunkRemaining {
				n = r.chunkRemaining
			}
			if n == 0 && r.chunkRemaining > 0 {
				r.save(buf)
				return total - len(buf), ErrNeedMore
			}
			if n > 0 {
				if r.onBody != nil {
					r.onBody(buf[:n])
				}
				r.chunkRemaining -= n
				buf = buf[n:]
			}
			if r.chunkRemaining == 0 {
				r.state = stateBodyChunkCRLF
			}
		case stateBodyChunkCRLF:
			if len(buf) < 2 {
				r.save(buf)
				return total - len(buf), ErrNeedMore
			}
			if buf[0] != '\r' || buf[1] != '\n' {
				return total - len(buf), errors.New("h1: malformed chunk terminator")
			}
			buf = buf[2:]
			r.state = stateBodyChunkSize
		case stateBodyChunkTrailer:
			line, rest, ok := cutLine(buf)
			if !ok {
				r.save(buf)
				return total - len(buf), ErrNeedMore
			}
			buf = rest
			if len(line) == 0 {
				r.finish()
				continue
			}
			// trailer header; decoded but not delivered as a body event.
			if _, _, err := splitHeaderLine(line); err != nil {
				return total - len(buf), err
			}
		case stateBodyUntilClose:
			if len(buf) > 0 {
				if r.onBody != nil {
					r.onBody(buf)
				}
				buf = nil
			}
			r.save(buf)
			return total - len(buf), ErrNeedMore
		case stateDone:
			r.save(buf)
			return total - len(buf), nil
		}
	}
}

// Close signals that the connection closed; for a stateBodyUntilClose
// response (no Content-Length, no chunked encoding) this is what marks the
// body complete.
func (r *ResponseReader) Close() {
	if r.state == stateBodyUntilClose {
		r.finish()
	}
}

func (r *ResponseReader) save(buf []byte) {
	if len(buf) == 0 {
		r.pending = nil
		return
	}
	r.pending = append(r.pending[:0], buf...)
}

func (r *ResponseReader) finish() {
	r.state = stateDone
	r.pending = nil
	if r.onDone != nil {
		r.onDone()
	}
}

func (r *ResponseReader) parseStatusLine(line []byte) error {
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) < 2 {
		return fmt.Errorf("h1: malformed status line %q", line)
	}
	code, err := strconv.Atoi(string(parts[1]))
	if err != nil {
		return fmt.Errorf("h1: malformed status code %q", parts[1])
	}
	r.StatusCode = code
	if len(parts) == 3 {
		r.Status = string(bytes.TrimSpace(parts[2]))
	}
	if r.onStatus != nil {
		r.onStatus(r.StatusCode, r.Status)
	}
	return nil
}

func (r *ResponseReader) finishHeaders() error {
	if r.noBodyStatus() {
		r.finish()
		return nil
	}
	if v, ok := r.headerValue("Transfer-Encoding"); ok && hasToken(v, "chunked") {
		r.state = stateBodyChunkSize
		return nil
	}
	if v, ok := r.headerValue("Content-Length"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("h1: malformed Content-Length %q", v)
		}
		r.contentRemaining = n
		r.state = stateBodyContentLength
		return nil
	}
	r.state = stateBodyUntilClose
	return nil
}

// noBodyStatus reports whether this response has no body per RFC 9110
// section 6.4.1: 1xx, 204, 304, or any response to a HEAD request
// (spec.md 4.9).
func (r *ResponseReader) noBodyStatus() bool {
	if r.headCall {
		return true
	}
	if r.StatusCode/100 == 1 {
		return true
	}
	return r.StatusCode == 204 || r.StatusCode == 304
}

func (r *ResponseReader) headerValue(name string) (string, bool) {
	for _, h := range r.Header {
		if equalFoldASCII(h[0], name) {
			return h[1], true
		}
	}
	return "", false
}

func cutLine(buf []byte) (line, rest []byte, ok bool) {
	i := bytes.IndexByte(buf, '\n')
	if i < 0 {
		return nil, buf, false
	}
	line = buf[:i]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, buf[i+1:], true
}

func splitHeaderLine(line []byte) (name, value string, err error) {
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return "", "", fmt.Errorf("h1: malformed header line %q", line)
	}
	name = string(bytes.TrimSpace(line[:i]))
	value = string(bytes.TrimSpace(line[i+1:]))
	if name == "" {
		return "", "", fmt.Errorf("h1: empty header name in %q", line)
	}
	return name, value, nil
}

func parseChunkSizeLine(line []byte) (int64, error) {
	if i := bytes.IndexByte(line, ';'); i >= 0 {
		line = line[:i] // chunk extensions are ignored
	}
	return strconv.ParseInt(string(bytes.TrimSpace(line)), 16, 64)
}

func hasToken(v, token string) bool {
	for _, part := range bytes.Split([]byte(v), []byte(",")) {
		if equalFoldASCII(string(bytes.TrimSpace(part)), token) {
			return true
		}
	}
	return false
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
