// Package h1 implements the HTTP/1.1 request writer and resumable response
// reader used by the client pipeline (spec.md 4.9), grounded on the
// teacher's header canonicalization (_teacher_ref/server.go's
// canonicalHeader/canonHeader map) generalized from decoding HPACK-derived
// header names to canonicalizing request header names before they are
// written to the wire, and on golang.org/x/net/http/httpguts for
// token/header-value validation.
package h1

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"golang.org/x/net/http/httpguts"
)

// RequestWriter appends a request line, canonicalized headers, and body
// chunks into an HTTP/1.1 output buffer (spec.md 4.9).
type RequestWriter struct {
	// canon caches header-name canonicalization the way the teacher's
	// serverConn.canonHeader map caches HPACK-name -> Go-canonical-case.
	canon map[string]string
}

// NewRequestWriter returns a RequestWriter ready to use.
func NewRequestWriter() *RequestWriter {
	return &RequestWriter{canon: make(map[string]string)}
}

func (w *RequestWriter) canonicalHeader(name string) string {
	if cv, ok := w.canon[name]; ok {
		return cv
	}
	cv := http.CanonicalHeaderKey(name)
	w.canon[name] = cv
	return cv
}

// WriteRequest appends the request line and headers for method/path to dst,
// validating that header names and values are well-formed HTTP tokens
// (spec.md 4.9, RFC 9110 section 5.1). It does not append a body; callers
// append chunks separately via WriteChunk so that streamed request bodies
// never need to be buffered whole. It is a convenience wrapper around
// (*RequestWriter).WriteRequest for callers that don't need to reuse the
// header-canonicalization cache across requests.
func WriteRequest(dst []byte, method, path, host string, headers [][2]string, contentLength int64, chunked bool) ([]byte, error) {
	return NewRequestWriter().WriteRequest(dst, method, path, host, headers, contentLength, chunked)
}

// WriteRequest is the method form of WriteRequest, reusing w's
// header-canonicalization cache across calls (one RequestWriter per
// Destination amortizes repeated header names the way the teacher's
// serverConn reuses one canonHeader map for the life of a connection).
func (w *RequestWriter) WriteRequest(dst []byte, method, path, host string, headers [][2]string, contentLength int64, chunked bool) ([]byte, error) {
	dst = append(dst, method...)
	dst = append(dst, ' ')
	dst = append(dst, path...)
	dst = append(dst, " HTTP/1.1\r\n"...)

	seen := make(map[string]string, len(headers)+2)
	order := make([]string, 0, len(headers)+2)

	add := func(name, value string) error {
		if !httpguts.ValidHeaderFieldName(name) {
			return fmt.Errorf("h1: invalid header name %q", name)
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return fmt.Errorf("h1: invalid header value for %q", name)
		}
		cv := w.canonicalHeader(name)
		if _, ok := seen[cv]; !ok {
			order = append(order, cv)
		}
		seen[cv] = value
		return nil
	}

	if err := add("Host", host); err != nil {
		return dst, err
	}
	for _, h := range headers {
		if err := add(h[0], h[1]); err != nil {
			return dst, err
		}
	}
	switch {
	case chunked:
		seen["Transfer-Encoding"] = "chunked"
		if _, ok := indexOf(order, "Transfer-Encoding"); !ok {
			order = append(order, "Transfer-Encoding")
		}
	case contentLength >= 0:
		seen["Content-Length"] = strconv.FormatInt(contentLength, 10)
		if _, ok := indexOf(order, "Content-Length"); !ok {
			order = append(order, "Content-Length")
		}
	}

	// Host must come first on the wire; everything else follows in a
	// stable, deterministic order so tests (and peers comparing replayed
	// traffic) see repeatable output.
	sort.SliceStable(order[1:], func(i, j int) bool { return order[1+i] < order[1+j] })

	for _, name := range order {
		dst = append(dst, name...)
		dst = append(dst, ':', ' ')
		dst = append(dst, seen[name]...)
		dst = append(dst, '\r', '\n')
	}
	dst = append(dst, '\r', '\n')
	return dst, nil
}

func indexOf(s []string, v string) (int, bool) {
	for i, x := range s {
		if x == v {
			return i, true
		}
	}
	return 0, false
}

// WriteChunk appends one chunked-transfer-encoding chunk (hex length, CRLF,
// payload, CRLF) to dst. A zero-length chunk (len(p) == 0) writes the
// terminating chunk (no trailers) instead.
func WriteChunk(dst []byte, p []byte) []byte {
	dst = append(dst, []byte(strconv.FormatInt(int64(len(p)), 16))...)
	dst = append(dst, '\r', '\n')
	if len(p) == 0 {
		dst = append(dst, '\r', '\n') // empty trailer section terminates the body
		return dst
	}
	dst = append(dst, p...)
	dst = append(dst, '\r', '\n')
	return dst
}
