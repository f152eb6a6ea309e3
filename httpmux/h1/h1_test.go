package h1

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteRequestCanonicalizesHeaderNames(t *testing.T) {
	out, err := WriteRequest(nil, "GET", "/", "example.com", [][2]string{
		{"content-TYPE", "text/plain"},
		{"x-custom-header", "v"},
	}, -1, false)
	require.NoError(t, err)
	s := string(out)
	require.True(t, strings.HasPrefix(s, "GET / HTTP/1.1\r\n"))
	require.Contains(t, s, "Content-Type: text/plain\r\n")
	require.NotContains(t, s, "content-TYPE")
	require.Contains(t, s, "X-Custom-Header: v\r\n")
	require.True(t, strings.HasSuffix(s, "\r\n\r\n"))
}

func TestWriteRequestRejectsInvalidHeaderValue(t *testing.T) {
	_, err := WriteRequest(nil, "GET", "/", "example.com", [][2]string{
		{"x-bad", "line1\r\nline2"},
	}, -1, false)
	require.Error(t, err)
}

func TestWriteChunkTerminator(t *testing.T) {
	var buf []byte
	buf = WriteChunk(buf, []byte("hello"))
	buf = WriteChunk(buf, nil)
	require.Equal(t, "5\r\nhello\r\n0\r\n\r\n", string(buf))
}

func TestResponseReaderContentLengthWholeBuffer(t *testing.T) {
	var status int
	var headers [][2]string
	var body bytes.Buffer
	done := false
	r := NewResponseReader(false,
		func(code int, _ string) { status = code },
		func(name, value string) { headers = append(headers, [2]string{name, value}) },
		func(p []byte) { body.Write(p) },
		func() { done = true },
	)
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\nContent-Type: text/plain\r\n\r\nhello"
	n, err := r.Feed([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, len(raw), n)
	require.Equal(t, 200, status)
	require.True(t, done)
	require.Equal(t, "hello", body.String())
	require.Len(t, headers, 2)
}

func TestResponseReaderResumesAcrossArbitrarySplits(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 11\r\n\r\nhello world"
	for split := 1; split < len(raw); split++ {
		var body bytes.Buffer
		done := false
		r := NewResponseReader(false, nil, nil, func(p []byte) { body.Write(p) }, func() { done = true })

		first := raw[:split]
		_, err := r.Feed([]byte(first))
		if err != nil {
			require.ErrorIs(t, err, ErrNeedMore, "split=%d", split)
		}
		if !done {
			rest := raw[split:]
			_, err = r.Feed([]byte(rest))
			require.NoError(t, err, "split=%d", split)
		}
		require.True(t, done, "split=%d", split)
		require.Equal(t, "hello world", body.String(), "split=%d", split)
	}
}

func TestResponseReaderChunkedTransferEncoding(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"
	var body bytes.Buffer
	done := false
	r := NewResponseReader(false, nil, nil, func(p []byte) { body.Write(p) }, func() { done = true })
	_, err := r.Feed([]byte(raw))
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, "Wikipedia", body.String())
}

func TestResponseReaderHeadRequestHasNoBody(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 1234\r\n\r\n"
	done := false
	r := NewResponseReader(true, nil, nil, func([]byte) { t.Fatal("unexpected body on HEAD response") }, func() { done = true })
	_, err := r.Feed([]byte(raw))
	require.NoError(t, err)
	require.True(t, done)
}

func TestResponseReaderNoContentStatus(t *testing.T) {
	raw := "HTTP/1.1 204 No Content\r\n\r\n"
	done := false
	r := NewResponseReader(false, nil, nil, nil, func() { done = true })
	_, err := r.Feed([]byte(raw))
	require.NoError(t, err)
	require.True(t, done)
}
