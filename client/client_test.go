package client

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingCallback struct {
	method, path string
	headers      [][2]string
	body         []byte

	status      int
	respHeaders [][2]string
	respBody    []byte
	done        bool
}

func (c *recordingCallback) DoRequest() RequestWriter {
	return NewSimpleRequestWriter(c.method, c.path, c.headers, c.body)
}

func (c *recordingCallback) DoResponse() ResponseReader { return c }

func (c *recordingCallback) OnStatus(code int, status string) { c.status = code }
func (c *recordingCallback) OnHeader(name, value string) {
	c.respHeaders = append(c.respHeaders, [2]string{name, value})
}
func (c *recordingCallback) OnData(p []byte) { c.respBody = append(c.respBody, p...) }
func (c *recordingCallback) OnDone()         { c.done = true }

// fakeHTTP1Server accepts one connection, reads one request up to its
// blank-line terminator, and writes back a fixed response.
func fakeHTTP1Server(t *testing.T, ln net.Listener, response string) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Errorf("fake server: read request: %v", err)
			return
		}
		if line == "\r\n" {
			break
		}
	}
	if _, err := conn.Write([]byte(response)); err != nil {
		t.Errorf("fake server: write response: %v", err)
	}
}

func TestClientHTTP1RoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go fakeHTTP1Server(t, ln, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\nContent-Type: text/plain\r\n\r\nhello")

	c := NewClient()
	defer c.Close()

	cb := &recordingCallback{method: "GET", path: "/"}
	resp, err := c.Request("http://"+ln.Addr().String()+"/", cb)
	require.NoError(t, err)

	waitErr := make(chan error, 1)
	go func() { waitErr <- resp.Wait() }()

	select {
	case err := <-waitErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for response")
	}

	require.Equal(t, 200, cb.status)
	require.Equal(t, "hello", string(cb.respBody))
	require.True(t, cb.done)
}

func TestClientRejectsUnsupportedScheme(t *testing.T) {
	c := NewClient()
	defer c.Close()
	_, err := c.Request("ftp://example.com/", &recordingCallback{method: "GET", path: "/"})
	require.Error(t, err)
}

func TestClientRejectsHTTPSWithoutTLSConfig(t *testing.T) {
	c := NewClient()
	defer c.Close()
	_, err := c.Request("https://example.com/", &recordingCallback{method: "GET", path: "/"})
	require.Error(t, err)
}
