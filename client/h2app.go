package client

import "strconv"

// h2RequestApp adapts one HTTP/2 stream's events to the request's
// ResponseReader, bridging httpmux/h2's opaque RequestApp interface back
// to the client package's UserCallback without an import cycle (spec.md
// 6's ":status" pseudo-header stands in for the HTTP/1.1 status line).
type h2RequestApp struct {
	d  *Destination
	pr *pendingRequest
	id uint32
}

func (a *h2RequestApp) OnResponseHeaders(name, value string) {
	if name == ":status" {
		code, _ := strconv.Atoi(value)
		a.pr.rr.OnStatus(code, "")
		return
	}
	if len(name) > 0 && name[0] == ':' {
		return // other response pseudo-headers carry no HTTP/1.1 analogue
	}
	a.pr.rr.OnHeader(name, value)
}

func (a *h2RequestApp) OnResponseHeadersEnd() {}

func (a *h2RequestApp) OnData(p []byte) {
	a.pr.rr.OnData(p)
}

func (a *h2RequestApp) OnStreamClosed(err error) {
	delete(a.d.h2Streams, a.id)
	if err != nil {
		a.pr.resp.complete(newError(KindProtocol, "HTTP/2 stream closed", err))
		return
	}
	a.pr.rr.OnDone()
	a.pr.resp.complete(nil)
}
