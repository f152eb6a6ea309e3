package h2

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2/hpack"
)

type fakeApp struct {
	headers  [][2]string
	data     []byte
	closed   bool
	closeErr error
}

func (a *fakeApp) OnResponseHeaders(name, value string) {
	a.headers = append(a.headers, [2]string{name, value})
}
func (a *fakeApp) OnResponseHeadersEnd()    {}
func (a *fakeApp) OnData(p []byte)          { a.data = append(a.data, p...) }
func (a *fakeApp) OnStreamClosed(err error) { a.closed = true; a.closeErr = err }

func TestNewHandlerEmitsPrefaceAndSettings(t *testing.T) {
	h := NewHandler()
	out := h.DrainOutput()
	require.True(t, bytes.HasPrefix(out, []byte(ClientPreface)))

	rest := out[len(ClientPreface):]
	hdr, err := ReadFrameHeader(bytes.NewReader(rest))
	require.NoError(t, err)
	require.Equal(t, FrameSettings, hdr.Type)
}

func TestOpenStreamAssignsOddIDsAndEncodesHeaders(t *testing.T) {
	h := NewHandler()
	h.DrainOutput()
	app := &fakeApp{}
	id1, err := h.OpenStream([]hpack.HeaderField{{Name: ":method", Value: "GET"}}, true, app)
	require.NoError(t, err)
	id2, err := h.OpenStream([]hpack.HeaderField{{Name: ":method", Value: "GET"}}, true, app)
	require.NoError(t, err)
	require.EqualValues(t, 1, id1)
	require.EqualValues(t, 3, id2)

	out := h.DrainOutput()
	hdr, err := ReadFrameHeader(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, FrameHeaders, hdr.Type)
	require.EqualValues(t, 1, hdr.StreamID)
	require.True(t, hdr.Flags.Has(FlagEndHeaders))
	require.True(t, hdr.Flags.Has(FlagEndStream))
}

func TestHandleFrameDeliversResponseHeadersAndData(t *testing.T) {
	h := NewHandler()
	h.DrainOutput()
	app := &fakeApp{}
	id, err := h.OpenStream([]hpack.HeaderField{{Name: ":method", Value: "GET"}}, true, app)
	require.NoError(t, err)
	h.DrainOutput()

	var encBuf bytes.Buffer
	enc := hpack.NewEncoder(&encBuf)
	require.NoError(t, enc.WriteField(hpack.HeaderField{Name: ":status", Value: "200"}))
	require.NoError(t, enc.WriteField(hpack.HeaderField{Name: "content-type", Value: "text/html"}))

	err = h.HandleFrame(Frame{
		Header:  FrameHeader{Type: FrameHeaders, Flags: FlagEndHeaders, StreamID: id},
		Payload: encBuf.Bytes(),
	})
	require.NoError(t, err)
	require.Len(t, app.headers, 2)
	require.Equal(t, ":status", app.headers[0][0])
	require.Equal(t, "200", app.headers[0][1])

	err = h.HandleFrame(Frame{
		Header:  FrameHeader{Type: FrameData, Flags: FlagEndStream, StreamID: id},
		Payload: []byte("<doctype html><html></html>"),
	})
	require.NoError(t, err)
	require.Equal(t, "<doctype html><html></html>", string(app.data))
	require.True(t, app.closed)
	require.NoError(t, app.closeErr)
}

func TestProcessSettingsAdjustsOpenStreamWindows(t *testing.T) {
	h := NewHandler()
	h.DrainOutput()
	app := &fakeApp{}
	id, err := h.OpenStream([]hpack.HeaderField{{Name: ":method", Value: "POST"}}, false, app)
	require.NoError(t, err)
	h.DrainOutput()

	st, ok := h.table.get(id)
	require.True(t, ok)
	before := st.sendFlow.available()

	settings := EncodeSettings([]Setting{{ID: SettingInitialWindowSize, Value: initialWindowSize + 1000}})
	err = h.HandleFrame(Frame{Header: FrameHeader{Type: FrameSettings}, Payload: settings})
	require.NoError(t, err)
	require.Equal(t, before+1000, st.sendFlow.available())
}

func TestWriteDataRespectsStreamFlowWindow(t *testing.T) {
	h := NewHandler()
	h.DrainOutput()
	app := &fakeApp{}
	id, err := h.OpenStream([]hpack.HeaderField{{Name: ":method", Value: "POST"}}, false, app)
	require.NoError(t, err)
	h.DrainOutput()

	st, ok := h.table.get(id)
	require.True(t, ok)
	st.sendFlow.n = 4 // shrink the window to force a partial write

	n, blocked, err := h.WriteData(id, []byte("0123456789"), true)
	require.NoError(t, err)
	require.False(t, blocked)
	require.Equal(t, 4, n)
}

func TestSendGoAwayIncludesLastSeenStreamID(t *testing.T) {
	h := NewHandler()
	h.DrainOutput()
	app := &fakeApp{}
	id, err := h.OpenStream([]hpack.HeaderField{{Name: ":method", Value: "GET"}}, true, app)
	require.NoError(t, err)
	h.DrainOutput()

	h.SendGoAway(ErrCodeNo)
	out := h.DrainOutput()
	hdr, err := ReadFrameHeader(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, FrameGoAway, hdr.Type)

	last, code, _, err := ParseGoAway(out[frameHeaderLen:])
	require.NoError(t, err)
	require.Equal(t, id, last)
	require.Equal(t, uint32(ErrCodeNo), code)
}
