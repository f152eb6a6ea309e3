package urlnorm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/idna"
)

func TestHostPunycodeRoundTrip(t *testing.T) {
	ascii, err := Host("Go言語.com")
	require.NoError(t, err)
	require.Equal(t, "xn--go-hh0g6u.com", ascii)
	back, err := idna.Lookup.ToUnicode(ascii)
	require.NoError(t, err)
	require.Contains(t, []string{"go言語.com", "Go言語.com"}, back)
}

func TestHostEqualIsCaseInsensitive(t *testing.T) {
	require.True(t, HostEqual("EXAMPLE.com", "example.COM"))
	require.True(t, HostEqual("Go言語.com", "xn--go-hh0g6u.com"))
}

func TestPathEscapesNonASCII(t *testing.T) {
	got := Path("/café/日本語")
	require.NotEqual(t, "/café/日本語", got)
}

func TestNormalizeCanonicalizesHostAndPath(t *testing.T) {
	u, err := Normalize("https://Go言語.com:8443/café")
	require.NoError(t, err)
	require.Equal(t, "xn--go-hh0g6u.com:8443", u.Host)
	require.NotEqual(t, "/café", u.EscapedPath())
}
