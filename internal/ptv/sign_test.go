package ptv

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signingClient() *Client {
	return NewClient("3000123", "super-secret-key", 10, 0)
}

func TestSignPathIsDeterministic(t *testing.T) {
	c := signingClient()
	params := url.Values{}
	params.Set("route_types", "0")

	first := c.SignPath("/v3/routes", params)
	second := c.SignPath("/v3/routes", params)

	assert.Equal(t, first, second)
}

func TestSignPathChangesWithParams(t *testing.T) {
	c := signingClient()

	a := url.Values{}
	a.Set("route_types", "0")
	b := url.Values{}
	b.Set("route_types", "1")

	sigA := extractSignature(t, c.SignPath("/v3/routes", a))
	sigB := extractSignature(t, c.SignPath("/v3/routes", b))

	assert.NotEqual(t, sigA, sigB)
}

func TestSignPathMatchesHMACSHA1(t *testing.T) {
	c := signingClient()
	params := url.Values{}
	params.Set("expand", "All")

	signed := c.SignPath("/v3/runs/route/5/route_type/1", params)

	idx := strings.LastIndex(signed, "&signature=")
	require.GreaterOrEqual(t, idx, 0)
	uri, sig := signed[:idx], signed[idx+len("&signature="):]

	mac := hmac.New(sha1.New, []byte("super-secret-key"))
	mac.Write([]byte(uri))
	want := strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))

	assert.Equal(t, want, sig)
	assert.Equal(t, strings.ToUpper(sig), sig, "signature must be uppercase hex")
}

func TestSignPathIncludesDevID(t *testing.T) {
	c := signingClient()
	signed := c.SignPath("/v3/routes", nil)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "3000123", u.Query().Get("devid"))
	assert.NotEmpty(t, u.Query().Get("signature"))
}

func TestSignPathDoesNotMutateInput(t *testing.T) {
	c := signingClient()
	params := url.Values{}
	params.Set("route_types", "2")

	c.SignPath("/v3/routes", params)

	assert.Empty(t, params.Get("devid"))
}

func extractSignature(t *testing.T, signed string) string {
	t.Helper()
	idx := strings.LastIndex(signed, "&signature=")
	require.GreaterOrEqual(t, idx, 0)
	return signed[idx+len("&signature="):]
}
