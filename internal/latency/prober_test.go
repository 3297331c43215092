package latency

import (
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxyscout/internal/storage/models"
)

// fakeProxy acts as a forward HTTP proxy that answers every request itself.
func fakeProxy(t *testing.T, handler http.HandlerFunc) (*httptest.Server, models.Candidate) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, models.Candidate{Address: strings.TrimPrefix(srv.URL, "http://"), Credential: "user"}
}

func TestHTTPProberSuccess(t *testing.T) {
	var gotAuth, gotURI string
	_, cand := fakeProxy(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Proxy-Authorization")
		gotURI = r.RequestURI
		w.WriteHeader(http.StatusNoContent)
	})

	p := NewHTTPProber(2*time.Second, "secret")
	out := p.Probe(context.Background(), cand, "http://example.test/generate_204")

	require.True(t, out.Working, out.Error)
	require.NotNil(t, out.LatencyMS)
	require.NotNil(t, out.StatusCode)
	assert.Equal(t, http.StatusNoContent, *out.StatusCode)
	assert.GreaterOrEqual(t, *out.LatencyMS, 0.0)
	assert.Equal(t, models.ErrorKindNone, out.ErrorKind)
	assert.Equal(t, "http://example.test/generate_204", gotURI)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:secret"))
	assert.Equal(t, want, gotAuth)
}

func TestHTTPProberStatusError(t *testing.T) {
	_, cand := fakeProxy(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	out := NewHTTPProber(2*time.Second, "1").Probe(context.Background(), cand, "http://example.test/")

	assert.False(t, out.Working)
	assert.Equal(t, models.ErrorKindHTTPStatus, out.ErrorKind)
	require.NotNil(t, out.StatusCode)
	assert.Equal(t, 500, *out.StatusCode)
	assert.Contains(t, out.Error, "500")
}

func TestHTTPProberRedirectNotFollowed(t *testing.T) {
	_, cand := fakeProxy(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "http://elsewhere.test/")
		w.WriteHeader(http.StatusFound)
	})

	out := NewHTTPProber(2*time.Second, "1").Probe(context.Background(), cand, "http://example.test/")

	assert.True(t, out.Working)
	require.NotNil(t, out.StatusCode)
	assert.Equal(t, http.StatusFound, *out.StatusCode)
}

func TestHTTPProberTimeout(t *testing.T) {
	release := make(chan struct{})
	_, cand := fakeProxy(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	out := NewHTTPProber(100*time.Millisecond, "1").Probe(context.Background(), cand, "http://example.test/")

	assert.False(t, out.Working)
	assert.Nil(t, out.LatencyMS)
	assert.Equal(t, models.ErrorKindTimeout, out.ErrorKind)
}

func TestHTTPProberConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	out := NewHTTPProber(time.Second, "1").Probe(context.Background(), models.Candidate{Address: addr}, "http://example.test/")

	assert.False(t, out.Working)
	assert.Equal(t, models.ErrorKindConnection, out.ErrorKind)
	assert.NotEmpty(t, out.Error)
}

func TestHTTPProberInvalidAddress(t *testing.T) {
	out := NewHTTPProber(time.Second, "1").Probe(context.Background(), models.Candidate{Address: "not-an-address"}, "http://example.test/")

	assert.False(t, out.Working)
	assert.Equal(t, models.ErrorKindOther, out.ErrorKind)
	assert.Equal(t, "http://example.test/", out.Endpoint)
}

func TestEndpoints(t *testing.T) {
	list, err := Endpoints(CategoryFast, nil)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = Endpoints(CategoryFast, []string{" http://a.test/x ", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.test/x"}, list)

	_, err = Endpoints(CategoryFast, []string{"ftp://a.test"})
	assert.Error(t, err)

	_, err = Endpoints("bogus", nil)
	assert.Error(t, err)

	// Returned slices are copies.
	list, _ = Endpoints(CategoryFast, nil)
	list[0] = "changed"
	again, _ := Endpoints(CategoryFast, nil)
	assert.NotEqual(t, "changed", again[0])
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("")
	require.NoError(t, err)
	assert.Equal(t, CategoryStandard, c)

	c, err = ParseCategory(" Heavy ")
	require.NoError(t, err)
	assert.Equal(t, CategoryHeavy, c)

	_, err = ParseCategory("slow")
	assert.Error(t, err)
}
