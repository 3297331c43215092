package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "proxyscout/pkg/errors"
)

const sampleList = `# Proxy list

Updated hourly.

| 地址 | 地区 | 用户名 |
|------|------|--------|
| 1.2.3.4:8080 | 香港 | user-a |
| 5.6.7.8:3128 | 日本 | user-b |
| 9.9.9.9:80 | 香港 | user-c |
| not-an-ip:80 | 香港 | user-d |
| 1.2.3.4:8080 | 香港 | user-dup |
`

func TestParseTableFiltersRegion(t *testing.T) {
	cands := ParseTable(sampleList, DefaultRegion)

	require.Len(t, cands, 2)
	assert.Equal(t, "1.2.3.4:8080", cands[0].Address)
	assert.Equal(t, "user-a", cands[0].Credential)
	assert.Equal(t, "9.9.9.9:80", cands[1].Address)
}

func TestParseTableAllRegions(t *testing.T) {
	cands := ParseTable(sampleList, "")
	assert.Len(t, cands, 3)
}

func TestParseTableIgnoresNoise(t *testing.T) {
	assert.Empty(t, ParseTable("no table here\n| a | b |\n", ""))
	assert.Empty(t, ParseTable("", DefaultRegion))
}

func TestHashStable(t *testing.T) {
	assert.Equal(t, Hash([]byte("abc")), Hash([]byte("abc")))
	assert.NotEqual(t, Hash([]byte("abc")), Hash([]byte("abd")))
	assert.Len(t, Hash(nil), 64)
}

func testFetcher() *Fetcher {
	return NewFetcher(FetcherConfig{UserAgent: "test", Timeout: time.Second, MaxRetries: 2, RetryDelay: time.Millisecond})
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sampleList))
	}))
	defer srv.Close()

	list, err := Load(context.Background(), testFetcher(), srv.URL, DefaultRegion)
	require.NoError(t, err)
	assert.Len(t, list.Candidates, 2)
	assert.Equal(t, Hash([]byte(sampleList)), list.Hash)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrSourceFetchFailed))

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLoadEmptyRegion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleList))
	}))
	defer srv.Close()

	list, err := Load(context.Background(), testFetcher(), srv.URL, "火星")
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrSourceEmpty))
	require.NotNil(t, list)
	assert.NotEmpty(t, list.Hash)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.md")
	require.NoError(t, os.WriteFile(path, []byte(sampleList), 0o644))

	list, err := LoadFile(path, DefaultRegion)
	require.NoError(t, err)
	assert.Len(t, list.Candidates, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.md"), DefaultRegion)
	assert.True(t, errors.Is(err, pkgerrors.ErrSourceFetchFailed))
}
