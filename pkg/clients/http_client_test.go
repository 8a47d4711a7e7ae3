package clients

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/voterelay/pkg/testutil"
)

func TestHTTPClient_Do(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	client := NewHTTPClient(nil, zaptest.NewLogger(t))
	defer client.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, userAgent, gotAgent)
	assert.Equal(t, HTTPStats{TotalRequests: 1}, client.GetStats())
}

func TestHTTPClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewHTTPClient(DefaultHTTPConfig(), zaptest.NewLogger(t))
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)

	_, err = client.Do(req)
	require.Error(t, err)
	assert.Equal(t, HTTPStats{TotalRequests: 1, FailedRequests: 1}, client.GetStats())
}

func TestHTTPClient_CloseLogsStats(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	logger, logs := testutil.ObservedLogger()
	client := NewHTTPClient(nil, logger)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, client.Close())
	entries := logs.FilterMessage("http client closed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(1), fields["total_requests"])
	assert.Equal(t, int64(0), fields["failed_requests"])
	assert.Equal(t, "http_client", fields["component"])
}
