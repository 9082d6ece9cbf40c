package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultClientConfig(t *testing.T) {
	config := DefaultClientConfig()

	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.Equal(t, 100, config.MaxIdleConns)
	assert.Equal(t, UserAgent, config.UserAgent)
	assert.Nil(t, config.Transport)
}

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		name    string
		opts    []ClientOption
		timeout time.Duration
		wantUA  string
	}{
		{"defaults", nil, 30 * time.Second, UserAgent},
		{"custom", []ClientOption{WithTimeout(time.Second), WithUserAgent("tester")}, time.Second, "tester"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUA string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUA = r.Header.Get("User-Agent")
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			client := NewHTTPClient(tt.opts...)
			assert.Equal(t, tt.timeout, client.Timeout)

			resp, err := client.Get(server.URL)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.wantUA, gotUA)
		})
	}
}

func TestNewHTTPClient_KeepsExplicitUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "explicit")

	resp, err := NewHTTPClient(WithTransport(http.DefaultTransport)).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "explicit", gotUA)
}
