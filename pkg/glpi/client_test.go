package glpi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSession struct {
	invalidations atomic.Int32
	headersErr    error
}

func (s *stubSession) Headers(context.Context) (map[string]string, error) {
	if s.headersErr != nil {
		return nil, s.headersErr
	}
	return map[string]string{"Session-Token": "tok", "App-Token": "app"}, nil
}

func (s *stubSession) Invalidate() {
	s.invalidations.Add(1)
}

func newTestClient(baseURL string) (*Client, *stubSession) {
	session := &stubSession{}
	client := NewClient(ClientConfig{
		BaseURL:     baseURL,
		MaxRetries:  2,
		BackoffUnit: time.Millisecond,
	}, session, nil, nil)
	return client, session
}

func TestClient_Do(t *testing.T) {
	t.Run("success passes auth headers and returns body", func(t *testing.T) {
		var gotToken string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotToken = r.Header.Get("Session-Token")
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		client, _ := newTestClient(server.URL)
		resp, err := client.Do(context.Background(), http.MethodGet, "/getGlpiConfig", nil, nil)
		require.NoError(t, err)
		assert.True(t, resp.OK())
		assert.Equal(t, "tok", gotToken)
		assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	})

	t.Run("rejects unsupported method", func(t *testing.T) {
		client, _ := newTestClient("http://unused")
		_, err := client.Do(context.Background(), "TRACE", "/x", nil, nil)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindInvalidArgument))
	})

	t.Run("rejects empty path", func(t *testing.T) {
		client, _ := newTestClient("http://unused")
		_, err := client.Do(context.Background(), http.MethodGet, "", nil, nil)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindInvalidArgument))
	})

	t.Run("retries 5xx then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) <= 2 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client, _ := newTestClient(server.URL)
		resp, err := client.Do(context.Background(), http.MethodGet, "/Ticket/1", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("returns final 5xx after exhausting retries", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client, _ := newTestClient(server.URL)
		resp, err := client.Do(context.Background(), http.MethodGet, "/Ticket/1", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.Status)
		assert.Equal(t, int32(3), calls.Load()) // initial + 2 retries
	})

	t.Run("401 invalidates the session and retries once", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client, session := newTestClient(server.URL)
		resp, err := client.Do(context.Background(), http.MethodGet, "/search/Ticket", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, int32(1), session.invalidations.Load())
	})

	t.Run("second 401 is returned, not retried forever", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		client, session := newTestClient(server.URL)
		resp, err := client.Do(context.Background(), http.MethodGet, "/search/Ticket", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.Status)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, int32(1), session.invalidations.Load())
	})

	t.Run("transport failure exhausts retries as connection error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		server.Close() // refuse all connections

		client, _ := newTestClient(server.URL)
		_, err := client.Do(context.Background(), http.MethodGet, "/Ticket/1", nil, nil)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindConnection))
	})

	t.Run("query parameters are forwarded", func(t *testing.T) {
		var gotQuery url.Values
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		params := NewSearch().Range(0, 0).Criterion("", "12", "equals", "1").Values()
		client, _ := newTestClient(server.URL)
		_, err := client.Do(context.Background(), http.MethodGet, "/search/Ticket", params, nil)
		require.NoError(t, err)
		assert.Equal(t, "0-0", gotQuery.Get("range"))
		assert.Equal(t, "12", gotQuery.Get("criteria[0][field]"))
	})
}

func TestResponse_TotalCount(t *testing.T) {
	t.Run("content-range header wins", func(t *testing.T) {
		h := http.Header{}
		h.Set("Content-Range", "items 0-0/321")
		r := &Response{Status: 206, Header: h, Body: []byte(`{"totalcount": 5}`)}
		total, err := r.TotalCount()
		require.NoError(t, err)
		assert.Equal(t, 321, total)
	})

	t.Run("falls back to totalcount field", func(t *testing.T) {
		r := &Response{Status: 200, Header: http.Header{}, Body: []byte(`{"totalcount": 17, "data": []}`)}
		total, err := r.TotalCount()
		require.NoError(t, err)
		assert.Equal(t, 17, total)
	})

	t.Run("falls back to data length", func(t *testing.T) {
		r := &Response{Status: 200, Header: http.Header{}, Body: []byte(`{"data": [{},{},{}]}`)}
		total, err := r.TotalCount()
		require.NoError(t, err)
		assert.Equal(t, 3, total)
	})
}

func TestEndpointLabel(t *testing.T) {
	assert.Equal(t, "Ticket", endpointLabel("/Ticket/123"))
	assert.Equal(t, "search/Ticket", endpointLabel("/search/Ticket"))
	assert.Equal(t, "User", endpointLabel("User/42"))
}
