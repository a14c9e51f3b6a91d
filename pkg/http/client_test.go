package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAndParse_RetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"count":2}`))
	}))
	defer srv.Close()

	c := NewClient(WithRetry(3, time.Millisecond))
	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, c.SendAndParse(context.Background(), &RequestOptions{URL: srv.URL}, &out))
	assert.Equal(t, 2, out.Count)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestSendAndParse_NoRetryOnClientError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("bad key"))
	}))
	defer srv.Close()

	err := NewClient(WithRetry(3, time.Millisecond)).SendAndParse(context.Background(), &RequestOptions{URL: srv.URL}, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.Equal(t, "bad key", se.Body)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}
