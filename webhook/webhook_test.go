package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliver_SignsBody(t *testing.T) {
	var (
		gotSig  string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "s3cret")
	ev := NewEvent(EventBatchCompleted, "job-1", map[string]int{"total": 2})
	require.NoError(t, c.Deliver(context.Background(), ev))

	assert.Equal(t, Sign("s3cret", gotBody), gotSig)
	var decoded Event
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, EventBatchCompleted, decoded.Type)
	assert.Equal(t, "job-1", decoded.JobID)
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL, "").Deliver(context.Background(), NewEvent(EventBatchCompleted, "j", nil)))
}

func TestSend_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	c.Delays = []time.Duration{0, time.Millisecond, time.Millisecond, time.Millisecond}
	require.NoError(t, c.Send(context.Background(), NewEvent(EventBatchCompleted, "j", nil)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSend_ExhaustedReturnsLastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	c.Delays = []time.Duration{0, time.Millisecond}
	err := c.Send(context.Background(), NewEvent(EventBatchCompleted, "j", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestNilClientIsNoop(t *testing.T) {
	c := New("", "secret")
	assert.Nil(t, c)
	assert.NoError(t, c.Send(context.Background(), NewEvent(EventBatchCompleted, "j", nil)))
	c.SendAsync(NewEvent(EventBatchCompleted, "j", nil))
}
