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

	"github.com/stretchr/testify/require"
)

func TestDeliver_SignsBody(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New(srv.URL, "s3cret")
	err := n.Deliver(context.Background(), &Event{Type: EventRunCompleted, RunID: "r1", Timestamp: 1, Data: map[string]int{"rows": 3}})
	require.NoError(t, err)
	require.Equal(t, Sign("s3cret", gotBody), gotSig)
	require.Contains(t, gotSig, "sha256=")

	var gotEvent Event
	require.NoError(t, json.Unmarshal(gotBody, &gotEvent))
	require.Equal(t, "r1", gotEvent.RunID)
	require.Equal(t, EventRunCompleted, gotEvent.Type)
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	gotSig := "unset"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL, "").Deliver(context.Background(), &Event{Type: EventRunFailed}))
	require.Empty(t, gotSig)
}

func TestDeliver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL, "").Deliver(context.Background(), &Event{Type: EventRunFailed})
	require.ErrorContains(t, err, "502")
}

func TestDeliverAsync_Retries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, "")
	n.delays = []time.Duration{0, time.Millisecond, time.Millisecond, time.Millisecond}
	n.Notify(EventRunCompleted, "r2", nil)
	n.Wait()

	require.Equal(t, int32(3), calls.Load())
}
