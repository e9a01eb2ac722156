package tracker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/bencode"
)

func TestHTTPTrackerAnnounceCompactPeers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "1", q.Get("compact"))
		resp := map[string]interface{}{
			"interval": int32(1800),
			"peers":    string([]byte{10, 0, 0, 1, 0x1A, 0xE1}),
		}
		w.WriteHeader(http.StatusOK)
		_ = bencode.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	tr := NewHTTPTracker(u)
	resp, err := tr.Announce(context.Background(), Request{Event: EventStarted})
	require.NoError(t, err)
	require.EqualValues(t, 1800, resp.Interval.Seconds())
	require.Len(t, resp.Peers, 1)
	require.EqualValues(t, 6881, resp.Peers[0].Port)
}

func TestHTTPTrackerAnnounceFailureReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = bencode.NewEncoder(w).Encode(map[string]interface{}{"failure reason": "not registered"})
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	tr := NewHTTPTracker(u)
	_, err = tr.Announce(context.Background(), Request{})
	require.Error(t, err)
}

func TestHTTPTrackerAnnounceDefaultsEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = bencode.NewEncoder(w).Encode(map[string]interface{}{})
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	tr := NewHTTPTracker(u)
	resp, err := tr.Announce(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, DefaultInterval, resp.Interval)
	require.Empty(t, resp.Peers)
}
