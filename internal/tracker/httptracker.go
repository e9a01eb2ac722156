package tracker

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zeebo/bencode"

	"github.com/leechd/leechd/internal/logger"
)

const httpTimeout = 30 * time.Second

// HTTPTracker announces to a single tracker URL over HTTP GET with a
// bencoded response body.
type HTTPTracker struct {
	url       *url.URL
	log       logger.Logger
	http      *http.Client
	trackerID string
}

// NewHTTPTracker returns an HTTPTracker for u.
func NewHTTPTracker(u *url.URL) *HTTPTracker {
	return &HTTPTracker{
		url: u,
		log: logger.New("tracker " + u.String()),
		http: &http.Client{
			Timeout: httpTimeout,
			Transport: &http.Transport{
				Dial:                (&net.Dialer{Timeout: httpTimeout}).Dial,
				TLSHandshakeTimeout: httpTimeout,
				DisableKeepAlives:   true,
			},
		},
	}
}

type announceResponse struct {
	FailureReason string             `bencode:"failure reason"`
	Interval      int32              `bencode:"interval"`
	TrackerID     string             `bencode:"tracker id"`
	Complete      int32              `bencode:"complete"`
	Incomplete    int32              `bencode:"incomplete"`
	Peers         bencode.RawMessage `bencode:"peers"`
}

// Announce performs a single GET against the tracker and decodes its
// bencoded response. A response with neither interval nor peers is treated
// as empty rather than an error, per this client's tracker contract.
func (t *HTTPTracker) Announce(ctx context.Context, req Request) (*Response, error) {
	q := url.Values{}
	q.Set("info_hash", string(req.InfoHash[:]))
	q.Set("peer_id", string(req.PeerID[:]))
	q.Set("port", strconv.Itoa(req.Port))
	q.Set("uploaded", strconv.FormatInt(req.Uploaded, 10))
	q.Set("downloaded", strconv.FormatInt(req.Downloaded, 10))
	q.Set("left", strconv.FormatInt(req.Left, 10))
	q.Set("compact", "1")
	q.Set("numwant", strconv.Itoa(NumWant))
	if req.Event != EventNone {
		q.Set("event", req.Event.String())
	}
	if t.trackerID != "" {
		q.Set("trackerid", t.trackerID)
	}

	u := *t.url
	u.RawQuery = q.Encode()
	t.log.Debugf("announce: %s", u.String())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tracker: status %d: %q", resp.StatusCode, data)
	}

	var ar announceResponse
	if err := bencode.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("tracker: cannot decode response: %w", err)
	}
	if ar.FailureReason != "" {
		return nil, &ErrTracker{Reason: ar.FailureReason}
	}
	if ar.TrackerID != "" {
		t.trackerID = ar.TrackerID
	}

	interval := time.Duration(ar.Interval) * time.Second
	if interval == 0 {
		interval = DefaultInterval
	}

	peers, err := parsePeers(ar.Peers)
	if err != nil {
		return nil, err
	}

	return &Response{
		Interval: interval,
		Leechers: ar.Incomplete,
		Seeders:  ar.Complete,
		Peers:    peers,
	}, nil
}

func parsePeers(raw bencode.RawMessage) ([]*net.TCPAddr, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == 'l' {
		var dicts []struct {
			IP   string `bencode:"ip"`
			Port uint16 `bencode:"port"`
		}
		if err := bencode.DecodeBytes(raw, &dicts); err != nil {
			return nil, err
		}
		addrs := make([]*net.TCPAddr, len(dicts))
		for i, d := range dicts {
			addrs[i] = &net.TCPAddr{IP: net.ParseIP(d.IP), Port: int(d.Port)}
		}
		return addrs, nil
	}
	var b []byte
	if err := bencode.DecodeBytes(raw, &b); err != nil {
		return nil, err
	}
	return DecodePeersCompact(b)
}
