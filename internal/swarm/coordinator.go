// Package swarm implements the TorrentCoordinator: the single-torrent actor
// that owns the piece store, the have/missing split, the set of live
// PeerSessions, and the tracker announce loop. It is the only thing that
// mutates piece-completion state; PeerSessions only ever read a snapshot of
// it and report results back through the peer.Torrent interface.
package swarm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/rcrowley/go-metrics"

	"github.com/leechd/leechd/internal/bitfield"
	"github.com/leechd/leechd/internal/blocklist"
	"github.com/leechd/leechd/internal/logger"
	"github.com/leechd/leechd/internal/metainfo"
	"github.com/leechd/leechd/internal/peer"
	"github.com/leechd/leechd/internal/peerprotocol"
	"github.com/leechd/leechd/internal/resume"
	"github.com/leechd/leechd/internal/store"
	"github.com/leechd/leechd/internal/tracker"
)

// Config holds the knobs a Coordinator needs beyond the torrent file itself.
type Config struct {
	Port       int
	UploadBPS  int64
	DestDir    string
	PeerID     [20]byte
	ListenAddr string // empty disables inbound connections
	Blocklist  *blocklist.Blocklist // nil disables IP filtering
}

type pieceAssembly struct {
	blocks map[uint32][]byte
	total  uint32
}

// Coordinator is the TorrentCoordinator actor for one torrent.
type Coordinator struct {
	info  *metainfo.MetaInfo
	store *store.Store
	cfg   Config
	log   logger.Logger
	tr    tracker.Announcer
	res   *resume.Store
	reg   *Registry

	mu       sync.Mutex
	have     bitfield.BitField
	missing  map[uint32]struct{}
	partial  map[uint32]*pieceAssembly
	peers    map[[20]byte]*peer.Session
	uploaded int64

	downloadedCounter metrics.Counter
	uploadedCounter   metrics.Counter

	doneC    chan struct{}
	closeOne sync.Once
	status   Status
}

// Status is the terminal state a Coordinator reports on shutdown.
type Status int

const (
	StatusRunning Status = iota
	StatusComplete
	StatusFailed
)

// New constructs (but does not start) a Coordinator for the parsed torrent mi,
// opening the piece store and running its resume scan. If a resume record
// exists in res and agrees with the torrent's piece count, it is used
// instead of a full disk resume scan.
func New(mi *metainfo.MetaInfo, cfg Config, res *resume.Store, reg *Registry) (*Coordinator, error) {
	path := cfg.DestDir + "/" + mi.Info.Name
	var have bitfield.BitField
	var missingList []uint32
	var s *store.Store
	var err error

	if res != nil {
		if rec, ok := res.Get(mi.Info.Hash); ok && rec.NumPieces == mi.Info.NumPieces {
			s, have, missingList, err = store.OpenWithHave(path, &mi.Info, rec.Have)
		}
	}
	if s == nil {
		s, have, missingList, err = store.Open(path, &mi.Info)
	}
	if err != nil {
		return nil, err
	}

	missing := make(map[uint32]struct{}, len(missingList))
	for _, i := range missingList {
		missing[i] = struct{}{}
	}

	u, err := url.Parse(mi.Announce)
	if err != nil {
		return nil, fmt.Errorf("swarm: invalid announce url: %w", err)
	}

	registry := metrics.NewRegistry()
	c := &Coordinator{
		info:              mi,
		store:             s,
		cfg:               cfg,
		log:               logger.New(fmt.Sprintf("coordinator %x", mi.Info.Hash[:4])),
		tr:                tracker.NewHTTPTracker(u),
		res:               res,
		reg:               reg,
		have:              have,
		missing:           missing,
		partial:           make(map[uint32]*pieceAssembly),
		peers:             make(map[[20]byte]*peer.Session),
		downloadedCounter: metrics.GetOrRegisterCounter("downloaded", registry),
		uploadedCounter:   metrics.GetOrRegisterCounter("uploaded", registry),
		doneC:             make(chan struct{}),
	}
	return c, nil
}

// Download is the idempotent-by-info-hash entry point: it returns the
// existing Coordinator for mi's info-hash if one is already running in reg,
// starting a fresh one only if not.
func Download(mi *metainfo.MetaInfo, cfg Config, res *resume.Store, reg *Registry) (*Coordinator, error) {
	if existing, ok := reg.Find(mi.Info.Hash); ok {
		return existing, nil
	}
	c, err := New(mi, cfg, res, reg)
	if err != nil {
		return nil, err
	}
	actual, inserted := reg.GetOrInsert(mi.Info.Hash, c)
	if !inserted {
		_ = c.store.Close()
		return actual, nil
	}
	if c.isComplete() {
		c.status = StatusComplete
		c.Close()
		_ = c.store.Close()
		reg.Remove(mi.Info.Hash, c)
		return c, nil
	}
	go c.run()
	return c, nil
}

func (c *Coordinator) isComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.missing) == 0
}

// Done is closed when the coordinator shuts down, complete or not.
func (c *Coordinator) Done() <-chan struct{} { return c.doneC }

// StatusValue reports the terminal state; only meaningful after Done is closed.
func (c *Coordinator) StatusValue() Status { return c.status }

// Snapshot is a point-in-time view of download progress, for the CLI's
// status output.
type Snapshot struct {
	InfoHash  [20]byte `json:"info_hash"`
	Name      string   `json:"name"`
	NumPieces uint32   `json:"num_pieces"`
	Have      uint32   `json:"have"`
	Missing   uint32   `json:"missing"`
	Peers     int      `json:"peers"`
	Uploaded  int64    `json:"uploaded_bytes"`
	Downloaded int64   `json:"downloaded_bytes"`
}

// Snapshot returns the coordinator's current progress.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		InfoHash:   c.info.Info.Hash,
		Name:       c.info.Info.Name,
		NumPieces:  c.info.Info.NumPieces,
		Have:       c.have.Count(),
		Missing:    uint32(len(c.missing)),
		Peers:      len(c.peers),
		Uploaded:   c.uploaded,
		Downloaded: int64(c.downloadedCounter.Count()),
	}
}

func (c *Coordinator) run() {
	defer c.reg.Remove(c.info.Info.Hash, c)
	defer c.Close()
	defer c.store.Close()

	if c.cfg.ListenAddr != "" {
		go c.acceptLoop()
	}
	c.trackerLoop()
}

// trackerLoop announces started, then periodically at the interval the
// tracker returns, bounding a failed announce's retries with an
// exponential backoff floored at 30s before falling back to the normal
// per-tick schedule.
func (c *Coordinator) trackerLoop() {
	event := tracker.EventStarted
	for {
		if c.isComplete() {
			c.status = StatusComplete
			return
		}

		resp, err := c.announceWithRetry(event)
		event = tracker.EventNone
		interval := tracker.DefaultInterval
		if err != nil {
			c.log.Errorf("tracker announce failed: %s", err)
		} else {
			interval = resp.Interval
			for _, addr := range resp.Peers {
				go c.connectOutbound(addr)
			}
		}

		select {
		case <-time.After(interval):
		case <-c.doneC:
			return
		}
	}
}

func (c *Coordinator) announceWithRetry(event tracker.Event) (*tracker.Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = tracker.DefaultInterval
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 5 * time.Minute

	var resp *tracker.Response
	op := func() error {
		var err error
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		resp, err = c.tr.Announce(ctx, c.announceRequest(event))
		return err
	}
	err := backoff.Retry(op, b)
	return resp, err
}

func (c *Coordinator) announceRequest(event tracker.Event) tracker.Request {
	c.mu.Lock()
	left := int64(0)
	for i := range c.missing {
		left += int64(c.store.PieceLength(i))
	}
	uploaded := c.uploaded
	c.mu.Unlock()
	return tracker.Request{
		InfoHash:   c.info.Info.Hash,
		PeerID:     c.cfg.PeerID,
		Port:       c.cfg.Port,
		Uploaded:   uploaded,
		Downloaded: int64(c.downloadedCounter.Count()),
		Left:       left,
		Event:      event,
	}
}

func (c *Coordinator) acceptLoop() {
	ln, err := net.Listen("tcp", c.cfg.ListenAddr)
	if err != nil {
		c.log.Errorf("cannot listen: %s", err)
		return
	}
	go func() {
		<-c.doneC
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go c.acceptInbound(conn)
	}
}

const handshakeTimeout = 30 * time.Second

func (c *Coordinator) acceptInbound(conn net.Conn) {
	if c.blocked(conn.RemoteAddr()) {
		conn.Close()
		return
	}
	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	h, err := peerprotocol.ReadHandshake(conn)
	if err != nil {
		conn.Close()
		return
	}
	if h.InfoHash != c.info.Info.Hash {
		conn.Close()
		return
	}
	if err := peerprotocol.WriteHandshake(conn, peerprotocol.Handshake{InfoHash: c.info.Info.Hash, PeerID: c.cfg.PeerID}); err != nil {
		conn.Close()
		return
	}
	conn.SetDeadline(time.Time{})
	c.addSession(conn, h.PeerID, peer.Incoming)
}

var errSelfConnection = errors.New("swarm: refusing to connect to self")

func (c *Coordinator) blocked(addr net.Addr) bool {
	if c.cfg.Blocklist == nil {
		return false
	}
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return false
	}
	return c.cfg.Blocklist.Blocked(tcpAddr.IP)
}

func (c *Coordinator) connectOutbound(addr *net.TCPAddr) {
	if c.blocked(addr) {
		return
	}
	conn, err := net.DialTimeout("tcp", addr.String(), handshakeTimeout)
	if err != nil {
		return
	}
	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	if err := peerprotocol.WriteHandshake(conn, peerprotocol.Handshake{InfoHash: c.info.Info.Hash, PeerID: c.cfg.PeerID}); err != nil {
		conn.Close()
		return
	}
	h, err := peerprotocol.ReadHandshake(conn)
	if err != nil {
		conn.Close()
		return
	}
	if h.InfoHash != c.info.Info.Hash {
		conn.Close()
		return
	}
	if h.PeerID == c.cfg.PeerID {
		c.log.Debug(errSelfConnection)
		conn.Close()
		return
	}
	conn.SetDeadline(time.Time{})
	c.addSession(conn, h.PeerID, peer.Outgoing)
}

func (c *Coordinator) addSession(conn net.Conn, peerID [20]byte, dir peer.Direction) {
	c.mu.Lock()
	if _, dup := c.peers[peerID]; dup {
		c.mu.Unlock()
		conn.Close()
		return
	}
	s := peer.New(conn, peerID, dir, c.info.Info.NumPieces, c, c.cfg.UploadBPS)
	c.peers[peerID] = s
	have := c.have
	c.mu.Unlock()

	s.SendBitfield(have)

	go func() {
		s.Run()
		c.mu.Lock()
		delete(c.peers, peerID)
		c.mu.Unlock()
	}()
}

// NumPieces implements peer.Torrent.
func (c *Coordinator) NumPieces() uint32 { return c.info.Info.NumPieces }

// ReadBlock implements peer.Torrent. Every block actually handed back to a
// Session for upload counts toward the tracker's uploaded total.
func (c *Coordinator) ReadBlock(index, begin, length uint32) ([]byte, error) {
	b, err := c.store.Read(c.store.PieceOffset(index)+int64(begin), length)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.uploaded += int64(len(b))
	c.mu.Unlock()
	c.uploadedCounter.Inc(int64(len(b)))
	return b, nil
}

// SelectBlocks implements peer.Torrent: it returns up to n block requests
// for pieces the peer has and we are still missing. Piece order is lowest
// missing index first, which is simple and deterministic; true rarest-first
// weighting across peers is future work (see DESIGN.md).
func (c *Coordinator) SelectBlocks(s *peer.Session, has bitfield.BitField, n int) []peer.BlockRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	candidates := make([]uint32, 0, len(c.missing))
	for i := range c.missing {
		if has.Test(i) {
			candidates = append(candidates, i)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	var reqs []peer.BlockRequest
	for _, index := range candidates {
		if len(reqs) >= n {
			break
		}
		pieceLen := c.store.PieceLength(index)
		have := c.boundedHaveBytes(index)
		for begin := have; begin < pieceLen && len(reqs) < n; begin += peerprotocol.BlockSize {
			length := peerprotocol.BlockSize
			if remaining := pieceLen - begin; remaining < uint32(length) {
				length = int(remaining)
			}
			reqs = append(reqs, peer.BlockRequest{Index: index, Begin: begin, Length: uint32(length)})
		}
	}
	return reqs
}

// boundedHaveBytes returns the lowest offset not yet accumulated for index,
// so SelectBlocks does not re-request blocks already sitting in partial.
func (c *Coordinator) boundedHaveBytes(index uint32) uint32 {
	pa, ok := c.partial[index]
	if !ok {
		return 0
	}
	offsets := make([]uint32, 0, len(pa.blocks))
	for begin := range pa.blocks {
		offsets = append(offsets, begin)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	var next uint32
	for _, begin := range offsets {
		if begin != next {
			break
		}
		next += uint32(len(pa.blocks[begin]))
	}
	return next
}

// SubmitBlock implements peer.Torrent.
func (c *Coordinator) SubmitBlock(s *peer.Session, index, begin uint32, data []byte) error {
	c.mu.Lock()
	if _, missing := c.missing[index]; !missing {
		c.mu.Unlock()
		return nil // already have it; duplicate completion is a no-op
	}
	pa, ok := c.partial[index]
	if !ok {
		pa = &pieceAssembly{blocks: make(map[uint32][]byte)}
		c.partial[index] = pa
	}
	if _, dup := pa.blocks[begin]; !dup {
		pa.blocks[begin] = data
		pa.total += uint32(len(data))
	}
	c.downloadedCounter.Inc(int64(len(data)))
	complete := pa.total == c.store.PieceLength(index)
	c.mu.Unlock()

	if !complete {
		return nil
	}
	return c.finishPiece(index)
}

func (c *Coordinator) finishPiece(index uint32) error {
	c.mu.Lock()
	pa := c.partial[index]
	c.mu.Unlock()
	if pa == nil {
		return nil
	}

	buf := make([]byte, 0, c.store.PieceLength(index))
	offsets := make([]uint32, 0, len(pa.blocks))
	for begin := range pa.blocks {
		offsets = append(offsets, begin)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	for _, begin := range offsets {
		buf = append(buf, pa.blocks[begin]...)
	}

	err := c.store.WritePiece(index, buf)

	c.mu.Lock()
	delete(c.partial, index)
	if err == nil {
		c.have.Set(index)
		delete(c.missing, index)
	}
	missingLeft := len(c.missing)
	peers := make([]*peer.Session, 0, len(c.peers))
	for _, p := range c.peers {
		peers = append(peers, p)
	}
	c.mu.Unlock()

	if err != nil {
		if errors.Is(err, store.ErrCorruptPiece) {
			c.log.Errorf("piece %d failed hash verification, discarding", index)
			return nil
		}
		c.log.Errorf("fatal I/O error writing piece %d: %s", index, err)
		c.status = StatusFailed
		c.Close()
		return err
	}

	if c.res != nil {
		c.res.Put(c.info.Info.Hash, resume.Record{NumPieces: c.info.Info.NumPieces, Have: c.have})
	}

	for _, p := range peers {
		p.CancelPiece(index)
		p.SendHave(index)
	}
	if missingLeft == 0 {
		c.status = StatusComplete
		c.Close()
	}
	return nil
}

// PeerHave implements peer.Torrent. Per-peer have tracking lives entirely
// in the Session; the coordinator only needs the snapshot passed to
// SelectBlocks, so there is nothing to record here.
func (c *Coordinator) PeerHave(s *peer.Session, index uint32) {}

// PeerBitfield implements peer.Torrent; see PeerHave.
func (c *Coordinator) PeerBitfield(s *peer.Session, has bitfield.BitField) {}

// PeerGone implements peer.Torrent; session removal from the peers map
// already happens in addSession's goroutine, so this is a no-op hook kept
// for symmetry with the interface and future per-peer cleanup.
func (c *Coordinator) PeerGone(s *peer.Session) {}

// Close shuts the coordinator down, closing doneC once.
func (c *Coordinator) Close() {
	c.closeOne.Do(func() { close(c.doneC) })
}
