// Package peer implements the PeerSession actor: one goroutine group per
// connected peer, driving the choke/interest state machine, block request
// pipelining and piece upload over a single net.Conn. It knows nothing about
// the swarm as a whole; piece selection and storage are delegated to a
// Torrent implementation supplied by the coordinator.
package peer

import (
	"net"
	"sync"
	"time"

	"github.com/juju/ratelimit"

	"github.com/leechd/leechd/internal/bitfield"
	"github.com/leechd/leechd/internal/logger"
	"github.com/leechd/leechd/internal/peerprotocol"
)

// Direction records which side initiated the TCP connection.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

// connReadTimeout disconnects a peer that sends nothing, not even a
// keep-alive, for this long.
const connReadTimeout = 2 * time.Minute

// keepAliveInterval is how often we send our own keep-alive, whether or not
// other messages went out in between.
const keepAliveInterval = 10 * time.Second

// refillInterval is the tick rate of the work loop that requests new blocks
// and reconsiders interest/choke state.
const refillInterval = 250 * time.Millisecond

// BlockRequest names a block a Session wants to ask its peer for.
type BlockRequest struct {
	Index, Begin, Length uint32
}

type blockKey struct{ Index, Begin uint32 }

// inFlightEntry records when a block was requested and its length, so a
// completed piece can be canceled with a fully-formed wire message even
// though blockKey itself drops Length.
type inFlightEntry struct {
	at     time.Time
	length uint32
}

// Torrent is the coordinator-side view a Session needs to drive requests,
// store received blocks, and answer uploads. Implementations must be safe
// for concurrent use by every Session of the same torrent.
type Torrent interface {
	// NumPieces returns the total piece count.
	NumPieces() uint32
	// ReadBlock returns the bytes for a block this client already has, to
	// serve an incoming request.
	ReadBlock(index, begin, length uint32) ([]byte, error)
	// SelectBlocks asks for up to n new block requests to issue to this
	// peer, given the peer's announced have-set. It may return fewer than n.
	SelectBlocks(s *Session, has bitfield.BitField, n int) []BlockRequest
	// SubmitBlock delivers a received block. The returned error, if any,
	// came from piece verification and the Session logs it but does not
	// disconnect solely because of it.
	SubmitBlock(s *Session, index, begin uint32, data []byte) error
	// PeerHave records that the peer announced piece index.
	PeerHave(s *Session, index uint32)
	// PeerBitfield records the peer's full have-set.
	PeerBitfield(s *Session, has bitfield.BitField)
	// PeerGone releases any claims held for this session (in-flight
	// requests it will never complete) so other peers can pick them up.
	PeerGone(s *Session)
}

// Session is the actor for one peer connection, reachable after the
// handshake has already completed.
type Session struct {
	conn      net.Conn
	PeerID    [20]byte
	Direction Direction
	torrent   Torrent
	log       logger.Logger

	writer *writer

	mu             sync.Mutex
	amChoking      bool
	amInterested   bool
	peerChoking    bool
	peerInterested bool
	peerHas        bitfield.BitField
	inFlight       map[blockKey]inFlightEntry

	upload *ratelimit.Bucket

	Disconnected chan struct{}
	closeOnce    sync.Once
	closeC       chan struct{}
}

// New wraps a connection, already past handshake, as a Session. uploadBps
// of 0 disables upload rate limiting for this peer.
func New(conn net.Conn, peerID [20]byte, direction Direction, numPieces uint32, t Torrent, uploadBps int64) *Session {
	var arrow string
	switch direction {
	case Outgoing:
		arrow = "-> "
	case Incoming:
		arrow = "<- "
	}
	s := &Session{
		conn:         conn,
		PeerID:       peerID,
		Direction:    direction,
		torrent:      t,
		log:          logger.New("peer " + arrow + conn.RemoteAddr().String()),
		amChoking:    true,
		peerChoking:  true,
		peerHas:      bitfield.New(numPieces),
		inFlight:     make(map[blockKey]inFlightEntry),
		Disconnected: make(chan struct{}),
		closeC:       make(chan struct{}),
	}
	if uploadBps > 0 {
		s.upload = ratelimit.NewBucketWithRate(float64(uploadBps), uploadBps)
	}
	s.writer = newWriter(conn, s.log, s.upload)
	return s
}

// Run starts the reader, writer and work-loop goroutines and blocks until
// the session ends, either because the peer disconnected or Close was called.
func (s *Session) Run() {
	defer close(s.Disconnected)
	defer s.torrent.PeerGone(s)

	inboundC := make(chan interface{}, 64)
	go s.writer.run(s.closeC)
	go readLoop(s.conn, s.log, inboundC, s.closeC)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	refill := time.NewTicker(refillInterval)
	defer refill.Stop()

	for {
		select {
		case m, ok := <-inboundC:
			if !ok {
				s.Close()
				return
			}
			s.handle(m)
		case <-keepAlive.C:
			s.writer.sendKeepAlive(s.closeC)
		case <-refill.C:
			s.requestMore()
		case <-s.closeC:
			return
		}
	}
}

// Close tears the session down. Safe to call more than once and from any
// goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closeC)
		s.conn.Close()
	})
}

// SendHave announces a newly completed local piece to this peer.
func (s *Session) SendHave(index uint32) {
	s.writer.send(peerprotocol.HaveMessage{Index: index}, s.closeC)
}

// CancelPiece drops every outstanding request this session has in flight
// for piece index and sends the peer a cancel for each, for use when some
// other session finishes the piece first and these requests are now moot.
func (s *Session) CancelPiece(index uint32) {
	s.mu.Lock()
	var reqs []peerprotocol.RequestMessage
	for k, e := range s.inFlight {
		if k.Index != index {
			continue
		}
		reqs = append(reqs, peerprotocol.RequestMessage{Index: k.Index, Begin: k.Begin, Length: e.length})
		delete(s.inFlight, k)
	}
	s.mu.Unlock()
	for _, req := range reqs {
		s.writer.send(peerprotocol.CancelMessage{RequestMessage: req}, s.closeC)
	}
}

// SendBitfield announces the given have-set, once, right after handshake.
func (s *Session) SendBitfield(have bitfield.BitField) {
	if have.IsEmpty() {
		return
	}
	s.writer.send(&peerprotocol.BitfieldMessage{Data: append([]byte(nil), have.Bytes()...)}, s.closeC)
}

func (s *Session) handle(m interface{}) {
	switch msg := m.(type) {
	case chokeMsg:
		s.mu.Lock()
		s.peerChoking = true
		for k := range s.inFlight {
			delete(s.inFlight, k)
		}
		s.mu.Unlock()
	case unchokeMsg:
		s.mu.Lock()
		s.peerChoking = false
		s.mu.Unlock()
	case interestedMsg:
		s.mu.Lock()
		s.peerInterested = true
		s.mu.Unlock()
		s.maybeUnchoke()
	case notInterestedMsg:
		s.mu.Lock()
		s.peerInterested = false
		s.mu.Unlock()
	case haveMsg:
		if msg.index >= s.torrent.NumPieces() {
			s.log.Error("peer announced out-of-range piece index")
			s.Close()
			return
		}
		s.mu.Lock()
		s.peerHas.Set(msg.index)
		s.mu.Unlock()
		s.torrent.PeerHave(s, msg.index)
		s.considerInterest()
	case bitfieldMsg:
		s.mu.Lock()
		s.peerHas = msg.bf
		s.mu.Unlock()
		s.torrent.PeerBitfield(s, msg.bf)
		s.considerInterest()
	case requestMsg:
		s.serveRequest(msg)
	case blockMsg:
		s.receiveBlock(msg)
	case cancelMsg:
		s.writer.cancel(peerprotocol.RequestMessage{Index: msg.index, Begin: msg.begin, Length: msg.length}, s.closeC)
	}
}

func (s *Session) serveRequest(msg requestMsg) {
	s.mu.Lock()
	choking := s.amChoking
	s.mu.Unlock()
	if choking {
		return
	}
	if msg.length > peerprotocol.MaxAllowedBlockSize {
		s.log.Error("peer requested an oversized block")
		s.Close()
		return
	}
	data, err := s.torrent.ReadBlock(msg.index, msg.begin, msg.length)
	if err != nil {
		s.log.Errorf("cannot read requested block: %s", err)
		return
	}
	s.writer.sendPiece(msg.index, msg.begin, data, s.closeC)
}

func (s *Session) receiveBlock(msg blockMsg) {
	key := blockKey{msg.index, msg.begin}
	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()
	if err := s.torrent.SubmitBlock(s, msg.index, msg.begin, msg.data); err != nil {
		s.log.Errorf("rejected block piece=%d begin=%d: %s", msg.index, msg.begin, err)
	}
}

// requestMore asks the torrent for new blocks up to MaxInFlight and queues
// them, and drops requests that have been outstanding too long so a slow
// peer doesn't permanently tie up a piece's blocks.
func (s *Session) requestMore() {
	s.mu.Lock()
	choked := s.peerChoking
	now := time.Now()
	for k, e := range s.inFlight {
		if now.Sub(e.at) > connReadTimeout {
			delete(s.inFlight, k)
		}
	}
	free := peerprotocol.MaxInFlight - len(s.inFlight)
	has := s.peerHas
	s.mu.Unlock()

	if choked || free <= 0 {
		return
	}
	reqs := s.torrent.SelectBlocks(s, has, free)
	if len(reqs) == 0 {
		return
	}
	s.mu.Lock()
	for _, r := range reqs {
		s.inFlight[blockKey{r.Index, r.Begin}] = inFlightEntry{at: now, length: r.Length}
	}
	s.mu.Unlock()
	for _, r := range reqs {
		s.writer.send(peerprotocol.RequestMessage{Index: r.Index, Begin: r.Begin, Length: r.Length}, s.closeC)
	}
}

// considerInterest flips our interested state to match whether the peer's
// have-set still contains anything we don't.
func (s *Session) considerInterest() {
	s.mu.Lock()
	has := s.peerHas
	wasInterested := s.amInterested
	s.mu.Unlock()

	interesting := len(s.torrent.SelectBlocks(s, has, 1)) > 0
	if interesting == wasInterested {
		return
	}
	s.mu.Lock()
	s.amInterested = interesting
	s.mu.Unlock()
	if interesting {
		s.writer.send(peerprotocol.InterestedMessage{}, s.closeC)
	} else {
		s.writer.send(peerprotocol.NotInterestedMessage{}, s.closeC)
	}
}

// maybeUnchoke unchokes an interested peer. There is no limit on the number
// of unchoked peers; a Session unchokes anyone interested and lets its own
// upload rate limiter bucket throttle the bytes.
func (s *Session) maybeUnchoke() {
	s.mu.Lock()
	already := !s.amChoking
	s.amChoking = false
	s.mu.Unlock()
	if already {
		return
	}
	s.writer.send(peerprotocol.UnchokeMessage{}, s.closeC)
}

// Choke chokes the peer and sends it a choke message, unless it is already
// choked.
func (s *Session) Choke() {
	s.mu.Lock()
	already := s.amChoking
	s.amChoking = true
	s.mu.Unlock()
	if already {
		return
	}
	s.writer.send(peerprotocol.ChokeMessage{}, s.closeC)
}

// AmInterested reports whether we last told the peer we're interested.
func (s *Session) AmInterested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.amInterested
}

// PeerInterested reports whether the peer last told us it's interested.
func (s *Session) PeerInterested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerInterested
}
