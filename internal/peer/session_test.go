package peer

import (
	"bytes"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/leechd/leechd/internal/bitfield"
	"github.com/leechd/leechd/internal/messageid"
	"github.com/leechd/leechd/internal/peerprotocol"
)

type fakeTorrent struct {
	mu        sync.Mutex
	numPieces uint32
	data      map[uint32][]byte
	want      map[uint32]bool
	submitted []BlockRequest
	gone      bool
}

func newFakeTorrent(numPieces uint32) *fakeTorrent {
	return &fakeTorrent{numPieces: numPieces, data: map[uint32][]byte{}, want: map[uint32]bool{}}
}

func (f *fakeTorrent) NumPieces() uint32 { return f.numPieces }

func (f *fakeTorrent) ReadBlock(index, begin, length uint32) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.data[index]
	return b[begin : begin+length], nil
}

func (f *fakeTorrent) SelectBlocks(s *Session, has bitfield.BitField, n int) []BlockRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []BlockRequest
	for i := uint32(0); i < f.numPieces && len(out) < n; i++ {
		if f.want[i] && has.Test(i) {
			out = append(out, BlockRequest{Index: i, Begin: 0, Length: 4})
		}
	}
	return out
}

func (f *fakeTorrent) SubmitBlock(s *Session, index, begin uint32, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, BlockRequest{Index: index, Begin: begin, Length: uint32(len(data))})
	return nil
}

func (f *fakeTorrent) PeerHave(s *Session, index uint32) {}

func (f *fakeTorrent) PeerBitfield(s *Session, has bitfield.BitField) {}

func (f *fakeTorrent) PeerGone(s *Session) {
	f.mu.Lock()
	f.gone = true
	f.mu.Unlock()
}

// readMessage reads one framed message off r and returns its id and payload,
// treating keep-alives (length 0) transparently by skipping them.
func readMessage(r io.Reader) (messageid.MessageID, []byte, error) {
	for {
		length, err := peerprotocol.ReadFrameLength(r)
		if err != nil {
			return 0, nil, err
		}
		if length == 0 {
			continue
		}
		var idByte [1]byte
		if _, err := io.ReadFull(r, idByte[:]); err != nil {
			return 0, nil, err
		}
		payload := make([]byte, length-1)
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, err
		}
		return messageid.MessageID(idByte[0]), payload, nil
	}
}

func TestSessionBecomesInterestedOnBitfield(t *testing.T) {
	client, remote := net.Pipe()
	defer remote.Close()

	ft := newFakeTorrent(2)
	ft.want[1] = true

	s := New(client, [20]byte{1}, Outgoing, 2, ft, 0)
	go s.Run()
	defer s.Close()

	bf := bitfield.New(2)
	bf.Set(1)
	if err := peerprotocol.WriteFrame(remote, &peerprotocol.BitfieldMessage{Data: bf.Bytes()}); err != nil {
		t.Fatal(err)
	}

	remote.SetReadDeadline(time.Now().Add(5 * time.Second))
	id, _, err := readMessage(remote)
	if err != nil {
		t.Fatal(err)
	}
	if id != messageid.Interested {
		t.Fatalf("expected interested message, got %s", id)
	}
}

func TestSessionRequestsBlocksAfterUnchoke(t *testing.T) {
	client, remote := net.Pipe()
	defer remote.Close()

	ft := newFakeTorrent(1)
	ft.want[0] = true

	s := New(client, [20]byte{1}, Outgoing, 1, ft, 0)
	go s.Run()
	defer s.Close()

	bf := bitfield.New(1)
	bf.Set(0)
	if err := peerprotocol.WriteFrame(remote, &peerprotocol.BitfieldMessage{Data: bf.Bytes()}); err != nil {
		t.Fatal(err)
	}
	remote.SetReadDeadline(time.Now().Add(5 * time.Second))
	if id, _, err := readMessage(remote); err != nil || id != messageid.Interested {
		t.Fatalf("expected interested first, got %v %v", id, err)
	}

	if err := peerprotocol.WriteFrame(remote, peerprotocol.UnchokeMessage{}); err != nil {
		t.Fatal(err)
	}

	remote.SetReadDeadline(time.Now().Add(5 * time.Second))
	id, payload, err := readMessage(remote)
	if err != nil {
		t.Fatal(err)
	}
	if id != messageid.Request {
		t.Fatalf("expected request message, got %s", id)
	}
	if len(payload) != 12 {
		t.Fatalf("expected 12-byte request payload, got %d", len(payload))
	}
}

func TestSessionServesRequestWhenUnchoking(t *testing.T) {
	client, remote := net.Pipe()
	defer remote.Close()

	ft := newFakeTorrent(1)
	ft.data[0] = []byte("abcd")

	s := New(client, [20]byte{1}, Incoming, 1, ft, 0)
	go s.Run()
	defer s.Close()

	if err := peerprotocol.WriteFrame(remote, peerprotocol.InterestedMessage{}); err != nil {
		t.Fatal(err)
	}
	remote.SetReadDeadline(time.Now().Add(5 * time.Second))
	if id, _, err := readMessage(remote); err != nil || id != messageid.Unchoke {
		t.Fatalf("expected unchoke, got %v %v", id, err)
	}

	if err := peerprotocol.WriteFrame(remote, peerprotocol.RequestMessage{Index: 0, Begin: 0, Length: 4}); err != nil {
		t.Fatal(err)
	}
	remote.SetReadDeadline(time.Now().Add(5 * time.Second))
	id, payload, err := readMessage(remote)
	if err != nil {
		t.Fatal(err)
	}
	if id != messageid.Piece {
		t.Fatalf("expected piece message, got %s", id)
	}
	if !bytes.Equal(payload[8:], []byte("abcd")) {
		t.Fatalf("unexpected piece payload: %q", payload[8:])
	}
}

func TestSessionSubmitsReceivedBlocks(t *testing.T) {
	client, remote := net.Pipe()
	defer remote.Close()

	ft := newFakeTorrent(1)

	s := New(client, [20]byte{1}, Outgoing, 1, ft, 0)
	go s.Run()
	defer s.Close()

	msg := peerprotocol.PieceMessage{Index: 0, Begin: 0}
	var buf bytes.Buffer
	hdr := make([]byte, 8)
	io.ReadFull(&msg, hdr) // marshal header via Read
	buf.Write(hdr)
	buf.Write([]byte("data"))
	if err := peerprotocol.WriteFrame(remote, &rawMessage{id: messageid.Piece, payload: buf.Bytes()}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ft.mu.Lock()
		n := len(ft.submitted)
		ft.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	ft.mu.Lock()
	defer ft.mu.Unlock()
	if len(ft.submitted) != 1 {
		t.Fatalf("expected one submitted block, got %d", len(ft.submitted))
	}
	if ft.submitted[0].Length != 4 {
		t.Errorf("expected 4-byte block, got %d", ft.submitted[0].Length)
	}
}

type rawMessage struct {
	id      messageid.MessageID
	payload []byte
	pos     int
}

func (m rawMessage) ID() messageid.MessageID { return m.id }

func (m *rawMessage) Read(b []byte) (int, error) {
	n := copy(b, m.payload[m.pos:])
	m.pos += n
	if m.pos == len(m.payload) {
		return n, io.EOF
	}
	return n, nil
}
