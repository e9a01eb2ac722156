// Package peerprotocol implements the BitTorrent peer wire protocol (BEP-3):
// the handshake, the length-prefixed framing, and the in-scope message set
// (choke, unchoke, interested, not_interested, have, bitfield, request,
// piece, cancel). Keep-alives, extension messages and the DHT port message
// are handled by the framing layer, not modeled as typed messages here.
package peerprotocol

import (
	"encoding/binary"
	"io"

	"github.com/leechd/leechd/internal/messageid"
)

// BlockSize is the size in bytes of a request/piece block, except possibly
// the last block of the last piece.
const BlockSize = 16 * 1024

// MaxInFlight bounds the number of outstanding block requests a PeerSession
// keeps in flight to a single peer at once.
const MaxInFlight = 8

// MaxAllowedBlockSize rejects a peer's request for a block larger than any
// legitimate client would ever ask for.
const MaxAllowedBlockSize = 32 * 1024

// Message is a peer protocol message ready to be framed and written to the wire.
type Message interface {
	io.Reader
	ID() messageid.MessageID
}

type emptyMessage struct{}

func (emptyMessage) Read(b []byte) (int, error) { return 0, io.EOF }

// ChokeMessage tells the peer it should stop expecting responses to its requests.
type ChokeMessage struct{ emptyMessage }

// UnchokeMessage tells the peer it may now request blocks.
type UnchokeMessage struct{ emptyMessage }

// InterestedMessage tells the peer we want to request blocks once unchoked.
type InterestedMessage struct{ emptyMessage }

// NotInterestedMessage tells the peer we have nothing left to request from it.
type NotInterestedMessage struct{ emptyMessage }

func (ChokeMessage) ID() messageid.MessageID         { return messageid.Choke }
func (UnchokeMessage) ID() messageid.MessageID       { return messageid.Unchoke }
func (InterestedMessage) ID() messageid.MessageID    { return messageid.Interested }
func (NotInterestedMessage) ID() messageid.MessageID { return messageid.NotInterested }

// HaveMessage announces that the sender has verified piece Index.
type HaveMessage struct{ Index uint32 }

func (HaveMessage) ID() messageid.MessageID { return messageid.Have }

func (m HaveMessage) Read(b []byte) (int, error) {
	binary.BigEndian.PutUint32(b[0:4], m.Index)
	return 4, io.EOF
}

// BitfieldMessage carries the sender's full have-set, MSB-first.
type BitfieldMessage struct {
	Data []byte
	pos  int
}

func (BitfieldMessage) ID() messageid.MessageID { return messageid.Bitfield }

func (m *BitfieldMessage) Read(b []byte) (n int, err error) {
	n = copy(b, m.Data[m.pos:])
	m.pos += n
	if m.pos == len(m.Data) {
		err = io.EOF
	}
	return
}

// RequestMessage asks the peer for a block of Length bytes at Begin within piece Index.
type RequestMessage struct{ Index, Begin, Length uint32 }

func (RequestMessage) ID() messageid.MessageID { return messageid.Request }

func (m RequestMessage) Read(b []byte) (int, error) {
	binary.BigEndian.PutUint32(b[0:4], m.Index)
	binary.BigEndian.PutUint32(b[4:8], m.Begin)
	binary.BigEndian.PutUint32(b[8:12], m.Length)
	return 12, io.EOF
}

// CancelMessage withdraws a previously sent RequestMessage. It is advisory:
// the remote may have already started sending the block.
type CancelMessage struct{ RequestMessage }

func (CancelMessage) ID() messageid.MessageID { return messageid.Cancel }

// PieceMessage is the header of a block response; the block bytes follow
// immediately in the frame and are handled by the reader separately so a
// multi-megabyte block is never fully buffered as a Message value.
type PieceMessage struct{ Index, Begin uint32 }

func (PieceMessage) ID() messageid.MessageID { return messageid.Piece }

func (m PieceMessage) Read(b []byte) (int, error) {
	binary.BigEndian.PutUint32(b[0:4], m.Index)
	binary.BigEndian.PutUint32(b[4:8], m.Begin)
	return 8, io.EOF
}
