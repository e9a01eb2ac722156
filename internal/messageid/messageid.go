// Package messageid defines the message type byte used in the length-prefixed
// peer wire protocol (BEP-3). Only the ids this client understands are named;
// every other id is ignored by the reader for forward-compatibility.
package messageid

import "strconv"

// MessageID identifies the payload that follows a frame's length prefix.
type MessageID uint8

// Peer wire protocol message types in scope for this client.
const (
	Choke MessageID = iota
	Unchoke
	Interested
	NotInterested
	Have
	Bitfield
	Request
	Piece
	Cancel
)

var names = map[MessageID]string{
	Choke:         "choke",
	Unchoke:       "unchoke",
	Interested:    "interested",
	NotInterested: "not_interested",
	Have:          "have",
	Bitfield:      "bitfield",
	Request:       "request",
	Piece:         "piece",
	Cancel:        "cancel",
}

func (m MessageID) String() string {
	if s, ok := names[m]; ok {
		return s
	}
	return "unknown(" + strconv.FormatUint(uint64(m), 10) + ")"
}
