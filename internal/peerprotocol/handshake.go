package peerprotocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Pstr is the protocol string sent at the start of every handshake.
var Pstr = []byte("BitTorrent protocol")

// PstrLen is len(Pstr), sent as the first handshake byte.
const PstrLen = byte(19)

// HandshakeLen is the total length in bytes of a handshake message.
const HandshakeLen = 1 + 19 + 8 + 20 + 20

// Handshake is the fixed 68-byte message exchanged before any framed traffic.
type Handshake struct {
	Extensions [8]byte
	InfoHash   [20]byte
	PeerID     [20]byte
}

// WriteHandshake writes h to w in wire format.
func WriteHandshake(w io.Writer, h Handshake) error {
	buf := make([]byte, 0, HandshakeLen)
	buf = append(buf, PstrLen)
	buf = append(buf, Pstr...)
	buf = append(buf, h.Extensions[:]...)
	buf = append(buf, h.InfoHash[:]...)
	buf = append(buf, h.PeerID[:]...)
	_, err := w.Write(buf)
	return err
}

// ReadHandshake reads and validates a handshake from r.
func ReadHandshake(r io.Reader) (Handshake, error) {
	var h Handshake
	buf := make([]byte, HandshakeLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return h, err
	}
	if buf[0] != PstrLen {
		return h, fmt.Errorf("peerprotocol: invalid pstrlen: %d", buf[0])
	}
	if !bytes.Equal(buf[1:20], Pstr) {
		return h, fmt.Errorf("peerprotocol: invalid pstr: %q", buf[1:20])
	}
	copy(h.Extensions[:], buf[20:28])
	copy(h.InfoHash[:], buf[28:48])
	copy(h.PeerID[:], buf[48:68])
	return h, nil
}

// WriteFrame writes a length-prefixed message frame to w.
func WriteFrame(w io.Writer, msg Message) error {
	payload, err := io.ReadAll(msg)
	if err != nil && err != io.EOF {
		return err
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(1+len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(msg.ID())}); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// WriteKeepAlive writes a zero-length keep-alive frame to w.
func WriteKeepAlive(w io.Writer) error {
	var zero [4]byte
	_, err := w.Write(zero[:])
	return err
}

// MaxFrameLength bounds any single frame's declared length, regardless of
// message type. It is sized generously above the largest legitimate frame
// (a piece message's 8-byte header plus a block up to MaxAllowedBlockSize)
// so a peer cannot force a multi-gigabyte allocation with a bogus prefix.
const MaxFrameLength = 1 << 20 // 1 MiB

// ReadFrameLength reads the 4-byte big-endian length prefix of the next frame.
// A returned length of 0 indicates a keep-alive. A length exceeding
// MaxFrameLength is a protocol violation and returns an error instead.
func ReadFrameLength(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	length := binary.BigEndian.Uint32(buf[:])
	if length > MaxFrameLength {
		return 0, fmt.Errorf("peerprotocol: frame length %d exceeds maximum %d", length, MaxFrameLength)
	}
	return length, nil
}
