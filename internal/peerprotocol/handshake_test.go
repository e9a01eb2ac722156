package peerprotocol

import (
	"bytes"
	"testing"
)

func TestHandshakeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	h := Handshake{InfoHash: [20]byte{1, 2, 3}, PeerID: [20]byte{9, 9, 9}}
	if err := WriteHandshake(&buf, h); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != HandshakeLen {
		t.Fatalf("expected %d bytes, got %d", HandshakeLen, buf.Len())
	}
	got, err := ReadHandshake(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.InfoHash != h.InfoHash || got.PeerID != h.PeerID {
		t.Errorf("handshake mismatch: %+v != %+v", got, h)
	}
}

func TestReadHandshakeRejectsBadPstr(t *testing.T) {
	buf := make([]byte, HandshakeLen)
	buf[0] = PstrLen
	copy(buf[1:20], []byte("not the right string"))
	if _, err := ReadHandshake(bytes.NewReader(buf)); err == nil {
		t.Fatal("expected error for invalid pstr")
	}
}

func TestWriteFrameAndReadFrameLength(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, HaveMessage{Index: 7}); err != nil {
		t.Fatal(err)
	}
	length, err := ReadFrameLength(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if length != 5 { // 1 byte id + 4 byte index
		t.Errorf("expected length 5, got %d", length)
	}
	var id [1]byte
	if _, err := buf.Read(id[:]); err != nil {
		t.Fatal(err)
	}
	if messageidFromByte(id[0]) != "have" {
		t.Errorf("unexpected message id byte: %d", id[0])
	}
}

func messageidFromByte(b byte) string {
	switch b {
	case 4:
		return "have"
	default:
		return "?"
	}
}

func TestWriteKeepAlive(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteKeepAlive(&buf); err != nil {
		t.Fatal(err)
	}
	length, err := ReadFrameLength(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if length != 0 {
		t.Errorf("expected keep-alive length 0, got %d", length)
	}
}
