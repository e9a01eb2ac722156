package metainfo

import (
	"bytes"
	"crypto/sha1" // nolint: gosec
	"testing"

	"github.com/zeebo/bencode"
)

func encodeTestTorrent(t *testing.T, pieceLength uint32, length int64, numPieces uint32) []byte {
	t.Helper()
	pieces := make([]byte, int(numPieces)*sha1.Size)
	info := map[string]interface{}{
		"name":         "test.bin",
		"length":       length,
		"piece length": pieceLength,
		"pieces":       pieces,
	}
	infoBytes, err := bencode.EncodeBytes(info)
	if err != nil {
		t.Fatal(err)
	}
	torrent := struct {
		Info     bencode.RawMessage `bencode:"info"`
		Announce string             `bencode:"announce"`
	}{
		Info:     infoBytes,
		Announce: "http://tracker.example.com/announce",
	}
	b, err := bencode.EncodeBytes(torrent)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestNewRoundTrip(t *testing.T) {
	b := encodeTestTorrent(t, 262144, 1048576, 4)
	mi, err := New(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if mi.Announce != "http://tracker.example.com/announce" {
		t.Errorf("unexpected announce: %s", mi.Announce)
	}
	if mi.Info.NumPieces != 4 {
		t.Errorf("expected 4 pieces, got %d", mi.Info.NumPieces)
	}
	if mi.Info.PieceByteLength(3) != 262144 {
		t.Errorf("expected even last piece, got %d", mi.Info.PieceByteLength(3))
	}
}

func TestNewRejectsBadPieceCount(t *testing.T) {
	b := encodeTestTorrent(t, 262144, 1048576, 3) // should be 4
	if _, err := New(bytes.NewReader(b)); err == nil {
		t.Fatal("expected error for mismatched piece count")
	}
}

func TestInfoHashIsStableAcrossParses(t *testing.T) {
	b := encodeTestTorrent(t, 16384, 40000, 3)
	mi1, err := New(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	mi2, err := New(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if mi1.Info.Hash != mi2.Info.Hash {
		t.Fatal("info hash should be deterministic for identical bytes")
	}
}
