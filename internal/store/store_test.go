package store_test

import (
	"bytes"
	"crypto/sha1" // nolint: gosec
	"os"
	"path/filepath"
	"testing"

	"github.com/leechd/leechd/internal/metainfo"
	"github.com/leechd/leechd/internal/store"
)

func testInfo(pieceLength uint32, pieces [][]byte) *metainfo.Info {
	var hashes []byte
	var total int64
	for _, p := range pieces {
		total += int64(len(p))
		sum := sha1.Sum(p) // nolint: gosec
		hashes = append(hashes, sum[:]...)
	}
	return &metainfo.Info{
		PieceLength: pieceLength,
		Pieces:      hashes,
		Name:        "test.bin",
		Length:      total,
		NumPieces:   uint32(len(pieces)),
	}
}

func TestOpenCreatesSparseDownloadFile(t *testing.T) {
	dir := t.TempDir()
	info := testInfo(4, [][]byte{[]byte("aaaa"), []byte("bb")})
	path := filepath.Join(dir, "out.bin")

	s, have, missing, err := store.Open(path, info)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if !have.IsEmpty() {
		t.Error("expected empty have set for a fresh download")
	}
	if len(missing) != 2 {
		t.Errorf("expected 2 missing pieces, got %d", len(missing))
	}
	fi, err := os.Stat(path + ".download")
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != info.Length {
		t.Errorf("expected truncated file of size %d, got %d", info.Length, fi.Size())
	}
}

func TestWritePieceRejectsBadHash(t *testing.T) {
	dir := t.TempDir()
	info := testInfo(4, [][]byte{[]byte("aaaa")})
	path := filepath.Join(dir, "out.bin")

	s, _, _, err := store.Open(path, info)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.WritePiece(0, []byte("bbbb")); err != store.ErrCorruptPiece {
		t.Fatalf("expected ErrCorruptPiece, got %v", err)
	}
}

func TestResumeScanRecoversHaveSet(t *testing.T) {
	dir := t.TempDir()
	info := testInfo(4, [][]byte{[]byte("aaaa"), []byte("bb")})
	path := filepath.Join(dir, "out.bin")

	s, _, _, err := store.Open(path, info)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.WritePiece(0, []byte("aaaa")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, have, missing, err := store.Open(path, info)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	if !have.Test(0) {
		t.Error("expected piece 0 to be recovered as have")
	}
	if len(missing) != 1 || missing[0] != 1 {
		t.Errorf("expected piece 1 to remain missing, got %v", missing)
	}
}

func TestCompleteFileOpensReadOnly(t *testing.T) {
	dir := t.TempDir()
	info := testInfo(4, [][]byte{[]byte("aaaa")})
	path := filepath.Join(dir, "out.bin")

	if err := os.WriteFile(path, []byte("aaaa"), 0o640); err != nil {
		t.Fatal(err)
	}

	s, have, missing, err := store.Open(path, info)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if !have.All() {
		t.Error("expected complete have set")
	}
	if len(missing) != 0 {
		t.Error("expected no missing pieces")
	}
	if err := s.Write(0, []byte("xxxx")); err == nil {
		t.Error("expected write to read-only store to fail")
	}

	b, err := s.Read(0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, []byte("aaaa")) {
		t.Errorf("unexpected read: %q", b)
	}
}
