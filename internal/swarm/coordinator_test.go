package swarm

import (
	"crypto/sha1" // nolint: gosec
	"os"
	"path/filepath"
	"testing"

	"github.com/zeebo/bencode"

	"github.com/leechd/leechd/internal/bitfield"
	"github.com/leechd/leechd/internal/metainfo"
)

func buildTestTorrent(t *testing.T, pieces [][]byte, announce string) *metainfo.MetaInfo {
	t.Helper()
	var hashes []byte
	var total int64
	for _, p := range pieces {
		sum := sha1.Sum(p) // nolint: gosec
		hashes = append(hashes, sum[:]...)
		total += int64(len(p))
	}
	info := map[string]interface{}{
		"name":         "out.bin",
		"length":       total,
		"piece length": int64(len(pieces[0])),
		"pieces":       string(hashes),
	}
	infoBytes, err := bencode.EncodeBytes(info)
	if err != nil {
		t.Fatal(err)
	}

	mi := &metainfo.MetaInfo{Announce: announce}
	parsedInfo, err := metainfo.NewInfo(infoBytes)
	if err != nil {
		t.Fatal(err)
	}
	mi.Info = *parsedInfo
	return mi
}

func TestSelectBlocksSkipsMissingNotHeldByPeer(t *testing.T) {
	dir := t.TempDir()
	pieces := [][]byte{[]byte("aaaa"), []byte("bbbb")}
	mi := buildTestTorrent(t, pieces, "http://example.invalid/announce")

	c, err := New(mi, Config{DestDir: dir}, nil, NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	defer c.store.Close()

	has := bitfield.New(2)
	has.Set(0) // peer only has piece 0

	reqs := c.SelectBlocks(nil, has, 8)
	for _, r := range reqs {
		if r.Index != 0 {
			t.Errorf("expected only requests for piece 0, got index %d", r.Index)
		}
	}
	if len(reqs) == 0 {
		t.Error("expected at least one request for piece 0")
	}
}

func TestSubmitBlockWritesCompletedPiece(t *testing.T) {
	dir := t.TempDir()
	pieces := [][]byte{[]byte("aaaa"), []byte("bbbb")}
	mi := buildTestTorrent(t, pieces, "http://example.invalid/announce")

	c, err := New(mi, Config{DestDir: dir}, nil, NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	defer c.store.Close()

	if err := c.SubmitBlock(nil, 0, 0, []byte("aaaa")); err != nil {
		t.Fatal(err)
	}

	c.mu.Lock()
	_, stillMissing := c.missing[0]
	have := c.have.Test(0)
	c.mu.Unlock()
	if stillMissing {
		t.Error("expected piece 0 to be removed from missing")
	}
	if !have {
		t.Error("expected piece 0 to be marked have")
	}

	path := filepath.Join(dir, "out.bin.download")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b[0:4]) != "aaaa" {
		t.Errorf("unexpected file contents: %q", b[0:4])
	}
}

func TestSubmitBlockDiscardsCorruptPiece(t *testing.T) {
	dir := t.TempDir()
	pieces := [][]byte{[]byte("aaaa")}
	mi := buildTestTorrent(t, pieces, "http://example.invalid/announce")

	c, err := New(mi, Config{DestDir: dir}, nil, NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	defer c.store.Close()

	if err := c.SubmitBlock(nil, 0, 0, []byte("xxxx")); err != nil {
		t.Fatal(err)
	}

	c.mu.Lock()
	_, stillMissing := c.missing[0]
	c.mu.Unlock()
	if !stillMissing {
		t.Error("expected corrupt piece to remain missing")
	}
}

func TestSubmitBlockIgnoresAlreadyHeldPiece(t *testing.T) {
	dir := t.TempDir()
	pieces := [][]byte{[]byte("aaaa")}
	mi := buildTestTorrent(t, pieces, "http://example.invalid/announce")

	c, err := New(mi, Config{DestDir: dir}, nil, NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	defer c.store.Close()

	if err := c.SubmitBlock(nil, 0, 0, []byte("aaaa")); err != nil {
		t.Fatal(err)
	}
	// Second delivery for the same (already-complete) piece must be a no-op.
	if err := c.SubmitBlock(nil, 0, 0, []byte("aaaa")); err != nil {
		t.Fatal(err)
	}
}
