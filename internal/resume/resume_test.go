package resume

import (
	"path/filepath"
	"testing"

	"github.com/leechd/leechd/internal/bitfield"
)

func TestPutGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var ih [20]byte
	copy(ih[:], "aaaaaaaaaaaaaaaaaaaa")

	have := bitfield.New(10)
	have.Set(2)
	have.Set(7)

	s.Put(ih, Record{NumPieces: 10, Have: have})

	rec, ok := s.Get(ih)
	if !ok {
		t.Fatal("expected a record")
	}
	if rec.NumPieces != 10 {
		t.Errorf("expected 10 pieces, got %d", rec.NumPieces)
	}
	if !rec.Have.Test(2) || !rec.Have.Test(7) || rec.Have.Test(3) {
		t.Errorf("unexpected have-set after round trip")
	}
}

func TestGetMissingReturnsFalse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var ih [20]byte
	if _, ok := s.Get(ih); ok {
		t.Fatal("expected no record for an unknown info-hash")
	}
}
