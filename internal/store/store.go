// Package store implements the on-disk piece store: a sparse download file
// addressed by piece index, SHA-1 verification per piece, and the resume
// scan that recovers have/missing state on restart.
package store

import (
	"bytes"
	"crypto/sha1" // nolint: gosec
	"errors"
	"fmt"
	"os"

	"github.com/leechd/leechd/internal/bitfield"
	"github.com/leechd/leechd/internal/metainfo"
)

// ErrCorruptPiece is returned by WritePiece when the supplied bytes don't hash to
// the piece's published SHA-1.
var ErrCorruptPiece = errors.New("store: piece data does not match its hash")

// Store is a byte-addressable handle on the target file for one torrent.
// It is shared across every PeerSession for positional reads and writes;
// os.File itself is safe for concurrent use at distinct offsets.
type Store struct {
	info     *metainfo.Info
	file     *os.File
	readOnly bool
}

// downloadSuffix marks an in-progress file so a completed download (the bare
// name) and a partial one are never confused on disk.
const downloadSuffix = ".download"

// Open returns a Store for info's data at path, plus the have/missing split
// recovered by inspecting (or creating) the backing file.
//
// If a complete file named path already exists at the right size, the
// torrent is treated as done: it is opened read-only and every piece is
// marked have. Otherwise, if "<path>.download" exists at the right size, it
// is opened and a resume scan verifies each piece already on disk against its
// published hash; if not, it is created (or resized) to the torrent's length
// and every piece is missing.
func Open(path string, info *metainfo.Info) (*Store, bitfield.BitField, []uint32, error) {
	if fi, err := os.Stat(path); err == nil && fi.Size() == info.Length {
		f, err := os.Open(path) // nolint: gosec
		if err != nil {
			return nil, bitfield.BitField{}, nil, err
		}
		have := bitfield.New(info.NumPieces)
		have.SetAll()
		return &Store{info: info, file: f, readOnly: true}, have, nil, nil
	}

	downloadPath := path + downloadSuffix
	f, existed, err := openOrCreate(downloadPath, info.Length)
	if err != nil {
		return nil, bitfield.BitField{}, nil, err
	}

	s := &Store{info: info, file: f}
	have := bitfield.New(info.NumPieces)
	var missing []uint32
	if !existed {
		for i := uint32(0); i < info.NumPieces; i++ {
			missing = append(missing, i)
		}
		return s, have, missing, nil
	}

	for i := uint32(0); i < info.NumPieces; i++ {
		ok, err := s.verify(i)
		if err != nil {
			return nil, bitfield.BitField{}, nil, err
		}
		if ok {
			have.Set(i)
		} else {
			missing = append(missing, i)
		}
	}
	return s, have, missing, nil
}

// OpenWithHave is like Open but trusts a have-set recovered from an external
// resume record instead of running the hash-verifying resume scan, when the
// backing file already exists at the right size. It is the fast path
// swarm.New takes when a resume record exists; callers must already have validated that
// knownHave's length matches info.NumPieces.
func OpenWithHave(path string, info *metainfo.Info, knownHave bitfield.BitField) (*Store, bitfield.BitField, []uint32, error) {
	if fi, err := os.Stat(path); err == nil && fi.Size() == info.Length {
		f, err := os.Open(path) // nolint: gosec
		if err != nil {
			return nil, bitfield.BitField{}, nil, err
		}
		have := bitfield.New(info.NumPieces)
		have.SetAll()
		return &Store{info: info, file: f, readOnly: true}, have, nil, nil
	}

	downloadPath := path + downloadSuffix
	fi, err := os.Stat(downloadPath)
	if err != nil || fi.Size() != info.Length {
		return Open(path, info)
	}
	f, err := os.OpenFile(downloadPath, os.O_RDWR, 0o640) // nolint: gosec
	if err != nil {
		return nil, bitfield.BitField{}, nil, err
	}

	s := &Store{info: info, file: f}
	var missing []uint32
	for i := uint32(0); i < info.NumPieces; i++ {
		if !knownHave.Test(i) {
			missing = append(missing, i)
		}
	}
	return s, knownHave, missing, nil
}

func openOrCreate(path string, length int64) (f *os.File, existed bool, err error) {
	if fi, statErr := os.Stat(path); statErr == nil && fi.Size() == length {
		f, err = os.OpenFile(path, os.O_RDWR, 0o640) // nolint: gosec
		return f, true, err
	}
	f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o640) // nolint: gosec
	if err != nil {
		return nil, false, err
	}
	if err = f.Truncate(length); err != nil {
		_ = f.Close()
		return nil, false, err
	}
	return f, false, nil
}

// PieceOffset returns the byte offset of piece index within the torrent.
func (s *Store) PieceOffset(index uint32) int64 { return s.info.Offset(index) }

// PieceLength returns the byte length of piece index, trimmed for the last piece.
func (s *Store) PieceLength(index uint32) uint32 { return s.info.PieceByteLength(index) }

// PieceSHA returns the published SHA-1 digest for piece index.
func (s *Store) PieceSHA(index uint32) []byte { return s.info.PieceHash(index) }

// Read performs a positional read of length bytes at offset.
func (s *Store) Read(offset int64, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := s.file.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// Write performs a positional write of b at offset. An I/O error here is
// fatal to the owning coordinator: it may mean the piece is half-written on
// disk, so callers should shut the torrent down rather than keep going.
func (s *Store) Write(offset int64, b []byte) error {
	if s.readOnly {
		return errors.New("store: file is read-only")
	}
	_, err := s.file.WriteAt(b, offset)
	return err
}

// WritePiece verifies b against piece index's published hash and, only on a
// match, writes it to disk. ErrCorruptPiece leaves the store untouched so
// the piece stays a candidate for re-download from another peer.
func (s *Store) WritePiece(index uint32, b []byte) error {
	if uint32(len(b)) != s.PieceLength(index) {
		return fmt.Errorf("store: piece %d has length %d, want %d", index, len(b), s.PieceLength(index))
	}
	sum := sha1.Sum(b) // nolint: gosec
	if !bytes.Equal(sum[:], s.PieceSHA(index)) {
		return ErrCorruptPiece
	}
	return s.Write(s.PieceOffset(index), b)
}

func (s *Store) verify(index uint32) (bool, error) {
	b, err := s.Read(s.PieceOffset(index), s.PieceLength(index))
	if err != nil {
		return false, err
	}
	sum := sha1.Sum(b) // nolint: gosec
	return bytes.Equal(sum[:], s.PieceSHA(index)), nil
}

// Close releases the underlying file descriptor.
func (s *Store) Close() error { return s.file.Close() }
