package metainfo

import (
	"crypto/sha1" // nolint: gosec
	"errors"

	"github.com/zeebo/bencode"
)

var (
	errInvalidPieceData = errors.New("metainfo: pieces length is not a multiple of 20")
	errNoLength         = errors.New("metainfo: info dict has neither a positive \"length\" nor a usable \"files\" list")
	errMultiFile        = errors.New("metainfo: multi-file torrents are not supported")
)

// Info is the decoded form of the torrent's "info" dictionary. Only the
// single-file layout is supported; a torrent carrying a "files" key is
// rejected at load time.
type Info struct {
	PieceLength uint32 `bencode:"piece length"`
	Pieces      []byte `bencode:"pieces"`
	Name        string `bencode:"name"`
	Length      int64  `bencode:"length"`

	// Files is only inspected to detect (and reject) multi-file torrents;
	// this client never reads from it.
	Files []struct{} `bencode:"files"`

	// Hash is SHA-1 of the exact bencoded bytes this Info was parsed from.
	Hash [20]byte `bencode:"-"`
	// NumPieces is ceil(Length / PieceLength).
	NumPieces uint32 `bencode:"-"`
}

// NewInfo decodes an Info from the raw bencoded bytes of an "info" dictionary.
// b is retained byte-for-byte to compute Hash, so no re-encoding step is needed.
func NewInfo(b []byte) (*Info, error) {
	var i Info
	if err := bencode.DecodeBytes(b, &i); err != nil {
		return nil, err
	}
	if len(i.Files) > 0 {
		return nil, errMultiFile
	}
	if i.Length <= 0 || i.PieceLength == 0 {
		return nil, errNoLength
	}
	if len(i.Pieces)%sha1.Size != 0 {
		return nil, errInvalidPieceData
	}
	i.NumPieces = uint32(len(i.Pieces)) / sha1.Size
	wantPieces := (uint32(i.Length) + i.PieceLength - 1) / i.PieceLength
	if i.NumPieces != wantPieces {
		return nil, errInvalidPieceData
	}

	hash := sha1.New() // nolint: gosec
	_, _ = hash.Write(b)
	copy(i.Hash[:], hash.Sum(nil))
	return &i, nil
}

// PieceHash returns the 20-byte SHA-1 digest for piece index.
func (i *Info) PieceHash(index uint32) []byte {
	begin := index * sha1.Size
	return i.Pieces[begin : begin+sha1.Size]
}

// PieceByteLength returns the length in bytes of piece index, accounting for
// a possibly shorter final piece.
func (i *Info) PieceByteLength(index uint32) uint32 {
	if index != i.NumPieces-1 {
		return i.PieceLength
	}
	last := uint32(i.Length) % i.PieceLength
	if last == 0 {
		return i.PieceLength
	}
	return last
}

// Offset returns the byte offset of piece index within the torrent's data.
func (i *Info) Offset(index uint32) int64 {
	return int64(index) * int64(i.PieceLength)
}
