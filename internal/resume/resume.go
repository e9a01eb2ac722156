// Package resume persists completed-piece state across restarts in a bbolt
// database, so a clean restart can skip PieceStore's full SHA-1 resume scan.
// It is a fast path only: store.Open's own resume scan remains the source of
// truth whenever no record exists or a record disagrees with the torrent.
package resume

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/leechd/leechd/internal/bitfield"
)

var bucketName = []byte("torrents")

// Record is the persisted state for one info-hash.
type Record struct {
	NumPieces uint32
	Have      bitfield.BitField
}

// Store wraps a bbolt database file.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the resume database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o640, nil)
	if err != nil {
		return nil, fmt.Errorf("resume: cannot open %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Get returns the record for infoHash, if any.
func (s *Store) Get(infoHash [20]byte) (Record, bool) {
	var rec Record
	var found bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName).Get(infoHash[:])
		if b == nil {
			return nil
		}
		rec, found = decode(b), true
		return nil
	})
	return rec, found
}

// Put persists rec under infoHash, overwriting any previous record.
func (s *Store) Put(infoHash [20]byte, rec Record) {
	_ = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(infoHash[:], encode(rec))
	})
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func encode(r Record) []byte {
	bits := r.Have.Bytes()
	out := make([]byte, 4+len(bits))
	binary.BigEndian.PutUint32(out[0:4], r.NumPieces)
	copy(out[4:], bits)
	return out
}

func decode(b []byte) Record {
	if len(b) < 4 {
		return Record{}
	}
	numPieces := binary.BigEndian.Uint32(b[0:4])
	bits := append([]byte(nil), b[4:]...)
	return Record{NumPieces: numPieces, Have: bitfield.NewBytes(bits, numPieces)}
}
