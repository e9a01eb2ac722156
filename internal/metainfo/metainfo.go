// Package metainfo parses the bencoded ".torrent" file format: the
// announce URL and the single-file "info" dictionary that identifies the
// swarm. Multi-file torrents, magnet links and the announce-list / webseed
// extensions are out of scope.
package metainfo

import (
	"errors"
	"io"

	"github.com/zeebo/bencode"
)

var errNoInfoDict = errors.New("metainfo: no info dict in torrent file")

// MetaInfo is the decoded torrent file.
type MetaInfo struct {
	Announce string
	Info     Info
}

// New decodes a MetaInfo from a bencoded torrent file stream.
func New(r io.Reader) (*MetaInfo, error) {
	var t struct {
		Info     bencode.RawMessage `bencode:"info"`
		Announce string             `bencode:"announce"`
	}
	if err := bencode.NewDecoder(r).Decode(&t); err != nil {
		return nil, err
	}
	if len(t.Info) == 0 {
		return nil, errNoInfoDict
	}
	info, err := NewInfo(t.Info)
	if err != nil {
		return nil, err
	}
	return &MetaInfo{Announce: t.Announce, Info: *info}, nil
}
