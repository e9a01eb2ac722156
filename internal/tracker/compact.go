package tracker

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
)

// CompactPeer is a 6-byte (4-byte IPv4 + 2-byte port) tracker peer entry.
type CompactPeer struct {
	IP   [net.IPv4len]byte
	Port uint16
}

// Addr returns a net.TCPAddr for p.
func (p CompactPeer) Addr() *net.TCPAddr {
	ip := make(net.IP, net.IPv4len)
	copy(ip, p.IP[:])
	return &net.TCPAddr{IP: ip, Port: int(p.Port)}
}

// DecodePeersCompact parses the "peers" compact form: a byte string whose
// length is a multiple of 6, each group being (ipv4, port_be).
func DecodePeersCompact(b []byte) ([]*net.TCPAddr, error) {
	if len(b)%6 != 0 {
		return nil, errors.New("tracker: invalid compact peer list length")
	}
	addrs := make([]*net.TCPAddr, 0, len(b)/6)
	r := bytes.NewReader(b)
	for r.Len() > 0 {
		var p CompactPeer
		if err := binary.Read(r, binary.BigEndian, &p); err != nil {
			return nil, err
		}
		addrs = append(addrs, p.Addr())
	}
	return addrs, nil
}
