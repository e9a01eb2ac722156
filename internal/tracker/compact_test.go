package tracker

import (
	"net"
	"testing"
)

func TestDecodePeersCompact(t *testing.T) {
	b := []byte{10, 0, 0, 1, 0x1A, 0xE1} // 10.0.0.1:6881
	addrs, err := DecodePeersCompact(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(addrs) != 1 {
		t.Fatalf("expected 1 peer, got %d", len(addrs))
	}
	if !addrs[0].IP.Equal(net.IPv4(10, 0, 0, 1)) || addrs[0].Port != 6881 {
		t.Errorf("unexpected peer: %v", addrs[0])
	}
}

func TestDecodePeersCompactRejectsBadLength(t *testing.T) {
	if _, err := DecodePeersCompact([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for non-multiple-of-6 length")
	}
}

func TestDecodePeersCompactMultiple(t *testing.T) {
	b := []byte{
		10, 0, 0, 1, 0x1A, 0xE1,
		192, 168, 1, 1, 0x00, 0x50,
	}
	addrs, err := DecodePeersCompact(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(addrs) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(addrs))
	}
	if addrs[1].Port != 80 {
		t.Errorf("expected port 80, got %d", addrs[1].Port)
	}
}
