package blocklist

import (
	"bytes"
	"net"
	"strings"
	"testing"
)

func TestParseCIDR(t *testing.T) {
	l := "0.0.1.1/24"
	r, err := parseCIDR([]byte(l))
	if err != nil {
		t.Fatal(err)
	}
	if r.first != 256 {
		t.Errorf("first: %d", r.first)
	}
	if r.last != 511 {
		t.Errorf("last: %d", r.last)
	}
}

func TestContains(t *testing.T) {
	list := "# comment\n6.0.0.0/8\n10.0.0.0/8\n"
	b := New()
	n, err := b.Reload(strings.NewReader(list))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("loaded %d values, want 2", n)
	}
	if !b.Blocked(net.ParseIP("6.1.2.3")) {
		t.Errorf("must contain")
	}
	if b.Blocked(net.ParseIP("176.240.195.107")) {
		t.Errorf("must not contain")
	}
}

func TestEmptyList(t *testing.T) {
	r := bytes.NewReader(make([]byte, 0))
	b := New()
	n, err := b.Reload(r)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("loaded %d values", n)
	}
	if b.Blocked(net.ParseIP("0.0.0.0")) {
		t.Errorf("must not contain")
	}
	if b.Blocked(net.ParseIP("176.240.195.107")) {
		t.Errorf("must not contain")
	}
}
