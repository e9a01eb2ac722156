package bitfield

import (
	"reflect"
	"testing"
)

func TestNewBytes(t *testing.T) {
	var v BitField
	var buf = []byte{0x0f}

	v = NewBytes(append([]byte{}, buf...), 8)
	if v.Hex() != "0f" {
		t.Errorf("invalid value: %s", v.Hex())
	}

	v = NewBytes(append([]byte{}, buf...), 7)
	if v.Hex() != "0e" {
		t.Errorf("invalid value: %s", v.Hex())
	}

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic but not found")
			}
		}()
		NewBytes(append([]byte{}, buf...), 9)
	}()
}

func TestSetClearTest(t *testing.T) {
	v := New(10)
	if v.Hex() != "0000" {
		t.Errorf("invalid value: %s", v.Hex())
	}

	v.Set(0)
	if v.Hex() != "8000" {
		t.Errorf("invalid value: %s", v.Hex())
	}

	v.Set(9)
	if v.Hex() != "8040" {
		t.Errorf("invalid value: %s", v.Hex())
	}

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic but not found")
			}
		}()
		v.Set(10)
	}()

	v.Clear(0)
	if v.Hex() != "0040" {
		t.Errorf("invalid value: %s", v.Hex())
	}

	if v.Test(2) {
		t.Errorf("test is not correct: %s", v.Hex())
	}

	if !v.Test(9) {
		t.Errorf("test is not correct: %s", v.Hex())
	}
}

func TestIsEmptyAndAll(t *testing.T) {
	v := New(4)
	if !v.IsEmpty() {
		t.Error("expected empty bitfield")
	}
	v.SetAll()
	if !v.All() {
		t.Error("expected all bits set after SetAll")
	}
	if v.IsEmpty() {
		t.Error("did not expect empty after SetAll")
	}
}

func TestAndNot(t *testing.T) {
	a := New(8)
	a.Set(0)
	a.Set(1)
	a.Set(2)

	b := New(8)
	b.Set(1)

	want := a.AndNot(&b)
	if !want.Test(0) || want.Test(1) || !want.Test(2) {
		t.Errorf("unexpected AndNot result: %s", want.Hex())
	}
}

func TestToOrderedSet(t *testing.T) {
	v := New(8)
	v.Set(1)
	v.Set(5)
	v.Set(7)

	got := v.ToOrderedSet()
	want := []uint32{1, 5, 7}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
