package lenc

import (
	"bytes"
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	w := NewBufferWriter(64)
	w.WriteByte(0x7f)
	w.WriteUint16(0xbeef)
	w.WriteUint32(0xdeadbeef)
	w.WriteUint64(0x0123456789abcdef)
	w.WriteFloat32(1.5)
	w.WriteFloat64(-2.25)
	w.WriteString("DataSet")
	w.WriteBytes([]byte{1, 2, 3})

	r := NewReader(w.Bytes())
	if v, _ := r.ReadByte(); v != 0x7f {
		t.Errorf("ReadByte = %#x", v)
	}
	if v, _ := r.ReadUint16(); v != 0xbeef {
		t.Errorf("ReadUint16 = %#x", v)
	}
	if v, _ := r.ReadUint32(); v != 0xdeadbeef {
		t.Errorf("ReadUint32 = %#x", v)
	}
	if v, _ := r.ReadUint64(); v != 0x0123456789abcdef {
		t.Errorf("ReadUint64 = %#x", v)
	}
	if v, _ := r.ReadFloat32(); v != 1.5 {
		t.Errorf("ReadFloat32 = %v", v)
	}
	if v, _ := r.ReadFloat64(); v != -2.25 {
		t.Errorf("ReadFloat64 = %v", v)
	}
	if s, _ := r.ReadString(); s != "DataSet" {
		t.Errorf("ReadString = %q", s)
	}
	b, _ := r.ReadBytes(3)
	if !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Errorf("ReadBytes = %v", b)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after full read", r.Len())
	}
}

func TestReadUintN(t *testing.T) {
	w := NewBufferWriter(16)
	w.WriteByte(0xab)
	w.WriteUint16(0xcdef)
	w.WriteUint32(0x01020304)
	w.WriteUint64(0x1122334455667788)

	r := NewReader(w.Bytes())
	tests := []struct {
		width int
		want  uint64
	}{
		{1, 0xab},
		{2, 0xcdef},
		{4, 0x01020304},
		{8, 0x1122334455667788},
	}
	for _, tt := range tests {
		v, err := r.ReadUintN(tt.width)
		if err != nil {
			t.Fatalf("ReadUintN(%d): %v", tt.width, err)
		}
		if v != tt.want {
			t.Errorf("ReadUintN(%d) = %#x, want %#x", tt.width, v, tt.want)
		}
	}

	if _, err := r.ReadUintN(3); !errors.Is(err, ErrBadFieldSize) {
		t.Errorf("ReadUintN(3) err = %v, want ErrBadFieldSize", err)
	}
}

func TestReaderBounds(t *testing.T) {
	r := NewReader([]byte{1, 2})
	if _, err := r.ReadUint32(); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("short ReadUint32 err = %v", err)
	}
	if _, err := r.ReadBytes(-1); !errors.Is(err, ErrNegativeSize) {
		t.Errorf("negative ReadBytes err = %v", err)
	}
	if err := r.Skip(5); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("long Skip err = %v", err)
	}
	// Unterminated string leaves the position untouched.
	if _, err := r.ReadString(); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("unterminated ReadString err = %v", err)
	}
	if r.Pos() != 0 {
		t.Errorf("Pos = %d after failed ReadString, want 0", r.Pos())
	}
}

func TestReadStringN(t *testing.T) {
	r := NewReader([]byte{'a', 'b', 0, 'x', 'c', 'd'})
	s, err := r.ReadStringN(4)
	if err != nil || s != "ab" {
		t.Errorf("ReadStringN(4) = %q, %v", s, err)
	}
	if r.Pos() != 4 {
		t.Errorf("Pos = %d, want 4", r.Pos())
	}
	s, err = r.ReadStringN(2)
	if err != nil || s != "cd" {
		t.Errorf("ReadStringN(2) = %q, %v", s, err)
	}
}

func TestPatch(t *testing.T) {
	w := NewBufferWriter(8)
	w.WriteZeros(8)
	if err := w.Patch(4, []byte{9, 9}); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	want := []byte{0, 0, 0, 0, 9, 9, 0, 0}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("Bytes = %v, want %v", w.Bytes(), want)
	}
	if err := w.Patch(7, []byte{1, 2}); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("out-of-range Patch err = %v", err)
	}
}

func TestPad(t *testing.T) {
	w := NewBufferWriter(16)
	w.WriteBytes([]byte{1, 2, 3})
	w.Pad(8)
	if w.Len() != 8 {
		t.Errorf("Len = %d after Pad(8), want 8", w.Len())
	}
	w.Pad(8)
	if w.Len() != 8 {
		t.Errorf("Pad on aligned buffer grew to %d", w.Len())
	}
}
