package hdf5

import (
	"errors"
	"testing"

	"github.com/mrjoshuak/go-imaris/internal/lenc"
)

// TestParseAttributeOversizedDims feeds a version 3 attribute message
// whose dataspace claims 2^61 elements of 8 bytes. The element count
// times the element size wraps uint64, so a naive size check would
// accept the empty data that follows.
func TestParseAttributeOversizedDims(t *testing.T) {
	dt := FixedDatatype(8, false).Raw()

	space := lenc.NewBufferWriter(12)
	space.WriteByte(2) // dataspace version
	space.WriteByte(1) // rank
	space.WriteByte(0) // flags
	space.WriteByte(1) // simple
	space.WriteUint64(1 << 61)

	msg := lenc.NewBufferWriter(64)
	msg.WriteByte(3) // attribute message version
	msg.WriteByte(0) // flags
	msg.WriteUint16(5)
	msg.WriteUint16(uint16(len(dt)))
	msg.WriteUint16(uint16(space.Len()))
	msg.WriteByte(0) // ASCII name
	msg.WriteString("Huge")
	msg.WriteBytes(dt)
	msg.WriteBytes(space.Bytes())
	// No data bytes at all.

	if _, err := parseAttributeMessage(msg.Bytes(), 8); !errors.Is(err, ErrCorrupted) {
		t.Fatalf("parseAttributeMessage: %v, want ErrCorrupted", err)
	}
}

func TestValueOversizedDims(t *testing.T) {
	a := Attribute{
		Name:      "Huge",
		Datatype:  FixedDatatype(8, false),
		Dataspace: SimpleDataspace(1 << 61),
	}
	if _, err := a.Value(); !errors.Is(err, ErrCorrupted) {
		t.Fatalf("Value: %v, want ErrCorrupted", err)
	}
}

func TestValueZeroSizeElements(t *testing.T) {
	a := Attribute{
		Name:      "Empty",
		Datatype:  Datatype{Class: ClassFixedPoint},
		Dataspace: SimpleDataspace(1 << 61),
	}
	if _, err := a.Value(); !errors.Is(err, ErrUnsupportedDatatype) {
		t.Fatalf("Value: %v, want ErrUnsupportedDatatype", err)
	}
}
