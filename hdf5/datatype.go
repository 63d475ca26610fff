package hdf5

import (
	"fmt"

	"github.com/mrjoshuak/go-imaris/internal/lenc"
)

// DatatypeClass identifies the class of an HDF5 datatype.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloat      DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

// String returns a string representation of the datatype class.
func (c DatatypeClass) String() string {
	switch c {
	case ClassFixedPoint:
		return "fixed-point"
	case ClassFloat:
		return "float"
	case ClassTime:
		return "time"
	case ClassString:
		return "string"
	case ClassBitfield:
		return "bitfield"
	case ClassOpaque:
		return "opaque"
	case ClassCompound:
		return "compound"
	case ClassReference:
		return "reference"
	case ClassEnum:
		return "enum"
	case ClassVarLen:
		return "variable-length"
	case ClassArray:
		return "array"
	default:
		return "unknown"
	}
}

// Datatype describes the type of attribute or dataset elements.
//
// The exact on-disk encoding is preserved in raw so that metadata copied
// from one file to another is byte-faithful even for classes this library
// does not interpret. Classes whose element data references file-internal
// structures (variable-length, reference) are never safe to copy raw; see
// SelfContained.
type Datatype struct {
	Class     DatatypeClass
	Size      uint32
	Signed    bool // fixed-point only
	BigEndian bool
	raw       []byte
}

// FixedDatatype returns a little-endian fixed-point datatype of the given
// byte size.
func FixedDatatype(size int, signed bool) Datatype {
	w := lenc.NewBufferWriter(12)
	w.WriteByte(0x10 | byte(ClassFixedPoint)) // version 1
	var b0 byte
	if signed {
		b0 |= 0x08
	}
	w.WriteByte(b0)
	w.WriteByte(0)
	w.WriteByte(0)
	w.WriteUint32(uint32(size))
	w.WriteUint16(0)                // bit offset
	w.WriteUint16(uint16(size * 8)) // precision
	return Datatype{Class: ClassFixedPoint, Size: uint32(size), Signed: signed, raw: w.Bytes()}
}

// FloatDatatype returns a little-endian IEEE 754 float datatype.
// Size must be 4 or 8.
func FloatDatatype(size int) Datatype {
	var expLoc, expSize, mantSize, signLoc byte
	var bias uint32
	if size == 8 {
		expLoc, expSize, mantSize, signLoc, bias = 52, 11, 52, 63, 1023
	} else {
		size = 4
		expLoc, expSize, mantSize, signLoc, bias = 23, 8, 23, 31, 127
	}
	w := lenc.NewBufferWriter(20)
	w.WriteByte(0x10 | byte(ClassFloat))
	w.WriteByte(0x20) // little-endian, implied most significant mantissa bit
	w.WriteByte(signLoc)
	w.WriteByte(0)
	w.WriteUint32(uint32(size))
	w.WriteUint16(0)                // bit offset
	w.WriteUint16(uint16(size * 8)) // precision
	w.WriteByte(expLoc)
	w.WriteByte(expSize)
	w.WriteByte(0) // mantissa location
	w.WriteByte(mantSize)
	w.WriteUint32(bias)
	return Datatype{Class: ClassFloat, Size: uint32(size), raw: w.Bytes()}
}

// StringDatatype returns a fixed-length, null-terminated ASCII string
// datatype of the given byte size.
func StringDatatype(size int) Datatype {
	w := lenc.NewBufferWriter(8)
	w.WriteByte(0x10 | byte(ClassString))
	w.WriteByte(0x00) // null-terminated, ASCII
	w.WriteByte(0)
	w.WriteByte(0)
	w.WriteUint32(uint32(size))
	return Datatype{Class: ClassString, Size: uint32(size), raw: w.Bytes()}
}

// SelfContained reports whether element data of this datatype is
// meaningful outside the file it was read from. Variable-length data and
// references point into per-file heaps and must not be copied raw.
func (dt Datatype) SelfContained() bool {
	return dt.Class != ClassVarLen && dt.Class != ClassReference
}

// Raw returns the on-disk datatype encoding.
func (dt Datatype) Raw() []byte {
	return dt.raw
}

// parseDatatype decodes a datatype from its on-disk form. The entire
// input slice is retained as the raw encoding; datatype messages and
// attribute messages both delimit it exactly.
func parseDatatype(b []byte) (Datatype, error) {
	r := lenc.NewReader(b)
	classVer, err := r.ReadByte()
	if err != nil {
		return Datatype{}, fmt.Errorf("%w: datatype too short", ErrCorrupted)
	}
	version := classVer >> 4
	if version < 1 || version > 3 {
		return Datatype{}, fmt.Errorf("%w: datatype version %d", ErrUnsupportedVersion, version)
	}
	b0, err := r.ReadByte()
	if err != nil {
		return Datatype{}, fmt.Errorf("%w: datatype too short", ErrCorrupted)
	}
	if err := r.Skip(2); err != nil {
		return Datatype{}, fmt.Errorf("%w: datatype too short", ErrCorrupted)
	}
	size, err := r.ReadUint32()
	if err != nil {
		return Datatype{}, fmt.Errorf("%w: datatype too short", ErrCorrupted)
	}

	dt := Datatype{
		Class: DatatypeClass(classVer & 0x0F),
		Size:  size,
		raw:   b,
	}
	switch dt.Class {
	case ClassFixedPoint:
		dt.BigEndian = b0&0x01 != 0
		dt.Signed = b0&0x08 != 0
	case ClassFloat:
		dt.BigEndian = b0&0x01 != 0
	}
	return dt, nil
}
