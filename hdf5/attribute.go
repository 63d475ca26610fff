package hdf5

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mrjoshuak/go-imaris/internal/lenc"
)

// Attribute is a named, typed value attached to a group or dataset.
// Data holds the element bytes exactly as stored; Value decodes them for
// the datatype classes this library interprets.
type Attribute struct {
	Name      string
	Datatype  Datatype
	Dataspace Dataspace
	Data      []byte
}

// NewAttribute builds an attribute from explicit parts. The data length
// must equal element size times element count.
func NewAttribute(name string, dt Datatype, ds Dataspace, data []byte) Attribute {
	return Attribute{Name: name, Datatype: dt, Dataspace: ds, Data: data}
}

// Uint32Attribute returns a scalar unsigned 32-bit attribute.
func Uint32Attribute(name string, v uint32) Attribute {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, v)
	return Attribute{Name: name, Datatype: FixedDatatype(4, false), Dataspace: ScalarDataspace(), Data: data}
}

// Uint64Attribute returns a scalar unsigned 64-bit attribute.
func Uint64Attribute(name string, v uint64) Attribute {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, v)
	return Attribute{Name: name, Datatype: FixedDatatype(8, false), Dataspace: ScalarDataspace(), Data: data}
}

// Int32Attribute returns a scalar signed 32-bit attribute.
func Int32Attribute(name string, v int32) Attribute {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, uint32(v))
	return Attribute{Name: name, Datatype: FixedDatatype(4, true), Dataspace: ScalarDataspace(), Data: data}
}

// Float32Attribute returns a scalar 32-bit float attribute.
func Float32Attribute(name string, v float32) Attribute {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, math.Float32bits(v))
	return Attribute{Name: name, Datatype: FloatDatatype(4), Dataspace: ScalarDataspace(), Data: data}
}

// Float64Attribute returns a scalar 64-bit float attribute.
func Float64Attribute(name string, v float64) Attribute {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, math.Float64bits(v))
	return Attribute{Name: name, Datatype: FloatDatatype(8), Dataspace: ScalarDataspace(), Data: data}
}

// StringAttribute returns a scalar fixed-length string attribute.
func StringAttribute(name, s string) Attribute {
	return Attribute{
		Name:      name,
		Datatype:  StringDatatype(len(s)),
		Dataspace: ScalarDataspace(),
		Data:      []byte(s),
	}
}

// Value decodes the attribute data. Scalar attributes decode to uint64,
// int64, float32, float64, or string; array attributes decode to the
// corresponding slice types. Datatype classes outside fixed-point, float,
// and fixed-length string return ErrUnsupportedDatatype.
func (a Attribute) Value() (any, error) {
	n := a.Dataspace.NumElements()
	size := uint64(a.Datatype.Size)
	if size == 0 {
		return nil, fmt.Errorf("%w: zero-size elements", ErrUnsupportedDatatype)
	}
	total, ok := a.Dataspace.byteSize(size)
	if !ok || uint64(len(a.Data)) < total {
		return nil, fmt.Errorf("%w: attribute %q data truncated", ErrCorrupted, a.Name)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if a.Datatype.BigEndian {
		order = binary.BigEndian
	}

	switch a.Datatype.Class {
	case ClassFixedPoint:
		if a.Datatype.Signed {
			vals := make([]int64, n)
			for i := range vals {
				u, err := fixedAt(a.Data, uint64(i), size, order)
				if err != nil {
					return nil, err
				}
				vals[i] = signExtend(u, size)
			}
			if a.Dataspace.Scalar {
				return vals[0], nil
			}
			return vals, nil
		}
		vals := make([]uint64, n)
		for i := range vals {
			u, err := fixedAt(a.Data, uint64(i), size, order)
			if err != nil {
				return nil, err
			}
			vals[i] = u
		}
		if a.Dataspace.Scalar {
			return vals[0], nil
		}
		return vals, nil

	case ClassFloat:
		switch size {
		case 4:
			vals := make([]float32, n)
			for i := range vals {
				vals[i] = math.Float32frombits(order.Uint32(a.Data[uint64(i)*4:]))
			}
			if a.Dataspace.Scalar {
				return vals[0], nil
			}
			return vals, nil
		case 8:
			vals := make([]float64, n)
			for i := range vals {
				vals[i] = math.Float64frombits(order.Uint64(a.Data[uint64(i)*8:]))
			}
			if a.Dataspace.Scalar {
				return vals[0], nil
			}
			return vals, nil
		}
		return nil, fmt.Errorf("%w: %d-byte float", ErrUnsupportedDatatype, size)

	case ClassString:
		vals := make([]string, n)
		for i := range vals {
			elem := a.Data[uint64(i)*size : uint64(i+1)*size]
			vals[i] = cString(elem)
		}
		if a.Dataspace.Scalar {
			return vals[0], nil
		}
		return vals, nil
	}

	return nil, fmt.Errorf("%w: class %s", ErrUnsupportedDatatype, a.Datatype.Class)
}

func fixedAt(data []byte, i, size uint64, order binary.ByteOrder) (uint64, error) {
	b := data[i*size : (i+1)*size]
	switch size {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(order.Uint16(b)), nil
	case 4:
		return uint64(order.Uint32(b)), nil
	case 8:
		return order.Uint64(b), nil
	}
	return 0, fmt.Errorf("%w: %d-byte fixed-point", ErrUnsupportedDatatype, size)
}

func signExtend(u, size uint64) int64 {
	shift := 64 - size*8
	return int64(u<<shift) >> shift
}

// cString returns the bytes up to the first null.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// parseAttributeMessage decodes attribute message versions 1 through 3.
func parseAttributeMessage(b []byte, lengthSize int) (Attribute, error) {
	r := lenc.NewReader(b)
	version, err := r.ReadByte()
	if err != nil {
		return Attribute{}, fmt.Errorf("%w: attribute message too short", ErrCorrupted)
	}
	if version < 1 || version > 3 {
		return Attribute{}, fmt.Errorf("%w: attribute message version %d", ErrUnsupportedVersion, version)
	}

	flags, err := r.ReadByte()
	if err != nil {
		return Attribute{}, fmt.Errorf("%w: attribute message too short", ErrCorrupted)
	}
	if version >= 2 && flags&0x03 != 0 {
		// Shared datatype or dataspace lives in another object header.
		return Attribute{}, fmt.Errorf("%w: shared datatype/dataspace", ErrUnsupportedAttribute)
	}

	nameSize, err1 := r.ReadUint16()
	typeSize, err2 := r.ReadUint16()
	spaceSize, err3 := r.ReadUint16()
	if err1 != nil || err2 != nil || err3 != nil {
		return Attribute{}, fmt.Errorf("%w: attribute message too short", ErrCorrupted)
	}
	if version == 3 {
		if _, err := r.ReadByte(); err != nil { // name character set
			return Attribute{}, fmt.Errorf("%w: attribute message too short", ErrCorrupted)
		}
	}

	// Version 1 pads name, datatype, and dataspace to 8-byte multiples.
	pad := func(n uint16) int {
		if version == 1 {
			return (int(n) + 7) &^ 7
		}
		return int(n)
	}

	name, err := r.ReadStringN(pad(nameSize))
	if err != nil {
		return Attribute{}, fmt.Errorf("%w: attribute name truncated", ErrCorrupted)
	}
	typeRaw, err := r.ReadBytes(pad(typeSize))
	if err != nil {
		return Attribute{}, fmt.Errorf("%w: attribute datatype truncated", ErrCorrupted)
	}
	spaceRaw, err := r.ReadBytes(pad(spaceSize))
	if err != nil {
		return Attribute{}, fmt.Errorf("%w: attribute dataspace truncated", ErrCorrupted)
	}

	dt, err := parseDatatype(typeRaw[:typeSize])
	if err != nil {
		return Attribute{}, fmt.Errorf("attribute %q: %w", name, err)
	}
	ds, err := parseDataspace(spaceRaw[:spaceSize], lengthSize)
	if err != nil {
		return Attribute{}, fmt.Errorf("attribute %q: %w", name, err)
	}

	data, err := r.ReadBytes(r.Len())
	if err != nil {
		return Attribute{}, fmt.Errorf("%w: attribute data truncated", ErrCorrupted)
	}
	want, ok := ds.byteSize(uint64(dt.Size))
	if !ok || uint64(len(data)) < want {
		return Attribute{}, fmt.Errorf("%w: attribute %q data truncated", ErrCorrupted, name)
	}
	return Attribute{Name: name, Datatype: dt, Dataspace: ds, Data: data[:want]}, nil
}

// encodeAttributeMessage writes the version 3 attribute message body.
func encodeAttributeMessage(w *lenc.BufferWriter, a Attribute) error {
	var space lenc.BufferWriter
	a.Dataspace.encode(&space)

	nameSize := len(a.Name) + 1
	if nameSize > 0xFFFF || len(a.Datatype.raw) > 0xFFFF || space.Len() > 0xFFFF {
		return fmt.Errorf("%w: attribute %q", ErrMessageTooLarge, a.Name)
	}

	w.WriteByte(3) // version
	w.WriteByte(0) // flags
	w.WriteUint16(uint16(nameSize))
	w.WriteUint16(uint16(len(a.Datatype.raw)))
	w.WriteUint16(uint16(space.Len()))
	w.WriteByte(0) // ASCII name
	w.WriteString(a.Name)
	w.WriteBytes(a.Datatype.raw)
	w.WriteBytes(space.Bytes())
	w.WriteBytes(a.Data)
	return nil
}
