package hdf5

import (
	"fmt"
	"math/bits"

	"github.com/mrjoshuak/go-imaris/internal/lenc"
)

// Dataspace describes the shape of attribute or dataset data: scalar,
// null (no elements), or a simple N-dimensional extent.
type Dataspace struct {
	Scalar bool
	Null   bool
	Dims   []uint64
}

// ScalarDataspace returns a scalar dataspace (a single element).
func ScalarDataspace() Dataspace {
	return Dataspace{Scalar: true}
}

// SimpleDataspace returns a simple dataspace with the given dimensions.
func SimpleDataspace(dims ...uint64) Dataspace {
	return Dataspace{Dims: dims}
}

// NumElements returns the number of data elements the dataspace holds.
func (ds Dataspace) NumElements() uint64 {
	if ds.Null {
		return 0
	}
	if ds.Scalar {
		return 1
	}
	n := uint64(1)
	for _, d := range ds.Dims {
		n *= d
	}
	return n
}

// byteSize returns the total data size for elements of the given byte
// size. The second return value is false when the product overflows
// uint64; dimension counts come from the file and cannot be trusted.
func (ds Dataspace) byteSize(elemSize uint64) (uint64, bool) {
	if ds.Null {
		return 0, true
	}
	n := elemSize
	if ds.Scalar {
		return n, true
	}
	for _, d := range ds.Dims {
		hi, lo := bits.Mul64(n, d)
		if hi != 0 {
			return 0, false
		}
		n = lo
	}
	return n, true
}

// encode writes the version 2 on-disk form of the dataspace.
func (ds Dataspace) encode(w *lenc.BufferWriter) {
	w.WriteByte(2)                  // version
	w.WriteByte(byte(len(ds.Dims))) // dimensionality
	w.WriteByte(0)                  // flags: no maximum dimensions
	switch {
	case ds.Null:
		w.WriteByte(2)
	case ds.Scalar:
		w.WriteByte(0)
	default:
		w.WriteByte(1)
	}
	for _, d := range ds.Dims {
		w.WriteUint64(d)
	}
}

// parseDataspace decodes a version 1 or version 2 dataspace.
// lengthSize is the file's size-of-lengths, which dimension values use.
func parseDataspace(b []byte, lengthSize int) (Dataspace, error) {
	r := lenc.NewReader(b)
	version, err := r.ReadByte()
	if err != nil {
		return Dataspace{}, fmt.Errorf("%w: dataspace too short", ErrCorrupted)
	}

	var ds Dataspace
	var rank, flags byte
	switch version {
	case 1:
		rank, _ = r.ReadByte()
		flags, _ = r.ReadByte()
		if err := r.Skip(5); err != nil {
			return Dataspace{}, fmt.Errorf("%w: dataspace too short", ErrCorrupted)
		}
		// Version 1 has no explicit type field; rank zero means scalar.
		if rank == 0 {
			ds.Scalar = true
		}
	case 2:
		rank, _ = r.ReadByte()
		flags, _ = r.ReadByte()
		typ, err := r.ReadByte()
		if err != nil {
			return Dataspace{}, fmt.Errorf("%w: dataspace too short", ErrCorrupted)
		}
		switch typ {
		case 0:
			ds.Scalar = true
		case 1:
			// simple
		case 2:
			ds.Null = true
		default:
			return Dataspace{}, fmt.Errorf("%w: dataspace type %d", ErrCorrupted, typ)
		}
	default:
		return Dataspace{}, fmt.Errorf("%w: dataspace version %d", ErrUnsupportedVersion, version)
	}

	if rank > 0 {
		ds.Dims = make([]uint64, rank)
		for i := range ds.Dims {
			v, err := r.ReadUintN(lengthSize)
			if err != nil {
				return Dataspace{}, fmt.Errorf("%w: dataspace dimensions truncated", ErrCorrupted)
			}
			ds.Dims[i] = v
		}
	}
	// Maximum dimensions are irrelevant for reading; skip if present.
	if flags&0x01 != 0 {
		if err := r.Skip(int(rank) * lengthSize); err != nil {
			return Dataspace{}, fmt.Errorf("%w: dataspace maximum dimensions truncated", ErrCorrupted)
		}
	}
	return ds, nil
}
