// Package lenc provides little-endian binary encoding and decoding
// utilities for reading and writing HDF5 file data.
//
// HDF5 metadata written by this library uses little-endian byte order for
// all multi-byte values. This package provides bounds-checked readers over
// byte slices and a growing buffer writer used to assemble file images
// before they are flushed to disk.
package lenc

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	// ErrShortBuffer is returned when a read cannot complete because the
	// buffer does not contain enough bytes.
	ErrShortBuffer = errors.New("lenc: buffer too short")

	// ErrNegativeSize is returned when a size parameter is negative.
	ErrNegativeSize = errors.New("lenc: negative size")

	// ErrBadFieldSize is returned when a variable-width field has a width
	// other than 1, 2, 4, or 8 bytes.
	ErrBadFieldSize = errors.New("lenc: invalid field size")
)

// ByteOrder is the byte order used throughout HDF5 metadata.
var ByteOrder = binary.LittleEndian

// Reader provides little-endian binary reading from a byte slice.
// It maintains a read position and bounds-checks every operation.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a Reader from a byte slice.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	if r.pos >= len(r.data) {
		return 0
	}
	return len(r.data) - r.pos
}

// Pos returns the current read position.
func (r *Reader) Pos() int {
	return r.pos
}

// SetPos sets the read position. Returns an error if out of bounds.
func (r *Reader) SetPos(pos int) error {
	if pos < 0 || pos > len(r.data) {
		return ErrShortBuffer
	}
	r.pos = pos
	return nil
}

// Skip advances the read position by n bytes.
func (r *Reader) Skip(n int) error {
	if n < 0 {
		return ErrNegativeSize
	}
	if r.pos+n > len(r.data) {
		return ErrShortBuffer
	}
	r.pos += n
	return nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrShortBuffer
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes reads n bytes into a new slice.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeSize
	}
	if r.pos+n > len(r.data) {
		return nil, ErrShortBuffer
	}
	result := make([]byte, n)
	copy(result, r.data[r.pos:r.pos+n])
	r.pos += n
	return result, nil
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, ErrShortBuffer
	}
	v := ByteOrder.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, ErrShortBuffer
	}
	v := ByteOrder.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadUint64 reads an unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, ErrShortBuffer
	}
	v := ByteOrder.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadUintN reads an unsigned integer of width 1, 2, 4, or 8 bytes.
// HDF5 encodes offsets and lengths with a file-dependent width declared
// in the superblock.
func (r *Reader) ReadUintN(width int) (uint64, error) {
	switch width {
	case 1:
		b, err := r.ReadByte()
		return uint64(b), err
	case 2:
		v, err := r.ReadUint16()
		return uint64(v), err
	case 4:
		v, err := r.ReadUint32()
		return uint64(v), err
	case 8:
		return r.ReadUint64()
	default:
		return 0, ErrBadFieldSize
	}
}

// ReadFloat32 reads a 32-bit IEEE 754 floating-point number.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadFloat64 reads a 64-bit IEEE 754 floating-point number.
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadString reads a null-terminated string. The terminator is consumed
// but not included in the result.
func (r *Reader) ReadString() (string, error) {
	start := r.pos
	for r.pos < len(r.data) {
		if r.data[r.pos] == 0 {
			s := string(r.data[start:r.pos])
			r.pos++
			return s, nil
		}
		r.pos++
	}
	r.pos = start
	return "", ErrShortBuffer
}

// ReadStringN reads exactly n bytes and returns the contents up to the
// first null byte. All n bytes are consumed regardless.
func (r *Reader) ReadStringN(n int) (string, error) {
	if n < 0 {
		return "", ErrNegativeSize
	}
	if r.pos+n > len(r.data) {
		return "", ErrShortBuffer
	}
	end := r.pos + n
	for i := r.pos; i < end; i++ {
		if r.data[i] == 0 {
			s := string(r.data[r.pos:i])
			r.pos = end
			return s, nil
		}
	}
	s := string(r.data[r.pos:end])
	r.pos = end
	return s, nil
}

// BufferWriter provides a growing buffer for writing binary data.
// File images are assembled in a BufferWriter and flushed in one write,
// which allows earlier regions (the superblock) to be patched once the
// addresses they reference are known.
type BufferWriter struct {
	buf []byte
}

// NewBufferWriter creates a BufferWriter with an initial capacity.
func NewBufferWriter(capacity int) *BufferWriter {
	return &BufferWriter{buf: make([]byte, 0, capacity)}
}

// Len returns the number of bytes written.
func (w *BufferWriter) Len() int {
	return len(w.buf)
}

// Bytes returns the written data. The returned slice is valid until the
// next write operation.
func (w *BufferWriter) Bytes() []byte {
	return w.buf
}

// Reset clears the buffer.
func (w *BufferWriter) Reset() {
	w.buf = w.buf[:0]
}

// Patch overwrites previously written bytes starting at off.
// The patched region must already exist in the buffer.
func (w *BufferWriter) Patch(off int, b []byte) error {
	if off < 0 || off+len(b) > len(w.buf) {
		return ErrShortBuffer
	}
	copy(w.buf[off:], b)
	return nil
}

// WriteByte writes a single byte.
func (w *BufferWriter) WriteByte(b byte) {
	w.buf = append(w.buf, b)
}

// WriteBytes writes a byte slice.
func (w *BufferWriter) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteZeros writes n zero bytes.
func (w *BufferWriter) WriteZeros(n int) {
	w.buf = append(w.buf, make([]byte, n)...)
}

// WriteUint16 writes an unsigned 16-bit integer.
func (w *BufferWriter) WriteUint16(v uint16) {
	w.buf = append(w.buf, byte(v), byte(v>>8))
}

// WriteUint32 writes an unsigned 32-bit integer.
func (w *BufferWriter) WriteUint32(v uint32) {
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// WriteUint64 writes an unsigned 64-bit integer.
func (w *BufferWriter) WriteUint64(v uint64) {
	w.buf = append(w.buf,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

// WriteFloat32 writes a 32-bit IEEE 754 floating-point number.
func (w *BufferWriter) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 writes a 64-bit IEEE 754 floating-point number.
func (w *BufferWriter) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

// WriteString writes a null-terminated string.
func (w *BufferWriter) WriteString(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// Pad appends zero bytes until the buffer length is a multiple of n.
func (w *BufferWriter) Pad(n int) {
	for len(w.buf)%n != 0 {
		w.buf = append(w.buf, 0)
	}
}
