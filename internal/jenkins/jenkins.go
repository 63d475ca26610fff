// Package jenkins implements Bob Jenkins' lookup3 hash ("hashlittle"),
// the checksum HDF5 applies to version 2 superblocks, version 2 object
// headers, and object header continuation blocks.
package jenkins

import "math/bits"

// Hash computes the lookup3 hashlittle checksum of data with the given
// initial value. HDF5 always uses an initial value of zero.
func Hash(data []byte, init uint32) uint32 {
	a := 0xdeadbeef + uint32(len(data)) + init
	b := a
	c := a

	// Body: 12 bytes per round while more than 12 bytes remain.
	for len(data) > 12 {
		a += le32(data[0:])
		b += le32(data[4:])
		c += le32(data[8:])

		a -= c
		a ^= bits.RotateLeft32(c, 4)
		c += b
		b -= a
		b ^= bits.RotateLeft32(a, 6)
		a += c
		c -= b
		c ^= bits.RotateLeft32(b, 8)
		b += a
		a -= c
		a ^= bits.RotateLeft32(c, 16)
		c += b
		b -= a
		b ^= bits.RotateLeft32(a, 19)
		a += c
		c -= b
		c ^= bits.RotateLeft32(b, 4)
		b += a

		data = data[12:]
	}

	// Tail: the last 0 to 12 bytes.
	switch len(data) {
	case 12:
		c += le32(data[8:])
		b += le32(data[4:])
		a += le32(data[0:])
	case 11:
		c += uint32(data[10]) << 16
		fallthrough
	case 10:
		c += uint32(data[9]) << 8
		fallthrough
	case 9:
		c += uint32(data[8])
		fallthrough
	case 8:
		b += le32(data[4:])
		a += le32(data[0:])
	case 7:
		b += uint32(data[6]) << 16
		fallthrough
	case 6:
		b += uint32(data[5]) << 8
		fallthrough
	case 5:
		b += uint32(data[4])
		fallthrough
	case 4:
		a += le32(data[0:])
	case 3:
		a += uint32(data[2]) << 16
		fallthrough
	case 2:
		a += uint32(data[1]) << 8
		fallthrough
	case 1:
		a += uint32(data[0])
	case 0:
		return c
	}

	// Final mix.
	c ^= b
	c -= bits.RotateLeft32(b, 14)
	a ^= c
	a -= bits.RotateLeft32(c, 11)
	b ^= a
	b -= bits.RotateLeft32(a, 25)
	c ^= b
	c -= bits.RotateLeft32(b, 16)
	a ^= c
	a -= bits.RotateLeft32(c, 4)
	b ^= a
	b -= bits.RotateLeft32(a, 14)
	c ^= b
	c -= bits.RotateLeft32(b, 24)
	return c
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
