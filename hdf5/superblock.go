package hdf5

import (
	"bytes"
	"fmt"
	"io"

	"github.com/mrjoshuak/go-imaris/internal/jenkins"
	"github.com/mrjoshuak/go-imaris/internal/lenc"
)

// superblock holds the fields of the file superblock this library needs.
type superblock struct {
	version    uint8
	offsetSize int
	lengthSize int
	eof        uint64
	rootAddr   uint64
}

// findSuperblock locates the superblock signature. Files with a user
// block place it at 512 bytes or any power-of-two multiple thereof.
func findSuperblock(r io.ReaderAt, size int64) (int64, error) {
	sig := make([]byte, len(Signature))
	for off := int64(0); off+int64(len(Signature)) <= size; {
		if _, err := r.ReadAt(sig, off); err != nil {
			return 0, err
		}
		if bytes.Equal(sig, []byte(Signature)) {
			return off, nil
		}
		if off == 0 {
			off = 512
		} else {
			off *= 2
		}
	}
	return 0, ErrNotHDF5
}

// parseSuperblock decodes superblock versions 0 through 3. The input
// starts at the signature.
func parseSuperblock(b []byte) (superblock, error) {
	r := lenc.NewReader(b)
	if err := r.Skip(len(Signature)); err != nil {
		return superblock{}, ErrNotHDF5
	}
	version, err := r.ReadByte()
	if err != nil {
		return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
	}

	sb := superblock{version: version}
	switch version {
	case 0, 1:
		// Free space version, root group version, reserved, shared
		// header version.
		if err := r.Skip(4); err != nil {
			return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
		}
		offSize, _ := r.ReadByte()
		lenSize, _ := r.ReadByte()
		if err := r.Skip(1); err != nil { // reserved
			return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
		}
		sb.offsetSize, sb.lengthSize = int(offSize), int(lenSize)
		if err := checkFieldSizes(sb); err != nil {
			return superblock{}, err
		}
		if err := r.Skip(2 + 2 + 4); err != nil { // group K values, flags
			return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
		}
		if version == 1 {
			if err := r.Skip(4); err != nil { // indexed storage K, reserved
				return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
			}
		}
		// Base, free space, end-of-file, driver info addresses.
		if _, err := r.ReadUintN(sb.offsetSize); err != nil {
			return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
		}
		if _, err := r.ReadUintN(sb.offsetSize); err != nil {
			return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
		}
		sb.eof, err = r.ReadUintN(sb.offsetSize)
		if err != nil {
			return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
		}
		if _, err := r.ReadUintN(sb.offsetSize); err != nil {
			return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
		}
		// Root group symbol table entry: link name offset, then the
		// object header address.
		if _, err := r.ReadUintN(sb.offsetSize); err != nil {
			return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
		}
		sb.rootAddr, err = r.ReadUintN(sb.offsetSize)
		if err != nil {
			return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
		}

	case 2, 3:
		offSize, _ := r.ReadByte()
		lenSize, _ := r.ReadByte()
		if _, err := r.ReadByte(); err != nil { // file consistency flags
			return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
		}
		sb.offsetSize, sb.lengthSize = int(offSize), int(lenSize)
		if err := checkFieldSizes(sb); err != nil {
			return superblock{}, err
		}
		if _, err := r.ReadUintN(sb.offsetSize); err != nil { // base address
			return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
		}
		if _, err := r.ReadUintN(sb.offsetSize); err != nil { // extension address
			return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
		}
		sb.eof, err = r.ReadUintN(sb.offsetSize)
		if err != nil {
			return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
		}
		sb.rootAddr, err = r.ReadUintN(sb.offsetSize)
		if err != nil {
			return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
		}
		stored, err := r.ReadUint32()
		if err != nil {
			return superblock{}, fmt.Errorf("%w: superblock too short", ErrCorrupted)
		}
		if jenkins.Hash(b[:r.Pos()-4], 0) != stored {
			return superblock{}, fmt.Errorf("%w: superblock", ErrBadChecksum)
		}

	default:
		return superblock{}, fmt.Errorf("%w: superblock version %d", ErrUnsupportedVersion, version)
	}
	return sb, nil
}

func checkFieldSizes(sb superblock) error {
	ok := func(n int) bool { return n == 2 || n == 4 || n == 8 }
	if !ok(sb.offsetSize) || !ok(sb.lengthSize) {
		return fmt.Errorf("%w: offset/length size %d/%d", ErrCorrupted, sb.offsetSize, sb.lengthSize)
	}
	return nil
}

// superblockV2Size is the encoded size of a version 2 superblock with
// 8-byte offsets.
const superblockV2Size = 48

// encodeSuperblockV2 builds a version 2 superblock for a file with the
// given root object header address and end-of-file address.
func encodeSuperblockV2(rootAddr, eof uint64) []byte {
	w := lenc.NewBufferWriter(superblockV2Size)
	w.WriteBytes([]byte(Signature))
	w.WriteByte(2) // superblock version
	w.WriteByte(8) // size of offsets
	w.WriteByte(8) // size of lengths
	w.WriteByte(0) // file consistency flags
	w.WriteUint64(0)
	w.WriteUint64(UndefinedAddress) // no superblock extension
	w.WriteUint64(eof)
	w.WriteUint64(rootAddr)
	w.WriteUint32(jenkins.Hash(w.Bytes(), 0))
	return w.Bytes()
}
