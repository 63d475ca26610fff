package hdf5

import "errors"

// Signature is the 8-byte HDF5 format signature that begins every
// superblock.
const Signature = "\x89HDF\r\n\x1a\n"

// UndefinedAddress marks an address field with no value. With 8-byte
// offsets this is all ones.
const UndefinedAddress uint64 = 0xFFFFFFFFFFFFFFFF

// Format errors
var (
	ErrNotHDF5              = errors.New("hdf5: file signature not found")
	ErrCorrupted            = errors.New("hdf5: corrupted metadata")
	ErrBadChecksum          = errors.New("hdf5: metadata checksum mismatch")
	ErrTruncated            = errors.New("hdf5: file shorter than end-of-file address")
	ErrUnsupportedVersion   = errors.New("hdf5: unsupported structure version")
	ErrUnsupportedDatatype  = errors.New("hdf5: unsupported datatype")
	ErrUnsupportedLayout    = errors.New("hdf5: unsupported data layout")
	ErrUnsupportedFilter    = errors.New("hdf5: unsupported filter")
	ErrDenseStorage         = errors.New("hdf5: dense link/attribute storage not supported")
	ErrNotFound             = errors.New("hdf5: object not found")
	ErrNotAGroup            = errors.New("hdf5: object is not a group")
	ErrNotADataset          = errors.New("hdf5: object is not a dataset")
	ErrExternalTarget       = errors.New("hdf5: link does not resolve inside this file")
	ErrLinkExists           = errors.New("hdf5: link name already in use")
	ErrInvalidName          = errors.New("hdf5: invalid link name")
	ErrMessageTooLarge      = errors.New("hdf5: header message exceeds 64 KiB")
	ErrUnsupportedAttribute = errors.New("hdf5: unsupported attribute encoding")
)

// Header message types used by this implementation. Unknown message types
// encountered while reading are skipped.
const (
	msgNIL            uint16 = 0x0000
	msgDataspace      uint16 = 0x0001
	msgLinkInfo       uint16 = 0x0002
	msgDatatype       uint16 = 0x0003
	msgFillValueOld   uint16 = 0x0004
	msgFillValue      uint16 = 0x0005
	msgLink           uint16 = 0x0006
	msgExternalFiles  uint16 = 0x0007
	msgLayout         uint16 = 0x0008
	msgGroupInfo      uint16 = 0x000A
	msgFilterPipeline uint16 = 0x000B
	msgAttribute      uint16 = 0x000C
	msgContinuation   uint16 = 0x0010
	msgSymbolTable    uint16 = 0x0011
	msgModTime        uint16 = 0x0012
	msgAttributeInfo  uint16 = 0x0015
)

// Filter identifiers from the HDF5 registry.
const (
	filterDeflate    uint16 = 1
	filterShuffle    uint16 = 2
	filterFletcher32 uint16 = 3
)
