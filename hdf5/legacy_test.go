package hdf5

import (
	"bytes"
	"testing"

	"github.com/mrjoshuak/go-imaris/internal/lenc"
)

// buildLegacyFile assembles a file the way HDF5 1.6 would: version 0
// superblock, version 1 object headers, and an old-style root group whose
// entries live in a symbol table B-tree with a local heap.
//
// The root group holds a hard link "child" (a group carrying one version 1
// attribute) and a cached soft link "alias".
func buildLegacyFile(t *testing.T) []byte {
	t.Helper()
	buf := lenc.NewBufferWriter(1024)
	buf.WriteZeros(96) // superblock, patched last

	// Child group: version 1 header, one version 1 attribute message.
	childAddr := uint64(buf.Len())
	attr := lenc.NewBufferWriter(48)
	attr.WriteByte(1) // version
	attr.WriteByte(0)
	attr.WriteUint16(7)  // name size, "Answer\0"
	attr.WriteUint16(12) // datatype size
	attr.WriteUint16(8)  // dataspace size
	attr.WriteString("Answer")
	attr.Pad(8) // fields are 8-byte padded in version 1
	attr.WriteBytes(FixedDatatype(4, false).Raw())
	attr.Pad(8)
	attr.WriteByte(1) // dataspace version 1, rank 0
	attr.WriteZeros(7)
	attr.WriteUint32(42)
	attr.Pad(8)

	buf.WriteByte(1) // object header version
	buf.WriteByte(0)
	buf.WriteUint16(1) // message count
	buf.WriteUint32(1) // reference count
	buf.WriteUint32(uint32(8 + attr.Len()))
	buf.WriteZeros(4) // prefix pads to an 8-byte boundary
	buf.WriteUint16(msgAttribute)
	buf.WriteUint16(uint16(attr.Len()))
	buf.WriteZeros(4) // flags, reserved
	buf.WriteBytes(attr.Bytes())

	// Local heap. Offset 0 is the empty string; names follow.
	heapAddr := uint64(buf.Len())
	heapData := make([]byte, 32)
	copy(heapData[8:], "alias\x00")
	copy(heapData[16:], "child\x00")
	copy(heapData[24:], "/child\x00")

	buf.WriteBytes([]byte(heapSignature))
	buf.WriteZeros(4) // version, reserved
	buf.WriteUint64(uint64(len(heapData)))
	buf.WriteUint64(1) // free list head: none
	buf.WriteUint64(heapAddr + 32)
	buf.WriteBytes(heapData)

	// Symbol table node with both entries, sorted by name.
	snodAddr := uint64(buf.Len())
	buf.WriteBytes([]byte(snodSignature))
	buf.WriteByte(1) // version
	buf.WriteByte(0)
	buf.WriteUint16(2)

	buf.WriteUint64(8) // "alias"
	buf.WriteUint64(0)
	buf.WriteUint32(2) // cached symbolic link
	buf.WriteUint32(0)
	buf.WriteUint32(24) // heap offset of the target path
	buf.WriteZeros(12)

	buf.WriteUint64(16) // "child"
	buf.WriteUint64(childAddr)
	buf.WriteUint32(0)
	buf.WriteUint32(0)
	buf.WriteZeros(16)

	// Group B-tree: a single leaf pointing at the symbol node.
	btreeAddr := uint64(buf.Len())
	buf.WriteBytes([]byte(btreeSignature))
	buf.WriteByte(0) // node type: group
	buf.WriteByte(0) // level
	buf.WriteUint16(1)
	buf.WriteUint64(UndefinedAddress) // left sibling
	buf.WriteUint64(UndefinedAddress) // right sibling
	buf.WriteUint64(0)                // key 0
	buf.WriteUint64(snodAddr)
	buf.WriteUint64(16) // key 1

	// Root group: version 1 header with a symbol table message.
	rootAddr := uint64(buf.Len())
	buf.WriteByte(1)
	buf.WriteByte(0)
	buf.WriteUint16(1)
	buf.WriteUint32(1)
	buf.WriteUint32(8 + 16)
	buf.WriteZeros(4)
	buf.WriteUint16(msgSymbolTable)
	buf.WriteUint16(16)
	buf.WriteZeros(4)
	buf.WriteUint64(btreeAddr)
	buf.WriteUint64(heapAddr)

	eof := uint64(buf.Len())

	sb := lenc.NewBufferWriter(96)
	sb.WriteBytes([]byte(Signature))
	sb.WriteByte(0) // superblock version
	sb.WriteByte(0) // free space version
	sb.WriteByte(0) // root group version
	sb.WriteByte(0)
	sb.WriteByte(0) // shared header version
	sb.WriteByte(8) // size of offsets
	sb.WriteByte(8) // size of lengths
	sb.WriteByte(0)
	sb.WriteUint16(4)  // group leaf K
	sb.WriteUint16(16) // group internal K
	sb.WriteUint32(0)  // file consistency flags
	sb.WriteUint64(0)  // base address
	sb.WriteUint64(UndefinedAddress)
	sb.WriteUint64(eof)
	sb.WriteUint64(UndefinedAddress) // driver info
	sb.WriteUint64(0)                // root entry: link name offset
	sb.WriteUint64(rootAddr)
	sb.WriteUint32(1) // cache type
	sb.WriteUint32(0)
	sb.WriteZeros(16)
	if err := buf.Patch(0, sb.Bytes()); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	return buf.Bytes()
}

func TestLegacyFormatRead(t *testing.T) {
	data := buildLegacyFile(t)
	f, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	root, err := f.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	if got := root.Children(); len(got) != 2 || got[0] != "alias" || got[1] != "child" {
		t.Fatalf("Children = %v", got)
	}

	l, ok := root.Link("alias")
	if !ok || l.Type != LinkSoft {
		t.Fatalf("alias link = %+v", l)
	}
	if l.Target != "/child" {
		t.Errorf("alias target = %q, want %q", l.Target, "/child")
	}

	child, err := root.Group("child")
	if err != nil {
		t.Fatalf("Group child: %v", err)
	}
	a, ok := child.Attribute("Answer")
	if !ok {
		t.Fatal("attribute Answer missing")
	}
	v, err := a.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != uint64(42) {
		t.Errorf("Answer = %v, want 42", v)
	}
}
