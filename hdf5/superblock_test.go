package hdf5

import (
	"bytes"
	"errors"
	"testing"
)

func TestOpenNotHDF5(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 2048)
	if _, err := Open(bytes.NewReader(data), int64(len(data))); !errors.Is(err, ErrNotHDF5) {
		t.Fatalf("Open: %v, want ErrNotHDF5", err)
	}
}

func TestOpenEmpty(t *testing.T) {
	if _, err := Open(bytes.NewReader(nil), 0); !errors.Is(err, ErrNotHDF5) {
		t.Fatalf("Open: %v, want ErrNotHDF5", err)
	}
}

func TestOpenUserBlock(t *testing.T) {
	fw := NewFileWriter()
	fw.Root().SetAttribute(Uint32Attribute("N", 9))
	var buf bytes.Buffer
	if _, err := fw.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	// A user block shifts the whole file; the signature search must find
	// the superblock at 512.
	shifted := append(make([]byte, 512), buf.Bytes()...)
	f, err := Open(bytes.NewReader(shifted), int64(len(shifted)))
	if err != nil {
		t.Fatalf("Open with user block: %v", err)
	}
	g, err := f.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	a, ok := g.Attribute("N")
	if !ok {
		t.Fatal("attribute N missing")
	}
	v, err := a.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != uint64(9) {
		t.Errorf("N = %v, want 9", v)
	}
}

func TestOpenTruncated(t *testing.T) {
	fw := NewFileWriter()
	fw.Root().SetAttribute(Uint32Attribute("N", 9))
	var buf bytes.Buffer
	if _, err := fw.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	cut := buf.Bytes()[:buf.Len()-8]
	if _, err := Open(bytes.NewReader(cut), int64(len(cut))); !errors.Is(err, ErrTruncated) {
		t.Fatalf("Open truncated: %v, want ErrTruncated", err)
	}
}

func TestOpenCorruptSuperblockChecksum(t *testing.T) {
	fw := NewFileWriter()
	var buf bytes.Buffer
	if _, err := fw.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	data := buf.Bytes()
	data[12] ^= 0xFF // inside the version 2 superblock body
	if _, err := Open(bytes.NewReader(data), int64(len(data))); !errors.Is(err, ErrBadChecksum) {
		t.Fatalf("Open corrupted: %v, want ErrBadChecksum", err)
	}
}
