package ims

import (
	"bytes"
	"testing"

	"github.com/mrjoshuak/go-imaris/hdf5"
)

func TestStringAttributeRoundTrip(t *testing.T) {
	fw := hdf5.NewFileWriter()
	root := fw.Root()
	if err := SetStringAttribute(root, "ImarisVersion", "5.5.0"); err != nil {
		t.Fatalf("SetStringAttribute: %v", err)
	}
	if err := SetStringAttribute(root, "ImarisVersion", "9.9.9"); err != nil {
		t.Fatalf("SetStringAttribute replace: %v", err)
	}
	if err := SetUint32Attribute(root, "NumberOfDataSets", 6); err != nil {
		t.Fatalf("SetUint32Attribute: %v", err)
	}

	var buf bytes.Buffer
	if _, err := fw.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	f, err := hdf5.Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	g, err := f.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}

	s, ok, err := StringAttribute(g, "ImarisVersion")
	if err != nil || !ok {
		t.Fatalf("StringAttribute: %v, %v", ok, err)
	}
	if s != "9.9.9" {
		t.Errorf("ImarisVersion = %q, want %q (replacement must win)", s, "9.9.9")
	}

	if _, ok, err := StringAttribute(g, "NoSuch"); ok || err != nil {
		t.Errorf("missing attribute: ok=%v err=%v", ok, err)
	}

	// The attribute exists but is numeric.
	if _, ok, err := StringAttribute(g, "NumberOfDataSets"); !ok || err == nil {
		t.Errorf("numeric attribute: ok=%v err=%v, want ok and ErrNotAString", ok, err)
	}
}
