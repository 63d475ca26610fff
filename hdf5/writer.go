package hdf5

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mrjoshuak/go-imaris/internal/jenkins"
	"github.com/mrjoshuak/go-imaris/internal/lenc"
)

// FileWriter assembles a new HDF5 file in memory. Groups, attributes,
// datasets, and links are declared on builders, then WriteTo encodes the
// whole file with a version 2 superblock and version 2 object headers.
type FileWriter struct {
	root *GroupBuilder
}

// NewFileWriter returns a writer with an empty root group.
func NewFileWriter() *FileWriter {
	return &FileWriter{root: &GroupBuilder{name: "/"}}
}

// Root returns the root group builder.
func (fw *FileWriter) Root() *GroupBuilder {
	return fw.root
}

// GroupBuilder accumulates the contents of one group.
type GroupBuilder struct {
	name     string
	attrs    []Attribute
	children []*builderEntry
}

type builderEntry struct {
	link  Link          // Address filled in during encoding for hard links
	group *GroupBuilder // non-nil when the entry is a subgroup
	ds    *datasetSpec  // non-nil when the entry is a dataset
}

type datasetSpec struct {
	dt    Datatype
	ds    Dataspace
	data  []byte
	attrs []Attribute
}

// Name returns the group's name.
func (g *GroupBuilder) Name() string {
	return g.name
}

func checkName(name string) error {
	if name == "" || name == "." || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (g *GroupBuilder) find(name string) *builderEntry {
	for _, e := range g.children {
		if e.link.Name == name {
			return e
		}
	}
	return nil
}

// CreateGroup adds an empty subgroup.
func (g *GroupBuilder) CreateGroup(name string) (*GroupBuilder, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if g.find(name) != nil {
		return nil, fmt.Errorf("%w: %q", ErrLinkExists, name)
	}
	child := &GroupBuilder{name: name}
	g.children = append(g.children, &builderEntry{
		link:  Link{Name: name, Type: LinkHard},
		group: child,
	})
	return child, nil
}

// Group returns the named subgroup if one was created.
func (g *GroupBuilder) Group(name string) (*GroupBuilder, bool) {
	if e := g.find(name); e != nil && e.group != nil {
		return e.group, true
	}
	return nil, false
}

// Links returns the group's links in creation order. Hard link addresses
// are not assigned until the file is written.
func (g *GroupBuilder) Links() []Link {
	links := make([]Link, len(g.children))
	for i, e := range g.children {
		links[i] = e.link
	}
	return links
}

// Attributes returns the group's attributes in creation order.
func (g *GroupBuilder) Attributes() []Attribute {
	return g.attrs
}

// SetAttribute adds an attribute, replacing any existing attribute of
// the same name.
func (g *GroupBuilder) SetAttribute(a Attribute) error {
	if err := checkName(a.Name); err != nil {
		return err
	}
	for i := range g.attrs {
		if g.attrs[i].Name == a.Name {
			g.attrs[i] = a
			return nil
		}
	}
	g.attrs = append(g.attrs, a)
	return nil
}

// RemoveAttribute deletes the named attribute. It reports whether the
// attribute existed.
func (g *GroupBuilder) RemoveAttribute(name string) bool {
	for i := range g.attrs {
		if g.attrs[i].Name == name {
			g.attrs = append(g.attrs[:i], g.attrs[i+1:]...)
			return true
		}
	}
	return false
}

// SoftLink adds a soft link to an in-file path.
func (g *GroupBuilder) SoftLink(name, target string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if g.find(name) != nil {
		return fmt.Errorf("%w: %q", ErrLinkExists, name)
	}
	g.children = append(g.children, &builderEntry{
		link: Link{Name: name, Type: LinkSoft, Target: target},
	})
	return nil
}

// ExternalLink adds a link to an object path inside another file.
func (g *GroupBuilder) ExternalLink(name, file, path string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if g.find(name) != nil {
		return fmt.Errorf("%w: %q", ErrLinkExists, name)
	}
	g.children = append(g.children, &builderEntry{
		link: Link{Name: name, Type: LinkExternal, File: file, Path: path},
	})
	return nil
}

// CreateDataset adds a dataset stored contiguously. data holds the raw
// little-endian elements and must match the dataspace and datatype.
func (g *GroupBuilder) CreateDataset(name string, dt Datatype, ds Dataspace, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	if g.find(name) != nil {
		return fmt.Errorf("%w: %q", ErrLinkExists, name)
	}
	want, ok := ds.byteSize(uint64(dt.Size))
	if !ok || uint64(len(data)) != want {
		return fmt.Errorf("hdf5: dataset %q: %d data bytes, dataspace requires %d",
			name, len(data), want)
	}
	g.children = append(g.children, &builderEntry{
		link: Link{Name: name, Type: LinkHard},
		ds:   &datasetSpec{dt: dt, ds: ds, data: data},
	})
	return nil
}

// WriteTo encodes the file and writes it to w.
func (fw *FileWriter) WriteTo(w io.Writer) (int64, error) {
	buf := lenc.NewBufferWriter(4096)
	buf.WriteZeros(superblockV2Size)

	rootAddr, err := encodeGroup(buf, fw.root)
	if err != nil {
		return 0, err
	}

	eof := uint64(buf.Len())
	if err := buf.Patch(0, encodeSuperblockV2(rootAddr, eof)); err != nil {
		return 0, err
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// WriteFile encodes the file and writes it to path.
func (fw *FileWriter) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := fw.WriteTo(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// encodeGroup writes the group's descendants and then its own object
// header, returning the header address.
func encodeGroup(buf *lenc.BufferWriter, g *GroupBuilder) (uint64, error) {
	for _, e := range g.children {
		switch {
		case e.group != nil:
			addr, err := encodeGroup(buf, e.group)
			if err != nil {
				return 0, err
			}
			e.link.Address = addr
		case e.ds != nil:
			addr, err := encodeDataset(buf, e.link.Name, e.ds)
			if err != nil {
				return 0, err
			}
			e.link.Address = addr
		}
	}

	var msgs []message
	msgs = append(msgs, linkInfoMessage(), groupInfoMessage())
	for _, a := range g.attrs {
		m, err := buildMessage(msgAttribute, func(w *lenc.BufferWriter) error {
			return encodeAttributeMessage(w, a)
		})
		if err != nil {
			return 0, fmt.Errorf("group %q: %w", g.name, err)
		}
		msgs = append(msgs, m)
	}
	for _, e := range g.children {
		l := e.link
		m, err := buildMessage(msgLink, func(w *lenc.BufferWriter) error {
			return encodeLinkMessage(w, l)
		})
		if err != nil {
			return 0, fmt.Errorf("group %q: %w", g.name, err)
		}
		msgs = append(msgs, m)
	}
	return encodeObjectHeaderV2(buf, msgs)
}

// encodeDataset writes the dataset's raw data followed by its object
// header, returning the header address.
func encodeDataset(buf *lenc.BufferWriter, name string, spec *datasetSpec) (uint64, error) {
	dataAddr := uint64(buf.Len())
	buf.WriteBytes(spec.data)

	var msgs []message

	// Late allocation, no user fill value.
	fill := lenc.NewBufferWriter(2)
	fill.WriteByte(3)
	fill.WriteByte(0x02)
	msgs = append(msgs, message{typ: msgFillValue, body: fill.Bytes()})

	msgs = append(msgs, message{typ: msgDatatype, body: spec.dt.Raw()})

	ds := lenc.NewBufferWriter(16)
	spec.ds.encode(ds)
	msgs = append(msgs, message{typ: msgDataspace, body: ds.Bytes()})

	layout := lenc.NewBufferWriter(18)
	layout.WriteByte(3) // version
	layout.WriteByte(layoutContiguous)
	layout.WriteUint64(dataAddr)
	layout.WriteUint64(uint64(len(spec.data)))
	msgs = append(msgs, message{typ: msgLayout, body: layout.Bytes()})

	for _, a := range spec.attrs {
		m, err := buildMessage(msgAttribute, func(w *lenc.BufferWriter) error {
			return encodeAttributeMessage(w, a)
		})
		if err != nil {
			return 0, fmt.Errorf("dataset %q: %w", name, err)
		}
		msgs = append(msgs, m)
	}

	return encodeObjectHeaderV2(buf, msgs)
}

func linkInfoMessage() message {
	w := lenc.NewBufferWriter(18)
	w.WriteByte(0) // version
	w.WriteByte(0) // flags: no creation order
	w.WriteUint64(UndefinedAddress)
	w.WriteUint64(UndefinedAddress)
	return message{typ: msgLinkInfo, body: w.Bytes()}
}

func groupInfoMessage() message {
	return message{typ: msgGroupInfo, body: []byte{0, 0}}
}

// buildMessage runs encode into a fresh buffer and enforces the 64 KiB
// message body limit imposed by the 2-byte size field.
func buildMessage(typ uint16, encode func(*lenc.BufferWriter) error) (message, error) {
	w := lenc.NewBufferWriter(64)
	if err := encode(w); err != nil {
		return message{}, err
	}
	if w.Len() > 0xFFFF {
		return message{}, ErrMessageTooLarge
	}
	return message{typ: typ, body: w.Bytes()}, nil
}

// encodeObjectHeaderV2 appends a version 2 object header holding msgs
// and returns its address.
func encodeObjectHeaderV2(buf *lenc.BufferWriter, msgs []message) (uint64, error) {
	chunkSize := 0
	for _, m := range msgs {
		if len(m.body) > 0xFFFF {
			return 0, ErrMessageTooLarge
		}
		chunkSize += 4 + len(m.body)
	}

	addr := uint64(buf.Len())
	hdr := lenc.NewBufferWriter(10 + chunkSize + 4)
	hdr.WriteBytes([]byte(ohdrSignature))
	hdr.WriteByte(2)    // version
	hdr.WriteByte(0x02) // 4-byte chunk 0 size, no times, no creation order
	hdr.WriteUint32(uint32(chunkSize))
	for _, m := range msgs {
		hdr.WriteByte(byte(m.typ))
		hdr.WriteUint16(uint16(len(m.body)))
		hdr.WriteByte(0) // message flags
		hdr.WriteBytes(m.body)
	}
	hdr.WriteUint32(jenkins.Hash(hdr.Bytes(), 0))
	buf.WriteBytes(hdr.Bytes())
	return addr, nil
}
