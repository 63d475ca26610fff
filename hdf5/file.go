// Package hdf5 implements the subset of the HDF5 file format used by
// Imaris microscopy files.
//
// The read side understands superblock versions 0 through 3, old-style
// groups (symbol table B-trees) and new-style groups (link messages),
// attributes, external links, and dataset storage in compact, contiguous,
// and chunked layouts with the deflate, shuffle, and fletcher32 filters.
// The write side produces version 2 superblocks and object headers with
// compact link storage, which every HDF5 1.8+ reader accepts.
//
// Only features Imaris containers exercise are implemented; dense
// (fractal heap) link and attribute storage is detected and reported as
// unsupported rather than misread.
package hdf5

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// File is an open HDF5 file.
type File struct {
	r      io.ReaderAt
	size   int64
	base   int64 // absolute offset of the superblock (after any user block)
	closer io.Closer

	offsetSize int
	lengthSize int
	rootAddr   uint64
}

// Open reads the file structure from r, which must cover size bytes.
func Open(r io.ReaderAt, size int64) (*File, error) {
	base, err := findSuperblock(r, size)
	if err != nil {
		return nil, err
	}

	// The superblock is at most ~100 bytes in any version we accept.
	n := int64(128)
	if base+n > size {
		n = size - base
	}
	buf := make([]byte, n)
	if _, err := r.ReadAt(buf, base); err != nil {
		return nil, err
	}
	sb, err := parseSuperblock(buf)
	if err != nil {
		return nil, err
	}
	if base+int64(sb.eof) > size {
		return nil, ErrTruncated
	}

	f := &File{
		r:          r,
		size:       size,
		base:       base,
		offsetSize: sb.offsetSize,
		lengthSize: sb.lengthSize,
		rootAddr:   sb.rootAddr,
	}
	return f, nil
}

// OpenFile opens an HDF5 file from the filesystem. The returned File
// must be closed to release the handle.
func OpenFile(path string) (*File, error) {
	osf, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := osf.Stat()
	if err != nil {
		osf.Close()
		return nil, err
	}
	f, err := Open(osf, info.Size())
	if err != nil {
		osf.Close()
		return nil, err
	}
	f.closer = osf
	return f, nil
}

// Close releases the underlying file handle, if any.
func (f *File) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

// Root returns the root group.
func (f *File) Root() (*Group, error) {
	return f.loadGroup("/", f.rootAddr)
}

// Group returns the group at the given absolute path, e.g.
// "DataSetInfo/Channel 0".
func (f *File) Group(path string) (*Group, error) {
	root, err := f.Root()
	if err != nil {
		return nil, err
	}
	return root.Group(path)
}

// undefined returns the undefined-address value for the file's offset
// size.
func (f *File) undefined() uint64 {
	if f.offsetSize >= 8 {
		return UndefinedAddress
	}
	return 1<<(8*uint(f.offsetSize)) - 1
}

// readAt reads n bytes at the file address addr. Addresses are relative
// to the superblock, which is not at offset zero when the file carries a
// user block.
func (f *File) readAt(addr uint64, n int) ([]byte, error) {
	if addr == f.undefined() {
		return nil, fmt.Errorf("%w: read at undefined address", ErrCorrupted)
	}
	abs := f.base + int64(addr)
	if n < 0 || abs < 0 || abs+int64(n) > f.size {
		return nil, fmt.Errorf("%w: read of %d bytes at %#x", ErrCorrupted, n, addr)
	}
	buf := make([]byte, n)
	if _, err := f.r.ReadAt(buf, abs); err != nil {
		return nil, err
	}
	return buf, nil
}

// Group is a group read from a file.
type Group struct {
	f     *File
	name  string
	addr  uint64
	attrs []Attribute
	links []Link
}

// loadGroup reads the object header at addr and interprets it as a group.
func (f *File) loadGroup(name string, addr uint64) (*Group, error) {
	msgs, err := f.readObjectHeader(addr)
	if err != nil {
		return nil, err
	}

	g := &Group{f: f, name: name, addr: addr}
	for _, m := range msgs {
		switch m.typ {
		case msgLayout, msgDatatype:
			return nil, fmt.Errorf("%w: %q", ErrNotAGroup, name)
		}
	}
	for _, m := range msgs {
		switch m.typ {
		case msgAttribute:
			a, err := parseAttributeMessage(m.body, f.lengthSize)
			if err != nil {
				return nil, fmt.Errorf("group %q: %w", name, err)
			}
			g.attrs = append(g.attrs, a)
		case msgLink:
			l, err := parseLinkMessage(m.body, f.offsetSize)
			if err != nil {
				return nil, fmt.Errorf("group %q: %w", name, err)
			}
			g.links = append(g.links, l)
		case msgLinkInfo:
			// Optional field is the 8-byte maximum creation order.
			if err := f.checkCompactStorage(m.body, name, 8); err != nil {
				return nil, err
			}
		case msgAttributeInfo:
			// Optional field is the 2-byte maximum creation index.
			if err := f.checkCompactStorage(m.body, name, 2); err != nil {
				return nil, err
			}
		case msgSymbolTable:
			links, err := f.readSymbolTable(m.body)
			if err != nil {
				return nil, fmt.Errorf("group %q: %w", name, err)
			}
			g.links = append(g.links, links...)
		}
	}
	return g, nil
}

// checkCompactStorage rejects groups whose links or attributes moved to
// dense (fractal heap) storage. The heap address is the first address
// field of both the link info and attribute info messages; corderWidth is
// the width of the creation order field flag bit 0 makes present.
func (f *File) checkCompactStorage(body []byte, name string, corderWidth int) error {
	if len(body) < 2 {
		return fmt.Errorf("%w: info message", ErrCorrupted)
	}
	pos := 2
	if body[1]&0x01 != 0 {
		pos += corderWidth
	}
	if len(body) < pos+f.offsetSize {
		return fmt.Errorf("%w: info message", ErrCorrupted)
	}
	heapAddr := uint64(0)
	for i := f.offsetSize - 1; i >= 0; i-- {
		heapAddr = heapAddr<<8 | uint64(body[pos+i])
	}
	if heapAddr != f.undefined() {
		return fmt.Errorf("%w: group %q", ErrDenseStorage, name)
	}
	return nil
}

// readSymbolTable resolves an old-style group's B-tree and heap.
func (f *File) readSymbolTable(body []byte) ([]Link, error) {
	if len(body) < 2*f.offsetSize {
		return nil, fmt.Errorf("%w: symbol table message", ErrCorrupted)
	}
	btreeAddr := uint64(0)
	heapAddr := uint64(0)
	for i := f.offsetSize - 1; i >= 0; i-- {
		btreeAddr = btreeAddr<<8 | uint64(body[i])
		heapAddr = heapAddr<<8 | uint64(body[f.offsetSize+i])
	}
	heap, err := f.readLocalHeap(heapAddr)
	if err != nil {
		return nil, err
	}
	return f.walkGroupBTree(btreeAddr, heap)
}

// Name returns the path name the group was opened under.
func (g *Group) Name() string {
	return g.name
}

// Attributes returns the group's attributes in file order.
func (g *Group) Attributes() []Attribute {
	return g.attrs
}

// Attribute returns the named attribute.
func (g *Group) Attribute(name string) (Attribute, bool) {
	for _, a := range g.attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Links returns the group's links in file order.
func (g *Group) Links() []Link {
	return g.links
}

// Link returns the named link.
func (g *Group) Link(name string) (Link, bool) {
	for _, l := range g.links {
		if l.Name == name {
			return l, true
		}
	}
	return Link{}, false
}

// Children returns the link names sorted lexically.
func (g *Group) Children() []string {
	names := make([]string, len(g.links))
	for i, l := range g.links {
		names[i] = l.Name
	}
	sort.Strings(names)
	return names
}

// Group opens a child group. The name may be a multi-component path
// separated by slashes.
func (g *Group) Group(path string) (*Group, error) {
	cur := g
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		l, ok := cur.Link(part)
		if !ok {
			return nil, fmt.Errorf("%w: %q in %q", ErrNotFound, part, cur.name)
		}
		if l.Type != LinkHard {
			return nil, fmt.Errorf("%w: %q is a %s link", ErrExternalTarget, part, l.Type)
		}
		child, err := g.f.loadGroup(joinPath(cur.name, part), l.Address)
		if err != nil {
			return nil, err
		}
		cur = child
	}
	return cur, nil
}

// Dataset opens a child dataset.
func (g *Group) Dataset(name string) (*Dataset, error) {
	l, ok := g.Link(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q in %q", ErrNotFound, name, g.name)
	}
	if l.Type != LinkHard {
		return nil, fmt.Errorf("%w: %q is a %s link", ErrExternalTarget, name, l.Type)
	}
	return g.f.loadDataset(joinPath(g.name, name), l.Address)
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}
