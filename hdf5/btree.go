package hdf5

import (
	"fmt"

	"github.com/mrjoshuak/go-imaris/internal/lenc"
)

const (
	btreeSignature = "TREE"
	snodSignature  = "SNOD"
	heapSignature  = "HEAP"
)

// localHeap is the string storage backing old-style group names.
type localHeap struct {
	data []byte
}

func (f *File) readLocalHeap(addr uint64) (*localHeap, error) {
	head, err := f.readAt(addr, 8+2*f.lengthSize+f.offsetSize)
	if err != nil {
		return nil, err
	}
	if string(head[:4]) != heapSignature {
		return nil, fmt.Errorf("%w: local heap signature", ErrCorrupted)
	}
	r := lenc.NewReader(head[5:]) // skip signature and version
	r.Skip(3)                     // reserved
	size, _ := r.ReadUintN(f.lengthSize)
	r.ReadUintN(f.lengthSize) // free list head
	dataAddr, err := r.ReadUintN(f.offsetSize)
	if err != nil {
		return nil, fmt.Errorf("%w: local heap header", ErrCorrupted)
	}
	data, err := f.readAt(dataAddr, int(size))
	if err != nil {
		return nil, err
	}
	return &localHeap{data: data}, nil
}

func (h *localHeap) stringAt(off uint64) (string, error) {
	if off >= uint64(len(h.data)) {
		return "", fmt.Errorf("%w: heap offset out of range", ErrCorrupted)
	}
	return cString(h.data[off:]), nil
}

// btreeHeader is the fixed part common to all version 1 B-tree nodes.
type btreeHeader struct {
	nodeType byte
	level    byte
	entries  int
}

func (f *File) readBTreeHeader(addr uint64) (btreeHeader, []byte, error) {
	headSize := 8 + 2*f.offsetSize
	head, err := f.readAt(addr, headSize)
	if err != nil {
		return btreeHeader{}, nil, err
	}
	if string(head[:4]) != btreeSignature {
		return btreeHeader{}, nil, fmt.Errorf("%w: B-tree signature", ErrCorrupted)
	}
	h := btreeHeader{
		nodeType: head[4],
		level:    head[5],
		entries:  int(lenc.ByteOrder.Uint16(head[6:])),
	}
	return h, head, nil
}

// walkGroupBTree collects links from an old-style group B-tree rooted at
// addr, resolving names through the group's local heap.
func (f *File) walkGroupBTree(addr uint64, heap *localHeap) ([]Link, error) {
	return f.walkGroupBTreeLevel(addr, heap, -1)
}

// Child nodes must sit exactly one level below their parent; that rule
// also stops cyclic node references in a corrupt file.
func (f *File) walkGroupBTreeLevel(addr uint64, heap *localHeap, expect int) ([]Link, error) {
	h, _, err := f.readBTreeHeader(addr)
	if err != nil {
		return nil, err
	}
	if h.nodeType != 0 {
		return nil, fmt.Errorf("%w: group B-tree node type %d", ErrCorrupted, h.nodeType)
	}
	if expect >= 0 && int(h.level) != expect {
		return nil, fmt.Errorf("%w: group B-tree level %d, expected %d", ErrCorrupted, h.level, expect)
	}

	// Keys are heap offsets; children alternate with keys.
	bodySize := (h.entries+1)*f.lengthSize + h.entries*f.offsetSize
	body, err := f.readAt(addr+uint64(8+2*f.offsetSize), bodySize)
	if err != nil {
		return nil, err
	}
	r := lenc.NewReader(body)

	var links []Link
	for i := 0; i < h.entries; i++ {
		r.Skip(f.lengthSize) // key
		child, err := r.ReadUintN(f.offsetSize)
		if err != nil {
			return nil, fmt.Errorf("%w: group B-tree node truncated", ErrCorrupted)
		}
		var sub []Link
		if h.level > 0 {
			sub, err = f.walkGroupBTreeLevel(child, heap, int(h.level)-1)
		} else {
			sub, err = f.readSymbolNode(child, heap)
		}
		if err != nil {
			return nil, err
		}
		links = append(links, sub...)
	}
	return links, nil
}

// readSymbolNode decodes a SNOD leaf into links.
func (f *File) readSymbolNode(addr uint64, heap *localHeap) ([]Link, error) {
	head, err := f.readAt(addr, 8)
	if err != nil {
		return nil, err
	}
	if string(head[:4]) != snodSignature {
		return nil, fmt.Errorf("%w: symbol node signature", ErrCorrupted)
	}
	numSymbols := int(lenc.ByteOrder.Uint16(head[6:]))

	entrySize := 2*f.offsetSize + 24
	body, err := f.readAt(addr+8, numSymbols*entrySize)
	if err != nil {
		return nil, err
	}
	r := lenc.NewReader(body)

	links := make([]Link, 0, numSymbols)
	for i := 0; i < numSymbols; i++ {
		nameOff, _ := r.ReadUintN(f.lengthSize)
		objAddr, _ := r.ReadUintN(f.offsetSize)
		cacheType, _ := r.ReadUint32()
		r.Skip(4) // reserved
		scratch, err := r.ReadBytes(16)
		if err != nil {
			return nil, fmt.Errorf("%w: symbol node truncated", ErrCorrupted)
		}

		name, err := heap.stringAt(nameOff)
		if err != nil {
			return nil, err
		}
		switch cacheType {
		case 2:
			// Cached symbolic link: scratch holds the heap offset of
			// the target path.
			target, err := heap.stringAt(uint64(lenc.ByteOrder.Uint32(scratch)))
			if err != nil {
				return nil, err
			}
			links = append(links, Link{Name: name, Type: LinkSoft, Target: target})
		default:
			links = append(links, Link{Name: name, Type: LinkHard, Address: objAddr})
		}
	}
	return links, nil
}

// chunk describes one stored chunk of a chunked dataset.
type chunk struct {
	size   uint32 // stored (possibly filtered) byte size
	mask   uint32 // filter exclusion mask
	offset []uint64
	addr   uint64
}

// walkChunkBTree collects chunk records from a raw-data B-tree.
// ndims is the chunk dimensionality including the trailing element
// dimension, matching the data layout message.
func (f *File) walkChunkBTree(addr uint64, ndims int) ([]chunk, error) {
	return f.walkChunkBTreeLevel(addr, ndims, -1)
}

func (f *File) walkChunkBTreeLevel(addr uint64, ndims, expect int) ([]chunk, error) {
	h, _, err := f.readBTreeHeader(addr)
	if err != nil {
		return nil, err
	}
	if h.nodeType != 1 {
		return nil, fmt.Errorf("%w: chunk B-tree node type %d", ErrCorrupted, h.nodeType)
	}
	if expect >= 0 && int(h.level) != expect {
		return nil, fmt.Errorf("%w: chunk B-tree level %d, expected %d", ErrCorrupted, h.level, expect)
	}

	keySize := 8 + 8*ndims
	bodySize := (h.entries+1)*keySize + h.entries*f.offsetSize
	body, err := f.readAt(addr+uint64(8+2*f.offsetSize), bodySize)
	if err != nil {
		return nil, err
	}
	r := lenc.NewReader(body)

	var chunks []chunk
	for i := 0; i < h.entries; i++ {
		c := chunk{offset: make([]uint64, ndims)}
		c.size, _ = r.ReadUint32()
		c.mask, _ = r.ReadUint32()
		for d := 0; d < ndims; d++ {
			c.offset[d], _ = r.ReadUint64()
		}
		child, err := r.ReadUintN(f.offsetSize)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk B-tree node truncated", ErrCorrupted)
		}
		if h.level > 0 {
			sub, err := f.walkChunkBTreeLevel(child, ndims, int(h.level)-1)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, sub...)
		} else {
			c.addr = child
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}
