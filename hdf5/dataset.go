package hdf5

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/mrjoshuak/go-imaris/internal/lenc"
)

// Layout storage classes.
const (
	layoutCompact    = 0
	layoutContiguous = 1
	layoutChunked    = 2
)

// dataLayout is the decoded data layout message.
type dataLayout struct {
	class int

	compact []byte

	addr uint64 // contiguous data or chunk B-tree address
	size uint64 // contiguous data size

	chunkDims []uint32 // chunked: per-dimension chunk size plus element size
}

// filter is one entry of a dataset's filter pipeline.
type filter struct {
	id     uint16
	flags  uint16
	values []uint32
}

// Dataset is a dataset read from a file.
type Dataset struct {
	f       *File
	name    string
	addr    uint64
	dt      Datatype
	ds      Dataspace
	layout  dataLayout
	filters []filter
	attrs   []Attribute
}

// loadDataset reads the object header at addr and interprets it as a
// dataset.
func (f *File) loadDataset(name string, addr uint64) (*Dataset, error) {
	msgs, err := f.readObjectHeader(addr)
	if err != nil {
		return nil, err
	}

	d := &Dataset{f: f, name: name, addr: addr}
	var haveDT, haveDS, haveLayout bool
	for _, m := range msgs {
		switch m.typ {
		case msgDatatype:
			d.dt, err = parseDatatype(m.body)
			haveDT = true
		case msgDataspace:
			d.ds, err = parseDataspace(m.body, f.lengthSize)
			haveDS = true
		case msgLayout:
			d.layout, err = f.parseLayout(m.body)
			haveLayout = true
		case msgFilterPipeline:
			d.filters, err = parseFilterPipeline(m.body)
		case msgAttribute:
			var a Attribute
			a, err = parseAttributeMessage(m.body, f.lengthSize)
			d.attrs = append(d.attrs, a)
		}
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", name, err)
		}
	}
	if !haveDT || !haveDS || !haveLayout {
		return nil, fmt.Errorf("%w: %q", ErrNotADataset, name)
	}
	return d, nil
}

// Name returns the path name the dataset was opened under.
func (d *Dataset) Name() string {
	return d.name
}

// Datatype returns the dataset's element type.
func (d *Dataset) Datatype() Datatype {
	return d.dt
}

// Dataspace returns the dataset's shape.
func (d *Dataset) Dataspace() Dataspace {
	return d.ds
}

// Attributes returns the dataset's attributes in file order.
func (d *Dataset) Attributes() []Attribute {
	return d.attrs
}

// Attribute returns the named attribute.
func (d *Dataset) Attribute(name string) (Attribute, bool) {
	for _, a := range d.attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Read returns the dataset's elements as raw little-endian bytes in row
// major order. Chunked storage is reassembled and defiltered; regions no
// chunk covers read as zero.
func (d *Dataset) Read() ([]byte, error) {
	total, ok := d.ds.byteSize(uint64(d.dt.Size))
	if !ok || total > uint64(d.f.size) {
		return nil, fmt.Errorf("%w: dataset %q larger than file", ErrCorrupted, d.name)
	}

	switch d.layout.class {
	case layoutCompact:
		out := make([]byte, len(d.layout.compact))
		copy(out, d.layout.compact)
		return out, nil

	case layoutContiguous:
		if d.layout.addr == d.f.undefined() {
			return make([]byte, total), nil // never written
		}
		n := d.layout.size
		if n > total {
			n = total
		}
		data, err := d.f.readAt(d.layout.addr, int(n))
		if err != nil {
			return nil, err
		}
		if n < total {
			data = append(data, make([]byte, total-n)...)
		}
		return data, nil

	case layoutChunked:
		return d.readChunked(total)
	}
	return nil, fmt.Errorf("%w: class %d", ErrUnsupportedLayout, d.layout.class)
}

func (d *Dataset) readChunked(total uint64) ([]byte, error) {
	out := make([]byte, total)
	if d.layout.addr == d.f.undefined() {
		return out, nil
	}
	ndims := len(d.layout.chunkDims)
	if ndims != len(d.ds.Dims)+1 {
		return nil, fmt.Errorf("%w: chunk rank %d for dataset rank %d",
			ErrCorrupted, ndims, len(d.ds.Dims))
	}

	chunks, err := d.f.walkChunkBTree(d.layout.addr, ndims)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		raw, err := d.f.readAt(c.addr, int(c.size))
		if err != nil {
			return nil, err
		}
		data, err := d.defilter(raw, c.mask)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", d.name, err)
		}
		if err := scatterChunk(out, d.ds.Dims, int(d.dt.Size), d.layout.chunkDims, c.offset, data); err != nil {
			return nil, fmt.Errorf("dataset %q: %w", d.name, err)
		}
	}
	return out, nil
}

// defilter reverses the filter pipeline. Filters apply to stored chunks
// in pipeline order, so reading runs them back to front; mask bits flag
// filters that were skipped when the chunk was written.
func (d *Dataset) defilter(data []byte, mask uint32) ([]byte, error) {
	for i := len(d.filters) - 1; i >= 0; i-- {
		if mask&(1<<uint(i)) != 0 {
			continue
		}
		ft := d.filters[i]
		var err error
		switch ft.id {
		case filterFletcher32:
			data, err = checkFletcher32(data)
		case filterDeflate:
			data, err = inflate(data)
		case filterShuffle:
			elemSize := int(d.dt.Size)
			if len(ft.values) > 0 {
				elemSize = int(ft.values[0])
			}
			data = unshuffle(data, elemSize)
		default:
			return nil, fmt.Errorf("%w: filter id %d", ErrUnsupportedFilter, ft.id)
		}
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// checkFletcher32 verifies and strips the trailing 4-byte checksum.
// The sums run over big-endian 16-bit words and fold every 360 words to
// stay in 32 bits.
func checkFletcher32(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: fletcher32 chunk too short", ErrCorrupted)
	}
	payload := data[:len(data)-4]
	stored := lenc.ByteOrder.Uint32(data[len(data)-4:])
	if fletcher32(payload) != stored {
		return nil, fmt.Errorf("%w: chunk fletcher32", ErrBadChecksum)
	}
	return payload, nil
}

func fletcher32(data []byte) uint32 {
	var sum1, sum2 uint32
	words := len(data) / 2
	pos := 0
	for words > 0 {
		block := words
		if block > 360 {
			block = 360
		}
		words -= block
		for ; block > 0; block-- {
			sum1 += uint32(data[pos])<<8 | uint32(data[pos+1])
			sum2 += sum1
			pos += 2
		}
		sum1 = (sum1 & 0xFFFF) + (sum1 >> 16)
		sum2 = (sum2 & 0xFFFF) + (sum2 >> 16)
	}
	if len(data)%2 != 0 {
		sum1 += uint32(data[len(data)-1]) << 8
		sum2 += sum1
		sum1 = (sum1 & 0xFFFF) + (sum1 >> 16)
		sum2 = (sum2 & 0xFFFF) + (sum2 >> 16)
	}
	sum1 = (sum1 & 0xFFFF) + (sum1 >> 16)
	sum2 = (sum2 & 0xFFFF) + (sum2 >> 16)
	return sum2<<16 | sum1
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("hdf5: deflate filter: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("hdf5: deflate filter: %w", err)
	}
	return out, nil
}

// unshuffle reverses the byte shuffle filter, re-interleaving per-byte
// planes back into elements. Trailing bytes that do not fill an element
// pass through unchanged.
func unshuffle(data []byte, elemSize int) []byte {
	if elemSize <= 1 || len(data) < elemSize {
		return data
	}
	n := len(data) / elemSize
	out := make([]byte, len(data))
	for b := 0; b < elemSize; b++ {
		plane := data[b*n : (b+1)*n]
		for e := 0; e < n; e++ {
			out[e*elemSize+b] = plane[e]
		}
	}
	copy(out[n*elemSize:], data[n*elemSize:])
	return out
}

// scatterChunk copies one decoded chunk into the dataset buffer,
// clipping chunks that overhang the dataset bounds.
func scatterChunk(dst []byte, dims []uint64, elemSize int, chunkDims []uint32, offset []uint64, src []byte) error {
	rank := len(dims)
	if rank == 0 {
		return fmt.Errorf("%w: chunked scalar dataset", ErrCorrupted)
	}

	// Per-dimension element counts actually present in this chunk.
	counts := make([]uint64, rank)
	chunkElems := uint64(1)
	for i := 0; i < rank; i++ {
		if offset[i] >= dims[i] {
			return nil // chunk entirely past the edge
		}
		counts[i] = uint64(chunkDims[i])
		if offset[i]+counts[i] > dims[i] {
			counts[i] = dims[i] - offset[i]
		}
		chunkElems *= uint64(chunkDims[i])
	}
	if uint64(len(src)) < chunkElems*uint64(elemSize) {
		return fmt.Errorf("%w: chunk smaller than its extent", ErrCorrupted)
	}

	// Row-major strides in bytes for the dataset and the full chunk.
	dstStride := make([]uint64, rank)
	srcStride := make([]uint64, rank)
	dstStride[rank-1] = uint64(elemSize)
	srcStride[rank-1] = uint64(elemSize)
	for i := rank - 2; i >= 0; i-- {
		dstStride[i] = dstStride[i+1] * dims[i+1]
		srcStride[i] = srcStride[i+1] * uint64(chunkDims[i+1])
	}

	rowBytes := counts[rank-1] * uint64(elemSize)
	idx := make([]uint64, rank-1)
	for {
		var dstOff, srcOff uint64
		for i := 0; i < rank-1; i++ {
			dstOff += (offset[i] + idx[i]) * dstStride[i]
			srcOff += idx[i] * srcStride[i]
		}
		dstOff += offset[rank-1] * uint64(elemSize)
		copy(dst[dstOff:dstOff+rowBytes], src[srcOff:srcOff+rowBytes])

		// Odometer over the leading dimensions.
		i := rank - 2
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < counts[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return nil
}

// parseLayout decodes a version 3 data layout message.
func (f *File) parseLayout(b []byte) (dataLayout, error) {
	r := lenc.NewReader(b)
	version, err := r.ReadByte()
	if err != nil {
		return dataLayout{}, fmt.Errorf("%w: layout message", ErrCorrupted)
	}
	if version != 3 {
		return dataLayout{}, fmt.Errorf("%w: layout version %d", ErrUnsupportedVersion, version)
	}
	class, err := r.ReadByte()
	if err != nil {
		return dataLayout{}, fmt.Errorf("%w: layout message", ErrCorrupted)
	}

	l := dataLayout{class: int(class)}
	switch class {
	case layoutCompact:
		size, err := r.ReadUint16()
		if err != nil {
			return dataLayout{}, fmt.Errorf("%w: compact layout", ErrCorrupted)
		}
		l.compact, err = r.ReadBytes(int(size))
		if err != nil {
			return dataLayout{}, fmt.Errorf("%w: compact layout", ErrCorrupted)
		}

	case layoutContiguous:
		l.addr, err = r.ReadUintN(f.offsetSize)
		if err != nil {
			return dataLayout{}, fmt.Errorf("%w: contiguous layout", ErrCorrupted)
		}
		l.size, err = r.ReadUintN(f.lengthSize)
		if err != nil {
			return dataLayout{}, fmt.Errorf("%w: contiguous layout", ErrCorrupted)
		}

	case layoutChunked:
		ndims, err := r.ReadByte()
		if err != nil {
			return dataLayout{}, fmt.Errorf("%w: chunked layout", ErrCorrupted)
		}
		l.addr, err = r.ReadUintN(f.offsetSize)
		if err != nil {
			return dataLayout{}, fmt.Errorf("%w: chunked layout", ErrCorrupted)
		}
		l.chunkDims = make([]uint32, ndims)
		for i := range l.chunkDims {
			l.chunkDims[i], err = r.ReadUint32()
			if err != nil {
				return dataLayout{}, fmt.Errorf("%w: chunked layout", ErrCorrupted)
			}
		}

	default:
		return dataLayout{}, fmt.Errorf("%w: class %d", ErrUnsupportedLayout, class)
	}
	return l, nil
}

// parseFilterPipeline decodes version 1 and 2 filter pipeline messages.
func parseFilterPipeline(b []byte) ([]filter, error) {
	r := lenc.NewReader(b)
	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: filter pipeline", ErrCorrupted)
	}
	if version != 1 && version != 2 {
		return nil, fmt.Errorf("%w: filter pipeline version %d", ErrUnsupportedVersion, version)
	}
	nfilters, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: filter pipeline", ErrCorrupted)
	}
	if version == 1 {
		if err := r.Skip(6); err != nil { // reserved
			return nil, fmt.Errorf("%w: filter pipeline", ErrCorrupted)
		}
	}

	filters := make([]filter, 0, nfilters)
	for i := 0; i < int(nfilters); i++ {
		id, err := r.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("%w: filter pipeline", ErrCorrupted)
		}
		nameLen := uint16(0)
		if version == 1 || id >= 256 {
			nameLen, err = r.ReadUint16()
			if err != nil {
				return nil, fmt.Errorf("%w: filter pipeline", ErrCorrupted)
			}
		}
		flags, err := r.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("%w: filter pipeline", ErrCorrupted)
		}
		nvalues, err := r.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("%w: filter pipeline", ErrCorrupted)
		}
		if nameLen > 0 {
			n := int(nameLen)
			if version == 1 {
				n = (n + 7) &^ 7
			}
			if err := r.Skip(n); err != nil {
				return nil, fmt.Errorf("%w: filter pipeline", ErrCorrupted)
			}
		}
		ft := filter{id: id, flags: flags, values: make([]uint32, nvalues)}
		for j := range ft.values {
			ft.values[j], err = r.ReadUint32()
			if err != nil {
				return nil, fmt.Errorf("%w: filter pipeline", ErrCorrupted)
			}
		}
		if version == 1 && nvalues%2 != 0 {
			if err := r.Skip(4); err != nil {
				return nil, fmt.Errorf("%w: filter pipeline", ErrCorrupted)
			}
		}
		filters = append(filters, ft)
	}
	return filters, nil
}
