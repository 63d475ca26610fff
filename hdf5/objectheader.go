package hdf5

import (
	"fmt"

	"github.com/mrjoshuak/go-imaris/internal/jenkins"
	"github.com/mrjoshuak/go-imaris/internal/lenc"
)

const (
	ohdrSignature = "OHDR"
	ochkSignature = "OCHK"
)

// maxHeaderBlocks bounds continuation chains so cyclic references in a
// corrupt file cannot loop the reader.
const maxHeaderBlocks = 1024

// message is a decoded object header message.
type message struct {
	typ  uint16
	body []byte
}

// readObjectHeader reads a version 1 or version 2 object header at addr,
// following continuation blocks, and returns its messages in file order.
func (f *File) readObjectHeader(addr uint64) ([]message, error) {
	head, err := f.readAt(addr, 4)
	if err != nil {
		return nil, err
	}
	if string(head) == ohdrSignature {
		return f.readObjectHeaderV2(addr)
	}
	return f.readObjectHeaderV1(addr)
}

func (f *File) readObjectHeaderV1(addr uint64) ([]message, error) {
	prefix, err := f.readAt(addr, 12)
	if err != nil {
		return nil, err
	}
	r := lenc.NewReader(prefix)
	version, _ := r.ReadByte()
	if version != 1 {
		return nil, fmt.Errorf("%w: object header version %d", ErrUnsupportedVersion, version)
	}
	r.Skip(1) // reserved
	numMessages, _ := r.ReadUint16()
	r.Skip(4) // reference count
	headerSize, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("%w: object header prefix", ErrCorrupted)
	}

	// Messages start on the next 8-byte boundary after the prefix.
	first, err := f.readAt(addr+16, int(headerSize))
	if err != nil {
		return nil, err
	}

	var msgs []message
	seen := 0
	blocks := [][]byte{first}
	for len(blocks) > 0 && len(msgs) < int(numMessages) {
		if seen++; seen > maxHeaderBlocks {
			return nil, fmt.Errorf("%w: continuation chain too long", ErrCorrupted)
		}
		br := lenc.NewReader(blocks[0])
		blocks = blocks[1:]
		for br.Len() >= 8 && len(msgs) < int(numMessages) {
			typ, _ := br.ReadUint16()
			size, _ := br.ReadUint16()
			br.Skip(4) // flags, reserved
			body, err := br.ReadBytes(int(size))
			if err != nil {
				return nil, fmt.Errorf("%w: object header message truncated", ErrCorrupted)
			}
			if typ == msgContinuation {
				off, length, err := f.parseContinuation(body)
				if err != nil {
					return nil, err
				}
				block, err := f.readAt(off, int(length))
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, block)
				continue
			}
			msgs = append(msgs, message{typ: typ, body: body})
		}
	}
	return msgs, nil
}

func (f *File) readObjectHeaderV2(addr uint64) ([]message, error) {
	prefix, err := f.readAt(addr, 6)
	if err != nil {
		return nil, err
	}
	if string(prefix[:4]) != ohdrSignature {
		return nil, fmt.Errorf("%w: object header signature", ErrCorrupted)
	}
	if prefix[4] != 2 {
		return nil, fmt.Errorf("%w: object header version %d", ErrUnsupportedVersion, prefix[4])
	}
	flags := prefix[5]

	extra := 0
	if flags&0x20 != 0 {
		extra += 16 // access, modification, change, birth times
	}
	if flags&0x10 != 0 {
		extra += 4 // storage phase change values
	}
	sizeWidth := 1 << (flags & 0x03)

	fixed, err := f.readAt(addr+6, extra+sizeWidth)
	if err != nil {
		return nil, err
	}
	fr := lenc.NewReader(fixed)
	fr.Skip(extra)
	chunkSize, err := fr.ReadUintN(sizeWidth)
	if err != nil {
		return nil, fmt.Errorf("%w: object header prefix", ErrCorrupted)
	}

	total := 6 + extra + sizeWidth + int(chunkSize) + 4
	whole, err := f.readAt(addr, total)
	if err != nil {
		return nil, err
	}
	stored := lenc.ByteOrder.Uint32(whole[total-4:])
	if jenkins.Hash(whole[:total-4], 0) != stored {
		return nil, fmt.Errorf("%w: object header", ErrBadChecksum)
	}

	trackOrder := flags&0x04 != 0
	var msgs []message
	seen := 0
	regions := [][]byte{whole[6+extra+sizeWidth : total-4]}
	for len(regions) > 0 {
		if seen++; seen > maxHeaderBlocks {
			return nil, fmt.Errorf("%w: continuation chain too long", ErrCorrupted)
		}
		region := regions[0]
		regions = regions[1:]
		more, cont, err := f.parseV2Messages(region, trackOrder)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, more...)
		for _, c := range cont {
			block, err := f.readAt(c.off, int(c.length))
			if err != nil {
				return nil, err
			}
			if len(block) < 8 || string(block[:4]) != ochkSignature {
				return nil, fmt.Errorf("%w: continuation block signature", ErrCorrupted)
			}
			stored := lenc.ByteOrder.Uint32(block[len(block)-4:])
			if jenkins.Hash(block[:len(block)-4], 0) != stored {
				return nil, fmt.Errorf("%w: continuation block", ErrBadChecksum)
			}
			regions = append(regions, block[4:len(block)-4])
		}
	}
	return msgs, nil
}

type continuation struct {
	off    uint64
	length uint64
}

// parseV2Messages decodes the message stream of a version 2 header chunk.
// The trailing gap, if any, is smaller than a message header and ends the
// loop naturally.
func (f *File) parseV2Messages(region []byte, trackOrder bool) ([]message, []continuation, error) {
	headerSize := 4
	if trackOrder {
		headerSize = 6
	}

	var msgs []message
	var cont []continuation
	r := lenc.NewReader(region)
	for r.Len() >= headerSize {
		typByte, _ := r.ReadByte()
		size, _ := r.ReadUint16()
		r.Skip(1) // flags
		if trackOrder {
			r.Skip(2)
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: object header message truncated", ErrCorrupted)
		}
		typ := uint16(typByte)
		if typ == msgContinuation {
			off, length, err := f.parseContinuation(body)
			if err != nil {
				return nil, nil, err
			}
			cont = append(cont, continuation{off: off, length: length})
			continue
		}
		msgs = append(msgs, message{typ: typ, body: body})
	}
	return msgs, cont, nil
}

func (f *File) parseContinuation(body []byte) (off, length uint64, err error) {
	r := lenc.NewReader(body)
	off, err = r.ReadUintN(f.offsetSize)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: continuation message", ErrCorrupted)
	}
	length, err = r.ReadUintN(f.lengthSize)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: continuation message", ErrCorrupted)
	}
	return off, length, nil
}
