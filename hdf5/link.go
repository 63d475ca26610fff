package hdf5

import (
	"fmt"

	"github.com/mrjoshuak/go-imaris/internal/lenc"
)

// LinkType identifies how a link resolves to its target.
type LinkType uint8

const (
	// LinkHard points at an object header in the same file.
	LinkHard LinkType = 0
	// LinkSoft names a path resolved within the same file.
	LinkSoft LinkType = 1
	// LinkExternal names an object path inside another file.
	LinkExternal LinkType = 2
)

// String returns a string representation of the link type.
func (t LinkType) String() string {
	switch t {
	case LinkHard:
		return "hard"
	case LinkSoft:
		return "soft"
	case LinkExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Link is a named entry in a group.
type Link struct {
	Name string
	Type LinkType

	// Address is the target object header address for hard links.
	Address uint64
	// Target is the in-file path for soft links.
	Target string
	// File and Path locate the target of an external link.
	File string
	Path string
}

// Link message flag bits.
const (
	linkFlagNameSizeMask = 0x03
	linkFlagCreateOrder  = 0x04
	linkFlagTypeField    = 0x08
	linkFlagCharSet      = 0x10
)

// On-disk link type codes. Hard links omit the type field entirely.
const (
	linkTypeSoft     = 1
	linkTypeExternal = 64
)

// parseLinkMessage decodes a version 1 link message.
func parseLinkMessage(b []byte, offsetSize int) (Link, error) {
	r := lenc.NewReader(b)
	version, err := r.ReadByte()
	if err != nil || version != 1 {
		return Link{}, fmt.Errorf("%w: link message version", ErrUnsupportedVersion)
	}
	flags, err := r.ReadByte()
	if err != nil {
		return Link{}, fmt.Errorf("%w: link message too short", ErrCorrupted)
	}

	linkType := byte(0)
	hard := true
	if flags&linkFlagTypeField != 0 {
		linkType, err = r.ReadByte()
		if err != nil {
			return Link{}, fmt.Errorf("%w: link message too short", ErrCorrupted)
		}
		hard = false
	}
	if flags&linkFlagCreateOrder != 0 {
		if err := r.Skip(8); err != nil {
			return Link{}, fmt.Errorf("%w: link message too short", ErrCorrupted)
		}
	}
	if flags&linkFlagCharSet != 0 {
		if err := r.Skip(1); err != nil {
			return Link{}, fmt.Errorf("%w: link message too short", ErrCorrupted)
		}
	}

	nameLen, err := r.ReadUintN(1 << (flags & linkFlagNameSizeMask))
	if err != nil {
		return Link{}, fmt.Errorf("%w: link message too short", ErrCorrupted)
	}
	nameBytes, err := r.ReadBytes(int(nameLen))
	if err != nil {
		return Link{}, fmt.Errorf("%w: link name truncated", ErrCorrupted)
	}

	l := Link{Name: string(nameBytes)}
	switch {
	case hard:
		l.Type = LinkHard
		l.Address, err = r.ReadUintN(offsetSize)
		if err != nil {
			return Link{}, fmt.Errorf("%w: hard link address truncated", ErrCorrupted)
		}
	case linkType == linkTypeSoft:
		l.Type = LinkSoft
		n, err := r.ReadUint16()
		if err != nil {
			return Link{}, fmt.Errorf("%w: soft link truncated", ErrCorrupted)
		}
		target, err := r.ReadBytes(int(n))
		if err != nil {
			return Link{}, fmt.Errorf("%w: soft link truncated", ErrCorrupted)
		}
		l.Target = cString(target)
	case linkType == linkTypeExternal:
		l.Type = LinkExternal
		n, err := r.ReadUint16()
		if err != nil {
			return Link{}, fmt.Errorf("%w: external link truncated", ErrCorrupted)
		}
		info, err := r.ReadBytes(int(n))
		if err != nil {
			return Link{}, fmt.Errorf("%w: external link truncated", ErrCorrupted)
		}
		ir := lenc.NewReader(info)
		if _, err := ir.ReadByte(); err != nil { // version and flags
			return Link{}, fmt.Errorf("%w: external link info truncated", ErrCorrupted)
		}
		l.File, err = ir.ReadString()
		if err != nil {
			return Link{}, fmt.Errorf("%w: external link file name truncated", ErrCorrupted)
		}
		l.Path, err = ir.ReadString()
		if err != nil {
			return Link{}, fmt.Errorf("%w: external link object path truncated", ErrCorrupted)
		}
	default:
		return Link{}, fmt.Errorf("%w: link class %d", ErrUnsupportedVersion, linkType)
	}
	return l, nil
}

// encodeLinkMessage writes the version 1 link message body.
func encodeLinkMessage(w *lenc.BufferWriter, l Link) error {
	if len(l.Name) > 0xFFFF {
		return fmt.Errorf("%w: link %q", ErrMessageTooLarge, l.Name)
	}

	var flags byte
	nameWidth := 1
	if len(l.Name) > 0xFF {
		flags |= 0x01
		nameWidth = 2
	}
	if l.Type != LinkHard {
		flags |= linkFlagTypeField
	}

	w.WriteByte(1) // version
	w.WriteByte(flags)
	switch l.Type {
	case LinkSoft:
		w.WriteByte(linkTypeSoft)
	case LinkExternal:
		w.WriteByte(linkTypeExternal)
	}
	if nameWidth == 1 {
		w.WriteByte(byte(len(l.Name)))
	} else {
		w.WriteUint16(uint16(len(l.Name)))
	}
	w.WriteBytes([]byte(l.Name))

	switch l.Type {
	case LinkHard:
		w.WriteUint64(l.Address)
	case LinkSoft:
		if len(l.Target) > 0xFFFF {
			return fmt.Errorf("%w: soft link %q", ErrMessageTooLarge, l.Name)
		}
		w.WriteUint16(uint16(len(l.Target)))
		w.WriteBytes([]byte(l.Target))
	case LinkExternal:
		n := 1 + len(l.File) + 1 + len(l.Path) + 1
		if n > 0xFFFF {
			return fmt.Errorf("%w: external link %q", ErrMessageTooLarge, l.Name)
		}
		w.WriteUint16(uint16(n))
		w.WriteByte(0) // external link info version and flags
		w.WriteString(l.File)
		w.WriteString(l.Path)
	}
	return nil
}
