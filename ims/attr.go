package ims

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrjoshuak/go-imaris/hdf5"
)

// ErrNotAString reports an attribute whose datatype is not one of the
// Imaris string encodings.
var ErrNotAString = errors.New("ims: attribute is not a string")

// SetStringAttribute writes an Imaris-style string attribute: a rank-1
// array of 1-byte null-terminated ASCII strings, one element per
// character. An existing attribute of the same name is replaced.
func SetStringAttribute(g *hdf5.GroupBuilder, name, value string) error {
	return g.SetAttribute(hdf5.NewAttribute(name,
		hdf5.StringDatatype(1),
		hdf5.SimpleDataspace(uint64(len(value))),
		[]byte(value)))
}

// SetUint32Attribute writes a scalar unsigned 32-bit attribute,
// replacing any existing attribute of the same name.
func SetUint32Attribute(g *hdf5.GroupBuilder, name string, value uint32) error {
	return g.SetAttribute(hdf5.Uint32Attribute(name, value))
}

// StringAttribute reads a string attribute from a group, accepting both
// the Imaris character array convention and plain fixed-length strings.
// The second return value reports whether the attribute exists.
func StringAttribute(g *hdf5.Group, name string) (string, bool, error) {
	a, ok := g.Attribute(name)
	if !ok {
		return "", false, nil
	}
	v, err := a.Value()
	if err != nil {
		return "", true, err
	}
	switch s := v.(type) {
	case string:
		return s, true, nil
	case []string:
		return strings.Join(s, ""), true, nil
	}
	return "", true, fmt.Errorf("%w: %q has class %s", ErrNotAString, name, a.Datatype.Class)
}

// FormatColor renders an RGB triple the way Imaris stores it.
func FormatColor(c [3]float64) string {
	return fmt.Sprintf("%.1f %.1f %.1f", c[0], c[1], c[2])
}

// FormatRange renders a min/max display range the way Imaris stores it.
func FormatRange(r [2]float64) string {
	return fmt.Sprintf("%.1f %.1f", r[0], r[1])
}
