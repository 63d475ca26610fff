package hdf5

import (
	"errors"
	"fmt"
)

// Copy deep-copies the group src into dst under the given name and
// returns the builder for the copy. Attributes, subgroups, datasets, and
// soft and external links all carry over; dataset data is re-stored
// contiguously regardless of the source layout.
//
// Attributes and datasets whose datatypes reference structures internal
// to the source file (variable-length data, references) cannot be copied
// and abort with ErrUnsupportedAttribute or ErrUnsupportedDatatype.
func Copy(dst *GroupBuilder, name string, src *Group) (*GroupBuilder, error) {
	g, err := dst.CreateGroup(name)
	if err != nil {
		return nil, err
	}
	if err := CopyInto(g, src); err != nil {
		return nil, err
	}
	return g, nil
}

// CopyInto copies the contents of src (attributes and links, recursively)
// into the existing builder dst.
func CopyInto(dst *GroupBuilder, src *Group) error {
	for _, a := range src.Attributes() {
		if !a.Datatype.SelfContained() {
			return fmt.Errorf("%w: attribute %q of %q (%s)",
				ErrUnsupportedAttribute, a.Name, src.Name(), a.Datatype.Class)
		}
		if err := dst.SetAttribute(a); err != nil {
			return err
		}
	}
	for _, l := range src.Links() {
		var err error
		switch l.Type {
		case LinkSoft:
			err = dst.SoftLink(l.Name, l.Target)
		case LinkExternal:
			err = dst.ExternalLink(l.Name, l.File, l.Path)
		case LinkHard:
			err = copyObject(dst, src, l)
		default:
			err = fmt.Errorf("hdf5: cannot copy %s link %q", l.Type, l.Name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func copyObject(dst *GroupBuilder, parent *Group, l Link) error {
	child, err := parent.f.loadGroup(joinPath(parent.Name(), l.Name), l.Address)
	if err == nil {
		_, err = Copy(dst, l.Name, child)
		return err
	}
	if !errors.Is(err, ErrNotAGroup) {
		return err
	}

	ds, err := parent.f.loadDataset(joinPath(parent.Name(), l.Name), l.Address)
	if err != nil {
		return err
	}
	if !ds.dt.SelfContained() {
		return fmt.Errorf("%w: dataset %q (%s)", ErrUnsupportedDatatype, ds.Name(), ds.dt.Class)
	}
	for _, a := range ds.attrs {
		if !a.Datatype.SelfContained() {
			return fmt.Errorf("%w: attribute %q of %q (%s)",
				ErrUnsupportedAttribute, a.Name, ds.Name(), a.Datatype.Class)
		}
	}
	data, err := ds.Read()
	if err != nil {
		return err
	}
	if err := dst.CreateDataset(l.Name, ds.dt, ds.ds, data); err != nil {
		return err
	}
	e := dst.find(l.Name)
	e.ds.attrs = append(e.ds.attrs, ds.attrs...)
	return nil
}
