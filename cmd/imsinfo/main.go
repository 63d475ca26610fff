// imsinfo prints the structure of Imaris (or any HDF5) files: the group
// tree, links with their targets, attributes, and dataset shapes.
//
// Usage:
//
//	imsinfo [options] file.ims ...
//
// Options:
//
//	-a          print attribute values, not just counts
//	-q          quiet; no output, exit status only
//	-h, --help  print this message
//	--version   print version information
//
// Exit status is 0 when every file reads cleanly, 1 otherwise.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/mrjoshuak/go-imaris/hdf5"
)

const version = "0.1.0"

type options struct {
	attrs bool
	quiet bool
	files []string
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-h" || arg == "--help" {
			usageMessage(os.Stdout, true)
			os.Exit(0)
		}
		if arg == "--version" {
			fmt.Printf("imsinfo (go-imaris) %s\n", version)
			os.Exit(0)
		}
	}

	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "imsinfo: %v\n", err)
		usageMessage(os.Stderr, false)
		os.Exit(2)
	}

	status := 0
	for _, path := range opts.files {
		if err := describe(os.Stdout, path, opts); err != nil {
			if !opts.quiet {
				fmt.Fprintf(os.Stderr, "imsinfo: %s: %v\n", path, err)
			}
			status = 1
		}
	}
	os.Exit(status)
}

func parseArgs(args []string) (*options, error) {
	opts := &options{}
	for _, arg := range args {
		switch arg {
		case "-a":
			opts.attrs = true
		case "-q":
			opts.quiet = true
		default:
			if strings.HasPrefix(arg, "-") {
				return nil, fmt.Errorf("unknown option: %s", arg)
			}
			opts.files = append(opts.files, arg)
		}
	}
	if len(opts.files) == 0 {
		return nil, fmt.Errorf("no input files specified")
	}
	return opts, nil
}

func describe(w io.Writer, path string, opts *options) error {
	f, err := hdf5.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	root, err := f.Root()
	if err != nil {
		return err
	}
	if opts.quiet {
		return walkQuiet(root)
	}

	if len(opts.files) > 1 {
		fmt.Fprintf(w, "%s:\n", path)
	}
	fmt.Fprintln(w, "/")
	printAttrs(w, "  ", root.Attributes(), opts.attrs)
	return printGroup(w, "  ", root, opts)
}

// walkQuiet traverses the whole tree so structural errors still surface.
func walkQuiet(g *hdf5.Group) error {
	for _, name := range g.Children() {
		l, _ := g.Link(name)
		if l.Type != hdf5.LinkHard {
			continue
		}
		sub, err := g.Group(name)
		if err == nil {
			if err := walkQuiet(sub); err != nil {
				return err
			}
			continue
		}
		if !errors.Is(err, hdf5.ErrNotAGroup) {
			return err
		}
		if _, err := g.Dataset(name); err != nil {
			return err
		}
	}
	return nil
}

func printGroup(w io.Writer, indent string, g *hdf5.Group, opts *options) error {
	for _, name := range g.Children() {
		l, _ := g.Link(name)
		switch l.Type {
		case hdf5.LinkSoft:
			fmt.Fprintf(w, "%s%s -> %s (soft)\n", indent, name, l.Target)
		case hdf5.LinkExternal:
			fmt.Fprintf(w, "%s%s -> %s::%s (external)\n", indent, name, l.File, l.Path)
		case hdf5.LinkHard:
			sub, err := g.Group(name)
			if err == nil {
				fmt.Fprintf(w, "%s%s/\n", indent, name)
				printAttrs(w, indent+"  ", sub.Attributes(), opts.attrs)
				if err := printGroup(w, indent+"  ", sub, opts); err != nil {
					return err
				}
				continue
			}
			if !errors.Is(err, hdf5.ErrNotAGroup) {
				return err
			}
			d, err := g.Dataset(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s%s  %s\n", indent, name, datasetSummary(d))
			printAttrs(w, indent+"  ", d.Attributes(), opts.attrs)
		}
	}
	return nil
}

func printAttrs(w io.Writer, indent string, attrs []hdf5.Attribute, values bool) {
	if len(attrs) == 0 {
		return
	}
	if !values {
		fmt.Fprintf(w, "%s(%d attributes)\n", indent, len(attrs))
		return
	}
	sorted := make([]hdf5.Attribute, len(attrs))
	copy(sorted, attrs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, a := range sorted {
		v, err := a.Value()
		if err != nil {
			fmt.Fprintf(w, "%s@%s = <%v>\n", indent, a.Name, err)
			continue
		}
		if chars, ok := v.([]string); ok && a.Datatype.Size == 1 {
			// Imaris strings: one character per element.
			v = strings.Join(chars, "")
		}
		fmt.Fprintf(w, "%s@%s = %v\n", indent, a.Name, v)
	}
}

func datasetSummary(d *hdf5.Dataset) string {
	ds := d.Dataspace()
	var shape string
	switch {
	case ds.Null:
		shape = "null"
	case ds.Scalar:
		shape = "scalar"
	default:
		dims := make([]string, len(ds.Dims))
		for i, v := range ds.Dims {
			dims[i] = fmt.Sprintf("%d", v)
		}
		shape = strings.Join(dims, "x")
	}
	size := ds.NumElements() * uint64(d.Datatype().Size)
	return fmt.Sprintf("%s %s, %s", typeName(d.Datatype()), shape, humanize.IBytes(size))
}

func typeName(dt hdf5.Datatype) string {
	switch dt.Class {
	case hdf5.ClassFixedPoint:
		if dt.Signed {
			return fmt.Sprintf("int%d", dt.Size*8)
		}
		return fmt.Sprintf("uint%d", dt.Size*8)
	case hdf5.ClassFloat:
		return fmt.Sprintf("float%d", dt.Size*8)
	case hdf5.ClassString:
		return fmt.Sprintf("string(%d)", dt.Size)
	}
	return dt.Class.String()
}

func usageMessage(w io.Writer, verbose bool) {
	fmt.Fprintf(w, "Usage: imsinfo [options] file.ims ...\n\n")
	if verbose {
		fmt.Fprintln(w, "Options:")
		fmt.Fprintln(w, "  -a          print attribute values, not just counts")
		fmt.Fprintln(w, "  -q          quiet; no output, exit status only")
		fmt.Fprintln(w, "  -h, --help  print this message")
		fmt.Fprintln(w, "  --version   print version information")
	}
}
