package ims

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/mrjoshuak/go-imaris/hdf5"
)

// Stitch option errors.
var (
	ErrNoChannels   = errors.New("ims: no channels specified")
	ErrTileCount    = errors.New("ims: tile counts must be at least 1")
	ErrOutputIsTile = errors.New("ims: output filename collides with a tile file")
	ErrMissingTile  = errors.New("ims: tile file missing")
)

// infoChildren are the DataSetInfo subtrees carried from each tile into
// the composite file.
var infoChildren = []string{"Channel 0", "Image", "ImarisDataSet", "Log"}

// Options configures Stitch.
type Options struct {
	// Dir is the directory holding the tile files.
	Dir string
	// Output is the composite file to write. A relative path is
	// resolved against Dir.
	Output string

	// XTiles, YTiles, ZTiles give the grid extent.
	XTiles, YTiles, ZTiles int
	// Channels lists the acquisition channels, by wavelength.
	Channels []int

	// Color is the base RGB display color written to every channel.
	Color [3]float64
	// ColorRange is the min/max display range.
	ColorRange [2]float64

	// Logf, when set, receives one line of progress per tile.
	Logf func(format string, args ...any)
}

// Result summarizes a completed stitch.
type Result struct {
	// Output is the path of the composite file written.
	Output string
	// Tiles is the number of tile files linked.
	Tiles int
	// ResolutionLevels is the largest pyramid depth seen in any tile.
	ResolutionLevels int
}

func (o *Options) logf(format string, args ...any) {
	if o.Logf != nil {
		o.Logf(format, args...)
	}
}

func (o *Options) outputPath() string {
	if filepath.IsAbs(o.Output) {
		return o.Output
	}
	return filepath.Join(o.Dir, o.Output)
}

// tiles returns the expected tile file names in link order: channels
// outermost, then z, y, x with x varying fastest.
func (o *Options) tiles() []string {
	names := make([]string, 0, o.XTiles*o.YTiles*o.ZTiles*len(o.Channels))
	for _, c := range o.Channels {
		for z := 0; z < o.ZTiles; z++ {
			for y := 0; y < o.YTiles; y++ {
				for x := 0; x < o.XTiles; x++ {
					names = append(names, TileFileName(x, y, z, c))
				}
			}
		}
	}
	return names
}

func (o *Options) validate() ([]string, error) {
	if o.XTiles < 1 || o.YTiles < 1 || o.ZTiles < 1 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrTileCount, o.XTiles, o.YTiles, o.ZTiles)
	}
	if len(o.Channels) == 0 {
		return nil, ErrNoChannels
	}

	names := o.tiles()
	outBase := filepath.Base(o.outputPath())
	for _, name := range names {
		if name == outBase {
			return nil, fmt.Errorf("%w: %q", ErrOutputIsTile, name)
		}
		if _, err := os.Stat(filepath.Join(o.Dir, name)); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMissingTile, name)
		}
	}
	return names, nil
}

// Stitch assembles a composite Imaris file over a grid of tile files.
// Each tile contributes a copy of its DataSetInfo metadata and one
// external link per resolution level; no pixel data is copied. All tiles
// are checked before any output is written.
func Stitch(opts Options) (*Result, error) {
	names, err := opts.validate()
	if err != nil {
		return nil, err
	}
	outPath := opts.outputPath()

	// External link file names are relative to the composite file.
	linkDir, err := filepath.Rel(filepath.Dir(outPath), opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("ims: tile directory unreachable from output: %w", err)
	}

	fw := hdf5.NewFileWriter()
	root := fw.Root()
	if err := errors.Join(
		SetStringAttribute(root, "DataSetDirectoryName", DataSetGroup),
		SetStringAttribute(root, "DataSetInfoDirectoryName", DataSetInfoGroup),
		SetStringAttribute(root, "ImarisDataSet", "ImarisDataSet"),
		SetStringAttribute(root, "ImarisVersion", ImarisVersion),
		SetUint32Attribute(root, "NumberOfDataSets", uint32(len(names))),
		SetStringAttribute(root, "ThumbnailDirectoryName", ThumbnailGroup),
	); err != nil {
		return nil, fmt.Errorf("ims: root attributes: %w", err)
	}

	res := &Result{Output: outPath}
	for tile, name := range names {
		levels, err := linkTile(root, opts, linkDir, tile, name)
		if err != nil {
			return nil, fmt.Errorf("ims: tile %q: %w", name, err)
		}
		if levels > res.ResolutionLevels {
			res.ResolutionLevels = levels
		}
		res.Tiles++
		opts.logf("linked %s (%d resolution levels)", name, levels)
	}

	if err := fw.WriteFile(outPath); err != nil {
		return nil, fmt.Errorf("ims: writing %q: %w", outPath, err)
	}
	return res, nil
}

// linkTile copies one tile's metadata into the composite and registers
// its external links. It returns the tile's resolution level count.
func linkTile(root *hdf5.GroupBuilder, opts Options, linkDir string, tile int, name string) (int, error) {
	f, err := hdf5.OpenFile(filepath.Join(opts.Dir, name))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	srcInfo, err := f.Group(DataSetInfoGroup)
	if err != nil {
		return 0, err
	}
	info, err := root.CreateGroup(DataSetInfoGroupName(tile))
	if err != nil {
		return 0, err
	}
	for _, child := range infoChildren {
		src, err := srcInfo.Group(child)
		if err != nil {
			return 0, err
		}
		if _, err := hdf5.Copy(info, child, src); err != nil {
			return 0, err
		}
	}

	// The composite represents a new acquisition; the per-tile recording
	// date does not apply.
	if image, ok := info.Group("Image"); ok {
		image.RemoveAttribute("RecordingDate")
	}
	channel, ok := info.Group("Channel 0")
	if !ok {
		return 0, fmt.Errorf("copied %q lost Channel 0", DataSetInfoGroupName(tile))
	}
	if err := errors.Join(
		SetStringAttribute(channel, "Color", FormatColor(opts.Color)),
		SetStringAttribute(channel, "ColorMode", "BaseColor"),
		SetStringAttribute(channel, "ColorRange", FormatRange(opts.ColorRange)),
	); err != nil {
		return 0, err
	}

	srcData, err := f.Group(DataSetGroup)
	if err != nil {
		return 0, err
	}
	levels := len(srcData.Links())

	data, err := root.CreateGroup(DataSetGroupName(tile))
	if err != nil {
		return 0, err
	}
	linkFile := "./" + path.Join(filepath.ToSlash(linkDir), name)
	for r := 0; r < levels; r++ {
		level, err := data.CreateGroup(ResolutionLevelName(r))
		if err != nil {
			return 0, err
		}
		tp, err := level.CreateGroup(TimePointName(0))
		if err != nil {
			return 0, err
		}
		if err := tp.ExternalLink(ChannelName(0), linkFile, DataPath(r)); err != nil {
			return 0, err
		}
	}
	return levels, nil
}
