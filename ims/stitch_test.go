package ims

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mrjoshuak/go-imaris/hdf5"
)

// writeTile writes a minimal but structurally faithful tile file: a
// DataSetInfo tree with the four standard subtrees and a DataSet pyramid
// of empty groups.
func writeTile(t *testing.T, dir string, x, y, z, ch, levels int) {
	t.Helper()
	fw := hdf5.NewFileWriter()
	root := fw.Root()

	info, err := root.CreateGroup(DataSetInfoGroup)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	chG, _ := info.CreateGroup("Channel 0")
	SetStringAttribute(chG, "Color", "0.0 0.0 0.0")
	SetStringAttribute(chG, "ColorRange", "0.0 255.0")
	SetStringAttribute(chG, "LSMEmissionWavelength", "525")

	img, _ := info.CreateGroup("Image")
	SetStringAttribute(img, "RecordingDate", "2024-01-15 10:30:00")
	SetStringAttribute(img, "Unit", "um")
	SetStringAttribute(img, "X", "2048")

	ids, _ := info.CreateGroup("ImarisDataSet")
	SetStringAttribute(ids, "Creator", "Imaris")
	SetStringAttribute(ids, "NumberOfImages", "1")

	logG, _ := info.CreateGroup("Log")
	SetStringAttribute(logG, "Entries", "0")

	data, err := root.CreateGroup(DataSetGroup)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	for r := 0; r < levels; r++ {
		level, _ := data.CreateGroup(ResolutionLevelName(r))
		tp, _ := level.CreateGroup(TimePointName(0))
		tp.CreateGroup(ChannelName(0))
	}

	if err := fw.WriteFile(filepath.Join(dir, TileFileName(x, y, z, ch))); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func baseOptions(dir string) Options {
	return Options{
		Dir:        dir,
		Output:     "combined.ims",
		XTiles:     2,
		YTiles:     1,
		ZTiles:     1,
		Channels:   []int{488},
		Color:      [3]float64{1, 0, 0},
		ColorRange: [2]float64{0, 500},
	}
}

func TestStitch(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, 0, 0, 0, 488, 3)
	writeTile(t, dir, 1, 0, 0, 488, 2)

	res, err := Stitch(baseOptions(dir))
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if res.Tiles != 2 {
		t.Errorf("Tiles = %d, want 2", res.Tiles)
	}
	if res.ResolutionLevels != 3 {
		t.Errorf("ResolutionLevels = %d, want 3", res.ResolutionLevels)
	}

	f, err := hdf5.OpenFile(res.Output)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()
	root, err := f.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}

	for name, want := range map[string]string{
		"DataSetDirectoryName":     "DataSet",
		"DataSetInfoDirectoryName": "DataSetInfo",
		"ImarisDataSet":            "ImarisDataSet",
		"ImarisVersion":            "5.5.0",
		"ThumbnailDirectoryName":   "Thumbnail",
	} {
		s, ok, err := StringAttribute(root, name)
		if err != nil || !ok {
			t.Fatalf("attribute %q: ok=%v err=%v", name, ok, err)
		}
		if s != want {
			t.Errorf("attribute %q = %q, want %q", name, s, want)
		}
	}
	a, ok := root.Attribute("NumberOfDataSets")
	if !ok {
		t.Fatal("NumberOfDataSets missing")
	}
	if v, _ := a.Value(); v != uint64(2) {
		t.Errorf("NumberOfDataSets = %v, want 2", v)
	}

	// Tile 0 metadata under the unsuffixed names.
	ch0, err := f.Group("DataSetInfo/Channel 0")
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	for name, want := range map[string]string{
		"Color":                 "1.0 0.0 0.0",
		"ColorMode":             "BaseColor",
		"ColorRange":            "0.0 500.0",
		"LSMEmissionWavelength": "525",
	} {
		s, _, err := StringAttribute(ch0, name)
		if err != nil {
			t.Fatalf("attribute %q: %v", name, err)
		}
		if s != want {
			t.Errorf("Channel 0 %q = %q, want %q", name, s, want)
		}
	}

	img, err := f.Group("DataSetInfo/Image")
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if _, ok := img.Attribute("RecordingDate"); ok {
		t.Error("RecordingDate survived the copy")
	}
	if s, _, _ := StringAttribute(img, "Unit"); s != "um" {
		t.Errorf("Image Unit = %q, want %q", s, "um")
	}

	// Tile 1 under the suffixed names, with its own link count.
	if _, err := f.Group("DataSetInfo1/Log"); err != nil {
		t.Errorf("DataSetInfo1/Log: %v", err)
	}
	tp, err := f.Group("DataSet1/ResolutionLevel 1/TimePoint 0")
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	l, ok := tp.Link("Channel 0")
	if !ok || l.Type != hdf5.LinkExternal {
		t.Fatalf("Channel 0 link = %+v", l)
	}
	if want := "./" + TileFileName(1, 0, 0, 488); l.File != want {
		t.Errorf("link file = %q, want %q", l.File, want)
	}
	if want := DataPath(1); l.Path != want {
		t.Errorf("link path = %q, want %q", l.Path, want)
	}

	// Tile 1 has only two levels.
	d1, err := f.Group("DataSet1")
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if got := len(d1.Links()); got != 2 {
		t.Errorf("DataSet1 has %d resolution levels, want 2", got)
	}
}

func TestStitchValidation(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, 0, 0, 0, 488, 1)
	writeTile(t, dir, 1, 0, 0, 488, 1)

	tests := []struct {
		name   string
		mutate func(*Options)
		want   error
	}{
		{"zero x tiles", func(o *Options) { o.XTiles = 0 }, ErrTileCount},
		{"negative z tiles", func(o *Options) { o.ZTiles = -1 }, ErrTileCount},
		{"no channels", func(o *Options) { o.Channels = nil }, ErrNoChannels},
		{"missing tile", func(o *Options) { o.XTiles = 3 }, ErrMissingTile},
		{"wrong channel", func(o *Options) { o.Channels = []int{561} }, ErrMissingTile},
		{"output collides", func(o *Options) { o.Output = TileFileName(0, 0, 0, 488) }, ErrOutputIsTile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := baseOptions(dir)
			tt.mutate(&opts)
			if _, err := Stitch(opts); !errors.Is(err, tt.want) {
				t.Errorf("Stitch: %v, want %v", err, tt.want)
			}
			if _, err := os.Stat(filepath.Join(dir, "combined.ims")); !os.IsNotExist(err) {
				t.Errorf("output written despite validation failure")
			}
		})
	}
}

func TestStitchOutputOutsideTileDir(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	writeTile(t, dir, 0, 0, 0, 488, 1)

	opts := baseOptions(dir)
	opts.XTiles = 1
	opts.Output = filepath.Join(outDir, "combined.ims")

	res, err := Stitch(opts)
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	f, err := hdf5.OpenFile(res.Output)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	tp, err := f.Group("DataSet/ResolutionLevel 0/TimePoint 0")
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	l, ok := tp.Link("Channel 0")
	if !ok {
		t.Fatal("Channel 0 link missing")
	}
	rel, err := filepath.Rel(outDir, dir)
	if err != nil {
		t.Fatal(err)
	}
	want := "./" + filepath.ToSlash(rel) + "/" + TileFileName(0, 0, 0, 488)
	if l.File != want {
		t.Errorf("link file = %q, want %q", l.File, want)
	}
}

func TestStitchProgressLog(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, 0, 0, 0, 488, 1)

	opts := baseOptions(dir)
	opts.XTiles = 1
	var lines int
	opts.Logf = func(format string, args ...any) { lines++ }
	if _, err := Stitch(opts); err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if lines != 1 {
		t.Errorf("logged %d lines, want 1", lines)
	}
}
