// Package ims layers the Imaris file conventions on top of the hdf5
// package: well-known group and attribute names, the 1-byte character
// array string attribute encoding, tile file naming, and the stitcher
// that assembles a composite file of external links over a tile grid.
package ims

import "fmt"

// Well-known group names inside an Imaris container.
const (
	DataSetGroup     = "DataSet"
	DataSetInfoGroup = "DataSetInfo"
	ThumbnailGroup   = "Thumbnail"
)

// ImarisVersion is the container version the composite file declares.
const ImarisVersion = "5.5.0"

// DataSetGroupName returns the data group name for the n'th tile.
// The first tile uses the plain name with no suffix.
func DataSetGroupName(n int) string {
	if n == 0 {
		return DataSetGroup
	}
	return fmt.Sprintf("%s%d", DataSetGroup, n)
}

// DataSetInfoGroupName returns the metadata group name for the n'th tile.
func DataSetInfoGroupName(n int) string {
	if n == 0 {
		return DataSetInfoGroup
	}
	return fmt.Sprintf("%s%d", DataSetInfoGroup, n)
}

// ResolutionLevelName returns the group name of resolution level r.
func ResolutionLevelName(r int) string {
	return fmt.Sprintf("ResolutionLevel %d", r)
}

// TimePointName returns the group name of time point t.
func TimePointName(t int) string {
	return fmt.Sprintf("TimePoint %d", t)
}

// ChannelName returns the group name of channel c.
func ChannelName(c int) string {
	return fmt.Sprintf("Channel %d", c)
}

// TileFileName returns the file name a tile occupies on disk. Grid
// coordinates are zero-padded to four digits; the channel is the
// acquisition wavelength and is not padded.
func TileFileName(x, y, z, channel int) string {
	return fmt.Sprintf("tile_x_%04d_y_%04d_z_%04d_ch_%d.ims", x, y, z, channel)
}

// DataPath returns the in-file path of the pixel data for one resolution
// level, always time point 0 and channel 0 in a tile file.
func DataPath(r int) string {
	return fmt.Sprintf("%s/%s/%s/%s", DataSetGroup, ResolutionLevelName(r), TimePointName(0), ChannelName(0))
}
