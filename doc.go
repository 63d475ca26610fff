// Package imaris provides reading, writing, and stitching of Imaris (.ims)
// microscopy files, a container format built on HDF5.
//
// The repository is organized as follows:
//
//   - hdf5: a native Go implementation of the HDF5 subset Imaris files use:
//     superblocks, object headers, groups (old-style symbol tables and
//     new-style link messages), attributes, datasets, and external links.
//   - ims: Imaris conventions on top of hdf5 (well-known group names, the
//     tile file naming scheme, Imaris attribute encoding) and the tile
//     stitcher that assembles a composite file from a tiled acquisition.
//   - cmd/imslink: command line stitcher.
//   - cmd/imsinfo: structure and metadata inspector for .ims/HDF5 files.
//
// The composite produced by the stitcher contains only metadata and
// external links; pixel data stays in the tile files and is resolved by the
// viewer through the links.
package imaris
