package ims

import "testing"

func TestGroupNames(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{DataSetGroupName(0), "DataSet"},
		{DataSetGroupName(1), "DataSet1"},
		{DataSetGroupName(12), "DataSet12"},
		{DataSetInfoGroupName(0), "DataSetInfo"},
		{DataSetInfoGroupName(3), "DataSetInfo3"},
		{ResolutionLevelName(0), "ResolutionLevel 0"},
		{TimePointName(0), "TimePoint 0"},
		{ChannelName(488), "Channel 488"},
		{DataPath(2), "DataSet/ResolutionLevel 2/TimePoint 0/Channel 0"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestTileFileName(t *testing.T) {
	tests := []struct {
		x, y, z, ch int
		want        string
	}{
		{0, 0, 0, 488, "tile_x_0000_y_0000_z_0000_ch_488.ims"},
		{12, 3, 0, 561, "tile_x_0012_y_0003_z_0000_ch_561.ims"},
		{10000, 0, 0, 0, "tile_x_10000_y_0000_z_0000_ch_0.ims"},
	}
	for _, tt := range tests {
		if got := TileFileName(tt.x, tt.y, tt.z, tt.ch); got != tt.want {
			t.Errorf("TileFileName(%d,%d,%d,%d) = %q, want %q", tt.x, tt.y, tt.z, tt.ch, got, tt.want)
		}
	}
}

func TestFormatting(t *testing.T) {
	if got := FormatColor([3]float64{1, 0, 0.25}); got != "1.0 0.0 0.2" {
		t.Errorf("FormatColor = %q", got)
	}
	if got := FormatRange([2]float64{0, 1000}); got != "0.0 1000.0" {
		t.Errorf("FormatRange = %q", got)
	}
}
