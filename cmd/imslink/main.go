// imslink stitches a grid of Imaris tile files into one composite .ims
// file of external links.
//
// Usage:
//
//	imslink [options]
//	imslink -config stitch.toml [options]
//
// Options:
//
//	-dir <path>       directory containing the tile files (default .)
//	-o <file>         output file name (default combined.ims)
//	-x <n>            number of tiles along x (default 1)
//	-y <n>            number of tiles along y (default 1)
//	-z <n>            number of tiles along z (default 1)
//	-ch <list>        comma-separated channel wavelengths (default 488)
//	-range <min,max>  display color range (default 0,1000)
//	-color <r,g,b>    base RGB display color, 0..1 (default 0,1,1)
//	-config <file>    TOML file carrying the same settings; explicit
//	                  flags take precedence
//	-v                verbose output
//	-h, --help        print this message
//	--version         print version information
//
// Config file keys: dir, output, x_tiles, y_tiles, z_tiles, channels,
// color, color_range.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mrjoshuak/go-imaris/ims"
)

const version = "0.1.0"

type options struct {
	ims.Options
	config  string
	verbose bool
	set     map[string]bool
}

// fileConfig mirrors the TOML schema.
type fileConfig struct {
	Dir        string    `toml:"dir"`
	Output     string    `toml:"output"`
	XTiles     int       `toml:"x_tiles"`
	YTiles     int       `toml:"y_tiles"`
	ZTiles     int       `toml:"z_tiles"`
	Channels   []int     `toml:"channels"`
	Color      []float64 `toml:"color"`
	ColorRange []float64 `toml:"color_range"`
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-h" || arg == "--help" {
			usageMessage(os.Stdout, true)
			os.Exit(0)
		}
		if arg == "--version" {
			fmt.Printf("imslink (go-imaris) %s\n", version)
			os.Exit(0)
		}
	}

	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "imslink: %v\n", err)
		usageMessage(os.Stderr, false)
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "imslink: %v\n", err)
		os.Exit(1)
	}
}

func parseArgs(args []string) (*options, error) {
	opts := &options{
		Options: ims.Options{
			Dir:        ".",
			Output:     "combined.ims",
			XTiles:     1,
			YTiles:     1,
			ZTiles:     1,
			Channels:   []int{488},
			Color:      [3]float64{0, 1, 1},
			ColorRange: [2]float64{0, 1000},
		},
		set: make(map[string]bool),
	}

	need := func(i int, name string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s requires an argument", name)
		}
		return args[i+1], nil
	}

	i := 0
	for i < len(args) {
		arg := args[i]
		switch arg {
		case "-dir", "-o", "-x", "-y", "-z", "-ch", "-range", "-color", "-config":
			val, err := need(i, arg)
			if err != nil {
				return nil, err
			}
			if err := opts.apply(arg, val); err != nil {
				return nil, err
			}
			opts.set[arg] = true
			i += 2
		case "-v":
			opts.verbose = true
			i++
		default:
			return nil, fmt.Errorf("unknown option: %s", arg)
		}
	}

	if opts.config != "" {
		if err := opts.mergeConfig(opts.config); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

func (o *options) apply(flag, val string) error {
	switch flag {
	case "-dir":
		o.Dir = val
	case "-o":
		o.Output = val
	case "-x", "-y", "-z":
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid tile count for %s: %s", flag, val)
		}
		switch flag {
		case "-x":
			o.XTiles = n
		case "-y":
			o.YTiles = n
		case "-z":
			o.ZTiles = n
		}
	case "-ch":
		chs, err := parseIntList(val)
		if err != nil || len(chs) == 0 {
			return fmt.Errorf("invalid channel list: %s", val)
		}
		o.Channels = chs
	case "-range":
		vals, err := parseFloatList(val)
		if err != nil || len(vals) != 2 {
			return fmt.Errorf("-range needs min,max: %s", val)
		}
		o.ColorRange = [2]float64{vals[0], vals[1]}
	case "-color":
		vals, err := parseFloatList(val)
		if err != nil || len(vals) != 3 {
			return fmt.Errorf("-color needs r,g,b: %s", val)
		}
		o.Color = [3]float64{vals[0], vals[1], vals[2]}
	case "-config":
		o.config = val
	}
	return nil
}

// mergeConfig fills in settings from a TOML file for every flag the
// command line did not set explicitly.
func (o *options) mergeConfig(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("config %s: %v", path, err)
	}

	if !o.set["-dir"] && fc.Dir != "" {
		o.Dir = fc.Dir
	}
	if !o.set["-o"] && fc.Output != "" {
		o.Output = fc.Output
	}
	if !o.set["-x"] && fc.XTiles != 0 {
		o.XTiles = fc.XTiles
	}
	if !o.set["-y"] && fc.YTiles != 0 {
		o.YTiles = fc.YTiles
	}
	if !o.set["-z"] && fc.ZTiles != 0 {
		o.ZTiles = fc.ZTiles
	}
	if !o.set["-ch"] && len(fc.Channels) > 0 {
		o.Channels = fc.Channels
	}
	if !o.set["-color"] && fc.Color != nil {
		if len(fc.Color) != 3 {
			return fmt.Errorf("config %s: color needs 3 values", path)
		}
		o.Color = [3]float64{fc.Color[0], fc.Color[1], fc.Color[2]}
	}
	if !o.set["-range"] && fc.ColorRange != nil {
		if len(fc.ColorRange) != 2 {
			return fmt.Errorf("config %s: color_range needs 2 values", path)
		}
		o.ColorRange = [2]float64{fc.ColorRange[0], fc.ColorRange[1]}
	}
	return nil
}

func run(opts *options) error {
	if opts.verbose {
		opts.Logf = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "imslink: "+format+"\n", args...)
		}
	}

	res, err := ims.Stitch(opts.Options)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s: %d tiles, %d resolution levels\n",
		res.Output, res.Tiles, res.ResolutionLevels)
	return nil
}

func parseIntList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func parseFloatList(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func usageMessage(w io.Writer, verbose bool) {
	fmt.Fprintf(w, "Usage: imslink [options]\n")
	fmt.Fprintf(w, "       imslink -config stitch.toml [options]\n\n")

	if verbose {
		fmt.Fprintln(w, "Options:")
		fmt.Fprintln(w, "  -dir <path>       directory containing the tile files (default .)")
		fmt.Fprintln(w, "  -o <file>         output file name (default combined.ims)")
		fmt.Fprintln(w, "  -x <n>            number of tiles along x (default 1)")
		fmt.Fprintln(w, "  -y <n>            number of tiles along y (default 1)")
		fmt.Fprintln(w, "  -z <n>            number of tiles along z (default 1)")
		fmt.Fprintln(w, "  -ch <list>        comma-separated channel wavelengths (default 488)")
		fmt.Fprintln(w, "  -range <min,max>  display color range (default 0,1000)")
		fmt.Fprintln(w, "  -color <r,g,b>    base RGB display color, 0..1 (default 0,1,1)")
		fmt.Fprintln(w, "  -config <file>    TOML settings file; explicit flags win")
		fmt.Fprintln(w, "  -v                verbose output")
		fmt.Fprintln(w, "  -h, --help        print this message")
		fmt.Fprintln(w, "  --version         print version information")
	}
}
