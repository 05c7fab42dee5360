// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/xerrors"
)

// Config holds the demo settings.
type Config struct {
	Driver  string   `toml:"driver"`
	Out     string   `toml:"out"`
	Window  bool     `toml:"window"`
	Hold    Duration `toml:"hold"`
	Verbose bool     `toml:"verbose"`

	Source      SourceConfig      `toml:"source"`
	Destination DestinationConfig `toml:"destination"`
}

type SourceConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
	Depth  int `toml:"depth"`
}

type DestinationConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
	X      int `toml:"x"`
	Y      int `toml:"y"`
}

// Duration is a time.Duration written as a string such as "1.5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func defaultConfig() *Config {
	return &Config{
		Out:  "surfacedemo.bmp",
		Hold: Duration{2 * time.Second},
		Source: SourceConfig{
			Width:  100,
			Height: 100,
			Depth:  32,
		},
		Destination: DestinationConfig{
			Width:  600,
			Height: 480,
			X:      50,
			Y:      50,
		},
	}
}

// loadConfig builds the configuration from defaults, then the -config file,
// then the remaining flags.
func loadConfig(args []string) (*Config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("surfacedemo", flag.ContinueOnError)
	path := fs.String("config", "", "TOML configuration `file`")
	fs.StringVar(&cfg.Driver, "driver", cfg.Driver, "driver to use: x11 or soft (default: pick one)")
	fs.StringVar(&cfg.Out, "out", cfg.Out, "write the destination surface to this BMP `file`; empty to skip")
	fs.BoolVar(&cfg.Window, "window", cfg.Window, "blit into a window framebuffer instead of an off-screen surface")
	fs.DurationVar(&cfg.Hold.Duration, "hold", cfg.Hold.Duration, "how long to keep the window shown")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "verbose logging")
	fs.IntVar(&cfg.Source.Depth, "depth", cfg.Source.Depth, "bits per pixel")
	fs.IntVar(&cfg.Destination.X, "x", cfg.Destination.X, "destination x offset")
	fs.IntVar(&cfg.Destination.Y, "y", cfg.Destination.Y, "destination y offset")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *path != "" {
		b, err := os.ReadFile(*path)
		if err != nil {
			return nil, err
		}
		fileCfg := defaultConfig()
		if err := toml.Unmarshal(b, fileCfg); err != nil {
			return nil, xerrors.Errorf("parsing %s: %w", *path, err)
		}
		// Flags set on the command line win over the file.
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		merge(fileCfg, cfg, set)
		cfg = fileCfg
	}
	if fs.NArg() != 0 {
		return nil, xerrors.Errorf("unexpected arguments %q", fs.Args())
	}
	return cfg, nil
}

// merge copies the fields behind the named flags from src to dst.
func merge(dst, src *Config, set map[string]bool) {
	if set["driver"] {
		dst.Driver = src.Driver
	}
	if set["out"] {
		dst.Out = src.Out
	}
	if set["window"] {
		dst.Window = src.Window
	}
	if set["hold"] {
		dst.Hold = src.Hold
	}
	if set["v"] {
		dst.Verbose = src.Verbose
	}
	if set["depth"] {
		dst.Source.Depth = src.Source.Depth
	}
	if set["x"] {
		dst.Destination.X = src.Destination.X
	}
	if set["y"] {
		dst.Destination.Y = src.Destination.Y
	}
}
