// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Surfacedemo fills a small surface and blits it into a larger one, either
// an off-screen surface written out as a BMP file or a window's framebuffer.
//
// Usage:
//
//	surfacedemo [flags]
//
// Settings may also come from a TOML file named by -config; flags given on
// the command line take precedence:
//
//	driver = "soft"
//	out = "demo.bmp"
//	window = false
//	hold = "2s"
//
//	[source]
//	width = 100
//	height = 100
//	depth = 32
//
//	[destination]
//	width = 600
//	height = 480
//	x = 50
//	y = 50
package main

import (
	"fmt"
	"image"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/surface"
	"golang.org/x/exp/surface/driver"
	"golang.org/x/exp/surface/pixfmt"
	"golang.org/x/xerrors"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "surfacedemo: %v\n", err)
		os.Exit(2)
	}

	log, err := newLogger(cfg.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "surfacedemo: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("surfacedemo failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *Config, log *zap.Logger) error {
	p, err := driver.Open(&driver.Options{Driver: cfg.Driver, Logger: log})
	if err != nil {
		return err
	}
	defer p.Close()
	log.Info("opened driver", zap.String("driver", p.Name()))

	a := surface.NewAllocator(p, &surface.Options{Logger: log})

	src, err := a.NewRGB(image.Pt(cfg.Source.Width, cfg.Source.Height), cfg.Source.Depth, pixfmt.Masks{})
	if err != nil {
		return err
	}
	defer src.Release()
	err = src.WithPixels(func(pix []byte) error {
		for i := range pix {
			pix[i] = 0xff
		}
		return nil
	})
	if err != nil {
		return err
	}

	var dst *surface.Surface
	if cfg.Window {
		w, err := p.NewWindow(&driver.WindowOptions{
			Width:  cfg.Destination.Width,
			Height: cfg.Destination.Height,
			Title:  "surfacedemo",
		})
		if err != nil {
			return err
		}
		defer w.Destroy()
		dst, err = a.FromWindow(w)
		if err != nil {
			return err
		}
	} else {
		dst, err = a.NewRGB(image.Pt(cfg.Destination.Width, cfg.Destination.Height), cfg.Source.Depth, pixfmt.Masks{})
		if err != nil {
			return err
		}
	}
	defer dst.Release()

	dr := image.Rectangle{Min: image.Pt(cfg.Destination.X, cfg.Destination.Y)}
	if err := src.Blit(dst, nil, &dr); err != nil {
		return err
	}
	log.Info("blit", zap.Stringer("src", src.Bounds()), zap.Stringer("dst", dr))

	if cfg.Window {
		if err := dst.Update(); err != nil {
			return err
		}
		time.Sleep(cfg.Hold.Duration)
	}

	if cfg.Out != "" {
		f, err := os.Create(cfg.Out)
		if err != nil {
			return err
		}
		if err := dst.SaveBMP(f); err != nil {
			f.Close()
			return xerrors.Errorf("writing %s: %w", cfg.Out, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Info("wrote BMP", zap.String("path", cfg.Out))
	}
	return nil
}
