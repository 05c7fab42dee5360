// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package surface

import (
	"image"
	"io"
	"runtime"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/exp/surface/internal/blit"
	"golang.org/x/exp/surface/pixfmt"
	"golang.org/x/image/bmp"
	"golang.org/x/xerrors"
)

// DefaultDepth is the bit depth used when NewRGB is given a zero depth.
const DefaultDepth = 32

// Options are optional arguments to NewAllocator.
type Options struct {
	// Logger receives failures and leak reports. nil means no logging.
	Logger *zap.Logger

	// MeterProvider records surface counts. nil means the global
	// MeterProvider.
	MeterProvider metric.MeterProvider
}

// Allocator creates Surfaces backed by a Provider.
//
// Owned surfaces that become unreachable without Release are reported by
// the garbage collector; the allocator frees their pixels on its own
// goroutine, the next time NewRGB, FromWindow or Collect is called.
type Allocator struct {
	p   Provider
	log *zap.Logger
	m   *metrics

	mu     sync.Mutex
	leaked []*Native
}

// NewAllocator returns an Allocator for p. opts may be nil.
func NewAllocator(p Provider, opts *Options) *Allocator {
	a := &Allocator{p: p, log: zap.NewNop()}
	mp := otel.GetMeterProvider()
	if opts != nil {
		if opts.Logger != nil {
			a.log = opts.Logger.Named("surface")
		}
		if opts.MeterProvider != nil {
			mp = opts.MeterProvider
		}
	}
	m, err := newMetrics(mp)
	if err != nil {
		a.log.Warn("creating instruments", zap.Error(err))
	}
	a.m = m
	return a
}

// Provider returns the provider backing a's surfaces.
func (a *Allocator) Provider() Provider { return a.p }

// Collect frees the pixels of Owned surfaces that were garbage collected
// without Release and returns how many it freed.
func (a *Allocator) Collect() int {
	a.mu.Lock()
	leaked := a.leaked
	a.leaked = nil
	a.mu.Unlock()

	for _, n := range leaked {
		a.p.FreeSurface(n)
		a.m.released(Owned)
	}
	return len(leaked)
}

func (a *Allocator) queueLeak(n *Native) {
	a.mu.Lock()
	a.leaked = append(a.leaked, n)
	a.mu.Unlock()
}

// NewRGB returns a new zeroed surface of the given size, bit depth and
// channel masks. A zero depth means DefaultDepth and zero masks ask the
// provider for the default layout of the depth.
//
// The returned surface owns its pixels; call Release when done with it.
func (a *Allocator) NewRGB(size image.Point, depth int, m pixfmt.Masks) (*Surface, error) {
	a.Collect()
	if depth == 0 {
		depth = DefaultDepth
	}
	if size.X < 0 || size.Y < 0 {
		return nil, &Error{Kind: ErrAllocation, Err: errNegativeSize(size)}
	}
	n, err := a.p.CreateRGBSurface(size.X, size.Y, depth, m)
	if err != nil {
		a.log.Debug("create surface", zap.Stringer("size", size), zap.Int("depth", depth), zap.Error(err))
		return nil, &Error{Kind: ErrAllocation, Err: err}
	}
	if n == nil {
		return nil, &Error{Kind: ErrAllocation}
	}
	s := &Surface{a: a, n: n, own: Owned}
	runtime.SetFinalizer(s, (*Surface).finalize)
	a.m.created(Owned)
	return s, nil
}

// FromWindow returns a surface for w's framebuffer, creating the framebuffer
// if necessary.
//
// The surface is Borrowed: its pixels belong to w and are freed when w is
// destroyed or resized. Releasing the surface never frees them, and once w
// no longer owns them the surface reports ErrWindowGone. The surface must not
// be combined with accelerated rendering on the same window.
func (a *Allocator) FromWindow(w Window) (*Surface, error) {
	a.Collect()
	n, err := w.FramebufferSurface()
	if err != nil {
		a.log.Debug("window surface", zap.Error(err))
		return nil, &Error{Kind: ErrWindowSurfaceUnavailable, Err: err}
	}
	if n == nil {
		return nil, &Error{Kind: ErrWindowSurfaceUnavailable}
	}
	a.m.created(Borrowed)
	return &Surface{a: a, n: n, own: Borrowed, win: w}, nil
}

// LoadBMP decodes a BMP image into a new 32-bit ARGB surface.
func (a *Allocator) LoadBMP(r io.Reader) (*Surface, error) {
	img, err := bmp.Decode(r)
	if err != nil {
		return nil, xerrors.Errorf("surface: decoding BMP: %w", err)
	}
	s, err := a.NewRGB(img.Bounds().Size(), 32, pixfmt.ARGB8888)
	if err != nil {
		return nil, err
	}
	err = s.WithPixels(func(pix []byte) error {
		blit.FromImage(s.image(pix), image.Point{}, img)
		return nil
	})
	if err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}
