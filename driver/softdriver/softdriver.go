// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package softdriver provides a surface provider whose surfaces and windows
// live entirely in Go memory.
//
// It needs no display, which makes it the fallback driver and the provider
// used by tests. Windows keep their shown contents in an image that callers
// can inspect.
package softdriver

import (
	"image"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/surface"
	"golang.org/x/exp/surface/internal/blit"
	"golang.org/x/exp/surface/pixfmt"
	"golang.org/x/xerrors"
)

const (
	maxSide = 0x00007fff // 32,767 pixels.
	maxSize = 0x10000000 // 268,435,456 bytes.
)

var (
	errFreed  = xerrors.New("softdriver: surface was freed")
	errLocked = xerrors.New("softdriver: surfaces must not be locked during blit")
)

// Options are optional arguments to New.
type Options struct {
	// Logger receives double frees and other misuse. nil means no logging.
	Logger *zap.Logger
}

// Stats counts the provider's surface allocations.
type Stats struct {
	Allocated   int // surfaces created, including window framebuffers
	Freed       int // surfaces freed
	DoubleFrees int // FreeSurface calls on surfaces already freed
}

// Live returns the number of surfaces allocated but not freed.
func (s Stats) Live() int { return s.Allocated - s.Freed }

// Provider is a surface.Provider backed by Go memory. It also implements
// surface.Scaler and surface.RLESetter.
//
// A Provider is not safe for concurrent use, except for Stats.
type Provider struct {
	log *zap.Logger

	mu    sync.Mutex
	stats Stats
}

var (
	_ surface.Provider  = (*Provider)(nil)
	_ surface.Scaler    = (*Provider)(nil)
	_ surface.RLESetter = (*Provider)(nil)
)

// New returns a new Provider. opts may be nil.
func New(opts *Options) *Provider {
	p := &Provider{log: zap.NewNop()}
	if opts != nil && opts.Logger != nil {
		p.log = opts.Logger.Named("softdriver")
	}
	return p
}

// Stats returns the allocation counters.
func (p *Provider) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// surfaceData is the provider-private part of a Native.
type surfaceData struct {
	freed bool
	size  int    // decoded length of Pixels
	rle   []byte // encoded pixels while unlocked with RLEAccel set
}

func data(n *surface.Native) *surfaceData {
	d, _ := n.Priv.(*surfaceData)
	return d
}

// CreateRGBSurface implements surface.Provider.
func (p *Provider) CreateRGBSurface(width, height, depth int, m pixfmt.Masks) (*surface.Native, error) {
	w, h := int64(width), int64(height)
	if w < 0 || maxSide < w || h < 0 || maxSide < h || maxSize < 4*w*h {
		return nil, xerrors.Errorf("softdriver: invalid surface size %dx%d", width, height)
	}
	f, err := pixfmt.New(depth, m)
	if err != nil {
		return nil, xerrors.Errorf("softdriver: %w", err)
	}
	return p.alloc(width, height, f), nil
}

// CreateRGBSurfaceFrom returns a surface over caller-supplied pixels, laid
// out with the given pitch. The surface carries surface.PreAlloc: freeing it
// detaches pix but leaves the memory to the caller.
func (p *Provider) CreateRGBSurfaceFrom(pix []byte, width, height, depth, pitch int, m pixfmt.Masks) (*surface.Native, error) {
	f, err := pixfmt.New(depth, m)
	if err != nil {
		return nil, xerrors.Errorf("softdriver: %w", err)
	}
	if width < 0 || height < 0 || pitch < width*f.BytesPerPixel || len(pix) < pitch*height {
		return nil, xerrors.Errorf("softdriver: %d bytes cannot hold %dx%d pixels with pitch %d", len(pix), width, height, pitch)
	}
	n := p.newNative(width, height, f, pitch, pix[:pitch*height])
	n.Flags |= surface.PreAlloc
	return n, nil
}

func (p *Provider) alloc(width, height int, f *pixfmt.Format) *surface.Native {
	pitch := f.Pitch(width)
	return p.newNative(width, height, f, pitch, make([]byte, pitch*height))
}

func (p *Provider) newNative(width, height int, f *pixfmt.Format, pitch int, pix []byte) *surface.Native {
	p.mu.Lock()
	p.stats.Allocated++
	p.mu.Unlock()
	return &surface.Native{
		Flags:    surface.SWSurface,
		Format:   f,
		W:        width,
		H:        height,
		Pitch:    pitch,
		Pixels:   pix,
		ClipRect: image.Rect(0, 0, width, height),
		Priv:     &surfaceData{size: pitch * height},
	}
}

// FreeSurface implements surface.Provider.
func (p *Provider) FreeSurface(n *surface.Native) {
	if n == nil || n.Flags&surface.DontFree != 0 {
		return
	}
	p.free(n)
}

// DestroyFramebuffer frees a window framebuffer created with DontFree set.
// Window implementations call it when the window is destroyed or resized.
func (p *Provider) DestroyFramebuffer(n *surface.Native) {
	if n == nil {
		return
	}
	n.Flags &^= surface.DontFree
	p.free(n)
}

func (p *Provider) free(n *surface.Native) {
	d := data(n)
	if d == nil || d.freed {
		p.mu.Lock()
		p.stats.DoubleFrees++
		p.mu.Unlock()
		p.log.Error("free of surface that is already freed or foreign",
			zap.Int("width", n.W), zap.Int("height", n.H))
		return
	}
	d.freed = true
	d.rle = nil
	n.Pixels = nil
	p.mu.Lock()
	p.stats.Freed++
	p.mu.Unlock()
}

// LockSurface implements surface.Provider. Locking a run-length encoded
// surface decodes its pixels.
func (p *Provider) LockSurface(n *surface.Native) error {
	d := data(n)
	if d == nil || d.freed {
		return errFreed
	}
	if n.Locked == 0 && n.Flags&surface.RLEAccel != 0 {
		n.Pixels = decodeRLE(d.rle, d.size)
		d.rle = nil
	}
	n.Locked++
	return nil
}

// UnlockSurface implements surface.Provider. Unlocking the last lock of a
// run-length encoded surface re-encodes its pixels.
func (p *Provider) UnlockSurface(n *surface.Native) {
	d := data(n)
	if d == nil || d.freed || n.Locked == 0 {
		return
	}
	n.Locked--
	if n.Locked == 0 && n.Flags&surface.RLEAccel != 0 {
		d.rle = encodeRLE(n.Pixels)
		n.Pixels = nil
	}
}

// SetSurfaceRLE implements surface.RLESetter.
func (p *Provider) SetSurfaceRLE(n *surface.Native, enabled bool) error {
	d := data(n)
	if d == nil || d.freed {
		return errFreed
	}
	if n.Locked != 0 {
		return xerrors.New("softdriver: cannot change encoding of a locked surface")
	}
	switch on := n.Flags&surface.RLEAccel != 0; {
	case enabled && !on:
		d.rle = encodeRLE(n.Pixels)
		n.Pixels = nil
		n.Flags |= surface.RLEAccel
	case !enabled && on:
		n.Pixels = decodeRLE(d.rle, d.size)
		d.rle = nil
		n.Flags &^= surface.RLEAccel
	}
	return nil
}

// BlitSurface implements surface.Provider.
func (p *Provider) BlitSurface(src *surface.Native, sr *image.Rectangle, dst *surface.Native, dr *image.Rectangle) error {
	if err := p.checkBlit(src, dst); err != nil {
		return err
	}
	srect := src.Bounds()
	if sr != nil {
		srect = *sr
	}
	var dp image.Point
	if dr != nil {
		dp = dr.Min
	}
	srect, drect := blit.Clip(src.Bounds(), srect, dst.ClipRect, dp)
	if !drect.Empty() {
		p.withDecoded(src, dst, func(s, d *blit.Image) {
			blit.Copy(d, drect.Min, s, srect)
		})
	}
	if dr != nil {
		*dr = drect
	}
	return nil
}

// BlitScaled implements surface.Scaler.
func (p *Provider) BlitScaled(src *surface.Native, sr *image.Rectangle, dst *surface.Native, dr *image.Rectangle) error {
	if err := p.checkBlit(src, dst); err != nil {
		return err
	}
	srect := src.Bounds()
	if sr != nil {
		srect = *sr
	}
	drect := dst.Bounds()
	if dr != nil {
		drect = *dr
	}
	var written image.Rectangle
	p.withDecoded(src, dst, func(s, d *blit.Image) {
		written = blit.Scale(d, drect, dst.ClipRect, s, srect)
	})
	if dr != nil {
		*dr = written
	}
	return nil
}

func (p *Provider) checkBlit(src, dst *surface.Native) error {
	if d := data(src); d == nil || d.freed {
		return errFreed
	}
	if d := data(dst); d == nil || d.freed {
		return errFreed
	}
	if src.Locked != 0 || dst.Locked != 0 {
		return errLocked
	}
	return nil
}

// withDecoded calls f with views of src and dst, decoding run-length encoded
// surfaces for the duration of the call.
func (p *Provider) withDecoded(src, dst *surface.Native, f func(s, d *blit.Image)) {
	// checkBlit has ruled out freed surfaces, so locking cannot fail.
	p.LockSurface(src)
	defer p.UnlockSurface(src)
	if dst != src {
		p.LockSurface(dst)
		defer p.UnlockSurface(dst)
	}
	f(view(src), view(dst))
}

func view(n *surface.Native) *blit.Image {
	return &blit.Image{
		Pix:    n.Pixels,
		Pitch:  n.Pitch,
		Size:   image.Pt(n.W, n.H),
		Format: n.Format,
	}
}
