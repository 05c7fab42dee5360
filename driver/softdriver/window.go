// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package softdriver

import (
	"image"

	"go.uber.org/zap"
	"golang.org/x/exp/surface"
	"golang.org/x/exp/surface/internal/blit"
	"golang.org/x/exp/surface/pixfmt"
	"golang.org/x/xerrors"
)

var (
	errAccelerated = xerrors.New("softdriver: window is configured for accelerated rendering")
	errDestroyed   = xerrors.New("softdriver: window was destroyed")
	errNoSurface   = xerrors.New("softdriver: window has no framebuffer surface")
)

// framebufferFormat is the format of window framebuffers.
var framebufferFormat = pixfmt.MustNew(32, pixfmt.Masks{})

// WindowOptions are optional arguments to NewWindow.
type WindowOptions struct {
	// Width and Height give the window size. Zero means 640x480.
	Width, Height int

	Title string

	// Accelerated marks the window as used for accelerated rendering.
	// Such windows cannot provide a framebuffer surface.
	Accelerated bool
}

// Window is an off-screen window. It implements surface.Window.
type Window struct {
	p     *Provider
	log   *zap.Logger
	title string
	accel bool
	size  image.Point

	fb        *surface.Native
	screen    *image.NRGBA
	updates   int
	destroyed bool
}

var _ surface.Window = (*Window)(nil)

// NewWindow returns a new window. opts may be nil.
func (p *Provider) NewWindow(opts *WindowOptions) (*Window, error) {
	w := &Window{
		p:    p,
		size: image.Pt(640, 480),
	}
	if opts != nil {
		if opts.Width != 0 || opts.Height != 0 {
			w.size = image.Pt(opts.Width, opts.Height)
		}
		w.title = opts.Title
		w.accel = opts.Accelerated
	}
	if w.size.X <= 0 || w.size.Y <= 0 || w.size.X > maxSide || w.size.Y > maxSide {
		return nil, xerrors.Errorf("softdriver: invalid window size %v", w.size)
	}
	w.log = p.log.With(zap.String("window", w.title))
	w.screen = image.NewNRGBA(image.Rectangle{Max: w.size})
	return w, nil
}

// Title returns the window title.
func (w *Window) Title() string { return w.title }

// Size returns the window size.
func (w *Window) Size() image.Point { return w.size }

// FramebufferSurface implements surface.Window. The framebuffer is created
// on first use and after every Resize, and carries surface.DontFree.
func (w *Window) FramebufferSurface() (*surface.Native, error) {
	if w.destroyed {
		return nil, errDestroyed
	}
	if w.accel {
		return nil, errAccelerated
	}
	if w.fb == nil {
		w.fb = w.p.alloc(w.size.X, w.size.Y, framebufferFormat)
		w.fb.Flags |= surface.DontFree
		w.log.Debug("framebuffer created", zap.Stringer("size", w.size))
	}
	return w.fb, nil
}

// OwnsSurface implements surface.Window.
func (w *Window) OwnsSurface(n *surface.Native) bool {
	return !w.destroyed && n != nil && n == w.fb
}

// UpdateSurface implements surface.Window. It copies the framebuffer, or the
// given parts of it, to the window's screen image.
func (w *Window) UpdateSurface(rects ...image.Rectangle) error {
	if w.destroyed {
		return errDestroyed
	}
	if w.fb == nil {
		return errNoSurface
	}
	if len(rects) == 0 {
		rects = []image.Rectangle{w.fb.Bounds()}
	}
	if err := w.p.LockSurface(w.fb); err != nil {
		return err
	}
	defer w.p.UnlockSurface(w.fb)
	fb := view(w.fb)
	for _, r := range rects {
		r = r.Intersect(w.fb.Bounds())
		if r.Empty() {
			continue
		}
		src := blit.ToNRGBA(fb, r)
		blit.FromImage(&blit.Image{
			Pix:    w.screen.Pix,
			Pitch:  w.screen.Stride,
			Size:   w.size,
			Format: nrgbaFormat,
		}, r.Min, src)
	}
	w.updates++
	return nil
}

// nrgbaFormat describes image.NRGBA's byte order as a packed format.
var nrgbaFormat = pixfmt.MustNew(32, pixfmt.Masks{R: 0x000000ff, G: 0x0000ff00, B: 0x00ff0000, A: 0xff000000})

// Screen returns what the window currently shows.
func (w *Window) Screen() *image.NRGBA { return w.screen }

// Updates returns how many times UpdateSurface has succeeded.
func (w *Window) Updates() int { return w.updates }

// Resize changes the window size. The current framebuffer is freed; the
// next FramebufferSurface call creates one of the new size.
func (w *Window) Resize(size image.Point) error {
	if w.destroyed {
		return errDestroyed
	}
	if size.X <= 0 || size.Y <= 0 || size.X > maxSide || size.Y > maxSide {
		return xerrors.Errorf("softdriver: invalid window size %v", size)
	}
	w.freeFramebuffer()
	w.size = size
	w.screen = image.NewNRGBA(image.Rectangle{Max: size})
	return nil
}

// Destroy destroys the window and frees its framebuffer. Calling Destroy
// more than once has no effect.
func (w *Window) Destroy() {
	if w.destroyed {
		return
	}
	w.freeFramebuffer()
	w.destroyed = true
}

func (w *Window) freeFramebuffer() {
	if w.fb == nil {
		return
	}
	w.p.DestroyFramebuffer(w.fb)
	w.fb = nil
}
