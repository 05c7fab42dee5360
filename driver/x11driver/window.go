// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package x11driver

import (
	"image"
	"sync"

	"github.com/jezek/xgb/shm"
	"github.com/jezek/xgb/xproto"
	"go.uber.org/zap"
	"golang.org/x/exp/surface"
	"golang.org/x/xerrors"
)

const (
	xPutImageReqSizeMax   = (1 << 16) * 4
	xPutImageReqSizeFixed = 28
	xPutImageReqDataSize  = xPutImageReqSizeMax - xPutImageReqSizeFixed
)

const (
	maxShmSide = 0x00007fff // 32,767 pixels.
	maxShmSize = 0x10000000 // 268,435,456 bytes.
)

var errDestroyed = xerrors.New("x11driver: window was destroyed")

// WindowOptions are optional arguments to NewWindow.
type WindowOptions struct {
	// Width and Height give the window size. Zero means 1024x768.
	Width, Height int

	Title string
}

// Window is an X11 window. It implements surface.Window.
type Window struct {
	p  *Provider
	xw xproto.Window
	xg xproto.Gcontext

	mu        sync.Mutex
	size      image.Point
	fb        *surface.Native
	xs        shm.Seg
	shmBuf    []byte // non-nil while fb lives in shared memory
	destroyed bool
}

var _ surface.Window = (*Window)(nil)

// NewWindow creates and maps a window. opts may be nil.
func (p *Provider) NewWindow(opts *WindowOptions) (*Window, error) {
	width, height := 1024, 768
	var title string
	if opts != nil {
		if opts.Width != 0 || opts.Height != 0 {
			width, height = opts.Width, opts.Height
		}
		title = opts.Title
	}
	if width <= 0 || maxShmSide < width || height <= 0 || maxShmSide < height {
		return nil, xerrors.Errorf("x11driver: invalid window size %dx%d", width, height)
	}

	xw, err := xproto.NewWindowId(p.xc)
	if err != nil {
		return nil, xerrors.Errorf("x11driver: xproto.NewWindowId failed: %w", err)
	}
	xg, err := xproto.NewGcontextId(p.xc)
	if err != nil {
		return nil, xerrors.Errorf("x11driver: xproto.NewGcontextId failed: %w", err)
	}

	w := &Window{
		p:    p,
		xw:   xw,
		xg:   xg,
		size: image.Pt(width, height),
	}

	p.mu.Lock()
	p.windows[xw] = w
	p.mu.Unlock()

	xproto.CreateWindow(p.xc, p.xsi.RootDepth, xw, p.xsi.Root,
		0, 0, uint16(width), uint16(height), 0,
		xproto.WindowClassInputOutput, p.xsi.RootVisual,
		xproto.CwEventMask,
		[]uint32{0 |
			xproto.EventMaskExposure |
			xproto.EventMaskStructureNotify,
		},
	)
	if title != "" {
		xproto.ChangeProperty(p.xc, xproto.PropModeReplace, xw,
			xproto.AtomWmName, xproto.AtomString, 8, uint32(len(title)), []byte(title))
	}
	xproto.CreateGC(p.xc, xg, xproto.Drawable(xw), 0, nil)
	xproto.MapWindow(p.xc, xw)
	return w, nil
}

// Size returns the window size.
func (w *Window) Size() image.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// FramebufferSurface implements surface.Window. The framebuffer uses the
// root visual's channel layout, so it can be sent to the server unconverted.
func (w *Window) FramebufferSurface() (*surface.Native, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return nil, errDestroyed
	}
	if w.fb != nil {
		return w.fb, nil
	}

	bufLen := 4 * w.size.X * w.size.Y
	var buf []byte
	if w.p.useSHM && bufLen <= maxShmSize {
		if err := w.attachSHM(bufLen); err != nil {
			w.p.log.Warn("shared memory framebuffer", zap.Error(err))
		} else {
			buf = w.shmBuf
		}
	}
	if buf == nil {
		buf = make([]byte, bufLen)
	}

	fb, err := w.p.CreateRGBSurfaceFrom(buf, w.size.X, w.size.Y, 32, 4*w.size.X, w.p.masks)
	if err != nil {
		w.detachSHM()
		return nil, err
	}
	fb.Flags |= surface.DontFree
	w.fb = fb
	return fb, nil
}

func (w *Window) attachSHM(bufLen int) (retErr error) {
	xs, err := shm.NewSegId(w.p.xc)
	if err != nil {
		return xerrors.Errorf("x11driver: shm.NewSegId: %w", err)
	}
	shmid, buf, err := shmOpen(bufLen)
	if err != nil {
		return xerrors.Errorf("x11driver: shmOpen: %w", err)
	}
	defer func() {
		if retErr != nil {
			shmClose(buf)
		}
	}()

	// readOnly is whether the shared memory is read-only from the X11 server's
	// point of view.
	const readOnly = true
	if err := shm.AttachChecked(w.p.xc, xs, uint32(shmid), readOnly).Check(); err != nil {
		return xerrors.Errorf("x11driver: shm.Attach: %w", err)
	}
	w.xs, w.shmBuf = xs, buf
	return nil
}

func (w *Window) detachSHM() {
	if w.shmBuf == nil {
		return
	}
	shm.Detach(w.p.xc, w.xs)
	if err := shmClose(w.shmBuf); err != nil {
		w.p.log.Error("shmClose", zap.Error(err))
	}
	w.shmBuf = nil
}

// OwnsSurface implements surface.Window.
func (w *Window) OwnsSurface(n *surface.Native) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.destroyed && n != nil && n == w.fb
}

// UpdateSurface implements surface.Window.
func (w *Window) UpdateSurface(rects ...image.Rectangle) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return errDestroyed
	}
	if w.fb == nil {
		return xerrors.New("x11driver: window has no framebuffer surface")
	}
	if len(rects) == 0 {
		rects = []image.Rectangle{w.fb.Bounds()}
	}
	for _, r := range rects {
		r = r.Intersect(w.fb.Bounds())
		if r.Empty() {
			continue
		}
		var err error
		if w.shmBuf != nil {
			err = w.shmPutImage(r)
		} else {
			err = w.putImage(r)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *Window) shmPutImage(r image.Rectangle) error {
	err := shm.PutImageChecked(
		w.p.xc, xproto.Drawable(w.xw), w.xg,
		uint16(w.fb.W), uint16(w.fb.H), // TotalWidth, TotalHeight,
		uint16(r.Min.X), uint16(r.Min.Y), // SrcX, SrcY,
		uint16(r.Dx()), uint16(r.Dy()), // SrcWidth, SrcHeight,
		int16(r.Min.X), int16(r.Min.Y), // DstX, DstY,
		w.p.xsi.RootDepth, xproto.ImageFormatZPixmap,
		0, w.xs, 0, // 0 means no completion event, 0 means a zero offset.
	).Check()
	if err != nil {
		return xerrors.Errorf("x11driver: shm.PutImage: %w", err)
	}
	return nil
}

// putImage sends the full-width rows spanning r in as many PutImage
// requests as the request size limit needs.
func (w *Window) putImage(r image.Rectangle) error {
	for _, b := range rowBatches(w.fb.W, r.Min.Y, r.Max.Y) {
		data := w.fb.Pixels[b.Min.Y*w.fb.Pitch : b.Max.Y*w.fb.Pitch]
		err := xproto.PutImageChecked(
			w.p.xc, xproto.ImageFormatZPixmap, xproto.Drawable(w.xw), w.xg,
			uint16(w.fb.W), uint16(b.Dy()),
			0, int16(b.Min.Y),
			0, w.p.xsi.RootDepth, data).Check()
		if err != nil {
			return xerrors.Errorf("x11driver: xproto.PutImage: %w", err)
		}
	}
	return nil
}

// rowBatches splits rows [y0, y1) of a 32-bit image of the given width into
// rectangles small enough for one PutImage request each.
func rowBatches(width, y0, y1 int) []image.Rectangle {
	rowsPerReq := xPutImageReqDataSize / (width * 4)
	if rowsPerReq < 1 {
		rowsPerReq = 1
	}
	var out []image.Rectangle
	for y := y0; y < y1; y += rowsPerReq {
		end := y + rowsPerReq
		if end > y1 {
			end = y1
		}
		out = append(out, image.Rect(0, y, width, end))
	}
	return out
}

// Resize resizes the window. The current framebuffer is freed; the next
// FramebufferSurface call creates one of the new size.
func (w *Window) Resize(size image.Point) error {
	if size.X <= 0 || maxShmSide < size.X || size.Y <= 0 || maxShmSide < size.Y {
		return xerrors.Errorf("x11driver: invalid window size %v", size)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return errDestroyed
	}
	xproto.ConfigureWindow(w.p.xc, w.xw,
		xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
		[]uint32{uint32(size.X), uint32(size.Y)})
	w.freeFramebuffer()
	w.size = size
	return nil
}

// Destroy destroys the window and frees its framebuffer. Calling Destroy
// more than once has no effect.
func (w *Window) Destroy() {
	w.mu.Lock()
	destroyed := w.destroyed
	w.destroyed = true
	if !destroyed {
		w.freeFramebuffer()
	}
	w.mu.Unlock()

	if destroyed {
		return
	}
	xproto.FreeGC(w.p.xc, w.xg)
	xproto.DestroyWindow(w.p.xc, w.xw)

	w.p.mu.Lock()
	delete(w.p.windows, w.xw)
	w.p.mu.Unlock()
}

func (w *Window) freeFramebuffer() {
	if w.fb == nil {
		return
	}
	w.p.DestroyFramebuffer(w.fb)
	w.fb = nil
	w.detachSHM()
}
