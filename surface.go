// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package surface manages off-screen pixel surfaces owned by a display
// provider.
//
// A Surface wraps exactly one provider surface. It is created either by
// allocating fresh pixels:
//
//	a := surface.NewAllocator(softdriver.New(nil), nil)
//	s, err := a.NewRGB(image.Pt(100, 100), 32, pixfmt.Masks{})
//	if err != nil {
//		handleError(err)
//		return
//	}
//	defer s.Release()
//
// or by binding to a window's framebuffer with FromWindow. Pixels are only
// reachable inside WithPixels, which locks the surface first when the
// provider stores it in a form that is not directly addressable.
//
// Surfaces are not safe for concurrent use. Callers serialize access to each
// Surface.
package surface

import (
	"image"
	"image/color"
	"io"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/surface/internal/blit"
	"golang.org/x/exp/surface/pixfmt"
	"golang.org/x/image/bmp"
	"golang.org/x/xerrors"
)

// Ownership records who frees a Surface's pixels.
type Ownership int

const (
	// Owned surfaces free their pixels on Release.
	Owned Ownership = iota
	// Borrowed surfaces belong to a window, which frees their pixels.
	Borrowed
)

func (o Ownership) String() string {
	switch o {
	case Owned:
		return "owned"
	case Borrowed:
		return "borrowed"
	}
	return "unknown"
}

// Surface is a pixel surface. Its size, pitch and format never change after
// creation; only its pixel contents do.
type Surface struct {
	a   *Allocator
	n   *Native
	own Ownership
	win Window // set for Borrowed surfaces, for validity checks only

	mu       sync.Mutex
	released bool
}

func errNegativeSize(size image.Point) error {
	return xerrors.Errorf("negative size %v", size)
}

// Width returns the width in pixels.
func (s *Surface) Width() int { return s.n.W }

// Height returns the height in pixels.
func (s *Surface) Height() int { return s.n.H }

// Pitch returns the length in bytes of a row of pixels. It may exceed
// Width times the bytes per pixel.
func (s *Surface) Pitch() int { return s.n.Pitch }

// Size returns image.Pt(s.Width(), s.Height()).
func (s *Surface) Size() image.Point { return image.Pt(s.n.W, s.n.H) }

// Bounds returns image.Rectangle{Max: s.Size()}.
func (s *Surface) Bounds() image.Rectangle { return s.n.Bounds() }

// Format returns the pixel format.
func (s *Surface) Format() *pixfmt.Format { return s.n.Format }

// MustLock reports whether the pixels are only addressable inside a lock.
// WithPixels takes care of locking either way.
func (s *Surface) MustLock() bool { return s.n.MustLock() }

// Locked reports whether a lock is outstanding.
func (s *Surface) Locked() bool { return s.n.Locked > 0 }

// Ownership reports whether s owns its pixels.
func (s *Surface) Ownership() Ownership { return s.own }

// ClipRect returns the rectangle that blits and fills into s are clipped to.
func (s *Surface) ClipRect() image.Rectangle { return s.n.ClipRect }

// Native returns the provider surface wrapped by s. It stays owned by s.
func (s *Surface) Native() *Native { return s.n }

// check reports whether s may still be used.
func (s *Surface) check() error {
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released {
		return ErrReleased
	}
	if s.own == Borrowed && !s.win.OwnsSurface(s.n) {
		return ErrWindowGone
	}
	return nil
}

// WithPixels calls f with the surface's pixel memory: Pitch*Height bytes,
// row-major, row y starting at offset y*Pitch, in the layout given by
// Format. If MustLock reports true the surface is locked before f runs and
// unlocked after it returns, whether f fails, succeeds or panics.
//
// f must not keep pix after it returns. f must not call into unrelated
// operating system or library facilities, since the provider may hold a
// system-wide lock while the surface is locked.
//
// If locking fails, f is not called and the error matches ErrLock.
// Otherwise WithPixels returns f's error.
func (s *Surface) WithPixels(f func(pix []byte) error) error {
	if err := s.check(); err != nil {
		return err
	}
	n := s.n
	if n.MustLock() {
		if err := s.a.p.LockSurface(n); err != nil {
			s.a.m.lockFailed()
			s.a.log.Debug("lock surface", zap.Error(err))
			return &Error{Kind: ErrLock, Err: err}
		}
		defer s.a.p.UnlockSurface(n)
	}
	return f(n.Pixels[:n.Pitch*n.H])
}

// Pixels is like WithPixels but also returns f's result.
func Pixels[T any](s *Surface, f func(pix []byte) (T, error)) (T, error) {
	var v T
	err := s.WithPixels(func(pix []byte) (err error) {
		v, err = f(pix)
		return err
	})
	return v, err
}

// Blit copies the sr part of s, or all of s if sr is nil, to dst so that
// sr.Min lands on dr.Min, or on the origin if dr is nil. Only dr.Min is
// used; the copy is clipped to both surfaces and to dst's ClipRect, and if
// dr is not nil it is set to the rectangle actually written. Format
// conversion is left to the provider. s is not modified.
//
// Blit returns nil on success; provider failures match ErrBlit.
func (s *Surface) Blit(dst *Surface, sr, dr *image.Rectangle) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := dst.check(); err != nil {
		return err
	}
	if err := s.a.p.BlitSurface(s.n, sr, dst.n, dr); err != nil {
		s.a.m.blitFailed()
		s.a.log.Debug("blit", zap.Error(err))
		return &Error{Kind: ErrBlit, Err: err}
	}
	return nil
}

// BlitScaled is like Blit but stretches the sr part of s over all of dr, or
// over all of dst if dr is nil. It returns ErrUnsupported if the provider
// does not implement Scaler.
func (s *Surface) BlitScaled(dst *Surface, sr, dr *image.Rectangle) error {
	sc, ok := s.a.p.(Scaler)
	if !ok {
		return ErrUnsupported
	}
	if err := s.check(); err != nil {
		return err
	}
	if err := dst.check(); err != nil {
		return err
	}
	if err := sc.BlitScaled(s.n, sr, dst.n, dr); err != nil {
		s.a.m.blitFailed()
		s.a.log.Debug("scaled blit", zap.Error(err))
		return &Error{Kind: ErrBlit, Err: err}
	}
	return nil
}

// SetClipRect restricts blits and fills into s to r, or lifts the
// restriction if r is nil. It reports whether the resulting clip rectangle
// is non-empty. It reports false without changing anything if s was released
// or its window no longer owns it.
func (s *Surface) SetClipRect(r *image.Rectangle) bool {
	if s.check() != nil {
		return false
	}
	if r == nil {
		s.n.ClipRect = s.n.Bounds()
		return true
	}
	s.n.ClipRect = r.Intersect(s.n.Bounds())
	return !s.n.ClipRect.Empty()
}

// FillRect sets the r part of s, or all of s if r is nil, to c. The fill is
// clipped to s's ClipRect.
func (s *Surface) FillRect(r *image.Rectangle, c color.Color) error {
	dr := s.n.Bounds()
	if r != nil {
		dr = *r
	}
	dr = dr.Intersect(s.n.ClipRect)
	v := s.n.Format.Map(color.NRGBAModel.Convert(c).(color.NRGBA))
	return s.WithPixels(func(pix []byte) error {
		blit.Fill(s.image(pix), dr, v)
		return nil
	})
}

// SetRLE enables or disables run-length encoding of s. While enabled,
// MustLock reports true. It returns ErrUnsupported if the provider does not
// implement RLESetter.
func (s *Surface) SetRLE(enabled bool) error {
	rs, ok := s.a.p.(RLESetter)
	if !ok {
		return ErrUnsupported
	}
	if err := s.check(); err != nil {
		return err
	}
	return rs.SetSurfaceRLE(s.n, enabled)
}

// Update asks the window owning a Borrowed surface to show the framebuffer,
// or the given parts of it. It returns ErrUnsupported for Owned surfaces.
func (s *Surface) Update(rects ...image.Rectangle) error {
	if s.own != Borrowed {
		return ErrUnsupported
	}
	if err := s.check(); err != nil {
		return err
	}
	return s.win.UpdateSurface(rects...)
}

// Image returns a copy of s's pixels.
func (s *Surface) Image() (*image.NRGBA, error) {
	return Pixels(s, func(pix []byte) (*image.NRGBA, error) {
		return blit.ToNRGBA(s.image(pix), s.n.Bounds()), nil
	})
}

// SaveBMP writes s to w in BMP format.
func (s *Surface) SaveBMP(w io.Writer) error {
	img, err := s.Image()
	if err != nil {
		return err
	}
	return bmp.Encode(w, img)
}

func (s *Surface) image(pix []byte) *blit.Image {
	return &blit.Image{
		Pix:    pix,
		Pitch:  s.n.Pitch,
		Size:   s.Size(),
		Format: s.n.Format,
	}
}

// Release releases an Owned surface's pixels. It never frees a Borrowed
// surface's pixels, which belong to the window. Release may be called more
// than once; the behavior of s after Release is undefined.
func (s *Surface) Release() {
	if s.release() {
		s.cleanUp()
	}
}

// release returns whether the caller should clean up.
func (s *Surface) release() (ret bool) {
	s.mu.Lock()
	ret, s.released = !s.released, true
	s.mu.Unlock()
	return ret
}

func (s *Surface) cleanUp() {
	runtime.SetFinalizer(s, nil)
	if s.own == Owned {
		s.a.p.FreeSurface(s.n)
	}
	s.a.m.released(s.own)
}

// finalize runs on the runtime's finalizer goroutine, so it must not call
// the provider. The Native is queued for the allocator to free instead.
func (s *Surface) finalize() {
	if s.release() {
		s.a.log.Warn("surface garbage collected without Release", zap.Stringer("size", s.Size()))
		s.a.queueLeak(s.n)
	}
}
