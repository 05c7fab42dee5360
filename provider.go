// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package surface

import (
	"image"

	"golang.org/x/exp/surface/pixfmt"
)

// Native surface flags. The bit values match the native library's.
const (
	SWSurface uint32 = 0
	PreAlloc  uint32 = 1 << 0 // Pixels were supplied by the caller.
	RLEAccel  uint32 = 1 << 1 // Pixels are run-length encoded outside Lock/Unlock.
	DontFree  uint32 = 1 << 2 // FreeSurface must ignore the surface.
)

// Native is a provider-owned pixel surface. Its fields play the role of the
// native library's surface struct. Apart from ClipRect, which
// Surface.SetClipRect sets, only providers change them.
type Native struct {
	Flags  uint32
	Format *pixfmt.Format
	W, H   int
	Pitch  int

	// Pixels holds at least Pitch*H bytes, row-major. When Flags has
	// RLEAccel set it is only valid between LockSurface and UnlockSurface.
	Pixels []byte

	// Locked counts outstanding LockSurface calls.
	Locked int

	// ClipRect bounds the destination area of blits and fills into this
	// surface.
	ClipRect image.Rectangle

	// Priv is reserved for the provider.
	Priv interface{}
}

// MustLock reports whether n's pixels may only be accessed between a
// LockSurface and UnlockSurface pair.
func (n *Native) MustLock() bool {
	return n.Flags&RLEAccel != 0
}

// Bounds returns image.Rect(0, 0, n.W, n.H).
func (n *Native) Bounds() image.Rectangle {
	return image.Rect(0, 0, n.W, n.H)
}

// Provider allocates, frees, locks and blits native surfaces.
//
// Providers are not required to be safe for concurrent use.
type Provider interface {
	// CreateRGBSurface allocates a zeroed surface whose ClipRect is its
	// bounds. Zero masks ask for the default layout of depth.
	CreateRGBSurface(width, height, depth int, m pixfmt.Masks) (*Native, error)

	// FreeSurface releases n. It does nothing if n carries DontFree.
	FreeSurface(n *Native)

	// LockSurface makes n's Pixels directly addressable.
	LockSurface(n *Native) error

	// UnlockSurface undoes one LockSurface.
	UnlockSurface(n *Native)

	// BlitSurface copies the sr part of src, or all of it if sr is nil, to
	// dst at dr.Min, or at the origin if dr is nil. The copy is clipped to
	// both surfaces and to dst.ClipRect. If dr is not nil it is updated to
	// the rectangle actually written.
	BlitSurface(src *Native, sr *image.Rectangle, dst *Native, dr *image.Rectangle) error
}

// Scaler is implemented by providers that can stretch blits.
type Scaler interface {
	// BlitScaled stretches the sr part of src, or all of it, onto dr of dst,
	// or all of dst. If dr is not nil it is updated to the rectangle actually
	// written.
	BlitScaled(src *Native, sr *image.Rectangle, dst *Native, dr *image.Rectangle) error
}

// RLESetter is implemented by providers that support run-length encoded
// surfaces.
type RLESetter interface {
	SetSurfaceRLE(n *Native, enabled bool) error
}

// Window is a display window whose framebuffer can be exposed as a surface.
//
// The framebuffer belongs to the window: it is freed when the window is
// destroyed or resized, never by the caller. A window's framebuffer must not
// be combined with accelerated rendering on the same window.
type Window interface {
	// FramebufferSurface returns the window's framebuffer surface, creating
	// it with a format suited to the window if necessary.
	FramebufferSurface() (*Native, error)

	// OwnsSurface reports whether n is the window's current framebuffer.
	// It is false once the window is destroyed or has replaced n.
	OwnsSurface(n *Native) bool

	// UpdateSurface copies the framebuffer, or the given parts of it, to
	// the screen.
	UpdateSurface(rects ...image.Rectangle) error
}
