// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pixfmt describes packed-pixel formats: a bit depth plus the four
// red, green, blue and alpha channel masks that locate each channel inside a
// little-endian pixel value.
package pixfmt

import (
	"fmt"
	"image/color"
	"math/bits"

	"golang.org/x/xerrors"
)

// Masks holds the channel masks of a packed pixel. A zero Masks value asks
// for the default layout of a depth.
type Masks struct {
	R, G, B, A uint32
}

// IsZero reports whether no mask is set.
func (m Masks) IsZero() bool {
	return m == Masks{}
}

var (
	errDepth = xerrors.New("unsupported depth")
	errMasks = xerrors.New("invalid channel masks")
)

// Default returns the mask layout used for depth when the caller passes zero
// masks: RGB332, RGB555, RGB565, RGB24 or XRGB8888.
func Default(depth int) (Masks, error) {
	switch depth {
	case 8:
		return Masks{R: 0xe0, G: 0x1c, B: 0x03}, nil
	case 15:
		return Masks{R: 0x7c00, G: 0x03e0, B: 0x001f}, nil
	case 16:
		return Masks{R: 0xf800, G: 0x07e0, B: 0x001f}, nil
	case 24:
		return Masks{R: 0xff0000, G: 0x00ff00, B: 0x0000ff}, nil
	case 32:
		return Masks{R: 0x00ff0000, G: 0x0000ff00, B: 0x000000ff}, nil
	}
	return Masks{}, xerrors.Errorf("pixfmt: depth %d: %w", depth, errDepth)
}

// ARGB8888 is the 32-bit layout with an alpha channel in the top byte.
var ARGB8888 = Masks{R: 0x00ff0000, G: 0x0000ff00, B: 0x000000ff, A: 0xff000000}

// channel is one decoded mask.
type channel struct {
	mask  uint32
	shift uint
	width uint
}

func newChannel(mask uint32) channel {
	if mask == 0 {
		return channel{}
	}
	return channel{
		mask:  mask,
		shift: uint(bits.TrailingZeros32(mask)),
		width: uint(bits.OnesCount32(mask)),
	}
}

// contiguous reports whether the set bits of the mask form one run.
func (c channel) contiguous() bool {
	return c.mask == 0 || c.mask>>c.shift == 1<<c.width-1
}

func (c channel) get(v uint32) uint8 {
	if c.width == 0 {
		return 0
	}
	x := (v & c.mask) >> c.shift
	if c.width >= 8 {
		return uint8(x >> (c.width - 8))
	}
	return uint8(x * 0xff / (1<<c.width - 1))
}

func (c channel) put(x uint8) uint32 {
	if c.width == 0 {
		return 0
	}
	v := uint32(x)
	if c.width <= 8 {
		v >>= 8 - c.width
	} else {
		v <<= c.width - 8
	}
	return v << c.shift & c.mask
}

// Format is an immutable packed-pixel format.
type Format struct {
	BitsPerPixel  int
	BytesPerPixel int
	Masks         Masks

	r, g, b, a channel
}

// New returns the Format for depth and m. Zero masks select Default(depth).
func New(depth int, m Masks) (*Format, error) {
	var bpp int
	switch depth {
	case 8:
		bpp = 1
	case 15, 16:
		bpp = 2
	case 24:
		bpp = 3
	case 32:
		bpp = 4
	default:
		return nil, xerrors.Errorf("pixfmt: depth %d: %w", depth, errDepth)
	}
	if m.IsZero() {
		m, _ = Default(depth)
	}
	f := &Format{
		BitsPerPixel:  depth,
		BytesPerPixel: bpp,
		Masks:         m,
		r:             newChannel(m.R),
		g:             newChannel(m.G),
		b:             newChannel(m.B),
		a:             newChannel(m.A),
	}
	all := uint64(m.R) | uint64(m.G) | uint64(m.B) | uint64(m.A)
	if all>>uint(depth) != 0 {
		return nil, xerrors.Errorf("pixfmt: %#x exceeds %d bits: %w", all, depth, errMasks)
	}
	if m.R&m.G != 0 || m.R&m.B != 0 || m.R&m.A != 0 || m.G&m.B != 0 || m.G&m.A != 0 || m.B&m.A != 0 {
		return nil, xerrors.Errorf("pixfmt: overlapping masks: %w", errMasks)
	}
	for _, c := range [...]channel{f.r, f.g, f.b, f.a} {
		if !c.contiguous() {
			return nil, xerrors.Errorf("pixfmt: %#x is not contiguous: %w", c.mask, errMasks)
		}
	}
	return f, nil
}

// MustNew is like New but panics on error. It is intended for package-level
// format variables.
func MustNew(depth int, m Masks) *Format {
	f, err := New(depth, m)
	if err != nil {
		panic(err)
	}
	return f
}

// HasAlpha reports whether the format carries an alpha channel.
func (f *Format) HasAlpha() bool { return f.a.width != 0 }

// Equal reports whether f and g describe the same layout.
func (f *Format) Equal(g *Format) bool {
	if f == nil || g == nil {
		return f == g
	}
	return f.BitsPerPixel == g.BitsPerPixel && f.BytesPerPixel == g.BytesPerPixel && f.Masks == g.Masks
}

func (f *Format) String() string {
	return fmt.Sprintf("%dbpp R%#x G%#x B%#x A%#x",
		f.BitsPerPixel, f.Masks.R, f.Masks.G, f.Masks.B, f.Masks.A)
}

// Load reads the pixel value stored little-endian at the start of p.
func (f *Format) Load(p []byte) uint32 {
	switch f.BytesPerPixel {
	case 1:
		return uint32(p[0])
	case 2:
		return uint32(p[0]) | uint32(p[1])<<8
	case 3:
		return uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16
	}
	return uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24
}

// Store writes v little-endian to the start of p.
func (f *Format) Store(p []byte, v uint32) {
	switch f.BytesPerPixel {
	case 4:
		p[3] = uint8(v >> 24)
		fallthrough
	case 3:
		p[2] = uint8(v >> 16)
		fallthrough
	case 2:
		p[1] = uint8(v >> 8)
		fallthrough
	case 1:
		p[0] = uint8(v)
	}
}

// Map packs c into a pixel value. Formats without alpha drop it.
func (f *Format) Map(c color.NRGBA) uint32 {
	return f.r.put(c.R) | f.g.put(c.G) | f.b.put(c.B) | f.a.put(c.A)
}

// Unmap unpacks v. Formats without alpha report it as opaque.
func (f *Format) Unmap(v uint32) color.NRGBA {
	c := color.NRGBA{R: f.r.get(v), G: f.g.get(v), B: f.b.get(v), A: 0xff}
	if f.a.width != 0 {
		c.A = f.a.get(v)
	}
	return c
}

// Pitch returns the byte length of a row of width pixels, rounded up to a
// multiple of 4.
func (f *Format) Pitch(width int) int {
	return (width*f.BytesPerPixel + 3) &^ 3
}
