// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package blit implements pixel copies, fills and conversions between
// packed-pixel buffers in Go memory.
package blit

import (
	"image"
	"image/color"

	"golang.org/x/exp/surface/pixfmt"
	xdraw "golang.org/x/image/draw"
)

// Image is a view of a packed-pixel buffer. Its top-left pixel is always
// (0, 0).
type Image struct {
	Pix    []byte
	Pitch  int
	Size   image.Point
	Format *pixfmt.Format
}

// Bounds returns image.Rectangle{Max: m.Size}.
func (m *Image) Bounds() image.Rectangle {
	return image.Rectangle{Max: m.Size}
}

func (m *Image) offset(x, y int) int {
	return y*m.Pitch + x*m.Format.BytesPerPixel
}

// Clip clips a copy of the sr part of a src-sized image, placed at dp, to the
// src bounds and to the destination clip rectangle. It returns the clipped
// source rectangle and the destination rectangle it lands on. Both are empty
// when nothing would be copied.
func Clip(src image.Rectangle, sr image.Rectangle, clip image.Rectangle, dp image.Point) (image.Rectangle, image.Rectangle) {
	originalSRMin := sr.Min
	sr = sr.Intersect(src)
	if sr.Empty() {
		return image.Rectangle{}, image.Rectangle{}
	}
	dp = dp.Add(sr.Min.Sub(originalSRMin))
	dr := image.Rectangle{Min: dp, Max: dp.Add(sr.Size())}
	clipped := dr.Intersect(clip)
	if clipped.Empty() {
		return image.Rectangle{}, image.Rectangle{}
	}
	sr.Min = sr.Min.Add(clipped.Min.Sub(dr.Min))
	sr.Max = sr.Min.Add(clipped.Size())
	return sr, clipped
}

// Copy copies the sr part of src to dst so that sr.Min lands on dp. The
// rectangles must already be clipped. Pixels are converted when the formats
// differ; alpha is copied, not blended.
func Copy(dst *Image, dp image.Point, src *Image, sr image.Rectangle) {
	if sr.Empty() {
		return
	}
	w, h := sr.Dx(), sr.Dy()
	if dst.Format.Equal(src.Format) {
		n := w * src.Format.BytesPerPixel
		rows := make([]int, h)
		for y := range rows {
			rows[y] = y
		}
		// Copying within one buffer downwards must start from the bottom.
		if sameBuffer(dst, src) && dp.Y > sr.Min.Y {
			for i, j := 0, h-1; i < j; i, j = i+1, j-1 {
				rows[i], rows[j] = rows[j], rows[i]
			}
		}
		for _, y := range rows {
			d := dst.offset(dp.X, dp.Y+y)
			s := src.offset(sr.Min.X, sr.Min.Y+y)
			copy(dst.Pix[d:d+n], src.Pix[s:s+n])
		}
		return
	}

	if swapsRB(dst.Format, src.Format) {
		n := w * 4
		for y := 0; y < h; y++ {
			d := dst.offset(dp.X, dp.Y+y)
			s := src.offset(sr.Min.X, sr.Min.Y+y)
			row := dst.Pix[d : d+n]
			copy(row, src.Pix[s:s+n])
			BGRA(row)
		}
		return
	}

	sbpp, dbpp := src.Format.BytesPerPixel, dst.Format.BytesPerPixel
	for y := 0; y < h; y++ {
		s := src.offset(sr.Min.X, sr.Min.Y+y)
		d := dst.offset(dp.X, dp.Y+y)
		for x := 0; x < w; x++ {
			c := src.Format.Unmap(src.Format.Load(src.Pix[s:]))
			dst.Format.Store(dst.Pix[d:], dst.Format.Map(c))
			s += sbpp
			d += dbpp
		}
	}
}

// swapsRB reports whether a and b are 32-bit formats that differ only by
// the bytes holding red and blue.
func swapsRB(a, b *pixfmt.Format) bool {
	if a.BitsPerPixel != 32 || b.BitsPerPixel != 32 {
		return false
	}
	am, bm := a.Masks, b.Masks
	if am.G != bm.G || am.A != bm.A || am.R != bm.B || am.B != bm.R {
		return false
	}
	return am.R == 0x00ff0000 && am.B == 0x000000ff || am.R == 0x000000ff && am.B == 0x00ff0000
}

func sameBuffer(a, b *Image) bool {
	return len(a.Pix) != 0 && len(b.Pix) != 0 && &a.Pix[0] == &b.Pix[0]
}

// Fill sets every pixel of r, which must lie within dst, to the packed value v.
func Fill(dst *Image, r image.Rectangle, v uint32) {
	if r.Empty() {
		return
	}
	bpp := dst.Format.BytesPerPixel
	first := dst.offset(r.Min.X, r.Min.Y)
	row := dst.Pix[first : first+r.Dx()*bpp]
	for i := 0; i < len(row); i += bpp {
		dst.Format.Store(row[i:], v)
	}
	for y := r.Min.Y + 1; y < r.Max.Y; y++ {
		d := dst.offset(r.Min.X, y)
		copy(dst.Pix[d:d+len(row)], row)
	}
}

// Scale stretches the sr part of src onto dr of dst using nearest-neighbour
// sampling. dr is clipped to clip; sr must lie within src.
func Scale(dst *Image, dr image.Rectangle, clip image.Rectangle, src *Image, sr image.Rectangle) image.Rectangle {
	sr = sr.Intersect(src.Bounds())
	visible := dr.Intersect(clip)
	if sr.Empty() || visible.Empty() {
		return image.Rectangle{}
	}
	in := ToNRGBA(src, sr)
	// Only the visible part is allocated; Scale clips dr to out's bounds.
	out := image.NewNRGBA(visible)
	xdraw.NearestNeighbor.Scale(out, dr, in, in.Bounds(), xdraw.Src, nil)
	FromImage(dst, visible.Min, out)
	return visible
}

// ToNRGBA converts the r part of src into a new image with r's bounds.
func ToNRGBA(src *Image, r image.Rectangle) *image.NRGBA {
	r = r.Intersect(src.Bounds())
	out := image.NewNRGBA(r)
	bpp := src.Format.BytesPerPixel
	for y := r.Min.Y; y < r.Max.Y; y++ {
		s := src.offset(r.Min.X, y)
		d := out.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			c := src.Format.Unmap(src.Format.Load(src.Pix[s:]))
			out.Pix[d+0] = c.R
			out.Pix[d+1] = c.G
			out.Pix[d+2] = c.B
			out.Pix[d+3] = c.A
			s += bpp
			d += 4
		}
	}
	return out
}

// FromImage writes img into dst so that img.Bounds().Min lands on dp. The
// written area is clipped to dst.
func FromImage(dst *Image, dp image.Point, img image.Image) {
	b := img.Bounds()
	_, dr := Clip(b, b, dst.Bounds(), dp)
	if dr.Empty() {
		return
	}
	off := b.Min.Sub(dp)
	bpp := dst.Format.BytesPerPixel
	for y := dr.Min.Y; y < dr.Max.Y; y++ {
		d := dst.offset(dr.Min.X, y)
		for x := dr.Min.X; x < dr.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x+off.X, y+off.Y)).(color.NRGBA)
			dst.Format.Store(dst.Pix[d:], dst.Format.Map(c))
			d += bpp
		}
	}
}
