// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package surface_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/exp/surface"
	"golang.org/x/exp/surface/driver/softdriver"
	"golang.org/x/exp/surface/pixfmt"
)

// recordingProvider counts provider calls and can inject failures.
type recordingProvider struct {
	*softdriver.Provider

	lockErr error
	blitErr error

	locks, unlocks int
	frees          map[*surface.Native]int
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{
		Provider: softdriver.New(nil),
		frees:    map[*surface.Native]int{},
	}
}

func (p *recordingProvider) LockSurface(n *surface.Native) error {
	p.locks++
	if p.lockErr != nil {
		return p.lockErr
	}
	return p.Provider.LockSurface(n)
}

func (p *recordingProvider) UnlockSurface(n *surface.Native) {
	p.unlocks++
	p.Provider.UnlockSurface(n)
}

func (p *recordingProvider) FreeSurface(n *surface.Native) {
	p.frees[n]++
	p.Provider.FreeSurface(n)
}

func (p *recordingProvider) BlitSurface(src *surface.Native, sr *image.Rectangle, dst *surface.Native, dr *image.Rectangle) error {
	if p.blitErr != nil {
		return p.blitErr
	}
	return p.Provider.BlitSurface(src, sr, dst, dr)
}

func newRGB(t *testing.T, a *surface.Allocator, w, h, depth int) *surface.Surface {
	t.Helper()
	s, err := a.NewRGB(image.Pt(w, h), depth, pixfmt.Masks{})
	if err != nil {
		t.Fatalf("NewRGB(%d, %d, %d): %v", w, h, depth, err)
	}
	t.Cleanup(s.Release)
	return s
}

func TestNewRGB(t *testing.T) {
	a := surface.NewAllocator(softdriver.New(nil), nil)
	for _, depth := range []int{8, 15, 16, 24, 32} {
		for _, size := range []image.Point{{1, 1}, {3, 7}, {100, 100}, {0, 5}} {
			s := newRGB(t, a, size.X, size.Y, depth)
			if s.Width() != size.X || s.Height() != size.Y {
				t.Errorf("depth=%d size=%v: got %dx%d", depth, size, s.Width(), s.Height())
			}
			if least := size.X * s.Format().BytesPerPixel; s.Pitch() < least {
				t.Errorf("depth=%d size=%v: pitch %d < %d", depth, size, s.Pitch(), least)
			}
			if s.Ownership() != surface.Owned {
				t.Errorf("depth=%d size=%v: ownership %v", depth, size, s.Ownership())
			}
		}
	}

	s := newRGB(t, a, 2, 2, 0)
	if got := s.Format().BitsPerPixel; got != surface.DefaultDepth {
		t.Errorf("zero depth: got %d bits per pixel, want %d", got, surface.DefaultDepth)
	}
}

func TestNewRGBFailure(t *testing.T) {
	a := surface.NewAllocator(softdriver.New(nil), nil)
	testCases := []struct {
		size  image.Point
		depth int
		masks pixfmt.Masks
	}{
		{image.Pt(-1, 4), 32, pixfmt.Masks{}},
		{image.Pt(4, 4), 12, pixfmt.Masks{}},
		{image.Pt(4, 4), 16, pixfmt.Masks{R: 0xff000000}},
		{image.Pt(1<<20, 1), 32, pixfmt.Masks{}},
	}
	for _, tc := range testCases {
		s, err := a.NewRGB(tc.size, tc.depth, tc.masks)
		if s != nil || !errors.Is(err, surface.ErrAllocation) {
			t.Errorf("NewRGB(%v, %d, %+v): got (%v, %v), want ErrAllocation", tc.size, tc.depth, tc.masks, s, err)
		}
	}
}

func TestWithPixelsAddressesWholeBuffer(t *testing.T) {
	a := surface.NewAllocator(softdriver.New(nil), nil)
	s := newRGB(t, a, 5, 3, 24)
	err := s.WithPixels(func(pix []byte) error {
		if len(pix) != s.Pitch()*s.Height() {
			t.Errorf("len(pix): got %d, want %d", len(pix), s.Pitch()*s.Height())
		}
		for i := range pix {
			pix[i] = uint8(i)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestWithPixelsWithoutLocking(t *testing.T) {
	p := newRecordingProvider()
	a := surface.NewAllocator(p, nil)
	s := newRGB(t, a, 4, 4, 32)
	if s.MustLock() {
		t.Fatal("fresh surface must not need locking")
	}
	for i := 0; i < 2; i++ {
		if err := s.WithPixels(func([]byte) error { return nil }); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if p.locks != 0 || p.unlocks != 0 {
		t.Errorf("got %d locks and %d unlocks, want none", p.locks, p.unlocks)
	}
}

func TestWithPixelsLocking(t *testing.T) {
	p := newRecordingProvider()
	a := surface.NewAllocator(p, nil)
	s := newRGB(t, a, 4, 4, 32)
	if err := s.SetRLE(true); err != nil {
		t.Fatal(err)
	}
	if !s.MustLock() {
		t.Fatal("RLE surface must need locking")
	}

	err := s.WithPixels(func(pix []byte) error {
		if !s.Locked() {
			t.Error("surface not locked inside WithPixels")
		}
		pix[0] = 0x42
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.Locked() {
		t.Error("surface still locked after WithPixels")
	}

	errAction := errors.New("action failed")
	if err := s.WithPixels(func([]byte) error { return errAction }); err != errAction {
		t.Errorf("got %v, want %v", err, errAction)
	}
	if s.Locked() {
		t.Error("surface still locked after failed action")
	}

	func() {
		defer func() { recover() }()
		s.WithPixels(func([]byte) error { panic("boom") })
	}()
	if s.Locked() {
		t.Error("surface still locked after panicking action")
	}
	if p.locks != 3 || p.unlocks != 3 {
		t.Errorf("got %d locks and %d unlocks, want 3 each", p.locks, p.unlocks)
	}

	got, err := surface.Pixels(s, func(pix []byte) (byte, error) { return pix[0], nil })
	if err != nil || got != 0x42 {
		t.Errorf("Pixels: got (%#x, %v), want (0x42, nil)", got, err)
	}
}

func TestWithPixelsLockFailure(t *testing.T) {
	p := newRecordingProvider()
	a := surface.NewAllocator(p, nil)
	s := newRGB(t, a, 4, 4, 32)
	if err := s.SetRLE(true); err != nil {
		t.Fatal(err)
	}
	errLock := errors.New("device busy")
	p.lockErr = errLock

	called := false
	err := s.WithPixels(func([]byte) error {
		called = true
		return nil
	})
	if called {
		t.Error("action ran although locking failed")
	}
	if !errors.Is(err, surface.ErrLock) || !errors.Is(err, errLock) {
		t.Errorf("got %v, want ErrLock wrapping %v", err, errLock)
	}
	if p.unlocks != 0 || s.Locked() {
		t.Errorf("unlocks=%d locked=%t after failed lock", p.unlocks, s.Locked())
	}
}

func fill(t *testing.T, s *surface.Surface, f func(i int) byte) {
	t.Helper()
	err := s.WithPixels(func(pix []byte) error {
		for i := range pix {
			pix[i] = f(i)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func pixels(t *testing.T, s *surface.Surface) []byte {
	t.Helper()
	b, err := surface.Pixels(s, func(pix []byte) ([]byte, error) {
		return append([]byte(nil), pix...), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestBlitRoundTrip(t *testing.T) {
	a := surface.NewAllocator(softdriver.New(nil), nil)
	for _, depth := range []int{16, 24, 32} {
		src := newRGB(t, a, 7, 5, depth)
		dst := newRGB(t, a, 7, 5, depth)
		fill(t, src, func(i int) byte { return byte(i*7 + 3) })
		if err := src.Blit(dst, nil, nil); err != nil {
			t.Fatalf("depth %d: %v", depth, err)
		}
		// Compare visible bytes only; row padding is not copied.
		want, got := pixels(t, src), pixels(t, dst)
		n := src.Width() * src.Format().BytesPerPixel
		for y := 0; y < src.Height(); y++ {
			o := y * src.Pitch()
			if diff := cmp.Diff(want[o:o+n], got[o:o+n]); diff != "" {
				t.Errorf("depth %d row %d (-want +got):\n%s", depth, y, diff)
			}
		}
	}
}

func TestBlitIntoLargerSurface(t *testing.T) {
	a := surface.NewAllocator(softdriver.New(nil), nil)
	src := newRGB(t, a, 100, 100, 32)
	if src.Width() != 100 || src.Height() != 100 || src.Pitch() < 400 {
		t.Fatalf("got %dx%d pitch %d", src.Width(), src.Height(), src.Pitch())
	}
	fill(t, src, func(int) byte { return 0xff })

	dst := newRGB(t, a, 600, 480, 32)
	dr := image.Rectangle{Min: image.Pt(50, 50)}
	if err := src.Blit(dst, nil, &dr); err != nil {
		t.Fatal(err)
	}
	if want := image.Rect(50, 50, 150, 150); dr != want {
		t.Errorf("dr: got %v, want %v", dr, want)
	}

	pix := pixels(t, dst)
	for y := 0; y < dst.Height(); y++ {
		for x := 0; x < dst.Width(); x++ {
			want := byte(0)
			if image.Pt(x, y).In(dr) {
				want = 0xff
			}
			o := y*dst.Pitch() + 4*x
			if !bytes.Equal(pix[o:o+4], []byte{want, want, want, want}) {
				t.Fatalf("(%d, %d): got %x, want %02x", x, y, pix[o:o+4], want)
			}
		}
	}
}

func TestBlitSourceRect(t *testing.T) {
	a := surface.NewAllocator(softdriver.New(nil), nil)
	src := newRGB(t, a, 4, 4, 8)
	fill(t, src, func(i int) byte { return byte(i) })
	dst := newRGB(t, a, 4, 4, 8)

	sr := image.Rect(2, 1, 4, 3)
	if err := src.Blit(dst, &sr, nil); err != nil {
		t.Fatal(err)
	}
	want := []byte{
		6, 7, 0, 0,
		10, 11, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 0,
	}
	if diff := cmp.Diff(want, pixels(t, dst)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestBlitFailure(t *testing.T) {
	p := newRecordingProvider()
	a := surface.NewAllocator(p, nil)
	src := newRGB(t, a, 2, 2, 32)
	dst := newRGB(t, a, 2, 2, 32)
	p.blitErr = errors.New("lost device")
	if err := src.Blit(dst, nil, nil); !errors.Is(err, surface.ErrBlit) {
		t.Errorf("got %v, want ErrBlit", err)
	}
}

func TestReleaseOnce(t *testing.T) {
	p := newRecordingProvider()
	a := surface.NewAllocator(p, nil)
	s, err := a.NewRGB(image.Pt(2, 2), 32, pixfmt.Masks{})
	if err != nil {
		t.Fatal(err)
	}
	n := s.Native()
	s.Release()
	s.Release()
	if got := p.frees[n]; got != 1 {
		t.Errorf("FreeSurface called %d times, want 1", got)
	}
	if st := p.Stats(); st.Live() != 0 || st.DoubleFrees != 0 {
		t.Errorf("stats after release: %+v", st)
	}
	if err := s.WithPixels(func([]byte) error { return nil }); err != surface.ErrReleased {
		t.Errorf("WithPixels after Release: got %v, want ErrReleased", err)
	}
}

func TestWindowSurface(t *testing.T) {
	p := newRecordingProvider()
	a := surface.NewAllocator(p, nil)
	w, err := p.NewWindow(&softdriver.WindowOptions{Width: 16, Height: 8})
	if err != nil {
		t.Fatal(err)
	}
	s, err := a.FromWindow(w)
	if err != nil {
		t.Fatal(err)
	}
	if s.Ownership() != surface.Borrowed {
		t.Errorf("ownership: got %v, want borrowed", s.Ownership())
	}
	if s.Width() != 16 || s.Height() != 8 {
		t.Errorf("size: got %v", s.Size())
	}

	if err := s.FillRect(nil, color.White); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(); err != nil {
		t.Fatal(err)
	}
	if got := w.Screen().NRGBAAt(15, 7); got != (color.NRGBA{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("screen(15, 7): got %v", got)
	}

	n := s.Native()
	s.Release()
	if got := p.frees[n]; got != 0 {
		t.Errorf("releasing a window surface called FreeSurface %d times", got)
	}
	w.Destroy()
	if st := p.Stats(); st.Live() != 0 || st.DoubleFrees != 0 {
		t.Errorf("stats after window destroyed: %+v", st)
	}
}

func TestWindowSurfaceOutlivesWindow(t *testing.T) {
	p := softdriver.New(nil)
	a := surface.NewAllocator(p, nil)
	w, err := p.NewWindow(nil)
	if err != nil {
		t.Fatal(err)
	}
	s, err := a.FromWindow(w)
	if err != nil {
		t.Fatal(err)
	}
	w.Destroy()
	if err := s.WithPixels(func([]byte) error { return nil }); err != surface.ErrWindowGone {
		t.Errorf("WithPixels after window destroyed: got %v, want ErrWindowGone", err)
	}
	s.Release()
	if st := p.Stats(); st.Freed != 1 || st.DoubleFrees != 0 {
		t.Errorf("stats: %+v", st)
	}
}

func TestAcceleratedWindowSurface(t *testing.T) {
	p := softdriver.New(nil)
	a := surface.NewAllocator(p, nil)
	w, err := p.NewWindow(&softdriver.WindowOptions{Accelerated: true})
	if err != nil {
		t.Fatal(err)
	}
	s, err := a.FromWindow(w)
	if s != nil || !errors.Is(err, surface.ErrWindowSurfaceUnavailable) {
		t.Errorf("got (%v, %v), want ErrWindowSurfaceUnavailable", s, err)
	}
}

func TestFillRectClipped(t *testing.T) {
	a := surface.NewAllocator(softdriver.New(nil), nil)
	s := newRGB(t, a, 4, 4, 8)
	if !s.SetClipRect(&image.Rectangle{Min: image.Pt(1, 1), Max: image.Pt(9, 3)}) {
		t.Fatal("SetClipRect: got false")
	}
	if got, want := s.ClipRect(), image.Rect(1, 1, 4, 3); got != want {
		t.Errorf("ClipRect: got %v, want %v", got, want)
	}
	if err := s.FillRect(nil, color.White); err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0, 0, 0, 0,
		0, 0xff, 0xff, 0xff,
		0, 0xff, 0xff, 0xff,
		0, 0, 0, 0,
	}
	if diff := cmp.Diff(want, pixels(t, s)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if !s.SetClipRect(nil) || s.ClipRect() != s.Bounds() {
		t.Errorf("SetClipRect(nil): ClipRect %v", s.ClipRect())
	}
}

func TestBlitScaled(t *testing.T) {
	a := surface.NewAllocator(softdriver.New(nil), nil)
	src := newRGB(t, a, 2, 2, 32)
	if err := src.FillRect(nil, color.White); err != nil {
		t.Fatal(err)
	}
	dst := newRGB(t, a, 8, 8, 32)
	dr := image.Rect(0, 0, 4, 4)
	if err := src.BlitScaled(dst, nil, &dr); err != nil {
		t.Fatal(err)
	}
	img, err := dst.Image()
	if err != nil {
		t.Fatal(err)
	}
	if got := img.NRGBAAt(3, 3); got != (color.NRGBA{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("(3, 3): got %v", got)
	}
	if got := img.NRGBAAt(4, 4); got != (color.NRGBA{0, 0, 0, 0xff}) {
		t.Errorf("(4, 4): got %v", got)
	}
}

func TestBlitScaledHugeDestination(t *testing.T) {
	a := surface.NewAllocator(softdriver.New(nil), nil)
	src := newRGB(t, a, 2, 2, 32)
	if err := src.FillRect(nil, color.White); err != nil {
		t.Fatal(err)
	}
	dst := newRGB(t, a, 8, 8, 32)
	dr := image.Rect(-200000, -200000, 200000, 200000)
	if err := src.BlitScaled(dst, nil, &dr); err != nil {
		t.Fatal(err)
	}
	if dr != dst.Bounds() {
		t.Errorf("written: got %v, want %v", dr, dst.Bounds())
	}
	img, err := dst.Image()
	if err != nil {
		t.Fatal(err)
	}
	if got := img.NRGBAAt(7, 7); got != (color.NRGBA{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("(7, 7): got %v", got)
	}
}

type plainProvider struct {
	surface.Provider
}

func TestUnsupported(t *testing.T) {
	a := surface.NewAllocator(plainProvider{softdriver.New(nil)}, nil)
	s := newRGB(t, a, 2, 2, 32)
	if err := s.SetRLE(true); err != surface.ErrUnsupported {
		t.Errorf("SetRLE: got %v, want ErrUnsupported", err)
	}
	if err := s.BlitScaled(s, nil, nil); err != surface.ErrUnsupported {
		t.Errorf("BlitScaled: got %v, want ErrUnsupported", err)
	}
	if err := s.Update(); err != surface.ErrUnsupported {
		t.Errorf("Update: got %v, want ErrUnsupported", err)
	}
}

func TestBMPRoundTrip(t *testing.T) {
	a := surface.NewAllocator(softdriver.New(nil), nil)
	s := newRGB(t, a, 3, 2, 32)
	r := image.Rect(1, 0, 3, 1)
	if err := s.FillRect(&r, color.NRGBA{0x10, 0x20, 0x30, 0xff}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := s.SaveBMP(&buf); err != nil {
		t.Fatal(err)
	}
	loaded, err := a.LoadBMP(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer loaded.Release()

	want, err := s.Image()
	if err != nil {
		t.Fatal(err)
	}
	got, err := loaded.Image()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want.Pix, got.Pix); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	p := newRecordingProvider()
	a := surface.NewAllocator(p, &surface.Options{MeterProvider: mp})

	s1, _ := a.NewRGB(image.Pt(1, 1), 32, pixfmt.Masks{})
	s2, _ := a.NewRGB(image.Pt(1, 1), 32, pixfmt.Masks{})
	s1.Release()
	s1.Release()
	p.blitErr = errors.New("lost device")
	s2.Blit(s2, nil, nil)
	if err := s2.SetRLE(true); err != nil {
		t.Fatal(err)
	}
	p.lockErr = errors.New("device busy")
	s2.WithPixels(func([]byte) error { return nil })
	p.lockErr = nil
	s2.Release()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					got[m.Name] += dp.Value
				}
			}
		}
	}
	want := map[string]int64{
		"surface.allocations":   2,
		"surface.releases":      2,
		"surface.live":          0,
		"surface.blit_failures": 1,
		"surface.lock_failures": 1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("metrics (-want +got):\n%s", diff)
	}
}

// leak allocates surfaces and drops them without Release.
func leak(t *testing.T, a *surface.Allocator, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := a.NewRGB(image.Pt(4, 4), 32, pixfmt.Masks{}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLeakedSurfacesFreedByAllocator(t *testing.T) {
	const n = 50
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	p := softdriver.New(nil)
	a := surface.NewAllocator(p, &surface.Options{MeterProvider: mp})

	leak(t, a, n)
	deadline := time.Now().Add(10 * time.Second)
	for p.Stats().Freed < n {
		if time.Now().After(deadline) {
			t.Fatalf("leaked surfaces not freed: %+v", p.Stats())
		}
		runtime.GC()
		a.Collect()
		time.Sleep(time.Millisecond)
	}
	if st := p.Stats(); st.Live() != 0 || st.DoubleFrees != 0 {
		t.Errorf("stats: %+v", st)
	}
	if got := a.Collect(); got != 0 {
		t.Errorf("second Collect: freed %d, want 0", got)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "surface.live" {
				continue
			}
			var live int64
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				live += dp.Value
			}
			if live != 0 {
				t.Errorf("surface.live: got %d, want 0", live)
			}
		}
	}
}

func TestSetClipRectReleased(t *testing.T) {
	a := surface.NewAllocator(softdriver.New(nil), nil)
	s, err := a.NewRGB(image.Pt(4, 4), 32, pixfmt.Masks{})
	if err != nil {
		t.Fatal(err)
	}
	s.Release()
	r := image.Rect(1, 1, 2, 2)
	if s.SetClipRect(&r) {
		t.Error("SetClipRect on released surface: got true, want false")
	}
	if got := s.ClipRect(); got != image.Rect(0, 0, 4, 4) {
		t.Errorf("ClipRect: got %v, want unchanged", got)
	}

	p := softdriver.New(nil)
	w, err := p.NewWindow(&softdriver.WindowOptions{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	ws, err := surface.NewAllocator(p, nil).FromWindow(w)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Release()
	w.Destroy()
	if ws.SetClipRect(nil) {
		t.Error("SetClipRect after window destroyed: got true, want false")
	}
}
