// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package x11driver

import (
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/exp/surface"
)

func TestRowBatches(t *testing.T) {
	// 1024 pixels wide rows are 4096 bytes; 63 of them fit in one request.
	got := rowBatches(1024, 10, 140)
	want := []image.Rectangle{
		image.Rect(0, 10, 1024, 73),
		image.Rect(0, 73, 1024, 136),
		image.Rect(0, 136, 1024, 140),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	// Rows wider than a request are still sent one at a time.
	if got := rowBatches(maxShmSide, 0, 2); len(got) != 2 {
		t.Errorf("wide rows: got %d batches, want 2", len(got))
	}
}

func open(t *testing.T, opts *Options) *Provider {
	t.Helper()
	if os.Getenv("DISPLAY") == "" {
		t.Skip("no X server: DISPLAY is not set")
	}
	p, err := Open(opts)
	if err != nil {
		t.Skipf("no X server: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func testWindowSurface(t *testing.T, opts *Options) {
	p := open(t, opts)
	w, err := p.NewWindow(&WindowOptions{Width: 64, Height: 48, Title: t.Name()})
	if err != nil {
		t.Fatal(err)
	}
	a := surface.NewAllocator(p, nil)
	s, err := a.FromWindow(w)
	if err != nil {
		t.Fatal(err)
	}
	if s.Width() != 64 || s.Height() != 48 || s.Pitch() != 256 {
		t.Errorf("got %dx%d pitch %d", s.Width(), s.Height(), s.Pitch())
	}

	src, err := a.NewRGB(image.Pt(10, 10), 32, s.Format().Masks)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Release()
	if err := src.FillRect(nil, color.White); err != nil {
		t.Fatal(err)
	}
	dr := image.Rectangle{Min: image.Pt(5, 5)}
	if err := src.Blit(s, nil, &dr); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(dr); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(); err != nil {
		t.Fatal(err)
	}

	w.Destroy()
	if err := s.Update(); err != surface.ErrWindowGone {
		t.Errorf("Update after Destroy: got %v, want ErrWindowGone", err)
	}
	s.Release()
	if st := p.Stats(); st.DoubleFrees != 0 || st.Live() != 1 {
		t.Errorf("stats: %+v", st)
	}
}

func TestWindowSurfaceSHM(t *testing.T) {
	testWindowSurface(t, nil)
}

func TestWindowSurfacePutImage(t *testing.T) {
	testWindowSurface(t, &Options{NoSHM: true})
}
