// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package x11driver provides a surface provider whose windows are X11
// windows. Window framebuffers live in MIT-SHM shared memory when the server
// supports it, and are sent with PutImage requests otherwise.
//
// Off-screen surfaces are ordinary Go memory, as with softdriver.
package x11driver

// TODO: figure out what to say about the responsibility for users of this
// package to check any implicit dependencies' LICENSEs. For example, the
// driver might use third party software outside of golang.org/x, like an X11
// library.

import (
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/shm"
	"github.com/jezek/xgb/xproto"
	"go.uber.org/zap"
	"golang.org/x/exp/surface/driver/softdriver"
	"golang.org/x/exp/surface/pixfmt"
	"golang.org/x/xerrors"
)

// Options are optional arguments to Open.
type Options struct {
	// Display names the X server, as in the DISPLAY environment variable.
	// Empty means $DISPLAY.
	Display string

	// NoSHM disables shared memory framebuffers.
	NoSHM bool

	// Logger receives X11 errors. nil means no logging.
	Logger *zap.Logger
}

// Provider is a surface.Provider connected to an X server. Its windows
// implement surface.Window.
type Provider struct {
	*softdriver.Provider

	xc     *xgb.Conn
	xsi    *xproto.ScreenInfo
	log    *zap.Logger
	useSHM bool
	masks  pixfmt.Masks

	mu      sync.Mutex
	windows map[xproto.Window]*Window
}

// Open connects to the X server. opts may be nil.
func Open(opts *Options) (p *Provider, retErr error) {
	if opts == nil {
		opts = &Options{}
	}
	log := zap.NewNop()
	if opts.Logger != nil {
		log = opts.Logger
	}

	var xc *xgb.Conn
	var err error
	if opts.Display != "" {
		xc, err = xgb.NewConnDisplay(opts.Display)
	} else {
		xc, err = xgb.NewConn()
	}
	if err != nil {
		return nil, xerrors.Errorf("x11driver: xgb.NewConn failed: %w", err)
	}
	defer func() {
		if retErr != nil {
			xc.Close()
		}
	}()

	p = &Provider{
		Provider: softdriver.New(&softdriver.Options{Logger: log}),
		xc:       xc,
		xsi:      xproto.Setup(xc).DefaultScreen(xc),
		log:      log.Named("x11driver"),
		windows:  map[xproto.Window]*Window{},
	}
	p.masks, err = visualMasks(p.xsi)
	if err != nil {
		return nil, err
	}
	if !opts.NoSHM {
		if err := shm.Init(xc); err != nil {
			p.log.Info("MIT-SHM unavailable, using PutImage", zap.Error(err))
		} else {
			p.useSHM = true
		}
	}
	return p, nil
}

// visualMasks returns the channel masks of the screen's root visual.
func visualMasks(xsi *xproto.ScreenInfo) (pixfmt.Masks, error) {
	if xsi.RootDepth != 24 && xsi.RootDepth != 32 {
		return pixfmt.Masks{}, xerrors.Errorf("x11driver: unsupported root depth %d", xsi.RootDepth)
	}
	for _, d := range xsi.AllowedDepths {
		if d.Depth != xsi.RootDepth {
			continue
		}
		for _, v := range d.Visuals {
			if v.VisualId == xsi.RootVisual {
				if v.Class != xproto.VisualClassTrueColor && v.Class != xproto.VisualClassDirectColor {
					return pixfmt.Masks{}, xerrors.Errorf("x11driver: unsupported visual class %d", v.Class)
				}
				return pixfmt.Masks{R: v.RedMask, G: v.GreenMask, B: v.BlueMask}, nil
			}
		}
	}
	return pixfmt.Masks{}, xerrors.New("x11driver: root visual not found")
}

// Close destroys all windows and closes the connection.
func (p *Provider) Close() {
	p.mu.Lock()
	ws := make([]*Window, 0, len(p.windows))
	for _, w := range p.windows {
		ws = append(ws, w)
	}
	p.mu.Unlock()

	for _, w := range ws {
		w.Destroy()
	}
	p.xc.Close()
}
