// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package driver provides the default surface provider for the system: the
// X11 driver when an X server is reachable, the software driver otherwise.
package driver

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/surface"
	"golang.org/x/exp/surface/driver/softdriver"
	"golang.org/x/exp/surface/driver/x11driver"
	"golang.org/x/xerrors"
)

// Provider is a surface.Provider that can also create windows.
type Provider interface {
	surface.Provider

	// NewWindow returns a new window. opts may be nil.
	NewWindow(opts *WindowOptions) (Window, error)

	// Name names the driver, such as "x11" or "soft".
	Name() string

	// Close releases the provider's resources, destroying its windows.
	Close()
}

// Window is a surface.Window that can be destroyed.
type Window interface {
	surface.Window

	// Destroy destroys the window and frees its framebuffer. Calling
	// Destroy more than once has no effect.
	Destroy()
}

// WindowOptions are optional arguments to Provider.NewWindow.
type WindowOptions struct {
	Width, Height int
	Title         string
}

// Options are optional arguments to Open.
type Options struct {
	// Driver forces a driver: "x11" or "soft". Empty picks one.
	Driver string

	// Display is passed to the X11 driver.
	Display string

	Logger *zap.Logger
}

// Open returns the provider selected by opts, which may be nil.
func Open(opts *Options) (Provider, error) {
	if opts == nil {
		opts = &Options{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	switch opts.Driver {
	case "soft":
		return openSoft(log), nil
	case "x11":
		return openX11(opts, log)
	case "":
		if opts.Display == "" && os.Getenv("DISPLAY") == "" {
			return openSoft(log), nil
		}
		p, err := openX11(opts, log)
		if err != nil {
			log.Info("falling back to software driver", zap.Error(err))
			return openSoft(log), nil
		}
		return p, nil
	}
	return nil, errUnknownDriver(opts.Driver)
}

func errUnknownDriver(name string) error {
	return xerrors.Errorf("driver: unknown driver %q", name)
}

func openSoft(log *zap.Logger) Provider {
	return &softProvider{Provider: softdriver.New(&softdriver.Options{Logger: log})}
}

func openX11(opts *Options, log *zap.Logger) (Provider, error) {
	p, err := x11driver.Open(&x11driver.Options{Display: opts.Display, Logger: log})
	if err != nil {
		return nil, err
	}
	return x11Provider{p}, nil
}

// softProvider remembers its windows so that Close can destroy them, as the
// X11 driver does.
type softProvider struct {
	*softdriver.Provider

	mu      sync.Mutex
	windows []*softdriver.Window
}

func (p *softProvider) NewWindow(opts *WindowOptions) (Window, error) {
	var o softdriver.WindowOptions
	if opts != nil {
		o = softdriver.WindowOptions{Width: opts.Width, Height: opts.Height, Title: opts.Title}
	}
	w, err := p.Provider.NewWindow(&o)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.windows = append(p.windows, w)
	p.mu.Unlock()
	return w, nil
}

func (*softProvider) Name() string { return "soft" }

func (p *softProvider) Close() {
	p.mu.Lock()
	ws := p.windows
	p.windows = nil
	p.mu.Unlock()

	for _, w := range ws {
		w.Destroy()
	}
}

type x11Provider struct {
	*x11driver.Provider
}

func (p x11Provider) NewWindow(opts *WindowOptions) (Window, error) {
	var o x11driver.WindowOptions
	if opts != nil {
		o = x11driver.WindowOptions{Width: opts.Width, Height: opts.Height, Title: opts.Title}
	}
	w, err := p.Provider.NewWindow(&o)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (x11Provider) Name() string { return "x11" }
