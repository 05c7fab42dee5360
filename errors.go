// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package surface

import "golang.org/x/xerrors"

var (
	// ErrAllocation reports that a surface could not be allocated.
	ErrAllocation = xerrors.New("surface: allocation failed")

	// ErrWindowSurfaceUnavailable reports that a window could not provide a
	// framebuffer surface.
	ErrWindowSurfaceUnavailable = xerrors.New("surface: window surface unavailable")

	// ErrLock reports that a surface could not be locked for pixel access.
	ErrLock = xerrors.New("surface: lock failed")

	// ErrBlit reports that the provider failed a blit.
	ErrBlit = xerrors.New("surface: blit failed")

	// ErrReleased reports use of a released surface.
	ErrReleased = xerrors.New("surface: use of released surface")

	// ErrWindowGone reports use of a window surface after its window
	// destroyed or replaced it.
	ErrWindowGone = xerrors.New("surface: window no longer owns surface")

	// ErrUnsupported reports an operation the provider does not implement.
	ErrUnsupported = xerrors.New("surface: operation not supported by provider")
)

// Error carries the provider error behind a failed operation. errors.Is
// matches it against its Kind as well as against the wrapped error.
type Error struct {
	Kind error // one of the Err values above
	Err  error // provider error, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind }
