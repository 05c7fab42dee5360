// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package x11driver

import "golang.org/x/xerrors"

func shmOpen(size int) (shmid int, buf []byte, err error) {
	return 0, nil, xerrors.New("shared memory is only supported on linux")
}

func shmClose(buf []byte) error {
	return nil
}
