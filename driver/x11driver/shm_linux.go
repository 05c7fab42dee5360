// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package x11driver

import (
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// shmOpen returns a new SysV shared memory segment of the given size,
// attached to this process. The segment is marked for removal, so the kernel
// reclaims it once every attachment, including the X server's, is gone.
func shmOpen(size int) (shmid int, buf []byte, err error) {
	shmid, err = unix.SysvShmGet(unix.IPC_PRIVATE, size, unix.IPC_CREAT|0600)
	if err != nil {
		return 0, nil, xerrors.Errorf("shmget: %w", err)
	}
	buf, err = unix.SysvShmAttach(shmid, 0, 0)
	if err != nil {
		unix.SysvShmCtl(shmid, unix.IPC_RMID, nil)
		return 0, nil, xerrors.Errorf("shmat: %w", err)
	}
	if _, err := unix.SysvShmCtl(shmid, unix.IPC_RMID, nil); err != nil {
		unix.SysvShmDetach(buf)
		return 0, nil, xerrors.Errorf("shmctl: %w", err)
	}
	return shmid, buf, nil
}

func shmClose(buf []byte) error {
	return unix.SysvShmDetach(buf)
}
