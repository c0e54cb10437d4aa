//go:build linux

package aio

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// probeSeekable reports whether fd supports seeking, by attempting to
// query its current offset (spec.md §4.2: "seekable is true iff the
// offset query succeeds").
func probeSeekable(fd int) bool {
	_, err := unix.Seek(fd, 0, unix.SEEK_CUR)
	return err == nil
}

// probeAppend reports whether fd was opened O_APPEND.
func probeAppend(fd int) bool {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return false
	}
	return flags&unix.O_APPEND != 0
}

// doRead issues the blocking read per spec.md §4.3 step 8: positional on a
// seekable fd, at the current offset otherwise.
func doRead(fd int, buf []byte, offset int64, seekable bool) (int64, int32) {
	if !seekable {
		n, err := unix.Read(fd, buf)
		return resultOf(n, err)
	}
	n, err := unix.Pread(fd, buf, offset)
	return resultOf(n, err)
}

// doWrite issues the blocking write: at the current (implicit) offset in
// append mode, positional otherwise.
func doWrite(fd int, buf []byte, offset int64, appendMode bool) (int64, int32) {
	if appendMode {
		n, err := unix.Write(fd, buf)
		return resultOf(n, err)
	}
	n, err := unix.Pwrite(fd, buf, offset)
	return resultOf(n, err)
}

func doSync(fd int, dataOnly bool) (int64, int32) {
	var err error
	if dataOnly {
		err = unix.Fdatasync(fd)
	} else {
		err = unix.Fsync(fd)
	}
	if err != nil {
		if errno, ok := err.(syscall.Errno); ok {
			return -1, int32(errno)
		}
		return -1, int32(syscall.EIO)
	}
	return 0, 0
}

func resultOf(n int, err error) (int64, int32) {
	if err != nil {
		if errno, ok := err.(syscall.Errno); ok {
			return -1, int32(errno)
		}
		return -1, int32(syscall.EIO)
	}
	return int64(n), 0
}
