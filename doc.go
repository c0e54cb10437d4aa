//go:build linux

// Package aio is a POSIX-aio-style asynchronous I/O core.
//
// It lets a caller submit read, write, and sync requests against a file
// descriptor that proceed on their own goroutine, then later poll status,
// retrieve results, cancel in flight, or be notified on completion. The
// package implements the concurrency engine behind the traditional
// aio_read/aio_write/aio_fsync/aio_error/aio_return/aio_cancel surface; it
// does not implement aio_suspend or lio_listio, which are composite
// waiters layered on top of the primitives exposed here.
package aio
