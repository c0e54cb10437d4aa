//go:build linux

package aio

import (
	"context"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Sync flavours for Fsync, matching O_SYNC/O_DSYNC in spec.md §6.
const (
	FileSync byte = iota
	DataSync
)

// handshake is the zero-initialized binary counter (glossary) a worker
// posts while holding its queue's mutex, right before linking itself into
// the queue, and the submitter waits on before returning — realized with a real weighted semaphore rather
// than a hand-rolled channel, per SPEC_FULL.md's domain stack.
type handshake struct {
	sem *semaphore.Weighted
}

func newHandshake() *handshake {
	h := &handshake{sem: semaphore.NewWeighted(1)}
	// Consume the semaphore's one initial permit so the first real
	// Acquire (wait) blocks until the worker's post (Release) happens,
	// giving the "starts at zero" semantics sem_init(&sem,0,0) has.
	_ = h.sem.Acquire(context.Background(), 1)
	return h
}

func (h *handshake) post() { h.sem.Release(1) }

func (h *handshake) wait() { _ = h.sem.Acquire(context.Background(), 1) }

// Read submits an asynchronous read request (spec.md §6 aio_read).
func Read(req *Request) error {
	return submit(req, ioRead)
}

// Write submits an asynchronous write request (spec.md §6 aio_write).
func Write(req *Request) error {
	return submit(req, ioWrite)
}

// Fsync submits an asynchronous sync request. flag must be FileSync or
// DataSync (spec.md §6 aio_fsync).
func Fsync(flag byte, req *Request) error {
	switch flag {
	case FileSync:
		return submit(req, ioSync)
	case DataSync:
		return submit(req, ioDSync)
	default:
		return syscall.EINVAL
	}
}

// submit is spec.md §4.5 verbatim: acquire-or-create the queue, bump its
// ref, spawn the worker, and wait for the worker's handshake before
// returning, so the worker is visible to cancellers and status waiters by
// the time submit returns.
func submit(req *Request, op ioOp) error {
	if req.errWord == nil {
		req.errWord = newAtomicWord(inProgress)
	}

	q, err := globalDirectory.acquire(req.Fd, true)
	if err != nil {
		req.ret = -1
		if err == syscall.EBADF {
			req.errWord.store(int32(syscall.EBADF))
			return syscall.EBADF
		}
		req.errWord.store(int32(syscall.EAGAIN))
		log.WithError(errors.Wrap(err, "aio: directory acquire")).Debug("aio: submission rejected")
		return syscall.EAGAIN
	}

	q.ref++
	q.mu.Unlock()

	hs := newHandshake()

	var spawnErr error
	withSignalsBlocked(func() {
		req.errWord.store(inProgress)
		spawnErr = spawnWorker(func() {
			runWorker(context.Background(), q, req, op, hs)
		})
		if spawnErr != nil {
			q.mu.Lock()
			globalDirectory.release(q)
			req.ret = -1
			req.errWord.store(int32(syscall.EAGAIN))
			log.WithFields(logrus.Fields{"fd": req.Fd}).Warn("aio: worker spawn failed")
		}
	})
	if spawnErr != nil {
		return syscall.EAGAIN
	}

	hs.wait()
	return nil
}
