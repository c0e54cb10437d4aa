//go:build linux

package aio

import (
	"context"
	"sync/atomic"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Worker states for the running word (spec.md §4.4, §4.6).
const (
	workerRunning         = int32(1)
	workerRunningWaiters  = int32(-1) // "running-with-waiters": a canceller CAS'd in, waiting for 0
	workerFinished        = int32(0)
)

// worker is one in-flight request: the task performing the blocking I/O
// call and, via its deferred cleanup, the completion protocol (spec.md §3,
// §4.3, §4.4).
type worker struct {
	op  ioOp
	req *Request
	q   *queue

	running *atomicWord // workerRunning / workerRunningWaiters / workerFinished

	ret int64
	err int32 // tentative ECANCELED until the I/O call overwrites it; kept when cancellation is seen before the call

	next, prev *worker

	cancel context.CancelFunc
	id     uint64
}

var nextWorkerID atomic.Uint64

// spawnWorker is the indirection point through which submit() starts a
// worker task. It is a var, not a direct "go" statement, so tests can
// simulate the EAGAIN "task spawn failed" branch of spec.md §4.5 step 6,
// which cannot occur for a real goroutine.
var spawnWorker = func(run func()) error {
	go run()
	return nil
}

// runWorker is the body of one worker task (spec.md §4.3). q.mu must NOT
// be held by the caller; runWorker acquires and releases it itself. hs is
// posted while the worker holds q.mu, just before it links itself into q;
// q.mu is not released until the link is made, so anyone who takes q.mu
// after submit returns sees the worker on the list.
func runWorker(ctx context.Context, q *queue, req *Request, op ioOp, hs *handshake) {
	blockAllSignalsOnThisThreadForever()

	wctx, cancel := context.WithCancel(ctx)
	w := &worker{
		op:      op,
		req:     req,
		q:       q,
		cancel:  cancel,
		id:      nextWorkerID.Add(1),
		running: newAtomicWord(workerRunning),
	}
	w.ret = -1
	w.err = int32(syscall.ECANCELED)

	q.mu.Lock()
	hs.post()

	req.core.ownerID = w.id
	q.link(w)

	if !q.init {
		q.classify()
	}

	sequence := needsSequencing(op, q.append)
	for sequence && q.hasPendingWrite(w) {
		q.cond.Wait()
	}
	q.mu.Unlock()

	defer w.cleanup()

	if wctx.Err() == nil {
		w.ret, w.err = performIO(q, req, op)
	}
}

func performIO(q *queue, req *Request, op ioOp) (int64, int32) {
	switch op {
	case ioRead:
		return doRead(q.fd, req.Buf[:req.NBytes], req.Offset, q.seekable)
	case ioWrite:
		return doWrite(q.fd, req.Buf[:req.NBytes], req.Offset, q.append)
	case ioSync:
		return doSync(q.fd, false)
	case ioDSync:
		return doSync(q.fd, true)
	default:
		return -1, int32(syscall.EINVAL)
	}
}

// cleanup is the single choke point every request reaches a terminal
// state through (spec.md §4.4). It must wake, in order, cancellers,
// single-handle status waiters, multi-handle waiters, and sibling workers
// sequencing on this queue, then unlink and deliver the completion
// notification. It runs whether the request finished normally or was
// cancelled before/at the point performIO checked for cancellation.
func (w *worker) cleanup() {
	req := w.req
	notify := req.Notify // local copy: req may be freed as soon as a waiter observes completion

	req.ret = w.ret

	if w.running.swap(workerFinished) == workerRunningWaiters {
		w.running.wake()
	}

	prevErr := req.errWord.swap(w.err)
	if prevErr != inProgress {
		req.errWord.wake()
	}

	if globalWakeup.swap(0) != 0 {
		globalWakeup.wake()
	}

	q := w.q
	q.mu.Lock()
	q.unlink(w)
	q.cond.Broadcast()
	globalDirectory.release(q) // unlocks q.mu

	log.WithFields(logrus.Fields{
		"fd": q.fd, "op": w.op, "worker": w.id, "err": w.err, "ret": w.ret,
	}).Debug("aio: request completed")

	deliverCompletion(notify)
}
