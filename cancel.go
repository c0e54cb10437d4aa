//go:build linux

package aio

import (
	"context"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Cancel cancels in-flight requests on fd: every request if req is nil, or
// only the one matching req (spec.md §4.6 aio_cancel). It returns Canceled
// or AllDone, or an error (EBADF/EINVAL); NotCanceled is never produced
// (spec.md §4.6 step 4: the outcome starts at ALL_DONE and only ever moves
// to CANCELED, matching the original's aio_cancel), kept only because it is
// part of the historical three-value encoding (errors.go).
func Cancel(fd int, req *Request) (int, error) {
	if req != nil && req.Fd != fd {
		return -1, syscall.EINVAL
	}

	outcome := AllDone
	withSignalsBlocked(func() {
		q, err := globalDirectory.acquire(fd, false)
		if err != nil {
			if err == syscall.EBADF {
				outcome = -1
			}
			return
		}

		for w := q.head; w != nil; w = w.next {
			if req != nil && w.req != req {
				continue
			}
			if w.running.cas(workerRunning, workerRunningWaiters) {
				w.cancel()
				w.running.waitUntil(context.Background(), workerRunningWaiters)
				if w.err == int32(syscall.ECANCELED) {
					outcome = Canceled
				}
				log.WithFields(logrus.Fields{"fd": fd, "worker": w.id}).Debug("aio: cancellation observed")
			}
		}
		q.mu.Unlock()
	})

	if outcome == -1 {
		return -1, syscall.EBADF
	}
	return outcome, nil
}

// CloseNotify is the integration hook a descriptor-close path calls before
// recycling fd, to drain any outstanding AIO requests on it (spec.md §4.6
// "Close integration"). It is a cheap no-op when no queue is live anywhere
// in the process at the time of the call.
func CloseNotify(fd int) {
	if globalDirectory.liveQueueCount.Load() == 0 {
		return
	}
	_, _ = Cancel(fd, nil)
}
