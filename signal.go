//go:build linux

package aio

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// withSignalsBlocked runs fn with every signal blocked on the calling OS
// thread, restoring the prior mask afterward. Every lock-taking entry
// point on the submitter/canceller/closer side uses this for the duration
// of its critical section (spec.md §5), since aio_cancel must be callable
// from a close path running inside a signal handler.
//
// The mask is a per-OS-thread property, so the calling goroutine is
// pinned to its thread for fn's duration; otherwise the Go scheduler could
// migrate it mid-critical-section onto a thread with signals unblocked.
func withSignalsBlocked(fn func()) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	allmask := fullSigset()
	var orig unix.Sigset_t
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &allmask, &orig); err != nil {
		fn()
		return
	}
	defer unix.PthreadSigmask(unix.SIG_SETMASK, &orig, nil)

	fn()
}

// fullSigset returns a signal set with every signal present, the Go
// equivalent of sigfillset(3).
func fullSigset() unix.Sigset_t {
	var s unix.Sigset_t
	for i := range s.Val {
		s.Val[i] = ^uint64(0)
	}
	return s
}

// blockAllSignalsOnThisThreadForever permanently blocks every signal on the
// calling OS thread. A worker goroutine calls this once at the start of
// its lifetime and never restores the mask, matching spec.md §5's "every
// worker task runs with all signals blocked for its full lifetime" — the
// goroutine (and the thread it locked) exits together when the worker is
// done.
func blockAllSignalsOnThisThreadForever() {
	runtime.LockOSThread()
	allmask := fullSigset()
	_ = unix.PthreadSigmask(unix.SIG_BLOCK, &allmask, nil)
}
