//go:build linux

package aio

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// PrepareFork, ParentAfterFork, and ChildAfterFork are the atfork-style
// triple spec.md §4.8 describes. Go programs essentially never call a
// bare fork() — the runtime, GC, and every other goroutine do not survive
// it — so these are exposed as plain functions for an application that
// does its own raw fork (e.g. via a cgo call or unix.RawSyscall(SYS_FORK,
// ...)) to invoke explicitly; Go has no pthread_atfork-style automatic
// registration to hook them in for you.
//
// PrepareFork pins the directory graph (pre-fork: shared lock, so no
// mutation races with the instant of fork).
func PrepareFork() {
	globalDirectory.mu.RLock()
}

// ParentAfterFork releases the lock PrepareFork took, in the parent.
func ParentAfterFork() {
	globalDirectory.mu.RUnlock()
}

// ChildAfterFork reinitialises process-global AIO state in a child that
// was created while other goroutines held AIO locks. Those goroutines do
// not exist in the child; their lock state is unknowable, so queues
// reachable only through the directory are intentionally leaked rather
// than freed (spec.md §4.8, §9 "Intentional leak").
func ChildAfterFork() {
	globalDirectory.liveQueueCount.Store(0)

	if globalDirectory.mu.TryRLock() {
		// The child is not actually the lock holder — the parent thread
		// that ran PrepareFork/ParentAfterFork was, and does not exist
		// here — so reinitialise mu rather than RUnlock it, same as the
		// reset() path below does for the no-lock-acquired case.
		globalDirectory.nullLeaves()
		globalDirectory.mu = sync.RWMutex{}
		log.Debug("aio: fork child reinitialised directory leaves")
		return
	}

	// PrepareFork/ParentAfterFork weren't the path that got us here (e.g.
	// a raw fork with no atfork hook at all): the lock's state is
	// unknowable. Drop the whole trie and reinitialise the lock rather
	// than unlocking one we never held.
	globalDirectory.reset()
	log.WithFields(logrus.Fields{}).Debug("aio: fork child reset directory (lock state unknown)")
}
