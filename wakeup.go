//go:build linux

package aio

import (
	"context"
	"sync"
	"sync/atomic"
)

// atomicWord is a futex-style "publish and notify" word: a waiter reads the
// word and sleeps only if it still equals the value it last observed; a
// publisher updates the word and wakes sleepers only when the previous
// value indicated someone might be watching. spec.md §4.4 describes this
// primitive for AS-safe notification with no allocation and no lock; this
// Go substitute does take a short internal mutex and allocates a fresh
// channel on every wake.
//
// No portable userspace futex syscall is exposed to pure Go outside
// runtime-internal linkname tricks, which is exactly the fragility the
// original avoids it for by using atomics+futex only where pthread
// primitives would be impractical. The idiomatic Go substitute is an
// atomic word guarding a channel that gets closed (and replaced) on every
// wake, which is what this type does.
type atomicWord struct {
	v  atomic.Int32
	mu sync.Mutex
	ch chan struct{}
}

func newAtomicWord(initial int32) *atomicWord {
	w := &atomicWord{ch: make(chan struct{})}
	w.v.Store(initial)
	return w
}

func (w *atomicWord) load() int32 { return w.v.Load() }

func (w *atomicWord) swap(val int32) int32 { return w.v.Swap(val) }

// store sets the word and unconditionally wakes waiters. Used where the
// caller always wants the wake regardless of the previous value (as
// opposed to cleanup's conditional-wake steps in spec.md §4.4).
func (w *atomicWord) store(val int32) {
	w.v.Store(val)
	w.wake()
}

func (w *atomicWord) cas(old, new int32) bool { return w.v.CompareAndSwap(old, new) }

// wake releases every goroutine currently parked in waitUntil.
func (w *atomicWord) wake() {
	w.mu.Lock()
	ch := w.ch
	w.ch = make(chan struct{})
	w.mu.Unlock()
	close(ch)
}

// waitUntil blocks until the word no longer reads old, or ctx is done,
// returning the word's value at the time it stopped waiting. A change made
// with swap and no following wake is not noticed by a waiter that is
// already parked; it only sees the new value once a wake comes or ctx ends.
func (w *atomicWord) waitUntil(ctx context.Context, old int32) int32 {
	for {
		w.mu.Lock()
		ch := w.ch
		w.mu.Unlock()

		if v := w.v.Load(); v != old {
			return v
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return w.v.Load()
		}
	}
}

// globalWakeup is the process-global wakeup word a multi-handle
// (lio_listio/aio_suspend-style) waiter would observe. That composite
// waiter is an external collaborator (spec.md §1) not implemented here;
// this package only maintains the word it relies on, per spec.md §4.4
// step e.
var globalWakeup = newAtomicWord(0)

// Wakeup is the externally observable half of an atomicWord: a composite
// waiter (aio_suspend/lio_listio-style, out of scope here per spec.md
// Non-goals) can poll or block on it without this package exposing the
// word's internal lock/channel machinery.
type Wakeup struct {
	w *atomicWord
}

// Load returns the word's current value.
func (k Wakeup) Load() int32 { return k.w.load() }

// Wait blocks until a wake finds the word no longer reading old, or ctx is
// done, and returns the value observed when it stopped waiting (see
// waitUntil).
func (k Wakeup) Wait(ctx context.Context, old int32) int32 { return k.w.waitUntil(ctx, old) }

// WakeupWord returns the wakeup word a composite waiter would watch for
// this request's completion (its error slot, per spec.md §4.4 step d-e).
// A worker's cleanup wakes this word only when its previous value was not
// IN_PROGRESS, and Wakeup offers no way to change the word, so a Wait on
// it that is already parked when the request completes returns only when
// ctx is done; Load reports the completed value in every case.
func (r *Request) WakeupWord() Wakeup { return Wakeup{w: r.errWord} }

// GlobalWakeup returns the process-global wakeup word a multi-handle
// waiter would watch across every outstanding request. A worker's cleanup
// resets it to 0 and wakes waiters only when it was non-zero; nothing in
// this package sets it non-zero, and Wakeup offers no way to.
func GlobalWakeup() Wakeup { return Wakeup{w: globalWakeup} }
