//go:build linux

package aio

import (
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// directory is the process-wide sparse mapping from file descriptor to
// queue, a 4-level radix trie keyed 8 bits per level from the fd's most to
// least significant byte (spec.md §3, §4.1). It is addressed by the full
// 32-bit non-negative fd, so no two live fds collide on a leaf.
type directory struct {
	mu  sync.RWMutex
	top [dirTop]*dirLevel2

	liveQueueCount atomic.Int64
}

const (
	dirTop = 1 << 7 // 2^(31-24): fd bits 24-30 of the non-negative 31-bit fd space
	dirMid = 1 << 8
)

type dirLevel2 [dirMid]*dirLevel3
type dirLevel3 [dirMid]*dirLevel4
type dirLevel4 [dirMid]*queue

var globalDirectory = &directory{}

func splitFd(fd int) (a, b, c, d int) {
	return (fd >> 24) & (dirTop - 1), (fd >> 16) & 0xff, (fd >> 8) & 0xff, fd & 0xff
}

// lookup returns the queue at (a,b,c,d), or nil if any intermediate level
// is unallocated. Caller holds d.mu in some mode.
func (d *directory) lookup(a, b, c, e int) *queue {
	l2 := d.top[a]
	if l2 == nil {
		return nil
	}
	l3 := l2[b]
	if l3 == nil {
		return nil
	}
	l4 := l3[c]
	if l4 == nil {
		return nil
	}
	return l4[e]
}

// store publishes q at (a,b,c,d), allocating intermediate levels as
// needed. Caller holds d.mu exclusively.
func (d *directory) store(a, b, c, e int, q *queue) {
	if d.top[a] == nil {
		d.top[a] = &dirLevel2{}
	}
	l2 := d.top[a]
	if l2[b] == nil {
		l2[b] = &dirLevel3{}
	}
	l3 := l2[b]
	if l3[c] == nil {
		l3[c] = &dirLevel4{}
	}
	l3[c][e] = q
}

// clear removes the leaf entry at (a,b,c,d). Intermediate levels are left
// allocated (absence at a leaf, not at an intermediate node, is what means
// "no queue"). Caller holds d.mu exclusively.
func (d *directory) clear(a, b, c, e int) {
	if l2 := d.top[a]; l2 != nil {
		if l3 := l2[b]; l3 != nil {
			if l4 := l3[c]; l4 != nil {
				l4[e] = nil
			}
		}
	}
}

// acquire returns a locked queue for fd, creating one if create is true and
// none exists, per spec.md §4.1. On failure it returns a nil queue and the
// error the caller should stamp onto a Request (or translate to ALL_DONE
// for Cancel): EBADF for an invalid fd, errNoQueue when create is false and
// none exists (never a literal "resource" error from this function itself
// — callers distinguish EAGAIN only by the surrounding context per
// spec.md §7).
func (d *directory) acquire(fd int, create bool) (*queue, error) {
	if fd < 0 {
		return nil, syscall.EBADF
	}
	a, b, c, e := splitFd(fd)

	d.mu.RLock()
	if q := d.lookup(a, b, c, e); q != nil {
		q.mu.Lock()
		d.mu.RUnlock()
		return q, nil
	}
	d.mu.RUnlock()

	if !create {
		return nil, errNoQueue
	}

	var q *queue
	withSignalsBlocked(func() {
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
			log.WithError(errors.Wrapf(err, "aio: fd %d probe", fd)).Debug("aio: rejecting queue creation for bad fd")
			q = nil
			return
		}

		d.mu.Lock()
		defer d.mu.Unlock()

		if existing := d.lookup(a, b, c, e); existing != nil {
			q = existing
		} else {
			q = newQueue(fd)
			d.store(a, b, c, e, q)
			d.liveQueueCount.Add(1)
			log.WithFields(logrus.Fields{"fd": fd}).Debug("aio: queue created")
		}
		q.mu.Lock()
	})

	if q == nil {
		return nil, syscall.EBADF
	}
	return q, nil
}

// release is the unref routine (spec.md §4.1). Called with q.mu held; it
// always releases q.mu (and, on the last-ref path, d.mu) before returning.
func (d *directory) release(q *queue) {
	if q.ref > 1 {
		q.ref--
		q.mu.Unlock()
		return
	}

	q.mu.Unlock()
	d.mu.Lock()
	q.mu.Lock()
	if q.ref == 1 {
		a, b, c, e := splitFd(q.fd)
		d.clear(a, b, c, e)
		d.liveQueueCount.Add(-1)
		d.mu.Unlock()
		q.mu.Unlock()
		log.WithFields(logrus.Fields{"fd": q.fd}).Debug("aio: queue destroyed")
		return
	}
	q.ref--
	d.mu.Unlock()
	q.mu.Unlock()
}

// nullLeaves walks the whole trie nulling out every leaf slot, leaving
// intermediate nodes (and the orphaned queues they used to point to)
// allocated. Used only by the fork child handler (spec.md §4.8): freeing
// queues whose mutex state may be frozen mid-hold by a vanished sibling
// goroutine is unsafe, so the leak is made explicit instead.
func (d *directory) nullLeaves() {
	for _, l2 := range d.top {
		if l2 == nil {
			continue
		}
		for _, l3 := range l2 {
			if l3 == nil {
				continue
			}
			for _, l4 := range l3 {
				if l4 == nil {
					continue
				}
				for i := range l4 {
					l4[i] = nil
				}
			}
		}
	}
}

// reset discards the whole trie and reinitialises the rwlock, used when the
// fork child cannot even trust that it holds the lock (spec.md §4.8).
func (d *directory) reset() {
	d.top = [dirTop]*dirLevel2{}
	d.mu = sync.RWMutex{}
}
