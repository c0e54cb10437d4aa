//go:build linux

package aio

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunWorkerReadCompletesAndCleansUp(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "aio-worker-read")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString("payload")
	require.NoError(t, err)

	fd := int(f.Fd())
	q, err := globalDirectory.acquire(fd, true)
	require.NoError(t, err)
	q.ref++ // one ref per in-flight request, matching submit() (submit.go)
	q.mu.Unlock()

	req := NewRequest(fd, make([]byte, 7), 0)
	hs := newHandshake()

	done := make(chan struct{})
	go func() {
		runWorker(context.Background(), q, req, ioRead, hs)
		close(done)
	}()

	hs.wait()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not finish")
	}

	require.Equal(t, 0, Error(req))
	require.Equal(t, int64(7), Return(req))
	require.Equal(t, "payload", string(req.Buf))
}

// TestRunWorkerSequencesAppendWrites exercises the append-mode sequencing
// rule end to end (queue_test.go covers the list-walk logic in isolation):
// each run call only returns once its worker holds q.mu and is about to
// link into q, so the second worker either finds the first still on the
// list and waits behind it, or finds it already finished (spec.md §4.2);
// either way the bytes land in submission order.
func TestRunWorkerSequencesAppendWrites(t *testing.T) {
	f, err := os.OpenFile(t.TempDir()+"/aio-worker-append", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	defer f.Close()

	fd := int(f.Fd())

	run := func(b byte) chan struct{} {
		q, err := globalDirectory.acquire(fd, true) // returns the same queue each time, locked
		require.NoError(t, err)
		q.ref++ // one ref per in-flight request, matching submit() (submit.go)
		q.mu.Unlock()

		req := NewRequest(fd, []byte{b}, 0)
		hs := newHandshake()
		done := make(chan struct{})
		go func() {
			runWorker(context.Background(), q, req, ioWrite, hs)
			close(done)
		}()
		hs.wait()
		return done
	}

	d0 := run('a')
	d1 := run('b')

	select {
	case <-d0:
	case <-time.After(time.Second):
		t.Fatal("first write did not finish")
	}
	select {
	case <-d1:
	case <-time.After(time.Second):
		t.Fatal("second write did not finish")
	}

	got, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	require.Equal(t, "ab", string(got))
}
