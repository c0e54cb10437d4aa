//go:build linux

package aio

// OpCode identifies the operation a Request describes. For syncs, the
// submit path (Fsync) passes the sync flavour directly rather than
// consulting OpCode, matching spec.md §3.
type OpCode int

const (
	OpNop OpCode = iota
	OpRead
	OpWrite
)

// NotifyKind selects how completion is reported.
type NotifyKind int

const (
	NotifyNone NotifyKind = iota
	NotifySignal
	NotifyCallback
)

// TaskAttrs carries task-creation attributes an application wants the
// worker goroutine configured with when NotifyKind is NotifyCallback.
// Goroutines have no stack-size or guard-page knobs (spec.md §4.5 step 5),
// so this is a placeholder transported unchanged to the callback rather
// than acted on; it exists so callers porting code that configures
// sigev_notify_attributes have somewhere to put the value.
type TaskAttrs struct {
	Hint any
}

// Notify is the completion notification descriptor carried on a Request,
// matching spec.md §6's NONE/SIGNAL/CALLBACK union.
type Notify struct {
	Kind NotifyKind

	// SIGNAL fields.
	Signo int
	Value int

	// CALLBACK fields.
	Fn    func(value int)
	Attrs *TaskAttrs
}

// Request is the caller-owned record describing one AIO request. The core
// reads Fd/Buf/NBytes/Offset/Notify and writes the result/error slots
// exactly once; OpCode is not consulted, since the operation is chosen by
// the entry point (Read, Write, Fsync) the request is passed to; the caller must not reuse or free a Request until
// Error returns a value other than IN_PROGRESS.
type Request struct {
	Fd     int
	OpCode OpCode
	Buf    []byte
	NBytes int
	Offset int64
	Notify Notify

	// ret is written once by the worker before errWord is published; the
	// happens-before edge is the atomic store/load pair on errWord (see
	// wakeup.go), so ret itself need not be atomic.
	ret int64

	errWord *atomicWord

	core requestCore
}

// requestCore holds fields the core uses internally that are not part of
// the wire contract (spec.md §3): lio_listio batching links (unused by
// this subset, kept so a future batching layer has somewhere to attach
// without changing Request's shape) and a diagnostic owner id, set to the
// id of the worker currently servicing the request.
type requestCore struct {
	next, prev *Request
	ownerID    uint64
}

// NewRequest returns a Request with its error slot ready for submission.
func NewRequest(fd int, buf []byte, offset int64) *Request {
	return &Request{
		Fd:      fd,
		Buf:     buf,
		NBytes:  len(buf),
		Offset:  offset,
		errWord: newAtomicWord(inProgress),
	}
}
