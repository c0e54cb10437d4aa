//go:build linux

package aio

import (
	"os"
	"syscall"

	"github.com/sirupsen/logrus"
)

func signalFor(signo int) syscall.Signal { return syscall.Signal(signo) }

// SI_ASYNCIO is the si_code the original stamps on the fabricated siginfo
// for AIO signal completions (glibc/bits/siginfo-consts.h). It has no
// portable Go syscall surface to reproduce exactly (see Deliverer below);
// it is kept so a Deliverer can report it faithfully.
const SI_ASYNCIO = -4

// SignalDelivery is what a Deliverer receives for a NotifySignal
// completion, mirroring the siginfo_t the original's cleanup() fabricates:
// signal number, sigval, origin code, and sender pid/uid (spec.md §4.4
// step g).
type SignalDelivery struct {
	Signo int
	Value int
	Code  int
	Pid   int
	Uid   int
}

// Deliverer is the pluggable completion-notification sink. Real POSIX
// realtime-signal queueing (sigqueue(3), carrying a sigval payload) has no
// portable Go wrapper and is explicitly out of scope (spec.md §1,
// "signal-queueing syscall mechanics" is an external collaborator); a
// Deliverer is how an embedding application — or a test — observes or
// replaces that mechanism.
type Deliverer interface {
	DeliverSignal(SignalDelivery)
	DeliverCallback(fn func(value int), value int, attrs *TaskAttrs)
}

// logDeliverer is the default Deliverer: it sends a best-effort plain
// signal to the current process (no payload, since plain kill(2) cannot
// carry a sigval) and logs the outcome, then invokes callbacks directly.
type logDeliverer struct{}

func (logDeliverer) DeliverSignal(d SignalDelivery) {
	log.WithFields(logrus.Fields{
		"signo": d.Signo, "value": d.Value, "code": d.Code, "pid": d.Pid, "uid": d.Uid,
	}).Debug("aio: signal completion notification (best-effort: no sigqueue payload channel in Go)")
	proc, err := os.FindProcess(d.Pid)
	if err != nil {
		return
	}
	_ = proc.Signal(signalFor(d.Signo))
}

func (logDeliverer) DeliverCallback(fn func(value int), value int, _ *TaskAttrs) {
	if fn != nil {
		fn(value)
	}
}

var deliverer Deliverer = logDeliverer{}

// SetDeliverer overrides the package's completion-notification sink, e.g.
// in tests that need to observe SignalDelivery without relying on a real
// OS signal round-trip.
func SetDeliverer(d Deliverer) {
	if d == nil {
		d = logDeliverer{}
	}
	deliverer = d
}

// deliverCompletion runs spec.md §4.4 step g against the package-wide
// Deliverer.
func deliverCompletion(n Notify) {
	switch n.Kind {
	case NotifyNone:
		return
	case NotifySignal:
		deliverer.DeliverSignal(SignalDelivery{
			Signo: n.Signo,
			Value: n.Value,
			Code:  SI_ASYNCIO,
			Pid:   os.Getpid(),
			Uid:   os.Getuid(),
		})
	case NotifyCallback:
		deliverer.DeliverCallback(n.Fn, n.Value, n.Attrs)
	}
}
