//go:build linux

package aio

// reservedHighBit is the bit aio_error masks off before returning
// (spec.md §4.4, §4.7): reserved for an external list-notification layer
// (lio_listio, out of scope here) to mark "this request is part of a
// batch" without disturbing the plain errno encoding.
const reservedHighBit = uint32(1) << 31

// Error returns the low 31 bits of req's error slot: IN_PROGRESS while the
// request is outstanding, 0 on success, or the completion errno/ECANCELED
// otherwise (spec.md §4.7 aio_error).
func Error(req *Request) int {
	v := req.errWord.load()
	return int(uint32(v) &^ reservedHighBit)
}

// Return returns req's result slot verbatim: a byte count on success, -1
// on failure (spec.md §4.7 aio_return). Calling it before Error reports
// completion has no defined contract, per spec.md §4.7 and §8 property 2.
func Return(req *Request) int64 {
	return req.ret
}
