// abort.go — the host-writable cancellation channel (spec.md §5).
//
// The spec describes this as "a single byte of shared storage"; since the
// host and the evaluator are still two different goroutines from Go's
// point of view even though the core itself stays single-threaded, an
// atomic is the honest representation rather than a bare bool, grounded on
// the same reasoning the teacher applies to its own cross-goroutine runtime
// flags.
package evl

import "sync/atomic"

// AbortFlag is read once per evaluator driver-loop iteration and written at
// any time by the host.
type AbortFlag struct{ v int32 }

func (a *AbortFlag) Set()        { atomic.StoreInt32(&a.v, 1) }
func (a *AbortFlag) Clear()      { atomic.StoreInt32(&a.v, 0) }
func (a *AbortFlag) IsSet() bool { return atomic.LoadInt32(&a.v) != 0 }
