// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package probe

import (
	"runtime"
	"runtime/debug"
	"unsafe"
)

// guardState is the state of the resumption point.
type guardState int32

const (
	idle guardState = iota
	armed
	tripped
)

func (s guardState) String() string {
	switch s {
	case idle:
		return "idle"
	case armed:
		return "armed"
	case tripped:
		return "tripped"
	}
	return "?"
}

// A resumption is the point a faulting read returns to. There is exactly
// one, shared by every scan in the process; it is not re-entrant.
//
// Arming it turns on panic-on-fault for the calling goroutine, so a read
// of unmapped or protected memory makes the runtime raise a panic at the
// read instead of crashing the process. resume recovers that panic and
// the scan continues with the next byte.
type resumption struct {
	state   guardState
	onFault bool // panic-on-fault setting before arm
}

var point resumption

// arm captures the resumption point for the calling goroutine.
// Arming a point that is already armed panics.
func arm() *resumption {
	r := &point
	if r.state != idle {
		panic("probe: resumption point already " + r.state.String())
	}
	r.onFault = debug.SetPanicOnFault(true)
	r.state = armed
	return r
}

// disarm releases the point and restores the goroutine's previous
// panic-on-fault setting.
func (r *resumption) disarm() {
	if r.state == idle {
		panic("probe: disarm of idle resumption point")
	}
	debug.SetPanicOnFault(r.onFault)
	r.state = idle
}

// load reads the byte at addr. ok is false if the read faulted.
func (r *resumption) load(addr uintptr) (b byte, ok bool) {
	if r.state != armed {
		panic("probe: guarded read on " + r.state.String() + " resumption point")
	}
	b, ok = r.try(addr)
	if r.state == tripped {
		r.state = armed
	}
	return b, ok
}

func (r *resumption) try(addr uintptr) (b byte, ok bool) {
	defer r.resume(&ok)
	return *(*byte)(unsafe.Pointer(addr)), true
}

// resume must be deferred directly around a guarded access. It recovers
// a fault, trips the point and clears *ok; load arms the point again once
// the read has been abandoned. Any other panic continues unwinding, as
// does a fault when the point is not armed.
func (r *resumption) resume(ok *bool) {
	if r.state != armed {
		return
	}
	e := recover()
	if e == nil {
		return
	}
	if !IsFault(e) {
		panic(e)
	}
	r.state = tripped
	*ok = false
}

// nilDeref is the value the runtime panics with for a fault below the
// first page, which carries no address.
var nilDeref = func() (e runtime.Error) {
	defer func() {
		e, _ = recover().(runtime.Error)
	}()
	var p *byte
	_ = *p
	return nil
}()

// IsFault reports whether the recovered panic value v was raised by the
// runtime for an invalid memory access, as opposed to an ordinary panic.
func IsFault(v interface{}) bool {
	e, ok := v.(runtime.Error)
	if !ok {
		return false
	}
	if _, ok := e.(interface{ Addr() uintptr }); ok {
		return true
	}
	return nilDeref != nil && e == nilDeref
}

// FaultAddr returns the address carried by a fault panic, if any.
func FaultAddr(v interface{}) (uintptr, bool) {
	a, ok := v.(interface{ Addr() uintptr })
	if !ok || !IsFault(v) {
		return 0, false
	}
	return a.Addr(), true
}
