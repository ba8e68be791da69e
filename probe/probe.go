// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package probe dumps the memory around an address without knowing
// whether that memory is mapped. Each byte is read under a fault guard;
// bytes that cannot be read are reported as unreadable.
package probe

import (
	"unsafe"

	"golang.org/x/segvdump/internal/sigsafe"
)

// Radius is the number of bytes dumped on each side of the target.
const Radius = 32

// Unreadable is printed in place of a byte that faulted.
const Unreadable = "--"

const addrWidth = 2 * int(unsafe.Sizeof(uintptr(0)))

// A Window is the inclusive address range [From, To] around Target.
type Window struct {
	From, To, Target uintptr
}

// WindowAround returns the window of Radius bytes either side of addr,
// clamped so it never wraps around the address space.
func WindowAround(addr uintptr) Window {
	w := Window{Target: addr, To: ^uintptr(0)}
	if addr >= Radius {
		w.From = addr - Radius
	}
	if addr <= ^uintptr(0)-Radius {
		w.To = addr + Radius
	}
	return w
}

// Len returns the number of bytes in the window.
func (w Window) Len() uint64 {
	return uint64(w.To-w.From) + 1
}

// A Handler is a signal handler that a scan temporarily replaces with
// its own fault guard.
type Handler interface {
	Install() error
	Uninstall() error
}

// A Prober dumps memory to Out.
type Prober struct {
	Out *sigsafe.Writer
	// Chain, if set, is uninstalled for the duration of the scan and
	// installed again afterwards. Failures are reported on Out and the
	// scan goes ahead.
	Chain Handler
}

// Dump writes a MEMORY notice, a "FROM <addr> TO <addr>" header and a line
// of space-separated hex bytes for the window around addr. The byte at
// addr is bracketed. Bytes that fault print as Unreadable.
//
// Dump uses the process-wide resumption point and must not be called
// while another Dump or Read is in progress.
func (p *Prober) Dump(addr uintptr) {
	w := p.Out
	if w == nil {
		w = sigsafe.Stdout
	}
	win := WindowAround(addr)

	if p.Chain != nil {
		if err := p.Chain.Uninstall(); err != nil {
			w.Error("probe: remove handler: " + err.Error())
		} else {
			defer func() {
				if err := p.Chain.Install(); err != nil {
					w.Error("probe: restore handler: " + err.Error())
				}
			}()
		}
	}
	r := arm()
	defer r.disarm()

	w.Notice("MEMORY")
	w.SetWidth(0)
	w.WriteText("FROM ")
	w.SetWidth(addrWidth)
	w.WriteHex(uint64(win.From))
	w.SetWidth(0)
	w.WriteText(" TO ")
	w.SetWidth(addrWidth)
	w.WriteHex(uint64(win.To))
	w.WriteChar('\n')

	for a := win.From; ; a++ {
		if a != win.From {
			w.WriteChar(' ')
		}
		if a == win.Target {
			w.WriteChar('[')
		}
		if b, ok := r.load(a); ok {
			w.SetWidth(2)
			w.WriteHex(uint64(b))
		} else {
			w.SetWidth(0)
			w.WriteText(Unreadable)
		}
		if a == win.Target {
			w.WriteChar(']')
		}
		if a == win.To {
			break
		}
	}
	w.WriteChar('\n')
	w.SetWidth(0)
}

// Read copies the bytes starting at addr into buf, stopping at the first
// byte that cannot be read or at the top of the address space. It returns
// the number of bytes copied.
func Read(addr uintptr, buf []byte) int {
	r := arm()
	defer r.disarm()
	for i := range buf {
		b, ok := r.load(addr)
		if !ok {
			return i
		}
		buf[i] = b
		if addr == ^uintptr(0) {
			return i + 1
		}
		addr++
	}
	return len(buf)
}

// Readable reports whether size bytes starting at addr can all be read.
func Readable(addr uintptr, size int) bool {
	// Check for negative size and for (addr + size) overflow.
	if size < 0 || size > 0 && uint64(^uintptr(0)-addr) < uint64(size-1) {
		return false
	}
	var buf [64]byte
	for size > 0 {
		n := size
		if n > len(buf) {
			n = len(buf)
		}
		if Read(addr, buf[:n]) != n {
			return false
		}
		addr += uintptr(n)
		size -= n
	}
	return true
}
