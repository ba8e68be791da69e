// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux && amd64 && cgo

// Package handler reports a SIGSEGV and then terminates the process.
//
// A Handler is installed once. Code run under Handler.Run that faults,
// or that raises SIGSEGV with kill or tgkill, is never resumed: the
// handler prints the registers at the time of the signal and the memory
// around the fault address to standard output and exits with ExitStatus.
package handler

import (
	"errors"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"syscall"

	"golang.org/x/segvdump/arch"
	"golang.org/x/segvdump/internal/fault"
	"golang.org/x/segvdump/internal/sigsafe"
	"golang.org/x/segvdump/probe"
	"golang.org/x/segvdump/regs"
)

// ExitStatus is the status the process exits with after a fault.
const ExitStatus = 255

// State is the lifecycle state of a Handler.
type State int32

const (
	Uninstalled State = iota
	Installed
	Handling
	Terminated
)

func (s State) String() string {
	switch s {
	case Uninstalled:
		return "uninstalled"
	case Installed:
		return "installed"
	case Handling:
		return "handling"
	case Terminated:
		return "terminated"
	}
	return "State(?)"
}

// A SetupError is returned when the handler cannot be installed.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return "install SIGSEGV handler: " + e.Op + ": " + e.Err.Error()
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

var errInstalled = errors.New("already installed")

// A Handler is the process's top-level SIGSEGV handler. Only one
// Handler may be installed at a time.
type Handler struct {
	arch  *arch.Architecture
	out   *sigsafe.Writer
	state atomic.Int32
	sigs  chan os.Signal
	snap  fault.Snapshot

	// chain is the capture handler the memory probe steps around.
	chain probe.Handler

	// exit terminates the process. Tests replace it.
	exit func(int)
}

// New returns an uninstalled Handler that reports to w, or to standard
// output if w is nil.
func New(w *sigsafe.Writer) *Handler {
	if w == nil {
		w = sigsafe.Stdout
	}
	return &Handler{
		arch:  &arch.AMD64,
		out:   w,
		chain: shim{},
		exit:  os.Exit,
	}
}

// State returns the handler's current state.
func (h *Handler) State() State {
	return State(h.state.Load())
}

// Install registers h for SIGSEGV. It fails with a *SetupError if h is
// already installed, if the register table does not match the machine
// context layout, or if the operating system rejects the registration.
func (h *Handler) Install() error {
	if !h.state.CompareAndSwap(int32(Uninstalled), int32(Installed)) {
		return &SetupError{Op: "install", Err: errInstalled}
	}
	if err := fault.CheckLayout(h.arch); err != nil {
		h.state.Store(int32(Uninstalled))
		return &SetupError{Op: "check register layout", Err: err}
	}
	// A raised SIGSEGV kills the process unless os/signal wants it.
	h.sigs = make(chan os.Signal, 1)
	signal.Notify(h.sigs, syscall.SIGSEGV)
	fault.Reset()
	if err := fault.Install(); err != nil {
		signal.Stop(h.sigs)
		h.state.Store(int32(Uninstalled))
		return &SetupError{Op: "sigaction", Err: err}
	}
	return nil
}

// Uninstall removes h. Faults after Uninstall crash the process the
// usual Go way.
func (h *Handler) Uninstall() error {
	if h.State() == Uninstalled {
		return nil
	}
	if err := fault.Uninstall(); err != nil {
		return err
	}
	signal.Stop(h.sigs)
	fault.Reset()
	h.state.Store(int32(Uninstalled))
	return nil
}

// Run calls fn on a locked OS thread with panic-on-fault enabled. If fn
// faults, or raises SIGSEGV on its own thread, Run reports the signal and
// exits. Otherwise it returns when fn does. Panics that are not faults
// are passed through.
func (h *Handler) Run(fn func()) {
	if h.State() != Installed {
		panic("handler: Run on " + h.State().String() + " handler")
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		if !probe.IsFault(v) {
			panic(v)
		}
		fault.Freeze()
		addr, ok := probe.FaultAddr(v)
		if !h.handle(addr, ok) {
			panic(v)
		}
	}()

	fn()

	// fn returned, so a captured signal was either sent rather than taken
	// as a fault, or a fault fn recovered from. The runtime has queued a
	// sent one for os/signal.
	fault.Freeze()
	if fault.Load(&h.snap) && h.snap.FromUser() {
		<-h.sigs
		h.handle(0, false)
		return
	}
	fault.Reset()
}

// handle reports the captured signal and exits. addr is the fault
// address the runtime saw, if known. It returns false, without output, if
// the captured signal is not SIGSEGV.
func (h *Handler) handle(addr uintptr, known bool) (handled bool) {
	if !h.state.CompareAndSwap(int32(Installed), int32(Handling)) {
		h.out.Error("fault while handling fault")
		h.exit(ExitStatus)
		return true
	}
	if !fault.Load(&h.snap) || h.snap.Signo != syscall.SIGSEGV {
		fault.Reset()
		h.state.Store(int32(Installed))
		return false
	}
	defer func() {
		// A fault the probe could not contain.
		if v := recover(); v != nil {
			h.out.Error("fault while handling fault")
			h.state.Store(int32(Terminated))
			h.exit(ExitStatus)
			handled = true
		}
	}()

	if !known {
		addr = h.snap.Addr
	} else if addr != h.snap.Addr {
		h.out.Error("signal context is not from this fault")
	}
	regs.Dump(h.out, h.arch, &h.snap)
	p := probe.Prober{Out: h.out, Chain: h.chain}
	p.Dump(addr)

	h.state.Store(int32(Terminated))
	h.exit(ExitStatus)
	return true
}

// shim is the capture handler as seen by the memory probe, which
// removes it while it scans.
type shim struct{}

func (shim) Install() error   { return fault.Install() }
func (shim) Uninstall() error { return fault.Uninstall() }
