// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux && amd64 && cgo

// Package fault captures the machine context of SIGSEGV.
//
// Install places a small C handler in front of the Go runtime's SIGSEGV
// handler. When the kernel delivers SIGSEGV the C handler copies the
// signal information and the general registers into a single static
// slot and then calls the runtime's handler, which turns the fault into
// a panic (or, for a signal sent with kill or tgkill, queues it for
// os/signal). Go code reads the slot afterwards with Load.
//
// Only the first signal after Install or Reset is captured; later ones
// pass straight through to the runtime. The slot is process-global.
package fault

import (
	"fmt"
	"syscall"

	"golang.org/x/segvdump/arch"
)

// Signal codes from <bits/siginfo-consts.h>.
const (
	CodeUser   = 0    // SI_USER: sent by kill
	CodeTkill  = -6   // SI_TKILL: sent by tkill or tgkill
	CodeMapErr = 1    // SEGV_MAPERR: address not mapped
	CodeAccErr = 2    // SEGV_ACCERR: invalid permissions
	CodeKernel = 0x80 // SI_KERNEL: e.g. a non-canonical address
)

// A Snapshot is a copy of the context of a captured signal.
type Snapshot struct {
	Signo syscall.Signal
	Code  int32
	// Addr is si_addr. For user-sent signals the kernel stores the
	// sender's pid and uid in the same bytes, so Addr is not an address.
	Addr uintptr
	// GRegs is mcontext_t.gregs, in machine byte order.
	GRegs [GRegsSize]byte
}

// FromUser reports whether the signal was sent by a process rather than
// raised by the kernel for a faulting access.
func (s *Snapshot) FromUser() bool {
	return s.Code <= CodeUser
}

// Register returns the value of r in the snapshot.
func (s *Snapshot) Register(a *arch.Architecture, r arch.Register) uint64 {
	return a.Value(s.GRegs[:], r)
}

// CheckLayout verifies that every register in a's table has the offset
// the C headers give it.
func CheckLayout(a *arch.Architecture) error {
	if a.GRegsSize != GRegsSize {
		return fmt.Errorf("register block is %d bytes, want %d", a.GRegsSize, GRegsSize)
	}
	for _, r := range a.Registers {
		i, ok := regIndex(r.Name)
		if !ok {
			return fmt.Errorf("register %s is not in mcontext_t", r.Name)
		}
		if want := i * a.RegisterSize; r.Offset != want {
			return fmt.Errorf("register %s at offset %d, want %d", r.Name, r.Offset, want)
		}
	}
	return nil
}
