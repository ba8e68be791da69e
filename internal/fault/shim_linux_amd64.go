// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux && amd64 && cgo

package fault

/*
#define _GNU_SOURCE
#include <errno.h>
#include <signal.h>
#include <stdint.h>
#include <string.h>
#include <ucontext.h>

_Static_assert(NGREG == 23, "unexpected mcontext_t layout");

typedef struct {
	int signo;
	int code;
	uintptr_t addr;
	greg_t gregs[NGREG];
} segv_snapshot;

static segv_snapshot segv_slot;
static volatile sig_atomic_t segv_valid;
static volatile sig_atomic_t segv_frozen;
static struct sigaction segv_next;
static int segv_installed;

// segv_capture runs on the signal stack with the faulting thread frozen.
// It copies the context into the slot, replacing any earlier signal unless
// the slot is frozen, and hands the signal to the handler that was
// installed before it, which is the Go runtime's. Only async-signal-safe
// operations are allowed here.
static void segv_capture(int sig, siginfo_t *info, void *uctx) {
	if (!segv_frozen) {
		segv_valid = 0;
		ucontext_t *uc = (ucontext_t *)uctx;
		int i;

		segv_slot.signo = info->si_signo;
		segv_slot.code = info->si_code;
		segv_slot.addr = (uintptr_t)info->si_addr;
		for (i = 0; i < NGREG; i++) {
			segv_slot.gregs[i] = uc->uc_mcontext.gregs[i];
		}
		segv_valid = 1;
	}
	if (segv_next.sa_flags & SA_SIGINFO) {
		segv_next.sa_sigaction(sig, info, uctx);
	} else if (segv_next.sa_handler != SIG_DFL && segv_next.sa_handler != SIG_IGN) {
		segv_next.sa_handler(sig);
	} else {
		// Nobody to chain to: restore the default action so the
		// faulting instruction kills the process when it reruns.
		sigaction(sig, &segv_next, NULL);
	}
}

static int segv_install(void) {
	struct sigaction act;

	if (segv_installed) {
		return EBUSY;
	}
	memset(&act, 0, sizeof act);
	sigfillset(&act.sa_mask);
	sigdelset(&act.sa_mask, SIGSEGV);
	act.sa_sigaction = segv_capture;
	act.sa_flags = SA_SIGINFO | SA_NODEFER | SA_ONSTACK | SA_RESTART;
	if (sigaction(SIGSEGV, &act, &segv_next) != 0) {
		return errno;
	}
	segv_installed = 1;
	return 0;
}

static int segv_uninstall(void) {
	if (!segv_installed) {
		return 0;
	}
	if (sigaction(SIGSEGV, &segv_next, NULL) != 0) {
		return errno;
	}
	segv_installed = 0;
	return 0;
}

static int segv_load(segv_snapshot *out) {
	if (!segv_valid) {
		return 0;
	}
	*out = segv_slot;
	return 1;
}

static int segv_captured(void) {
	return segv_valid != 0;
}

static void segv_freeze(void) {
	segv_frozen = 1;
}

static void segv_reset(void) {
	segv_valid = 0;
	segv_frozen = 0;
}

static int segv_reg_index(int i) {
	static const int regs[] = {
		REG_R8, REG_R9, REG_R10, REG_R11, REG_R12, REG_R13, REG_R14, REG_R15,
		REG_RDI, REG_RSI, REG_RBP, REG_RBX, REG_RDX, REG_RAX, REG_RCX, REG_RSP,
		REG_RIP, REG_EFL, REG_CSGSFS, REG_ERR, REG_TRAPNO, REG_OLDMASK, REG_CR2,
	};
	if (i < 0 || i >= (int)(sizeof regs / sizeof regs[0])) {
		return -1;
	}
	return regs[i];
}
*/
import "C"

import (
	"syscall"
	"unsafe"
)

// GRegsSize is the size of mcontext_t.gregs in bytes.
const GRegsSize = 23 * 8

// Names of the registers in <sys/ucontext.h> order, matching segv_reg_index.
var cRegNames = [...]string{
	"R8", "R9", "R10", "R11", "R12", "R13", "R14", "R15",
	"RDI", "RSI", "RBP", "RBX", "RDX", "RAX", "RCX", "RSP",
	"RIP", "EFL", "CSGSFS", "ERR", "TRAPNO", "OLDMASK", "CR2",
}

// Install puts the capture handler in front of the current SIGSEGV
// handler. It fails with EBUSY if the capture handler is already
// installed.
func Install() error {
	if errno := C.segv_install(); errno != 0 {
		return syscall.Errno(errno)
	}
	return nil
}

// Uninstall restores the SIGSEGV handler that Install replaced.
// It is a no-op if the capture handler is not installed.
func Uninstall() error {
	if errno := C.segv_uninstall(); errno != 0 {
		return syscall.Errno(errno)
	}
	return nil
}

// Load copies the captured snapshot into s. It reports false, leaving s
// untouched, if no signal has been captured since the last Reset.
// Unless the slot is frozen a signal may replace it during the copy.
func Load(s *Snapshot) bool {
	var cs C.segv_snapshot
	if C.segv_load(&cs) == 0 {
		return false
	}
	s.Signo = syscall.Signal(cs.signo)
	s.Code = int32(cs.code)
	s.Addr = uintptr(cs.addr)
	copy(s.GRegs[:], (*[GRegsSize]byte)(unsafe.Pointer(&cs.gregs[0]))[:])
	return true
}

// Captured reports whether a signal has been captured since the last Reset.
func Captured() bool {
	return C.segv_captured() != 0
}

// Freeze stops the slot from recording further signals, so it keeps the
// most recent one until Reset.
func Freeze() {
	C.segv_freeze()
}

// Reset empties and unfreezes the snapshot slot.
func Reset() {
	C.segv_reset()
}

// regIndex returns the gregs index of the named register.
func regIndex(name string) (int, bool) {
	for i, n := range cRegNames {
		if n == name {
			return int(C.segv_reg_index(C.int(i))), true
		}
	}
	return 0, false
}
