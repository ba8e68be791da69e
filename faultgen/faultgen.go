// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// Package faultgen performs operations that make the kernel deliver
// SIGSEGV to the calling thread. Without a handler, each one crashes the
// process.
package faultgen

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/exp/constraints"
	"golang.org/x/sys/unix"
)

// An Op is one way of producing SIGSEGV.
type Op struct {
	Name string
	Doc  string
	Fn   func()
}

// All lists the operations in the order Sequence runs them.
var All = []Op{
	{"rodata", "write through a pointer to read-only string data", WriteReadOnly},
	{"nil", "write through a nil pointer", WriteNil},
	{"raise", "send SIGSEGV to the current thread", Raise},
	{"heap", "write past the end of a heap allocation", HeapOverrun},
}

// Lookup returns the operation called name.
func Lookup(name string) (Op, bool) {
	for _, op := range All {
		if op.Name == name {
			return op, true
		}
	}
	return Op{}, false
}

// Sequence runs every operation in order. With a fatal handler in place
// only the first one runs to its fault.
func Sequence(run func(fn func())) {
	for _, op := range All {
		run(op.Fn)
	}
}

var greeting = "Hello, world, de-gozaru!"

// WriteReadOnly stores into the bytes of a string literal, which live in
// the read-only data segment.
//
//go:noinline
func WriteReadOnly() {
	*unsafe.StringData(greeting) = 'X'
}

var nilInt *int

// WriteNil stores through a nil pointer.
//
// Make it noinline so registers are spilled before entering.
//
//go:noinline
func WriteNil() {
	*nilInt = 0
}

// Raise sends SIGSEGV to the calling thread without touching memory.
func Raise() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := unix.Tgkill(unix.Getpid(), unix.Gettid(), unix.SIGSEGV); err != nil {
		panic(fmt.Sprintf("faultgen: tgkill: %v", err))
	}
}

// HeapOverrun allocates one byte and modifies the byte two past it.
//
//go:noinline
func HeapOverrun() {
	b := Fence(1)
	p := (*byte)(unsafe.Add(unsafe.Pointer(&b[0]), 2))
	*p += 4
}

// Fence returns a fresh n-byte allocation that ends exactly where an
// inaccessible guard page begins, so any access past its end faults.
// The memory is never freed.
func Fence(n int) []byte {
	page := os.Getpagesize()
	size := align(n, page)
	if size == 0 {
		size = page
	}
	m, err := unix.Mmap(-1, 0, size+page, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		panic(fmt.Sprintf("faultgen: mmap: %v", err))
	}
	if err := unix.Mprotect(m[size:], unix.PROT_NONE); err != nil {
		panic(fmt.Sprintf("faultgen: mprotect: %v", err))
	}
	return m[size-n : size : size]
}

// align rounds v up to a multiple of a.
func align[T constraints.Integer](v, a T) T {
	return (v + a - 1) / a * a
}
