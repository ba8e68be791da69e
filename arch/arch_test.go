// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arch

import (
	"testing"
)

func TestAMD64Table(t *testing.T) {
	want := []string{
		"R8", "R9", "R10", "R11", "R12", "R13", "R14", "R15",
		"RAX", "RBP", "RBX", "RCX", "RDI", "RDX", "RIP", "RSI", "RSP",
		"CR2", "CSGSFS", "EFL", "ERR", "OLDMASK", "TRAPNO",
	}
	a := &AMD64
	if len(a.Registers) != len(want) {
		t.Fatalf("got %d registers, want %d", len(a.Registers), len(want))
	}
	seen := make(map[int]string)
	for i, r := range a.Registers {
		if r.Name != want[i] {
			t.Errorf("register %d is %s, want %s", i, r.Name, want[i])
		}
		if r.Offset < 0 || r.Offset+a.RegisterSize > a.GRegsSize || r.Offset%a.RegisterSize != 0 {
			t.Errorf("%s: bad offset %d", r.Name, r.Offset)
		}
		if prev, ok := seen[r.Offset]; ok {
			t.Errorf("%s and %s share offset %d", prev, r.Name, r.Offset)
		}
		seen[r.Offset] = r.Name
	}
}

func TestValue(t *testing.T) {
	a := &AMD64
	gregs := make([]byte, a.GRegsSize)
	for i := range gregs {
		gregs[i] = byte(i)
	}
	rip, ok := a.Lookup("RIP")
	if !ok {
		t.Fatal("no RIP")
	}
	// RIP is gregs[16] on linux/amd64.
	if rip.Offset != 128 {
		t.Errorf("RIP offset = %d, want 128", rip.Offset)
	}
	if got, want := a.Value(gregs, rip), uint64(0x8786858483828180); got != want {
		t.Errorf("Value(RIP) = %#x, want %#x", got, want)
	}
	if _, ok := a.Lookup("XMM0"); ok {
		t.Errorf("Lookup(XMM0) succeeded")
	}
}

func TestHexWidth(t *testing.T) {
	if got := AMD64.HexWidth(); got != 16 {
		t.Errorf("HexWidth() = %d, want 16", got)
	}
}

func TestUintBadSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Uint of short buffer did not panic")
		}
	}()
	AMD64.Uint(make([]byte, 3))
}
