// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux && amd64 && cgo

// Package regs prints the registers of a captured fault.
package regs

import (
	"golang.org/x/segvdump/arch"
	"golang.org/x/segvdump/internal/fault"
	"golang.org/x/segvdump/internal/sigsafe"
)

// NameWidth is the column width of register names.
const NameWidth = 8

// Dump writes a REGISTERS notice followed by one "NAME: value" line per
// register in a's table, in table order.
func Dump(w *sigsafe.Writer, a *arch.Architecture, s *fault.Snapshot) {
	w.Notice("REGISTERS")
	for _, r := range a.Registers {
		w.SetWidth(NameWidth)
		w.WriteText(r.Name)
		w.SetWidth(0)
		w.WriteText(": ")
		w.SetWidth(a.HexWidth())
		w.WriteHex(s.Register(a, r))
		w.WriteChar('\n')
	}
	w.SetWidth(0)
}
