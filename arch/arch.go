// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arch contains architecture-specific definitions.
package arch

import (
	"encoding/binary"
)

// A Register names one slot of a saved machine context.
type Register struct {
	Name string
	// Offset is the byte offset of the register in the saved
	// general-purpose register block.
	Offset int
}

// Architecture defines the architecture-specific details for a given machine.
type Architecture struct {
	// PointerSize is the size of a pointer, in bytes.
	PointerSize int
	// RegisterSize is the size of one saved register, in bytes.
	RegisterSize int
	// ByteOrder is the byte order for registers and pointers.
	ByteOrder binary.ByteOrder
	// Registers lists the registers to report, in report order.
	// Offsets must match the layout the kernel uses for the saved
	// context; nothing checks them at run time.
	Registers []Register
	// GRegsSize is the size of the saved register block, in bytes.
	GRegsSize int
}

// Uint decodes a register-sized value from buf.
func (a *Architecture) Uint(buf []byte) uint64 {
	if len(buf) != a.RegisterSize {
		panic("bad RegisterSize")
	}
	switch a.RegisterSize {
	case 4:
		return uint64(a.ByteOrder.Uint32(buf[:4]))
	case 8:
		return a.ByteOrder.Uint64(buf[:8])
	}
	panic("no RegisterSize")
}

// Value returns the value of r in the saved register block gregs.
func (a *Architecture) Value(gregs []byte, r Register) uint64 {
	return a.Uint(gregs[r.Offset : r.Offset+a.RegisterSize])
}

// HexWidth is the number of hex digits needed to print a register.
func (a *Architecture) HexWidth() int {
	return 2 * a.RegisterSize
}

// Indices of the general registers in mcontext_t.gregs on linux/amd64,
// from <sys/ucontext.h>.
const (
	regR8 = iota
	regR9
	regR10
	regR11
	regR12
	regR13
	regR14
	regR15
	regRDI
	regRSI
	regRBP
	regRBX
	regRDX
	regRAX
	regRCX
	regRSP
	regRIP
	regEFL
	regCSGSFS
	regERR
	regTRAPNO
	regOLDMASK
	regCR2
	nGRegAMD64
)

func amd64(name string, index int) Register {
	return Register{Name: name, Offset: 8 * index}
}

var AMD64 = Architecture{
	PointerSize:  8,
	RegisterSize: 8,
	ByteOrder:    binary.LittleEndian,
	GRegsSize:    8 * nGRegAMD64,
	Registers: []Register{
		amd64("R8", regR8),
		amd64("R9", regR9),
		amd64("R10", regR10),
		amd64("R11", regR11),
		amd64("R12", regR12),
		amd64("R13", regR13),
		amd64("R14", regR14),
		amd64("R15", regR15),
		amd64("RAX", regRAX),
		amd64("RBP", regRBP),
		amd64("RBX", regRBX),
		amd64("RCX", regRCX),
		amd64("RDI", regRDI),
		amd64("RDX", regRDX),
		amd64("RIP", regRIP),
		amd64("RSI", regRSI),
		amd64("RSP", regRSP),
		amd64("CR2", regCR2),
		amd64("CSGSFS", regCSGSFS),
		amd64("EFL", regEFL),
		amd64("ERR", regERR),
		amd64("OLDMASK", regOLDMASK),
		amd64("TRAPNO", regTRAPNO),
	},
}

// Lookup returns the register named name.
func (a *Architecture) Lookup(name string) (Register, bool) {
	for _, r := range a.Registers {
		if r.Name == name {
			return r, true
		}
	}
	return Register{}, false
}
