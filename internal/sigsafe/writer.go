// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sigsafe writes text and fixed-width hex to a file descriptor
// without allocating, buffering across calls, or taking locks. It is the
// only output path used after a fault has been taken.
package sigsafe

import (
	"golang.org/x/sys/unix"
)

// MaxWidth is the largest field width a Writer supports.
const MaxWidth = 64

const hexDigits = "0123456789abcdef"

// ANSI sequences used when Color is set.
const (
	ansiError   = "\033[31;1m"
	ansiInfo    = "\033[34;1m"
	ansiDefault = "\033[0m"
)

// A Writer emits bytes on fd with one write(2) per call. Short writes and
// write errors are dropped.
//
// The zero width means "as-is" for WriteText. WriteHex requires a width.
type Writer struct {
	fd    int
	width int
	buf   [MaxWidth]byte

	// Color enables ANSI highlighting of notices and errors.
	Color bool
}

// NewWriter returns a Writer on fd with width 0.
func NewWriter(fd int) *Writer {
	return &Writer{fd: fd}
}

// Stdout is a Writer on file descriptor 1.
var Stdout = NewWriter(1)

// SetWidth sets the field width used by subsequent writes. Widths above
// MaxWidth are clamped; negative widths are treated as 0.
func (w *Writer) SetWidth(n int) {
	switch {
	case n < 0:
		n = 0
	case n > MaxWidth:
		n = MaxWidth
	}
	w.width = n
}

// Width returns the current field width.
func (w *Writer) Width() int {
	return w.width
}

// WriteText writes s. With a non-zero width it writes exactly that many
// bytes, left-justified, padding with spaces or truncating.
func (w *Writer) WriteText(s string) {
	if w.width == 0 {
		for len(s) > 0 {
			n := copy(w.buf[:], s)
			w.flush(n)
			s = s[n:]
		}
		return
	}
	for i := 0; i < w.width; i++ {
		if i < len(s) {
			w.buf[i] = s[i]
		} else {
			w.buf[i] = ' '
		}
	}
	w.flush(w.width)
}

// WriteHex writes v as exactly Width lowercase hex digits, zero-padded.
// Digits beyond the width are dropped from the high end.
func (w *Writer) WriteHex(v uint64) {
	if w.width == 0 {
		panic("sigsafe: WriteHex without width")
	}
	for i := w.width - 1; i >= 0; i-- {
		w.buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	w.flush(w.width)
}

// WriteChar writes the single byte b, ignoring the width.
func (w *Writer) WriteChar(b byte) {
	w.buf[0] = b
	w.flush(1)
}

// Notice writes a section notice line such as "REGISTERS".
func (w *Writer) Notice(section string) {
	w.line(ansiInfo, section)
}

// Error writes msg as a highlighted line.
func (w *Writer) Error(msg string) {
	w.line(ansiError, msg)
}

func (w *Writer) line(color, s string) {
	width := w.width
	w.width = 0
	if w.Color {
		w.WriteText(color)
	}
	w.WriteText(s)
	w.WriteChar('\n')
	if w.Color {
		w.WriteText(ansiDefault)
	}
	w.width = width
}

func (w *Writer) flush(n int) {
	unix.Write(w.fd, w.buf[:n])
}
