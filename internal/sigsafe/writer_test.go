// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sigsafe

import (
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

// capture runs f with a Writer on the write end of a pipe and returns
// everything written.
func capture(t *testing.T, f func(w *Writer)) string {
	t.Helper()
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(p[0])
	f(NewWriter(p[1]))
	unix.Close(p[1])

	var sb strings.Builder
	var buf [512]byte
	for {
		n, err := unix.Read(p[0], buf[:])
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if n == 0 {
			break
		}
		sb.Write(buf[:n])
	}
	return sb.String()
}

func TestWriteText(t *testing.T) {
	tests := []struct {
		width int
		in    string
		want  string
	}{
		{0, "RAX", "RAX"},
		{0, "", ""},
		{8, "RAX", "RAX     "},
		{8, "OLDMASK", "OLDMASK "},
		{3, "CSGSFS", "CSG"},
		{2, "", "  "},
		{0, strings.Repeat("x", 3*MaxWidth+5), strings.Repeat("x", 3*MaxWidth+5)},
	}
	for _, test := range tests {
		got := capture(t, func(w *Writer) {
			w.SetWidth(test.width)
			w.WriteText(test.in)
		})
		if got != test.want {
			t.Errorf("width %d, WriteText(%q) = %q, want %q", test.width, test.in, got, test.want)
		}
	}
}

func TestWriteHex(t *testing.T) {
	tests := []struct {
		width int
		v     uint64
		want  string
	}{
		{2, 0x10, "10"},
		{2, 0xff, "ff"},
		{2, 0x3, "03"},
		{2, 0x1ab, "ab"},
		{8, 0xdeadbeef, "deadbeef"},
		{16, 0xc000012340, "000000c000012340"},
		{16, ^uint64(0), "ffffffffffffffff"},
		{20, 1, "00000000000000000001"},
	}
	for _, test := range tests {
		got := capture(t, func(w *Writer) {
			w.SetWidth(test.width)
			w.WriteHex(test.v)
		})
		if got != test.want {
			t.Errorf("width %d, WriteHex(%#x) = %q, want %q", test.width, test.v, got, test.want)
		}
	}
}

func TestWriteHexNoWidth(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("WriteHex with width 0 did not panic")
		}
	}()
	w := NewWriter(-1)
	w.WriteHex(1)
}

func TestSetWidthClamp(t *testing.T) {
	w := NewWriter(-1)
	w.SetWidth(MaxWidth + 10)
	if got := w.Width(); got != MaxWidth {
		t.Errorf("Width() = %d, want %d", got, MaxWidth)
	}
	w.SetWidth(-3)
	if got := w.Width(); got != 0 {
		t.Errorf("Width() = %d, want 0", got)
	}
}

func TestNotice(t *testing.T) {
	got := capture(t, func(w *Writer) {
		w.SetWidth(4)
		w.Notice("MEMORY")
		// Width survives the notice.
		w.WriteHex(0xab)
	})
	if want := "MEMORY\n00ab"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got = capture(t, func(w *Writer) {
		w.Color = true
		w.Notice("REGISTERS")
		w.Error("FROM")
	})
	if want := ansiInfo + "REGISTERS\n" + ansiDefault + ansiError + "FROM\n" + ansiDefault; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWriteChar(t *testing.T) {
	got := capture(t, func(w *Writer) {
		w.SetWidth(4)
		w.WriteChar('[')
		w.WriteText("ab")
		w.WriteChar(']')
	})
	if want := "[ab  ]"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWriteToClosedFd(t *testing.T) {
	// Errors are dropped.
	w := NewWriter(-1)
	w.SetWidth(2)
	w.WriteText("ok")
	w.WriteHex(1)
	w.WriteChar(' ')
}

func TestNoAllocs(t *testing.T) {
	w := NewWriter(-1)
	n := testing.AllocsPerRun(100, func() {
		w.SetWidth(8)
		w.WriteText("RIP")
		w.SetWidth(16)
		w.WriteHex(0x401000)
		w.WriteChar('\n')
		w.Notice("MEMORY")
	})
	if n != 0 {
		t.Errorf("writes allocated %v times per run, want 0", n)
	}
}
