// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux && amd64 && cgo

// The segvdump command installs a SIGSEGV handler that prints the
// faulting registers and the memory around the fault address, then
// provokes a segmentation fault to exercise it.
//
// Run with no arguments it performs, in order, a write to read-only data,
// a write through a nil pointer, an explicit raise of SIGSEGV and a write
// past the end of a heap allocation. The first of these that reaches the
// handler ends the process with exit status 255.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"golang.org/x/segvdump/faultgen"
	"golang.org/x/segvdump/handler"
	"golang.org/x/segvdump/internal/sigsafe"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("segvdump: ")
	if err := newRootCmd(runOps).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. run is called with the operations
// to perform once the arguments have been checked.
func newRootCmd(run func(ops []faultgen.Op)) *cobra.Command {
	root := &cobra.Command{
		Use:   "segvdump",
		Short: "SIGSEGV handler and register dump",
		Args:  cobra.NoArgs,
		Long: "segvdump installs a SIGSEGV handler that dumps registers and the\n" +
			"memory around the fault address, then provokes segmentation faults.",
		Run: func(cmd *cobra.Command, args []string) {
			run(faultgen.All)
		},
	}

	var names []string
	for _, op := range faultgen.All {
		names = append(names, op.Name)
	}
	fault := &cobra.Command{
		Use:       "fault kind",
		Short:     "Provoke a single kind of fault",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			op, ok := faultgen.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown fault kind %q (see 'segvdump list')", args[0])
			}
			run([]faultgen.Op{op})
			return nil
		},
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List the kinds of fault",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, op := range faultgen.All {
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", op.Name, op.Doc)
			}
		},
	}
	root.AddCommand(fault, list)
	return root
}

// runOps installs the handler and performs ops. It only returns if none
// of them faulted.
func runOps(ops []faultgen.Op) {
	w := sigsafe.NewWriter(1)
	w.Color = isTerminal(1)
	h := handler.New(w)
	if err := h.Install(); err != nil {
		log.Fatalf("%v", err)
	}
	for _, op := range ops {
		h.Run(op.Fn)
	}
	exitf("no fault reached the handler\n")
}

func isTerminal(fd int) bool {
	_, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	return err == nil
}

func exitf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
