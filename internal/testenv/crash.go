// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testenv runs fatal scenarios in a child copy of the test binary.
package testenv

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"testing"
)

const envFault = "SEGVDUMP_TEST_FAULT"

// Child returns the scenario this process was started for by RunChild.
// Test binaries call it from TestMain; ok is false in the parent.
func Child() (scenario string, ok bool) {
	return os.LookupEnv(envFault)
}

// RunChild re-executes the current test binary, running only TestMain's
// child branch for scenario, and returns its standard output and exit
// status.
func RunChild(t testing.TB, scenario string) (stdout string, status int) {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("can't find test binary: %v", err)
	}
	cmd := exec.Command(exe, "-test.run=^$")
	cmd.Env = append(os.Environ(), envFault+"="+scenario, "GOTRACEBACK=single")
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err = cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		status = exitErr.ExitCode()
	default:
		t.Fatalf("running %s child: %v", scenario, err)
	}
	if errOut.Len() > 0 {
		t.Logf("%s child stderr:\n%s", scenario, errOut.String())
	}
	return out.String(), status
}
