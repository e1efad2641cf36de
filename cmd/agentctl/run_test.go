package main

import (
	"bytes"
	"testing"
)

func TestRunCmd_ListDirectorySucceeds(t *testing.T) {
	dir := t.TempDir()

	cmd := buildRunCmd()
	cmd.SetArgs([]string{"--path", dir, "--max-turns", "5"})
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("run command failed: %v\noutput: %s", err, out.String())
	}
	if out.Len() == 0 {
		t.Error("expected run command to print a result summary")
	}
}
