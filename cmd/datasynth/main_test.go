package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "datasynth ") {
		t.Errorf("unexpected version output: %q", out.String())
	}
}

func TestGenerateCmd_RejectsUnknownPhase(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	root := newRootCmd()
	root.SetArgs([]string{"generate", "--output", t.TempDir(), "--phases", "master_data,bogus"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("expected unknown phase error, got %v", err)
	}
}

func TestGenerateCmd_MissingConfigFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	root := newRootCmd()
	root.SetArgs([]string{"generate", "--config", "/nonexistent/datasynth.yaml"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
