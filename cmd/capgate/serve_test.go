package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfigFileDefault(t *testing.T) {
	dir := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	// No file anywhere: falls back to the default name.
	t.Setenv("HOME", dir)
	if got := findConfigFile(); got != defaultConfigFile {
		t.Errorf("findConfigFile() = %q, want %q", got, defaultConfigFile)
	}

	// File in the working directory wins.
	if err := os.WriteFile(filepath.Join(dir, defaultConfigFile), []byte("server:\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := findConfigFile(); got != defaultConfigFile {
		t.Errorf("findConfigFile() = %q, want %q", got, defaultConfigFile)
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "status", "version"} {
		if !names[want] {
			t.Errorf("missing %q subcommand", want)
		}
	}
}
