// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func testTree(ran *[]string, verbose *bool) *Command {
	leaf := &Command{
		Name:    "write",
		Summary: "Write a file",
		Examples: []Example{
			{Description: "Store a file", Command: "casfs write --root nod_x /a ./a"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("write", pflag.ContinueOnError)
			flagSet.BoolVarP(verbose, "verbose", "v", false, "log more")
			flagSet.String("content-type", "", "content type")
			return flagSet
		},
		Run: func(args []string) error {
			*ran = append(*ran, args...)
			return nil
		},
	}
	return &Command{
		Name:        "casfs",
		Subcommands: []*Command{leaf, {Name: "stat", Summary: "Describe a path"}},
		Stderr:      &bytes.Buffer{},
	}
}

func TestExecuteDispatchesWithFlags(t *testing.T) {
	var ran []string
	var verbose bool
	root := testTree(&ran, &verbose)

	if err := root.Execute([]string{"write", "-v", "/a", "./a"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !verbose {
		t.Error("--verbose not parsed")
	}
	if strings.Join(ran, " ") != "/a ./a" {
		t.Errorf("positional args = %q", ran)
	}
}

func TestExecuteSuggestsCommand(t *testing.T) {
	var ran []string
	var verbose bool
	root := testTree(&ran, &verbose)

	err := root.Execute([]string{"wrte"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), `did you mean "write"`) {
		t.Errorf("error lacks suggestion: %v", err)
	}
	if ExitCodeOf(err) != ExitValidation {
		t.Errorf("exit code = %d, want %d", ExitCodeOf(err), ExitValidation)
	}
}

func TestExecuteSuggestsFlag(t *testing.T) {
	var ran []string
	var verbose bool
	root := testTree(&ran, &verbose)

	err := root.Execute([]string{"write", "--content-typ", "x", "/a"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "did you mean --content-type?") {
		t.Errorf("error lacks suggestion: %v", err)
	}
	if len(ran) != 0 {
		t.Errorf("Run was called: %q", ran)
	}
}

func TestExecuteRequiresSubcommand(t *testing.T) {
	var ran []string
	var verbose bool
	root := testTree(&ran, &verbose)

	if err := root.Execute(nil); err == nil {
		t.Fatal("expected error without a subcommand")
	}
	help := root.Stderr.(*bytes.Buffer).String()
	if !strings.Contains(help, "Commands:") || !strings.Contains(help, "write") {
		t.Errorf("help output missing command listing:\n%s", help)
	}
}

func TestPrintHelp(t *testing.T) {
	var ran []string
	var verbose bool
	root := testTree(&ran, &verbose)

	if err := root.Execute([]string{"write", "--help"}); err != nil {
		t.Fatalf("Execute --help: %v", err)
	}
	help := root.Stderr.(*bytes.Buffer).String()
	for _, fragment := range []string{"Usage:", "casfs write", "--content-type", "Store a file"} {
		if !strings.Contains(help, fragment) {
			t.Errorf("help lacks %q:\n%s", fragment, help)
		}
	}
	if len(ran) != 0 {
		t.Error("Run was called for --help")
	}
}

func TestExecuteNoAction(t *testing.T) {
	var ran []string
	var verbose bool
	root := testTree(&ran, &verbose)

	err := root.Execute([]string{"stat"})
	if err == nil || !strings.Contains(err.Error(), "no action defined") {
		t.Errorf("Execute(stat) = %v, want no-action error", err)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"write", "write", 0},
		{"wrte", "write", 1},
		{"mkdri", "mkdir", 2},
		{"kitten", "sitting", 3},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
		if got := levenshtein(test.b, test.a); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.b, test.a, got, test.want)
		}
	}
}

func TestSuggestCommandThreshold(t *testing.T) {
	commands := []*Command{{Name: "rewrite"}, {Name: "mount"}}
	if got := suggestCommand("rewrit", commands); got != "rewrite" {
		t.Errorf("suggestCommand(rewrit) = %q", got)
	}
	if got := suggestCommand("completely-different", commands); got != "" {
		t.Errorf("suggestCommand(completely-different) = %q, want none", got)
	}
}
