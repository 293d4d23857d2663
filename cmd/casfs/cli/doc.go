// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the casfs tool.
//
// [Command] is a named command with optional nested subcommands, a
// lazily built [pflag.FlagSet], and a Run function. [Command.Execute]
// routes arguments, parses flags and prints help with examples. Unknown
// commands and flags get a "did you mean" suggestion when one is within
// edit distance 3.
//
// Engine errors are classified by [FromEngine] into a [ToolError]
// whose category decides the process exit code (see [ExitCodeOf]).
package cli
