// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/casfs/cmd/casfs/cli"
	"github.com/bureau-foundation/casfs/lib/config"
	"github.com/bureau-foundation/casfs/lib/eventlog"
	"github.com/bureau-foundation/casfs/lib/fs"
	"github.com/bureau-foundation/casfs/lib/nodekey"
	"github.com/bureau-foundation/casfs/lib/storage"
)

// app carries the process streams so tests can capture output.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// logger overrides the configured command logger when set.
	logger *slog.Logger
}

// globalOptions are the flags every command accepts.
type globalOptions struct {
	configPath string
	outputJSON bool
}

func (g *globalOptions) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&g.configPath, "config", "", "config file (default $CASFS_CONFIG)")
	flagSet.BoolVar(&g.outputJSON, "json", false, "output as JSON")
}

// rootOptions adds --root to commands that operate on a snapshot.
type rootOptions struct {
	globalOptions
	root string
}

func (r *rootOptions) register(flagSet *pflag.FlagSet) {
	r.globalOptions.register(flagSet)
	flagSet.StringVar(&r.root, "root", "", "root directory key (nod_… or hex)")
}

func (r *rootOptions) rootKey() (nodekey.Key, error) {
	if r.root == "" {
		return nodekey.Key{}, cli.Validation("--root is required (run 'casfs init' for an empty root)")
	}
	key, err := nodekey.Parse(r.root)
	if err != nil {
		return nodekey.Key{}, cli.Validation("--root: %w", err)
	}
	return key, nil
}

// environment is everything a command needs to reach the engine.
type environment struct {
	config  *config.Config
	logger  *slog.Logger
	storage storage.Provider
	service *fs.Service
	events  *eventlog.Writer
	closers []io.Closer
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("invalid config:\n%w", err)
	}
	return cfg, nil
}

func (a *app) open(options globalOptions) (*environment, error) {
	cfg, err := loadConfig(options.configPath)
	if err != nil {
		return nil, err
	}

	logger := a.logger
	if logger == nil {
		level, _ := cfg.LogLevel()
		logger = cli.NewCommandLogger(level, cfg.Log.Format)
	}

	env := &environment{config: cfg, logger: logger}
	provider, closers, err := openStorage(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	env.storage = provider
	env.closers = closers

	var onNodeStored func(fs.NodeStored)
	if cfg.EventLog != "" {
		events, err := eventlog.Open(cfg.EventLog)
		if err != nil {
			env.Close()
			return nil, cli.Internal("opening event log: %w", err)
		}
		env.events = events
		env.closers = append(env.closers, events)
		onNodeStored = events.Observe
	}

	service, err := fs.New(fs.Options{
		Storage:      provider,
		NodeLimit:    cfg.Engine.NodeLimit,
		MaxFileSize:  cfg.Engine.MaxFileSize,
		OnNodeStored: onNodeStored,
		Logger:       logger,
	})
	if err != nil {
		env.Close()
		return nil, cli.Validation("%w", err)
	}
	env.service = service
	return env, nil
}

// Close releases storage handles and the event log, last opened
// first.
func (e *environment) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// run opens the environment, calls fn with a signal-aware context, and
// closes the environment. A failure to flush the event log fails the
// command: the nodes are stored but the log no longer lists them.
func (a *app) run(options globalOptions, fn func(ctx context.Context, env *environment) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := a.open(options)
	if err != nil {
		return err
	}
	runErr := cli.FromEngine(fn(ctx, env))
	if closeErr := env.Close(); closeErr != nil && runErr == nil {
		return cli.Internal("closing storage: %w", closeErr)
	}
	return runErr
}

// emit writes value as JSON when --json is set, or calls text
// otherwise.
func (a *app) emit(options globalOptions, value any, text func(w io.Writer) error) error {
	if options.outputJSON {
		return cli.WriteJSON(a.stdout, value)
	}
	return text(a.stdout)
}

// mutationOutput is the JSON form of a mutation result.
type mutationOutput struct {
	Root        string `json:"root"`
	NodesStored int    `json:"nodes_stored"`
}

func (a *app) emitMutation(options globalOptions, result *fs.MutationResult) error {
	output := mutationOutput{Root: result.NewRoot.ID(), NodesStored: result.NodesStored}
	return a.emit(options, output, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, output.Root)
		return err
	})
}
