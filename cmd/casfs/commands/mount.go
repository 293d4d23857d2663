// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/casfs/cmd/casfs/cli"
	"github.com/bureau-foundation/casfs/lib/mount"
)

func (a *app) mountCommand() *cli.Command {
	var options rootOptions
	var allowOther bool
	return &cli.Command{
		Name:    "mount",
		Summary: "Mount a root read-only with FUSE",
		Usage:   "casfs mount --root KEY MOUNTPOINT",
		Description: `Expose the snapshot named by --root as a read-only file system at
MOUNTPOINT. The command runs until interrupted or until the mount is
removed with fusermount -u.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("mount", pflag.ContinueOnError)
			options.register(flagSet)
			flagSet.BoolVar(&allowOther, "allow-other", false, "let other users read the mount (needs user_allow_other)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Validation("mount takes exactly one mountpoint")
			}
			root, err := options.rootKey()
			if err != nil {
				return err
			}
			return a.run(options.globalOptions, func(ctx context.Context, env *environment) error {
				server, err := mount.Mount(ctx, mount.Options{
					Mountpoint: args[0],
					Service:    env.service,
					Root:       root,
					AllowOther: allowOther,
					Logger:     env.logger,
				})
				if err != nil {
					return err
				}

				unmounted := make(chan struct{})
				go func() {
					server.Wait()
					close(unmounted)
				}()

				select {
				case <-ctx.Done():
					env.logger.Info("unmounting", "mountpoint", args[0])
					if err := server.Unmount(); err != nil {
						return cli.Internal("unmounting %s: %w", args[0], err)
					}
					<-unmounted
				case <-unmounted:
					env.logger.Info("mount removed externally", "mountpoint", args[0])
				}
				return nil
			})
		},
	}
}
