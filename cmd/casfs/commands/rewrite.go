// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/casfs/cmd/casfs/cli"
	"github.com/bureau-foundation/casfs/lib/fs"
	"github.com/bureau-foundation/casfs/lib/node"
	"github.com/bureau-foundation/casfs/lib/nodekey"
)

// manifest is the YAML batch accepted by "casfs rewrite".
type manifest struct {
	Entries []manifestEntry `yaml:"entries"`
	Deletes []string        `yaml:"deletes"`
}

// manifestEntry sets one path from exactly one source.
type manifestEntry struct {
	Path string `yaml:"path"`

	// Content is inline text; Source names a local file, relative to
	// the manifest.
	Content     *string `yaml:"content"`
	Source      string  `yaml:"source"`
	ContentType string  `yaml:"content_type"`

	// From shares an entry of the input root.
	From string `yaml:"from"`

	// Link inserts a stored node; Kind is dict or file.
	Link string `yaml:"link"`
	Kind string `yaml:"kind"`

	Dir bool `yaml:"dir"`
}

func parseManifest(data []byte) (*manifest, error) {
	var parsed manifest
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, cli.Validation("parsing manifest: %w", err)
	}
	if len(parsed.Entries) == 0 && len(parsed.Deletes) == 0 {
		return nil, cli.Validation("manifest has no entries and no deletes")
	}
	return &parsed, nil
}

// entries converts the manifest into engine entries. Source files are
// read relative to baseDir. Conflicting sources within one entry are
// left for the engine to reject.
func (m *manifest) entries(baseDir string) ([]fs.RewriteEntry, error) {
	entries := make([]fs.RewriteEntry, 0, len(m.Entries))
	for i, item := range m.Entries {
		entry := fs.RewriteEntry{Path: item.Path, From: item.From, Dir: item.Dir}

		if item.Content != nil && item.Source != "" {
			return nil, cli.Validation("entry %d (%s): content and source are mutually exclusive", i, item.Path)
		}
		contentType := item.ContentType
		if contentType == "" {
			contentType = mime.TypeByExtension(path.Ext(item.Path))
		}
		switch {
		case item.Content != nil:
			entry.Content = &fs.Content{Data: []byte(*item.Content), ContentType: contentType}
		case item.Source != "":
			source := item.Source
			if !filepath.IsAbs(source) {
				source = filepath.Join(baseDir, source)
			}
			data, err := os.ReadFile(source)
			if err != nil {
				return nil, cli.Validation("entry %d (%s): reading source: %w", i, item.Path, err)
			}
			entry.Content = &fs.Content{Data: data, ContentType: contentType}
		}

		if item.Link != "" {
			key, err := nodekey.Parse(item.Link)
			if err != nil {
				return nil, cli.Validation("entry %d (%s): link: %w", i, item.Path, err)
			}
			kindName := item.Kind
			if kindName == "" {
				kindName = node.KindFile.String()
			}
			kind, err := node.ParseKind(kindName)
			if err != nil {
				return nil, cli.Validation("entry %d (%s): kind: %w", i, item.Path, err)
			}
			entry.Link = &fs.Link{Key: key, Kind: kind}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (a *app) rewriteCommand() *cli.Command {
	var options rootOptions
	return &cli.Command{
		Name:    "rewrite",
		Summary: "Apply a batch of changes in one pass",
		Usage:   "casfs rewrite --root KEY MANIFEST",
		Description: `Apply a YAML manifest of entries and deletes as one copy-on-write pass
and print the single resulting root. The whole batch is checked before
anything is stored. Each entry takes exactly one source: content,
source (a local file relative to the manifest), from (a path of the
input root), link (a stored node key with kind dict or file), or
dir: true. Use "-" to read the manifest from stdin.`,
		Examples: []cli.Example{
			{Command: `casfs rewrite --root nod_… release.yaml

# release.yaml
entries:
  - path: /VERSION
    content: "1.4.0\n"
  - path: /bin/tool
    source: ./build/tool
    content_type: application/octet-stream
  - path: /previous
    from: /current
deletes:
  - /tmp`},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("rewrite", pflag.ContinueOnError)
			options.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Validation("rewrite takes exactly one manifest")
			}
			root, err := options.rootKey()
			if err != nil {
				return err
			}
			data, err := a.readSource(args[0])
			if err != nil {
				return err
			}
			parsed, err := parseManifest(data)
			if err != nil {
				return err
			}
			baseDir := "."
			if args[0] != "-" {
				baseDir = filepath.Dir(args[0])
			}
			entries, err := parsed.entries(baseDir)
			if err != nil {
				return err
			}

			return a.run(options.globalOptions, func(ctx context.Context, env *environment) error {
				result, err := env.service.Rewrite(ctx, root, entries, parsed.Deletes)
				if err != nil {
					return err
				}
				env.logger.Info("rewrite applied",
					"entries", len(entries),
					"deletes", len(parsed.Deletes),
					"nodes_stored", result.NodesStored,
				)
				return a.emitMutation(options.globalOptions, result)
			})
		},
	}
}
