// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mount

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bureau-foundation/casfs/lib/fs"
	"github.com/bureau-foundation/casfs/lib/node"
	"github.com/bureau-foundation/casfs/lib/nodekey"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	// It is created if missing.
	Mountpoint string

	// Service resolves paths and reads file contents.
	Service *fs.Service

	// Root is the directory node mounted at Mountpoint.
	Root nodekey.Key

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Mount mounts the snapshot at options.Root. The caller must call
// Unmount on the returned server when done.
func Mount(ctx context.Context, options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Service == nil {
		return nil, fmt.Errorf("service is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	// Fail before mounting when the root is missing or is not a
	// directory.
	if _, err := options.Service.Stat(ctx, options.Root, "/"); err != nil {
		return nil, fmt.Errorf("mounting root %s: %w", options.Root.ID(), err)
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &dirNode{options: &options, key: options.Root}

	entryTimeout := 10 * time.Second
	attrTimeout := 10 * time.Second
	negativeTimeout := 10 * time.Second

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "casfs:" + options.Root.ID(),
			Name:       "casfs",
			AllowOther: options.AllowOther,
			Options:    []string{"ro"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("casfs snapshot mounted",
		"mountpoint", options.Mountpoint,
		"root", options.Root.ID(),
	)
	return server, nil
}

// dirNode is a directory. key is the dict node itself, so lookups
// below it resolve a single segment rather than a path from the
// mount root.
type dirNode struct {
	gofuse.Inode
	options *Options
	key     nodekey.Key
	count   int
}

var _ gofuse.InodeEmbedder = (*dirNode)(nil)
var _ gofuse.NodeGetattrer = (*dirNode)(nil)
var _ gofuse.NodeLookuper = (*dirNode)(nil)
var _ gofuse.NodeReaddirer = (*dirNode)(nil)

func (d *dirNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o555
	out.Nlink = 2
	return 0
}

func (d *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	stat, err := d.options.Service.Stat(ctx, d.key, name)
	if err != nil {
		return nil, d.fail("lookup", name, err)
	}

	switch stat.Type {
	case node.KindDict:
		child := d.NewInode(ctx, &dirNode{
			options: d.options,
			key:     stat.Key,
			count:   stat.ChildCount,
		}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
		out.Mode = syscall.S_IFDIR | 0o555
		return child, 0
	default:
		child := d.NewInode(ctx, &fileNode{
			options: d.options,
			parent:  d.key,
			name:    name,
			size:    stat.Size,
		}, gofuse.StableAttr{Mode: syscall.S_IFREG})
		fillFileAttr(&out.Attr, stat.Size)
		return child, 0
	}
}

func (d *dirNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	entries := make([]fuse.DirEntry, 0, d.count)
	options := fs.ListOptions{Limit: fs.MaxListLimit}
	for {
		page, err := d.options.Service.List(ctx, d.key, "/", options)
		if err != nil {
			return nil, d.fail("readdir", "", err)
		}
		for _, entry := range page.Entries {
			mode := uint32(syscall.S_IFREG)
			if entry.Type == node.KindDict {
				mode = syscall.S_IFDIR
			}
			entries = append(entries, fuse.DirEntry{Name: entry.Name, Mode: mode})
		}
		if page.NextCursor == "" {
			break
		}
		options.Cursor = page.NextCursor
	}
	return gofuse.NewListDirStream(entries), 0
}

func (d *dirNode) fail(op, name string, err error) syscall.Errno {
	errno := toErrno(err)
	if errno == syscall.EIO {
		d.options.Logger.Error("directory operation failed",
			"op", op,
			"dir", d.key.ID(),
			"name", name,
			"error", err,
		)
	}
	return errno
}

// fileNode is a regular file, addressed by its name within parent.
type fileNode struct {
	gofuse.Inode
	options *Options
	parent  nodekey.Key
	name    string
	size    uint64
}

var _ gofuse.InodeEmbedder = (*fileNode)(nil)
var _ gofuse.NodeGetattrer = (*fileNode)(nil)
var _ gofuse.NodeOpener = (*fileNode)(nil)
var _ gofuse.NodeReader = (*fileNode)(nil)

func (f *fileNode) Getattr(ctx context.Context, fh gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	fillFileAttr(&out.Attr, f.size)
	return 0
}

func (f *fileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (f *fileNode) Read(ctx context.Context, fh gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := f.options.Service.ReadAt(ctx, f.parent, f.name, dest, off)
	if err != nil && err != io.EOF {
		f.options.Logger.Error("read failed",
			"dir", f.parent.ID(),
			"name", f.name,
			"offset", off,
			"error", err,
		)
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func fillFileAttr(attr *fuse.Attr, size uint64) {
	attr.Mode = syscall.S_IFREG | 0o444
	attr.Nlink = 1
	attr.Size = size
	attr.Blocks = (size + 511) / 512
	attr.Blksize = 65536
}

// toErrno maps an engine error onto the errno a POSIX caller expects.
func toErrno(err error) syscall.Errno {
	switch fs.CodeOf(err) {
	case fs.CodeNotFound:
		return syscall.ENOENT
	case fs.CodeNotADirectory:
		return syscall.ENOTDIR
	case fs.CodeNotAFile:
		return syscall.EISDIR
	case fs.CodeInvalidPath:
		return syscall.EINVAL
	case fs.CodeInvalidArgument:
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}
