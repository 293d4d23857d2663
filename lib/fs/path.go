// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"strings"

	"github.com/bureau-foundation/casfs/lib/node"
)

// splitPath turns a slash-separated path into its segments. Leading
// and trailing slashes are ignored, so "", "/", "a/b" and "/a/b/" are
// all accepted; the root has no segments.
func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	segments := strings.Split(trimmed, "/")
	for _, segment := range segments {
		switch {
		case segment == "":
			return nil, newError(CodeInvalidPath, "path %q contains an empty segment", path)
		case segment == "." || segment == "..":
			return nil, newError(CodeInvalidPath, "path %q contains %q", path, segment)
		case strings.IndexByte(segment, 0) >= 0:
			return nil, newError(CodeInvalidPath, "path %q contains a NUL byte", path)
		case len(segment) > node.MaxNameLength:
			return nil, newError(CodeInvalidPath, "path segment of %d bytes exceeds %d", len(segment), node.MaxNameLength)
		}
	}
	return segments, nil
}

// joinPath renders segments in canonical form.
func joinPath(segments []string) string {
	return "/" + strings.Join(segments, "/")
}

// hasPrefix reports whether prefix names path or one of its ancestors.
func hasPrefix(path, prefix []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}
