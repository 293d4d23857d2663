// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads casfs configuration.
//
// Configuration comes from exactly one file, named by the CASFS_CONFIG
// environment variable (via [Load]) or a --config flag (via
// [LoadFile]). Nothing is discovered automatically. Files ending in
// .json or .jsonc are parsed as JSON with comments; anything else is
// YAML.
//
// Environment sections (development, staging, production) override
// base values when [Config].Environment matches. Production logs as
// JSON unless the file says otherwise.
//
// After loading, path fields expand ${HOME}, ${CASFS_ROOT} and
// ${VAR:-default}.
package config
