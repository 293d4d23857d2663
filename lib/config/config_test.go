// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/casfs/lib/node"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Errorf("expected backend=file, got %s", cfg.Storage.Backend)
	}
	if cfg.Engine.NodeLimit != node.DefaultNodeLimit {
		t.Errorf("expected node_limit=%d, got %d", node.DefaultNodeLimit, cfg.Engine.NodeLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_RequiresCasfsConfig(t *testing.T) {
	origConfig := os.Getenv("CASFS_CONFIG")
	defer os.Setenv("CASFS_CONFIG", origConfig)

	os.Unsetenv("CASFS_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when CASFS_CONFIG not set, got nil")
	}

	expectedMsg := "CASFS_CONFIG environment variable not set"
	if !strings.HasPrefix(err.Error(), expectedMsg) {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithCasfsConfig(t *testing.T) {
	origConfig := os.Getenv("CASFS_CONFIG")
	defer os.Setenv("CASFS_CONFIG", origConfig)

	configPath := writeConfig(t, "casfs.yaml", `
environment: staging
root: /test/root
storage:
  backend: sqlite
  path: ${CASFS_ROOT}/nodes.db
  compression: zstd
engine:
  node_limit: 4096
`)
	os.Setenv("CASFS_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Storage.Path != "/test/root/nodes.db" {
		t.Errorf("expected expanded storage path, got %s", cfg.Storage.Path)
	}
	if cfg.Engine.NodeLimit != 4096 {
		t.Errorf("expected node_limit=4096, got %d", cfg.Engine.NodeLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error %q lacks context", err)
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	configPath := writeConfig(t, "casfs.jsonc", `{
  // Bolt keeps everything in one file.
  "root": "/srv/casfs",
  "storage": {
    "backend": "bolt",
    "path": "${CASFS_ROOT}/nodes.bolt",
    "cache_entries": 512, /* trailing comma follows */
  },
}`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Storage.Backend != BackendBolt {
		t.Errorf("expected backend=bolt, got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.Path != "/srv/casfs/nodes.bolt" {
		t.Errorf("expected expanded path, got %s", cfg.Storage.Path)
	}
	if cfg.Storage.CacheEntries != 512 {
		t.Errorf("expected cache_entries=512, got %d", cfg.Storage.CacheEntries)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	content := `
environment: %s
root: /data
storage:
  backend: file
  path: ${CASFS_ROOT}/nodes
production:
  storage:
    compression: zstd
    mirrors:
      - backend: bolt
        path: ${CASFS_ROOT}/mirror.bolt
  engine:
    max_file_size: 1048576
  event_log: ${CASFS_ROOT}/events.cbor
development:
  log:
    level: debug
`

	t.Run("production", func(t *testing.T) {
		cfg, err := LoadFile(writeConfig(t, "casfs.yaml", strings.Replace(content, "%s", "production", 1)))
		if err != nil {
			t.Fatalf("LoadFile: %v", err)
		}
		if cfg.Storage.Compression != "zstd" {
			t.Errorf("expected compression=zstd, got %s", cfg.Storage.Compression)
		}
		if len(cfg.Storage.Mirrors) != 1 || cfg.Storage.Mirrors[0].Path != "/data/mirror.bolt" {
			t.Errorf("unexpected mirrors: %+v", cfg.Storage.Mirrors)
		}
		if cfg.Engine.MaxFileSize != 1<<20 {
			t.Errorf("expected max_file_size=1MiB, got %d", cfg.Engine.MaxFileSize)
		}
		if cfg.EventLog != "/data/events.cbor" {
			t.Errorf("expected event log path, got %q", cfg.EventLog)
		}
		if cfg.Log.Level != "info" {
			t.Errorf("development override leaked into production: level=%s", cfg.Log.Level)
		}
	})

	t.Run("development", func(t *testing.T) {
		cfg, err := LoadFile(writeConfig(t, "casfs.yaml", strings.Replace(content, "%s", "development", 1)))
		if err != nil {
			t.Fatalf("LoadFile: %v", err)
		}
		if cfg.Log.Level != "debug" {
			t.Errorf("expected level=debug, got %s", cfg.Log.Level)
		}
		if cfg.Storage.Compression != "none" {
			t.Errorf("production override leaked into development: %s", cfg.Storage.Compression)
		}
		if len(cfg.Storage.Mirrors) != 0 {
			t.Errorf("unexpected mirrors: %+v", cfg.Storage.Mirrors)
		}
	})
}

func TestProductionDefaultsToJSONLogs(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "casfs.yaml", "environment: production\n"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected format=json, got %s", cfg.Log.Format)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("CASFS_TEST_VALUE", "from-env")
	vars := map[string]string{"CASFS_ROOT": "/root/dir"}

	tests := []struct {
		input string
		want  string
	}{
		{"${CASFS_ROOT}/nodes", "/root/dir/nodes"},
		{"${CASFS_TEST_VALUE}", "from-env"},
		{"${CASFS_UNSET_VALUE:-fallback}", "fallback"},
		{"${CASFS_UNSET_VALUE}", ""},
		{"plain", "plain"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Environment = "qa"
	cfg.Storage.Backend = "tape"
	cfg.Storage.Compression = "brotli"
	cfg.Storage.CacheEntries = -1
	cfg.Storage.Mirrors = []MirrorConfig{{Backend: BackendSQLite}}
	cfg.Engine.NodeLimit = 100
	cfg.Engine.MaxFileSize = -5
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, fragment := range []string{
		"invalid environment",
		"storage.backend",
		"storage.compression",
		"storage.cache_entries",
		"storage.mirrors[0].path",
		"engine.node_limit",
		"engine.max_file_size",
		"log.level",
		"log.format",
	} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("validation error lacks %q:\n%v", fragment, err)
		}
	}
}

func TestValidate_MemoryNeedsNoPath(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = BackendMemory
	cfg.Storage.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "warn"
	level, err := cfg.LogLevel()
	if err != nil {
		t.Fatalf("LogLevel: %v", err)
	}
	if level != slog.LevelWarn {
		t.Errorf("level = %v, want %v", level, slog.LevelWarn)
	}
}
