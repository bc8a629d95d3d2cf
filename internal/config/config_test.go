package config_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	cfg "github.com/NamanBalaji/seedstore/internal/config"
	"github.com/adrg/xdg"
)

func withTempConfigHome(t *testing.T) (restore func(), dir string, file string) {
	t.Helper()
	orig := xdg.ConfigHome
	dir = t.TempDir()
	xdg.ConfigHome = dir
	restore = func() { xdg.ConfigHome = orig }
	file = filepath.Join(dir, "seedstore")
	return
}

func TestGetConfig_Table(t *testing.T) {
	restore, _, cfgFile := withTempConfigHome(t)
	defer restore()

	def := cfg.DefaultConfig()

	tests := []struct {
		name      string
		preWrite  bool
		contents  string
		expectErr bool
		check     func(t *testing.T, got *cfg.Config, def cfg.Config)
	}{
		{
			name:     "missing_file_returns_defaults",
			preWrite: false,
			check: func(t *testing.T, got *cfg.Config, def cfg.Config) {
				if !reflect.DeepEqual(*got, def) {
					t.Fatalf("expected defaults\nwant: %#v\ngot:  %#v", def, *got)
				}
			},
		},
		{
			name:     "empty_file_returns_defaults",
			preWrite: true,
			contents: "",
			check: func(t *testing.T, got *cfg.Config, def cfg.Config) {
				if !reflect.DeepEqual(*got, def) {
					t.Fatalf("expected defaults\nwant: %#v\ngot:  %#v", def, *got)
				}
			},
		},
		{
			name:      "invalid_yaml_returns_error",
			preWrite:  true,
			contents:  ": not yaml",
			expectErr: true,
			check:     func(t *testing.T, _ *cfg.Config, _ cfg.Config) {},
		},
		{
			name:     "no_subconfig_uses_defaults_for_nested",
			preWrite: true,
			contents: "downloadDir: /data/dl\n",
			check: func(t *testing.T, got *cfg.Config, def cfg.Config) {
				if got.DownloadDir != "/data/dl" {
					t.Fatalf("downloadDir not applied, got %q", got.DownloadDir)
				}
				if !reflect.DeepEqual(*got.Move, *def.Move) {
					t.Fatalf("move defaults not applied\nwant: %#v\ngot:  %#v", *def.Move, *got.Move)
				}
			},
		},
		{
			name:     "partial_override_and_fallback",
			preWrite: true,
			contents: `
move:
  maxConcurrentMoves: 7
  policy: skip
`,
			check: func(t *testing.T, got *cfg.Config, def cfg.Config) {
				if got.Move.MaxConcurrentMoves != 7 {
					t.Fatalf("want move.maxConcurrentMoves=7 got %d", got.Move.MaxConcurrentMoves)
				}
				if got.Move.Policy != "skip" {
					t.Fatalf("want move.policy=skip got %q", got.Move.Policy)
				}
				if got.Move.PieceLength != def.Move.PieceLength {
					t.Fatalf("want move.pieceLength default %d got %d", def.Move.PieceLength, got.Move.PieceLength)
				}
				if got.DownloadDir != def.DownloadDir {
					t.Fatalf("want downloadDir default %q got %q", def.DownloadDir, got.DownloadDir)
				}
			},
		},
		{
			name:     "explicit_zero_values_fall_back_to_defaults",
			preWrite: true,
			contents: `
downloadDir: ""
move:
  maxConcurrentMoves: 0
  pieceLength: 0
`,
			check: func(t *testing.T, got *cfg.Config, def cfg.Config) {
				if !reflect.DeepEqual(*got, def) {
					t.Fatalf("zero values should fall back to defaults\nwant: %#v\ngot:  %#v", def, *got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.preWrite {
				if err := os.WriteFile(cfgFile, []byte(tt.contents), 0o644); err != nil {
					t.Fatalf("writing config file failed: %v", err)
				}
			} else {
				_ = os.Remove(cfgFile)
			}

			got, err := cfg.GetConfig()
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("GetConfig failed: %v", err)
			}

			tt.check(t, got, def)
		})
	}
}
