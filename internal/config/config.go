package config

import (
	"os"
	"path/filepath"
	"reflect"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const configFileName = "seedstore"

// Config holds the configuration options for the application.
type Config struct {
	DownloadDir string      `yaml:"downloadDir,omitempty"`
	Move        *MoveConfig `yaml:"move,omitempty"`
}

// MoveConfig holds configuration options for storage relocation.
type MoveConfig struct {
	MaxConcurrentMoves int    `yaml:"maxConcurrentMoves,omitempty"`
	Policy             string `yaml:"policy,omitempty"` // overwrite | fail | skip
	PieceLength        int64  `yaml:"pieceLength,omitempty"`
}

// GetConfig reads the configuration file and returns a Config struct.
// If the configuration file does not exist, it returns the default
// configuration.
func GetConfig() (*Config, error) {
	configFilePath := filepath.Join(xdg.ConfigHome, configFileName)
	defaults := DefaultConfig()

	b, err := os.ReadFile(configFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &defaults, nil
		}

		return nil, err
	}

	if len(b) == 0 {
		return &defaults, nil
	}

	var cfg Config

	err = yaml.Unmarshal(b, &cfg)
	if err != nil {
		return nil, err
	}

	moveCfg := zeroOr(cfg.Move, defaults.Move)

	return &Config{
		DownloadDir: zeroOr(cfg.DownloadDir, defaults.DownloadDir),
		Move: &MoveConfig{
			MaxConcurrentMoves: zeroOr(moveCfg.MaxConcurrentMoves, defaults.Move.MaxConcurrentMoves),
			Policy:             zeroOr(moveCfg.Policy, defaults.Move.Policy),
			PieceLength:        zeroOr(moveCfg.PieceLength, defaults.Move.PieceLength),
		},
	}, nil
}

func DefaultConfig() Config {
	return Config{
		DownloadDir: downloadDir,
		Move: &MoveConfig{
			MaxConcurrentMoves: maxConcurrentMoves,
			Policy:             defaultPolicy,
			PieceLength:        defaultPieceLength,
		},
	}
}

// zeroOr returns def if v is the zero value for its type.
func zeroOr[T any](v, def T) T {
	if reflect.ValueOf(v).IsZero() {
		return def
	}

	return v
}
