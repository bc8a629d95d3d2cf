package config

import (
	"github.com/adrg/xdg"
)

const (
	maxConcurrentMoves = 2
	defaultPolicy      = "overwrite"
	defaultPieceLength = 256 * 1024 // 256 KiB
)

var downloadDir = xdg.UserDirs.Download
