package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/NamanBalaji/seedstore/internal/config"
	"github.com/NamanBalaji/seedstore/internal/logger"
	"github.com/NamanBalaji/seedstore/internal/mover"
	"github.com/NamanBalaji/seedstore/internal/repository"
	"github.com/NamanBalaji/seedstore/pkg/storage"
	"github.com/NamanBalaji/seedstore/pkg/storage/layout"
)

func main() {
	src := flag.String("src", "", "Source directory of the storage tree")
	dst := flag.String("dst", "", "Destination directory")
	policyName := flag.String("policy", "", "Move policy: overwrite, fail or skip")
	pieceLength := flag.Int64("piece-length", 0, "Piece length of the torrent the tree belongs to")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *src == "" || *dst == "" {
		fmt.Fprintln(os.Stderr, "usage: seedstore -src DIR -dst DIR [-policy overwrite|fail|skip] [-piece-length N] [-debug]")
		os.Exit(2)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Error getting home directory: %v\n", err)
	}

	dataDir := filepath.Join(homeDir, ".seedstore")

	err = os.MkdirAll(dataDir, 0o755)
	if err != nil {
		log.Fatalf("Error creating data directory: %v\n", err)
	}

	err = logger.InitLogging(*debug, filepath.Join(dataDir, "seedstore.log"))
	if err != nil {
		log.Fatalf("Warning: Failed to initialize logging: %v\n", err)
	}
	defer logger.Close()

	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatalf("Error reading configuration: %v\n", err)
	}

	if *policyName == "" {
		*policyName = cfg.Move.Policy
	}

	policy, err := mover.ParsePolicy(*policyName)
	if err != nil {
		log.Fatalf("Error parsing policy %q: %v\n", *policyName, err)
	}

	if *pieceLength <= 0 {
		*pieceLength = cfg.Move.PieceLength
	}

	l, err := layout.FromDir(*src, *pieceLength)
	if err != nil {
		log.Fatalf("Error reading source tree: %v\n", err)
	}

	repo, err := repository.NewBboltRepository(filepath.Join(dataDir, "seedstore.db"))
	if err != nil {
		log.Fatalf("Error creating repository: %v\n", err)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	m := mover.New(repo, cfg.Move.MaxConcurrentMoves)

	results := m.MoveAll(ctx, []mover.Request{{
		Name:     filepath.Base(*src),
		Layout:   l,
		SavePath: *src,
		DestPath: *dst,
		Policy:   policy,
	}})

	res := results[0]
	if res.Err != nil {
		log.Fatalf("Move failed (%s): %v\n", res.Status, res.Err)
	}

	switch res.Status {
	case storage.StatusNeedFullCheck:
		fmt.Printf("Moved to %s; some files were already present and were skipped, re-check the data\n", res.SavePath)
	default:
		fmt.Printf("Moved to %s\n", res.SavePath)
	}

	logger.Infof("Move of %q complete.", *src)
}
