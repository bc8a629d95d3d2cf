// Package mover runs storage relocations off the I/O path. It executes a
// batch of move requests with bounded concurrency and records the outcome in
// the storage repository. Mutual exclusion between a move and I/O against the
// same storage remains the caller's responsibility; the mover only bounds
// how many relocations run at once.
package mover

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/NamanBalaji/seedstore/internal/logger"
	"github.com/NamanBalaji/seedstore/internal/repository"
	"github.com/NamanBalaji/seedstore/pkg/storage"
)

// ErrUnknownPolicy is returned for unrecognized policy names.
var ErrUnknownPolicy = errors.New("unknown move policy")

// ParsePolicy maps a policy name from configuration or the command line to a
// storage.MovePolicy.
func ParsePolicy(name string) (storage.MovePolicy, error) {
	switch name {
	case "overwrite", "":
		return storage.AlwaysReplaceFiles, nil
	case "fail":
		return storage.FailIfExist, nil
	case "skip":
		return storage.DontReplace, nil
	default:
		return storage.AlwaysReplaceFiles, ErrUnknownPolicy
	}
}

// Request describes one storage relocation.
type Request struct {
	ID       uuid.UUID // repository record ID; uuid.Nil creates a new record
	Name     string
	Layout   storage.Layout
	SavePath string
	DestPath string
	Policy   storage.MovePolicy
	Partfile storage.Partfile
}

// Result is the outcome of one relocation.
type Result struct {
	ID       uuid.UUID
	OpID     uuid.UUID
	Status   storage.Status
	SavePath string
	Err      error
}

// Mover relocates storages in the background.
type Mover struct {
	repo          *repository.BboltRepository
	fs            storage.Filesystem
	maxConcurrent int64
}

// New creates a mover. repo may be nil, in which case outcomes are not
// persisted.
func New(repo *repository.BboltRepository, maxConcurrent int) *Mover {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return &Mover{
		repo:          repo,
		fs:            storage.NewOSFilesystem(),
		maxConcurrent: int64(maxConcurrent),
	}
}

// MoveAll runs every request, at most maxConcurrent at a time, and returns a
// result per request in order. Cancelling the context fails requests that
// have not started yet; relocations already in flight run to completion (the
// engine has no cancellation point mid-move).
func (m *Mover) MoveAll(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	sem := semaphore.NewWeighted(m.maxConcurrent)

	var g errgroup.Group

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = Result{ID: req.ID, Status: storage.StatusFatalDiskError, SavePath: req.SavePath, Err: err}
				return nil
			}
			defer sem.Release(1)

			results[i] = m.move(req)

			return nil
		})
	}

	_ = g.Wait()

	return results
}

// Move runs a single relocation synchronously.
func (m *Mover) Move(req Request) Result {
	return m.move(req)
}

func (m *Mover) move(req Request) Result {
	opID := uuid.New()

	logger.Infof("move %s: %q -> %q (policy %d)", opID, req.SavePath, req.DestPath, req.Policy)

	status, path, err := storage.MoveStorage(req.Layout, req.SavePath, req.DestPath, req.Partfile, req.Policy, m.fs)

	res := Result{
		ID:       req.ID,
		OpID:     opID,
		Status:   status,
		SavePath: path,
		Err:      err,
	}

	if err != nil {
		logger.Errorf("move %s failed with status %s: %v", opID, status, err)
		return res
	}

	logger.Infof("move %s finished with status %s at %q", opID, status, path)

	if m.repo != nil {
		record := &repository.Record{
			ID:          req.ID,
			Name:        req.Name,
			SavePath:    path,
			NeedsRescan: status == storage.StatusNeedFullCheck,
			UpdatedAt:   time.Now(),
		}

		if record.ID == uuid.Nil {
			record.ID = uuid.New()
			res.ID = record.ID
		}

		if err := m.repo.Save(record); err != nil {
			logger.Warnf("move %s: failed to persist storage record: %v", opID, err)
		}
	}

	return res
}
