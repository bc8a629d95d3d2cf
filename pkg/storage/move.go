package storage

import (
	"io/fs"
	"path/filepath"
)

// MovePolicy controls how MoveStorage treats files that already exist at the
// destination.
type MovePolicy int

const (
	// AlwaysReplaceFiles moves every file regardless of what is already at
	// the destination.
	AlwaysReplaceFiles MovePolicy = iota

	// FailIfExist aborts before any mutation if the destination directory or
	// any destination file already exists.
	FailIfExist

	// DontReplace leaves files whose destination counterpart exists at the
	// source, moves the rest, and reports StatusNeedFullCheck on success.
	DontReplace
)

// Status is the outcome of a relocation.
type Status int

const (
	// StatusNoError means every file ended up at the destination.
	StatusNoError Status = iota

	// StatusNeedFullCheck means the move succeeded but some files were left
	// untouched under DontReplace; the caller should re-check the data.
	StatusNeedFullCheck

	// StatusFileExist means the destination was already populated under
	// FailIfExist; nothing was mutated.
	StatusFileExist

	// StatusFatalDiskError means the move failed mid-way; already-moved
	// files were rolled back best-effort and the save path is unchanged.
	StatusFatalDiskError
)

func (s Status) String() string {
	switch s {
	case StatusNoError:
		return "no_error"
	case StatusNeedFullCheck:
		return "need_full_check"
	case StatusFileExist:
		return "file_exist"
	case StatusFatalDiskError:
		return "fatal_disk_error"
	default:
		return "unknown"
	}
}

// Partfile is the handle to the side-store holding pieces that straddle
// unaligned file boundaries. It is relocated together with the file set.
type Partfile interface {
	Move(newRoot string) error
}

// MoveStorage relocates every non-absolute file of the layout from savePath
// to destPath as one logical operation, then moves the partfile (if any).
//
// Renaming is tried first; when it fails for a reason other than "invalid
// argument" or "permission denied" (notably a move across filesystem
// volumes) the file is copied instead and the source copy is deleted only
// once the whole move has succeeded. On a mid-move failure the files moved
// so far are renamed back best-effort and the original save path is
// returned. On success, now-empty source subdirectories are pruned.
//
// It returns the resulting status, the save path the storage ends up at, and
// the structured error behind a fatal status.
func MoveStorage(files Layout, savePath, destPath string, pf Partfile, policy MovePolicy, fsys Filesystem) (Status, string, error) {
	savePath = filepath.Clean(savePath)

	newSavePath, err := filepath.Abs(destPath)
	if err != nil {
		return StatusFatalDiskError, savePath, newError(OpStat, NoFile, err)
	}

	if policy == FailIfExist {
		if _, err := fsys.Stat(newSavePath); !isNotExist(err) {
			// the directory exists, check all the files
			for i := 0; i < files.EndFile(); i++ {
				// files moved out to absolute paths are ignored
				if files.FileIsAbsolute(i) {
					continue
				}

				_, err := fsys.Stat(filepath.Join(newSavePath, files.FilePath(i)))
				if err == nil {
					return StatusFileExist, savePath, newError(OpStat, i, fs.ErrExist)
				}

				if !isNotExist(err) {
					return StatusFileExist, savePath, newError(OpStat, i, err)
				}
			}
		}
	}

	if _, err := fsys.Stat(newSavePath); err != nil {
		if !isNotExist(err) {
			return StatusFatalDiskError, savePath, newError(OpStat, NoFile, err)
		}

		if err := fsys.MkdirAll(newSavePath); err != nil {
			return StatusFatalDiskError, savePath, newError(OpMkdir, NoFile, err)
		}
	}

	ret := StatusNoError

	// files we ended up copying rather than renaming; their sources are
	// still in place, which changes both rollback and cleanup
	copied := make([]bool, files.NumFiles())

	var ferr *Error

	i := 0
	for ; i < files.EndFile(); i++ {
		// files moved out to absolute paths are not moved
		if files.FileIsAbsolute(i) {
			continue
		}

		oldPath := filepath.Join(savePath, files.FilePath(i))
		newPath := filepath.Join(newSavePath, files.FilePath(i))

		if policy == DontReplace {
			if _, err := fsys.Stat(newPath); err == nil {
				if ret == StatusNoError {
					ret = StatusNeedFullCheck
				}

				continue
			}
		}

		if dir := filepath.Dir(newPath); dir != newSavePath {
			if err := fsys.MkdirAll(dir); err != nil {
				ferr = newError(OpMkdir, i, err)
				break
			}
		}

		err := fsys.Rename(oldPath, newPath)
		if err != nil {
			switch {
			case isNotExist(err):
				// the source file doesn't exist; nothing to move
				err = nil
			case !isInvalidArgument(err) && !isPermission(err):
				// renaming across volumes fails (EXDEV on most systems);
				// fall back to copying
				err = fsys.CopyFile(oldPath, newPath)
				if err == nil {
					copied[i] = true
				}
			}
		}

		if err != nil {
			ferr = newError(OpRename, i, err)
			break
		}
	}

	if ferr == nil && pf != nil {
		if err := pf.Move(newSavePath); err != nil {
			ferr = newError(OpPartfileMove, NoFile, err)
		}
	}

	if ferr != nil {
		// roll back: rename the files processed so far back to the source,
		// best effort. Copied files were never removed from the source, so
		// they need no rollback.
		for j := i - 1; j >= 0; j-- {
			if files.FileIsAbsolute(j) || copied[j] {
				continue
			}

			oldPath := filepath.Join(savePath, files.FilePath(j))
			newPath := filepath.Join(newSavePath, files.FilePath(j))

			// ignore errors when rolling back
			_ = fsys.Rename(newPath, oldPath)
		}

		return StatusFatalDiskError, savePath, ferr
	}

	// the move is committed from here on; everything below is cleanup and
	// its errors are ignored

	subdirs := make(map[string]struct{})

	for j := 0; j < files.EndFile(); j++ {
		if files.FileIsAbsolute(j) {
			continue
		}

		rel := files.FilePath(j)
		if dir := filepath.Dir(rel); dir != "." {
			subdirs[dir] = struct{}{}
		}

		// renamed files left nothing behind; only copied sources remain
		if !copied[j] {
			continue
		}

		_ = fsys.Remove(filepath.Join(savePath, rel))
	}

	// prune now-empty source subdirectories, walking up to but never past
	// the source root. The first non-empty directory stops the walk.
	for dir := range subdirs {
		subdir := filepath.Join(savePath, dir)

		for subdir != savePath {
			if err := fsys.Remove(subdir); err != nil {
				break
			}

			parent := filepath.Dir(subdir)
			if parent == subdir {
				break
			}

			subdir = parent
		}
	}

	return ret, newSavePath, nil
}
