// Package layout models the virtual file layout of a multi-file download: an
// immutable, ordered catalog of files that together form one flat,
// piece-indexed byte address space. Offsets are computed once at construction
// time; a Layout is safe for concurrent readers.
package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// Sentinel errors for layout validation.
var (
	ErrNoFiles            = errors.New("layout has no files")
	ErrInvalidPieceLength = errors.New("invalid piece length")
	ErrInvalidFileSize    = errors.New("invalid file size")
	ErrEmptyPath          = errors.New("empty file path")
)

// FileEntry describes one file in the layout. Path is relative to the save
// path unless it is absolute, in which case the file lives outside the
// storage tree and is never relocated.
type FileEntry struct {
	Path string
	Size int64
}

// Layout is the immutable virtual file layout. It maps global byte offsets
// onto (file, in-file offset) pairs and carries the torrent-wide piece
// length.
type Layout struct {
	entries     []FileEntry
	offsets     []int64 // cumulative byte offset of each file
	total       int64
	pieceLength int64
}

// New builds a layout from an ordered list of file entries and a piece
// length. Relative paths are cleaned; entry order defines the address space.
func New(entries []FileEntry, pieceLength int64) (*Layout, error) {
	if pieceLength <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPieceLength, pieceLength)
	}

	if len(entries) == 0 {
		return nil, ErrNoFiles
	}

	l := &Layout{
		entries:     make([]FileEntry, len(entries)),
		offsets:     make([]int64, len(entries)),
		pieceLength: pieceLength,
	}

	for i, e := range entries {
		if e.Path == "" {
			return nil, fmt.Errorf("%w: entry %d", ErrEmptyPath, i)
		}

		if e.Size < 0 {
			return nil, fmt.Errorf("%w: entry %d has size %d", ErrInvalidFileSize, i, e.Size)
		}

		l.entries[i] = FileEntry{Path: filepath.Clean(e.Path), Size: e.Size}
		l.offsets[i] = l.total
		l.total += e.Size
	}

	return l, nil
}

// FromDir walks root and builds a layout of every regular file found, with
// paths relative to root. Walk order (lexical) defines the address space.
func FromDir(root string, pieceLength int64) (*Layout, error) {
	var entries []FileEntry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		entries = append(entries, FileEntry{Path: rel, Size: info.Size()})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return New(entries, pieceLength)
}

// NumFiles returns the number of files in the layout.
func (l *Layout) NumFiles() int { return len(l.entries) }

// EndFile returns the index one past the last file.
func (l *Layout) EndFile() int { return len(l.entries) }

// FileOffset returns the global byte offset where file i begins.
func (l *Layout) FileOffset(i int) int64 { return l.offsets[i] }

// FileSize returns the size in bytes of file i.
func (l *Layout) FileSize(i int) int64 { return l.entries[i].Size }

// FilePath returns the (cleaned) path of file i as given at construction.
func (l *Layout) FilePath(i int) string { return l.entries[i].Path }

// FileIsAbsolute reports whether file i lives at an absolute path outside
// the storage tree.
func (l *Layout) FileIsAbsolute(i int) bool { return filepath.IsAbs(l.entries[i].Path) }

// TotalSize returns the total size of the virtual address space.
func (l *Layout) TotalSize() int64 { return l.total }

// PieceLength returns the torrent-wide piece length.
func (l *Layout) PieceLength() int64 { return l.pieceLength }

// EndPiece returns the index one past the last piece.
func (l *Layout) EndPiece() int {
	return int((l.total + l.pieceLength - 1) / l.pieceLength)
}

// PieceSize returns the size of piece i; the last piece may be short.
func (l *Layout) PieceSize(i int) int64 {
	if i == l.EndPiece()-1 {
		if rem := l.total % l.pieceLength; rem != 0 {
			return rem
		}
	}

	return l.pieceLength
}

// FileIndexAtOffset returns the index of the file containing the given
// global offset. Zero-size files sharing that offset are skipped so the
// returned file actually holds the byte. off must be in [0, TotalSize()).
func (l *Layout) FileIndexAtOffset(off int64) int {
	// first file starting beyond off, minus one
	i := sort.Search(len(l.offsets), func(i int) bool {
		return l.offsets[i] > off
	}) - 1

	for i < len(l.entries)-1 && off >= l.offsets[i]+l.entries[i].Size {
		i++
	}

	return i
}
