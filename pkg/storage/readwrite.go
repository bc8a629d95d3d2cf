// Package storage is the storage-mapping layer of a download/seed engine. It
// translates piece-indexed vectored I/O requests into per-file operations
// over a virtual file layout, and relocates whole storage trees between save
// paths with existence policies, cross-volume copy fallback and best-effort
// rollback.
package storage

import (
	"github.com/NamanBalaji/seedstore/pkg/storage/iovec"
)

// Layout is the read-only view of a virtual file layout consumed by both
// engines. It must not change for the duration of a call. The concrete
// implementation lives in pkg/storage/layout.
type Layout interface {
	NumFiles() int
	EndFile() int
	FileOffset(i int) int64
	FileSize(i int) int64
	FilePath(i int) string
	FileIsAbsolute(i int) bool
	TotalSize() int64
	PieceLength() int64
	EndPiece() int
	FileIndexAtOffset(off int64) int
}

// FileOp performs one transfer against one file. It is the polymorphism
// point that lets the same mapping logic serve reads and writes: the caller
// picks a read or a write strategy and the engine stays agnostic.
//
// FileOp returns the number of bytes actually transferred, which may be less
// than the buffer list length. Returning 0 with no error signals
// end-of-stream for that file. Errors must identify the failing file via the
// storage Error carrier.
type FileOp interface {
	// Kind tags errors produced on this strategy's behalf.
	Kind() Operation
	FileOp(file int, offset int64, bufs iovec.Buffers) (int, error)
}

// ReadWriteV maps a vectored request for the given piece and in-piece offset
// onto a sequence of per-file operations and drives them to completion.
//
// It returns the total bytes transferred. The error is nil when the request
// completed in full, and also when the request ran past the end of the
// virtual address space (the returned count is simply short). A file
// operation hitting end-of-stream mid-file yields the bytes transferred so
// far and an *Error wrapping ErrShortTransfer with the implicated file
// index; any other file operation error aborts the request and is returned
// as is.
//
// The piece index and offset must address a byte inside the virtual address
// space; violating that is a programming error and panics.
func ReadWriteV(files Layout, bufs iovec.Buffers, piece int, offset int, op FileOp) (int, error) {
	if piece < 0 || piece >= files.EndPiece() {
		panic("storage: piece index out of range")
	}

	if offset < 0 {
		panic("storage: negative in-piece offset")
	}

	size := bufs.Length()
	if size == 0 {
		return 0, nil
	}

	torrentOffset := int64(piece)*files.PieceLength() + int64(offset)
	if torrentOffset >= files.TotalSize() {
		panic("storage: request starts past end of storage")
	}

	fileIndex := files.FileIndexAtOffset(torrentOffset)
	fileOffset := torrentOffset - files.FileOffset(fileIndex)

	// cursor over the caller's buffers; advanced as bytes are consumed
	current := make(iovec.Buffers, len(bufs))
	copy(current, bufs)

	bytesLeft := size

	for bytesLeft > 0 {
		fileBytesLeft := clampToFile(files, fileIndex, fileOffset, bytesLeft)

		// skip over empty and exhausted files
		for fileBytesLeft == 0 {
			fileIndex++
			fileOffset = 0

			// bytes_left should be clamped by the total size of the storage,
			// so running off the end means the caller asked for more bytes
			// than the address space holds. Return what was transferred.
			if fileIndex >= files.EndFile() {
				return size - bytesLeft, nil
			}

			fileBytesLeft = clampToFile(files, fileIndex, fileOffset, bytesLeft)
		}

		n, err := op.FileOp(fileIndex, fileOffset, current.Take(fileBytesLeft))
		if err != nil {
			return size - bytesLeft, err
		}

		current = current.Advance(n)
		bytesLeft -= n
		fileOffset += int64(n)

		// a zero byte transfer means end-of-stream for this file
		if n == 0 {
			return size - bytesLeft, newError(op.Kind(), fileIndex, ErrShortTransfer)
		}
	}

	return size, nil
}

// clampToFile returns how many of the wanted bytes the file can still serve
// from the given in-file offset, never negative.
func clampToFile(files Layout, index int, offset int64, want int) int {
	left := files.FileSize(index) - offset
	if left <= 0 {
		return 0
	}

	if int64(want) < left {
		return want
	}

	return int(left)
}
