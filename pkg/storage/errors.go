package storage

import (
	"errors"
	"fmt"
)

// Operation tags the filesystem or transfer operation a storage error came
// from.
type Operation int

const (
	OpFileOp Operation = iota
	OpRead
	OpWrite
	OpStat
	OpOpen
	OpMkdir
	OpRename
	OpCopy
	OpRemove
	OpPartfileMove
)

func (o Operation) String() string {
	switch o {
	case OpFileOp:
		return "file_op"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpStat:
		return "stat"
	case OpOpen:
		return "open"
	case OpMkdir:
		return "mkdir"
	case OpRename:
		return "rename"
	case OpCopy:
		return "copy"
	case OpRemove:
		return "remove"
	case OpPartfileMove:
		return "partfile_move"
	default:
		return "unknown"
	}
}

// NoFile marks errors that are not tied to a specific file in the layout.
const NoFile = -1

// ErrShortTransfer is wrapped by the vectored I/O engine when a file
// operation hits end-of-stream while bytes were still expected from that
// file. Callers that consider EOF benign test for it with errors.Is and use
// the transferred byte count instead.
var ErrShortTransfer = errors.New("short transfer")

// Error is the structured error carrier for both engines. It records which
// operation failed and, where applicable, the implicated file index.
type Error struct {
	Op   Operation
	File int // file index in the layout, or NoFile
	Err  error
}

func (e *Error) Error() string {
	if e.File == NoFile {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("storage %s (file %d): %v", e.Op, e.File, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op Operation, file int, err error) *Error {
	return &Error{Op: op, File: file, Err: err}
}
