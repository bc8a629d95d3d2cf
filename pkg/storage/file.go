package storage

import (
	"io"
	"os"
	"path/filepath"

	"github.com/NamanBalaji/seedstore/pkg/storage/iovec"
)

// FileStorage is the disk-backed file set for a layout. It opens (creating
// and sizing as needed) every file under a save path and exposes read and
// write FileOp strategies for the vectored I/O engine.
type FileStorage struct {
	files    []*os.File
	layout   Layout
	savePath string
}

// OpenFileStorage opens every file in the layout under savePath, creating
// missing parent directories and truncating each file to its layout size.
// Absolute-path entries are opened where they point.
func OpenFileStorage(l Layout, savePath string) (*FileStorage, error) {
	s := &FileStorage{
		files:    make([]*os.File, 0, l.NumFiles()),
		layout:   l,
		savePath: savePath,
	}

	for i := 0; i < l.NumFiles(); i++ {
		path := l.FilePath(i)
		if !l.FileIsAbsolute(i) {
			path = filepath.Join(savePath, path)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			s.Close()
			return nil, newError(OpMkdir, i, err)
		}

		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			s.Close()
			return nil, newError(OpOpen, i, err)
		}

		// Reserve the file's full extent up front so piece writes beyond the
		// current end of file land at their final location.
		if err := f.Truncate(l.FileSize(i)); err != nil {
			f.Close()
			s.Close()

			return nil, newError(OpWrite, i, err)
		}

		s.files = append(s.files, f)
	}

	return s, nil
}

// Reader returns the read strategy for this file set.
func (s *FileStorage) Reader() FileOp { return &fileReader{s} }

// Writer returns the write strategy for this file set.
func (s *FileStorage) Writer() FileOp { return &fileWriter{s} }

// ReadV reads into bufs starting at the given piece and in-piece offset.
func (s *FileStorage) ReadV(bufs iovec.Buffers, piece, offset int) (int, error) {
	return ReadWriteV(s.layout, bufs, piece, offset, s.Reader())
}

// WriteV writes bufs starting at the given piece and in-piece offset.
func (s *FileStorage) WriteV(bufs iovec.Buffers, piece, offset int) (int, error) {
	return ReadWriteV(s.layout, bufs, piece, offset, s.Writer())
}

// Close closes all underlying file descriptors. The last encountered error
// (if any) is returned.
func (s *FileStorage) Close() error {
	var lastErr error

	for _, f := range s.files {
		if err := f.Close(); err != nil {
			lastErr = err
		}
	}

	s.files = nil

	return lastErr
}

type fileReader struct {
	s *FileStorage
}

func (*fileReader) Kind() Operation { return OpRead }

func (r *fileReader) FileOp(file int, offset int64, bufs iovec.Buffers) (int, error) {
	total := 0

	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}

		n, err := r.s.files[file].ReadAt(b, offset)
		total += n
		offset += int64(n)

		if err == io.EOF {
			// short read; the engine treats it as end-of-stream
			return total, nil
		}

		if err != nil {
			return total, newError(OpRead, file, err)
		}
	}

	return total, nil
}

type fileWriter struct {
	s *FileStorage
}

func (*fileWriter) Kind() Operation { return OpWrite }

func (w *fileWriter) FileOp(file int, offset int64, bufs iovec.Buffers) (int, error) {
	total := 0

	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}

		n, err := w.s.files[file].WriteAt(b, offset)
		total += n
		offset += int64(n)

		if err != nil {
			return total, newError(OpWrite, file, err)
		}
	}

	return total, nil
}
