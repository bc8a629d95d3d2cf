package storage_test

import (
	"errors"
	"testing"

	"github.com/NamanBalaji/seedstore/pkg/storage"
	"github.com/NamanBalaji/seedstore/pkg/storage/iovec"
	"github.com/NamanBalaji/seedstore/pkg/storage/layout"
)

type opCall struct {
	file   int
	offset int64
	bytes  int
}

// stubOp is an in-memory file-op that satisfies every sub-request in full
// unless told to fail or to signal end-of-stream for a specific file.
type stubOp struct {
	calls   []opCall
	failAt  int
	failErr error
	eofAt   int
}

func newStubOp() *stubOp {
	return &stubOp{failAt: -1, eofAt: -1}
}

func (*stubOp) Kind() storage.Operation { return storage.OpRead }

func (s *stubOp) FileOp(file int, offset int64, bufs iovec.Buffers) (int, error) {
	if file == s.failAt {
		return 0, s.failErr
	}

	if file == s.eofAt {
		return 0, nil
	}

	s.calls = append(s.calls, opCall{file: file, offset: offset, bytes: bufs.Length()})

	return bufs.Length(), nil
}

func mustLayout(t *testing.T, pieceLength int64, sizes ...int64) *layout.Layout {
	t.Helper()

	entries := make([]layout.FileEntry, len(sizes))
	for i, size := range sizes {
		entries[i] = layout.FileEntry{Path: string(rune('a' + i)), Size: size}
	}

	l, err := layout.New(entries, pieceLength)
	if err != nil {
		t.Fatalf("layout.New failed: %v", err)
	}

	return l
}

func buffersOf(sizes ...int) iovec.Buffers {
	bufs := make(iovec.Buffers, len(sizes))
	for i, size := range sizes {
		bufs[i] = make([]byte, size)
	}

	return bufs
}

func TestReadWriteVFullTransfer(t *testing.T) {
	// 10 + 6 + 9 = 25 bytes, piece length 8
	l := mustLayout(t, 8, 10, 6, 9)
	op := newStubOp()

	// piece 1, offset 2 -> global offset 10, i.e. start of file 1
	bufs := buffersOf(5, 5)

	n, err := storage.ReadWriteV(l, bufs, 1, 2, op)
	if err != nil {
		t.Fatalf("ReadWriteV failed: %v", err)
	}
	if n != 10 {
		t.Fatalf("ReadWriteV = %d, want 10", n)
	}

	want := []opCall{
		{file: 1, offset: 0, bytes: 6},
		{file: 2, offset: 0, bytes: 4},
	}

	if len(op.calls) != len(want) {
		t.Fatalf("got %d per-file calls, want %d", len(op.calls), len(want))
	}
	for i, w := range want {
		if op.calls[i] != w {
			t.Errorf("call %d = %+v, want %+v", i, op.calls[i], w)
		}
	}
}

func TestReadWriteVStartsMidFile(t *testing.T) {
	l := mustLayout(t, 4, 10, 6)
	op := newStubOp()

	// piece 1, offset 3 -> global offset 7, 3 bytes left in file 0
	n, err := storage.ReadWriteV(l, buffersOf(2, 4), 1, 3, op)
	if err != nil {
		t.Fatalf("ReadWriteV failed: %v", err)
	}
	if n != 6 {
		t.Fatalf("ReadWriteV = %d, want 6", n)
	}

	want := []opCall{
		{file: 0, offset: 7, bytes: 3},
		{file: 1, offset: 0, bytes: 3},
	}

	for i, w := range want {
		if op.calls[i] != w {
			t.Errorf("call %d = %+v, want %+v", i, op.calls[i], w)
		}
	}
}

// Zero-length files anywhere in the layout are skipped: the per-file calls
// are identical to those for an equivalent layout without them.
func TestReadWriteVSkipsEmptyFiles(t *testing.T) {
	withEmpties := mustLayout(t, 8, 10, 0, 0, 6, 0, 9)
	without := mustLayout(t, 8, 10, 6, 9)

	opA := newStubOp()
	opB := newStubOp()

	if _, err := storage.ReadWriteV(withEmpties, buffersOf(25), 0, 0, opA); err != nil {
		t.Fatalf("ReadWriteV with empties failed: %v", err)
	}
	if _, err := storage.ReadWriteV(without, buffersOf(25), 0, 0, opB); err != nil {
		t.Fatalf("ReadWriteV without empties failed: %v", err)
	}

	if len(opA.calls) != len(opB.calls) {
		t.Fatalf("call counts differ: %d vs %d", len(opA.calls), len(opB.calls))
	}

	for i := range opA.calls {
		if opA.calls[i].bytes != opB.calls[i].bytes || opA.calls[i].offset != opB.calls[i].offset {
			t.Errorf("call %d differs: %+v vs %+v", i, opA.calls[i], opB.calls[i])
		}
	}
}

// A request extending past the end of the address space returns the bytes
// that actually exist, without error and without touching past the last
// file.
func TestReadWriteVPastEndOfStorage(t *testing.T) {
	l := mustLayout(t, 8, 10, 5)
	op := newStubOp()

	// global offset 8, only 7 bytes remain but 12 are requested
	n, err := storage.ReadWriteV(l, buffersOf(12), 1, 0, op)
	if err != nil {
		t.Fatalf("ReadWriteV failed: %v", err)
	}
	if n != 7 {
		t.Fatalf("ReadWriteV = %d, want 7", n)
	}

	for _, c := range op.calls {
		if c.file >= l.NumFiles() {
			t.Errorf("file op touched nonexistent file %d", c.file)
		}
	}
}

func TestReadWriteVOpError(t *testing.T) {
	l := mustLayout(t, 8, 10, 6, 9)
	op := newStubOp()
	op.failAt = 1
	op.failErr = &storage.Error{Op: storage.OpRead, File: 1, Err: errors.New("boom")}

	n, err := storage.ReadWriteV(l, buffersOf(20), 0, 0, op)
	if err == nil {
		t.Fatal("ReadWriteV did not return the file op error")
	}
	if n != 10 {
		t.Errorf("bytes before failure = %d, want 10", n)
	}

	var serr *storage.Error
	if !errors.As(err, &serr) {
		t.Fatalf("error %v is not a *storage.Error", err)
	}
	if serr.File != 1 || serr.Op != storage.OpRead {
		t.Errorf("error carries file=%d op=%v, want file=1 op=read", serr.File, serr.Op)
	}
}

func TestReadWriteVShortTransfer(t *testing.T) {
	l := mustLayout(t, 8, 10, 6, 9)
	op := newStubOp()
	op.eofAt = 1

	n, err := storage.ReadWriteV(l, buffersOf(20), 0, 0, op)
	if !errors.Is(err, storage.ErrShortTransfer) {
		t.Fatalf("error = %v, want ErrShortTransfer", err)
	}
	if n != 10 {
		t.Errorf("bytes before EOF = %d, want 10", n)
	}

	var serr *storage.Error
	if !errors.As(err, &serr) {
		t.Fatalf("error %v is not a *storage.Error", err)
	}
	if serr.File != 1 {
		t.Errorf("short transfer recorded file %d, want 1", serr.File)
	}
}

func TestReadWriteVEmptyRequest(t *testing.T) {
	l := mustLayout(t, 8, 10)
	op := newStubOp()

	n, err := storage.ReadWriteV(l, iovec.Buffers{}, 0, 0, op)
	if err != nil || n != 0 {
		t.Fatalf("ReadWriteV = (%d, %v), want (0, nil)", n, err)
	}
	if len(op.calls) != 0 {
		t.Errorf("empty request still performed %d file ops", len(op.calls))
	}
}

func TestReadWriteVPieceOutOfRangePanics(t *testing.T) {
	l := mustLayout(t, 8, 10)

	defer func() {
		if recover() == nil {
			t.Fatal("out-of-range piece did not panic")
		}
	}()

	_, _ = storage.ReadWriteV(l, buffersOf(1), 5, 0, newStubOp())
}
