package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// PartFileName is the name of the partial-piece store inside a save path.
const PartFileName = ".parts"

const (
	partfileMagic   = 0x53504631 // "SPF1"
	partfileVersion = 1
	partfileAlign   = 512
)

// Sentinel errors for the partial-piece store.
var (
	ErrPieceNotFound    = errors.New("piece not in part file")
	ErrPartFileFull     = errors.New("part file is full")
	ErrPartFileCorrupt  = errors.New("part file header is corrupt")
	ErrPieceTooLarge    = errors.New("piece larger than part file slot")
	ErrPartFileMismatch = errors.New("part file geometry mismatch")
)

// PartFile stores whole pieces that belong to unaligned file boundaries in
// fixed-size slots inside a single file under the save path. The slot map is
// kept in memory and persisted in a small binary header on Flush, Move and
// Close. The file itself is created lazily on the first write, so a storage
// with no partial pieces never touches the disk.
type PartFile struct {
	mu sync.Mutex

	dir         string
	pieceLength int64
	maxPieces   int

	f     *os.File
	slots map[int]int // piece index -> slot
	free  []int
	next  int
	dirty bool
}

// OpenPartFile opens or prepares the partial-piece store under dir. An
// existing store is validated against the given geometry; a missing one is
// set up in memory only.
func OpenPartFile(dir string, pieceLength int64, maxPieces int) (*PartFile, error) {
	if pieceLength <= 0 || maxPieces <= 0 {
		return nil, fmt.Errorf("%w: pieceLength=%d maxPieces=%d", ErrPartFileMismatch, pieceLength, maxPieces)
	}

	p := &PartFile{
		dir:         dir,
		pieceLength: pieceLength,
		maxPieces:   maxPieces,
		slots:       make(map[int]int),
	}

	f, err := os.OpenFile(p.path(), os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}

		return nil, err
	}

	if err := p.readHeader(f); err != nil {
		f.Close()
		return nil, err
	}

	p.f = f

	return p, nil
}

func (p *PartFile) path() string {
	return filepath.Join(p.dir, PartFileName)
}

// headerSize is the slot-data start offset: the fixed fields plus the worst
// case slot table, rounded up to the alignment boundary.
func (p *PartFile) headerSize() int64 {
	raw := int64(24 + 8*p.maxPieces)
	return (raw + partfileAlign - 1) / partfileAlign * partfileAlign
}

func (p *PartFile) slotOffset(slot int) int64 {
	return p.headerSize() + int64(slot)*p.pieceLength
}

func (p *PartFile) readHeader(f *os.File) error {
	fixed := make([]byte, 24)
	if _, err := io.ReadFull(f, fixed); err != nil {
		return fmt.Errorf("%w: %v", ErrPartFileCorrupt, err)
	}

	if binary.BigEndian.Uint32(fixed[0:4]) != partfileMagic {
		return ErrPartFileCorrupt
	}

	if binary.BigEndian.Uint32(fixed[4:8]) != partfileVersion {
		return ErrPartFileCorrupt
	}

	pieceLength := int64(binary.BigEndian.Uint64(fixed[8:16]))
	maxPieces := int(binary.BigEndian.Uint32(fixed[16:20]))

	if pieceLength != p.pieceLength || maxPieces != p.maxPieces {
		return fmt.Errorf("%w: on disk pieceLength=%d maxPieces=%d", ErrPartFileMismatch, pieceLength, maxPieces)
	}

	entries := int(binary.BigEndian.Uint32(fixed[20:24]))
	if entries < 0 || entries > maxPieces {
		return ErrPartFileCorrupt
	}

	table := make([]byte, 8*entries)
	if _, err := io.ReadFull(f, table); err != nil {
		return fmt.Errorf("%w: %v", ErrPartFileCorrupt, err)
	}

	used := make(map[int]bool)

	for i := 0; i < entries; i++ {
		piece := int(binary.BigEndian.Uint32(table[i*8 : i*8+4]))
		slot := int(binary.BigEndian.Uint32(table[i*8+4 : i*8+8]))

		if slot >= maxPieces || used[slot] {
			return ErrPartFileCorrupt
		}

		p.slots[piece] = slot
		used[slot] = true

		if slot >= p.next {
			p.next = slot + 1
		}
	}

	for s := 0; s < p.next; s++ {
		if !used[s] {
			p.free = append(p.free, s)
		}
	}

	return nil
}

func (p *PartFile) writeHeader() error {
	buf := make([]byte, 24+8*len(p.slots))

	binary.BigEndian.PutUint32(buf[0:4], partfileMagic)
	binary.BigEndian.PutUint32(buf[4:8], partfileVersion)
	binary.BigEndian.PutUint64(buf[8:16], uint64(p.pieceLength))
	binary.BigEndian.PutUint32(buf[16:20], uint32(p.maxPieces))
	binary.BigEndian.PutUint32(buf[20:24], uint32(len(p.slots)))

	i := 0
	for piece, slot := range p.slots {
		binary.BigEndian.PutUint32(buf[24+i*8:], uint32(piece))
		binary.BigEndian.PutUint32(buf[24+i*8+4:], uint32(slot))
		i++
	}

	if _, err := p.f.WriteAt(buf, 0); err != nil {
		return err
	}

	p.dirty = false

	return nil
}

// ensureOpen creates the backing file on first use.
func (p *PartFile) ensureOpen() error {
	if p.f != nil {
		return nil
	}

	f, err := os.OpenFile(p.path(), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}

	p.f = f

	return nil
}

// HasPiece reports whether the store holds the given piece.
func (p *PartFile) HasPiece(piece int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.slots[piece]

	return ok
}

// WritePiece stores the piece data, allocating a slot on first write. data
// may be shorter than the piece length (the final piece usually is) but
// never longer.
func (p *PartFile) WritePiece(piece int, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if int64(len(data)) > p.pieceLength {
		return ErrPieceTooLarge
	}

	if err := p.ensureOpen(); err != nil {
		return err
	}

	slot, ok := p.slots[piece]
	if !ok {
		switch {
		case len(p.free) > 0:
			slot = p.free[len(p.free)-1]
			p.free = p.free[:len(p.free)-1]
		case p.next < p.maxPieces:
			slot = p.next
			p.next++
		default:
			return ErrPartFileFull
		}

		p.slots[piece] = slot
	}

	if _, err := p.f.WriteAt(data, p.slotOffset(slot)); err != nil {
		return err
	}

	p.dirty = true

	return nil
}

// ReadPiece reads up to len(b) bytes of the stored piece into b.
func (p *PartFile) ReadPiece(piece int, b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.slots[piece]
	if !ok {
		return 0, ErrPieceNotFound
	}

	if int64(len(b)) > p.pieceLength {
		b = b[:p.pieceLength]
	}

	n, err := p.f.ReadAt(b, p.slotOffset(slot))
	if err == io.EOF && n > 0 {
		err = nil
	}

	return n, err
}

// FreePiece releases the slot held by the piece, if any. Used once the piece
// has been verified and written to its final files.
func (p *PartFile) FreePiece(piece int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.slots[piece]
	if !ok {
		return
	}

	delete(p.slots, piece)
	p.free = append(p.free, slot)
	p.dirty = true
}

// Flush persists the slot map header.
func (p *PartFile) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.f == nil || !p.dirty {
		return nil
	}

	return p.writeHeader()
}

// Move relocates the store to a new save path. A store that was never
// written to just re-points at the new root. Renaming is tried first with
// the same cross-volume copy fallback as the file set.
func (p *PartFile) Move(newRoot string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	oldPath := p.path()
	newPath := filepath.Join(newRoot, PartFileName)

	if p.f == nil {
		if _, err := os.Stat(oldPath); os.IsNotExist(err) {
			p.dir = newRoot
			return nil
		}
	}

	if p.f != nil {
		if p.dirty {
			if err := p.writeHeader(); err != nil {
				return err
			}
		}

		if err := p.f.Close(); err != nil {
			return err
		}

		p.f = nil
	}

	err := os.Rename(oldPath, newPath)
	if err != nil && !isInvalidArgument(err) && !isPermission(err) && !isNotExist(err) {
		var osfs OSFilesystem
		if err = osfs.CopyFile(oldPath, newPath); err == nil {
			_ = os.Remove(oldPath)
		}
	}

	if err != nil {
		return err
	}

	p.dir = newRoot

	f, err := os.OpenFile(newPath, os.O_RDWR, 0o644)
	if err != nil {
		return err
	}

	p.f = f

	return nil
}

// Close flushes the header and closes the backing file.
func (p *PartFile) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.f == nil {
		return nil
	}

	if p.dirty {
		if err := p.writeHeader(); err != nil {
			p.f.Close()
			return err
		}
	}

	err := p.f.Close()
	p.f = nil

	return err
}
