package recordio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Scanner iterates the records of a stream one at a time, yielding the
// raw framed bytes of each record for ParseRecord.
type Scanner struct {
	r   io.Reader
	rec []byte
	err error
}

// NewScanner returns a Scanner reading records from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: r}
}

// Scan advances to the next record. It returns false at the end of the
// stream or on the first framing error, which Err reports.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	s.rec = s.rec[:0]

	for first := true; ; first = false {
		var head [8]byte
		if _, err := io.ReadFull(s.r, head[:]); err != nil {
			if first && errors.Is(err, io.EOF) {
				return false
			}
			s.err = fmt.Errorf("%w: chunk framing: %v", ErrCorrupt, err)
			return false
		}
		magic := binary.LittleEndian.Uint32(head[0:4])
		if first && magic != magicNumber {
			s.err = fmt.Errorf("%w: 0x%08X", ErrInvalidMagic, magic)
			return false
		}
		rec := binary.LittleEndian.Uint32(head[4:8])
		cflag, clength := decodeFlag(rec), decodeLength(rec)
		terminal := cflag == chunkSingle || cflag == chunkLast

		s.rec = append(s.rec, head[:]...)
		n := len(s.rec)
		s.rec = append(s.rec, make([]byte, align4(clength))...)
		if read, err := io.ReadFull(s.r, s.rec[n:]); err != nil {
			// A stream may end right after the terminal chunk's
			// payload; the missing padding is zero filled.
			atEnd := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
			if !(terminal && atEnd && read >= clength) {
				s.err = fmt.Errorf("%w: chunk payload: %v", ErrCorrupt, err)
				return false
			}
		}
		if terminal {
			return true
		}
	}
}

// Record returns the current record's framed bytes. The slice is only
// valid until the next call to Scan.
func (s *Scanner) Record() []byte { return s.rec }

// Err returns the first error encountered while scanning.
func (s *Scanner) Err() error { return s.err }

// ScanOffsets walks the chunk framing of data and returns the byte
// offset of every record, without copying payloads.
func ScanOffsets(data []byte) ([]int64, error) {
	var offsets []int64
	off := 0
	for off < len(data) {
		start := off
		for {
			if off+8 > len(data) {
				return nil, fmt.Errorf("%w: truncated chunk framing at offset %d", ErrCorrupt, off)
			}
			if m := binary.LittleEndian.Uint32(data[off:]); off == start && m != magicNumber {
				return nil, fmt.Errorf("%w: 0x%08X at offset %d", ErrInvalidMagic, m, off)
			}
			rec := binary.LittleEndian.Uint32(data[off+4:])
			cflag, clength := decodeFlag(rec), decodeLength(rec)
			if off+8+clength > len(data) {
				return nil, fmt.Errorf("%w: chunk of %d bytes at offset %d", ErrCorrupt, clength, off+8)
			}
			off += 8 + align4(clength)
			if cflag == chunkSingle || cflag == chunkLast {
				break
			}
		}
		if off > len(data) {
			off = len(data)
		}
		offsets = append(offsets, int64(start))
	}
	return offsets, nil
}
