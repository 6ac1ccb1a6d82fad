package recordio

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Writer frames records into chunks with 4-byte padding, splitting
// records around in-payload occurrences of the magic word.
type Writer struct {
	w       io.Writer
	off     int64
	offsets []int64
}

// NewWriter returns a Writer emitting records to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteRecord frames and writes one record: the 24-byte header followed
// by body. The label region layout inside body is the caller's, per the
// header flag.
func (w *Writer) WriteRecord(hdr Header, body []byte) error {
	payload := make([]byte, headerSize+len(body))
	hdr.encode(payload)
	copy(payload[headerSize:], body)
	if len(payload) > maxChunkLen {
		return fmt.Errorf("%w: %d bytes", ErrRecordTooLong, len(payload))
	}

	start := w.off
	segments := splitMagic(payload)
	for i, seg := range segments {
		cflag := chunkSingle
		switch {
		case len(segments) == 1:
		case i == 0:
			cflag = chunkFirst
		case i == len(segments)-1:
			cflag = chunkLast
		default:
			cflag = chunkMiddle
		}
		if err := w.writeChunk(cflag, seg); err != nil {
			return err
		}
	}
	w.offsets = append(w.offsets, start)
	return nil
}

func (w *Writer) writeChunk(cflag uint32, seg []byte) error {
	var head [8]byte
	binary.LittleEndian.PutUint32(head[0:4], magicNumber)
	binary.LittleEndian.PutUint32(head[4:8], cflag<<29|uint32(len(seg)))
	if _, err := w.w.Write(head[:]); err != nil {
		return fmt.Errorf("write chunk header: %w", err)
	}
	if _, err := w.w.Write(seg); err != nil {
		return fmt.Errorf("write chunk payload: %w", err)
	}
	if pad := align4(len(seg)) - len(seg); pad > 0 {
		if _, err := w.w.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("write chunk padding: %w", err)
		}
	}
	w.off += int64(8 + align4(len(seg)))
	return nil
}

// Offsets returns the byte offset of every record written so far, in
// write order. WriteIndex persists them as an index file.
func (w *Writer) Offsets() []int64 { return w.offsets }

// splitMagic cuts payload at each occurrence of the magic word past the
// header, dropping the matched bytes; readers splice them back in. The
// header region is never split, so the first chunk always parses.
func splitMagic(payload []byte) [][]byte {
	var segments [][]byte
	last := 0
	for i := headerSize; i+4 <= len(payload); {
		if binary.LittleEndian.Uint32(payload[i:]) == magicNumber {
			segments = append(segments, payload[last:i])
			last = i + 4
			i += 4
			continue
		}
		i++
	}
	return append(segments, payload[last:])
}
