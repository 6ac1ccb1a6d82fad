// Package recordio reads and writes RecordIO files: sequences of
// length-prefixed chunks guarded by a magic word, carrying image records
// with float labels or per-object annotations. A record whose payload
// contains the magic word is split there into continuation chunks;
// readers splice the word back in while reassembling, so arbitrary
// binary image data survives the framing.
package recordio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
)

// Common errors.
var (
	ErrInvalidMagic  = errors.New("invalid magic number")
	ErrCorrupt       = errors.New("corrupt record")
	ErrRecordTooLong = errors.New("record exceeds maximum chunk length")
	ErrNoAnnotations = errors.New("record carries no object annotations")
)

const (
	magicNumber uint32 = 0xced7230a
	headerSize         = 24
	maxChunkLen        = 1<<29 - 1
)

// Chunk continuation flags, packed into the top three bits of the
// length word.
const (
	chunkSingle uint32 = 0
	chunkFirst  uint32 = 1
	chunkMiddle uint32 = 2
	chunkLast   uint32 = 3
)

func decodeFlag(rec uint32) uint32 { return (rec >> 29) & 7 }

func decodeLength(rec uint32) int { return int(rec & maxChunkLen) }

func align4(n int) int { return (n + 3) &^ 3 }

// Header prefixes every record payload. Flag encodes what the label
// region holds: 0 for a single scalar label stored in the header
// itself, k for k float labels, 5n+3 for n annotated objects.
type Header struct {
	Flag    uint32
	Label   float32
	ImageID [2]uint64
}

func decodeHeader(b []byte) Header {
	return Header{
		Flag:  binary.LittleEndian.Uint32(b[0:4]),
		Label: math.Float32frombits(binary.LittleEndian.Uint32(b[4:8])),
		ImageID: [2]uint64{
			binary.LittleEndian.Uint64(b[8:16]),
			binary.LittleEndian.Uint64(b[16:24]),
		},
	}
}

func (h Header) encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], h.Flag)
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(h.Label))
	binary.LittleEndian.PutUint64(b[8:16], h.ImageID[0])
	binary.LittleEndian.PutUint64(b[16:24], h.ImageID[1])
}

// ParseOptions select how record payloads are interpreted.
type ParseOptions struct {
	// Detection parses the label region as object annotations: image
	// id, image dimensions, then one class label and one box per object.
	Detection bool
	// LTRB converts boxes from x, y, width, height to left, top, right,
	// bottom corners.
	LTRB bool
	// SizeThreshold drops objects whose box width or height falls below
	// it, in the box coordinate units.
	SizeThreshold float32
	// Ratio divides box coordinates by the image dimensions stored in
	// the record, yielding relative coordinates.
	Ratio bool
}

// Record is one parsed entry: the encoded image bytes plus either plain
// float labels or object annotations.
type Record struct {
	Header  Header
	Image   []byte
	Labels  []float32
	Objects *Detection
}

// Detection carries the object annotations of one record. Labels and
// Boxes stay index aligned: label i describes box i.
type Detection struct {
	ID     int32
	Width  int
	Height int
	Labels []int32
	Boxes  []float32 // 4 per object: x, y, w, h, or l, t, r, b with LTRB
}

// ParseRecord parses one framed record. For single-chunk records the
// returned image aliases data; multi-chunk records are reassembled into
// a fresh buffer.
func ParseRecord(data []byte, opts ParseOptions) (*Record, error) {
	if len(data) < 8+headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the chunk framing", ErrCorrupt, len(data))
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != magicNumber {
		return nil, fmt.Errorf("%w: 0x%08X", ErrInvalidMagic, magic)
	}
	rec := binary.LittleEndian.Uint32(data[4:8])
	cflag, clength := decodeFlag(rec), decodeLength(rec)
	if clength < headerSize || 8+clength > len(data) {
		return nil, fmt.Errorf("%w: chunk length %d out of range", ErrCorrupt, clength)
	}
	hdr := decodeHeader(data[8 : 8+headerSize])

	payload, err := assemblePayload(data, cflag, clength)
	if err != nil {
		return nil, err
	}

	numObj := 0
	if opts.Detection {
		if hdr.Flag < 3 || (hdr.Flag-3)%5 != 0 {
			return nil, fmt.Errorf("%w: flag %d", ErrNoAnnotations, hdr.Flag)
		}
		numObj = int(hdr.Flag-3) / 5
	}
	labelSize := int(hdr.Flag) * 4
	if labelSize > len(payload) {
		return nil, fmt.Errorf("%w: label region of %d bytes exceeds %d byte payload",
			ErrCorrupt, labelSize, len(payload))
	}

	out := &Record{Header: hdr, Image: payload[labelSize:]}
	switch {
	case opts.Detection:
		out.Objects = parseDetection(payload[:labelSize], numObj, opts)
	case hdr.Flag == 0:
		out.Labels = []float32{hdr.Label}
	default:
		out.Labels = make([]float32, hdr.Flag)
		for i := range out.Labels {
			out.Labels[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[4*i:]))
		}
	}
	return out, nil
}

// assemblePayload reconstructs the record payload past the header.
// Continuation chunks mark a removed magic word, so one is spliced back
// in front of every chunk after the first; only the terminal chunk
// (cflag 3) ends the record.
func assemblePayload(data []byte, cflag uint32, clength int) ([]byte, error) {
	if cflag == chunkSingle {
		return data[8+headerSize : 8+clength], nil
	}

	payload := slices.Clone(data[8+headerSize : 8+clength])
	off := 8 + clength
	for {
		off += align4(clength) - clength
		if cflag == chunkLast {
			break
		}
		payload = binary.LittleEndian.AppendUint32(payload, magicNumber)
		if off+8 > len(data) {
			return nil, fmt.Errorf("%w: truncated continuation chunk at offset %d", ErrCorrupt, off)
		}
		rec := binary.LittleEndian.Uint32(data[off+4 : off+8])
		cflag, clength = decodeFlag(rec), decodeLength(rec)
		off += 8
		if off+clength > len(data) {
			return nil, fmt.Errorf("%w: continuation chunk of %d bytes at offset %d",
				ErrCorrupt, clength, off)
		}
		payload = append(payload, data[off:off+clength]...)
		off += clength
	}
	return payload, nil
}

func parseDetection(label []byte, numObj int, opts ParseOptions) *Detection {
	f32 := func(i int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(label[4*i:]))
	}

	id := f32(0)
	width, height := int(f32(1)), int(f32(2))
	labels := make([]float32, numObj)
	boxes := make([]float32, 4*numObj)
	for i := range labels {
		labels[i] = f32(3 + i)
	}
	for i := range boxes {
		boxes[i] = f32(3 + numObj + i)
	}

	// Undersized objects are compacted out before any coordinate
	// conversion; labels move with their boxes.
	valid := 0
	for i := 0; i < numObj; i++ {
		if boxes[4*i+2] >= opts.SizeThreshold && boxes[4*i+3] >= opts.SizeThreshold {
			if valid != i {
				copy(boxes[4*valid:4*valid+4], boxes[4*i:4*i+4])
				labels[valid] = labels[i]
			}
			valid++
		}
	}

	det := &Detection{
		ID:     int32(id),
		Width:  width,
		Height: height,
		Labels: make([]int32, valid),
		Boxes:  make([]float32, 4*valid),
	}
	w, h := float32(width), float32(height)
	if !opts.Ratio {
		w, h = 1, 1
	}
	for i := 0; i < valid; i++ {
		det.Labels[i] = int32(labels[i])
		x, y, bw, bh := boxes[4*i], boxes[4*i+1], boxes[4*i+2], boxes[4*i+3]
		if opts.LTRB {
			bw += x
			bh += y
		}
		det.Boxes[4*i] = x / w
		det.Boxes[4*i+1] = y / h
		det.Boxes[4*i+2] = bw / w
		det.Boxes[4*i+3] = bh / h
	}
	return det
}
