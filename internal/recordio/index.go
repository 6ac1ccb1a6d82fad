package recordio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteIndex writes one line per record, the record's ordinal and byte
// offset separated by a tab, the layout of .idx files.
func WriteIndex(w io.Writer, offsets []int64) error {
	bw := bufio.NewWriter(w)
	for i, off := range offsets {
		if _, err := fmt.Fprintf(bw, "%d\t%d\n", i, off); err != nil {
			return fmt.Errorf("write index entry %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// ReadIndex parses an index file into record byte offsets, kept in file
// order.
func ReadIndex(r io.Reader) ([]int64, error) {
	var offsets []int64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, fmt.Errorf("index line %d: expected ordinal and offset, got %q", line, text)
		}
		off, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("index line %d: %w", line, err)
		}
		offsets = append(offsets, off)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return offsets, nil
}
