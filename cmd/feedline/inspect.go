package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/feedline-ml/feedline/internal/recordio"
)

// collectRows scans the stream, appending one table row per record up
// to limit, and returns the total record count and image byte volume.
func collectRows(r io.Reader, detection bool, limit int, table *tablewriter.Table) (int, int64, error) {
	opts := recordio.ParseOptions{Detection: detection}
	sc := recordio.NewScanner(r)

	records := 0
	var totalImage int64
	for sc.Scan() {
		rec, err := recordio.ParseRecord(sc.Record(), opts)
		if err != nil {
			return records, totalImage, fmt.Errorf("record %d: %w", records, err)
		}
		if limit == 0 || records < limit {
			table.Append(recordRow(records, rec, detection))
		}
		records++
		totalImage += int64(len(rec.Image))
	}
	return records, totalImage, sc.Err()
}

func recordRow(ordinal int, rec *recordio.Record, detection bool) []string {
	imageBytes := strconv.Itoa(len(rec.Image))
	if detection {
		return []string{
			strconv.Itoa(ordinal),
			strconv.FormatInt(int64(rec.Objects.ID), 10),
			strconv.Itoa(len(rec.Objects.Labels)),
			imageBytes,
		}
	}
	return []string{
		strconv.Itoa(ordinal),
		formatLabels(rec.Labels),
		imageBytes,
	}
}

// formatLabels renders up to four labels, eliding the rest.
func formatLabels(labels []float32) string {
	const show = 4
	s := ""
	for i, l := range labels {
		if i == show {
			return s + fmt.Sprintf(" … %d more", len(labels)-show)
		}
		if i > 0 {
			s += " "
		}
		s += strconv.FormatFloat(float64(l), 'g', -1, 32)
	}
	return s
}
