package ops

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedline-ml/feedline/internal/recordio"
	"github.com/feedline-ml/feedline/internal/tensor"
)

func f32le(vals ...float32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

// writePlainRecords writes records carrying a scalar label and image
// bytes [i, i, ...] of growing length.
func writePlainRecords(tb testing.TB, n int, withIndex bool) (string, string) {
	tb.Helper()
	dir := tb.TempDir()
	path := filepath.Join(dir, "data.rec")
	f, err := os.Create(path)
	require.NoError(tb, err)
	defer f.Close()

	w := recordio.NewWriter(f)
	for i := 0; i < n; i++ {
		img := make([]byte, 4+i)
		for j := range img {
			img[j] = byte(i)
		}
		require.NoError(tb, w.WriteRecord(recordio.Header{Flag: 0, Label: float32(i)}, img))
	}

	idxPath := ""
	if withIndex {
		idxPath = filepath.Join(dir, "data.idx")
		idx, err := os.Create(idxPath)
		require.NoError(tb, err)
		defer idx.Close()
		require.NoError(tb, recordio.WriteIndex(idx, w.Offsets()))
	}
	return path, idxPath
}

// writeDetectionRecord writes one annotated record with the given
// labels and x, y, w, h boxes.
func writeDetectionRecord(tb testing.TB, id, width, height float32, labels, boxes []float32, image []byte) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "det.rec")
	f, err := os.Create(path)
	require.NoError(tb, err)
	defer f.Close()

	body := f32le(id, width, height)
	body = append(body, f32le(labels...)...)
	body = append(body, f32le(boxes...)...)
	body = append(body, image...)
	//nolint:gosec // G115: test label counts are tiny
	hdr := recordio.Header{Flag: uint32(3 + 5*len(labels))}
	w := recordio.NewWriter(f)
	require.NoError(tb, w.WriteRecord(hdr, body))
	return path
}

func TestRecordReaderBatchesAndWraps(t *testing.T) {
	path, _ := writePlainRecords(t, 3, false)
	op, err := New(OpSpec{Op: "record_reader", Args: map[string]any{"path": path}}, 2)
	require.NoError(t, err)

	// Batch 1 reads records 0,1; batch 2 wraps to 2,0.
	wantFirst := [][2]int{{0, 1}, {2, 0}}
	for iter, want := range wantFirst {
		outs := runOp(t, op, nil)
		require.Len(t, outs, 2)
		images, labels := outs[0], outs[1]
		require.Equal(t, 2, images.NumSamples())
		for s, ord := range want {
			img := images.View(s).AsUint8()
			assert.Len(t, img, 4+ord, "iteration %d sample %d", iter, s)
			assert.Equal(t, byte(ord), img[0])
			assert.Equal(t, float32(ord), labels.View(s).AsFloat32()[0])
			assert.Contains(t, images.SourceInfo(s), path)
		}
	}
}

func TestRecordReaderWithIndexFile(t *testing.T) {
	path, idxPath := writePlainRecords(t, 4, true)
	op, err := New(OpSpec{Op: "record_reader", Args: map[string]any{
		"path": path, "index_path": idxPath,
	}}, 4)
	require.NoError(t, err)

	outs := runOp(t, op, nil)
	labels := outs[1]
	for s := 0; s < 4; s++ {
		assert.Equal(t, float32(s), labels.View(s).AsFloat32()[0])
	}
}

func TestRecordReaderDetectionOutputs(t *testing.T) {
	labels := []float32{10, 20, 30}
	boxes := []float32{
		4, 4, 8, 8,
		0, 0, 1, 9, // dropped by the size threshold
		2, 2, 6, 6,
	}
	path := writeDetectionRecord(t, 7, 16, 16, labels, boxes, []byte{1, 2, 3, 4})
	op, err := New(OpSpec{Op: "record_reader", Args: map[string]any{
		"path": path, "detection": true, "save_image_ids": true,
		"size_threshold": 2.0, "ltrb": true, "ratio": true,
	}}, 1)
	require.NoError(t, err)
	require.Equal(t, 4, op.NumOutputs())

	outs := runOp(t, op, nil)
	images, outBoxes, outLabels, ids := outs[0], outs[1], outs[2], outs[3]

	assert.Equal(t, []byte{1, 2, 3, 4}, images.View(0).AsUint8())
	assert.Equal(t, int32(7), ids.View(0).AsInt32()[0])

	// Filtered annotations stay index aligned and equal in length.
	gotLabels := outLabels.View(0).AsInt32()
	gotBoxes := outBoxes.View(0).AsFloat32()
	require.Equal(t, tensor.Shape{2, 1}, outLabels.Shape(0))
	require.Equal(t, tensor.Shape{2, 4}, outBoxes.Shape(0))
	assert.Equal(t, []int32{10, 30}, gotLabels)

	// ltrb before ratio: corners divided by the decoded extent.
	assert.InDeltaSlice(t, []float32{0.25, 0.25, 0.75, 0.75, 0.125, 0.125, 0.5, 0.5}, gotBoxes, 1e-6)
	for i := 0; i < len(gotBoxes); i++ {
		assert.GreaterOrEqual(t, gotBoxes[i], float32(0))
		assert.LessOrEqual(t, gotBoxes[i], float32(1))
	}
}

func TestRecordReaderConfigErrors(t *testing.T) {
	path, _ := writePlainRecords(t, 1, false)
	cases := map[string]OpSpec{
		"missing path": {Op: "record_reader"},
		"ids without detection": {Op: "record_reader", Args: map[string]any{
			"path": path, "save_image_ids": true,
		}},
		"missing file": {Op: "record_reader", Args: map[string]any{
			"path": filepath.Join(t.TempDir(), "absent.rec"),
		}},
	}
	for name, spec := range cases {
		_, err := New(spec, 2)
		require.ErrorIs(t, err, ErrInvalidConfiguration, name)
	}

	_, err := New(OpSpec{Op: "record_reader", Args: map[string]any{"path": path}}, 0)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestRecordReaderSkipsUnparsableRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.rec")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := recordio.NewWriter(f)

	writeDet := func(id, label float32) {
		body := f32le(id, 16, 16)
		body = append(body, f32le(label)...)
		body = append(body, f32le(4, 4, 8, 8)...)
		body = append(body, 9)
		require.NoError(t, w.WriteRecord(recordio.Header{Flag: 8}, body))
	}
	writeDet(1, 10)
	// A plain record in the middle cannot be parsed as detection.
	require.NoError(t, w.WriteRecord(recordio.Header{Flag: 0, Label: 5}, []byte{1, 2, 3}))
	writeDet(3, 30)
	require.NoError(t, f.Close())

	op, err := New(OpSpec{Op: "record_reader", Args: map[string]any{
		"path": path, "detection": true, "save_image_ids": true,
	}}, 1)
	require.NoError(t, err)

	outs := runOp(t, op, nil)
	assert.Equal(t, int32(1), outs[3].View(0).AsInt32()[0])

	// The bad record spoils one iteration and the cursor moves past it.
	require.ErrorIs(t, setupErr(t, op, nil), ErrInvalidInput)
	outs = runOp(t, op, nil)
	assert.Equal(t, int32(3), outs[3].View(0).AsInt32()[0])
}

func TestRecordReaderDetectionFlagMismatch(t *testing.T) {
	// Plain records cannot be parsed as detection: Setup reports an
	// invalid input for the iteration.
	path, _ := writePlainRecords(t, 1, false)
	op, err := New(OpSpec{Op: "record_reader", Args: map[string]any{
		"path": path, "detection": true,
	}}, 1)
	require.NoError(t, err)
	require.ErrorIs(t, setupErr(t, op, nil), ErrInvalidInput)
}
