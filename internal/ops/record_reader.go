package ops

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/feedline-ml/feedline/internal/recordio"
	"github.com/feedline-ml/feedline/internal/tensor"
	"github.com/feedline-ml/feedline/internal/workspace"
)

func init() {
	Register("record_reader", newRecordReader)
}

type recordReaderConfig struct {
	Path          string  `mapstructure:"path"`
	IndexPath     string  `mapstructure:"index_path"`
	Detection     bool    `mapstructure:"detection"`
	SaveImageIDs  bool    `mapstructure:"save_image_ids"`
	LTRB          bool    `mapstructure:"ltrb"`
	SizeThreshold float32 `mapstructure:"size_threshold"`
	Ratio         bool    `mapstructure:"ratio"`
}

// recordReader streams batches out of a RecordIO file: encoded image
// bytes plus plain float labels, or boxes, class labels and optional
// image ids for annotated records. The cursor cycles through the file
// across iterations, wrapping at the end.
type recordReader struct {
	batchSize int
	cfg       recordReaderConfig
	opts      recordio.ParseOptions

	data    []byte
	offsets []int64
	cursor  int

	batch []*recordio.Record
	ords  []int
}

//nolint:gosec // G304: paths come from the pipeline definition, not user input.
func newRecordReader(spec OpSpec, batchSize int) (Operator, error) {
	err := checkArgs(spec,
		"path", "index_path", "detection", "save_image_ids", "ltrb", "size_threshold", "ratio")
	if err != nil {
		return nil, err
	}
	var cfg recordReaderConfig
	if err := decodeArgs(spec, &cfg); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: record_reader requires a path", ErrInvalidConfiguration)
	}
	if cfg.SaveImageIDs && !cfg.Detection {
		return nil, fmt.Errorf("%w: save_image_ids needs detection records", ErrInvalidConfiguration)
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: record_reader needs a positive batch size", ErrInvalidConfiguration)
	}

	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read records: %v", ErrInvalidConfiguration, err)
	}
	var offsets []int64
	if cfg.IndexPath != "" {
		f, err := os.Open(cfg.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("%w: open index: %v", ErrInvalidConfiguration, err)
		}
		offsets, err = recordio.ReadIndex(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read index: %v", ErrInvalidConfiguration, err)
		}
	} else {
		offsets, err = recordio.ScanOffsets(data)
		if err != nil {
			return nil, fmt.Errorf("%w: scan records: %v", ErrInvalidConfiguration, err)
		}
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("%w: %s holds no records", ErrInvalidConfiguration, cfg.Path)
	}
	slog.Debug("record reader loaded",
		"path", cfg.Path, "records", len(offsets), "bytes", len(data))

	return &recordReader{
		batchSize: batchSize,
		cfg:       cfg,
		opts: recordio.ParseOptions{
			Detection:     cfg.Detection,
			LTRB:          cfg.LTRB,
			SizeThreshold: cfg.SizeThreshold,
			Ratio:         cfg.Ratio,
		},
		data:    data,
		offsets: offsets,
	}, nil
}

func (op *recordReader) Name() string   { return "record_reader" }
func (op *recordReader) NumInputs() int { return 0 }

func (op *recordReader) NumOutputs() int {
	switch {
	case op.cfg.Detection && op.cfg.SaveImageIDs:
		return 4
	case op.cfg.Detection:
		return 3
	default:
		return 2
	}
}

// record returns the framed bytes of record i, delimited by the next
// record's offset.
func (op *recordReader) record(i int) []byte {
	start := op.offsets[i]
	end := int64(len(op.data))
	if i+1 < len(op.offsets) {
		end = op.offsets[i+1]
	}
	return op.data[start:end]
}

func (op *recordReader) Setup(ws *workspace.Workspace) ([]tensor.OutputDesc, bool, error) {
	op.batch = op.batch[:0]
	op.ords = op.ords[:0]
	for i := 0; i < op.batchSize; i++ {
		ord := op.cursor
		rec, err := recordio.ParseRecord(op.record(ord), op.opts)
		if err != nil {
			// Step past the bad record so the next iteration makes
			// progress instead of failing on the same bytes.
			op.cursor = (ord + 1) % len(op.offsets)
			return nil, false, fmt.Errorf("%w: record %d: %v", ErrInvalidInput, ord, err)
		}
		op.cursor = (op.cursor + 1) % len(op.offsets)
		op.batch = append(op.batch, rec)
		op.ords = append(op.ords, ord)
	}

	n := len(op.batch)
	imageShapes := make(tensor.ShapeList, n)
	for i, rec := range op.batch {
		imageShapes[i] = tensor.Shape{len(rec.Image)}
	}
	descs := []tensor.OutputDesc{{Shapes: imageShapes, DType: tensor.Uint8}}

	if op.cfg.Detection {
		boxShapes := make(tensor.ShapeList, n)
		labelShapes := make(tensor.ShapeList, n)
		for i, rec := range op.batch {
			boxShapes[i] = tensor.Shape{len(rec.Objects.Labels), 4}
			labelShapes[i] = tensor.Shape{len(rec.Objects.Labels), 1}
		}
		descs = append(descs,
			tensor.OutputDesc{Shapes: boxShapes, DType: tensor.Float32},
			tensor.OutputDesc{Shapes: labelShapes, DType: tensor.Int32})
		if op.cfg.SaveImageIDs {
			idShapes := tensor.UniformShapeList(n, tensor.Shape{1})
			descs = append(descs, tensor.OutputDesc{Shapes: idShapes, DType: tensor.Int32})
		}
	} else {
		labelShapes := make(tensor.ShapeList, n)
		for i, rec := range op.batch {
			labelShapes[i] = tensor.Shape{len(rec.Labels)}
		}
		descs = append(descs, tensor.OutputDesc{Shapes: labelShapes, DType: tensor.Float32})
	}
	return descs, true, nil
}

func (op *recordReader) Run(ws *workspace.Workspace) error {
	images := ws.Output(0)
	tp := ws.ThreadPool()
	for i, rec := range op.batch {
		images.SetSourceInfo(i, fmt.Sprintf("%s#%d", op.cfg.Path, op.ords[i]))
		img := rec.Image
		dst := images.View(i)
		tp.AddWork(func(worker int) error {
			copy(dst.Bytes(), img)
			return nil
		}, int64(len(img)))
	}

	if op.cfg.Detection {
		boxes, labels := ws.Output(1), ws.Output(2)
		for i, rec := range op.batch {
			copy(tensor.Data[float32](boxes.View(i)), rec.Objects.Boxes)
			copy(tensor.Data[int32](labels.View(i)), rec.Objects.Labels)
			if op.cfg.SaveImageIDs {
				tensor.Data[int32](ws.Output(3).View(i))[0] = rec.Objects.ID
			}
		}
	} else {
		labels := ws.Output(1)
		for i, rec := range op.batch {
			copy(tensor.Data[float32](labels.View(i)), rec.Labels)
		}
	}
	return tp.Run()
}
