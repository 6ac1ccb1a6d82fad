package ops

import (
	"sort"

	"github.com/feedline-ml/feedline/internal/tensor"
	"github.com/feedline-ml/feedline/internal/workspace"
)

func init() {
	Register("make_contiguous", func(spec OpSpec, _ int) (Operator, error) {
		if err := checkArgs(spec); err != nil {
			return nil, err
		}
		return &makeContiguous{}, nil
	})
}

// makeContiguous moves a batch into a single contiguous allocation, the
// representation device uploads require. An already contiguous input
// passes through by sharing its backing buffer; otherwise every sample
// is copied bit for bit, largest samples first so the stragglers start
// early.
type makeContiguous struct{}

func (op *makeContiguous) Name() string    { return "make_contiguous" }
func (op *makeContiguous) NumInputs() int  { return 1 }
func (op *makeContiguous) NumOutputs() int { return 1 }

func (op *makeContiguous) Setup(ws *workspace.Workspace) ([]tensor.OutputDesc, bool, error) {
	in := ws.Input(0)
	descs := []tensor.OutputDesc{{Shapes: in.Shapes().Clone(), DType: in.DType()}}
	return descs, !in.IsContiguous(), nil
}

func (op *makeContiguous) Run(ws *workspace.Workspace) error {
	in, out := ws.Input(0), ws.Output(0)

	if in.IsContiguous() {
		out.ShareData(in)
		return nil
	}
	out.PropagateMeta(in)

	type volumeSample struct {
		vol int64
		id  int
	}
	order := make([]volumeSample, in.NumSamples())
	for i := range order {
		order[i] = volumeSample{vol: int64(in.Shape(i).NumElements()), id: i}
	}
	sort.Slice(order, func(a, b int) bool {
		if order[a].vol != order[b].vol {
			return order[a].vol > order[b].vol
		}
		return order[a].id > order[b].id
	})

	tp := ws.ThreadPool()
	for _, s := range order {
		i := s.id
		tp.AddWork(func(worker int) error {
			copy(out.View(i).Bytes(), in.View(i).Bytes())
			return nil
		}, s.vol)
	}
	return tp.Run()
}
