package ops

import (
	"fmt"

	"github.com/feedline-ml/feedline/internal/tensor"
	"github.com/feedline-ml/feedline/internal/workspace"
)

func init() {
	Register("external_source", func(spec OpSpec, _ int) (Operator, error) {
		if err := checkArgs(spec, "name", "depth"); err != nil {
			return nil, err
		}
		var cfg struct {
			Name  string `mapstructure:"name"`
			Depth int    `mapstructure:"depth"`
		}
		if err := decodeArgs(spec, &cfg); err != nil {
			return nil, err
		}
		if cfg.Name == "" {
			return nil, fmt.Errorf("%w: external_source requires a name", ErrInvalidConfiguration)
		}
		if cfg.Depth <= 0 {
			cfg.Depth = 2
		}
		return NewExternalSource(cfg.Name, cfg.Depth), nil
	})
}

// ExternalSource injects caller-provided batches into a pipeline. Feed
// transfers batch ownership to the operator; each iteration consumes
// one fed batch and shares it into the output, so feeding must stay
// ahead of the iteration rate.
type ExternalSource struct {
	source string
	queue  chan *tensor.TensorList
	cur    *tensor.TensorList
}

// NewExternalSource returns a source named name buffering up to depth
// fed batches.
func NewExternalSource(name string, depth int) *ExternalSource {
	return &ExternalSource{source: name, queue: make(chan *tensor.TensorList, depth)}
}

// SourceName identifies this source for feed routing.
func (op *ExternalSource) SourceName() string { return op.source }

// Feed hands a batch to the source, transferring ownership. Blocks
// while the queue is full.
func (op *ExternalSource) Feed(tl *tensor.TensorList) { op.queue <- tl }

func (op *ExternalSource) Name() string    { return "external_source" }
func (op *ExternalSource) NumInputs() int  { return 0 }
func (op *ExternalSource) NumOutputs() int { return 1 }

func (op *ExternalSource) Setup(ws *workspace.Workspace) ([]tensor.OutputDesc, bool, error) {
	select {
	case op.cur = <-op.queue:
	default:
		return nil, false, fmt.Errorf("%w: external source %q has no batch fed", ErrInvalidInput, op.source)
	}
	descs := []tensor.OutputDesc{{Shapes: op.cur.Shapes().Clone(), DType: op.cur.DType()}}
	return descs, false, nil
}

func (op *ExternalSource) Run(ws *workspace.Workspace) error {
	out := ws.Output(0)
	out.ShareData(op.cur)
	op.cur.Release()
	op.cur = nil
	return nil
}
