package ops

import (
	"fmt"

	"github.com/feedline-ml/feedline/internal/device"
	"github.com/feedline-ml/feedline/internal/kernels"
	"github.com/feedline-ml/feedline/internal/kernels/pointwise"
	"github.com/feedline-ml/feedline/internal/tensor"
	"github.com/feedline-ml/feedline/internal/workspace"
)

func init() {
	Register("brightness", func(spec OpSpec, _ int) (Operator, error) {
		return newBrightnessContrast(spec, "brightness", true, false)
	})
	Register("contrast", func(spec OpSpec, _ int) (Operator, error) {
		return newBrightnessContrast(spec, "contrast", false, true)
	})
	Register("brightness_contrast", func(spec OpSpec, _ int) (Operator, error) {
		return newBrightnessContrast(spec, "brightness_contrast", true, true)
	})
}

type brightnessContrastConfig struct {
	ContrastCenter *float32 `mapstructure:"contrast_center"`
	DType          string   `mapstructure:"dtype"`
}

// brightnessContrast implements the brightness, contrast and fused
// brightness_contrast operators over one shared kernel family:
//
//	out = shift*outRange + brightness*(center + contrast*(in - center))
//
// outRange is 1 for float outputs, otherwise the maximum positive value
// of the output type. center defaults to half the positive range of the
// input type; all pixels assume it when contrast is zero.
type brightnessContrast struct {
	name string
	spec OpSpec

	center  *float32
	outType tensor.DataType
	outSet  bool

	sig  kernels.Signature
	kmgr *kernels.Manager[pointwise.MultiplyAddKernel]
}

func newBrightnessContrast(spec OpSpec, name string, withBrightness, withContrast bool) (Operator, error) {
	known := []string{"dtype"}
	if withBrightness {
		known = append(known, "brightness", "brightness_shift")
	}
	if withContrast {
		known = append(known, "contrast", "contrast_center")
	}
	if err := checkArgs(spec, known...); err != nil {
		return nil, err
	}

	var cfg brightnessContrastConfig
	if err := decodeArgs(spec, &cfg); err != nil {
		return nil, err
	}
	outType, outSet, err := parseDType(cfg.DType)
	if err != nil {
		return nil, fmt.Errorf("operator %q: %w", name, err)
	}

	return &brightnessContrast{
		name:    name,
		spec:    spec,
		center:  cfg.ContrastCenter,
		outType: outType,
		outSet:  outSet,
	}, nil
}

func (op *brightnessContrast) Name() string    { return op.name }
func (op *brightnessContrast) NumInputs() int  { return 1 }
func (op *brightnessContrast) NumOutputs() int { return 1 }

func (op *brightnessContrast) Setup(ws *workspace.Workspace) ([]tensor.OutputDesc, bool, error) {
	shapes, inType, layout, err := inputMeta(ws)
	if err != nil {
		return nil, false, err
	}
	if err := checkImageInput(op.name, shapes, inType, layout); err != nil {
		return nil, false, err
	}

	outType := inType
	if op.outSet {
		outType = op.outType
	}

	n := shapes.NumSamples()
	brightness, err := argVector(op.spec, "brightness", n, 1)
	if err != nil {
		return nil, false, err
	}
	shift, err := argVector(op.spec, "brightness_shift", n, 0)
	if err != nil {
		return nil, false, err
	}
	contrast, err := argVector(op.spec, "contrast", n, 1)
	if err != nil {
		return nil, false, err
	}
	center := float32(inType.HalfRange())
	if op.center != nil {
		center = *op.center
	}

	workspace.SetArg(ws, "brightness", brightness)
	workspace.SetArg(ws, "brightness_shift", shift)
	workspace.SetArg(ws, "contrast", contrast)
	workspace.SetArg(ws, "contrast_center", broadcast(center, n))

	op.sig = kernels.Signature{In: inType, Out: outType}
	if tp := ws.ThreadPool(); tp != nil {
		if op.kmgr == nil {
			op.kmgr = kernels.NewManager(pointwise.MultiplyAdd, tp.NumWorkers())
		} else {
			op.kmgr.Resize(tp.NumWorkers())
		}
		if err := op.kmgr.Initialize(op.sig); err != nil {
			return nil, false, err
		}
	} else {
		if _, err := pointwise.MultiplyAdd.Lookup(op.sig); err != nil {
			return nil, false, err
		}
		if outType != inType {
			return nil, false, fmt.Errorf("%w: %s: device placement cannot change element type %s to %s",
				ErrInvalidInput, op.name, inType, outType)
		}
	}

	descs := []tensor.OutputDesc{{Shapes: shapes.Clone(), DType: outType}}
	return descs, true, nil
}

// kernelArgs folds the per-sample operator arguments into the fused
// multiplier and addend the kernels consume.
func (op *brightnessContrast) kernelArgs(ws *workspace.Workspace, outRange float32, i int) (mul, add float32) {
	brightness := workspace.Arg[float32](ws, "brightness")
	shift := workspace.Arg[float32](ws, "brightness_shift")
	contrast := workspace.Arg[float32](ws, "contrast")
	center := workspace.Arg[float32](ws, "contrast_center")

	mul = brightness[i] * contrast[i]
	add = shift[i]*outRange + brightness[i]*(center[i]-contrast[i]*center[i])
	return mul, add
}

func (op *brightnessContrast) Run(ws *workspace.Workspace) error {
	in, out := ws.Input(0), ws.Output(0)
	out.PropagateMeta(in)
	outRange := float32(out.DType().FullRange())

	tp := ws.ThreadPool()
	layout := in.Layout()
	for i := 0; i < in.NumSamples(); i++ {
		tin, tout := in.View(i), out.View(i)
		seq := isSequence(layout, tin.Shape())
		frames := 1
		if seq {
			frames = tin.Shape()[0]
		}
		mul, add := op.kernelArgs(ws, outRange, i)
		for f := 0; f < frames; f++ {
			fin, fout := tin, tout
			if seq {
				fin, fout = tin.Frame(f), tout.Frame(f)
			}
			tp.AddWork(func(worker int) error {
				op.kmgr.Get(op.sig, worker).Run(fout, fin, mul, add)
				return nil
			}, int64(fin.NumElements()))
		}
	}
	return tp.Run()
}

func (op *brightnessContrast) RunDevice(ws *workspace.Workspace) error {
	src, dst := ws.DeviceInput(0), ws.DeviceOutput(0)
	dst.SetLayout(src.Layout())
	outRange := float32(dst.DType().FullRange())

	args := make([]device.MultiplyAddArgs, src.NumSamples())
	for i := range args {
		args[i].Mul, args[i].Add = op.kernelArgs(ws, outRange, i)
	}
	return ws.Stream().MultiplyAdd(dst, src, args)
}
