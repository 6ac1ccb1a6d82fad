package ops

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/feedline-ml/feedline/internal/device"
	"github.com/feedline-ml/feedline/internal/kernels"
	"github.com/feedline-ml/feedline/internal/kernels/pointwise"
	"github.com/feedline-ml/feedline/internal/tensor"
	"github.com/feedline-ml/feedline/internal/workspace"
)

func init() {
	Register("hue", func(spec OpSpec, _ int) (Operator, error) {
		return newColorTwist(spec, "hue", "hue", "dtype")
	})
	Register("saturation", func(spec OpSpec, _ int) (Operator, error) {
		return newColorTwist(spec, "saturation", "saturation", "dtype")
	})
	Register("color_twist", func(spec OpSpec, _ int) (Operator, error) {
		return newColorTwist(spec, "color_twist", "hue", "saturation", "brightness", "contrast", "dtype")
	})
}

// rgb2yiq and its inverse bracket the hue and saturation adjustments so
// they act in YIQ space, where hue is a rotation about the luma axis.
var rgb2yiq = mat.NewDense(3, 3, []float64{
	0.299, 0.587, 0.114,
	0.596, -0.274, -0.321,
	0.211, -0.523, 0.311,
})

var yiq2rgb = func() *mat.Dense {
	var inv mat.Dense
	if err := inv.Inverse(rgb2yiq); err != nil {
		panic("ops: RGB to YIQ matrix is not invertible: " + err.Error())
	}
	return &inv
}()

type colorTwistConfig struct {
	DType string `mapstructure:"dtype"`
}

// colorTwist implements the hue, saturation and color_twist operators.
// Setup folds the per-sample arguments into one affine transform in RGB
// space, matrix plus offset; the shared linear-transform kernel applies
// it per pixel. The offset carries the contrast-center term, so zero
// contrast maps everything to half the input range times brightness.
type colorTwist struct {
	name string
	spec OpSpec

	outType tensor.DataType
	outSet  bool

	sig  kernels.Signature
	kmgr *kernels.Manager[pointwise.LinearTransformKernel]
}

func newColorTwist(spec OpSpec, name string, known ...string) (Operator, error) {
	if err := checkArgs(spec, known...); err != nil {
		return nil, err
	}

	var cfg colorTwistConfig
	if err := decodeArgs(spec, &cfg); err != nil {
		return nil, err
	}
	outType, outSet, err := parseDType(cfg.DType)
	if err != nil {
		return nil, fmt.Errorf("operator %q: %w", name, err)
	}

	return &colorTwist{
		name:    name,
		spec:    spec,
		outType: outType,
		outSet:  outSet,
	}, nil
}

func (op *colorTwist) Name() string    { return op.name }
func (op *colorTwist) NumInputs() int  { return 1 }
func (op *colorTwist) NumOutputs() int { return 1 }

func (op *colorTwist) Setup(ws *workspace.Workspace) ([]tensor.OutputDesc, bool, error) {
	shapes, inType, layout, err := inputMeta(ws)
	if err != nil {
		return nil, false, err
	}
	if err := checkImageInput(op.name, shapes, inType, layout); err != nil {
		return nil, false, err
	}
	if err := checkThreeChannels(op.name, shapes); err != nil {
		return nil, false, err
	}

	outType := inType
	if op.outSet {
		outType = op.outType
	}

	n := shapes.NumSamples()
	hue, err := argVector(op.spec, "hue", n, 0)
	if err != nil {
		return nil, false, err
	}
	saturation, err := argVector(op.spec, "saturation", n, 1)
	if err != nil {
		return nil, false, err
	}
	brightness, err := argVector(op.spec, "brightness", n, 1)
	if err != nil {
		return nil, false, err
	}
	contrast, err := argVector(op.spec, "contrast", n, 1)
	if err != nil {
		return nil, false, err
	}

	halfRange := inType.HalfRange()
	matrices := make([]pointwise.Mat3, n)
	offsets := make([]pointwise.Vec3, n)
	for i := 0; i < n; i++ {
		matrices[i] = colorTwistMatrix(
			float64(brightness[i]), float64(contrast[i]), float64(hue[i]), float64(saturation[i]))
		off := float32((halfRange - halfRange*float64(contrast[i])) * float64(brightness[i]))
		offsets[i] = pointwise.Vec3{off, off, off}
	}
	workspace.SetArg(ws, "color_matrix", matrices)
	workspace.SetArg(ws, "color_offset", offsets)

	op.sig = kernels.Signature{In: inType, Out: outType}
	if tp := ws.ThreadPool(); tp != nil {
		if op.kmgr == nil {
			op.kmgr = kernels.NewManager(pointwise.LinearTransform, tp.NumWorkers())
		} else {
			op.kmgr.Resize(tp.NumWorkers())
		}
		if err := op.kmgr.Initialize(op.sig); err != nil {
			return nil, false, err
		}
	} else {
		if _, err := pointwise.LinearTransform.Lookup(op.sig); err != nil {
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

func (op *colorTwist) Run(ws *workspace.Workspace) error {
	in, out := ws.Input(0), ws.Output(0)
	out.PropagateMeta(in)

	matrices := workspace.Arg[pointwise.Mat3](ws, "color_matrix")
	offsets := workspace.Arg[pointwise.Vec3](ws, "color_offset")

	tp := ws.ThreadPool()
	layout := in.Layout()
	for i := 0; i < in.NumSamples(); i++ {
		tin, tout := in.View(i), out.View(i)
		seq := isSequence(layout, tin.Shape())
		frames := 1
		if seq {
			frames = tin.Shape()[0]
		}
		m, off := matrices[i], offsets[i]
		for f := 0; f < frames; f++ {
			fin, fout := tin, tout
			if seq {
				fin, fout = tin.Frame(f), tout.Frame(f)
			}
			tp.AddWork(func(worker int) error {
				op.kmgr.Get(op.sig, worker).Run(fout, fin, m, off)
				return nil
			}, int64(fin.NumElements()))
		}
	}
	return tp.Run()
}

func (op *colorTwist) RunDevice(ws *workspace.Workspace) error {
	src, dst := ws.DeviceInput(0), ws.DeviceOutput(0)
	dst.SetLayout(src.Layout())

	matrices := workspace.Arg[pointwise.Mat3](ws, "color_matrix")
	offsets := workspace.Arg[pointwise.Vec3](ws, "color_offset")

	args := make([]device.LinearTransformArgs, src.NumSamples())
	for i := range args {
		args[i] = device.LinearTransformArgs{
			Matrix: [9]float32(matrices[i]),
			Offset: [3]float32(offsets[i]),
		}
	}
	return ws.Stream().LinearTransform(dst, src, args)
}

// colorTwistMatrix composes the RGB-space transform: rotate hue about
// the luma axis in YIQ, scale the chroma planes by saturation, then
// fold the scalar brightness and contrast multipliers in.
func colorTwistMatrix(brightness, contrast, hue, saturation float64) pointwise.Mat3 {
	h := hue * math.Pi / 180
	hueMat := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, math.Cos(h), math.Sin(h),
		0, -math.Sin(h), math.Cos(h),
	})
	satMat := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, saturation, 0,
		0, 0, saturation,
	})

	var hs, chain, full, scaled mat.Dense
	hs.Mul(hueMat, satMat)
	chain.Mul(yiq2rgb, &hs)
	full.Mul(&chain, rgb2yiq)
	scaled.Scale(brightness*contrast, &full)

	var m pointwise.Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m[3*r+c] = float32(scaled.At(r, c))
		}
	}
	return m
}

func checkThreeChannels(name string, shapes tensor.ShapeList) error {
	for i, sh := range shapes {
		if len(sh) > 0 && sh[len(sh)-1] != 3 {
			return fmt.Errorf("%w: %s: sample %d has %d channels, expected 3",
				ErrInvalidInput, name, i, sh[len(sh)-1])
		}
	}
	return nil
}
