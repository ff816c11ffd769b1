package ops

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"evonas/internal/encoding"
)

// Activation applies fn element-wise.
type Activation struct {
	name string
	fn   func(float64) float64
}

var (
	ReLU = Activation{name: "relu", fn: func(v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}}
	Tanh    = Activation{name: "tanh", fn: math.Tanh}
	Sigmoid = Activation{name: "sigmoid", fn: func(v float64) float64 {
		return 1.0 / (1.0 + math.Exp(-v))
	}}
)

func (a Activation) Name() string {
	return a.name
}

func (a Activation) Build(x *mat.Dense) (*mat.Dense, error) {
	if a.fn == nil {
		return nil, fmt.Errorf("activation %q has no function", a.name)
	}
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 { return a.fn(v) }, x)
	return out, nil
}

// Dense is a fully connected projection to Units columns. Its weights are
// derived from Seed and the input width, so the same Dense value always
// computes the same function.
type Dense struct {
	Units int
	Seed  int64
}

func (d Dense) Name() string {
	return fmt.Sprintf("dense(%d)", d.Units)
}

func (d Dense) Build(x *mat.Dense) (*mat.Dense, error) {
	if d.Units <= 0 {
		return nil, fmt.Errorf("dense units must be > 0, got %d", d.Units)
	}
	r, in := x.Dims()
	rng := rand.New(rand.NewSource(d.Seed*1_000_003 + int64(in)*7_919 + int64(d.Units)))
	scale := math.Sqrt(2.0 / float64(in))
	data := make([]float64, in*d.Units)
	for i := range data {
		data[i] = rng.NormFloat64() * scale
	}
	out := mat.NewDense(r, d.Units, nil)
	out.Mul(x, mat.NewDense(in, d.Units, data))
	return out, nil
}

// BatchNorm standardizes every column to zero mean and unit variance over
// the batch.
type BatchNorm struct {
	Epsilon float64
}

func (BatchNorm) Name() string {
	return "batchnorm"
}

func (b BatchNorm) Build(x *mat.Dense) (*mat.Dense, error) {
	r, c := x.Dims()
	out := mat.DenseCopyOf(x)
	if r < 2 {
		return out, nil
	}
	eps := b.Epsilon
	if eps <= 0 {
		eps = 1e-5
	}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean, std := stat.MeanStdDev(col, nil)
		denom := math.Sqrt(std*std + eps)
		for i := 0; i < r; i++ {
			out.Set(i, j, (col[i]-mean)/denom)
		}
	}
	return out, nil
}

// Dropout uses the expected-value form: activations are scaled by 1-Rate.
type Dropout struct {
	Rate float64
}

func (d Dropout) Name() string {
	return fmt.Sprintf("dropout(%g)", d.Rate)
}

func (d Dropout) Build(x *mat.Dense) (*mat.Dense, error) {
	if d.Rate < 0 || d.Rate >= 1 {
		return nil, fmt.Errorf("dropout rate must be in [0, 1), got %g", d.Rate)
	}
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	out.Scale(1-d.Rate, x)
	return out, nil
}

// MaxPool reduces each window of Size adjacent columns to its maximum.
type MaxPool struct {
	Size int
}

func (p MaxPool) Name() string {
	return fmt.Sprintf("maxpool(%d)", p.Size)
}

func (p MaxPool) Build(x *mat.Dense) (*mat.Dense, error) {
	if p.Size <= 0 {
		return nil, fmt.Errorf("pool size must be > 0, got %d", p.Size)
	}
	r, c := x.Dims()
	width := (c + p.Size - 1) / p.Size
	out := mat.NewDense(r, width, nil)
	for i := 0; i < r; i++ {
		for w := 0; w < width; w++ {
			best := math.Inf(-1)
			for j := w * p.Size; j < min((w+1)*p.Size, c); j++ {
				best = math.Max(best, x.At(i, j))
			}
			out.Set(i, w, best)
		}
	}
	return out, nil
}

// Softmax normalizes every row into a probability distribution.
type Softmax struct{}

func (Softmax) Name() string {
	return "softmax"
}

func (Softmax) Build(x *mat.Dense) (*mat.Dense, error) {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		peak := mat.Max(x.Slice(i, i+1, 0, c))
		sum := 0.0
		for j := 0; j < c; j++ {
			v := math.Exp(x.At(i, j) - peak)
			out.Set(i, j, v)
			sum += v
		}
		for j := 0; j < c; j++ {
			out.Set(i, j, out.At(i, j)/sum)
		}
	}
	return out, nil
}

var (
	_ encoding.Operation = Activation{}
	_ encoding.Operation = Dense{}
	_ encoding.Operation = BatchNorm{}
	_ encoding.Operation = Dropout{}
	_ encoding.Operation = MaxPool{}
	_ encoding.Operation = Softmax{}
)
