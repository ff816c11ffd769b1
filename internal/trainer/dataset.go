package trainer

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Dataset holds row-aligned inputs and targets.
type Dataset struct {
	X *mat.Dense
	Y *mat.Dense
}

func (d Dataset) Len() int {
	if d.X == nil {
		return 0
	}
	r, _ := d.X.Dims()
	return r
}

func (d Dataset) Validate() error {
	if d.X == nil || d.Y == nil {
		return fmt.Errorf("dataset requires inputs and targets")
	}
	xr, _ := d.X.Dims()
	yr, _ := d.Y.Dims()
	if xr != yr {
		return fmt.Errorf("dataset rows mismatch: inputs=%d targets=%d", xr, yr)
	}
	if xr == 0 {
		return fmt.Errorf("dataset is empty")
	}
	return nil
}

// Rows returns a copy holding the selected rows, in order.
func (d Dataset) Rows(idx []int) Dataset {
	return Dataset{X: pickRows(d.X, idx), Y: pickRows(d.Y, idx)}
}

func pickRows(m *mat.Dense, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		out.SetRow(i, m.RawRowView(r))
	}
	return out
}

// SyntheticRegression generates a deterministic nonlinear regression task:
// a tanh projection of the inputs plus one pairwise interaction and
// gaussian noise.
func SyntheticRegression(samples, features, outputs int, noise float64, seed int64) (Dataset, error) {
	if samples <= 0 || features <= 0 || outputs <= 0 {
		return Dataset{}, fmt.Errorf("synthetic regression sizes must be > 0, got samples=%d features=%d outputs=%d", samples, features, outputs)
	}
	if noise < 0 {
		return Dataset{}, fmt.Errorf("noise must be >= 0, got %g", noise)
	}
	rng := rand.New(rand.NewSource(seed))

	coef := make([]float64, features*outputs)
	for i := range coef {
		coef[i] = rng.NormFloat64()
	}
	x := mat.NewDense(samples, features, nil)
	y := mat.NewDense(samples, outputs, nil)
	for i := 0; i < samples; i++ {
		for j := 0; j < features; j++ {
			x.Set(i, j, rng.Float64()*2-1)
		}
		for o := 0; o < outputs; o++ {
			sum := 0.0
			for j := 0; j < features; j++ {
				sum += coef[j*outputs+o] * x.At(i, j)
			}
			v := math.Tanh(sum)
			if features > 1 {
				v += 0.3 * x.At(i, 0) * x.At(i, 1)
			}
			y.Set(i, o, v+noise*rng.NormFloat64())
		}
	}
	return Dataset{X: x, Y: y}, nil
}
