package trainer

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"evonas/internal/encoding"
)

// ReadoutEvaluator treats the model as a fixed feature extractor and fits a
// linear readout on top of it by full-batch gradient descent. The score is
// 1/(1+mse) on the validation rows, so higher is better and 1 is perfect.
type ReadoutEvaluator struct {
	LearningRate float64
	Ridge        float64
}

func (r ReadoutEvaluator) EvaluateFold(ctx context.Context, model *encoding.FixedEdge, train, validation Dataset, epochs int, onEpoch func(epoch int)) (float64, error) {
	lr := r.LearningRate
	if lr <= 0 {
		lr = 0.05
	}
	if r.Ridge < 0 {
		return 0, fmt.Errorf("ridge must be >= 0, got %g", r.Ridge)
	}

	trainFeatures, err := model.Build(train.X)
	if err != nil {
		return 0, fmt.Errorf("build features: %w", err)
	}
	validationFeatures, err := model.Build(validation.X)
	if err != nil {
		return 0, fmt.Errorf("build features: %w", err)
	}
	means, stds := columnStats(trainFeatures)
	xt := designMatrix(trainFeatures, means, stds)
	xv := designMatrix(validationFeatures, means, stds)

	n, f := xt.Dims()
	_, outputs := train.Y.Dims()
	w := mat.NewDense(f, outputs, nil)
	pred := mat.NewDense(n, outputs, nil)
	residual := mat.NewDense(n, outputs, nil)
	grad := mat.NewDense(f, outputs, nil)
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		pred.Mul(xt, w)
		residual.Sub(pred, train.Y)
		grad.Mul(xt.T(), residual)
		grad.Scale(2/float64(n), grad)
		if r.Ridge > 0 {
			grad.Apply(func(i, j int, v float64) float64 { return v + 2*r.Ridge*w.At(i, j) }, grad)
		}
		grad.Scale(lr, grad)
		w.Sub(w, grad)
		if onEpoch != nil {
			onEpoch(epoch)
		}
	}

	vr, _ := xv.Dims()
	vp := mat.NewDense(vr, outputs, nil)
	vp.Mul(xv, w)
	vp.Sub(vp, validation.Y)
	mse := mat.Norm(vp, 2)
	mse = mse * mse / float64(vr*outputs)
	if math.IsNaN(mse) || math.IsInf(mse, 0) {
		return 0, nil
	}
	return 1 / (1 + mse), nil
}

func columnStats(m *mat.Dense) ([]float64, []float64) {
	r, c := m.Dims()
	means := make([]float64, c)
	stds := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, m)
		if r < 2 {
			means[j] = col[0]
			continue
		}
		means[j], stds[j] = stat.MeanStdDev(col, nil)
	}
	return means, stds
}

// designMatrix standardizes features with the training statistics and
// appends a bias column. Constant columns are only centered.
func designMatrix(m *mat.Dense, means, stds []float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c+1, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j) - means[j]
			if stds[j] > 1e-12 {
				v /= stds[j]
			}
			out.Set(i, j, v)
		}
		out.Set(i, c, 1)
	}
	return out
}

var _ FoldEvaluator = ReadoutEvaluator{}
