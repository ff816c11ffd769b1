package trainer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"evonas/internal/encoding"
	"evonas/internal/evo"
)

type passThrough struct{}

func (passThrough) Name() string { return "pass_through" }

func (passThrough) BuildGraph(g *encoding.Graph) error {
	_, err := g.AddEdge(g.Input(), g.Output(), encoding.Op(encoding.Identity{}))
	return err
}

func newPassThrough(t *testing.T) *encoding.FixedEdge {
	t.Helper()
	root, err := encoding.NewFixedEdge(passThrough{})
	require.NoError(t, err)
	return root
}

func rowsDataset(n int) Dataset {
	x := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, float64(i))
		y.Set(i, 0, float64(i))
	}
	return Dataset{X: x, Y: y}
}

// sizeEvaluator scores a fold by its validation size and records the models
// it was handed.
type sizeEvaluator struct {
	mu     sync.Mutex
	models []*encoding.FixedEdge
	failOn int
	err    error
}

func (e *sizeEvaluator) EvaluateFold(_ context.Context, model *encoding.FixedEdge, _, validation Dataset, epochs int, onEpoch func(int)) (float64, error) {
	e.mu.Lock()
	e.models = append(e.models, model)
	e.mu.Unlock()
	if e.err != nil && validation.X.At(0, 0) == float64(e.failOn) {
		return 0, e.err
	}
	for epoch := 0; epoch < epochs; epoch++ {
		onEpoch(epoch)
	}
	return float64(validation.Len()), nil
}

func TestSplitFoldsPartitionsRows(t *testing.T) {
	folds := splitFolds(10, 3)
	require.Len(t, folds, 3)
	assert.Equal(t, []int{0, 1, 2, 3}, folds[0])
	assert.Equal(t, []int{4, 5, 6}, folds[1])
	assert.Equal(t, []int{7, 8, 9}, folds[2])
}

func TestKFoldAveragesFoldScores(t *testing.T) {
	eval := &sizeEvaluator{}
	k, err := NewKFold(KFoldConfig{Folds: 3, Epochs: 2, Workers: 3, Data: rowsDataset(10), Evaluator: eval})
	require.NoError(t, err)

	model := newPassThrough(t)
	score, err := k.TrainAndEval(context.Background(), model, "gen_0", nil)
	require.NoError(t, err)
	assert.InDelta(t, 10.0/3, score, 1e-12)

	require.Len(t, eval.models, 3)
	for i, m := range eval.models {
		assert.NotSame(t, model, m, "fold %d must train a copy", i)
		for j := i + 1; j < len(eval.models); j++ {
			assert.NotSame(t, m, eval.models[j])
		}
	}
}

func TestKFoldSerializesObserverCallbacks(t *testing.T) {
	k, err := NewKFold(KFoldConfig{Folds: 4, Epochs: 5, Workers: 4, Data: rowsDataset(12), Evaluator: &sizeEvaluator{}})
	require.NoError(t, err)

	var active, calls atomic.Int32
	seen := map[[2]int]bool{}
	observer := evo.ProgressObserverFunc(func(name string, cvIdx, epochIdx, totalCV, totalEpoch int) {
		if active.Add(1) != 1 {
			t.Errorf("observer called concurrently")
		}
		defer active.Add(-1)
		calls.Add(1)
		assert.Equal(t, "gen_7", name)
		assert.Equal(t, 4, totalCV)
		assert.Equal(t, 5, totalEpoch)
		seen[[2]int{cvIdx, epochIdx}] = true
	})

	_, err = k.TrainAndEval(context.Background(), newPassThrough(t), "gen_7", []evo.ProgressObserver{observer})
	require.NoError(t, err)
	assert.Equal(t, int32(20), calls.Load())
	assert.Len(t, seen, 20)
}

func TestKFoldPropagatesFoldErrors(t *testing.T) {
	errFold := errors.New("fold failed")
	k, err := NewKFold(KFoldConfig{
		Folds:     3,
		Epochs:    1,
		Workers:   1,
		Data:      rowsDataset(9),
		Evaluator: &sizeEvaluator{failOn: 3, err: errFold},
	})
	require.NoError(t, err)

	_, err = k.TrainAndEval(context.Background(), newPassThrough(t), "gen_0", nil)
	require.ErrorIs(t, err, errFold)
	assert.Contains(t, err.Error(), "fold 2/3")
}

func TestKFoldSingleFoldUsesWholeDataset(t *testing.T) {
	k, err := NewKFold(KFoldConfig{Folds: 1, Epochs: 1, Data: rowsDataset(5), Evaluator: &sizeEvaluator{}})
	require.NoError(t, err)
	score, err := k.TrainAndEval(context.Background(), newPassThrough(t), "gen_0", nil)
	require.NoError(t, err)
	assert.Equal(t, 5.0, score)
}

func TestKFoldHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	k, err := NewKFold(KFoldConfig{Folds: 2, Epochs: 1, Data: rowsDataset(4), Evaluator: &sizeEvaluator{}})
	require.NoError(t, err)
	_, err = k.TrainAndEval(ctx, newPassThrough(t), "gen_0", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewKFoldValidatesConfig(t *testing.T) {
	data := rowsDataset(4)
	eval := &sizeEvaluator{}
	cases := map[string]KFoldConfig{
		"folds":     {Folds: 0, Epochs: 1, Data: data, Evaluator: eval},
		"epochs":    {Folds: 2, Epochs: 0, Data: data, Evaluator: eval},
		"evaluator": {Folds: 2, Epochs: 1, Data: data},
		"data":      {Folds: 2, Epochs: 1, Evaluator: eval},
		"too few":   {Folds: 5, Epochs: 1, Data: data, Evaluator: eval},
		"mismatch":  {Folds: 2, Epochs: 1, Data: Dataset{X: data.X, Y: mat.NewDense(3, 1, nil)}, Evaluator: eval},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewKFold(cfg)
			require.Error(t, err)
		})
	}
}
