// Package trainer scores candidate architectures by k-fold cross
// validation.
package trainer

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"evonas/internal/encoding"
	"evonas/internal/evo"
)

// FoldEvaluator trains a model on one fold and returns its validation score.
// onEpoch must be called once after every finished epoch.
type FoldEvaluator interface {
	EvaluateFold(ctx context.Context, model *encoding.FixedEdge, train, validation Dataset, epochs int, onEpoch func(epoch int)) (float64, error)
}

type KFoldConfig struct {
	Folds     int
	Epochs    int
	Workers   int
	Data      Dataset
	Evaluator FoldEvaluator
}

// KFold is an evo.Trainer. Folds run concurrently on up to Workers
// goroutines, each on its own copy of the model; observer callbacks are
// serialized.
type KFold struct {
	cfg   KFoldConfig
	folds [][]int
}

func NewKFold(cfg KFoldConfig) (*KFold, error) {
	if cfg.Folds <= 0 {
		return nil, fmt.Errorf("folds must be > 0")
	}
	if cfg.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be > 0")
	}
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("fold evaluator is required")
	}
	if err := cfg.Data.Validate(); err != nil {
		return nil, err
	}
	if cfg.Folds > 1 && cfg.Data.Len() < cfg.Folds {
		return nil, fmt.Errorf("dataset has %d rows, fewer than %d folds", cfg.Data.Len(), cfg.Folds)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &KFold{cfg: cfg, folds: splitFolds(cfg.Data.Len(), cfg.Folds)}, nil
}

func (k *KFold) TrainAndEval(ctx context.Context, model *encoding.FixedEdge, name string, observers []evo.ProgressObserver) (float64, error) {
	if model == nil {
		return 0, fmt.Errorf("model is required")
	}
	total := k.cfg.Folds
	scores := make([]float64, total)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(k.cfg.Workers)
	for fold := 0; fold < total; fold++ {
		train, validation := k.split(fold)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			onEpoch := func(epoch int) {
				mu.Lock()
				defer mu.Unlock()
				for _, o := range observers {
					o.OnProgress(name, fold, epoch, total, k.cfg.Epochs)
				}
			}
			score, err := k.cfg.Evaluator.EvaluateFold(gctx, model.Clone(), train, validation, k.cfg.Epochs, onEpoch)
			if err != nil {
				return fmt.Errorf("fold %d/%d: %w", fold+1, total, err)
			}
			scores[fold] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return stat.Mean(scores, nil), nil
}

// split returns the training rows and the held-out rows of fold. A single
// fold trains and validates on the whole dataset.
func (k *KFold) split(fold int) (Dataset, Dataset) {
	if len(k.folds) == 1 {
		return k.cfg.Data, k.cfg.Data
	}
	var train []int
	for i, rows := range k.folds {
		if i != fold {
			train = append(train, rows...)
		}
	}
	return k.cfg.Data.Rows(train), k.cfg.Data.Rows(k.folds[fold])
}

// splitFolds partitions [0, n) into k contiguous folds; the first n%k folds
// hold one extra row.
func splitFolds(n, k int) [][]int {
	folds := make([][]int, k)
	start := 0
	for i := 0; i < k; i++ {
		size := n / k
		if i < n%k {
			size++
		}
		rows := make([]int, size)
		for j := range rows {
			rows[j] = start + j
		}
		folds[i] = rows
		start += size
	}
	return folds
}

var _ evo.Trainer = (*KFold)(nil)
