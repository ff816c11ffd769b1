package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"evonas/internal/encoding"
)

var (
	ErrNoMutationTarget = errors.New("model has no mutable edges")
	ErrNoMutationChoice = errors.New("no mutation choice available")
)

type LayerAction string

const (
	ActionInsert LayerAction = "insert"
	ActionRemove LayerAction = "remove"
	ActionSwap   LayerAction = "swap"
)

// LayerMutationWeights biases the action chosen by MutateOneLayer. The zero
// value picks uniformly among the legal actions.
type LayerMutationWeights struct {
	Insert float64 `json:"insert" yaml:"insert" toml:"insert"`
	Remove float64 `json:"remove" yaml:"remove" toml:"remove"`
	Swap   float64 `json:"swap" yaml:"swap" toml:"swap"`
}

func (w LayerMutationWeights) isZero() bool {
	return w.Insert == 0 && w.Remove == 0 && w.Swap == 0
}

func (w LayerMutationWeights) weight(a LayerAction) float64 {
	switch a {
	case ActionInsert:
		return w.Insert
	case ActionRemove:
		return w.Remove
	default:
		return w.Swap
	}
}

func (w LayerMutationWeights) Validate() error {
	if w.Insert < 0 || w.Remove < 0 || w.Swap < 0 {
		return fmt.Errorf("mutation weights must be >= 0, got %+v", w)
	}
	return nil
}

// MutateOneLayer picks one mutable edge uniformly, one legal action, and a
// uniform position for it. Insert is legal below the edge's max vertices,
// remove above its minimum length, swap on any non-empty edge.
type MutateOneLayer struct {
	Rand    *rand.Rand
	Weights LayerMutationWeights

	last LayerAction
}

func (o *MutateOneLayer) Name() string {
	return "mutate_one_layer"
}

// LastAction reports the action performed by the most recent successful
// Apply.
func (o *MutateOneLayer) LastAction() LayerAction {
	return o.last
}

func (o *MutateOneLayer) Apply(_ context.Context, model *encoding.FixedEdge) error {
	if o.Rand == nil {
		return fmt.Errorf("random source is required")
	}
	if model == nil {
		return fmt.Errorf("model is required")
	}
	if err := o.Weights.Validate(); err != nil {
		return err
	}
	edges := model.MutableEdges()
	if len(edges) == 0 {
		return fmt.Errorf("%s: %w", model.Name(), ErrNoMutationTarget)
	}
	edge := edges[o.Rand.Intn(len(edges))]

	action, err := o.chooseAction(edge)
	if err != nil {
		return err
	}

	switch action {
	case ActionInsert:
		candidates := edge.Candidates()
		err = edge.Insert(o.Rand.Intn(edge.Len()+1), candidates[o.Rand.Intn(len(candidates))])
	case ActionRemove:
		err = edge.Remove(o.Rand.Intn(edge.Len()))
	case ActionSwap:
		pos := o.Rand.Intn(edge.Len())
		var current encoding.Operation
		current, err = edge.At(pos)
		if err == nil {
			err = edge.Replace(pos, o.replacementFor(edge, current))
		}
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", o.Name(), action, err)
	}
	o.last = action
	return nil
}

func legalActions(edge *encoding.MutableEdge) []LayerAction {
	actions := make([]LayerAction, 0, 3)
	if edge.Len() < edge.MaxVertices() {
		actions = append(actions, ActionInsert)
	}
	if edge.Len() > edge.MinLen() {
		actions = append(actions, ActionRemove)
	}
	if edge.Len() > 0 {
		actions = append(actions, ActionSwap)
	}
	return actions
}

func (o *MutateOneLayer) chooseAction(edge *encoding.MutableEdge) (LayerAction, error) {
	actions := legalActions(edge)
	if len(actions) == 0 {
		return "", ErrNoMutationChoice
	}
	if o.Weights.isZero() {
		return actions[o.Rand.Intn(len(actions))], nil
	}

	total := 0.0
	for _, a := range actions {
		total += o.Weights.weight(a)
	}
	if total <= 0 {
		return "", fmt.Errorf("%w: legal actions %v all have zero weight", ErrNoMutationChoice, actions)
	}
	pick := o.Rand.Float64() * total
	acc := 0.0
	for _, a := range actions {
		acc += o.Weights.weight(a)
		if pick < acc {
			return a, nil
		}
	}
	for i := len(actions) - 1; i >= 0; i-- {
		if o.Weights.weight(actions[i]) > 0 {
			return actions[i], nil
		}
	}
	return "", ErrNoMutationChoice
}

// replacementFor draws a candidate whose name differs from current. When
// the candidate set offers no alternative, current is kept.
func (o *MutateOneLayer) replacementFor(edge *encoding.MutableEdge, current encoding.Operation) encoding.Operation {
	candidates := edge.Candidates()
	alternatives := candidates[:0]
	for _, op := range candidates {
		if op.Name() != current.Name() {
			alternatives = append(alternatives, op)
		}
	}
	if len(alternatives) == 0 {
		return current
	}
	return alternatives[o.Rand.Intn(len(alternatives))]
}

var _ MutationStrategy = (*MutateOneLayer)(nil)
