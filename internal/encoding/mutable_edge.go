package encoding

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// MutableEdge is an ordered sequence of operations drawn from a fixed
// candidate set. Its length stays within [MinLen, MaxVertices].
type MutableEdge struct {
	candidates   []Operation
	ops          []Operation
	maxVertices  int
	withIdentity bool
}

// NewMutableEdge creates an edge over candidates. With
// initializeWithIdentity the edge starts as a single identity and may later
// shrink to empty (a pass-through); otherwise it starts with the first
// candidate and never becomes empty.
func NewMutableEdge(candidates []Operation, maxVertices int, initializeWithIdentity bool) (*MutableEdge, error) {
	if len(candidates) == 0 {
		return nil, errors.New("mutable edge requires at least one candidate operation")
	}
	if maxVertices <= 0 {
		return nil, fmt.Errorf("max vertices must be > 0, got %d", maxVertices)
	}
	for i, op := range candidates {
		if op == nil {
			return nil, fmt.Errorf("candidate %d: %w", i, ErrNilOperation)
		}
	}

	e := &MutableEdge{
		candidates:   slices.Clone(candidates),
		maxVertices:  maxVertices,
		withIdentity: initializeWithIdentity,
	}
	if initializeWithIdentity {
		e.ops = []Operation{Identity{}}
	} else {
		e.ops = []Operation{candidates[0]}
	}
	return e, nil
}

func (e *MutableEdge) Kind() EdgeKind {
	return KindMutable
}

func (e *MutableEdge) Len() int {
	return len(e.ops)
}

func (e *MutableEdge) MaxVertices() int {
	return e.maxVertices
}

func (e *MutableEdge) MinLen() int {
	if e.withIdentity {
		return 0
	}
	return 1
}

func (e *MutableEdge) Candidates() []Operation {
	return slices.Clone(e.candidates)
}

func (e *MutableEdge) Ops() []Operation {
	return slices.Clone(e.ops)
}

func (e *MutableEdge) At(pos int) (Operation, error) {
	if pos < 0 || pos >= len(e.ops) {
		return nil, fmt.Errorf("at %d of %d: %w", pos, len(e.ops), ErrPosition)
	}
	return e.ops[pos], nil
}

// Insert places op before position pos; pos == Len appends.
func (e *MutableEdge) Insert(pos int, op Operation) error {
	if op == nil {
		return ErrNilOperation
	}
	if len(e.ops) >= e.maxVertices {
		return fmt.Errorf("insert at %d: %w (max=%d)", pos, ErrMaxVertices, e.maxVertices)
	}
	if pos < 0 || pos > len(e.ops) {
		return fmt.Errorf("insert at %d of %d: %w", pos, len(e.ops), ErrPosition)
	}
	e.ops = slices.Insert(e.ops, pos, op)
	return nil
}

func (e *MutableEdge) Remove(pos int) error {
	if len(e.ops) <= e.MinLen() {
		return fmt.Errorf("remove at %d: %w (min=%d)", pos, ErrEmptyEdge, e.MinLen())
	}
	if pos < 0 || pos >= len(e.ops) {
		return fmt.Errorf("remove at %d of %d: %w", pos, len(e.ops), ErrPosition)
	}
	e.ops = slices.Delete(e.ops, pos, pos+1)
	return nil
}

func (e *MutableEdge) Replace(pos int, op Operation) error {
	if op == nil {
		return ErrNilOperation
	}
	if pos < 0 || pos >= len(e.ops) {
		return fmt.Errorf("replace at %d of %d: %w", pos, len(e.ops), ErrPosition)
	}
	e.ops[pos] = op
	return nil
}

func (e *MutableEdge) Build(x *mat.Dense) (*mat.Dense, error) {
	out := x
	for i, op := range e.ops {
		next, err := op.Build(out)
		if err != nil {
			return nil, fmt.Errorf("op %d (%s): %w", i, op.Name(), err)
		}
		out = next
	}
	return out, nil
}

func (e *MutableEdge) DeepCopy() Edge {
	return e.Clone()
}

func (e *MutableEdge) Clone() *MutableEdge {
	return &MutableEdge{
		candidates:   slices.Clone(e.candidates),
		ops:          slices.Clone(e.ops),
		maxVertices:  e.maxVertices,
		withIdentity: e.withIdentity,
	}
}
