package encoding

import "gonum.org/v1/gonum/mat"

// Operation is an atomic tensor transform. Implementations are immutable
// values: one Operation may be shared by any number of edges and graph
// copies, and Build must not modify x.
type Operation interface {
	Name() string
	Build(x *mat.Dense) (*mat.Dense, error)
}

// Identity passes its input through unchanged.
type Identity struct{}

func (Identity) Name() string {
	return "identity"
}

func (Identity) Build(x *mat.Dense) (*mat.Dense, error) {
	return x, nil
}
