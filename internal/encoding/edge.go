package encoding

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

type EdgeKind int

const (
	KindFixed EdgeKind = iota + 1
	KindMutable
)

func (k EdgeKind) String() string {
	switch k {
	case KindFixed:
		return "fixed"
	case KindMutable:
		return "mutable"
	default:
		return fmt.Sprintf("EdgeKind(%d)", int(k))
	}
}

// Edge is the capability set shared by the two edge variants, *FixedEdge
// and *MutableEdge.
type Edge interface {
	Kind() EdgeKind
	Build(x *mat.Dense) (*mat.Dense, error)
	DeepCopy() Edge
}

func isNilEdge(e Edge) bool {
	switch v := e.(type) {
	case nil:
		return true
	case *FixedEdge:
		return v == nil
	case *MutableEdge:
		return v == nil
	default:
		return false
	}
}
