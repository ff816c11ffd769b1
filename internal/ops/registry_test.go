package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"evonas/internal/encoding"
)

func TestParseBuiltIns(t *testing.T) {
	resetOperationRegistryForTests()
	t.Cleanup(resetOperationRegistryForTests)

	cases := map[string]string{
		"identity":    "identity",
		"relu":        "relu",
		" batchnorm ": "batchnorm",
		"dense:32":    "dense(32)",
		"dropout":     "dropout(0.5)",
		"dropout:0.1": "dropout(0.1)",
		"maxpool":     "maxpool(2)",
		"maxpool:3":   "maxpool(3)",
		"softmax":     "softmax",
	}
	for spec, want := range cases {
		op, err := Parse(spec)
		require.NoError(t, err, spec)
		assert.Equal(t, want, op.Name(), spec)
	}
}

func TestParseRejectsBadSpecs(t *testing.T) {
	resetOperationRegistryForTests()
	t.Cleanup(resetOperationRegistryForTests)

	_, err := Parse("conv3d")
	require.ErrorIs(t, err, ErrOperationNotFound)

	for _, spec := range []string{"dense", "dense:x", "dropout:1.5", "maxpool:0"} {
		_, err := Parse(spec)
		require.Error(t, err, spec)
	}

	_, err = ParseAll([]string{"relu", "nope"})
	require.ErrorIs(t, err, ErrOperationNotFound)
}

func TestRegisterCustomOperation(t *testing.T) {
	resetOperationRegistryForTests()
	t.Cleanup(resetOperationRegistryForTests)

	require.NoError(t, Register("negate", constant(negate{})))
	require.ErrorIs(t, Register("negate", constant(negate{})), ErrOperationExists)
	require.Error(t, Register("", constant(negate{})))
	require.Error(t, Register("nil-factory", nil))
	assert.Contains(t, List(), "negate")

	got, err := ParseAll([]string{"negate", "relu"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "negate", got[0].Name())

	resetOperationRegistryForTests()
	assert.NotContains(t, List(), "negate")
}

type negate struct{}

func (negate) Name() string { return "negate" }

func (negate) Build(x *mat.Dense) (*mat.Dense, error) {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	out.Scale(-1, x)
	return out, nil
}

var _ encoding.Operation = negate{}
