package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evonas/internal/evo"
)

func TestSearchRecordsEvaluations(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewSearch(reg)

	s.ObserveEvaluation(evo.PhaseSeed, 0.4, 20*time.Millisecond)
	s.ObserveEvaluation(evo.PhaseSeed, 0.2, 10*time.Millisecond)
	s.ObserveEvaluation(evo.PhaseImprove, 0.7, 5*time.Millisecond)
	s.SetBest(0.7)
	s.SetPopulation(2)
	s.SetProgress(0.25)
	for i := 0; i < 6; i++ {
		s.OnProgress("gen_0", 0, i, 1, 6)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(s.Evaluations.WithLabelValues("seed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Evaluations.WithLabelValues("improve")))
	assert.Equal(t, 0.7, testutil.ToFloat64(s.BestScore))
	assert.Equal(t, 0.7, testutil.ToFloat64(s.LastScore))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.PopulationSize))
	assert.Equal(t, 0.25, testutil.ToFloat64(s.Progress))
	assert.Equal(t, 6.0, testutil.ToFloat64(s.Epochs))
	assert.Equal(t, 2, testutil.CollectAndCount(s.EvaluationDuration))

	expected := `
# HELP evonas_best_score Best candidate score seen so far
# TYPE evonas_best_score gauge
evonas_best_score 0.7
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "evonas_best_score"))
}

func TestSearchUsesSeparateRegistries(t *testing.T) {
	a := NewSearch(prometheus.NewRegistry())
	b := NewSearch(prometheus.NewRegistry())
	a.SetBest(1)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.BestScore))
}

func TestSearchReusesCollectorsOnSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewSearch(reg)
	var b *Search
	require.NotPanics(t, func() { b = NewSearch(reg) })

	a.SetBest(0.9)
	b.ObserveEvaluation(evo.PhaseImprove, 0.3, time.Millisecond)
	assert.Equal(t, 0.9, testutil.ToFloat64(b.BestScore))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Evaluations.WithLabelValues("improve")))
	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}
