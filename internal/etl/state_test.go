package etl_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurants/internal/etl"
)

func mathNaN() float64 { return math.NaN() }

func TestTransition(t *testing.T) {
	tests := []struct {
		from, to etl.State
		ok       bool
	}{
		{etl.StateStart, etl.StateMerged, true},
		{etl.StateMerged, etl.StateEnriched, true},
		{etl.StateEnriched, etl.StateIndexed, true},
		{etl.StateIndexed, etl.StateLoaded, true},
		{etl.StateStart, etl.StateFailed, true},
		{etl.StateIndexed, etl.StateFailed, true},
		{etl.StateStart, etl.StateEnriched, false},
		{etl.StateEnriched, etl.StateMerged, false},
		{etl.StateLoaded, etl.StateFailed, false},
		{etl.StateFailed, etl.StateMerged, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := etl.Transition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestMachine(t *testing.T) {
	m := etl.NewMachine()
	assert.Equal(t, etl.StateStart, m.State())
	require.NoError(t, m.Advance(etl.StateMerged))
	require.Error(t, m.Advance(etl.StateLoaded))
	assert.Equal(t, etl.StateMerged, m.State())

	m.Fail()
	assert.Equal(t, etl.StateFailed, m.State())
	assert.True(t, etl.IsTerminal(m.State()))
	assert.Error(t, m.Advance(etl.StateEnriched))
}

func TestStageError(t *testing.T) {
	err := &etl.StageError{Stage: etl.StageLoad, Err: etl.ErrIOFailure}
	assert.Equal(t, "load stage: artifact i/o failure", err.Error())
	assert.ErrorIs(t, err, etl.ErrIOFailure)
	assert.Equal(t, etl.StageLoad, etl.FailedStage(err))
	assert.Empty(t, etl.FailedStage(etl.ErrNotFound))
}
