package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunat-tools/ruc-resolver/internal/model"
)

func TestReconcilerAppliesResolvedName(t *testing.T) {
	s := newFakeStore("20131312955")
	r := NewReconciler(s)

	d, err := r.Apply(context.Background(), model.Outcome{
		RUC:           "20131312955",
		Resolved:      true,
		Value:         "TELEFONICA DEL PERU SAA",
		SourceBackend: "apis.net.pe",
		Attempts:      1,
	})
	require.NoError(t, err)
	assert.Equal(t, DispositionResolved, d)
	assert.Equal(t, "TELEFONICA DEL PERU SAA", s.value("20131312955"))
}

func TestReconcilerWritesNotFoundSentinel(t *testing.T) {
	s := newFakeStore("20999999991")
	r := NewReconciler(s)

	d, err := r.Apply(context.Background(), model.Outcome{
		RUC:         "20999999991",
		SawNotFound: true,
		Attempts:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, DispositionAbsent, d)
	assert.Equal(t, model.SentinelNotFound, s.value("20999999991"))
}

func TestReconcilerInvalidBeatsNotFound(t *testing.T) {
	s := newFakeStore("00000000000")
	r := NewReconciler(s)

	d, err := r.Apply(context.Background(), model.Outcome{
		RUC:         "00000000000",
		SawNotFound: true,
		SawInvalid:  true,
		Attempts:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, DispositionAbsent, d)
	assert.Equal(t, model.SentinelInvalid, s.value("00000000000"))
}

func TestReconcilerTransientOnlyWritesNothing(t *testing.T) {
	s := newFakeStore("20131312955")
	r := NewReconciler(s)

	d, err := r.Apply(context.Background(), model.Outcome{
		RUC:      "20131312955",
		Attempts: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, DispositionFailed, d)
	assert.Empty(t, s.value("20131312955"))
}

func TestReconcilerStoreFault(t *testing.T) {
	s := newFakeStore("20131312955")
	s.failNext = errors.New("connection lost")
	r := NewReconciler(s)

	d, err := r.Apply(context.Background(), model.Outcome{
		RUC:           "20131312955",
		Resolved:      true,
		Value:         "TELEFONICA DEL PERU SAA",
		SourceBackend: "apis.net.pe",
	})
	assert.Error(t, err)
	assert.Equal(t, DispositionFailed, d)
}
