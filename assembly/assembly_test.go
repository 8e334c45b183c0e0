package assembly

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/bdfsolve/dof"
	"github.com/notargets/bdfsolve/model"
	"github.com/notargets/bdfsolve/partitions"
	"github.com/notargets/bdfsolve/xref"
)

func rec(card string, fields ...any) model.Record {
	return model.Record{Card: card, Fields: fields}
}

func build(t *testing.T, opts Options, recs ...model.Record) (*model.Model, *System) {
	t.Helper()
	m, err := model.FromRecords(recs)
	require.NoError(t, err)
	require.NoError(t, xref.CrossReference(m))
	dm, err := dof.NewMap(m)
	require.NoError(t, err)
	s, err := Assemble(context.Background(), m, dm, opts)
	require.NoError(t, err)
	return m, s
}

// springPair is two grids joined in x by a 100 spring with grid 1 clamped in
// SPC set 1
func springPair(more ...model.Record) []model.Record {
	base := []model.Record{
		rec("GRID", 1, nil, 0.0, 0.0, 0.0),
		rec("GRID", 2, nil, 1.0, 0.0, 0.0),
		rec("CELAS2", 1, 100.0, 1, 1, 2, 1),
		rec("SPC1", 1, 123456, 1),
	}
	return append(base, more...)
}

func termMap(e *equation) map[int]float64 {
	out := make(map[int]float64, len(e.terms))
	for _, t := range e.terms {
		out[t.idx] = t.coeff
	}
	return out
}

// ============================================================================
// Assembly
// ============================================================================

func TestAssemble_Spring(t *testing.T) {
	_, s := build(t, DefaultOptions(), springPair()...)
	assert.Equal(t, 12, s.Map.Len())
	assert.InDelta(t, 100.0, s.K.At(0, 0), 1e-12)
	assert.InDelta(t, -100.0, s.K.At(0, 6), 1e-12)
	assert.InDelta(t, -100.0, s.K.At(6, 0), 1e-12)
	assert.InDelta(t, 100.0, s.K.At(6, 6), 1e-12)
	assert.Equal(t, 4, s.K.NNZ())
	assert.False(t, s.HasMass)
	require.NotNil(t, s.Layout)
	assert.NoError(t, s.Layout.ValidateLayout())
}

func TestAssemble_RequiresCrossReference(t *testing.T) {
	m, err := model.FromRecords(springPair())
	require.NoError(t, err)
	_, err = Assemble(context.Background(), m, nil, DefaultOptions())
	assert.Error(t, err)
}

func TestAssemble_Deterministic(t *testing.T) {
	// many elements over several partitions and workers sum to the same matrix
	recs := []model.Record{rec("GRID", 1, nil, 0.0, 0.0, 0.0), rec("GRID", 2, nil, 1.0, 0.0, 0.0)}
	for eid := 1; eid <= 40; eid++ {
		recs = append(recs, rec("CELAS2", eid, float64(eid)*0.1, 1, 1, 2, 1))
	}
	for _, strategy := range []partitions.PartitionStrategy{
		partitions.BlockPartition, partitions.RoundRobin, partitions.CostBalanced,
	} {
		t.Run(strategy.String(), func(t *testing.T) {
			opts := DefaultOptions()
			opts.PartitionSize = 3
			opts.Workers = 4
			opts.Strategy = strategy
			_, s := build(t, opts, recs...)
			assert.InDelta(t, 82.0, s.K.At(0, 0), 1e-9)
			assert.Equal(t, 14, s.Layout.NumPartitions)
		})
	}
}

func TestAssemble_ElementFailure(t *testing.T) {
	m, err := model.FromRecords([]model.Record{
		rec("GRID", 1, nil, 0.0, 0.0, 0.0),
		rec("GRID", 2, nil, 0.0, 0.0, 0.0),
		rec("MAT1", 1, 1000.0, nil, 0.3),
		rec("CONROD", 1, 1, 2, 1, 2.0),
	})
	require.NoError(t, err)
	require.NoError(t, xref.CrossReference(m))
	dm, err := dof.NewMap(m)
	require.NoError(t, err)
	_, err = Assemble(context.Background(), m, dm, DefaultOptions())
	assert.True(t, errors.Is(err, model.ErrElementGeometry), "got %v", err)
	assert.Contains(t, err.Error(), "partition 0")
}

func TestAssemble_MixedShapes(t *testing.T) {
	// springs and a mass (point shapes) interleaved with a rod in one partition are each
	// evaluated once through their shape group
	recs := []model.Record{
		rec("GRID", 1, nil, 0.0, 0.0, 0.0),
		rec("GRID", 2, nil, 1.0, 0.0, 0.0),
		rec("MAT1", 1, 1000.0, nil, 0.3),
		rec("CELAS2", 1, 10.0, 1, 1, 2, 1),
		rec("CONROD", 2, 1, 2, 1, 1.0),
		rec("CELAS2", 3, 5.0, 1, 2, 2, 2),
		rec("CONM2", 4, 2, 0, 3.0),
	}
	opts := DefaultOptions()
	opts.PartitionSize = 8
	_, s := build(t, opts, recs...)
	require.Equal(t, 1, s.Layout.NumPartitions)
	require.Len(t, s.Layout.Partitions[0].TypeGroups, 2)

	assert.InDelta(t, 10.0+1000.0, s.K.At(0, 0), 1e-9)
	assert.InDelta(t, 5.0, s.K.At(1, 1), 1e-9)
	assert.InDelta(t, 3.0, s.M.At(6, 6), 1e-12)
	assert.True(t, s.HasMass)

	stats := s.Layout.PartitionStatistics()
	assert.Equal(t, 4, stats.MaxElements)
	assert.InDelta(t, 1.0, stats.Imbalance, 1e-12)
}

func TestAssemble_Cancelled(t *testing.T) {
	m, err := model.FromRecords(springPair())
	require.NoError(t, err)
	require.NoError(t, xref.CrossReference(m))
	dm, err := dof.NewMap(m)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Assemble(ctx, m, dm, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

// rotatedRod is a CONROD along basic x whose second grid displaces in a
// system turned 90 degrees about z
func rotatedRod(more ...model.Record) []model.Record {
	base := []model.Record{
		rec("CORD2R", 1, 0, 0.0, 0.0, 0.0, 0.0, 0.0, 1.0, 0.0, 1.0, 0.0),
		rec("GRID", 1, nil, 0.0, 0.0, 0.0),
		rec("GRID", 2, nil, 1.0, 0.0, 0.0, 1),
		rec("MAT1", 1, 1000.0, nil, 0.3),
		rec("CONROD", 1, 1, 2, 1, 2.0),
	}
	return append(base, more...)
}

func TestAssemble_DisplacementFrame(t *testing.T) {
	_, s := build(t, DefaultOptions(), rotatedRod()...)
	// basic x at grid 2 is minus its second displacement axis
	assert.InDelta(t, 2000.0, s.K.At(0, 0), 1e-9)
	assert.InDelta(t, 0.0, s.K.At(6, 6), 1e-9)
	assert.InDelta(t, 2000.0, s.K.At(7, 7), 1e-9)
	assert.InDelta(t, 2000.0, s.K.At(0, 7), 1e-9)
	assert.InDelta(t, 2000.0, s.K.At(7, 0), 1e-9)
}

// ============================================================================
// Loads
// ============================================================================

func TestLoads(t *testing.T) {
	t.Run("force in displacement frame", func(t *testing.T) {
		m, s := build(t, DefaultOptions(), rotatedRod(rec("FORCE", 1, 2, 0, 10.0, 1.0, 0.0, 0.0))...)
		lv, err := s.Loads(m, 1, 0)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, lv.F[6], 1e-12)
		assert.InDelta(t, -10.0, lv.F[7], 1e-12)
	})

	t.Run("moment", func(t *testing.T) {
		m, s := build(t, DefaultOptions(), springPair(rec("MOMENT", 1, 2, 0, 3.0, 0.0, 0.0, 1.0))...)
		lv, err := s.Loads(m, 1, 0)
		require.NoError(t, err)
		assert.InDelta(t, 3.0, lv.F[11], 1e-12)
	})

	t.Run("force1 and load combination", func(t *testing.T) {
		m, s := build(t, DefaultOptions(), springPair(
			rec("FORCE1", 1, 2, 10.0, 1, 2),
			rec("LOAD", 10, 2.0, 1.5, 1),
		)...)
		lv, err := s.Loads(m, 10, 0)
		require.NoError(t, err)
		assert.InDelta(t, 30.0, lv.F[6], 1e-12)
	})

	t.Run("gravity", func(t *testing.T) {
		m, s := build(t, DefaultOptions(), springPair(
			rec("CONM2", 5, 1, 0, 2.0),
			rec("GRAV", 1, 0, 9.81, 0.0, 0.0, -1.0),
		)...)
		assert.True(t, s.HasMass)
		lv, err := s.Loads(m, 1, 0)
		require.NoError(t, err)
		assert.InDelta(t, -19.62, lv.F[2], 1e-12)
		assert.InDelta(t, 0.0, lv.F[8], 1e-12)
	})

	t.Run("scalar point", func(t *testing.T) {
		m, s := build(t, DefaultOptions(), springPair(
			rec("SPOINT", 10),
			rec("CELAS4", 7, 50.0, 10),
			rec("SLOAD", 1, 10, 2.0),
		)...)
		lv, err := s.Loads(m, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, 13, s.Map.Len())
		assert.InDelta(t, 2.0, lv.F[12], 1e-12)
	})

	t.Run("enforced displacement", func(t *testing.T) {
		m, s := build(t, DefaultOptions(), springPair(rec("SPCD", 2, 2, 1, 0.1))...)
		lv, err := s.Loads(m, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, map[int]float64{6: 0.1}, lv.Enforced)
	})

	t.Run("repeated enforced displacement adds", func(t *testing.T) {
		m, s := build(t, DefaultOptions(), springPair(
			rec("SPCD", 2, 2, 1, 0.1),
			rec("SPCD", 2, 2, 1, 0.1),
			rec("SPCD", 6, 2, 1, 0.05),
			rec("LOAD", 5, 1.0, 0.5, 2, 2.0, 6),
		)...)
		lv, err := s.Loads(m, 2, 0)
		require.NoError(t, err)
		require.Len(t, lv.Enforced, 1)
		assert.InDelta(t, 0.2, lv.Enforced[6], 1e-15)

		lv, err = s.Loads(m, 5, 0)
		require.NoError(t, err)
		assert.InDelta(t, 0.5*0.2+2.0*0.05, lv.Enforced[6], 1e-15)
	})

	t.Run("temperature in load set warns", func(t *testing.T) {
		m, s := build(t, DefaultOptions(), springPair(rec("TEMP", 3, 1, 100.0))...)
		lv, err := s.Loads(m, 3, 0)
		require.NoError(t, err)
		assert.Len(t, lv.Warnings, 1)
	})

	t.Run("thermal rod", func(t *testing.T) {
		m, s := build(t, DefaultOptions(),
			rec("GRID", 1, nil, 0.0, 0.0, 0.0),
			rec("GRID", 2, nil, 2.0, 0.0, 0.0),
			rec("MAT1", 1, 1000.0, nil, 0.3, 0.0, 1e-3, 20.0),
			rec("CONROD", 1, 1, 2, 1, 2.0),
			rec("TEMP", 4, 1, 120.0, 2, 120.0),
		)
		lv, err := s.Loads(m, 0, 4)
		require.NoError(t, err)
		// E A alpha dT = 1000 * 2 * 1e-3 * 100
		assert.InDelta(t, -200.0, lv.F[0], 1e-9)
		assert.InDelta(t, 200.0, lv.F[6], 1e-9)
	})

	t.Run("unknown set", func(t *testing.T) {
		m, s := build(t, DefaultOptions(), springPair()...)
		_, err := s.Loads(m, 99, 0)
		assert.ErrorIs(t, err, model.ErrUnknownID)
	})
}

// ============================================================================
// Reduction
// ============================================================================

func TestReduce_Spring(t *testing.T) {
	m, s := build(t, DefaultOptions(), springPair(rec("FORCE", 1, 2, 0, 5.0, 1.0, 0.0, 0.0))...)
	r, err := s.Reduce(m, Subcase{ID: 1, Load: 1, SPC: 1})
	require.NoError(t, err)

	assert.Equal(t, []int{6}, r.Free)
	require.NotNil(t, r.Kff)
	assert.InDelta(t, 100.0, r.Kff.At(0, 0), 1e-12)
	assert.Equal(t, []float64{5}, r.Ff)
	assert.Len(t, r.AutoSPC, 5)
	assert.Equal(t, model.DOF{Node: 2, Component: 2}, r.AutoSPC[0])
	assert.Nil(t, r.Mff)

	u := r.Expand([]float64{0.05})
	assert.InDelta(t, 0.05, u[6], 1e-15)
	assert.Equal(t, []float64{0.05}, r.Restrict(u))
	counts := r.Part.Counts()
	assert.Equal(t, 1, counts[dof.Free])
	assert.Equal(t, 11, counts[dof.ConstrainedZero])
}

func TestReduce_Floating(t *testing.T) {
	t.Run("auto spc off", func(t *testing.T) {
		opts := DefaultOptions()
		opts.AutoSPC = false
		m, s := build(t, opts, springPair()...)
		_, err := s.Reduce(m, Subcase{ID: 1, SPC: 1})
		var fe *model.FloatingDOFError
		require.ErrorAs(t, err, &fe)
		assert.Len(t, fe.DOFs, 5)
	})

	t.Run("loaded dof without stiffness", func(t *testing.T) {
		m, s := build(t, DefaultOptions(), springPair(rec("FORCE", 1, 2, 0, 5.0, 0.0, 1.0, 0.0))...)
		_, err := s.Reduce(m, Subcase{ID: 1, Load: 1, SPC: 1})
		var fe *model.FloatingDOFError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, []model.DOF{{Node: 2, Component: 2}}, fe.DOFs)
	})
}

func TestReduce_EnforcedDisplacement(t *testing.T) {
	m, s := build(t, DefaultOptions(), springPair(
		rec("SPC1", 1, 1, 2),
		rec("SPCD", 2, 2, 1, 0.1),
	)...)
	r, err := s.Reduce(m, Subcase{ID: 1, Load: 2, SPC: 1})
	require.NoError(t, err)
	assert.Empty(t, r.Free)
	assert.Nil(t, r.T)
	assert.Nil(t, r.Kff)
	assert.InDelta(t, 0.1, r.U0[6], 1e-15)
	assert.Equal(t, dof.ConstrainedValue, r.Part.Of(6))

	u := r.Expand(nil)
	assert.InDelta(t, 0.1, u[6], 1e-15)
}

func TestReduce_EnforcedFreeDOF(t *testing.T) {
	// SPCD on a DOF outside the SPC set still enforces it; the clamped end
	// sees -K u0
	m, s := build(t, DefaultOptions(),
		rec("GRID", 1, nil, 0.0, 0.0, 0.0),
		rec("GRID", 2, nil, 1.0, 0.0, 0.0),
		rec("GRID", 3, nil, 2.0, 0.0, 0.0),
		rec("CELAS2", 1, 100.0, 1, 1, 2, 1),
		rec("CELAS2", 2, 100.0, 2, 1, 3, 1),
		rec("SPC1", 1, 123456, 1),
		rec("SPCD", 2, 3, 1, 0.2),
	)
	r, err := s.Reduce(m, Subcase{ID: 1, Load: 2, SPC: 1})
	require.NoError(t, err)
	require.Equal(t, []int{6}, r.Free)
	assert.InDelta(t, 200.0, r.Kff.At(0, 0), 1e-12)
	assert.InDelta(t, 20.0, r.Ff[0], 1e-12)
}

func TestReduce_MPCTie(t *testing.T) {
	m, s := build(t, DefaultOptions(), springPair(
		rec("GRID", 3, nil, 2.0, 0.0, 0.0),
		rec("MPC", 1, 3, 1, 1.0, 2, 1, -1.0),
	)...)
	r, err := s.Reduce(m, Subcase{ID: 1, SPC: 1, MPC: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{6}, r.Free)
	assert.Equal(t, dof.Dependent, r.Part.Of(12))
	assert.Equal(t, "MPC 1", r.Part.Owner(12))

	u := r.Expand([]float64{0.05})
	assert.InDelta(t, 0.05, u[12], 1e-15)
}

func TestReduce_ConstraintErrors(t *testing.T) {
	tests := []struct {
		name string
		recs []model.Record
		want error
	}{
		{"mpc cycle", []model.Record{
			rec("GRID", 3, nil, 2.0, 0.0, 0.0),
			rec("MPC", 1, 3, 1, 1.0, 2, 1, -1.0),
			rec("MPC", 1, 2, 1, 1.0, 3, 1, -1.0),
		}, model.ErrCyclicReference},
		{"dependent and constrained", []model.Record{
			rec("MPC", 1, 2, 1, 1.0, 1, 2, -1.0),
			rec("SPC1", 1, 1, 2),
		}, model.ErrConstraintConflict},
		{"dependent twice", []model.Record{
			rec("GRID", 3, nil, 2.0, 0.0, 0.0),
			rec("MPC", 1, 2, 1, 1.0, 3, 1, -1.0),
			rec("MPC", 1, 2, 1, 1.0, 3, 2, -1.0),
		}, model.ErrConstraintConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, s := build(t, DefaultOptions(), springPair(tt.recs...)...)
			_, err := s.Reduce(m, Subcase{ID: 1, SPC: 1, MPC: 1})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReduce_CycleChain(t *testing.T) {
	m, s := build(t, DefaultOptions(), springPair(
		rec("GRID", 3, nil, 2.0, 0.0, 0.0),
		rec("MPC", 1, 3, 1, 1.0, 2, 1, -1.0),
		rec("MPC", 1, 2, 1, 1.0, 3, 1, -1.0),
	)...)
	_, err := s.Reduce(m, Subcase{ID: 1, SPC: 1, MPC: 1})
	var ce *model.CyclicReferenceError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, model.MPCClass, ce.Class)
	assert.Equal(t, []int{3, 2, 3}, ce.Chain)
}

// ============================================================================
// Rigid elements
// ============================================================================

// rigidEquations assembles a model and returns the resolved equations by
// dependent index
func rigidEquations(t *testing.T, recs ...model.Record) (*System, map[int]*equation) {
	t.Helper()
	m, s := build(t, DefaultOptions(), recs...)
	eq := newEquations(s)
	require.NoError(t, eq.rigids(m))
	resolved, err := eq.resolve()
	require.NoError(t, err)
	out := make(map[int]*equation, len(resolved))
	for _, e := range resolved {
		out[e.dep] = e
	}
	return s, out
}

func threeGrids(more ...model.Record) []model.Record {
	base := []model.Record{
		rec("GRID", 1, nil, 0.0, 0.0, 0.0),
		rec("GRID", 2, nil, 1.0, 0.0, 0.0),
		rec("GRID", 3, nil, 0.5, 0.0, 0.0),
	}
	return append(base, more...)
}

func TestRigid_RBE2(t *testing.T) {
	s, eqs := rigidEquations(t, threeGrids(rec("RBE2", 1, 1, 123456, 2))...)
	require.Len(t, eqs, 6)

	// v2 = v1 + rz1 * dx
	v2 := termMap(eqs[s.Map.MustIndex(2, 2)])
	assert.InDelta(t, 1.0, v2[s.Map.MustIndex(1, 2)], 1e-12)
	assert.InDelta(t, 1.0, v2[s.Map.MustIndex(1, 6)], 1e-12)
	assert.Len(t, v2, 2)

	// w2 = w1 - ry1 * dx
	w2 := termMap(eqs[s.Map.MustIndex(2, 3)])
	assert.InDelta(t, -1.0, w2[s.Map.MustIndex(1, 5)], 1e-12)

	rx := termMap(eqs[s.Map.MustIndex(2, 4)])
	assert.Equal(t, map[int]float64{s.Map.MustIndex(1, 4): 1}, rx)
}

func TestRigid_RBAR(t *testing.T) {
	s, eqs := rigidEquations(t, threeGrids(rec("RBAR", 1, 1, 2))...)
	require.Len(t, eqs, 6)
	v2 := termMap(eqs[s.Map.MustIndex(2, 2)])
	assert.InDelta(t, 1.0, v2[s.Map.MustIndex(1, 2)], 1e-12)
	assert.InDelta(t, 1.0, v2[s.Map.MustIndex(1, 6)], 1e-12)
}

func TestRigid_RBARSplit(t *testing.T) {
	// translations independent at A, rotations independent at B
	s, eqs := rigidEquations(t, threeGrids(rec("RBAR", 1, 1, 2, 123, 456, 456, 123))...)
	require.Len(t, eqs, 6)
	rz1 := termMap(eqs[s.Map.MustIndex(1, 6)])
	assert.InDelta(t, 1.0, rz1[s.Map.MustIndex(2, 6)], 1e-12)
	v2 := termMap(eqs[s.Map.MustIndex(2, 2)])
	assert.InDelta(t, 1.0, v2[s.Map.MustIndex(1, 2)], 1e-12)
	assert.InDelta(t, 1.0, v2[s.Map.MustIndex(2, 6)], 1e-12)
}

func TestRigid_RROD(t *testing.T) {
	s, eqs := rigidEquations(t, threeGrids(rec("RROD", 1, 1, 2, nil, 1))...)
	require.Len(t, eqs, 1)
	u2 := termMap(eqs[s.Map.MustIndex(2, 1)])
	assert.Equal(t, map[int]float64{s.Map.MustIndex(1, 1): 1}, u2)
}

func TestRigid_RRODNormalComponent(t *testing.T) {
	m, s := build(t, DefaultOptions(), threeGrids(rec("RROD", 1, 1, 2, nil, 2))...)
	err := newEquations(s).rigids(m)
	assert.ErrorIs(t, err, model.ErrConstraintConflict)
}

func TestRigid_RBE3(t *testing.T) {
	s, eqs := rigidEquations(t, threeGrids(rec("RBE3", 1, 3, 123, 1.0, 123, 1, 2))...)
	require.Len(t, eqs, 3)
	u3 := termMap(eqs[s.Map.MustIndex(3, 1)])
	assert.InDelta(t, 0.5, u3[s.Map.MustIndex(1, 1)], 1e-12)
	assert.InDelta(t, 0.5, u3[s.Map.MustIndex(2, 1)], 1e-12)
}

func TestRigid_RBE3Rotation(t *testing.T) {
	m, s := build(t, DefaultOptions(), threeGrids(rec("RBE3", 1, 3, 123456, 1.0, 123, 1, 2))...)
	err := newEquations(s).rigids(m)
	assert.ErrorIs(t, err, model.ErrUnsupported)
}

func TestRigid_Chain(t *testing.T) {
	// grid 3 follows grid 2 by MPC, grid 2 follows grid 1 by RBE2
	m, s := build(t, DefaultOptions(), threeGrids(
		rec("RBE2", 1, 1, 123456, 2),
		rec("MPC", 1, 3, 1, 1.0, 2, 1, -2.0),
	)...)
	eq := newEquations(s)
	require.NoError(t, eq.mpcs(m, 1))
	require.NoError(t, eq.rigids(m))
	resolved, err := eq.resolve()
	require.NoError(t, err)
	for _, e := range resolved {
		if e.dep == s.Map.MustIndex(3, 1) {
			assert.Equal(t, map[int]float64{s.Map.MustIndex(1, 1): 2}, termMap(e))
			return
		}
	}
	t.Fatal("no equation for grid 3")
}
