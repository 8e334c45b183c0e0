package dof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/bdfsolve/model"
)

func rec(card string, fields ...any) model.Record {
	return model.Record{Card: card, Fields: fields}
}

// mixed interleaves scalar points between grids and adds them out of order
func mixed(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.FromRecords([]model.Record{
		rec("GRID", 20, nil, 1.0, 0.0, 0.0, nil, 345),
		rec("SPOINT", 15),
		rec("GRID", 10, nil, 0.0, 0.0, 0.0),
		rec("SPOINT", 30, 31),
	})
	require.NoError(t, err)
	return m
}

// ============================================================================
// Map
// ============================================================================

func TestMap_IDOrder(t *testing.T) {
	dm, err := NewMap(mixed(t))
	require.NoError(t, err)
	require.NoError(t, dm.Verify())

	assert.Equal(t, 6+1+6+1+1, dm.Len())
	expected := []model.DOF{
		{Node: 10, Component: 1}, {Node: 10, Component: 2}, {Node: 10, Component: 3},
		{Node: 10, Component: 4}, {Node: 10, Component: 5}, {Node: 10, Component: 6},
		{Node: 15, Component: 0},
		{Node: 20, Component: 1}, {Node: 20, Component: 2}, {Node: 20, Component: 3},
		{Node: 20, Component: 4}, {Node: 20, Component: 5}, {Node: 20, Component: 6},
		{Node: 30, Component: 0},
		{Node: 31, Component: 0},
	}
	assert.Equal(t, expected, dm.DOFs())

	for i, d := range expected {
		j, ok := dm.Index(d)
		require.True(t, ok)
		assert.Equal(t, i, j)
	}
	_, ok := dm.Index(model.DOF{Node: 15, Component: 1})
	assert.False(t, ok)

	assert.Equal(t, []int{7, 8, 9, 10, 11, 12}, dm.NodeIndices(20))
	assert.Equal(t, []int{6}, dm.NodeIndices(15))
	assert.Nil(t, dm.NodeIndices(99))
}

func TestMap_StableAcrossRuns(t *testing.T) {
	a, err := NewMap(mixed(t))
	require.NoError(t, err)
	b, err := NewMap(mixed(t))
	require.NoError(t, err)
	assert.Equal(t, a.DOFs(), b.DOFs())
}

func TestMap_EmptyModel(t *testing.T) {
	_, err := NewMap(model.NewModel())
	assert.Error(t, err)
}

// ============================================================================
// Partitioning
// ============================================================================

func TestPartitioning_Transitions(t *testing.T) {
	m := mixed(t)
	dm, err := NewMap(m)
	require.NoError(t, err)
	p := NewPartitioning(dm)
	require.NoError(t, p.ApplyPermanent(m))

	// GRID 20 PS=345
	assert.Equal(t, []int{9, 10, 11}, p.Set(ConstrainedZero))

	require.NoError(t, p.Constrain(0))
	require.NoError(t, p.Enforce(1, 0.1))
	require.NoError(t, p.Depend(2, "MPC 1"))

	assert.Equal(t, ConstrainedZero, p.Of(0))
	assert.Equal(t, ConstrainedValue, p.Of(1))
	assert.Equal(t, 0.1, p.Value(1))
	assert.Equal(t, Dependent, p.Of(2))
	assert.Equal(t, "MPC 1", p.Owner(2))

	// Constrain keeps an enforced value
	require.NoError(t, p.Constrain(1))
	assert.Equal(t, ConstrainedValue, p.Of(1))

	// Enforce overrides a plain constraint
	require.NoError(t, p.Enforce(0, 2.0))
	assert.Equal(t, ConstrainedValue, p.Of(0))

	p.Release(0)
	assert.Equal(t, Free, p.Of(0))
	assert.Equal(t, 0.0, p.Value(0))

	require.NoError(t, p.Verify())
}

func TestPartitioning_Conflicts(t *testing.T) {
	tests := []struct {
		name string
		op   func(p *Partitioning) error
	}{
		{"dependent twice", func(p *Partitioning) error {
			_ = p.Depend(3, "MPC 1")
			return p.Depend(3, "RBE2 7")
		}},
		{"constrained then dependent", func(p *Partitioning) error {
			_ = p.Constrain(3)
			return p.Depend(3, "MPC 1")
		}},
		{"dependent then constrained", func(p *Partitioning) error {
			_ = p.Depend(3, "MPC 1")
			return p.Constrain(3)
		}},
		{"dependent then enforced", func(p *Partitioning) error {
			_ = p.Depend(3, "MPC 1")
			return p.Enforce(3, 1.0)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dm, err := NewMap(mixed(t))
			require.NoError(t, err)
			p := NewPartitioning(dm)
			err = tt.op(p)
			var conflict *model.ConstraintConflictError
			require.ErrorAs(t, err, &conflict)
			assert.Equal(t, model.DOF{Node: 10, Component: 4}, conflict.DOF)
			assert.ErrorIs(t, err, model.ErrConstraintConflict)
		})
	}
}

func TestPartitioning_StrictPartition(t *testing.T) {
	dm, err := NewMap(mixed(t))
	require.NoError(t, err)
	p := NewPartitioning(dm)
	require.NoError(t, p.Constrain(0))
	require.NoError(t, p.Enforce(6, 0.5))
	require.NoError(t, p.Depend(7, "RBE2 1"))
	require.NoError(t, p.Verify())

	seen := make(map[int]Partition)
	total := 0
	for q := Free; q < numPartitions; q++ {
		for _, i := range p.Set(q) {
			_, dup := seen[i]
			assert.False(t, dup, "index %d in two partitions", i)
			seen[i] = q
			total++
		}
	}
	assert.Equal(t, dm.Len(), total)

	counts := p.Counts()
	assert.Equal(t, dm.Len()-3, counts[Free])
	assert.Equal(t, 1, counts[ConstrainedZero])
	assert.Equal(t, 1, counts[ConstrainedValue])
	assert.Equal(t, 1, counts[Dependent])
}

func TestPartitioning_FreeIndex(t *testing.T) {
	dm, err := NewMap(mixed(t))
	require.NoError(t, err)
	p := NewPartitioning(dm)
	require.NoError(t, p.Constrain(1))
	require.NoError(t, p.Depend(3, "MPC 1"))

	idx := p.FreeIndex()
	assert.Equal(t, 0, idx[0])
	assert.Equal(t, -1, idx[1])
	assert.Equal(t, 1, idx[2])
	assert.Equal(t, -1, idx[3])
	assert.Equal(t, 2, idx[4])
}

func TestPartitioning_CloneIsIndependent(t *testing.T) {
	dm, err := NewMap(mixed(t))
	require.NoError(t, err)
	p := NewPartitioning(dm)
	q := p.Clone()
	require.NoError(t, q.Constrain(0))
	assert.Equal(t, Free, p.Of(0))
	assert.Equal(t, ConstrainedZero, q.Of(0))
}
