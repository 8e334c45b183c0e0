package partitions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/bdfsolve/element"
)

func TestBuildPartitions_Strategies(t *testing.T) {
	tests := []struct {
		name     string
		strategy PartitionStrategy
		n, size  int
		wantEToP []int
	}{
		{"block even", BlockPartition, 6, 2, []int{0, 0, 1, 1, 2, 2}},
		{"block ragged", BlockPartition, 5, 2, []int{0, 0, 1, 1, 2}},
		{"round robin", RoundRobin, 5, 2, []int{0, 1, 2, 0, 1}},
		{"single partition", BlockPartition, 3, 10, []int{0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := &PartitionBuilder{
				Workload:            &Workload{NumElements: tt.n},
				TargetPartitionSize: tt.size,
				Strategy:            tt.strategy,
			}
			layout, err := pb.BuildPartitions()
			require.NoError(t, err)
			assert.Equal(t, tt.wantEToP, layout.EToP)
			assert.NoError(t, layout.ValidateLayout())
			for k, p := range tt.wantEToP {
				assert.Equal(t, p, layout.GetPartition(k))
			}
			assert.Equal(t, -1, layout.GetPartition(tt.n))
		})
	}
}

func TestBuildPartitions_Empty(t *testing.T) {
	pb := &PartitionBuilder{Workload: &Workload{}, TargetPartitionSize: 4}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)
	assert.Equal(t, 1, layout.NumPartitions)
	assert.Equal(t, 0, layout.KpartMax)
}

func TestBuildPartitions_CostBalanced(t *testing.T) {
	// one heavy solid and six light springs over two partitions
	shapes := []element.Shape{element.Point, element.Hex, element.Point, element.Point,
		element.Point, element.Point, element.Point}
	dofs := []int{2, 48, 2, 2, 2, 2, 2}
	pb := &PartitionBuilder{
		Workload:            NewWorkload(shapes, dofs),
		TargetPartitionSize: 4,
		Strategy:            CostBalanced,
	}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)
	require.Equal(t, 2, layout.NumPartitions)

	heavy := layout.GetPartition(1)
	assert.Equal(t, []int{1}, layout.Partitions[heavy].Elements)
	assert.Equal(t, 6, layout.Partitions[1-heavy].NumElements)

	stats := layout.PartitionStatistics()
	assert.Equal(t, 48*48, stats.MaxCost)
	assert.Equal(t, 1, stats.MinElements)
	assert.Equal(t, 6, stats.MaxElements)
}

func TestBuildPartitions_TypeGroups(t *testing.T) {
	shapes := []element.Shape{element.Quad, element.Line, element.Quad, element.Tri}
	pb := &PartitionBuilder{
		Workload:            NewWorkload(shapes, nil),
		TargetPartitionSize: 10,
	}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)

	groups := layout.Partitions[0].TypeGroups
	require.Len(t, groups, 3)
	assert.Equal(t, element.Line, groups[0].Shape)
	assert.Equal(t, element.Tri, groups[1].Shape)
	assert.Equal(t, element.Quad, groups[2].Shape)
	assert.Equal(t, []int{0, 2}, groups[2].LocalIDs)
	assert.Equal(t, 2, groups[2].StartIndex)
}

func TestBuildPartitions_BadInput(t *testing.T) {
	tests := []struct {
		name string
		pb   PartitionBuilder
	}{
		{"no workload", PartitionBuilder{TargetPartitionSize: 1}},
		{"zero size", PartitionBuilder{Workload: &Workload{NumElements: 2}}},
		{"shape count", PartitionBuilder{
			Workload:            &Workload{NumElements: 2, Shapes: []element.Shape{element.Line}},
			TargetPartitionSize: 1,
		}},
		{"strategy", PartitionBuilder{
			Workload:            &Workload{NumElements: 2},
			TargetPartitionSize: 1,
			Strategy:            PartitionStrategy(9),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.pb.BuildPartitions()
			assert.Error(t, err)
		})
	}
}

func TestValidateLayout_Detects(t *testing.T) {
	good := func() *PartitionLayout {
		return &PartitionLayout{
			Partitions: []Partition{
				{ID: 0, Elements: []int{0, 1}, NumElements: 2},
				{ID: 1, Elements: []int{2}, NumElements: 1},
			},
			KpartMax:      2,
			TotalElements: 3,
			NumPartitions: 2,
			EToP:          []int{0, 0, 1},
		}
	}
	require.NoError(t, good().ValidateLayout())

	tests := []struct {
		name   string
		mutate func(pl *PartitionLayout)
	}{
		{"stale KpartMax", func(pl *PartitionLayout) { pl.KpartMax = 3 }},
		{"duplicate member", func(pl *PartitionLayout) {
			pl.Partitions[1].Elements = []int{1}
		}},
		{"EToP disagrees", func(pl *PartitionLayout) { pl.EToP[2] = 0 }},
		{"count mismatch", func(pl *PartitionLayout) { pl.Partitions[0].NumElements = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := good()
			tt.mutate(pl)
			assert.Error(t, pl.ValidateLayout())
		})
	}
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []PartitionStrategy{BlockPartition, RoundRobin, CostBalanced} {
		got, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStrategy("metis")
	assert.Error(t, err)
}
