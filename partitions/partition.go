// Package partitions groups elements into batches that are evaluated
// together by one worker during assembly.
package partitions

import (
	"fmt"
	"math"

	"github.com/notargets/bdfsolve/element"
)

// Partition represents a collection of elements evaluated together by one
// worker
type Partition struct {
	// Unique identifier for this partition
	ID int

	// Element membership, as positions in the workload
	Elements    []int
	NumElements int
	Cost        int // Sum of element costs

	// Mixed element support
	ElementShapes []element.Shape
	TypeGroups    []ElementGroup // Grouped by shape, in shape order
}

// ElementGroup represents elements of the same shape within a partition
type ElementGroup struct {
	Shape      element.Shape
	StartIndex int   // Position of the first member in LocalIDs order
	Count      int   // Number of elements of this shape
	LocalIDs   []int // Indices within the partition
}

// PartitionLayout manages the complete workload decomposition
type PartitionLayout struct {
	Partitions []Partition

	KpartMax      int // max(NumElements) across all partitions
	TotalElements int
	NumPartitions int

	// Element to partition mapping
	EToP []int // Length TotalElements: element k belongs to partition EToP[k]
}

// GetPartition returns the partition containing element k
func (pl *PartitionLayout) GetPartition(elementID int) int {
	if elementID < 0 || elementID >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[elementID]
}

// ValidateLayout checks partition consistency:
// 1. KpartMax is the largest partition
// 2. Every element belongs to exactly one partition
// 3. EToP agrees with partition membership
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("%d partitions, NumPartitions %d", len(pl.Partitions), pl.NumPartitions)
	}
	if len(pl.EToP) != pl.TotalElements {
		return fmt.Errorf("EToP length %d != TotalElements %d", len(pl.EToP), pl.TotalElements)
	}

	// Check 1
	actualMax := 0
	for _, p := range pl.Partitions {
		actualMax = max(actualMax, p.NumElements)
		if p.NumElements != len(p.Elements) {
			return fmt.Errorf("partition %d: NumElements %d != %d members",
				p.ID, p.NumElements, len(p.Elements))
		}
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d", actualMax, pl.KpartMax)
	}

	// Checks 2 and 3
	seen := make([]bool, pl.TotalElements)
	for pID, p := range pl.Partitions {
		for _, k := range p.Elements {
			if k < 0 || k >= pl.TotalElements {
				return fmt.Errorf("partition %d: element %d out of range [0,%d)", pID, k, pl.TotalElements)
			}
			if seen[k] {
				return fmt.Errorf("element %d assigned to more than one partition", k)
			}
			seen[k] = true
			if pl.EToP[k] != pID {
				return fmt.Errorf("element %d: EToP %d but member of partition %d", k, pl.EToP[k], pID)
			}
		}
	}
	for k, ok := range seen {
		if !ok {
			return fmt.Errorf("element %d is not in any partition", k)
		}
	}
	return nil
}

// PartitionStatistics computes load balance metrics
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		MinElements:   math.MaxInt32,
		AvgElements:   float64(pl.TotalElements) / float64(pl.NumPartitions),
	}
	totalCost := 0
	for _, p := range pl.Partitions {
		stats.MinElements = min(stats.MinElements, p.NumElements)
		stats.MaxElements = max(stats.MaxElements, p.NumElements)
		stats.MaxCost = max(stats.MaxCost, p.Cost)
		totalCost += p.Cost
	}
	if stats.AvgElements > 0 {
		stats.Imbalance = float64(stats.MaxElements) / stats.AvgElements
	}
	if totalCost > 0 {
		stats.CostImbalance = float64(stats.MaxCost) * float64(pl.NumPartitions) / float64(totalCost)
	}
	return stats
}

type PartitionStats struct {
	NumPartitions int
	MinElements   int
	MaxElements   int
	AvgElements   float64
	Imbalance     float64 // MaxElements / AvgElements
	MaxCost       int
	CostImbalance float64 // MaxCost / average cost
}
