package partitions

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/notargets/bdfsolve/element"
)

// PartitionBuilder constructs partitions from an element workload
type PartitionBuilder struct {
	Workload *Workload

	TargetPartitionSize int // Desired elements per partition
	Strategy            PartitionStrategy
}

// Workload describes the elements to evaluate. Cost estimates the work of
// each element; a nil Cost counts every element as one.
type Workload struct {
	NumElements int
	Shapes      []element.Shape
	Cost        []int
}

// PartitionStrategy defines how elements are grouped
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive elements
	RoundRobin                              // Distribute cyclically
	CostBalanced                            // Heaviest element to the lightest partition
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "round-robin"
	case CostBalanced:
		return "cost"
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

// ParseStrategy maps a configured strategy name to its PartitionStrategy
func ParseStrategy(name string) (PartitionStrategy, error) {
	switch strings.ToLower(name) {
	case "", "block":
		return BlockPartition, nil
	case "round-robin", "roundrobin":
		return RoundRobin, nil
	case "cost":
		return CostBalanced, nil
	}
	return 0, fmt.Errorf("unknown partition strategy %q", name)
}

// NewWorkload describes elements by shape with a cost of the squared DOF
// count of each
func NewWorkload(shapes []element.Shape, dofs []int) *Workload {
	w := &Workload{NumElements: len(shapes), Shapes: shapes}
	if dofs != nil {
		w.Cost = make([]int, len(dofs))
		for i, n := range dofs {
			w.Cost[i] = max(1, n*n)
		}
	}
	return w
}

func (w *Workload) cost(k int) int {
	if w.Cost == nil {
		return 1
	}
	return w.Cost[k]
}

// BuildPartitions creates a partition layout from the workload
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.Workload == nil {
		return nil, fmt.Errorf("partition builder has no workload")
	}
	w := pb.Workload
	if w.Shapes != nil && len(w.Shapes) != w.NumElements {
		return nil, fmt.Errorf("%d shapes for %d elements", len(w.Shapes), w.NumElements)
	}
	if w.Cost != nil && len(w.Cost) != w.NumElements {
		return nil, fmt.Errorf("%d costs for %d elements", len(w.Cost), w.NumElements)
	}
	if pb.TargetPartitionSize <= 0 {
		return nil, fmt.Errorf("target partition size %d must be positive", pb.TargetPartitionSize)
	}

	numPartitions := pb.calculateNumPartitions()
	eToP, err := pb.partitionElements(numPartitions)
	if err != nil {
		return nil, err
	}
	partitions := pb.createPartitions(eToP, numPartitions)

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      calculateKpartMax(partitions),
		TotalElements: w.NumElements,
		NumPartitions: numPartitions,
		EToP:          eToP,
	}
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	return layout, nil
}

// calculateNumPartitions determines the partition count, at least one
func (pb *PartitionBuilder) calculateNumPartitions() int {
	n := int(math.Ceil(float64(pb.Workload.NumElements) / float64(pb.TargetPartitionSize)))
	return max(n, 1)
}

// partitionElements assigns elements to partitions
func (pb *PartitionBuilder) partitionElements(numPartitions int) ([]int, error) {
	n := pb.Workload.NumElements
	eToP := make([]int, n)

	switch pb.Strategy {
	case BlockPartition:
		perPartition := max(1, int(math.Ceil(float64(n)/float64(numPartitions))))
		for i := 0; i < n; i++ {
			eToP[i] = min(i/perPartition, numPartitions-1)
		}

	case RoundRobin:
		for i := 0; i < n; i++ {
			eToP[i] = i % numPartitions
		}

	case CostBalanced:
		// Longest processing time first; ties go to the lower index
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		slices.SortStableFunc(order, func(a, b int) int {
			return cmp.Compare(pb.Workload.cost(b), pb.Workload.cost(a))
		})
		load := make([]int, numPartitions)
		for _, k := range order {
			target := 0
			for p := 1; p < numPartitions; p++ {
				if load[p] < load[target] {
					target = p
				}
			}
			eToP[k] = target
			load[target] += pb.Workload.cost(k)
		}

	default:
		return nil, fmt.Errorf("unknown partition strategy %v", pb.Strategy)
	}
	return eToP, nil
}

// createPartitions builds partition structures from element assignments.
// Members are kept in ascending element order.
func (pb *PartitionBuilder) createPartitions(eToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{ID: i, Elements: make([]int, 0)}
	}

	w := pb.Workload
	for elem, part := range eToP {
		p := &partitions[part]
		p.Elements = append(p.Elements, elem)
		if w.Shapes != nil {
			p.ElementShapes = append(p.ElementShapes, w.Shapes[elem])
		}
		p.Cost += w.cost(elem)
		p.NumElements++
	}

	for i := range partitions {
		partitions[i].TypeGroups = createElementGroups(&partitions[i])
	}
	return partitions
}

// createElementGroups organizes elements by shape within a partition
func createElementGroups(p *Partition) []ElementGroup {
	if len(p.ElementShapes) == 0 {
		return nil
	}

	byShape := make(map[element.Shape][]int)
	for i, s := range p.ElementShapes {
		byShape[s] = append(byShape[s], i)
	}
	shapes := make([]element.Shape, 0, len(byShape))
	for s := range byShape {
		shapes = append(shapes, s)
	}
	slices.Sort(shapes)

	groups := make([]ElementGroup, 0, len(shapes))
	currentIndex := 0
	for _, s := range shapes {
		indices := byShape[s]
		groups = append(groups, ElementGroup{
			Shape:      s,
			StartIndex: currentIndex,
			Count:      len(indices),
			LocalIDs:   indices,
		})
		currentIndex += len(indices)
	}
	return groups
}

// calculateKpartMax finds maximum elements across all partitions
func calculateKpartMax(partitions []Partition) int {
	kpartMax := 0
	for _, p := range partitions {
		kpartMax = max(kpartMax, p.NumElements)
	}
	return kpartMax
}
