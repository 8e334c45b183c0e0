package dof

import (
	"fmt"
	"math"

	"github.com/notargets/bdfsolve/model"
)

// Partition is the set a DOF belongs to
type Partition uint8

const (
	Free Partition = iota
	ConstrainedZero
	ConstrainedValue
	Dependent
	numPartitions
)

func (p Partition) String() string {
	switch p {
	case Free:
		return "free"
	case ConstrainedZero:
		return "constrained-zero"
	case ConstrainedValue:
		return "constrained-value"
	case Dependent:
		return "dependent"
	}
	return fmt.Sprintf("Partition(%d)", uint8(p))
}

// Partitioning assigns every DOF of a Map to exactly one Partition. Every DOF
// starts free.
type Partitioning struct {
	Map    *Map
	part   []Partition
	values []float64 // enforced values, nonzero only for ConstrainedValue
	owner  []string  // constraint that made a DOF dependent
}

// NewPartitioning returns a partitioning with every DOF free
func NewPartitioning(dm *Map) *Partitioning {
	n := dm.Len()
	return &Partitioning{
		Map:    dm,
		part:   make([]Partition, n),
		values: make([]float64, n),
		owner:  make([]string, n),
	}
}

// ApplyPermanent constrains the PS components of every GRID
func (p *Partitioning) ApplyPermanent(m *model.Model) error {
	return m.Nodes.Each(func(n *model.Node) error {
		for _, c := range n.PS {
			if err := p.Constrain(p.Map.MustIndex(n.NID, c)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Of returns the partition of global index i
func (p *Partitioning) Of(i int) Partition { return p.part[i] }

// Value returns the enforced value of global index i
func (p *Partitioning) Value(i int) float64 { return p.values[i] }

// Owner names the constraint that made global index i dependent
func (p *Partitioning) Owner(i int) string { return p.owner[i] }

func (p *Partitioning) conflict(i int, format string, args ...any) error {
	return &model.ConstraintConflictError{DOF: p.Map.DOF(i), Reason: fmt.Sprintf(format, args...)}
}

// Constrain fixes i to zero. A DOF already enforced to a value keeps it.
func (p *Partitioning) Constrain(i int) error {
	switch p.part[i] {
	case Dependent:
		return p.conflict(i, "constrained DOF is dependent in %s", p.owner[i])
	case Free:
		p.part[i] = ConstrainedZero
	}
	return nil
}

// Enforce fixes i to v. A later value replaces an earlier one; zero is a
// plain constraint.
func (p *Partitioning) Enforce(i int, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return p.conflict(i, "enforced value %g is not finite", v)
	}
	if p.part[i] == Dependent {
		return p.conflict(i, "enforced DOF is dependent in %s", p.owner[i])
	}
	if v == 0 {
		p.part[i] = ConstrainedZero
	} else {
		p.part[i] = ConstrainedValue
	}
	p.values[i] = v
	return nil
}

// Depend marks i as eliminated by the constraint named by owner
func (p *Partitioning) Depend(i int, owner string) error {
	switch p.part[i] {
	case Dependent:
		return p.conflict(i, "dependent in both %s and %s", p.owner[i], owner)
	case ConstrainedZero, ConstrainedValue:
		return p.conflict(i, "dependent DOF of %s is also single point constrained", owner)
	}
	p.part[i] = Dependent
	p.owner[i] = owner
	return nil
}

// Release returns i to the free set
func (p *Partitioning) Release(i int) {
	p.part[i] = Free
	p.values[i] = 0
	p.owner[i] = ""
}

// Set returns the ascending global indices in partition q
func (p *Partitioning) Set(q Partition) []int {
	idx := []int{}
	for i, pi := range p.part {
		if pi == q {
			idx = append(idx, i)
		}
	}
	return idx
}

// Counts returns the size of each partition
func (p *Partitioning) Counts() map[Partition]int {
	counts := make(map[Partition]int, numPartitions)
	for q := Free; q < numPartitions; q++ {
		counts[q] = 0
	}
	for _, q := range p.part {
		counts[q]++
	}
	return counts
}

// FreeIndex maps global indices to positions in the free set; -1 for DOFs
// outside it
func (p *Partitioning) FreeIndex() []int {
	idx := make([]int, len(p.part))
	n := 0
	for i, q := range p.part {
		if q == Free {
			idx[i] = n
			n++
		} else {
			idx[i] = -1
		}
	}
	return idx
}

// Clone returns an independent copy sharing the Map
func (p *Partitioning) Clone() *Partitioning {
	return &Partitioning{
		Map:    p.Map,
		part:   append([]Partition(nil), p.part...),
		values: append([]float64(nil), p.values...),
		owner:  append([]string(nil), p.owner...),
	}
}

// Verify checks that the four sets are a strict partition of the Map
func (p *Partitioning) Verify() error {
	n := p.Map.Len()

	// Verify 1: every DOF has exactly one valid partition
	if len(p.part) != n || len(p.values) != n || len(p.owner) != n {
		return fmt.Errorf("dof: partitioning covers %d DOFs, map has %d", len(p.part), n)
	}
	for i, q := range p.part {
		if q >= numPartitions {
			return fmt.Errorf("dof: %s has invalid partition %d", p.Map.DOF(i), q)
		}
	}

	// Verify 2: values and owners only where the partition allows them
	for i, q := range p.part {
		if q != ConstrainedValue && p.values[i] != 0 {
			return fmt.Errorf("dof: %s is %s but carries value %g", p.Map.DOF(i), q, p.values[i])
		}
		if q == ConstrainedValue && p.values[i] == 0 {
			return fmt.Errorf("dof: %s is %s with a zero value", p.Map.DOF(i), q)
		}
		if (q == Dependent) != (p.owner[i] != "") {
			return fmt.Errorf("dof: %s is %s with owner %q", p.Map.DOF(i), q, p.owner[i])
		}
	}

	// Verify 3: conservation, the sets add up to the whole
	total := 0
	for q := Free; q < numPartitions; q++ {
		total += len(p.Set(q))
	}
	if total != n {
		return fmt.Errorf("dof: partitions hold %d DOFs, map has %d", total, n)
	}
	return nil
}
