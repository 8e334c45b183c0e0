// Package dof numbers the degrees of freedom of a model and tracks which of
// them are free, constrained or dependent.
//
// Global indices follow node ID order: nodes are walked in ascending ID with
// GRIDs and SPOINTs interleaved, a GRID contributing components 1..6 and an
// SPOINT the single component 0. The numbering is stable for a given set of
// node IDs and is the index scheme of every result vector.
package dof

import (
	"fmt"

	"github.com/notargets/bdfsolve/model"
)

// Map is the global DOF numbering of a model
type Map struct {
	dofs      []model.DOF       // global index -> DOF
	index     map[model.DOF]int // DOF -> global index
	nodeFirst map[int]int       // node ID -> index of its first DOF
	nodeCount map[int]int       // node ID -> number of DOFs
}

// NewMap numbers every live node of m
func NewMap(m *model.Model) (*Map, error) {
	if m.Nodes.Len() == 0 {
		return nil, fmt.Errorf("dof: model has no nodes")
	}
	dm := &Map{
		index:     make(map[model.DOF]int),
		nodeFirst: make(map[int]int, m.Nodes.Len()),
		nodeCount: make(map[int]int, m.Nodes.Len()),
	}
	_ = m.Nodes.Each(func(n *model.Node) error {
		dm.nodeFirst[n.NID] = len(dm.dofs)
		for _, d := range n.DOFs() {
			dm.index[d] = len(dm.dofs)
			dm.dofs = append(dm.dofs, d)
		}
		dm.nodeCount[n.NID] = len(dm.dofs) - dm.nodeFirst[n.NID]
		return nil
	})
	return dm, nil
}

// Len is the number of global DOFs
func (dm *Map) Len() int { return len(dm.dofs) }

// DOF returns the DOF at global index i
func (dm *Map) DOF(i int) model.DOF { return dm.dofs[i] }

// DOFs returns every DOF in global order
func (dm *Map) DOFs() []model.DOF {
	return append([]model.DOF(nil), dm.dofs...)
}

// Index returns the global index of d
func (dm *Map) Index(d model.DOF) (int, bool) {
	i, ok := dm.index[d]
	return i, ok
}

// MustIndex is Index for DOFs already validated by cross-referencing
func (dm *Map) MustIndex(nid, component int) int {
	i, ok := dm.index[model.DOF{Node: nid, Component: component}]
	if !ok {
		panic(fmt.Sprintf("dof: %d-%d is not mapped", nid, component))
	}
	return i
}

// NodeIndices returns the global indices of a node's DOFs in component order
func (dm *Map) NodeIndices(nid int) []int {
	first, ok := dm.nodeFirst[nid]
	if !ok {
		return nil
	}
	idx := make([]int, dm.nodeCount[nid])
	for i := range idx {
		idx[i] = first + i
	}
	return idx
}

// Verify checks that the two directions of the numbering agree
func (dm *Map) Verify() error {
	if len(dm.index) != len(dm.dofs) {
		return fmt.Errorf("dof: %d DOFs but %d index entries", len(dm.dofs), len(dm.index))
	}
	for i, d := range dm.dofs {
		if j, ok := dm.index[d]; !ok || j != i {
			return fmt.Errorf("dof: %s at %d maps back to %d", d, i, j)
		}
		if i > 0 {
			prev := dm.dofs[i-1]
			if prev.Node > d.Node || (prev.Node == d.Node && prev.Component >= d.Component) {
				return fmt.Errorf("dof: %s follows %s out of order", d, prev)
			}
		}
	}
	return nil
}
