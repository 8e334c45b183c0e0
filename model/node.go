package model

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// DOF is one scalar unknown. Component is 1..6 on a GRID and 0 on an SPOINT.
type DOF struct {
	Node      int
	Component int
}

func (d DOF) String() string {
	return fmt.Sprintf("%d-%d", d.Node, d.Component)
}

// Node is a GRID or an SPOINT
type Node struct {
	NID  int
	Type CardType
	CP   int
	X    [3]float64 // in CP
	CD   int
	PS   []int // permanent single point constraints

	// Set by cross-referencing. Nil refs mean the basic system.
	CPRef    *Coord
	CDRef    *Coord
	Position r3.Vec // in basic
}

func (n *Node) ID() int        { return n.NID }
func (n *Node) Card() CardType { return n.Type }

// IsScalar reports whether the node is a scalar point
func (n *Node) IsScalar() bool { return n.Type == SPOINT }

// Components returns the DOF components the node carries
func (n *Node) Components() []int {
	if n.IsScalar() {
		return []int{0}
	}
	return []int{1, 2, 3, 4, 5, 6}
}

// DOFs returns the node's DOFs in component order
func (n *Node) DOFs() []DOF {
	comps := n.Components()
	dofs := make([]DOF, len(comps))
	for i, c := range comps {
		dofs[i] = DOF{Node: n.NID, Component: c}
	}
	return dofs
}

// HasComponent reports whether c is a valid component for the node
func (n *Node) HasComponent(c int) bool {
	if n.IsScalar() {
		return c == 0
	}
	return c >= 1 && c <= 6
}

func newGrid(rec Record) (*Node, error) {
	f := newFieldReader(rec)
	n := &Node{
		NID:  f.positive(0, "ID"),
		Type: GRID,
		CP:   f.nonNegative(1, "CP"),
		X:    [3]float64{f.floatOr(2, "X1", 0), f.floatOr(3, "X2", 0), f.floatOr(4, "X3", 0)},
		CD:   f.nonNegative(5, "CD"),
	}
	if !f.blank(6) {
		n.PS = f.components(6, "PS", false)
	}
	if f.err != nil {
		return nil, f.err
	}
	return n, nil
}

func newSPoints(rec Record) ([]Entity, error) {
	f := newFieldReader(rec)
	ids := f.idList(0, "ID")
	if f.err != nil {
		return nil, f.err
	}
	nodes := make([]Entity, len(ids))
	for i, id := range ids {
		nodes[i] = &Node{NID: id, Type: SPOINT}
	}
	return nodes, nil
}
