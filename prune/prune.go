// Package prune removes nodes, coordinate systems, properties and materials
// that nothing in the model uses.
package prune

import (
	"fmt"
	"maps"
	"slices"

	"github.com/notargets/bdfsolve/model"
	"github.com/notargets/bdfsolve/xref"
)

// UsedSet holds the IDs reachable from the roots of a model, per class
type UsedSet struct {
	Nodes      map[int]bool
	Coords     map[int]bool
	Properties map[int]bool
	Materials  map[int]bool
}

func newUsedSet() *UsedSet {
	return &UsedSet{
		Nodes:      make(map[int]bool),
		Coords:     make(map[int]bool),
		Properties: make(map[int]bool),
		Materials:  make(map[int]bool),
	}
}

func (u *UsedSet) size() int {
	return len(u.Nodes) + len(u.Coords) + len(u.Properties) + len(u.Materials)
}

func (u *UsedSet) nodes(ids ...int) {
	for _, id := range ids {
		if id > 0 {
			u.Nodes[id] = true
		}
	}
}

// coord ignores the basic system and the CONM2 absolute marker
func (u *UsedSet) coord(cid int) {
	if cid > 0 {
		u.Coords[cid] = true
	}
}

// Report lists the removed IDs per class in ascending order
type Report struct {
	Removed map[model.Class][]int
}

// Total is the number of removed entities
func (r *Report) Total() int {
	n := 0
	for _, ids := range r.Removed {
		n += len(ids)
	}
	return n
}

// Prune validates m, computes the used closure and removes everything else.
// Running it again on the result removes nothing.
func Prune(m *model.Model) (*Report, error) {
	used, err := Used(m)
	if err != nil {
		return nil, err
	}
	report := &Report{Removed: make(map[model.Class][]int)}
	report.Removed[model.NodeClass] = removeUnused(m.Nodes, used.Nodes)
	report.Removed[model.CoordClass] = removeUnused(m.Coords, used.Coords)
	report.Removed[model.PropertyClass] = removeUnused(m.Properties, used.Properties)
	report.Removed[model.MaterialClass] = removeUnused(m.Materials, used.Materials)
	if report.Total() > 0 {
		m.CrossReferenced = false
	}
	return report, nil
}

func removeUnused[T model.Entity](r *model.Registry[T], used map[int]bool) []int {
	removed := []int{}
	for _, id := range r.IDs() {
		if !used[id] {
			r.Remove(id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Used returns the used sets of m without changing it. Roots are every
// element, rigid element, SPC, MPC and load card.
func Used(m *model.Model) (*UsedSet, error) {
	if err := xref.Validate(m); err != nil {
		return nil, fmt.Errorf("prune: %w", err)
	}
	u := newUsedSet()
	if err := m.Elements.Each(func(e model.Element) error { return elementRefs(u, e) }); err != nil {
		return nil, err
	}
	if err := m.Rigids.Each(func(r model.RigidElement) error { return rigidRefs(u, r) }); err != nil {
		return nil, err
	}
	for _, reg := range []*model.SetRegistry[model.Entity]{m.SPCs, m.MPCs, m.Loads} {
		if err := reg.Each(func(e model.Entity) error { return setRefs(u, e) }); err != nil {
			return nil, err
		}
	}
	if err := closure(m, u); err != nil {
		return nil, err
	}
	return u, nil
}

// closure adds what used nodes, coordinate systems and properties reference
// until nothing changes
func closure(m *model.Model, u *UsedSet) error {
	for before := -1; before != u.size(); {
		before = u.size()
		for _, nid := range slices.Sorted(maps.Keys(u.Nodes)) {
			if n, ok := m.Nodes.Lookup(nid); ok && !n.IsScalar() {
				u.coord(n.CP)
				u.coord(n.CD)
			}
		}
		for _, cid := range slices.Sorted(maps.Keys(u.Coords)) {
			c, ok := m.Coords.Lookup(cid)
			if !ok {
				continue
			}
			switch c.Type {
			case model.CORD1R, model.CORD1C, model.CORD1S:
				u.nodes(c.G[:]...)
			case model.CORD2R, model.CORD2C, model.CORD2S:
				u.coord(c.RID)
			default:
				return &model.UnrecognizedEntityTypeError{Type: c.Type.String(), Context: "prune coord"}
			}
		}
		for _, pid := range slices.Sorted(maps.Keys(u.Properties)) {
			p, ok := m.Properties.Lookup(pid)
			if !ok {
				continue
			}
			if err := propertyRefs(u, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func propertyRefs(u *UsedSet, p model.Property) error {
	switch p.Card() {
	case model.PELAS:
	case model.PROD, model.PTUBE, model.PBAR, model.PBEAM, model.PSHEAR,
		model.PSHELL, model.PCOMP, model.PRAC2D, model.PRAC3D:
		for _, mid := range p.MaterialIDs() {
			u.Materials[mid] = true
		}
	case model.PSOLID:
		ps := p.(*model.PSolid)
		u.Materials[ps.MID] = true
		u.coord(ps.CORDM)
	default:
		return &model.UnrecognizedEntityTypeError{Type: p.Card().String(), Context: "prune property"}
	}
	return nil
}

func elementRefs(u *UsedSet, e model.Element) error {
	b := e.Base()
	u.nodes(b.Nodes...)
	switch b.Type {
	case model.CELAS1, model.CELAS3:
		u.Properties[b.PID] = true
	case model.CELAS2, model.CELAS4:
	case model.CROD, model.CTUBE, model.CSHEAR, model.CTETRA, model.CPENTA, model.CHEXA,
		model.CRAC2D, model.CRAC3D:
		u.Properties[b.PID] = true
	case model.CONROD:
		u.Materials[e.(*model.Rod).MID] = true
	case model.CBAR, model.CBEAM:
		u.Properties[b.PID] = true
		u.nodes(e.(*model.Bar).G0)
	case model.CTRIA3, model.CQUAD4:
		u.Properties[b.PID] = true
		if s := e.(*model.Shell); s.HasMCID {
			u.coord(s.MCID)
		}
	case model.CONM2:
		u.coord(e.(*model.Mass).CID)
	default:
		return &model.UnrecognizedEntityTypeError{Type: b.Type.String(), Context: "prune element"}
	}
	return nil
}

func rigidRefs(u *UsedSet, r model.RigidElement) error {
	switch r.Card() {
	case model.RBAR, model.RBE2, model.RBE3, model.RROD:
		u.nodes(r.IndependentNodes()...)
		u.nodes(r.DependentNodes()...)
	default:
		return &model.UnrecognizedEntityTypeError{Type: r.Card().String(), Context: "prune rigid element"}
	}
	return nil
}

func setRefs(u *UsedSet, e model.Entity) error {
	switch e.Card() {
	case model.SPC, model.SPC1, model.SPCD:
		for _, t := range e.(*model.SPCSet).Terms {
			u.nodes(t.Node)
		}
	case model.SPCADD, model.MPCADD, model.LOAD:
	case model.MPC:
		for _, t := range e.(*model.MPCEquation).Terms {
			u.nodes(t.Node)
		}
	case model.FORCE, model.MOMENT:
		l := e.(*model.Force)
		u.nodes(l.Node)
		u.coord(l.CID)
	case model.FORCE1, model.MOMENT1:
		l := e.(*model.Force1)
		u.nodes(l.Node, l.G1, l.G2)
	case model.FORCE2, model.MOMENT2:
		l := e.(*model.Force2)
		u.nodes(l.Node)
		u.nodes(l.G[:]...)
	case model.PLOAD:
		u.nodes(e.(*model.PLoad).Nodes...)
	case model.PLOAD2:
		// elements are roots already
	case model.PLOAD4:
		l := e.(*model.PLoad4)
		u.nodes(l.G1, l.G34)
		u.coord(l.CID)
	case model.GRAV:
		u.coord(e.(*model.Grav).CID)
	case model.SLOAD:
		for _, t := range e.(*model.SLoad).Terms {
			u.nodes(t.Point)
		}
	case model.TEMP:
		for _, t := range e.(*model.Temp).Terms {
			u.nodes(t.Node)
		}
	default:
		return &model.UnrecognizedEntityTypeError{Type: e.Card().String(), Context: "prune set card"}
	}
	return nil
}
