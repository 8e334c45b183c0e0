package assembly

import (
	"fmt"
	"slices"

	"github.com/notargets/bdfsolve/element"
	"github.com/notargets/bdfsolve/model"
	"gonum.org/v1/gonum/spatial/r3"
)

// LoadVector is the g-set load of one subcase
type LoadVector struct {
	F []float64
	// Enforced holds SPCD displacements by global index. SPCDs on the same
	// DOF add, like every other card in a load set.
	Enforced map[int]float64
	Warnings []string
}

func (lv *LoadVector) warnf(format string, args ...any) {
	lv.Warnings = append(lv.Warnings, fmt.Sprintf(format, args...))
}

// Loads builds the load vector of load set sid and the thermal loads of
// temperature set tempSID. Zero set IDs select nothing.
func (s *System) Loads(m *model.Model, sid, tempSID int) (*LoadVector, error) {
	lv := &LoadVector{F: make([]float64, s.Map.Len()), Enforced: make(map[int]float64)}
	if sid > 0 {
		cards, err := m.ExpandLoads(sid)
		if err != nil {
			return nil, fmt.Errorf("load set %d: %w", sid, err)
		}
		var grav []r3.Vec
		for _, c := range cards {
			if g, ok := c.Entity.(*model.Grav); ok {
				a := g.CIDRef.VectorToBasic(g.N, r3.Vec{})
				grav = append(grav, r3.Scale(c.Scale*g.A, a))
				continue
			}
			if err := s.applyLoad(lv, c.Entity, c.Scale); err != nil {
				return nil, fmt.Errorf("load set %d: %w", sid, err)
			}
		}
		for _, a := range grav {
			s.applyGravity(lv, m, a)
		}
	}
	if tempSID > 0 {
		if err := s.applyThermal(lv, m, tempSID); err != nil {
			return nil, fmt.Errorf("temperature set %d: %w", tempSID, err)
		}
	}
	return lv, nil
}

// addNodal adds a basic vector to the translations (offset 0) or rotations
// (offset 3) of a grid
func (s *System) addNodal(lv *LoadVector, n *model.Node, offset int, v r3.Vec) {
	c := s.frames.toCD(n.NID, v)
	first := s.Map.MustIndex(n.NID, offset+1)
	lv.F[first] += c.X
	lv.F[first+1] += c.Y
	lv.F[first+2] += c.Z
}

func rotationalOffset(card model.CardType) int {
	switch card {
	case model.MOMENT, model.MOMENT1, model.MOMENT2:
		return 3
	}
	return 0
}

func (s *System) applyLoad(lv *LoadVector, e model.Entity, scale float64) error {
	switch l := e.(type) {
	case *model.Force:
		n := l.NodeRef
		v := l.CIDRef.VectorToBasic(l.N, n.Position)
		s.addNodal(lv, n, rotationalOffset(l.Type), r3.Scale(scale*l.Scale, v))
	case *model.Force1:
		d := r3.Sub(l.G2Ref.Position, l.G1Ref.Position)
		if r3.Norm(d) == 0 {
			return fmt.Errorf("%s: grids %d and %d coincide", l.Type, l.G1, l.G2)
		}
		s.addNodal(lv, l.NodeRef, rotationalOffset(l.Type), r3.Scale(scale*l.Scale, r3.Unit(d)))
	case *model.Force2:
		g := l.GRefs
		d := r3.Cross(r3.Sub(g[1].Position, g[0].Position), r3.Sub(g[3].Position, g[2].Position))
		if r3.Norm(d) == 0 {
			return fmt.Errorf("%s: direction vectors are parallel", l.Type)
		}
		s.addNodal(lv, l.NodeRef, rotationalOffset(l.Type), r3.Scale(scale*l.Scale, r3.Unit(d)))
	case *model.PLoad:
		pos := make([]r3.Vec, len(l.NodeRefs))
		p := make([]float64, len(l.NodeRefs))
		for i, n := range l.NodeRefs {
			pos[i], p[i] = n.Position, scale*l.P
		}
		f, err := element.SurfacePressure(pos, p, nil)
		if err != nil {
			return fmt.Errorf("PLOAD %v: %w", l.Nodes, err)
		}
		for i, n := range l.NodeRefs {
			s.addNodal(lv, n, 0, f[i])
		}
	case *model.PLoad2:
		p := scale * l.P
		for _, e := range l.ElementRefs {
			if err := s.applyPressure(lv, e, [4]float64{p, p, p, p}, nil); err != nil {
				return err
			}
		}
	case *model.PLoad4:
		var p [4]float64
		for i := range p {
			p[i] = scale * l.P[i]
		}
		var dir *r3.Vec
		if l.HasDirection() {
			first := l.ElementRef.Base().NodeRefs[0]
			v := l.CIDRef.VectorToBasic(l.N, first.Position)
			dir = &v
		}
		if err := s.applyPressure(lv, l.ElementRef, p, dir); err != nil {
			return err
		}
	case *model.SLoad:
		for _, t := range l.Terms {
			lv.F[s.Map.MustIndex(t.Point, 0)] += scale * t.F
		}
	case *model.SPCSet:
		// SPCD
		for _, t := range l.Terms {
			for _, c := range t.Components {
				lv.Enforced[s.Map.MustIndex(t.Node, c)] += scale * t.Value
			}
		}
	case *model.Temp:
		lv.warnf("TEMP set %d in a load set has no effect; select it as the temperature set", l.SID)
	default:
		return &model.UnrecognizedEntityTypeError{Type: e.Card().String(), Context: "load vector"}
	}
	return nil
}

func (s *System) applyPressure(lv *LoadVector, e model.Element, p [4]float64, dir *r3.Vec) error {
	nodes, f, err := element.ElementPressure(e, p, dir)
	if err != nil {
		return err
	}
	for i, n := range nodes {
		s.addNodal(lv, n, 0, f[i])
	}
	return nil
}

// applyGravity adds M a for a uniform basic acceleration a
func (s *System) applyGravity(lv *LoadVector, m *model.Model, a r3.Vec) {
	acc := make([]float64, s.Map.Len())
	_ = m.Nodes.Each(func(n *model.Node) error {
		if n.IsScalar() {
			return nil
		}
		c := s.frames.toCD(n.NID, a)
		first := s.Map.MustIndex(n.NID, 1)
		acc[first], acc[first+1], acc[first+2] = c.X, c.Y, c.Z
		return nil
	})
	for i, f := range MulVec(s.M, acc) {
		lv.F[i] += f
	}
}

// applyThermal adds the free expansion loads of rods and bars
func (s *System) applyThermal(lv *LoadVector, m *model.Model, tempSID int) error {
	cards, err := m.ExpandLoads(tempSID)
	if err != nil {
		return err
	}
	temps := make(map[int]float64)
	for _, c := range cards {
		t, ok := c.Entity.(*model.Temp)
		if !ok {
			lv.warnf("%s in temperature set %d is ignored", c.Entity.Card(), tempSID)
			continue
		}
		for _, term := range t.Terms {
			temps[term.Node] = term.T
		}
	}

	skipped := make(map[model.CardType]int)
	err = m.Elements.Each(func(e model.Element) error {
		nodes, f, ok, err := element.ThermalAxial(e, temps)
		if err != nil {
			return err
		}
		if !ok {
			switch e.(type) {
			case *model.Shell, *model.Shear, *model.Solid:
				skipped[e.Base().Type]++
			}
			return nil
		}
		for i, n := range nodes {
			s.addNodal(lv, n, 0, f[i])
		}
		return nil
	})
	if err != nil {
		return err
	}
	cardTypes := make([]model.CardType, 0, len(skipped))
	for c := range skipped {
		cardTypes = append(cardTypes, c)
	}
	slices.Sort(cardTypes)
	for _, c := range cardTypes {
		lv.warnf("thermal load ignored on %d %s element(s)", skipped[c], c)
	}
	return nil
}
