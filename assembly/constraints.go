package assembly

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/notargets/bdfsolve/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// minPivot is the smallest dependent coefficient accepted when an equation
// is solved for its dependent DOF
const minPivot = 1e-8

type term struct {
	idx   int
	coeff float64
}

// equation is u[dep] = sum(coeff * u[idx])
type equation struct {
	dep   int
	terms []term
	owner string
}

// equations collects the constraint equations of one subcase keyed by
// dependent global index
type equations struct {
	s     *System
	byDep map[int]*equation
	order []int
}

func newEquations(s *System) *equations {
	return &equations{s: s, byDep: make(map[int]*equation)}
}

func (eq *equations) add(e *equation) error {
	if prev, ok := eq.byDep[e.dep]; ok {
		return &model.ConstraintConflictError{
			DOF:    eq.s.Map.DOF(e.dep),
			Reason: fmt.Sprintf("dependent in both %s and %s", prev.owner, e.owner),
		}
	}
	eq.byDep[e.dep] = e
	eq.order = append(eq.order, e.dep)
	return nil
}

// mpcs adds the equations of MPC set sid
func (eq *equations) mpcs(m *model.Model, sid int) error {
	cards, err := m.ExpandMPCs(sid)
	if err != nil {
		return err
	}
	for _, c := range cards {
		mpc, ok := c.(*model.MPCEquation)
		if !ok {
			return &model.UnrecognizedEntityTypeError{Type: c.Card().String(), Context: "mpc set"}
		}
		owner := fmt.Sprintf("MPC %d", mpc.SID)
		dep := eq.s.Map.MustIndex(mpc.Terms[0].Node, mpc.Terms[0].Component)
		a0 := mpc.Terms[0].Coeff
		var rest []term
		for _, t := range mpc.Terms[1:] {
			i := eq.s.Map.MustIndex(t.Node, t.Component)
			if i == dep {
				a0 += t.Coeff
				continue
			}
			rest = append(rest, term{idx: i, coeff: t.Coeff})
		}
		if math.Abs(a0) < minPivot {
			return &model.ConstraintConflictError{DOF: eq.s.Map.DOF(dep), Reason: owner + ": dependent coefficient vanishes"}
		}
		for k := range rest {
			rest[k].coeff = -rest[k].coeff / a0
		}
		if err := eq.add(&equation{dep: dep, terms: merge(rest), owner: owner}); err != nil {
			return err
		}
	}
	return nil
}

// rigids adds the equations of every rigid element
func (eq *equations) rigids(m *model.Model) error {
	return m.Rigids.Each(func(r model.RigidElement) error {
		owner := fmt.Sprintf("%s %d", r.Card(), r.ID())
		var (
			eqs []*equation
			err error
		)
		switch r := r.(type) {
		case *model.Rbe2:
			eqs, err = eq.rbe2(r)
		case *model.RBar:
			eqs, err = eq.rbar(r)
		case *model.RRod:
			eqs, err = eq.rrod(r)
		case *model.Rbe3:
			eqs, err = eq.rbe3(r)
		default:
			return &model.UnrecognizedEntityTypeError{Type: r.Card().String(), Context: "rigid element"}
		}
		if err != nil {
			return fmt.Errorf("%s: %w", owner, err)
		}
		for _, e := range eqs {
			e.owner = owner
			if err := eq.add(e); err != nil {
				return err
			}
		}
		return nil
	})
}

// rigidMotion returns the 6x6 map from a basic rigid body motion about ref
// (translation of ref, rotation) to the displacement frame DOFs of node at
func (eq *equations) rigidMotion(ref, at *model.Node) *mat.Dense {
	d := mat.NewDense(6, 6, nil)
	e := eq.s.frames.axes(at.NID)
	r := r3.Sub(at.Position, ref.Position)
	basis := [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
	for c := 0; c < 3; c++ {
		for k, b := range basis {
			d.Set(c, k, r3.Dot(e[c], b))
			// e . (b x r)
			d.Set(c, 3+k, r3.Dot(e[c], r3.Cross(b, r)))
			d.Set(3+c, 3+k, r3.Dot(e[c], b))
		}
	}
	return d
}

// displacementToBasic maps the six displacement frame DOFs of a grid to its
// basic translation and rotation
func (eq *equations) displacementToBasic(n *model.Node) *mat.Dense {
	t := mat.NewDense(6, 6, nil)
	e := eq.s.frames.axes(n.NID)
	for k, a := range e {
		for blk := 0; blk < 6; blk += 3 {
			t.Set(blk, blk+k, a.X)
			t.Set(blk+1, blk+k, a.Y)
			t.Set(blk+2, blk+k, a.Z)
		}
	}
	return t
}

// rowEquation builds u[dep] = row . u[node components 1..6]
func (eq *equations) rowEquation(dep int, node int, row []float64) *equation {
	e := &equation{dep: dep}
	for k, v := range row {
		if v != 0 {
			e.terms = append(e.terms, term{idx: eq.s.Map.MustIndex(node, k+1), coeff: v})
		}
	}
	return e
}

func (eq *equations) rbe2(r *model.Rbe2) ([]*equation, error) {
	gn := r.Refs()[r.GN]
	var out []*equation
	for _, id := range r.GM {
		gm := r.Refs()[id]
		var d mat.Dense
		d.Mul(eq.rigidMotion(gn, gm), eq.displacementToBasic(gn))
		for _, c := range r.CM {
			out = append(out, eq.rowEquation(eq.s.Map.MustIndex(id, c), r.GN, d.RawRowView(c-1)))
		}
	}
	return out, nil
}

// rbar solves the rigid motion from the six independent components and
// expresses every dependent component through it
func (eq *equations) rbar(r *model.RBar) ([]*equation, error) {
	na, nb := r.Refs()[r.GA], r.Refs()[r.GB]
	da := eq.rigidMotion(na, na)
	db := eq.rigidMotion(na, nb)

	type row struct {
		node, comp int
		d          []float64
	}
	rows := func(node int, d *mat.Dense, comps []int) []row {
		out := make([]row, len(comps))
		for i, c := range comps {
			out[i] = row{node: node, comp: c, d: d.RawRowView(c - 1)}
		}
		return out
	}
	indep := append(rows(r.GA, da, r.CNA), rows(r.GB, db, r.CNB)...)
	dep := append(rows(r.GA, da, r.CMA), rows(r.GB, db, r.CMB)...)
	if len(indep) != 6 {
		return nil, fmt.Errorf("%d independent components, six required: %w", len(indep), model.ErrUnsupported)
	}

	di := mat.NewDense(6, 6, nil)
	for i, rw := range indep {
		di.SetRow(i, rw.d)
	}
	var inv mat.Dense
	if err := inv.Inverse(di); err != nil {
		return nil, &model.ConstraintConflictError{
			DOF:    model.DOF{Node: r.GA, Component: indep[0].comp},
			Reason: fmt.Sprintf("RBAR %d: independent components do not fix a rigid motion", r.EID),
		}
	}
	out := make([]*equation, 0, len(dep))
	for _, rw := range dep {
		var coeffs mat.Dense
		coeffs.Mul(mat.NewDense(1, 6, rw.d), &inv)
		e := &equation{dep: eq.s.Map.MustIndex(rw.node, rw.comp)}
		for i, in := range indep {
			if v := coeffs.At(0, i); math.Abs(v) > 1e-14 {
				e.terms = append(e.terms, term{idx: eq.s.Map.MustIndex(in.node, in.comp), coeff: v})
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// rrod keeps the distance between GA and GB: x . (uB - uA) = 0
func (eq *equations) rrod(r *model.RRod) ([]*equation, error) {
	na, nb := r.Refs()[r.GA], r.Refs()[r.GB]
	axis := r3.Sub(nb.Position, na.Position)
	if r3.Norm(axis) == 0 {
		return nil, fmt.Errorf("grids %d and %d coincide: %w", r.GA, r.GB, model.ErrElementGeometry)
	}
	axis = r3.Unit(axis)

	var all []term
	for _, side := range []struct {
		nid  int
		sign float64
	}{{r.GA, -1}, {r.GB, 1}} {
		e := eq.s.frames.axes(side.nid)
		for k := 0; k < 3; k++ {
			if v := side.sign * r3.Dot(axis, e[k]); v != 0 {
				all = append(all, term{idx: eq.s.Map.MustIndex(side.nid, k+1), coeff: v})
			}
		}
	}

	depNode, depComp := r.GA, r.CMA
	if r.CMB > 0 {
		depNode, depComp = r.GB, r.CMB
	}
	dep := eq.s.Map.MustIndex(depNode, depComp)
	a := 0.0
	var rest []term
	for _, t := range all {
		if t.idx == dep {
			a = t.coeff
			continue
		}
		rest = append(rest, t)
	}
	if math.Abs(a) < minPivot {
		return nil, &model.ConstraintConflictError{
			DOF:    model.DOF{Node: depNode, Component: depComp},
			Reason: fmt.Sprintf("RROD %d: dependent component is normal to the rod axis", r.EID),
		}
	}
	for k := range rest {
		rest[k].coeff = -rest[k].coeff / a
	}
	return []*equation{{dep: dep, terms: rest}}, nil
}

// rbe3 makes the reference translations the weighted average of the group
// translations
func (eq *equations) rbe3(r *model.Rbe3) ([]*equation, error) {
	for _, c := range r.RefC {
		if c > 3 {
			return nil, fmt.Errorf("rotational reference component %d: %w", c, model.ErrUnsupported)
		}
	}
	type member struct {
		nid int
		w   float64
	}
	var (
		members []member
		total   float64
	)
	for gi, g := range r.Groups {
		for _, c := range []int{1, 2, 3} {
			if !slices.Contains(g.Components, c) {
				return nil, fmt.Errorf("group %d must weight components 123: %w", gi+1, model.ErrUnsupported)
			}
		}
		for _, nid := range g.Nodes {
			members = append(members, member{nid: nid, w: g.Weight})
			total += g.Weight
		}
	}
	if total <= 0 {
		return nil, fmt.Errorf("group weights sum to %g", total)
	}

	ref := eq.s.frames.axes(r.RefGrid)
	out := make([]*equation, 0, len(r.RefC))
	for _, c := range r.RefC {
		e := &equation{dep: eq.s.Map.MustIndex(r.RefGrid, c)}
		for _, mb := range members {
			ax := eq.s.frames.axes(mb.nid)
			for k := 0; k < 3; k++ {
				if v := mb.w / total * r3.Dot(ref[c-1], ax[k]); v != 0 {
					e.terms = append(e.terms, term{idx: eq.s.Map.MustIndex(mb.nid, k+1), coeff: v})
				}
			}
		}
		e.terms = merge(e.terms)
		out = append(out, e)
	}
	return out, nil
}

// resolve substitutes dependent DOFs on the right-hand sides until every
// equation is written in independent DOFs
func (eq *equations) resolve() ([]*equation, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[int]int, len(eq.byDep))
	var (
		visit func(dep int, path []int) error
	)
	visit = func(dep int, path []int) error {
		switch state[dep] {
		case done:
			return nil
		case visiting:
			i := slices.Index(path, dep)
			chain := make([]int, 0, len(path)-i+1)
			for _, p := range append(path[i:], dep) {
				chain = append(chain, eq.s.Map.DOF(p).Node)
			}
			return &model.CyclicReferenceError{Class: model.MPCClass, Chain: chain}
		}
		state[dep] = visiting
		e := eq.byDep[dep]
		var expanded []term
		for _, t := range e.terms {
			sub, ok := eq.byDep[t.idx]
			if !ok {
				expanded = append(expanded, t)
				continue
			}
			if err := visit(t.idx, append(path, dep)); err != nil {
				return err
			}
			for _, st := range sub.terms {
				expanded = append(expanded, term{idx: st.idx, coeff: t.coeff * st.coeff})
			}
		}
		e.terms = merge(expanded)
		state[dep] = done
		return nil
	}

	out := make([]*equation, 0, len(eq.order))
	for _, dep := range eq.order {
		if err := visit(dep, nil); err != nil {
			return nil, err
		}
		out = append(out, eq.byDep[dep])
	}
	return out, nil
}

// merge sums repeated indices and orders terms by index
func merge(terms []term) []term {
	sum := make(map[int]float64, len(terms))
	for _, t := range terms {
		sum[t.idx] += t.coeff
	}
	out := make([]term, 0, len(sum))
	for i, v := range sum {
		if v != 0 {
			out = append(out, term{idx: i, coeff: v})
		}
	}
	slices.SortFunc(out, func(a, b term) int { return cmp.Compare(a.idx, b.idx) })
	return out
}
