package assembly

import (
	"fmt"
	"math"
	"slices"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/bdfsolve/dof"
	"github.com/notargets/bdfsolve/model"
)

// Subcase selects the sets of one load case. Zero means none.
type Subcase struct {
	ID          int
	Load        int
	SPC         int
	MPC         int
	Temperature int
}

// Reduced is the system of one subcase on its free DOFs. The g-set
// displacement is u = T uf + U0.
type Reduced struct {
	System  *System
	Subcase Subcase
	Part    *dof.Partitioning

	// Free holds the global index of each free DOF
	Free []int
	// T is n x nf; nil when no DOF is free
	T  *sparse.CSR
	U0 []float64
	// F is the applied g-set load
	F []float64

	// Kff is nil when no DOF is free; Mff is nil as well when the model
	// carries no mass
	Kff, Mff *mat.SymDense
	Ff       []float64

	// AutoSPC lists the DOFs constrained for lack of stiffness
	AutoSPC  []model.DOF
	Warnings []string

	tRows [][]term
}

// Reduce partitions the DOFs of a subcase and forms the reduced system
func (s *System) Reduce(m *model.Model, sc Subcase) (*Reduced, error) {
	lv, err := s.Loads(m, sc.Load, sc.Temperature)
	if err != nil {
		return nil, fmt.Errorf("subcase %d: %w", sc.ID, err)
	}
	part, eqs, err := s.partition(m, sc, lv)
	if err != nil {
		return nil, fmt.Errorf("subcase %d: %w", sc.ID, err)
	}

	r := s.build(part, eqs, lv)
	r.Subcase = sc
	r.Warnings = lv.Warnings

	floating, loaded := r.zeroRows()
	if len(floating) > 0 && s.opts.AutoSPC && len(loaded) == 0 {
		for _, i := range floating {
			if err := part.Constrain(i); err != nil {
				return nil, fmt.Errorf("subcase %d: %w", sc.ID, err)
			}
		}
		auto := make([]model.DOF, len(floating))
		for k, i := range floating {
			auto[k] = s.Map.DOF(i)
		}
		r = s.build(part, eqs, lv)
		r.Subcase = sc
		r.Warnings = lv.Warnings
		r.AutoSPC = auto
		floating, loaded = r.zeroRows()
	}
	if len(loaded) > 0 {
		floating = loaded
	}
	if len(floating) > 0 {
		dofs := make([]model.DOF, len(floating))
		for k, i := range floating {
			dofs[k] = s.Map.DOF(i)
		}
		return nil, fmt.Errorf("subcase %d: %w", sc.ID, &model.FloatingDOFError{DOFs: dofs})
	}
	if err := part.Verify(); err != nil {
		return nil, fmt.Errorf("subcase %d: %w", sc.ID, err)
	}
	return r, nil
}

// partition places every DOF: permanent and set SPCs, enforced
// displacements, then the dependent DOFs of MPCs and rigid elements
func (s *System) partition(m *model.Model, sc Subcase, lv *LoadVector) (*dof.Partitioning, map[int]*equation, error) {
	part := dof.NewPartitioning(s.Map)
	if err := part.ApplyPermanent(m); err != nil {
		return nil, nil, err
	}

	if sc.SPC > 0 {
		cards, err := m.ExpandSPCs(sc.SPC)
		if err != nil {
			return nil, nil, err
		}
		for _, c := range cards {
			set, ok := c.(*model.SPCSet)
			if !ok {
				return nil, nil, &model.UnrecognizedEntityTypeError{Type: c.Card().String(), Context: "spc set"}
			}
			for _, t := range set.Terms {
				for _, comp := range t.Components {
					i := s.Map.MustIndex(t.Node, comp)
					if t.Value != 0 {
						err = part.Enforce(i, t.Value)
					} else {
						err = part.Constrain(i)
					}
					if err != nil {
						return nil, nil, err
					}
				}
			}
		}
	}

	enforced := make([]int, 0, len(lv.Enforced))
	for i := range lv.Enforced {
		enforced = append(enforced, i)
	}
	slices.Sort(enforced)
	for _, i := range enforced {
		if err := part.Enforce(i, lv.Enforced[i]); err != nil {
			return nil, nil, err
		}
	}

	eq := newEquations(s)
	if sc.MPC > 0 {
		if err := eq.mpcs(m, sc.MPC); err != nil {
			return nil, nil, err
		}
	}
	if err := eq.rigids(m); err != nil {
		return nil, nil, err
	}
	resolved, err := eq.resolve()
	if err != nil {
		return nil, nil, err
	}
	byDep := make(map[int]*equation, len(resolved))
	for _, e := range resolved {
		if err := part.Depend(e.dep, e.owner); err != nil {
			return nil, nil, err
		}
		byDep[e.dep] = e
	}
	return part, byDep, nil
}

// build forms T, U0 and the reduced matrices for a partitioning
func (s *System) build(part *dof.Partitioning, eqs map[int]*equation, lv *LoadVector) *Reduced {
	n := s.Map.Len()
	freeIdx := part.FreeIndex()
	free := part.Set(dof.Free)
	nf := len(free)

	r := &Reduced{
		System: s,
		Part:   part,
		Free:   free,
		U0:     make([]float64, n),
		F:      lv.F,
		Ff:     make([]float64, nf),
		tRows:  make([][]term, n),
	}
	for i := 0; i < n; i++ {
		switch part.Of(i) {
		case dof.Free:
			r.tRows[i] = []term{{idx: freeIdx[i], coeff: 1}}
		case dof.ConstrainedValue:
			r.U0[i] = part.Value(i)
		case dof.Dependent:
			for _, t := range eqs[i].terms {
				switch part.Of(t.idx) {
				case dof.Free:
					r.tRows[i] = append(r.tRows[i], term{idx: freeIdx[t.idx], coeff: t.coeff})
				case dof.ConstrainedValue:
					r.U0[i] += t.coeff * part.Value(t.idx)
				}
			}
		}
	}

	resid := MulVec(s.K, r.U0)
	for i := range resid {
		resid[i] = lv.F[i] - resid[i]
	}
	for i, row := range r.tRows {
		for _, t := range row {
			r.Ff[t.idx] += t.coeff * resid[i]
		}
	}
	if nf == 0 {
		return r
	}

	td := sparse.NewDOK(n, nf)
	for i, row := range r.tRows {
		for _, t := range row {
			td.Set(i, t.idx, t.coeff)
		}
	}
	r.T = td.ToCSR()
	r.Kff = r.project(s.K)
	if s.HasMass {
		r.Mff = r.project(s.M)
	}
	return r
}

// project returns T' A T
func (r *Reduced) project(a *sparse.CSR) *mat.SymDense {
	nf := len(r.Free)
	acc := mat.NewDense(nf, nf, nil)
	a.DoNonZero(func(i, j int, v float64) {
		for _, ti := range r.tRows[i] {
			for _, tj := range r.tRows[j] {
				acc.Set(ti.idx, tj.idx, acc.At(ti.idx, tj.idx)+ti.coeff*v*tj.coeff)
			}
		}
	})
	out := mat.NewSymDense(nf, nil)
	for i := 0; i < nf; i++ {
		for j := i; j < nf; j++ {
			out.SetSym(i, j, 0.5*(acc.At(i, j)+acc.At(j, i)))
		}
	}
	return out
}

// zeroRows returns the global indices of free DOFs whose reduced stiffness
// row is negligible, and the subset of those carrying load
func (r *Reduced) zeroRows() (floating, loaded []int) {
	nf := len(r.Free)
	if nf == 0 {
		return nil, nil
	}
	rowMax := make([]float64, nf)
	globalMax := 0.0
	for i := 0; i < nf; i++ {
		for j := 0; j < nf; j++ {
			rowMax[i] = math.Max(rowMax[i], math.Abs(r.Kff.At(i, j)))
		}
		globalMax = math.Max(globalMax, rowMax[i])
	}
	tol := r.System.opts.AutoSPCTolerance * globalMax
	for i, v := range rowMax {
		if v > tol && v > 0 {
			continue
		}
		floating = append(floating, r.Free[i])
		if r.Ff[i] != 0 {
			loaded = append(loaded, r.Free[i])
		}
	}
	return floating, loaded
}

// Expand maps a free displacement vector to the g-set
func (r *Reduced) Expand(uf []float64) []float64 {
	u := r.Transform(uf)
	for i, v := range r.U0 {
		u[i] += v
	}
	return u
}

// Transform returns T x without the enforced part, as for mode shapes
func (r *Reduced) Transform(x []float64) []float64 {
	u := make([]float64, len(r.tRows))
	for i, row := range r.tRows {
		for _, t := range row {
			u[i] += t.coeff * x[t.idx]
		}
	}
	return u
}

// Restrict returns the free components of a g-set vector
func (r *Reduced) Restrict(u []float64) []float64 {
	out := make([]float64, len(r.Free))
	for k, i := range r.Free {
		out[k] = u[i]
	}
	return out
}
