// Package solver solves reduced systems: linear statics by Cholesky with an
// LU fallback, and real modes of the generalized problem K phi = lambda M phi.
package solver

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/bdfsolve/assembly"
	"github.com/notargets/bdfsolve/dof"
	"github.com/notargets/bdfsolve/model"
)

// eps is the float64 machine epsilon
const eps = 0x1p-52

// maxCond is the largest condition estimate accepted for a factorization
const maxCond = 1 / eps

// ErrNoMass is returned by Modal when the free set carries no mass
var ErrNoMass = errors.New("solver: no mass on the free dofs")

// Options control the solvers
type Options struct {
	// DiagnosisLimit is the largest free set searched for near-null DOFs when
	// the stiffness is singular
	DiagnosisLimit int

	// Modes limits the number of modes kept; zero keeps all
	Modes int
	// FreqMin and FreqMax bound the kept frequencies in Hz; a zero FreqMax is
	// unbounded
	FreqMin, FreqMax float64
	// Shift is added as K + Shift*M before factorizing; zero picks a shift
	// only when K is not positive definite
	Shift float64
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{DiagnosisLimit: 500}
}

// StaticResult is the g-set solution of one subcase
type StaticResult struct {
	// U is the g-set displacement; Uf its free part
	U  []float64
	Uf []float64
	// Applied is the g-set load
	Applied []float64
	// SPCForces holds K u - F on constrained DOFs and zero elsewhere
	SPCForces []float64
	// MPCForces holds K u - F on free and dependent DOFs and zero elsewhere
	MPCForces []float64
}

// Static solves Kff uf = Ff and recovers the g-set displacement and the
// constraint forces
func Static(r *assembly.Reduced, opts Options) (*StaticResult, error) {
	uf, err := solveFree(r, opts)
	if err != nil {
		return nil, err
	}
	u := r.Expand(uf)

	resid := assembly.MulVec(r.System.K, u)
	for i := range resid {
		resid[i] -= r.F[i]
	}
	n := len(u)
	res := &StaticResult{
		U:         u,
		Uf:        uf,
		Applied:   slices.Clone(r.F),
		SPCForces: make([]float64, n),
		MPCForces: make([]float64, n),
	}
	for i, v := range resid {
		switch r.Part.Of(i) {
		case dof.ConstrainedZero, dof.ConstrainedValue:
			res.SPCForces[i] = v
		default:
			res.MPCForces[i] = v
		}
	}
	return res, nil
}

func solveFree(r *assembly.Reduced, opts Options) ([]float64, error) {
	nf := len(r.Free)
	if nf == 0 {
		return []float64{}, nil
	}
	b := mat.NewVecDense(nf, slices.Clone(r.Ff))
	x := mat.NewVecDense(nf, nil)

	var ch mat.Cholesky
	if ch.Factorize(r.Kff) && ch.Cond() < maxCond {
		if err := ch.SolveVecTo(x, b); err == nil {
			return x.RawVector().Data, nil
		}
	}

	var lu mat.LU
	lu.Factorize(r.Kff)
	cond := lu.Cond()
	if cond < maxCond && !math.IsInf(cond, 0) {
		if err := lu.SolveVecTo(x, false, b); err == nil {
			return x.RawVector().Data, nil
		}
	}
	return nil, &model.SingularSystemError{DOFs: nearNull(r, opts), MaxRatio: cond}
}

// nearNull returns the free DOFs taking part in the near-null eigenvectors
// of Kff
func nearNull(r *assembly.Reduced, opts Options) []model.DOF {
	nf := len(r.Free)
	if nf > opts.DiagnosisLimit {
		return nil
	}
	var eig mat.EigenSym
	if !eig.Factorize(r.Kff, true) {
		return nil
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	top := 0.0
	for _, v := range values {
		top = math.Max(top, math.Abs(v))
	}
	implicated := make([]bool, nf)
	for k, v := range values {
		if math.Abs(v) > 1e-10*top && top > 0 {
			continue
		}
		col := mat.Col(nil, k, &vecs)
		big := 0.0
		for _, c := range col {
			big = math.Max(big, math.Abs(c))
		}
		for i, c := range col {
			if math.Abs(c) >= 0.1*big {
				implicated[i] = true
			}
		}
	}
	var dofs []model.DOF
	for i, ok := range implicated {
		if ok {
			dofs = append(dofs, r.System.Map.DOF(r.Free[i]))
		}
	}
	return dofs
}
