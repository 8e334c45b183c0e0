package solver

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/bdfsolve/assembly"
	"github.com/notargets/bdfsolve/model"
)

// Mode is one mass-normalized real mode
type Mode struct {
	Number     int
	Eigenvalue float64
	// Omega is in rad/s, Frequency in Hz
	Omega     float64
	Frequency float64
	// Shape is the g-set mode shape, Shape' M Shape = 1
	Shape []float64
}

// Modal extracts the modes of the reduced system in ascending frequency.
// Massless free DOFs yield infinite eigenvalues and are dropped.
func Modal(r *assembly.Reduced, opts Options) ([]Mode, error) {
	nf := len(r.Free)
	if nf == 0 {
		return nil, nil
	}
	if r.Mff == nil || mat.Trace(r.Mff) == 0 {
		return nil, ErrNoMass
	}

	shift := opts.Shift
	ch, ok := factorShifted(r.Kff, r.Mff, shift)
	if !ok && shift == 0 {
		// semi-definite K, as for free-free structures
		shift = math.Max(mat.Trace(r.Kff), 1) / mat.Trace(r.Mff) * 1e-3
		ch, ok = factorShifted(r.Kff, r.Mff, shift)
	}
	if !ok {
		return nil, &model.SingularSystemError{DOFs: nearNull(r, opts), MaxRatio: math.Inf(1)}
	}

	// C = L^-1 M L^-T has eigenvalues 1/(lambda + shift)
	var l, linv mat.TriDense
	ch.LTo(&l)
	if err := linv.InverseTri(&l); err != nil {
		return nil, fmt.Errorf("modal: %w", err)
	}
	var lm, c mat.Dense
	lm.Mul(&linv, r.Mff)
	c.Mul(&lm, linv.T())
	cs := mat.NewSymDense(nf, nil)
	for i := 0; i < nf; i++ {
		for j := i; j < nf; j++ {
			cs.SetSym(i, j, 0.5*(c.At(i, j)+c.At(j, i)))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(cs, true) {
		return nil, fmt.Errorf("modal: eigen decomposition did not converge")
	}
	mu := eig.Values(nil)
	var y mat.Dense
	eig.VectorsTo(&y)

	top := 0.0
	for _, v := range mu {
		top = math.Max(top, v)
	}
	var phi mat.Dense
	phi.Mul(linv.T(), &y)

	var modes []Mode
	for k, v := range mu {
		if v <= 1e-12*top {
			continue
		}
		lambda := 1/v - shift
		shape := mat.Col(nil, k, &phi)
		normalize(shape, r.Mff)
		omega := math.Sqrt(math.Max(lambda, 0))
		modes = append(modes, Mode{
			Eigenvalue: lambda,
			Omega:      omega,
			Frequency:  omega / (2 * math.Pi),
			Shape:      shape,
		})
	}
	slices.SortStableFunc(modes, func(a, b Mode) int { return cmp.Compare(a.Eigenvalue, b.Eigenvalue) })

	kept := modes[:0]
	for _, md := range modes {
		if md.Frequency < opts.FreqMin || (opts.FreqMax > 0 && md.Frequency > opts.FreqMax) {
			continue
		}
		kept = append(kept, md)
		if opts.Modes > 0 && len(kept) == opts.Modes {
			break
		}
	}
	for i := range kept {
		kept[i].Number = i + 1
		kept[i].Shape = r.Transform(kept[i].Shape)
	}
	return kept, nil
}

// factorShifted factorizes K + shift*M
func factorShifted(k, m *mat.SymDense, shift float64) (*mat.Cholesky, bool) {
	a := k
	if shift != 0 {
		a = mat.NewSymDense(k.SymmetricDim(), nil)
		a.AddSym(k, scaled(m, shift))
	}
	var ch mat.Cholesky
	ok := ch.Factorize(a)
	return &ch, ok && ch.Cond() < maxCond
}

func scaled(m *mat.SymDense, s float64) *mat.SymDense {
	out := mat.NewSymDense(m.SymmetricDim(), nil)
	out.ScaleSym(s, m)
	return out
}

// normalize scales x so that x' M x = 1 with the largest component positive
func normalize(x []float64, m *mat.SymDense) {
	v := mat.NewVecDense(len(x), x)
	g := mat.Inner(v, m, v)
	if g <= 0 {
		return
	}
	s := 1 / math.Sqrt(g)
	big := 0.0
	for _, xi := range x {
		if math.Abs(xi) > math.Abs(big) {
			big = xi
		}
	}
	if big < 0 {
		s = -s
	}
	for i := range x {
		x[i] *= s
	}
}
