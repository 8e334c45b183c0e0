package assembly

import (
	"github.com/notargets/bdfsolve/element"
	"github.com/notargets/bdfsolve/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var basicAxes = [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}

// frames holds the displacement axes, in basic, of every grid whose CD is
// not the basic system
type frames map[int][3]r3.Vec

func newFrames(m *model.Model) (frames, error) {
	fr := make(frames)
	err := m.Nodes.Each(func(n *model.Node) error {
		if !n.IsScalar() && n.CDRef != nil {
			fr[n.NID] = n.CDRef.Basis(n.Position)
		}
		return nil
	})
	return fr, err
}

func (fr frames) axes(nid int) [3]r3.Vec {
	if e, ok := fr[nid]; ok {
		return e
	}
	return basicAxes
}

// toCD returns the displacement frame components of basic vector v at a grid
func (fr frames) toCD(nid int, v r3.Vec) r3.Vec {
	e, ok := fr[nid]
	if !ok {
		return v
	}
	return r3.Vec{X: r3.Dot(e[0], v), Y: r3.Dot(e[1], v), Z: r3.Dot(e[2], v)}
}

// toDisplacementFrames rewrites basic element matrices as Te' K Te where Te
// maps displacement frame components to basic ones
func (fr frames) toDisplacementFrames(out *element.Matrices) {
	n := len(out.DOFs)
	rotate := false
	for i := 0; i < n; i += 6 {
		if _, ok := fr[out.DOFs[i].Node]; ok {
			rotate = true
			break
		}
	}
	if !rotate {
		return
	}
	te := mat.NewDense(n, n, nil)
	for i := 0; i < n; i += 6 {
		e := fr.axes(out.DOFs[i].Node)
		for blk := 0; blk < 2; blk++ {
			o := i + 3*blk
			for c, a := range e {
				te.Set(o, o+c, a.X)
				te.Set(o+1, o+c, a.Y)
				te.Set(o+2, o+c, a.Z)
			}
		}
	}
	out.K = congruence(out.K, te)
	out.M = congruence(out.M, te)
}

func congruence(a *mat.SymDense, t *mat.Dense) *mat.SymDense {
	if a == nil {
		return nil
	}
	var at, tat mat.Dense
	at.Mul(a, t)
	tat.Mul(t.T(), &at)
	n, _ := tat.Dims()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, 0.5*(tat.At(i, j)+tat.At(j, i)))
		}
	}
	return out
}
