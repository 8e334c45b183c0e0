package element

import (
	"github.com/notargets/bdfsolve/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// conm2 is a concentrated mass with offset and inertia about its center of
// gravity. CID -1 gives X as the absolute center of gravity in basic.
func conm2(e *model.Mass) (*Matrices, error) {
	n := e.NodeRefs[0]
	var r r3.Vec
	var axes [3]r3.Vec
	if e.CID == -1 {
		r = r3.Sub(vec(e.X), n.Position)
		axes = [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
	} else {
		r = e.CIDRef.VectorToBasic(e.X, n.Position)
		axes = e.CIDRef.Basis(n.Position)
	}

	i11, i21, i22, i31, i32, i33 := e.I[0], e.I[1], e.I[2], e.I[3], e.I[4], e.I[5]
	ic := mat.NewDense(3, 3, []float64{
		i11, -i21, -i31,
		-i21, i22, -i32,
		-i31, -i32, i33,
	})
	// columns of rot are the CID axes in basic
	rot := mat.NewDense(3, 3, nil)
	for j, a := range axes {
		rot.Set(0, j, a.X)
		rot.Set(1, j, a.Y)
		rot.Set(2, j, a.Z)
	}
	var tmp, ib mat.Dense
	tmp.Mul(ic, rot.T())
	ib.Mul(rot, &tmp)

	s := mat.NewDense(3, 3, []float64{
		0, -r.Z, r.Y,
		r.Z, 0, -r.X,
		-r.Y, r.X, 0,
	})
	var ss mat.Dense
	ss.Mul(s, s)

	m := e.M
	out := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		out.Set(i, i, m)
		for j := 0; j < 3; j++ {
			out.Set(i, 3+j, -m*s.At(i, j))
			out.Set(3+i, j, m*s.At(i, j))
			out.Set(3+i, 3+j, ib.At(i, j)-m*ss.At(i, j))
		}
	}
	return &Matrices{
		DOFs:  gridDOFs([]*model.Node{n}),
		Basic: true,
		M:     symmetrize(out),
	}, nil
}
