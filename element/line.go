package element

import (
	"github.com/notargets/bdfsolve/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// relTol scales geometric zero tests by the element size
const relTol = 1e-10

func spring(e *model.Spring) (*Matrices, error) {
	k := e.Stiffness()
	dofs := []model.DOF{{Node: e.Nodes[0], Component: e.Components[0]}}
	if e.Nodes[1] == 0 {
		return &Matrices{DOFs: dofs, K: mat.NewSymDense(1, []float64{k})}, nil
	}
	dofs = append(dofs, model.DOF{Node: e.Nodes[1], Component: e.Components[1]})
	return &Matrices{DOFs: dofs, K: mat.NewSymDense(2, []float64{k, -k, -k, k})}, nil
}

// axis returns the unit vector from a to b and the length
func axis(b *model.ElementBase, pa, pb r3.Vec) (r3.Vec, float64, error) {
	d := r3.Sub(pb, pa)
	l := r3.Norm(d)
	scale := max(1, r3.Norm(pa), r3.Norm(pb))
	if l <= relTol*scale {
		return r3.Vec{}, 0, geometryError(b, "zero length between grids %d and %d", b.Nodes[0], b.Nodes[1])
	}
	return r3.Scale(1/l, d), l, nil
}

// rod has axial and torsional stiffness along its axis only
func rod(e *model.Rod) (*Matrices, error) {
	nodes := gridNodes(&e.ElementBase)
	x, l, err := axis(&e.ElementBase, nodes[0].Position, nodes[1].Position)
	if err != nil {
		return nil, err
	}
	m1, err := mat1(&e.ElementBase, e.Mat)
	if err != nil {
		return nil, err
	}
	area, j, nsm := e.Section()
	ka := m1.E * area / l
	kt := m1.G * j / l

	xx := mat.NewDense(3, 3, nil)
	xv := [3]float64{x.X, x.Y, x.Z}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			xx.Set(r, c, xv[r]*xv[c])
		}
	}
	k := mat.NewDense(12, 12, nil)
	for _, blk := range []struct {
		row, col int
		s        float64
	}{
		{0, 0, ka}, {0, 6, -ka}, {6, 0, -ka}, {6, 6, ka},
		{3, 3, kt}, {3, 9, -kt}, {9, 3, -kt}, {9, 9, kt},
	} {
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				k.Set(blk.row+r, blk.col+c, blk.s*xx.At(r, c))
			}
		}
	}
	half := (m1.Rho*area + nsm) * l / 2
	return &Matrices{
		DOFs:  gridDOFs(nodes),
		Basic: true,
		K:     symmetrize(k),
		M:     lumpedMass([]float64{half, half}),
	}, nil
}

// barFrame returns the element axes: x along the bar, y in the plane of x and
// the orientation vector
func barFrame(e *model.Bar, pa, pb r3.Vec) (frame, float64, error) {
	x, l, err := axis(&e.ElementBase, pa, pb)
	if err != nil {
		return frame{}, 0, err
	}
	var v r3.Vec
	if e.G0Ref != nil {
		v = r3.Sub(e.G0Ref.Position, pa)
	} else {
		ga := e.NodeRefs[0]
		v = ga.CDRef.VectorToBasic(e.X, ga.Position)
	}
	z := r3.Cross(x, v)
	if r3.Norm(z) <= 1e-8*max(r3.Norm(v), relTol) {
		return frame{}, 0, geometryError(&e.ElementBase, "orientation vector is parallel to the bar axis")
	}
	z = r3.Unit(z)
	return frame{x, r3.Cross(z, x), z}, l, nil
}

// bar is an Euler-Bernoulli frame element. I1 bends in the element xy plane,
// I2 in the xz plane; I12 and shear flexibility are not modelled.
func bar(e *model.Bar) (*Matrices, error) {
	nodes := gridNodes(&e.ElementBase)
	f, l, err := barFrame(e, nodes[0].Position, nodes[1].Position)
	if err != nil {
		return nil, err
	}
	p := e.Prop
	m1, err := mat1(&e.ElementBase, p.Mat)
	if err != nil {
		return nil, err
	}
	E, G := m1.E, m1.G
	l2, l3 := l*l, l*l*l

	k := mat.NewDense(12, 12, nil)
	set := func(idx []int, vals [][]float64, s float64) {
		for i, gi := range idx {
			for j, gj := range idx {
				k.Set(gi, gj, k.At(gi, gj)+s*vals[i][j])
			}
		}
	}
	// axial u and torsion thx
	set([]int{0, 6}, [][]float64{{1, -1}, {-1, 1}}, E*p.A/l)
	set([]int{3, 9}, [][]float64{{1, -1}, {-1, 1}}, G*p.J/l)
	// v, thz
	set([]int{1, 5, 7, 11}, [][]float64{
		{12, 6 * l, -12, 6 * l},
		{6 * l, 4 * l2, -6 * l, 2 * l2},
		{-12, -6 * l, 12, -6 * l},
		{6 * l, 2 * l2, -6 * l, 4 * l2},
	}, E*p.I1/l3)
	// w, thy
	set([]int{2, 4, 8, 10}, [][]float64{
		{12, -6 * l, -12, -6 * l},
		{-6 * l, 4 * l2, 6 * l, 2 * l2},
		{-12, 6 * l, 12, 6 * l},
		{-6 * l, 2 * l2, 6 * l, 4 * l2},
	}, E*p.I2/l3)

	half := (m1.Rho*p.A + p.NSM) * l / 2
	return &Matrices{
		DOFs:  gridDOFs(nodes),
		Basic: true,
		K:     f.toBasic(k, 2),
		M:     lumpedMass([]float64{half, half}),
	}, nil
}
