package element

import (
	"errors"
	"fmt"

	"github.com/notargets/bdfsolve/model"
	"gonum.org/v1/gonum/spatial/r3"
)

var errZeroArea = errors.New("pressure surface has zero area")

// SurfacePressure returns the consistent nodal forces, in basic, of a
// pressure interpolated from the corner values p over the triangle or
// quadrilateral through pos. Positive pressure acts along the right-hand
// normal of the corner order unless dir is given.
func SurfacePressure(pos []r3.Vec, p []float64, dir *r3.Vec) ([]r3.Vec, error) {
	if len(p) != len(pos) {
		return nil, fmt.Errorf("%d pressures for %d corners", len(p), len(pos))
	}
	var rule []qpoint
	var shape func(xi [3]float64) (n []float64, dxi, deta []float64)
	switch len(pos) {
	case 3:
		rule = triangle3
		shape = func(xi [3]float64) ([]float64, []float64, []float64) {
			return []float64{1 - xi[0] - xi[1], xi[0], xi[1]}, []float64{-1, 1, 0}, []float64{-1, 0, 1}
		}
	case 4:
		rule = gaussRect(2, 2)
		shape = func(xi [3]float64) ([]float64, []float64, []float64) {
			n, dxi, deta := make([]float64, 4), make([]float64, 4), make([]float64, 4)
			for i, c := range quadCorners {
				n[i] = 0.25 * (1 + c[0]*xi[0]) * (1 + c[1]*xi[1])
				dxi[i] = 0.25 * c[0] * (1 + c[1]*xi[1])
				deta[i] = 0.25 * c[1] * (1 + c[0]*xi[0])
			}
			return n, dxi, deta
		}
	default:
		return nil, fmt.Errorf("pressure on %d corners: %w", len(pos), model.ErrUnsupported)
	}
	var unit r3.Vec
	if dir != nil {
		if r3.Norm(*dir) == 0 {
			return nil, errors.New("pressure direction is the zero vector")
		}
		unit = r3.Unit(*dir)
	}

	out := make([]r3.Vec, len(pos))
	total := 0.0
	for _, q := range rule {
		n, dxi, deta := shape(q.xi)
		var tx, ty r3.Vec
		pq := 0.0
		for i, x := range pos {
			tx = r3.Add(tx, r3.Scale(dxi[i], x))
			ty = r3.Add(ty, r3.Scale(deta[i], x))
			pq += n[i] * p[i]
		}
		da := r3.Cross(tx, ty)
		total += r3.Norm(da) * q.w
		if dir != nil {
			da = r3.Scale(r3.Norm(da), unit)
		}
		for i := range out {
			out[i] = r3.Add(out[i], r3.Scale(n[i]*pq*q.w, da))
		}
	}
	if total == 0 {
		return nil, errZeroArea
	}
	return out, nil
}

// ElementPressure applies corner pressures p to a shell or shear panel and
// returns its grids with their basic nodal forces
func ElementPressure(e model.Element, p [4]float64, dir *r3.Vec) ([]*model.Node, []r3.Vec, error) {
	b := e.Base()
	switch e.(type) {
	case *model.Shell, *model.Shear:
	default:
		return nil, nil, fmt.Errorf("pressure on %s %d: %w", b.Type, b.EID, model.ErrUnsupported)
	}
	nodes := gridNodes(b)
	pos := make([]r3.Vec, len(nodes))
	for i, n := range nodes {
		pos[i] = n.Position
	}
	f, err := SurfacePressure(pos, p[:len(nodes)], dir)
	if err != nil {
		if errors.Is(err, errZeroArea) {
			return nil, nil, geometryError(b, "%v", err)
		}
		return nil, nil, err
	}
	return nodes, f, nil
}

// ThermalAxial returns the basic nodal forces that free thermal expansion of a
// rod or bar exerts: E A alpha (Tmean - Tref) along its axis. Grids missing
// from temps sit at the reference temperature. ok is false for elements
// without a thermal load.
func ThermalAxial(e model.Element, temps map[int]float64) (nodes []*model.Node, f []r3.Vec, ok bool, err error) {
	var (
		area float64
		m    model.Material
	)
	switch e := e.(type) {
	case *model.Rod:
		area, _, _ = e.Section()
		m = e.Mat
	case *model.Bar:
		area = e.Prop.A
		m = e.Prop.Mat
	default:
		return nil, nil, false, nil
	}
	b := e.Base()
	m1, err := mat1(b, m)
	if err != nil {
		return nil, nil, true, err
	}
	nodes = gridNodes(b)
	x, _, err := axis(b, nodes[0].Position, nodes[1].Position)
	if err != nil {
		return nil, nil, true, err
	}
	mean := 0.0
	for _, n := range nodes {
		t, found := temps[n.NID]
		if !found {
			t = m1.TRef
		}
		mean += t / float64(len(nodes))
	}
	p := m1.E * area * m1.A * (mean - m1.TRef)
	return nodes, []r3.Vec{r3.Scale(-p, x), r3.Scale(p, x)}, true, nil
}
