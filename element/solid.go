package element

import (
	"fmt"
	"math"

	"github.com/notargets/bdfsolve/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// solidShape evaluates corner shape functions and reference derivatives
type solidShape struct {
	corners [][3]float64 // reference coordinates of the corner nodes
	rule    []qpoint
	eval    func(xi [3]float64) (n []float64, dn [][3]float64)
}

var (
	tetShape = solidShape{
		corners: [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		rule:    tetra1,
		eval: func(xi [3]float64) ([]float64, [][3]float64) {
			n := []float64{1 - xi[0] - xi[1] - xi[2], xi[0], xi[1], xi[2]}
			dn := [][3]float64{{-1, -1, -1}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
			return n, dn
		},
	}
	pentaShape = solidShape{
		corners: [][3]float64{{0, 0, -1}, {1, 0, -1}, {0, 1, -1}, {0, 0, 1}, {1, 0, 1}, {0, 1, 1}},
		rule:    wedge6(),
		eval: func(xi [3]float64) ([]float64, [][3]float64) {
			l := [3]float64{1 - xi[0] - xi[1], xi[0], xi[1]}
			dl := [3][2]float64{{-1, -1}, {1, 0}, {0, 1}}
			n := make([]float64, 6)
			dn := make([][3]float64, 6)
			for i := 0; i < 3; i++ {
				for k, s := range []float64{-1, 1} {
					h := 0.5 * (1 + s*xi[2])
					j := i + 3*k
					n[j] = l[i] * h
					dn[j] = [3]float64{dl[i][0] * h, dl[i][1] * h, l[i] * 0.5 * s}
				}
			}
			return n, dn
		},
	}
	hexShape = solidShape{
		corners: [][3]float64{
			{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
			{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
		},
		rule: gaussRect(2, 3),
	}
)

func init() {
	hexShape.eval = func(xi [3]float64) ([]float64, [][3]float64) {
		n := make([]float64, 8)
		dn := make([][3]float64, 8)
		for i, c := range hexShape.corners {
			a, b, d := 1+c[0]*xi[0], 1+c[1]*xi[1], 1+c[2]*xi[2]
			n[i] = a * b * d / 8
			dn[i] = [3]float64{c[0] * b * d / 8, a * c[1] * d / 8, a * b * c[2] / 8}
		}
		return n, dn
	}
}

// physical returns shape values, physical derivatives and det J at xi
func (s solidShape) physical(x [][3]float64, xi [3]float64) ([]float64, [][3]float64, float64) {
	n, dn := s.eval(xi)
	var j [3][3]float64
	for i := range x {
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				j[a][b] += dn[i][a] * x[i][b]
			}
		}
	}
	jm := mat.NewDense(3, 3, []float64{
		j[0][0], j[0][1], j[0][2],
		j[1][0], j[1][1], j[1][2],
		j[2][0], j[2][1], j[2][2],
	})
	det := mat.Det(jm)
	if det == 0 {
		return n, nil, 0
	}
	var inv mat.Dense
	if err := inv.Inverse(jm); err != nil {
		return n, nil, 0
	}
	dx := make([][3]float64, len(n))
	for i := range dn {
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				dx[i][a] += inv.At(a, b) * dn[i][b]
			}
		}
	}
	return n, dx, det
}

// isotropic3D is the 6x6 elasticity matrix over xx yy zz xy yz zx with
// engineering shear strains
func isotropic3D(m *model.Mat1) *mat.Dense {
	nu := m.Nu
	lam := m.E * nu / ((1 + nu) * (1 - 2*nu))
	mu := m.E / (2 * (1 + nu))
	d := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d.Set(i, j, lam)
		}
		d.Set(i, i, lam+2*mu)
		d.Set(i+3, i+3, mu)
	}
	return d
}

func solid(e *model.Solid) (*Matrices, error) {
	b := &e.ElementBase
	if e.HasMidside() {
		return nil, fmt.Errorf("%s %d: mid-side nodes: %w", b.Type, b.EID, model.ErrUnsupported)
	}
	var shape solidShape
	switch b.Type {
	case model.CTETRA:
		shape = tetShape
	case model.CPENTA:
		shape = pentaShape
	case model.CHEXA:
		shape = hexShape
	default:
		return nil, &model.UnrecognizedEntityTypeError{Type: b.Type.String(), Context: "solid element"}
	}
	m1, err := mat1(b, e.Prop.Mat)
	if err != nil {
		return nil, err
	}
	nodes := gridNodes(b)
	x := make([][3]float64, len(nodes))
	for i, n := range nodes {
		x[i] = [3]float64{n.Position.X, n.Position.Y, n.Position.Z}
	}

	h := 0.0
	for _, p := range nodes[1:] {
		h = max(h, r3.Norm(r3.Sub(p.Position, nodes[0].Position)))
	}
	tol := relTol * h * h * h

	// Either corner ordering is accepted; the Jacobian must not change sign
	sign := 0.0
	check := func(xi [3]float64, where string) error {
		_, _, det := shape.physical(x, xi)
		if math.Abs(det) <= tol || math.IsNaN(det) {
			return geometryError(b, "zero Jacobian at %s", where)
		}
		if sign == 0 {
			sign = math.Copysign(1, det)
		} else if math.Copysign(1, det) != sign {
			return geometryError(b, "Jacobian changes sign at %s", where)
		}
		return nil
	}
	for i, c := range shape.corners {
		if err := check(c, fmt.Sprintf("corner G%d", i+1)); err != nil {
			return nil, err
		}
	}
	for _, q := range shape.rule {
		if err := check(q.xi, "an integration point"); err != nil {
			return nil, err
		}
	}

	nn := len(nodes)
	d := isotropic3D(m1)
	k := mat.NewDense(6*nn, 6*nn, nil)
	lumped := make([]float64, nn)
	for _, q := range shape.rule {
		n, dx, det := shape.physical(x, q.xi)
		if dx == nil {
			return nil, geometryError(b, "singular Jacobian at an integration point")
		}
		bm := mat.NewDense(6, 6*nn, nil)
		for i := 0; i < nn; i++ {
			c := 6 * i
			bm.Set(0, c, dx[i][0])
			bm.Set(1, c+1, dx[i][1])
			bm.Set(2, c+2, dx[i][2])
			bm.Set(3, c, dx[i][1])
			bm.Set(3, c+1, dx[i][0])
			bm.Set(4, c+1, dx[i][2])
			bm.Set(4, c+2, dx[i][1])
			bm.Set(5, c, dx[i][2])
			bm.Set(5, c+2, dx[i][0])
		}
		w := math.Abs(det) * q.w
		addBtDB(k, bm, d, bm, w)
		for i := range lumped {
			lumped[i] += m1.Rho * n[i] * w
		}
	}
	return &Matrices{
		DOFs:  gridDOFs(nodes),
		Basic: true,
		K:     symmetrize(k),
		M:     lumpedMass(lumped),
	}, nil
}
