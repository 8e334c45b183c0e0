package element

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// GaussJacobi returns the N+1 point Gauss quadrature for the Jacobi weight
// (1-x)^alpha (1+x)^beta on [-1,1]. Points are the eigenvalues of the
// symmetric tridiagonal Jacobi matrix; weights come from the first
// eigenvector components.
func GaussJacobi(alpha, beta float64, N int) (X, W []float64) {
	if N == 0 {
		return []float64{-(alpha - beta) / (alpha + beta + 2.)}, []float64{2.}
	}

	h1 := make([]float64, N+1)
	for i := 0; i < N+1; i++ {
		h1[i] = 2*float64(i) + alpha + beta
	}

	// main diagonal: d0[i] = (β²-α²)/((2i+α+β)*(2i+α+β+2))
	d0 := make([]float64, N+1)
	fac := beta*beta - alpha*alpha
	for i := 0; i < N+1; i++ {
		val := h1[i]
		d0[i] = fac / (val * (val + 2.))
	}
	if alpha+beta < 10*1.e-16 {
		d0[0] = 0.
	}

	d1 := make([]float64, N)
	for i := 0; i < N; i++ {
		ip1 := float64(i + 1)
		val := h1[i]
		d1[i] = 2.0 / (val + 2.0) * math.Sqrt(
			ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/(val+1)/(val+3),
		)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(newSymTriDiagonal(d0, d1), true); !ok {
		panic("element: quadrature eigen decomposition failed")
	}
	X = eig.Values(nil)

	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	W = make([]float64, len(X))
	g0 := gamma0(alpha, beta)
	for i := range W {
		v := vecs.At(0, i)
		W[i] = v * v * g0
	}
	return X, W
}

// GaussLegendre is the n point rule with unit weight function
func GaussLegendre(n int) (X, W []float64) {
	return GaussJacobi(0, 0, n-1)
}

func gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1.
	return math.Gamma(alpha+1.) * math.Gamma(beta+1.) * math.Pow(2, ab1) / ab1 / math.Gamma(ab1)
}

func newSymTriDiagonal(d0, d1 []float64) *mat.SymDense {
	n := len(d0)
	tri := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		tri.SetSym(i, i, d0[i])
		if i < n-1 {
			tri.SetSym(i, i+1, d1[i])
		}
	}
	return tri
}

// qpoint is a quadrature point in reference coordinates
type qpoint struct {
	xi [3]float64
	w  float64
}

// gaussRect is the tensor product n^dim Gauss-Legendre rule on [-1,1]^dim
func gaussRect(n, dim int) []qpoint {
	x, w := GaussLegendre(n)
	var pts []qpoint
	switch dim {
	case 2:
		for j := range x {
			for i := range x {
				pts = append(pts, qpoint{xi: [3]float64{x[i], x[j]}, w: w[i] * w[j]})
			}
		}
	case 3:
		for k := range x {
			for j := range x {
				for i := range x {
					pts = append(pts, qpoint{xi: [3]float64{x[i], x[j], x[k]}, w: w[i] * w[j] * w[k]})
				}
			}
		}
	}
	return pts
}

// triangle3 is the three point rule on the unit triangle, exact for quadratics
var triangle3 = []qpoint{
	{xi: [3]float64{1. / 6, 1. / 6}, w: 1. / 6},
	{xi: [3]float64{2. / 3, 1. / 6}, w: 1. / 6},
	{xi: [3]float64{1. / 6, 2. / 3}, w: 1. / 6},
}

// wedge6 is triangle3 times the two point Gauss rule in the extrusion direction
func wedge6() []qpoint {
	z, wz := GaussLegendre(2)
	pts := make([]qpoint, 0, 6)
	for k := range z {
		for _, t := range triangle3 {
			pts = append(pts, qpoint{xi: [3]float64{t.xi[0], t.xi[1], z[k]}, w: t.w * wz[k]})
		}
	}
	return pts
}

// tetra1 is the centroid rule on the unit tetrahedron
var tetra1 = []qpoint{{xi: [3]float64{0.25, 0.25, 0.25}, w: 1. / 6}}
