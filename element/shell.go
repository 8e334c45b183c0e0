package element

import (
	"math"

	"github.com/notargets/bdfsolve/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// plate is the flattened geometry of a tri or quad in its element frame. The
// frame has z along the normal and x along G1-G2 projected on the plane.
type plate struct {
	f      frame
	center r3.Vec
	xy     [][2]float64
	z      []float64
	area   float64
}

func planeGeometry(b *model.ElementBase, nodes []*model.Node) (*plate, error) {
	pos := make([]r3.Vec, len(nodes))
	for i, n := range nodes {
		pos[i] = n.Position
	}
	var n r3.Vec
	var scale float64
	switch len(pos) {
	case 3:
		e1, e2 := r3.Sub(pos[1], pos[0]), r3.Sub(pos[2], pos[0])
		n, scale = r3.Cross(e1, e2), r3.Norm(e1)*r3.Norm(e2)
	case 4:
		d1, d2 := r3.Sub(pos[2], pos[0]), r3.Sub(pos[3], pos[1])
		n, scale = r3.Cross(d1, d2), r3.Norm(d1)*r3.Norm(d2)
	default:
		return nil, geometryError(b, "%d corner grids", len(pos))
	}
	if r3.Norm(n) <= relTol*scale || scale == 0 {
		return nil, geometryError(b, "zero area, the normal is undefined")
	}
	n = r3.Unit(n)
	d := r3.Sub(pos[1], pos[0])
	inPlane := r3.Sub(d, r3.Scale(r3.Dot(d, n), n))
	if r3.Norm(inPlane) <= relTol*r3.Norm(d) || r3.Norm(d) == 0 {
		return nil, geometryError(b, "G1-G2 edge is normal to the element")
	}
	ex := r3.Unit(inPlane)
	p := &plate{f: frame{ex, r3.Cross(n, ex), n}}
	for _, x := range pos {
		p.center = r3.Add(p.center, x)
	}
	p.center = r3.Scale(1/float64(len(pos)), p.center)
	p.xy = make([][2]float64, len(pos))
	p.z = make([]float64, len(pos))
	for i, x := range pos {
		l := p.f.local(r3.Sub(x, p.center))
		p.xy[i] = [2]float64{l.X, l.Y}
		p.z[i] = l.Z
	}
	for i := range p.xy {
		j := (i + 1) % len(p.xy)
		p.area += 0.5 * (p.xy[i][0]*p.xy[j][1] - p.xy[j][0]*p.xy[i][1])
	}
	if p.area <= relTol*scale {
		return nil, geometryError(b, "non-positive area %g", p.area)
	}
	return p, nil
}

var quadCorners = [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

// quadDerivs evaluates the bilinear shape functions and their physical
// derivatives at (xi, eta)
func quadDerivs(xy [][2]float64, xi, eta float64) (n, nx, ny [4]float64, det float64) {
	var dxi, deta [4]float64
	for i, c := range quadCorners {
		n[i] = 0.25 * (1 + c[0]*xi) * (1 + c[1]*eta)
		dxi[i] = 0.25 * c[0] * (1 + c[1]*eta)
		deta[i] = 0.25 * c[1] * (1 + c[0]*xi)
	}
	var j00, j01, j10, j11 float64
	for i := range xy {
		j00 += dxi[i] * xy[i][0]
		j01 += dxi[i] * xy[i][1]
		j10 += deta[i] * xy[i][0]
		j11 += deta[i] * xy[i][1]
	}
	det = j00*j11 - j01*j10
	if det == 0 {
		return n, nx, ny, 0
	}
	for i := range n {
		nx[i] = (j11*dxi[i] - j01*deta[i]) / det
		ny[i] = (-j10*dxi[i] + j00*deta[i]) / det
	}
	return n, nx, ny, det
}

// checkQuad rejects warped quads and quads whose Jacobian is not positive at
// a corner or an integration point
func checkQuad(b *model.ElementBase, p *plate, warpTol float64) error {
	h := 0.0
	for _, z := range p.z {
		h = max(h, math.Abs(z))
	}
	if warp := h / math.Sqrt(p.area); warp > warpTol {
		return geometryError(b, "warp %.4g exceeds tolerance %g", warp, warpTol)
	}
	tol := relTol * p.area
	for i, c := range quadCorners {
		if _, _, _, det := quadDerivs(p.xy, c[0], c[1]); det <= tol {
			return geometryError(b, "non-positive Jacobian %g at corner G%d", det, i+1)
		}
	}
	for _, q := range gaussRect(2, 2) {
		if _, _, _, det := quadDerivs(p.xy, q.xi[0], q.xi[1]); det <= tol {
			return geometryError(b, "non-positive Jacobian %g at (%.3f, %.3f)", det, q.xi[0], q.xi[1])
		}
	}
	return nil
}

// plateB fills the membrane, bending and shear strain-displacement rows for
// node shape values n and derivatives nx, ny. Columns are u v w thx thy thz
// per node.
func plateB(n, nx, ny []float64) (bm, bb, bs *mat.Dense) {
	nn := len(n)
	bm = mat.NewDense(3, 6*nn, nil)
	bb = mat.NewDense(3, 6*nn, nil)
	bs = mat.NewDense(2, 6*nn, nil)
	for i := 0; i < nn; i++ {
		c := 6 * i
		bm.Set(0, c, nx[i])
		bm.Set(1, c+1, ny[i])
		bm.Set(2, c, ny[i])
		bm.Set(2, c+1, nx[i])

		bb.Set(0, c+4, nx[i])
		bb.Set(1, c+3, -ny[i])
		bb.Set(2, c+4, ny[i])
		bb.Set(2, c+3, -nx[i])

		bs.Set(0, c+2, nx[i])
		bs.Set(0, c+4, n[i])
		bs.Set(1, c+2, ny[i])
		bs.Set(1, c+3, -n[i])
	}
	return bm, bb, bs
}

// addBtDB accumulates s * B1' D B2 into k
func addBtDB(k *mat.Dense, b1 mat.Matrix, d mat.Matrix, b2 mat.Matrix, s float64) {
	var db, btdb mat.Dense
	db.Mul(d, b2)
	btdb.Mul(b1.T(), &db)
	btdb.Scale(s, &btdb)
	k.Add(k, &btdb)
}

// addDrilling couples the normal rotations with K6ROT*1e-6*G*t*area, free
// for a rigid rotation
func addDrilling(k *mat.Dense, nn int, sec *section, area, k6rot float64) {
	kd := k6rot * 1e-6 * sec.shearG * area
	if kd == 0 {
		return
	}
	for i := 0; i < nn; i++ {
		for j := 0; j < nn; j++ {
			v := -kd / float64(nn)
			if i == j {
				v += kd
			}
			k.Set(6*i+5, 6*j+5, k.At(6*i+5, 6*j+5)+v)
		}
	}
}

// materialAngle is THETA, or the MCID x axis projected on the element
func materialAngle(e *model.Shell, p *plate) (float64, error) {
	if !e.HasMCID {
		return e.Theta, nil
	}
	ax := e.MCIDRef.Basis(p.center)[0]
	l := p.f.local(ax)
	if math.Hypot(l.X, l.Y) <= relTol {
		return 0, geometryError(&e.ElementBase, "MCID %d x axis is normal to the element", e.MCID)
	}
	return math.Atan2(l.Y, l.X) / degToRad, nil
}

func shell(e *model.Shell, opts Options) (*Matrices, error) {
	b := &e.ElementBase
	nodes := gridNodes(b)
	p, err := planeGeometry(b, nodes)
	if err != nil {
		return nil, err
	}
	if e.Type == model.CQUAD4 {
		if err := checkQuad(b, p, opts.WarpTolerance); err != nil {
			return nil, err
		}
	}
	theta, err := materialAngle(e, p)
	if err != nil {
		return nil, err
	}
	sec, err := shellSection(e.Prop, theta, e.ZOffset)
	if err != nil {
		return nil, err
	}

	nn := len(nodes)
	k := mat.NewDense(6*nn, 6*nn, nil)
	var lumped []float64
	if e.Type == model.CQUAD4 {
		lumped = make([]float64, nn)
		for _, q := range gaussRect(2, 2) {
			n, nx, ny, det := quadDerivs(p.xy, q.xi[0], q.xi[1])
			bm, bb, _ := plateB(n[:], nx[:], ny[:])
			s := det * q.w
			addBtDB(k, bm, sec.A, bm, s)
			addBtDB(k, bm, sec.B, bb, s)
			addBtDB(k, bb, sec.B, bm, s)
			addBtDB(k, bb, sec.D, bb, s)
			for i := range lumped {
				lumped[i] += n[i] * s * sec.mass
			}
		}
		// one point transverse shear avoids locking
		n, nx, ny, det := quadDerivs(p.xy, 0, 0)
		_, _, bs := plateB(n[:], nx[:], ny[:])
		addBtDB(k, bs, sec.S, bs, 4*det)
	} else {
		n, nx, ny := triDerivs(p)
		bm, bb, bs := plateB(n, nx, ny)
		addBtDB(k, bm, sec.A, bm, p.area)
		addBtDB(k, bm, sec.B, bb, p.area)
		addBtDB(k, bb, sec.B, bm, p.area)
		addBtDB(k, bb, sec.D, bb, p.area)
		addBtDB(k, bs, sec.S, bs, p.area)
		m := sec.mass * p.area / 3
		lumped = []float64{m, m, m}
	}
	addDrilling(k, nn, sec, p.area, opts.K6Rot)

	return &Matrices{
		DOFs:  gridDOFs(nodes),
		Basic: true,
		K:     p.f.toBasic(k, nn),
		M:     lumpedMass(lumped),
	}, nil
}

// triDerivs returns the centroid shape values and the constant derivatives of
// a linear triangle
func triDerivs(p *plate) (n, nx, ny []float64) {
	xy := p.xy
	twoA := 2 * p.area
	n = []float64{1. / 3, 1. / 3, 1. / 3}
	nx = make([]float64, 3)
	ny = make([]float64, 3)
	for i := 0; i < 3; i++ {
		j, k := (i+1)%3, (i+2)%3
		nx[i] = (xy[j][1] - xy[k][1]) / twoA
		ny[i] = (xy[k][0] - xy[j][0]) / twoA
	}
	return n, nx, ny
}

// shear is a CSHEAR panel carrying in-plane shear only
func shear(e *model.Shear, opts Options) (*Matrices, error) {
	b := &e.ElementBase
	nodes := gridNodes(b)
	p, err := planeGeometry(b, nodes)
	if err != nil {
		return nil, err
	}
	if err := checkQuad(b, p, opts.WarpTolerance); err != nil {
		return nil, err
	}
	m1, err := mat1(b, e.Prop.Mat)
	if err != nil {
		return nil, err
	}
	t := e.Prop.T
	d := mat.NewDense(3, 3, nil)
	d.Set(2, 2, m1.G*t)

	k := mat.NewDense(24, 24, nil)
	lumped := make([]float64, 4)
	for _, q := range gaussRect(2, 2) {
		n, nx, ny, det := quadDerivs(p.xy, q.xi[0], q.xi[1])
		bm, _, _ := plateB(n[:], nx[:], ny[:])
		addBtDB(k, bm, d, bm, det*q.w)
		for i := range lumped {
			lumped[i] += n[i] * det * q.w * (m1.Rho*t + e.Prop.NSM)
		}
	}
	return &Matrices{
		DOFs:  gridDOFs(nodes),
		Basic: true,
		K:     p.f.toBasic(k, 4),
		M:     lumpedMass(lumped),
	}, nil
}
