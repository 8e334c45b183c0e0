package element

import (
	"fmt"
	"math"

	"github.com/notargets/bdfsolve/model"
	"gonum.org/v1/gonum/mat"
)

// section is the shell constitutive law per unit area: membrane A, coupling
// B, bending D (3x3 over xx, yy, xy) and transverse shear S (2x2 over xz, yz)
type section struct {
	A, B, D *mat.Dense
	S       *mat.Dense
	t       float64
	mass    float64 // per unit area
	shearG  float64 // in-plane shear modulus times thickness, for drilling
}

func newSection() *section {
	return &section{
		A: mat.NewDense(3, 3, nil),
		B: mat.NewDense(3, 3, nil),
		D: mat.NewDense(3, 3, nil),
		S: mat.NewDense(2, 2, nil),
	}
}

// planeStress returns the in-plane stiffness and transverse shear moduli of a
// shell material in its own axes
func planeStress(m model.Material) (*mat.Dense, *mat.Dense, error) {
	switch m := m.(type) {
	case *model.Mat1:
		q := mat.NewDense(3, 3, nil)
		d := 1 - m.Nu*m.Nu
		q.Set(0, 0, m.E/d)
		q.Set(1, 1, m.E/d)
		q.Set(0, 1, m.Nu*m.E/d)
		q.Set(1, 0, m.Nu*m.E/d)
		q.Set(2, 2, m.G)
		return q, mat.NewDense(2, 2, []float64{m.G, 0, 0, m.G}), nil
	case *model.Mat2:
		q := mat.NewDense(3, 3, []float64{
			m.G11, m.G12, m.G13,
			m.G12, m.G22, m.G23,
			m.G13, m.G23, m.G33,
		})
		return q, mat.NewDense(2, 2, []float64{m.G11, m.G12, m.G12, m.G22}), nil
	case *model.Mat8:
		nu21 := m.Nu12 * m.E2 / m.E1
		d := 1 - m.Nu12*nu21
		q := mat.NewDense(3, 3, nil)
		q.Set(0, 0, m.E1/d)
		q.Set(1, 1, m.E2/d)
		q.Set(0, 1, m.Nu12*m.E2/d)
		q.Set(1, 0, m.Nu12*m.E2/d)
		q.Set(2, 2, m.G12)
		return q, mat.NewDense(2, 2, []float64{m.G1Z, 0, 0, m.G2Z}), nil
	}
	return nil, nil, fmt.Errorf("shell material %s %d: %w", m.Card(), m.ID(), model.ErrUnsupported)
}

// rotate expresses q and s, given in material axes at angle theta (degrees)
// from the element x axis, in element axes
func rotate(q, s *mat.Dense, theta float64) (*mat.Dense, *mat.Dense) {
	if theta == 0 {
		return q, s
	}
	c, sn := math.Cos(theta*degToRad), math.Sin(theta*degToRad)
	// material engineering strains from element strains
	te := mat.NewDense(3, 3, []float64{
		c * c, sn * sn, c * sn,
		sn * sn, c * c, -c * sn,
		-2 * c * sn, 2 * c * sn, c*c - sn*sn,
	})
	var qt, qbar mat.Dense
	qt.Mul(q, te)
	qbar.Mul(te.T(), &qt)

	r := mat.NewDense(2, 2, []float64{c, sn, -sn, c})
	var sr, sbar mat.Dense
	sr.Mul(s, r)
	sbar.Mul(r.T(), &sr)
	return &qbar, &sbar
}

const degToRad = math.Pi / 180

// shellSection builds the section of a PSHELL or PCOMP. theta is the
// material angle of the element and zoff the reference plane offset.
func shellSection(p model.Property, theta, zoff float64) (*section, error) {
	var sec *section
	var err error
	switch p := p.(type) {
	case *model.PShell:
		sec, err = pshellSection(p, theta)
	case *model.PComp:
		sec, err = pcompSection(p, theta)
	default:
		return nil, &model.UnrecognizedEntityTypeError{Type: p.Card().String(), Context: "shell section"}
	}
	if err != nil {
		return nil, err
	}
	if zoff != 0 {
		sec.offset(zoff)
	}
	return sec, nil
}

func pshellSection(p *model.PShell, theta float64) (*section, error) {
	sec := newSection()
	sec.t = p.T
	sec.mass = p.NSM
	if p.Mat1 != nil {
		q, _, err := planeStress(p.Mat1)
		if err != nil {
			return nil, err
		}
		q, _ = rotate(q, mat.NewDense(2, 2, nil), theta)
		sec.A.Scale(p.T, q)
		sec.shearG = q.At(2, 2) * p.T
		sec.mass += p.Mat1.Density() * p.T
	}
	if p.Mat2 != nil {
		q, _, err := planeStress(p.Mat2)
		if err != nil {
			return nil, err
		}
		q, _ = rotate(q, mat.NewDense(2, 2, nil), theta)
		sec.D.Scale(p.BendRatio*p.T*p.T*p.T/12, q)
	}
	if p.Mat3 != nil {
		_, s, err := planeStress(p.Mat3)
		if err != nil {
			return nil, err
		}
		_, s = rotate(mat.NewDense(3, 3, nil), s, theta)
		sec.S.Scale(p.TST*p.T, s)
	}
	if p.Mat4 != nil {
		q, _, err := planeStress(p.Mat4)
		if err != nil {
			return nil, err
		}
		q, _ = rotate(q, mat.NewDense(2, 2, nil), theta)
		sec.B.Scale(p.T*p.T, q)
	}
	return sec, nil
}

// pcompSection integrates ply stiffness through the thickness from Z0
func pcompSection(p *model.PComp, theta float64) (*section, error) {
	sec := newSection()
	sec.t = p.Thickness()
	sec.mass = p.NSM
	zb := p.Z0
	for i, ply := range p.Plies {
		if ply.Mat == nil {
			return nil, fmt.Errorf("PCOMP %d ply %d: material not cross-referenced", p.PID, i+1)
		}
		q, s, err := planeStress(ply.Mat)
		if err != nil {
			return nil, err
		}
		q, s = rotate(q, s, theta+ply.Theta)
		zt := zb + ply.T
		var tmp mat.Dense
		tmp.Scale(zt-zb, q)
		sec.A.Add(sec.A, &tmp)
		tmp.Scale((zt*zt-zb*zb)/2, q)
		sec.B.Add(sec.B, &tmp)
		tmp.Scale((zt*zt*zt-zb*zb*zb)/3, q)
		sec.D.Add(sec.D, &tmp)
		var st mat.Dense
		st.Scale(5./6*ply.T, s)
		sec.S.Add(sec.S, &st)
		sec.shearG += q.At(2, 2) * ply.T
		sec.mass += ply.Mat.Density() * ply.T
		zb = zt
	}
	return sec, nil
}

// offset moves the reference plane by z0: B += z0 A, D += 2 z0 B + z0^2 A
func (sec *section) offset(z0 float64) {
	var za, zb mat.Dense
	za.Scale(z0, sec.A)
	zb.Scale(2*z0, sec.B)
	var zza mat.Dense
	zza.Scale(z0*z0, sec.A)
	sec.D.Add(sec.D, &zb)
	sec.D.Add(sec.D, &zza)
	sec.B.Add(sec.B, &za)
}
