package model

import "fmt"

// Material is a MAT1, MAT2 or MAT8
type Material interface {
	Entity
	Density() float64
	// ReferenceTemperature and Expansion drive thermal loads. Expansion is
	// the axial (first direction) coefficient.
	ReferenceTemperature() float64
	Expansion() float64
}

// Mat1 is an isotropic material
type Mat1 struct {
	MID  int
	E    float64
	G    float64
	Nu   float64
	Rho  float64
	A    float64
	TRef float64
	GE   float64
}

func (m *Mat1) ID() int                       { return m.MID }
func (m *Mat1) Card() CardType                { return MAT1 }
func (m *Mat1) Density() float64              { return m.Rho }
func (m *Mat1) ReferenceTemperature() float64 { return m.TRef }
func (m *Mat1) Expansion() float64            { return m.A }

// Mat2 is an anisotropic plane stress material given by its Gij matrix
type Mat2 struct {
	MID                          int
	G11, G12, G13, G22, G23, G33 float64
	Rho                          float64
	A1, A2, A3                   float64
	TRef                         float64
}

func (m *Mat2) ID() int                       { return m.MID }
func (m *Mat2) Card() CardType                { return MAT2 }
func (m *Mat2) Density() float64              { return m.Rho }
func (m *Mat2) ReferenceTemperature() float64 { return m.TRef }
func (m *Mat2) Expansion() float64            { return m.A1 }

// Mat8 is an orthotropic shell material
type Mat8 struct {
	MID           int
	E1, E2, Nu12  float64
	G12, G1Z, G2Z float64
	Rho           float64
	A1, A2        float64
	TRef          float64
}

func (m *Mat8) ID() int                       { return m.MID }
func (m *Mat8) Card() CardType                { return MAT8 }
func (m *Mat8) Density() float64              { return m.Rho }
func (m *Mat8) ReferenceTemperature() float64 { return m.TRef }
func (m *Mat8) Expansion() float64            { return m.A1 }

func newMAT1(rec Record) (*Mat1, error) {
	f := newFieldReader(rec)
	m := &Mat1{
		MID:  f.positive(0, "MID"),
		Rho:  f.floatOr(4, "RHO", 0),
		A:    f.floatOr(5, "A", 0),
		TRef: f.floatOr(6, "TREF", 0),
		GE:   f.floatOr(7, "GE", 0),
	}
	hasE, hasG, hasNu := !f.blank(1), !f.blank(2), !f.blank(3)
	m.E = f.floatOr(1, "E", 0)
	m.G = f.floatOr(2, "G", 0)
	m.Nu = f.floatOr(3, "NU", 0)
	if f.err != nil {
		return nil, f.err
	}
	if !hasE && !hasG {
		return nil, &RecordError{Card: rec.Card, Field: 1, Name: "E", Reason: "E and G may not both be blank"}
	}
	// Missing constants follow G = E/(2(1+NU))
	switch {
	case hasE && hasG && !hasNu:
		m.Nu = m.E/(2*m.G) - 1
	case hasE && !hasG && hasNu:
		m.G = m.E / (2 * (1 + m.Nu))
	case !hasE && hasG && hasNu:
		m.E = 2 * (1 + m.Nu) * m.G
	}
	// E or G alone leaves the other two at zero
	if hasNu && (m.Nu <= -1 || m.Nu >= 0.5) {
		return nil, &RecordError{Card: rec.Card, Field: 3, Name: "NU",
			Reason: fmt.Sprintf("poisson ratio %g outside (-1, 0.5)", m.Nu)}
	}
	return m, nil
}

func newMAT2(rec Record) (*Mat2, error) {
	f := newFieldReader(rec)
	m := &Mat2{
		MID:  f.positive(0, "MID"),
		G11:  f.floatOr(1, "G11", 0),
		G12:  f.floatOr(2, "G12", 0),
		G13:  f.floatOr(3, "G13", 0),
		G22:  f.floatOr(4, "G22", 0),
		G23:  f.floatOr(5, "G23", 0),
		G33:  f.floatOr(6, "G33", 0),
		Rho:  f.floatOr(7, "RHO", 0),
		A1:   f.floatOr(8, "A1", 0),
		A2:   f.floatOr(9, "A2", 0),
		A3:   f.floatOr(10, "A3", 0),
		TRef: f.floatOr(11, "TREF", 0),
	}
	if f.err != nil {
		return nil, f.err
	}
	return m, nil
}

func newMAT8(rec Record) (*Mat8, error) {
	f := newFieldReader(rec)
	m := &Mat8{
		MID:  f.positive(0, "MID"),
		E1:   f.float(1, "E1"),
		E2:   f.float(2, "E2"),
		Nu12: f.float(3, "NU12"),
		G12:  f.floatOr(4, "G12", 0),
		G1Z:  f.floatOr(5, "G1Z", 0),
		G2Z:  f.floatOr(6, "G2Z", 0),
		Rho:  f.floatOr(7, "RHO", 0),
		A1:   f.floatOr(8, "A1", 0),
		A2:   f.floatOr(9, "A2", 0),
		TRef: f.floatOr(10, "TREF", 0),
	}
	if f.err != nil {
		return nil, f.err
	}
	if m.E1 <= 0 || m.E2 <= 0 {
		return nil, &RecordError{Card: rec.Card, Field: 1, Name: "E1", Reason: "moduli must be positive"}
	}
	return m, nil
}
