package model

import (
	"fmt"
	"math"
)

// Property is any P-card
type Property interface {
	Entity
	// MaterialIDs lists the non-blank material references in card order
	MaterialIDs() []int
}

// PElas is a scalar spring property
type PElas struct {
	PID int
	K   float64
	GE  float64
	S   float64
}

func (p *PElas) ID() int            { return p.PID }
func (p *PElas) Card() CardType     { return PELAS }
func (p *PElas) MaterialIDs() []int { return nil }

// PRod is a rod section
type PRod struct {
	PID int
	MID int
	A   float64
	J   float64
	C   float64
	NSM float64

	Mat Material
}

func (p *PRod) ID() int            { return p.PID }
func (p *PRod) Card() CardType     { return PROD }
func (p *PRod) MaterialIDs() []int { return []int{p.MID} }

// PTube is a circular tube section; OD2 tapers the outer diameter to end B
type PTube struct {
	PID int
	MID int
	OD  float64
	T   float64
	NSM float64
	OD2 float64

	Mat Material
}

func (p *PTube) ID() int            { return p.PID }
func (p *PTube) Card() CardType     { return PTUBE }
func (p *PTube) MaterialIDs() []int { return []int{p.MID} }

// Section returns the area and polar moment from the mean outer diameter
func (p *PTube) Section() (area, j float64) {
	od := (p.OD + p.OD2) / 2
	id := od - 2*p.T
	if id < 0 {
		id = 0
	}
	area = math.Pi / 4 * (od*od - id*id)
	j = math.Pi / 32 * (math.Pow(od, 4) - math.Pow(id, 4))
	return area, j
}

// PBar is a PBAR or PBEAM section. PBEAM stations beyond end A are ignored.
type PBar struct {
	PID  int
	Type CardType
	MID  int
	A    float64
	I1   float64
	I2   float64
	I12  float64
	J    float64
	NSM  float64

	Mat Material
}

func (p *PBar) ID() int            { return p.PID }
func (p *PBar) Card() CardType     { return p.Type }
func (p *PBar) MaterialIDs() []int { return []int{p.MID} }

// PShear is a shear panel property
type PShear struct {
	PID int
	MID int
	T   float64
	NSM float64

	Mat Material
}

func (p *PShear) ID() int            { return p.PID }
func (p *PShear) Card() CardType     { return PSHEAR }
func (p *PShear) MaterialIDs() []int { return []int{p.MID} }

// PShell is a homogeneous shell property. Zero MIDs are blank.
type PShell struct {
	PID       int
	MID1      int
	T         float64
	MID2      int
	BendRatio float64 // 12I/T^3
	MID3      int
	TST       float64 // TS/T
	NSM       float64
	Z1, Z2    float64
	MID4      int

	Mat1, Mat2, Mat3, Mat4 Material
}

func (p *PShell) ID() int        { return p.PID }
func (p *PShell) Card() CardType { return PSHELL }
func (p *PShell) MaterialIDs() []int {
	var mids []int
	for _, mid := range []int{p.MID1, p.MID2, p.MID3, p.MID4} {
		if mid > 0 {
			mids = append(mids, mid)
		}
	}
	return mids
}

// Ply is one PCOMP layer
type Ply struct {
	MID   int
	T     float64
	Theta float64

	Mat Material
}

// PComp is a layered composite shell property
type PComp struct {
	PID   int
	Z0    float64
	NSM   float64
	Plies []Ply
}

func (p *PComp) ID() int        { return p.PID }
func (p *PComp) Card() CardType { return PCOMP }
func (p *PComp) MaterialIDs() []int {
	mids := make([]int, len(p.Plies))
	for i, ply := range p.Plies {
		mids[i] = ply.MID
	}
	return mids
}

// Thickness is the laminate thickness
func (p *PComp) Thickness() float64 {
	t := 0.0
	for _, ply := range p.Plies {
		t += ply.T
	}
	return t
}

// PSolid is a solid property; CORDM is the material coordinate system
type PSolid struct {
	PID   int
	MID   int
	CORDM int

	Mat     Material
	CordRef *Coord
}

func (p *PSolid) ID() int            { return p.PID }
func (p *PSolid) Card() CardType     { return PSOLID }
func (p *PSolid) MaterialIDs() []int { return []int{p.MID} }

// PRac2D is a 2D crack element property
type PRac2D struct {
	PID int
	MID int
	T   float64

	Mat Material
}

func (p *PRac2D) ID() int            { return p.PID }
func (p *PRac2D) Card() CardType     { return PRAC2D }
func (p *PRac2D) MaterialIDs() []int { return []int{p.MID} }

// PRac3D is a 3D crack element property
type PRac3D struct {
	PID int
	MID int

	Mat Material
}

func (p *PRac3D) ID() int            { return p.PID }
func (p *PRac3D) Card() CardType     { return PRAC3D }
func (p *PRac3D) MaterialIDs() []int { return []int{p.MID} }

func newProperty(rec Record, card CardType) (Property, error) {
	f := newFieldReader(rec)
	var p Property
	switch card {
	case PELAS:
		p = &PElas{PID: f.positive(0, "PID"), K: f.float(1, "K"), GE: f.floatOr(2, "GE", 0), S: f.floatOr(3, "S", 0)}
	case PROD:
		p = &PRod{
			PID: f.positive(0, "PID"), MID: f.positive(1, "MID"), A: f.float(2, "A"),
			J: f.floatOr(3, "J", 0), C: f.floatOr(4, "C", 0), NSM: f.floatOr(5, "NSM", 0),
		}
	case PTUBE:
		t := &PTube{
			PID: f.positive(0, "PID"), MID: f.positive(1, "MID"), OD: f.float(2, "OD"),
			T: f.floatOr(3, "T", 0), NSM: f.floatOr(4, "NSM", 0), OD2: f.floatOr(5, "OD2", 0),
		}
		if t.T == 0 {
			t.T = t.OD / 2
		}
		if t.OD2 == 0 {
			t.OD2 = t.OD
		}
		if f.err == nil && (t.T < 0 || 2*t.T > t.OD) {
			f.fail(3, "T", "wall thickness %g invalid for OD %g", t.T, t.OD)
		}
		p = t
	case PBAR, PBEAM:
		p = &PBar{
			PID: f.positive(0, "PID"), Type: card, MID: f.positive(1, "MID"),
			A: f.floatOr(2, "A", 0), I1: f.floatOr(3, "I1", 0), I2: f.floatOr(4, "I2", 0),
			I12: f.floatOr(5, "I12", 0), J: f.floatOr(6, "J", 0), NSM: f.floatOr(7, "NSM", 0),
		}
	case PSHEAR:
		p = &PShear{PID: f.positive(0, "PID"), MID: f.positive(1, "MID"), T: f.float(2, "T"), NSM: f.floatOr(3, "NSM", 0)}
	case PSHELL:
		p = newPSHELL(f)
	case PCOMP:
		p = newPCOMP(f)
	case PSOLID:
		p = &PSolid{PID: f.positive(0, "PID"), MID: f.positive(1, "MID"), CORDM: f.intOr(2, "CORDM", 0)}
	case PRAC2D:
		p = &PRac2D{PID: f.positive(0, "PID"), MID: f.positive(1, "MID"), T: f.float(2, "T")}
	case PRAC3D:
		p = &PRac3D{PID: f.positive(0, "PID"), MID: f.positive(1, "MID")}
	default:
		return nil, &UnrecognizedEntityTypeError{Type: card.String(), Context: "property"}
	}
	if f.err != nil {
		return nil, f.err
	}
	return p, nil
}

func newPSHELL(f *fieldReader) *PShell {
	p := &PShell{
		PID:       f.positive(0, "PID"),
		MID1:      f.nonNegative(1, "MID1"),
		T:         f.floatOr(2, "T", 0),
		MID2:      f.nonNegative(3, "MID2"),
		BendRatio: f.floatOr(4, "12I/T**3", 1),
		MID3:      f.nonNegative(5, "MID3"),
		TST:       f.floatOr(6, "TS/T", 0.833333),
		NSM:       f.floatOr(7, "NSM", 0),
		MID4:      f.nonNegative(10, "MID4"),
	}
	p.Z1 = f.floatOr(8, "Z1", -p.T/2)
	p.Z2 = f.floatOr(9, "Z2", p.T/2)
	if f.err == nil && p.MID1 == 0 && p.MID2 == 0 && p.MID3 == 0 {
		f.fail(1, "MID1", "at least one of MID1, MID2 and MID3 is required")
	}
	if f.err == nil && p.MID2 > 0 && p.MID3 == 0 {
		// Bending without transverse shear is a Kirchhoff plate. Nastran
		// treats a blank MID3 as infinitely stiff in shear; reuse MID2.
		p.MID3 = p.MID2
	}
	return p
}

func newPCOMP(f *fieldReader) *PComp {
	p := &PComp{
		PID: f.positive(0, "PID"),
		NSM: f.floatOr(2, "NSM", 0),
	}
	n := f.rec.Len()
	if f.err == nil && n < 6 {
		f.failf("PID %d: at least one ply is required", p.PID)
		return p
	}
	var prev Ply
	for i := 3; i < n; i += 3 {
		ply := Ply{
			MID:   f.intOr(i, "MID", prev.MID),
			T:     f.floatOr(i+1, "T", prev.T),
			Theta: f.floatOr(i+2, "THETA", 0),
		}
		if f.err != nil {
			return p
		}
		if ply.MID <= 0 || ply.T <= 0 {
			f.fail(i, "MID", "ply %d needs a material and a positive thickness", len(p.Plies)+1)
			return p
		}
		p.Plies = append(p.Plies, ply)
		prev = ply
	}
	p.Z0 = f.floatOr(1, "Z0", -p.Thickness()/2)
	return p
}

func (p *PComp) String() string {
	return fmt.Sprintf("PCOMP %d (%d plies, t=%g)", p.PID, len(p.Plies), p.Thickness())
}
