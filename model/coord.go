package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// CoordKind is the curvilinear form of a coordinate system
type CoordKind uint8

const (
	Rectangular CoordKind = iota
	Cylindrical
	Spherical
)

func (k CoordKind) String() string {
	switch k {
	case Rectangular:
		return "rectangular"
	case Cylindrical:
		return "cylindrical"
	case Spherical:
		return "spherical"
	}
	return fmt.Sprintf("CoordKind(%d)", uint8(k))
}

const degToRad = math.Pi / 180

// Coord is a CORD1x or CORD2x coordinate system. A nil *Coord is the basic
// system and every method below accepts it.
type Coord struct {
	CID  int
	Type CardType

	// CORD2x: three points in RID
	RID     int
	A, B, C [3]float64

	// CORD1x: three grids
	G [3]int

	// Set by cross-referencing
	RIDRef   *Coord
	GRefs    [3]*Node
	Origin   r3.Vec
	Axes     [3]r3.Vec // unit axes in basic
	resolved bool
}

func (c *Coord) ID() int        { return c.CID }
func (c *Coord) Card() CardType { return c.Type }

func (c *Coord) Kind() CoordKind {
	if c == nil {
		return Rectangular
	}
	switch c.Type {
	case CORD1C, CORD2C:
		return Cylindrical
	case CORD1S, CORD2S:
		return Spherical
	}
	return Rectangular
}

// ByGrids reports whether the system is defined by three grids (CORD1x)
func (c *Coord) ByGrids() bool {
	return c != nil && c.Type >= CORD1R && c.Type <= CORD1S
}

// Resolved reports whether Origin and Axes have been computed
func (c *Coord) Resolved() bool { return c == nil || c.resolved }

// Unresolve drops computed geometry so it can be rebuilt
func (c *Coord) Unresolve() { c.resolved = false }

// Define computes the origin and axes from three points in basic. a is the
// origin, b lies on the z axis and c in the xz plane.
func (c *Coord) Define(a, b, cc r3.Vec) error {
	ab := r3.Sub(b, a)
	if r3.Norm(ab) == 0 {
		return &RecordError{Card: c.Type.String(), Reason: fmt.Sprintf("CID %d: points A and B coincide", c.CID)}
	}
	e3 := r3.Unit(ab)
	ac := r3.Sub(cc, a)
	inPlane := r3.Sub(ac, r3.Scale(r3.Dot(ac, e3), e3))
	if r3.Norm(inPlane) <= 1e-12*r3.Norm(ab) {
		return &RecordError{Card: c.Type.String(), Reason: fmt.Sprintf("CID %d: point C lies on the z axis", c.CID)}
	}
	e1 := r3.Unit(inPlane)
	c.Origin = a
	c.Axes = [3]r3.Vec{e1, r3.Cross(e3, e1), e3}
	c.resolved = true
	return nil
}

// ToRect converts coordinates given in this system to local rectangular ones
func (c *Coord) ToRect(x [3]float64) r3.Vec {
	switch c.Kind() {
	case Cylindrical:
		r, th := x[0], x[1]*degToRad
		return r3.Vec{X: r * math.Cos(th), Y: r * math.Sin(th), Z: x[2]}
	case Spherical:
		r, th, ph := x[0], x[1]*degToRad, x[2]*degToRad
		return r3.Vec{
			X: r * math.Sin(th) * math.Cos(ph),
			Y: r * math.Sin(th) * math.Sin(ph),
			Z: r * math.Cos(th),
		}
	}
	return r3.Vec{X: x[0], Y: x[1], Z: x[2]}
}

// ToBasic maps coordinates in this system to a basic position
func (c *Coord) ToBasic(x [3]float64) r3.Vec {
	local := c.ToRect(x)
	if c == nil {
		return local
	}
	return r3.Add(c.Origin, c.rectToBasic(local))
}

func (c *Coord) rectToBasic(v r3.Vec) r3.Vec {
	out := r3.Scale(v.X, c.Axes[0])
	out = r3.Add(out, r3.Scale(v.Y, c.Axes[1]))
	return r3.Add(out, r3.Scale(v.Z, c.Axes[2]))
}

// Basis returns the unit displacement directions of this system at the basic
// point p: rectangular axes, (r, theta, z) or (r, theta, phi).
func (c *Coord) Basis(p r3.Vec) [3]r3.Vec {
	if c == nil {
		return [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
	}
	kind := c.Kind()
	if kind == Rectangular {
		return c.Axes
	}
	d := r3.Sub(p, c.Origin)
	l := r3.Vec{X: r3.Dot(d, c.Axes[0]), Y: r3.Dot(d, c.Axes[1]), Z: r3.Dot(d, c.Axes[2])}
	phi := math.Atan2(l.Y, l.X)
	cp, sp := math.Cos(phi), math.Sin(phi)
	var local [3]r3.Vec
	switch kind {
	case Cylindrical:
		local = [3]r3.Vec{{X: cp, Y: sp}, {X: -sp, Y: cp}, {Z: 1}}
	case Spherical:
		th := math.Atan2(math.Hypot(l.X, l.Y), l.Z)
		ct, st := math.Cos(th), math.Sin(th)
		local = [3]r3.Vec{
			{X: st * cp, Y: st * sp, Z: ct},
			{X: ct * cp, Y: ct * sp, Z: -st},
			{X: -sp, Y: cp},
		}
	}
	return [3]r3.Vec{c.rectToBasic(local[0]), c.rectToBasic(local[1]), c.rectToBasic(local[2])}
}

// VectorToBasic maps vector components given in this system at basic point p
func (c *Coord) VectorToBasic(v [3]float64, p r3.Vec) r3.Vec {
	e := c.Basis(p)
	out := r3.Scale(v[0], e[0])
	out = r3.Add(out, r3.Scale(v[1], e[1]))
	return r3.Add(out, r3.Scale(v[2], e[2]))
}

func newCord1(rec Record, card CardType) ([]Entity, error) {
	// CORD1x may carry two systems per card
	f := newFieldReader(rec)
	var out []Entity
	for base := 0; base < rec.Len(); base += 4 {
		c := &Coord{
			CID:  f.positive(base, "CID"),
			Type: card,
			G:    [3]int{f.positive(base+1, "G1"), f.positive(base+2, "G2"), f.positive(base+3, "G3")},
		}
		if f.err != nil {
			return nil, f.err
		}
		if c.G[0] == c.G[1] || c.G[0] == c.G[2] || c.G[1] == c.G[2] {
			return nil, &RecordError{Card: rec.Card, Reason: fmt.Sprintf("CID %d: grids must be distinct", c.CID)}
		}
		out = append(out, c)
	}
	return out, nil
}

func newCord2(rec Record, card CardType) (*Coord, error) {
	f := newFieldReader(rec)
	c := &Coord{
		CID:  f.positive(0, "CID"),
		Type: card,
		RID:  f.nonNegative(1, "RID"),
		A:    [3]float64{f.floatOr(2, "A1", 0), f.floatOr(3, "A2", 0), f.floatOr(4, "A3", 0)},
		B:    [3]float64{f.floatOr(5, "B1", 0), f.floatOr(6, "B2", 0), f.floatOr(7, "B3", 0)},
		C:    [3]float64{f.floatOr(8, "C1", 0), f.floatOr(9, "C2", 0), f.floatOr(10, "C3", 0)},
	}
	if f.err != nil {
		return nil, f.err
	}
	if c.RID == c.CID {
		return nil, &CyclicReferenceError{Class: CoordClass, Chain: []int{c.CID, c.CID}}
	}
	return c, nil
}
