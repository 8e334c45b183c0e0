package model

import "fmt"

// Element is any structural element card
type Element interface {
	Entity
	Base() *ElementBase
}

// ElementBase carries what every element has. A zero entry in Nodes is a blank
// optional slot and its NodeRefs entry stays nil.
type ElementBase struct {
	EID      int
	Type     CardType
	PID      int
	Nodes    []int
	NodeRefs []*Node
}

func (e *ElementBase) ID() int            { return e.EID }
func (e *ElementBase) Card() CardType     { return e.Type }
func (e *ElementBase) Base() *ElementBase { return e }

// NodeIDs returns the non-blank node slots
func (e *ElementBase) NodeIDs() []int {
	ids := make([]int, 0, len(e.Nodes))
	for _, id := range e.Nodes {
		if id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// Spring is a CELAS1-4. PID is zero for CELAS2 and CELAS4.
type Spring struct {
	ElementBase
	K          float64
	GE         float64
	S          float64
	Components [2]int

	Prop *PElas
}

// Stiffness is the spring constant from the card or its property
func (s *Spring) Stiffness() float64 {
	if s.Prop != nil {
		return s.Prop.K
	}
	return s.K
}

// Rod is a CROD, CTUBE or CONROD. CONROD carries its section inline.
type Rod struct {
	ElementBase
	MID int
	A   float64
	J   float64
	C   float64
	NSM float64

	Prop Property // *PRod or *PTube
	Mat  Material
}

// Section returns area, torsion constant and non-structural mass per length
func (r *Rod) Section() (area, j, nsm float64) {
	switch p := r.Prop.(type) {
	case *PRod:
		return p.A, p.J, p.NSM
	case *PTube:
		area, j = p.Section()
		return area, j, p.NSM
	}
	return r.A, r.J, r.NSM
}

// Bar is a CBAR or CBEAM oriented by X or by the grid G0
type Bar struct {
	ElementBase
	X  [3]float64
	G0 int

	G0Ref *Node
	Prop  *PBar
}

// Shear is a CSHEAR panel
type Shear struct {
	ElementBase
	Prop *PShear
}

// Shell is a CTRIA3 or CQUAD4. MCID applies when HasMCID, else Theta in degrees.
type Shell struct {
	ElementBase
	Theta   float64
	MCID    int
	HasMCID bool
	ZOffset float64

	MCIDRef *Coord
	Prop    Property // *PShell or *PComp
}

// Solid is a CTETRA, CPENTA or CHEXA
type Solid struct {
	ElementBase
	Prop *PSolid
}

// HasMidside reports whether any mid-side slot is filled
func (s *Solid) HasMidside() bool {
	corners := arities[s.Type].required
	for _, id := range s.Nodes[corners:] {
		if id > 0 {
			return true
		}
	}
	return false
}

// Crack is a CRAC2D or CRAC3D
type Crack struct {
	ElementBase
	Prop Property // *PRac2D or *PRac3D
}

// Mass is a CONM2 concentrated mass. CID -1 gives X as the basic position of
// the center of gravity instead of an offset.
type Mass struct {
	ElementBase
	CID int
	M   float64
	X   [3]float64
	I   [6]float64 // I11, I21, I22, I31, I32, I33

	CIDRef *Coord
}

type arity struct {
	slots    int
	required int
}

// arities is indexed by card type. Spring second slots may be blank (grounded).
var arities = map[CardType]arity{
	CELAS1: {2, 1}, CELAS2: {2, 1}, CELAS3: {2, 1}, CELAS4: {2, 1},
	CROD: {2, 2}, CTUBE: {2, 2}, CONROD: {2, 2},
	CBAR: {2, 2}, CBEAM: {2, 2},
	CSHEAR: {4, 4}, CTRIA3: {3, 3}, CQUAD4: {4, 4},
	CTETRA: {10, 4}, CPENTA: {15, 6}, CHEXA: {20, 8},
	CRAC2D: {18, 10}, CRAC3D: {64, 10},
	CONM2: {1, 1},
}

// Arity returns the node slot count and the number of leading required slots
func Arity(card CardType) (slots, required int, ok bool) {
	a, ok := arities[card]
	return a.slots, a.required, ok
}

func (f *fieldReader) nodeSlots(card CardType, start int, ids []int) []int {
	a := arities[card]
	n := f.rec.Len()
	if ids == nil {
		ids = make([]int, 0, a.slots)
		for i := start; i < n; i++ {
			ids = append(ids, f.nonNegative(i, fmt.Sprintf("G%d", i-start+1)))
		}
	}
	if f.err != nil {
		return nil
	}
	if len(ids) > a.slots {
		f.failf("%s takes at most %d nodes, got %d", card, a.slots, len(ids))
		return nil
	}
	slots := make([]int, a.slots)
	copy(slots, ids)
	for i := 0; i < a.required; i++ {
		if slots[i] == 0 {
			f.fail(start+i, fmt.Sprintf("G%d", i+1), "required node is blank")
			return nil
		}
	}
	seen := make(map[int]bool, len(slots))
	for _, id := range slots {
		if id == 0 {
			continue
		}
		if seen[id] {
			f.failf("%s node %d appears twice", card, id)
			return nil
		}
		seen[id] = true
	}
	return slots
}

func newElement(rec Record, card CardType) (Element, error) {
	f := newFieldReader(rec)
	base := ElementBase{EID: f.positive(0, "EID"), Type: card}
	var e Element
	switch card {
	case CELAS1, CELAS3:
		s := &Spring{ElementBase: base}
		s.PID = f.intOr(1, "PID", s.EID)
		if card == CELAS1 {
			s.Nodes = f.nodeSlots(card, 2, []int{f.nonNegative(2, "G1"), f.nonNegative(4, "G2")})
			s.Components = [2]int{springComponent(f, 3, "C1"), springComponent(f, 5, "C2")}
		} else {
			s.Nodes = f.nodeSlots(card, 2, []int{f.nonNegative(2, "S1"), f.nonNegative(3, "S2")})
		}
		e = s
	case CELAS2:
		s := &Spring{ElementBase: base, K: f.float(1, "K"), GE: f.floatOr(6, "GE", 0), S: f.floatOr(7, "S", 0)}
		s.Nodes = f.nodeSlots(card, 2, []int{f.nonNegative(2, "G1"), f.nonNegative(4, "G2")})
		s.Components = [2]int{springComponent(f, 3, "C1"), springComponent(f, 5, "C2")}
		e = s
	case CELAS4:
		s := &Spring{ElementBase: base, K: f.float(1, "K")}
		s.Nodes = f.nodeSlots(card, 2, []int{f.nonNegative(2, "S1"), f.nonNegative(3, "S2")})
		e = s
	case CROD, CTUBE:
		r := &Rod{ElementBase: base}
		r.PID = f.intOr(1, "PID", r.EID)
		r.Nodes = f.nodeSlots(card, 2, []int{f.positive(2, "G1"), f.positive(3, "G2")})
		e = r
	case CONROD:
		r := &Rod{
			ElementBase: base,
			MID:         f.positive(3, "MID"),
			A:           f.float(4, "A"),
			J:           f.floatOr(5, "J", 0),
			C:           f.floatOr(6, "C", 0),
			NSM:         f.floatOr(7, "NSM", 0),
		}
		r.Nodes = f.nodeSlots(card, 1, []int{f.positive(1, "G1"), f.positive(2, "G2")})
		e = r
	case CBAR, CBEAM:
		b := &Bar{ElementBase: base}
		b.PID = f.intOr(1, "PID", b.EID)
		b.Nodes = f.nodeSlots(card, 2, []int{f.positive(2, "GA"), f.positive(3, "GB")})
		if f.isFloat(4) {
			b.X = [3]float64{f.float(4, "X1"), f.floatOr(5, "X2", 0), f.floatOr(6, "X3", 0)}
		} else {
			b.G0 = f.positive(4, "G0")
		}
		e = b
	case CSHEAR:
		s := &Shear{ElementBase: base}
		s.PID = f.intOr(1, "PID", s.EID)
		s.Nodes = f.nodeSlots(card, 2, nil)
		e = s
	case CTRIA3, CQUAD4:
		sh := &Shell{ElementBase: base}
		sh.PID = f.intOr(1, "PID", sh.EID)
		nn := arities[card].slots
		ids := make([]int, nn)
		for i := range ids {
			ids[i] = f.nonNegative(2+i, fmt.Sprintf("G%d", i+1))
		}
		sh.Nodes = f.nodeSlots(card, 2, ids)
		if f.isFloat(2 + nn) {
			sh.Theta = f.float(2+nn, "THETA")
		} else if !f.blank(2 + nn) {
			sh.MCID = f.nonNegative(2+nn, "MCID")
			sh.HasMCID = true
		}
		sh.ZOffset = f.floatOr(3+nn, "ZOFFS", 0)
		e = sh
	case CTETRA, CPENTA, CHEXA:
		s := &Solid{ElementBase: base}
		s.PID = f.intOr(1, "PID", s.EID)
		s.Nodes = f.nodeSlots(card, 2, nil)
		e = s
	case CRAC2D, CRAC3D:
		c := &Crack{ElementBase: base}
		c.PID = f.intOr(1, "PID", c.EID)
		c.Nodes = f.nodeSlots(card, 2, nil)
		e = c
	case CONM2:
		m := &Mass{
			ElementBase: base,
			CID:         f.intOr(2, "CID", 0),
			M:           f.floatOr(3, "M", 0),
			X:           [3]float64{f.floatOr(4, "X1", 0), f.floatOr(5, "X2", 0), f.floatOr(6, "X3", 0)},
		}
		for i := range m.I {
			m.I[i] = f.floatOr(7+i, "I", 0)
		}
		m.Nodes = f.nodeSlots(card, 1, []int{f.positive(1, "G")})
		if f.err == nil && m.CID < -1 {
			f.fail(2, "CID", "must be -1 or a coordinate system id")
		}
		e = m
	default:
		return nil, &UnrecognizedEntityTypeError{Type: card.String(), Context: "element"}
	}
	if f.err != nil {
		return nil, f.err
	}
	b := e.Base()
	b.NodeRefs = make([]*Node, len(b.Nodes))
	return e, nil
}

// springComponent reads a single component; blank means scalar point
func springComponent(f *fieldReader, i int, name string) int {
	c := f.nonNegative(i, name)
	if f.err == nil && c > 6 {
		f.fail(i, name, "spring component must be a single digit 0-6, got %d", c)
	}
	return c
}
