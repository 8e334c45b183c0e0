package model

// Force is a FORCE or MOMENT: Scale*N applied at Node, N given in CID
type Force struct {
	SID   int
	Type  CardType
	Node  int
	CID   int
	Scale float64
	N     [3]float64

	NodeRef *Node
	CIDRef  *Coord
}

func (l *Force) ID() int        { return l.SID }
func (l *Force) Card() CardType { return l.Type }

// Force1 is a FORCE1 or MOMENT1 directed from G1 to G2
type Force1 struct {
	SID   int
	Type  CardType
	Node  int
	Scale float64
	G1    int
	G2    int

	NodeRef *Node
	G1Ref   *Node
	G2Ref   *Node
}

func (l *Force1) ID() int        { return l.SID }
func (l *Force1) Card() CardType { return l.Type }

// Force2 is a FORCE2 or MOMENT2 directed along (G2-G1) x (G4-G3)
type Force2 struct {
	SID   int
	Type  CardType
	Node  int
	Scale float64
	G     [4]int

	NodeRef *Node
	GRefs   [4]*Node
}

func (l *Force2) ID() int        { return l.SID }
func (l *Force2) Card() CardType { return l.Type }

// PLoad is a pressure on the triangle or quadrilateral spanned by three or four grids
type PLoad struct {
	SID   int
	P     float64
	Nodes []int

	NodeRefs []*Node
}

func (l *PLoad) ID() int        { return l.SID }
func (l *PLoad) Card() CardType { return PLOAD }

// PLoad2 is a uniform pressure on shell elements
type PLoad2 struct {
	SID      int
	P        float64
	Elements []int

	ElementRefs []Element
}

func (l *PLoad2) ID() int        { return l.SID }
func (l *PLoad2) Card() CardType { return PLOAD2 }

// PLoad4 is a corner pressure on a shell. A nonzero N gives the direction in
// CID; otherwise the pressure acts along the element normal.
type PLoad4 struct {
	SID int
	EID int
	P   [4]float64
	G1  int
	G34 int
	CID int
	N   [3]float64

	ElementRef Element
	CIDRef     *Coord
}

func (l *PLoad4) ID() int        { return l.SID }
func (l *PLoad4) Card() CardType { return PLOAD4 }

// HasDirection reports whether N overrides the element normal
func (l *PLoad4) HasDirection() bool {
	return l.N != [3]float64{}
}

// Grav is a gravity acceleration A*N in CID
type Grav struct {
	SID int
	CID int
	A   float64
	N   [3]float64

	CIDRef *Coord
}

func (l *Grav) ID() int        { return l.SID }
func (l *Grav) Card() CardType { return GRAV }

// ScalarLoad is one SLOAD term
type ScalarLoad struct {
	Point int
	F     float64

	NodeRef *Node
}

// SLoad is a set of loads on scalar points
type SLoad struct {
	SID   int
	Terms []ScalarLoad
}

func (l *SLoad) ID() int        { return l.SID }
func (l *SLoad) Card() CardType { return SLOAD }

// NodeTemperature is one TEMP term
type NodeTemperature struct {
	Node int
	T    float64

	NodeRef *Node
}

// Temp gives grid point temperatures
type Temp struct {
	SID   int
	Terms []NodeTemperature
}

func (l *Temp) ID() int        { return l.SID }
func (l *Temp) Card() CardType { return TEMP }

func newLoad(rec Record, card CardType) ([]Entity, error) {
	f := newFieldReader(rec)
	sid := f.positive(0, "SID")
	var l Entity
	switch card {
	case FORCE, MOMENT:
		l = &Force{
			SID: sid, Type: card,
			Node:  f.positive(1, "G"),
			CID:   f.nonNegative(2, "CID"),
			Scale: f.float(3, "F"),
			N:     [3]float64{f.floatOr(4, "N1", 0), f.floatOr(5, "N2", 0), f.floatOr(6, "N3", 0)},
		}
	case FORCE1, MOMENT1:
		l1 := &Force1{
			SID: sid, Type: card,
			Node:  f.positive(1, "G"),
			Scale: f.float(2, "F"),
			G1:    f.positive(3, "G1"),
			G2:    f.positive(4, "G2"),
		}
		if f.err == nil && l1.G1 == l1.G2 {
			f.fail(4, "G2", "G1 and G2 must differ")
		}
		l = l1
	case FORCE2, MOMENT2:
		l = &Force2{
			SID: sid, Type: card,
			Node:  f.positive(1, "G"),
			Scale: f.float(2, "F"),
			G:     [4]int{f.positive(3, "G1"), f.positive(4, "G2"), f.positive(5, "G3"), f.positive(6, "G4")},
		}
	case PLOAD:
		p := &PLoad{SID: sid, P: f.float(1, "P")}
		for i := 2; i < 6; i++ {
			if !f.blank(i) {
				p.Nodes = append(p.Nodes, f.positive(i, "G"))
			}
		}
		if f.err == nil && len(p.Nodes) < 3 {
			f.fail(2, "G1", "three or four grids are required")
		}
		p.NodeRefs = make([]*Node, len(p.Nodes))
		l = p
	case PLOAD2:
		p := &PLoad2{SID: sid, P: f.float(1, "P"), Elements: f.idList(2, "EID")}
		p.ElementRefs = make([]Element, len(p.Elements))
		l = p
	case PLOAD4:
		p := &PLoad4{SID: sid, EID: f.positive(1, "EID")}
		p.P[0] = f.float(2, "P1")
		for i := 1; i < 4; i++ {
			p.P[i] = f.floatOr(2+i, "P", p.P[0])
		}
		p.G1 = f.nonNegative(6, "G1")
		p.G34 = f.nonNegative(7, "G3")
		p.CID = f.nonNegative(8, "CID")
		p.N = [3]float64{f.floatOr(9, "N1", 0), f.floatOr(10, "N2", 0), f.floatOr(11, "N3", 0)}
		l = p
	case GRAV:
		l = &Grav{
			SID: sid,
			CID: f.nonNegative(1, "CID"),
			A:   f.float(2, "A"),
			N:   [3]float64{f.floatOr(3, "N1", 0), f.floatOr(4, "N2", 0), f.floatOr(5, "N3", 0)},
		}
	case SPCD:
		s, err := newSPC(rec, card)
		if err != nil {
			return nil, err
		}
		l = s
	case SLOAD:
		s := &SLoad{SID: sid}
		for i := 1; i < rec.Len(); i += 2 {
			s.Terms = append(s.Terms, ScalarLoad{Point: f.positive(i, "S"), F: f.float(i+1, "F")})
		}
		if f.err == nil && len(s.Terms) == 0 {
			f.fail(1, "S", "at least one scalar point is required")
		}
		l = s
	case TEMP:
		t := &Temp{SID: sid}
		for i := 1; i < rec.Len(); i += 2 {
			t.Terms = append(t.Terms, NodeTemperature{Node: f.positive(i, "G"), T: f.float(i+1, "T")})
		}
		if f.err == nil && len(t.Terms) == 0 {
			f.fail(1, "G", "at least one grid is required")
		}
		l = t
	case LOAD:
		c, err := newCombination(rec, card)
		if err != nil {
			return nil, err
		}
		l = c
	default:
		return nil, &UnrecognizedEntityTypeError{Type: card.String(), Context: "load"}
	}
	if f.err != nil {
		return nil, f.err
	}
	return []Entity{l}, nil
}
