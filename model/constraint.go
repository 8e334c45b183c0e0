package model

// SPCTerm fixes Components of Node to Value
type SPCTerm struct {
	Node       int
	Components []int
	Value      float64

	NodeRef *Node
}

// SPCSet is an SPC or SPC1 card. SPC1 terms always carry zero values.
type SPCSet struct {
	SID   int
	Type  CardType
	Terms []SPCTerm
}

func (s *SPCSet) ID() int        { return s.SID }
func (s *SPCSet) Card() CardType { return s.Type }

// MPCTerm is one coefficient of a multi point constraint
type MPCTerm struct {
	Node      int
	Component int
	Coeff     float64

	NodeRef *Node
}

// MPCEquation is sum(Coeff * u) = 0; the first term is the dependent DOF
type MPCEquation struct {
	SID   int
	Terms []MPCTerm
}

func (m *MPCEquation) ID() int        { return m.SID }
func (m *MPCEquation) Card() CardType { return MPC }

// SetCombination is an SPCADD, MPCADD or LOAD card. Scales and Scale are only
// used by LOAD.
type SetCombination struct {
	SID    int
	Type   CardType
	Scale  float64
	Sets   []int
	Scales []float64
}

func (c *SetCombination) ID() int        { return c.SID }
func (c *SetCombination) Card() CardType { return c.Type }

func newSPC(rec Record, card CardType) (*SPCSet, error) {
	f := newFieldReader(rec)
	s := &SPCSet{SID: f.positive(0, "SID"), Type: card}
	switch card {
	case SPC, SPCD:
		s.Terms = spcTerms(f, 1)
	case SPC1:
		comps := f.components(1, "C", true)
		for _, id := range f.idList(2, "G") {
			s.Terms = append(s.Terms, SPCTerm{Node: id, Components: comps})
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return s, nil
}

// spcTerms reads repeating (G, C, D) triples
func spcTerms(f *fieldReader, start int) []SPCTerm {
	var terms []SPCTerm
	n := f.rec.Len()
	for i := start; i < n; i += 3 {
		if f.blank(i) {
			continue
		}
		terms = append(terms, SPCTerm{
			Node:       f.positive(i, "G"),
			Components: f.components(i+1, "C", true),
			Value:      f.floatOr(i+2, "D", 0),
		})
	}
	if f.err == nil && len(terms) == 0 {
		f.fail(start, "G", "at least one node is required")
	}
	return terms
}

func newMPC(rec Record) (*MPCEquation, error) {
	f := newFieldReader(rec)
	m := &MPCEquation{SID: f.positive(0, "SID")}
	n := rec.Len()
	for i := 1; i < n; i += 3 {
		if f.blank(i) {
			continue
		}
		t := MPCTerm{
			Node:      f.positive(i, "G"),
			Component: f.nonNegative(i+1, "C"),
			Coeff:     f.float(i+2, "A"),
		}
		if f.err == nil && t.Component > 6 {
			f.fail(i+1, "C", "single component expected, got %d", t.Component)
		}
		m.Terms = append(m.Terms, t)
	}
	if f.err == nil && len(m.Terms) == 0 {
		f.fail(1, "G", "at least one term is required")
	}
	if f.err == nil && m.Terms[0].Coeff == 0 {
		f.fail(3, "A1", "dependent coefficient must be nonzero")
	}
	if f.err != nil {
		return nil, f.err
	}
	return m, nil
}

func newCombination(rec Record, card CardType) (*SetCombination, error) {
	f := newFieldReader(rec)
	c := &SetCombination{SID: f.positive(0, "SID"), Type: card, Scale: 1}
	if card == LOAD {
		c.Scale = f.float(1, "S")
		n := rec.Len()
		for i := 2; i < n; i += 2 {
			c.Scales = append(c.Scales, f.float(i, "S"))
			c.Sets = append(c.Sets, f.positive(i+1, "L"))
		}
		if f.err == nil && len(c.Sets) == 0 {
			f.fail(2, "S1", "at least one load set is required")
		}
	} else {
		c.Sets = f.idList(1, "S")
	}
	if f.err != nil {
		return nil, f.err
	}
	for _, sid := range c.Sets {
		if sid == c.SID {
			return nil, &CyclicReferenceError{Class: cardClass(card), Chain: []int{c.SID, c.SID}}
		}
	}
	return c, nil
}

func cardClass(card CardType) Class {
	class, _ := card.Class()
	return class
}
