package model

// RigidElement is an RBAR, RBE2, RBE3 or RROD
type RigidElement interface {
	Entity
	IndependentNodes() []int
	DependentNodes() []int
	// Refs maps node IDs to resolved nodes after cross-referencing
	Refs() map[int]*Node
}

// RigidBase carries what every rigid element has
type RigidBase struct {
	EID  int
	Type CardType

	NodeRefs map[int]*Node
}

func (r *RigidBase) ID() int              { return r.EID }
func (r *RigidBase) Card() CardType       { return r.Type }
func (r *RigidBase) Refs() map[int]*Node { return r.NodeRefs }

// RBar is a rigid bar. CNA/CNB are independent components, CMA/CMB dependent.
type RBar struct {
	RigidBase
	GA, GB             int
	CNA, CNB, CMA, CMB []int
}

func (r *RBar) IndependentNodes() []int {
	var ids []int
	if len(r.CNA) > 0 {
		ids = append(ids, r.GA)
	}
	if len(r.CNB) > 0 {
		ids = append(ids, r.GB)
	}
	return ids
}

func (r *RBar) DependentNodes() []int {
	var ids []int
	if len(r.CMA) > 0 {
		ids = append(ids, r.GA)
	}
	if len(r.CMB) > 0 {
		ids = append(ids, r.GB)
	}
	return ids
}

// Rbe2 is an RBE2 card. It ties the CM components of every GM node to GN
type Rbe2 struct {
	RigidBase
	GN int
	CM []int
	GM []int
}

func (r *Rbe2) IndependentNodes() []int { return []int{r.GN} }
func (r *Rbe2) DependentNodes() []int   { return append([]int(nil), r.GM...) }

// Rbe3Group is one weighted group of independent nodes
type Rbe3Group struct {
	Weight     float64
	Components []int
	Nodes      []int
}

// Rbe3 is an RBE3 card. It makes RefGrid follow the weighted average motion of its groups
type Rbe3 struct {
	RigidBase
	RefGrid int
	RefC    []int
	Groups  []Rbe3Group
}

func (r *Rbe3) IndependentNodes() []int {
	var ids []int
	for _, g := range r.Groups {
		ids = append(ids, g.Nodes...)
	}
	return ids
}

func (r *Rbe3) DependentNodes() []int { return []int{r.RefGrid} }

// RRod is rigid in extension. Exactly one of CMA and CMB is set.
type RRod struct {
	RigidBase
	GA, GB   int
	CMA, CMB int
}

func (r *RRod) IndependentNodes() []int {
	if r.CMA > 0 {
		return []int{r.GB}
	}
	return []int{r.GA}
}

func (r *RRod) DependentNodes() []int {
	if r.CMA > 0 {
		return []int{r.GA}
	}
	return []int{r.GB}
}

func newRigid(rec Record, card CardType) (RigidElement, error) {
	f := newFieldReader(rec)
	base := RigidBase{EID: f.positive(0, "EID"), Type: card, NodeRefs: make(map[int]*Node)}
	var r RigidElement
	switch card {
	case RBAR:
		rb := &RBar{
			RigidBase: base,
			GA:        f.positive(1, "GA"),
			GB:        f.positive(2, "GB"),
		}
		rb.CNA = optionalComponents(f, 3, "CNA")
		rb.CNB = optionalComponents(f, 4, "CNB")
		rb.CMA = optionalComponents(f, 5, "CMA")
		rb.CMB = optionalComponents(f, 6, "CMB")
		if f.err == nil && len(rb.CMA) == 0 && len(rb.CMB) == 0 {
			// Default: A independent in all six, B dependent in all six
			rb.CNA = []int{1, 2, 3, 4, 5, 6}
			rb.CMB = []int{1, 2, 3, 4, 5, 6}
		}
		if f.err == nil && len(rb.CNA)+len(rb.CNB) != 6 {
			f.failf("RBAR %d: CNA and CNB together must name six components", rb.EID)
		}
		if f.err == nil && rb.GA == rb.GB {
			f.failf("RBAR %d: GA and GB must differ", rb.EID)
		}
		r = rb
	case RBE2:
		rb := &Rbe2{
			RigidBase: base,
			GN:        f.positive(1, "GN"),
			CM:        f.components(2, "CM", false),
			GM:        f.idList(3, "GM"),
		}
		for _, id := range rb.GM {
			if f.err == nil && id == rb.GN {
				f.fail(3, "GM", "dependent node %d is the independent node", id)
			}
		}
		r = rb
	case RBE3:
		r = newRBE3(f, base)
	case RROD:
		rr := &RRod{
			RigidBase: base,
			GA:        f.positive(1, "GA"),
			GB:        f.positive(2, "GB"),
			CMA:       f.nonNegative(3, "CMA"),
			CMB:       f.nonNegative(4, "CMB"),
		}
		if f.err == nil && (rr.CMA > 0) == (rr.CMB > 0) {
			f.failf("RROD %d: exactly one of CMA and CMB must be set", rr.EID)
		}
		if f.err == nil && (rr.CMA > 3 || rr.CMB > 3) {
			f.failf("RROD %d: dependent component must be a translation", rr.EID)
		}
		if f.err == nil && rr.GA == rr.GB {
			f.failf("RROD %d: GA and GB must differ", rr.EID)
		}
		r = rr
	default:
		return nil, &UnrecognizedEntityTypeError{Type: card.String(), Context: "rigid element"}
	}
	if f.err != nil {
		return nil, f.err
	}
	return r, nil
}

func optionalComponents(f *fieldReader, i int, name string) []int {
	if f.blank(i) || f.intOr(i, name, 0) == 0 {
		return nil
	}
	return f.components(i, name, false)
}

func newRBE3(f *fieldReader, base RigidBase) *Rbe3 {
	r := &Rbe3{
		RigidBase: base,
		RefGrid:   f.positive(1, "REFGRID"),
		RefC:      f.components(2, "REFC", false),
	}
	n := f.rec.Len()
	i := 3
	for i < n && f.err == nil {
		if !f.isFloat(i) {
			f.fail(i, "WT", "expected a real weight to start a group")
			break
		}
		g := Rbe3Group{Weight: f.float(i, "WT"), Components: f.components(i+1, "C", false)}
		i += 2
		for i < n && !f.isFloat(i) && f.err == nil {
			if !f.blank(i) {
				g.Nodes = append(g.Nodes, f.positive(i, "G"))
			}
			i++
		}
		if f.err == nil && len(g.Nodes) == 0 {
			f.fail(i-1, "G", "group %d has no nodes", len(r.Groups)+1)
		}
		r.Groups = append(r.Groups, g)
	}
	if f.err == nil && len(r.Groups) == 0 {
		f.failf("RBE3 %d: at least one weighted group is required", r.EID)
	}
	return r
}
