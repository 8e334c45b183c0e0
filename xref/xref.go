// Package xref resolves the ID references of a model into direct links.
//
// CrossReference validates every reference and fills in the resolved fields
// (node positions in basic, coordinate system axes, property and material
// links). Validate runs the same existence, type and cycle checks without
// touching the entities and is what the pruner relies on.
package xref

import (
	"fmt"
	"slices"

	"github.com/notargets/bdfsolve/model"
)

type resolver struct {
	m    *model.Model
	full bool
}

// CrossReference resolves every reference in m. The first dangling, mistyped or
// cyclic reference aborts with a typed error and m must not be used for
// assembly.
func CrossReference(m *model.Model) error {
	m.CrossReferenced = false
	r := &resolver{m: m, full: true}
	if err := r.run(); err != nil {
		return fmt.Errorf("cross-reference: %w", err)
	}
	m.CrossReferenced = true
	return nil
}

// Validate checks references without resolving them
func Validate(m *model.Model) error {
	r := &resolver{m: m}
	if err := r.run(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}

func (r *resolver) run() error {
	if err := newCoordWalker(r).walkAll(); err != nil {
		return err
	}
	steps := []func() error{
		r.nodes,
		r.properties,
		r.elements,
		r.rigids,
		r.spcs,
		r.mpcs,
		r.loads,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func referrer(card model.CardType, id int, field string) string {
	return fmt.Sprintf("%s %d %s", card, id, field)
}

func (r *resolver) coord(cid int, ref string) (*model.Coord, error) {
	c, ok := r.m.Coords.Lookup(cid)
	if !ok {
		return nil, &model.UnknownIDError{Class: model.CoordClass, ID: cid, Referrer: ref}
	}
	return c, nil
}

// coordRef resolves a CID field; 0 is the basic system and resolves to nil
func (r *resolver) coordRef(cid int, ref string) (*model.Coord, error) {
	if cid == 0 {
		return nil, nil
	}
	return r.coord(cid, ref)
}

func (r *resolver) node(id int, ref string) (*model.Node, error) {
	n, ok := r.m.Nodes.Lookup(id)
	if !ok {
		return nil, &model.UnknownIDError{Class: model.NodeClass, ID: id, Referrer: ref}
	}
	return n, nil
}

func (r *resolver) typedNode(id int, ref string, want model.CardType) (*model.Node, error) {
	n, err := r.node(id, ref)
	if err != nil {
		return nil, err
	}
	if n.Type != want {
		return nil, &model.ReferenceTypeError{Referrer: ref, ID: id, Got: n.Type, Want: []model.CardType{want}}
	}
	return n, nil
}

func (r *resolver) grid(id int, ref string) (*model.Node, error) {
	return r.typedNode(id, ref, model.GRID)
}

func (r *resolver) material(mid int, ref string, want ...model.CardType) (model.Material, error) {
	mat, ok := r.m.Materials.Lookup(mid)
	if !ok {
		return nil, &model.UnknownIDError{Class: model.MaterialClass, ID: mid, Referrer: ref}
	}
	if !slices.Contains(want, mat.Card()) {
		return nil, &model.ReferenceTypeError{Referrer: ref, ID: mid, Got: mat.Card(), Want: want}
	}
	return mat, nil
}

// optionalMaterial resolves a MID that may be blank (zero)
func (r *resolver) optionalMaterial(mid int, ref string, want ...model.CardType) (model.Material, error) {
	if mid == 0 {
		return nil, nil
	}
	return r.material(mid, ref, want...)
}

func (r *resolver) property(pid int, ref string, want ...model.CardType) (model.Property, error) {
	p, ok := r.m.Properties.Lookup(pid)
	if !ok {
		return nil, &model.UnknownIDError{Class: model.PropertyClass, ID: pid, Referrer: ref}
	}
	if !slices.Contains(want, p.Card()) {
		return nil, &model.ReferenceTypeError{Referrer: ref, ID: pid, Got: p.Card(), Want: want}
	}
	return p, nil
}

func (r *resolver) element(eid int, ref string, want ...model.CardType) (model.Element, error) {
	e, ok := r.m.Elements.Lookup(eid)
	if !ok {
		return nil, &model.UnknownIDError{Class: model.ElementClass, ID: eid, Referrer: ref}
	}
	if !slices.Contains(want, e.Card()) {
		return nil, &model.ReferenceTypeError{Referrer: ref, ID: eid, Got: e.Card(), Want: want}
	}
	return e, nil
}

// checkComponents verifies components against the node kind
func checkComponents(n *model.Node, comps []int, ref string) error {
	for _, c := range comps {
		if !n.HasComponent(c) {
			return &model.RecordError{Card: ref, Reason: fmt.Sprintf("component %d is not valid on %s %d", c, n.Type, n.NID)}
		}
	}
	return nil
}

func (r *resolver) nodes() error {
	return r.m.Nodes.Each(func(n *model.Node) error {
		if n.IsScalar() {
			return nil
		}
		cp, err := r.coordRef(n.CP, referrer(n.Type, n.NID, "CP"))
		if err != nil {
			return err
		}
		cd, err := r.coordRef(n.CD, referrer(n.Type, n.NID, "CD"))
		if err != nil {
			return err
		}
		if r.full {
			n.CPRef, n.CDRef = cp, cd
			n.Position = cp.ToBasic(n.X)
		}
		return nil
	})
}

var (
	mat1Only      = []model.CardType{model.MAT1}
	shellMats     = []model.CardType{model.MAT1, model.MAT2, model.MAT8}
	plyMats       = []model.CardType{model.MAT1, model.MAT8}
	shellProps    = []model.CardType{model.PSHELL, model.PCOMP}
	pressureElems = []model.CardType{model.CTRIA3, model.CQUAD4, model.CSHEAR}
	faceElems     = []model.CardType{model.CTRIA3, model.CQUAD4, model.CSHEAR, model.CTETRA, model.CPENTA, model.CHEXA}
)

func (r *resolver) properties() error {
	return r.m.Properties.Each(func(p model.Property) error {
		ref := func(field string) string { return referrer(p.Card(), p.ID(), field) }
		switch p := p.(type) {
		case *model.PElas:
		case *model.PRod:
			mat, err := r.material(p.MID, ref("MID"), mat1Only...)
			if err != nil {
				return err
			}
			if r.full {
				p.Mat = mat
			}
		case *model.PTube:
			mat, err := r.material(p.MID, ref("MID"), mat1Only...)
			if err != nil {
				return err
			}
			if r.full {
				p.Mat = mat
			}
		case *model.PBar:
			mat, err := r.material(p.MID, ref("MID"), mat1Only...)
			if err != nil {
				return err
			}
			if r.full {
				p.Mat = mat
			}
		case *model.PShear:
			mat, err := r.material(p.MID, ref("MID"), mat1Only...)
			if err != nil {
				return err
			}
			if r.full {
				p.Mat = mat
			}
		case *model.PShell:
			var mats [4]model.Material
			for i, mid := range []int{p.MID1, p.MID2, p.MID3, p.MID4} {
				mat, err := r.optionalMaterial(mid, ref(fmt.Sprintf("MID%d", i+1)), shellMats...)
				if err != nil {
					return err
				}
				mats[i] = mat
			}
			if r.full {
				p.Mat1, p.Mat2, p.Mat3, p.Mat4 = mats[0], mats[1], mats[2], mats[3]
			}
		case *model.PComp:
			for i := range p.Plies {
				mat, err := r.material(p.Plies[i].MID, ref(fmt.Sprintf("MID%d", i+1)), plyMats...)
				if err != nil {
					return err
				}
				if r.full {
					p.Plies[i].Mat = mat
				}
			}
		case *model.PSolid:
			mat, err := r.material(p.MID, ref("MID"), mat1Only...)
			if err != nil {
				return err
			}
			var cord *model.Coord
			if p.CORDM > 0 {
				if cord, err = r.coord(p.CORDM, ref("CORDM")); err != nil {
					return err
				}
			}
			if r.full {
				p.Mat, p.CordRef = mat, cord
			}
		case *model.PRac2D:
			mat, err := r.material(p.MID, ref("MID"), mat1Only...)
			if err != nil {
				return err
			}
			if r.full {
				p.Mat = mat
			}
		case *model.PRac3D:
			mat, err := r.material(p.MID, ref("MID"), mat1Only...)
			if err != nil {
				return err
			}
			if r.full {
				p.Mat = mat
			}
		default:
			return &model.UnrecognizedEntityTypeError{Type: p.Card().String(), Context: "cross-reference property"}
		}
		return nil
	})
}

// elementProps lists the property cards an element may point at
var elementProps = map[model.CardType][]model.CardType{
	model.CELAS1: {model.PELAS}, model.CELAS3: {model.PELAS},
	model.CROD: {model.PROD}, model.CTUBE: {model.PTUBE},
	model.CBAR: {model.PBAR}, model.CBEAM: {model.PBEAM, model.PBAR},
	model.CSHEAR: {model.PSHEAR},
	model.CTRIA3: shellProps, model.CQUAD4: shellProps,
	model.CTETRA: {model.PSOLID}, model.CPENTA: {model.PSOLID}, model.CHEXA: {model.PSOLID},
	model.CRAC2D: {model.PRAC2D}, model.CRAC3D: {model.PRAC3D},
}

func (r *resolver) elements() error {
	return r.m.Elements.Each(func(e model.Element) error {
		b := e.Base()
		ref := func(field string) string { return referrer(b.Type, b.EID, field) }

		var prop model.Property
		if want, ok := elementProps[b.Type]; ok {
			p, err := r.property(b.PID, ref("PID"), want...)
			if err != nil {
				return err
			}
			prop = p
		}

		refs := make([]*model.Node, len(b.Nodes))
		for i, id := range b.Nodes {
			if id == 0 {
				continue
			}
			field := fmt.Sprintf("G%d", i+1)
			var n *model.Node
			var err error
			switch b.Type {
			case model.CELAS1, model.CELAS2:
				n, err = r.node(id, ref(field))
			case model.CELAS3, model.CELAS4:
				n, err = r.typedNode(id, ref(field), model.SPOINT)
			default:
				n, err = r.grid(id, ref(field))
			}
			if err != nil {
				return err
			}
			refs[i] = n
		}

		switch e := e.(type) {
		case *model.Spring:
			for i, n := range refs {
				if n == nil {
					continue
				}
				if err := checkComponents(n, []int{e.Components[i]}, ref(fmt.Sprintf("C%d", i+1))); err != nil {
					return err
				}
			}
			if r.full && prop != nil {
				e.Prop = prop.(*model.PElas)
			}
		case *model.Rod:
			var mat model.Material
			if b.Type == model.CONROD {
				m, err := r.material(e.MID, ref("MID"), mat1Only...)
				if err != nil {
					return err
				}
				mat = m
			} else if r.full {
				switch p := prop.(type) {
				case *model.PRod:
					mat = p.Mat
				case *model.PTube:
					mat = p.Mat
				}
			}
			if r.full {
				e.Prop, e.Mat = prop, mat
			}
		case *model.Bar:
			var g0 *model.Node
			if e.G0 > 0 {
				if slices.Contains(b.Nodes, e.G0) {
					return &model.RecordError{Card: ref("G0"), Reason: "orientation grid coincides with an end grid"}
				}
				n, err := r.grid(e.G0, ref("G0"))
				if err != nil {
					return err
				}
				g0 = n
			}
			if r.full {
				e.G0Ref, e.Prop = g0, prop.(*model.PBar)
			}
		case *model.Shear:
			if r.full {
				e.Prop = prop.(*model.PShear)
			}
		case *model.Shell:
			var mcid *model.Coord
			if e.HasMCID {
				c, err := r.coordRef(e.MCID, ref("MCID"))
				if err != nil {
					return err
				}
				mcid = c
			}
			if r.full {
				e.MCIDRef, e.Prop = mcid, prop
			}
		case *model.Solid:
			if r.full {
				e.Prop = prop.(*model.PSolid)
			}
		case *model.Crack:
			if r.full {
				e.Prop = prop
			}
		case *model.Mass:
			var cid *model.Coord
			if e.CID > 0 {
				c, err := r.coord(e.CID, ref("CID"))
				if err != nil {
					return err
				}
				cid = c
			}
			if r.full {
				e.CIDRef = cid
			}
		default:
			return &model.UnrecognizedEntityTypeError{Type: b.Type.String(), Context: "cross-reference element"}
		}
		if r.full {
			b.NodeRefs = refs
		}
		return nil
	})
}

func (r *resolver) rigids() error {
	return r.m.Rigids.Each(func(re model.RigidElement) error {
		refs := make(map[int]*model.Node)
		resolve := func(id int, field string, comps []int) error {
			ref := referrer(re.Card(), re.ID(), field)
			n, err := r.grid(id, ref)
			if err != nil {
				return err
			}
			if err := checkComponents(n, comps, ref); err != nil {
				return err
			}
			refs[id] = n
			return nil
		}
		var err error
		switch re := re.(type) {
		case *model.RBar:
			if err = resolve(re.GA, "GA", nil); err == nil {
				err = resolve(re.GB, "GB", nil)
			}
		case *model.Rbe2:
			err = resolve(re.GN, "GN", nil)
			for _, id := range re.GM {
				if err != nil {
					break
				}
				err = resolve(id, "GM", re.CM)
			}
		case *model.Rbe3:
			err = resolve(re.RefGrid, "REFGRID", re.RefC)
			for _, g := range re.Groups {
				for _, id := range g.Nodes {
					if err != nil {
						break
					}
					if id == re.RefGrid {
						err = &model.RecordError{Card: referrer(re.Card(), re.ID(), "G"), Reason: "reference grid appears in a weighted group"}
						break
					}
					err = resolve(id, "G", g.Components)
				}
			}
		case *model.RRod:
			if err = resolve(re.GA, "GA", nil); err == nil {
				err = resolve(re.GB, "GB", nil)
			}
		default:
			return &model.UnrecognizedEntityTypeError{Type: re.Card().String(), Context: "cross-reference rigid element"}
		}
		if err != nil {
			return err
		}
		if r.full {
			clear(re.Refs())
			for id, n := range refs {
				re.Refs()[id] = n
			}
		}
		return nil
	})
}

func (r *resolver) spcTerms(card model.CardType, sid int, terms []model.SPCTerm) error {
	for i := range terms {
		ref := referrer(card, sid, "G")
		n, err := r.node(terms[i].Node, ref)
		if err != nil {
			return err
		}
		if err := checkComponents(n, terms[i].Components, ref); err != nil {
			return err
		}
		if r.full {
			terms[i].NodeRef = n
		}
	}
	return nil
}

func (r *resolver) spcs() error {
	if err := model.CheckSetCycles(r.m.SPCs); err != nil {
		return err
	}
	return r.m.SPCs.Each(func(e model.Entity) error {
		switch s := e.(type) {
		case *model.SPCSet:
			return r.spcTerms(s.Type, s.SID, s.Terms)
		case *model.SetCombination:
			return nil
		}
		return &model.UnrecognizedEntityTypeError{Type: e.Card().String(), Context: "cross-reference spc"}
	})
}

func (r *resolver) mpcs() error {
	if err := model.CheckSetCycles(r.m.MPCs); err != nil {
		return err
	}
	return r.m.MPCs.Each(func(e model.Entity) error {
		switch s := e.(type) {
		case *model.MPCEquation:
			for i := range s.Terms {
				ref := referrer(model.MPC, s.SID, "G")
				n, err := r.node(s.Terms[i].Node, ref)
				if err != nil {
					return err
				}
				if err := checkComponents(n, []int{s.Terms[i].Component}, ref); err != nil {
					return err
				}
				if r.full {
					s.Terms[i].NodeRef = n
				}
			}
			return nil
		case *model.SetCombination:
			return nil
		}
		return &model.UnrecognizedEntityTypeError{Type: e.Card().String(), Context: "cross-reference mpc"}
	})
}

func (r *resolver) loads() error {
	if err := model.CheckSetCycles(r.m.Loads); err != nil {
		return err
	}
	return r.m.Loads.Each(func(e model.Entity) error {
		ref := func(field string) string { return referrer(e.Card(), e.ID(), field) }
		switch l := e.(type) {
		case *model.Force:
			n, err := r.grid(l.Node, ref("G"))
			if err != nil {
				return err
			}
			cid, err := r.coordRef(l.CID, ref("CID"))
			if err != nil {
				return err
			}
			if r.full {
				l.NodeRef, l.CIDRef = n, cid
			}
		case *model.Force1:
			var ns [3]*model.Node
			for i, id := range []int{l.Node, l.G1, l.G2} {
				n, err := r.grid(id, ref("G"))
				if err != nil {
					return err
				}
				ns[i] = n
			}
			if r.full {
				l.NodeRef, l.G1Ref, l.G2Ref = ns[0], ns[1], ns[2]
			}
		case *model.Force2:
			n, err := r.grid(l.Node, ref("G"))
			if err != nil {
				return err
			}
			var gs [4]*model.Node
			for i, id := range l.G {
				if gs[i], err = r.grid(id, ref(fmt.Sprintf("G%d", i+1))); err != nil {
					return err
				}
			}
			if r.full {
				l.NodeRef, l.GRefs = n, gs
			}
		case *model.PLoad:
			for i, id := range l.Nodes {
				n, err := r.grid(id, ref(fmt.Sprintf("G%d", i+1)))
				if err != nil {
					return err
				}
				if r.full {
					l.NodeRefs[i] = n
				}
			}
		case *model.PLoad2:
			for i, eid := range l.Elements {
				el, err := r.element(eid, ref("EID"), pressureElems...)
				if err != nil {
					return err
				}
				if r.full {
					l.ElementRefs[i] = el
				}
			}
		case *model.PLoad4:
			el, err := r.element(l.EID, ref("EID"), faceElems...)
			if err != nil {
				return err
			}
			for _, g := range []int{l.G1, l.G34} {
				if g == 0 {
					continue
				}
				if !slices.Contains(el.Base().Nodes, g) {
					return &model.RecordError{Card: ref("G1"), Reason: fmt.Sprintf("grid %d is not on element %d", g, l.EID)}
				}
			}
			cid, err := r.coordRef(l.CID, ref("CID"))
			if err != nil {
				return err
			}
			if r.full {
				l.ElementRef, l.CIDRef = el, cid
			}
		case *model.Grav:
			cid, err := r.coordRef(l.CID, ref("CID"))
			if err != nil {
				return err
			}
			if r.full {
				l.CIDRef = cid
			}
		case *model.SPCSet:
			return r.spcTerms(l.Type, l.SID, l.Terms)
		case *model.SLoad:
			for i := range l.Terms {
				n, err := r.typedNode(l.Terms[i].Point, ref("S"), model.SPOINT)
				if err != nil {
					return err
				}
				if r.full {
					l.Terms[i].NodeRef = n
				}
			}
		case *model.Temp:
			for i := range l.Terms {
				n, err := r.grid(l.Terms[i].Node, ref("G"))
				if err != nil {
					return err
				}
				if r.full {
					l.Terms[i].NodeRef = n
				}
			}
		case *model.SetCombination:
		default:
			return &model.UnrecognizedEntityTypeError{Type: e.Card().String(), Context: "cross-reference load"}
		}
		return nil
	})
}
