package model

import (
	"fmt"
	"strings"
)

// Model owns every entity of one analysis. IDs are unique per class only.
type Model struct {
	Nodes      *Registry[*Node]
	Coords     *Registry[*Coord]
	Materials  *Registry[Material]
	Properties *Registry[Property]
	Elements   *Registry[Element]
	Rigids     *Registry[RigidElement]

	// Set registries hold *SPCSet and SPCADD, *MPCEquation and MPCADD, and every load
	// card including SPCD, TEMP and LOAD.
	SPCs  *SetRegistry[Entity]
	MPCs  *SetRegistry[Entity]
	Loads *SetRegistry[Entity]

	// CrossReferenced is set once every reference has been resolved
	CrossReferenced bool
}

func NewModel() *Model {
	return &Model{
		Nodes:      NewRegistry[*Node](NodeClass),
		Coords:     NewRegistry[*Coord](CoordClass),
		Materials:  NewRegistry[Material](MaterialClass),
		Properties: NewRegistry[Property](PropertyClass),
		Elements:   NewRegistry[Element](ElementClass),
		Rigids:     NewRegistry[RigidElement](RigidClass),
		SPCs:       NewSetRegistry[Entity](SPCClass),
		MPCs:       NewSetRegistry[Entity](MPCClass),
		Loads:      NewSetRegistry[Entity](LoadClass),
	}
}

// FromRecords builds a model from a record sequence, stopping at the first failure
func FromRecords(recs []Record) (*Model, error) {
	m := NewModel()
	if err := m.AddRecords(recs); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) AddRecords(recs []Record) error {
	for i, rec := range recs {
		if err := m.AddRecord(rec); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// AddRecord builds the entities of one card and adds them to their registry
func (m *Model) AddRecord(rec Record) error {
	name := strings.ToUpper(strings.TrimSpace(rec.Card))
	card, ok := ParseCardType(name)
	if !ok {
		return &UnrecognizedEntityTypeError{Type: rec.Card, Context: "record"}
	}
	rec.Card = name
	entities, err := newEntities(rec, card)
	if err != nil {
		return err
	}
	for _, e := range entities {
		if err := m.Add(e); err != nil {
			return err
		}
	}
	m.CrossReferenced = false
	return nil
}

func newEntities(rec Record, card CardType) ([]Entity, error) {
	class, _ := card.Class()
	switch class {
	case NodeClass:
		if card == SPOINT {
			return newSPoints(rec)
		}
		n, err := newGrid(rec)
		return single(n, err)
	case CoordClass:
		if card <= CORD1S {
			return newCord1(rec, card)
		}
		c, err := newCord2(rec, card)
		return single(c, err)
	case MaterialClass:
		switch card {
		case MAT1:
			mat, err := newMAT1(rec)
			return single(mat, err)
		case MAT2:
			mat, err := newMAT2(rec)
			return single(mat, err)
		case MAT8:
			mat, err := newMAT8(rec)
			return single(mat, err)
		}
	case PropertyClass:
		p, err := newProperty(rec, card)
		return single(p, err)
	case ElementClass:
		e, err := newElement(rec, card)
		return single(e, err)
	case RigidClass:
		r, err := newRigid(rec, card)
		return single(r, err)
	case SPCClass:
		if card == SPCADD {
			c, err := newCombination(rec, card)
			return single(c, err)
		}
		s, err := newSPC(rec, card)
		return single(s, err)
	case MPCClass:
		if card == MPCADD {
			c, err := newCombination(rec, card)
			return single(c, err)
		}
		mpc, err := newMPC(rec)
		return single(mpc, err)
	case LoadClass:
		return newLoad(rec, card)
	}
	return nil, &UnrecognizedEntityTypeError{Type: card.String(), Context: "record"}
}

func single[T Entity](e T, err error) ([]Entity, error) {
	if err != nil {
		return nil, err
	}
	return []Entity{e}, nil
}

// Add routes an entity to the registry of its class
func (m *Model) Add(e Entity) error {
	class, ok := e.Card().Class()
	if !ok {
		return &UnrecognizedEntityTypeError{Type: e.Card().String(), Context: "model"}
	}
	switch class {
	case NodeClass:
		return addTyped(m.Nodes, e)
	case CoordClass:
		return addTyped(m.Coords, e)
	case MaterialClass:
		return addTyped(m.Materials, e)
	case PropertyClass:
		return addTyped(m.Properties, e)
	case ElementClass:
		return addTyped(m.Elements, e)
	case RigidClass:
		return addTyped(m.Rigids, e)
	case SPCClass:
		m.SPCs.Add(e)
	case MPCClass:
		m.MPCs.Add(e)
	case LoadClass:
		m.Loads.Add(e)
	}
	return nil
}

func addTyped[T Entity](r *Registry[T], e Entity) error {
	t, ok := e.(T)
	if !ok {
		return &UnrecognizedEntityTypeError{Type: fmt.Sprintf("%T", e), Context: r.Class().String() + " registry"}
	}
	return r.Add(t)
}

// Counts returns the number of entities per class
func (m *Model) Counts() map[Class]int {
	return map[Class]int{
		NodeClass:     m.Nodes.Len(),
		CoordClass:    m.Coords.Len(),
		MaterialClass: m.Materials.Len(),
		PropertyClass: m.Properties.Len(),
		ElementClass:  m.Elements.Len(),
		RigidClass:    m.Rigids.Len(),
		SPCClass:      m.SPCs.Len(),
		MPCClass:      m.MPCs.Len(),
		LoadClass:     m.Loads.Len(),
	}
}

// Coord returns the coordinate system cid; 0 is the basic system and returns nil
func (m *Model) Coord(cid int) (*Coord, error) {
	if cid == 0 {
		return nil, nil
	}
	return m.Coords.Get(cid)
}
