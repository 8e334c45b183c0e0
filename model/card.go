package model

import "fmt"

// CardType identifies the bulk data card an entity was built from
type CardType uint8

const (
	UnknownCard CardType = iota

	// Nodes
	GRID
	SPOINT

	// Coordinate systems
	CORD1R
	CORD1C
	CORD1S
	CORD2R
	CORD2C
	CORD2S

	// Materials
	MAT1
	MAT2
	MAT8

	// Properties
	PELAS
	PROD
	PTUBE
	PBAR
	PBEAM
	PSHEAR
	PSHELL
	PCOMP
	PSOLID
	PRAC2D
	PRAC3D

	// Elements
	CELAS1
	CELAS2
	CELAS3
	CELAS4
	CROD
	CONROD
	CTUBE
	CBAR
	CBEAM
	CSHEAR
	CTRIA3
	CQUAD4
	CTETRA
	CPENTA
	CHEXA
	CRAC2D
	CRAC3D
	CONM2

	// Rigid elements
	RBAR
	RBE2
	RBE3
	RROD

	// Single point constraints
	SPC
	SPC1
	SPCADD

	// Multi point constraints
	MPC
	MPCADD

	// Loads
	FORCE
	FORCE1
	FORCE2
	MOMENT
	MOMENT1
	MOMENT2
	PLOAD
	PLOAD2
	PLOAD4
	GRAV
	SPCD
	SLOAD
	TEMP
	LOAD

	numCardTypes
)

var cardNames = [...]string{
	UnknownCard: "UNKNOWN",
	GRID:        "GRID", SPOINT: "SPOINT",
	CORD1R: "CORD1R", CORD1C: "CORD1C", CORD1S: "CORD1S",
	CORD2R: "CORD2R", CORD2C: "CORD2C", CORD2S: "CORD2S",
	MAT1: "MAT1", MAT2: "MAT2", MAT8: "MAT8",
	PELAS: "PELAS", PROD: "PROD", PTUBE: "PTUBE", PBAR: "PBAR", PBEAM: "PBEAM",
	PSHEAR: "PSHEAR", PSHELL: "PSHELL", PCOMP: "PCOMP", PSOLID: "PSOLID",
	PRAC2D: "PRAC2D", PRAC3D: "PRAC3D",
	CELAS1: "CELAS1", CELAS2: "CELAS2", CELAS3: "CELAS3", CELAS4: "CELAS4",
	CROD: "CROD", CONROD: "CONROD", CTUBE: "CTUBE", CBAR: "CBAR", CBEAM: "CBEAM",
	CSHEAR: "CSHEAR", CTRIA3: "CTRIA3", CQUAD4: "CQUAD4",
	CTETRA: "CTETRA", CPENTA: "CPENTA", CHEXA: "CHEXA",
	CRAC2D: "CRAC2D", CRAC3D: "CRAC3D", CONM2: "CONM2",
	RBAR: "RBAR", RBE2: "RBE2", RBE3: "RBE3", RROD: "RROD",
	SPC: "SPC", SPC1: "SPC1", SPCADD: "SPCADD",
	MPC: "MPC", MPCADD: "MPCADD",
	FORCE: "FORCE", FORCE1: "FORCE1", FORCE2: "FORCE2",
	MOMENT: "MOMENT", MOMENT1: "MOMENT1", MOMENT2: "MOMENT2",
	PLOAD: "PLOAD", PLOAD2: "PLOAD2", PLOAD4: "PLOAD4",
	GRAV: "GRAV", SPCD: "SPCD", SLOAD: "SLOAD", TEMP: "TEMP", LOAD: "LOAD",
}

var cardsByName = func() map[string]CardType {
	m := make(map[string]CardType, numCardTypes)
	for c := UnknownCard + 1; c < numCardTypes; c++ {
		m[cardNames[c]] = c
	}
	return m
}()

func (c CardType) String() string {
	if c < numCardTypes {
		return cardNames[c]
	}
	return fmt.Sprintf("CardType(%d)", uint8(c))
}

// ParseCardType maps a card name to its CardType
func ParseCardType(name string) (CardType, bool) {
	c, ok := cardsByName[name]
	return c, ok
}

// Class groups card types that share a registry
type Class uint8

const (
	NodeClass Class = iota
	CoordClass
	MaterialClass
	PropertyClass
	ElementClass
	RigidClass
	SPCClass
	MPCClass
	LoadClass
)

var classNames = [...]string{
	NodeClass:     "node",
	CoordClass:    "coord",
	MaterialClass: "material",
	PropertyClass: "property",
	ElementClass:  "element",
	RigidClass:    "rigid element",
	SPCClass:      "spc",
	MPCClass:      "mpc",
	LoadClass:     "load",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

// Class returns the registry class of the card, or false for an unknown card
func (c CardType) Class() (Class, bool) {
	switch {
	case c >= GRID && c <= SPOINT:
		return NodeClass, true
	case c >= CORD1R && c <= CORD2S:
		return CoordClass, true
	case c >= MAT1 && c <= MAT8:
		return MaterialClass, true
	case c >= PELAS && c <= PRAC3D:
		return PropertyClass, true
	case c >= CELAS1 && c <= CONM2:
		return ElementClass, true
	case c >= RBAR && c <= RROD:
		return RigidClass, true
	case c >= SPC && c <= SPCADD:
		return SPCClass, true
	case c >= MPC && c <= MPCADD:
		return MPCClass, true
	case c >= FORCE && c <= LOAD:
		return LoadClass, true
	}
	return 0, false
}
