package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every typed error below matches one of these with errors.Is.
var (
	ErrDuplicateID         = errors.New("model: duplicate id")
	ErrUnknownID           = errors.New("model: unknown id")
	ErrReferenceType       = errors.New("model: reference to wrong entity type")
	ErrCyclicReference     = errors.New("model: cyclic reference")
	ErrUnrecognizedType    = errors.New("model: unrecognized entity type")
	ErrInvalidRecord       = errors.New("model: invalid record")
	ErrElementGeometry     = errors.New("model: degenerate element geometry")
	ErrConstraintConflict  = errors.New("model: conflicting constraints")
	ErrFloatingDOF         = errors.New("model: floating degrees of freedom")
	ErrSingularSystem      = errors.New("model: singular system")
	ErrUnsupported         = errors.New("model: not supported by the solver")
	ErrUnsupportedSolution = errors.New("model: unsupported solution sequence")
)

// DuplicateIDError is returned when an ID is added twice to the same class
type DuplicateIDError struct {
	Class Class
	ID    int
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate %s id %d", e.Class, e.ID)
}

func (e *DuplicateIDError) Is(target error) bool { return target == ErrDuplicateID }

// UnknownIDError is a dangling reference. Referrer names the entity and field holding it.
type UnknownIDError struct {
	Class    Class
	ID       int
	Referrer string
}

func (e *UnknownIDError) Error() string {
	if e.Referrer == "" {
		return fmt.Sprintf("unknown %s id %d", e.Class, e.ID)
	}
	return fmt.Sprintf("%s: unknown %s id %d", e.Referrer, e.Class, e.ID)
}

func (e *UnknownIDError) Is(target error) bool { return target == ErrUnknownID }

// ReferenceTypeError is a reference that resolves to an entity of the wrong card type
type ReferenceTypeError struct {
	Referrer string
	ID       int
	Got      CardType
	Want     []CardType
}

func (e *ReferenceTypeError) Error() string {
	want := make([]string, len(e.Want))
	for i, c := range e.Want {
		want[i] = c.String()
	}
	return fmt.Sprintf("%s: id %d is a %s, expected %s", e.Referrer, e.ID, e.Got, strings.Join(want, "/"))
}

func (e *ReferenceTypeError) Is(target error) bool { return target == ErrReferenceType }

// CyclicReferenceError reports the chain of IDs that closes a cycle
type CyclicReferenceError struct {
	Class Class
	Chain []int
}

func (e *CyclicReferenceError) Error() string {
	parts := make([]string, len(e.Chain))
	for i, id := range e.Chain {
		parts[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("cyclic %s reference: %s", e.Class, strings.Join(parts, " -> "))
}

func (e *CyclicReferenceError) Is(target error) bool { return target == ErrCyclicReference }

// UnrecognizedEntityTypeError is raised when a type tag has no handling rule
type UnrecognizedEntityTypeError struct {
	Type    string
	Context string
}

func (e *UnrecognizedEntityTypeError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("unrecognized entity type %q", e.Type)
	}
	return fmt.Sprintf("%s: unrecognized entity type %q", e.Context, e.Type)
}

func (e *UnrecognizedEntityTypeError) Is(target error) bool { return target == ErrUnrecognizedType }

// RecordError is a malformed field in an inbound record
type RecordError struct {
	Card   string
	Field  int
	Name   string
	Reason string
}

func (e *RecordError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %s", e.Card, e.Reason)
	}
	return fmt.Sprintf("%s field %d (%s): %s", e.Card, e.Field, e.Name, e.Reason)
}

func (e *RecordError) Is(target error) bool { return target == ErrInvalidRecord }

// ElementGeometryError reports a degenerate, warped or inverted element
type ElementGeometryError struct {
	EID    int
	Card   CardType
	Reason string
}

func (e *ElementGeometryError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Card, e.EID, e.Reason)
}

func (e *ElementGeometryError) Is(target error) bool { return target == ErrElementGeometry }

// ConstraintConflictError is a DOF placed in two incompatible partitions
type ConstraintConflictError struct {
	DOF    DOF
	Reason string
}

func (e *ConstraintConflictError) Error() string {
	return fmt.Sprintf("dof %s: %s", e.DOF, e.Reason)
}

func (e *ConstraintConflictError) Is(target error) bool { return target == ErrConstraintConflict }

// FloatingDOFError lists free DOFs that no element stiffness reaches
type FloatingDOFError struct {
	DOFs []DOF
}

func (e *FloatingDOFError) Error() string {
	return fmt.Sprintf("%d floating dof(s) with no stiffness: %s", len(e.DOFs), formatDOFs(e.DOFs))
}

func (e *FloatingDOFError) Is(target error) bool { return target == ErrFloatingDOF }

// SingularSystemError is a numerically singular reduced matrix. DOFs is empty when
// the implicated set could not be derived.
type SingularSystemError struct {
	DOFs     []DOF
	MaxRatio float64
}

func (e *SingularSystemError) Error() string {
	msg := fmt.Sprintf("singular reduced stiffness (max ratio %.3e)", e.MaxRatio)
	if len(e.DOFs) > 0 {
		msg += ": implicated dofs " + formatDOFs(e.DOFs)
	}
	return msg
}

func (e *SingularSystemError) Is(target error) bool { return target == ErrSingularSystem }

func formatDOFs(dofs []DOF) string {
	const maxShown = 20
	parts := make([]string, 0, maxShown+1)
	for i, d := range dofs {
		if i == maxShown {
			parts = append(parts, fmt.Sprintf("... (%d more)", len(dofs)-maxShown))
			break
		}
		parts = append(parts, d.String())
	}
	return strings.Join(parts, ", ")
}
