// Package element computes stiffness and mass matrices of single elements
// from resolved node positions, properties and materials.
//
// Grid elements return matrices in the basic frame with six DOFs per grid
// (translations then rotations) in element node order. Scalar springs act on
// the components named on the card, which are in each node's displacement
// frame, and are returned with Basic unset.
package element

import (
	"fmt"

	"github.com/notargets/bdfsolve/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Shape is the reference geometry of an element
type Shape uint8

const (
	Point Shape = iota
	Line
	Tri
	Quad
	Tet
	Prism
	Hex
)

func (s Shape) String() string {
	switch s {
	case Point:
		return "point"
	case Line:
		return "line"
	case Tri:
		return "tri"
	case Quad:
		return "quad"
	case Tet:
		return "tet"
	case Prism:
		return "prism"
	case Hex:
		return "hex"
	}
	return fmt.Sprintf("Shape(%d)", uint8(s))
}

// Dimensionality is the spatial dimension of the reference shape
type Dimensionality uint8

const (
	D0 Dimensionality = iota
	D1
	D2
	D3
)

// ShapeOf returns the reference shape of an element card
func ShapeOf(card model.CardType) (Shape, Dimensionality, bool) {
	switch card {
	case model.CONM2, model.CELAS1, model.CELAS2, model.CELAS3, model.CELAS4:
		return Point, D0, true
	case model.CROD, model.CTUBE, model.CONROD, model.CBAR, model.CBEAM:
		return Line, D1, true
	case model.CTRIA3:
		return Tri, D2, true
	case model.CQUAD4, model.CSHEAR, model.CRAC2D:
		return Quad, D2, true
	case model.CTETRA:
		return Tet, D3, true
	case model.CPENTA:
		return Prism, D3, true
	case model.CHEXA, model.CRAC3D:
		return Hex, D3, true
	}
	return 0, 0, false
}

// Options tunes the element formulations
type Options struct {
	// K6Rot scales the shell drilling stiffness, K6Rot*1e-6*G*t*area
	K6Rot float64
	// WarpTolerance is the largest allowed out-of-plane corner distance of a
	// CQUAD4 relative to the square root of its area
	WarpTolerance float64
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{K6Rot: 100, WarpTolerance: 0.05}
}

// Matrices is the contribution of one element. K and M are indexed by DOFs.
// M is nil for massless elements and K is nil for CONM2.
type Matrices struct {
	EID   int
	Card  model.CardType
	DOFs  []model.DOF
	Basic bool
	K     *mat.SymDense
	M     *mat.SymDense
}

// Evaluate computes the matrices of a cross-referenced element
func Evaluate(e model.Element, opts Options) (*Matrices, error) {
	b := e.Base()
	for i, id := range b.Nodes {
		if id > 0 && (i >= len(b.NodeRefs) || b.NodeRefs[i] == nil) {
			return nil, fmt.Errorf("%s %d: node %d is not cross-referenced", b.Type, b.EID, id)
		}
	}
	var (
		out *Matrices
		err error
	)
	switch e := e.(type) {
	case *model.Spring:
		out, err = spring(e)
	case *model.Rod:
		out, err = rod(e)
	case *model.Bar:
		out, err = bar(e)
	case *model.Shear:
		out, err = shear(e, opts)
	case *model.Shell:
		out, err = shell(e, opts)
	case *model.Solid:
		out, err = solid(e)
	case *model.Mass:
		out, err = conm2(e)
	case *model.Crack:
		return nil, fmt.Errorf("%s %d: crack stiffness: %w", b.Type, b.EID, model.ErrUnsupported)
	default:
		return nil, &model.UnrecognizedEntityTypeError{Type: b.Type.String(), Context: "element evaluation"}
	}
	if err != nil {
		return nil, err
	}
	out.EID, out.Card = b.EID, b.Type
	return out, nil
}

func geometryError(b *model.ElementBase, format string, args ...any) error {
	return &model.ElementGeometryError{EID: b.EID, Card: b.Type, Reason: fmt.Sprintf(format, args...)}
}

func mat1(b *model.ElementBase, m model.Material) (*model.Mat1, error) {
	m1, ok := m.(*model.Mat1)
	if !ok || m1 == nil {
		return nil, fmt.Errorf("%s %d: isotropic material required: %w", b.Type, b.EID, model.ErrUnsupported)
	}
	return m1, nil
}

// gridNodes returns the filled node slots in order
func gridNodes(b *model.ElementBase) []*model.Node {
	nodes := make([]*model.Node, 0, len(b.NodeRefs))
	for _, n := range b.NodeRefs {
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func gridDOFs(nodes []*model.Node) []model.DOF {
	dofs := make([]model.DOF, 0, 6*len(nodes))
	for _, n := range nodes {
		for c := 1; c <= 6; c++ {
			dofs = append(dofs, model.DOF{Node: n.NID, Component: c})
		}
	}
	return dofs
}

// frame holds local unit axes in basic as rows, so local = frame * basic
type frame [3]r3.Vec

func (f frame) local(v r3.Vec) r3.Vec {
	return r3.Vec{X: r3.Dot(f[0], v), Y: r3.Dot(f[1], v), Z: r3.Dot(f[2], v)}
}

// toBasic rotates a local matrix over nodes x 6 DOFs into the basic frame:
// T' k T with T block diagonal in the frame
func (f frame) toBasic(k mat.Matrix, nodes int) *mat.SymDense {
	n := 6 * nodes
	t := mat.NewDense(n, n, nil)
	for blk := 0; blk < 2*nodes; blk++ {
		for i := 0; i < 3; i++ {
			row := [3]float64{f[i].X, f[i].Y, f[i].Z}
			for j := 0; j < 3; j++ {
				t.Set(3*blk+i, 3*blk+j, row[j])
			}
		}
	}
	var kt, tkt mat.Dense
	kt.Mul(k, t)
	tkt.Mul(t.T(), &kt)
	return symmetrize(&tkt)
}

func symmetrize(d mat.Matrix) *mat.SymDense {
	n, _ := d.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(d.At(i, j)+d.At(j, i)))
		}
	}
	return s
}

// lumpedMass puts m[i] on the three translations of node i
func lumpedMass(m []float64) *mat.SymDense {
	out := mat.NewSymDense(6*len(m), nil)
	for i, mi := range m {
		for c := 0; c < 3; c++ {
			out.SetSym(6*i+c, 6*i+c, mi)
		}
	}
	return out
}

func vec(p [3]float64) r3.Vec { return r3.Vec{X: p[0], Y: p[1], Z: p[2]} }
