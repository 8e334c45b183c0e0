package element

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/bdfsolve/model"
	"github.com/notargets/bdfsolve/xref"
)

func rec(card string, fields ...any) model.Record {
	return model.Record{Card: card, Fields: fields}
}

// evaluate builds a cross-referenced model and evaluates element eid
func evaluate(t *testing.T, eid int, recs ...model.Record) (*Matrices, error) {
	t.Helper()
	m, err := model.FromRecords(recs)
	require.NoError(t, err)
	require.NoError(t, xref.CrossReference(m))
	e, err := m.Elements.Get(eid)
	require.NoError(t, err)
	return Evaluate(e, DefaultOptions())
}

func grids(pts ...[3]float64) []model.Record {
	out := make([]model.Record, len(pts))
	for i, p := range pts {
		out[i] = rec("GRID", i+1, nil, p[0], p[1], p[2])
	}
	return out
}

func with(base []model.Record, more ...model.Record) []model.Record {
	return append(append([]model.Record{}, base...), more...)
}

// totalMass sums the x translation diagonal of a grid element mass matrix
func totalMass(m *mat.SymDense) float64 {
	n, _ := m.Dims()
	s := 0.0
	for i := 0; i < n; i += 6 {
		s += m.At(i, i)
	}
	return s
}

// residual returns |K u| / |K| for a displacement field u
func residual(k mat.Symmetric, u []float64) float64 {
	var f mat.VecDense
	f.MulVec(k, mat.NewVecDense(len(u), u))
	return mat.Norm(&f, 2) / mat.Norm(k, 2)
}

// rigidTranslation returns the field of a unit translation along comp at every
// grid
func rigidTranslation(nodes, comp int) []float64 {
	u := make([]float64, 6*nodes)
	for i := 0; i < nodes; i++ {
		u[6*i+comp] = 1
	}
	return u
}

// rigidRotationZ returns the field of a small rotation about basic z
func rigidRotationZ(pts [][3]float64) []float64 {
	u := make([]float64, 6*len(pts))
	for i, p := range pts {
		u[6*i] = -p[1]
		u[6*i+1] = p[0]
		u[6*i+5] = 1
	}
	return u
}

// ============================================================================
// Quadrature
// ============================================================================

func TestGaussLegendre(t *testing.T) {
	for n := 1; n <= 5; n++ {
		x, w := GaussLegendre(n)
		require.Len(t, x, n)
		sum := 0.0
		for _, wi := range w {
			sum += wi
		}
		assert.InDelta(t, 2.0, sum, 1e-12, "n=%d weights", n)

		// exact for degree 2n-1
		p := 2*n - 2
		integral := 0.0
		for i := range x {
			integral += w[i] * math.Pow(x[i], float64(p))
		}
		assert.InDelta(t, 2/float64(p+1), integral, 1e-12, "n=%d x^%d", n, p)
	}
}

func TestGaussLegendre_Points(t *testing.T) {
	x, w := GaussLegendre(2)
	assert.InDelta(t, -1/math.Sqrt(3), x[0], 1e-14)
	assert.InDelta(t, 1/math.Sqrt(3), x[1], 1e-14)
	assert.InDelta(t, 1.0, w[0], 1e-14)
}

func TestReferenceRules(t *testing.T) {
	tests := []struct {
		name   string
		rule   []qpoint
		volume float64
	}{
		{"quad 2x2", gaussRect(2, 2), 4},
		{"hex 2x2x2", gaussRect(2, 3), 8},
		{"triangle", triangle3, 0.5},
		{"wedge", wedge6(), 1},
		{"tetrahedron", tetra1, 1. / 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := 0.0
			for _, q := range tt.rule {
				sum += q.w
			}
			assert.InDelta(t, tt.volume, sum, 1e-12)
		})
	}
}

// ============================================================================
// Springs, rods and bars
// ============================================================================

func TestSpring(t *testing.T) {
	t.Run("grounded", func(t *testing.T) {
		out, err := evaluate(t, 1, rec("GRID", 1, nil, 0.0, 0.0, 0.0), rec("CELAS2", 1, 100.0, 1, 1))
		require.NoError(t, err)
		assert.False(t, out.Basic)
		assert.Equal(t, []model.DOF{{Node: 1, Component: 1}}, out.DOFs)
		assert.Equal(t, 100.0, out.K.At(0, 0))
		assert.Nil(t, out.M)
	})
	t.Run("two nodes", func(t *testing.T) {
		out, err := evaluate(t, 1,
			rec("GRID", 1, nil, 0.0, 0.0, 0.0), rec("GRID", 2, nil, 1.0, 0.0, 0.0),
			rec("CELAS1", 1, 5, 1, 3, 2, 2), rec("PELAS", 5, 50.0))
		require.NoError(t, err)
		assert.Equal(t, []model.DOF{{Node: 1, Component: 3}, {Node: 2, Component: 2}}, out.DOFs)
		assert.Equal(t, 50.0, out.K.At(0, 0))
		assert.Equal(t, -50.0, out.K.At(0, 1))
		assert.Equal(t, 1, out.EID)
		assert.Equal(t, model.CELAS1, out.Card)
	})
}

func TestRod_AxialAndTorsion(t *testing.T) {
	out, err := evaluate(t, 10,
		rec("GRID", 1, nil, 0.0, 0.0, 0.0), rec("GRID", 2, nil, 2.0, 0.0, 0.0),
		rec("CONROD", 10, 1, 2, 100, 0.5, 0.25, nil, 1.0),
		rec("MAT1", 100, 1.0e7, nil, 0.25, 0.1))
	require.NoError(t, err)
	require.True(t, out.Basic)
	g := 1.0e7 / 2.5

	assert.InDelta(t, 1.0e7*0.5/2, out.K.At(0, 0), 1e-6)
	assert.InDelta(t, -1.0e7*0.5/2, out.K.At(0, 6), 1e-6)
	assert.InDelta(t, g*0.25/2, out.K.At(3, 3), 1e-6)
	assert.InDelta(t, -g*0.25/2, out.K.At(3, 9), 1e-6)
	assert.Zero(t, out.K.At(1, 1))
	// (rho A + nsm) L / 2
	assert.InDelta(t, (0.1*0.5+1)*2/2, out.M.At(0, 0), 1e-12)
	assert.Zero(t, out.M.At(3, 3))
}

func TestRod_Inclined(t *testing.T) {
	out, err := evaluate(t, 10,
		rec("GRID", 1, nil, 0.0, 0.0, 0.0), rec("GRID", 2, nil, 3.0, 4.0, 0.0),
		rec("CONROD", 10, 1, 2, 100, 1.0),
		rec("MAT1", 100, 5.0, nil, 0.3))
	require.NoError(t, err)
	k := 5.0 / 5
	assert.InDelta(t, k*0.6*0.6, out.K.At(0, 0), 1e-12)
	assert.InDelta(t, k*0.6*0.8, out.K.At(0, 1), 1e-12)
	assert.InDelta(t, -k*0.8*0.8, out.K.At(1, 7), 1e-12)
	for c := 0; c < 3; c++ {
		assert.Less(t, residual(out.K, rigidTranslation(2, c)), 1e-12)
	}
}

func TestRod_ZeroLength(t *testing.T) {
	_, err := evaluate(t, 10,
		rec("GRID", 1, nil, 1.0, 1.0, 1.0), rec("GRID", 2, nil, 1.0, 1.0, 1.0),
		rec("CONROD", 10, 1, 2, 100, 1.0),
		rec("MAT1", 100, 5.0, nil, 0.3))
	var geo *model.ElementGeometryError
	require.ErrorAs(t, err, &geo)
	assert.Equal(t, 10, geo.EID)
	assert.Equal(t, model.CONROD, geo.Card)
	assert.Contains(t, geo.Reason, "zero length")
}

func barModel(orient ...any) []model.Record {
	cbar := append([]any{20, 200, 1, 2}, orient...)
	return []model.Record{
		rec("GRID", 1, nil, 0.0, 0.0, 0.0),
		rec("GRID", 2, nil, 2.0, 0.0, 0.0),
		rec("GRID", 3, nil, 0.0, 0.0, 5.0),
		rec("CBAR", cbar...),
		rec("PBAR", 200, 300, 1.0, 2.0, 3.0, nil, 4.0),
		rec("MAT1", 300, 1.0e6, nil, 0.3),
	}
}

func TestBar_BendingPlanes(t *testing.T) {
	tests := []struct {
		name   string
		orient []any
		// basic translation index bending with I1 and with I2
		v, w int
	}{
		{"X along y", []any{0.0, 1.0, 0.0}, 1, 2},
		{"X along z", []any{0.0, 0.0, 1.0}, 2, 1},
		{"G0 along z", []any{3}, 2, 1},
	}
	l := 2.0
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := evaluate(t, 20, barModel(tt.orient...)...)
			require.NoError(t, err)
			assert.InDelta(t, 1.0e6*1.0/l, out.K.At(0, 0), 1e-6)
			assert.InDelta(t, 12*1.0e6*2.0/(l*l*l), out.K.At(tt.v, tt.v), 1e-6)
			assert.InDelta(t, 12*1.0e6*3.0/(l*l*l), out.K.At(tt.w, tt.w), 1e-6)
			for c := 0; c < 3; c++ {
				assert.Less(t, residual(out.K, rigidTranslation(2, c)), 1e-12)
			}
		})
	}
}

func TestBar_OrientationParallel(t *testing.T) {
	_, err := evaluate(t, 20, barModel(1.0, 0.0, 0.0)...)
	var geo *model.ElementGeometryError
	require.ErrorAs(t, err, &geo)
	assert.Contains(t, geo.Reason, "parallel")
}

// ============================================================================
// Shells
// ============================================================================

var unitSquare = [][3]float64{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}

func shellModel(card string, pts [][3]float64) []model.Record {
	fields := []any{1, 2}
	for i := range pts {
		fields = append(fields, i+1)
	}
	return with(grids(pts...),
		rec(card, fields...),
		rec("PSHELL", 2, 3, 0.1, 3, nil, 3),
		rec("MAT1", 3, 1.0e7, nil, 0.3, 2.0))
}

func TestQuad4_RigidBodyModes(t *testing.T) {
	out, err := evaluate(t, 1, shellModel("CQUAD4", unitSquare)...)
	require.NoError(t, err)
	require.Len(t, out.DOFs, 24)
	for c := 0; c < 3; c++ {
		assert.Less(t, residual(out.K, rigidTranslation(4, c)), 1e-10, "translation %d", c)
	}
	assert.Less(t, residual(out.K, rigidRotationZ(unitSquare)), 1e-10)
	assert.InDelta(t, 2.0*0.1*1, totalMass(out.M), 1e-12)
}

func TestQuad4_PositiveDiagonal(t *testing.T) {
	pts := [][3]float64{{0, 0, 0}, {2, 0, 0}, {2.5, 1.5, 0}, {0.2, 1, 0}}
	out, err := evaluate(t, 1, shellModel("CQUAD4", pts)...)
	require.NoError(t, err)
	for i := 0; i < 24; i++ {
		assert.Greater(t, out.K.At(i, i), 0.0, "diagonal %d", i)
	}
}

func TestQuad4_BadGeometry(t *testing.T) {
	tests := []struct {
		name   string
		pts    [][3]float64
		reason string
	}{
		{
			name:   "reentrant corner",
			pts:    [][3]float64{{0, 0, 0}, {0.5, 100, 0}, {1, 0, 0}, {0.5, 1, 0}},
			reason: "Jacobian",
		},
		{
			name:   "bowtie",
			pts:    [][3]float64{{0, 0, 0}, {1, 0, 2}, {1, 0, 0}, {0, 0, 2}},
			reason: "normal",
		},
		{
			name:   "warped",
			pts:    [][3]float64{{0, 0, 0}, {1, 0, 0.5}, {1, 1, 0}, {0, 1, 0.5}},
			reason: "warp",
		},
		{
			name:   "collapsed",
			pts:    [][3]float64{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}},
			reason: "normal",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := evaluate(t, 1, shellModel("CQUAD4", tt.pts)...)
			var geo *model.ElementGeometryError
			require.ErrorAs(t, err, &geo)
			assert.Equal(t, model.CQUAD4, geo.Card)
			assert.Contains(t, geo.Reason, tt.reason)
		})
	}
}

func TestTria3(t *testing.T) {
	pts := [][3]float64{{0, 0, 1}, {2, 0, 1}, {0, 2, 1}}
	out, err := evaluate(t, 1, shellModel("CTRIA3", pts)...)
	require.NoError(t, err)
	require.Len(t, out.DOFs, 18)
	for c := 0; c < 3; c++ {
		assert.Less(t, residual(out.K, rigidTranslation(3, c)), 1e-10)
	}
	assert.InDelta(t, 2.0*0.1*2, totalMass(out.M), 1e-12)
}

func TestShear_InPlaneOnly(t *testing.T) {
	out, err := evaluate(t, 1, with(grids(unitSquare...),
		rec("CSHEAR", 1, 2, 1, 2, 3, 4),
		rec("PSHEAR", 2, 3, 0.1),
		rec("MAT1", 3, 1.0e7, nil, 0.3))...)
	require.NoError(t, err)
	// pure stretch along x carries no shear strain
	u := make([]float64, 24)
	for i, p := range unitSquare {
		u[6*i] = p[0]
	}
	assert.Less(t, residual(out.K, u), 1e-12)
	assert.Zero(t, out.K.At(2, 2))
}

func TestSection_Offset(t *testing.T) {
	sec := newSection()
	sec.A.Copy(mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}))
	sec.offset(0.5)
	assert.InDelta(t, 0.5, sec.B.At(0, 0), 1e-15)
	assert.InDelta(t, 0.25, sec.D.At(1, 1), 1e-15)
}

func TestPComp_SymmetricLayupHasNoCoupling(t *testing.T) {
	m, err := model.FromRecords([]model.Record{
		rec("PCOMP", 1, -0.15, nil, 5, 0.1, 0.0, 5, 0.1, 90.0, 5, 0.1, 0.0),
		rec("MAT8", 5, 1.5e7, 1.0e6, 0.3, 5.0e5, 4.0e5, 3.0e5),
	})
	require.NoError(t, err)
	require.NoError(t, xref.CrossReference(m))
	p, err := m.Properties.Get(1)
	require.NoError(t, err)
	sec, err := shellSection(p, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, sec.t, 1e-15)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, 0, sec.B.At(i, j), 1e-6)
		}
	}
	assert.Greater(t, sec.D.At(0, 0), sec.D.At(1, 1))
}

// ============================================================================
// Solids
// ============================================================================

var unitCube = [][3]float64{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

func solidModel(card string, pts [][3]float64, order ...int) []model.Record {
	fields := []any{1, 2}
	if order == nil {
		for i := range pts {
			order = append(order, i+1)
		}
	}
	for _, id := range order {
		fields = append(fields, id)
	}
	return with(grids(pts...),
		rec(card, fields...),
		rec("PSOLID", 2, 3),
		rec("MAT1", 3, 1.0e7, nil, 0.3, 4.0))
}

func TestSolids_MassAndRigidBody(t *testing.T) {
	tests := []struct {
		name   string
		card   string
		pts    [][3]float64
		order  []int
		volume float64
	}{
		{"hexa", "CHEXA", unitCube, nil, 1},
		{"hexa inverted", "CHEXA", unitCube, []int{5, 6, 7, 8, 1, 2, 3, 4}, 1},
		{"penta", "CPENTA", [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 2}, {1, 0, 2}, {0, 1, 2}}, nil, 1},
		{"tetra", "CTETRA", [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, nil, 1. / 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := evaluate(t, 1, solidModel(tt.card, tt.pts, tt.order...)...)
			require.NoError(t, err)
			n := len(tt.pts)
			require.Len(t, out.DOFs, 6*n)
			assert.InDelta(t, 4.0*tt.volume, totalMass(out.M), 1e-12)
			for c := 0; c < 3; c++ {
				assert.Less(t, residual(out.K, rigidTranslation(n, c)), 1e-10)
			}
			// rotations carry no stiffness
			assert.Zero(t, out.K.At(3, 3))
		})
	}
}

func TestHexa_UniaxialStress(t *testing.T) {
	out, err := evaluate(t, 1, solidModel("CHEXA", unitCube)...)
	require.NoError(t, err)
	// u = eps*x, v = -nu*eps*y, w = -nu*eps*z is uniaxial stress E*eps
	eps, nu := 1e-3, 0.3
	u := make([]float64, 48)
	for i, p := range unitCube {
		u[6*i] = eps * p[0]
		u[6*i+1] = -nu * eps * p[1]
		u[6*i+2] = -nu * eps * p[2]
	}
	var f mat.VecDense
	f.MulVec(out.K, mat.NewVecDense(48, u))
	fx := 0.0
	for i, p := range unitCube {
		if p[0] == 1 {
			fx += f.AtVec(6 * i)
			assert.InDelta(t, 0, f.AtVec(6*i+1), 1e-6)
		}
	}
	assert.InDelta(t, 1.0e7*eps, fx, 1e-6)
}

func TestSolid_Degenerate(t *testing.T) {
	flat := make([][3]float64, 8)
	for i, p := range unitCube {
		flat[i] = [3]float64{p[0], p[1], 0}
	}
	// the top face repeats the bottom positions under distinct ids
	_, err := evaluate(t, 1, solidModel("CHEXA", flat)...)
	var geo *model.ElementGeometryError
	require.ErrorAs(t, err, &geo)
	assert.Contains(t, geo.Reason, "Jacobian")
}

func TestSolid_MidsideUnsupported(t *testing.T) {
	pts := [][3]float64{
		{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1},
		{0.5, 0, 0}, {0.5, 0.5, 0}, {0, 0.5, 0}, {0, 0, 0.5}, {0.5, 0, 0.5}, {0, 0.5, 0.5},
	}
	_, err := evaluate(t, 1, solidModel("CTETRA", pts)...)
	assert.ErrorIs(t, err, model.ErrUnsupported)
}

// ============================================================================
// Concentrated mass and cracks
// ============================================================================

func TestConm2_Offset(t *testing.T) {
	out, err := evaluate(t, 7,
		rec("GRID", 1, nil, 0.0, 0.0, 0.0),
		rec("CONM2", 7, 1, 0, 2.0, 0.0, 0.0, 1.0, 1.0, nil, 1.0, nil, nil, 3.0))
	require.NoError(t, err)
	assert.Nil(t, out.K)
	m := out.M
	assert.Equal(t, 2.0, m.At(0, 0))
	assert.Equal(t, 2.0, m.At(2, 2))
	// offset r = (0,0,1): theta_y couples with x
	assert.InDelta(t, 2.0, m.At(0, 4), 1e-15)
	assert.InDelta(t, -2.0, m.At(1, 3), 1e-15)
	assert.InDelta(t, 1.0+2.0, m.At(3, 3), 1e-15)
	assert.InDelta(t, 3.0, m.At(5, 5), 1e-15)
}

func TestConm2_AbsoluteCG(t *testing.T) {
	out, err := evaluate(t, 7,
		rec("GRID", 1, nil, 1.0, 0.0, 0.0),
		rec("CONM2", 7, 1, -1, 1.0, 1.0, 0.0, 1.0))
	require.NoError(t, err)
	// same offset as above, relative to the grid
	assert.InDelta(t, 1.0, out.M.At(0, 4), 1e-15)
}

func TestCrackUnsupported(t *testing.T) {
	c := &model.Crack{ElementBase: model.ElementBase{EID: 4, Type: model.CRAC2D}}
	_, err := Evaluate(c, DefaultOptions())
	assert.True(t, errors.Is(err, model.ErrUnsupported))
}

// ============================================================================
// Loads
// ============================================================================

func TestSurfacePressure(t *testing.T) {
	t.Run("uniform quad", func(t *testing.T) {
		pos := make([]r3.Vec, 4)
		for i, p := range unitSquare {
			pos[i] = vec(p)
		}
		f, err := SurfacePressure(pos, []float64{2, 2, 2, 2}, nil)
		require.NoError(t, err)
		for _, fi := range f {
			assert.InDelta(t, 0.5, fi.Z, 1e-14)
			assert.InDelta(t, 0, fi.X, 1e-14)
		}
	})
	t.Run("triangle with direction", func(t *testing.T) {
		pos := []r3.Vec{{}, {X: 1}, {Y: 1}}
		f, err := SurfacePressure(pos, []float64{3, 3, 3}, &r3.Vec{X: 2})
		require.NoError(t, err)
		for _, fi := range f {
			assert.InDelta(t, 0.5, fi.X, 1e-14)
			assert.InDelta(t, 0, fi.Z, 1e-14)
		}
	})
	t.Run("linear pressure", func(t *testing.T) {
		pos := []r3.Vec{{}, {X: 1}, {Y: 1}}
		f, err := SurfacePressure(pos, []float64{1, 0, 0}, nil)
		require.NoError(t, err)
		// A/12 (2 p_i + p_j + p_k)
		assert.InDelta(t, 0.5/12*2, f[0].Z, 1e-14)
		assert.InDelta(t, 0.5/12, f[1].Z, 1e-14)
	})
	t.Run("zero area", func(t *testing.T) {
		pos := []r3.Vec{{}, {X: 1}, {X: 2}}
		_, err := SurfacePressure(pos, []float64{1, 1, 1}, nil)
		assert.Error(t, err)
	})
}

func TestThermalAxial(t *testing.T) {
	m, err := model.FromRecords([]model.Record{
		rec("GRID", 1, nil, 0.0, 0.0, 0.0), rec("GRID", 2, nil, 0.0, 2.0, 0.0),
		rec("CONROD", 10, 1, 2, 100, 0.5),
		rec("MAT1", 100, 1.0e6, nil, 0.3, nil, 1.0e-5, 20.0),
	})
	require.NoError(t, err)
	require.NoError(t, xref.CrossReference(m))
	e, _ := m.Elements.Get(10)

	nodes, f, ok, err := ThermalAxial(e, map[int]float64{1: 120, 2: 120})
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, nodes, 2)
	p := 1.0e6 * 0.5 * 1.0e-5 * 100
	assert.InDelta(t, -p, f[0].Y, 1e-9)
	assert.InDelta(t, p, f[1].Y, 1e-9)

	// a missing grid sits at TREF
	_, f, _, err = ThermalAxial(e, map[int]float64{1: 120})
	require.NoError(t, err)
	assert.InDelta(t, p/2, f[1].Y, 1e-9)
}
