// Package assembly scatters element matrices into global sparse stiffness and
// mass matrices, builds load vectors and reduces the system to its free DOFs
// under single point, multi point and rigid element constraints.
//
// Global DOFs are expressed in the displacement (CD) frame of their node.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/james-bowman/sparse"
	"golang.org/x/sync/errgroup"

	"github.com/notargets/bdfsolve/dof"
	"github.com/notargets/bdfsolve/element"
	"github.com/notargets/bdfsolve/model"
	"github.com/notargets/bdfsolve/partitions"
)

// Options control assembly and reduction
type Options struct {
	Element element.Options

	// Workers bounds concurrent element evaluation; zero means GOMAXPROCS
	Workers       int
	PartitionSize int
	Strategy      partitions.PartitionStrategy

	// AutoSPC constrains unloaded free DOFs without stiffness. A free DOF is
	// without stiffness when its largest reduced stiffness entry is at most
	// AutoSPCTolerance times the largest entry of the matrix.
	AutoSPC          bool
	AutoSPCTolerance float64
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		Element:          element.DefaultOptions(),
		PartitionSize:    64,
		Strategy:         partitions.BlockPartition,
		AutoSPC:          true,
		AutoSPCTolerance: 1e-8,
	}
}

// System is the assembled g-set stiffness and mass
type System struct {
	Map     *dof.Map
	K, M    *sparse.CSR
	Layout  *partitions.PartitionLayout
	HasMass bool

	opts   Options
	frames frames
}

// Assemble evaluates every element of a cross-referenced model and scatters
// the results in element ID order
func Assemble(ctx context.Context, m *model.Model, dm *dof.Map, opts Options) (*System, error) {
	if !m.CrossReferenced {
		return nil, errors.New("assembly: model is not cross-referenced")
	}
	fr, err := newFrames(m)
	if err != nil {
		return nil, err
	}

	var elems []model.Element
	_ = m.Elements.Each(func(e model.Element) error {
		elems = append(elems, e)
		return nil
	})
	shapes := make([]element.Shape, len(elems))
	counts := make([]int, len(elems))
	for k, e := range elems {
		b := e.Base()
		shapes[k], _, _ = element.ShapeOf(b.Type)
		counts[k] = 6 * len(b.Nodes)
	}
	size := opts.PartitionSize
	if size <= 0 {
		size = DefaultOptions().PartitionSize
	}
	pb := &partitions.PartitionBuilder{
		Workload:            partitions.NewWorkload(shapes, counts),
		TargetPartitionSize: size,
		Strategy:            opts.Strategy,
	}
	layout, err := pb.BuildPartitions()
	if err != nil {
		return nil, fmt.Errorf("assembly: %w", err)
	}

	results, err := evaluate(ctx, elems, layout, opts)
	if err != nil {
		return nil, err
	}

	n := dm.Len()
	kd, md := sparse.NewDOK(n, n), sparse.NewDOK(n, n)
	hasMass := false
	for _, out := range results {
		idx := make([]int, len(out.DOFs))
		for i, d := range out.DOFs {
			gi, ok := dm.Index(d)
			if !ok {
				return nil, fmt.Errorf("assembly: %s %d: dof %s is not in the dof map", out.Card, out.EID, d)
			}
			idx[i] = gi
		}
		if out.Basic {
			fr.toDisplacementFrames(out)
		}
		if out.K != nil {
			scatter(kd, idx, out.K)
		}
		if out.M != nil {
			hasMass = scatter(md, idx, out.M) || hasMass
		}
	}
	return &System{
		Map:     dm,
		K:       kd.ToCSR(),
		M:       md.ToCSR(),
		Layout:  layout,
		HasMass: hasMass,
		opts:    opts,
		frames:  fr,
	}, nil
}

// evaluate runs the element evaluators one partition per worker, shape group
// by shape group. Each element writes its own slot; the first failure cancels
// the remaining partitions.
func evaluate(ctx context.Context, elems []model.Element, layout *partitions.PartitionLayout,
	opts Options) ([]*element.Matrices, error) {

	results := make([]*element.Matrices, len(elems))
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range layout.Partitions {
		g.Go(func() error {
			for _, grp := range p.TypeGroups {
				for _, li := range grp.LocalIDs {
					if err := gctx.Err(); err != nil {
						return err
					}
					k := p.Elements[li]
					out, err := element.Evaluate(elems[k], opts.Element)
					if err != nil {
						return fmt.Errorf("partition %d: %w", layout.GetPartition(k), err)
					}
					results[k] = out
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// scatter adds the symmetric element matrix a at global indices idx and
// reports whether any entry was nonzero
func scatter(d *sparse.DOK, idx []int, a interface{ At(i, j int) float64 }) bool {
	nonzero := false
	for i, gi := range idx {
		for j, gj := range idx {
			v := a.At(i, j)
			if v == 0 {
				continue
			}
			nonzero = true
			d.Set(gi, gj, d.At(gi, gj)+v)
		}
	}
	return nonzero
}

// MulVec returns a x for a sparse matrix a
func MulVec(a *sparse.CSR, x []float64) []float64 {
	r, _ := a.Dims()
	y := make([]float64, r)
	a.DoNonZero(func(i, j int, v float64) {
		y[i] += v * x[j]
	})
	return y
}
