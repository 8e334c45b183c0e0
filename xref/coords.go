package xref

import (
	"fmt"
	"slices"

	"github.com/notargets/bdfsolve/model"
	"gonum.org/v1/gonum/spatial/r3"
)

type visitState uint8

const (
	unvisited visitState = iota
	visiting
	done
)

// coordWalker resolves coordinate systems depth first. CORD2x depends on its
// RID and CORD1x on the CP systems of its three grids.
type coordWalker struct {
	r     *resolver
	state map[int]visitState
	stack []int
}

func newCoordWalker(r *resolver) *coordWalker {
	return &coordWalker{r: r, state: make(map[int]visitState)}
}

func (w *coordWalker) walkAll() error {
	m := w.r.m
	if w.r.full {
		// Rebuild from scratch so re-running cross-reference picks up edits
		_ = m.Coords.Each(func(c *model.Coord) error {
			c.Unresolve()
			return nil
		})
	}
	return m.Coords.Each(w.visit)
}

func (w *coordWalker) visitID(cid int, referrer string) error {
	if cid == 0 {
		return nil
	}
	c, err := w.r.coord(cid, referrer)
	if err != nil {
		return err
	}
	return w.visit(c)
}

func (w *coordWalker) visit(c *model.Coord) error {
	switch w.state[c.CID] {
	case done:
		return nil
	case visiting:
		i := slices.Index(w.stack, c.CID)
		chain := append(slices.Clone(w.stack[i:]), c.CID)
		return &model.CyclicReferenceError{Class: model.CoordClass, Chain: chain}
	}
	w.state[c.CID] = visiting
	w.stack = append(w.stack, c.CID)

	var err error
	if c.ByGrids() {
		err = w.visitCord1(c)
	} else {
		err = w.visitCord2(c)
	}
	if err != nil {
		return err
	}

	w.stack = w.stack[:len(w.stack)-1]
	w.state[c.CID] = done
	return nil
}

func (w *coordWalker) visitCord2(c *model.Coord) error {
	referrer := fmt.Sprintf("%s %d RID", c.Type, c.CID)
	if err := w.visitID(c.RID, referrer); err != nil {
		return err
	}
	if !w.r.full {
		return nil
	}
	parent, err := w.r.coordRef(c.RID, referrer)
	if err != nil {
		return err
	}
	c.RIDRef = parent
	return c.Define(parent.ToBasic(c.A), parent.ToBasic(c.B), parent.ToBasic(c.C))
}

func (w *coordWalker) visitCord1(c *model.Coord) error {
	for i, gid := range c.G {
		referrer := fmt.Sprintf("%s %d G%d", c.Type, c.CID, i+1)
		n, err := w.r.grid(gid, referrer)
		if err != nil {
			return err
		}
		if err := w.visitID(n.CP, fmt.Sprintf("GRID %d CP", n.NID)); err != nil {
			return err
		}
		if w.r.full {
			c.GRefs[i] = n
		}
	}
	if !w.r.full {
		return nil
	}
	var pts [3]r3.Vec
	for i, n := range c.GRefs {
		cp, err := w.r.coordRef(n.CP, fmt.Sprintf("GRID %d CP", n.NID))
		if err != nil {
			return err
		}
		pts[i] = cp.ToBasic(n.X)
	}
	return c.Define(pts[0], pts[1], pts[2])
}
