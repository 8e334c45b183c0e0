package model

import (
	"slices"
	"strconv"
)

// ScaledEntity is a set member with the product of the LOAD scale factors
// leading to it
type ScaledEntity struct {
	Entity Entity
	Scale  float64
}

// ExpandSPCs returns the SPC and SPC1 cards of set sid with SPCADD expanded
func (m *Model) ExpandSPCs(sid int) ([]Entity, error) {
	return unscaled(expandSet(m.SPCs, sid))
}

// ExpandMPCs returns the MPC cards of set sid with MPCADD expanded
func (m *Model) ExpandMPCs(sid int) ([]Entity, error) {
	return unscaled(expandSet(m.MPCs, sid))
}

// ExpandLoads returns the load cards of set sid with LOAD combinations
// multiplied out
func (m *Model) ExpandLoads(sid int) ([]ScaledEntity, error) {
	return expandSet(m.Loads, sid)
}

// CheckSetCycles walks every combination card of a registry
func CheckSetCycles(reg *SetRegistry[Entity]) error {
	for _, sid := range reg.IDs() {
		if _, err := expandSet(reg, sid); err != nil {
			return err
		}
	}
	return nil
}

func expandSet(reg *SetRegistry[Entity], sid int) ([]ScaledEntity, error) {
	var out []ScaledEntity
	if err := expandInto(reg, sid, 1, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func expandInto(reg *SetRegistry[Entity], sid int, scale float64, path []int, out *[]ScaledEntity) error {
	if i := slices.Index(path, sid); i >= 0 {
		chain := append(slices.Clone(path[i:]), sid)
		return &CyclicReferenceError{Class: reg.Class(), Chain: chain}
	}
	cards, err := reg.Get(sid)
	if err != nil {
		if len(path) > 0 {
			u := err.(*UnknownIDError)
			u.Referrer = reg.Class().String() + " combination " + strconv.Itoa(path[len(path)-1])
		}
		return err
	}
	path = append(path, sid)
	for _, c := range cards {
		combo, ok := c.(*SetCombination)
		if !ok {
			*out = append(*out, ScaledEntity{Entity: c, Scale: scale})
			continue
		}
		for i, child := range combo.Sets {
			s := scale * combo.Scale
			if combo.Scales != nil {
				s *= combo.Scales[i]
			}
			if err := expandInto(reg, child, s, path, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func unscaled(in []ScaledEntity, err error) ([]Entity, error) {
	if err != nil {
		return nil, err
	}
	out := make([]Entity, len(in))
	for i, s := range in {
		out[i] = s.Entity
	}
	return out, nil
}
