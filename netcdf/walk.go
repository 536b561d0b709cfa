package netcdf

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/robert-malhotra/go-netcdf4/container"
)

// readMetadata loads the entire metadata tree of an open container:
// each group's own members before any of its subgroups, every
// subgroup fully recursed before the next sibling group, then a
// second pass that binds every variable axis to a Dimension.
func (f *File) readMetadata() error {
	rootC, err := f.c.Root()
	if err != nil {
		return err
	}
	f.root = &Group{file: f, name: "/", c: rootC}

	if err := f.readGroupTree(f.root); err != nil {
		return err
	}

	if err := f.matchDimscales(f.root); err != nil {
		return err
	}
	return f.fixUnlimitedLens(f.root)
}

// readGroupTree reads a group's members, then recurses into each
// subgroup in turn. Deferring subgroups until all of the group's own
// datasets have been read keeps dimension-id assignment stable for
// files whose scales carry no recorded id.
func (f *File) readGroupTree(g *Group) error {
	subs, err := f.readGroup(g)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if err := f.readGroupTree(sub); err != nil {
			return err
		}
	}
	return nil
}

// readGroup reads one group's members. Named types are resolved
// immediately since datasets later in the iteration may use them;
// subgroups are only opened and collected for the caller to recurse
// into.
func (f *File) readGroup(g *Group) ([]*Group, error) {
	order := container.CreationOrder
	if !g.c.TracksCreationOrder() {
		// Without recorded creation order the member numbering this
		// model promises cannot be reproduced on write, so such files
		// are readable but never writable.
		if !f.readOnly {
			return nil, fmt.Errorf("group %q: %w", g.name, ErrCantWrite)
		}
		order = container.NameOrder
	}
	children, err := g.c.Children(order)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", g.name, err)
	}

	var subs []*Group
	for _, ch := range children {
		switch ch.Kind {
		case container.KindNamedType:
			nt, err := g.c.OpenNamedType(ch.Name)
			if err != nil {
				return nil, fmt.Errorf("group %q: %w", g.name, err)
			}
			if _, err := f.readNamedType(g, ch.Name, nt); err != nil {
				return nil, fmt.Errorf("group %q: %w", g.name, err)
			}
		case container.KindGroup:
			cg, err := g.c.OpenGroup(ch.Name)
			if err != nil {
				return nil, fmt.Errorf("group %q: %w", g.name, err)
			}
			sub := &Group{file: f, parent: g, name: ch.Name, c: cg}
			g.groups = append(g.groups, sub)
			subs = append(subs, sub)
		case container.KindDataset:
			if err := f.readDataset(g, ch.Name); err != nil {
				return nil, fmt.Errorf("group %q: %w", g.name, err)
			}
		}
	}
	return subs, nil
}

// readDataset classifies one dataset as a dimension scale, a
// variable, or both (a coordinate variable). Datasets whose type the
// model cannot represent are skipped, not fatal: foreign tools may
// store arbitrary objects next to ours.
func (f *File) readDataset(g *Group, name string) error {
	ds, err := g.c.OpenDataset(name)
	if err != nil {
		return err
	}

	isScale, err := ds.IsScale()
	if err != nil {
		ds.Close()
		return err
	}
	if !isScale {
		if _, err := f.readVar(g, ds, name); err != nil {
			ds.Close()
			if errors.Is(err, ErrBadType) {
				return nil
			}
			return err
		}
		return nil
	}

	sp, err := ds.Space()
	if err != nil {
		ds.Close()
		return err
	}
	var size, maxSize uint64
	if sp.Rank() >= 1 {
		size = sp.Dims[0]
		maxSize = sp.MaxDims[0]
	}
	d, err := f.readScale(g, ds, name, size, maxSize)
	if err != nil {
		ds.Close()
		return err
	}

	scaleName, _, err := ds.ScaleName()
	if err != nil {
		ds.Close()
		return err
	}
	if isDimWithoutVariable(scaleName) {
		// No coordinate variable. The dimension keeps the dataset
		// open so the scale stays resolvable for its lifetime.
		d.scale = ds
		return nil
	}

	v, err := f.readVar(g, ds, name)
	if err != nil {
		if errors.Is(err, ErrBadType) {
			d.scale = ds
			return nil
		}
		ds.Close()
		return err
	}
	d.coord = v
	if len(v.dimIDs) >= 1 && v.dimIDs[0] < 0 {
		v.dimIDs[0] = d.id
	}
	if len(v.dims) >= 1 {
		v.dims[0] = d
	}
	return nil
}

// matchDimscales binds every unresolved variable axis to a
// Dimension: coordinate variables by recovered dimension id, data
// variables by the object number of the scale attached to the axis.
// Axes with no attached scale get a fresh anonymous dimension sized
// to the extent.
func (f *File) matchDimscales(g *Group) error {
	for _, v := range g.vars {
		sp, err := v.ds.Space()
		if err != nil {
			return fmt.Errorf("variable %q: %w", v.name, err)
		}
		for axis := range v.dims {
			if v.dims[axis] != nil {
				continue
			}
			if v.dimIDs[axis] >= 0 {
				d := g.findDim(v.dimIDs[axis])
				if d == nil {
					return fmt.Errorf("variable %q axis %d: dimension id %d: %w",
						v.name, axis, v.dimIDs[axis], ErrVarMeta)
				}
				v.dims[axis] = d
				continue
			}
			objno, ok, err := v.ds.AttachedScale(axis)
			if err != nil {
				return fmt.Errorf("variable %q axis %d: %w", v.name, axis, err)
			}
			if ok {
				if d := g.findDimByObjno(objno); d != nil {
					v.dims[axis] = d
					v.dimIDs[axis] = d.id
					continue
				}
			}
			d, err := f.phonyDim(g, sp.Dims[axis], sp.MaxDims[axis])
			if err != nil {
				return err
			}
			v.dims[axis] = d
			v.dimIDs[axis] = d.id
		}
	}
	for _, sub := range g.groups {
		if err := f.matchDimscales(sub); err != nil {
			return err
		}
	}
	return nil
}

// phonyDim makes up a dimension for a dataset axis with no scale
// attached, as happens in files written by plain container tools.
func (f *File) phonyDim(g *Group, size, maxSize uint64) (*Dimension, error) {
	name := fmt.Sprintf("phony_dim_%d", f.nextDimID)
	d := &Dimension{group: g, name: name, id: f.nextDimID}
	f.nextDimID++
	d.len, d.tooLong = clampDimLen(size, strconv.IntSize)
	if maxSize == container.Unlimited {
		d.unlimited = true
	}
	g.dims = append(g.dims, d)
	return d, nil
}

// fixUnlimitedLens sets the length of every unlimited dimension
// without a coordinate variable to the largest extent any variable
// has along it.
func (f *File) fixUnlimitedLens(g *Group) error {
	for _, d := range g.dims {
		if !d.unlimited || d.coord != nil {
			continue
		}
		max, err := maxExtentAlong(g, d)
		if err != nil {
			return err
		}
		if max > d.len {
			d.len = max
		}
	}
	for _, sub := range g.groups {
		if err := f.fixUnlimitedLens(sub); err != nil {
			return err
		}
	}
	return nil
}

// maxExtentAlong scans the subtree below the dimension's group for
// variables using the dimension and returns their largest extent
// along it.
func maxExtentAlong(g *Group, d *Dimension) (uint64, error) {
	var max uint64
	for _, v := range g.vars {
		for axis, vd := range v.dims {
			if vd != d || v.ds == nil {
				continue
			}
			sp, err := v.ds.Space()
			if err != nil {
				return 0, fmt.Errorf("variable %q: %w", v.name, err)
			}
			if axis < len(sp.Dims) && sp.Dims[axis] > max {
				max = sp.Dims[axis]
			}
		}
	}
	for _, sub := range g.groups {
		m, err := maxExtentAlong(sub, d)
		if err != nil {
			return 0, err
		}
		if m > max {
			max = m
		}
	}
	return max, nil
}
