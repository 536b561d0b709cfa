package netcdf

import (
	"encoding/binary"
	"fmt"

	"github.com/robert-malhotra/go-netcdf4/container"
)

// defaultUnlimitedChunk is the chunk extent used along unlimited
// dimensions when the caller did not pick chunk sizes.
const defaultUnlimitedChunk = 512

// writeMetadata writes everything defined since the last write to the
// container: groups, committed types, dimension scales, variable
// datasets, scale attachments, and dirty attributes. Parents are
// written before children so scales are always resolvable by the time
// a variable references them.
func (f *File) writeMetadata() error {
	if err := f.writeGroup(f.root); err != nil {
		return err
	}
	if err := f.writeProvenance(); err != nil {
		return err
	}
	f.dirtyMeta = false
	return nil
}

func (f *File) writeGroup(g *Group) error {
	if g.c == nil {
		cg, err := g.parent.c.CreateGroup(g.name)
		if err != nil {
			return fmt.Errorf("group %q: %w", g.name, err)
		}
		g.c = cg
		g.dirty = false
	}

	for _, t := range g.types {
		if t.committed {
			continue
		}
		committed, err := g.c.CommitType(t.name, t.native)
		if err != nil {
			return fmt.Errorf("type %q: %w", t.name, err)
		}
		delete(f.typeCache, t.native.ID())
		t.native = committed
		t.committed = true
		f.typeCache[committed.ID()] = t
	}

	for _, d := range g.dims {
		if err := f.writeDim(g, d); err != nil {
			return err
		}
	}
	for _, v := range g.vars {
		if err := f.writeVar(g, v); err != nil {
			return err
		}
	}
	for _, v := range g.vars {
		if err := f.attachScales(g, v); err != nil {
			return err
		}
	}

	for _, a := range g.atts.atts {
		if !a.dirty {
			continue
		}
		if err := f.writeAttr(g.c, a); err != nil {
			return fmt.Errorf("group %q: %w", g.name, err)
		}
	}

	for _, sub := range g.groups {
		if err := f.writeGroup(sub); err != nil {
			return err
		}
	}
	return nil
}

// writeDim materializes a dimension that has no coordinate variable
// as a scale dataset carrying the no-variable name marker and the
// hidden dimension id.
func (f *File) writeDim(g *Group, d *Dimension) error {
	if !d.dirty {
		return nil
	}
	if d.coord != nil {
		// The coordinate variable's dataset is the scale; the hidden
		// id is written with the variable.
		d.dirty = false
		return nil
	}

	space := container.Space{Dims: []uint64{d.len}, MaxDims: []uint64{d.len}}
	props := container.DatasetProps{
		Scale:     true,
		ScaleName: fmt.Sprintf("%s%10d", dimNoVarMarker, d.len),
	}
	if d.unlimited {
		space.MaxDims[0] = container.Unlimited
		props.Chunks = []uint64{defaultUnlimitedChunk}
	}
	ds, err := g.c.CreateDataset(d.name, f.c.NativeType(container.NativeFloat), space, props)
	if err != nil {
		return fmt.Errorf("dimension %q: %w", d.name, err)
	}
	if err := writeDimIDAttr(f, ds, d.id); err != nil {
		ds.Close()
		return fmt.Errorf("dimension %q: %w", d.name, err)
	}
	d.scale = ds
	d.objno = ds.ObjectNo()
	d.hasObj = true
	d.dirty = false
	return nil
}

func (f *File) writeVar(g *Group, v *Variable) error {
	if !v.written {
		storeName := v.name
		if v.nonCoord {
			storeName = nonCoordPrefix + v.name
		}

		space := container.Space{
			Dims:    make([]uint64, len(v.dims)),
			MaxDims: make([]uint64, len(v.dims)),
		}
		unlimited := false
		for i, d := range v.dims {
			space.Dims[i] = d.len
			space.MaxDims[i] = d.len
			if d.unlimited {
				space.MaxDims[i] = container.Unlimited
				unlimited = true
			}
		}

		if v.chunks == nil && (unlimited || v.deflate || v.shuffle ||
			v.fletcher32 || v.filterID != 0) {
			v.chunks = v.defaultChunks()
			v.contiguous = false
		}

		props := container.DatasetProps{
			Chunks:            v.chunks,
			Shuffle:           v.shuffle,
			Fletcher32:        v.fletcher32,
			ExtraFilter:       v.filterID,
			ExtraFilterParams: v.filterParams,
			Fill:              v.fill,
			NoFill:            v.noFill || f.fill == FillOff,
			Cache:             &v.cache,
		}
		if v.deflate {
			props.DeflateLevel = v.deflateLevel
			if props.DeflateLevel == 0 {
				props.DeflateLevel = 1
			}
		}
		if v.isScale {
			props.Scale = true
			props.ScaleName = v.name
		}

		ds, err := g.c.CreateDataset(storeName, v.typ.native, space, props)
		if err != nil {
			return fmt.Errorf("variable %q: %w", v.name, err)
		}
		v.ds = ds
		v.written = true

		if v.isScale {
			if err := writeDimIDAttr(f, ds, v.dims[0].id); err != nil {
				return fmt.Errorf("variable %q: %w", v.name, err)
			}
			v.dims[0].hasObj = true
			v.dims[0].objno = ds.ObjectNo()
			if len(v.dims) > 1 {
				if err := writeCoordinatesAttr(f, ds, v.dimIDs); err != nil {
					return fmt.Errorf("variable %q: %w", v.name, err)
				}
			}
		}
		if err := v.adjustVarCache(); err != nil {
			return fmt.Errorf("variable %q: %w", v.name, err)
		}
		v.dirty = false
	}

	for _, a := range v.atts.atts {
		if !a.dirty || a.name == FillAttrName {
			continue
		}
		if err := f.writeAttr(v.ds, a); err != nil {
			return fmt.Errorf("variable %q: %w", v.name, err)
		}
	}
	return nil
}

// attachScales attaches the scale dataset of each dimension to the
// matching axis of a data variable.
func (f *File) attachScales(g *Group, v *Variable) error {
	if v.isScale || v.ds == nil {
		return nil
	}
	for axis, d := range v.dims {
		if _, ok, err := v.ds.AttachedScale(axis); err != nil {
			return fmt.Errorf("variable %q axis %d: %w", v.name, axis, err)
		} else if ok {
			continue
		}
		scale := d.scale
		if scale == nil && d.coord != nil {
			scale = d.coord.ds
		}
		if scale == nil {
			return fmt.Errorf("variable %q axis %d: dimension %q has no scale: %w",
				v.name, axis, d.name, ErrVarMeta)
		}
		if err := v.ds.AttachScale(axis, scale); err != nil {
			return fmt.Errorf("variable %q axis %d: %w", v.name, axis, err)
		}
	}
	return nil
}

// defaultChunks picks chunk extents for a variable the caller left
// unchunked: full extent along fixed dimensions, a default along
// unlimited ones, shrunk until one chunk fits the default cache.
func (v *Variable) defaultChunks() []uint64 {
	chunks := make([]uint64, len(v.dims))
	for i, d := range v.dims {
		switch {
		case d.unlimited:
			chunks[i] = defaultUnlimitedChunk
		case d.len > 0:
			chunks[i] = d.len
		default:
			chunks[i] = 1
		}
	}
	for {
		bytes := v.typ.size
		for _, c := range chunks {
			bytes *= c
		}
		if bytes <= DefaultChunkCacheSize {
			return chunks
		}
		// Halve the largest extent until the chunk fits.
		largest := 0
		for i, c := range chunks {
			if c > chunks[largest] {
				largest = i
			}
		}
		if chunks[largest] <= 1 {
			return chunks
		}
		chunks[largest] /= 2
	}
}

func writeDimIDAttr(f *File, ds container.Dataset, id int) error {
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, uint32(int32(id)))
	return ds.WriteAttr(attrDimID, f.c.NativeType(container.NativeInt),
		container.Space{}, container.Value{Raw: raw})
}

func writeCoordinatesAttr(f *File, ds container.Dataset, ids []int) error {
	raw := make([]byte, 4*len(ids))
	for i, id := range ids {
		binary.LittleEndian.PutUint32(raw[4*i:], uint32(int32(id)))
	}
	return ds.WriteAttr(attrCoordinates, f.c.NativeType(container.NativeInt),
		container.Space{Dims: []uint64{uint64(len(ids))}}, container.Value{Raw: raw})
}

// writeProvenance writes the create-time markers on the root group:
// the provenance string, and the strict-model flag for files created
// with the classic restriction.
func (f *File) writeProvenance() error {
	if !f.ncProps {
		return nil
	}
	err := f.root.c.WriteAttr(attrNCProperties,
		f.c.StringType(uint64(len(ncPropsValue)), false),
		container.Space{}, container.Value{Raw: []byte(ncPropsValue)})
	if err != nil {
		return err
	}
	if f.classic {
		raw := []byte{1, 0, 0, 0}
		err = f.root.c.WriteAttr(attrNC3Strict, f.c.NativeType(container.NativeInt),
			container.Space{}, container.Value{Raw: raw})
		if err != nil {
			return err
		}
	}
	f.ncProps = false
	return nil
}
