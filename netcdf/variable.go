package netcdf

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/go-netcdf4/container"
)

// nonCoordPrefix mangles the stored name of a variable that shares
// its name with a dimension it does not coordinate.
const nonCoordPrefix = "_nc4_non_coord_"

// FillAttrName is the conventional fill-value attribute name.
const FillAttrName = "_FillValue"

// Maximum deflate level accepted by SetDeflate.
const maxDeflateLevel = 9

// attrReadState gates lazy attribute loading. The reading state
// breaks recursion when loading an attribute collection touches the
// same object again.
type attrReadState uint8

const (
	attrsUnread attrReadState = iota
	attrsReading
	attrsRead
)

// Variable is a named, typed, multi-dimensional array.
type Variable struct {
	group *Group
	name  string
	typ   *Type

	dimIDs []int
	dims   []*Dimension

	contiguous   bool
	chunks       []uint64
	shuffle      bool
	fletcher32   bool
	deflate      bool
	deflateLevel int
	filterID     int
	filterParams []uint32

	fill   *container.Value
	noFill bool

	// isScale marks coordinate variables, stored as dimension scales.
	isScale  bool
	nonCoord bool

	cache container.CacheConfig

	ds      container.Dataset
	written bool
	dirty   bool

	atts      attrList
	attrState attrReadState
}

// Name returns the variable name.
func (v *Variable) Name() string { return v.name }

// Type returns the variable's type.
func (v *Variable) Type() *Type { return v.typ }

// Group returns the containing group.
func (v *Variable) Group() *Group { return v.group }

// NDims returns the variable's rank.
func (v *Variable) NDims() int { return len(v.dimIDs) }

// DimIDs returns the variable's dimension ids, slowest first.
func (v *Variable) DimIDs() []int { return append([]int(nil), v.dimIDs...) }

// Dims returns the variable's dimensions, slowest first. Entries may
// be nil only while a file load is still resolving scales.
func (v *Variable) Dims() []*Dimension { return append([]*Dimension(nil), v.dims...) }

// IsCoordinate reports whether the variable is a coordinate variable
// for its first dimension.
func (v *Variable) IsCoordinate() bool { return v.isScale }

// Chunking returns the chunk extents, or nil for contiguous layout.
func (v *Variable) Chunking() []uint64 { return append([]uint64(nil), v.chunks...) }

// Deflate returns the deflate setting and level.
func (v *Variable) Deflate() (on bool, level int) { return v.deflate, v.deflateLevel }

// Shuffle reports whether the shuffle filter is enabled.
func (v *Variable) Shuffle() bool { return v.shuffle }

// Fletcher32 reports whether checksums are enabled.
func (v *Variable) Fletcher32() bool { return v.fletcher32 }

// Filter returns the pass-through filter id and parameters, if any.
func (v *Variable) Filter() (id int, params []uint32) {
	return v.filterID, append([]uint32(nil), v.filterParams...)
}

// NoFill reports whether filling is disabled for the variable.
func (v *Variable) NoFill() bool { return v.noFill }

// readVar loads one dataset as a variable. An unclassifiable element
// type fails with ErrBadType, which the walker treats as "not a
// variable" rather than a corrupt file.
func (f *File) readVar(g *Group, ds container.Dataset, name string) (*Variable, error) {
	v := &Variable{group: g, name: name, ds: ds, written: true}
	if strings.HasPrefix(name, nonCoordPrefix) {
		v.name = name[len(nonCoordPrefix):]
		v.nonCoord = true
	}
	if len(v.name) > MaxName {
		return nil, fmt.Errorf("variable %q: %w", v.name, ErrBadName)
	}

	nt, err := ds.Type()
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", v.name, err)
	}
	v.typ, err = f.typeInfoFor(nt)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", v.name, err)
	}
	v.typ.retain()

	sp, err := ds.Space()
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", v.name, err)
	}
	v.dimIDs = make([]int, sp.Rank())
	v.dims = make([]*Dimension, sp.Rank())
	for i := range v.dimIDs {
		v.dimIDs[i] = -1
	}

	isScale, err := ds.IsScale()
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", v.name, err)
	}
	if isScale {
		v.isScale = true
		if sp.Rank() > 1 {
			// Multi-dimensional coordinate variables record their
			// dimension ids in a hidden attribute whose length must
			// equal the rank.
			ids, err := readCoordinatesAttr(ds, sp.Rank())
			if err != nil {
				return nil, fmt.Errorf("variable %q: %w", v.name, err)
			}
			copy(v.dimIDs, ids)
		}
	}

	if err := v.readLayout(); err != nil {
		return nil, fmt.Errorf("variable %q: %w", v.name, err)
	}
	if err := v.readFilters(); err != nil {
		return nil, fmt.Errorf("variable %q: %w", v.name, err)
	}
	if err := v.readFill(); err != nil {
		return nil, fmt.Errorf("variable %q: %w", v.name, err)
	}

	v.cache, err = ds.CacheConfig()
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", v.name, err)
	}
	if err := v.adjustVarCache(); err != nil {
		return nil, fmt.Errorf("variable %q: %w", v.name, err)
	}

	g.vars = append(g.vars, v)
	return v, nil
}

func (v *Variable) readLayout() error {
	chunks, err := v.ds.Chunking()
	if err != nil {
		return err
	}
	if chunks == nil {
		v.contiguous = true
		return nil
	}
	if len(chunks) != len(v.dimIDs) {
		return fmt.Errorf("chunk rank %d for rank %d: %w", len(chunks), len(v.dimIDs), ErrVarMeta)
	}
	v.chunks = chunks
	return nil
}

func (v *Variable) readFilters() error {
	filters, err := v.ds.Filters()
	if err != nil {
		return err
	}
	for _, ft := range filters {
		switch ft.ID {
		case container.FilterShuffle:
			v.shuffle = true
		case container.FilterFletcher32:
			v.fletcher32 = true
		case container.FilterDeflate:
			if len(ft.Params) != 1 || ft.Params[0] > maxDeflateLevel {
				return fmt.Errorf("deflate parameters %v: %w", ft.Params, ErrVarMeta)
			}
			v.deflate = true
			v.deflateLevel = int(ft.Params[0])
		default:
			v.filterID = ft.ID
			v.filterParams = append([]uint32(nil), ft.Params...)
		}
	}
	return nil
}

func (v *Variable) readFill() error {
	fill, defined, err := v.ds.FillValue()
	if err != nil {
		return err
	}
	if !defined {
		v.noFill = true
		return nil
	}
	v.fill = fill
	return nil
}

// readCoordinatesAttr recovers the dimension-id list of a
// multi-dimensional coordinate variable.
func readCoordinatesAttr(ds container.Dataset, rank int) ([]int, error) {
	ok, err := ds.HasAttr(attrCoordinates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	ah, err := ds.OpenAttr(attrCoordinates)
	if err != nil {
		return nil, err
	}
	defer ah.Close()
	sp, err := ah.Space()
	if err != nil {
		return nil, err
	}
	if int(sp.NumPoints()) != rank {
		return nil, fmt.Errorf("coordinates attribute length %d for rank %d: %w",
			sp.NumPoints(), rank, ErrAttrMeta)
	}
	raw, err := ah.ReadRaw()
	if err != nil {
		return nil, err
	}
	if len(raw) < 4*rank {
		return nil, fmt.Errorf("coordinates attribute too short: %w", ErrAttrMeta)
	}
	return decodeInt32s(raw, rank), nil
}

// DefVar defines a new variable. dimIDs lists its dimensions slowest
// first; every id must name a dimension visible from the group. The
// file must be in define mode.
func (g *Group) DefVar(name string, typeID TypeID, dimIDs []int) (*Variable, error) {
	f := g.file
	if err := f.requireDefine(); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	if g.varByName(name) != nil {
		return nil, fmt.Errorf("variable %q: %w", name, ErrExists)
	}

	var typ *Type
	if typeID >= TypeByte && typeID <= TypeString {
		nt, err := f.nativeForTypeID(typeID)
		if err != nil {
			return nil, err
		}
		typ = f.atomicType(typeID, EndianNative, nt)
	} else if typ = f.userTypeByID(typeID); typ == nil {
		return nil, fmt.Errorf("variable %q: type id %d: %w", name, typeID, ErrBadType)
	}

	v := &Variable{
		group:  g,
		name:   name,
		typ:    typ,
		dimIDs: append([]int(nil), dimIDs...),
		dims:   make([]*Dimension, len(dimIDs)),
		cache:  f.cache,
		dirty:  true,
	}
	typ.retain()

	unlimited := false
	for i, id := range dimIDs {
		d := g.findDim(id)
		if d == nil {
			return nil, fmt.Errorf("variable %q: dimension id %d: %w", name, id, ErrNotDefined)
		}
		v.dims[i] = d
		if d.unlimited {
			unlimited = true
		}
	}
	v.contiguous = !unlimited

	// A variable named after its own leading dimension is that
	// dimension's coordinate variable. Named after a dimension it
	// does not coordinate, it must be stored under a mangled name.
	if d := g.dimByName(name); d != nil {
		if len(v.dims) > 0 && v.dims[0] == d {
			v.isScale = true
			d.coord = v
		} else {
			v.nonCoord = true
		}
	}

	g.vars = append(g.vars, v)
	return v, nil
}

func (g *Group) varByName(name string) *Variable {
	for _, v := range g.vars {
		if v.name == name {
			return v
		}
	}
	return nil
}

// Var returns the group's variable with the given name.
func (g *Group) Var(name string) (*Variable, error) {
	if v := g.varByName(name); v != nil {
		return v, nil
	}
	return nil, fmt.Errorf("variable %q: %w", name, ErrNotDefined)
}

// Vars returns the group's variables in definition order.
func (g *Group) Vars() []*Variable {
	return append([]*Variable(nil), g.vars...)
}

func (v *Variable) requireDefine() error {
	if err := v.group.file.requireDefine(); err != nil {
		return err
	}
	// Layout and filters are fixed once the dataset exists.
	if v.written {
		return fmt.Errorf("variable %q already written: %w", v.name, ErrInvalid)
	}
	return nil
}

// SetChunking selects chunked layout with the given per-axis extents.
func (v *Variable) SetChunking(chunks []uint64) error {
	if err := v.requireDefine(); err != nil {
		return err
	}
	if len(chunks) != len(v.dims) {
		return fmt.Errorf("variable %q: chunk rank %d for rank %d: %w",
			v.name, len(chunks), len(v.dims), ErrInvalid)
	}
	for i, c := range chunks {
		if c == 0 {
			return fmt.Errorf("variable %q: zero chunk extent: %w", v.name, ErrInvalid)
		}
		d := v.dims[i]
		if !d.unlimited && c > d.len {
			return fmt.Errorf("variable %q: chunk %d exceeds dimension %q: %w",
				v.name, c, d.name, ErrInvalid)
		}
	}
	v.chunks = append([]uint64(nil), chunks...)
	v.contiguous = false
	return nil
}

// SetContiguous selects contiguous layout. Variables with unlimited
// dimensions or filters must stay chunked.
func (v *Variable) SetContiguous() error {
	if err := v.requireDefine(); err != nil {
		return err
	}
	for _, d := range v.dims {
		if d.unlimited {
			return fmt.Errorf("variable %q: unlimited dimension %q: %w", v.name, d.name, ErrInvalid)
		}
	}
	if v.deflate || v.shuffle || v.fletcher32 || v.filterID != 0 {
		return fmt.Errorf("variable %q: filtered: %w", v.name, ErrInvalid)
	}
	v.contiguous = true
	v.chunks = nil
	return nil
}

// SetDeflate enables deflate compression, optionally with the shuffle
// filter. Compression forces chunked layout.
func (v *Variable) SetDeflate(shuffle bool, level int) error {
	if err := v.requireDefine(); err != nil {
		return err
	}
	if level < 0 || level > maxDeflateLevel {
		return fmt.Errorf("variable %q: deflate level %d: %w", v.name, level, ErrInvalid)
	}
	v.deflate = true
	v.deflateLevel = level
	v.shuffle = shuffle
	v.contiguous = false
	return nil
}

// SetFletcher32 enables checksums. Forces chunked layout.
func (v *Variable) SetFletcher32() error {
	if err := v.requireDefine(); err != nil {
		return err
	}
	v.fletcher32 = true
	v.contiguous = false
	return nil
}

// SetFilter passes one engine-defined filter through to the dataset.
func (v *Variable) SetFilter(id int, params []uint32) error {
	if err := v.requireDefine(); err != nil {
		return err
	}
	if id <= 0 {
		return fmt.Errorf("variable %q: filter id %d: %w", v.name, id, ErrInvalid)
	}
	v.filterID = id
	v.filterParams = append([]uint32(nil), params...)
	v.contiguous = false
	return nil
}

// SetFill sets the variable's fill value and surfaces it as the
// conventional fill attribute.
func (v *Variable) SetFill(value any) error {
	if err := v.requireDefine(); err != nil {
		return err
	}
	a, err := newAttr(FillAttrName, value)
	if err != nil {
		return err
	}
	if a.typeID != v.typ.id {
		return fmt.Errorf("variable %q: fill type %d for variable type %d: %w",
			v.name, a.typeID, v.typ.id, ErrBadType)
	}
	v.fill = &container.Value{Raw: a.raw, Strings: a.strs, VLens: a.vlens}
	v.noFill = false
	v.atts.put(a)
	return nil
}

// SetNoFill disables filling for the variable.
func (v *Variable) SetNoFill() error {
	if err := v.requireDefine(); err != nil {
		return err
	}
	v.noFill = true
	v.fill = nil
	return nil
}

// FillValue returns the user-defined fill value, or defined=false.
func (v *Variable) FillValue() (*container.Value, bool) {
	return v.fill, v.fill != nil
}

// CacheConfig returns the variable's chunk cache tuning.
func (v *Variable) CacheConfig() (size, nelems uint64, preemption float64) {
	return v.cache.Size, v.cache.NElems, v.cache.Preemption
}

// SetCacheConfig retunes the variable's chunk cache. Usable in any
// mode; applied immediately when the dataset is open.
func (v *Variable) SetCacheConfig(size, nelems uint64, preemption float64) error {
	if preemption < 0 || preemption > 1 {
		return fmt.Errorf("variable %q: preemption %v: %w", v.name, preemption, ErrInvalid)
	}
	v.cache = container.CacheConfig{Size: size, NElems: nelems, Preemption: preemption}
	if v.ds != nil {
		return v.ds.SetCacheConfig(v.cache)
	}
	return nil
}

// PutAttr creates or replaces an attribute on the variable.
func (v *Variable) PutAttr(name string, value any) error {
	f := v.group.file
	if f.readOnly {
		return fmt.Errorf("attribute %q: %w", name, ErrPerm)
	}
	if f.closed {
		return ErrClosed
	}
	if r, ok := LookupReserved(name); ok && r.Flags&FlagReadOnly != 0 {
		return fmt.Errorf("attribute %q: %w", name, ErrBadName)
	}
	if err := v.ensureAttrs(); err != nil {
		return err
	}
	a, err := newAttr(name, value)
	if err != nil {
		return err
	}
	v.atts.put(a)
	f.dirtyMeta = true
	return nil
}

// Attr returns the variable's attribute with the given name.
func (v *Variable) Attr(name string) (*Attribute, error) {
	if err := v.ensureAttrs(); err != nil {
		return nil, err
	}
	if a := v.atts.find(name); a != nil {
		return a, nil
	}
	return nil, fmt.Errorf("attribute %q: %w", name, ErrNotDefined)
}

// Attrs returns the variable's attributes in creation order.
func (v *Variable) Attrs() ([]*Attribute, error) {
	if err := v.ensureAttrs(); err != nil {
		return nil, err
	}
	return append([]*Attribute(nil), v.atts.atts...), nil
}

// NumAttrs returns the variable's attribute count.
func (v *Variable) NumAttrs() (int, error) {
	if err := v.ensureAttrs(); err != nil {
		return 0, err
	}
	return len(v.atts.atts), nil
}

// ensureAttrs loads the variable's attributes on first touch.
func (v *Variable) ensureAttrs() error {
	if v.attrState != attrsUnread || v.ds == nil {
		return nil
	}
	v.attrState = attrsReading
	err := v.group.file.readAttrsInto(v.ds, &v.atts)
	if err != nil {
		v.attrState = attrsUnread
		return fmt.Errorf("variable %q: %w", v.name, err)
	}
	// The fill value lives in the dataset's creation properties, not
	// in a stored attribute; surface it under the conventional name.
	if v.fill != nil && v.atts.find(FillAttrName) == nil {
		n := 1
		switch {
		case v.fill.Strings != nil:
			n = len(v.fill.Strings)
		case v.fill.VLens != nil:
			n = len(v.fill.VLens)
		}
		v.atts.put(&Attribute{
			name:   FillAttrName,
			typeID: v.typ.id,
			n:      n,
			raw:    v.fill.Raw,
			strs:   v.fill.Strings,
			vlens:  v.fill.VLens,
		})
	}
	v.attrState = attrsRead
	return nil
}
