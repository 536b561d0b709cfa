package netcdf

import (
	"encoding/binary"
	"fmt"

	"github.com/robert-malhotra/go-netcdf4/container"
)

// Group is one node of a file's group tree. Every file has a root
// group; groups own dimensions, variables, named types, attributes,
// and subgroups.
type Group struct {
	file   *File
	parent *Group
	name   string

	c container.Group

	groups []*Group
	dims   []*Dimension
	vars   []*Variable
	types  []*Type

	atts      attrList
	attrState attrReadState

	dirty bool
}

// Name returns the group name. The root group is named "/".
func (g *Group) Name() string { return g.name }

// Parent returns the parent group, or nil for the root.
func (g *Group) Parent() *Group { return g.parent }

// Path returns the absolute slash-separated path of the group.
func (g *Group) Path() string {
	if g.parent == nil {
		return "/"
	}
	p := g.parent.Path()
	if p == "/" {
		return "/" + g.name
	}
	return p + "/" + g.name
}

// File returns the owning file.
func (g *Group) File() *File { return g.file }

// Groups returns the direct subgroups in definition order.
func (g *Group) Groups() []*Group {
	return append([]*Group(nil), g.groups...)
}

// Group returns the direct subgroup with the given name.
func (g *Group) Group(name string) (*Group, error) {
	for _, sub := range g.groups {
		if sub.name == name {
			return sub, nil
		}
	}
	return nil, fmt.Errorf("group %q: %w", name, ErrNotDefined)
}

// DefGroup defines a new subgroup. The file must be in define mode.
func (g *Group) DefGroup(name string) (*Group, error) {
	f := g.file
	if err := f.requireDefine(); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	for _, sub := range g.groups {
		if sub.name == name {
			return nil, fmt.Errorf("group %q: %w", name, ErrExists)
		}
	}
	sub := &Group{file: f, parent: g, name: name, dirty: true, attrState: attrsRead}
	g.groups = append(g.groups, sub)
	return sub, nil
}

// Types returns the group's named types in definition order.
func (g *Group) Types() []*Type {
	return append([]*Type(nil), g.types...)
}

// TypeByName returns the group's named type with the given name.
func (g *Group) TypeByName(name string) (*Type, error) {
	for _, t := range g.types {
		if t.name == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("type %q: %w", name, ErrNotDefined)
}

func (g *Group) checkTypeName(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	for _, t := range g.types {
		if t.name == name {
			return fmt.Errorf("type %q: %w", name, ErrExists)
		}
	}
	return nil
}

// EnumEntry is one name/value pair passed to DefEnum. Value is
// truncated to the base type's width when stored.
type EnumEntry struct {
	Name  string
	Value int64
}

// DefVLen defines a named variable-length type over an element type.
func (g *Group) DefVLen(name string, base TypeID) (*Type, error) {
	f := g.file
	if err := f.requireDefine(); err != nil {
		return nil, err
	}
	if err := g.checkTypeName(name); err != nil {
		return nil, err
	}
	baseNative, err := f.nativeForTypeID(base)
	if err != nil {
		return nil, err
	}
	native, err := f.c.VLenType(baseNative)
	if err != nil {
		return nil, fmt.Errorf("vlen %q: %w", name, err)
	}
	t := &Type{
		file: f, id: f.nextUserType, name: name,
		class: ClassVLen, size: baseNative.Size(),
		baseType: base, native: native,
	}
	return g.addUserType(t), nil
}

// DefOpaque defines a named opaque blob type of fixed size.
func (g *Group) DefOpaque(name string, size uint64) (*Type, error) {
	f := g.file
	if err := f.requireDefine(); err != nil {
		return nil, err
	}
	if err := g.checkTypeName(name); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, fmt.Errorf("opaque %q: zero size: %w", name, ErrInvalid)
	}
	t := &Type{
		file: f, id: f.nextUserType, name: name,
		class: ClassOpaque, size: size,
		native: f.c.OpaqueType(size),
	}
	return g.addUserType(t), nil
}

// DefEnum defines a named enumeration over an integer base type.
// Member order is preserved as declared.
func (g *Group) DefEnum(name string, base TypeID, entries []EnumEntry) (*Type, error) {
	f := g.file
	if err := f.requireDefine(); err != nil {
		return nil, err
	}
	if err := g.checkTypeName(name); err != nil {
		return nil, err
	}
	if base < TypeByte || base > TypeUInt64 || base == TypeChar ||
		base == TypeFloat || base == TypeDouble {
		return nil, fmt.Errorf("enum %q: base type %d: %w", name, base, ErrBadType)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("enum %q: no members: %w", name, ErrInvalid)
	}
	baseNative, err := f.nativeForTypeID(base)
	if err != nil {
		return nil, err
	}
	width := int(baseNative.Size())
	members := make([]EnumMember, len(entries))
	natives := make([]container.EnumMember, len(entries))
	for i, e := range entries {
		if e.Name == "" || len(e.Name) > MaxName {
			return nil, fmt.Errorf("enum %q member %d: %w", name, i, ErrBadName)
		}
		raw := make([]byte, 8)
		binary.LittleEndian.PutUint64(raw, uint64(e.Value))
		raw = raw[:width]
		members[i] = EnumMember{Name: e.Name, Value: raw}
		natives[i] = container.EnumMember{Name: e.Name, Value: raw}
	}
	native, err := f.c.EnumType(baseNative, natives)
	if err != nil {
		return nil, fmt.Errorf("enum %q: %w", name, err)
	}
	t := &Type{
		file: f, id: f.nextUserType, name: name,
		class: ClassEnum, size: baseNative.Size(),
		baseType: base, members: members, native: native,
	}
	return g.addUserType(t), nil
}

// DefCompound defines a named compound type. size is the in-memory
// struct size; fields list the members in declaration order.
func (g *Group) DefCompound(name string, size uint64, fields []Field) (*Type, error) {
	f := g.file
	if err := f.requireDefine(); err != nil {
		return nil, err
	}
	if err := g.checkTypeName(name); err != nil {
		return nil, err
	}
	if size == 0 || len(fields) == 0 {
		return nil, fmt.Errorf("compound %q: %w", name, ErrInvalid)
	}
	natives := make([]container.CompoundMember, len(fields))
	for i, fl := range fields {
		if fl.Name == "" || len(fl.Name) > MaxName {
			return nil, fmt.Errorf("compound %q member %d: %w", name, i, ErrBadName)
		}
		mn, err := f.nativeForTypeID(fl.Type)
		if err != nil {
			return nil, fmt.Errorf("compound %q member %q: %w", name, fl.Name, err)
		}
		m := container.CompoundMember{Name: fl.Name, Offset: fl.Offset, Type: mn}
		for _, d := range fl.Dims {
			if d <= 0 {
				return nil, fmt.Errorf("compound %q member %q: array extent %d: %w",
					name, fl.Name, d, ErrInvalid)
			}
			m.Dims = append(m.Dims, uint64(d))
		}
		natives[i] = m
	}
	native, err := f.c.CompoundType(size, natives)
	if err != nil {
		return nil, fmt.Errorf("compound %q: %w", name, err)
	}
	flds := make([]Field, len(fields))
	for i, fl := range fields {
		flds[i] = Field{Name: fl.Name, Offset: fl.Offset, Type: fl.Type,
			Dims: append([]int(nil), fl.Dims...)}
	}
	t := &Type{
		file: f, id: f.nextUserType, name: name,
		class: ClassCompound, size: size,
		fields: flds, native: native,
	}
	return g.addUserType(t), nil
}

func (g *Group) addUserType(t *Type) *Type {
	f := g.file
	f.nextUserType++
	f.userTypes = append(f.userTypes, t)
	f.typeCache[t.native.ID()] = t
	g.types = append(g.types, t)
	f.dirtyMeta = true
	return t
}

// PutAttr creates or replaces an attribute on the group.
func (g *Group) PutAttr(name string, value any) error {
	f := g.file
	if f.readOnly {
		return fmt.Errorf("attribute %q: %w", name, ErrPerm)
	}
	if f.closed {
		return ErrClosed
	}
	if r, ok := LookupReserved(name); ok && r.Flags&FlagReadOnly != 0 {
		return fmt.Errorf("attribute %q: %w", name, ErrBadName)
	}
	if err := g.ensureAttrs(); err != nil {
		return err
	}
	a, err := newAttr(name, value)
	if err != nil {
		return err
	}
	g.atts.put(a)
	f.dirtyMeta = true
	return nil
}

// Attr returns the group's attribute with the given name.
func (g *Group) Attr(name string) (*Attribute, error) {
	if err := g.ensureAttrs(); err != nil {
		return nil, err
	}
	if a := g.atts.find(name); a != nil {
		return a, nil
	}
	return nil, fmt.Errorf("attribute %q: %w", name, ErrNotDefined)
}

// Attrs returns the group's attributes in creation order.
func (g *Group) Attrs() ([]*Attribute, error) {
	if err := g.ensureAttrs(); err != nil {
		return nil, err
	}
	return append([]*Attribute(nil), g.atts.atts...), nil
}

// NumAttrs returns the group's attribute count.
func (g *Group) NumAttrs() (int, error) {
	if err := g.ensureAttrs(); err != nil {
		return 0, err
	}
	return len(g.atts.atts), nil
}

// ensureAttrs loads the group's attributes on first touch.
func (g *Group) ensureAttrs() error {
	if g.attrState != attrsUnread || g.c == nil {
		return nil
	}
	g.attrState = attrsReading
	err := g.file.readAttrsInto(g.c, &g.atts)
	if err != nil {
		g.attrState = attrsUnread
		return fmt.Errorf("group %q: %w", g.name, err)
	}
	g.attrState = attrsRead
	return nil
}

// Inq reports the group's dimension, variable, and attribute counts,
// and the id of the first unlimited dimension visible from the group
// (-1 when none).
func (g *Group) Inq() (ndims, nvars, natts, unlimID int, err error) {
	natts, err = g.NumAttrs()
	if err != nil {
		return 0, 0, 0, 0, err
	}
	unlimID = -1
	if d := g.UnlimitedDim(); d != nil {
		unlimID = d.id
	}
	return len(g.dims), len(g.vars), natts, unlimID, nil
}

// Close closes the file through its root group. Closing any other
// group fails with ErrBadGroupID.
func (g *Group) Close() error {
	if g.parent != nil {
		return fmt.Errorf("group %q: %w", g.name, ErrBadGroupID)
	}
	return g.file.Close()
}
