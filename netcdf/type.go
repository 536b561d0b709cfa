package netcdf

import (
	"fmt"

	"github.com/robert-malhotra/go-netcdf4/container"
)

// TypeID identifies a type within a file. The atomic ids are fixed by
// the format; user-defined types are numbered from FirstUserType in
// the order they are read or defined.
type TypeID int

// Atomic type identifiers.
const (
	TypeByte TypeID = iota + 1
	TypeChar
	TypeShort
	TypeInt
	TypeFloat
	TypeDouble
	TypeUByte
	TypeUShort
	TypeUInt
	TypeInt64
	TypeUInt64
	TypeString

	// FirstUserType is the id of the first user-defined type.
	FirstUserType TypeID = 32
)

// Class is the broad classification of a Type.
type Class int

const (
	ClassInt Class = iota
	ClassFloat
	ClassChar
	ClassString
	ClassCompound
	ClassEnum
	ClassVLen
	ClassOpaque
)

// Endianness of a stored atomic type.
type Endianness int

const (
	EndianNative Endianness = iota
	EndianLittle
	EndianBig
)

// atomicNames and atomicSizes are the per-process atomic type tables,
// indexed by TypeID. Read-only after initialization.
var atomicNames = [...]string{
	TypeByte: "byte", TypeChar: "char", TypeShort: "short", TypeInt: "int",
	TypeFloat: "float", TypeDouble: "double", TypeUByte: "ubyte",
	TypeUShort: "ushort", TypeUInt: "uint", TypeInt64: "int64",
	TypeUInt64: "uint64", TypeString: "string",
}

var atomicSizes = [...]uint64{
	TypeByte: 1, TypeChar: 1, TypeShort: 2, TypeInt: 4,
	TypeFloat: 4, TypeDouble: 8, TypeUByte: 1,
	TypeUShort: 2, TypeUInt: 4, TypeInt64: 8,
	TypeUInt64: 8, TypeString: 8, // string entries hold a pointer
}

// nativePriority is the fixed order atomic classification equality-
// tests a native descriptor against the platform natives. Several
// descriptors can alias (e.g. long long vs. long), so the first match
// wins.
var nativePriority = [...]struct {
	kind container.NativeKind
	id   TypeID
}{
	{container.NativeSChar, TypeByte},
	{container.NativeShort, TypeShort},
	{container.NativeInt, TypeInt},
	{container.NativeFloat, TypeFloat},
	{container.NativeDouble, TypeDouble},
	{container.NativeUChar, TypeUByte},
	{container.NativeUShort, TypeUShort},
	{container.NativeUInt, TypeUInt},
	{container.NativeLLong, TypeInt64},
	{container.NativeULLong, TypeUInt64},
}

// Field is one member of a compound type, in declaration order. Dims
// is non-nil when the member is a fixed-size array.
type Field struct {
	Name   string
	Offset uint64
	Type   TypeID
	Dims   []int
}

// EnumMember is one name/value pair of an enumeration, in declaration
// order. Value holds the raw little-endian encoding at the base
// type's width.
type EnumMember struct {
	Name  string
	Value []byte
}

// Type describes an atomic or user-defined type. Types are shared:
// variables and compound fields reference them, tracked by an owned
// reference count mutated only on attach/detach.
type Type struct {
	file      *File
	id        TypeID
	name      string
	size      uint64
	class     Class
	endign    Endianness
	committed bool
	refs      int

	native container.Type // engine descriptor, cache key for user types

	fields   []Field      // compound
	members  []EnumMember // enum
	baseType TypeID       // enum and vlen element type
}

// ID returns the type's id within its file.
func (t *Type) ID() TypeID { return t.id }

// Name returns the type name ("int", "byte", ... for atomics).
func (t *Type) Name() string { return t.name }

// Size returns the in-memory size of one element in bytes. For vlen
// types it is the element size; for opaque types the fixed blob size.
func (t *Type) Size() uint64 { return t.size }

// Class returns the type's classification.
func (t *Type) Class() Class { return t.class }

// Endianness returns the stored byte order of an atomic type.
func (t *Type) Endianness() Endianness { return t.endign }

// Committed reports whether the type is a named type stored in the
// file (as opposed to a built-in atomic).
func (t *Type) Committed() bool { return t.committed }

// Fields returns the compound members in declaration order.
func (t *Type) Fields() []Field { return t.fields }

// Members returns the enum members in declaration order, which is the
// order they were declared in, not ascending value order.
func (t *Type) Members() []EnumMember { return t.members }

// BaseType returns the element type id of an enum or vlen type.
func (t *Type) BaseType() TypeID { return t.baseType }

func (t *Type) retain()  { t.refs++ }
func (t *Type) release() { t.refs-- }

// atomicType builds the transient Type record for an atomic id.
func (f *File) atomicType(id TypeID, endian Endianness, native container.Type) *Type {
	cls := ClassInt
	switch id {
	case TypeFloat, TypeDouble:
		cls = ClassFloat
	case TypeChar:
		cls = ClassChar
	case TypeString:
		cls = ClassString
	}
	return &Type{
		file:   f,
		id:     id,
		name:   atomicNames[id],
		size:   atomicSizes[id],
		class:  cls,
		endign: endian,
		native: native,
	}
}

// typeLen returns the in-memory element size of a type id.
func (f *File) typeLen(id TypeID) (uint64, error) {
	if id >= TypeByte && id <= TypeString {
		return atomicSizes[id], nil
	}
	if t := f.userTypeByID(id); t != nil {
		return t.size, nil
	}
	return 0, fmt.Errorf("type id %d: %w", id, ErrBadType)
}

func (f *File) userTypeByID(id TypeID) *Type {
	for _, t := range f.userTypes {
		if t.id == id {
			return t
		}
	}
	return nil
}

// typeIDForNative classifies a native descriptor as an atomic type
// id, falling back to the file's user-defined types. Strings are
// probed for variable length; integers and floats are equality-tested
// against each platform native in fixed priority order, first match
// wins. An unmatched descriptor fails with ErrBadType, which callers
// in bulk loads downgrade to skipping the object.
func (f *File) typeIDForNative(nt container.Type) (TypeID, error) {
	switch nt.Class() {
	case container.ClassString:
		if nt.IsVariableString() {
			return TypeString, nil
		}
		return TypeChar, nil
	case container.ClassInteger, container.ClassFloat:
		for _, cand := range nativePriority {
			if nt.Equal(f.c.NativeType(cand.kind)) {
				return cand.id, nil
			}
		}
	}
	if t := f.lookupUserType(nt); t != nil {
		return t.id, nil
	}
	return 0, fmt.Errorf("native type class %d size %d: %w", nt.Class(), nt.Size(), ErrBadType)
}

// lookupUserType finds a previously resolved user-defined type by
// native handle, then by structural equality. Resolution of the same
// handle is idempotent within a file session.
func (f *File) lookupUserType(nt container.Type) *Type {
	if t, ok := f.typeCache[nt.ID()]; ok {
		return t
	}
	for _, t := range f.userTypes {
		if t.native != nil && t.native.Equal(nt) {
			f.typeCache[nt.ID()] = t
			return t
		}
	}
	return nil
}

// typeInfoFor resolves the full type record for a variable's native
// descriptor: a fresh record for atomics (with endianness), or the
// cached user-defined type.
func (f *File) typeInfoFor(nt container.Type) (*Type, error) {
	switch nt.Class() {
	case container.ClassString:
		// Fixed-length strings of width > 1 behave like
		// variable-length strings for variables.
		if nt.IsVariableString() || nt.Size() > 1 {
			return f.atomicType(TypeString, EndianNative, nt), nil
		}
		return f.atomicType(TypeChar, EndianNative, nt), nil
	case container.ClassInteger, container.ClassFloat:
		for _, cand := range nativePriority {
			if nt.Equal(f.c.NativeType(cand.kind)) {
				endian, err := endianOf(nt)
				if err != nil {
					return nil, err
				}
				return f.atomicType(cand.id, endian, nt), nil
			}
		}
	}
	if t := f.lookupUserType(nt); t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("variable type: %w", ErrBadType)
}

func endianOf(nt container.Type) (Endianness, error) {
	switch nt.Order() {
	case container.OrderLittleEndian:
		return EndianLittle, nil
	case container.OrderBigEndian:
		return EndianBig, nil
	case container.OrderNone:
		return EndianNative, nil
	}
	return EndianNative, fmt.Errorf("byte order %d: %w", nt.Order(), ErrBadType)
}

// readNamedType reads a named type found in a group and registers it
// in the per-file cache, keyed by the engine descriptor handle.
func (f *File) readNamedType(g *Group, name string, nt container.Type) (*Type, error) {
	if existing := f.lookupUserType(nt); existing != nil {
		return existing, nil
	}
	t := &Type{
		file:      f,
		id:        f.nextUserType,
		name:      name,
		size:      nt.Size(),
		committed: true,
		native:    nt,
	}

	switch nt.Class() {
	case container.ClassString:
		t.class = ClassString

	case container.ClassCompound:
		t.class = ClassCompound
		for i := 0; i < nt.NumMembers(); i++ {
			m, err := nt.Member(i)
			if err != nil {
				return nil, fmt.Errorf("compound %q member %d: %w", name, i, ErrBadType)
			}
			if m.Name == "" || len(m.Name) > MaxName {
				return nil, fmt.Errorf("compound %q member %d: %w", name, i, ErrBadName)
			}
			field := Field{Name: m.Name, Offset: m.Offset}
			mt := m.Type
			if mt.Class() == container.ClassArray {
				for _, d := range mt.ArrayDims() {
					field.Dims = append(field.Dims, int(d))
				}
				mt = mt.Base()
			}
			id, err := f.typeIDForNative(mt)
			if err != nil {
				return nil, fmt.Errorf("compound %q member %q: %w", name, m.Name, err)
			}
			field.Type = id
			t.fields = append(t.fields, field)
		}

	case container.ClassVLen:
		if nt.IsVariableString() {
			t.class = ClassString
			break
		}
		t.class = ClassVLen
		base := nt.Base()
		if base == nil {
			return nil, fmt.Errorf("vlen %q: missing base type: %w", name, ErrBadType)
		}
		id, err := f.typeIDForNative(base)
		if err != nil {
			return nil, fmt.Errorf("vlen %q base: %w", name, err)
		}
		t.baseType = id
		t.size = base.Size()

	case container.ClassOpaque:
		t.class = ClassOpaque

	case container.ClassEnum:
		t.class = ClassEnum
		base := nt.Base()
		if base == nil {
			return nil, fmt.Errorf("enum %q: missing base type: %w", name, ErrBadType)
		}
		id, err := f.typeIDForNative(base)
		if err != nil {
			return nil, fmt.Errorf("enum %q base: %w", name, err)
		}
		t.baseType = id
		t.size = base.Size()
		for i := 0; i < nt.NumMembers(); i++ {
			m, err := nt.EnumMember(i)
			if err != nil {
				return nil, fmt.Errorf("enum %q member %d: %w", name, i, ErrBadType)
			}
			if m.Name == "" || len(m.Name) > MaxName {
				return nil, fmt.Errorf("enum %q member %d: %w", name, i, ErrBadName)
			}
			t.members = append(t.members, EnumMember{
				Name:  m.Name,
				Value: append([]byte(nil), m.Value...),
			})
		}

	default:
		return nil, fmt.Errorf("named type %q class %d: %w", name, nt.Class(), ErrBadClass)
	}

	f.nextUserType++
	f.userTypes = append(f.userTypes, t)
	f.typeCache[nt.ID()] = t
	g.types = append(g.types, t)
	return t, nil
}
