package mem

import (
	"fmt"

	"github.com/robert-malhotra/go-netcdf4/container"
)

// typ is the engine-native type descriptor. Fields are exported for
// gob; the type itself stays package-private.
type typ struct {
	TID    uint64
	Cls    container.Class
	Sz     uint64
	Ord    container.ByteOrder
	VarStr bool
	Signed bool

	Members []memberRec            // compound fields, declaration order
	Enums   []container.EnumMember // enum members, declaration order
	BaseT   *typ                   // vlen/enum/array element type
	ADims   []uint64               // array extents
}

type memberRec struct {
	MName  string
	Offset uint64
	T      *typ
	Dims   []uint64
}

func (t *typ) ID() uint64                 { return t.TID }
func (t *typ) Class() container.Class     { return t.Cls }
func (t *typ) Size() uint64               { return t.Sz }
func (t *typ) Order() container.ByteOrder { return t.Ord }
func (t *typ) IsVariableString() bool     { return t.VarStr }
func (t *typ) NumMembers() int            { return len(t.Members) + len(t.Enums) }
func (t *typ) ArrayDims() []uint64        { return t.ADims }

func (t *typ) Base() container.Type {
	if t.BaseT == nil {
		return nil
	}
	return t.BaseT
}

func (t *typ) Member(i int) (container.CompoundMember, error) {
	if t.Cls != container.ClassCompound || i < 0 || i >= len(t.Members) {
		return container.CompoundMember{}, fmt.Errorf("mem: no compound member %d", i)
	}
	m := t.Members[i]
	return container.CompoundMember{Name: m.MName, Offset: m.Offset, Type: m.T, Dims: m.Dims}, nil
}

func (t *typ) EnumMember(i int) (container.EnumMember, error) {
	if t.Cls != container.ClassEnum || i < 0 || i >= len(t.Enums) {
		return container.EnumMember{}, fmt.Errorf("mem: no enum member %d", i)
	}
	return t.Enums[i], nil
}

// Equal compares descriptors structurally, ignoring handle identity.
func (t *typ) Equal(other container.Type) bool {
	o, ok := other.(*typ)
	if !ok || o == nil {
		return false
	}
	return typEqual(t, o)
}

func typEqual(a, b *typ) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Cls != b.Cls || a.Sz != b.Sz || a.Ord != b.Ord ||
		a.VarStr != b.VarStr || a.Signed != b.Signed {
		return false
	}
	if len(a.Members) != len(b.Members) || len(a.Enums) != len(b.Enums) {
		return false
	}
	for i := range a.Members {
		am, bm := a.Members[i], b.Members[i]
		if am.MName != bm.MName || am.Offset != bm.Offset || !dimsEqual(am.Dims, bm.Dims) ||
			!typEqual(am.T, bm.T) {
			return false
		}
	}
	for i := range a.Enums {
		ae, be := a.Enums[i], b.Enums[i]
		if ae.Name != be.Name || string(ae.Value) != string(be.Value) {
			return false
		}
	}
	if !dimsEqual(a.ADims, b.ADims) {
		return false
	}
	return typEqual(a.BaseT, b.BaseT)
}

func dimsEqual(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// nativeSpec fixes the width and signedness of each platform-native
// numeric descriptor the engine publishes.
var nativeSpec = map[container.NativeKind]struct {
	cls    container.Class
	size   uint64
	signed bool
}{
	container.NativeSChar:  {container.ClassInteger, 1, true},
	container.NativeShort:  {container.ClassInteger, 2, true},
	container.NativeInt:    {container.ClassInteger, 4, true},
	container.NativeFloat:  {container.ClassFloat, 4, true},
	container.NativeDouble: {container.ClassFloat, 8, true},
	container.NativeUChar:  {container.ClassInteger, 1, false},
	container.NativeUShort: {container.ClassInteger, 2, false},
	container.NativeUInt:   {container.ClassInteger, 4, false},
	container.NativeLLong:  {container.ClassInteger, 8, true},
	container.NativeULLong: {container.ClassInteger, 8, false},
}

func (c *Container) newTypeID() uint64 {
	c.nextType++
	return c.nextType
}

// NativeType returns the canonical descriptor for a platform-native
// numeric kind. Descriptors are allocated once per store.
func (c *Container) NativeType(k container.NativeKind) container.Type {
	if t, ok := c.natives[k]; ok {
		return t
	}
	spec := nativeSpec[k]
	t := &typ{
		TID:    c.newTypeID(),
		Cls:    spec.cls,
		Sz:     spec.size,
		Ord:    container.OrderLittleEndian,
		Signed: spec.signed,
	}
	c.natives[k] = t
	return t
}

// StringType returns a string descriptor; variable-length strings
// ignore size.
func (c *Container) StringType(size uint64, variable bool) container.Type {
	if variable {
		size = 0
	}
	return &typ{TID: c.newTypeID(), Cls: container.ClassString, Sz: size, VarStr: variable}
}

// CompoundType builds a compound descriptor from members in
// declaration order.
func (c *Container) CompoundType(size uint64, members []container.CompoundMember) (container.Type, error) {
	t := &typ{TID: c.newTypeID(), Cls: container.ClassCompound, Sz: size}
	for _, m := range members {
		mt, ok := m.Type.(*typ)
		if !ok {
			return nil, fmt.Errorf("mem: foreign member type for %q", m.Name)
		}
		if len(m.Dims) > 0 {
			// Wrap the element type in an array descriptor, the way
			// the store models fixed-size array members.
			n := uint64(1)
			for _, d := range m.Dims {
				n *= d
			}
			mt = &typ{
				TID:   c.newTypeID(),
				Cls:   container.ClassArray,
				Sz:    mt.Sz * n,
				BaseT: mt,
				ADims: append([]uint64(nil), m.Dims...),
			}
		}
		t.Members = append(t.Members, memberRec{MName: m.Name, Offset: m.Offset, T: mt, Dims: m.Dims})
	}
	return t, nil
}

// EnumType builds an enumeration over an integer base type, keeping
// member declaration order.
func (c *Container) EnumType(base container.Type, members []container.EnumMember) (container.Type, error) {
	bt, ok := base.(*typ)
	if !ok || bt.Cls != container.ClassInteger {
		return nil, fmt.Errorf("mem: enum base must be a native integer type")
	}
	t := &typ{TID: c.newTypeID(), Cls: container.ClassEnum, Sz: bt.Sz, BaseT: bt}
	for _, m := range members {
		if uint64(len(m.Value)) != bt.Sz {
			return nil, fmt.Errorf("mem: enum member %q value width %d, want %d", m.Name, len(m.Value), bt.Sz)
		}
		t.Enums = append(t.Enums, container.EnumMember{Name: m.Name, Value: append([]byte(nil), m.Value...)})
	}
	return t, nil
}

// VLenType builds a variable-length sequence descriptor.
func (c *Container) VLenType(base container.Type) (container.Type, error) {
	bt, ok := base.(*typ)
	if !ok {
		return nil, fmt.Errorf("mem: foreign vlen base type")
	}
	return &typ{TID: c.newTypeID(), Cls: container.ClassVLen, Sz: bt.Sz, BaseT: bt}, nil
}

// OpaqueType builds an opaque descriptor of the given byte size.
func (c *Container) OpaqueType(size uint64) container.Type {
	return &typ{TID: c.newTypeID(), Cls: container.ClassOpaque, Sz: size}
}
