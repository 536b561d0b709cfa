package netcdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-netcdf4/container"
)

func TestAtomicClassification(t *testing.T) {
	f := bufFile(t)

	cases := []struct {
		kind container.NativeKind
		want TypeID
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
	for _, tc := range cases {
		id, err := f.typeIDForNative(f.c.NativeType(tc.kind))
		require.NoError(t, err)
		assert.Equal(t, tc.want, id)
	}

	id, err := f.typeIDForNative(f.c.StringType(0, true))
	require.NoError(t, err)
	assert.Equal(t, TypeString, id)

	id, err = f.typeIDForNative(f.c.StringType(8, false))
	require.NoError(t, err)
	assert.Equal(t, TypeChar, id)

	_, err = f.typeIDForNative(f.c.OpaqueType(4))
	assert.ErrorIs(t, err, ErrBadType)
}

func TestDefEnumKeepsDeclarationOrder(t *testing.T) {
	f := bufFile(t)
	root := f.Root()

	// Deliberately not in ascending value order.
	entries := []EnumEntry{
		{Name: "stratus", Value: 3},
		{Name: "cumulus", Value: 1},
		{Name: "cirrus", Value: 2},
	}
	et, err := root.DefEnum("cloud_type", TypeByte, entries)
	require.NoError(t, err)
	assert.Equal(t, ClassEnum, et.Class())
	assert.Equal(t, TypeByte, et.BaseType())
	assert.GreaterOrEqual(t, et.ID(), FirstUserType)

	members := et.Members()
	require.Len(t, members, 3)
	assert.Equal(t, "stratus", members[0].Name)
	assert.Equal(t, []byte{3}, members[0].Value)
	assert.Equal(t, "cumulus", members[1].Name)
	assert.Equal(t, "cirrus", members[2].Name)

	require.NoError(t, f.Close())
	buf, err := f.Bytes()
	require.NoError(t, err)

	f2, err := OpenBuffer(buf, WithReadOnly())
	require.NoError(t, err)
	defer f2.Close()

	et2, err := f2.Root().TypeByName("cloud_type")
	require.NoError(t, err)
	members = et2.Members()
	require.Len(t, members, 3)
	assert.Equal(t, "stratus", members[0].Name, "declaration order must survive storage")
	assert.Equal(t, "cumulus", members[1].Name)
	assert.Equal(t, "cirrus", members[2].Name)
}

func TestDefEnumValidation(t *testing.T) {
	f := bufFile(t)
	root := f.Root()

	_, err := root.DefEnum("bad_base", TypeFloat, []EnumEntry{{Name: "x", Value: 1}})
	assert.ErrorIs(t, err, ErrBadType)
	_, err = root.DefEnum("empty", TypeInt, nil)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = root.DefEnum("noname", TypeInt, []EnumEntry{{Value: 1}})
	assert.ErrorIs(t, err, ErrBadName)
}

func TestDefCompoundRoundTrip(t *testing.T) {
	f := bufFile(t)
	root := f.Root()

	ct, err := root.DefCompound("obs", 16, []Field{
		{Name: "lat", Offset: 0, Type: TypeFloat},
		{Name: "lon", Offset: 4, Type: TypeFloat},
		{Name: "samples", Offset: 8, Type: TypeShort, Dims: []int{4}},
	})
	require.NoError(t, err)
	assert.Equal(t, ClassCompound, ct.Class())
	assert.Equal(t, uint64(16), ct.Size())

	vt, err := root.DefVLen("profile", TypeDouble)
	require.NoError(t, err)
	assert.Equal(t, ClassVLen, vt.Class())
	assert.Equal(t, TypeDouble, vt.BaseType())

	ot, err := root.DefOpaque("checksum", 20)
	require.NoError(t, err)
	assert.Equal(t, ClassOpaque, ot.Class())

	require.NoError(t, f.Close())
	buf, err := f.Bytes()
	require.NoError(t, err)

	f2, err := OpenBuffer(buf, WithReadOnly())
	require.NoError(t, err)
	defer f2.Close()

	ct2, err := f2.Root().TypeByName("obs")
	require.NoError(t, err)
	fields := ct2.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, "lat", fields[0].Name)
	assert.Equal(t, uint64(4), fields[1].Offset)
	assert.Equal(t, TypeShort, fields[2].Type)
	assert.Equal(t, []int{4}, fields[2].Dims)

	vt2, err := f2.Root().TypeByName("profile")
	require.NoError(t, err)
	assert.Equal(t, ClassVLen, vt2.Class())
	assert.Equal(t, TypeDouble, vt2.BaseType())

	ot2, err := f2.Root().TypeByName("checksum")
	require.NoError(t, err)
	assert.Equal(t, uint64(20), ot2.Size())
}

func TestUserTypeResolutionIdempotent(t *testing.T) {
	f := bufFile(t)
	root := f.Root()

	et, err := root.DefEnum("flags", TypeInt, []EnumEntry{{Name: "on", Value: 1}})
	require.NoError(t, err)

	// Resolving the same native descriptor twice must yield the same
	// Type, not a duplicate registration.
	id1, err := f.typeIDForNative(et.native)
	require.NoError(t, err)
	id2, err := f.typeIDForNative(et.native)
	require.NoError(t, err)
	assert.Equal(t, et.ID(), id1)
	assert.Equal(t, id1, id2)
	assert.Len(t, f.userTypes, 1)
}

func TestTypeNameCollision(t *testing.T) {
	f := bufFile(t)
	root := f.Root()

	_, err := root.DefVLen("dup", TypeInt)
	require.NoError(t, err)
	_, err = root.DefOpaque("dup", 8)
	assert.ErrorIs(t, err, ErrExists)
}

func TestClampDimLen(t *testing.T) {
	n, clamped := clampDimLen(1<<33, 64)
	assert.Equal(t, uint64(1<<33), n)
	assert.False(t, clamped)

	n, clamped = clampDimLen(1<<33, 32)
	assert.Equal(t, uint64(1<<32-1), n)
	assert.True(t, clamped)

	n, clamped = clampDimLen(100, 32)
	assert.Equal(t, uint64(100), n)
	assert.False(t, clamped)
}
