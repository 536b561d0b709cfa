package netcdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefVar(t *testing.T) {
	f := bufFile(t)
	root := f.Root()

	lat, err := root.DefDim("lat", 8)
	require.NoError(t, err)

	v, err := root.DefVar("t2m", TypeFloat, []int{lat.ID()})
	require.NoError(t, err)
	assert.Equal(t, "t2m", v.Name())
	assert.Equal(t, TypeFloat, v.Type().ID())
	assert.Equal(t, []int{lat.ID()}, v.DimIDs())

	_, err = root.DefVar("t2m", TypeFloat, nil)
	assert.ErrorIs(t, err, ErrExists)
	_, err = root.DefVar("bad", TypeFloat, []int{99})
	assert.ErrorIs(t, err, ErrNotDefined)
	_, err = root.DefVar("worse", TypeID(999), nil)
	assert.ErrorIs(t, err, ErrBadType)

	scalar, err := root.DefVar("count", TypeInt64, nil)
	require.NoError(t, err)
	assert.Zero(t, scalar.NDims())
}

func TestDefVarUserType(t *testing.T) {
	f := bufFile(t)
	root := f.Root()

	et, err := root.DefEnum("state", TypeByte, []EnumEntry{
		{Name: "off", Value: 0}, {Name: "on", Value: 1},
	})
	require.NoError(t, err)
	x, err := root.DefDim("x", 3)
	require.NoError(t, err)

	v, err := root.DefVar("switches", et.ID(), []int{x.ID()})
	require.NoError(t, err)
	assert.Same(t, et, v.Type())
	require.NoError(t, f.Close())

	buf, err := f.Bytes()
	require.NoError(t, err)
	f2, err := OpenBuffer(buf, WithReadOnly())
	require.NoError(t, err)
	defer f2.Close()

	v2, err := f2.Root().Var("switches")
	require.NoError(t, err)
	assert.Equal(t, ClassEnum, v2.Type().Class())
	assert.Equal(t, "state", v2.Type().Name())
}

func TestSetChunkingValidation(t *testing.T) {
	f := bufFile(t)
	root := f.Root()
	lat, err := root.DefDim("lat", 8)
	require.NoError(t, err)
	lon, err := root.DefDim("lon", 16)
	require.NoError(t, err)
	v, err := root.DefVar("z", TypeFloat, []int{lat.ID(), lon.ID()})
	require.NoError(t, err)

	assert.ErrorIs(t, v.SetChunking([]uint64{4}), ErrInvalid)
	assert.ErrorIs(t, v.SetChunking([]uint64{4, 0}), ErrInvalid)
	assert.ErrorIs(t, v.SetChunking([]uint64{9, 4}), ErrInvalid)

	require.NoError(t, v.SetChunking([]uint64{4, 8}))
	assert.Equal(t, []uint64{4, 8}, v.Chunking())
}

func TestSetContiguousRejectsUnlimited(t *testing.T) {
	f := bufFile(t)
	root := f.Root()
	time, err := root.DefDim("time", LenUnlimited)
	require.NoError(t, err)
	v, err := root.DefVar("rec", TypeInt, []int{time.ID()})
	require.NoError(t, err)

	assert.ErrorIs(t, v.SetContiguous(), ErrInvalid)
}

func TestSetDeflateValidation(t *testing.T) {
	f := bufFile(t)
	root := f.Root()
	x, err := root.DefDim("x", 4)
	require.NoError(t, err)
	v, err := root.DefVar("d", TypeFloat, []int{x.ID()})
	require.NoError(t, err)

	assert.ErrorIs(t, v.SetDeflate(false, -1), ErrInvalid)
	assert.ErrorIs(t, v.SetDeflate(false, 10), ErrInvalid)
	require.NoError(t, v.SetDeflate(true, 9))
	on, level := v.Deflate()
	assert.True(t, on)
	assert.Equal(t, 9, level)
	assert.True(t, v.Shuffle())

	// Compression pins the layout.
	assert.ErrorIs(t, v.SetContiguous(), ErrInvalid)
}

func TestLayoutFrozenAfterEndDef(t *testing.T) {
	f := bufFile(t)
	root := f.Root()
	x, err := root.DefDim("x", 4)
	require.NoError(t, err)
	v, err := root.DefVar("d", TypeFloat, []int{x.ID()})
	require.NoError(t, err)
	require.NoError(t, f.EndDef())

	require.NoError(t, f.Redef())
	assert.ErrorIs(t, v.SetChunking([]uint64{2}), ErrInvalid)
	assert.ErrorIs(t, v.SetDeflate(false, 1), ErrInvalid)

	// Attributes are still fair game in a later define phase.
	assert.NoError(t, v.PutAttr("long_name", "frozen"))
}

func TestSetFillTypeMismatch(t *testing.T) {
	f := bufFile(t)
	root := f.Root()
	v, err := root.DefVar("d", TypeFloat, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, v.SetFill(float64(1)), ErrBadType)
	require.NoError(t, v.SetFill(float32(1)))
	fill, defined := v.FillValue()
	require.True(t, defined)
	assert.Len(t, fill.Raw, 4)

	require.NoError(t, v.SetNoFill())
	_, defined = v.FillValue()
	assert.False(t, defined)
	assert.True(t, v.NoFill())
}

func TestDefaultChunksFitCache(t *testing.T) {
	time := &Dimension{name: "time", unlimited: true}
	lat := &Dimension{name: "lat", len: 3600}
	lon := &Dimension{name: "lon", len: 7200}
	v := &Variable{
		typ:  &Type{size: 8},
		dims: []*Dimension{time, lat, lon},
	}
	chunks := v.defaultChunks()
	require.Len(t, chunks, 3)
	bytes := v.typ.size
	for _, c := range chunks {
		assert.NotZero(t, c)
		bytes *= c
	}
	assert.LessOrEqual(t, bytes, uint64(DefaultChunkCacheSize))
}
