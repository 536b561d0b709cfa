package netcdf

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefDim(t *testing.T) {
	f := bufFile(t)
	root := f.Root()

	lat, err := root.DefDim("lat", 180)
	require.NoError(t, err)
	assert.Equal(t, 0, lat.ID())
	assert.Equal(t, uint64(180), lat.Len())
	assert.False(t, lat.IsUnlimited())

	time, err := root.DefDim("time", LenUnlimited)
	require.NoError(t, err)
	assert.Equal(t, 1, time.ID())
	assert.True(t, time.IsUnlimited())
	assert.Equal(t, uint64(0), time.Len())

	_, err = root.DefDim("lat", 10)
	assert.ErrorIs(t, err, ErrExists)
	_, err = root.DefDim("", 10)
	assert.ErrorIs(t, err, ErrBadName)
	_, err = root.DefDim("a/b", 10)
	assert.ErrorIs(t, err, ErrBadName)

	got, err := root.DimByName("lat")
	require.NoError(t, err)
	assert.Same(t, lat, got)
	got, err = root.Dim(1)
	require.NoError(t, err)
	assert.Same(t, time, got)
	_, err = root.Dim(99)
	assert.ErrorIs(t, err, ErrNotDefined)
}

func TestDefDimRequiresDefineMode(t *testing.T) {
	f := bufFile(t)
	require.NoError(t, f.EndDef())

	_, err := f.Root().DefDim("late", 4)
	assert.ErrorIs(t, err, ErrNotInDefine)

	require.NoError(t, f.Redef())
	_, err = f.Root().DefDim("late", 4)
	assert.NoError(t, err)
}

func TestDimScopeResolution(t *testing.T) {
	f := bufFile(t)
	root := f.Root()

	lat, err := root.DefDim("lat", 90)
	require.NoError(t, err)
	sub, err := root.DefGroup("regional")
	require.NoError(t, err)

	// A subgroup sees its ancestors' dimensions.
	got := sub.findDim(lat.ID())
	assert.Same(t, lat, got)

	// But a parent does not see a subgroup's.
	inner, err := sub.DefDim("station", 12)
	require.NoError(t, err)
	assert.Nil(t, root.findDim(inner.ID()))

	// Same name in a subgroup shadows nothing; both exist.
	lat2, err := sub.DefDim("lat", 45)
	require.NoError(t, err)
	assert.NotEqual(t, lat.ID(), lat2.ID())
}

func TestDimIDStability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dims.nc")

	f, err := Create(path)
	require.NoError(t, err)
	root := f.Root()
	_, err = root.DefDim("time", LenUnlimited)
	require.NoError(t, err)
	_, err = root.DefDim("lat", 180)
	require.NoError(t, err)
	_, err = root.DefDim("lon", 360)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// First reopen: ids recovered from the hidden attribute.
	f, err = Open(path)
	require.NoError(t, err)
	root = f.Root()
	lat, err := root.DimByName("lat")
	require.NoError(t, err)
	assert.Equal(t, 1, lat.ID())

	// A dimension added now must not reuse any existing id.
	require.NoError(t, f.Redef())
	lev, err := root.DefDim("lev", 50)
	require.NoError(t, err)
	assert.Equal(t, 3, lev.ID())
	require.NoError(t, f.Close())

	// Second reopen: still stable.
	f, err = Open(path, WithReadOnly())
	require.NoError(t, err)
	defer f.Close()
	root = f.Root()
	for i, name := range []string{"time", "lat", "lon", "lev"} {
		d, err := root.DimByName(name)
		require.NoError(t, err)
		assert.Equal(t, i, d.ID(), name)
	}
	time, err := root.DimByName("time")
	require.NoError(t, err)
	assert.True(t, time.IsUnlimited())
}

func TestUnlimitedDim(t *testing.T) {
	f := bufFile(t)
	root := f.Root()

	assert.Nil(t, root.UnlimitedDim())

	_, err := root.DefDim("lat", 10)
	require.NoError(t, err)
	time, err := root.DefDim("time", LenUnlimited)
	require.NoError(t, err)

	assert.Same(t, time, root.UnlimitedDim())

	sub, err := root.DefGroup("sub")
	require.NoError(t, err)
	assert.Same(t, time, sub.UnlimitedDim(), "unlimited dims are visible from subgroups")
}
