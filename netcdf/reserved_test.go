package netcdf

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservedAttrsSorted(t *testing.T) {
	assert.True(t, sort.SliceIsSorted(reservedAttrs[:], func(i, j int) bool {
		return reservedAttrs[i].Name < reservedAttrs[j].Name
	}), "registry must stay sorted for binary search")
}

func TestLookupReserved(t *testing.T) {
	for _, r := range reservedAttrs {
		got, ok := LookupReserved(r.Name)
		require.True(t, ok, r.Name)
		assert.Equal(t, r.Flags, got.Flags, r.Name)
	}

	_, ok := LookupReserved("units")
	assert.False(t, ok)
	_, ok = LookupReserved("")
	assert.False(t, ok)
	// Case matters.
	_, ok = LookupReserved("class")
	assert.False(t, ok)
}

func TestReservedFlags(t *testing.T) {
	r, ok := LookupReserved(attrDimID)
	require.True(t, ok)
	assert.NotZero(t, r.Flags&FlagReadOnly)
	assert.NotZero(t, r.Flags&FlagDimScale)

	r, ok = LookupReserved(attrNCProperties)
	require.True(t, ok)
	assert.NotZero(t, r.Flags&FlagNameOnly)
}

func TestReservedHiddenEverywhere(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hidden.nc")

	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Root().PutAttr("title", "visible"))
	require.NoError(t, f.Close())

	f, err = Open(path)
	require.NoError(t, err)
	defer f.Close()

	atts, err := f.Root().Attrs()
	require.NoError(t, err)
	require.Len(t, atts, 1, "provenance and bookkeeping attributes must stay hidden")
	assert.Equal(t, "title", atts[0].Name())
}

func TestPutAttrRejectsReservedNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reserved.nc")

	f, err := Create(path)
	require.NoError(t, err)
	defer f.Close()

	err = f.Root().PutAttr(attrNCProperties, "forged")
	assert.ErrorIs(t, err, ErrBadName)
	err = f.Root().PutAttr(attrDimID, int32(7))
	assert.ErrorIs(t, err, ErrBadName)
}
