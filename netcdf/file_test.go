package netcdf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStartsInDefineMode(t *testing.T) {
	f := bufFile(t)
	assert.True(t, f.InDefineMode())

	assert.ErrorIs(t, f.Redef(), ErrInDefine)
	require.NoError(t, f.EndDef())
	assert.False(t, f.InDefineMode())
	assert.ErrorIs(t, f.EndDef(), ErrNotInDefine)

	require.NoError(t, f.Redef())
	assert.True(t, f.InDefineMode())
}

func TestOpenStartsInDataMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mode.nc")
	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, f.InDefineMode())
	assert.ErrorIs(t, f.EndDef(), ErrNotInDefine)
}

func TestReadOnlyRejectsMutation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.nc")
	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = Open(path, WithReadOnly())
	require.NoError(t, err)
	defer f.Close()

	assert.True(t, f.ReadOnly())
	assert.ErrorIs(t, f.Redef(), ErrPerm)
	assert.ErrorIs(t, f.Root().PutAttr("x", int32(1)), ErrPerm)
	_, err = f.SetFill(FillOff)
	assert.ErrorIs(t, err, ErrPerm)
	_, err = f.Root().DefDim("d", 1)
	assert.ErrorIs(t, err, ErrPerm)
}

func TestSyncClassicModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classic.nc")
	f, err := Create(path, WithClassicModel())
	require.NoError(t, err)

	// Classic files refuse to sync while defining.
	assert.ErrorIs(t, f.Sync(), ErrInDefine)
	require.NoError(t, f.EndDef())
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	// The restriction is recorded in the file itself.
	f, err = Open(path, WithReadOnly())
	require.NoError(t, err)
	defer f.Close()
	assert.True(t, f.Classic())

	atts, err := f.Root().Attrs()
	require.NoError(t, err)
	assert.Empty(t, atts, "the strict-model marker must stay hidden")
}

func TestSyncImpliesEndDef(t *testing.T) {
	f := bufFile(t)
	_, err := f.Root().DefDim("x", 3)
	require.NoError(t, err)

	require.NoError(t, f.Sync())
	assert.False(t, f.InDefineMode())
}

func TestEndDefFlushes(t *testing.T) {
	f, err := CreateBuffer()
	require.NoError(t, err)
	_, err = f.Root().DefDim("x", 4)
	require.NoError(t, err)
	require.NoError(t, f.EndDef())

	// The image is durable at enddef, before the file is closed.
	buf, err := f.Bytes()
	require.NoError(t, err)
	f2, err := OpenBuffer(buf, WithReadOnly())
	require.NoError(t, err)
	defer f2.Close()
	_, err = f2.Root().DimByName("x")
	assert.NoError(t, err)

	require.NoError(t, f.Close())
}

func TestAbortOnFreshCreateRemovesStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doomed.nc")
	f, err := Create(path)
	require.NoError(t, err)
	_, err = f.Root().DefDim("x", 3)
	require.NoError(t, err)

	require.NoError(t, f.Abort())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAbortAfterSyncKeepsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synced.nc")
	f, err := Create(path)
	require.NoError(t, err)
	_, err = f.Root().DefDim("x", 3)
	require.NoError(t, err)
	require.NoError(t, f.Sync())

	// Define mode ended at the sync; the durable file survives the
	// abort.
	require.NoError(t, f.Abort())
	_, err = os.Stat(path)
	require.NoError(t, err)

	f, err = Open(path, WithReadOnly())
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Root().DimByName("x")
	assert.NoError(t, err)
}

func TestAbortAfterRedefKeepsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kept.nc")
	f, err := Create(path)
	require.NoError(t, err)
	_, err = f.Root().DefDim("x", 3)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, f.Redef())
	_, err = f.Root().DefDim("discarded", 9)
	require.NoError(t, err)
	require.NoError(t, f.Abort())

	// The aborted definition was never written.
	f, err = Open(path, WithReadOnly())
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Root().DimByName("x")
	assert.NoError(t, err)
	_, err = f.Root().DimByName("discarded")
	assert.ErrorIs(t, err, ErrNotDefined)
}

func TestCloseOnlyThroughRoot(t *testing.T) {
	f := bufFile(t)
	sub, err := f.Root().DefGroup("sub")
	require.NoError(t, err)

	assert.ErrorIs(t, sub.Close(), ErrBadGroupID)
	require.NoError(t, f.Root().Close())
	assert.ErrorIs(t, f.Close(), ErrClosed)
}

func TestSetFill(t *testing.T) {
	f := bufFile(t)

	old, err := f.SetFill(FillOff)
	require.NoError(t, err)
	assert.Equal(t, FillOn, old)
	assert.Equal(t, FillOff, f.Fill())

	_, err = f.SetFill(FillMode(42))
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, FillOff, f.Fill())
}

func TestInq(t *testing.T) {
	f := bufFile(t)
	root := f.Root()

	_, err := root.DefDim("lat", 4)
	require.NoError(t, err)
	time, err := root.DefDim("time", LenUnlimited)
	require.NoError(t, err)
	lat, err := root.DimByName("lat")
	require.NoError(t, err)
	_, err = root.DefVar("t2m", TypeFloat, []int{time.ID(), lat.ID()})
	require.NoError(t, err)
	require.NoError(t, root.PutAttr("title", "inq"))

	ndims, nvars, natts, unlimID, err := f.Inq()
	require.NoError(t, err)
	assert.Equal(t, 2, ndims)
	assert.Equal(t, 1, nvars)
	assert.Equal(t, 1, natts)
	assert.Equal(t, time.ID(), unlimID)
}

func TestLeakReportOnRefusedClose(t *testing.T) {
	f := bufFile(t)
	var report bytes.Buffer
	f.SetLeakWriter(&report)

	// An extra reference the model does not own keeps the engine from
	// finalizing; the close must still succeed and print the census.
	f.root.c.Retain()
	require.NoError(t, f.Close())

	assert.Contains(t, report.String(), "still open")
	assert.Contains(t, report.String(), "group")
}

func TestBytesRequiresBufferFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.nc")
	f, err := Create(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Bytes()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestOpenBufferRoundTrip(t *testing.T) {
	f, err := CreateBuffer()
	require.NoError(t, err)
	_, err = f.Root().DefDim("x", 5)
	require.NoError(t, err)
	require.NoError(t, f.Root().PutAttr("origin", "memory"))
	require.NoError(t, f.Close())

	buf, err := f.Bytes()
	require.NoError(t, err)
	require.NotEmpty(t, buf)

	f2, err := OpenBuffer(buf, WithReadOnly())
	require.NoError(t, err)
	defer f2.Close()
	d, err := f2.Root().DimByName("x")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), d.Len())
	a, err := f2.Root().Attr("origin")
	require.NoError(t, err)
	val, err := a.Value()
	require.NoError(t, err)
	assert.Equal(t, "memory", val)
}
