package mem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-netcdf4/container"
)

func TestPathRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.bin")

	c, err := Create(path)
	require.NoError(t, err)
	root, err := c.Root()
	require.NoError(t, err)

	sub, err := root.CreateGroup("sub")
	require.NoError(t, err)
	ds, err := sub.CreateDataset("data", c.NativeType(container.NativeInt),
		container.Space{Dims: []uint64{4}, MaxDims: []uint64{4}},
		container.DatasetProps{})
	require.NoError(t, err)
	require.NoError(t, ds.WriteAttr("units", c.StringType(1, false),
		container.Space{}, container.Value{Raw: []byte("m")}))
	require.NoError(t, ds.Close())
	require.NoError(t, sub.Close())
	require.NoError(t, root.Close())
	require.NoError(t, c.Close())

	c2, err := Open(path, true)
	require.NoError(t, err)
	root, err = c2.Root()
	require.NoError(t, err)
	sub, err = root.OpenGroup("sub")
	require.NoError(t, err)
	ds, err = sub.OpenDataset("data")
	require.NoError(t, err)

	sp, err := ds.Space()
	require.NoError(t, err)
	assert.Equal(t, []uint64{4}, sp.Dims)
	nt, err := ds.Type()
	require.NoError(t, err)
	assert.True(t, nt.Equal(c2.NativeType(container.NativeInt)),
		"native types must survive persistence structurally")

	ah, err := ds.OpenAttr("units")
	require.NoError(t, err)
	raw, err := ah.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, []byte("m"), raw)
	require.NoError(t, ah.Close())

	require.NoError(t, ds.Close())
	require.NoError(t, sub.Close())
	require.NoError(t, root.Close())
	require.NoError(t, c2.Close())
}

func TestCreateRefusesExistingPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := Create(path)
	assert.ErrorIs(t, err, container.ErrExists)
}

func TestCloseRefusesWithOpenHandles(t *testing.T) {
	c := CreateBuffer()
	root, err := c.Root()
	require.NoError(t, err)

	assert.Equal(t, 1, c.OpenObjectCount())
	err = c.Close()
	assert.ErrorIs(t, err, container.ErrObjectsOpen)

	objs := c.OpenObjects()
	require.Len(t, objs, 1)
	assert.Contains(t, objs[0], `group "/"`)
	_ = root
}

func TestRemoveRequiresClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rm.bin")
	c, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	assert.Error(t, c.Remove())
	require.NoError(t, c.Close())
	require.NoError(t, c.Remove())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestChildrenOrders(t *testing.T) {
	c := CreateBuffer()
	root, err := c.Root()
	require.NoError(t, err)
	for _, name := range []string{"zebra", "mid", "aardvark"} {
		g, err := root.CreateGroup(name)
		require.NoError(t, err)
		require.NoError(t, g.Close())
	}

	byCreation, err := root.Children(container.CreationOrder)
	require.NoError(t, err)
	assert.Equal(t, "zebra", byCreation[0].Name)
	assert.Equal(t, "aardvark", byCreation[2].Name)

	byName, err := root.Children(container.NameOrder)
	require.NoError(t, err)
	assert.Equal(t, "aardvark", byName[0].Name)
	assert.Equal(t, "zebra", byName[2].Name)

	require.NoError(t, root.Close())
}

func TestWriteAttrReplacesInPlace(t *testing.T) {
	c := CreateBuffer()
	root, err := c.Root()
	require.NoError(t, err)
	it := c.NativeType(container.NativeInt)

	require.NoError(t, root.WriteAttr("a", it, container.Space{}, container.Value{Raw: []byte{1, 0, 0, 0}}))
	require.NoError(t, root.WriteAttr("b", it, container.Space{}, container.Value{Raw: []byte{2, 0, 0, 0}}))
	require.NoError(t, root.WriteAttr("a", it, container.Space{}, container.Value{Raw: []byte{9, 0, 0, 0}}))

	n, err := root.NumAttrs()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	first, err := root.AttrByIndex(0)
	require.NoError(t, err)
	assert.Equal(t, "a", first.Name())
	raw, err := first.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, byte(9), raw[0])
	require.NoError(t, root.Close())
}

func TestWriteAttrRejectsForeignType(t *testing.T) {
	c := CreateBuffer()
	root, err := c.Root()
	require.NoError(t, err)

	err = root.WriteAttr("a", c.NativeType(container.NativeInt),
		container.Space{}, container.Value{Raw: []byte{1, 0, 0, 0}})
	assert.NoError(t, err)

	err = root.WriteAttr("b", foreignType{},
		container.Space{}, container.Value{Raw: []byte{1, 0, 0, 0}})
	assert.Error(t, err)
	require.NoError(t, root.Close())
}

// foreignType is a container.Type from some other engine.
type foreignType struct{ container.Type }

func TestUnlimitedRequiresChunks(t *testing.T) {
	c := CreateBuffer()
	root, err := c.Root()
	require.NoError(t, err)
	defer root.Close()

	_, err = root.CreateDataset("bad", c.NativeType(container.NativeFloat),
		container.Space{Dims: []uint64{0}, MaxDims: []uint64{container.Unlimited}},
		container.DatasetProps{})
	assert.Error(t, err)

	ds, err := root.CreateDataset("good", c.NativeType(container.NativeFloat),
		container.Space{Dims: []uint64{0}, MaxDims: []uint64{container.Unlimited}},
		container.DatasetProps{Chunks: []uint64{64}})
	require.NoError(t, err)
	require.NoError(t, ds.Close())
}

func TestScaleAttachment(t *testing.T) {
	c := CreateBuffer()
	root, err := c.Root()
	require.NoError(t, err)
	ft := c.NativeType(container.NativeFloat)

	scale, err := root.CreateDataset("x", ft,
		container.Space{Dims: []uint64{5}, MaxDims: []uint64{5}},
		container.DatasetProps{Scale: true, ScaleName: "x"})
	require.NoError(t, err)
	data, err := root.CreateDataset("v", ft,
		container.Space{Dims: []uint64{5}, MaxDims: []uint64{5}},
		container.DatasetProps{})
	require.NoError(t, err)

	_, ok, err := data.AttachedScale(0)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, data.AttachScale(0, scale))
	objno, ok, err := data.AttachedScale(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, scale.ObjectNo(), objno)

	isScale, err := scale.IsScale()
	require.NoError(t, err)
	assert.True(t, isScale)
	name, ok, err := scale.ScaleName()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x", name)

	require.NoError(t, scale.Close())
	require.NoError(t, data.Close())
	require.NoError(t, root.Close())
}

func TestTypeFactory(t *testing.T) {
	c := CreateBuffer()

	// Native descriptors are canonical per store.
	assert.Same(t, c.NativeType(container.NativeInt), c.NativeType(container.NativeInt))

	vt, err := c.VLenType(c.NativeType(container.NativeDouble))
	require.NoError(t, err)
	assert.Equal(t, container.ClassVLen, vt.Class())
	assert.Equal(t, container.ClassFloat, vt.Base().Class())

	et, err := c.EnumType(c.NativeType(container.NativeSChar), []container.EnumMember{
		{Name: "lo", Value: []byte{1}},
		{Name: "hi", Value: []byte{2}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, et.NumMembers())
	m, err := et.EnumMember(0)
	require.NoError(t, err)
	assert.Equal(t, "lo", m.Name)

	_, err = c.EnumType(c.NativeType(container.NativeFloat), []container.EnumMember{
		{Name: "x", Value: []byte{0, 0, 0, 0}},
	})
	assert.Error(t, err, "enum base must be an integer type")
}

func TestBufferRoundTrip(t *testing.T) {
	c := CreateBuffer()
	root, err := c.Root()
	require.NoError(t, err)
	g, err := root.CreateGroup("payload")
	require.NoError(t, err)
	require.NoError(t, g.Close())
	require.NoError(t, root.Close())
	require.NoError(t, c.Close())

	buf := c.Bytes()
	require.NotEmpty(t, buf)

	c2, err := OpenBuffer(buf, true)
	require.NoError(t, err)
	root, err = c2.Root()
	require.NoError(t, err)
	_, err = root.OpenGroup("payload")
	require.NoError(t, err)
}

func TestBuffered(t *testing.T) {
	c := CreateBuffer()
	assert.True(t, c.Buffered())

	c2, err := Create(filepath.Join(t.TempDir(), "disk.bin"))
	require.NoError(t, err)
	assert.False(t, c2.Buffered())
}
