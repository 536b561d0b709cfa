// Package mem implements the container interfaces over an in-memory
// object tree, optionally persisted to a file. It is the reference
// engine used by the netcdf tests and the ncwalk tool, and it backs
// the in-memory (buffer) file mode.
package mem

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"sort"

	"github.com/robert-malhotra/go-netcdf4/container"
)

// node is one object in the tree: a group, a dataset, or a named
// type. Fields are exported for gob.
type node struct {
	Name  string
	Kind  container.ObjectKind
	ObjNo uint64

	Children []*node
	Attrs    []*attrRec

	// Dataset fields.
	T        *typ
	Sp       container.Space
	Props    dsProps
	Attached []uint64 // per-axis attached scale object numbers, 0 = none
	Cache    container.CacheConfig
	HasCache bool

	// Named type payload.
	NT *typ
}

type attrRec struct {
	AName string
	T     *typ
	Sp    container.Space
	V     container.Value
}

type dsProps struct {
	Chunks     []uint64
	Deflate    int
	Shuffle    bool
	Fletcher32 bool
	XFilter    int
	XParams    []uint32
	Fill       *container.Value
	NoFill     bool
	Scale      bool
	ScaleName  string
}

// image is the gob-persisted form of a store.
type image struct {
	Root     *node
	NextObj  uint64
	NextType uint64
}

// Container is an in-memory hierarchical object store.
type Container struct {
	path     string
	buf      []byte // last flushed image for buffer-backed stores
	buffered bool
	readOnly bool
	closed   bool

	root     *node
	nextObj  uint64
	nextType uint64

	cache      container.CacheConfig
	natives    map[container.NativeKind]*typ
	open       map[*node]int
	trackOrder bool
}

func newContainer() *Container {
	c := &Container{
		natives:    make(map[container.NativeKind]*typ),
		open:       make(map[*node]int),
		trackOrder: true,
	}
	c.root = &node{Name: "/", Kind: container.KindGroup, ObjNo: c.newObjNo()}
	return c
}

// Create creates a new path-backed store. The file is not written
// until the first Flush.
func Create(path string) (*Container, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("mem: create %s: %w", path, container.ErrExists)
	}
	c := newContainer()
	c.path = path
	return c, nil
}

// Open opens an existing path-backed store.
func Open(path string, readOnly bool) (*Container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mem: open %s: %w", path, err)
	}
	c, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("mem: open %s: %w", path, err)
	}
	c.path = path
	c.readOnly = readOnly
	return c, nil
}

// CreateBuffer creates a new buffer-backed store.
func CreateBuffer() *Container {
	c := newContainer()
	c.buffered = true
	return c
}

// OpenBuffer opens a store from a previously flushed buffer.
func OpenBuffer(data []byte, readOnly bool) (*Container, error) {
	c, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("mem: open buffer: %w", err)
	}
	c.buffered = true
	c.readOnly = readOnly
	return c, nil
}

func decode(data []byte) (*Container, error) {
	var img image
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&img); err != nil {
		return nil, err
	}
	if img.Root == nil {
		return nil, fmt.Errorf("empty store image")
	}
	c := newContainer()
	c.root = img.Root
	c.nextObj = img.NextObj
	c.nextType = img.NextType
	return c, nil
}

func (c *Container) newObjNo() uint64 {
	c.nextObj++
	return c.nextObj
}

// SetTracksCreationOrder toggles creation-order tracking, emulating
// stores that never recorded it. On by default.
func (c *Container) SetTracksCreationOrder(track bool) { c.trackOrder = track }

// Path returns the backing path, or "" for buffer-backed stores.
func (c *Container) Path() string { return c.path }

// ReadOnly reports whether the store rejects mutation.
func (c *Container) ReadOnly() bool { return c.readOnly }

// SetCache stores the store-level cache configuration.
func (c *Container) SetCache(cfg container.CacheConfig) error {
	c.cache = cfg
	return nil
}

// Root opens the root group.
func (c *Container) Root() (container.Group, error) {
	if c.closed {
		return nil, container.ErrClosed
	}
	return newGroupHandle(c, c.root), nil
}

// Flush encodes the tree to the backing path or buffer.
func (c *Container) Flush() error {
	if c.closed {
		return container.ErrClosed
	}
	if c.readOnly {
		return nil
	}
	var buf bytes.Buffer
	img := image{Root: c.root, NextObj: c.nextObj, NextType: c.nextType}
	if err := gob.NewEncoder(&buf).Encode(&img); err != nil {
		return fmt.Errorf("mem: flush: %w", err)
	}
	if c.buffered {
		c.buf = buf.Bytes()
		return nil
	}
	if err := os.WriteFile(c.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("mem: flush: %w", err)
	}
	return nil
}

// Bytes returns the most recently flushed image of a buffer-backed
// store.
func (c *Container) Bytes() []byte { return c.buf }

// Buffered reports whether the store is backed by a memory buffer
// rather than a file.
func (c *Container) Buffered() bool { return c.buffered }

// OpenObjectCount returns the number of outstanding handles.
func (c *Container) OpenObjectCount() int {
	n := 0
	for _, v := range c.open {
		n += v
	}
	return n
}

// OpenObjects describes the outstanding handles for leak reports.
func (c *Container) OpenObjects() []string {
	var out []string
	for n, v := range c.open {
		kind := "group"
		switch n.Kind {
		case container.KindDataset:
			kind = "dataset"
		case container.KindNamedType:
			kind = "named type"
		}
		out = append(out, fmt.Sprintf("%s %q (refs %d)", kind, n.Name, v))
	}
	sort.Strings(out)
	return out
}

// Close finalizes the store, refusing while handles remain open.
func (c *Container) Close() error {
	if c.closed {
		return container.ErrClosed
	}
	if c.OpenObjectCount() > 0 {
		c.closed = true
		return container.ErrObjectsOpen
	}
	if !c.readOnly {
		if err := c.Flush(); err != nil {
			return err
		}
	}
	c.closed = true
	return nil
}

// Remove deletes the backing storage of a closed store.
func (c *Container) Remove() error {
	if !c.closed {
		return fmt.Errorf("mem: remove: store still open")
	}
	c.buf = nil
	if c.buffered || c.path == "" {
		return nil
	}
	if err := os.Remove(c.path); err != nil {
		if os.IsNotExist(err) {
			return nil // never flushed
		}
		return fmt.Errorf("mem: remove: %w", err)
	}
	return nil
}

func (c *Container) release(n *node) error {
	if c.open[n] <= 0 {
		return fmt.Errorf("mem: close of unopened object %q", n.Name)
	}
	c.open[n]--
	if c.open[n] == 0 {
		delete(c.open, n)
	}
	return nil
}

func (n *node) child(name string) *node {
	for _, ch := range n.Children {
		if ch.Name == name {
			return ch
		}
	}
	return nil
}

func (n *node) findAttr(name string) *attrRec {
	for _, a := range n.Attrs {
		if a.AName == name {
			return a
		}
	}
	return nil
}

// attrOps implements container.AttrHolder for groups and datasets.
type attrOps struct {
	c *Container
	n *node
}

func (o attrOps) NumAttrs() (int, error) { return len(o.n.Attrs), nil }

func (o attrOps) AttrByIndex(i int) (container.Attr, error) {
	if i < 0 || i >= len(o.n.Attrs) {
		return nil, fmt.Errorf("mem: attribute index %d: %w", i, container.ErrNotFound)
	}
	return &attrHandle{rec: o.n.Attrs[i]}, nil
}

func (o attrOps) OpenAttr(name string) (container.Attr, error) {
	rec := o.n.findAttr(name)
	if rec == nil {
		return nil, fmt.Errorf("mem: attribute %q: %w", name, container.ErrNotFound)
	}
	return &attrHandle{rec: rec}, nil
}

func (o attrOps) HasAttr(name string) (bool, error) {
	return o.n.findAttr(name) != nil, nil
}

func (o attrOps) WriteAttr(name string, t container.Type, space container.Space, v container.Value) error {
	if o.c.readOnly {
		return container.ErrReadOnly
	}
	tt, ok := t.(*typ)
	if !ok {
		return fmt.Errorf("mem: foreign attribute type for %q", name)
	}
	if rec := o.n.findAttr(name); rec != nil {
		rec.T, rec.Sp, rec.V = tt, space, v
		return nil
	}
	o.n.Attrs = append(o.n.Attrs, &attrRec{AName: name, T: tt, Sp: space, V: v})
	return nil
}

// attrHandle is an opened attribute. Close is a no-op; attributes are
// not tracked by the open-object census.
type attrHandle struct {
	rec *attrRec
}

func (a *attrHandle) Name() string                    { return a.rec.AName }
func (a *attrHandle) Type() (container.Type, error)   { return a.rec.T, nil }
func (a *attrHandle) Space() (container.Space, error) { return a.rec.Sp, nil }
func (a *attrHandle) Close() error                    { return nil }

func (a *attrHandle) ReadRaw() ([]byte, error) {
	return append([]byte(nil), a.rec.V.Raw...), nil
}

func (a *attrHandle) ReadStrings() ([]string, error) {
	return append([]string(nil), a.rec.V.Strings...), nil
}

func (a *attrHandle) ReadVLens() ([][]byte, error) {
	out := make([][]byte, len(a.rec.V.VLens))
	for i, b := range a.rec.V.VLens {
		out[i] = append([]byte(nil), b...)
	}
	return out, nil
}

// groupHandle is an opened group.
type groupHandle struct {
	c *Container
	n *node
	attrOps
}

func newGroupHandle(c *Container, n *node) *groupHandle {
	c.open[n]++
	return &groupHandle{c: c, n: n, attrOps: attrOps{c: c, n: n}}
}

func (g *groupHandle) Name() string     { return g.n.Name }
func (g *groupHandle) ObjectNo() uint64 { return g.n.ObjNo }
func (g *groupHandle) Retain()          { g.c.open[g.n]++ }
func (g *groupHandle) Close() error     { return g.c.release(g.n) }

func (g *groupHandle) TracksCreationOrder() bool { return g.c.trackOrder }

func (g *groupHandle) Children(order container.IterOrder) ([]container.Child, error) {
	out := make([]container.Child, len(g.n.Children))
	for i, ch := range g.n.Children {
		out[i] = container.Child{Name: ch.Name, Kind: ch.Kind}
	}
	if order == container.NameOrder {
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	}
	return out, nil
}

func (g *groupHandle) CreateGroup(name string) (container.Group, error) {
	if g.c.readOnly {
		return nil, container.ErrReadOnly
	}
	if g.n.child(name) != nil {
		return nil, fmt.Errorf("mem: group %q: %w", name, container.ErrExists)
	}
	ch := &node{Name: name, Kind: container.KindGroup, ObjNo: g.c.newObjNo()}
	g.n.Children = append(g.n.Children, ch)
	return newGroupHandle(g.c, ch), nil
}

func (g *groupHandle) OpenGroup(name string) (container.Group, error) {
	ch := g.n.child(name)
	if ch == nil || ch.Kind != container.KindGroup {
		return nil, fmt.Errorf("mem: group %q: %w", name, container.ErrNotFound)
	}
	return newGroupHandle(g.c, ch), nil
}

func (g *groupHandle) CreateDataset(name string, t container.Type, space container.Space, props container.DatasetProps) (container.Dataset, error) {
	if g.c.readOnly {
		return nil, container.ErrReadOnly
	}
	if g.n.child(name) != nil {
		return nil, fmt.Errorf("mem: dataset %q: %w", name, container.ErrExists)
	}
	tt, ok := t.(*typ)
	if !ok {
		return nil, fmt.Errorf("mem: foreign dataset type for %q", name)
	}
	for _, m := range space.MaxDims {
		if m == container.Unlimited && props.Chunks == nil {
			return nil, fmt.Errorf("mem: dataset %q: unlimited extent requires chunking", name)
		}
	}
	ch := &node{
		Name:  name,
		Kind:  container.KindDataset,
		ObjNo: g.c.newObjNo(),
		T:     tt,
		Sp:    space,
		Props: dsProps{
			Chunks:     append([]uint64(nil), props.Chunks...),
			Deflate:    props.DeflateLevel,
			Shuffle:    props.Shuffle,
			Fletcher32: props.Fletcher32,
			XFilter:    props.ExtraFilter,
			XParams:    append([]uint32(nil), props.ExtraFilterParams...),
			Fill:       props.Fill,
			NoFill:     props.NoFill,
			Scale:      props.Scale,
			ScaleName:  props.ScaleName,
		},
		Attached: make([]uint64, space.Rank()),
		Cache:    g.c.cache,
	}
	if props.Cache != nil {
		ch.Cache = *props.Cache
		ch.HasCache = true
	}
	g.n.Children = append(g.n.Children, ch)
	return newDatasetHandle(g.c, ch), nil
}

func (g *groupHandle) OpenDataset(name string) (container.Dataset, error) {
	ch := g.n.child(name)
	if ch == nil || ch.Kind != container.KindDataset {
		return nil, fmt.Errorf("mem: dataset %q: %w", name, container.ErrNotFound)
	}
	return newDatasetHandle(g.c, ch), nil
}

func (g *groupHandle) CommitType(name string, t container.Type) (container.Type, error) {
	if g.c.readOnly {
		return nil, container.ErrReadOnly
	}
	if g.n.child(name) != nil {
		return nil, fmt.Errorf("mem: type %q: %w", name, container.ErrExists)
	}
	tt, ok := t.(*typ)
	if !ok {
		return nil, fmt.Errorf("mem: foreign committed type for %q", name)
	}
	ch := &node{Name: name, Kind: container.KindNamedType, ObjNo: g.c.newObjNo(), NT: tt}
	g.n.Children = append(g.n.Children, ch)
	return tt, nil
}

func (g *groupHandle) OpenNamedType(name string) (container.Type, error) {
	ch := g.n.child(name)
	if ch == nil || ch.Kind != container.KindNamedType {
		return nil, fmt.Errorf("mem: type %q: %w", name, container.ErrNotFound)
	}
	return ch.NT, nil
}

// datasetHandle is an opened dataset.
type datasetHandle struct {
	c *Container
	n *node
	attrOps
}

func newDatasetHandle(c *Container, n *node) *datasetHandle {
	c.open[n]++
	return &datasetHandle{c: c, n: n, attrOps: attrOps{c: c, n: n}}
}

func (d *datasetHandle) Name() string     { return d.n.Name }
func (d *datasetHandle) ObjectNo() uint64 { return d.n.ObjNo }
func (d *datasetHandle) Retain()          { d.c.open[d.n]++ }
func (d *datasetHandle) Close() error     { return d.c.release(d.n) }

func (d *datasetHandle) Space() (container.Space, error) { return d.n.Sp, nil }
func (d *datasetHandle) Type() (container.Type, error)   { return d.n.T, nil }

func (d *datasetHandle) IsScale() (bool, error) { return d.n.Props.Scale, nil }

func (d *datasetHandle) ScaleName() (string, bool, error) {
	if !d.n.Props.Scale || d.n.Props.ScaleName == "" {
		return "", false, nil
	}
	return d.n.Props.ScaleName, true, nil
}

func (d *datasetHandle) AttachScale(axis int, scale container.Dataset) error {
	if d.c.readOnly {
		return container.ErrReadOnly
	}
	if axis < 0 || axis >= len(d.n.Attached) {
		return fmt.Errorf("mem: attach scale: axis %d out of range", axis)
	}
	d.n.Attached[axis] = scale.ObjectNo()
	return nil
}

func (d *datasetHandle) AttachedScale(axis int) (uint64, bool, error) {
	if axis < 0 || axis >= len(d.n.Attached) {
		return 0, false, fmt.Errorf("mem: attached scale: axis %d out of range", axis)
	}
	objno := d.n.Attached[axis]
	return objno, objno != 0, nil
}

func (d *datasetHandle) Chunking() ([]uint64, error) {
	if len(d.n.Props.Chunks) == 0 {
		return nil, nil
	}
	return append([]uint64(nil), d.n.Props.Chunks...), nil
}

func (d *datasetHandle) Filters() ([]container.Filter, error) {
	var out []container.Filter
	p := d.n.Props
	if p.Shuffle {
		out = append(out, container.Filter{ID: container.FilterShuffle})
	}
	if p.Fletcher32 {
		out = append(out, container.Filter{ID: container.FilterFletcher32})
	}
	if p.Deflate > 0 {
		out = append(out, container.Filter{ID: container.FilterDeflate, Params: []uint32{uint32(p.Deflate)}})
	}
	if p.XFilter != 0 {
		out = append(out, container.Filter{ID: p.XFilter, Params: append([]uint32(nil), p.XParams...)})
	}
	return out, nil
}

func (d *datasetHandle) FillValue() (*container.Value, bool, error) {
	if d.n.Props.NoFill || d.n.Props.Fill == nil {
		return nil, false, nil
	}
	return d.n.Props.Fill, true, nil
}

func (d *datasetHandle) CacheConfig() (container.CacheConfig, error) {
	if d.n.HasCache {
		return d.n.Cache, nil
	}
	return d.c.cache, nil
}

func (d *datasetHandle) SetCacheConfig(cfg container.CacheConfig) error {
	d.n.Cache = cfg
	d.n.HasCache = true
	return nil
}
