package netcdf

import (
	"fmt"
	"io"
	"os"

	"github.com/robert-malhotra/go-netcdf4/container"
	"github.com/robert-malhotra/go-netcdf4/container/mem"
)

// ncPropsValue is the provenance string written once at create time.
const ncPropsValue = "version=2,netcdf=go-netcdf4/1.0.0"

// FillMode selects whether newly written variables are prefilled.
type FillMode int

const (
	FillOn FillMode = iota
	FillOff
)

// Option configures Open and Create.
type Option func(*options)

type options struct {
	readOnly bool
	classic  bool
	fill     FillMode
	cache    *container.CacheConfig
}

func defaultOptions() *options {
	return &options{fill: FillOn}
}

// WithReadOnly opens the file for reading only.
func WithReadOnly() Option {
	return func(o *options) { o.readOnly = true }
}

// WithClassicModel restricts the file to the classic data model. The
// restriction is recorded in the file and honored on later opens.
func WithClassicModel() Option {
	return func(o *options) { o.classic = true }
}

// WithFill sets the initial fill mode.
func WithFill(mode FillMode) Option {
	return func(o *options) {
		if mode == FillOn || mode == FillOff {
			o.fill = mode
		}
	}
}

// WithChunkCache overrides the process-wide chunk cache defaults for
// this file only.
func WithChunkCache(size, nelems uint64, preemption float64) Option {
	return func(o *options) {
		if preemption < 0 || preemption > 1 {
			return
		}
		o.cache = &container.CacheConfig{Size: size, NElems: nelems, Preemption: preemption}
	}
}

// File is an open file. A file is created in define mode and opened
// in data mode; metadata mutations require define mode and are
// written to the container on EndDef, Sync, or Close.
type File struct {
	c    container.Container
	root *Group

	readOnly   bool
	classic    bool
	defineMode bool
	// redefing marks a define session entered through Redef rather
	// than Create; EndDef clears it.
	redefing bool
	aborting bool
	closed   bool

	fill      FillMode
	dirtyMeta bool

	// ncProps is pending until the provenance attribute is written.
	ncProps bool

	nextDimID int

	userTypes    []*Type
	typeCache    map[uint64]*Type
	nextUserType TypeID

	cache container.CacheConfig
	leakW io.Writer
}

// Create creates a new file at path and leaves it in define mode.
func Create(path string, opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.readOnly {
		return nil, fmt.Errorf("create read-only: %w", ErrInvalid)
	}
	c, err := mem.Create(path)
	if err != nil {
		return nil, err
	}
	return finishCreate(c, o)
}

// CreateBuffer creates a new in-memory file. Bytes returns its final
// content once the file is closed.
func CreateBuffer(opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.readOnly {
		return nil, fmt.Errorf("create read-only: %w", ErrInvalid)
	}
	return finishCreate(mem.CreateBuffer(), o)
}

func finishCreate(c container.Container, o *options) (*File, error) {
	f := newFile(c, o)
	f.defineMode = true
	f.ncProps = true
	if err := c.SetCache(f.cache); err != nil {
		c.Close()
		return nil, err
	}
	rootC, err := c.Root()
	if err != nil {
		c.Close()
		return nil, err
	}
	f.root = &Group{file: f, name: "/", c: rootC, attrState: attrsRead}
	return f, nil
}

// Open opens an existing file at path in data mode.
func Open(path string, opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	c, err := mem.Open(path, o.readOnly)
	if err != nil {
		return nil, err
	}
	return finishOpen(c, o)
}

// OpenBuffer opens a file image held in memory. Without WithReadOnly
// the image is copied and Bytes returns the modified content on
// close.
func OpenBuffer(buf []byte, opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	c, err := mem.OpenBuffer(buf, o.readOnly)
	if err != nil {
		return nil, err
	}
	return finishOpen(c, o)
}

func finishOpen(c container.Container, o *options) (*File, error) {
	f := newFile(c, o)
	f.readOnly = c.ReadOnly()
	if err := c.SetCache(f.cache); err != nil {
		c.Close()
		return nil, err
	}
	if err := f.readMetadata(); err != nil {
		f.releaseHandles()
		c.Close()
		return nil, err
	}
	// The strict-model marker switches the whole file to the classic
	// rules; it never shows up as an attribute.
	strict, err := f.root.c.HasAttr(attrNC3Strict)
	if err != nil {
		f.releaseHandles()
		c.Close()
		return nil, err
	}
	if strict {
		f.classic = true
	}
	return f, nil
}

func newFile(c container.Container, o *options) *File {
	cache := snapshotChunkCache()
	if o.cache != nil {
		cache = *o.cache
	}
	return &File{
		c:            c,
		readOnly:     o.readOnly,
		classic:      o.classic,
		fill:         o.fill,
		cache:        cache,
		typeCache:    map[uint64]*Type{},
		nextUserType: FirstUserType,
		leakW:        os.Stdout,
	}
}

// Root returns the root group.
func (f *File) Root() *Group { return f.root }

// Path returns the storage path, or "" for in-memory files.
func (f *File) Path() string { return f.c.Path() }

// ReadOnly reports whether the file rejects modification.
func (f *File) ReadOnly() bool { return f.readOnly }

// Classic reports whether the file follows the classic data model.
func (f *File) Classic() bool { return f.classic }

// InDefineMode reports whether metadata may currently be defined.
func (f *File) InDefineMode() bool { return f.defineMode }

// SetLeakWriter redirects the open-handle report printed when the
// container refuses to finalize on close.
func (f *File) SetLeakWriter(w io.Writer) {
	if w != nil {
		f.leakW = w
	}
}

// SetFill sets the file's fill mode and returns the previous mode.
func (f *File) SetFill(mode FillMode) (FillMode, error) {
	if f.closed {
		return 0, ErrClosed
	}
	if f.readOnly {
		return 0, fmt.Errorf("set fill: %w", ErrPerm)
	}
	if mode != FillOn && mode != FillOff {
		return 0, fmt.Errorf("fill mode %d: %w", mode, ErrInvalid)
	}
	old := f.fill
	f.fill = mode
	return old, nil
}

// Fill returns the file's fill mode.
func (f *File) Fill() FillMode { return f.fill }

// Inq reports the root group's dimension, variable, and attribute
// counts and the first unlimited dimension id.
func (f *File) Inq() (ndims, nvars, natts, unlimID int, err error) {
	if f.closed {
		return 0, 0, 0, 0, ErrClosed
	}
	return f.root.Inq()
}

func (f *File) requireDefine() error {
	if f.closed {
		return ErrClosed
	}
	if f.readOnly {
		return fmt.Errorf("define: %w", ErrPerm)
	}
	if !f.defineMode {
		return fmt.Errorf("define: %w", ErrNotInDefine)
	}
	return nil
}

// Redef re-enters define mode on a writable file.
func (f *File) Redef() error {
	if f.closed {
		return ErrClosed
	}
	if f.readOnly {
		return fmt.Errorf("redef: %w", ErrPerm)
	}
	if f.defineMode {
		return fmt.Errorf("redef: %w", ErrInDefine)
	}
	f.defineMode = true
	f.redefing = true
	return nil
}

// EndDef leaves define mode, writing all pending metadata to the
// container and flushing it.
func (f *File) EndDef() error {
	if f.closed {
		return ErrClosed
	}
	if !f.defineMode {
		return fmt.Errorf("enddef: %w", ErrNotInDefine)
	}
	if err := f.writeMetadata(); err != nil {
		return err
	}
	if err := f.c.Flush(); err != nil {
		return err
	}
	f.defineMode = false
	f.redefing = false
	return nil
}

// Sync writes pending metadata and flushes the container. Under the
// classic model syncing while in define mode is an error; otherwise
// define mode is ended implicitly.
func (f *File) Sync() error {
	if f.closed {
		return ErrClosed
	}
	if f.readOnly {
		return nil
	}
	if f.defineMode {
		if f.classic {
			return fmt.Errorf("sync: %w", ErrInDefine)
		}
		if err := f.EndDef(); err != nil {
			return err
		}
	} else if f.dirtyMeta {
		if err := f.writeMetadata(); err != nil {
			return err
		}
	}
	return f.c.Flush()
}

// Abort closes the file without writing pending definitions. A file
// still in its initial create-time define session is removed
// entirely; once define mode has ended, or when define mode was
// re-entered with Redef, the storage is kept.
func (f *File) Abort() error {
	if f.closed {
		return ErrClosed
	}
	f.aborting = true
	remove := f.defineMode && !f.redefing
	f.releaseHandles()
	f.closed = true
	if err := f.c.Close(); err != nil {
		f.dumpOpenObjects()
	}
	if remove {
		if err := f.c.Remove(); err != nil {
			return fmt.Errorf("abort: %w", ErrCantRemove)
		}
	}
	return nil
}

// Close writes pending state and closes the file. If the container
// refuses to finalize because handles leaked, the report is printed
// and the close still succeeds.
func (f *File) Close() error {
	if f.closed {
		return ErrClosed
	}
	if !f.readOnly && !f.aborting {
		if f.defineMode {
			if err := f.EndDef(); err != nil {
				return err
			}
		} else if f.dirtyMeta {
			if err := f.writeMetadata(); err != nil {
				return err
			}
		}
		if err := f.c.Flush(); err != nil {
			return err
		}
	}
	f.releaseHandles()
	f.closed = true
	if err := f.c.Close(); err != nil {
		f.dumpOpenObjects()
	}
	return nil
}

// Bytes returns the most recently flushed content of an in-memory
// file; after Close it is the final image.
func (f *File) Bytes() ([]byte, error) {
	type byter interface {
		Bytes() []byte
		Buffered() bool
	}
	b, ok := f.c.(byter)
	if !ok || !b.Buffered() {
		return nil, fmt.Errorf("not an in-memory file: %w", ErrInvalid)
	}
	return b.Bytes(), nil
}

// releaseHandles closes every container handle the model holds:
// variable datasets, retained scale datasets, and group handles,
// children before parents.
func (f *File) releaseHandles() {
	if f.root != nil {
		releaseGroupHandles(f.root)
	}
}

func releaseGroupHandles(g *Group) {
	for _, sub := range g.groups {
		releaseGroupHandles(sub)
	}
	for _, v := range g.vars {
		if v.ds != nil {
			v.ds.Close()
			v.ds = nil
		}
	}
	for _, d := range g.dims {
		if d.scale != nil {
			d.scale.Close()
			d.scale = nil
		}
	}
	if g.c != nil {
		g.c.Close()
		g.c = nil
	}
}

// dumpOpenObjects reports container handles still open after the
// model released everything it owned.
func (f *File) dumpOpenObjects() {
	n := f.c.OpenObjectCount()
	fmt.Fprintf(f.leakW, "%d object(s) still open on close of %s\n", n, f.describe())
	for _, name := range f.c.OpenObjects() {
		fmt.Fprintf(f.leakW, "\t%s\n", name)
	}
}

func (f *File) describe() string {
	if p := f.c.Path(); p != "" {
		return p
	}
	return "in-memory file"
}
