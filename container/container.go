// Package container defines the narrow interface to the hierarchical
// object store that backs a netCDF-4 file: named groups, typed
// datasets and attributes, and per-dataset cache tuning. The netcdf
// package is written entirely against these interfaces; the binary
// layout of the store is the engine's concern.
package container

import "errors"

// Common errors returned by engine implementations.
var (
	ErrNotFound    = errors.New("container: object not found")
	ErrExists      = errors.New("container: name already in use")
	ErrReadOnly    = errors.New("container: store is read-only")
	ErrClosed      = errors.New("container: store is closed")
	ErrObjectsOpen = errors.New("container: objects still open")
)

// Unlimited is the sentinel maximum extent for a growable dimension.
const Unlimited = ^uint64(0)

// ObjectKind classifies a group member.
type ObjectKind int

const (
	KindGroup ObjectKind = iota
	KindDataset
	KindNamedType
)

// Class is the engine-native datatype class.
type Class int

const (
	ClassInteger Class = iota
	ClassFloat
	ClassString
	ClassCompound
	ClassVLen
	ClassOpaque
	ClassEnum
	ClassArray
)

// ByteOrder describes the stored byte order of a numeric type.
type ByteOrder int

const (
	OrderNone ByteOrder = iota
	OrderLittleEndian
	OrderBigEndian
)

// NativeKind enumerates the platform-native numeric descriptors an
// engine must supply, in the priority order atomic classification
// tests them.
type NativeKind int

const (
	NativeSChar NativeKind = iota
	NativeShort
	NativeInt
	NativeFloat
	NativeDouble
	NativeUChar
	NativeUShort
	NativeUInt
	NativeLLong
	NativeULLong
)

// IterOrder selects the ordering of a group's member iteration.
type IterOrder int

const (
	// CreationOrder iterates members in the order they were created.
	// Only available when the group tracks creation order.
	CreationOrder IterOrder = iota
	// NameOrder iterates members in lexical name order.
	NameOrder
)

// Child describes one member of a group.
type Child struct {
	Name string
	Kind ObjectKind
}

// Space describes the dataspace of a dataset or attribute. A nil Dims
// with Null false is a scalar. MaxDims entries may be Unlimited.
type Space struct {
	Null    bool
	Dims    []uint64
	MaxDims []uint64
}

// Scalar reports whether the space holds exactly one point with no
// dimensions.
func (s Space) Scalar() bool { return !s.Null && len(s.Dims) == 0 }

// Rank returns the number of dimensions.
func (s Space) Rank() int { return len(s.Dims) }

// NumPoints returns the total number of points in the space.
func (s Space) NumPoints() int64 {
	if s.Null {
		return 0
	}
	n := int64(1)
	for _, d := range s.Dims {
		n *= int64(d)
	}
	return n
}

// Value is a decoded dataset or attribute payload. Exactly one field
// is populated, matching the three buffer disciplines of the format:
// one contiguous byte block, independently allocated strings, or
// independently allocated variable-length elements.
type Value struct {
	Raw     []byte
	Strings []string
	VLens   [][]byte
}

// CompoundMember describes one field of a compound type under
// construction. Dims is non-nil when the member is a fixed-size array.
type CompoundMember struct {
	Name   string
	Offset uint64
	Type   Type
	Dims   []uint64
}

// EnumMember is one name/value pair of an enumeration, in declaration
// order. Value is the raw little-endian encoding at the base type's
// width.
type EnumMember struct {
	Name  string
	Value []byte
}

// Type is an engine-native datatype descriptor.
type Type interface {
	// ID is a handle unique within the containing store for the
	// lifetime of the store. Committed (named) types keep a stable ID;
	// transient descriptors get fresh ones.
	ID() uint64
	Class() Class
	Size() uint64
	Order() ByteOrder
	// Equal reports whether two descriptors describe the same type.
	Equal(Type) bool

	// IsVariableString reports, for ClassString and ClassVLen
	// descriptors, whether the type is a variable-length string.
	IsVariableString() bool

	// NumMembers returns the member count of a compound or enum type.
	NumMembers() int
	// Member returns the i'th compound member in declaration order.
	Member(i int) (CompoundMember, error)
	// EnumMember returns the i'th enum member in declaration order.
	EnumMember(i int) (EnumMember, error)

	// Base returns the element type of a vlen, enum, or array type.
	Base() Type
	// ArrayDims returns the extents of a ClassArray type.
	ArrayDims() []uint64
}

// TypeFactory constructs native type descriptors. Engines also expose
// it on the store so metadata writers can persist user-defined types.
type TypeFactory interface {
	NativeType(k NativeKind) Type
	StringType(size uint64, variable bool) Type
	CompoundType(size uint64, members []CompoundMember) (Type, error)
	EnumType(base Type, members []EnumMember) (Type, error)
	VLenType(base Type) (Type, error)
	OpaqueType(size uint64) Type
}

// Handle is the shared lifetime contract of opened objects. Every
// acquired handle must be closed on every exit path; Retain adds an
// owner so shared handles can be released by each owner independently.
type Handle interface {
	Retain()
	Close() error
}

// Attr is an opened attribute.
type Attr interface {
	Name() string
	Type() (Type, error)
	Space() (Space, error)
	// ReadRaw reads the value as one contiguous byte block of
	// npoints x element-size bytes (fixed-width strings included).
	ReadRaw() ([]byte, error)
	// ReadStrings reads a variable-length string value, one
	// independently allocated string per point.
	ReadStrings() ([]string, error)
	// ReadVLens reads a variable-length sequence value, one
	// independently allocated buffer per point.
	ReadVLens() ([][]byte, error)
	Close() error
}

// AttrHolder is implemented by groups and datasets.
type AttrHolder interface {
	NumAttrs() (int, error)
	// AttrByIndex opens the i'th attribute in creation order.
	AttrByIndex(i int) (Attr, error)
	OpenAttr(name string) (Attr, error)
	HasAttr(name string) (bool, error)
	// WriteAttr creates or replaces an attribute.
	WriteAttr(name string, typ Type, space Space, v Value) error
}

// CacheConfig is the chunk cache tuning applied to a store at open
// time and to individual datasets afterwards.
type CacheConfig struct {
	// Size is the cache byte budget.
	Size uint64
	// NElems is the maximum number of cached chunks.
	NElems uint64
	// Preemption is the eviction preemption fraction in [0, 1].
	Preemption float64
}

// DatasetProps carries creation-time dataset properties.
type DatasetProps struct {
	// Chunks are the per-axis chunk extents; nil selects contiguous
	// layout. Required when any MaxDims entry is Unlimited.
	Chunks []uint64
	// DeflateLevel enables deflate compression when > 0.
	DeflateLevel int
	Shuffle      bool
	Fletcher32   bool
	// ExtraFilter passes through one engine-defined filter.
	ExtraFilter       int
	ExtraFilterParams []uint32
	// Fill is the user-defined fill value; nil leaves the engine
	// default, NoFill disables filling entirely.
	Fill   *Value
	NoFill bool
	// Scale marks the dataset as a dimension scale with the given
	// scale name.
	Scale     bool
	ScaleName string
	// Cache overrides the store-level cache config for this dataset.
	Cache *CacheConfig
}

// Filter is one recovered member of a dataset's filter pipeline.
type Filter struct {
	ID     int
	Params []uint32
}

// Well-known filter identifiers.
const (
	FilterDeflate    = 1
	FilterShuffle    = 2
	FilterFletcher32 = 3
)

// Dataset is an opened dataset.
type Dataset interface {
	Handle
	AttrHolder
	Name() string
	// ObjectNo is the store-unique object number, used to match
	// dimension scales attached to other datasets.
	ObjectNo() uint64
	Space() (Space, error)
	Type() (Type, error)

	// IsScale reports whether the dataset is marked as a dimension
	// scale; ScaleName returns the scale's name marker when set.
	IsScale() (bool, error)
	ScaleName() (string, bool, error)
	// AttachScale attaches a scale dataset to the given axis.
	AttachScale(axis int, scale Dataset) error
	// AttachedScale returns the object number of the scale attached
	// to the given axis, if any.
	AttachedScale(axis int) (objno uint64, ok bool, err error)

	// Chunking returns the chunk extents, or nil for a contiguous or
	// compact layout.
	Chunking() ([]uint64, error)
	Filters() ([]Filter, error)
	// FillValue returns the user-defined fill value, or defined=false
	// when the dataset uses the engine default or no fill.
	FillValue() (v *Value, defined bool, err error)

	CacheConfig() (CacheConfig, error)
	SetCacheConfig(CacheConfig) error
}

// Group is an opened group.
type Group interface {
	Handle
	AttrHolder
	Name() string
	ObjectNo() uint64

	// TracksCreationOrder reports whether member creation order was
	// recorded for this group.
	TracksCreationOrder() bool
	// Children lists direct members in the requested order.
	Children(order IterOrder) ([]Child, error)

	CreateGroup(name string) (Group, error)
	OpenGroup(name string) (Group, error)
	CreateDataset(name string, typ Type, space Space, props DatasetProps) (Dataset, error)
	OpenDataset(name string) (Dataset, error)
	// CommitType stores a named type in this group and returns its
	// committed descriptor.
	CommitType(name string, typ Type) (Type, error)
	OpenNamedType(name string) (Type, error)
}

// Container is an open store.
type Container interface {
	TypeFactory

	// Path returns the storage path, or "" for a buffer-backed store.
	Path() string
	ReadOnly() bool
	Root() (Group, error)

	// SetCache applies the store-level chunk cache configuration.
	// Called once at file open/create, before any dataset is opened.
	SetCache(CacheConfig) error

	// Flush durably writes all pending state.
	Flush() error

	// OpenObjectCount and OpenObjects report handles not yet closed,
	// for leak diagnostics when Close is refused.
	OpenObjectCount() int
	OpenObjects() []string

	// Close finalizes the store. Engines refuse with ErrObjectsOpen
	// while any group or dataset handle remains open.
	Close() error
	// Remove deletes the underlying storage. The store must be closed.
	Remove() error
}
