// Package netcdf implements the netCDF-4 enhanced data model over a
// hierarchical object container: named, typed, multi-dimensional
// variables with attributes, grouped into a tree of groups, with
// shared dimensions expressed as dimension scales.
package netcdf

import "errors"

// Common errors. Call sites wrap them with context; match with
// errors.Is.
var (
	ErrBadID       = errors.New("bad file or group id")
	ErrInvalid     = errors.New("invalid argument")
	ErrExists      = errors.New("name already in use")
	ErrBadType     = errors.New("type not representable")
	ErrBadClass    = errors.New("unknown type class")
	ErrBadName     = errors.New("invalid name")
	ErrAttrMeta    = errors.New("malformed attribute metadata")
	ErrVarMeta     = errors.New("malformed variable metadata")
	ErrInDefine    = errors.New("already in define mode")
	ErrNotInDefine = errors.New("not in define mode")
	ErrPerm        = errors.New("write to read-only file")
	ErrNotDefined  = errors.New("object not defined")
	ErrBadGroupID  = errors.New("bad group id")
	ErrCantWrite   = errors.New("container does not track creation order; open read-only")
	ErrCantRemove  = errors.New("cannot remove file")
	ErrClosed      = errors.New("file is closed")
)

// MaxName is the maximum length of a dimension, variable, attribute,
// type, or member name.
const MaxName = 256
