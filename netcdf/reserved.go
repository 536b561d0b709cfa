package netcdf

import "sort"

// Names of the attributes the format reserves for its own
// bookkeeping. None of them appear in user-visible attribute
// collections.
const (
	attrClass         = "CLASS"
	attrDimensionList = "DIMENSION_LIST"
	attrName          = "NAME"
	attrReferenceList = "REFERENCE_LIST"
	attrFormat        = "_Format"
	attrIsNetcdf4     = "_IsNetcdf4"
	attrNCProperties  = "_NCProperties"
	attrCoordinates   = "_Netcdf4Coordinates"
	attrDimID         = "_Netcdf4Dimid"
	attrSuperblock    = "_SuperblockVersion"
	attrNC3Strict     = "_nc3_strict"
)

// ReservedFlags describe how a reserved attribute behaves.
type ReservedFlags uint8

const (
	// FlagReadOnly marks names users may never write.
	FlagReadOnly ReservedFlags = 1 << iota
	// FlagDimScale marks dimension-scale bookkeeping names.
	FlagDimScale
	// FlagNameOnly marks names hidden from listings by name alone,
	// with no scale semantics.
	FlagNameOnly
)

// ReservedAttr is one entry of the reserved-attribute registry.
type ReservedAttr struct {
	Name  string
	Flags ReservedFlags
}

// reservedAttrs must stay sorted by name; lookup binary-searches it.
// Sortedness is asserted by a test, never at runtime.
var reservedAttrs = [...]ReservedAttr{
	{attrClass, FlagReadOnly | FlagDimScale},
	{attrDimensionList, FlagReadOnly | FlagDimScale},
	{attrName, FlagReadOnly | FlagDimScale},
	{attrReferenceList, FlagReadOnly | FlagDimScale},
	{attrFormat, FlagReadOnly},
	{attrIsNetcdf4, FlagReadOnly | FlagNameOnly},
	{attrNCProperties, FlagReadOnly | FlagNameOnly},
	{attrCoordinates, FlagReadOnly | FlagDimScale},
	{attrDimID, FlagReadOnly | FlagDimScale},
	{attrSuperblock, FlagReadOnly | FlagNameOnly},
	{attrNC3Strict, FlagReadOnly},
}

// LookupReserved returns the registry entry for name, if any.
func LookupReserved(name string) (ReservedAttr, bool) {
	i := sort.Search(len(reservedAttrs), func(i int) bool {
		return reservedAttrs[i].Name >= name
	})
	if i < len(reservedAttrs) && reservedAttrs[i].Name == name {
		return reservedAttrs[i], true
	}
	return ReservedAttr{}, false
}

// isReserved reports whether name belongs to the format.
func isReserved(name string) bool {
	_, ok := LookupReserved(name)
	return ok
}
