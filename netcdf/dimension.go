package netcdf

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/robert-malhotra/go-netcdf4/container"
)

// LenUnlimited declares a dimension whose length grows with the data
// written along it.
const LenUnlimited uint64 = 0

// dimNoVarMarker is the scale-name prefix of a dimension that has no
// coordinate variable.
const dimNoVarMarker = "This is a netCDF dimension but not a netCDF variable."

// Dimension is a shared, named extent. Dimension ids are unique
// within a file and are never reused, so files survive repeated
// open/write cycles with stable ids.
type Dimension struct {
	group     *Group
	name      string
	id        int
	len       uint64
	unlimited bool
	tooLong   bool

	coord *Variable
	// scale holds the underlying scale dataset open for dimensions
	// without a coordinate variable. Released when the file closes.
	scale container.Dataset

	objno  uint64
	hasObj bool
	dirty  bool
}

// Name returns the dimension name.
func (d *Dimension) Name() string { return d.name }

// ID returns the file-unique dimension id.
func (d *Dimension) ID() int { return d.id }

// IsUnlimited reports whether the dimension can grow.
func (d *Dimension) IsUnlimited() bool { return d.unlimited }

// Len returns the current length. For unlimited dimensions this is
// the largest extent any variable has along it.
func (d *Dimension) Len() uint64 { return d.len }

// TooLong reports whether the stored extent overflowed the platform
// length type and Len was clamped.
func (d *Dimension) TooLong() bool { return d.tooLong }

// Group returns the group the dimension is visible from.
func (d *Dimension) Group() *Group { return d.group }

// Coord returns the coordinate variable sharing the dimension's name,
// if one exists.
func (d *Dimension) Coord() *Variable { return d.coord }

// clampDimLen fits a stored extent into a length of intBits bits,
// reporting whether it had to clamp.
func clampDimLen(size uint64, intBits int) (uint64, bool) {
	if intBits <= 32 && size > math.MaxUint32 {
		return math.MaxUint32, true
	}
	return size, false
}

// readScale turns a dimension-scale dataset into a Dimension. The
// hidden id attribute, when present, pins the dimension id and
// advances the file's next id past it.
func (f *File) readScale(g *Group, ds container.Dataset, name string, size, maxSize uint64) (*Dimension, error) {
	if len(name) > MaxName {
		return nil, fmt.Errorf("dimension %q: %w", name, ErrBadName)
	}
	d := &Dimension{group: g, name: name, objno: ds.ObjectNo(), hasObj: true}

	ok, err := ds.HasAttr(attrDimID)
	if err != nil {
		return nil, fmt.Errorf("dimension %q: %w", name, err)
	}
	if ok {
		id, err := readDimIDAttr(ds)
		if err != nil {
			return nil, fmt.Errorf("dimension %q: %w", name, err)
		}
		d.id = id
		if id >= f.nextDimID {
			f.nextDimID = id + 1
		}
	} else {
		d.id = f.nextDimID
		f.nextDimID++
	}

	d.len, d.tooLong = clampDimLen(size, strconv.IntSize)
	if maxSize == container.Unlimited {
		d.unlimited = true
	}

	g.dims = append(g.dims, d)
	return d, nil
}

// readDimIDAttr reads the hidden dimension-id attribute as a 32-bit
// little-endian integer.
func readDimIDAttr(ds container.Dataset) (int, error) {
	ah, err := ds.OpenAttr(attrDimID)
	if err != nil {
		return 0, err
	}
	defer ah.Close()
	raw, err := ah.ReadRaw()
	if err != nil {
		return 0, err
	}
	if len(raw) < 4 {
		return 0, fmt.Errorf("dimension id attribute too short: %w", ErrAttrMeta)
	}
	return int(int32(binary.LittleEndian.Uint32(raw))), nil
}

// isDimWithoutVariable reports whether a scale's name marker tags it
// as a dimension with no coordinate variable.
func isDimWithoutVariable(scaleName string) bool {
	return strings.HasPrefix(scaleName, dimNoVarMarker)
}

// DefDim defines a new dimension in the group. length LenUnlimited
// declares an unlimited dimension. The file must be in define mode.
func (g *Group) DefDim(name string, length uint64) (*Dimension, error) {
	f := g.file
	if err := f.requireDefine(); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	if g.dimByName(name) != nil {
		return nil, fmt.Errorf("dimension %q: %w", name, ErrExists)
	}
	d := &Dimension{group: g, name: name, id: f.nextDimID, dirty: true}
	f.nextDimID++
	if length == LenUnlimited {
		d.unlimited = true
	} else {
		d.len = length
	}
	g.dims = append(g.dims, d)
	return d, nil
}

func (g *Group) dimByName(name string) *Dimension {
	for _, d := range g.dims {
		if d.name == name {
			return d
		}
	}
	return nil
}

// findDim resolves a dimension id visible from the group: the group
// itself first, then each ancestor in turn.
func (g *Group) findDim(id int) *Dimension {
	for gp := g; gp != nil; gp = gp.parent {
		for _, d := range gp.dims {
			if d.id == id {
				return d
			}
		}
	}
	return nil
}

// findDimByObjno resolves an attached scale's object number to a
// dimension visible from the group.
func (g *Group) findDimByObjno(objno uint64) *Dimension {
	for gp := g; gp != nil; gp = gp.parent {
		for _, d := range gp.dims {
			if d.hasObj && d.objno == objno {
				return d
			}
		}
	}
	return nil
}

// Dim returns the visible dimension with the given id.
func (g *Group) Dim(id int) (*Dimension, error) {
	if d := g.findDim(id); d != nil {
		return d, nil
	}
	return nil, fmt.Errorf("dimension id %d: %w", id, ErrNotDefined)
}

// DimByName returns the group's own dimension with the given name.
func (g *Group) DimByName(name string) (*Dimension, error) {
	if d := g.dimByName(name); d != nil {
		return d, nil
	}
	return nil, fmt.Errorf("dimension %q: %w", name, ErrNotDefined)
}

// Dims returns the group's dimensions in definition order.
func (g *Group) Dims() []*Dimension {
	return append([]*Dimension(nil), g.dims...)
}

// UnlimitedDim returns the first unlimited dimension visible from the
// group, or nil.
func (g *Group) UnlimitedDim() *Dimension {
	for gp := g; gp != nil; gp = gp.parent {
		for _, d := range gp.dims {
			if d.unlimited {
				return d
			}
		}
	}
	return nil
}

// checkName validates a user-supplied object name.
func checkName(name string) error {
	if name == "" || len(name) > MaxName {
		return fmt.Errorf("name %q: %w", name, ErrBadName)
	}
	if strings.ContainsRune(name, '/') {
		return fmt.Errorf("name %q: %w", name, ErrBadName)
	}
	return nil
}
