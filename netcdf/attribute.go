package netcdf

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-netcdf4/container"
)

// Attribute is a named value attached to a group or variable. The
// payload lives in exactly one of raw, strs, or vlens, matching the
// three buffer disciplines: contiguous bytes for fixed-width types,
// independently allocated strings, and independently allocated
// variable-length elements.
type Attribute struct {
	name   string
	typeID TypeID
	n      int

	raw   []byte
	strs  []string
	vlens [][]byte

	dirty bool
}

// Name returns the attribute name.
func (a *Attribute) Name() string { return a.name }

// Type returns the attribute's type id.
func (a *Attribute) Type() TypeID { return a.typeID }

// Len returns the number of elements. Text attributes count bytes.
func (a *Attribute) Len() int { return a.n }

// Bytes returns the contiguous payload of a fixed-width attribute.
func (a *Attribute) Bytes() []byte { return a.raw }

// Strings returns the payload of a string attribute.
func (a *Attribute) Strings() []string { return a.strs }

// VLens returns the per-element buffers of a vlen attribute.
func (a *Attribute) VLens() [][]byte { return a.vlens }

// Value decodes the payload into a natural Go value: string for text,
// []string for string attributes, a typed numeric slice otherwise.
func (a *Attribute) Value() (any, error) {
	return decodeAttrValue(a)
}

// readAttr reads one attribute through an open engine handle,
// applying the format's length rules. Unclassifiable types surface
// ErrBadType so callers can drop attributes written by foreign tools.
func (f *File) readAttr(h container.Attr) (*Attribute, error) {
	name := h.Name()
	if len(name) > MaxName {
		return nil, fmt.Errorf("attribute %q: %w", name, ErrBadName)
	}
	nt, err := h.Type()
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}
	sp, err := h.Space()
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}

	id, err := f.typeIDForNative(nt)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}
	fixedStr := nt.Class() == container.ClassString && !nt.IsVariableString()

	// The element count follows the stored type, not just the
	// dataspace: strings count points, text counts bytes, and a text
	// attribute stored with a non-scalar space is really a string
	// attribute.
	rank := sp.Rank()
	npoints := sp.NumPoints()
	var length int64
	switch {
	case rank == 0 && npoints == 0:
		length = 0
	case id == TypeString:
		length = npoints
	case id == TypeChar:
		if rank == 0 {
			length = int64(nt.Size())
		} else {
			id = TypeString
			length = npoints
		}
	default:
		if sp.Null {
			return nil, fmt.Errorf("attribute %q: null space: %w", name, ErrAttrMeta)
		}
		switch rank {
		case 0:
			length = 1
		case 1:
			length = int64(sp.Dims[0])
		default:
			return nil, fmt.Errorf("attribute %q: rank %d: %w", name, rank, ErrAttrMeta)
		}
	}

	a := &Attribute{name: name, typeID: id, n: int(length)}
	if length == 0 {
		return a, nil
	}

	switch {
	case f.isVLenType(id):
		a.vlens, err = h.ReadVLens()
	case id == TypeString && !fixedStr:
		a.strs, err = h.ReadStrings()
	case id == TypeString:
		// Fixed-width strings are read as one contiguous block and
		// split into independent strings, trimmed at the first NUL.
		var raw []byte
		raw, err = h.ReadRaw()
		if err == nil {
			a.strs = splitFixedStrings(raw, int(nt.Size()), int(length))
		}
	default:
		a.raw, err = h.ReadRaw()
	}
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}
	return a, nil
}

func (f *File) isVLenType(id TypeID) bool {
	t := f.userTypeByID(id)
	return t != nil && t.class == ClassVLen
}

func splitFixedStrings(raw []byte, width, n int) []string {
	if width < 1 {
		width = 1
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lo := i * width
		hi := lo + width
		if lo >= len(raw) {
			out = append(out, "")
			continue
		}
		if hi > len(raw) {
			hi = len(raw)
		}
		s := raw[lo:hi]
		if j := bytes.IndexByte(s, 0); j >= 0 {
			s = s[:j]
		}
		out = append(out, string(s))
	}
	return out
}

// attrList is the ordered attribute set of a group or variable.
// Creation order is preserved; writes replace in place.
type attrList struct {
	atts []*Attribute
}

func (l *attrList) find(name string) *Attribute {
	for _, a := range l.atts {
		if a.name == name {
			return a
		}
	}
	return nil
}

func (l *attrList) put(a *Attribute) {
	for i, old := range l.atts {
		if old.name == a.name {
			l.atts[i] = a
			return
		}
	}
	l.atts = append(l.atts, a)
}

func (l *attrList) names() []string {
	out := make([]string, len(l.atts))
	for i, a := range l.atts {
		out[i] = a.name
	}
	return out
}

// readAttrsInto loads every attribute of an engine object, hiding
// reserved names and dropping attributes whose type cannot be
// classified.
func (f *File) readAttrsInto(h container.AttrHolder, l *attrList) error {
	n, err := h.NumAttrs()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		ah, err := h.AttrByIndex(i)
		if err != nil {
			return err
		}
		name := ah.Name()
		if isReserved(name) {
			if cerr := ah.Close(); cerr != nil {
				return cerr
			}
			continue
		}
		a, err := f.readAttr(ah)
		cerr := ah.Close()
		if err != nil {
			// Attributes written with types this model cannot
			// represent are invisible rather than fatal.
			if errors.Is(err, ErrBadType) {
				continue
			}
			return err
		}
		if cerr != nil {
			return cerr
		}
		l.put(a)
	}
	return nil
}
