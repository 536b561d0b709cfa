package netcdf

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/robert-malhotra/go-netcdf4/container"
)

// newAttr builds an attribute from a natural Go value. Text becomes a
// char attribute counted in bytes, []string a string attribute, and
// numeric scalars or slices the matching fixed-width attribute.
func newAttr(name string, value any) (*Attribute, error) {
	if name == "" || len(name) > MaxName {
		return nil, fmt.Errorf("attribute %q: %w", name, ErrBadName)
	}
	a := &Attribute{name: name, dirty: true}
	switch v := value.(type) {
	case string:
		a.typeID = TypeChar
		a.n = len(v)
		a.raw = []byte(v)
	case []string:
		a.typeID = TypeString
		a.n = len(v)
		a.strs = append([]string(nil), v...)
	case int8:
		return newAttr(name, []int8{v})
	case []int8:
		a.typeID = TypeByte
		a.n = len(v)
		a.raw = make([]byte, len(v))
		for i, e := range v {
			a.raw[i] = byte(e)
		}
	case uint8:
		return newAttr(name, []uint8{v})
	case []uint8:
		a.typeID = TypeUByte
		a.n = len(v)
		a.raw = append([]byte(nil), v...)
	case int16:
		return newAttr(name, []int16{v})
	case []int16:
		a.typeID = TypeShort
		a.n = len(v)
		a.raw = make([]byte, 2*len(v))
		for i, e := range v {
			binary.LittleEndian.PutUint16(a.raw[2*i:], uint16(e))
		}
	case uint16:
		return newAttr(name, []uint16{v})
	case []uint16:
		a.typeID = TypeUShort
		a.n = len(v)
		a.raw = make([]byte, 2*len(v))
		for i, e := range v {
			binary.LittleEndian.PutUint16(a.raw[2*i:], e)
		}
	case int:
		return newAttr(name, []int32{int32(v)})
	case int32:
		return newAttr(name, []int32{v})
	case []int32:
		a.typeID = TypeInt
		a.n = len(v)
		a.raw = make([]byte, 4*len(v))
		for i, e := range v {
			binary.LittleEndian.PutUint32(a.raw[4*i:], uint32(e))
		}
	case uint32:
		return newAttr(name, []uint32{v})
	case []uint32:
		a.typeID = TypeUInt
		a.n = len(v)
		a.raw = make([]byte, 4*len(v))
		for i, e := range v {
			binary.LittleEndian.PutUint32(a.raw[4*i:], e)
		}
	case int64:
		return newAttr(name, []int64{v})
	case []int64:
		a.typeID = TypeInt64
		a.n = len(v)
		a.raw = make([]byte, 8*len(v))
		for i, e := range v {
			binary.LittleEndian.PutUint64(a.raw[8*i:], uint64(e))
		}
	case uint64:
		return newAttr(name, []uint64{v})
	case []uint64:
		a.typeID = TypeUInt64
		a.n = len(v)
		a.raw = make([]byte, 8*len(v))
		for i, e := range v {
			binary.LittleEndian.PutUint64(a.raw[8*i:], e)
		}
	case float32:
		return newAttr(name, []float32{v})
	case []float32:
		a.typeID = TypeFloat
		a.n = len(v)
		a.raw = make([]byte, 4*len(v))
		for i, e := range v {
			binary.LittleEndian.PutUint32(a.raw[4*i:], math.Float32bits(e))
		}
	case float64:
		return newAttr(name, []float64{v})
	case []float64:
		a.typeID = TypeDouble
		a.n = len(v)
		a.raw = make([]byte, 8*len(v))
		for i, e := range v {
			binary.LittleEndian.PutUint64(a.raw[8*i:], math.Float64bits(e))
		}
	default:
		return nil, fmt.Errorf("attribute %q: unsupported value %T: %w", name, value, ErrBadType)
	}
	return a, nil
}

// decodeInt32s decodes n little-endian 32-bit integers.
func decodeInt32s(raw []byte, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = int(int32(binary.LittleEndian.Uint32(raw[4*i:])))
	}
	return out
}

func decodeAttrValue(a *Attribute) (any, error) {
	switch a.typeID {
	case TypeChar:
		return string(a.raw), nil
	case TypeString:
		return append([]string(nil), a.strs...), nil
	case TypeByte:
		out := make([]int8, a.n)
		for i := range out {
			out[i] = int8(a.raw[i])
		}
		return out, nil
	case TypeUByte:
		return append([]uint8(nil), a.raw...), nil
	case TypeShort:
		out := make([]int16, a.n)
		for i := range out {
			out[i] = int16(binary.LittleEndian.Uint16(a.raw[2*i:]))
		}
		return out, nil
	case TypeUShort:
		out := make([]uint16, a.n)
		for i := range out {
			out[i] = binary.LittleEndian.Uint16(a.raw[2*i:])
		}
		return out, nil
	case TypeInt:
		out := make([]int32, a.n)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(a.raw[4*i:]))
		}
		return out, nil
	case TypeUInt:
		out := make([]uint32, a.n)
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(a.raw[4*i:])
		}
		return out, nil
	case TypeInt64:
		out := make([]int64, a.n)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(a.raw[8*i:]))
		}
		return out, nil
	case TypeUInt64:
		out := make([]uint64, a.n)
		for i := range out {
			out[i] = binary.LittleEndian.Uint64(a.raw[8*i:])
		}
		return out, nil
	case TypeFloat:
		out := make([]float32, a.n)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(a.raw[4*i:]))
		}
		return out, nil
	case TypeDouble:
		out := make([]float64, a.n)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(a.raw[8*i:]))
		}
		return out, nil
	}
	return nil, fmt.Errorf("attribute %q: type %d: %w", a.name, a.typeID, ErrBadType)
}

// nativeForTypeID returns the engine descriptor used to store an
// atomic type id.
func (f *File) nativeForTypeID(id TypeID) (container.Type, error) {
	switch id {
	case TypeByte:
		return f.c.NativeType(container.NativeSChar), nil
	case TypeUByte:
		return f.c.NativeType(container.NativeUChar), nil
	case TypeShort:
		return f.c.NativeType(container.NativeShort), nil
	case TypeUShort:
		return f.c.NativeType(container.NativeUShort), nil
	case TypeInt:
		return f.c.NativeType(container.NativeInt), nil
	case TypeUInt:
		return f.c.NativeType(container.NativeUInt), nil
	case TypeInt64:
		return f.c.NativeType(container.NativeLLong), nil
	case TypeUInt64:
		return f.c.NativeType(container.NativeULLong), nil
	case TypeFloat:
		return f.c.NativeType(container.NativeFloat), nil
	case TypeDouble:
		return f.c.NativeType(container.NativeDouble), nil
	case TypeString:
		return f.c.StringType(0, true), nil
	}
	if t := f.userTypeByID(id); t != nil && t.native != nil {
		return t.native, nil
	}
	return nil, fmt.Errorf("type id %d: %w", id, ErrBadType)
}

// writeAttr persists one attribute on an engine object. Text is
// stored as a scalar fixed string of the text's width, strings as a
// rank-1 variable string array, and zero-length attributes with a
// null space.
func (f *File) writeAttr(h container.AttrHolder, a *Attribute) error {
	var (
		nt container.Type
		sp container.Space
		v  container.Value
	)
	switch {
	case a.n == 0:
		sp = container.Space{Null: true}
		if a.typeID == TypeChar {
			nt = f.c.StringType(1, false)
		} else {
			var err error
			nt, err = f.nativeForTypeID(a.typeID)
			if err != nil {
				return err
			}
		}
	case a.typeID == TypeChar:
		nt = f.c.StringType(uint64(a.n), false)
		sp = container.Space{}
		v = container.Value{Raw: a.raw}
	case a.typeID == TypeString:
		nt = f.c.StringType(0, true)
		sp = container.Space{Dims: []uint64{uint64(a.n)}}
		v = container.Value{Strings: a.strs}
	case f.isVLenType(a.typeID):
		var err error
		nt, err = f.nativeForTypeID(a.typeID)
		if err != nil {
			return err
		}
		sp = container.Space{Dims: []uint64{uint64(a.n)}}
		v = container.Value{VLens: a.vlens}
	default:
		var err error
		nt, err = f.nativeForTypeID(a.typeID)
		if err != nil {
			return err
		}
		sp = container.Space{Dims: []uint64{uint64(a.n)}}
		v = container.Value{Raw: a.raw}
	}
	if err := h.WriteAttr(a.name, nt, sp, v); err != nil {
		return fmt.Errorf("attribute %q: %w", a.name, err)
	}
	a.dirty = false
	return nil
}
