// Package matfile reads MATLAB level 5 MAT-files. It understands numeric,
// logical, character and cell arrays, stored plain or zlib-compressed, which
// covers files written by save() with default options. Structs, objects,
// sparse and complex arrays are reported as unsupported.
package matfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf16"

	"github.com/klauspost/compress/zlib"

	"github.com/bonnerlab/datasets/errors"
)

const headerLen = 128

type dataType uint32

const (
	miINT8       dataType = 1
	miUINT8      dataType = 2
	miINT16      dataType = 3
	miUINT16     dataType = 4
	miINT32      dataType = 5
	miUINT32     dataType = 6
	miSINGLE     dataType = 7
	miDOUBLE     dataType = 9
	miINT64      dataType = 12
	miUINT64     dataType = 13
	miMATRIX     dataType = 14
	miCOMPRESSED dataType = 15
	miUTF8       dataType = 16
	miUTF16      dataType = 17
	miUTF32      dataType = 18
)

// Class is the MATLAB array class of a variable.
type Class uint8

const (
	ClassCell   Class = 1
	ClassStruct Class = 2
	ClassObject Class = 3
	ClassChar   Class = 4
	ClassSparse Class = 5
	ClassDouble Class = 6
	ClassSingle Class = 7
	ClassInt8   Class = 8
	ClassUint8  Class = 9
	ClassInt16  Class = 10
	ClassUint16 Class = 11
	ClassInt32  Class = 12
	ClassUint32 Class = 13
	ClassInt64  Class = 14
	ClassUint64 Class = 15
)

const (
	flagComplex = 0x0800
	flagLogical = 0x0200
)

// Var is one decoded variable.
//
// Value holds a string for a single-row char array, a []string for a
// multi-row one, a []float64 for numeric and logical arrays and a []any
// for cell arrays. Multi-element values are in column-major order.
type Var struct {
	Name    string
	Class   Class
	Dims    []int
	Logical bool
	Value   any
}

// File is a decoded MAT-file.
type File struct {
	Description string
	Vars        []Var
}

// Var returns the variable called name.
func (f *File) Var(name string) (Var, error) {
	for _, v := range f.Vars {
		if v.Name == name {
			return v, nil
		}
	}
	return Var{}, errors.Newf(errors.CodeNotFound, "matfile.Var", "variable %q not found", name)
}

// Decode reads a whole MAT-file from r.
func Decode(r io.Reader) (*File, error) {
	const op = "matfile.Decode"

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, op, err)
	}
	if len(data) < headerLen {
		return nil, errors.New(errors.CodeDecode, op, "file shorter than the 128 byte header")
	}

	var d decoder
	switch string(data[126:128]) {
	case "IM":
		d.order = binary.LittleEndian
	case "MI":
		d.order = binary.BigEndian
	default:
		return nil, errors.New(errors.CodeDecode, op, "not a level 5 MAT-file")
	}

	f := &File{Description: strings.TrimRight(string(data[:116]), " \x00")}
	rest := data[headerLen:]
	for len(rest) >= 8 {
		typ, body, next, err := d.element(rest)
		if err != nil {
			return nil, errors.Wrap(errors.CodeDecode, op, err)
		}
		rest = next

		if typ == miCOMPRESSED {
			if typ, body, err = d.inflate(body); err != nil {
				return nil, errors.Wrap(errors.CodeDecode, op, err)
			}
		}
		if typ != miMATRIX {
			continue
		}

		v, err := d.matrix(body)
		if err != nil {
			return nil, errors.Wrap(errors.CodeDecode, op, err)
		}
		f.Vars = append(f.Vars, v)
	}
	return f, nil
}

type decoder struct {
	order binary.ByteOrder
}

// element splits the data element at the start of b into its type and body
// and returns the bytes that follow it.
func (d decoder) element(b []byte) (dataType, []byte, []byte, error) {
	if len(b) < 8 {
		return 0, nil, nil, fmt.Errorf("truncated element tag")
	}

	w := d.order.Uint32(b)
	if size := w >> 16; size != 0 {
		if size > 4 {
			return 0, nil, nil, fmt.Errorf("small element of %d bytes", size)
		}
		return dataType(w & 0xffff), b[4 : 4+size], b[8:], nil
	}

	typ := dataType(w)
	size := uint64(d.order.Uint32(b[4:]))
	if size > uint64(len(b)-8) {
		return 0, nil, nil, fmt.Errorf("element of %d bytes overruns file", size)
	}
	end := 8 + size
	if typ != miCOMPRESSED {
		end = min(8+(size+7)&^7, uint64(len(b)))
	}
	return typ, b[8 : 8+size], b[end:], nil
}

func (d decoder) inflate(body []byte) (dataType, []byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("compressed element: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return 0, nil, fmt.Errorf("compressed element: %w", err)
	}
	typ, inner, _, err := d.element(raw)
	return typ, inner, err
}

func (d decoder) matrix(body []byte) (Var, error) {
	// An empty cell is written as a matrix element with no body.
	if len(body) == 0 {
		return Var{Class: ClassDouble, Dims: []int{0, 0}, Value: []float64{}}, nil
	}

	typ, flagBytes, rest, err := d.element(body)
	if err != nil {
		return Var{}, err
	}
	if typ != miUINT32 || len(flagBytes) != 8 {
		return Var{}, fmt.Errorf("malformed array flags")
	}
	flags := d.order.Uint32(flagBytes)

	typ, dimBytes, rest, err := d.element(rest)
	if err != nil {
		return Var{}, err
	}
	dimVals, err := d.numbers(typ, dimBytes)
	if err != nil {
		return Var{}, fmt.Errorf("dimensions: %w", err)
	}

	_, nameBytes, rest, err := d.element(rest)
	if err != nil {
		return Var{}, err
	}

	v := Var{
		Name:    string(nameBytes),
		Class:   Class(flags & 0xff),
		Dims:    make([]int, len(dimVals)),
		Logical: flags&flagLogical != 0,
	}
	// Every value takes at least one byte of rest and every cell an 8-byte
	// tag, so larger counts are corrupt dimensions.
	count := 1
	for i, x := range dimVals {
		if x < 0 || x > float64(len(rest)) {
			return Var{}, fmt.Errorf("%s: dimension %v exceeds %d bytes of data", v.Name, x, len(rest))
		}
		v.Dims[i] = int(x)
		if v.Dims[i] != 0 && count > len(rest)/v.Dims[i] {
			return Var{}, fmt.Errorf("%s: dimensions %v exceed %d bytes of data", v.Name, dimVals, len(rest))
		}
		count *= v.Dims[i]
	}
	if v.Class == ClassCell && count > len(rest)/8 {
		return Var{}, fmt.Errorf("%s: %d cells in %d bytes", v.Name, count, len(rest))
	}
	if flags&flagComplex != 0 {
		return Var{}, fmt.Errorf("%s: complex arrays are not supported", v.Name)
	}

	switch {
	case v.Class == ClassCell:
		cells := make([]any, 0, count)
		for range count {
			var cell []byte
			typ, cell, rest, err = d.element(rest)
			if err != nil {
				return Var{}, fmt.Errorf("%s: cell: %w", v.Name, err)
			}
			if typ != miMATRIX {
				return Var{}, fmt.Errorf("%s: cell holds element type %d", v.Name, typ)
			}
			child, err := d.matrix(cell)
			if err != nil {
				return Var{}, err
			}
			cells = append(cells, child.Value)
		}
		v.Value = cells

	case v.Class == ClassChar:
		var runes []rune
		if len(rest) > 0 {
			typ, raw, _, err := d.element(rest)
			if err != nil {
				return Var{}, fmt.Errorf("%s: %w", v.Name, err)
			}
			if runes, err = d.chars(typ, raw); err != nil {
				return Var{}, fmt.Errorf("%s: %w", v.Name, err)
			}
		}
		if len(runes) != count {
			return Var{}, fmt.Errorf("%s: %d characters for %d cells", v.Name, len(runes), count)
		}
		v.Value = charValue(runes, v.Dims)

	case v.Class >= ClassDouble && v.Class <= ClassUint64:
		vals := []float64{}
		if len(rest) > 0 {
			typ, raw, _, err := d.element(rest)
			if err != nil {
				return Var{}, fmt.Errorf("%s: %w", v.Name, err)
			}
			if vals, err = d.numbers(typ, raw); err != nil {
				return Var{}, fmt.Errorf("%s: %w", v.Name, err)
			}
		}
		if len(vals) != count {
			return Var{}, fmt.Errorf("%s: %d values for %d cells", v.Name, len(vals), count)
		}
		v.Value = vals

	default:
		return Var{}, fmt.Errorf("%s: array class %d is not supported", v.Name, v.Class)
	}
	return v, nil
}

func (d decoder) numbers(typ dataType, b []byte) ([]float64, error) {
	var size int
	switch typ {
	case miINT8, miUINT8:
		size = 1
	case miINT16, miUINT16:
		size = 2
	case miINT32, miUINT32, miSINGLE:
		size = 4
	case miDOUBLE, miINT64, miUINT64:
		size = 8
	default:
		return nil, fmt.Errorf("element type %d is not numeric", typ)
	}
	if len(b)%size != 0 {
		return nil, fmt.Errorf("%d bytes is not a multiple of %d", len(b), size)
	}

	out := make([]float64, len(b)/size)
	for i := range out {
		p := b[i*size:]
		switch typ {
		case miINT8:
			out[i] = float64(int8(p[0]))
		case miUINT8:
			out[i] = float64(p[0])
		case miINT16:
			out[i] = float64(int16(d.order.Uint16(p)))
		case miUINT16:
			out[i] = float64(d.order.Uint16(p))
		case miINT32:
			out[i] = float64(int32(d.order.Uint32(p)))
		case miUINT32:
			out[i] = float64(d.order.Uint32(p))
		case miSINGLE:
			out[i] = float64(math.Float32frombits(d.order.Uint32(p)))
		case miDOUBLE:
			out[i] = math.Float64frombits(d.order.Uint64(p))
		case miINT64:
			out[i] = float64(int64(d.order.Uint64(p)))
		case miUINT64:
			out[i] = float64(d.order.Uint64(p))
		}
	}
	return out, nil
}

func (d decoder) chars(typ dataType, b []byte) ([]rune, error) {
	switch typ {
	case miUTF8:
		return []rune(string(b)), nil
	case miINT8, miUINT8:
		out := make([]rune, len(b))
		for i, c := range b {
			out[i] = rune(c)
		}
		return out, nil
	case miUTF16, miUINT16, miINT16:
		if len(b)%2 != 0 {
			return nil, fmt.Errorf("odd length UTF-16 data")
		}
		units := make([]uint16, len(b)/2)
		for i := range units {
			units[i] = d.order.Uint16(b[2*i:])
		}
		return utf16.Decode(units), nil
	case miUTF32, miUINT32, miINT32:
		if len(b)%4 != 0 {
			return nil, fmt.Errorf("UTF-32 data not a multiple of 4 bytes")
		}
		out := make([]rune, len(b)/4)
		for i := range out {
			out[i] = rune(d.order.Uint32(b[4*i:]))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("element type %d is not character data", typ)
	}
}

// charValue lays out column-major characters as rows. A char matrix pads its
// rows with spaces, so multi-row values are right-trimmed.
func charValue(runes []rune, dims []int) any {
	if len(runes) == 0 {
		return ""
	}
	rows := 1
	if len(dims) > 0 {
		rows = dims[0]
	}
	cols := len(runes) / rows

	lines := make([]string, rows)
	row := make([]rune, cols)
	for r := range rows {
		for c := range cols {
			row[c] = runes[r+c*rows]
		}
		lines[r] = string(row)
	}
	if rows == 1 {
		return lines[0]
	}
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return lines
}

// Strings flattens v, a string, a []string or a cell array of those, into a
// list of strings in storage order.
func Strings(v any) ([]string, error) {
	switch x := v.(type) {
	case string:
		return []string{x}, nil
	case []string:
		return x, nil
	case []any:
		var out []string
		for _, e := range x {
			s, err := Strings(e)
			if err != nil {
				return nil, err
			}
			out = append(out, s...)
		}
		return out, nil
	default:
		return nil, errors.Newf(errors.CodeDecode, "matfile.Strings", "value of type %T is not text", v)
	}
}
