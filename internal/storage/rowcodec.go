package storage

import (
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/kzdb/kzdb/internal/alias/bx"
	"github.com/kzdb/kzdb/internal/dberr"
)

// ColumnType is the scalar type of a column. Extended beyond the base set
// with Date/Timestamp/Blob, supplemented from the original implementation's
// DataType enum (common/types.h), since the distilled spec's Non-goals do
// not exclude additional scalar types.
type ColumnType uint8

const (
	ColNull ColumnType = iota
	ColBoolean
	ColInteger // int32
	ColBigint  // int64
	ColFloat   // float32
	ColDouble  // float64
	ColVarchar // UTF-8 text
	ColText    // UTF-8 text, same wire encoding as Varchar
	ColDate    // days since epoch, int32
	ColTimestamp
	ColBlob // opaque bytes
)

type Column struct {
	Name     string
	Type     ColumnType
	Length   uint32 // declared VARCHAR(n)/BLOB(n) length; 0 means unbounded
	Nullable bool
}

type Schema struct {
	Columns []Column
}

func (s Schema) NumColumns() int { return len(s.Columns) }

var (
	ErrSchemaMismatch  = errors.New("rowcodec: value does not match schema")
	ErrBadBuffer       = errors.New("rowcodec: buffer underflow or overflow")
	ErrValueTooLong    = errors.New("rowcodec: varlen value exceeds uint16")
	ErrUnsupportedType = errors.New("rowcodec: unsupported column type")
)

// EncodeRow serializes values against s into the wire format kzdb stores
// inside table-heap pages, matching record.cpp's encode() bit-exactly:
//
//	[field_count u16]
//	[null_bitmap_bytes u16]
//	[null bitmap: null_bitmap_bytes bytes, bit=1 => NULL]
//	for every column, null or not: [type_tag u8][length u16][payload...]
//
// Unlike the teacher's rowcodec.go (one shared null bitmap, no per-field
// type tag), every field carries its own type tag so a row can be decoded
// without the original schema being perfectly in sync — useful for the
// catalog's own bootstrap rows, which are decoded before any user schema
// exists. Null fields still emit a [type_tag][length=0] entry rather than
// being omitted, so field i's header start is locatable without first
// decoding every field before it.
func EncodeRow(s Schema, values []any) ([]byte, error) {
	nc := s.NumColumns()
	if len(values) != nc {
		return nil, ErrSchemaMismatch
	}
	if nc > math.MaxUint16 {
		return nil, ErrValueTooLong
	}

	nullBytes := (nc + 7) / 8
	out := make([]byte, 4+nullBytes)
	bx.PutU16(out[0:], uint16(nc))
	bx.PutU16(out[2:], uint16(nullBytes))

	for i, col := range s.Columns {
		v := values[i]
		if v == nil {
			if !col.Nullable {
				return nil, dberr.New(dberr.ConstraintViolation, dberr.CategoryUser, "NOT NULL violation").WithContext(col.Name)
			}
			out[4+i/8] |= 1 << uint(i%8)
			out = append(out, byte(col.Type))
			out = append(out, 0, 0)
			continue
		}

		payload, err := encodeScalar(col, v)
		if err != nil {
			return nil, err
		}
		if len(payload) > math.MaxUint16 {
			return nil, ErrValueTooLong
		}

		out = append(out, byte(col.Type))
		var lenBuf [2]byte
		bx.PutU16(lenBuf[:], uint16(len(payload)))
		out = append(out, lenBuf[:]...)
		out = append(out, payload...)
	}
	return out, nil
}

// DecodeRow reverses EncodeRow.
func DecodeRow(s Schema, buf []byte) ([]any, error) {
	nc := s.NumColumns()
	if len(buf) < 4 {
		return nil, ErrBadBuffer
	}
	fieldCount := int(bx.U16(buf[0:]))
	nullBytes := int(bx.U16(buf[2:]))
	if fieldCount != nc {
		return nil, ErrSchemaMismatch
	}
	if len(buf) < 4+nullBytes {
		return nil, ErrBadBuffer
	}
	nullmap := buf[4 : 4+nullBytes]
	i := 4 + nullBytes

	out := make([]any, nc)
	for colIdx, col := range s.Columns {
		if i+3 > len(buf) {
			return nil, ErrBadBuffer
		}
		typeTag := ColumnType(buf[i])
		length := int(bx.U16(buf[i+1:]))
		i += 3
		if i+length > len(buf) {
			return nil, ErrBadBuffer
		}

		isNull := colIdx/8 < len(nullmap) && (nullmap[colIdx/8]>>(colIdx%8))&1 == 1
		if isNull {
			out[colIdx] = nil
			i += length
			continue
		}

		v, err := decodeScalar(typeTag, buf[i:i+length])
		if err != nil {
			return nil, err
		}
		out[colIdx] = v
		i += length

		_ = col
	}
	return out, nil
}

// encodeScalar serializes v as col's declared type, coercing the two shapes
// spec §4.5 requires on INSERT/UPDATE: a string literal naming a DATE
// ("YYYY-MM-DD") or a BOOLEAN ("true"/"1"/"false"/"0", per strconv.ParseBool)
// rather than already holding the target Go type.
func encodeScalar(col Column, v any) ([]byte, error) {
	switch col.Type {
	case ColBoolean:
		b, ok := v.(bool)
		if !ok {
			if s, isStr := v.(string); isStr {
				parsed, err := strconv.ParseBool(s)
				if err != nil {
					return nil, dberr.New(dberr.TypeError, dberr.CategoryUser, "invalid BOOLEAN literal").WithContext(s)
				}
				b, ok = parsed, true
			}
		}
		if !ok {
			return nil, ErrSchemaMismatch
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case ColInteger, ColDate:
		if col.Type == ColDate {
			if s, isStr := v.(string); isStr {
				t, err := time.Parse("2006-01-02", s)
				if err != nil {
					return nil, dberr.New(dberr.TypeError, dberr.CategoryUser, "invalid DATE literal, want YYYY-MM-DD").WithContext(s)
				}
				buf := make([]byte, 4)
				bx.PutU32(buf, uint32(int32(t.Unix()/86400)))
				return buf, nil
			}
		}
		x, ok := asInt32(v)
		if !ok {
			return nil, ErrSchemaMismatch
		}
		buf := make([]byte, 4)
		bx.PutU32(buf, uint32(x))
		return buf, nil

	case ColBigint, ColTimestamp:
		x, ok := asInt64(v)
		if !ok {
			return nil, ErrSchemaMismatch
		}
		buf := make([]byte, 8)
		bx.PutU64(buf, uint64(x))
		return buf, nil

	case ColFloat:
		x, ok := asFloat64(v)
		if !ok {
			return nil, ErrSchemaMismatch
		}
		buf := make([]byte, 4)
		bx.PutU32(buf, math.Float32bits(float32(x)))
		return buf, nil

	case ColDouble:
		x, ok := asFloat64(v)
		if !ok {
			return nil, ErrSchemaMismatch
		}
		buf := make([]byte, 8)
		bx.PutU64(buf, math.Float64bits(x))
		return buf, nil

	case ColVarchar, ColText:
		str, ok := v.(string)
		if !ok {
			return nil, ErrSchemaMismatch
		}
		if col.Length > 0 && len(str) > int(col.Length) {
			return nil, dberr.New(dberr.ConstraintViolation, dberr.CategoryUser, "value exceeds declared length").WithContext(col.Name)
		}
		if len(str) > math.MaxUint16 {
			return nil, ErrValueTooLong
		}
		return []byte(str), nil

	case ColBlob:
		bs, ok := v.([]byte)
		if !ok {
			return nil, ErrSchemaMismatch
		}
		if col.Length > 0 && len(bs) > int(col.Length) {
			return nil, dberr.New(dberr.ConstraintViolation, dberr.CategoryUser, "value exceeds declared length").WithContext(col.Name)
		}
		if len(bs) > math.MaxUint16 {
			return nil, ErrValueTooLong
		}
		return bs, nil

	default:
		return nil, ErrUnsupportedType
	}
}

func decodeScalar(typ ColumnType, payload []byte) (any, error) {
	switch typ {
	case ColBoolean:
		if len(payload) != 1 {
			return nil, ErrBadBuffer
		}
		return payload[0] != 0, nil

	case ColInteger, ColDate:
		if len(payload) != 4 {
			return nil, ErrBadBuffer
		}
		return int32(bx.U32(payload)), nil

	case ColBigint, ColTimestamp:
		if len(payload) != 8 {
			return nil, ErrBadBuffer
		}
		return int64(bx.U64(payload)), nil

	case ColFloat:
		if len(payload) != 4 {
			return nil, ErrBadBuffer
		}
		return float64(math.Float32frombits(bx.U32(payload))), nil

	case ColDouble:
		if len(payload) != 8 {
			return nil, ErrBadBuffer
		}
		return math.Float64frombits(bx.U64(payload)), nil

	case ColVarchar, ColText:
		return string(payload), nil

	case ColBlob:
		cp := make([]byte, len(payload))
		copy(cp, payload)
		return cp, nil

	default:
		return nil, ErrUnsupportedType
	}
}

func asInt32(v any) (int32, bool) {
	switch x := v.(type) {
	case int32:
		return x, true
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return int32(x), true
		}
	case int64:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return int32(x), true
		}
	}
	return 0, false
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case time.Time:
		return x.Unix(), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}
