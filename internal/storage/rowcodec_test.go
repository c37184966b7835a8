package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kzdb/kzdb/internal/alias/bx"
	"github.com/kzdb/kzdb/internal/dberr"
)

func sampleSchema() Schema {
	return Schema{Columns: []Column{
		{Name: "id", Type: ColBigint},
		{Name: "name", Type: ColVarchar, Nullable: true},
		{Name: "active", Type: ColBoolean},
	}}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := sampleSchema()
	values := []any{int64(42), "alice", true}

	buf, err := EncodeRow(s, values)
	require.NoError(t, err)

	out, err := DecodeRow(s, buf)
	require.NoError(t, err)
	require.Equal(t, values, out)
}

func TestEncodeDecodeNullValue(t *testing.T) {
	s := sampleSchema()
	values := []any{int64(1), nil, false}

	buf, err := EncodeRow(s, values)
	require.NoError(t, err)

	out, err := DecodeRow(s, buf)
	require.NoError(t, err)
	require.Nil(t, out[1])
}

func TestEncodeRejectsNullOnNonNullable(t *testing.T) {
	s := sampleSchema()
	_, err := EncodeRow(s, []any{nil, "x", true})
	require.Error(t, err)
	dbErr, ok := err.(*dberr.DBError)
	require.True(t, ok)
	require.Equal(t, dberr.ConstraintViolation, dbErr.Code)
}

func TestEncodeRejectsWrongArity(t *testing.T) {
	s := sampleSchema()
	_, err := EncodeRow(s, []any{int64(1)})
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestEncodeRowHeaderMatchesFieldCount(t *testing.T) {
	s := sampleSchema()
	buf, err := EncodeRow(s, []any{int64(1), "x", true})
	require.NoError(t, err)

	require.EqualValues(t, 3, bx.U16(buf[0:]))
	nullBytes := bx.U16(buf[2:])
	require.EqualValues(t, 1, nullBytes)
}

func TestEncodeNullFieldCarriesTypeTagAndZeroLength(t *testing.T) {
	s := sampleSchema()
	buf, err := EncodeRow(s, []any{int64(1), nil, true})
	require.NoError(t, err)

	// field 1 (name) header starts after [count u16][bitmap_len u16][bitmap]
	// and field 0's [tag u8][len u16][8-byte bigint payload]
	off := 4 + 1 + (1 + 2 + 8)
	require.Equal(t, byte(ColVarchar), buf[off])
	require.EqualValues(t, 0, bx.U16(buf[off+1:]))
}

func TestDecodeRejectsFieldCountMismatch(t *testing.T) {
	s := sampleSchema()
	buf, err := EncodeRow(s, []any{int64(1), "x", true})
	require.NoError(t, err)

	_, err = DecodeRow(Schema{Columns: s.Columns[:2]}, buf)
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestEncodeCoercesStringToDate(t *testing.T) {
	s := Schema{Columns: []Column{{Name: "d", Type: ColDate}}}
	buf, err := EncodeRow(s, []any{"2024-01-15"})
	require.NoError(t, err)

	out, err := DecodeRow(s, buf)
	require.NoError(t, err)
	require.NotZero(t, out[0])
}

func TestEncodeRejectsMalformedDateString(t *testing.T) {
	s := Schema{Columns: []Column{{Name: "d", Type: ColDate}}}
	_, err := EncodeRow(s, []any{"not-a-date"})
	require.Error(t, err)
}

func TestEncodeCoercesStringToBoolean(t *testing.T) {
	s := Schema{Columns: []Column{{Name: "b", Type: ColBoolean}}}
	buf, err := EncodeRow(s, []any{"true"})
	require.NoError(t, err)

	out, err := DecodeRow(s, buf)
	require.NoError(t, err)
	require.Equal(t, true, out[0])
}

func TestEncodeRejectsOverlongVarchar(t *testing.T) {
	s := Schema{Columns: []Column{{Name: "name", Type: ColVarchar, Length: 3}}}
	_, err := EncodeRow(s, []any{"abcdef"})
	require.Error(t, err)
	dbErr, ok := err.(*dberr.DBError)
	require.True(t, ok)
	require.Equal(t, dberr.ConstraintViolation, dbErr.Code)
}

func TestEncodeAllowsVarcharWithinDeclaredLength(t *testing.T) {
	s := Schema{Columns: []Column{{Name: "name", Type: ColVarchar, Length: 3}}}
	_, err := EncodeRow(s, []any{"abc"})
	require.NoError(t, err)
}
