package teable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates normalization of the backend's two response envelopes into one record slice.
// Scope: Unit Test
// Expected: {records:[...]} and a bare {id, fields} object decode to the same shape.
// Test Case ID: GW-07
func TestDecodeRecords_Envelopes(t *testing.T) {
	wrapped := DecodeRecords([]byte(`{"records":[{"id":"rec1","fields":{"fld1":"a"}},{"id":"rec2","fields":{"fld1":"b"}}]}`))
	require.Len(t, wrapped, 2)
	assert.Equal(t, "rec1", wrapped[0].ID)
	assert.Equal(t, "a", wrapped[0].Fields["fld1"])

	bare := DecodeRecords([]byte(`{"id":"rec3","fields":{"fld1":"c"}}`))
	require.Len(t, bare, 1)
	assert.Equal(t, "rec3", bare[0].ID)
	assert.Equal(t, "c", bare[0].Fields["fld1"])
}

func TestDecodeRecords_Unrecognized(t *testing.T) {
	assert.Nil(t, DecodeRecords(nil))
	assert.Nil(t, DecodeRecords([]byte(``)))
	assert.Nil(t, DecodeRecords([]byte(`{"message":"no records here"}`)))
	assert.Empty(t, DecodeRecords([]byte(`{"records":[]}`)))
}

func TestFirstRecord(t *testing.T) {
	rec, ok := FirstRecord([]byte(`{"records":[{"id":"rec1","fields":{}}]}`))
	require.True(t, ok)
	assert.Equal(t, "rec1", rec.ID)

	_, ok = FirstRecord([]byte(`{"records":[]}`))
	assert.False(t, ok)
}

func TestDateEquals_ClosedRange(t *testing.T) {
	f := DateEquals("fld001", "2026-03-01")
	assert.Equal(t, "and", f.Conjunction)
	require.Len(t, f.FilterSet, 2)
	assert.Equal(t, "isOnOrAfter", f.FilterSet[0].Operator)
	assert.Equal(t, "isOnOrBefore", f.FilterSet[1].Operator)
	assert.Equal(t, "2026-03-01", f.FilterSet[0].Value)
	assert.Equal(t, "fld001", f.FilterSet[1].FieldID)
}
