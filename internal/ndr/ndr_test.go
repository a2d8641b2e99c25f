package ndr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadScalars(t *testing.T) {
	w := NewWriter()
	w.WriteUint16(0xAABB)
	w.WriteUint32(0xDEADBEEF)
	w.WriteUint64(0x0102030405060708)

	r := NewReader(w.Bytes())
	v16, err := r.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xAABB), v16)

	v32, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), v32)

	v64, err := r.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), v64)

	assert.Equal(t, 0, r.Remaining())
}

func TestReadTruncated(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	_, err := r.ReadUint32()
	assert.Error(t, err)
}

func TestReferentsAreConsecutive(t *testing.T) {
	w := NewWriter()
	r1 := w.WriteReferent()
	r2 := w.WriteReferent()
	r3 := w.WriteReferent()
	assert.Equal(t, []uint32{1, 2, 3}, []uint32{r1, r2, r3})
}

func TestConformantVaryingStringRoundTrip(t *testing.T) {
	cases := []string{"data", "public$", "", "日本語"}
	for _, s := range cases {
		w := NewWriter()
		require.NoError(t, w.WriteConformantVaryingString(s))
		assert.Equal(t, 0, w.Len()%4, "output must be 4-byte aligned")

		r := NewReader(w.Bytes())
		got, err := r.ReadConformantVaryingString()
		require.NoError(t, err)
		assert.Equal(t, s, got)
		assert.Equal(t, 0, r.Remaining())
	}
}

func TestStringRejectsNonZeroOffset(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.WriteConformantVaryingString("x"))
	buf := w.Bytes()
	// Corrupt the offset field (second u32) to a non-zero value.
	buf[4] = 1

	r := NewReader(buf)
	_, err := r.ReadConformantVaryingString()
	assert.Error(t, err)
}

func TestAlign4(t *testing.T) {
	w := NewWriter()
	w.WriteUint16(1) // 2 bytes, unaligned
	w.Align4()
	assert.Equal(t, 4, w.Len())

	r := NewReader(w.Bytes())
	_, err := r.ReadUint16()
	require.NoError(t, err)
	require.NoError(t, r.Align4())
	assert.Equal(t, 4, r.Offset())
}
