package od

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDictionary() *ObjectDictionary {
	dict := New(nil)
	BuildMandatory(dict, 1)
	return dict
}

func TestReadWriteRoundTrip(t *testing.T) {
	dict := newTestDictionary()
	err := dict.Write(IdxCycleLength, 0, EncodeUint(2000, UNSIGNED32))
	require.NoError(t, err)

	v, err := dict.Read(IdxCycleLength, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), v)
}

func TestWriteRejectedOnReadOnly(t *testing.T) {
	dict := newTestDictionary()
	err := dict.Write(IdxDeviceType, 0, EncodeUint(1, UNSIGNED32))
	assert.Error(t, err)
}

func TestWriteRejectedByHookRollsBack(t *testing.T) {
	dict := newTestDictionary()
	before, err := dict.Read(IdxCycleLength, 0)
	require.NoError(t, err)

	err = dict.Subscribe(IdxCycleLength, 0, func(index uint16, sub uint8, newValue []byte) error {
		return assertErr{}
	})
	require.NoError(t, err)

	err = dict.Write(IdxCycleLength, 0, EncodeUint(999, UNSIGNED32))
	assert.Error(t, err)

	after, err := dict.Read(IdxCycleLength, 0)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestWriteTypeMismatchRejected(t *testing.T) {
	dict := newTestDictionary()
	err := dict.Write(IdxCycleLength, 0, []byte{1, 2})
	assert.Error(t, err)
}

func TestObjectNotFound(t *testing.T) {
	dict := newTestDictionary()
	_, err := dict.Read(0xBEEF, 0)
	assert.Error(t, err)
}

func TestArrayCountReflectsSubEntries(t *testing.T) {
	entry := NewArrayEntry(0x2000, "TestArray", []*Variable{
		NewVariable("a", 0, UNSIGNED8, AccessReadWrite, PDOMapNone, []byte{0}),
		NewVariable("b", 0, UNSIGNED8, AccessReadWrite, PDOMapNone, []byte{0}),
	})
	countVar, err := entry.Sub(0)
	require.NoError(t, err)
	count, err := DecodeValue(countVar.Raw(), UNSIGNED8)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestRestoreDefaultsResetsModifiedValue(t *testing.T) {
	dict := newTestDictionary()
	require.NoError(t, dict.Write(IdxCycleLength, 0, EncodeUint(4000, UNSIGNED32)))

	n, err := dict.RestoreDefaults(restoreDefaultsSignature)
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	v, err := dict.Read(IdxCycleLength, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)
}

func TestRestoreDefaultsRejectsBadSignature(t *testing.T) {
	dict := newTestDictionary()
	_, err := dict.RestoreDefaults(0)
	assert.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "rejected by hook" }
