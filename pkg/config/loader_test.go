package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerlink-go/plstack/pkg/od"
)

const sampleConfig = `
[1006]
Name=NMT_CycleLen_U32
ObjectType=VAR
DataType=0x7
AccessType=rw
DefaultValue=1000

[1018]
Name=NMT_IdentityObject_REC
ObjectType=RECORD

[1018sub0]
Name=NrOfEntries
DataType=0x5

[1018sub1]
Name=VendorId_U32
DataType=0x7
AccessType=ro
DefaultValue=0x42

[1F93]
Name=NMT_EPLNodeID_REC
ObjectType=RECORD

[1F93sub1]
Name=NodeID_U8
DataType=0x5
AccessType=ro
DefaultValue=$NODEID
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bringup.ini")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))
	return path
}

func TestLoadObjectDictionarySeedsVarAndRecordEntries(t *testing.T) {
	path := writeSample(t)
	dict, err := LoadObjectDictionary(path, 5, nil)
	require.NoError(t, err)

	cycleLen, err := dict.Read(0x1006, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), cycleLen)

	vendor, err := dict.Read(0x1018, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x42), vendor)

	entry := dict.Index(0x1018)
	require.NotNil(t, entry)
	assert.Equal(t, od.ObjectRECORD, entry.ObjectType)
}

func TestLoadObjectDictionarySubstitutesNodeID(t *testing.T) {
	path := writeSample(t)
	dict, err := LoadObjectDictionary(path, 5, nil)
	require.NoError(t, err)

	nodeID, err := dict.Read(0x1F93, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), nodeID)
}
