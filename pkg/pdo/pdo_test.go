package pdo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerlink-go/plstack/pkg/od"
)

func buildMappingEntry(index uint16, params []uint64) *od.Entry {
	subs := make([]*od.Variable, 0, len(params))
	for _, p := range params {
		subs = append(subs, od.NewVariable("Map", 0, od.UNSIGNED64, od.AccessReadWrite, od.PDOMapNone, uint64ToRaw(p, 8)))
	}
	return od.NewArrayEntry(index, "PDOMapping", subs)
}

func TestCompileAndProjectTPDO(t *testing.T) {
	dict := od.New(nil)

	source := od.NewVariable("Src", 1, od.UNSIGNED16, od.AccessReadWrite, od.PDOMapDefault, od.EncodeUint(0, od.UNSIGNED16))
	dict.AddEntry(od.NewArrayEntry(0x6000, "Source", []*od.Variable{source}))
	require.NoError(t, dict.WriteOrigin(0x6000, 1, od.EncodeUint(0xABCD, od.UNSIGNED16)))

	mapping := buildMappingEntry(0x1A00, []uint64{packMapParam(0x6000, 1, 16)})
	ch, err := Compile(dict, mapping, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 16, ch.TotalBits)

	buf := make([]byte, byteLen(ch.TotalBits))
	require.NoError(t, ProjectToFrame(buf, ch, dict))
	assert.Equal(t, []byte{0xCD, 0xAB}, buf)
}

func TestCompileAndApplyRPDO(t *testing.T) {
	dict := od.New(nil)

	target := od.NewVariable("Dst", 1, od.UNSIGNED16, od.AccessReadOnly, od.PDOMapRPDOOnly, od.EncodeUint(0, od.UNSIGNED16))
	dict.AddEntry(od.NewArrayEntry(0x6100, "Target", []*od.Variable{target}))

	mapping := buildMappingEntry(0x1600, []uint64{packMapParam(0x6100, 1, 16)})
	ch, err := Compile(dict, mapping, 2, true)
	require.NoError(t, err)

	buf := []byte{0x34, 0x12}
	require.NoError(t, ApplyFromFrame(buf, ch, dict, 2))

	v, err := dict.Read(0x6100, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1234), v)
}

func TestApplyFromFrameRejectsVersionMismatch(t *testing.T) {
	dict := od.New(nil)
	target := od.NewVariable("Dst", 1, od.UNSIGNED16, od.AccessReadOnly, od.PDOMapRPDOOnly, od.EncodeUint(0, od.UNSIGNED16))
	dict.AddEntry(od.NewArrayEntry(0x6100, "Target", []*od.Variable{target}))

	mapping := buildMappingEntry(0x1600, []uint64{packMapParam(0x6100, 1, 16)})
	ch, err := Compile(dict, mapping, 2, true)
	require.NoError(t, err)

	err = ApplyFromFrame([]byte{0x34, 0x12}, ch, dict, 9)
	assert.Error(t, err)
}

func TestCompileRejectsWrongDirection(t *testing.T) {
	dict := od.New(nil)
	target := od.NewVariable("Dst", 1, od.UNSIGNED16, od.AccessReadOnly, od.PDOMapTPDOOnly, od.EncodeUint(0, od.UNSIGNED16))
	dict.AddEntry(od.NewArrayEntry(0x6200, "Target", []*od.Variable{target}))

	mapping := buildMappingEntry(0x1600, []uint64{packMapParam(0x6200, 1, 16)})
	_, err := Compile(dict, mapping, 1, true)
	assert.Error(t, err)
}

func TestCompileDummyPaddingReservesSpace(t *testing.T) {
	dict := od.New(nil)
	source := od.NewVariable("Src", 1, od.UNSIGNED8, od.AccessReadWrite, od.PDOMapDefault, od.EncodeUint(0, od.UNSIGNED8))
	dict.AddEntry(od.NewArrayEntry(0x6300, "Source", []*od.Variable{source}))

	mapping := buildMappingEntry(0x1A00, []uint64{
		packMapParam(0x0001, 0, 8),
		packMapParam(0x6300, 1, 8),
	})
	ch, err := Compile(dict, mapping, 1, false)
	require.NoError(t, err)
	require.Len(t, ch.Descriptors, 2)
	assert.Equal(t, uint16(1), ch.Descriptors[1].ByteOffset)
}
