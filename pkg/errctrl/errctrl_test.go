package errctrl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerlink-go/plstack/pkg/od"
)

func TestCounterAccumulatesAndDecays(t *testing.T) {
	c := NewCounter(15)
	assert.False(t, c.Observe()) // 8
	assert.True(t, c.Observe())  // 16 > 15, crosses
	assert.False(t, c.Observe()) // 24, already over, no re-fire
	c.Decay()
	assert.Equal(t, uint32(23), c.Value())
	c.Decay()
	assert.Equal(t, uint32(22), c.Value())
}

func TestCounterFloorsAtZero(t *testing.T) {
	c := NewCounter(100)
	c.Decay()
	c.Decay()
	assert.Equal(t, uint32(0), c.Value())
}

func TestHandlerMirrorsCumulativeIntoOD(t *testing.T) {
	dict := od.New(nil)
	od.BuildMandatory(dict, 1)
	h := NewHandler(dict, nil)

	h.Observe(LossOfPRes)
	h.Observe(LossOfPRes)

	raw, err := dict.Read(0x1C0C, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), raw)
}

func TestHandlerThresholdTracksODWrite(t *testing.T) {
	dict := od.New(nil)
	od.BuildMandatory(dict, 1)
	h := NewHandler(dict, nil)

	require.NoError(t, dict.Write(0x1C0A, 1, od.EncodeUint(7, od.UNSIGNED32)))
	assert.Equal(t, uint32(7), h.Counter(LossOfSoC).Threshold())

	crossed := h.Observe(LossOfSoC) // 8 > 7; the default threshold 15 would not cross
	assert.True(t, crossed)
}

func TestScenarioFourLossOfPResAccumulation(t *testing.T) {
	// Mirrors spec.md §8 scenario 4: 5 consecutive missed PRes accumulate
	// 40 against a threshold of 15.
	dict := od.New(nil)
	od.BuildMandatory(dict, 1)
	h := NewHandler(dict, nil)
	require.NoError(t, dict.Write(0x1C0C, 1, od.EncodeUint(15, od.UNSIGNED32)))

	var crossed bool
	for i := 0; i < 5; i++ {
		if h.Observe(LossOfPRes) {
			crossed = true
		}
	}
	assert.True(t, crossed)
	assert.Equal(t, uint32(40), h.Counter(LossOfPRes).Value())
}
