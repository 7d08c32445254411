package eth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBusUnregisteredBackendErrors(t *testing.T) {
	_, err := NewBus("does-not-exist", "eth0", 1)
	require.Error(t, err)
}

func TestRegisterInterfaceMakesBackendSelectable(t *testing.T) {
	called := false
	RegisterInterface("fake", func(ifaceName string, nodeID uint8) (Bus, error) {
		called = true
		return nil, nil
	})

	_, err := NewBus("fake", "eth0", 3)
	require.NoError(t, err)
	assert.True(t, called)
}

func TestAFPacketBusRegistersUnderAFPacketName(t *testing.T) {
	// afpacket_linux.go's init() registers "afpacket"; a real socket can't
	// be opened without root and a live interface, so this only checks the
	// backend is reachable through the registry rather than constructing
	// one.
	_, err := NewBus("afpacket", "does-not-exist0", 1)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "unregistered backend")
}
