package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocator_OfflinesIdleDeviceAfterThreshold(t *testing.T) {
	d1 := newMixedDevice(t, "d1", 100)
	d2 := newMixedDevice(t, "d2", 100)
	global := NewGlobalScheduler([]*Device{d1, d2}, false)
	a := NewAllocator(global, []*Device{d1, d2}, 2)

	a.Step() // idle tick 1
	a.Step() // idle tick 2: d1 crosses the threshold and offlines

	assert.ElementsMatch(t, []*Device{d2}, a.OnlineDevices())
	assert.ElementsMatch(t, []*Device{d1}, a.OfflineDevices())
}

func TestAllocator_SafetyGuardRefusesToOfflineLastCapableDevice(t *testing.T) {
	solo := newMixedDevice(t, "solo", 100)
	global := NewGlobalScheduler([]*Device{solo}, false)
	a := NewAllocator(global, []*Device{solo}, 1)

	for i := 0; i < 5; i++ {
		a.Step()
	}

	assert.ElementsMatch(t, []*Device{solo}, a.OnlineDevices(), "offlining the only device would violate the fleet-capability invariant")
	assert.Empty(t, a.OfflineDevices())
}

func TestAllocator_OnlinesOffineDeviceWhenFleetIsSaturated(t *testing.T) {
	d1 := newMixedDevice(t, "d1", 100)
	d2 := newMixedDevice(t, "d2", 100)
	global := NewGlobalScheduler([]*Device{d1, d2}, false)
	a := NewAllocator(global, []*Device{d1, d2}, 100)
	global.Weights.BusyThreshold = 0.5

	a.offlineDevice(d2)
	require.ElementsMatch(t, []*Device{d1}, a.OnlineDevices())
	require.ElementsMatch(t, []*Device{d2}, a.OfflineDevices())

	require.True(t, d1.Memory.Request(60)) // occupancy ratio 0.6 > busy threshold 0.5

	a.Step()

	assert.ElementsMatch(t, []*Device{d1, d2}, a.OnlineDevices())
	assert.Empty(t, a.OfflineDevices())
	assert.True(t, d2.IsWarmingUp(), "onlined devices re-enter their warm-up window")
}

func TestAllocator_IdleThresholdNegativeDisablesDynamicManagement(t *testing.T) {
	d1 := newMixedDevice(t, "d1", 100)
	global := NewGlobalScheduler([]*Device{d1}, false)
	a := NewAllocator(global, []*Device{d1}, -1)

	for i := 0; i < 10; i++ {
		a.Step()
	}

	assert.ElementsMatch(t, []*Device{d1}, a.OnlineDevices())
	assert.Empty(t, a.OfflineDevices())
}
