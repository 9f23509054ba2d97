// Defines Allocator: an idle-driven offline / saturation-driven online
// control loop over the device pool.

package sim

import "github.com/sirupsen/logrus"

// Allocator dynamically onlines/offlines devices in response to workload. A
// device is offlined once its workload has been negligible for IdleThreshold
// consecutive ticks, subject to the safety policy in okayToOffline. A device
// is onlined when every visible device is busy and at least one offline
// device exists.
type Allocator struct {
	IdleThreshold int64 // -1 disables dynamic management entirely

	global         *GlobalScheduler
	online         []*Device
	offline        []*Device
	idleCounters   map[*Device]int64
	onDutyCounters map[*Device]int64
	tagCounts      map[DeviceTag]int
}

// NewAllocator builds an Allocator over all candidate devices, all initially
// online, registering them with the given GlobalScheduler.
func NewAllocator(global *GlobalScheduler, allDevices []*Device, idleThreshold int64) *Allocator {
	a := &Allocator{
		IdleThreshold:  idleThreshold,
		global:         global,
		online:         append([]*Device(nil), allDevices...),
		idleCounters:   make(map[*Device]int64, len(allDevices)),
		onDutyCounters: make(map[*Device]int64, len(allDevices)),
		tagCounts:      make(map[DeviceTag]int),
	}
	for _, d := range allDevices {
		a.idleCounters[d] = 0
		a.onDutyCounters[d] = 0
		a.tagCounts[d.Tag]++
	}
	return a
}

// OnlineDevices returns the currently online device set.
func (a *Allocator) OnlineDevices() []*Device { return append([]*Device(nil), a.online...) }

// OfflineDevices returns the currently offline device set.
func (a *Allocator) OfflineDevices() []*Device { return append([]*Device(nil), a.offline...) }

// Step runs one tick of allocator control: per-device idle accounting and
// offlining, then a single online decision if the fleet is saturated.
func (a *Allocator) Step() {
	for _, d := range append([]*Device(nil), a.online...) {
		a.onDutyCounters[d]++

		if d.IsWarmingUp() {
			continue
		}
		if a.IdleThreshold < 0 {
			continue
		}

		if d.Workload() < 1e-6 {
			a.idleCounters[d]++
		} else {
			a.idleCounters[d] = 0
		}

		if a.idleCounters[d] >= a.IdleThreshold && a.okayToOffline(d) {
			a.offlineDevice(d)
		}
	}

	if a.global.AllDevicesBusy() && len(a.offline) > 0 && a.IdleThreshold >= 0 {
		a.onlineDevice(a.offline[0])
	}
}

func (a *Allocator) offlineDevice(d *Device) {
	for i, existing := range a.online {
		if existing == d {
			a.online = append(a.online[:i], a.online[i+1:]...)
			a.tagCounts[d.Tag]--
			a.idleCounters[d] = 0
			a.offline = append(a.offline, d)
			a.global.RemoveDevice(d)
			logrus.Infof("allocator >> offlined device %q", d.Name)
			return
		}
	}
}

func (a *Allocator) onlineDevice(d *Device) {
	for i, existing := range a.offline {
		if existing == d {
			a.offline = append(a.offline[:i], a.offline[i+1:]...)
			a.online = append(a.online, d)
			a.tagCounts[d.Tag]++
			a.idleCounters[d] = 0
			d.WarmUp()
			a.global.AddDevice(d)
			logrus.Infof("allocator >> onlined device %q", d.Name)
			return
		}
	}
}

// okayToOffline enforces the safety invariant: offlining must preserve at
// least one prefill-capable device and at least one decode-capable device.
// MIXED devices count toward both pools and must satisfy both conditions.
func (a *Allocator) okayToOffline(d *Device) bool {
	switch d.Tag {
	case TagPrefill:
		return a.tagCounts[TagPrefill]+a.tagCounts[TagMixed] > 1
	case TagDecode:
		return a.tagCounts[TagDecode]+a.tagCounts[TagMixed] > 1
	case TagMixed:
		return a.tagCounts[TagPrefill]+a.tagCounts[TagMixed] > 1 &&
			a.tagCounts[TagDecode]+a.tagCounts[TagMixed] > 1
	default:
		return false
	}
}

// OnDutyTicks returns the lifetime number of ticks a device has been online,
// for reporting.
func (a *Allocator) OnDutyTicks(d *Device) int64 { return a.onDutyCounters[d] }
