// Defines Device, which binds a Memory and a LocalScheduler behind a role
// tag and a warm-up gate.

package sim

import "fmt"

// DeviceTag is the role a Device plays in the disaggregated fleet.
type DeviceTag string

const (
	TagPrefill DeviceTag = "PREFILL"
	TagDecode  DeviceTag = "DECODE"
	TagMixed   DeviceTag = "MIXED"
)

// DefaultWarmUpTicks is the number of ticks a freshly onlined device spends
// refusing jobs before it starts executing. Exposed as a Device field
// (rather than hardcoded) so deployments can tune it.
const DefaultWarmUpTicks = 10

// Device owns one Memory and one LocalScheduler, holds a back-reference to
// the GlobalScheduler it is registered with, and gates admission during a
// post-online warm-up window.
type Device struct {
	Name            string
	Tag             DeviceTag
	Memory          *Memory
	Scheduler       LocalScheduler
	GlobalScheduler *GlobalScheduler
	WarmUpTicks     int64
	warmUpRemaining int64
	Weights         WorkloadWeights
}

// WorkloadWeights exposes the dimensionless saturation-score magic numbers as
// configuration rather than hardcoded constants (resolves the "workload
// metric's constants" open question).
type WorkloadWeights struct {
	JobCountWeight  float64 // multiplies num_jobs
	OccupancyWeight float64 // multiplies occupied/safe_capacity
}

// DefaultWorkloadWeights matches the values documented in spec: 0.02 and 1.0.
func DefaultWorkloadWeights() WorkloadWeights {
	return WorkloadWeights{JobCountWeight: 0.02, OccupancyWeight: 1.0}
}

// NewDevice builds a Device and wires the bidirectional Device<->Scheduler
// back-pointer (the Scheduler->Device edge is set via SetDevice after both
// objects exist, per the design's cyclic-reference guidance; the
// GlobalScheduler->Device edge is set later by GlobalScheduler.AddDevice).
func NewDevice(name string, tag DeviceTag, memory *Memory, scheduler LocalScheduler) *Device {
	d := &Device{
		Name:        name,
		Tag:         tag,
		Memory:      memory,
		Scheduler:   scheduler,
		WarmUpTicks: DefaultWarmUpTicks,
		Weights:     DefaultWorkloadWeights(),
	}
	scheduler.SetDevice(d)
	return d
}

// JobStateSupported reports whether this device's role accepts a job in its
// current state. PREFILL devices accept INITIAL/PREFILL jobs only; DECODE
// devices accept DECODE jobs only; MIXED devices accept any state.
func (d *Device) JobStateSupported(job *Job) bool {
	switch d.Tag {
	case TagPrefill:
		return job.State == StateInitial || job.State == StatePrefill
	case TagDecode:
		return job.State == StateDecode
	case TagMixed:
		return true
	default:
		return false
	}
}

// AddJob refuses during warm-up or if the job's state is unsupported by this
// device's role; otherwise delegates to the local scheduler.
func (d *Device) AddJob(job *Job) bool {
	if d.IsWarmingUp() {
		return false
	}
	if !d.JobStateSupported(job) {
		return false
	}
	return d.Scheduler.AddJob(job)
}

// Step advances the device by one tick. During warm-up it decrements the
// remaining counter and executes nothing.
func (d *Device) Step(now int64) []*Job {
	if d.IsWarmingUp() {
		d.warmUpRemaining--
		return nil
	}
	return d.Scheduler.Step(now)
}

// WarmUp resets the warm-up counter, e.g. when the Allocator brings a device
// back online.
func (d *Device) WarmUp() { d.warmUpRemaining = d.WarmUpTicks }

// IsWarmingUp reports whether the device is still in its post-online grace
// period.
func (d *Device) IsWarmingUp() bool { return d.warmUpRemaining > 0 }

// Workload is the dimensionless saturation score used for dispatch ordering
// and load-balance comparisons: JobCountWeight*num_jobs +
// OccupancyWeight*(occupied/safe_capacity).
func (d *Device) Workload() float64 {
	safe := d.Memory.SafeCapacity()
	occupancyRatio := 0.0
	if safe > 0 {
		occupancyRatio = float64(d.Memory.Occupied()) / safe
	}
	return d.Weights.JobCountWeight*float64(d.Scheduler.NumJobs()) + d.Weights.OccupancyWeight*occupancyRatio
}

func (d *Device) String() string {
	return fmt.Sprintf("%s (%s) workload=%.4f", d.Name, d.Tag, d.Workload())
}
