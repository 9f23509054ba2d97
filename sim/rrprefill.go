// Defines RRPrefillScheduler, the interleaved-prefill variant of
// FCFSPrefillScheduler: round-robins the chunk_time budget across multiple
// in-flight prefills instead of running one job to completion before
// starting the next.

package sim

import (
	"math"

	"github.com/sirupsen/logrus"
)

// prefillProgress tracks one job's chunked-prefill bookkeeping: how much
// total and current-iteration time it has accumulated, and whether memory
// has been allocated for it yet.
type prefillProgress struct {
	job              *Job
	expectedTime     int64
	totalRunningTime int64
	iterRunningTime  int64
	memoryAllocated  bool
}

// RRPrefillScheduler interleaves multiple prefilling jobs: the current job
// runs for up to chunk_time ticks, then is rotated to the back of the queue
// and the next job becomes current. Memory for a job is allocated the first time it becomes
// current, and a job may only run while memory isn't near full unless it is
// already allocated (gated on memory.SafeCapacity()).
type RRPrefillScheduler struct {
	name      string
	memory    *Memory
	device    *Device
	chunkSize int64
	chunkTime int64

	runQueue    []*prefillProgress
	curProgress *prefillProgress
}

// NewRRPrefillScheduler builds an interleaved chunked-prefill scheduler.
func NewRRPrefillScheduler(memory *Memory, chunkSize, chunkTime int64) *RRPrefillScheduler {
	return &RRPrefillScheduler{
		name:      "RR-Prefill",
		memory:    memory,
		chunkSize: chunkSize,
		chunkTime: chunkTime,
	}
}

func (r *RRPrefillScheduler) SetDevice(d *Device) { r.device = d }

func (r *RRPrefillScheduler) deviceName() string {
	if r.device == nil {
		return "<unbound>"
	}
	return r.device.Name
}

// AddJob precomputes the job's total expected prefill duration and appends
// it to the run queue. Always accepted.
func (r *RRPrefillScheduler) AddJob(job *Job) bool {
	iterations := int64(math.Ceil(float64(job.InitSize) / float64(r.chunkSize)))
	r.runQueue = append(r.runQueue, &prefillProgress{job: job, expectedTime: iterations * r.chunkTime})
	return true
}

// RemoveJob removes a job's progress record; panics if absent.
func (r *RRPrefillScheduler) RemoveJob(job *Job) {
	for i, p := range r.runQueue {
		if p.job == job {
			r.runQueue = append(r.runQueue[:i], r.runQueue[i+1:]...)
			return
		}
	}
	panic("RR-Prefill: RemoveJob: job not in run queue")
}

// NumJobs is the size of the run queue.
func (r *RRPrefillScheduler) NumJobs() int { return len(r.runQueue) }

// PickMovableJob never nominates a prefill-stage job (see FCFSPrefillScheduler).
func (r *RRPrefillScheduler) PickMovableJob(expectedStages []JobState) *Job { return nil }

// PreemptJob always fails (see FCFSPrefillScheduler).
func (r *RRPrefillScheduler) PreemptJob(job *Job) bool { return false }

// Step advances the current job by one tick (starting or rotating as
// needed), gating new admissions on safe_capacity.
func (r *RRPrefillScheduler) Step(now int64) []*Job {
	logrus.Debugf("%s >> %s", r.deviceName(), r.memory)

	if r.curProgress != nil {
		switch {
		case r.curProgress.totalRunningTime >= r.curProgress.expectedTime:
			logrus.Debugf("%s >> job %s prefill complete", r.deviceName(), r.curProgress.job.ID)
			r.memory.Release(r.curProgress.job.InitSize)
			r.RemoveJob(r.curProgress.job)
			r.curProgress.job.State = StateDecode
			r.curProgress.job.MarkPrefillFinish(now)
			if r.device != nil && r.device.GlobalScheduler != nil {
				r.device.GlobalScheduler.ReceiveJob(r.curProgress.job)
			}
			r.curProgress = nil
			return nil
		case r.curProgress.iterRunningTime >= r.chunkTime:
			r.curProgress.iterRunningTime = 0
			r.rotateToBack(r.curProgress)
			r.curProgress = nil
		default:
			r.curProgress.totalRunningTime++
			r.curProgress.iterRunningTime++
			logrus.Debugf("%s >> job %s prefilling for %d/%d steps", r.deviceName(), r.curProgress.job.ID, r.curProgress.totalRunningTime, r.curProgress.expectedTime)
			return []*Job{r.curProgress.job}
		}
	}

	if len(r.runQueue) == 0 {
		logrus.Debugf("%s >> no jobs to run - empty run queue", r.deviceName())
		return nil
	}

	if float64(r.memory.Occupied()) > r.memory.SafeCapacity() {
		var allocated *prefillProgress
		for _, p := range r.runQueue {
			if p.memoryAllocated {
				allocated = p
				break
			}
		}
		if allocated == nil {
			logrus.Debugf("%s >> no jobs to run - memory near full", r.deviceName())
			return nil
		}
		r.curProgress = allocated
	} else {
		r.curProgress = r.runQueue[0]
		if !r.curProgress.memoryAllocated {
			if !r.memory.Request(r.curProgress.job.InitSize) {
				logrus.Warnf("%s >> job %s failed to allocate %d tokens", r.deviceName(), r.curProgress.job.ID, r.curProgress.job.InitSize)
				r.curProgress = nil
				return nil
			}
			logrus.Debugf("%s >> job %s start prefilling for %d steps", r.deviceName(), r.curProgress.job.ID, r.curProgress.expectedTime)
		}
		r.curProgress.job.State = StatePrefill
		r.curProgress.memoryAllocated = true
		r.curProgress.totalRunningTime = 0
		r.curProgress.iterRunningTime = 0
	}

	r.curProgress.job.Advance(now)
	r.curProgress.iterRunningTime++
	r.curProgress.totalRunningTime++
	logrus.Debugf("%s >> job %s prefilling for %d/%d steps", r.deviceName(), r.curProgress.job.ID, r.curProgress.totalRunningTime, r.curProgress.expectedTime)
	return []*Job{r.curProgress.job}
}

func (r *RRPrefillScheduler) rotateToBack(p *prefillProgress) {
	for i, existing := range r.runQueue {
		if existing == p {
			r.runQueue = append(r.runQueue[:i], r.runQueue[i+1:]...)
			r.runQueue = append(r.runQueue, p)
			return
		}
	}
}
