// Defines FCFSPrefillScheduler, a chunked-prefill scheduler that models
// prefill as a fixed-duration workload derived from input size.

package sim

import (
	"math"

	"github.com/sirupsen/logrus"
)

// FCFSPrefillScheduler runs at most one job at a time, occupying it for
// ceil(init_size/chunk_size)*chunk_time ticks before handing it back to the
// GlobalScheduler in DECODE state. Prefill-stage jobs are not considered
// movable: there is no meaningful way to migrate a partially-chunked prefill
// mid-flight, so PickMovableJob/PreemptJob are no-ops.
type FCFSPrefillScheduler struct {
	baseDecodeScheduler
	chunkSize int64
	chunkTime int64

	curJob             *Job
	curJobTime         int64
	curJobExpectedTime int64
}

// NewFCFSPrefillScheduler builds a chunked-prefill scheduler.
func NewFCFSPrefillScheduler(memory *Memory, chunkSize, chunkTime int64) *FCFSPrefillScheduler {
	f := &FCFSPrefillScheduler{
		baseDecodeScheduler: baseDecodeScheduler{name: "FCFS-Prefill", memory: memory, batch: 1},
		chunkSize:           chunkSize,
		chunkTime:           chunkTime,
	}
	return f
}

// AddJob always accepts, appending to the tail of the run queue.
func (f *FCFSPrefillScheduler) AddJob(job *Job) bool {
	f.runQueue = append(f.runQueue, job)
	return true
}

// PickMovableJob never nominates a prefill-stage job: there is no defined
// mechanics for migrating a partially-chunked prefill.
func (f *FCFSPrefillScheduler) PickMovableJob(expectedStages []JobState) *Job { return nil }

// PreemptJob always fails: see PickMovableJob.
func (f *FCFSPrefillScheduler) PreemptJob(job *Job) bool { return false }

// Step overrides the shared default template entirely: prefill has its own
// single-job-in-flight state machine rather than a per-tick pick/advance
// cycle over a whole selection.
func (f *FCFSPrefillScheduler) Step(now int64) []*Job {
	logrus.Debugf("%s >> %s", f.deviceName(), f.memory)

	if f.curJob != nil {
		if f.curJobTime >= f.curJobExpectedTime {
			logrus.Debugf("%s >> job %s prefill complete", f.deviceName(), f.curJob.ID)
			f.memory.Release(f.curJob.InitSize)
			f.removeFromQueue(f.curJob)
			f.curJob.State = StateDecode
			f.curJob.MarkPrefillFinish(now)
			if f.device != nil && f.device.GlobalScheduler != nil {
				f.device.GlobalScheduler.ReceiveJob(f.curJob)
			}
			f.curJob = nil
			f.curJobTime = 0
			f.curJobExpectedTime = 0
			return nil
		}
		f.curJobTime++
		logrus.Debugf("%s >> job %s prefilling for %d/%d steps", f.deviceName(), f.curJob.ID, f.curJobTime, f.curJobExpectedTime)
		return []*Job{f.curJob}
	}

	if len(f.runQueue) == 0 {
		logrus.Debugf("%s >> no jobs to run - empty run queue", f.deviceName())
		return nil
	}

	next := f.runQueue[0]
	if !f.memory.Request(next.InitSize) {
		logrus.Warnf("%s >> job %s failed to allocate %d tokens", f.deviceName(), next.ID, next.InitSize)
		return nil
	}

	f.curJob = next
	next.State = StatePrefill
	next.Advance(now)
	f.curJobTime = 0

	iterations := int64(math.Ceil(float64(next.InitSize) / float64(f.chunkSize)))
	f.curJobExpectedTime = iterations * f.chunkTime
	logrus.Debugf("%s >> job %s start prefilling for %d steps", f.deviceName(), next.ID, f.curJobExpectedTime)
	return []*Job{f.curJob}
}

func (f *FCFSPrefillScheduler) removeFromQueue(job *Job) {
	for i, j := range f.runQueue {
		if j == job {
			f.runQueue = append(f.runQueue[:i], f.runQueue[i+1:]...)
			return
		}
	}
}
