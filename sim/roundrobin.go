// Defines RRScheduler, a round-robin local scheduler with memory-aware
// admission and swap-based eviction.

package sim

// RRScheduler round-robins the run queue every time_slice ticks, admitting
// new jobs directly when there's headroom and parking them in a side wait
// queue otherwise, and swapping out resident jobs to make room for
// higher-priority (earlier-queued) selections.
type RRScheduler struct {
	baseDecodeScheduler
	timeSlice int64
	waitQueue []*Job
}

// NewRRScheduler builds an RR scheduler with the given batch size and
// rotation period (in ticks).
func NewRRScheduler(memory *Memory, batch int, timeSlice int64) *RRScheduler {
	r := &RRScheduler{
		baseDecodeScheduler: baseDecodeScheduler{name: "RR", memory: memory, batch: batch},
		timeSlice:           timeSlice,
	}
	r.pickNext = r.pickNextTask
	return r
}

// AddJob admits directly into the run queue if there's projected headroom
// (safe_capacity - expected_memory()); otherwise it waits in the side queue.
// Either way the job is accepted (returns true).
func (r *RRScheduler) AddJob(job *Job) bool {
	if float64(job.InitSize) <= r.memory.SafeCapacity()-float64(r.expectedMemory()) {
		r.runQueue = append(r.runQueue, job)
	} else {
		r.waitQueue = append(r.waitQueue, job)
	}
	return true
}

// NumJobs counts both the run queue and the wait queue.
func (r *RRScheduler) NumJobs() int { return len(r.runQueue) + len(r.waitQueue) }

// Step runs the shared default step template.
func (r *RRScheduler) Step(now int64) []*Job {
	return runDefaultStep(&r.baseDecodeScheduler, now)
}

// pickNextTask promotes waiting jobs while there's room, selects the first
// batch run-queue jobs (allocating/swapping memory for any that lack it,
// evicting the last resident job as needed), and rotates the run queue once
// every time_slice ticks.
func (r *RRScheduler) pickNextTask(now int64) []*Job {
	for float64(r.expectedMemory()) < r.memory.SafeCapacity() && len(r.waitQueue) > 0 {
		job := r.waitQueue[0]
		r.waitQueue = r.waitQueue[1:]
		r.runQueue = append(r.runQueue, job)
	}

	chosen := admitSelected(&r.baseDecodeScheduler, r.runQueue, int64(r.batch), now)

	if r.timeSlice > 0 && now%r.timeSlice == 0 && len(r.runQueue) > 0 {
		head := r.runQueue[0]
		r.runQueue = append(r.runQueue[1:], head)
	}

	return chosen
}
