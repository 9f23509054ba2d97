// Defines FCFSScheduler, a strict first-come-first-served local scheduler.

package sim

// FCFSScheduler runs jobs in arrival order. It is strict: selection stops at
// the first queue-head job that does not fit in available memory, rather
// than skipping past it to try a later job.
type FCFSScheduler struct {
	baseDecodeScheduler
}

// NewFCFSScheduler builds an FCFS scheduler admitting up to batch jobs per tick.
func NewFCFSScheduler(memory *Memory, batch int) *FCFSScheduler {
	f := &FCFSScheduler{
		baseDecodeScheduler: baseDecodeScheduler{name: "FCFS", memory: memory, batch: batch},
	}
	f.pickNext = f.pickNextTask
	return f
}

// AddJob always accepts, appending to the tail of the run queue.
func (f *FCFSScheduler) AddJob(job *Job) bool {
	f.runQueue = append(f.runQueue, job)
	return true
}

// Step runs the shared default step template.
func (f *FCFSScheduler) Step(now int64) []*Job {
	return runDefaultStep(&f.baseDecodeScheduler, now)
}

// pickNextTask scans the queue head, selecting up to batch jobs whose memory
// need fits the currently available tokens. Already-allocated jobs cost 1
// token (the per-tick advance); not-yet-allocated jobs cost init_size+1.
func (f *FCFSScheduler) pickNextTask(now int64) []*Job {
	var chosen []*Job
	available := f.memory.Available()
	for i := 0; i < f.batch && i < len(f.runQueue); i++ {
		job := f.runQueue[i]
		var cost int64
		if job.CurrentSize > 0 {
			cost = 1
		} else {
			cost = job.InitSize + 1
		}
		if cost > available {
			break
		}
		chosen = append(chosen, job)
		available -= cost
	}
	return chosen
}
