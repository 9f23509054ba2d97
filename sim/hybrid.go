// Defines HybridScheduler, which collocates a chunked-prefill sub-scheduler
// and a round-robin decode sub-scheduler on one Device/Memory pair.

package sim

// HybridScheduler routes each job to one of two sub-schedulers by state:
// INITIAL/PREFILL jobs go to an FCFS-Prefill sub-scheduler, DECODE jobs go to
// an RR sub-scheduler. Both sub-schedulers share the same Memory, so their
// token budgets compete naturally; stepping runs prefill first (it hands
// finished jobs back to the GlobalScheduler as DECODE, which re-dispatches
// them — collocation here is about memory sharing, not same-tick handoff).
type HybridScheduler struct {
	name    string
	prefill *FCFSPrefillScheduler
	decode  *RRScheduler
	device  *Device
}

// NewHybridScheduler builds a Hybrid scheduler. collocateThreshold is the
// decode RR sub-scheduler's batch size (the number of decode-stage jobs
// collocated with the prefill sub-scheduler on the shared device), matching
// original_source/Schedulers/Hybrid_FR.py's
// `RR(env, device, memory, collocate_threshold, time_slice)` construction.
func NewHybridScheduler(memory *Memory, chunkSize, chunkTime int64, collocateThreshold float64, timeSlice int64) *HybridScheduler {
	return &HybridScheduler{
		name:    "Hybrid",
		prefill: NewFCFSPrefillScheduler(memory, chunkSize, chunkTime),
		decode:  NewRRScheduler(memory, int(collocateThreshold), timeSlice),
	}
}

func (h *HybridScheduler) SetDevice(d *Device) {
	h.device = d
	h.prefill.SetDevice(d)
	h.decode.SetDevice(d)
}

// AddJob routes on job.State: INITIAL/PREFILL to the prefill sub-scheduler,
// DECODE to the decode sub-scheduler.
func (h *HybridScheduler) AddJob(job *Job) bool {
	switch job.State {
	case StateInitial, StatePrefill:
		return h.prefill.AddJob(job)
	case StateDecode:
		return h.decode.AddJob(job)
	default:
		return false
	}
}

// RemoveJob delegates to whichever sub-scheduler currently holds the job.
func (h *HybridScheduler) RemoveJob(job *Job) {
	if h.holds(h.prefill.runQueue, job) {
		h.prefill.removeFromQueue(job)
		return
	}
	h.decode.RemoveJob(job)
}

// Step runs the prefill sub-scheduler then the decode sub-scheduler and
// unions the jobs that actually executed.
func (h *HybridScheduler) Step(now int64) []*Job {
	ran := h.prefill.Step(now)
	ran = append(ran, h.decode.Step(now)...)
	return ran
}

// PickMovableJob delegates to the decode sub-scheduler for DECODE-stage
// requests (prefill-stage jobs are never movable, per FCFSPrefillScheduler).
func (h *HybridScheduler) PickMovableJob(expectedStages []JobState) *Job {
	return h.decode.PickMovableJob(expectedStages)
}

// PreemptJob delegates to whichever sub-scheduler currently holds the job.
func (h *HybridScheduler) PreemptJob(job *Job) bool {
	if h.holds(h.prefill.runQueue, job) {
		return h.prefill.PreemptJob(job)
	}
	return h.decode.PreemptJob(job)
}

// NumJobs sums both sub-schedulers.
func (h *HybridScheduler) NumJobs() int { return h.prefill.NumJobs() + h.decode.NumJobs() }

func (h *HybridScheduler) holds(queue []*Job, job *Job) bool {
	for _, j := range queue {
		if j == job {
			return true
		}
	}
	return false
}
