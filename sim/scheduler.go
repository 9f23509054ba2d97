// LocalScheduler is the interface every device-local scheduling policy
// implements, plus runDefaultStep, the shared per-tick execution template
// used by the decode-oriented policies (FCFS, RR, SRPT). Go has no class
// inheritance, so the "Template Method" pattern from the original design is
// expressed as a small embeddable base struct (baseDecodeScheduler) plus a
// policy-supplied pickNext closure, the same shape the rest of this package
// uses for its other pluggable policies (see device.go's role predicate and
// globalscheduler.go's dispatch ordering).

package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LocalScheduler picks and steps jobs on one device.
type LocalScheduler interface {
	// AddJob accepts or rejects a job. Implementations may hold jobs in an
	// internal wait queue and still return true.
	AddJob(job *Job) bool
	// RemoveJob removes a job from any internal structure; panics if absent.
	RemoveJob(job *Job)
	// Step advances one tick and returns the jobs that actually executed.
	Step(now int64) []*Job
	// PickMovableJob nominates a victim for cross-device migration, or nil.
	PickMovableJob(expectedStages []JobState) *Job
	// PreemptJob forcibly removes a job; idempotent (false on a job already gone).
	PreemptJob(job *Job) bool
	// NumJobs is the size of all internal queues.
	NumJobs() int
	// SetDevice wires the back-pointer to the owning Device, created once
	// after both the Device and its scheduler exist (see device.go).
	SetDevice(d *Device)
}

// baseDecodeScheduler is embedded by the decode-oriented schedulers (FCFS,
// RR, SRPT). It owns the run queue, memory, batch size, and device
// back-pointer, and implements RemoveJob, PickMovableJob, PreemptJob, NumJobs
// and SetDevice for its embedders (RR and SRPT override NumJobs to count their
// wait queues as well); each embedder's Step calls the shared runDefaultStep
// template. Each embedder supplies pickNext, the one policy-specific piece.
type baseDecodeScheduler struct {
	name     string
	memory   *Memory
	batch    int
	runQueue []*Job
	device   *Device
	pickNext func(now int64) []*Job
}

func (b *baseDecodeScheduler) SetDevice(d *Device) { b.device = d }

func (b *baseDecodeScheduler) deviceName() string {
	if b.device == nil {
		return "<unbound>"
	}
	return b.device.Name
}

func (b *baseDecodeScheduler) RemoveJob(job *Job) {
	for i, j := range b.runQueue {
		if j == job {
			b.runQueue = append(b.runQueue[:i], b.runQueue[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("%s: RemoveJob: job %s not in run queue", b.name, job.ID))
}

func (b *baseDecodeScheduler) NumJobs() int { return len(b.runQueue) }

// PickMovableJob prefers a not-yet-running job (minimizes memory-transfer
// cost) in an expected stage, among those beyond the first `batch` entries
// (the first batch entries are presumed already running). Falls back to the
// first running candidate if no not-yet-running one exists.
func (b *baseDecodeScheduler) PickMovableJob(expectedStages []JobState) *Job {
	inStages := func(s JobState) bool {
		for _, want := range expectedStages {
			if s == want {
				return true
			}
		}
		return false
	}
	var runningCandidate *Job
	for i, job := range b.runQueue {
		if !inStages(job.State) {
			continue
		}
		if i < b.batch {
			continue
		}
		if job.CurrentSize == 0 {
			return job
		}
		if runningCandidate == nil {
			runningCandidate = job
		}
	}
	return runningCandidate
}

// PreemptJob forcibly removes job from the run queue. A resident job has its
// memory released and is marked swapped out; a job holding no memory is
// simply dropped. Double-preempt (job not present) is a no-op returning false.
func (b *baseDecodeScheduler) PreemptJob(job *Job) bool {
	idx := -1
	for i, j := range b.runQueue {
		if j == job {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	if job.CurrentSize == 0 {
		b.runQueue = append(b.runQueue[:idx], b.runQueue[idx+1:]...)
		return true
	}
	b.memory.Release(job.CurrentSize)
	job.SwapSize = job.CurrentSize
	job.CurrentSize = 0
	b.runQueue = append(b.runQueue[:idx], b.runQueue[idx+1:]...)
	return true
}

func (b *baseDecodeScheduler) expectedMemory() int64 {
	var total int64
	for _, job := range b.runQueue {
		if job.CurrentSize == 0 {
			total += job.InitSize
		} else {
			total += job.CurrentSize
		}
	}
	return total
}

// admitSelected is the shared RR/SRPT admission-and-swap step: given a
// candidate ordering (the caller's pick order — run-queue position order for
// RR, priority/shortest-remaining order for SRPT), it walks the first n
// candidates, allocating memory for any that lack it and evicting the run
// queue's tail to make room, stopping (not skipping) at the first candidate
// that cannot be seated even after eviction.
func admitSelected(b *baseDecodeScheduler, candidates []*Job, n int64, now int64) []*Job {
	if n > int64(len(candidates)) {
		n = int64(len(candidates))
	}
	chosen := make([]*Job, 0, n)
	protected := make(map[*Job]bool, n)

	for i := int64(0); i < n; i++ {
		job := candidates[i]
		if job.CurrentSize == 0 {
			need := job.InitSize
			if job.SwapSize > need {
				need = job.SwapSize
			}
			if !b.memory.Request(need) {
				if !evictUntilFits(b, need, protected) || !b.memory.Request(need) {
					break
				}
			}
			if job.SwapSize > 0 {
				job.CurrentSize = job.SwapSize
				job.SwapSize = 0
			} else {
				job.CurrentSize = job.InitSize
				if !job.DecodeStartSet {
					job.DecodeStart = now
					job.DecodeStartSet = true
				}
			}
		}
		chosen = append(chosen, job)
		protected[job] = true
	}
	return chosen
}

// evictUntilFits repeatedly evicts the last resident, unprotected job in the
// run queue until `need` tokens are available, or returns false if no
// further eviction is possible.
func evictUntilFits(b *baseDecodeScheduler, need int64, protected map[*Job]bool) bool {
	for b.memory.Available() < need {
		idx := -1
		for i := len(b.runQueue) - 1; i >= 0; i-- {
			j := b.runQueue[i]
			if protected[j] || j.CurrentSize == 0 {
				continue
			}
			idx = i
			break
		}
		if idx < 0 {
			return false
		}
		victim := b.runQueue[idx]
		b.memory.Release(victim.CurrentSize)
		victim.SwapSize = victim.CurrentSize
		victim.CurrentSize = 0
	}
	return true
}

// runDefaultStep implements the default step algorithm from the design: drain
// finished jobs, bail on an empty queue, call pickNext for the policy's
// selection, then for each selected job in order attempt swap-in / first-run
// allocation / one-token advance, skipping (not removing) any job whose
// allocation fails this tick.
func runDefaultStep(b *baseDecodeScheduler, now int64) []*Job {
	var gs *GlobalScheduler
	if b.device != nil {
		gs = b.device.GlobalScheduler
	}
	picked := make([]*Job, 0)

	finished := make([]*Job, 0)
	for _, j := range b.runQueue {
		if j.IsFinished() {
			finished = append(finished, j)
		}
	}
	for _, j := range finished {
		b.memory.Release(j.CurrentSize)
		b.RemoveJob(j)
		j.State = StateFinished
		if gs != nil {
			gs.recordFinished(j)
		}
	}

	if len(b.runQueue) == 0 {
		logrus.Debugf("%s >> no jobs to run - empty run queue", b.deviceName())
		return picked
	}

	next := b.pickNext(now)
	if len(next) == 0 {
		logrus.Debugf("%s >> no jobs to run - scheduler decision", b.deviceName())
		return picked
	}

	for _, job := range next {
		// Jobs reaching a decode-oriented scheduler execute in decode
		// semantics regardless of whether a separate prefill stage ran first
		// (a job handed directly to FCFS/RR/SRPT without ever visiting a
		// chunked-prefill scheduler has no other point at which its state
		// becomes DECODE, and Job.Advance only grows CurrentSize in that
		// state). Idempotent for jobs already in DECODE.
		job.State = StateDecode

		if job.CurrentSize == 0 && job.SwapSize > 0 && job.DecodeStartSet {
			if b.memory.Request(job.SwapSize) {
				job.CurrentSize = job.SwapSize
				job.SwapSize = 0
			} else {
				logrus.Warnf("%s >> job %s waiting for %d memory (swap-in failed)", b.deviceName(), job.ID, job.SwapSize)
				continue
			}
		} else if job.CurrentSize == 0 && !job.DecodeStartSet {
			if b.memory.Request(job.InitSize) {
				job.CurrentSize = job.InitSize
				job.DecodeStart = now
				job.DecodeStartSet = true
			} else {
				logrus.Warnf("%s >> job %s waiting for %d memory (first run failed)", b.deviceName(), job.ID, job.InitSize)
				continue
			}
		}

		if !b.memory.Request(1) {
			logrus.Warnf("%s >> job %s waiting for 1 memory (advance failed)", b.deviceName(), job.ID)
			continue
		}
		job.Advance(now)
		picked = append(picked, job)

		if job.IsFinished() {
			job.MarkDecodeFinish(now)
		}
	}

	return picked
}
