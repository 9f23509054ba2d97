// Defines SRPTScheduler, a shortest-remaining-processing-time local
// scheduler with optional anti-starvation promotion.

package sim

import "sort"

// SRPTScheduler shares RR's admission/swap mechanics (wait queue for
// over-budget jobs, eviction of the run queue's tail to seat a selection)
// but orders its pick by (priority, shortest remaining work) instead of
// run-queue position, and optionally promotes long-waiting jobs to priority
// status to bound worst-case latency.
type SRPTScheduler struct {
	baseDecodeScheduler
	waitQueue []*Job

	priorityQuantum     int64
	starvationThreshold int64
	starvationEnabled   bool
}

// NewSRPTScheduler builds an SRPT scheduler. Starvation control activates
// only when both priorityQuantum and starvationThreshold are non-nil
// (mirrors the design's `priority_quantum ≠ ⊥ ∧ starvation_threshold ≠ ⊥`
// precondition).
func NewSRPTScheduler(memory *Memory, batch int, priorityQuantum, starvationThreshold *int64) *SRPTScheduler {
	s := &SRPTScheduler{
		baseDecodeScheduler: baseDecodeScheduler{name: "SRPT", memory: memory, batch: batch},
	}
	if priorityQuantum != nil && starvationThreshold != nil {
		s.priorityQuantum = *priorityQuantum
		s.starvationThreshold = *starvationThreshold
		s.starvationEnabled = true
	}
	s.pickNext = s.pickNextTask
	return s
}

// AddJob is identical to RR's: admit directly if there's projected headroom,
// otherwise park in the wait queue. Always accepted.
func (s *SRPTScheduler) AddJob(job *Job) bool {
	if float64(job.InitSize) <= s.memory.SafeCapacity()-float64(s.expectedMemory()) {
		s.runQueue = append(s.runQueue, job)
	} else {
		s.waitQueue = append(s.waitQueue, job)
	}
	return true
}

// NumJobs counts both the run queue and the wait queue.
func (s *SRPTScheduler) NumJobs() int { return len(s.runQueue) + len(s.waitQueue) }

// Step runs the shared default step template.
func (s *SRPTScheduler) Step(now int64) []*Job {
	return runDefaultStep(&s.baseDecodeScheduler, now)
}

// pickNextTask promotes waiting jobs while there's room, clears any priority
// bit whose quantum has been exhausted (resolving the "is the priority flag
// sticky" open question: it is not — it is cleared lazily, here, at the
// start of the next pick before sorting), sorts by (¬is_priority,
// final_size−current_size), selects the first batch via the shared RR
// admission/eviction mechanics, then runs starvation bookkeeping.
func (s *SRPTScheduler) pickNextTask(now int64) []*Job {
	for float64(s.expectedMemory()) < s.memory.SafeCapacity() && len(s.waitQueue) > 0 {
		job := s.waitQueue[0]
		s.waitQueue = s.waitQueue[1:]
		s.runQueue = append(s.runQueue, job)
	}

	if s.starvationEnabled {
		for _, job := range s.runQueue {
			if job.IsPriority && job.Quantum <= 0 {
				job.IsPriority = false
			}
		}
	}

	sorted := make([]*Job, len(s.runQueue))
	copy(sorted, s.runQueue)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.IsPriority != b.IsPriority {
			return a.IsPriority
		}
		return (a.FinalSize - a.CurrentSize) < (b.FinalSize - b.CurrentSize)
	})

	n := int64(s.batch)
	if n > int64(len(sorted)) {
		n = int64(len(sorted))
	}
	chosen := admitSelected(&s.baseDecodeScheduler, sorted, n, now)

	if s.starvationEnabled {
		for _, job := range chosen {
			job.LastScheduled = now
			job.LastScheduledSet = true
			if job.IsPriority {
				job.Quantum--
			}
		}
		for i := n; i < int64(len(sorted)); i++ {
			sorted[i].StarvationCount++
		}
		for _, job := range s.runQueue {
			if job.StarvationCount >= s.starvationThreshold {
				job.IsPriority = true
				job.StarvationCount = 0
				job.Quantum = s.priorityQuantum
			}
		}
	}

	return chosen
}
