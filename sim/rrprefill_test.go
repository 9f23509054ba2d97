package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two single-chunk jobs (init_size == chunk_size, so expected_time ==
// chunk_time) never hit the rotation branch: each runs to completion before
// the scheduler looks at its neighbor, same off-by-one completion tick as
// FCFS-Prefill (the check runs at the start of the tick after the last
// increment).
func TestRRPrefill_SingleChunkJobsCompleteSequentially(t *testing.T) {
	memory := NewMemory(1000, 1.0)
	r := NewRRPrefillScheduler(memory, 5, 3)
	a := NewJob("a", 0, 5, 1)
	b := NewJob("b", 0, 5, 1)
	r.AddJob(a)
	r.AddJob(b)

	for now := int64(0); now <= 2; now++ {
		ran := r.Step(now)
		require.Equal(t, []*Job{a}, ran, "tick %d", now)
	}
	ran := r.Step(3)
	assert.Empty(t, ran)
	assert.Equal(t, StateDecode, a.State)
	assert.Equal(t, int64(3), a.PrefillFinish)

	for now := int64(4); now <= 6; now++ {
		ran := r.Step(now)
		require.Equal(t, []*Job{b}, ran, "tick %d", now)
	}
	ran = r.Step(7)
	assert.Empty(t, ran)
	assert.Equal(t, StateDecode, b.State)
	assert.Equal(t, int64(7), b.PrefillFinish)
	assert.Equal(t, int64(0), memory.Occupied())
}

// Rotation swaps the head out on an unfinished iteration boundary. A job
// whose total duration spans more than one chunk has its running-time
// counters reset whenever it is reselected as current (matching the source
// model's literal reselection logic, which resets both counters rather than
// just the iteration one) — so unlike the single-chunk case, a multi-chunk
// job does not simply resume where it left off.
func TestRRPrefill_RotationResetsProgressOnReselection(t *testing.T) {
	memory := NewMemory(1000, 1.0)
	r := NewRRPrefillScheduler(memory, 2, 2) // chunk_size=2, chunk_time=2
	a := NewJob("a", 0, 4, 1)                // iterations=ceil(4/2)=2, expected=4
	r.AddJob(a)

	r.Step(0) // total=1, iter=1
	r.Step(1) // total=2, iter=2

	// tick 2: total(2) < expected(4), iter(2) >= chunk_time(2): rotates.
	// Only one job in queue, so it's immediately reselected, which resets
	// both counters to 0 before this tick's own advance.
	ran := r.Step(2)
	require.Equal(t, []*Job{a}, ran)
	progress := r.runQueue[0]
	assert.Equal(t, int64(1), progress.totalRunningTime, "reset to 0 on reselection, then incremented once this tick")
	assert.Equal(t, int64(1), progress.iterRunningTime)
}

func TestRRPrefill_MemoryNearFullOnlyRunsAlreadyAllocatedJobs(t *testing.T) {
	memory := NewMemory(10, 0.5) // safe_capacity = 5
	require.True(t, memory.Request(6)) // occupied(6) > safe(5)

	r := NewRRPrefillScheduler(memory, 5, 3)
	unallocated := NewJob("fresh", 0, 3, 1)
	allocated := NewJob("running", 0, 3, 1)
	r.runQueue = []*prefillProgress{
		{job: unallocated, expectedTime: 3},
		{job: allocated, expectedTime: 3, memoryAllocated: true, totalRunningTime: 1, iterRunningTime: 1},
	}

	ran := r.Step(5)

	require.Equal(t, []*Job{allocated}, ran, "the unallocated head is skipped while memory is near full")
}

func TestRRPrefill_NeverMovable(t *testing.T) {
	memory := NewMemory(100, 1.0)
	r := NewRRPrefillScheduler(memory, 10, 1)
	job := NewJob("job-1", 0, 10, 1)
	r.AddJob(job)

	assert.Nil(t, r.PickMovableJob([]JobState{StateInitial, StatePrefill}))
	assert.False(t, r.PreemptJob(job))
}
