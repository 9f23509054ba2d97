package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunk_size=32, chunk_time=2, init_size=64: iterations=ceil(64/32)=2,
// expected=2*2=4 ticks of chunking. The completion check runs at the start of
// a tick, so it fires on the tick after the 4th increment, not on it.
func TestFCFSPrefill_ChunkedDurationAndHandback(t *testing.T) {
	memory := NewMemory(100, 1.0)
	sched := NewFCFSPrefillScheduler(memory, 32, 2)
	device := NewDevice("prefill-0", TagPrefill, memory, sched)
	NewGlobalScheduler([]*Device{device}, false)

	job := NewJob("job-1", 0, 64, 10)
	sched.AddJob(job)

	for now := int64(0); now <= 4; now++ {
		ran := device.Step(now)
		require.Len(t, ran, 1, "tick %d: job still prefilling", now)
	}
	assert.Equal(t, StatePrefill, job.State)
	assert.Equal(t, int64(0), job.PrefillStart)

	ran := device.Step(5)
	assert.Empty(t, ran, "handback ticks report no execution")
	assert.Equal(t, StateDecode, job.State)
	assert.Equal(t, int64(5), job.PrefillFinish)
	assert.Equal(t, int64(0), memory.Occupied(), "prefill tokens released on handback")
	assert.Equal(t, 0, sched.NumJobs())
}

func TestFCFSPrefill_SingleJobInFlightBlocksSecond(t *testing.T) {
	memory := NewMemory(1000, 1.0)
	sched := NewFCFSPrefillScheduler(memory, 10, 1)
	job1 := NewJob("job-1", 0, 10, 1)
	job2 := NewJob("job-2", 0, 10, 1)
	sched.AddJob(job1)
	sched.AddJob(job2)

	ran := sched.Step(0)
	require.Equal(t, []*Job{job1}, ran)
	assert.Equal(t, StatePrefill, job1.State)
	assert.Equal(t, StateInitial, job2.State, "second job has not been touched yet")
}

func TestFCFSPrefill_NeverMovable(t *testing.T) {
	memory := NewMemory(100, 1.0)
	sched := NewFCFSPrefillScheduler(memory, 10, 1)
	job := NewJob("job-1", 0, 10, 1)
	sched.AddJob(job)

	assert.Nil(t, sched.PickMovableJob([]JobState{StateInitial, StatePrefill}))
	assert.False(t, sched.PreemptJob(job))
}
