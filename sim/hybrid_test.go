package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHybrid_RoutesByJobState(t *testing.T) {
	memory := NewMemory(1000, 1.0)
	h := NewHybridScheduler(memory, 10, 1, 2, 2)

	prefillJob := NewJob("p", 0, 5, 1)
	decodeJob := NewJob("d", 0, 5, 1)
	decodeJob.State = StateDecode

	require.True(t, h.AddJob(prefillJob))
	require.True(t, h.AddJob(decodeJob))

	assert.Equal(t, []*Job{prefillJob}, h.prefill.runQueue)
	assert.Contains(t, h.decode.runQueue, decodeJob)
}

func TestHybrid_StepUnionsBothSubSchedulers(t *testing.T) {
	memory := NewMemory(1000, 1.0)
	h := NewHybridScheduler(memory, 10, 5, 2, 0)

	prefillJob := NewJob("p", 0, 5, 1)
	decodeJob := NewJob("d", 0, 5, 1)
	decodeJob.State = StateDecode
	h.AddJob(prefillJob)
	h.AddJob(decodeJob)

	ran := h.Step(0)

	assert.Contains(t, ran, prefillJob)
	assert.Contains(t, ran, decodeJob)
	assert.Equal(t, 2, h.NumJobs())
}

func TestHybrid_RemoveJobDelegatesToHoldingSubScheduler(t *testing.T) {
	memory := NewMemory(1000, 1.0)
	h := NewHybridScheduler(memory, 10, 5, 2, 0)

	prefillJob := NewJob("p", 0, 5, 1)
	h.AddJob(prefillJob)
	require.Equal(t, 1, h.NumJobs())

	h.RemoveJob(prefillJob)
	assert.Equal(t, 0, h.NumJobs())
}
