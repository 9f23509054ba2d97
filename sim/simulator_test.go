package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Single MIXED device, FCFS{batch=1}, one job (init=10, out=5) arriving at
// t=0 via a random generator with total=1. This mirrors the hand-traced
// FCFS lifecycle: decode_start=0, decode_finish=4, and the run should stop
// itself once the generator is spent and the device has drained.
func TestSimulator_RunSingleJobFCFSToCompletion(t *testing.T) {
	memory := NewMemory(100, 1.0)
	device := NewDevice("d0", TagMixed, memory, NewFCFSScheduler(memory, 1))
	global := NewGlobalScheduler([]*Device{device}, false)
	allocator := NewAllocator(global, []*Device{device}, -1)

	gen := NewRandomGenerator(global, 1.0, 1, 0, rand.New(rand.NewSource(1)), constJob(10), constJob(5))

	sim := NewSimulator(gen, global, []*Device{device}, allocator, 1000)
	sim.Run()

	require.Len(t, global.FinishedJobs(), 1)
	job := global.FinishedJobs()[0]
	assert.True(t, job.IsFinished())
	assert.Equal(t, int64(0), job.DecodeStart)
	assert.Equal(t, int64(4), job.DecodeFinish)
	assert.Less(t, sim.Now(), int64(1000), "should stop early once drained, not run to max_time")
	assert.Equal(t, int64(0), memory.Occupied())
}

func TestSimulator_RunStopsAtMaxTimeIfNeverDrains(t *testing.T) {
	memory := NewMemory(5, 1.0) // too small for the job to ever be admitted
	device := NewDevice("d0", TagMixed, memory, NewFCFSScheduler(memory, 1))
	global := NewGlobalScheduler([]*Device{device}, false)
	allocator := NewAllocator(global, []*Device{device}, -1)

	gen := NewRandomGenerator(global, 1.0, 1, 0, rand.New(rand.NewSource(1)), constJob(1000), constJob(5))

	sim := NewSimulator(gen, global, []*Device{device}, allocator, 10)
	sim.Run()

	assert.Equal(t, int64(10), sim.Now())
	assert.Empty(t, global.FinishedJobs())
}

func TestSimulator_BuildSimulatorEndToEndRun(t *testing.T) {
	cfg := &RunConfig{
		Devices: []DeviceConfig{
			{Name: "d0", Tag: "MIXED", MemoryCapacity: 1000, MemoryThreshold: 1.0, Scheduler: SchedulerConfig{Kind: "fcfs", Batch: 4}},
		},
		Generator:  GeneratorConfig{Kind: "random", Speed: 1.0, Total: 5, InitMean: 10, OutputMean: 3, Seed: 7},
		Simulation: SimulationConfig{MaxTime: 500},
	}

	sim, err := BuildSimulator(cfg)
	require.NoError(t, err)

	sim.Run()

	assert.Len(t, sim.Global.FinishedJobs(), 5)
	for _, job := range sim.Global.FinishedJobs() {
		assert.True(t, job.IsFinished())
	}
}
