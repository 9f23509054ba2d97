package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
devices:
  - name: d0
    tag: MIXED
    memory_capacity: 100
    memory_threshold: 1.0
    scheduler:
      kind: fcfs
      batch: 2
generator:
  kind: random
  speed: 1.0
  total: 5
  init_mean: 10
  output_mean: 5
simulation:
  max_time: 50
`

func TestLoadRunConfig_RejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, minimalConfig+"\nbogus_top_level_field: true\n")
	_, err := LoadRunConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing run config")
}

func TestLoadRunConfig_ValidMinimalConfigLoads(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "d0", cfg.Devices[0].Name)
	assert.Equal(t, int64(50), cfg.Simulation.MaxTime)
}

func TestRunConfig_ValidateRejectsUnknownDeviceTag(t *testing.T) {
	cfg := &RunConfig{
		Devices:    []DeviceConfig{{Name: "d0", Tag: "GPU", MemoryCapacity: 10, MemoryThreshold: 1.0, Scheduler: SchedulerConfig{Kind: "fcfs"}}},
		Generator:  GeneratorConfig{Kind: "random"},
		Simulation: SimulationConfig{MaxTime: 1},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tag")
}

func TestRunConfig_ValidateRejectsUnknownSchedulerKind(t *testing.T) {
	cfg := &RunConfig{
		Devices:    []DeviceConfig{{Name: "d0", Tag: "MIXED", MemoryCapacity: 10, MemoryThreshold: 1.0, Scheduler: SchedulerConfig{Kind: "bogus"}}},
		Generator:  GeneratorConfig{Kind: "random"},
		Simulation: SimulationConfig{MaxTime: 1},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scheduler kind")
}

func TestRunConfig_ValidateRejectsOutOfRangeMemoryThreshold(t *testing.T) {
	cfg := &RunConfig{
		Devices:    []DeviceConfig{{Name: "d0", Tag: "MIXED", MemoryCapacity: 10, MemoryThreshold: 1.5, Scheduler: SchedulerConfig{Kind: "fcfs"}}},
		Generator:  GeneratorConfig{Kind: "random"},
		Simulation: SimulationConfig{MaxTime: 1},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory_threshold")
}

func TestRunConfig_ValidateRejectsNonPositiveMemoryCapacity(t *testing.T) {
	cfg := &RunConfig{
		Devices:    []DeviceConfig{{Name: "d0", Tag: "MIXED", MemoryCapacity: 0, MemoryThreshold: 1.0, Scheduler: SchedulerConfig{Kind: "fcfs"}}},
		Generator:  GeneratorConfig{Kind: "random"},
		Simulation: SimulationConfig{MaxTime: 1},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory_capacity")
}

func TestRunConfig_ValidateRejectsUnknownGeneratorKind(t *testing.T) {
	cfg := &RunConfig{
		Devices:    []DeviceConfig{{Name: "d0", Tag: "MIXED", MemoryCapacity: 10, MemoryThreshold: 1.0, Scheduler: SchedulerConfig{Kind: "fcfs"}}},
		Generator:  GeneratorConfig{Kind: "bogus"},
		Simulation: SimulationConfig{MaxTime: 1},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown generator kind")
}

func TestRunConfig_ValidateRejectsCSVFractionMismatch(t *testing.T) {
	cfg := &RunConfig{
		Devices: []DeviceConfig{{Name: "d0", Tag: "MIXED", MemoryCapacity: 10, MemoryThreshold: 1.0, Scheduler: SchedulerConfig{Kind: "fcfs"}}},
		Generator: GeneratorConfig{Kind: "csv", Sources: []CSVSourceConfig{
			{Nickname: "a", FilePath: "a.csv", Fraction: 0.5},
			{Nickname: "b", FilePath: "b.csv", Fraction: 0.2},
		}},
		Simulation: SimulationConfig{MaxTime: 1},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1")
}

func TestRunConfig_ValidateRejectsNonPositiveMaxTime(t *testing.T) {
	cfg := &RunConfig{
		Devices:    []DeviceConfig{{Name: "d0", Tag: "MIXED", MemoryCapacity: 10, MemoryThreshold: 1.0, Scheduler: SchedulerConfig{Kind: "fcfs"}}},
		Generator:  GeneratorConfig{Kind: "random"},
		Simulation: SimulationConfig{MaxTime: 0},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_time")
}

func TestNewScheduler_DispatchesAllSixKinds(t *testing.T) {
	memory := NewMemory(100, 1.0)

	cases := []struct {
		kind string
		want interface{}
	}{
		{"fcfs", &FCFSScheduler{}},
		{"rr", &RRScheduler{}},
		{"srpt", &SRPTScheduler{}},
		{"fcfs-prefill", &FCFSPrefillScheduler{}},
		{"rr-prefill", &RRPrefillScheduler{}},
		{"hybrid", &HybridScheduler{}},
	}
	for _, c := range cases {
		got := NewScheduler(SchedulerConfig{Kind: c.kind, Batch: 1, ChunkSize: 1, ChunkTime: 1}, memory)
		assert.IsType(t, c.want, got, "kind %s", c.kind)
	}
}

func TestNewScheduler_PanicsOnUnknownKind(t *testing.T) {
	memory := NewMemory(100, 1.0)
	assert.Panics(t, func() {
		NewScheduler(SchedulerConfig{Kind: "bogus"}, memory)
	})
}

func TestBuildSimulator_WiresDevicesGlobalAllocatorAndGenerator(t *testing.T) {
	moveFactor := 2.0
	busyThreshold := 0.75
	cfg := &RunConfig{
		Devices: []DeviceConfig{
			{Name: "d0", Tag: "MIXED", MemoryCapacity: 100, MemoryThreshold: 1.0, Scheduler: SchedulerConfig{Kind: "fcfs", Batch: 2}},
			{Name: "d1", Tag: "PREFILL", MemoryCapacity: 50, MemoryThreshold: 1.0, Scheduler: SchedulerConfig{Kind: "fcfs-prefill", ChunkSize: 10, ChunkTime: 1}},
		},
		GlobalScheduler: GlobalSchedulerConfig{PerformLoadBalance: true, MoveFactor: &moveFactor, BusyThreshold: &busyThreshold},
		Allocator:       AllocatorConfig{IdleThreshold: 5},
		Generator:       GeneratorConfig{Kind: "random", Speed: 1.0, Total: 3, InitMean: 5, OutputMean: 2, Seed: 1},
		Simulation:      SimulationConfig{MaxTime: 20},
	}

	sim, err := BuildSimulator(cfg)
	require.NoError(t, err)

	require.Len(t, sim.Devices, 2)
	assert.Equal(t, "d0", sim.Devices[0].Name)
	assert.Equal(t, TagPrefill, sim.Devices[1].Tag)
	assert.Equal(t, 2.0, sim.Global.Weights.MoveFactor)
	assert.Equal(t, 0.75, sim.Global.Weights.BusyThreshold)
	assert.True(t, sim.Global.PerformLoadBalance)
	assert.Equal(t, int64(20), sim.MaxTime)
	assert.NotNil(t, sim.Allocator)
	assert.NotNil(t, sim.Generator)
}

func TestBuildGenerator_RandomClampsBelowFloorToOne(t *testing.T) {
	devices := []*Device{newMixedDevice(t, "m", 1000)}
	global := NewGlobalScheduler(devices, false)

	cfg := GeneratorConfig{Kind: "random", Speed: 1.0, Total: 1, InitMean: -50, InitStdDev: 0.001, OutputMean: -50, OutputStdDev: 0.001, Seed: 1}
	gen, err := buildGenerator(cfg, global)
	require.NoError(t, err)

	rg, ok := gen.(*RandomGenerator)
	require.True(t, ok)
	require.Equal(t, 1, rg.GenerateJobs(0))
	assert.Equal(t, int64(1), global.pending[0].InitSize, "negative mean floored to 1")
	assert.Equal(t, int64(2), global.pending[0].FinalSize, "output size floored to 1 token")
}

func TestBuildGenerator_CSVPropagatesSourceErrors(t *testing.T) {
	devices := []*Device{newMixedDevice(t, "m", 1000)}
	global := NewGlobalScheduler(devices, false)

	cfg := GeneratorConfig{Kind: "csv", Sources: []CSVSourceConfig{
		{Nickname: "a", FilePath: "/nonexistent", Fraction: 1.0},
	}}
	_, err := buildGenerator(cfg, global)
	assert.Error(t, err)
}

func TestBuildGenerator_UnknownKindErrors(t *testing.T) {
	devices := []*Device{newMixedDevice(t, "m", 1000)}
	global := NewGlobalScheduler(devices, false)

	_, err := buildGenerator(GeneratorConfig{Kind: "bogus"}, global)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown generator kind")
}
