// Defines RunConfig, the strict-YAML-loadable description of one simulation
// run, and the factory functions that turn it into a wired Simulator.

package sim

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DeviceConfig describes one device in the fleet.
type DeviceConfig struct {
	Name            string          `yaml:"name"`
	Tag             string          `yaml:"tag"`
	MemoryCapacity  int64           `yaml:"memory_capacity"`
	MemoryThreshold float64         `yaml:"memory_threshold"`
	Scheduler       SchedulerConfig `yaml:"scheduler"`
}

// SchedulerConfig names a local-scheduler policy and its parameters.
// Recognized kinds: fcfs{batch}, rr{batch, time_slice},
// srpt{batch, priority_quantum?, starvation_threshold?},
// fcfs-prefill{chunk_size, chunk_time}, rr-prefill{chunk_size, chunk_time},
// hybrid{chunk_size, chunk_time, collocate_threshold, time_slice}: the decode
// sub-scheduler's batch size is collocate_threshold, not a separate batch
// field.
type SchedulerConfig struct {
	Kind                string  `yaml:"kind"`
	Batch               int     `yaml:"batch"`
	TimeSlice           int64   `yaml:"time_slice"`
	PriorityQuantum     *int64  `yaml:"priority_quantum"`
	StarvationThreshold *int64  `yaml:"starvation_threshold"`
	ChunkSize           int64   `yaml:"chunk_size"`
	ChunkTime           int64   `yaml:"chunk_time"`
	CollocateThreshold  float64 `yaml:"collocate_threshold"`
}

// GlobalSchedulerConfig configures the dispatch/load-balance layer.
type GlobalSchedulerConfig struct {
	PerformLoadBalance bool     `yaml:"perform_load_balance"`
	MoveFactor         *float64 `yaml:"move_factor"`
	BusyThreshold      *float64 `yaml:"busy_threshold"`
}

// AllocatorConfig configures the idle/warm-up/online-offline control loop.
type AllocatorConfig struct {
	IdleThreshold int64 `yaml:"idle_threshold"`
}

// CSVSourceConfig is one entry of a CSV generator's sources list.
type CSVSourceConfig struct {
	Nickname string  `yaml:"nickname"`
	FilePath string  `yaml:"file_path"`
	Fraction float64 `yaml:"fraction"`
}

// GeneratorConfig configures the arrival process. Kind is "random" or "csv".
type GeneratorConfig struct {
	Kind         string            `yaml:"kind"`
	Speed        float64           `yaml:"speed"`
	Total        int               `yaml:"total"`
	Dropout      float64           `yaml:"dropout"`
	Seed         int64             `yaml:"seed"`
	InitMean     float64           `yaml:"init_mean"`
	InitStdDev   float64           `yaml:"init_stddev"`
	OutputMean   float64           `yaml:"output_mean"`
	OutputStdDev float64           `yaml:"output_stddev"`
	Sources      []CSVSourceConfig `yaml:"sources"`
}

// SimulationConfig bounds how long the run may execute.
type SimulationConfig struct {
	MaxTime int64 `yaml:"max_time"`
}

// RunConfig is the top-level, strictly-parsed shape of one simulation run's
// YAML description.
type RunConfig struct {
	Devices         []DeviceConfig        `yaml:"devices"`
	GlobalScheduler GlobalSchedulerConfig `yaml:"global_scheduler"`
	Allocator       AllocatorConfig       `yaml:"allocator"`
	Generator       GeneratorConfig       `yaml:"generator"`
	Simulation      SimulationConfig      `yaml:"simulation"`
}

var (
	validDeviceTags     = map[string]bool{"PREFILL": true, "DECODE": true, "MIXED": true}
	validSchedulerKinds = map[string]bool{"fcfs": true, "rr": true, "srpt": true, "fcfs-prefill": true, "rr-prefill": true, "hybrid": true}
	validGeneratorKinds = map[string]bool{"random": true, "csv": true}
)

// LoadRunConfig reads and strictly parses a YAML run configuration: unknown
// keys are rejected outright, the same discipline the rest of this module's
// ecosystem applies to config loading.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run config: %w", err)
	}
	var cfg RunConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing run config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks device tags, scheduler kinds, and generator kind against
// the recognized registries, and applies range checks on thresholds.
func (c *RunConfig) Validate() error {
	if len(c.Devices) == 0 {
		return fmt.Errorf("run config must declare at least one device")
	}
	for _, d := range c.Devices {
		if !validDeviceTags[d.Tag] {
			return fmt.Errorf("device %q: unknown tag %q; valid options: %s", d.Name, d.Tag, joinSorted(validDeviceTags))
		}
		if !validSchedulerKinds[d.Scheduler.Kind] {
			return fmt.Errorf("device %q: unknown scheduler kind %q; valid options: %s", d.Name, d.Scheduler.Kind, joinSorted(validSchedulerKinds))
		}
		if d.MemoryThreshold <= 0 || d.MemoryThreshold > 1 {
			return fmt.Errorf("device %q: memory_threshold must be in (0, 1], got %v", d.Name, d.MemoryThreshold)
		}
		if d.MemoryCapacity <= 0 {
			return fmt.Errorf("device %q: memory_capacity must be positive, got %d", d.Name, d.MemoryCapacity)
		}
	}
	if !validGeneratorKinds[c.Generator.Kind] {
		return fmt.Errorf("unknown generator kind %q; valid options: %s", c.Generator.Kind, joinSorted(validGeneratorKinds))
	}
	if c.Generator.Kind == "csv" {
		sum := 0.0
		for _, s := range c.Generator.Sources {
			sum += s.Fraction
		}
		if len(c.Generator.Sources) > 0 && math.Abs(sum-1.0) > 1e-6 {
			return fmt.Errorf("csv generator source fractions must sum to 1 (got %v)", sum)
		}
	}
	if c.Simulation.MaxTime <= 0 {
		return fmt.Errorf("simulation.max_time must be positive, got %d", c.Simulation.MaxTime)
	}
	return nil
}

func joinSorted(m map[string]bool) string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// NewScheduler builds a LocalScheduler from a SchedulerConfig, panicking on
// an unrecognized kind (Validate should have already rejected it by the time
// this is called — the panic guards against a config object constructed by
// hand rather than through LoadRunConfig).
func NewScheduler(cfg SchedulerConfig, memory *Memory) LocalScheduler {
	switch cfg.Kind {
	case "fcfs":
		return NewFCFSScheduler(memory, cfg.Batch)
	case "rr":
		return NewRRScheduler(memory, cfg.Batch, cfg.TimeSlice)
	case "srpt":
		return NewSRPTScheduler(memory, cfg.Batch, cfg.PriorityQuantum, cfg.StarvationThreshold)
	case "fcfs-prefill":
		return NewFCFSPrefillScheduler(memory, cfg.ChunkSize, cfg.ChunkTime)
	case "rr-prefill":
		return NewRRPrefillScheduler(memory, cfg.ChunkSize, cfg.ChunkTime)
	case "hybrid":
		return NewHybridScheduler(memory, cfg.ChunkSize, cfg.ChunkTime, cfg.CollocateThreshold, cfg.TimeSlice)
	default:
		panic(fmt.Sprintf("sim: unknown scheduler kind %q", cfg.Kind))
	}
}

// BuildSimulator wires a complete RunConfig into a ready-to-run Simulator.
func BuildSimulator(cfg *RunConfig) (*Simulator, error) {
	devices := make([]*Device, 0, len(cfg.Devices))
	for _, dc := range cfg.Devices {
		memory := NewMemory(dc.MemoryCapacity, dc.MemoryThreshold)
		scheduler := NewScheduler(dc.Scheduler, memory)
		devices = append(devices, NewDevice(dc.Name, DeviceTag(dc.Tag), memory, scheduler))
	}

	global := NewGlobalScheduler(devices, cfg.GlobalScheduler.PerformLoadBalance)
	if cfg.GlobalScheduler.MoveFactor != nil {
		global.Weights.MoveFactor = *cfg.GlobalScheduler.MoveFactor
	}
	if cfg.GlobalScheduler.BusyThreshold != nil {
		global.Weights.BusyThreshold = *cfg.GlobalScheduler.BusyThreshold
	}

	allocator := NewAllocator(global, devices, cfg.Allocator.IdleThreshold)

	generator, err := buildGenerator(cfg.Generator, global)
	if err != nil {
		return nil, err
	}

	return NewSimulator(generator, global, devices, allocator, cfg.Simulation.MaxTime), nil
}

func buildGenerator(cfg GeneratorConfig, global *GlobalScheduler) (Generator, error) {
	switch cfg.Kind {
	case "random":
		rng := rand.New(rand.NewSource(cfg.Seed))
		initFn := func(r *rand.Rand) int64 {
			v := int64(math.Round(r.NormFloat64()*cfg.InitStdDev + cfg.InitMean))
			if v < 1 {
				v = 1
			}
			return v
		}
		outputFn := func(r *rand.Rand) int64 {
			v := int64(math.Round(r.NormFloat64()*cfg.OutputStdDev + cfg.OutputMean))
			if v < 1 {
				v = 1
			}
			return v
		}
		return NewRandomGenerator(global, cfg.Speed, cfg.Total, cfg.Dropout, rng, initFn, outputFn), nil
	case "csv":
		sources := make([]*CSVSource, 0, len(cfg.Sources))
		for _, sc := range cfg.Sources {
			sources = append(sources, &CSVSource{Nickname: sc.Nickname, FilePath: sc.FilePath, Fraction: sc.Fraction})
		}
		return NewCSVGenerator(global, cfg.Speed, cfg.Total, cfg.Dropout, sources)
	default:
		return nil, fmt.Errorf("sim: unknown generator kind %q", cfg.Kind)
	}
}
