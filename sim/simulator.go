// Defines Simulator, the discrete-tick driver that wires a Generator,
// GlobalScheduler, device pool, and Allocator into one run loop.

package sim

import "github.com/sirupsen/logrus"

// Simulator orchestrates one run: each tick it generates arrivals, runs one
// global-scheduler dispatch pass, steps every device in a fixed order, then
// lets the Allocator review the device pool. It stops once max_time ticks
// have elapsed, or earlier once the generator has produced its full quota
// and every device has drained its queues.
type Simulator struct {
	Generator Generator
	Global    *GlobalScheduler
	Devices   []*Device // fixed order: construction order, not dispatch order
	Allocator *Allocator
	MaxTime   int64

	now int64
}

// NewSimulator builds a Simulator over an already-wired device pool.
// Devices is the fixed per-tick stepping order; it is independent of the
// GlobalScheduler's dispatch-order (which sorts by workload).
func NewSimulator(generator Generator, global *GlobalScheduler, devices []*Device, allocator *Allocator, maxTime int64) *Simulator {
	return &Simulator{
		Generator: generator,
		Global:    global,
		Devices:   devices,
		Allocator: allocator,
		MaxTime:   maxTime,
	}
}

// Run executes the simulation to completion.
func (s *Simulator) Run() {
	for s.now < s.MaxTime {
		logrus.Debugf("---------- time: %d ----------", s.now)

		s.Generator.GenerateJobs(s.now)
		s.Global.Step()

		for _, d := range s.Devices {
			ran := d.Step(s.now)
			for _, job := range ran {
				logrus.Debugf("scheduler picked: job %s on %q", job.ID, d.Name)
			}
		}

		s.Allocator.Step()

		if s.Generator.IsFinished() && s.allDevicesIdle() {
			logrus.Infof("all jobs completed by time %d", s.now)
			break
		}

		s.now++
	}
	logrus.Infof("simulation ended at time %d", s.now)
}

// Now returns the current simulated tick.
func (s *Simulator) Now() int64 { return s.now }

func (s *Simulator) allDevicesIdle() bool {
	for _, d := range s.Devices {
		if d.Scheduler.NumJobs() > 0 {
			return false
		}
	}
	return true
}
