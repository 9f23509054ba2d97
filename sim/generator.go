// Defines Generator, the job-arrival abstraction: a fractional-rate
// accumulator plus a dropout gate, with per-kind job construction delegated
// to a tryAddOne closure (the same Template-Method-via-closure shape used by
// the local schedulers).

package sim

import (
	"math/rand"

	"github.com/sirupsen/logrus"
)

// Generator is the arrival-process contract the Simulator drives once per
// tick.
type Generator interface {
	// GenerateJobs accumulates fractional arrival rate and attempts to add
	// the resulting whole number of jobs this tick, returning the count
	// actually accepted.
	GenerateJobs(now int64) int
	// IsFinished reports whether the generator has produced its full quota.
	IsFinished() bool
}

// baseGenerator implements the rate accumulator and dropout gate shared by
// every concrete generator; tryAddOne supplies the policy-specific job
// construction and dispatch.
type baseGenerator struct {
	name           string
	scheduler      *GlobalScheduler
	speed          float64
	totalLimit     int
	dropout        float64
	rng            *rand.Rand
	jobID          int64
	generatedCount int
	acc            float64
	tryAddOne      func(now int64) bool
}

func newBaseGenerator(name string, scheduler *GlobalScheduler, speed float64, total int, dropout float64, rng *rand.Rand) baseGenerator {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return baseGenerator{
		name:       name,
		scheduler:  scheduler,
		speed:      speed,
		totalLimit: total,
		dropout:    dropout,
		rng:        rng,
		jobID:      1,
	}
}

// GenerateJobs accumulates speed into acc, generates floor(acc) whole jobs
// (consuming the integer part of the accumulator), skipping any that the
// dropout roll discards, and stops early once the total quota is reached.
func (b *baseGenerator) GenerateJobs(now int64) int {
	tmpCnt := 0

	b.acc += b.speed
	n := int(b.acc)
	b.acc -= float64(n)

	for i := 0; i < n; i++ {
		if b.IsFinished() {
			break
		}
		if b.rng.Float64() < b.dropout {
			continue
		}
		if b.tryAddOne(now) {
			b.generatedCount++
			tmpCnt++
			b.jobID++
		}
	}

	if tmpCnt > 0 {
		logrus.Debugf("%s >> generated %d jobs this step", b.name, tmpCnt)
	}
	return tmpCnt
}

// IsFinished reports whether the generated count has reached the quota.
func (b *baseGenerator) IsFinished() bool { return b.generatedCount >= b.totalLimit }
