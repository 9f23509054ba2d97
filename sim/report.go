// Defines Report, the end-of-run statistics aggregation computed from the
// GlobalScheduler's finished-job set.

package sim

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stat bundles the average, 95th and 99th percentile, and max of one raw
// sample array.
type Stat struct {
	Average float64
	P95     float64
	P99     float64
	Max     float64
}

// Report is the end-of-run statistics bundle: overall throughput plus
// per-metric Stat summaries of waiting time, turnaround time, service time,
// normalized turnaround, and time-to-first-token, one sample per finished
// job.
type Report struct {
	TotalTime    int64
	FinishedJobs int
	Throughput   float64

	Waiting              []float64
	Turnaround           []float64
	Service              []float64
	NormalizedTurnaround []float64
	TTFT                 []float64

	WaitingStat              Stat
	TurnaroundStat           Stat
	ServiceStat              Stat
	NormalizedTurnaroundStat Stat
	TTFTStat                 Stat
}

// BuildReport computes a Report from the jobs the GlobalScheduler has
// recorded as finished, as of the given total elapsed time.
//
// Waiting time    = decode_start − arrival
// Turnaround time = decode_finish − arrival
// Service time    = decode_finish − decode_start
// Normalized turnaround = turnaround / (final_size − init_size)
// TTFT            = decode_start − arrival (time to first decoded token)
func BuildReport(jobs []*Job, totalTime int64) Report {
	r := Report{TotalTime: totalTime, FinishedJobs: len(jobs)}
	if len(jobs) == 0 {
		return r
	}

	r.Waiting = make([]float64, len(jobs))
	r.Turnaround = make([]float64, len(jobs))
	r.Service = make([]float64, len(jobs))
	r.NormalizedTurnaround = make([]float64, len(jobs))
	r.TTFT = make([]float64, len(jobs))

	for i, j := range jobs {
		waiting := float64(j.DecodeStart - j.ArrivalTime)
		turnaround := float64(j.DecodeFinish - j.ArrivalTime)
		service := float64(j.DecodeFinish - j.DecodeStart)
		denom := float64(j.FinalSize - j.InitSize)
		var normalized float64
		if denom > 0 {
			normalized = turnaround / denom
		}

		r.Waiting[i] = waiting
		r.Turnaround[i] = turnaround
		r.Service[i] = service
		r.NormalizedTurnaround[i] = normalized
		r.TTFT[i] = waiting
	}

	if totalTime > 0 {
		r.Throughput = float64(len(jobs)) / float64(totalTime)
	}

	r.WaitingStat = summarize(r.Waiting)
	r.TurnaroundStat = summarize(r.Turnaround)
	r.ServiceStat = summarize(r.Service)
	r.NormalizedTurnaroundStat = summarize(r.NormalizedTurnaround)
	r.TTFTStat = summarize(r.TTFT)

	return r
}

// summarize computes the mean (via gonum/stat), max, and the design's
// floor(p*N)-indexed percentiles on a sorted copy of samples.
func summarize(samples []float64) Stat {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	return Stat{
		Average: stat.Mean(samples, nil),
		P95:     percentileAt(sorted, 0.95),
		P99:     percentileAt(sorted, 0.99),
		Max:     sorted[len(sorted)-1],
	}
}

// percentileAt indexes the pre-sorted sample at floor(p*N), clamped to the
// last valid index.
func percentileAt(sorted []float64, p float64) float64 {
	idx := int(math.Floor(p * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func (r Report) String() string {
	return fmt.Sprintf(`
-------------------- Simulation Results --------------------
Total Time Elapsed: %d
Total Jobs Finished: %d
Throughput: %.10f
-------------------- Job Statistics --------------------
Average Waiting Time: %.2f (p95 %.2f, p99 %.2f, max %.2f)
Average Turnaround Time: %.2f (p95 %.2f, p99 %.2f, max %.2f)
Average Service Time: %.2f (p95 %.2f, p99 %.2f, max %.2f)
Average Normalized Turnaround: %.4f (p95 %.4f, p99 %.4f, max %.4f)
Average TTFT: %.2f (p95 %.2f, p99 %.2f, max %.2f)
-------------------- End of Report --------------------
`,
		r.TotalTime, r.FinishedJobs, r.Throughput,
		r.WaitingStat.Average, r.WaitingStat.P95, r.WaitingStat.P99, r.WaitingStat.Max,
		r.TurnaroundStat.Average, r.TurnaroundStat.P95, r.TurnaroundStat.P99, r.TurnaroundStat.Max,
		r.ServiceStat.Average, r.ServiceStat.P95, r.ServiceStat.P99, r.ServiceStat.Max,
		r.NormalizedTurnaroundStat.Average, r.NormalizedTurnaroundStat.P95, r.NormalizedTurnaroundStat.P99, r.NormalizedTurnaroundStat.Max,
		r.TTFTStat.Average, r.TTFTStat.P95, r.TTFTStat.P99, r.TTFTStat.Max,
	)
}
