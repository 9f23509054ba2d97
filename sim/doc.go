// Package sim provides the core coordination and scheduling substrate for the
// disaggregated inference fleet simulator.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - job.go: Job lifecycle (INITIAL -> PREFILL -> DECODE -> FINISHED)
//   - memory.go: per-device token-capacity accounting
//   - scheduler.go: the LocalScheduler interface and shared step template
//   - device.go: binds a Memory + LocalScheduler behind a role tag
//   - globalscheduler.go: dispatch and proactive load balancing
//   - allocator.go: idle-driven offline / saturation-driven online control loop
//   - simulator.go: the discrete-tick driver
//
// # Architecture
//
// Local scheduling policies (fcfs.go, roundrobin.go, srpt.go, fcfsprefill.go,
// rrprefill.go, hybrid.go) all implement LocalScheduler. FCFS, RR, and SRPT
// share a default per-tick execution template (runDefaultStep in scheduler.go);
// FCFS-Prefill and RR-Prefill model chunked prefill as a fixed-duration,
// memory-resident workload and override the template entirely; Hybrid
// composes one prefill-style scheduler and one decode-style scheduler over a
// shared Device/Memory pair.
//
// generator.go defines the arrival-process contract shared by the random and
// CSV-replay generators. report.go aggregates finished-job statistics. config.go
// and cmd/ wire a YAML-configured run together behind a Cobra CLI.
package sim
