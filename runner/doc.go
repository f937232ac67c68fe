// Package runner drives audit runs and test dispatch.
//
// The main components are:
//   - Orchestrator: owns the phase and test case collections of the current run and is
//     their only writer; observers read copies through Phases, TestCases and Progress
//   - PhaseExecutor: performs one sub-step of a phase (SimulatedExecutor, ProbeExecutor)
//   - ProgressAggregator: folds phase/sub-step positions into one non-decreasing percentage
//   - ProgressIndicator: periodic console logging of a run in flight
//
// Phases run strictly in order and the first failure aborts the rest of the run. Test
// dispatch never fails: executor errors and panics are folded into the test case record.
package runner
