// Package core contains the shared data types exchanged between the agent
// runtime, the orchestrator and the supporting modules: action results,
// decision and override records, goals, bus events, workflow runs and the
// audit sink contract.
package core
