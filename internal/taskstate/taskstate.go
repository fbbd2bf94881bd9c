// Package taskstate implements the camera PTZ task state machine:
// IDLE ⇄ EXECUTING, driven by polling-response events.
package taskstate

import "sync"

// Status is the device's current execution status.
type Status string

const (
	Idle       Status = "IDLE"
	Executing  Status = "EXECUTING"
)

// Executor runs a single task to completion. It is invoked synchronously
// by Machine.TryRun; the state machine's invariant ("at most one executor
// invocation at a time per camera") follows from TryRun never returning
// before Executor does.
type Executor func(taskID string, interrupt *InterruptFlag) (success bool)

// InterruptFlag is a cross-task cancellation signal for the continuous-move
// executor. A shared boolean would race between the setter and the
// executor's step check; the mutex around it gives the happens-before edge
// that's missing otherwise.
type InterruptFlag struct {
	mu        sync.Mutex
	requested bool
}

// Set marks the flag requested.
func (f *InterruptFlag) Set() {
	f.mu.Lock()
	f.requested = true
	f.mu.Unlock()
}

// ConsumeIfSet returns true and clears the flag if it was set, false
// otherwise. Cleared either by the running executor observing it or by a
// task-state reset.
func (f *InterruptFlag) ConsumeIfSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requested {
		f.requested = false
		return true
	}
	return false
}

// Machine tracks device_status/executing_task_id/completed_task_id and
// enforces the invariant executing_task_id != "" iff device_status ==
// EXECUTING. Not safe for concurrent calls to TryRun/Interrupt from multiple
// goroutines beyond the single polling-loop owner; the mutex only
// protects snapshot reads (Snapshot) against a concurrently running
// executor's commits.
type Machine struct {
	mu                sync.Mutex
	deviceStatus      Status
	executingTaskID   string
	completedTaskID   string
	interrupt         InterruptFlag
}

// New creates a Machine in the IDLE state.
func New() *Machine {
	return &Machine{deviceStatus: Idle}
}

// State is a consistent snapshot of the machine's fields.
type State struct {
	DeviceStatus    Status
	ExecutingTaskID string
	CompletedTaskID string
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		DeviceStatus:    m.deviceStatus,
		ExecutingTaskID: m.executingTaskID,
		CompletedTaskID: m.completedTaskID,
	}
}

// TryRun starts executing taskID if it is not already the
// executing_task_id, running exec synchronously. Regardless of exec's
// return value, completed_task_id is set to taskID and the machine
// returns to IDLE — success/failure is reported separately via the
// caller's own bookkeeping.
//
// Returns false without running exec if taskID is already executing.
func (m *Machine) TryRun(taskID string, exec Executor) bool {
	m.mu.Lock()
	if m.deviceStatus == Executing && m.executingTaskID == taskID {
		m.mu.Unlock()
		return false
	}
	m.deviceStatus = Executing
	m.executingTaskID = taskID
	m.interrupt.ConsumeIfSet() // fresh run starts with a clear flag
	m.mu.Unlock()

	exec(taskID, &m.interrupt)

	m.mu.Lock()
	m.completedTaskID = taskID
	m.executingTaskID = ""
	m.deviceStatus = Idle
	m.mu.Unlock()
	return true
}

// Interrupt sets interrupt_requested. If a task is currently executing,
// the running executor observes it at its next step check (cooperative
// cancellation); the state machine itself does not forcibly clear
// executing_task_id here — that happens when TryRun's exec() returns,
// same as any other completion.
func (m *Machine) Interrupt() {
	m.interrupt.Set()
}

// ConsumeCompletedTaskID returns and clears completed_task_id — consumed
// (cleared) after a single successful polling request that included it.
// Returns "" if nothing is pending.
func (m *Machine) ConsumeCompletedTaskID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.completedTaskID
	m.completedTaskID = ""
	return id
}
