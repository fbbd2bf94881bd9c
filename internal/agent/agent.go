// Package agent runs the camera agent lifecycle: registration, PTZ
// polling or heartbeat loop, re-registration on NOT_FOUND, and graceful
// deregistration.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/breeze-rmm/agent/internal/audit"
	"github.com/breeze-rmm/agent/internal/controlclient"
	"github.com/breeze-rmm/agent/internal/correction"
	"github.com/breeze-rmm/agent/internal/health"
	"github.com/breeze-rmm/agent/internal/logging"
	"github.com/breeze-rmm/agent/internal/motor"
	"github.com/breeze-rmm/agent/internal/ptzexec"
	"github.com/breeze-rmm/agent/internal/taskstate"
)

var log = logging.L("agent")

// PTZ poll / heartbeat cadences.
const (
	PollInterval      = 500 * time.Millisecond
	HeartbeatInterval = 5 * time.Second
)

// Descriptor is the static registration descriptor, built from
// configuration at startup.
type Descriptor struct {
	Name         string
	Mode         string
	MasterMFID   string
	Connection   controlclient.Connection
	Capabilities controlclient.Capabilities
	Metadata     map[string]string
}

// Agent orchestrates the full camera lifecycle: registration, PTZ
// polling or heartbeat loop, re-registration on NOT_FOUND, and graceful
// deregistration.
type Agent struct {
	client     *controlclient.Client
	descriptor Descriptor
	executor   *ptzexec.Executor
	taskSM     *taskstate.Machine
	auditLog   *audit.Logger

	mu       sync.RWMutex
	cameraID string

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// Health, if set, is updated as control-plane calls succeed or fail.
	// Left nil, health tracking is skipped.
	Health *health.Monitor
}

// New creates an Agent. corr/backend/virtual configure the C5 executor;
// backend may be nil if supports_ptz is false.
func New(client *controlclient.Client, descriptor Descriptor, corr correction.Correction, backend motor.Backend, virtual bool, auditLog *audit.Logger) *Agent {
	return &Agent{
		client:     client,
		descriptor: descriptor,
		executor:   ptzexec.New(corr, backend, virtual),
		taskSM:     taskstate.New(),
		auditLog:   auditLog,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// CameraID returns the currently assigned camera id (empty until Register
// succeeds).
func (a *Agent) CameraID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cameraID
}

func (a *Agent) setCameraID(id string) {
	a.mu.Lock()
	a.cameraID = id
	a.mu.Unlock()
}

// Register builds the descriptor, calls the control plane's Register
// RPC, and adopts the returned camera_id.
func (a *Agent) Register(ctx context.Context) error {
	req := controlclient.RegisterRequest{
		Name:         a.descriptor.Name,
		Mode:         a.descriptor.Mode,
		MasterMFID:   a.descriptor.MasterMFID,
		Connection:   a.descriptor.Connection,
		Capabilities: a.descriptor.Capabilities,
		Metadata:     a.descriptor.Metadata,
	}
	resp, err := a.client.RegisterCamera(ctx, req)
	if err != nil {
		return err
	}
	a.setCameraID(resp.CameraID)
	log.Info("camera registered", "cameraId", resp.CameraID, "name", a.descriptor.Name)
	a.auditLog.Log(audit.EventCameraRegistered, "", map[string]any{"cameraId": resp.CameraID})
	return nil
}

// Unregister calls the control plane's deregistration RPC.
func (a *Agent) Unregister(ctx context.Context) error {
	id := a.CameraID()
	if id == "" {
		return nil
	}
	_, err := a.client.UnregisterCamera(ctx, id)
	if err != nil {
		log.Error("unregister failed", "cameraId", id, "error", err)
		return err
	}
	log.Info("camera unregistered", "cameraId", id)
	a.auditLog.Log(audit.EventCameraUnregistered, "", map[string]any{"cameraId": id})
	return nil
}

// Run starts the appropriate loop (PTZ polling if supports_ptz, heartbeat
// otherwise) and blocks until Stop is called or ctx is cancelled.
func (a *Agent) Run(ctx context.Context) {
	defer close(a.done)

	a.auditLog.Log(audit.EventAgentStart, "", map[string]any{"name": a.descriptor.Name})

	if a.descriptor.Capabilities.SupportsPTZ {
		a.pollLoop(ctx)
	} else {
		a.heartbeatLoop(ctx)
	}

	a.auditLog.Log(audit.EventAgentStop, "", nil)
}

// Stop signals the running loop to exit at its next suspension point.
func (a *Agent) Stop() {
	a.stopOnce.Do(func() { close(a.stopChan) })
}

// Wait blocks until Run has returned.
func (a *Agent) Wait() {
	<-a.done
}

// heartbeatLoop drives the non-PTZ branch: a steady heartbeat cadence,
// re-registering once on NOT_FOUND.
func (a *Agent) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	a.sendHeartbeat(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopChan:
			return
		case <-ticker.C:
			a.sendHeartbeat(ctx)
		}
	}
}

func (a *Agent) sendHeartbeat(ctx context.Context) {
	id := a.CameraID()
	req := controlclient.HeartbeatRequest{
		CameraID:    id,
		TimestampMs: time.Now().UnixMilli(),
	}
	_, err := a.client.Heartbeat(ctx, req)
	if err == nil {
		a.updateHealth("control_plane", health.Healthy, "")
		return
	}
	if err == controlclient.ErrNotFound {
		a.reregister(ctx)
		return
	}
	log.Error("heartbeat failed", "error", err)
	a.updateHealth("control_plane", health.Degraded, err.Error())
}

// pollLoop drives the PTZ branch: a fast polling cadence, driving the
// task state machine and executor on each received command.
func (a *Agent) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopChan:
			return
		case <-ticker.C:
			a.pollOnce(ctx)
		}
	}
}

func (a *Agent) pollOnce(ctx context.Context) {
	id := a.CameraID()
	state := a.taskSM.Snapshot()
	current := a.executor.Current()

	req := controlclient.PollingRequest{
		CameraID:        id,
		DeviceStatus:    string(state.DeviceStatus),
		TimestampMs:     time.Now().UnixMilli(),
		CompletedTaskID: a.taskSM.ConsumeCompletedTaskID(),
		ExecutingTaskID: state.ExecutingTaskID,
		CurrentPTZ: &controlclient.PTZ{
			Pan:  current.Pan,
			Tilt: current.Tilt,
			Zoom: current.Zoom,
		},
	}

	resp, err := a.client.Polling(ctx, req)
	if err != nil {
		if err == controlclient.ErrNotFound {
			a.reregister(ctx)
		} else {
			log.Error("polling failed", "error", err)
			a.updateHealth("control_plane", health.Degraded, err.Error())
		}
		return
	}
	a.updateHealth("control_plane", health.Healthy, "")

	if resp.Interrupt {
		a.taskSM.Interrupt()
		log.Info("interrupt observed")
		a.auditLog.Log(audit.EventTaskInterrupted, state.ExecutingTaskID, nil)
	}

	cmd := resp.CurrentCommand
	if cmd == nil {
		cmd = resp.NextCommand
	}
	if cmd == nil {
		return
	}

	taskLog := logging.WithCommand(log, cmd.TaskID, cmd.Operation)
	taskLog.Info("task accepted")
	a.auditLog.Log(audit.EventTaskAccepted, cmd.TaskID, map[string]any{"operation": cmd.Operation})

	a.taskSM.TryRun(cmd.TaskID, func(taskID string, interrupt *taskstate.InterruptFlag) bool {
		success := a.executeCommand(ctx, cmd, interrupt)
		taskLog.Info("task completed", "success", success)
		a.auditLog.Log(audit.EventTaskCompleted, taskID, map[string]any{"success": success})
		return success
	})
}

func (a *Agent) executeCommand(ctx context.Context, cmd *controlclient.PTZCommand, interrupt *taskstate.InterruptFlag) bool {
	var err error
	switch cmd.Operation {
	case "ABSOLUTE_MOVE":
		if cmd.Absolute == nil {
			return false
		}
		err = a.executor.AbsoluteMove(cmd.Absolute.X, cmd.Absolute.Y, cmd.Absolute.Z)
	case "RELATIVE_MOVE":
		if cmd.Relative == nil {
			return false
		}
		err = a.executor.RelativeMove(cmd.Relative.PanDelta, cmd.Relative.TiltDelta, cmd.Relative.ZoomDelta)
	case "CONTINUOUS_MOVE":
		if cmd.Continuous == nil {
			return false
		}
		timeout := time.Duration(cmd.Continuous.TimeoutMs) * time.Millisecond
		err = a.executor.ContinuousMove(ctx, cmd.Continuous.PanVelocity, cmd.Continuous.TiltVelocity, cmd.Continuous.ZoomVelocity, timeout, interrupt)
	default:
		log.Warn("unknown ptz operation", "operation", cmd.Operation)
		return false
	}
	if err != nil {
		// Log and mark failure, but never crash — the state machine still
		// completes the task.
		log.Error("executor error", "taskId", cmd.TaskID, "error", err)
		return false
	}
	return true
}

// reregister re-registers once, adopting the new camera_id.
func (a *Agent) reregister(ctx context.Context) {
	log.Warn("camera not found by control service, re-registering", "previousCameraId", a.CameraID())
	if err := a.Register(ctx); err != nil {
		log.Error("re-registration failed", "error", err)
		return
	}
	log.Info("camera re-registered", "cameraId", a.CameraID())
	a.auditLog.Log(audit.EventCameraReregistered, "", map[string]any{"cameraId": a.CameraID()})
}

func (a *Agent) updateHealth(component string, status health.Status, message string) {
	if a.Health == nil {
		return
	}
	a.Health.Update(component, status, message)
}
