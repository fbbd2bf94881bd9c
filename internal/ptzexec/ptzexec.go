// Package ptzexec implements the PTZ executor: absolute, relative, and
// continuous movement under a correction transform, producing clamped
// PTZ state and bounded servo angles.
package ptzexec

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/breeze-rmm/agent/internal/correction"
	"github.com/breeze-rmm/agent/internal/logging"
	"github.com/breeze-rmm/agent/internal/motor"
	"github.com/breeze-rmm/agent/internal/taskstate"
)

var log = logging.L("ptzexec")

// Step interval for continuous-move integration.
const continuousStepInterval = 50 * time.Millisecond

// Default continuous-move timeout when the task omits one.
const defaultContinuousTimeout = 500 * time.Millisecond

// Semantic axis ranges.
const (
	panMin  = -180.0
	panMax  = 180.0
	tiltMin = -90.0
	tiltMax = 90.0
	zoomMin = 0.0
	zoomMax = 1.0
)

// PTZ is the current pan/tilt/zoom state.
type PTZ struct {
	Pan  float64
	Tilt float64
	Zoom float64
}

// clamp restricts the PTZ fields to their semantic ranges; applied after
// every executor step.
func (p PTZ) clamp() PTZ {
	return PTZ{
		Pan:  clampFloat(p.Pan, panMin, panMax),
		Tilt: clampFloat(p.Tilt, tiltMin, tiltMax),
		Zoom: clampFloat(p.Zoom, zoomMin, zoomMax),
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Executor applies PTZ commands to a motor backend under a fixed
// correction transform, tracking the current (committed) PTZ state.
type Executor struct {
	correction correction.Correction
	backend    motor.Backend
	virtual    bool

	mu  sync.Mutex
	ptz PTZ
}

// New creates an Executor. If virtual is true, the motor backend is never
// invoked — the move is logged and the motor call skipped — even if
// backend is non-nil.
func New(c correction.Correction, backend motor.Backend, virtual bool) *Executor {
	return &Executor{correction: c, backend: backend, virtual: virtual}
}

// Current returns the current committed PTZ state.
func (e *Executor) Current() PTZ {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ptz
}

// servoAngle converts a signed axis value to the servo-native 0-180
// range: clamp(round(value + 90), 0, 180).
func servoAngle(value float64) int {
	return motor.Clamp(int(math.Round(value + 90)))
}

func (e *Executor) driveMotor(pan, tilt float64) error {
	if e.virtual || e.backend == nil {
		log.Info("virtual ptz move (motor skipped)", "pan", pan, "tilt", tilt)
		return nil
	}
	panAngle := servoAngle(pan)
	tiltAngle := servoAngle(tilt)
	return e.backend.MoveBoth(panAngle, tiltAngle)
}

// AbsoluteMove targets pan=x*180, tilt=y*90, zoom=z, corrected, clamped,
// committed, and driven once.
func (e *Executor) AbsoluteMove(x, y, z float64) error {
	target := correction.Axes{Pan: x * 180, Tilt: y * 90}
	corrected := e.correction.Apply(target)

	e.mu.Lock()
	e.ptz = PTZ{Pan: corrected.Pan, Tilt: corrected.Tilt, Zoom: z}.clamp()
	current := e.ptz
	e.mu.Unlock()

	return e.driveMotor(current.Pan, current.Tilt)
}

// RelativeMove corrects the deltas, adds them to the current PTZ, clamps,
// commits, and drives the motor.
func (e *Executor) RelativeMove(panDelta, tiltDelta, zoomDelta float64) error {
	corrected := e.correction.Apply(correction.Axes{Pan: panDelta, Tilt: tiltDelta})

	e.mu.Lock()
	next := PTZ{
		Pan:  e.ptz.Pan + corrected.Pan,
		Tilt: e.ptz.Tilt + corrected.Tilt,
		Zoom: e.ptz.Zoom + zoomDelta,
	}.clamp()
	e.ptz = next
	e.mu.Unlock()

	return e.driveMotor(next.Pan, next.Tilt)
}

// ContinuousMove loops at a fixed step interval for up to timeout
// (defaultContinuousTimeout if <= 0), integrating the corrected velocity
// each step, clamping/committing/driving after each step, and terminating
// early (clearing the flag) if interrupt is observed.
func (e *Executor) ContinuousMove(ctx context.Context, panVel, tiltVel, zoomVel float64, timeout time.Duration, interrupt *taskstate.InterruptFlag) error {
	if timeout <= 0 {
		timeout = defaultContinuousTimeout
	}

	corrected := e.correction.Apply(correction.Axes{Pan: panVel, Tilt: tiltVel})

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(continuousStepInterval)
	defer ticker.Stop()

	for {
		if interrupt != nil && interrupt.ConsumeIfSet() {
			log.Info("continuous move interrupted")
			return nil
		}
		if time.Now().After(deadline) {
			return nil
		}

		e.mu.Lock()
		next := PTZ{
			Pan:  e.ptz.Pan + corrected.Pan*0.5,
			Tilt: e.ptz.Tilt + corrected.Tilt*0.5,
			Zoom: e.ptz.Zoom + zoomVel*0.05,
		}.clamp()
		e.ptz = next
		e.mu.Unlock()

		if err := e.driveMotor(next.Pan, next.Tilt); err != nil {
			log.Error("continuous move motor step failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
