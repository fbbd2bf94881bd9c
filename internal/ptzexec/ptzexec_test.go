package ptzexec

import (
	"testing"
	"time"

	"github.com/breeze-rmm/agent/internal/correction"
	"github.com/breeze-rmm/agent/internal/taskstate"
)

func TestAbsoluteMoveComputesAndClampsPTZ(t *testing.T) {
	e := New(correction.Correction{}, nil, true)
	if err := e.AbsoluteMove(0.5, 0.5, 0.8); err != nil {
		t.Fatalf("AbsoluteMove() error = %v", err)
	}
	got := e.Current()
	if got.Pan != 90 || got.Tilt != 45 || got.Zoom != 0.8 {
		t.Fatalf("Current() = %+v, want Pan=90 Tilt=45 Zoom=0.8", got)
	}
}

func TestAbsoluteMoveClampsOutOfRangeTargets(t *testing.T) {
	e := New(correction.Correction{}, nil, true)
	if err := e.AbsoluteMove(2.0, -2.0, 5.0); err != nil {
		t.Fatalf("AbsoluteMove() error = %v", err)
	}
	got := e.Current()
	if got.Pan != 180 || got.Tilt != -90 || got.Zoom != 1.0 {
		t.Fatalf("Current() = %+v, want clamped to Pan=180 Tilt=-90 Zoom=1.0", got)
	}
}

func TestRelativeMoveAccumulatesFromCurrentState(t *testing.T) {
	e := New(correction.Correction{}, nil, true)
	e.AbsoluteMove(0, 0, 0)
	if err := e.RelativeMove(10, -5, 0.1); err != nil {
		t.Fatalf("RelativeMove() error = %v", err)
	}
	got := e.Current()
	if got.Pan != 10 || got.Tilt != -5 || got.Zoom != 0.1 {
		t.Fatalf("Current() = %+v, want Pan=10 Tilt=-5 Zoom=0.1", got)
	}
}

func TestAbsoluteMoveAppliesCorrection(t *testing.T) {
	e := New(correction.Correction{InvertPan: true}, nil, true)
	e.AbsoluteMove(0.5, 0, 0)
	if got := e.Current(); got.Pan != -90 {
		t.Fatalf("Pan = %v, want -90 (inverted)", got.Pan)
	}
}

func TestContinuousMoveStopsOnInterrupt(t *testing.T) {
	e := New(correction.Correction{}, nil, true)
	var interrupt taskstate.InterruptFlag
	interrupt.Set()

	start := time.Now()
	err := e.ContinuousMove(t.Context(), 1, 1, 0, 500*time.Millisecond, &interrupt)
	if err != nil {
		t.Fatalf("ContinuousMove() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("ContinuousMove() took %v, expected to stop almost immediately on interrupt", elapsed)
	}
}

func TestContinuousMoveRespectsTimeout(t *testing.T) {
	e := New(correction.Correction{}, nil, true)
	start := time.Now()
	err := e.ContinuousMove(t.Context(), 0, 0, 0, 80*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("ContinuousMove() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Fatalf("ContinuousMove() returned too early after %v, want roughly the timeout", elapsed)
	}
}
