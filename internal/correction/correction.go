// Package correction implements the PTZ correction transform: axis
// invert/swap applied identically to positions, deltas, and velocities.
package correction

// Correction holds the axis-swap/invert configuration. Set once at
// startup and read-only thereafter.
type Correction struct {
	SwapPanTilt bool
	InvertPan   bool
	InvertTilt  bool
}

// Axes is a generic pan/tilt pair with paired speed/magnitude fields,
// reused for positions, deltas, and velocities — they all correct the
// same way.
type Axes struct {
	Pan      float64
	Tilt     float64
	PanSpeed float64
	TiltSpeed float64
}

// Apply applies the correction transform in the documented fixed order:
// invert pan, invert tilt, then swap pan/tilt (including paired speeds).
// Each step is involutive on its own. Applying the same Correction twice
// returns the original value unless swap is combined with exactly one
// invert: with InvertPan and SwapPanTilt, (10, 20) becomes (20, -10) and
// then (-10, -20).
func (c Correction) Apply(a Axes) Axes {
	out := a
	if c.InvertPan {
		out.Pan = -out.Pan
	}
	if c.InvertTilt {
		out.Tilt = -out.Tilt
	}
	if c.SwapPanTilt {
		out.Pan, out.Tilt = out.Tilt, out.Pan
		out.PanSpeed, out.TiltSpeed = out.TiltSpeed, out.PanSpeed
	}
	return out
}
