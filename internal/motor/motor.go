// Package motor defines the MotorBackend port plus a VirtualBackend
// (log-only, used when virtual_ptz is configured) and a SerialBackend
// speaking a simple ASCII line protocol to a servo controller. Any
// backend implementing Backend is a drop-in substitute for another.
package motor

import "context"

// Backend is the motor port: connect, disconnect, and drive both servos
// to an absolute angle in [0, 180] degrees in one call.
type Backend interface {
	Connect(ctx context.Context) error
	Disconnect() error
	MoveBoth(panAngle, tiltAngle int) error
}

// Clamp restricts v to [0, 180], the servo-native angle range.
func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 180 {
		return 180
	}
	return v
}
