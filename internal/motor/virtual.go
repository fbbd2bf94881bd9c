package motor

import (
	"context"

	"github.com/breeze-rmm/agent/internal/logging"
)

var log = logging.L("motor")

// VirtualBackend logs every move instead of driving hardware, selected
// when virtual_ptz is configured.
type VirtualBackend struct{}

// NewVirtualBackend creates a no-op motor backend.
func NewVirtualBackend() *VirtualBackend { return &VirtualBackend{} }

func (b *VirtualBackend) Connect(ctx context.Context) error {
	log.Info("virtual motor backend connected")
	return nil
}

func (b *VirtualBackend) Disconnect() error {
	log.Info("virtual motor backend disconnected")
	return nil
}

// MoveBoth logs the requested angles without driving hardware.
func (b *VirtualBackend) MoveBoth(panAngle, tiltAngle int) error {
	log.Info("virtual ptz move", "panAngle", panAngle, "tiltAngle", tiltAngle)
	return nil
}
