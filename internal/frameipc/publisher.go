package frameipc

import (
	"fmt"
	"sync"
	"time"

	"github.com/breeze-rmm/agent/internal/detection"
	"github.com/breeze-rmm/agent/internal/logging"
)

var log = logging.L("frameipc")

// Publisher is the single writer of a frame IPC slot.
type Publisher struct {
	mu       sync.Mutex
	region   region
	sequence uint64
}

// Create creates or replaces a slot of fixed total size named name; a
// stale slot is removed first.
func Create(name string) (*Publisher, error) {
	if name == "" {
		name = DefaultSlotName
	}
	r, err := createRegion(name)
	if err != nil {
		return nil, fmt.Errorf("frameipc: create slot: %w", err)
	}
	return &Publisher{region: r}, nil
}

// Publish writes metadata (with an incremented sequence), the first
// min(len(detections), MaxDetections) detections, and the frame bytes.
// If width*height*channels exceeds MaxFrameBytes the frame is dropped and
// a warning logged; Publish returns nil in that case (a dropped frame is
// not a fatal IPC error).
func (p *Publisher) Publish(frame detection.Frame, detections []detection.Detection) error {
	if err := validateFrameSize(frame.Width, frame.Height, frame.Channels); err != nil {
		log.Warn("dropping oversized frame", "error", err)
		return nil
	}
	frameBytes := frame.Width * frame.Height * frame.Channels
	if frameBytes > len(frame.Data) {
		return fmt.Errorf("frameipc: frame.Data too short: have %d need %d", len(frame.Data), frameBytes)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.sequence++

	numDet := len(detections)
	if numDet > MaxDetections {
		numDet = MaxDetections
	}

	buf := p.region.Bytes()

	encodeMetadata(buf, frame.Width, frame.Height, frame.Channels,
		float64(time.Now().UnixNano())/1e9, p.sequence, numDet)

	for i := 0; i < numDet; i++ {
		off := detectionArrayOffset + i*DetectionSize
		encodeDetection(buf[off:off+DetectionSize], detections[i])
	}

	copy(buf[frameOffset:frameOffset+frameBytes], frame.Data[:frameBytes])

	return nil
}

// Close releases the publisher's mapping without unlinking the slot, even
// though Publisher is always the creator (it only reaches Create); the
// next Create call performs the stale-slot removal instead.
func (p *Publisher) Close() error {
	return p.region.Close()
}
