package frameipc

import (
	"context"
	"fmt"
	"time"

	"github.com/breeze-rmm/agent/internal/detection"
)

// DefaultAttachRetryInterval is the default retry interval for
// Subscriber.Attach when the slot does not yet exist.
const DefaultAttachRetryInterval = 1 * time.Second

// Subscriber is a reader of a frame IPC slot. Multiple subscribers may
// attach concurrently; none take a cross-process lock.
type Subscriber struct {
	region          region
	lastSequenceSeen uint64
}

// Attach opens an existing slot, retrying at retryInterval (default
// DefaultAttachRetryInterval) until it appears or ctx is cancelled.
func Attach(ctx context.Context, name string, retryInterval time.Duration) (*Subscriber, error) {
	if name == "" {
		name = DefaultSlotName
	}
	if retryInterval <= 0 {
		retryInterval = DefaultAttachRetryInterval
	}

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		r, err := openRegion(name)
		if err == nil {
			log.Info("frame ipc subscriber attached", "slot", name)
			return &Subscriber{region: r}, nil
		}
		log.Debug("frame ipc slot not yet available, retrying", "slot", name, "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("frameipc: attach cancelled: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Read returns (nil, false, nil) if sequence == last_sequence_seen (no new
// frame published). Otherwise it validates the metadata, copies out the
// detections and frame bytes, updates last_sequence_seen, and returns the
// payload. Bounds violations (width*height*channels out of range for the
// fixed slot, or num_detections > MaxDetections as parsed) return
// (nil, false, nil) rather than an error — a torn or corrupt read is not
// distinguishable from "no new frame" at this layer.
func (s *Subscriber) Read() (*Payload, bool, error) {
	buf := s.region.Bytes()

	width, height, channels, timestamp, sequence, numDetections := decodeMetadata(buf)

	if sequence == s.lastSequenceSeen {
		return nil, false, nil
	}

	if err := validateFrameSize(width, height, channels); err != nil {
		log.Warn("frame ipc read: metadata out of bounds, discarding", "error", err)
		return nil, false, nil
	}
	if numDetections < 0 || numDetections > MaxDetections {
		log.Warn("frame ipc read: num_detections out of bounds, discarding", "numDetections", numDetections)
		return nil, false, nil
	}

	detections := make([]detection.Detection, numDetections)
	for i := 0; i < numDetections; i++ {
		off := detectionArrayOffset + i*DetectionSize
		detections[i] = decodeDetection(buf[off : off+DetectionSize])
	}

	frameBytes := width * height * channels
	frameData := make([]byte, frameBytes)
	copy(frameData, buf[frameOffset:frameOffset+frameBytes])

	s.lastSequenceSeen = sequence

	return &Payload{
		Width:      width,
		Height:     height,
		Channels:   channels,
		Timestamp:  timestamp,
		Sequence:   sequence,
		Detections: detections,
		FrameBytes: frameData,
	}, true, nil
}

// Close releases the subscriber's mapping. Subscribers never unlink the
// backing object: only the creator may, and subscribers are never
// creators.
func (s *Subscriber) Close() error {
	return s.region.Close()
}
