//go:build cgo

package analyticspipeline

import (
	"context"
	"time"

	"github.com/breeze-rmm/agent/internal/cropper"
	"github.com/breeze-rmm/agent/internal/detection"
	"github.com/breeze-rmm/agent/internal/frameipc"
	"github.com/breeze-rmm/agent/internal/health"
	"github.com/breeze-rmm/agent/internal/tracker"
)

// ConsumerParams configures the outbound half of the pipeline.
type ConsumerParams struct {
	FrameIPCSlot  string
	AttachRetry   time.Duration
	PollInterval  time.Duration
	IoUThreshold  float64
	ObjectTimeout time.Duration
}

// Consumer attaches to the frame IPC slot, runs the tracker, and crops
// every object on its first appearance.
type Consumer struct {
	params  ConsumerParams
	sub     *frameipc.Subscriber
	tracker *tracker.Tracker
	crop    *cropper.Cropper
	trigger *ManualTrigger

	sequence uint64

	// Health, if set, is updated as frame IPC polls and crops succeed or
	// fail. Left nil, health tracking is skipped.
	Health *health.Monitor
}

// NewConsumer attaches to the frame IPC slot, retrying until it appears or
// ctx is cancelled. trigger may be nil to disable manual crop requests.
func NewConsumer(ctx context.Context, params ConsumerParams, crop *cropper.Cropper, trigger *ManualTrigger) (*Consumer, error) {
	sub, err := frameipc.Attach(ctx, params.FrameIPCSlot, params.AttachRetry)
	if err != nil {
		return nil, err
	}
	return &Consumer{
		params:  params,
		sub:     sub,
		tracker: tracker.New(params.IoUThreshold, params.ObjectTimeout),
		crop:    crop,
		trigger: trigger,
	}, nil
}

// Run polls the frame IPC slot at PollInterval until ctx is cancelled,
// running the tracker on each new published frame and cropping every
// object on first appearance. On a frame where a manual crop request is
// pending, every detection, new or not, goes to the manual-crop directory
// instead, and no ordinary crop is written for that frame.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.sub.Close()

	interval := c.params.PollInterval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.pollOnce(); err != nil {
				log.Warn("consumer poll failed", "error", err)
			}
		}
	}
}

func (c *Consumer) pollOnce() error {
	payload, ok, err := c.sub.Read()
	if err != nil {
		c.updateHealth("frame_ipc", health.Unhealthy, err.Error())
		return err
	}
	if !ok {
		return nil
	}
	c.updateHealth("frame_ipc", health.Healthy, "")

	frame := detection.Frame{Width: payload.Width, Height: payload.Height, Channels: payload.Channels, Data: payload.FrameBytes}
	matches := c.tracker.Update(payload.Detections, time.Now())

	manualRequested := c.trigger != nil && c.trigger.Take()

	for i, m := range matches {
		switch {
		case manualRequested:
			c.cropManual(frame, m, i)
		case m.IsNew:
			c.cropMatch(frame, m, i)
		}
	}

	return nil
}

func (c *Consumer) cropMatch(frame detection.Frame, m tracker.Match, index int) {
	cropped, ok, err := c.crop.Crop(frame, m.Detection, index)
	if err != nil {
		log.Warn("crop failed", "trackId", m.Object.TrackID, "error", err)
		c.updateHealth("cropper", health.Degraded, err.Error())
		return
	}
	if !ok {
		return
	}

	c.sequence++
	if _, err := c.crop.Save(cropped, m.Detection, time.Now(), c.sequence, m.Object.TrackID); err != nil {
		log.Warn("crop save failed", "trackId", m.Object.TrackID, "error", err)
		c.updateHealth("cropper", health.Degraded, err.Error())
		return
	}
	c.updateHealth("cropper", health.Healthy, "")
	c.tracker.MarkCropped(m.Object.TrackID)
}

// cropManual crops and saves every current detection to the dedicated
// manual-crop directory, regardless of novelty, in response to an
// out-of-band trigger.
func (c *Consumer) cropManual(frame detection.Frame, m tracker.Match, index int) {
	cropped, ok, err := c.crop.Crop(frame, m.Detection, index)
	if err != nil {
		log.Warn("manual crop failed", "trackId", m.Object.TrackID, "error", err)
		c.updateHealth("cropper", health.Degraded, err.Error())
		return
	}
	if !ok {
		return
	}

	if _, err := c.crop.SaveManual(cropped, m.Detection, time.Now()); err != nil {
		log.Warn("manual crop save failed", "trackId", m.Object.TrackID, "error", err)
		c.updateHealth("cropper", health.Degraded, err.Error())
		return
	}
	c.updateHealth("cropper", health.Healthy, "")
	if m.IsNew {
		c.tracker.MarkCropped(m.Object.TrackID)
	}
}

// Close releases the consumer's IPC subscription.
func (c *Consumer) Close() error {
	return c.sub.Close()
}

func (c *Consumer) updateHealth(component string, status health.Status, message string) {
	if c.Health == nil {
		return
	}
	c.Health.Update(component, status, message)
}
