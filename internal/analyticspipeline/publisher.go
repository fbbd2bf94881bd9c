//go:build cgo

// Package analyticspipeline composes the frame source, detector, motion
// gate, tracker, cropper, and frame IPC into two halves of the analytics
// pipeline: an inbound Publisher (decode + detect + motion-gate +
// publish) and an outbound Consumer (attach + track + crop). Splitting
// them into separate processes keeps the frame IPC single-writer/
// multi-reader contract honest across a real process boundary.
package analyticspipeline

import (
	"context"

	"github.com/breeze-rmm/agent/internal/detection"
	"github.com/breeze-rmm/agent/internal/frameipc"
	"github.com/breeze-rmm/agent/internal/framesource"
	"github.com/breeze-rmm/agent/internal/health"
	"github.com/breeze-rmm/agent/internal/latestwins"
	"github.com/breeze-rmm/agent/internal/logging"
	"github.com/breeze-rmm/agent/internal/motion"
)

var log = logging.L("analyticspipeline")

// PublisherParams configures the inbound half of the pipeline.
type PublisherParams struct {
	WHEPEndpoint string
	Insecure     bool
	FrameIPCSlot string
	Detection    detection.Params
	// MotionGate, when true, skips inference on frames with no detected
	// motion region — a cheap gate run ahead of the detector.
	MotionGate bool
}

// Publisher pulls frames from a FrameSource, optionally gates them on
// motion, runs the Detector, and publishes frame+detections to the frame
// IPC slot (C1).
type Publisher struct {
	params   PublisherParams
	source   *framesource.Source
	detector detection.Detector
	motionD  *motion.Detector
	pub      *frameipc.Publisher

	// Health, if set, is updated as the frame source connects and as
	// frames are processed. Left nil, health tracking is skipped.
	Health *health.Monitor
}

// NewPublisher wires a Publisher. detector is a boundary collaborator;
// motionD may be nil to disable the motion gate.
func NewPublisher(params PublisherParams, detector detection.Detector, motionD *motion.Detector) (*Publisher, error) {
	pub, err := frameipc.Create(params.FrameIPCSlot)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		params:   params,
		source:   framesource.New(params.WHEPEndpoint, params.Insecure),
		detector: detector,
		motionD:  motionD,
		pub:      pub,
	}, nil
}

// Run connects to the frame source and processes frames until ctx is
// cancelled or the source closes its channel. Frames arrive faster than
// they can always be processed; a latestwins.Buffer sits between the
// receiver goroutine and the processing loop so a slow detector drops
// stale frames instead of backing up.
func (p *Publisher) Run(ctx context.Context) error {
	frames, err := p.source.Connect(ctx)
	if err != nil {
		p.updateHealth("frame_source", health.Unhealthy, err.Error())
		return err
	}
	p.updateHealth("frame_source", health.Healthy, "")
	defer p.source.Close()
	defer p.pub.Close()

	var buf latestwins.Buffer[detection.Frame]
	newFrame := make(chan struct{}, 1)
	sourceDone := make(chan struct{})

	go func() {
		defer close(sourceDone)
		for frame := range frames {
			buf.Write(frame)
			select {
			case newFrame <- struct{}{}:
			default:
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sourceDone:
			return nil
		case <-newFrame:
			frame, ok := buf.Take()
			if !ok {
				continue
			}
			if err := p.processFrame(frame); err != nil {
				log.Warn("frame processing failed", "error", err)
				p.updateHealth("detector", health.Degraded, err.Error())
			} else {
				p.updateHealth("detector", health.Healthy, "")
			}
		}
	}
}

func (p *Publisher) processFrame(frame detection.Frame) error {
	if p.params.MotionGate && p.motionD != nil {
		moved, _, err := p.motionD.Detect(frame)
		if err != nil {
			log.Warn("motion detection failed, proceeding without gate", "error", err)
		} else if !moved {
			return p.pub.Publish(frame, nil)
		}
	}

	dets, err := p.detector.Detect(frame, p.params.Detection)
	if err != nil {
		return err
	}

	return p.pub.Publish(frame, dets)
}

// Close tears down the publisher's source and IPC slot without waiting
// for Run's context to be cancelled.
func (p *Publisher) Close() error {
	p.source.Close()
	return p.pub.Close()
}

func (p *Publisher) updateHealth(component string, status health.Status, message string) {
	if p.Health == nil {
		return
	}
	p.Health.Update(component, status, message)
}
