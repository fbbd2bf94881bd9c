// Package frameipc implements a fixed-layout shared-memory frame
// publish/subscribe protocol: a single named slot carrying the most
// recent video frame plus its detection list, with a strictly monotonic
// sequence number and no cross-process mutex.
package frameipc

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/breeze-rmm/agent/internal/detection"
)

// Exact byte layout constants.
const (
	// MetadataSize is the fixed header: width,height,channels,timestamp,
	// sequence,num_detections = 4+4+4+8+8+4.
	MetadataSize = 32
	// DetectionSize is one packed detection record:
	// x1,y1,x2,y2,class_id (u32 each) + confidence (f32) = 24 bytes.
	DetectionSize = 24
	// MaxDetections bounds the detection array.
	MaxDetections = 100
	// MaxFrameBytes bounds the trailing frame payload: 1920*1080*3.
	MaxFrameBytes = 1920 * 1080 * 3

	detectionArrayOffset = MetadataSize
	detectionArrayBytes  = DetectionSize * MaxDetections
	frameOffset          = detectionArrayOffset + detectionArrayBytes

	// SlotSize is the fixed total size of the shared-memory region.
	SlotSize = frameOffset + MaxFrameBytes

	// DefaultSlotName is the default shared-memory slot name.
	DefaultSlotName = "webrtc_motion_frame"
)

// Payload is the decoded contents of one slot read.
type Payload struct {
	Width       int
	Height      int
	Channels    int
	Timestamp   float64
	Sequence    uint64
	Detections  []detection.Detection
	FrameBytes  []byte
}

// encodeMetadata writes the fixed 32-byte header into buf[0:32].
func encodeMetadata(buf []byte, width, height, channels int, timestamp float64, sequence uint64, numDetections int) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(width))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(height))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(channels))
	binary.LittleEndian.PutUint64(buf[12:20], math.Float64bits(timestamp))
	binary.LittleEndian.PutUint64(buf[20:28], sequence)
	binary.LittleEndian.PutUint32(buf[28:32], uint32(numDetections))
}

// decodeMetadata parses the fixed 32-byte header from buf[0:32].
func decodeMetadata(buf []byte) (width, height, channels int, timestamp float64, sequence uint64, numDetections int) {
	width = int(binary.LittleEndian.Uint32(buf[0:4]))
	height = int(binary.LittleEndian.Uint32(buf[4:8]))
	channels = int(binary.LittleEndian.Uint32(buf[8:12]))
	timestamp = math.Float64frombits(binary.LittleEndian.Uint64(buf[12:20]))
	sequence = binary.LittleEndian.Uint64(buf[20:28])
	numDetections = int(binary.LittleEndian.Uint32(buf[28:32]))
	return
}

// encodeDetection writes one 24-byte packed detection record.
func encodeDetection(buf []byte, d detection.Detection) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(d.X1))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(d.Y1))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(d.X2))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(d.Y2))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(d.ClassID))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(d.Confidence))
}

// decodeDetection parses one 24-byte packed detection record.
func decodeDetection(buf []byte) detection.Detection {
	return detection.Detection{
		X1:         int(binary.LittleEndian.Uint32(buf[0:4])),
		Y1:         int(binary.LittleEndian.Uint32(buf[4:8])),
		X2:         int(binary.LittleEndian.Uint32(buf[8:12])),
		Y2:         int(binary.LittleEndian.Uint32(buf[12:16])),
		ClassID:    uint16(binary.LittleEndian.Uint32(buf[16:20])),
		Confidence: math.Float32frombits(binary.LittleEndian.Uint32(buf[20:24])),
	}
}

// validateFrameSize reports whether width*height*channels fits the fixed
// slot's frame region.
func validateFrameSize(width, height, channels int) error {
	if width < 0 || height < 0 || channels < 0 {
		return fmt.Errorf("negative frame dimension: %dx%dx%d", width, height, channels)
	}
	total := width * height * channels
	if total > MaxFrameBytes {
		return fmt.Errorf("frame size %d exceeds max %d (%dx%dx%d)", total, MaxFrameBytes, width, height, channels)
	}
	return nil
}
