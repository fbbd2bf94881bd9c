package frameipc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/breeze-rmm/agent/internal/detection"
)

func uniqueSlotName(t *testing.T) string {
	return fmt.Sprintf("frameipc-test-%s-%d", t.Name(), time.Now().UnixNano())
}

func TestPublishThenReadRoundTrips(t *testing.T) {
	name := uniqueSlotName(t)
	pub, err := Create(name)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sub, err := Attach(ctx, name, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer sub.Close()

	frame := detection.Frame{Width: 4, Height: 2, Channels: 3, Data: make([]byte, 4*2*3)}
	for i := range frame.Data {
		frame.Data[i] = byte(i)
	}
	dets := []detection.Detection{{X1: 1, Y1: 2, X2: 3, Y2: 4, ClassID: 7, Confidence: 0.9}}

	if err := pub.Publish(frame, dets); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	payload, ok, err := sub.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !ok {
		t.Fatal("Read() ok = false, want true after a publish")
	}
	if payload.Width != 4 || payload.Height != 2 || payload.Channels != 3 {
		t.Fatalf("dimensions = %dx%dx%d, want 4x2x3", payload.Width, payload.Height, payload.Channels)
	}
	if len(payload.Detections) != 1 || payload.Detections[0].ClassID != 7 {
		t.Fatalf("Detections = %+v", payload.Detections)
	}
	if string(payload.FrameBytes) != string(frame.Data) {
		t.Fatal("FrameBytes did not round-trip")
	}
}

func TestReadReturnsFalseWhenNoNewFrame(t *testing.T) {
	name := uniqueSlotName(t)
	pub, err := Create(name)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sub, err := Attach(ctx, name, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer sub.Close()

	_, ok, err := sub.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if ok {
		t.Fatal("Read() ok = true before any publish, want false")
	}

	frame := detection.Frame{Width: 1, Height: 1, Channels: 1, Data: []byte{9}}
	if err := pub.Publish(frame, nil); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if _, ok, _ := sub.Read(); !ok {
		t.Fatal("Read() ok = false right after a publish, want true")
	}
	if _, ok, _ := sub.Read(); ok {
		t.Fatal("second Read() with no new publish should return ok = false")
	}
}

func TestPublishDropsOversizedFrameWithoutError(t *testing.T) {
	name := uniqueSlotName(t)
	pub, err := Create(name)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer pub.Close()

	frame := detection.Frame{Width: 1920 * 2, Height: 1080, Channels: 3, Data: make([]byte, 1)}
	if err := pub.Publish(frame, nil); err != nil {
		t.Fatalf("Publish() of an oversized frame should be dropped silently, got error = %v", err)
	}
}

func TestAttachRetriesUntilSlotExists(t *testing.T) {
	name := uniqueSlotName(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		sub, err := Attach(ctx, name, 10*time.Millisecond)
		if err == nil {
			sub.Close()
		}
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	pub, err := Create(name)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer pub.Close()

	if err := <-done; err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
}
