//go:build cgo

package motion

import (
	"testing"

	"github.com/breeze-rmm/agent/internal/detection"
)

func solidFrame(w, h int, value byte) detection.Frame {
	data := make([]byte, w*h*3)
	for i := range data {
		data[i] = value
	}
	return detection.Frame{Width: w, Height: h, Channels: 3, Data: data}
}

func frameWithSquare(w, h int, bg, fg byte, x0, y0, size int) detection.Frame {
	f := solidFrame(w, h, bg)
	for y := y0; y < y0+size && y < h; y++ {
		for x := x0; x < x0+size && x < w; x++ {
			off := (y*w + x) * 3
			f.Data[off] = fg
			f.Data[off+1] = fg
			f.Data[off+2] = fg
		}
	}
	return f
}

func TestFirstFrameReportsNoMotion(t *testing.T) {
	d := New()
	defer d.Close()

	moved, regions, err := d.Detect(solidFrame(64, 64, 0))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if moved {
		t.Fatal("expected no motion on first frame")
	}
	if len(regions) != 0 {
		t.Fatalf("expected no regions on first frame, got %d", len(regions))
	}
}

func TestIdenticalFramesReportNoMotion(t *testing.T) {
	d := New()
	defer d.Close()

	d.Detect(solidFrame(64, 64, 10))
	moved, _, err := d.Detect(solidFrame(64, 64, 10))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if moved {
		t.Fatal("expected no motion between identical frames")
	}
}

func TestLargeChangeReportsMotion(t *testing.T) {
	d := New()
	defer d.Close()

	d.Detect(solidFrame(64, 64, 0))
	moved, regions, err := d.Detect(frameWithSquare(64, 64, 0, 255, 10, 10, 40))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if !moved {
		t.Fatal("expected motion from a large bright square")
	}
	if len(regions) == 0 {
		t.Fatal("expected at least one motion region")
	}
}

func TestTinyChangeBelowMinAreaReportsNoMotion(t *testing.T) {
	d := New()
	defer d.Close()

	d.Detect(solidFrame(64, 64, 0))
	moved, _, err := d.Detect(frameWithSquare(64, 64, 0, 255, 10, 10, 3))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if moved {
		t.Fatal("expected a 3x3 blip to be filtered out by min_area")
	}
}
