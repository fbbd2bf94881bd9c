package detection

import "testing"

func TestValidateRejectsDegenerateBox(t *testing.T) {
	d := Detection{X1: 10, Y1: 0, X2: 10, Y2: 5}
	if err := d.Validate(); err == nil {
		t.Fatal("Validate() on x2 == x1 should return an error")
	}
}

func TestValidateAcceptsWellFormedBox(t *testing.T) {
	d := Detection{X1: 0, Y1: 0, X2: 10, Y2: 10}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestIoUIsZeroForDisjointBoxes(t *testing.T) {
	a := Detection{X1: 0, Y1: 0, X2: 10, Y2: 10}
	b := Detection{X1: 100, Y1: 100, X2: 110, Y2: 110}
	if got := a.IoU(b); got != 0 {
		t.Fatalf("IoU() = %v, want 0 for disjoint boxes", got)
	}
}

func TestIoUIsOneForIdenticalBoxes(t *testing.T) {
	a := Detection{X1: 0, Y1: 0, X2: 10, Y2: 10}
	if got := a.IoU(a); got != 1 {
		t.Fatalf("IoU() = %v, want 1 for identical boxes", got)
	}
}

func TestIoUIsSymmetric(t *testing.T) {
	a := Detection{X1: 0, Y1: 0, X2: 10, Y2: 10}
	b := Detection{X1: 5, Y1: 5, X2: 15, Y2: 15}
	if a.IoU(b) != b.IoU(a) {
		t.Fatalf("IoU(a,b) = %v, IoU(b,a) = %v, want equal", a.IoU(b), b.IoU(a))
	}
}

func TestClassNameLooksUpCOCOTable(t *testing.T) {
	d := Detection{ClassID: 0}
	if d.ClassName() != "person" {
		t.Fatalf("ClassName() = %q, want person", d.ClassName())
	}
}

func TestClassNameOutOfRangeIsUnknown(t *testing.T) {
	d := Detection{ClassID: 9999}
	if d.ClassName() != "unknown" {
		t.Fatalf("ClassName() = %q, want unknown", d.ClassName())
	}
}

func TestStubDetectorReturnsConfiguredDetectionsVerbatim(t *testing.T) {
	want := []Detection{{X1: 0, Y1: 0, X2: 10, Y2: 10, ClassID: 1}}
	s := StubDetector{Detections: want}
	got, err := s.Detect(Frame{}, Params{})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("Detect() = %+v, want %+v", got, want)
	}
	// Returned slice must be a copy, not an alias.
	got[0].ClassID = 99
	if s.Detections[0].ClassID == 99 {
		t.Fatal("StubDetector.Detect() must not alias its Detections field")
	}
}
