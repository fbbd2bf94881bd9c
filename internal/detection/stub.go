package detection

// StubDetector is a deterministic Detector used where no real inference
// engine is wired in: tests, and the reference binaries until an operator
// substitutes a real engine behind the Detector port.
type StubDetector struct {
	// Detections is returned verbatim (ignoring frame/params) on every call.
	Detections []Detection
}

// Detect returns a copy of s.Detections, ignoring frame and params.
func (s StubDetector) Detect(frame Frame, params Params) ([]Detection, error) {
	out := make([]Detection, len(s.Detections))
	copy(out, s.Detections)
	return out, nil
}
