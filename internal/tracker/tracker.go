// Package tracker implements an IoU-based greedy multi-object tracker:
// detections are matched frame-to-frame by class and box overlap, with
// stale tracks evicted after a timeout.
package tracker

import (
	"time"

	"github.com/breeze-rmm/agent/internal/detection"
	"github.com/breeze-rmm/agent/internal/logging"
)

var log = logging.L("tracker")

const (
	// DefaultIoUThreshold is the minimum IoU for a detection to match an
	// existing tracked object.
	DefaultIoUThreshold = 0.3
	// DefaultTimeout is how long a tracked object survives without a new
	// matching detection before eviction.
	DefaultTimeout = 2 * time.Second
)

// Object is a tracked object: one detection lineage identified by a
// monotonic track ID.
type Object struct {
	TrackID   uint64
	Detection detection.Detection
	FirstSeen time.Time
	LastSeen  time.Time
	Cropped   bool
}

// Match pairs a detection with the tracked object it updated or created in
// one Update() call, and records whether this is that object's first
// appearance.
type Match struct {
	Detection detection.Detection
	Object    *Object
	IsNew     bool
}

// Tracker assigns stable identities to detections across frames using
// greedy same-class IoU matching, evicting objects unseen for longer than
// Timeout.
type Tracker struct {
	IoUThreshold float64
	Timeout      time.Duration

	nextTrackID uint64
	objects     map[uint64]*Object
	// insertionOrder preserves the order objects were created so tie-break
	// ("first t achieving the current max wins") is well-defined
	// independent of Go's unordered map iteration.
	insertionOrder []uint64
}

// New creates a Tracker with the given thresholds. A zero iouThreshold or
// timeout falls back to package defaults.
func New(iouThreshold float64, timeout time.Duration) *Tracker {
	if iouThreshold <= 0 {
		iouThreshold = DefaultIoUThreshold
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{
		IoUThreshold: iouThreshold,
		Timeout:      timeout,
		objects:      make(map[uint64]*Object),
	}
}

// Update runs one tracking cycle: evict stale objects, then greedily match
// each detection (in input order) against same-class unmatched objects by
// maximum IoU, allocating a new track ID for unmatched detections. Returns
// one Match per input detection, in input order.
func (t *Tracker) Update(detections []detection.Detection, now time.Time) []Match {
	t.evict(now)

	matchedThisCycle := make(map[uint64]bool, len(t.objects))
	matches := make([]Match, 0, len(detections))

	for _, d := range detections {
		best, bestIoU := t.findBestMatch(d, matchedThisCycle)
		if best != nil {
			best.Detection = d
			best.LastSeen = now
			matchedThisCycle[best.TrackID] = true
			matches = append(matches, Match{Detection: d, Object: best, IsNew: false})
			continue
		}
		_ = bestIoU

		obj := &Object{
			TrackID:   t.nextTrackID,
			Detection: d,
			FirstSeen: now,
			LastSeen:  now,
			Cropped:   false,
		}
		t.nextTrackID++
		t.objects[obj.TrackID] = obj
		t.insertionOrder = append(t.insertionOrder, obj.TrackID)
		matchedThisCycle[obj.TrackID] = true
		matches = append(matches, Match{Detection: d, Object: obj, IsNew: true})
	}

	return matches
}

// findBestMatch returns the unmatched, same-class tracked object with the
// highest IoU against d that exceeds the threshold, using insertion order
// as the tie-break ("the first t achieving the current max wins").
func (t *Tracker) findBestMatch(d detection.Detection, matchedThisCycle map[uint64]bool) (*Object, float64) {
	var best *Object
	bestIoU := t.IoUThreshold

	for _, id := range t.insertionOrder {
		obj, ok := t.objects[id]
		if !ok || matchedThisCycle[id] {
			continue
		}
		if obj.Detection.ClassID != d.ClassID {
			continue
		}
		iou := d.IoU(obj.Detection)
		if iou > bestIoU {
			bestIoU = iou
			best = obj
		}
	}
	return best, bestIoU
}

// evict removes tracked objects whose LastSeen is older than Timeout.
func (t *Tracker) evict(now time.Time) {
	kept := t.insertionOrder[:0]
	for _, id := range t.insertionOrder {
		obj, ok := t.objects[id]
		if !ok {
			continue
		}
		if now.Sub(obj.LastSeen) > t.Timeout {
			delete(t.objects, id)
			log.Debug("tracked object evicted", "trackId", id, "age", now.Sub(obj.LastSeen))
			continue
		}
		kept = append(kept, id)
	}
	t.insertionOrder = kept
}

// Objects returns a snapshot of all currently tracked objects.
func (t *Tracker) Objects() []*Object {
	out := make([]*Object, 0, len(t.insertionOrder))
	for _, id := range t.insertionOrder {
		if obj, ok := t.objects[id]; ok {
			out = append(out, obj)
		}
	}
	return out
}

// MarkCropped sets the Cropped flag for the given track ID, a no-op if the
// object is no longer tracked.
func (t *Tracker) MarkCropped(trackID uint64) {
	if obj, ok := t.objects[trackID]; ok {
		obj.Cropped = true
	}
}
