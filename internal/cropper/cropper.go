//go:build cgo

// Package cropper implements crop extraction, encoding, and retention for
// newly-tracked objects, built on gocv.
package cropper

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"github.com/breeze-rmm/agent/internal/archive"
	"github.com/breeze-rmm/agent/internal/audit"
	"github.com/breeze-rmm/agent/internal/detection"
	"github.com/breeze-rmm/agent/internal/logging"
)

var log = logging.L("cropper")

// Params configures crop extraction, encoding, and retention.
type Params struct {
	OutputDir      string
	ManualCropDir  string // destination for SaveManual; separate from OutputDir
	Format         string // "jpg" | "png"
	Quality        int    // JPEG quality, 1-100
	Padding        int
	MinSize        int
	TargetClasses  map[string]bool // empty/nil means no class filter
	KeepLatestOnly bool
	MaxImages      int // 0 means unlimited; mutually exclusive with KeepLatestOnly
	OverlayLabels  bool
}

// Cropper extracts, encodes, and retains crops for newly-tracked objects.
type Cropper struct {
	params      Params
	archiver    *archive.Archiver
	auditLog    *audit.Logger
	count       int
	manualCount uint64
}

// New creates a Cropper. archiver may be nil to disable archival.
func New(params Params, archiver *archive.Archiver, auditLog *audit.Logger) *Cropper {
	return &Cropper{params: params, archiver: archiver, auditLog: auditLog}
}

// Crop extracts det's bounding box from frame with padding clamped to
// frame bounds, returning nil (not an error) if det fails the class
// filter or minimum-size check. index is this detection's position within
// the current frame's detection list, used only for the overlay label.
func (c *Cropper) Crop(frame detection.Frame, det detection.Detection, index int) (gocv.Mat, bool, error) {
	if len(c.params.TargetClasses) > 0 && !c.params.TargetClasses[det.ClassName()] {
		return gocv.Mat{}, false, nil
	}
	if det.Width() < c.params.MinSize || det.Height() < c.params.MinSize {
		return gocv.Mat{}, false, nil
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return gocv.Mat{}, false, fmt.Errorf("cropper: wrap frame: %w", err)
	}
	defer mat.Close()

	x1 := clampInt(det.X1-c.params.Padding, 0, frame.Width)
	y1 := clampInt(det.Y1-c.params.Padding, 0, frame.Height)
	x2 := clampInt(det.X2+c.params.Padding, 0, frame.Width)
	y2 := clampInt(det.Y2+c.params.Padding, 0, frame.Height)
	if x2 <= x1 || y2 <= y1 {
		return gocv.Mat{}, false, nil
	}

	region := image.Rect(x1, y1, x2, y2)
	cropped := mat.Region(region).Clone()

	if c.params.OverlayLabels {
		drawLabel(&cropped, fmt.Sprintf("%d-%s", index, det.ClassName()))
	}

	return cropped, true, nil
}

var colorLime = color.RGBA{R: 0, G: 255, B: 0, A: 0}
var colorBlack = color.RGBA{R: 0, G: 0, B: 0, A: 0}

// drawLabel paints text in the top-left corner of m on a filled black
// background sized to the text, at a scale proportional to the crop's
// smaller dimension.
func drawLabel(m *gocv.Mat, text string) {
	fontScale := math.Max(0.4, math.Min(float64(m.Cols()), float64(m.Rows()))/200)
	textSize := gocv.GetTextSize(text, gocv.FontHersheySimplex, fontScale, 1)

	const margin = 4
	bgRect := image.Rect(0, 0, textSize.X+2*margin, textSize.Y+2*margin)
	gocv.Rectangle(m, bgRect, colorBlack, -1)
	gocv.PutText(m, text, image.Pt(margin, textSize.Y+margin), gocv.FontHersheySimplex, fontScale, colorLime, 1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Save encodes cropped and writes it to OutputDir using the filename
// pattern {class_name}_{YYYYMMDD_HHMMSS}_{sequence:06}_{track_id:02}.{ext},
// then fires retention cleanup and an optional async archival upload.
func (c *Cropper) Save(cropped gocv.Mat, det detection.Detection, ts time.Time, sequence uint64, trackID uint64) (string, error) {
	defer cropped.Close()

	ext := strings.ToLower(c.params.Format)
	if ext != "png" {
		ext = "jpg"
	}

	className := strings.ReplaceAll(det.ClassName(), " ", "_")
	filename := fmt.Sprintf("%s_%s_%06d_%02d.%s", className, ts.Format("20060102_150405"), sequence, trackID, ext)
	outPath := filepath.Join(c.params.OutputDir, filename)

	buf, err := encodeMat(cropped, ext, c.params.Quality)
	if err != nil {
		return "", err
	}
	defer buf.Close()

	if err := writeFile(c.params.OutputDir, outPath, buf.GetBytes()); err != nil {
		return "", err
	}

	c.count++
	log.Info("crop saved", "path", outPath, "class", det.ClassName(), "trackId", trackID, "confidence", det.Confidence)
	c.auditLog.Log(audit.EventCropWritten, "", map[string]any{"path": outPath, "class": det.ClassName(), "trackId": trackID})

	c.applyRetention(filename)

	if c.archiver != nil {
		c.archiver.Submit(outPath, filename)
	}

	return outPath, nil
}

// SaveManual encodes cropped and writes it to ManualCropDir using the
// filename pattern manual_{class_name}_{YYYYMMDD_HHMMSS}_{counter:04}.jpg,
// separate from Save's ordinary first-appearance crop stream and its
// own monotonic counter. Manual crops are always JPEG and are not subject
// to OutputDir's retention policy.
func (c *Cropper) SaveManual(cropped gocv.Mat, det detection.Detection, ts time.Time) (string, error) {
	defer cropped.Close()

	c.manualCount++
	className := strings.ReplaceAll(det.ClassName(), " ", "_")
	filename := fmt.Sprintf("manual_%s_%s_%04d.jpg", className, ts.Format("20060102_150405"), c.manualCount)
	outPath := filepath.Join(c.params.ManualCropDir, filename)

	buf, err := encodeMat(cropped, "jpg", c.params.Quality)
	if err != nil {
		return "", err
	}
	defer buf.Close()

	if err := writeFile(c.params.ManualCropDir, outPath, buf.GetBytes()); err != nil {
		return "", err
	}

	log.Info("manual crop saved", "path", outPath, "class", det.ClassName())
	c.auditLog.Log(audit.EventCropWritten, "", map[string]any{"path": outPath, "class": det.ClassName(), "manual": true})

	if c.archiver != nil {
		c.archiver.Submit(outPath, filename)
	}

	return outPath, nil
}

func encodeMat(m gocv.Mat, ext string, quality int) (*gocv.NativeByteBuffer, error) {
	if ext == "png" {
		buf, err := gocv.IMEncode(gocv.PNGFileExt, m)
		if err != nil {
			return nil, fmt.Errorf("cropper: encode: %w", err)
		}
		return buf, nil
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, m, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("cropper: encode: %w", err)
	}
	return buf, nil
}

func writeFile(dir, outPath string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cropper: create output dir: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("cropper: write file: %w", err)
	}
	return nil
}

// applyRetention enforces exactly one retention policy. KeepLatestOnly and
// MaxImages are mutually exclusive — enforced at configuration validation,
// so at most one is non-default here.
func (c *Cropper) applyRetention(justWritten string) {
	if c.params.KeepLatestOnly {
		c.cleanupExceptLatestPerClass(justWritten)
		return
	}
	if c.params.MaxImages > 0 {
		c.cleanupOldImages()
	}
}

func (c *Cropper) listCropFiles() ([]string, error) {
	pattern := "*.jpg"
	if strings.ToLower(c.params.Format) == "png" {
		pattern = "*.png"
	}
	matches, err := filepath.Glob(filepath.Join(c.params.OutputDir, pattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// cleanupExceptLatestPerClass keeps only the most recently written file
// per class name, inferred from the filename's leading segment.
func (c *Cropper) cleanupExceptLatestPerClass(justWritten string) {
	files, err := c.listCropFiles()
	if err != nil {
		log.Warn("retention cleanup: list failed", "error", err)
		return
	}

	latestByClass := make(map[string]string)
	for _, f := range files {
		cls := classNameFromFilename(f)
		latestByClass[cls] = f // sorted ascending, so last write per class wins
	}

	for _, f := range files {
		cls := classNameFromFilename(f)
		if latestByClass[cls] != f {
			if err := os.Remove(f); err != nil {
				log.Warn("retention cleanup: remove failed", "file", f, "error", err)
			}
		}
	}
}

// cleanupOldImages deletes the oldest files until at most MaxImages remain.
func (c *Cropper) cleanupOldImages() {
	files, err := c.listCropFiles()
	if err != nil {
		log.Warn("retention cleanup: list failed", "error", err)
		return
	}
	for len(files) > c.params.MaxImages {
		oldest := files[0]
		files = files[1:]
		if err := os.Remove(oldest); err != nil {
			log.Warn("retention cleanup: remove failed", "file", oldest, "error", err)
		}
	}
}

func classNameFromFilename(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.SplitN(base, "_", 2)
	return parts[0]
}
