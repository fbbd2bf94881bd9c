//go:build cgo

// Package motion implements frame-differencing motion detection: a cheap
// gate run ahead of the detector so the pipeline can skip inference on
// frames with no visible change. Built on gocv.
package motion

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/breeze-rmm/agent/internal/detection"
	"github.com/breeze-rmm/agent/internal/logging"
)

var log = logging.L("motion")

const (
	gaussianKernel = 21
	diffThreshold  = 25
	dilateKernel   = 5
	dilateIters    = 2
	minArea        = 500
)

// Region is an axis-aligned motion region in pixel coordinates.
type Region struct {
	X, Y, W, H int
}

// Detector holds the rolling previous-frame state for differencing.
// Not safe for concurrent use — one Detector per frame stream.
type Detector struct {
	prevGray gocv.Mat
	hasPrev  bool
}

// New creates a Detector with no prior frame.
func New() *Detector {
	return &Detector{}
}

// Close releases the retained previous-frame Mat.
func (d *Detector) Close() {
	if d.hasPrev {
		d.prevGray.Close()
		d.hasPrev = false
	}
}

// Detect runs one frame through the differencing pipeline: gray conversion,
// 21×21 Gaussian blur, absdiff against the previous blurred frame,
// threshold 25, dilate ×2 with a 5×5 kernel, external contour extraction
// filtered by min_area 500. The first frame seen always reports no
// motion, since there is nothing to diff against yet.
func (d *Detector) Detect(frame detection.Frame) (bool, []Region, error) {
	mat, err := frameToMat(frame)
	if err != nil {
		return false, nil, err
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(gaussianKernel, gaussianKernel), 0, 0, gocv.BorderDefault)

	if !d.hasPrev {
		d.prevGray = blurred.Clone()
		d.hasPrev = true
		return false, nil, nil
	}

	delta := gocv.NewMat()
	defer delta.Close()
	gocv.AbsDiff(d.prevGray, blurred, &delta)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(delta, &thresh, diffThreshold, 255, gocv.ThresholdBinary)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(dilateKernel, dilateKernel))
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.DilateWithParams(thresh, &dilated, kernel, image.Pt(-1, -1), dilateIters, gocv.BorderConstant, gocv.Scalar{})

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var regions []Region
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if gocv.ContourArea(c) < minArea {
			continue
		}
		r := gocv.BoundingRect(c)
		regions = append(regions, Region{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()})
	}

	d.prevGray.Close()
	d.prevGray = blurred.Clone()

	return len(regions) > 0, regions, nil
}

// frameToMat wraps a raw BGR frame buffer as a gocv.Mat without copying
// detector-owned memory beyond what gocv itself allocates.
func frameToMat(frame detection.Frame) (gocv.Mat, error) {
	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		log.Error("failed to wrap frame bytes as Mat", "error", err)
		return gocv.Mat{}, err
	}
	return mat, nil
}
