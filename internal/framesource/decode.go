//go:build cgo

package framesource

import (
	"fmt"
	"image"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
	"github.com/y9o/go-openh264"
	"gocv.io/x/gocv"

	"github.com/breeze-rmm/agent/internal/detection"
)

// sampleBuilderMaxLate bounds how many packets the builder holds while
// waiting for a late packet to complete a frame.
const sampleBuilderMaxLate = 50

// h264Decoder reassembles RTP packets into H264 access units and decodes
// them into BGR detection.Frame values, using go-openh264 for the actual
// decode and gocv for the YUV→BGR color conversion already used elsewhere
// in the pipeline.
type h264Decoder struct {
	builder *samplebuilder.SampleBuilder
	decoder *openh264.Decoder
}

func newH264Decoder() (*h264Decoder, error) {
	dec, err := openh264.NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("open h264 decoder: %w", err)
	}
	return &h264Decoder{
		builder: samplebuilder.New(sampleBuilderMaxLate, &codecs.H264Packet{}, 90000),
		decoder: dec,
	}, nil
}

// PushRTP feeds one RTP packet into the reassembly buffer, returning a
// decoded frame (ok=true) whenever a full access unit completes and
// decodes into a picture.
func (d *h264Decoder) PushRTP(pkt *rtp.Packet) (detection.Frame, bool, error) {
	d.builder.Push(pkt)

	sample := d.builder.Pop()
	if sample == nil {
		return detection.Frame{}, false, nil
	}

	img, err := d.decoder.Decode(sample.Data)
	if err != nil {
		return detection.Frame{}, false, fmt.Errorf("decode access unit: %w", err)
	}
	if img == nil {
		// Parameter-set-only or non-picture NAL units decode to nil.
		return detection.Frame{}, false, nil
	}

	frame, err := yuvToBGRFrame(img)
	if err != nil {
		return detection.Frame{}, false, err
	}
	return frame, true, nil
}

// yuvToBGRFrame converts a decoded I420 picture to a row-major BGR
// detection.Frame via gocv, matching the byte layout internal/motion and
// internal/cropper expect.
func yuvToBGRFrame(img *image.YCbCr) (detection.Frame, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()

	yuvMat, err := gocv.NewMatFromBytes(h+h/2, w, gocv.MatTypeCV8UC1, planarI420Bytes(img))
	if err != nil {
		return detection.Frame{}, fmt.Errorf("wrap yuv bytes: %w", err)
	}
	defer yuvMat.Close()

	bgrMat := gocv.NewMat()
	defer bgrMat.Close()
	gocv.CvtColor(yuvMat, &bgrMat, gocv.ColorYUVToBGRI420)

	return detection.Frame{
		Width:    w,
		Height:   h,
		Channels: 3,
		Data:     bgrMat.ToBytes(),
	}, nil
}

// planarI420Bytes repacks image.YCbCr's (possibly strided) Y/Cb/Cr planes
// into the contiguous I420 layout OpenCV's color conversion expects.
func planarI420Bytes(img *image.YCbCr) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	cw, ch := (w+1)/2, (h+1)/2

	out := make([]byte, w*h+2*cw*ch)
	offset := 0
	for y := 0; y < h; y++ {
		row := img.Y[y*img.YStride : y*img.YStride+w]
		offset += copy(out[offset:], row)
	}
	for y := 0; y < ch; y++ {
		row := img.Cb[y*img.CStride : y*img.CStride+cw]
		offset += copy(out[offset:], row)
	}
	for y := 0; y < ch; y++ {
		row := img.Cr[y*img.CStride : y*img.CStride+cw]
		offset += copy(out[offset:], row)
	}
	return out
}

// Close releases the decoder.
func (d *h264Decoder) Close() {
	if d.decoder != nil {
		d.decoder.Close()
	}
}
