// Package video supplies condense.Source implementations backed by
// OpenCV: video files decoded frame by frame and directories of numbered
// still frames with an ffprobe timestamp sidecar.
package video

import (
	"fmt"
	"image"
	"io"
	"time"

	"gocv.io/x/gocv"

	"github.com/pongvision/condense"
)

// FileSource pulls frames from a video file, converting each to grayscale
// and pairing it with the container presentation timestamp
type FileSource struct {
	cap  *gocv.VideoCapture
	mat  gocv.Mat
	gray gocv.Mat
	idx  int
}

// OpenFile opens a video file for reading
func OpenFile(vidFile string) (*FileSource, error) {

	cap, err := gocv.VideoCaptureFile(vidFile)

	if err != nil {
		return nil, fmt.Errorf("error opening video %s: %w", vidFile, err)
	}

	return &FileSource{
		cap:  cap,
		mat:  gocv.NewMat(),
		gray: gocv.NewMat(),
		idx:  -1,
	}, nil
}

// Next reads the next frame from the video.  It returns io.EOF at the end
// of the stream and condense.ErrInvalidFrame for a frame the decoder
// could not produce, with the timestamp still filled in.
func (s *FileSource) Next() (condense.Frame, error) {

	s.idx++

	if ok := s.cap.Read(&s.mat); !ok {
		// reached last video frame
		return condense.Frame{}, io.EOF
	}

	pts := time.Duration(s.cap.Get(gocv.VideoCapturePosMsec) * float64(time.Millisecond))

	if s.mat.Empty() {
		return condense.Frame{PTS: pts, Index: s.idx},
			fmt.Errorf("frame %d: %w", s.idx, condense.ErrInvalidFrame)
	}

	img, err := GrayFromMat(s.mat, &s.gray)

	if err != nil {
		return condense.Frame{PTS: pts, Index: s.idx},
			fmt.Errorf("frame %d: %w", s.idx, condense.ErrInvalidFrame)
	}

	return condense.Frame{Gray: img, PTS: pts, Index: s.idx}, nil
}

// Close releases the capture handle and working Mats
func (s *FileSource) Close() error {

	s.mat.Close()
	s.gray.Close()

	return s.cap.Close()
}

// GrayFromMat converts a Mat to a grayscale image buffer.  Multi channel
// Mats are converted through the given working Mat.
func GrayFromMat(src gocv.Mat, tmp *gocv.Mat) (*image.Gray, error) {

	m := src

	if src.Channels() != 1 {
		gocv.CvtColor(src, tmp, gocv.ColorBGRToGray)
		m = *tmp
	}

	if m.Type() != gocv.MatTypeCV8U {
		return nil, fmt.Errorf("unsupported mat type %d", m.Type())
	}

	img := image.NewGray(image.Rect(0, 0, m.Cols(), m.Rows()))
	copy(img.Pix, m.ToBytes())

	return img, nil
}
