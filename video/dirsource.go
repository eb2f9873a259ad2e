package video

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"gocv.io/x/gocv"

	"github.com/pongvision/condense"
)

// frameNumberRe matches the trailing number of a frame file name
var frameNumberRe = regexp.MustCompile(`([0-9]+)\.png$`)

// DirSource reads a directory of numbered PNG frames, ordered by the
// number embedded in the file name, with presentation timestamps taken
// from an ffprobe timestamps.json sidecar or a fixed frame period
type DirSource struct {
	files []string
	pts   []time.Duration
	idx   int
	gray  gocv.Mat
}

// OpenDir opens a frame directory.  When period is zero the timestamps
// are read from timestamps.json in the directory (the output of ffprobe
// -show_frames), otherwise frames are spaced by the fixed period.
func OpenDir(dir string, period time.Duration) (*DirSource, error) {

	files, err := filepath.Glob(filepath.Join(dir, "*.png"))

	if err != nil {
		return nil, fmt.Errorf("error listing frames in %s: %w", dir, err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no png frames found in %s", dir)
	}

	sort.Slice(files, func(i, j int) bool {
		return frameNumber(files[i]) < frameNumber(files[j])
	})

	var pts []time.Duration

	if period > 0 {
		pts = make([]time.Duration, len(files))

		for i := range pts {
			pts[i] = time.Duration(i) * period
		}

	} else {
		pts, err = readTimestamps(filepath.Join(dir, "timestamps.json"))

		if err != nil {
			return nil, err
		}

		if len(pts) < len(files) {
			return nil, fmt.Errorf("timestamps.json has %d entries for %d frames",
				len(pts), len(files))
		}
	}

	return &DirSource{
		files: files,
		pts:   pts,
		gray:  gocv.NewMat(),
	}, nil
}

// Next reads the next frame image from the directory
func (s *DirSource) Next() (condense.Frame, error) {

	if s.idx >= len(s.files) {
		return condense.Frame{}, io.EOF
	}

	i := s.idx
	s.idx++

	mat := gocv.IMRead(s.files[i], gocv.IMReadGrayScale)
	defer mat.Close()

	if mat.Empty() {
		return condense.Frame{PTS: s.pts[i], Index: i},
			fmt.Errorf("frame %s: %w", s.files[i], condense.ErrInvalidFrame)
	}

	img, err := GrayFromMat(mat, &s.gray)

	if err != nil {
		return condense.Frame{PTS: s.pts[i], Index: i},
			fmt.Errorf("frame %s: %w", s.files[i], condense.ErrInvalidFrame)
	}

	return condense.Frame{Gray: img, PTS: s.pts[i], Index: i}, nil
}

// Close releases the working Mat
func (s *DirSource) Close() error {
	return s.gray.Close()
}

// frameNumber extracts the trailing number of a frame file name, -1 when
// the name carries none
func frameNumber(name string) int {

	m := frameNumberRe.FindStringSubmatch(name)

	if m == nil {
		return -1
	}

	n, err := strconv.Atoi(m[1])

	if err != nil {
		return -1
	}

	return n
}

// readTimestamps parses the ffprobe -show_frames json output into
// per-frame presentation timestamps
func readTimestamps(path string) ([]time.Duration, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("error reading timestamps: %w", err)
	}

	return parseTimestamps(data)
}

// parseTimestamps decodes the ffprobe frames list, reading the
// pkt_pts_time of every frame in seconds
func parseTimestamps(data []byte) ([]time.Duration, error) {

	var doc struct {
		Frames []struct {
			PktPtsTime string `json:"pkt_pts_time"`
		} `json:"frames"`
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing timestamps: %w", err)
	}

	pts := make([]time.Duration, len(doc.Frames))

	for i, fr := range doc.Frames {
		secs, err := strconv.ParseFloat(fr.PktPtsTime, 64)

		if err != nil {
			return nil, fmt.Errorf("frame %d has invalid pkt_pts_time %q: %w",
				i, fr.PktPtsTime, err)
		}

		pts[i] = time.Duration(secs * float64(time.Second))
	}

	return pts, nil
}
