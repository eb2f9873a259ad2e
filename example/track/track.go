package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"github.com/pongvision/condense"
	"github.com/pongvision/condense/detect"
	"github.com/pongvision/condense/render"
	"github.com/pongvision/condense/report"
	"github.com/pongvision/condense/store"
	"github.com/pongvision/condense/video"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	vidFile := flag.String("i", "", "Video file to track the ball in")
	frameDir := flag.String("d", "", "Directory of numbered PNG frames instead of a video file")
	period := flag.Duration("period", 0, "Fixed frame period for -d when no timestamps.json exists")
	roiFlag := flag.String("roi", "", "Initial ball region as x,y,w,h, auto-detected when empty")
	radius := flag.Float64("radius", 20, "Expected ball radius in pixels")
	method := flag.String("method", "condense", "Tracking method, 'condense' or 'hough'")
	particles := flag.Int("n", 200, "Number of particles")
	bins := flag.Int("bins", 50, "Number of histogram bins")
	seed := flag.Uint64("seed", 1, "Random seed")
	outFile := flag.String("o", "", "Annotated output video file")
	dbFile := flag.String("db", "", "SQLite database to record the session in")
	reportFile := flag.String("report", "", "HTML report output file")

	flag.Parse()

	src, name, err := openSource(*vidFile, *frameDir, *period)

	if err != nil {
		log.Fatalf("Error opening source: %v", err)
	}

	defer src.Close()

	var estimates []condense.TrackEstimate

	switch *method {
	case "condense":
		estimates, err = runFilter(src, name, *roiFlag, *radius,
			*particles, *bins, *seed, *outFile)

	case "hough":
		err = runDetector(src, *radius)

	default:
		log.Fatalf("Unknown method %q, use 'condense' or 'hough'", *method)
	}

	if err != nil {
		log.Fatalf("Tracking failed: %v", err)
	}

	if *dbFile != "" && len(estimates) > 0 {
		if err := recordSession(*dbFile, name, estimates); err != nil {
			log.Fatalf("Error recording session: %v", err)
		}
	}

	if *reportFile != "" && len(estimates) > 0 {
		if err := report.WriteFile(*reportFile, name, estimates); err != nil {
			log.Fatalf("Error writing report: %v", err)
		}

		log.Printf("Report written to %s", *reportFile)
	}
}

// frameSource is a Source that owns OS resources
type frameSource interface {
	condense.Source
	Close() error
}

// openSource opens the video file or frame directory given on the command
// line and returns the source with a display name
func openSource(vidFile, frameDir string, period time.Duration) (frameSource, string, error) {

	switch {
	case frameDir != "":
		src, err := video.OpenDir(frameDir, period)
		return src, frameDir, err

	case vidFile != "":
		src, err := video.OpenFile(vidFile)
		return src, vidFile, err

	default:
		return nil, "", fmt.Errorf("provide a video file with -i or a frame directory with -d")
	}
}

// runFilter tracks the ball through all frames with the particle filter,
// optionally writing an annotated copy of the video
func runFilter(src frameSource, name, roiFlag string, radius float64,
	particles, bins int, seed uint64, outFile string) ([]condense.TrackEstimate, error) {

	first, err := src.Next()

	if err != nil {
		return nil, fmt.Errorf("error reading first frame: %w", err)
	}

	roi, err := initialROI(first.Gray, roiFlag, radius)

	if err != nil {
		return nil, err
	}

	log.Printf("Tracking from initial region %v", roi)

	target, err := video.TargetFromROI(first.Gray, roi, bins)

	if err != nil {
		return nil, err
	}

	cfg := condense.DefaultConfig()
	cfg.Particles = particles
	cfg.Bins = bins
	cfg.RectWidth = roi.Dx()
	cfg.RectHeight = roi.Dy()
	cfg.Seed = seed

	f, err := condense.NewFilter(cfg)

	if err != nil {
		return nil, err
	}

	center := roi.Min.Add(roi.Max).Div(2)

	if err := f.Init(target, float64(center.X), float64(center.Y)); err != nil {
		return nil, err
	}

	var writer *gocv.VideoWriter

	if outFile != "" {
		writer, err = gocv.VideoWriterFile(outFile, "avc1", 25,
			first.Gray.Bounds().Dx(), first.Gray.Bounds().Dy(), true)

		if err != nil {
			return nil, fmt.Errorf("error opening output video: %w", err)
		}

		defer writer.Close()
	}

	style := render.DefaultStyle()
	font := render.DefaultFont()

	var estimates []condense.TrackEstimate

	for fr, err := first, error(nil); ; fr, err = src.Next() {

		if errors.Is(err, io.EOF) {
			break
		}

		var est condense.TrackEstimate

		if err != nil {
			if !errors.Is(err, condense.ErrInvalidFrame) {
				return estimates, err
			}

			log.Printf("Frame %d unreadable, predicting only", fr.Index)
			est, err = f.ProcessInvalid(fr.PTS, fr.Index)

		} else {
			est, err = f.Process(fr)
		}

		if err != nil && !errors.Is(err, condense.ErrTrackLost) {
			return estimates, err
		}

		if est.TrackLost {
			log.Printf("Frame %d: track lost", est.FrameIndex)
		}

		estimates = append(estimates, est)

		if writer != nil && fr.Gray != nil {
			if err := writeAnnotated(writer, fr, f, estimates, cfg, style, font); err != nil {
				return estimates, err
			}
		}
	}

	f.Stop()

	last := estimates[len(estimates)-1]

	log.Printf("Tracked %d frames of %s, final position (%.1f, %.1f) at %.1f px/s",
		len(estimates), name, last.X, last.Y, last.Speed())

	return estimates, nil
}

// writeAnnotated draws the tracker state over the frame and appends it to
// the output video
func writeAnnotated(writer *gocv.VideoWriter, fr condense.Frame,
	f *condense.Filter, estimates []condense.TrackEstimate,
	cfg condense.Config, style render.Style, font render.Font) error {

	gray, err := gocv.NewMatFromBytes(fr.Gray.Bounds().Dy(),
		fr.Gray.Bounds().Dx(), gocv.MatTypeCV8U, fr.Gray.Pix)

	if err != nil {
		return fmt.Errorf("error wrapping frame pixels: %w", err)
	}

	defer gray.Close()

	img := gocv.NewMat()
	defer img.Close()

	gocv.CvtColor(gray, &img, gocv.ColorGrayToBGR)

	est := estimates[len(estimates)-1]

	render.Particles(&img, f.Particles(), style)
	render.Trail(&img, estimates, style)
	render.EstimateBox(&img, est, cfg.RectWidth, cfg.RectHeight, style)
	render.VelocityArrow(&img, est, style)

	label := fmt.Sprintf("frame %d  ess %.0f  %.0f px/s",
		est.FrameIndex, est.ESS, est.Speed())

	render.Label(&img, label, image.Pt(10, 20), font, render.Black)

	return writer.Write(img)
}

// initialROI picks the initial ball region, from the -roi flag when given,
// otherwise by circle detection on the first frame
func initialROI(img *image.Gray, roiFlag string, radius float64) (image.Rectangle, error) {

	if roiFlag != "" {
		return parseROI(roiFlag)
	}

	d := detect.NewBallDetector(radius, radius/2)
	defer d.Close()

	circles, err := d.DetectImage(img)

	if err != nil {
		return image.Rectangle{}, fmt.Errorf("error detecting ball: %w", err)
	}

	best, ok := detect.Best(circles, radius)

	if !ok {
		return image.Rectangle{}, fmt.Errorf("no ball found in first frame, provide -roi")
	}

	log.Printf("Detected ball at (%.0f, %.0f) radius %.1f px",
		best.X, best.Y, best.Radius)

	return best.ROI(), nil
}

// parseROI parses the x,y,w,h region flag
func parseROI(s string) (image.Rectangle, error) {

	parts := strings.Split(s, ",")

	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("invalid roi %q, expected x,y,w,h", s)
	}

	vals := make([]int, 4)

	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))

		if err != nil {
			return image.Rectangle{}, fmt.Errorf("invalid roi %q: %w", s, err)
		}

		vals[i] = v
	}

	return image.Rect(vals[0], vals[1], vals[0]+vals[2], vals[1]+vals[3]), nil
}

// runDetector tracks the ball frame by frame with circle detection alone,
// logging position and real world speed
func runDetector(src frameSource, radius float64) error {

	d := detect.NewBallDetector(radius, radius/2)
	defer d.Close()

	var prev detect.Circle
	var prevPTS time.Duration
	havePrev := false

	for {
		fr, err := src.Next()

		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			if errors.Is(err, condense.ErrInvalidFrame) {
				log.Printf("Frame %d unreadable, skipping", fr.Index)
				continue
			}

			return err
		}

		circles, err := d.DetectImage(fr.Gray)

		if err != nil {
			return err
		}

		best, ok := detect.Best(circles, radius)

		if !ok {
			log.Printf("Frame %d: no ball found", fr.Index)
			havePrev = false
			continue
		}

		if havePrev {
			dt := (fr.PTS - prevPTS).Seconds()
			speed := detect.SpeedCMS(best.X-prev.X, best.Y-prev.Y,
				best.Radius, dt)

			log.Printf("Frame %d: ball at (%.0f, %.0f) moving %.1f cm/s",
				fr.Index, best.X, best.Y, speed)

		} else {
			log.Printf("Frame %d: ball at (%.0f, %.0f)", fr.Index, best.X, best.Y)
		}

		prev = best
		prevPTS = fr.PTS
		havePrev = true
	}
}

// recordSession stores the estimates of this run under a new session
func recordSession(dbFile, name string, estimates []condense.TrackEstimate) error {

	s, err := store.Open(dbFile)

	if err != nil {
		return err
	}

	defer s.Close()

	id, err := s.BeginSession(name)

	if err != nil {
		return err
	}

	for _, est := range estimates {
		if err := s.RecordEstimate(id, est); err != nil {
			return err
		}
	}

	log.Printf("Session %s recorded to %s", id, dbFile)

	return nil
}
