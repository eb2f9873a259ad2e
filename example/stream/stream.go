package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/pongvision/condense"
	"github.com/pongvision/condense/detect"
	"github.com/pongvision/condense/histogram"
	"github.com/pongvision/condense/particle"
	"github.com/pongvision/condense/render"
	"github.com/pongvision/condense/video"
)

var (
	// FPS is the number of FPS to simulate
	FPS         = 30
	FPSinterval = time.Duration(float64(time.Second) / float64(FPS))
)

// ResultFrame is a struct to wrap the gocv byte buffer and error result
type ResultFrame struct {
	Buf *gocv.NativeByteBuffer
	Err error
}

// Demo defines the struct for running the ball tracking demo
type Demo struct {
	// grayBuffer buffers the grayscale video frames into memory
	grayBuffer []*image.Gray
	// colorBuffer buffers the original color frames for annotation
	colorBuffer []gocv.Mat
	// target is the ball signature histogram built from the first frame
	target histogram.Histogram
	// roi is the initial ball region on the first frame
	roi image.Rectangle
	// cfg is the filter configuration shared by all client streams
	cfg condense.Config
	// style and font for annotation
	style render.Style
	font  render.Font
}

// NewDemo returns an instance of Demo, a streaming HTTP server showing
// video with the ball tracked by a particle filter
func NewDemo(vidFile string, radius float64) (*Demo, error) {

	d := &Demo{
		style: render.DefaultStyle(),
		font:  render.DefaultFont(),
	}

	if err := d.bufferVideo(vidFile); err != nil {
		return nil, fmt.Errorf("error buffering video: %w", err)
	}

	// find the ball on the first frame
	det := detect.NewBallDetector(radius, radius/2)
	defer det.Close()

	circles, err := det.DetectImage(d.grayBuffer[0])

	if err != nil {
		return nil, fmt.Errorf("error detecting ball: %w", err)
	}

	best, ok := detect.Best(circles, radius)

	if !ok {
		return nil, fmt.Errorf("no ball found in first frame")
	}

	log.Printf("Detected ball at (%.0f, %.0f) radius %.1f px",
		best.X, best.Y, best.Radius)

	d.roi = best.ROI()

	d.cfg = condense.DefaultConfig()
	d.cfg.RectWidth = d.roi.Dx()
	d.cfg.RectHeight = d.roi.Dy()

	d.target, err = video.TargetFromROI(d.grayBuffer[0], d.roi, d.cfg.Bins)

	if err != nil {
		return nil, err
	}

	return d, nil
}

// bufferVideo reads in the video frames and saves them to a buffer
func (d *Demo) bufferVideo(vidFile string) error {

	cap, err := gocv.VideoCaptureFile(vidFile)

	if err != nil {
		return err
	}

	defer cap.Close()

	tmp := gocv.NewMat()
	defer tmp.Close()

	for {
		img := gocv.NewMat()

		// read the next frame from the video
		if ok := cap.Read(&img); !ok {
			// reached last video frame
			img.Close()
			break
		}

		if img.Empty() {
			img.Close()
			continue
		}

		gray, err := video.GrayFromMat(img, &tmp)

		if err != nil {
			img.Close()
			continue
		}

		d.colorBuffer = append(d.colorBuffer, img)
		d.grayBuffer = append(d.grayBuffer, gray)
	}

	if len(d.grayBuffer) == 0 {
		return fmt.Errorf("no frames read from %s", vidFile)
	}

	log.Printf("Buffered %d frames from %s", len(d.grayBuffer), vidFile)

	return nil
}

// Stream is the HTTP handler function used to stream video frames to browser
func (d *Demo) Stream(w http.ResponseWriter, r *http.Request) {

	log.Printf("New client connection established")

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	// each client stream runs its own filter over the looping video, you
	// must create a new instance per stream as the filter keeps the
	// particle set of past frames
	f, err := condense.NewFilter(d.cfg)

	if err != nil {
		log.Printf("Error creating filter: %v", err)
		return
	}

	center := d.roi.Min.Add(d.roi.Max).Div(2)

	if err := f.Init(d.target, float64(center.X), float64(center.Y)); err != nil {
		log.Printf("Error initializing filter: %v", err)
		return
	}

	// pointer to position in video buffer
	frameNum := -1

	// the wall clock keeps presentation timestamps monotonic across
	// video loops
	start := time.Now()

	var estimates []condense.TrackEstimate

	ticker := time.NewTicker(FPSinterval)
	defer ticker.Stop()

	// chan to receive processed frames
	recvFrame := make(chan ResultFrame, 30)

loop:
	for {
		select {
		case <-r.Context().Done():
			log.Printf("Client disconnected")
			break loop

		// simulate reading a web camera
		case <-ticker.C:

			// increment pointer to next image in the video buffer
			frameNum++
			if frameNum > len(d.grayBuffer)-1 {
				// last frame reached so loop back to start of video
				frameNum = 0
				// keep the trail bounded across loops
				estimates = estimates[:0]
			}

			fr := condense.Frame{
				Gray:  d.grayBuffer[frameNum],
				PTS:   time.Since(start),
				Index: frameNum,
			}

			est, err := f.Process(fr)

			if err != nil && !errors.Is(err, condense.ErrTrackLost) {
				log.Printf("Error processing frame: %v", err)
				break loop
			}

			estimates = append(estimates, est)

			go d.ProcessFrame(d.colorBuffer[frameNum], f.Particles().Clone(),
				append([]condense.TrackEstimate(nil), estimates...), recvFrame)

		case buf := <-recvFrame:

			if buf.Err != nil {
				log.Printf("Error occured during ProcessFrame: %v", buf.Err)

			} else {
				// Write the image to the response writer
				w.Write([]byte("--frame\r\n"))
				w.Write([]byte("Content-Type: image/jpeg\r\n\r\n"))
				w.Write(buf.Buf.GetBytes())
				w.Write([]byte("\r\n"))

				// Flush the buffer
				flusher, ok := w.(http.Flusher)
				if ok {
					flusher.Flush()
				}
			}

			if buf.Buf != nil {
				buf.Buf.Close()
			}
		}
	}
}

// ProcessFrame annotates a copy of the video frame with the tracker state
// and returns the result encoded as a JPG file
func (d *Demo) ProcessFrame(img gocv.Mat, particles *particle.Set,
	estimates []condense.TrackEstimate, retChan chan<- ResultFrame) {

	resImg := gocv.NewMat()
	defer resImg.Close()

	img.CopyTo(&resImg)

	est := estimates[len(estimates)-1]

	render.Particles(&resImg, particles, d.style)
	render.Trail(&resImg, estimates, d.style)
	render.EstimateBox(&resImg, est, d.cfg.RectWidth, d.cfg.RectHeight, d.style)
	render.VelocityArrow(&resImg, est, d.style)

	label := fmt.Sprintf("frame %d  ess %.0f  %.0f px/s",
		est.FrameIndex, est.ESS, est.Speed())

	render.Label(&resImg, label, image.Pt(10, 20), d.font, render.Black)

	// Encode the image to JPEG format
	buf, err := gocv.IMEncode(".jpg", resImg)

	retChan <- ResultFrame{
		Buf: buf,
		Err: err,
	}
}

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	vidFile := flag.String("i", "ball.mp4", "Video file to track the ball in")
	radius := flag.Float64("radius", 20, "Expected ball radius in pixels")
	httpAddr := flag.String("a", ":8080", "HTTP address to listen on")

	flag.Parse()

	demo, err := NewDemo(*vidFile, *radius)

	if err != nil {
		log.Fatalf("Error creating demo: %v", err)
	}

	http.HandleFunc("/stream", demo.Stream)

	log.Printf("Open browser and view video at http://localhost%s/stream", *httpAddr)

	log.Fatal(http.ListenAndServe(*httpAddr, nil))
}
