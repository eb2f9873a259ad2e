// Package render draws the tracker state onto video frames for the demo
// applications, the particle cloud, the estimate box and trail, and HUD
// text labels.
package render

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/pongvision/condense"
	"github.com/pongvision/condense/particle"
)

// Style defines the parameters used for rendering the tracker state
type Style struct {
	ParticleColor  color.RGBA
	ParticleRadius int
	BoxColor       color.RGBA
	BoxThickness   int
	// LostColor is used for the estimate box while the track is lost
	LostColor      color.RGBA
	TrailColor     color.RGBA
	TrailThickness int
	// CircleSame defines if the color of the midpoint circle should be
	// the same color as that of the trail line.  If set to false then use
	// the color specified at CircleColor
	CircleSame   bool
	CircleColor  color.RGBA
	CircleRadius int
	ArrowColor   color.RGBA
	// ArrowScale converts the estimate velocity in pixels per second
	// into the arrow length in pixels
	ArrowScale float64
}

// DefaultStyle returns default rendering style settings
func DefaultStyle() Style {
	return Style{
		ParticleColor:  Blue,
		ParticleRadius: 1,
		BoxColor:       Green,
		BoxThickness:   2,
		LostColor:      Red,
		TrailColor:     Yellow,
		TrailThickness: 1,
		CircleSame:     false,
		CircleColor:    Pink,
		CircleRadius:   3,
		ArrowColor:     Orange,
		ArrowScale:     0.25,
	}
}

// Particles draws the particle cloud on the source image
func Particles(img *gocv.Mat, s *particle.Set, style Style) {

	for i := 0; i < s.Len(); i++ {
		p := s.At(i)

		gocv.Circle(img,
			image.Pt(int(math.Round(p.State.X)), int(math.Round(p.State.Y))),
			style.ParticleRadius, style.ParticleColor, -1)
	}
}

// EstimateBox draws the tracking window centered on the state estimate.
// A lost track is drawn in the lost color.
func EstimateBox(img *gocv.Mat, est condense.TrackEstimate, w, h int,
	style Style) {

	clr := style.BoxColor

	if est.TrackLost {
		clr = style.LostColor
	}

	cx := int(math.Round(est.X))
	cy := int(math.Round(est.Y))

	rect := image.Rect(cx-w/2, cy-h/2, cx+w/2, cy+h/2)

	gocv.Rectangle(img, rect, clr, style.BoxThickness)
}

// Trail draws the estimate history as a line on the source image, with a
// circle marking the most recent position
func Trail(img *gocv.Mat, estimates []condense.TrackEstimate, style Style) {

	if len(estimates) == 0 {
		return
	}

	circleClr := style.TrailColor

	if !style.CircleSame {
		circleClr = style.CircleColor
	}

	for i := 1; i < len(estimates); i++ {
		gocv.Line(img,
			image.Pt(int(math.Round(estimates[i-1].X)), int(math.Round(estimates[i-1].Y))),
			image.Pt(int(math.Round(estimates[i].X)), int(math.Round(estimates[i].Y))),
			style.TrailColor, style.TrailThickness,
		)
	}

	last := estimates[len(estimates)-1]

	gocv.Circle(img, image.Pt(int(math.Round(last.X)), int(math.Round(last.Y))),
		style.CircleRadius, circleClr, -1)
}

// VelocityArrow draws an arrow from the state estimate in the direction of
// its velocity, scaled by the style arrow scale
func VelocityArrow(img *gocv.Mat, est condense.TrackEstimate, style Style) {

	if est.Speed() == 0 {
		return
	}

	from := image.Pt(int(math.Round(est.X)), int(math.Round(est.Y)))
	to := image.Pt(
		int(math.Round(est.X+est.VX*style.ArrowScale)),
		int(math.Round(est.Y+est.VY*style.ArrowScale)),
	)

	gocv.ArrowedLine(img, from, to, style.ArrowColor, style.TrailThickness)
}
