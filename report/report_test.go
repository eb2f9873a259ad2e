package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pongvision/condense"
)

func TestRender(t *testing.T) {

	estimates := []condense.TrackEstimate{
		{FrameIndex: 0, PTS: 0, X: 100, Y: 50, ESS: 200},
		{FrameIndex: 1, PTS: 40 * time.Millisecond, X: 104, Y: 52,
			VX: 100, VY: 50, ESS: 150.5},
		{FrameIndex: 2, PTS: 80 * time.Millisecond, X: 108, Y: 54,
			Reinitialized: true, ESS: 200},
	}

	var buf bytes.Buffer

	if err := Render(&buf, "test run", estimates); err != nil {
		t.Fatalf("error rendering report: %v", err)
	}

	html := buf.String()

	for _, want := range []string{"Trajectory", "Speed", "Effective sample size"} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q chart", want)
		}
	}
}

func TestRenderEmpty(t *testing.T) {

	var buf bytes.Buffer

	if err := Render(&buf, "empty run", nil); err != nil {
		t.Fatalf("error rendering empty report: %v", err)
	}

	if buf.Len() == 0 {
		t.Error("expected non-empty report output")
	}
}
