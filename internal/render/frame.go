// Package render draws the per-frame route overlay: background raster,
// route path, position cursor, elapsed-time readout, and caption panel.
// Rendering is deterministic so identical inputs produce byte-identical
// frames.
package render

import (
	"fmt"
	"image"
	"sort"

	"github.com/fogleman/gg"
	"github.com/mfolsom/drivelog/internal/geo"
	"github.com/mfolsom/drivelog/internal/models"
	"github.com/mfolsom/drivelog/internal/timeline"
	"golang.org/x/image/font/basicfont"
)

const (
	routeLineWidth  = 6.0
	cursorRadius    = 12.0
	hudMargin       = 32.0
	captionWindow   = 6.0 // seconds of transcript context around the frame time
	captionBottomPx = 96.0
)

// Renderer holds the geometry prepared once per export. Frame is then a
// pure function of the time offset.
type Renderer struct {
	width      int
	height     int
	duration   float64
	points     []geo.Point
	offsets    []float64
	background image.Image
	captions   *timeline.Index
}

// New precomputes projection geometry for a session. background may be nil;
// the renderer falls back to a flat fill. duration is floored at one second
// so degenerate sessions still produce a visible timeline.
func New(s *models.Session, width, height int, background image.Image) *Renderer {
	duration := s.Duration().Seconds()
	if duration < 1 {
		duration = 1
	}

	points, offsets := geo.Project(s.RouteSamples, float64(width), float64(height))

	return &Renderer{
		width:      width,
		height:     height,
		duration:   duration,
		points:     points,
		offsets:    offsets,
		background: background,
		captions:   timeline.New(s.TranscriptSegments),
	}
}

// Frame renders the overlay at the given time offset (seconds), clamped to
// [0, duration].
func (r *Renderer) Frame(t float64) *image.RGBA {
	if t < 0 {
		t = 0
	}
	if t > r.duration {
		t = r.duration
	}

	dc := gg.NewContext(r.width, r.height)
	r.drawBackground(dc)

	if len(r.points) > 1 {
		current := currentSampleIndex(t, r.offsets)
		r.drawRoute(dc, current)
		r.drawCursor(dc, r.points[min(current, len(r.points)-1)])
	} else if len(r.points) == 1 {
		r.drawCursor(dc, r.points[0])
	}

	r.drawHUD(dc, t)
	r.drawCaption(dc, t)

	return dc.Image().(*image.RGBA)
}

func (r *Renderer) drawBackground(dc *gg.Context) {
	if r.background != nil {
		dc.DrawImage(r.background, 0, 0)
		return
	}
	dc.SetRGB(0.09, 0.10, 0.12)
	dc.Clear()
}

// drawRoute strokes the full route faintly, then the traveled prefix in
// the highlight color.
func (r *Renderer) drawRoute(dc *gg.Context, current int) {
	dc.SetLineWidth(routeLineWidth)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()

	dc.SetRGBA(0.72, 0.72, 0.75, 0.6)
	strokePath(dc, r.points)

	if current > 0 {
		dc.SetRGB(0.0, 0.48, 1.0)
		strokePath(dc, r.points[:current+1])
	}
}

func (r *Renderer) drawCursor(dc *gg.Context, p geo.Point) {
	dc.SetRGB(1.0, 0.58, 0.0)
	dc.DrawCircle(p.X, p.Y, cursorRadius)
	dc.Fill()

	dc.SetRGB(1, 1, 1)
	dc.SetLineWidth(3)
	dc.DrawCircle(p.X, p.Y, cursorRadius)
	dc.Stroke()
}

// drawHUD draws the elapsed-time readout in a rounded panel at top-left.
func (r *Renderer) drawHUD(dc *gg.Context, t float64) {
	text := FormatElapsed(t)

	dc.SetFontFace(basicfont.Face7x13)
	w, h := dc.MeasureString(text)

	x, y := hudMargin, hudMargin+16
	dc.SetRGBA(0, 0, 0, 0.35)
	dc.DrawRoundedRectangle(x-14, y-h-10, w+28, h+20, 14)
	dc.Fill()

	dc.SetRGB(1, 1, 1)
	dc.DrawString(text, x, y)
}

// drawCaption draws the centered transcript panel near the bottom when a
// snippet is active at this offset.
func (r *Renderer) drawCaption(dc *gg.Context, t float64) {
	snippet := r.captions.Snippet(t, captionWindow)
	if snippet == "" {
		return
	}

	dc.SetFontFace(basicfont.Face7x13)
	maxWidth := float64(r.width) - 128

	lines := dc.WordWrap(snippet, maxWidth)
	lineHeight := dc.FontHeight() * 1.4
	textHeight := float64(len(lines)) * lineHeight

	var textWidth float64
	for _, line := range lines {
		w, _ := dc.MeasureString(line)
		if w > textWidth {
			textWidth = w
		}
	}

	originY := float64(r.height) - textHeight - captionBottomPx
	originX := (float64(r.width) - textWidth) / 2
	if originX < hudMargin {
		originX = hudMargin
	}

	dc.SetRGBA(0, 0, 0, 0.4)
	dc.DrawRoundedRectangle(originX-24, originY-18, textWidth+48, textHeight+36, 22)
	dc.Fill()

	dc.SetRGB(1, 1, 1)
	for i, line := range lines {
		w, _ := dc.MeasureString(line)
		lx := originX + (textWidth-w)/2
		ly := originY + float64(i)*lineHeight + dc.FontHeight()
		dc.DrawString(line, lx, ly)
	}
}

// currentSampleIndex returns the index of the last sample whose offset ≤ t,
// or 0 when t precedes the first offset.
func currentSampleIndex(t float64, offsets []float64) int {
	if len(offsets) == 0 {
		return 0
	}
	i := sort.Search(len(offsets), func(i int) bool {
		return offsets[i] > t
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

// FormatElapsed renders seconds as mm:ss, or hh:mm:ss beyond one hour.
func FormatElapsed(t float64) string {
	total := int(t)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func strokePath(dc *gg.Context, points []geo.Point) {
	dc.NewSubPath()
	dc.MoveTo(points[0].X, points[0].Y)
	for _, p := range points[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.Stroke()
}
