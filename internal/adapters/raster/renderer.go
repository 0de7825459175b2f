package raster

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/pkg/telemetry"
)

const (
	lineHeight = 15
	padding    = 10
	headLength = 12.0
)

// Renderer rasterizes frames into square PNG images. The frame's viewport
// rectangle of the full canvas is scaled onto WindowSize x WindowSize pixels.
type Renderer struct {
	WindowSize int
	background image.Image
}

// New creates a renderer. backgroundPath, when set, names a map image
// covering the whole canvas; it is cropped and scaled with each frame.
func New(windowSize int, backgroundPath string) (*Renderer, error) {
	r := &Renderer{WindowSize: windowSize}
	if backgroundPath == "" {
		return r, nil
	}
	img, err := gg.LoadImage(backgroundPath)
	if err != nil {
		return nil, fmt.Errorf("load background %s: %w", backgroundPath, err)
	}
	r.background = img
	return r, nil
}

// Render encodes frame as PNG into w.
func (r *Renderer) Render(ctx context.Context, frame *domain.Frame, w io.Writer) error {
	_, end := telemetry.StartSpan(ctx, telemetry.SpanRasterize,
		attribute.Int("commands", len(frame.Commands)), attribute.String("view", string(frame.View)))
	dc := r.Draw(frame)
	err := dc.EncodePNG(w)
	end(err)
	return err
}

// Draw paints frame onto a fresh context.
func (r *Renderer) Draw(frame *domain.Frame) *gg.Context {
	size := r.WindowSize
	dc := gg.NewContext(size, size)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	vp := frame.Viewport
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = domain.Rect{Width: frame.CanvasWidth, Height: frame.CanvasHeight}
	}
	if vp.Width <= 0 || vp.Height <= 0 {
		return dc
	}
	t := transform{
		vp: vp,
		sx: float64(size) / float64(vp.Width),
		sy: float64(size) / float64(vp.Height),
	}

	if r.background != nil {
		r.drawBackground(dc, frame, vp)
	}
	for _, c := range frame.Commands {
		drawCommand(dc, t, c)
	}
	r.drawOverlay(dc, frame)
	return dc
}

// drawBackground crops the part of the background under vp and scales it to
// the window.
func (r *Renderer) drawBackground(dc *gg.Context, frame *domain.Frame, vp domain.Rect) {
	b := r.background.Bounds()
	if frame.CanvasWidth <= 0 || frame.CanvasHeight <= 0 {
		return
	}
	kx := float64(b.Dx()) / float64(frame.CanvasWidth)
	ky := float64(b.Dy()) / float64(frame.CanvasHeight)
	src := image.Rect(
		b.Min.X+int(float64(vp.X)*kx),
		b.Min.Y+int(float64(vp.Y)*ky),
		b.Min.X+int(float64(vp.X+vp.Width)*kx),
		b.Min.Y+int(float64(vp.Y+vp.Height)*ky),
	).Intersect(b)
	if src.Empty() {
		return
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.WindowSize, r.WindowSize))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), r.background, src, draw.Src, nil)
	dc.DrawImage(dst, 0, 0)
}

type transform struct {
	vp     domain.Rect
	sx, sy float64
}

func (t transform) point(p domain.PixelPoint) (float64, float64) {
	return float64(p.X-t.vp.X) * t.sx, float64(p.Y-t.vp.Y) * t.sy
}

func (t transform) length(v int) float64 {
	return math.Max(1, float64(v)*t.sx)
}

func drawCommand(dc *gg.Context, t transform, c domain.DrawCommand) {
	dc.SetColor(c.Color.RGBA())
	switch c.Kind {
	case domain.DrawCircle:
		x, y := t.point(c.Center)
		radius := t.length(c.Radius)
		if c.Thickness <= 0 {
			dc.DrawCircle(x, y, radius)
			dc.Fill()
			return
		}
		dc.SetLineWidth(t.length(c.Thickness))
		dc.DrawCircle(x, y, radius)
		dc.Stroke()
	case domain.DrawArrow:
		x1, y1 := t.point(c.From)
		x2, y2 := t.point(c.To)
		dc.SetLineWidth(t.length(c.Thickness))
		dc.DrawLine(x1, y1, x2, y2)
		dc.Stroke()
		drawHead(dc, x1, y1, x2, y2)
	case domain.DrawText:
		x, y := t.point(c.Position)
		dc.DrawStringAnchored(c.Content, x, y, 0.5, 0.5)
	}
}

// drawHead draws a filled arrow head at (x2, y2). Zero-length arrows get none.
func drawHead(dc *gg.Context, x1, y1, x2, y2 float64) {
	dx, dy := x2-x1, y2-y1
	n := math.Hypot(dx, dy)
	if n == 0 {
		return
	}
	l := math.Min(headLength, n/2)
	ux, uy := dx/n, dy/n
	bx, by := x2-ux*l, y2-uy*l
	px, py := -uy*l/2, ux*l/2
	dc.MoveTo(x2, y2)
	dc.LineTo(bx+px, by+py)
	dc.LineTo(bx-px, by-py)
	dc.ClosePath()
	dc.Fill()
}

// drawOverlay writes text that is not part of the map: notices, the side
// panel and help. It is laid out in window pixels and never scaled.
func (r *Renderer) drawOverlay(dc *gg.Context, frame *domain.Frame) {
	y := float64(padding + lineHeight)
	if frame.Stale || frame.Notice != "" {
		dc.SetColor(domain.ColorRed.RGBA())
		msg := frame.Notice
		if frame.Stale && msg == "" {
			msg = "stale"
		}
		dc.DrawString(msg, padding, y)
		y += lineHeight
	}

	dc.SetColor(domain.ColorBlack.RGBA())
	header := fmt.Sprintf("%s  x%d", frame.View, frame.Magnification)
	if frame.View == domain.ViewRoute {
		header = fmt.Sprintf("%s %d/%d  x%d", frame.View, frame.RouteIndex, frame.RouteCount, frame.Magnification)
	}
	dc.DrawString(header, padding, y)

	if len(frame.Panel) > 0 {
		w := 0.0
		for _, line := range frame.Panel {
			if lw, _ := dc.MeasureString(line); lw > w {
				w = lw
			}
		}
		x := float64(r.WindowSize) - w - padding
		py := float64(padding + lineHeight)
		for _, line := range frame.Panel {
			dc.DrawString(line, x, py)
			py += lineHeight
		}
	}

	if len(frame.Help) > 0 {
		hy := float64(r.WindowSize) - padding - float64(len(frame.Help)-1)*lineHeight
		for _, line := range frame.Help {
			dc.DrawString(line, padding, hy)
			hy += lineHeight
		}
	}
}
