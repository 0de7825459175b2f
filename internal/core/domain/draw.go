package domain

import "image/color"

// Color is a named palette entry understood by every renderer.
type Color string

const (
	ColorYellow  Color = "yellow"
	ColorBlack   Color = "black"
	ColorRed     Color = "red"
	ColorDarkRed Color = "dark-red"
	ColorBlue    Color = "blue"
	ColorGreen   Color = "green"
)

var palette = map[Color]color.RGBA{
	ColorYellow:  {R: 255, G: 200, B: 0, A: 255},
	ColorBlack:   {R: 0, G: 0, B: 0, A: 255},
	ColorRed:     {R: 255, G: 0, B: 0, A: 255},
	ColorDarkRed: {R: 150, G: 0, B: 0, A: 255},
	ColorBlue:    {R: 0, G: 0, B: 255, A: 255},
	ColorGreen:   {R: 0, G: 120, B: 0, A: 255},
}

// RGBA returns the palette value; unknown names render black.
func (c Color) RGBA() color.RGBA {
	if v, ok := palette[c]; ok {
		return v
	}
	return palette[ColorBlack]
}

// DrawKind discriminates DrawCommand variants.
type DrawKind string

const (
	DrawCircle DrawKind = "circle"
	DrawArrow  DrawKind = "arrow"
	DrawText   DrawKind = "text"
)

// DrawCommand is one primitive handed to a renderer. Coordinates are in
// full-canvas screen space (y grows downward).
type DrawCommand struct {
	Kind      DrawKind   `json:"kind"`
	Center    PixelPoint `json:"center,omitempty"`
	Radius    int        `json:"radius,omitempty"`
	From      PixelPoint `json:"from,omitempty"`
	To        PixelPoint `json:"to,omitempty"`
	Position  PixelPoint `json:"position,omitempty"`
	Content   string     `json:"content,omitempty"`
	Color     Color      `json:"color,omitempty"`
	Thickness int        `json:"thickness,omitempty"`
}

// Circle builds a circle command.
func Circle(center PixelPoint, radius int, c Color, thickness int) DrawCommand {
	return DrawCommand{Kind: DrawCircle, Center: center, Radius: radius, Color: c, Thickness: thickness}
}

// Arrow builds a directed line command.
func Arrow(from, to PixelPoint, c Color, thickness int) DrawCommand {
	return DrawCommand{Kind: DrawArrow, From: from, To: to, Color: c, Thickness: thickness}
}

// Text builds a label command.
func Text(pos PixelPoint, content string) DrawCommand {
	return DrawCommand{Kind: DrawText, Position: pos, Content: content, Color: ColorBlack}
}
