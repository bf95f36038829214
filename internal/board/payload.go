// Package board holds the drawing actions and chat messages that make up a
// shared whiteboard, and the ordered stores the client keeps them in.
package board

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/serroba/online-board/internal/geometry"
)

// Common errors.
var (
	ErrUnknownTool    = errors.New("unknown tool")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Tool identifies the kind of drawing action and selects which payload
// fields are meaningful.
type Tool string

// Supported tools.
const (
	ToolRectangle  Tool = "rectangle"
	ToolSquare     Tool = "square"
	ToolCircle     Tool = "circle"
	ToolTriangle   Tool = "triangle"
	ToolPentagon   Tool = "pentagon"
	ToolHexagon    Tool = "hexagon"
	ToolStar       Tool = "star"
	ToolLine       Tool = "line"
	ToolDottedLine Tool = "dottedLine"
	ToolArrow      Tool = "arrow"
	ToolText       Tool = "text"
	ToolBrush      Tool = "brush"
	ToolEraser     Tool = "eraser"
)

// Known reports whether t is a supported tool.
func (t Tool) Known() bool {
	switch t {
	case ToolRectangle, ToolSquare, ToolCircle, ToolTriangle, ToolPentagon, ToolHexagon,
		ToolStar, ToolLine, ToolDottedLine, ToolArrow, ToolText, ToolBrush, ToolEraser:
		return true
	default:
		return false
	}
}

// SupportsFill reports whether shapes drawn with t have a fill color.
func (t Tool) SupportsFill() bool {
	switch t {
	case ToolRectangle, ToolSquare, ToolCircle, ToolTriangle, ToolPentagon, ToolHexagon, ToolStar:
		return true
	default:
		return false
	}
}

// Sides returns the vertex count of a regular polygon tool, or 0.
func (t Tool) Sides() int {
	switch t {
	case ToolPentagon:
		return 5
	case ToolHexagon:
		return 6
	default:
		return 0
	}
}

// ActionPayload is a single drawn object. Tool is the discriminator; each
// tool uses its own subset of the coordinate fields, all normalized to 0-1.
//
//   - rectangle, square, text: X, Y, Width, Height
//   - circle, pentagon, hexagon, star: CenterX, CenterY, Radius
//   - line, dottedLine, arrow: StartX, StartY, EndX, EndY
//   - triangle (three points), brush, eraser: Points
//
// InstanceID never changes once assigned and is the object's identity on every peer.
type ActionPayload struct {
	Tool       Tool   `json:"tool"`
	InstanceID string `json:"instanceId"`

	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	CenterX float64 `json:"centerX,omitempty"`
	CenterY float64 `json:"centerY,omitempty"`
	Radius  float64 `json:"radius,omitempty"`

	StartX float64 `json:"startX,omitempty"`
	StartY float64 `json:"startY,omitempty"`
	EndX   float64 `json:"endX,omitempty"`
	EndY   float64 `json:"endY,omitempty"`

	Points []geometry.Point `json:"points,omitempty"`

	Text     string  `json:"text,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`

	Color       string  `json:"color,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	FillColor   string  `json:"fillColor,omitempty"`
}

// Validate checks that the fields required by the payload's tool are present.
func (p ActionPayload) Validate() error {
	if !p.Tool.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownTool, p.Tool)
	}

	if p.StrokeWidth < 0 {
		return fmt.Errorf("%w: negative stroke width", ErrInvalidPayload)
	}

	switch p.Tool {
	case ToolCircle, ToolPentagon, ToolHexagon, ToolStar:
		if p.Radius <= 0 {
			return fmt.Errorf("%w: %s needs a positive radius", ErrInvalidPayload, p.Tool)
		}
	case ToolTriangle:
		if len(p.Points) != 3 {
			return fmt.Errorf("%w: triangle needs 3 points, got %d", ErrInvalidPayload, len(p.Points))
		}
	case ToolBrush, ToolEraser:
		if len(p.Points) == 0 {
			return fmt.Errorf("%w: %s needs at least one point", ErrInvalidPayload, p.Tool)
		}
	case ToolRectangle, ToolSquare, ToolText, ToolLine, ToolDottedLine, ToolArrow:
	}

	return nil
}

// Clone returns a copy that shares no slices with p.
func (p ActionPayload) Clone() ActionPayload {
	p.Points = slices.Clone(p.Points)

	return p
}

// Equal reports whether p and o describe the same object in the same state.
// A nil and an empty point list are equal.
func (p ActionPayload) Equal(o ActionPayload) bool {
	if !slices.Equal(p.Points, o.Points) {
		return false
	}

	p.Points, o.Points = nil, nil

	return reflect.DeepEqual(p, o)
}

// Rect returns the bounds of a rectangle, square or text box.
func (p ActionPayload) Rect() geometry.Rect {
	return geometry.Rect{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
}

// Circle returns the circumscribing circle of a circle, polygon or star.
func (p ActionPayload) Circle() geometry.Circle {
	return geometry.Circle{CenterX: p.CenterX, CenterY: p.CenterY, Radius: p.Radius}
}

// Triangle returns the triangle's vertices. Missing points are left at the origin.
func (p ActionPayload) Triangle() geometry.Triangle {
	var t geometry.Triangle

	copy(t[:], p.Points)

	return t
}

// Segment returns the endpoints of a line, dotted line or arrow.
func (p ActionPayload) Segment() (geometry.Point, geometry.Point) {
	return geometry.Point{X: p.StartX, Y: p.StartY}, geometry.Point{X: p.EndX, Y: p.EndY}
}
