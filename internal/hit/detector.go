// Package hit resolves which drawn object a click on the canvas landed on,
// and turns recolor clicks into object updates.
package hit

import (
	"github.com/serroba/online-board/internal/board"
	"github.com/serroba/online-board/internal/geometry"
)

// Type classifies what part of an object a click struck.
type Type string

// Hit types.
const (
	// TypeFill is the interior of a shape.
	TypeFill Type = "fill"
	// TypeStroke is the border of a shape.
	TypeStroke Type = "stroke"
	// TypeObject is a whole stroke-only object such as a line or text box.
	TypeObject Type = "object"
)

// Result is the outcome of a hit query. Object and Type are only set when Hit is true.
type Result struct {
	Hit    bool
	Object *board.ActionPayload
	Type   Type
}

// DetectObjectHit returns the topmost object under point. Objects are given
// in z-order, so the search runs from the last one backwards and stops at
// the first match.
func DetectObjectHit(point geometry.Point, objects []board.ActionPayload, canvas geometry.Canvas) Result {
	for i := len(objects) - 1; i >= 0; i-- {
		if hitType, ok := Classify(point, objects[i], canvas); ok {
			obj := objects[i].Clone()

			return Result{Hit: true, Object: &obj, Type: hitType}
		}
	}

	return Result{}
}

// Classify tests a single object. For rectangles, circles and triangles the
// border is checked before the interior, so a click on the border reports
// TypeStroke even though it is also inside the fill.
func Classify(point geometry.Point, obj board.ActionPayload, canvas geometry.Canvas) (Type, bool) {
	switch obj.Tool {
	case board.ToolRectangle, board.ToolSquare:
		return strokeOrFill(
			geometry.RectStrokeHit(point, obj.Rect(), obj.StrokeWidth, canvas),
			geometry.PointInRect(point, obj.Rect(), canvas),
		)
	case board.ToolCircle:
		return strokeOrFill(
			geometry.CircleStrokeHit(point, obj.Circle(), obj.StrokeWidth, canvas),
			geometry.PointInCircle(point, obj.Circle(), canvas),
		)
	case board.ToolTriangle:
		return strokeOrFill(
			geometry.TriangleStrokeHit(point, obj.Triangle(), obj.StrokeWidth, canvas),
			geometry.PointInTriangle(point, obj.Triangle(), canvas),
		)
	// Polygons and stars have no separate border path and only report fill.
	case board.ToolPentagon, board.ToolHexagon:
		return TypeFill, geometry.PointInRegularPolygon(point, obj.Circle(), obj.Tool.Sides(), canvas)
	case board.ToolStar:
		return TypeFill, geometry.PointInStar(point, obj.Circle(), canvas)
	case board.ToolLine, board.ToolDottedLine, board.ToolArrow:
		start, end := obj.Segment()

		return TypeObject, geometry.SegmentHit(point, start, end, obj.StrokeWidth, canvas)
	case board.ToolText:
		return TypeObject, geometry.PointInRect(point, obj.Rect(), canvas)
	case board.ToolBrush, board.ToolEraser:
		return TypeObject, geometry.PolylineHit(point, obj.Points, obj.StrokeWidth, canvas)
	default:
		return "", false
	}
}

func strokeOrFill(stroke, fill bool) (Type, bool) {
	switch {
	case stroke:
		return TypeStroke, true
	case fill:
		return TypeFill, true
	default:
		return "", false
	}
}
