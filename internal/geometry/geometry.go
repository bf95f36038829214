// Package geometry implements the hit-testing predicates used to decide
// whether a pixel on the canvas lies inside, or on the border of, a shape.
//
// Shapes are described in normalized coordinates (0-1, relative to the
// canvas size). Query points and stroke widths are in pixels.
package geometry

import "math"

// MinHitMargin is the smallest distance, in pixels, a stroke accepts as a hit.
// Strokes thinner than twice this margin remain clickable.
const MinHitMargin = 3.0

// degenerateEpsilon bounds the barycentric denominator below which a
// triangle is treated as collinear.
const degenerateEpsilon = 1e-10

// Point is a position either in normalized or in pixel space,
// depending on where it is used.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Canvas holds the pixel dimensions shapes are projected onto.
type Canvas struct {
	Width  float64
	Height float64
}

// ToPixel projects a normalized point onto the canvas.
func (c Canvas) ToPixel(p Point) Point {
	return Point{X: p.X * c.Width, Y: p.Y * c.Height}
}

// ScaleRadius converts a normalized radius to pixels.
// Radii are relative to the shorter canvas side so that circles stay round.
func (c Canvas) ScaleRadius(r float64) float64 {
	return r * math.Min(c.Width, c.Height)
}

// Tolerance returns the hit distance for a stroke of the given pixel width.
func Tolerance(strokeWidth float64) float64 {
	return math.Max(strokeWidth/2, MinHitMargin)
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// DistanceToSegment returns the distance from p to the segment a-b.
// The projection of p onto the segment is clamped to its endpoints.
func DistanceToSegment(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y

	lengthSq := dx*dx + dy*dy
	if lengthSq == 0 {
		return Distance(p, a)
	}

	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lengthSq
	t = math.Max(0, math.Min(1, t))

	return Distance(p, Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

// Rect is an axis-aligned rectangle in normalized coordinates.
// Width and Height may be negative when the shape was drawn leftwards or upwards.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// pixelBounds returns the rectangle's top-left and bottom-right corners in pixels.
func (r Rect) pixelBounds(c Canvas) (Point, Point) {
	a := c.ToPixel(Point{X: r.X, Y: r.Y})
	b := c.ToPixel(Point{X: r.X + r.Width, Y: r.Y + r.Height})

	return Point{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y)},
		Point{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y)}
}

// PointInRect reports whether p lies within the rectangle's bounds.
func PointInRect(p Point, r Rect, c Canvas) bool {
	lo, hi := r.pixelBounds(c)

	return p.X >= lo.X && p.X <= hi.X && p.Y >= lo.Y && p.Y <= hi.Y
}

// RectStrokeHit reports whether p is within stroke tolerance of any of the four edges.
func RectStrokeHit(p Point, r Rect, strokeWidth float64, c Canvas) bool {
	lo, hi := r.pixelBounds(c)
	tl := lo
	tr := Point{X: hi.X, Y: lo.Y}
	br := hi
	bl := Point{X: lo.X, Y: hi.Y}

	nearest := math.Min(
		math.Min(DistanceToSegment(p, tl, tr), DistanceToSegment(p, tr, br)),
		math.Min(DistanceToSegment(p, br, bl), DistanceToSegment(p, bl, tl)),
	)

	return nearest <= Tolerance(strokeWidth)
}

// Circle is a circle in normalized coordinates.
type Circle struct {
	CenterX float64
	CenterY float64
	Radius  float64
}

func (ci Circle) pixel(c Canvas) (Point, float64) {
	return c.ToPixel(Point{X: ci.CenterX, Y: ci.CenterY}), c.ScaleRadius(ci.Radius)
}

// PointInCircle reports whether p lies within the circle.
func PointInCircle(p Point, ci Circle, c Canvas) bool {
	center, radius := ci.pixel(c)

	return Distance(p, center) <= radius
}

// CircleStrokeHit reports whether p lies within stroke tolerance of the circumference.
func CircleStrokeHit(p Point, ci Circle, strokeWidth float64, c Canvas) bool {
	center, radius := ci.pixel(c)

	return math.Abs(Distance(p, center)-radius) <= Tolerance(strokeWidth)
}

// Triangle holds three normalized vertices.
type Triangle [3]Point

func (t Triangle) pixel(c Canvas) (Point, Point, Point) {
	return c.ToPixel(t[0]), c.ToPixel(t[1]), c.ToPixel(t[2])
}

func barycentricDenominator(a, b, v Point) float64 {
	return (b.Y-v.Y)*(a.X-v.X) + (v.X-b.X)*(a.Y-v.Y)
}

// Degenerate reports whether the triangle's vertices are collinear on the canvas.
func (t Triangle) Degenerate(c Canvas) bool {
	a, b, v := t.pixel(c)

	return math.Abs(barycentricDenominator(a, b, v)) < degenerateEpsilon
}

// PointInTriangle reports whether p lies inside the triangle using barycentric
// coordinates. Degenerate triangles never contain a point.
func PointInTriangle(p Point, t Triangle, c Canvas) bool {
	a, b, v := t.pixel(c)

	denom := barycentricDenominator(a, b, v)
	if math.Abs(denom) < degenerateEpsilon {
		return false
	}

	wa := ((b.Y-v.Y)*(p.X-v.X) + (v.X-b.X)*(p.Y-v.Y)) / denom
	wb := ((v.Y-a.Y)*(p.X-v.X) + (a.X-v.X)*(p.Y-v.Y)) / denom
	wc := 1 - wa - wb

	return wa >= 0 && wb >= 0 && wc >= 0
}

// TriangleStrokeHit reports whether p lies within stroke tolerance of any edge.
// Degenerate triangles are never hit.
func TriangleStrokeHit(p Point, t Triangle, strokeWidth float64, c Canvas) bool {
	if t.Degenerate(c) {
		return false
	}

	a, b, v := t.pixel(c)

	nearest := math.Min(DistanceToSegment(p, a, b), math.Min(DistanceToSegment(p, b, v), DistanceToSegment(p, v, a)))

	return nearest <= Tolerance(strokeWidth)
}

// SegmentHit reports whether p is within stroke tolerance of the normalized segment a-b.
func SegmentHit(p, a, b Point, strokeWidth float64, c Canvas) bool {
	return DistanceToSegment(p, c.ToPixel(a), c.ToPixel(b)) <= Tolerance(strokeWidth)
}

// PolylineHit reports whether p is within stroke tolerance of any segment
// joining consecutive normalized points. A single point is tested as a dot.
func PolylineHit(p Point, points []Point, strokeWidth float64, c Canvas) bool {
	switch len(points) {
	case 0:
		return false
	case 1:
		return Distance(p, c.ToPixel(points[0])) <= Tolerance(strokeWidth)
	}

	tolerance := Tolerance(strokeWidth)
	prev := c.ToPixel(points[0])

	for _, next := range points[1:] {
		cur := c.ToPixel(next)
		if DistanceToSegment(p, prev, cur) <= tolerance {
			return true
		}

		prev = cur
	}

	return false
}
