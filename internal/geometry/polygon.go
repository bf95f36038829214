package geometry

import "math"

const (
	// StarPoints is the number of outer tips of a star.
	StarPoints = 5
	// StarInnerRatio is the inner radius of a star relative to its outer radius.
	StarInnerRatio = 0.4
)

// RegularPolygonVertices samples sides pixel vertices around center at the
// given pixel radius. The first vertex points straight up.
func RegularPolygonVertices(center Point, radius float64, sides int) []Point {
	if sides < 3 {
		return nil
	}

	vertices := make([]Point, sides)

	for i := range sides {
		angle := -math.Pi/2 + 2*math.Pi*float64(i)/float64(sides)
		vertices[i] = Point{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
		}
	}

	return vertices
}

// StarVertices returns the ten pixel vertices of a five-pointed star,
// alternating between the outer radius and StarInnerRatio of it.
func StarVertices(center Point, radius float64) []Point {
	count := StarPoints * 2
	vertices := make([]Point, count)

	for i := range count {
		r := radius
		if i%2 == 1 {
			r = radius * StarInnerRatio
		}

		angle := -math.Pi/2 + math.Pi*float64(i)/StarPoints
		vertices[i] = Point{
			X: center.X + r*math.Cos(angle),
			Y: center.Y + r*math.Sin(angle),
		}
	}

	return vertices
}

// PointInPolygon casts a horizontal ray from p and counts edge crossings.
// An odd count means p is inside. Vertices are in pixels.
func PointInPolygon(p Point, vertices []Point) bool {
	inside := false

	for i, j := 0, len(vertices)-1; i < len(vertices); j, i = i, i+1 {
		vi, vj := vertices[i], vertices[j]

		if (vi.Y > p.Y) != (vj.Y > p.Y) &&
			p.X < (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
	}

	return inside
}

// PointInRegularPolygon reports whether p lies inside the regular polygon
// with the given number of sides inscribed in ci.
func PointInRegularPolygon(p Point, ci Circle, sides int, c Canvas) bool {
	center, radius := ci.pixel(c)

	return PointInPolygon(p, RegularPolygonVertices(center, radius, sides))
}

// PointInStar reports whether p lies inside the star inscribed in ci.
func PointInStar(p Point, ci Circle, c Canvas) bool {
	center, radius := ci.pixel(c)

	return PointInPolygon(p, StarVertices(center, radius))
}
