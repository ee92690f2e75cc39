package shape

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/menta2k/cvatkit/pkg/types"
)

// ParsePointString parses the "x1,y1;x2,y2;..." form used in annotation files
func ParsePointString(s string) ([]types.Point, error) {
	if strings.TrimSpace(s) == "" {
		return nil, ErrEmptyPoints
	}
	pairs := strings.Split(s, ";")
	points := make([]types.Point, 0, len(pairs))
	for i, pair := range pairs {
		xs, ys, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("point %d: expected x,y but got %q", i, pair)
		}
		x, err := parseCoord(xs)
		if err != nil {
			return nil, fmt.Errorf("point %d: invalid x %q: %w", i, xs, err)
		}
		y, err := parseCoord(ys)
		if err != nil {
			return nil, fmt.Errorf("point %d: invalid y %q: %w", i, ys, err)
		}
		points = append(points, types.Point{X: x, Y: y})
	}
	return points, nil
}

func parseCoord(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if !finite(f) {
		return 0, ErrNonFinite
	}
	return f, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// FromPointList converts coordinate pairs into points
func FromPointList(pairs [][2]float64) ([]types.Point, error) {
	if len(pairs) == 0 {
		return nil, ErrEmptyPoints
	}
	points := make([]types.Point, len(pairs))
	for i, p := range pairs {
		if !finite(p[0]) || !finite(p[1]) {
			return nil, fmt.Errorf("point %d: %w", i, ErrNonFinite)
		}
		points[i] = types.Point{X: p[0], Y: p[1]}
	}
	return points, nil
}

// FormatPoints is the inverse of ParsePointString
func FormatPoints(points []types.Point) string {
	var sb strings.Builder
	for i, p := range points {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(FormatFloat(p.X))
		sb.WriteByte(',')
		sb.WriteString(FormatFloat(p.Y))
	}
	return sb.String()
}

// FormatFloat renders v with the fewest digits that parse back to v
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func bounds(points []types.Point) (minX, minY, maxX, maxY float64) {
	minX, minY = points[0].X, points[0].Y
	maxX, maxY = minX, minY
	for _, p := range points[1:] {
		minX = min(minX, p.X)
		maxX = max(maxX, p.X)
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}
	return minX, minY, maxX, maxY
}
