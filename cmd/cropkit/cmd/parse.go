package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/menta2k/cropkit/pkg/geometry"
)

// dragStep is one scripted gesture: grab at From and move by Delta
type dragStep struct {
	From  geometry.Point
	Delta geometry.Point
}

// parsePoint reads "x,y"
func parsePoint(v string) (geometry.Point, error) {
	xs, ys, ok := strings.Cut(strings.TrimSpace(v), ",")
	if !ok {
		return geometry.Point{}, fmt.Errorf("invalid point %q (want x,y)", v)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return geometry.Point{}, fmt.Errorf("invalid point %q: %w", v, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return geometry.Point{}, fmt.Errorf("invalid point %q: %w", v, err)
	}
	return geometry.Point{X: x, Y: y}, nil
}

// parseDrag reads "x,y:dx,dy"
func parseDrag(v string) (dragStep, error) {
	from, delta, ok := strings.Cut(v, ":")
	if !ok {
		return dragStep{}, fmt.Errorf("invalid drag %q (want x,y:dx,dy)", v)
	}
	p, err := parsePoint(from)
	if err != nil {
		return dragStep{}, err
	}
	d, err := parsePoint(delta)
	if err != nil {
		return dragStep{}, err
	}
	return dragStep{From: p, Delta: d}, nil
}
