package grid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"imprint/domain/core"
)

// NullHypothesis decides whether its null holds at a parameter point.
type NullHypothesis interface {
	Holds(theta []float64) bool
}

// HyperPlane is a planar null: it holds where Normal·theta >= C.
type HyperPlane struct {
	Normal []float64
	C      float64
}

// Holds reports whether theta lies in the closed null half-space.
func (h HyperPlane) Holds(theta []float64) bool {
	return floats.Dot(h.Normal, theta) >= h.C
}

// EvaluateNulls returns one indicator per hypothesis.
func EvaluateNulls(theta []float64, nulls []NullHypothesis) []bool {
	out := make([]bool, len(nulls))
	for i, h := range nulls {
		out[i] = h.Holds(theta)
	}
	return out
}

var hypothesisPattern = regexp.MustCompile(`^x(\d+)\s*(<=|>=|<|>)\s*([-+0-9.eE]+)$`)

// ParseHypothesis builds a plane from a null region such as "x0 < 0" or
// "x1 >= 0.25" in a d-dimensional space.
func ParseHypothesis(expr string, d int) (HyperPlane, error) {
	m := hypothesisPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return HyperPlane{}, core.NewInvalidArgumentError("hypothesis", fmt.Sprintf("cannot parse %q, expected form like \"x0 < 0\"", expr))
	}
	axis, err := strconv.Atoi(m[1])
	if err != nil || axis >= d {
		return HyperPlane{}, core.NewInvalidArgumentError("hypothesis", fmt.Sprintf("axis x%s out of range for dimension %d", m[1], d))
	}
	c, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return HyperPlane{}, core.NewInvalidArgumentError("hypothesis", fmt.Sprintf("bad constant in %q: %v", expr, err))
	}

	normal := make([]float64, d)
	switch m[2] {
	case "<", "<=":
		normal[axis] = -1
		c = -c
	default:
		normal[axis] = 1
	}
	return HyperPlane{Normal: normal, C: c}, nil
}
